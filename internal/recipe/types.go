// Package recipe implements the declarative recipe catalog: the
// data model for a recipe and its steps, and the store that loads,
// validates, and serves a directory of recipe documents.
package recipe

import "encoding/json"

// Kind is a step's operation tag, a closed set rejected at load if unknown.
type Kind string

const (
	KindQuery         Kind = "QUERY"
	KindGenerateDML   Kind = "GENERATE_DML"
	KindReturnSuccess Kind = "RETURN_SUCCESS"
	KindReturnError   Kind = "RETURN_ERROR"
)

// DMLType is the kind of mutation a GENERATE_DML step produces.
type DMLType string

const (
	DMLUpdate DMLType = "UPDATE"
	DMLInsert DMLType = "INSERT"
	DMLDelete DMLType = "DELETE"
)

// StepTarget is a next/else-step reference that must distinguish "not
// specified" from an explicit null (the "end" sentinel) — a plain *int
// collapses both to nil, so this carries its own presence bit.
type StepTarget struct {
	set bool
	val *int
}

// Target constructs a present StepTarget pointing at step n.
func Target(n int) StepTarget { return StepTarget{set: true, val: &n} }

// End constructs a present StepTarget that is the explicit "end" sentinel.
func End() StepTarget { return StepTarget{set: true, val: nil} }

// Present reports whether the field was specified in the document at all.
func (t StepTarget) Present() bool { return t.set }

// IsEnd reports whether the target is the explicit "end" sentinel. Only
// meaningful when Present is true.
func (t StepTarget) IsEnd() bool { return t.set && t.val == nil }

// Step returns the target step number and true, or (0, false) if the
// target is absent or the end sentinel.
func (t StepTarget) Step() (int, bool) {
	if !t.set || t.val == nil {
		return 0, false
	}
	return *t.val, true
}

// IsZero makes StepTarget usable with the `omitzero` json tag.
func (t StepTarget) IsZero() bool { return !t.set }

func (t *StepTarget) UnmarshalJSON(data []byte) error {
	t.set = true
	if string(data) == "null" {
		t.val = nil
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	t.val = &n
	return nil
}

func (t StepTarget) MarshalJSON() ([]byte, error) {
	if !t.set || t.val == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*t.val)
}

// Branch is a conditional or unconditional jump. Condition
// absent means unconditional jump to NextStep; condition present requires
// ElseStep.
type Branch struct {
	Condition string     `json:"condition,omitempty"`
	NextStep  StepTarget `json:"next_step"`
	ElseStep  StepTarget `json:"else_step,omitempty,omitzero"`
}

// Step is a tagged record over the closed Kind set. Only the
// fields relevant to Operation are populated by a well-formed recipe; which
// fields are required per kind is enforced by validate.go, not by the Go
// type system, mirroring the source document's own duck-typed shape.
type Step struct {
	StepNumber int  `json:"step"`
	Operation  Kind `json:"operation"`

	// QUERY
	Table        string   `json:"table,omitempty"`
	Where        string   `json:"where,omitempty"`
	OutputFields []string `json:"output_fields,omitempty"`
	OnSuccess    *Branch  `json:"on_success,omitempty"`
	OnFailure    *Branch  `json:"on_failure,omitempty"`

	// GENERATE_DML
	DMLType  DMLType           `json:"dml_type,omitempty"`
	Set      map[string]string `json:"set,omitempty"`
	Values   map[string]string `json:"values,omitempty"`
	NextStep StepTarget        `json:"next_step,omitempty,omitzero"`

	// RETURN_SUCCESS / RETURN_ERROR
	Message string `json:"message,omitempty"`
}

// Recipe is an immutable declarative document identified by a unique
// WorkOrderType. FinalSQLTemplate is documentation only — the
// interpreter never reads it.
type Recipe struct {
	WorkOrderType      string `json:"work_order_type"`
	Description        string `json:"description"`
	Steps              []Step `json:"steps"`
	FinalSQLTemplate   string `json:"final_sql_template,omitempty"`
}

// EntryStep returns the lowest-numbered step, the recipe's entry point.
// Callers must ensure Steps is non-empty; the store's load validation
// guarantees this for any Recipe it serves.
func (r *Recipe) EntryStep() int {
	entry := r.Steps[0].StepNumber
	for _, s := range r.Steps[1:] {
		if s.StepNumber < entry {
			entry = s.StepNumber
		}
	}
	return entry
}

// StepByNumber returns the step with the given number, or (Step{}, false).
func (r *Recipe) StepByNumber(n int) (Step, bool) {
	for _, s := range r.Steps {
		if s.StepNumber == n {
			return s, true
		}
	}
	return Step{}, false
}
