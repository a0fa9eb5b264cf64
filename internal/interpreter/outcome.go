package interpreter

import (
	"time"

	"github.com/vantos-systems/workorder-engine/internal/recipe"
	"github.com/vantos-systems/workorder-engine/internal/render"
)

// TraceEntry is one step's (step_number, operation_kind, decision) record,
// in execution order.
type TraceEntry struct {
	StepNumber int         `json:"step_number"`
	Operation  recipe.Kind `json:"operation"`
	Decision   string      `json:"decision"`
	At         time.Time   `json:"at"`
}

// DmlRecord is one rendered change statement, in both literal and
// parameterized form.
type DmlRecord struct {
	Kind        recipe.DMLType `json:"kind"`
	Table       string         `json:"table"`
	RenderedSQL string         `json:"rendered_sql"`
	TemplateSQL string         `json:"template_sql"`
	Parameters  []render.Param `json:"parameters"`
	Description string         `json:"description"`
	// Where is the rendered WHERE clause (empty for INSERT), kept
	// separately from RenderedSQL so dml.Classify can inspect it without
	// re-parsing the assembled statement.
	Where string `json:"where,omitempty"`
}

// OutcomeKind tags a RunOutcome.
type OutcomeKind int

const (
	OutcomeCompleted OutcomeKind = iota
	OutcomeUserError
	OutcomeEngineError
)

// EngineErrorKind enumerates the fatal engine failures.
type EngineErrorKind string

const (
	ErrorKindQueryFailed    EngineErrorKind = "QueryFailed"
	ErrorKindEvalError      EngineErrorKind = "EvalError"
	ErrorKindRenderError    EngineErrorKind = "RenderError"
	ErrorKindBadJump        EngineErrorKind = "BadJump"
	ErrorKindIterationLimit EngineErrorKind = "IterationLimit"
	ErrorKindNoDmlProduced  EngineErrorKind = "NoDmlProduced"
	ErrorKindCancelled      EngineErrorKind = "Cancelled"
	// ErrorKindMatchError tags a failed match attempt (a malformed matcher
	// LLM response or a failed LLM call) — raised above the interpreter, at
	// match time, but shares the engine error taxonomy so callers handle it
	// uniformly.
	ErrorKindMatchError EngineErrorKind = "MatchError"
)

// Outcome is the tagged result of one run. Which fields are
// meaningful depends on Kind: Completed carries DML/ContextSnapshot,
// UserError and EngineError carry Message (and EngineError carries
// ErrorKind and, where applicable, StepNumber). Trace is populated on every
// outcome.
type Outcome struct {
	Kind            OutcomeKind
	DML             []DmlRecord
	ContextSnapshot []KV
	Trace           []TraceEntry
	Message         string
	ErrorKind       EngineErrorKind
	StepNumber      int
}
