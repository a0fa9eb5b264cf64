package recipe

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// ValidationError is one failure from the load pipeline, tagged with the
// phase that raised it.
type ValidationError struct {
	Phase   string `json:"phase"`
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Phase, e.Path, e.Message)
}

func domainErr(path, format string, args ...any) *ValidationError {
	return &ValidationError{Phase: "domain", Path: path, Message: fmt.Sprintf(format, args...)}
}

// DecodeStrict is phase 1: structural decode. Unknown top-level keys abort
// the load of the file.
func DecodeStrict(data []byte) (*Recipe, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var r Recipe
	if err := dec.Decode(&r); err != nil {
		return nil, &ValidationError{Phase: "structural", Path: "", Message: err.Error()}
	}
	return &r, nil
}

// ValidateSemantic is phase 2: validate the decoded document against the
// generated JSON Schema.
func ValidateSemantic(r *Recipe) []*ValidationError {
	data, err := json.Marshal(r)
	if err != nil {
		return []*ValidationError{{Phase: "semantic", Message: fmt.Sprintf("marshal for schema validation: %v", err)}}
	}

	schemaJSON, err := GenerateJSONSchema()
	if err != nil {
		return []*ValidationError{{Phase: "semantic", Message: fmt.Sprintf("generate schema: %v", err)}}
	}

	var schemaDoc any
	if err := json.Unmarshal(schemaJSON, &schemaDoc); err != nil {
		return []*ValidationError{{Phase: "semantic", Message: fmt.Sprintf("unmarshal schema: %v", err)}}
	}

	c := sjsonschema.NewCompiler()
	if err := c.AddResource("recipe.json", schemaDoc); err != nil {
		return []*ValidationError{{Phase: "semantic", Message: fmt.Sprintf("add schema resource: %v", err)}}
	}
	sch, err := c.Compile("recipe.json")
	if err != nil {
		return []*ValidationError{{Phase: "semantic", Message: fmt.Sprintf("compile schema: %v", err)}}
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return []*ValidationError{{Phase: "semantic", Message: fmt.Sprintf("unmarshal document: %v", err)}}
	}

	if err := sch.Validate(doc); err != nil {
		var errs []*ValidationError
		if ve, ok := err.(*sjsonschema.ValidationError); ok {
			for _, cause := range flattenValidation(ve) {
				errs = append(errs, &ValidationError{
					Phase:   "semantic",
					Path:    strings.Join(cause.InstanceLocation, "/"),
					Message: fmt.Sprintf("%v", cause.ErrorKind),
				})
			}
		} else {
			errs = append(errs, &ValidationError{Phase: "semantic", Message: err.Error()})
		}
		return errs
	}
	return nil
}

func flattenValidation(ve *sjsonschema.ValidationError) []*sjsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*sjsonschema.ValidationError{ve}
	}
	var flat []*sjsonschema.ValidationError
	for _, cause := range ve.Causes {
		flat = append(flat, flattenValidation(cause)...)
	}
	return flat
}

// ValidateDomain is phase 3: the hand-coded rules the schema cannot
// express — step-number uniqueness, per-kind required fields, and branch
// shape.
func ValidateDomain(r *Recipe) []*ValidationError {
	var errs []*ValidationError

	if strings.TrimSpace(r.WorkOrderType) == "" {
		errs = append(errs, domainErr("work_order_type", "work_order_type is required and must be non-empty"))
	}
	if len(r.Steps) == 0 {
		errs = append(errs, domainErr("steps", "a recipe must contain at least one step"))
		return errs // nothing else to check without steps
	}

	stepNumbers := make(map[int]bool, len(r.Steps))
	for i, s := range r.Steps {
		path := fmt.Sprintf("steps[%d]", i)
		if stepNumbers[s.StepNumber] {
			errs = append(errs, domainErr(path+".step", "duplicate step number %d", s.StepNumber))
		}
		stepNumbers[s.StepNumber] = true

		switch s.Operation {
		case KindQuery:
			if s.Table == "" {
				errs = append(errs, domainErr(path+".table", "QUERY step %d requires table", s.StepNumber))
			}
			if s.Where == "" {
				errs = append(errs, domainErr(path+".where", "QUERY step %d requires where", s.StepNumber))
			}
			if len(s.OutputFields) == 0 {
				errs = append(errs, domainErr(path+".output_fields", "QUERY step %d requires at least one output field", s.StepNumber))
			}
			if s.OnSuccess != nil {
				errs = append(errs, validateBranch(path+".on_success", s.OnSuccess)...)
			}
			if s.OnFailure != nil {
				errs = append(errs, validateBranch(path+".on_failure", s.OnFailure)...)
			}

		case KindGenerateDML:
			switch s.DMLType {
			case DMLUpdate:
				if len(s.Set) == 0 {
					errs = append(errs, domainErr(path+".set", "UPDATE step %d requires a non-empty set map", s.StepNumber))
				}
				if s.Where == "" {
					errs = append(errs, domainErr(path+".where", "UPDATE step %d requires where", s.StepNumber))
				}
			case DMLInsert:
				if len(s.Values) == 0 {
					errs = append(errs, domainErr(path+".values", "INSERT step %d requires a non-empty values map", s.StepNumber))
				}
			case DMLDelete:
				if s.Where == "" {
					errs = append(errs, domainErr(path+".where", "DELETE step %d requires where", s.StepNumber))
				}
			default:
				errs = append(errs, domainErr(path+".dml_type", "GENERATE_DML step %d has unrecognized type %q", s.StepNumber, s.DMLType))
			}
			if s.Table == "" {
				errs = append(errs, domainErr(path+".table", "GENERATE_DML step %d requires table", s.StepNumber))
			}

		case KindReturnSuccess:
			// message is optional

		case KindReturnError:
			if s.Message == "" {
				errs = append(errs, domainErr(path+".message", "RETURN_ERROR step %d requires message", s.StepNumber))
			}

		default:
			errs = append(errs, domainErr(path+".operation", "step %d has unrecognized operation %q", s.StepNumber, s.Operation))
		}
	}

	for i, s := range r.Steps {
		path := fmt.Sprintf("steps[%d]", i)
		if s.Operation == KindGenerateDML && s.NextStep.Present() {
			if n, ok := s.NextStep.Step(); ok && !stepNumbers[n] {
				errs = append(errs, domainErr(path+".next_step", "step %d's next_step %d does not exist", s.StepNumber, n))
			}
		}
	}

	return errs
}

func validateBranch(path string, b *Branch) []*ValidationError {
	var errs []*ValidationError
	if !b.NextStep.Present() {
		errs = append(errs, domainErr(path+".next_step", "branch requires next_step"))
	}
	if b.Condition != "" && !b.ElseStep.Present() {
		errs = append(errs, domainErr(path+".else_step", "branch with a condition requires else_step"))
	}
	return errs
}

// validateJumpTargets checks every next_step/else_step reference in the
// recipe resolves to an existing step number or the "end" sentinel. It runs
// after per-step domain validation so step numbers are known to be unique.
func validateJumpTargets(r *Recipe) []*ValidationError {
	var errs []*ValidationError
	known := make(map[int]bool, len(r.Steps))
	for _, s := range r.Steps {
		known[s.StepNumber] = true
	}
	check := func(path string, t StepTarget) {
		if n, ok := t.Step(); ok && !known[n] {
			errs = append(errs, domainErr(path, "target step %d does not exist", n))
		}
	}
	for i, s := range r.Steps {
		path := fmt.Sprintf("steps[%d]", i)
		if s.OnSuccess != nil {
			check(path+".on_success.next_step", s.OnSuccess.NextStep)
			check(path+".on_success.else_step", s.OnSuccess.ElseStep)
		}
		if s.OnFailure != nil {
			check(path+".on_failure.next_step", s.OnFailure.NextStep)
			check(path+".on_failure.else_step", s.OnFailure.ElseStep)
		}
		if s.Operation == KindGenerateDML {
			check(path+".next_step", s.NextStep)
		}
	}
	return errs
}
