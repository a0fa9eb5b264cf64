package interpreter

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/vantos-systems/workorder-engine/internal/eval"
	"github.com/vantos-systems/workorder-engine/internal/recipe"
	"github.com/vantos-systems/workorder-engine/internal/render"
)

// MaxIterations is the loop-protection cap.
const MaxIterations = 100

// Run executes r's step list against a fresh context seeded from
// upstreamParams and matcherParams (matcher wins on key collision), issuing
// probe queries through probe and timestamping trace entries via clock.
// probeTimeout bounds each individual probe call.
func Run(
	ctx context.Context,
	r *recipe.Recipe,
	matcherParams map[string]any,
	upstreamParams map[string]any,
	probe Probe,
	clock Clock,
	probeTimeout time.Duration,
) Outcome {
	c := NewContext()
	seedOrdered(c, upstreamParams)
	seedOrdered(c, matcherParams)

	var trace []TraceEntry
	var dml []DmlRecord

	current := r.EntryStep()
	haveCurrent := true
	iterations := 0

	for {
		if err := ctx.Err(); err != nil {
			return Outcome{
				Kind:      OutcomeEngineError,
				ErrorKind: ErrorKindCancelled,
				Message:   "run cancelled before next step",
				Trace:     trace,
			}
		}

		if !haveCurrent {
			if len(dml) > 0 {
				return Outcome{
					Kind:            OutcomeCompleted,
					DML:             dml,
					ContextSnapshot: c.Snapshot(),
					Trace:           trace,
				}
			}
			return Outcome{
				Kind:      OutcomeEngineError,
				ErrorKind: ErrorKindNoDmlProduced,
				Message:   "run terminated with an empty accumulator and no prior user error",
				Trace:     trace,
			}
		}

		iterations++
		if iterations > MaxIterations {
			return Outcome{
				Kind:      OutcomeEngineError,
				ErrorKind: ErrorKindIterationLimit,
				Message:   fmt.Sprintf("exceeded the %d-step iteration cap", MaxIterations),
				Trace:     trace,
			}
		}

		step, ok := r.StepByNumber(current)
		if !ok {
			return Outcome{
				Kind:       OutcomeEngineError,
				ErrorKind:  ErrorKindBadJump,
				Message:    fmt.Sprintf("step %d does not exist", current),
				StepNumber: current,
				Trace:      trace,
			}
		}

		switch step.Operation {
		case recipe.KindQuery:
			next, have, entry, failure := runQueryStep(ctx, r, step, c, probe, probeTimeout, clock)
			trace = append(trace, entry)
			if failure != nil {
				failure.Trace = trace
				return *failure
			}
			current, haveCurrent = next, have

		case recipe.KindGenerateDML:
			next, have, entry, record, failure := runGenerateDMLStep(r, step, c, clock)
			trace = append(trace, entry)
			if failure != nil {
				failure.Trace = trace
				return *failure
			}
			dml = append(dml, record)
			current, haveCurrent = next, have

		case recipe.KindReturnSuccess:
			msg, err := renderOptionalMessage(step.Message, c)
			if err != nil {
				trace = append(trace, TraceEntry{step.StepNumber, step.Operation, "render failed: " + err.Error(), clock.Now()})
				return Outcome{
					Kind:       OutcomeEngineError,
					ErrorKind:  ErrorKindRenderError,
					Message:    err.Error(),
					StepNumber: step.StepNumber,
					Trace:      trace,
				}
			}
			trace = append(trace, TraceEntry{step.StepNumber, step.Operation, "RETURN_SUCCESS: " + msg, clock.Now()})
			return Outcome{
				Kind:            OutcomeCompleted,
				DML:             dml,
				ContextSnapshot: c.Snapshot(),
				Trace:           trace,
			}

		case recipe.KindReturnError:
			msg, err := render.RenderTolerant(step.Message, c)
			if err != nil {
				trace = append(trace, TraceEntry{step.StepNumber, step.Operation, "render failed: " + err.Error(), clock.Now()})
				return Outcome{
					Kind:       OutcomeEngineError,
					ErrorKind:  ErrorKindRenderError,
					Message:    err.Error(),
					StepNumber: step.StepNumber,
					Trace:      trace,
				}
			}
			trace = append(trace, TraceEntry{step.StepNumber, step.Operation, "RETURN_ERROR: " + msg, clock.Now()})
			return Outcome{
				Kind:    OutcomeUserError,
				Message: msg,
				Trace:   trace,
			}

		default:
			return Outcome{
				Kind:       OutcomeEngineError,
				ErrorKind:  ErrorKindBadJump,
				Message:    fmt.Sprintf("step %d has unrecognized operation %q", step.StepNumber, step.Operation),
				StepNumber: step.StepNumber,
				Trace:      trace,
			}
		}
	}
}

func renderOptionalMessage(tmpl string, c *Context) (string, error) {
	if tmpl == "" {
		return "", nil
	}
	return render.Render(tmpl, c, render.ModeRaw)
}

// runQueryStep executes one QUERY step.
func runQueryStep(
	ctx context.Context,
	r *recipe.Recipe,
	step recipe.Step,
	c *Context,
	probe Probe,
	timeout time.Duration,
	clock Clock,
) (next int, have bool, entry TraceEntry, failure *Outcome) {
	sqlText, err := buildQuerySQL(step, c)
	if err != nil {
		return 0, false, TraceEntry{step.StepNumber, step.Operation, "render failed: " + err.Error(), clock.Now()},
			&Outcome{Kind: OutcomeEngineError, ErrorKind: ErrorKindRenderError, Message: err.Error(), StepNumber: step.StepNumber}
	}

	qctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	result, probeErr := probe.Query(qctx, sqlText)

	if probeErr != nil || result.RowCount == 0 {
		reason := "query returned no rows"
		if probeErr != nil {
			reason = probeErr.Error()
		}
		if step.OnFailure != nil {
			nextStep, haveNext, berr := resolveBranch(*step.OnFailure, c)
			if berr != nil {
				return 0, false, TraceEntry{step.StepNumber, step.Operation, "on_failure condition failed: " + berr.Error(), clock.Now()},
					&Outcome{Kind: OutcomeEngineError, ErrorKind: ErrorKindEvalError, Message: berr.Error(), StepNumber: step.StepNumber}
			}
			return nextStep, haveNext, TraceEntry{step.StepNumber, step.Operation, "query failed (" + reason + "), took on_failure branch", clock.Now()}, nil
		}
		return 0, false, TraceEntry{step.StepNumber, step.Operation, "query failed: " + reason, clock.Now()},
			&Outcome{Kind: OutcomeEngineError, ErrorKind: ErrorKindQueryFailed, Message: reason, StepNumber: step.StepNumber}
	}

	decision := fmt.Sprintf("row_count=%d", result.RowCount)
	if result.RowCount > 1 {
		decision += " (ambiguous: took first row)"
	}

	row := result.Rows[0]
	for _, field := range step.OutputFields {
		idx := columnIndex(result.Columns, field)
		if idx >= 0 {
			c.Set(field, row[idx])
		} else {
			c.Set(field, nil)
		}
	}

	if step.OnSuccess != nil {
		nextStep, haveNext, berr := resolveBranch(*step.OnSuccess, c)
		if berr != nil {
			return 0, false, TraceEntry{step.StepNumber, step.Operation, decision + "; on_success condition failed: " + berr.Error(), clock.Now()},
				&Outcome{Kind: OutcomeEngineError, ErrorKind: ErrorKindEvalError, Message: berr.Error(), StepNumber: step.StepNumber}
		}
		return nextStep, haveNext, TraceEntry{step.StepNumber, step.Operation, decision, clock.Now()}, nil
	}

	nextStep, haveNext := fallthroughStep(r, step.StepNumber)
	return nextStep, haveNext, TraceEntry{step.StepNumber, step.Operation, decision, clock.Now()}, nil
}

func buildQuerySQL(step recipe.Step, c *Context) (string, error) {
	table, err := render.Identifier(step.Table)
	if err != nil {
		return "", fmt.Errorf("table: %w", err)
	}
	fields := make([]string, len(step.OutputFields))
	for i, f := range step.OutputFields {
		id, err := render.Identifier(f)
		if err != nil {
			return "", fmt.Errorf("output_fields[%d]: %w", i, err)
		}
		fields[i] = id
	}
	where, err := render.Render(step.Where, c, render.ModeSQLLiteral)
	if err != nil {
		return "", fmt.Errorf("where: %w", err)
	}
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s", strings.Join(fields, ", "), table, where), nil
}

func columnIndex(columns []string, name string) int {
	for i, c := range columns {
		if c == name {
			return i
		}
	}
	return -1
}

// runGenerateDMLStep executes one GENERATE_DML step.
func runGenerateDMLStep(
	r *recipe.Recipe,
	step recipe.Step,
	c *Context,
	clock Clock,
) (next int, have bool, entry TraceEntry, record DmlRecord, failure *Outcome) {
	comboTemplate, table, err := buildDMLTemplate(step)
	if err != nil {
		return 0, false, TraceEntry{step.StepNumber, step.Operation, "render failed: " + err.Error(), clock.Now()}, DmlRecord{},
			&Outcome{Kind: OutcomeEngineError, ErrorKind: ErrorKindRenderError, Message: err.Error(), StepNumber: step.StepNumber}
	}

	renderedSQL, err := render.Render(comboTemplate, c, render.ModeSQLLiteral)
	if err != nil {
		return 0, false, TraceEntry{step.StepNumber, step.Operation, "render failed: " + err.Error(), clock.Now()}, DmlRecord{},
			&Outcome{Kind: OutcomeEngineError, ErrorKind: ErrorKindRenderError, Message: err.Error(), StepNumber: step.StepNumber}
	}
	templateSQL, params, err := render.RenderParameterized(comboTemplate, c)
	if err != nil {
		return 0, false, TraceEntry{step.StepNumber, step.Operation, "render failed: " + err.Error(), clock.Now()}, DmlRecord{},
			&Outcome{Kind: OutcomeEngineError, ErrorKind: ErrorKindRenderError, Message: err.Error(), StepNumber: step.StepNumber}
	}

	var whereRendered string
	if step.DMLType != recipe.DMLInsert {
		whereRendered, err = render.Render(step.Where, c, render.ModeSQLLiteral)
		if err != nil {
			return 0, false, TraceEntry{step.StepNumber, step.Operation, "render failed: " + err.Error(), clock.Now()}, DmlRecord{},
				&Outcome{Kind: OutcomeEngineError, ErrorKind: ErrorKindRenderError, Message: err.Error(), StepNumber: step.StepNumber}
		}
	}

	record = DmlRecord{
		Kind:        step.DMLType,
		Table:       table,
		RenderedSQL: renderedSQL,
		TemplateSQL: templateSQL,
		Parameters:  params,
		Description: fmt.Sprintf("%s %s (step %d)", step.DMLType, table, step.StepNumber),
		Where:       whereRendered,
	}

	if step.NextStep.Present() {
		nextStep, haveNext := step.NextStep.Step()
		return nextStep, haveNext, TraceEntry{step.StepNumber, step.Operation, "emitted " + string(step.DMLType), clock.Now()}, record, nil
	}
	nextStep, haveNext := fallthroughStep(r, step.StepNumber)
	return nextStep, haveNext, TraceEntry{step.StepNumber, step.Operation, "emitted " + string(step.DMLType), clock.Now()}, record, nil
}

func buildDMLTemplate(step recipe.Step) (tmpl string, table string, err error) {
	table, err = render.Identifier(step.Table)
	if err != nil {
		return "", "", fmt.Errorf("table: %w", err)
	}

	switch step.DMLType {
	case recipe.DMLUpdate:
		cols := sortedKeys(step.Set)
		parts := make([]string, len(cols))
		for i, col := range cols {
			id, err := render.Identifier(col)
			if err != nil {
				return "", "", fmt.Errorf("set[%s]: %w", col, err)
			}
			parts[i] = id + " = " + step.Set[col]
		}
		return fmt.Sprintf("UPDATE %s SET %s WHERE %s", table, strings.Join(parts, ", "), step.Where), table, nil

	case recipe.DMLInsert:
		cols := sortedKeys(step.Values)
		names := make([]string, len(cols))
		vals := make([]string, len(cols))
		for i, col := range cols {
			id, err := render.Identifier(col)
			if err != nil {
				return "", "", fmt.Errorf("values[%s]: %w", col, err)
			}
			names[i] = id
			vals[i] = step.Values[col]
		}
		return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(names, ", "), strings.Join(vals, ", ")), table, nil

	case recipe.DMLDelete:
		return fmt.Sprintf("DELETE FROM %s WHERE %s", table, step.Where), table, nil

	default:
		return "", "", fmt.Errorf("unrecognized GENERATE_DML type %q", step.DMLType)
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// fallthroughStep is the implicit "step+1, else terminate" transition used
// when a step has no explicit next/on_success.
func fallthroughStep(r *recipe.Recipe, stepNumber int) (int, bool) {
	if _, ok := r.StepByNumber(stepNumber + 1); ok {
		return stepNumber + 1, true
	}
	return 0, false
}

// resolveBranch evaluates b.Condition (if present) and returns the target
// step, or the unconditional NextStep when no condition is set.
func resolveBranch(b recipe.Branch, c *Context) (int, bool, error) {
	if b.Condition == "" {
		n, have := b.NextStep.Step()
		return n, have, nil
	}
	truthy, err := eval.Eval(b.Condition, c)
	if err != nil {
		return 0, false, err
	}
	if truthy {
		n, have := b.NextStep.Step()
		return n, have, nil
	}
	n, have := b.ElseStep.Step()
	return n, have, nil
}
