// Package enginetest provides in-memory fakes for the engine's pluggable
// capabilities — Probe, matcher.LLMClient, and interpreter.Clock — so
// callers can exercise the interpreter and the engine wiring without a real
// database or LLM.
package enginetest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vantos-systems/workorder-engine/internal/interpreter"
)

// FakeProbe is a scripted interpreter.Probe. Responses are matched against
// the exact rendered SQL text queries are keyed by; an unmatched query
// returns ErrNoResponse unless Default is set.
type FakeProbe struct {
	Responses map[string]interpreter.QueryResult
	Errors    map[string]error
	Default   *interpreter.QueryResult
	Queries   []string
}

// ErrNoResponse is returned for a query FakeProbe was not scripted to answer.
var ErrNoResponse = fmt.Errorf("enginetest: no scripted response for query")

func (f *FakeProbe) Query(_ context.Context, sql string) (interpreter.QueryResult, error) {
	f.Queries = append(f.Queries, sql)
	if err, ok := f.Errors[sql]; ok {
		return interpreter.QueryResult{}, err
	}
	if res, ok := f.Responses[sql]; ok {
		return res, nil
	}
	if f.Default != nil {
		return *f.Default, nil
	}
	return interpreter.QueryResult{}, ErrNoResponse
}

// OneRow builds the single-row QueryResult shape QUERY steps expect, with
// columns in the order given by names.
func OneRow(names []string, values ...any) interpreter.QueryResult {
	return interpreter.QueryResult{
		Columns:  names,
		Rows:     [][]any{values},
		RowCount: 1,
	}
}

// NoRows builds the zero-row QueryResult shape.
func NoRows(names []string) interpreter.QueryResult {
	return interpreter.QueryResult{Columns: names, RowCount: 0}
}

// FixedClock is an interpreter.Clock that always reports the same instant,
// for deterministic trace timestamps in tests.
type FixedClock struct {
	At time.Time
}

func (c FixedClock) Now() time.Time { return c.At }

// FakeLLM is a scripted matcher.LLMClient. Responses are served in call
// order; once exhausted, Complete returns ErrExhausted.
type FakeLLM struct {
	Responses []string
	Errs      []error
	calls     int
}

// ErrExhausted is returned once FakeLLM.Responses is exhausted.
var ErrExhausted = fmt.Errorf("enginetest: no more scripted LLM responses")

// Calls reports how many times Complete has been invoked.
func (f *FakeLLM) Calls() int { return f.calls }

func (f *FakeLLM) Complete(_ context.Context, _ string) (string, error) {
	idx := f.calls
	f.calls++
	if idx < len(f.Errs) && f.Errs[idx] != nil {
		return "", f.Errs[idx]
	}
	if idx >= len(f.Responses) {
		return "", ErrExhausted
	}
	return f.Responses[idx], nil
}

// MatchResponse renders the matcher's expected {matched_index, confidence,
// reasoning} JSON shape for use as a FakeLLM.Responses entry.
func MatchResponse(index int, confidence float64, reasoning string) string {
	data, _ := json.Marshal(struct {
		MatchedIndex int     `json:"matched_index"`
		Confidence   float64 `json:"confidence"`
		Reasoning    string  `json:"reasoning"`
	}{index, confidence, reasoning})
	return string(data)
}

// ParamsResponse renders a parameter-extraction JSON object for use as a
// FakeLLM.Responses entry.
func ParamsResponse(params map[string]any) string {
	data, _ := json.Marshal(params)
	return string(data)
}
