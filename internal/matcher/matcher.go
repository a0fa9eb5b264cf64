// Package matcher resolves a free-text work order against a recipe catalog
// by asking an LLM to pick the best recipe and extract its parameters. The
// LLM client itself is out of scope: this package only defines the narrow
// interface it consumes and the strict-parsing algorithm around it.
package matcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/vantos-systems/workorder-engine/internal/recipe"
)

// ConfidenceThreshold is the cutoff below which a syntactically valid match
// is still reported as Unmatched.
const ConfidenceThreshold = 0.7

var (
	ErrMalformedResponse = errors.New("llm response is not valid JSON matching the expected shape")
	ErrIndexOutOfRange   = errors.New("matched_index is outside the catalog range")
	ErrConfidenceRange   = errors.New("confidence is outside [0,1]")
)

// Error wraps any matcher-side failure. A response that fails parsing or a
// range check satisfies errors.Is against one of the sentinels above; a
// failed LLM call wraps the client's own error instead.
type Error struct {
	Reason string
	Err    error
}

func (e *Error) Error() string { return e.Reason }
func (e *Error) Unwrap() error { return e.Err }

func newError(err error, format string, args ...any) *Error {
	return &Error{Reason: fmt.Sprintf(format, args...), Err: err}
}

// LLMClient is the narrow capability the matcher consumes. The
// core parses and validates its response; the client itself is an external
// collaborator.
type LLMClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Status is the outcome of a match attempt.
type Status int

const (
	StatusMatched Status = iota
	StatusUnmatched
)

// Result is the matcher's output: a chosen recipe and its extracted
// parameters, or an unmatched verdict.
type Result struct {
	Status Status
	Recipe *recipe.Recipe
	Params map[string]any
}

type matchResponse struct {
	MatchedIndex int     `json:"matched_index"`
	Confidence   float64 `json:"confidence"`
	Reasoning    string  `json:"reasoning"`
}

// Match asks llm to choose one recipe from catalog for userText and, if
// confident enough, to extract that recipe's parameters from userText. The
// catalog slice's order defines the 1-based ordinal the prompt presents to
// the model and that matched_index is validated against.
func Match(ctx context.Context, userText string, catalog []*recipe.Recipe, llm LLMClient) (Result, error) {
	if len(catalog) == 0 {
		return Result{Status: StatusUnmatched}, nil
	}

	raw, err := llm.Complete(ctx, buildMatchPrompt(userText, catalog))
	if err != nil {
		return Result{}, newError(err, "llm match call failed: %v", err)
	}

	var resp matchResponse
	if err := strictJSON(raw, &resp); err != nil {
		return Result{}, newError(ErrMalformedResponse, "match response: %v", err)
	}
	if resp.MatchedIndex < 1 || resp.MatchedIndex > len(catalog) {
		return Result{}, newError(ErrIndexOutOfRange, "matched_index %d out of range [1,%d]", resp.MatchedIndex, len(catalog))
	}
	if resp.Confidence < 0 || resp.Confidence > 1 {
		return Result{}, newError(ErrConfidenceRange, "confidence %v out of range [0,1]", resp.Confidence)
	}
	if resp.Confidence < ConfidenceThreshold {
		return Result{Status: StatusUnmatched}, nil
	}

	chosen := catalog[resp.MatchedIndex-1]

	paramsRaw, err := llm.Complete(ctx, buildParamPrompt(userText, chosen))
	if err != nil {
		return Result{}, newError(err, "llm parameter extraction call failed: %v", err)
	}
	var params map[string]any
	if err := strictJSON(paramsRaw, &params); err != nil {
		return Result{}, newError(ErrMalformedResponse, "parameter response: %v", err)
	}

	return Result{Status: StatusMatched, Recipe: chosen, Params: params}, nil
}

func buildMatchPrompt(userText string, catalog []*recipe.Recipe) string {
	var b strings.Builder
	b.WriteString("You are routing a work order to exactly one recipe from the following catalog.\n\n")
	for i, r := range catalog {
		fmt.Fprintf(&b, "%d. %s: %s\n", i+1, r.WorkOrderType, r.Description)
	}
	b.WriteString("\nWork order text:\n")
	b.WriteString(userText)
	b.WriteString("\n\nReply with a single JSON object of the form ")
	b.WriteString(`{"matched_index": <1-based integer>, "confidence": <float in [0,1]>, "reasoning": "<short explanation>"}`)
	b.WriteString(" and nothing else.")
	return b.String()
}

func buildParamPrompt(userText string, chosen *recipe.Recipe) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Extract the named parameters required by the recipe %q from the work order text.\n", chosen.WorkOrderType)
	b.WriteString("Recipe description:\n")
	b.WriteString(chosen.Description)
	b.WriteString("\n\nWork order text:\n")
	b.WriteString(userText)
	b.WriteString("\n\nReply with a single JSON object mapping each parameter name to its extracted value, and nothing else.")
	return b.String()
}

// strictJSON decodes exactly one JSON value from s, rejecting trailing
// garbage — the matcher never tolerates a model wrapping its answer in
// prose around the JSON object.
func strictJSON(s string, v any) error {
	dec := json.NewDecoder(strings.NewReader(strings.TrimSpace(s)))
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return fmt.Errorf("trailing content after JSON value")
	}
	return nil
}
