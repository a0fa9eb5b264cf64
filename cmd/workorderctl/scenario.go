package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/vantos-systems/workorder-engine/internal/enginetest"
	"github.com/vantos-systems/workorder-engine/internal/interpreter"
)

// probeResponse is the JSON shape for one scripted FakeProbe answer.
type probeResponse struct {
	Columns  []string `json:"columns"`
	Rows     [][]any  `json:"rows"`
	RowCount int      `json:"row_count"`
}

func (p probeResponse) toQueryResult() interpreter.QueryResult {
	return interpreter.QueryResult{Columns: p.Columns, Rows: p.Rows, RowCount: p.RowCount}
}

// scenario scripts the external interfaces for `run`'s dry-run mode:
// a sequence of raw LLM response bodies (matcher's first call, then its
// parameter-extraction call) and a keyed table of probe responses.
type scenario struct {
	MatchResponses []string                 `json:"match_responses"`
	Probe          map[string]probeResponse `json:"probe"`
	ProbeDefault   *probeResponse           `json:"probe_default"`
	UpstreamParams map[string]any           `json:"upstream_params"`
}

func loadScenario(path string) (*scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario %s: %w", path, err)
	}
	var s scenario
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("parsing scenario %s: %w", path, err)
	}
	return &s, nil
}

func (s *scenario) fakeLLM() *enginetest.FakeLLM {
	return &enginetest.FakeLLM{Responses: s.MatchResponses}
}

func (s *scenario) fakeProbe() *enginetest.FakeProbe {
	responses := make(map[string]interpreter.QueryResult, len(s.Probe))
	for sql, r := range s.Probe {
		responses[sql] = r.toQueryResult()
	}
	probe := &enginetest.FakeProbe{Responses: responses}
	if s.ProbeDefault != nil {
		qr := s.ProbeDefault.toQueryResult()
		probe.Default = &qr
	}
	return probe
}
