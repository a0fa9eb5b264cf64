package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vantos-systems/workorder-engine/internal/config"
	"github.com/vantos-systems/workorder-engine/internal/enginetest"
	"github.com/vantos-systems/workorder-engine/internal/interpreter"
)

const telcoRecipeJSON = `{
  "work_order_type": "update_telco_customer",
  "description": "change a customer's monthly charge",
  "steps": [
    {"step": 1, "operation": "QUERY", "table": "telco_customer", "where": "customerID = {customerID}", "output_fields": ["customerID"]},
    {"step": 2, "operation": "GENERATE_DML", "dml_type": "UPDATE", "table": "telco_customer", "set": {"MonthlyCharges": "{new_price}"}, "where": "customerID = {customerID}"}
  ]
}`

func newTestEngine(t *testing.T, llm *enginetest.FakeLLM, probe *enginetest.FakeProbe) *Engine {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "update.json"), []byte(telcoRecipeJSON), 0o644))

	cfg := config.Default()
	cfg.Catalog.Dir = dir
	cfg.Pool.Workers = 2
	cfg.Pool.QueueDepth = 4

	e := New(cfg, llm, probe, enginetest.FixedClock{}, zap.NewNop())
	_, err := e.ReloadCatalog()
	require.NoError(t, err)
	return e
}

func Test_Engine_Run_ProducesArtifact(t *testing.T) {
	t.Parallel()
	llm := &enginetest.FakeLLM{Responses: []string{
		enginetest.MatchResponse(1, 0.9, "price change"),
		enginetest.ParamsResponse(map[string]any{"customerID": "0002-ORFBO", "new_price": 80}),
	}}
	probe := &enginetest.FakeProbe{Responses: map[string]interpreter.QueryResult{
		"SELECT customerID FROM telco_customer WHERE customerID = '0002-ORFBO'": enginetest.OneRow([]string{"customerID"}, "0002-ORFBO"),
	}}
	e := newTestEngine(t, llm, probe)

	res, err := e.Run(context.Background(), "task-1", "bump 0002-ORFBO to 80", nil)
	require.NoError(t, err)
	require.Equal(t, ResultArtifact, res.Kind)
	assert.Equal(t, []string{"telco_customer"}, res.Artifact.AffectedTables)
}

func Test_Engine_Run_NoMatch(t *testing.T) {
	t.Parallel()
	llm := &enginetest.FakeLLM{Responses: []string{
		enginetest.MatchResponse(1, 0.2, "not confident"),
	}}
	e := newTestEngine(t, llm, &enginetest.FakeProbe{})

	res, err := e.Run(context.Background(), "task-2", "do something unrelated", nil)
	require.NoError(t, err)
	assert.Equal(t, ResultNoMatch, res.Kind)
}

func Test_Engine_Run_MatchErrorRetriesOnceThenSurfaces(t *testing.T) {
	t.Parallel()
	llm := &enginetest.FakeLLM{Responses: []string{
		"not json at all",
		"still not json",
	}}
	e := newTestEngine(t, llm, &enginetest.FakeProbe{})

	res, err := e.Run(context.Background(), "task-3", "text", nil)
	require.NoError(t, err)
	assert.Equal(t, ResultEngineError, res.Kind)
	assert.Equal(t, interpreter.ErrorKindMatchError, res.ErrorKind)
	assert.Equal(t, 2, llm.Calls())
}

func Test_Engine_Run_MatchErrorRecoversOnRetry(t *testing.T) {
	t.Parallel()
	llm := &enginetest.FakeLLM{Responses: []string{
		"not json at all",
		enginetest.MatchResponse(1, 0.9, "retried ok"),
		enginetest.ParamsResponse(map[string]any{"customerID": "0002-ORFBO", "new_price": 80}),
	}}
	probe := &enginetest.FakeProbe{Responses: map[string]interpreter.QueryResult{
		"SELECT customerID FROM telco_customer WHERE customerID = '0002-ORFBO'": enginetest.OneRow([]string{"customerID"}, "0002-ORFBO"),
	}}
	e := newTestEngine(t, llm, probe)

	res, err := e.Run(context.Background(), "task-4", "text", nil)
	require.NoError(t, err)
	assert.Equal(t, ResultArtifact, res.Kind)
}

func Test_Engine_ReloadCatalog_ReportsFileErrors(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte(`{ not json`), 0o644))

	cfg := config.Default()
	cfg.Catalog.Dir = dir
	e := New(cfg, &enginetest.FakeLLM{}, &enginetest.FakeProbe{}, enginetest.FixedClock{}, zap.NewNop())

	status, err := e.ReloadCatalog()
	require.NoError(t, err)
	assert.Equal(t, 0, status.Loaded)
	require.Len(t, status.Errors, 1)
	assert.Equal(t, "bad.json", status.Errors[0].File)
}
