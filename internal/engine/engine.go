// Package engine wires the recipe store, matcher, step interpreter, and DML
// assembly into the top-level Run/ReloadCatalog operations, under a bounded
// worker pool.
package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/vantos-systems/workorder-engine/internal/config"
	"github.com/vantos-systems/workorder-engine/internal/dml"
	"github.com/vantos-systems/workorder-engine/internal/interpreter"
	"github.com/vantos-systems/workorder-engine/internal/matcher"
	"github.com/vantos-systems/workorder-engine/internal/recipe"
)

// ResultKind tags the outcome of one Engine.Run call.
type ResultKind int

const (
	// ResultArtifact: the recipe completed and produced a DML artifact.
	ResultArtifact ResultKind = iota
	// ResultNoMatch: the matcher returned Unmatched or below-threshold
	// confidence. Surface to the caller; do not retry.
	ResultNoMatch
	// ResultUserError: the recipe's RETURN_ERROR step fired.
	ResultUserError
	// ResultEngineError: a fatal, non-user-facing failure.
	ResultEngineError
)

// Result is the tagged return of Engine.Run.
type Result struct {
	Kind      ResultKind
	Artifact  dml.Artifact
	Message   string
	ErrorKind interpreter.EngineErrorKind
	Trace     []interpreter.TraceEntry
}

// Engine is the top-level mutation engine: recipe catalog, matcher, and
// interpreter wired together and run under a bounded worker pool.
type Engine struct {
	store  *recipe.Store
	pool   *Pool
	llm    matcher.LLMClient
	probe  interpreter.Probe
	clock  interpreter.Clock
	logger *zap.Logger
	cfg    *config.Config
}

// New builds an Engine. llm and probe are the caller-supplied pluggable
// capabilities; clock defaults to interpreter.SystemClock{} when nil.
func New(cfg *config.Config, llm matcher.LLMClient, probe interpreter.Probe, clock interpreter.Clock, logger *zap.Logger) *Engine {
	if clock == nil {
		clock = interpreter.SystemClock{}
	}
	return &Engine{
		store:  recipe.NewStore(),
		pool:   NewPool(cfg.Pool),
		llm:    llm,
		probe:  probe,
		clock:  clock,
		logger: logger,
		cfg:    cfg,
	}
}

// ReloadCatalog (re)loads the recipe catalog from cfg.Catalog.Dir. The
// matcher and the interpreter both read through the same
// atomically-swapped Store.
func (e *Engine) ReloadCatalog() (recipe.LoadStatus, error) {
	status, err := e.store.Reload(e.cfg.Catalog.Dir)
	if err != nil {
		return status, err
	}
	e.logger.Info("recipe catalog reloaded",
		zap.Int("loaded", status.Loaded),
		zap.Int("errors", len(status.Errors)),
	)
	for _, fe := range status.Errors {
		e.logger.Warn("recipe load failed", zap.String("file", fe.File), zap.String("reason", fe.Reason))
	}
	return status, nil
}

// Run submits one work order for matching and execution, blocking until the
// result is available or ctx is cancelled. taskID is opaque, used only to
// stamp the resulting Artifact.
func (e *Engine) Run(ctx context.Context, taskID, userText string, upstreamParams map[string]any) (Result, error) {
	resultCh := make(chan Result, 1)

	submitErr := e.pool.Submit(ctx, func(taskCtx context.Context) {
		resultCh <- e.execute(taskCtx, taskID, userText, upstreamParams)
	})
	if submitErr != nil {
		return Result{}, fmt.Errorf("submitting work order: %w", submitErr)
	}

	select {
	case res := <-resultCh:
		return res, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// matchWithRetry calls the matcher and, on any matcher error (a malformed
// response or a failed LLM call), retries exactly once before surfacing.
// No retry is made once ctx itself is cancelled or past its deadline.
func (e *Engine) matchWithRetry(ctx context.Context, taskID, userText string, catalog []*recipe.Recipe) (matcher.Result, error) {
	attempt := func() (matcher.Result, error) {
		matchCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeouts.LLM)
		defer cancel()
		return matcher.Match(matchCtx, userText, catalog, e.llm)
	}

	res, err := attempt()
	if err == nil || ctx.Err() != nil {
		return res, err
	}
	e.logger.Info("retrying recipe match after malformed response",
		zap.String("task_id", taskID), zap.Error(err))
	return attempt()
}

func (e *Engine) execute(ctx context.Context, taskID, userText string, upstreamParams map[string]any) Result {
	catalog := e.store.ListAll()

	matchResult, err := e.matchWithRetry(ctx, taskID, userText, catalog)
	if err != nil {
		e.logger.Warn("recipe match failed", zap.String("task_id", taskID), zap.Error(err))
		return Result{Kind: ResultEngineError, ErrorKind: interpreter.ErrorKindMatchError, Message: err.Error()}
	}
	if matchResult.Status == matcher.StatusUnmatched {
		return Result{Kind: ResultNoMatch, Message: "no recipe matched the work order with sufficient confidence"}
	}

	outcome := interpreter.Run(ctx, matchResult.Recipe, matchResult.Params, upstreamParams, e.probe, e.clock, e.cfg.Timeouts.Probe)

	switch outcome.Kind {
	case interpreter.OutcomeCompleted:
		artifact := dml.Assemble(taskID, matchResult.Recipe.WorkOrderType, outcome)
		return Result{Kind: ResultArtifact, Artifact: artifact, Trace: outcome.Trace}
	case interpreter.OutcomeUserError:
		return Result{Kind: ResultUserError, Message: outcome.Message, Trace: outcome.Trace}
	default:
		e.logger.Error("work order run failed",
			zap.String("task_id", taskID),
			zap.String("error_kind", string(outcome.ErrorKind)),
			zap.String("message", outcome.Message),
			zap.Int("step", outcome.StepNumber),
		)
		return Result{Kind: ResultEngineError, ErrorKind: outcome.ErrorKind, Message: outcome.Message, Trace: outcome.Trace}
	}
}

// Shutdown waits for every admitted run to finish.
func (e *Engine) Shutdown() {
	e.pool.Wait()
}
