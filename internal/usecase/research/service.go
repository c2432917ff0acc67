// Package research orchestrates the deep-research pipeline: query
// decomposition, web search, source evaluation, content extraction,
// report synthesis, and optional post-processing passes.
package research

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/profundo-ai/profundo/internal/costs"
	"github.com/profundo-ai/profundo/internal/domain"
	"github.com/profundo-ai/profundo/internal/metrics"
	"github.com/profundo-ai/profundo/internal/modelrouter"
	"github.com/profundo-ai/profundo/internal/runconfig"
)

// Service runs research pipelines. Safe for concurrent runs; all
// per-run state lives in the run struct.
type Service struct {
	llm    LLM
	search map[string]Searcher
	fetch  Fetcher
	logger *zap.Logger
}

// New creates the research service. Every configured search provider
// is passed in; the run configuration's search.provider knob picks
// one per run.
func New(llm LLM, searchers []Searcher, fetch Fetcher, logger *zap.Logger) *Service {
	search := make(map[string]Searcher, len(searchers))
	for _, s := range searchers {
		search[s.Name()] = s
	}
	return &Service{llm: llm, search: search, fetch: fetch, logger: logger}
}

// searcher resolves the provider named by the run configuration. When
// only one provider is configured it serves every run regardless of
// the configured name; with several, an unknown name is rejected.
func (s *Service) searcher(name string) (Searcher, error) {
	if p, ok := s.search[name]; ok {
		return p, nil
	}
	if len(s.search) == 1 {
		for _, p := range s.search {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: search provider %q is not configured", domain.ErrValidation, name)
}

// stageBounds maps each stage to its progress interval. Progress only
// ever moves forward; a failed stage freezes it at the last value.
var stageBounds = map[domain.Stage]struct{ start, end float64 }{
	domain.StageDecompose:   {0.05, 0.15},
	domain.StageSearch:      {0.15, 0.35},
	domain.StageEvaluate:    {0.35, 0.50},
	domain.StageExtract:     {0.50, 0.65},
	domain.StageSynthesize:  {0.65, 0.90},
	domain.StagePostProcess: {0.90, 0.97},
}

// run holds the state of one pipeline execution.
type run struct {
	svc        *Service
	req        domain.ResearchRequest
	cfg        *runconfig.Effective
	tracker    *costs.Tracker
	emitter    Emitter
	logger     *zap.Logger
	runID      string
	startedAt  time.Time
	modelsUsed map[string]string
	progress   float64
}

// Run executes the full pipeline for req, emitting events in order to
// emit. runID identifies the run for registries and cancellation; an
// empty id gets generated. userSettings is the stored preference
// overlay merged between defaults and per-run overrides. The returned
// response is also carried by the terminal done event.
func (s *Service) Run(
	ctx context.Context,
	runID string,
	req domain.ResearchRequest,
	userSettings map[string]any,
	emit Emitter,
) (*domain.ResearchResponse, error) {
	if err := normalizeRequest(&req); err != nil {
		emitEvent(emit, domain.ErrorEvent{Message: err.Error()})
		return nil, err
	}

	cfg, err := runconfig.Resolve(req.Depth, userSettings, req.Overrides)
	if err != nil {
		emitEvent(emit, domain.ErrorEvent{Message: err.Error()})
		return nil, err
	}

	if runID == "" {
		runID = uuid.NewString()
	}
	r := &run{
		svc:        s,
		req:        req,
		cfg:        cfg,
		tracker:    costs.NewTracker(),
		emitter:    emit,
		runID:      runID,
		startedAt:  time.Now().UTC(),
		modelsUsed: make(map[string]string),
	}
	r.logger = s.logger.With(
		zap.String("run_id", r.runID),
		zap.String("depth", string(req.Depth)),
	)

	if cfg.Limits.MaxRunSec > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(cfg.Limits.MaxRunSec)*time.Second)
		defer cancel()
	}

	resp, err := r.execute(ctx)
	if err != nil {
		// An external abort ends the run silently: no terminal error
		// event, the client just sees the stream close.
		if errors.Is(err, context.Canceled) {
			metrics.PipelineRunsTotal.WithLabelValues(string(req.Depth), "cancelled").Inc()
			r.logger.Info("research run cancelled", zap.Duration("elapsed", time.Since(r.startedAt)))
			return nil, err
		}
		metrics.PipelineRunsTotal.WithLabelValues(string(req.Depth), "error").Inc()
		r.logger.Error("research run failed", zap.Error(err))
		emitEvent(emit, domain.ErrorEvent{Message: err.Error()})
		return nil, err
	}

	metrics.PipelineRunsTotal.WithLabelValues(string(req.Depth), "success").Inc()
	r.logger.Info("research run completed",
		zap.Int("citations", len(resp.Citations)),
		zap.Float64("total_cost_usd", resp.TotalCost),
		zap.Duration("elapsed", time.Since(r.startedAt)),
	)
	if err := emitEvent(emit, domain.DoneEvent{Response: *resp}); err != nil {
		return resp, err
	}
	return resp, nil
}

// execute runs the six stages in fixed order. Each stage fully
// completes before the next begins.
func (r *run) execute(ctx context.Context) (*domain.ResearchResponse, error) {
	var subQueries []domain.SubQuery
	err := r.runStage(ctx, domain.StageDecompose, func(ctx context.Context) error {
		qs, err := r.decompose(ctx)
		if err != nil {
			return err
		}
		subQueries = qs
		return r.emit(domain.QueriesEvent{Queries: qs})
	})
	if err != nil {
		return nil, err
	}

	var results []domain.SearchResult
	err = r.runStage(ctx, domain.StageSearch, func(ctx context.Context) error {
		rs, err := r.searchAll(ctx, subQueries)
		if err != nil {
			return err
		}
		results = rs
		return nil
	})
	if err != nil {
		return nil, err
	}

	var kept []domain.EvaluatedSource
	err = r.runStage(ctx, domain.StageEvaluate, func(ctx context.Context) error {
		evaluated, err := r.evaluate(ctx, results)
		if err != nil {
			return err
		}
		for _, src := range evaluated {
			if !src.Kept {
				continue
			}
			kept = append(kept, src)
			if err := r.emit(domain.SourceEvent{Source: src}); err != nil {
				return err
			}
		}
		if len(kept) == 0 {
			return fmt.Errorf("%w: no sources passed evaluation", domain.ErrFatalPipeline)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = r.runStage(ctx, domain.StageExtract, func(ctx context.Context) error {
		return r.extract(ctx, kept)
	})
	if err != nil {
		return nil, err
	}

	var report string
	var citations []domain.Citation
	err = r.runStage(ctx, domain.StageSynthesize, func(ctx context.Context) error {
		text, cites, err := r.synthesize(ctx, kept)
		if err != nil {
			return err
		}
		report, citations = text, cites
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = r.runStage(ctx, domain.StagePostProcess, func(ctx context.Context) error {
		amended, err := r.postProcess(ctx, report, kept)
		if err != nil {
			return err
		}
		report = amended
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &domain.ResearchResponse{
		ReportText: report,
		Citations:  citations,
		Metadata: domain.RunMetadata{
			RunID:       r.runID,
			Depth:       r.req.Depth,
			ModelsUsed:  r.modelsUsed,
			StartedAt:   r.startedAt,
			CompletedAt: time.Now().UTC(),
		},
		TotalCost: r.tracker.TotalCost(),
	}, nil
}

// runStage brackets fn with running/completed stage events and the
// stage duration metric. A failure emits a failed stage event with
// progress frozen and wraps the error with the stage name.
func (r *run) runStage(ctx context.Context, stage domain.Stage, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	bounds := stageBounds[stage]
	if err := r.emitStage(stage, domain.StageRunning, bounds.start, ""); err != nil {
		return err
	}

	start := time.Now()
	if err := fn(ctx); err != nil {
		metrics.StageDuration.WithLabelValues(string(stage), "failed").Observe(time.Since(start).Seconds())
		// Best effort: the failed stage event rides ahead of the
		// terminal error event.
		r.emitStage(stage, domain.StageFailed, r.progress, err.Error())
		return domain.NewStageError(stage, err)
	}

	metrics.StageDuration.WithLabelValues(string(stage), "completed").Observe(time.Since(start).Seconds())
	return r.emitStage(stage, domain.StageCompleted, bounds.end, "")
}

func (r *run) emitStage(stage domain.Stage, status domain.StageStatus, progress float64, msg string) error {
	if progress < r.progress {
		progress = r.progress
	}
	r.progress = progress
	return r.emit(domain.StageEvent{
		Stage:    stage,
		Status:   status,
		Progress: progress,
		Message:  msg,
	})
}

func (r *run) emit(event domain.Event) error {
	return emitEvent(r.emitter, event)
}

func emitEvent(emitter Emitter, event domain.Event) error {
	metrics.EventsEmittedTotal.WithLabelValues(string(event.Kind())).Inc()
	return emitter.Emit(event)
}

// callObject routes and executes a structured generation for stage.
// On a transient failure the first fallback model is tried exactly
// once; permanent failures (schema violations included) surface
// immediately.
func (r *run) callObject(
	ctx context.Context,
	stage domain.Stage,
	system, prompt, schemaName string,
	schema json.RawMessage,
	out any,
) error {
	sel, err := modelrouter.Select(stage, r.pref(), r.req.Depth, r.req.Overrides, r.req.CustomModels)
	if err != nil {
		return err
	}

	models := []string{sel.ModelID, sel.FallbackChain[0]}
	var lastErr error
	for attempt, model := range models {
		cctx, cancel := r.callContext(ctx)
		usage, err := r.svc.llm.GenerateObject(cctx, model, system, prompt, schemaName, schema, out)
		cancel()
		if err == nil {
			r.recordCall(stage, model, usage)
			return nil
		}
		lastErr = err
		if !domain.IsTransient(err) {
			return err
		}
		if attempt == 0 {
			r.logger.Warn("model call failed, trying fallback",
				zap.String("stage", string(stage)),
				zap.String("model", model),
				zap.String("fallback", models[1]),
				zap.Error(err),
			)
		}
	}
	return lastErr
}

// callStream is callObject's streaming counterpart. The fallback retry
// only applies when the primary stream failed before any delta was
// forwarded; a mid-stream failure would otherwise duplicate text.
func (r *run) callStream(
	ctx context.Context,
	stage domain.Stage,
	system, prompt string,
	onDelta func(delta string) error,
) error {
	sel, err := modelrouter.Select(stage, r.pref(), r.req.Depth, r.req.Overrides, r.req.CustomModels)
	if err != nil {
		return err
	}

	models := []string{sel.ModelID, sel.FallbackChain[0]}
	var lastErr error
	for attempt, model := range models {
		delivered := false
		wrapped := func(delta string) error {
			delivered = true
			return onDelta(delta)
		}

		cctx, cancel := r.callContext(ctx)
		usage, err := r.svc.llm.StreamText(cctx, model, system, prompt, wrapped)
		cancel()
		if err == nil {
			r.recordCall(stage, model, usage)
			return nil
		}
		lastErr = err
		if !domain.IsTransient(err) || delivered {
			return err
		}
		if attempt == 0 {
			r.logger.Warn("stream failed before first delta, trying fallback",
				zap.String("stage", string(stage)),
				zap.String("model", model),
				zap.String("fallback", models[1]),
				zap.Error(err),
			)
		}
	}
	return lastErr
}

func (r *run) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.cfg.Limits.StageCallSec <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Duration(r.cfg.Limits.StageCallSec)*time.Second)
}

func (r *run) recordCall(stage domain.Stage, model string, usage domain.TokenUsage) {
	entry := r.tracker.AddEntry(stage, model, usage.InputTokens, usage.OutputTokens)
	metrics.LLMCostUSDTotal.WithLabelValues(model).Add(entry.CostUSD)
	r.modelsUsed[string(stage)] = model
}

func (r *run) pref() domain.Preference {
	return r.req.Preference
}

// normalizeRequest fills defaults and rejects malformed submissions.
func normalizeRequest(req *domain.ResearchRequest) error {
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return fmt.Errorf("%w: query must not be empty", domain.ErrValidation)
	}
	if req.Depth == "" {
		req.Depth = domain.DepthNormal
	}
	if !domain.ValidDepth(req.Depth) {
		return fmt.Errorf("%w: unknown depth %q", domain.ErrValidation, req.Depth)
	}
	if req.Preference == "" {
		req.Preference = domain.PreferenceAuto
	}
	if !domain.ValidPreference(req.Preference) {
		return fmt.Errorf("%w: unknown model preference %q", domain.ErrValidation, req.Preference)
	}
	if req.Preference == domain.PreferenceCustom && len(req.CustomModels) == 0 {
		return fmt.Errorf("%w: custom model preference requires customModels", domain.ErrValidation)
	}
	return nil
}

// CostEstimate is the up-front projection for a run before it starts.
type CostEstimate struct {
	PerStage map[domain.Stage]modelrouter.Selection `json:"perStage"`
	TotalUSD float64                                `json:"totalUSD"`
}

// Estimate projects the cost of a run without executing anything.
// Empty preference or depth fall back to auto and normal.
func (s *Service) Estimate(pref domain.Preference, depth domain.Depth) (*CostEstimate, error) {
	if pref == "" {
		pref = domain.PreferenceAuto
	}
	if depth == "" {
		depth = domain.DepthNormal
	}
	if !domain.ValidPreference(pref) {
		return nil, fmt.Errorf("%w: unknown model preference %q", domain.ErrValidation, pref)
	}
	if !domain.ValidDepth(depth) {
		return nil, fmt.Errorf("%w: unknown depth %q", domain.ErrValidation, depth)
	}

	perStage, err := modelrouter.SelectAll(pref, depth)
	if err != nil {
		return nil, err
	}
	est := &CostEstimate{PerStage: perStage}
	for _, sel := range perStage {
		est.TotalUSD += sel.EstimatedCostUSD
	}
	return est, nil
}
