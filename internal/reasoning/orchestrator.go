package reasoning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"basegraph.app/reasoner/common/id"
	"basegraph.app/reasoner/common/logger"
	"basegraph.app/reasoner/internal/model"
	"basegraph.app/reasoner/internal/store"
)

// Request is one reasoning invocation. Asked carries the discriminator ids
// the caller already put to the user; the engine keeps no memory of them.
type Request struct {
	Query    string
	ItemHint string
	Asked    []string
	// Category restricts the listing used when text retrieval finds
	// nothing. Empty lists the whole catalog.
	Category string
}

var errNoGraph = errors.New("reasoning env has no knowledge graph")

// Process runs the full pipeline for req against one consistent view of the
// graph. Context detection failures are absorbed (the run continues with no
// contexts); a failure of any other step aborts the run with a *StepError
// and no partial result.
func Process(ctx context.Context, env Env, req Request) (*model.ReasoningResult, error) {
	if env.Graph == nil {
		return nil, errNoGraph
	}
	env = env.withDefaults()
	env.Graph = store.Pin(env.Graph)

	runID := id.New()
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		RunID:     logger.Ptr(runID),
		Query:     logger.Ptr(logger.Truncate(req.Query, 120)),
		Component: "reasoner.orchestrator",
	})

	sc := logger.StartSpan(ctx, "reasoning.process")
	defer sc.End()
	ctx = sc.Context()
	sc.SetAttributes(
		attribute.Int64("reasoning.run_id", runID),
		attribute.Int("reasoning.asked", len(req.Asked)),
	)

	start := time.Now()
	slog.InfoContext(ctx, "reasoning run started", "item_hint", req.ItemHint, "category", req.Category)

	result, err := run(ctx, env, req)
	if err != nil {
		sc.RecordError(err)
		slog.ErrorContext(ctx, "reasoning run failed",
			"error", err,
			"duration_ms", time.Since(start).Milliseconds())
		return nil, err
	}

	slog.InfoContext(ctx, "reasoning run completed",
		"detection_source", result.DetectionSource,
		"contexts", len(result.DetectedContexts),
		"valid_items", len(result.ValidItems),
		"rejected_items", len(result.RejectedItems),
		"needs_clarification", result.NeedsClarification,
		"duration_ms", time.Since(start).Milliseconds())
	return result, nil
}

func run(ctx context.Context, env Env, req Request) (*model.ReasoningResult, error) {
	// 1. contexts
	detection, detectTrace, err := traced(ctx, stepContextDetection, func(ctx context.Context) (Detection, model.TraceStep, error) {
		return DetectContexts(ctx, env, req.Query)
	})
	if err != nil {
		slog.ErrorContext(ctx, "context detection failed, continuing without contexts", "error", err)
		detection = Detection{Contexts: []model.Context{}, Source: model.DetectionNone}
	}
	contextIDs := model.ContextIDs(detection.Contexts)

	// 2 and 3 only need the context ids and the request.
	var (
		constraints []model.Constraint
		retrieval   Retrieval
		constTrace  model.TraceStep
		retTrace    model.TraceStep
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		constraints, constTrace, err = traced(gctx, stepConstraints, func(ctx context.Context) ([]model.Constraint, model.TraceStep, error) {
			return ResolveConstraints(ctx, env, contextIDs)
		})
		return stepErr(stepConstraints, err)
	})
	g.Go(func() error {
		var err error
		retrieval, retTrace, err = traced(gctx, stepRetrieval, func(ctx context.Context) (Retrieval, model.TraceStep, error) {
			return RetrieveItems(ctx, env, req)
		})
		return stepErr(stepRetrieval, err)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// 4
	valid, rejected, evalTrace := evaluateItems(retrieval.Items, constraints)

	// 5
	disc, discTrace, err := traced(ctx, stepEntropy, func(ctx context.Context) (*model.Discriminator, model.TraceStep, error) {
		return SelectDiscriminator(ctx, env, valid, req.Asked)
	})
	if err != nil {
		return nil, stepErr(stepEntropy, err)
	}

	// 6 and 7 only need the context ids and the valid items.
	itemIDs := model.ItemIDs(valid)
	var (
		risks       RiskAssessment
		strategies  []model.Strategy
		riskTrace   model.TraceStep
		strategyTrc model.TraceStep
	)
	g, gctx = errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		risks, riskTrace, err = traced(gctx, stepRisk, func(ctx context.Context) (RiskAssessment, model.TraceStep, error) {
			return AssessRisks(ctx, env, contextIDs, itemIDs)
		})
		return stepErr(stepRisk, err)
	})
	g.Go(func() error {
		var err error
		strategies, strategyTrc, err = traced(gctx, stepStrategy, func(ctx context.Context) ([]model.Strategy, model.TraceStep, error) {
			return ActivateStrategies(ctx, env, contextIDs, itemIDs)
		})
		return stepErr(stepStrategy, err)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// 8
	assembled := time.Now()
	result := &model.ReasoningResult{
		Query:               req.Query,
		DetectionSource:     detection.Source,
		DetectedContexts:    detection.Contexts,
		ActiveConstraints:   constraints,
		ValidItems:          valid,
		RejectedItems:       rejected,
		NeedsClarification:  disc != nil,
		Discriminator:       disc,
		DetectedRisks:       risks.Risks,
		Mitigations:         risks.Mitigations,
		TriggeredStrategies: strategies,
	}
	summary := fmt.Sprintf("%d valid, %d rejected, needs_clarification=%t", len(valid), len(rejected), result.NeedsClarification)
	result.Trace = foldTrace(
		detectTrace,
		constTrace,
		retTrace,
		evalTrace,
		discTrace,
		riskTrace,
		strategyTrc,
		stepAssembly.record(assembled, model.StepOK, summary),
	)
	return result, nil
}

// traced runs one step inside its own span with the step name on every log
// line it emits.
func traced[T any](ctx context.Context, step stepInfo, fn func(context.Context) (T, model.TraceStep, error)) (T, model.TraceStep, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Step: logger.Ptr(step.name)})
	sc := logger.StartSpan(ctx, "reasoning."+step.name)
	defer sc.End()

	out, entry, err := fn(sc.Context())
	sc.SetAttributes(
		attribute.String("reasoning.layer", string(entry.Layer)),
		attribute.String("reasoning.operation", entry.Operation),
		attribute.String("reasoning.status", string(entry.Status)),
	)
	if err != nil {
		sc.RecordError(err)
	}
	slog.DebugContext(sc.Context(), "reasoning step finished",
		"status", entry.Status,
		"summary", entry.Summary,
		"duration_ms", entry.DurationMs)
	return out, entry, err
}

func stepErr(step stepInfo, err error) error {
	if err == nil {
		return nil
	}
	return &StepError{Step: step.name, Err: err}
}
