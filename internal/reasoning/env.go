// Package reasoning turns a free-text query into a validated, risk-annotated
// set of catalog items and, while candidates remain ambiguous, the next
// clarifying question. Every business rule comes from the knowledge graph.
package reasoning

import (
	"context"
	"time"

	"basegraph.app/reasoner/common/embedding"
	"basegraph.app/reasoner/core/config"
	"basegraph.app/reasoner/internal/store"
)

const (
	DefaultTopK     = 3
	DefaultMinScore = 0.70
)

// Env carries the collaborators and tuning of one reasoning run. It is passed
// by value to every step, so concurrent runs can use different graphs or
// embedders without coordination.
type Env struct {
	Graph store.KnowledgeGraph
	// Embedder may be nil, in which case context detection goes straight to
	// keyword matching.
	Embedder embedding.Provider

	// TopK and MinScore fall back to DefaultTopK and DefaultMinScore when
	// left at zero.
	TopK     int
	MinScore float64
	// StepTimeout bounds each graph or embedding call. Zero means no bound
	// beyond the caller's context.
	StepTimeout time.Duration
}

func NewEnv(graph store.KnowledgeGraph, embedder embedding.Provider, cfg config.ReasoningConfig) Env {
	return Env{
		Graph:       graph,
		Embedder:    embedder,
		TopK:        cfg.ContextTopK,
		MinScore:    cfg.ContextMinScore,
		StepTimeout: cfg.StepTimeout,
	}.withDefaults()
}

// withDefaults replaces unset tuning: a TopK below 1 or a MinScore of zero or
// less takes the package default.
func (e Env) withDefaults() Env {
	if e.TopK < 1 {
		e.TopK = DefaultTopK
	}
	if e.MinScore <= 0 {
		e.MinScore = DefaultMinScore
	}
	return e
}

// bound derives the context for one I/O call.
func (e Env) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.StepTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.StepTimeout)
}
