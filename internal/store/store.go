// Package store reads the three-layer knowledge graph: inventory items and
// their properties, application contexts with their constraints and risks,
// and reasoning discriminators and strategies.
package store

import (
	"context"
	"errors"

	"basegraph.app/reasoner/internal/model"
)

// ErrVectorIndexUnavailable is returned by SearchContexts when no vector
// index over Context embeddings can serve the query.
var ErrVectorIndexUnavailable = errors.New("context vector index unavailable")

// KnowledgeGraph is the read contract the reasoning pipeline runs against.
// Every list method returns an empty result for empty id input and preserves
// the store's natural order.
type KnowledgeGraph interface {
	// SearchContexts returns up to k Contexts whose embedding similarity to
	// the query vector is at least minScore, best first.
	SearchContexts(ctx context.Context, embedding []float32, k int, minScore float64) ([]model.Context, error)
	// ListContexts returns every Context with its keyword list.
	ListContexts(ctx context.Context) ([]model.Context, error)
	// ConstraintsForContexts follows "implies" edges, annotating each
	// Constraint with the edge reason and the source Context name.
	ConstraintsForContexts(ctx context.Context, contextIDs []string) ([]model.Constraint, error)

	// SearchItems matches items whose name or description contains text,
	// case-insensitively, with properties and categories hydrated.
	SearchItems(ctx context.Context, text string) ([]model.Item, error)
	// ItemsByCategory lists items tagged with category, or all items when
	// category is empty.
	ItemsByCategory(ctx context.Context, category string) ([]model.Item, error)

	// DiscriminatorLinks returns the "depends-on" links from the given
	// property keys, ordered by discriminator priority.
	DiscriminatorLinks(ctx context.Context, propertyKeys []string) ([]model.DiscriminatorLink, error)

	RisksForContexts(ctx context.Context, contextIDs []string) ([]model.Risk, error)
	Mitigations(ctx context.Context, itemIDs, riskIDs []string) ([]model.Mitigation, error)

	StrategiesForContexts(ctx context.Context, contextIDs []string) ([]model.Strategy, error)
	StrategiesForItems(ctx context.Context, itemIDs []string) ([]model.Strategy, error)
}

// Snapshotter is implemented by stores whose content can change while the
// process runs. Snapshot pins one consistent view for the duration of a run.
type Snapshotter interface {
	Snapshot() KnowledgeGraph
}

// Pin returns a consistent view of kg for one reasoning run.
func Pin(kg KnowledgeGraph) KnowledgeGraph {
	if s, ok := kg.(Snapshotter); ok {
		return s.Snapshot()
	}
	return kg
}
