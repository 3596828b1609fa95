package reasoning_test

import (
	"context"
	"sync/atomic"

	"basegraph.app/reasoner/internal/model"
)

type mockGraph struct {
	searchContextsFn         func(ctx context.Context, vec []float32, k int, minScore float64) ([]model.Context, error)
	listContextsFn           func(ctx context.Context) ([]model.Context, error)
	constraintsForContextsFn func(ctx context.Context, contextIDs []string) ([]model.Constraint, error)
	searchItemsFn            func(ctx context.Context, text string) ([]model.Item, error)
	itemsByCategoryFn        func(ctx context.Context, category string) ([]model.Item, error)
	discriminatorLinksFn     func(ctx context.Context, propertyKeys []string) ([]model.DiscriminatorLink, error)
	risksForContextsFn       func(ctx context.Context, contextIDs []string) ([]model.Risk, error)
	mitigationsFn            func(ctx context.Context, itemIDs, riskIDs []string) ([]model.Mitigation, error)
	strategiesForContextsFn  func(ctx context.Context, contextIDs []string) ([]model.Strategy, error)
	strategiesForItemsFn     func(ctx context.Context, itemIDs []string) ([]model.Strategy, error)

	calls atomic.Int32
}

func (m *mockGraph) SearchContexts(ctx context.Context, vec []float32, k int, minScore float64) ([]model.Context, error) {
	m.calls.Add(1)
	if m.searchContextsFn != nil {
		return m.searchContextsFn(ctx, vec, k, minScore)
	}
	return []model.Context{}, nil
}

func (m *mockGraph) ListContexts(ctx context.Context) ([]model.Context, error) {
	m.calls.Add(1)
	if m.listContextsFn != nil {
		return m.listContextsFn(ctx)
	}
	return []model.Context{}, nil
}

func (m *mockGraph) ConstraintsForContexts(ctx context.Context, contextIDs []string) ([]model.Constraint, error) {
	m.calls.Add(1)
	if m.constraintsForContextsFn != nil {
		return m.constraintsForContextsFn(ctx, contextIDs)
	}
	return []model.Constraint{}, nil
}

func (m *mockGraph) SearchItems(ctx context.Context, text string) ([]model.Item, error) {
	m.calls.Add(1)
	if m.searchItemsFn != nil {
		return m.searchItemsFn(ctx, text)
	}
	return []model.Item{}, nil
}

func (m *mockGraph) ItemsByCategory(ctx context.Context, category string) ([]model.Item, error) {
	m.calls.Add(1)
	if m.itemsByCategoryFn != nil {
		return m.itemsByCategoryFn(ctx, category)
	}
	return []model.Item{}, nil
}

func (m *mockGraph) DiscriminatorLinks(ctx context.Context, propertyKeys []string) ([]model.DiscriminatorLink, error) {
	m.calls.Add(1)
	if m.discriminatorLinksFn != nil {
		return m.discriminatorLinksFn(ctx, propertyKeys)
	}
	return []model.DiscriminatorLink{}, nil
}

func (m *mockGraph) RisksForContexts(ctx context.Context, contextIDs []string) ([]model.Risk, error) {
	m.calls.Add(1)
	if m.risksForContextsFn != nil {
		return m.risksForContextsFn(ctx, contextIDs)
	}
	return []model.Risk{}, nil
}

func (m *mockGraph) Mitigations(ctx context.Context, itemIDs, riskIDs []string) ([]model.Mitigation, error) {
	m.calls.Add(1)
	if m.mitigationsFn != nil {
		return m.mitigationsFn(ctx, itemIDs, riskIDs)
	}
	return []model.Mitigation{}, nil
}

func (m *mockGraph) StrategiesForContexts(ctx context.Context, contextIDs []string) ([]model.Strategy, error) {
	m.calls.Add(1)
	if m.strategiesForContextsFn != nil {
		return m.strategiesForContextsFn(ctx, contextIDs)
	}
	return []model.Strategy{}, nil
}

func (m *mockGraph) StrategiesForItems(ctx context.Context, itemIDs []string) ([]model.Strategy, error) {
	m.calls.Add(1)
	if m.strategiesForItemsFn != nil {
		return m.strategiesForItemsFn(ctx, itemIDs)
	}
	return []model.Strategy{}, nil
}

type mockEmbedder struct {
	embedFn func(ctx context.Context, text string) ([]float32, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if m.embedFn != nil {
		return m.embedFn(ctx, text)
	}
	return []float32{1, 0, 0}, nil
}

func (m *mockEmbedder) Dimensions() int { return 3 }
func (m *mockEmbedder) Name() string    { return "mock" }

func item(id string, props map[string]model.Value) model.Item {
	return model.Item{ID: id, Name: id, Properties: props}
}

func text(s string) model.Value { return model.Text(s) }

func num(f float64) model.Value { return model.Number(f) }

func intPtr(v int) *int { return &v }
