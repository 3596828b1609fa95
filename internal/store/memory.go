package store

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"basegraph.app/reasoner/common/embedding"
	"basegraph.app/reasoner/internal/model"
)

const contextCollection = "contexts"

// MemoryStore serves the KnowledgeGraph contract from a loaded Catalog.
// Context embeddings live in an in-memory chromem-go collection. A
// MemoryStore is immutable once built and safe for concurrent use.
type MemoryStore struct {
	catalog *Catalog

	itemPos     map[string]int
	contextPos  map[string]int
	constraints map[string]ConstraintSpec
	risks       map[string]RiskSpec
	strategies  map[string]StrategySpec

	// nil when no embedding provider was given or indexing failed
	index *chromem.Collection
}

// NewMemoryStore indexes the catalog. Each Context is embedded from its name,
// description and keywords. If provider is nil or embedding fails the store
// still serves every other query and SearchContexts reports
// ErrVectorIndexUnavailable.
func NewMemoryStore(ctx context.Context, catalog *Catalog, provider embedding.Provider) (*MemoryStore, error) {
	if catalog == nil {
		return nil, fmt.Errorf("memory store: nil catalog")
	}

	s := &MemoryStore{
		catalog:     catalog,
		itemPos:     make(map[string]int, len(catalog.Items)),
		contextPos:  make(map[string]int, len(catalog.Contexts)),
		constraints: make(map[string]ConstraintSpec, len(catalog.Constraints)),
		risks:       make(map[string]RiskSpec, len(catalog.Risks)),
		strategies:  make(map[string]StrategySpec, len(catalog.Strategies)),
	}
	for i, it := range catalog.Items {
		s.itemPos[it.ID] = i
	}
	for i, c := range catalog.Contexts {
		s.contextPos[c.ID] = i
	}
	for _, k := range catalog.Constraints {
		s.constraints[k.ID] = k
	}
	for _, r := range catalog.Risks {
		s.risks[r.ID] = r
	}
	for _, st := range catalog.Strategies {
		s.strategies[st.ID] = st
	}

	if provider != nil {
		index, err := buildContextIndex(ctx, catalog.Contexts, provider)
		if err != nil {
			slog.WarnContext(ctx, "context vector index unavailable, keyword detection only",
				"provider", provider.Name(),
				"error", err)
		} else {
			s.index = index
		}
	}

	return s, nil
}

func buildContextIndex(ctx context.Context, contexts []ContextSpec, provider embedding.Provider) (*chromem.Collection, error) {
	start := time.Now()

	db := chromem.NewDB()
	col, err := db.CreateCollection(contextCollection, nil, chromem.EmbeddingFunc(provider.Embed))
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	for _, c := range contexts {
		content := contextText(c)
		vec, err := provider.Embed(ctx, content)
		if err != nil {
			return nil, fmt.Errorf("embed context %s: %w", c.ID, err)
		}
		// A zero vector has no direction and can never be similar to anything.
		if isZero(vec) {
			continue
		}
		if err := col.AddDocument(ctx, chromem.Document{
			ID:        c.ID,
			Content:   content,
			Embedding: vec,
			Metadata:  map[string]string{"name": c.Name},
		}); err != nil {
			return nil, fmt.Errorf("index context %s: %w", c.ID, err)
		}
	}

	slog.DebugContext(ctx, "context vector index built",
		"provider", provider.Name(),
		"contexts", col.Count(),
		"duration_ms", time.Since(start).Milliseconds())

	return col, nil
}

func contextText(c ContextSpec) string {
	return ContextText(model.Context{Name: c.Name, Description: c.Description, Keywords: c.Keywords})
}

// ContextText is the text embedded for a context: name, description and
// keywords. Both stores index the same text so scores are comparable.
func ContextText(c model.Context) string {
	parts := []string{c.Name}
	if c.Description != "" {
		parts = append(parts, c.Description)
	}
	if len(c.Keywords) > 0 {
		parts = append(parts, strings.Join(c.Keywords, ", "))
	}
	return strings.Join(parts, ". ")
}

func isZero(vec []float32) bool {
	for _, v := range vec {
		if v != 0 {
			return false
		}
	}
	return true
}

func (s *MemoryStore) SearchContexts(ctx context.Context, vec []float32, k int, minScore float64) ([]model.Context, error) {
	if s.index == nil {
		return nil, fmt.Errorf("search contexts: %w", ErrVectorIndexUnavailable)
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("search contexts: %w: empty query embedding", ErrVectorIndexUnavailable)
	}
	n := s.index.Count()
	if k < 1 || n == 0 || isZero(vec) {
		return []model.Context{}, nil
	}

	// Rank every document so that ties are broken by catalog order rather
	// than by the index's internal map order.
	results, err := s.index.QueryEmbedding(ctx, vec, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("search contexts: %w: %v", ErrVectorIndexUnavailable, err)
	}

	matches := make([]model.Context, 0, len(results))
	for _, r := range results {
		score := float64(r.Similarity)
		if math.IsNaN(score) || score < minScore {
			continue
		}
		pos, ok := s.contextPos[r.ID]
		if !ok {
			continue
		}
		c := toContext(s.catalog.Contexts[pos])
		c.Score = score
		matches = append(matches, c)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return s.contextPos[matches[i].ID] < s.contextPos[matches[j].ID]
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func (s *MemoryStore) ListContexts(_ context.Context) ([]model.Context, error) {
	out := make([]model.Context, 0, len(s.catalog.Contexts))
	for _, c := range s.catalog.Contexts {
		out = append(out, toContext(c))
	}
	return out, nil
}

func toContext(c ContextSpec) model.Context {
	return model.Context{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		Keywords:    append([]string(nil), c.Keywords...),
	}
}

func (s *MemoryStore) ConstraintsForContexts(_ context.Context, contextIDs []string) ([]model.Constraint, error) {
	out := []model.Constraint{}
	for _, c := range s.contextsIn(contextIDs) {
		for _, im := range c.Implies {
			k := s.constraints[im.Constraint]
			out = append(out, model.Constraint{
				ID:            k.ID,
				TargetKey:     k.TargetKey,
				Operator:      k.Operator,
				RequiredValue: k.RequiredValue,
				Severity:      k.Severity,
				Reason:        im.Reason,
				SourceContext: c.Name,
			})
		}
	}
	return out, nil
}

func (s *MemoryStore) SearchItems(_ context.Context, text string) ([]model.Item, error) {
	needle := strings.ToLower(text)
	out := []model.Item{}
	for _, it := range s.catalog.Items {
		if strings.Contains(strings.ToLower(it.Name), needle) || strings.Contains(strings.ToLower(it.Description), needle) {
			out = append(out, toItem(it))
		}
	}
	return out, nil
}

func (s *MemoryStore) ItemsByCategory(_ context.Context, category string) ([]model.Item, error) {
	category = strings.TrimSpace(category)
	out := []model.Item{}
	for _, it := range s.catalog.Items {
		if category == "" || hasFold(it.Categories, category) {
			out = append(out, toItem(it))
		}
	}
	return out, nil
}

func hasFold(values []string, want string) bool {
	for _, v := range values {
		if strings.EqualFold(v, want) {
			return true
		}
	}
	return false
}

func toItem(it ItemSpec) model.Item {
	props := make(map[string]model.Value, len(it.Properties))
	for k, v := range it.Properties {
		props[k] = v
	}
	cats := append([]string(nil), it.Categories...)
	sort.Strings(cats)
	return model.Item{
		ID:          it.ID,
		Name:        it.Name,
		Description: it.Description,
		Properties:  props,
		Categories:  cats,
	}
}

func (s *MemoryStore) DiscriminatorLinks(_ context.Context, propertyKeys []string) ([]model.DiscriminatorLink, error) {
	wanted := make(map[string]bool, len(propertyKeys))
	for _, k := range propertyKeys {
		wanted[k] = true
	}

	out := []model.DiscriminatorLink{}
	for _, d := range s.catalog.Discriminators {
		disc := toDiscriminator(d)
		for _, key := range d.DependsOn {
			if wanted[key] {
				out = append(out, model.DiscriminatorLink{PropertyKey: key, Discriminator: disc})
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Discriminator.Priority < out[j].Discriminator.Priority
	})
	return out, nil
}

func toDiscriminator(d DiscriminatorSpec) model.Discriminator {
	priority := model.DefaultDiscriminatorPriority
	if d.Priority != nil {
		priority = *d.Priority
	}
	options := make([]model.Option, 0, len(d.Options))
	for _, o := range d.Options {
		options = append(options, model.Option{ID: o.ID, Label: o.Label, Value: o.Value})
	}
	return model.Discriminator{
		ID:        d.ID,
		Name:      d.Name,
		Question:  d.Question,
		Priority:  priority,
		Options:   options,
		WhyNeeded: d.WhyNeeded,
	}
}

func (s *MemoryStore) RisksForContexts(_ context.Context, contextIDs []string) ([]model.Risk, error) {
	out := []model.Risk{}
	for _, c := range s.contextsIn(contextIDs) {
		for _, g := range c.Generates {
			r := s.risks[g.Risk]
			out = append(out, model.Risk{
				ID:            r.ID,
				Name:          r.Name,
				Severity:      r.Severity,
				Description:   r.Description,
				Probability:   g.Probability,
				SourceContext: c.Name,
			})
		}
	}
	return out, nil
}

func (s *MemoryStore) Mitigations(_ context.Context, itemIDs, riskIDs []string) ([]model.Mitigation, error) {
	out := []model.Mitigation{}
	if len(itemIDs) == 0 || len(riskIDs) == 0 {
		return out, nil
	}
	wantRisk := make(map[string]bool, len(riskIDs))
	for _, id := range riskIDs {
		wantRisk[id] = true
	}
	for _, it := range s.itemsIn(itemIDs) {
		for _, m := range it.Mitigates {
			if !wantRisk[m.Risk] {
				continue
			}
			out = append(out, model.Mitigation{
				ItemID:      it.ID,
				ItemName:    it.Name,
				RiskID:      m.Risk,
				RiskName:    s.risks[m.Risk].Name,
				Description: m.Description,
			})
		}
	}
	return out, nil
}

func (s *MemoryStore) StrategiesForContexts(_ context.Context, contextIDs []string) ([]model.Strategy, error) {
	out := []model.Strategy{}
	for _, c := range s.contextsIn(contextIDs) {
		for _, id := range c.Triggers {
			out = append(out, s.toStrategy(id, c.Name))
		}
	}
	return out, nil
}

func (s *MemoryStore) StrategiesForItems(_ context.Context, itemIDs []string) ([]model.Strategy, error) {
	out := []model.Strategy{}
	for _, it := range s.itemsIn(itemIDs) {
		for _, id := range it.Enables {
			out = append(out, s.toStrategy(id, it.Name))
		}
	}
	return out, nil
}

func (s *MemoryStore) toStrategy(id, triggeredBy string) model.Strategy {
	st := s.strategies[id]
	var priority *int
	if st.Priority != nil {
		p := *st.Priority
		priority = &p
	}
	return model.Strategy{
		ID:          st.ID,
		Name:        st.Name,
		Kind:        st.Type,
		Priority:    priority,
		Description: st.Description,
		TriggeredBy: triggeredBy,
	}
}

// contextsIn returns the catalog contexts with the given ids in catalog order.
func (s *MemoryStore) contextsIn(ids []string) []ContextSpec {
	pos := make([]int, 0, len(ids))
	seen := make(map[int]bool, len(ids))
	for _, id := range ids {
		if p, ok := s.contextPos[id]; ok && !seen[p] {
			seen[p] = true
			pos = append(pos, p)
		}
	}
	sort.Ints(pos)
	out := make([]ContextSpec, 0, len(pos))
	for _, p := range pos {
		out = append(out, s.catalog.Contexts[p])
	}
	return out
}

func (s *MemoryStore) itemsIn(ids []string) []ItemSpec {
	pos := make([]int, 0, len(ids))
	seen := make(map[int]bool, len(ids))
	for _, id := range ids {
		if p, ok := s.itemPos[id]; ok && !seen[p] {
			seen[p] = true
			pos = append(pos, p)
		}
	}
	sort.Ints(pos)
	out := make([]ItemSpec, 0, len(pos))
	for _, p := range pos {
		out = append(out, s.catalog.Items[p])
	}
	return out
}
