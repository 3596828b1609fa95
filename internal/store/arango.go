package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"basegraph.app/reasoner/common/arangodb"
	"basegraph.app/reasoner/common/embedding"
	"basegraph.app/reasoner/internal/model"
)

type GraphStoreConfig struct {
	// ApproxVector uses APPROX_NEAR_COSINE, which requires a vector index on
	// contexts.embedding. Otherwise similarity is computed exhaustively.
	ApproxVector bool
}

// GraphStore runs AQL pattern queries against the knowledge_graph in ArangoDB.
type GraphStore struct {
	client arangodb.Client
	cfg    GraphStoreConfig
}

func NewGraphStore(client arangodb.Client, cfg GraphStoreConfig) *GraphStore {
	return &GraphStore{client: client, cfg: cfg}
}

const contextProjection = `{
  id: c._key,
  name: c.name,
  description: c.description,
  keywords: c.keywords || [],
  score: score
}`

const exactContextSearchQuery = `
FOR c IN contexts
  FILTER IS_ARRAY(c.embedding) AND LENGTH(c.embedding) == LENGTH(@embedding)
  LET score = COSINE_SIMILARITY(c.embedding, @embedding)
  FILTER score >= @min_score
  SORT score DESC, c._key ASC
  LIMIT @k
  RETURN ` + contextProjection

const approxContextSearchQuery = `
FOR c IN contexts
  LET score = APPROX_NEAR_COSINE(c.embedding, @embedding)
  SORT score DESC
  LIMIT @k
  FILTER score >= @min_score
  RETURN ` + contextProjection

func (s *GraphStore) SearchContexts(ctx context.Context, embedding []float32, k int, minScore float64) ([]model.Context, error) {
	if len(embedding) == 0 {
		return nil, fmt.Errorf("search contexts: %w: empty query embedding", ErrVectorIndexUnavailable)
	}
	if k < 1 {
		return []model.Context{}, nil
	}

	q := exactContextSearchQuery
	if s.cfg.ApproxVector {
		q = approxContextSearchQuery
	}

	found, err := queryAll[model.Context](ctx, s.client, "search contexts", q, map[string]any{
		"embedding": embedding,
		"k":         k,
		"min_score": minScore,
	})
	if err != nil || len(found) > 0 {
		return found, err
	}

	// An empty answer only counts as "no match" when there are context
	// embeddings of the query's size to compare against.
	if err := s.checkContextIndex(ctx, len(embedding)); err != nil {
		return nil, err
	}
	return found, nil
}

const contextIndexStatsQuery = `
RETURN {
  embedded: LENGTH(FOR c IN contexts FILTER IS_ARRAY(c.embedding) RETURN 1),
  matching: LENGTH(FOR c IN contexts FILTER IS_ARRAY(c.embedding) AND LENGTH(c.embedding) == @dimensions RETURN 1)
}`

type contextIndexStats struct {
	Embedded int `json:"embedded"`
	Matching int `json:"matching"`
}

func (s *GraphStore) checkContextIndex(ctx context.Context, dimensions int) error {
	stats, err := queryAll[contextIndexStats](ctx, s.client, "context index stats", contextIndexStatsQuery, map[string]any{
		"dimensions": dimensions,
	})
	if err != nil {
		return err
	}
	if len(stats) == 0 {
		return nil
	}

	switch {
	case stats[0].Embedded == 0:
		return fmt.Errorf("search contexts: %w: no context has an embedding", ErrVectorIndexUnavailable)
	case stats[0].Matching == 0:
		slog.WarnContext(ctx, "context embeddings do not match the query dimensions",
			"dimensions", dimensions,
			"embedded_contexts", stats[0].Embedded)
		return fmt.Errorf("search contexts: %w: no context embedding has %d dimensions", ErrVectorIndexUnavailable, dimensions)
	}
	return nil
}

const listContextsQuery = `
FOR c IN contexts
  SORT c._key
  RETURN {
    id: c._key,
    name: c.name,
    description: c.description,
    keywords: c.keywords || []
  }`

func (s *GraphStore) ListContexts(ctx context.Context) ([]model.Context, error) {
	return queryAll[model.Context](ctx, s.client, "list contexts", listContextsQuery, nil)
}

const constraintsForContextsQuery = `
FOR c IN contexts
  FILTER c._key IN @context_ids
  FOR k, e IN 1..1 OUTBOUND c implies
    SORT c._key, k._key
    RETURN {
      id: k._key,
      target_key: k.target_key,
      operator: k.operator,
      required_value: k.required_value,
      severity: k.severity,
      reason: e.reason,
      source_context: c.name
    }`

func (s *GraphStore) ConstraintsForContexts(ctx context.Context, contextIDs []string) ([]model.Constraint, error) {
	if len(contextIDs) == 0 {
		return []model.Constraint{}, nil
	}
	return queryAll[model.Constraint](ctx, s.client, "constraints for contexts", constraintsForContextsQuery, map[string]any{
		"context_ids": contextIDs,
	})
}

// itemProjection hydrates the property bag and category tags in the same traversal.
const itemProjection = `
  LET props = (
    FOR p, e IN 1..1 OUTBOUND i has_property
      FILTER e.value != null
      RETURN [p.key, e.value]
  )
  LET cats = (
    FOR cat IN 1..1 OUTBOUND i in_category
      SORT cat.name
      RETURN cat.name
  )
  RETURN {
    id: i._key,
    name: i.name,
    description: i.description,
    properties: ZIP(props[*][0], props[*][1]),
    categories: cats
  }`

const searchItemsQuery = `
FOR i IN items
  FILTER CONTAINS(LOWER(i.name || ""), @text) OR CONTAINS(LOWER(i.description || ""), @text)
  SORT i._key` + itemProjection

func (s *GraphStore) SearchItems(ctx context.Context, text string) ([]model.Item, error) {
	return queryAll[model.Item](ctx, s.client, "search items", searchItemsQuery, map[string]any{
		"text": strings.ToLower(text),
	})
}

const itemsByCategoryQuery = `
FOR i IN items
  FILTER @category == "" OR LENGTH(
    FOR cat IN 1..1 OUTBOUND i in_category
      FILTER LOWER(cat.name) == @category
      LIMIT 1
      RETURN 1
  ) > 0
  SORT i._key` + itemProjection

func (s *GraphStore) ItemsByCategory(ctx context.Context, category string) ([]model.Item, error) {
	return queryAll[model.Item](ctx, s.client, "items by category", itemsByCategoryQuery, map[string]any{
		"category": strings.ToLower(strings.TrimSpace(category)),
	})
}

const discriminatorLinksQuery = `
FOR p IN properties
  FILTER p.key IN @keys
  FOR d IN 1..1 OUTBOUND p depends_on
    LET priority = IS_NUMBER(d.priority) ? d.priority : @default_priority
    LET options = (
      FOR o IN 1..1 OUTBOUND d has_option
        SORT o.order, o._key
        RETURN { id: o._key, label: o.label, value: o.value }
    )
    SORT priority, d._key, p.key
    RETURN {
      property_key: p.key,
      discriminator: {
        id: d._key,
        name: d.name,
        question: d.question,
        priority: priority,
        options: options,
        why_needed: d.why_needed
      }
    }`

func (s *GraphStore) DiscriminatorLinks(ctx context.Context, propertyKeys []string) ([]model.DiscriminatorLink, error) {
	if len(propertyKeys) == 0 {
		return []model.DiscriminatorLink{}, nil
	}
	return queryAll[model.DiscriminatorLink](ctx, s.client, "discriminator links", discriminatorLinksQuery, map[string]any{
		"keys":             propertyKeys,
		"default_priority": model.DefaultDiscriminatorPriority,
	})
}

const risksForContextsQuery = `
FOR c IN contexts
  FILTER c._key IN @context_ids
  FOR r, e IN 1..1 OUTBOUND c generates_risk
    SORT c._key, r._key
    RETURN {
      id: r._key,
      name: r.name,
      severity: r.severity,
      description: r.description,
      probability: e.probability || 0,
      source_context: c.name
    }`

func (s *GraphStore) RisksForContexts(ctx context.Context, contextIDs []string) ([]model.Risk, error) {
	if len(contextIDs) == 0 {
		return []model.Risk{}, nil
	}
	return queryAll[model.Risk](ctx, s.client, "risks for contexts", risksForContextsQuery, map[string]any{
		"context_ids": contextIDs,
	})
}

const mitigationsQuery = `
FOR i IN items
  FILTER i._key IN @item_ids
  FOR r, e IN 1..1 OUTBOUND i mitigates
    FILTER r._key IN @risk_ids
    SORT i._key, r._key
    RETURN {
      item_id: i._key,
      item_name: i.name,
      risk_id: r._key,
      risk_name: r.name,
      description: e.description
    }`

func (s *GraphStore) Mitigations(ctx context.Context, itemIDs, riskIDs []string) ([]model.Mitigation, error) {
	if len(itemIDs) == 0 || len(riskIDs) == 0 {
		return []model.Mitigation{}, nil
	}
	return queryAll[model.Mitigation](ctx, s.client, "mitigations", mitigationsQuery, map[string]any{
		"item_ids": itemIDs,
		"risk_ids": riskIDs,
	})
}

const strategiesForContextsQuery = `
FOR c IN contexts
  FILTER c._key IN @ids
  FOR s IN 1..1 OUTBOUND c triggers_strategy
    SORT c._key, s._key
    RETURN {
      id: s._key,
      name: s.name,
      type: s.type,
      priority: s.priority,
      description: s.description,
      triggered_by: c.name
    }`

const strategiesForItemsQuery = `
FOR i IN items
  FILTER i._key IN @ids
  FOR s IN 1..1 OUTBOUND i enables_strategy
    SORT i._key, s._key
    RETURN {
      id: s._key,
      name: s.name,
      type: s.type,
      priority: s.priority,
      description: s.description,
      triggered_by: i.name
    }`

func (s *GraphStore) StrategiesForContexts(ctx context.Context, contextIDs []string) ([]model.Strategy, error) {
	if len(contextIDs) == 0 {
		return []model.Strategy{}, nil
	}
	return queryAll[model.Strategy](ctx, s.client, "strategies for contexts", strategiesForContextsQuery, map[string]any{
		"ids": contextIDs,
	})
}

func (s *GraphStore) StrategiesForItems(ctx context.Context, itemIDs []string) ([]model.Strategy, error) {
	if len(itemIDs) == 0 {
		return []model.Strategy{}, nil
	}
	return queryAll[model.Strategy](ctx, s.client, "strategies for items", strategiesForItemsQuery, map[string]any{
		"ids": itemIDs,
	})
}

const contextsToIndexQuery = `
FOR c IN contexts
  FILTER @all OR !IS_ARRAY(c.embedding) OR LENGTH(c.embedding) != @dimensions
  SORT c._key
  RETURN {
    id: c._key,
    name: c.name,
    description: c.description,
    keywords: c.keywords || []
  }`

const setContextEmbeddingQuery = `
UPDATE { _key: @key } WITH { embedding: @embedding } IN contexts
RETURN NEW._key`

// IndexContexts writes embeddings for contexts that have none, or whose
// embedding has a different dimension than provider's. With all set every
// context is re-embedded. It returns how many contexts were written.
func (s *GraphStore) IndexContexts(ctx context.Context, provider embedding.Provider, all bool) (int, error) {
	start := time.Now()

	pending, err := queryAll[model.Context](ctx, s.client, "contexts to index", contextsToIndexQuery, map[string]any{
		"all":        all,
		"dimensions": provider.Dimensions(),
	})
	if err != nil {
		return 0, err
	}

	for i, c := range pending {
		vec, err := provider.Embed(ctx, ContextText(c))
		if err != nil {
			return i, fmt.Errorf("embed context %s: %w", c.ID, err)
		}
		if _, err := s.client.Query(ctx, setContextEmbeddingQuery, map[string]any{
			"key":       c.ID,
			"embedding": vec,
		}); err != nil {
			return i, fmt.Errorf("store embedding for context %s: %w", c.ID, err)
		}
	}

	slog.InfoContext(ctx, "context embeddings written",
		"provider", provider.Name(),
		"contexts", len(pending),
		"duration_ms", time.Since(start).Milliseconds())
	return len(pending), nil
}

func queryAll[T any](ctx context.Context, client arangodb.Client, op, query string, bindVars map[string]any) ([]T, error) {
	rows, err := client.Query(ctx, query, bindVars)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	out := make([]T, 0, len(rows))
	for _, row := range rows {
		var v T
		if err := row.Decode(&v); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, v)
	}
	return out, nil
}
