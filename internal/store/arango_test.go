package store_test

import (
	"context"
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/reasoner/common/arangodb"
	"basegraph.app/reasoner/common/embedding"
	"basegraph.app/reasoner/internal/model"
	"basegraph.app/reasoner/internal/store"
)

type mockArangoClient struct {
	queryFn func(ctx context.Context, query string, bindVars map[string]any) ([]arangodb.Row, error)
	calls   int
}

func (m *mockArangoClient) EnsureDatabase(context.Context) error    { return nil }
func (m *mockArangoClient) EnsureCollections(context.Context) error { return nil }
func (m *mockArangoClient) EnsureGraph(context.Context) error       { return nil }
func (m *mockArangoClient) Connect(context.Context) error           { return nil }
func (m *mockArangoClient) Close() error                            { return nil }

func (m *mockArangoClient) Query(ctx context.Context, query string, bindVars map[string]any) ([]arangodb.Row, error) {
	m.calls++
	if m.queryFn != nil {
		return m.queryFn(ctx, query, bindVars)
	}
	return nil, nil
}

func rows(docs ...string) []arangodb.Row {
	out := make([]arangodb.Row, 0, len(docs))
	for _, d := range docs {
		out = append(out, arangodb.Row(d))
	}
	return out
}

var _ = Describe("GraphStore", func() {
	var (
		ctx    context.Context
		client *mockArangoClient
		gs     *store.GraphStore
	)

	BeforeEach(func() {
		ctx = context.Background()
		client = &mockArangoClient{}
		gs = store.NewGraphStore(client, store.GraphStoreConfig{})
	})

	Describe("SearchContexts", func() {
		It("binds the embedding, k and threshold and decodes scored contexts", func() {
			var gotQuery string
			var gotVars map[string]any
			client.queryFn = func(_ context.Context, q string, vars map[string]any) ([]arangodb.Row, error) {
				gotQuery, gotVars = q, vars
				return rows(`{"id":"ctx-hospital","name":"Hospital","keywords":["hospital"],"score":0.91}`), nil
			}

			found, err := gs.SearchContexts(ctx, []float32{0.1, 0.2}, 3, 0.7)
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(HaveLen(1))
			Expect(found[0].Score).To(Equal(0.91))
			Expect(gotQuery).To(ContainSubstring("COSINE_SIMILARITY"))
			Expect(gotVars).To(HaveKeyWithValue("k", 3))
			Expect(gotVars).To(HaveKeyWithValue("min_score", 0.7))
		})

		It("uses the approximate operator when configured", func() {
			gs = store.NewGraphStore(client, store.GraphStoreConfig{ApproxVector: true})
			var gotQuery string
			client.queryFn = func(_ context.Context, q string, _ map[string]any) ([]arangodb.Row, error) {
				gotQuery = q
				return rows(`{"id":"ctx-outdoor","name":"Outdoor","score":0.8}`), nil
			}

			_, err := gs.SearchContexts(ctx, []float32{1}, 3, 0.7)
			Expect(err).NotTo(HaveOccurred())
			Expect(gotQuery).To(ContainSubstring("APPROX_NEAR_COSINE"))
		})

		It("surfaces store unavailability", func() {
			client.queryFn = func(context.Context, string, map[string]any) ([]arangodb.Row, error) {
				return nil, &arangodb.UnavailableError{Op: "execute query", Err: errors.New("connection refused")}
			}

			_, err := gs.SearchContexts(ctx, []float32{1}, 3, 0.7)
			Expect(errors.Is(err, arangodb.ErrStoreUnavailable)).To(BeTrue())
		})

		It("rejects an empty embedding without querying", func() {
			_, err := gs.SearchContexts(ctx, nil, 3, 0.7)
			Expect(errors.Is(err, store.ErrVectorIndexUnavailable)).To(BeTrue())
			Expect(client.calls).To(BeZero())
		})

		Describe("with no match", func() {
			indexStats := func(stats string) func(context.Context, string, map[string]any) ([]arangodb.Row, error) {
				return func(_ context.Context, q string, _ map[string]any) ([]arangodb.Row, error) {
					if strings.Contains(q, "embedded:") {
						return rows(stats), nil
					}
					return nil, nil
				}
			}

			It("succeeds when context embeddings of the query size exist", func() {
				client.queryFn = indexStats(`{"embedded":3,"matching":3}`)

				found, err := gs.SearchContexts(ctx, []float32{0.1, 0.2}, 3, 0.7)
				Expect(err).NotTo(HaveOccurred())
				Expect(found).To(BeEmpty())
				Expect(client.calls).To(Equal(2))
			})

			It("reports the index unavailable when embedding dimensions differ", func() {
				var gotVars map[string]any
				client.queryFn = func(c context.Context, q string, vars map[string]any) ([]arangodb.Row, error) {
					if strings.Contains(q, "embedded:") {
						gotVars = vars
					}
					return indexStats(`{"embedded":3,"matching":0}`)(c, q, vars)
				}

				_, err := gs.SearchContexts(ctx, make([]float32, 512), 3, 0.7)
				Expect(errors.Is(err, store.ErrVectorIndexUnavailable)).To(BeTrue())
				Expect(err).To(MatchError(ContainSubstring("512 dimensions")))
				Expect(gotVars).To(HaveKeyWithValue("dimensions", 512))
			})

			It("reports the index unavailable when no context is embedded", func() {
				client.queryFn = indexStats(`{"embedded":0,"matching":0}`)

				_, err := gs.SearchContexts(ctx, []float32{1}, 3, 0.7)
				Expect(errors.Is(err, store.ErrVectorIndexUnavailable)).To(BeTrue())
			})
		})

		It("fails on a malformed row", func() {
			client.queryFn = func(context.Context, string, map[string]any) ([]arangodb.Row, error) {
				return rows(`{"id":`), nil
			}
			_, err := gs.SearchContexts(ctx, []float32{1}, 3, 0.7)
			Expect(err).To(MatchError(ContainSubstring("decode row")))
		})
	})

	It("skips the query for empty id sets", func() {
		constraints, err := gs.ConstraintsForContexts(ctx, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(constraints).To(BeEmpty())

		risks, err := gs.RisksForContexts(ctx, []string{})
		Expect(err).NotTo(HaveOccurred())
		Expect(risks).To(BeEmpty())

		mitigations, err := gs.Mitigations(ctx, []string{"GDB-RF-550"}, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(mitigations).To(BeEmpty())

		strategies, err := gs.StrategiesForItems(ctx, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(strategies).To(BeEmpty())

		links, err := gs.DiscriminatorLinks(ctx, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(links).To(BeEmpty())

		Expect(client.calls).To(BeZero())
	})

	It("decodes constraints with typed required values", func() {
		client.queryFn = func(_ context.Context, _ string, vars map[string]any) ([]arangodb.Row, error) {
			Expect(vars).To(HaveKeyWithValue("context_ids", []string{"ctx-kitchen"}))
			return rows(`{"id":"c-kitchen-airflow","target_key":"airflow","operator":"GREATER_THAN","required_value":3000,"severity":"WARNING","reason":"r","source_context":"Commercial Kitchen"}`), nil
		}

		constraints, err := gs.ConstraintsForContexts(ctx, []string{"ctx-kitchen"})
		Expect(err).NotTo(HaveOccurred())
		Expect(constraints).To(HaveLen(1))
		Expect(constraints[0].RequiredValue.Kind()).To(Equal(model.KindNumber))
		Expect(constraints[0].SourceContext).To(Equal("Commercial Kitchen"))
	})

	It("decodes hydrated items and lower-cases the search text", func() {
		client.queryFn = func(_ context.Context, _ string, vars map[string]any) ([]arangodb.Row, error) {
			Expect(vars).To(HaveKeyWithValue("text", "gdb"))
			return rows(`{"id":"GDB-RF-550","name":"GDB RF","description":null,"properties":{"material":"RF","housing_length":550},"categories":["filter_housing"]}`), nil
		}

		items, err := gs.SearchItems(ctx, "GDB")
		Expect(err).NotTo(HaveOccurred())
		Expect(items).To(HaveLen(1))
		Expect(items[0].Properties).To(HaveLen(2))
		Expect(items[0].Properties["housing_length"].String()).To(Equal("550"))
	})

	It("decodes strategies with and without priority", func() {
		client.queryFn = func(context.Context, string, map[string]any) ([]arangodb.Row, error) {
			return rows(
				`{"id":"s1","name":"A","type":"CROSS_SELL","priority":2,"triggered_by":"Hospital"}`,
				`{"id":"s2","name":"B","type":"RECOMMENDATION","priority":null,"triggered_by":"Outdoor"}`,
			), nil
		}

		strategies, err := gs.StrategiesForContexts(ctx, []string{"ctx-hospital", "ctx-outdoor"})
		Expect(err).NotTo(HaveOccurred())
		Expect(strategies[0].EffectivePriority()).To(Equal(2))
		Expect(strategies[1].Priority).To(BeNil())
		Expect(strategies[1].EffectivePriority()).To(Equal(model.DefaultStrategyPriority))
	})
	Describe("IndexContexts", func() {
		It("embeds pending contexts and writes each embedding back", func() {
			hash, err := embedding.NewHashProvider(8)
			Expect(err).NotTo(HaveOccurred())

			var updated []string
			client.queryFn = func(_ context.Context, q string, vars map[string]any) ([]arangodb.Row, error) {
				if strings.Contains(q, "UPDATE") {
					Expect(vars["embedding"]).To(HaveLen(8))
					updated = append(updated, vars["key"].(string))
					return rows(`"ok"`), nil
				}
				Expect(vars).To(HaveKeyWithValue("dimensions", 8))
				Expect(vars).To(HaveKeyWithValue("all", false))
				return rows(
					`{"id":"ctx-hospital","name":"Hospital","keywords":["clinic"]}`,
					`{"id":"ctx-outdoor","name":"Outdoor","keywords":[]}`,
				), nil
			}

			n, err := gs.IndexContexts(ctx, hash, false)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(2))
			Expect(updated).To(Equal([]string{"ctx-hospital", "ctx-outdoor"}))
		})

		It("stops at the first embedding failure", func() {
			client.queryFn = func(context.Context, string, map[string]any) ([]arangodb.Row, error) {
				return rows(`{"id":"ctx-hospital","name":"Hospital"}`), nil
			}

			n, err := gs.IndexContexts(ctx, failingProvider{}, true)
			Expect(err).To(MatchError(embedding.ErrEmbeddingFailed))
			Expect(n).To(BeZero())
			Expect(client.calls).To(Equal(1))
		})
	})
})
