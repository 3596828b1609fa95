package reasoning_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/reasoner/internal/model"
	"basegraph.app/reasoner/internal/reasoning"
)

var _ = Describe("CanonicalOrder", func() {
	It("orders by severity, then id, then source context, and drops repeated ids", func() {
		ordered := reasoning.CanonicalOrder([]model.Constraint{
			{ID: "c-info", Severity: model.SeverityInfo},
			{ID: "c-b", Severity: model.SeverityCritical, SourceContext: "Outdoor"},
			{ID: "c-warn", Severity: model.SeverityWarning},
			{ID: "c-b", Severity: model.SeverityCritical, SourceContext: "Hospital"},
			{ID: "c-a", Severity: model.SeverityCritical},
			{ID: "c-odd", Severity: "URGENT"},
		})

		ids := make([]string, 0, len(ordered))
		for _, c := range ordered {
			ids = append(ids, c.ID)
		}
		Expect(ids).To(Equal([]string{"c-a", "c-b", "c-warn", "c-info", "c-odd"}))
		Expect(ordered[1].SourceContext).To(Equal("Hospital"))
	})
})

var _ = Describe("pipeline steps", func() {
	var (
		ctx   context.Context
		graph *mockGraph
		env   reasoning.Env
	)

	BeforeEach(func() {
		ctx = context.Background()
		graph = &mockGraph{}
		env = reasoning.Env{Graph: graph}
	})

	Describe("ResolveConstraints", func() {
		It("returns nothing for no contexts without touching the graph", func() {
			constraints, step, err := reasoning.ResolveConstraints(ctx, env, nil)

			Expect(err).NotTo(HaveOccurred())
			Expect(constraints).To(BeEmpty())
			Expect(step.Status).To(Equal(model.StepSkipped))
			Expect(graph.calls.Load()).To(BeZero())
		})

		It("returns constraints in canonical order", func() {
			graph.constraintsForContextsFn = func(_ context.Context, ids []string) ([]model.Constraint, error) {
				Expect(ids).To(Equal([]string{"ctx-hospital", "ctx-outdoor"}))
				return []model.Constraint{
					{ID: "c-no-galvanized", Severity: model.SeverityWarning},
					{ID: "c-hygienic-material", Severity: model.SeverityCritical},
				}, nil
			}

			constraints, step, err := reasoning.ResolveConstraints(ctx, env, []string{"ctx-hospital", "ctx-outdoor"})

			Expect(err).NotTo(HaveOccurred())
			Expect(constraints[0].ID).To(Equal("c-hygienic-material"))
			Expect(step.Summary).To(ContainSubstring("1 critical"))
		})
	})

	Describe("RetrieveItems", func() {
		It("prefers the hint over the query", func() {
			var searched string
			graph.searchItemsFn = func(_ context.Context, text string) ([]model.Item, error) {
				searched = text
				return []model.Item{item("GDB-RF", nil)}, nil
			}

			got, _, err := reasoning.RetrieveItems(ctx, env, reasoning.Request{Query: "hospital", ItemHint: "GDB"})

			Expect(err).NotTo(HaveOccurred())
			Expect(searched).To(Equal("GDB"))
			Expect(got.Mode).To(Equal(reasoning.RetrievedByHint))
		})

		It("lists the requested category when the text finds nothing", func() {
			var category string
			graph.itemsByCategoryFn = func(_ context.Context, c string) ([]model.Item, error) {
				category = c
				return []model.Item{item("GDC-SF", nil)}, nil
			}

			got, step, err := reasoning.RetrieveItems(ctx, env, reasoning.Request{Query: "something", Category: "carbon_housing"})

			Expect(err).NotTo(HaveOccurred())
			Expect(category).To(Equal("carbon_housing"))
			Expect(got.Mode).To(Equal(reasoning.RetrievedByCategory))
			Expect(step.Operation).To(Equal("list_by_category"))
		})

		It("lists without searching when there is no text", func() {
			searched := false
			graph.searchItemsFn = func(context.Context, string) ([]model.Item, error) {
				searched = true
				return nil, nil
			}

			_, _, err := reasoning.RetrieveItems(ctx, env, reasoning.Request{})
			Expect(err).NotTo(HaveOccurred())
			Expect(searched).To(BeFalse())
		})

		It("propagates store errors", func() {
			graph.searchItemsFn = func(context.Context, string) ([]model.Item, error) {
				return nil, errors.New("down")
			}

			_, step, err := reasoning.RetrieveItems(ctx, env, reasoning.Request{Query: "x"})
			Expect(err).To(HaveOccurred())
			Expect(step.Status).To(Equal(model.StepFailed))
		})
	})

	Describe("AssessRisks", func() {
		BeforeEach(func() {
			graph.risksForContextsFn = func(context.Context, []string) ([]model.Risk, error) {
				return []model.Risk{
					{ID: "r-corrosion", SourceContext: "Outdoor"},
					{ID: "r-corrosion", SourceContext: "Coastal"},
					{ID: "r-contamination", SourceContext: "Hospital"},
				}, nil
			}
		})

		It("reports each risk once and looks up mitigations for valid items", func() {
			var gotRisks []string
			graph.mitigationsFn = func(_ context.Context, itemIDs, riskIDs []string) ([]model.Mitigation, error) {
				gotRisks = riskIDs
				return []model.Mitigation{{ItemID: itemIDs[0], RiskID: "r-corrosion"}}, nil
			}

			out, _, err := reasoning.AssessRisks(ctx, env, []string{"ctx-outdoor"}, []string{"GDB-RF"})

			Expect(err).NotTo(HaveOccurred())
			Expect(out.Risks).To(HaveLen(2))
			Expect(out.Risks[0].SourceContext).To(Equal("Outdoor"))
			Expect(gotRisks).To(Equal([]string{"r-corrosion", "r-contamination"}))
			Expect(out.Mitigations).To(HaveLen(1))
		})

		It("skips mitigations without valid items", func() {
			called := false
			graph.mitigationsFn = func(context.Context, []string, []string) ([]model.Mitigation, error) {
				called = true
				return nil, nil
			}

			out, _, err := reasoning.AssessRisks(ctx, env, []string{"ctx-outdoor"}, nil)

			Expect(err).NotTo(HaveOccurred())
			Expect(called).To(BeFalse())
			Expect(out.Mitigations).To(BeEmpty())
		})

		It("skips everything without contexts", func() {
			out, step, err := reasoning.AssessRisks(ctx, env, nil, []string{"GDB-RF"})

			Expect(err).NotTo(HaveOccurred())
			Expect(out.Risks).To(BeEmpty())
			Expect(step.Status).To(Equal(model.StepSkipped))
			Expect(graph.calls.Load()).To(BeZero())
		})
	})

	Describe("ActivateStrategies", func() {
		It("merges both sources sorted by priority", func() {
			graph.strategiesForContextsFn = func(context.Context, []string) ([]model.Strategy, error) {
				return []model.Strategy{
					{ID: "s-weather-hood", TriggeredBy: "Outdoor"},
					{ID: "s-hepa", Priority: intPtr(2), TriggeredBy: "Hospital"},
				}, nil
			}
			graph.strategiesForItemsFn = func(context.Context, []string) ([]model.Strategy, error) {
				return []model.Strategy{
					{ID: "s-hepa", Priority: intPtr(2), TriggeredBy: "GDB-RF"},
					{ID: "s-install-kit", Priority: intPtr(5), TriggeredBy: "GDB-RF"},
				}, nil
			}

			got, _, err := reasoning.ActivateStrategies(ctx, env, []string{"ctx"}, []string{"GDB-RF"})

			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(HaveLen(3))
			Expect(got[0].ID).To(Equal("s-hepa"))
			Expect(got[0].TriggeredBy).To(Equal("Hospital"))
			Expect(got[1].ID).To(Equal("s-install-kit"))
			Expect(got[2].ID).To(Equal("s-weather-hood"))
		})

		It("queries only the sources that have ids", func() {
			graph.strategiesForContextsFn = func(context.Context, []string) ([]model.Strategy, error) {
				Fail("context strategies queried without contexts")
				return nil, nil
			}

			_, _, err := reasoning.ActivateStrategies(ctx, env, nil, []string{"GDB-RF"})
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("RankStrategies", func() {
		It("keeps source order for equal priorities", func() {
			got := reasoning.RankStrategies(
				[]model.Strategy{{ID: "a"}, {ID: "b", Priority: intPtr(99)}},
				[]model.Strategy{{ID: "c", Priority: intPtr(1)}},
			)

			ids := []string{got[0].ID, got[1].ID, got[2].ID}
			Expect(ids).To(Equal([]string{"c", "a", "b"}))
		})
	})
})
