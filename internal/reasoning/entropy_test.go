package reasoning_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/reasoner/internal/model"
	"basegraph.app/reasoner/internal/reasoning"
)

var _ = Describe("NextDiscriminator", func() {
	length := model.Discriminator{ID: "d-length", Question: "Which housing length is required?", Priority: 1}
	material := model.Discriminator{ID: "d-material", Question: "Which material?", Priority: 3}
	airflow := model.Discriminator{ID: "d-airflow", Question: "Which airflow?", Priority: 2}

	links := []model.DiscriminatorLink{
		{PropertyKey: "housing_length", Discriminator: length},
		{PropertyKey: "airflow", Discriminator: airflow},
		{PropertyKey: "material", Discriminator: material},
	}

	rf550 := item("GDB-RF-550", map[string]model.Value{"material": text("RF"), "housing_length": num(550), "airflow": num(3400)})
	rf750 := item("GDB-RF-750", map[string]model.Value{"material": text("RF"), "housing_length": num(750), "airflow": num(3400)})

	It("asks about the only property that differs", func() {
		d := reasoning.NextDiscriminator([]model.Item{rf550, rf750}, links, nil)

		Expect(d).NotTo(BeNil())
		Expect(d.Question).To(Equal("Which housing length is required?"))
	})

	It("returns nothing for zero or one item", func() {
		Expect(reasoning.NextDiscriminator(nil, links, nil)).To(BeNil())
		Expect(reasoning.NextDiscriminator([]model.Item{rf550}, links, nil)).To(BeNil())
	})

	It("never repeats an asked discriminator", func() {
		Expect(reasoning.NextDiscriminator([]model.Item{rf550, rf750}, links, []string{"d-length"})).To(BeNil())
	})

	It("prefers the lowest priority among varying properties", func() {
		sf := item("GDC-SF", map[string]model.Value{"material": text("SF"), "housing_length": num(550), "airflow": num(5000)})

		d := reasoning.NextDiscriminator([]model.Item{rf550, sf}, links, nil)
		Expect(d.ID).To(Equal("d-airflow"))

		d = reasoning.NextDiscriminator([]model.Item{rf550, sf}, links, []string{"d-airflow"})
		Expect(d.ID).To(Equal("d-material"))
	})

	It("keeps link order on equal priority", func() {
		a := model.Discriminator{ID: "d-a", Priority: 5}
		b := model.Discriminator{ID: "d-b", Priority: 5}
		items := []model.Item{
			item("x", map[string]model.Value{"p": text("1"), "q": text("1")}),
			item("y", map[string]model.Value{"p": text("2"), "q": text("2")}),
		}

		Expect(reasoning.NextDiscriminator(items, []model.DiscriminatorLink{
			{PropertyKey: "q", Discriminator: b},
			{PropertyKey: "p", Discriminator: a},
		}, nil).ID).To(Equal("d-b"))
	})

	It("compares values case-insensitively and ignores items without the property", func() {
		items := []model.Item{
			item("x", map[string]model.Value{"material": text("RF")}),
			item("y", map[string]model.Value{"material": text("rf")}),
			item("z", map[string]model.Value{}),
		}
		Expect(reasoning.NextDiscriminator(items, links, nil)).To(BeNil())
	})
})

var _ = Describe("SelectDiscriminator", func() {
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

	It("skips the graph when at most one item is valid", func() {
		d, step, err := reasoning.SelectDiscriminator(ctx, env, []model.Item{item("a", nil)}, nil)

		Expect(err).NotTo(HaveOccurred())
		Expect(d).To(BeNil())
		Expect(step.Status).To(Equal(model.StepSkipped))
		Expect(graph.calls.Load()).To(BeZero())
	})

	It("looks up links for the union of property keys", func() {
		var gotKeys []string
		graph.discriminatorLinksFn = func(_ context.Context, keys []string) ([]model.DiscriminatorLink, error) {
			gotKeys = keys
			return []model.DiscriminatorLink{{PropertyKey: "b", Discriminator: model.Discriminator{ID: "d-b", Priority: 1}}}, nil
		}
		items := []model.Item{
			item("x", map[string]model.Value{"b": text("1"), "a": text("1")}),
			item("y", map[string]model.Value{"b": text("2"), "c": text("1")}),
		}

		d, step, err := reasoning.SelectDiscriminator(ctx, env, items, nil)

		Expect(err).NotTo(HaveOccurred())
		Expect(gotKeys).To(Equal([]string{"a", "b", "c"}))
		Expect(d.ID).To(Equal("d-b"))
		Expect(step.Name).To(Equal("entropy_reduction"))
		Expect(step.Layer).To(Equal(model.LayerReasoning))
	})

	It("returns the store error", func() {
		boom := errors.New("boom")
		graph.discriminatorLinksFn = func(context.Context, []string) ([]model.DiscriminatorLink, error) {
			return nil, boom
		}

		_, step, err := reasoning.SelectDiscriminator(ctx, env, []model.Item{item("x", nil), item("y", nil)}, nil)
		Expect(err).To(MatchError(boom))
		Expect(step.Status).To(Equal(model.StepFailed))
	})
})
