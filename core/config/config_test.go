package config_test

import (
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/reasoner/common/id"
	"basegraph.app/reasoner/core/config"
)

var _ = Describe("Config", func() {
	setEnv := func(key, value string) {
		prev, had := os.LookupEnv(key)
		Expect(os.Setenv(key, value)).To(Succeed())
		DeferCleanup(func() {
			if had {
				_ = os.Setenv(key, prev)
			} else {
				_ = os.Unsetenv(key)
			}
		})
	}

	BeforeEach(func() {
		setEnv("REASONER_ENV", "test")
		for _, key := range []string{
			"ARANGO_URL", "ARANGO_USERNAME", "ARANGO_DATABASE", "FIXTURE_PATH",
			"CONTEXT_TOP_K", "CONTEXT_MIN_SCORE", "STEP_TIMEOUT", "ARANGO_APPROX_VECTOR",
			"EMBEDDING_PROVIDER", "OPENAI_API_KEY",
		} {
			setEnv(key, "")
			Expect(os.Unsetenv(key)).To(Succeed())
		}
	})

	Describe("Load", func() {
		It("applies reasoning defaults", func() {
			setEnv("FIXTURE_PATH", "catalog.yaml")

			cfg, err := config.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Reasoning.ContextTopK).To(Equal(3))
			Expect(cfg.Reasoning.ContextMinScore).To(BeNumerically("~", 0.70, 1e-9))
			Expect(cfg.Reasoning.StepTimeout).To(Equal(10 * time.Second))
			Expect(cfg.Embedding.Model).To(Equal("text-embedding-3-small"))
			Expect(cfg.Fixture.Enabled()).To(BeTrue())
			Expect(cfg.ArangoDB.Enabled()).To(BeFalse())
			Expect(cfg.Embedding.Provider).To(Equal(config.EmbeddingNone))
		})

		It("defaults to openai embeddings when an API key is set", func() {
			setEnv("FIXTURE_PATH", "catalog.yaml")
			setEnv("OPENAI_API_KEY", "sk-test")

			cfg, err := config.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Embedding.Provider).To(Equal(config.EmbeddingOpenAI))
		})

		It("rejects openai embeddings without a key", func() {
			setEnv("FIXTURE_PATH", "catalog.yaml")
			setEnv("EMBEDDING_PROVIDER", "openai")

			_, err := config.Load()
			Expect(err).To(MatchError(ContainSubstring("OPENAI_API_KEY")))
		})

		It("reads overrides", func() {
			setEnv("ARANGO_URL", "http://localhost:8529")
			setEnv("ARANGO_USERNAME", "root")
			setEnv("ARANGO_DATABASE", "catalog")
			setEnv("ARANGO_APPROX_VECTOR", "true")
			setEnv("CONTEXT_TOP_K", "5")
			setEnv("CONTEXT_MIN_SCORE", "0.5")
			setEnv("STEP_TIMEOUT", "250ms")

			cfg, err := config.Load()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.ArangoDB.Enabled()).To(BeTrue())
			Expect(cfg.ArangoDB.ApproxVector).To(BeTrue())
			Expect(cfg.Reasoning.ContextTopK).To(Equal(5))
			Expect(cfg.Reasoning.ContextMinScore).To(Equal(0.5))
			Expect(cfg.Reasoning.StepTimeout).To(Equal(250 * time.Millisecond))
		})

		It("fails without any graph backend", func() {
			_, err := config.Load()
			Expect(err).To(MatchError(ContainSubstring("FIXTURE_PATH")))
		})
	})

	DescribeTable("Validate rejects out-of-range reasoning settings",
		func(mutate func(*config.Config), fragment string) {
			cfg := config.Config{
				Fixture:   config.FixtureConfig{Path: "catalog.yaml"},
				Embedding: config.EmbeddingConfig{Dimensions: 8},
				Reasoning: config.ReasoningConfig{ContextTopK: 3, ContextMinScore: 0.7, StepTimeout: time.Second},
			}
			mutate(&cfg)
			Expect(cfg.Validate()).To(MatchError(ContainSubstring(fragment)))
		},
		Entry("top k", func(c *config.Config) { c.Reasoning.ContextTopK = 0 }, "CONTEXT_TOP_K"),
		Entry("min score", func(c *config.Config) { c.Reasoning.ContextMinScore = 1.5 }, "CONTEXT_MIN_SCORE"),
		Entry("zero min score", func(c *config.Config) { c.Reasoning.ContextMinScore = 0 }, "CONTEXT_MIN_SCORE"),
		Entry("timeout", func(c *config.Config) { c.Reasoning.StepTimeout = 0 }, "STEP_TIMEOUT"),
		Entry("dimensions", func(c *config.Config) { c.Embedding.Dimensions = 0 }, "EMBEDDING_DIMENSIONS"),
		Entry("provider", func(c *config.Config) { c.Embedding.Provider = "bert" }, "EMBEDDING_PROVIDER"),
		Entry("node id", func(c *config.Config) { c.NodeID = id.MaxNodeID + 1 }, "NODE_ID must be within [0, 1023]"),
	)
})
