package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"basegraph.app/reasoner/common/id"
)

type Config struct {
	OTel      OTelConfig
	ArangoDB  ArangoDBConfig
	OpenAI    OpenAIConfig
	Embedding EmbeddingConfig
	Cache     CacheConfig
	Reasoning ReasoningConfig
	Fixture   FixtureConfig
	Env       string
	NodeID    int64
}

type OTelConfig struct {
	Endpoint       string
	Headers        string
	ServiceName    string
	ServiceVersion string
}

type ArangoDBConfig struct {
	URL      string
	Username string
	Password string
	Database string
	// ApproxVector switches context search to APPROX_NEAR_COSINE, which needs a vector index.
	ApproxVector bool
}

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
}

// Embedding providers.
const (
	EmbeddingOpenAI = "openai"
	EmbeddingHash   = "hash"
	EmbeddingNone   = "none"
)

type EmbeddingConfig struct {
	// Provider is openai, hash or none. Unset means openai when an API key
	// is configured and none otherwise.
	Provider   string
	Model      string
	Dimensions int
}

type CacheConfig struct {
	RedisURL string
	TTL      time.Duration
}

type ReasoningConfig struct {
	ContextTopK     int
	ContextMinScore float64
	StepTimeout     time.Duration
}

type FixtureConfig struct {
	Path string
}

// Load loads configuration from environment variables.
// In development, .env is read first if present.
func Load() (Config, error) {
	if getEnv("REASONER_ENV", "development") == "development" {
		_ = godotenv.Load(".env")
	}

	cfg := Config{
		Env:    getEnv("REASONER_ENV", "development"),
		NodeID: getEnvInt64("NODE_ID", 1),
		OTel: OTelConfig{
			Endpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Headers:        getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "reasoner"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "dev"),
		},
		ArangoDB: ArangoDBConfig{
			URL:          getEnv("ARANGO_URL", ""),
			Username:     getEnv("ARANGO_USERNAME", ""),
			Password:     getEnv("ARANGO_PASSWORD", ""),
			Database:     getEnv("ARANGO_DATABASE", ""),
			ApproxVector: getEnvBool("ARANGO_APPROX_VECTOR", false),
		},
		OpenAI: OpenAIConfig{
			APIKey:  getEnv("OPENAI_API_KEY", ""),
			BaseURL: getEnv("OPENAI_BASE_URL", ""),
		},
		Embedding: EmbeddingConfig{
			Provider:   getEnv("EMBEDDING_PROVIDER", ""),
			Model:      getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
			Dimensions: getEnvInt("EMBEDDING_DIMENSIONS", 1536),
		},
		Cache: CacheConfig{
			RedisURL: getEnv("REDIS_URL", ""),
			TTL:      getEnvDuration("EMBEDDING_CACHE_TTL", 24*time.Hour),
		},
		Reasoning: ReasoningConfig{
			ContextTopK:     getEnvInt("CONTEXT_TOP_K", 3),
			ContextMinScore: getEnvFloat("CONTEXT_MIN_SCORE", 0.70),
			StepTimeout:     getEnvDuration("STEP_TIMEOUT", 10*time.Second),
		},
		Fixture: FixtureConfig{
			Path: getEnv("FIXTURE_PATH", ""),
		},
	}

	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = EmbeddingNone
		if cfg.OpenAI.Enabled() {
			cfg.Embedding.Provider = EmbeddingOpenAI
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if c.Reasoning.ContextTopK < 1 {
		return fmt.Errorf("CONTEXT_TOP_K must be at least 1, got %d", c.Reasoning.ContextTopK)
	}
	if c.Reasoning.ContextMinScore <= 0 || c.Reasoning.ContextMinScore > 1 {
		return fmt.Errorf("CONTEXT_MIN_SCORE must be within (0, 1], got %v", c.Reasoning.ContextMinScore)
	}
	if c.Reasoning.StepTimeout <= 0 {
		return fmt.Errorf("STEP_TIMEOUT must be positive, got %s", c.Reasoning.StepTimeout)
	}
	if c.NodeID < 0 || c.NodeID > id.MaxNodeID {
		return fmt.Errorf("NODE_ID must be within [0, %d], got %d", id.MaxNodeID, c.NodeID)
	}
	if c.Embedding.Dimensions < 1 {
		return fmt.Errorf("EMBEDDING_DIMENSIONS must be positive, got %d", c.Embedding.Dimensions)
	}
	switch c.Embedding.Provider {
	case EmbeddingOpenAI:
		if !c.OpenAI.Enabled() {
			return fmt.Errorf("EMBEDDING_PROVIDER=openai requires OPENAI_API_KEY")
		}
	case EmbeddingHash, EmbeddingNone, "":
	default:
		return fmt.Errorf("EMBEDDING_PROVIDER must be openai, hash or none, got %q", c.Embedding.Provider)
	}
	if !c.ArangoDB.Enabled() && !c.Fixture.Enabled() {
		return fmt.Errorf("either ARANGO_URL/ARANGO_USERNAME/ARANGO_DATABASE or FIXTURE_PATH is required")
	}
	return nil
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c OTelConfig) Enabled() bool {
	return c.Endpoint != ""
}

func (c OpenAIConfig) Enabled() bool {
	return c.APIKey != ""
}

func (c ArangoDBConfig) Enabled() bool {
	return c.URL != "" && c.Username != "" && c.Database != ""
}

func (c CacheConfig) Enabled() bool {
	return c.RedisURL != ""
}

func (c FixtureConfig) Enabled() bool {
	return c.Path != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
