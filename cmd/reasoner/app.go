package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"basegraph.app/reasoner/common/arangodb"
	"basegraph.app/reasoner/common/embedding"
	"basegraph.app/reasoner/common/id"
	"basegraph.app/reasoner/common/logger"
	"basegraph.app/reasoner/common/otel"
	"basegraph.app/reasoner/core/config"
	"basegraph.app/reasoner/internal/store"
)

// app holds the collaborators shared by the commands.
type app struct {
	cfg       config.Config
	telemetry *otel.Telemetry
	embedder  embedding.Provider
	graph     store.KnowledgeGraph
	arango    arangodb.Client
	fixture   *store.FixtureStore
	closers   []func() error
}

// bootstrap loads config and brings up telemetry, logging and the id
// generator. Graph and embedder are opened separately because not every
// command needs them.
func bootstrap(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("setup otel: %w", err)
	}

	logger.Setup(cfg)

	if cfg.OTel.Enabled() {
		slog.DebugContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	}

	if err := id.Init(cfg.NodeID); err != nil {
		return nil, fmt.Errorf("init id generator: %w", err)
	}

	return &app{cfg: cfg, telemetry: telemetry}, nil
}

// openEmbedder builds the configured provider, wrapped in the Redis cache
// when REDIS_URL is set. A nil provider means keyword detection only.
func (a *app) openEmbedder(ctx context.Context) error {
	var provider embedding.Provider

	switch a.cfg.Embedding.Provider {
	case config.EmbeddingOpenAI:
		p, err := embedding.NewOpenAIProvider(embedding.OpenAIConfig{
			APIKey:     a.cfg.OpenAI.APIKey,
			BaseURL:    a.cfg.OpenAI.BaseURL,
			Model:      a.cfg.Embedding.Model,
			Dimensions: a.cfg.Embedding.Dimensions,
		})
		if err != nil {
			return fmt.Errorf("create openai embedder: %w", err)
		}
		provider = p
	case config.EmbeddingHash:
		p, err := embedding.NewHashProvider(a.cfg.Embedding.Dimensions)
		if err != nil {
			return fmt.Errorf("create hash embedder: %w", err)
		}
		provider = p
	default:
		slog.InfoContext(ctx, "no embedding provider configured, context detection uses keywords")
		return nil
	}

	if a.cfg.Cache.Enabled() {
		redisOpts, err := redis.ParseURL(a.cfg.Cache.RedisURL)
		if err != nil {
			return fmt.Errorf("parse redis url: %w", err)
		}
		redisClient := redis.NewClient(redisOpts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			_ = redisClient.Close()
			slog.WarnContext(ctx, "redis unavailable, embedding cache disabled", "error", err)
		} else {
			a.closers = append(a.closers, redisClient.Close)
			provider = embedding.NewCachedProvider(provider, embedding.NewRedisCache(redisClient), a.cfg.Cache.TTL)
			slog.DebugContext(ctx, "redis connected", "ttl", a.cfg.Cache.TTL)
		}
	}

	a.embedder = provider
	slog.InfoContext(ctx, "embedding provider ready", "provider", provider.Name())
	return nil
}

// openArango connects to the configured database without creating anything.
func (a *app) openArango(ctx context.Context) error {
	if !a.cfg.ArangoDB.Enabled() {
		return fmt.Errorf("ArangoDB is not configured")
	}

	client, err := arangodb.New(ctx, arangodb.Config{
		URL:      a.cfg.ArangoDB.URL,
		Username: a.cfg.ArangoDB.Username,
		Password: a.cfg.ArangoDB.Password,
		Database: a.cfg.ArangoDB.Database,
	})
	if err != nil {
		return fmt.Errorf("create arangodb client: %w", err)
	}
	a.arango = client
	a.closers = append(a.closers, client.Close)
	return nil
}

// openGraph selects the knowledge graph: the fixture catalog when one is
// configured, ArangoDB otherwise.
func (a *app) openGraph(ctx context.Context) error {
	if a.cfg.Fixture.Enabled() {
		fixture, err := store.OpenFixture(ctx, a.cfg.Fixture.Path, a.embedder)
		if err != nil {
			return err
		}
		a.fixture = fixture
		a.graph = fixture
		return nil
	}

	if err := a.openArango(ctx); err != nil {
		return err
	}
	if err := a.arango.Connect(ctx); err != nil {
		return fmt.Errorf("connect to arangodb: %w", err)
	}
	slog.InfoContext(ctx, "arangodb connected", "database", a.cfg.ArangoDB.Database)

	a.graph = store.NewGraphStore(a.arango, store.GraphStoreConfig{ApproxVector: a.cfg.ArangoDB.ApproxVector})
	return nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Warn("close failed", "error", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.telemetry.Shutdown(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "otel shutdown: %v\n", err)
	}
}
