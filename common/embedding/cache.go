package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrCacheMiss = errors.New("embedding cache miss")

// Cache stores encoded vectors by key.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return data, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// CachedProvider is a read-through cache in front of another provider. Cache
// failures are logged and never fail an embedding.
type CachedProvider struct {
	inner Provider
	cache Cache
	ttl   time.Duration
}

func NewCachedProvider(inner Provider, cache Cache, ttl time.Duration) *CachedProvider {
	return &CachedProvider{inner: inner, cache: cache, ttl: ttl}
}

func (p *CachedProvider) Name() string {
	return p.inner.Name()
}

func (p *CachedProvider) Dimensions() int {
	return p.inner.Dimensions()
}

func (p *CachedProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	dims := p.inner.Dimensions()
	key := cacheKey(p.inner.Name(), dims, text)

	data, err := p.cache.Get(ctx, key)
	switch {
	case err == nil:
		if vec, ok := decodeVector(data); ok && (dims <= 0 || len(vec) == dims) {
			return vec, nil
		}
		slog.WarnContext(ctx, "discarding malformed cached embedding", "key", key)
	case !errors.Is(err, ErrCacheMiss):
		slog.WarnContext(ctx, "embedding cache read failed", "error", err)
	}

	vec, err := p.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if err := p.cache.Set(ctx, key, encodeVector(vec), p.ttl); err != nil {
		slog.WarnContext(ctx, "embedding cache write failed", "error", err)
	}
	return vec, nil
}

func cacheKey(model string, dimensions int, text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("embedding:%s:%d:%s", model, dimensions, hex.EncodeToString(sum[:]))
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(data []byte) ([]float32, bool) {
	if len(data) == 0 || len(data)%4 != 0 {
		return nil, false
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
	}
	return vec, true
}
