package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// Cache stores embedding vectors keyed by content hash. A miss is
// (nil, false, nil); errors are reserved for backend failures.
type Cache interface {
	Get(ctx context.Context, key string) ([]float32, bool, error)
	Set(ctx context.Context, key string, vec []float32) error
}

// CacheKey derives a stable cache key from provider identity and text.
// The provider name carries the model, so a model change never serves
// stale vectors.
func CacheKey(provider, text string) string {
	sum := sha256.Sum256([]byte(provider + "\x00" + text))
	return "emb:" + hex.EncodeToString(sum[:])
}

// CachedProvider wraps a provider with a cache. Hits skip the provider
// entirely; cache backend failures fall through to the provider.
type CachedProvider struct {
	inner  Provider
	cache  Cache
	logger interface {
		Warn(msg string, args ...any)
	}
}

// NewCachedProvider wraps a provider. logger may be nil.
func NewCachedProvider(inner Provider, cache Cache, logger interface {
	Warn(msg string, args ...any)
}) *CachedProvider {
	return &CachedProvider{inner: inner, cache: cache, logger: logger}
}

func (p *CachedProvider) Embed(ctx context.Context, text string) (Result, error) {
	key := CacheKey(p.inner.Name(), text)

	vec, hit, err := p.cache.Get(ctx, key)
	if err != nil {
		p.warn("embedding cache read failed", "error", err)
	} else if hit && ValidVector(vec, p.inner.Dims()) {
		return Result{Vector: vec, Cached: true}, nil
	}

	result, err := p.inner.Embed(ctx, text)
	if err != nil {
		return Result{}, err
	}

	if err := p.cache.Set(ctx, key, result.Vector); err != nil {
		p.warn("embedding cache write failed", "error", err)
	}
	return result, nil
}

func (p *CachedProvider) Dims() int { return p.inner.Dims() }

func (p *CachedProvider) Name() string { return p.inner.Name() }

func (p *CachedProvider) warn(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}

type memoryCacheEntry struct {
	vec     []float32
	expires time.Time
}

// MemoryCache is a process-local TTL cache, suitable for single-node
// deployments and tests.
type MemoryCache struct {
	ttl time.Duration

	mu      sync.RWMutex
	entries map[string]memoryCacheEntry
}

// NewMemoryCache creates a cache. ttl zero means entries never expire.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{ttl: ttl, entries: make(map[string]memoryCacheEntry)}
}

func (c *MemoryCache) Get(ctx context.Context, key string) ([]float32, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !entry.expires.IsZero() && time.Now().After(entry.expires) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false, nil
	}
	return entry.vec, true, nil
}

func (c *MemoryCache) Set(ctx context.Context, key string, vec []float32) error {
	entry := memoryCacheEntry{vec: vec}
	if c.ttl > 0 {
		entry.expires = time.Now().Add(c.ttl)
	}
	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()
	return nil
}
