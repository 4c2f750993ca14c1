package embedder

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	defaultCacheSize = 10000
	defaultCacheTTL  = 24 * time.Hour

	// Provider batch APIs cap input counts; requests are split accordingly.
	maxBatchSize = 100
)

// Cached wraps an Embedder with an LRU+TTL cache keyed by model and text.
// Only successful embeddings are cached, so transient failures retry on the
// next call.
type Cached struct {
	inner Embedder
	cache *lru.LRU[string, []float32]
}

// CacheOption configures a Cached embedder.
type CacheOption func(*cacheConfig)

type cacheConfig struct {
	size int
	ttl  time.Duration
}

// WithCacheSize sets the maximum number of cached embeddings.
func WithCacheSize(n int) CacheOption {
	return func(c *cacheConfig) {
		if n > 0 {
			c.size = n
		}
	}
}

// WithCacheTTL sets how long cached embeddings stay valid.
func WithCacheTTL(ttl time.Duration) CacheOption {
	return func(c *cacheConfig) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// NewCached wraps inner with an embedding cache.
func NewCached(inner Embedder, opts ...CacheOption) *Cached {
	cfg := cacheConfig{size: defaultCacheSize, ttl: defaultCacheTTL}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Cached{
		inner: inner,
		cache: lru.NewLRU[string, []float32](cfg.size, nil, cfg.ttl),
	}
}

func (c *Cached) Dimension() int { return c.inner.Dimension() }
func (c *Cached) Model() string  { return c.inner.Model() }

// EmbedBatch serves cached texts from memory and fetches only the misses,
// splitting them into provider-sized sub-batches. Results come back in input
// order.
func (c *Cached) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, len(texts))
	var (
		missTexts   []string
		missIndexes []int
	)
	for i, text := range texts {
		if vec, ok := c.cache.Get(cacheKey(c.inner.Model(), text)); ok {
			out[i] = cloneVector(vec)
			continue
		}
		missTexts = append(missTexts, text)
		missIndexes = append(missIndexes, i)
	}

	for start := 0; start < len(missTexts); start += maxBatchSize {
		end := start + maxBatchSize
		if end > len(missTexts) {
			end = len(missTexts)
		}
		vectors, err := c.inner.EmbedBatch(ctx, missTexts[start:end])
		if err != nil {
			return nil, err
		}
		for j, vec := range vectors {
			idx := missIndexes[start+j]
			out[idx] = vec
			c.cache.Add(cacheKey(c.inner.Model(), missTexts[start+j]), cloneVector(vec))
		}
	}
	return out, nil
}

// Purge drops all cached embeddings.
func (c *Cached) Purge() {
	c.cache.Purge()
}

// Len reports the number of cached embeddings.
func (c *Cached) Len() int {
	return c.cache.Len()
}

func cacheKey(model, text string) string {
	sum := md5.Sum([]byte(model + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

func cloneVector(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
