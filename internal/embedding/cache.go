package embedding

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"
)

// #region cached-embedder

// CachedEmbedder wraps an Embedder with a ristretto read-through cache
// keyed by the exact input text. Summaries are deterministic, so a state
// that has not changed never hits the provider twice.
type CachedEmbedder struct {
	inner Embedder
	cache *ristretto.Cache
}

// NewCachedEmbedder builds a cache sized to maxBytes of vector data.
func NewCachedEmbedder(inner Embedder, maxBytes int64) (*CachedEmbedder, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e5,
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("embed cache: %w", err)
	}
	return &CachedEmbedder{inner: inner, cache: cache}, nil
}

// Embed returns the cached vector when present, otherwise calls through
// and stores the result at a cost of its byte size.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.cache.Get(text); ok {
		if vec, ok := v.([]float32); ok {
			return vec, nil
		}
	}

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Set(text, vec, int64(len(vec)*4))
	return vec, nil
}

// Wait flushes pending cache writes. Only needed by tests.
func (c *CachedEmbedder) Wait() {
	c.cache.Wait()
}

// #endregion cached-embedder
