// Package mock provides a deterministic embedder for tests and local runs
// without a provider. Vectors are derived from the text hash, so identical
// text always embeds identically.
package mock

import (
	"context"
	"hash/fnv"
	"math"
)

// #region mock-embedder

// Embedder generates hash-seeded pseudo-random unit vectors.
type Embedder struct {
	dimensions int
}

// New creates a mock embedder producing vectors of the given dimension.
func New(dimensions int) *Embedder {
	return &Embedder{dimensions: dimensions}
}

// Embed creates a deterministic embedding from the text hash using an LCG,
// normalized to unit length.
func (m *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, m.dimensions)
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(int64(seed)) / float32(math.MaxInt64)
	}

	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}
	if sumSq > 0 {
		norm := float32(math.Sqrt(sumSq))
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec, nil
}

// Dimensions returns the embedding size.
func (m *Embedder) Dimensions() int {
	return m.dimensions
}

// #endregion mock-embedder
