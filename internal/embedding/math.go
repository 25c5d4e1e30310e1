// Package embedding provides the pure vector operations and the embedding
// refresh path over an external provider.
package embedding

import (
	"math"

	"github.com/danielpatrickdp/identity-engine/internal/fault"
)

// DefaultPrimaryWeight is the identity share in a persona blend.
const DefaultPrimaryWeight = 0.8

// #region blend

// Blend computes the elementwise weighted sum of two vectors and
// renormalizes the result to unit length. Fails Validation on dimension
// mismatch or empty input.
func Blend(primary, secondary []float32, primaryWeight float64) ([]float32, error) {
	if len(primary) == 0 || len(secondary) == 0 {
		return nil, fault.Invalid("blend requires non-empty vectors")
	}
	if len(primary) != len(secondary) {
		return nil, fault.Invalid("dimension mismatch: %d vs %d", len(primary), len(secondary))
	}

	w := primaryWeight
	out := make([]float32, len(primary))
	for i := range primary {
		out[i] = float32(float64(primary[i])*w + float64(secondary[i])*(1-w))
	}
	return Normalize(out), nil
}

// #endregion blend

// #region cosine

// CosineSimilarity computes the cosine of the angle between two vectors.
// Returns 0 when either vector has zero magnitude or the dimensions
// mismatch (degenerate cases, not errors).
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return dot / denom
}

// #endregion cosine

// #region normalize

// Normalize scales the vector to unit length in place and returns it.
// Zero vectors pass through unchanged.
func Normalize(vec []float32) []float32 {
	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}
	if sumSq == 0 {
		return vec
	}
	norm := float32(math.Sqrt(sumSq))
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}

// #endregion normalize
