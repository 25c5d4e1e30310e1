package embedding

import (
	"math"
	"testing"

	"github.com/danielpatrickdp/identity-engine/internal/fault"
)

func TestBlendIdenticalInputsIsParallel(t *testing.T) {
	a := []float32{3, 0, 4}
	for _, w := range []float64{0, 0.2, 0.5, 0.8, 1} {
		out, err := Blend(a, a, w)
		if err != nil {
			t.Fatalf("Blend(w=%v): %v", w, err)
		}
		if sim := CosineSimilarity(out, a); math.Abs(sim-1.0) > 1e-6 {
			t.Fatalf("blend of identical vectors not parallel at w=%v: sim=%v", w, sim)
		}
	}
}

func TestBlendIsUnitLength(t *testing.T) {
	a := []float32{1, 2, 3, 4}
	b := []float32{-4, 3, -2, 1}
	out, err := Blend(a, b, 0.8)
	if err != nil {
		t.Fatalf("Blend: %v", err)
	}
	var sumSq float64
	for _, v := range out {
		sumSq += float64(v) * float64(v)
	}
	if math.Abs(math.Sqrt(sumSq)-1.0) > 1e-6 {
		t.Fatalf("expected unit length, got %v", math.Sqrt(sumSq))
	}
}

func TestBlendDimensionMismatch(t *testing.T) {
	_, err := Blend([]float32{1, 2}, []float32{1, 2, 3}, 0.8)
	if !fault.IsInvalid(err) {
		t.Fatalf("expected Validation error, got %v", err)
	}
	_, err = Blend(nil, []float32{1}, 0.8)
	if !fault.IsInvalid(err) {
		t.Fatalf("expected Validation error for empty input, got %v", err)
	}
}

func TestCosineSelfSimilarity(t *testing.T) {
	a := []float32{0.1, -0.7, 2.5, 3.3}
	if sim := CosineSimilarity(a, a); math.Abs(sim-1.0) > 1e-9 {
		t.Fatalf("expected 1.0, got %v", sim)
	}
}

func TestCosineDegenerateCases(t *testing.T) {
	zero := []float32{0, 0, 0}
	a := []float32{1, 2, 3}
	if sim := CosineSimilarity(zero, a); sim != 0 {
		t.Fatalf("zero magnitude must yield 0, got %v", sim)
	}
	if sim := CosineSimilarity(a, []float32{1, 2}); sim != 0 {
		t.Fatalf("dimension mismatch must yield 0, got %v", sim)
	}
}

func TestCosineOpposedVectors(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{-1, 0}
	if sim := CosineSimilarity(a, b); math.Abs(sim+1.0) > 1e-9 {
		t.Fatalf("expected -1.0, got %v", sim)
	}
}

func TestNormalizeZeroVectorPassesThrough(t *testing.T) {
	zero := []float32{0, 0}
	out := Normalize(zero)
	if out[0] != 0 || out[1] != 0 {
		t.Fatalf("zero vector changed: %v", out)
	}
}
