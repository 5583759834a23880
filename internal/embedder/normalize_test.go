package embedder

import (
	"context"
	"math"
	"testing"
)

// fixedEmbedder returns pre-set vectors regardless of input text.
type fixedEmbedder struct {
	vectors [][]float32
}

func (f *fixedEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = append([]float32(nil), f.vectors[i]...)
	}
	return out, nil
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func Test_UnitNormalizer_OutputsUnitVectors(t *testing.T) {
	t.Parallel()
	inner := &fixedEmbedder{vectors: [][]float32{
		{3, 4},
		{0.001, 0.002, 0.003},
		{-5, 12},
	}}
	n := NewUnitNormalizer(inner)

	got, err := n.Embed(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	for i, v := range got {
		if l := norm(v); math.Abs(l-1.0) > 1e-6 {
			t.Errorf("vector %d has norm %v, want 1.0", i, l)
		}
	}
	// Direction preserved: (3,4) → (0.6, 0.8).
	if math.Abs(float64(got[0][0])-0.6) > 1e-6 || math.Abs(float64(got[0][1])-0.8) > 1e-6 {
		t.Errorf("vector 0 = %v, want (0.6, 0.8)", got[0])
	}
}

func Test_UnitNormalizer_ZeroVectorUnchanged(t *testing.T) {
	t.Parallel()
	inner := &fixedEmbedder{vectors: [][]float32{{0, 0, 0}}}
	n := NewUnitNormalizer(inner)

	got, err := n.Embed(context.Background(), []string{"a"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	for _, x := range got[0] {
		if x != 0 {
			t.Errorf("zero vector was modified: %v", got[0])
		}
	}
}
