package embedder

import (
	"context"
	"fmt"
	"math"

	"github.com/lightblue/fitbot-go/internal/rag"
)

// UnitNormalizer wraps an Embedder and scales every output vector to unit
// Euclidean norm, which makes cosine similarity computable as a plain dot
// product. Build and query time must agree on whether normalization is
// enabled — a mismatch silently degrades similarity quality, so both sides
// read the same EMBEDDING_NORMALIZE flag through NewFromEnv.
type UnitNormalizer struct {
	// inner is the wrapped embedder producing raw vectors.
	inner rag.Embedder
}

// NewUnitNormalizer wraps inner with L2 unit normalization.
func NewUnitNormalizer(inner rag.Embedder) *UnitNormalizer {
	return &UnitNormalizer{inner: inner}
}

// Embed delegates to the wrapped embedder and normalizes each vector in
// place. A zero vector is returned unchanged — there is no direction to
// preserve.
func (n *UnitNormalizer) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := n.inner.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("normalize: %w", err)
	}
	for _, v := range vectors {
		normalize(v)
	}
	return vectors, nil
}

// normalize scales v to unit Euclidean norm in place.
func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := 1 / math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
}
