package rag

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// DefaultMinSim is the minimum cosine similarity a hit must reach to be
// returned when the caller passes no threshold (zero or negative).
const DefaultMinSim = 0.34

// DefaultTopK is the number of results returned when the caller passes 0.
const DefaultTopK = 4

// SimilarityRetriever implements Retriever by combining an Embedder and a
// VectorStore. The embedder must be configured identically to the one used
// at build time (same model, same normalization) — a mismatch silently
// degrades similarity quality without erroring.
type SimilarityRetriever struct {
	// embedder converts query text to a dense vector.
	embedder Embedder

	// store performs the vector similarity search.
	store VectorStore
}

// NewRetriever constructs a SimilarityRetriever from the given Embedder and
// VectorStore.
func NewRetriever(embedder Embedder, store VectorStore) (*SimilarityRetriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("rag: store must not be nil")
	}
	return &SimilarityRetriever{embedder: embedder, store: store}, nil
}

// Retrieve embeds the query, searches the index, converts cosine distance to
// similarity, and returns up to k hits with Score >= minSim ordered by score
// descending (ties keep the index-returned order).
//
// An empty query after trimming, or an empty index, short-circuits to an
// empty result without calling the embedder.
func (r *SimilarityRetriever) Retrieve(ctx context.Context, query string, k int, minSim float32) ([]ScoredHit, error) {
	if k <= 0 {
		k = DefaultTopK
	}
	if minSim <= 0 {
		minSim = DefaultMinSim
	}

	q := strings.TrimSpace(query)
	if q == "" {
		return nil, nil
	}

	n, err := r.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("rag: count failed: %w", err)
	}
	if n == 0 {
		return nil, nil
	}

	embeddings, err := r.embedder.Embed(ctx, []string{q})
	if err != nil {
		return nil, fmt.Errorf("rag: embedding query failed: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("rag: embedder returned empty result for query")
	}

	results, err := r.store.Query(ctx, embeddings[0], k)
	if err != nil {
		return nil, fmt.Errorf("rag: vector search failed: %w", err)
	}

	hits := make([]ScoredHit, 0, len(results))
	for _, res := range results {
		score := 1 - res.Distance
		if score < minSim {
			continue
		}
		hits = append(hits, ScoredHit{
			Text:  res.Text,
			Meta:  res.Metadata,
			Score: score,
		})
	}

	// The store already returns nearest-first, but re-sort defensively.
	// Stable so equal scores keep the index-returned order.
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}
