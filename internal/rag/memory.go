package rag

import (
	"context"
	"math"
	"sort"
	"sync"
)

// MemoryStore is an exact-search, in-process VectorStore. It backs the
// "memory" store backend for local development and is the store used by
// package tests — no external Qdrant instance required. Search is a linear
// scan with exact cosine distance, which is fine at FAQ scale.
type MemoryStore struct {
	mu      sync.RWMutex
	docs    []Document
	vectors [][]float32
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Recreate discards all stored documents.
func (s *MemoryStore) Recreate(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = nil
	s.vectors = nil
	return nil
}

// Upsert appends documents and their embeddings.
func (s *MemoryStore) Upsert(_ context.Context, docs []Document, embeddings [][]float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, doc := range docs {
		s.docs = append(s.docs, doc)
		s.vectors = append(s.vectors, embeddings[i])
	}
	return nil
}

// Query scans all stored vectors and returns the k closest by cosine distance.
func (s *MemoryStore) Query(_ context.Context, embedding []float32, k int) ([]SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]SearchResult, 0, len(s.docs))
	for i, doc := range s.docs {
		md := make(map[string]string, len(doc.Metadata)+1)
		for key, v := range doc.Metadata {
			md[key] = v
		}
		md["id"] = doc.ID
		results = append(results, SearchResult{
			Text:     doc.Text,
			Metadata: md,
			Distance: 1 - cosineSimilarity(embedding, s.vectors[i]),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})
	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Count returns the number of stored documents.
func (s *MemoryStore) Count(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.docs)), nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

// cosineSimilarity returns the cosine similarity of a and b. Mismatched or
// zero-length vectors score 0.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
