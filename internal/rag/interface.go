// Package rag defines the retrieval core: vector storage, embedding, and
// similarity retrieval over the FAQ knowledge base. Concrete backends
// (Qdrant, in-memory) satisfy these interfaces so the assistant layer never
// depends on a specific store.
package rag

import (
	"context"
)

// Document is the unit stored in the vector index. The index builder is the
// only writer; retrieval is read-only.
type Document struct {
	// ID is the build-local identifier (e.g. "csv-17"). IDs are unique
	// within one build but are reassigned on every rebuild — the collection
	// is recreated destructively, so IDs are not stable across builds.
	ID string

	// Text is the embedding input: the cleaned question and answer joined
	// by a blank line, so both phrasing and answer content influence
	// similarity.
	Text string

	// Metadata holds the record's question, source, and type tags.
	Metadata map[string]string
}

// SearchResult is one raw nearest-neighbour result returned by a VectorStore.
type SearchResult struct {
	// Text is the stored document text.
	Text string

	// Metadata is the stored document metadata.
	Metadata map[string]string

	// Distance is the cosine distance to the query vector
	// (1 − cosine similarity; lower is closer).
	Distance float32
}

// ScoredHit is one retrieval result after distance-to-similarity conversion
// and threshold filtering. Hits are request-local and never persisted.
type ScoredHit struct {
	// Text is the matched document text.
	Text string

	// Meta is the matched document metadata (question, source, type).
	Meta map[string]string

	// Score is the cosine similarity in [0, 1]; higher is better. A hit
	// below the caller's minimum similarity is never returned.
	Score float32
}

// Question returns the stored question metadata for the hit, or empty string.
func (h ScoredHit) Question() string {
	return h.Meta["question"]
}

// VectorStore is the interface for persisting and searching FAQ document
// embeddings. Implementations must be safe to call from multiple goroutines.
type VectorStore interface {
	// Recreate drops the collection if it exists and creates a fresh empty
	// one configured for cosine distance. Destructive: prior contents are
	// unrecoverable. Rebuilds must not run concurrently with live queries.
	Recreate(ctx context.Context) error

	// Upsert bulk-writes documents with their pre-computed embeddings.
	// The embeddings slice must be parallel to docs — embeddings[i] is the
	// vector for docs[i]. The write either fully succeeds or errors.
	Upsert(ctx context.Context, docs []Document, embeddings [][]float32) error

	// Query returns up to k nearest neighbours of the query embedding by
	// cosine distance. An empty collection yields an empty result, not an
	// error.
	Query(ctx context.Context, embedding []float32, k int) ([]SearchResult, error)

	// Count returns the number of stored documents. Used to fast-path
	// retrieval on an empty index without an embedding call.
	Count(ctx context.Context) (uint64, error)

	// Close releases any resources held by the store.
	Close() error
}

// Embedder is the interface for converting text into dense vector
// embeddings. All vectors from one instance have the same dimensionality,
// output order matches input order, and batch size never affects per-item
// values. Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Retriever is the high-level interface used by the assistant to fetch
// scored FAQ hits for a user query.
// Implementations must be safe to call from multiple goroutines.
type Retriever interface {
	// Retrieve returns up to k hits with Score >= minSim, ordered by score
	// descending. k <= 0 and minSim <= 0 fall back to DefaultTopK and
	// DefaultMinSim. An empty or whitespace query, or an empty index,
	// yields an empty result with no embedding call made.
	Retrieve(ctx context.Context, query string, k int, minSim float32) ([]ScoredHit, error)
}
