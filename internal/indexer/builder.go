// Package indexer implements the offline index build pipeline: it takes FAQ
// records, embeds them in batches, and repopulates the vector store. The
// build is destructive — the collection is recreated from scratch on every
// run, so document IDs are only stable within one build. Invoked by the
// `fitbot build` CLI command; it must not run concurrently with live
// queries, since a reader racing a rebuild may observe an empty collection.
package indexer

import (
	"context"
	"fmt"

	"github.com/lightblue/fitbot-go/internal/faq"
	"github.com/lightblue/fitbot-go/internal/rag"
)

// DefaultBatchSize is the number of documents embedded per provider call
// when the config leaves BatchSize zero. Batching is an efficiency concern
// only — the embedder contract guarantees batch size never changes values.
const DefaultBatchSize = 64

// Config holds the configuration for the build pipeline.
type Config struct {
	// BatchSize is the number of documents per embedding call.
	// Defaults to DefaultBatchSize if zero.
	BatchSize int
}

// Report summarises a completed build.
type Report struct {
	// Indexed is the number of documents written to the collection.
	Indexed int

	// Skipped is the number of source records discarded because their
	// question or answer was empty after cleaning.
	Skipped int
}

// Builder orchestrates the recreate → embed → upsert flow.
type Builder struct {
	// embedder converts document text into dense vector embeddings.
	embedder rag.Embedder

	// store persists the embedded documents.
	store rag.VectorStore

	// cfg holds the resolved pipeline configuration.
	cfg *Config
}

// NewBuilder constructs a Builder from the provided dependencies and config.
func NewBuilder(embedder rag.Embedder, store rag.VectorStore, cfg *Config) (*Builder, error) {
	if embedder == nil {
		return nil, fmt.Errorf("indexer: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("indexer: store must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	return &Builder{embedder: embedder, store: store, cfg: cfg}, nil
}

// Build recreates the collection and populates it from records. The
// recreate happens first even when records is empty, leaving an empty
// collection rather than stale contents. Progress is reported via the
// optional progress callback.
//
// Document text is the cleaned question and answer joined by a blank line;
// IDs are sequential and build-local ("csv-1", "csv-2", …).
func (b *Builder) Build(ctx context.Context, records []faq.Record, progress func(msg string)) (*Report, error) {
	if progress == nil {
		progress = func(string) {}
	}

	if err := b.store.Recreate(ctx); err != nil {
		return nil, fmt.Errorf("indexer: recreate collection: %w", err)
	}
	progress("collection recreated")

	report := &Report{}
	docs := make([]rag.Document, 0, len(records))
	for _, rec := range records {
		// Records are cleaned at load time, but the builder is also fed
		// from other sources in tests — enforce the invariant here too.
		if rec.Question == "" || rec.Answer == "" {
			report.Skipped++
			continue
		}
		docs = append(docs, rag.Document{
			ID:   fmt.Sprintf("csv-%d", len(docs)+1),
			Text: rec.Question + "\n\n" + rec.Answer,
			Metadata: map[string]string{
				"question": rec.Question,
				"source":   rec.Source,
				"type":     "faq",
			},
		})
	}

	if len(docs) == 0 {
		progress("no valid records — collection left empty")
		return report, nil
	}

	embeddings := make([][]float32, 0, len(docs))
	for start := 0; start < len(docs); start += b.cfg.BatchSize {
		end := start + b.cfg.BatchSize
		if end > len(docs) {
			end = len(docs)
		}
		texts := make([]string, 0, end-start)
		for _, doc := range docs[start:end] {
			texts = append(texts, doc.Text)
		}

		vecs, err := b.embedder.Embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("indexer: embedding batch %d–%d failed: %w", start, end, err)
		}
		if len(vecs) != len(texts) {
			return nil, fmt.Errorf("indexer: batch %d–%d: expected %d embeddings, got %d", start, end, len(texts), len(vecs))
		}
		embeddings = append(embeddings, vecs...)
		progress(fmt.Sprintf("embedded %d/%d documents", len(embeddings), len(docs)))
	}

	if err := b.store.Upsert(ctx, docs, embeddings); err != nil {
		return nil, fmt.Errorf("indexer: upsert failed: %w", err)
	}

	report.Indexed = len(docs)
	progress(fmt.Sprintf("indexed %d documents", report.Indexed))
	return report, nil
}
