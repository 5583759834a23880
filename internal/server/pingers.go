package server

import (
	"context"
	"fmt"

	"github.com/lightblue/fitbot-go/internal/rag"
)

// QdrantPinger probes the vector store via its gRPC health check. It
// satisfies the Pinger interface and is used by GET /api/ready.
type QdrantPinger struct {
	// store is the vector store to probe.
	store *rag.QdrantStore
}

// NewQdrantPinger constructs a QdrantPinger for the given store.
func NewQdrantPinger(store *rag.QdrantStore) *QdrantPinger {
	return &QdrantPinger{store: store}
}

// Name returns the label used in readiness responses.
func (p *QdrantPinger) Name() string { return "qdrant" }

// Ping delegates to the store's health check RPC.
func (p *QdrantPinger) Ping(ctx context.Context) error {
	return p.store.Ping(ctx) //nolint:wrapcheck
}

// EmbedderPinger probes an embedding backend by embedding a single short
// string. The call is cheap for local backends and a fraction of a cent for
// hosted ones, and it verifies both connectivity and model availability.
type EmbedderPinger struct {
	// embedder is the backend to probe.
	embedder rag.Embedder
	// name identifies the backend in readiness responses (e.g. "ollama").
	name string
}

// NewEmbedderPinger constructs an EmbedderPinger for the given backend name.
func NewEmbedderPinger(e rag.Embedder, name string) *EmbedderPinger {
	return &EmbedderPinger{embedder: e, name: name}
}

// Name returns the backend label used in readiness responses.
func (p *EmbedderPinger) Name() string { return p.name }

// Ping embeds a single probe string and checks that a vector came back.
func (p *EmbedderPinger) Ping(ctx context.Context) error {
	vecs, err := p.embedder.Embed(ctx, []string{"ping"})
	if err != nil {
		return fmt.Errorf("embed failed: %w", err)
	}
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return fmt.Errorf("embed returned no vector")
	}
	return nil
}
