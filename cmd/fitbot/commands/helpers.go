package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/lightblue/fitbot-go/internal/assistant"
	"github.com/lightblue/fitbot-go/internal/embedder"
	"github.com/lightblue/fitbot-go/internal/gate"
	"github.com/lightblue/fitbot-go/internal/llm"
	"github.com/lightblue/fitbot-go/internal/provider"
	"github.com/lightblue/fitbot-go/internal/qlog"
	"github.com/lightblue/fitbot-go/internal/rag"
	"github.com/lightblue/fitbot-go/internal/store"
)

// defaultCollection is the Qdrant collection name when QDRANT_COLLECTION
// is unset.
const defaultCollection = "fitbot-faq"

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the named environment variable parsed as an int, or
// fallback if unset or unparseable.
func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// getEnvFloat32 returns the named environment variable parsed as a float32,
// or fallback if unset or unparseable.
func getEnvFloat32(key string, fallback float32) float32 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 32)
	if err != nil {
		return fallback
	}
	return float32(f)
}

// buildQdrantStore connects to Qdrant using the environment configuration.
// The vector size must match the embedding backend — EMBEDDING_DIMENSIONS
// overrides the backend default.
func buildQdrantStore(log *slog.Logger) (*rag.QdrantStore, error) {
	host := getEnvOrDefault("QDRANT_HOST", "localhost")
	port := getEnvInt("QDRANT_PORT", 6334)
	collection := getEnvOrDefault("QDRANT_COLLECTION", defaultCollection)
	vectorSize := getEnvInt("EMBEDDING_DIMENSIONS", embedder.DefaultDimensions(embedder.Backend()))

	qs, err := rag.NewQdrantStore(&rag.QdrantConfig{
		Host:       host,
		Port:       port,
		Collection: collection,
		VectorSize: uint64(vectorSize), //nolint:gosec // dimensions are bounded
		APIKey:     os.Getenv("QDRANT_API_KEY"),
		UseTLS:     os.Getenv("QDRANT_TLS") == "true",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant at %s:%d: %w", host, port, err)
	}
	log.Info("qdrant store ready",
		slog.String("host", host),
		slog.Int("port", port),
		slog.String("collection", collection),
	)
	return qs, nil
}

// buildGenerator constructs the answer generator: the primary chat model,
// plus an optional smart model for escalation when OPENAI_SMART_MODEL names
// a different model and ALLOW_ESCALATE is not disabled.
func buildGenerator(ctx context.Context, log *slog.Logger) (llm.Generator, error) {
	providerCfg := provider.ConfigFromEnv()
	primary, err := provider.New(ctx, providerCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise model provider: %w", err)
	}
	log.Info("provider initialised",
		slog.String("provider", string(providerCfg.Backend)),
		slog.String("model", providerCfg.Model),
	)

	cfg := &llm.Config{
		Primary:     primary,
		PrimaryName: providerCfg.Model,
	}

	allowEscalate := getEnvOrDefault("ALLOW_ESCALATE", "1") == "1"
	if allowEscalate && providerCfg.SmartModel != "" && providerCfg.SmartModel != providerCfg.Model {
		smartCfg := *providerCfg
		smartCfg.Model = providerCfg.SmartModel
		smart, err := provider.New(ctx, &smartCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialise smart model: %w", err)
		}
		cfg.Smart = smart
		cfg.SmartName = smartCfg.Model
		log.Info("escalation enabled", slog.String("smart_model", smartCfg.Model))
	}

	return llm.NewChatGenerator(cfg) //nolint:wrapcheck
}

// buildAssistant wires the full answering pipeline from environment
// configuration: embedder, vector store, retriever, generator, audit logs,
// and optional conversation history. The returned cleanup closes everything
// the pipeline opened.
func buildAssistant(ctx context.Context, log *slog.Logger) (*assistant.Assistant, *rag.QdrantStore, rag.Embedder, func(), error) {
	emb, err := embedder.NewFromEnv()
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}

	qs, err := buildQdrantStore(log)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	cleanup := func() { _ = qs.Close() }

	retriever, err := rag.NewRetriever(emb, qs)
	if err != nil {
		cleanup()
		return nil, nil, nil, nil, fmt.Errorf("failed to build retriever: %w", err)
	}

	gen, err := buildGenerator(ctx, log)
	if err != nil {
		cleanup()
		return nil, nil, nil, nil, err
	}

	logDir := getEnvOrDefault("FITBOT_LOG_DIR", "logs")
	qaLog, err := qlog.New(logDir)
	if err != nil {
		cleanup()
		return nil, nil, nil, nil, fmt.Errorf("failed to open audit logs: %w", err)
	}

	historyStore, closeHistory := openHistory(log)
	if closeHistory != nil {
		prev := cleanup
		cleanup = func() { closeHistory(); prev() }
	}

	asst, err := assistant.New(&assistant.Config{
		Retriever: retriever,
		Generator: gen,
		Log:       qaLog,
		History:   historyStore,
		Gate: gate.Config{
			MinSim:         getEnvFloat32("MIN_SIM", 0),
			SupportContact: os.Getenv("SUPPORT_EMAIL"),
		},
		TopK:             getEnvInt("TOP_K", 0),
		MaxContextChars:  getEnvInt("MAX_CTX_CHARS", 0),
		DailyTokenBudget: getEnvInt("DAILY_TOKEN_BUDGET", 0),
	})
	if err != nil {
		cleanup()
		return nil, nil, nil, nil, fmt.Errorf("failed to build assistant: %w", err)
	}

	return asst, qs, emb, cleanup, nil
}

// openHistory opens the conversation history store. FITBOT_HISTORY_DB
// overrides the default path (~/.fitbot/history.db); set it to "disabled"
// to turn persistence off. Failures degrade to no history rather than
// aborting startup.
func openHistory(log *slog.Logger) (store.ConversationStore, func()) {
	dbPath := os.Getenv("FITBOT_HISTORY_DB")
	if dbPath == "disabled" {
		log.Info("history: disabled via FITBOT_HISTORY_DB=disabled")
		return nil, nil
	}
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			log.Warn("history: could not resolve default DB path, disabling", slog.Any("error", err))
			return nil, nil
		}
	}
	hs, err := store.Open(dbPath)
	if err != nil {
		log.Warn("history: failed to open store, disabling", slog.Any("error", err))
		return nil, nil
	}
	log.Info("history: store opened", slog.String("path", dbPath))
	return hs, func() { _ = hs.Close() }
}

// sessionBudget returns the per-session token limit from the environment.
func sessionBudget() int {
	return getEnvInt("SESSION_TOKEN_BUDGET", 0)
}
