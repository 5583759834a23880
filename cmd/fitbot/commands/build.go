package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/lightblue/fitbot-go/internal/embedder"
	"github.com/lightblue/fitbot-go/internal/faq"
	"github.com/lightblue/fitbot-go/internal/indexer"
	"github.com/lightblue/fitbot-go/internal/logging"
)

// NewBuildCmd constructs the `fitbot build` command, which loads the FAQ
// CSV, embeds every entry, and repopulates the vector index from scratch.
func NewBuildCmd() *cobra.Command {
	var csvPath string
	var batchSize int

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the FAQ vector index from the CSV knowledge base",
		Long: `Build (or rebuild) the Qdrant vector index from the FAQ CSV file.

The build is destructive: the collection is recreated from scratch on every
run, so it must not run while a server is answering questions against the
same collection.

Required environment variables:
  QDRANT_HOST          Qdrant server hostname (default: localhost)
  QDRANT_PORT          Qdrant gRPC port (default: 6334)
  QDRANT_COLLECTION    Collection name (default: fitbot-faq)
  MODEL_PROVIDER       Embedding backend: ollama, openai, azure (default: ollama)
  EMBEDDING_*          Backend-specific overrides (see README)

Examples:
  fitbot build --csv ./data/fit_faq.csv
  EMBEDDING_PROVIDER=openai fitbot build --csv faq.csv --batch 32`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()

			if err := embedder.Validate(log); err != nil {
				return fmt.Errorf("build: %w", err)
			}

			records, err := faq.LoadCSV(csvPath)
			if err != nil {
				return fmt.Errorf("build: %w", err)
			}
			log.Info("faq loaded", slog.String("path", csvPath), slog.Int("records", len(records)))

			emb, err := embedder.NewFromEnv()
			if err != nil {
				return fmt.Errorf("build: failed to initialise embedder: %w", err)
			}

			qs, err := buildQdrantStore(log)
			if err != nil {
				return fmt.Errorf("build: %w", err)
			}
			defer qs.Close()

			builder, err := indexer.NewBuilder(emb, qs, &indexer.Config{BatchSize: batchSize})
			if err != nil {
				return fmt.Errorf("build: %w", err)
			}

			report, err := builder.Build(ctx, records, func(msg string) {
				log.Info(msg)
			})
			if err != nil {
				return fmt.Errorf("build: %w", err)
			}

			fmt.Printf("indexed %d entries (%d skipped)\n", report.Indexed, report.Skipped)
			return nil
		},
	}

	cmd.Flags().StringVarP(&csvPath, "csv", "c", getEnvOrDefault("FAQ_CSV", "faq.csv"), "Path to the FAQ CSV file")
	cmd.Flags().IntVarP(&batchSize, "batch", "b", getEnvInt("EMBED_BATCH", 0), "Documents per embedding call (default 64)")

	return cmd
}
