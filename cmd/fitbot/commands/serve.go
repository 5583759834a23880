package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/lightblue/fitbot-go/internal/browse"
	"github.com/lightblue/fitbot-go/internal/embedder"
	"github.com/lightblue/fitbot-go/internal/faq"
	"github.com/lightblue/fitbot-go/internal/logging"
	"github.com/lightblue/fitbot-go/internal/server"
	"github.com/lightblue/fitbot-go/internal/tracing"
)

// NewServeCmd constructs the `fitbot serve` command, which starts the HTTP
// API for interactive use.
func NewServeCmd() *cobra.Command {
	var host string
	var port int
	var csvPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the FIT Assistant HTTP server",
		Long: `Start the FIT Assistant HTTP server on localhost.

The server exposes POST /api/ask for free-text questions, POST /api/browse
for category navigation, readiness and liveness probes, and Prometheus
metrics on GET /metrics.

Examples:
  fitbot serve
  fitbot serve --port 9090
  MODEL_PROVIDER=openai fitbot serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			log.Info("serve starting", slog.String("provider", os.Getenv("MODEL_PROVIDER")))

			// Setup Langfuse tracing — opt-in, no-op if keys are absent.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			asst, qs, emb, cleanup, err := buildAssistant(ctx, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer cleanup()

			// The browse tree comes straight from the CSV — a missing or
			// uncategorised file only disables /api/browse, never /api/ask.
			var tree *browse.Tree
			if records, err := faq.LoadCSV(csvPath); err != nil {
				log.Warn("browse: could not load FAQ CSV, browse mode disabled",
					slog.String("path", csvPath),
					slog.Any("error", err),
				)
			} else {
				tree = browse.NewTree(records)
			}

			pingers := []server.Pinger{
				server.NewQdrantPinger(qs),
				server.NewEmbedderPinger(emb, embedder.Backend()),
			}

			srv, err := server.New(asst, tree, &server.Config{
				Host:               host,
				Port:               port,
				Logger:             log,
				Pingers:            pingers,
				APIKey:             os.Getenv("FITBOT_API_KEY"),
				SessionTokenBudget: sessionBudget(),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")
	cmd.Flags().StringVarP(&csvPath, "csv", "c", getEnvOrDefault("FAQ_CSV", "faq.csv"), "Path to the FAQ CSV file (for browse mode)")

	return cmd
}
