package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lightblue/fitbot-go/internal/embedder"
	"github.com/lightblue/fitbot-go/internal/faq"
	"github.com/lightblue/fitbot-go/internal/logging"
	"github.com/lightblue/fitbot-go/internal/provider"
)

// NewCheckCmd constructs the `fitbot check` command, a preflight that
// verifies the deployment configuration before the first real question.
func NewCheckCmd() *cobra.Command {
	var csvPath string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify configuration, model provider, and vector store connectivity",
		Long: `Run preflight checks against the current configuration:

  - the FAQ CSV parses and has usable entries
  - the embedding configuration is valid for the selected backend
  - the chat model provider accepts its credentials
  - Qdrant is reachable and reports the indexed entry count

Exit status is non-zero when any check fails, so this slots into deploy
pipelines ahead of 'fitbot serve'.

Examples:
  fitbot check --csv ./data/fit_faq.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			failed := false

			records, err := faq.LoadCSV(csvPath)
			switch {
			case err != nil:
				fmt.Printf("FAIL faq: %v\n", err)
				failed = true
			case len(records) == 0:
				fmt.Printf("FAIL faq: %s has no usable entries\n", csvPath)
				failed = true
			default:
				fmt.Printf("ok   faq: %d entries in %s\n", len(records), csvPath)
			}

			if err := embedder.Validate(log); err != nil {
				fmt.Printf("FAIL embedder: %v\n", err)
				failed = true
			} else {
				fmt.Printf("ok   embedder: backend %s\n", embedder.Backend())
			}

			providerCfg := provider.ConfigFromEnv()
			if _, err := provider.New(ctx, providerCfg); err != nil {
				fmt.Printf("FAIL provider: %v\n", err)
				failed = true
			} else {
				fmt.Printf("ok   provider: %s model %s\n", providerCfg.Backend, providerCfg.Model)
			}

			if qs, err := buildQdrantStore(log); err != nil {
				fmt.Printf("FAIL qdrant: %v\n", err)
				failed = true
			} else {
				defer qs.Close()
				if err := qs.Ping(ctx); err != nil {
					fmt.Printf("FAIL qdrant: %v\n", err)
					failed = true
				} else if count, err := qs.Count(ctx); err != nil {
					fmt.Printf("FAIL qdrant: %v\n", err)
					failed = true
				} else if count == 0 {
					fmt.Printf("WARN qdrant: collection is empty — run 'fitbot build' first\n")
				} else {
					fmt.Printf("ok   qdrant: %d entries indexed\n", count)
				}
			}

			if failed {
				os.Exit(1)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&csvPath, "csv", "c", getEnvOrDefault("FAQ_CSV", "faq.csv"), "Path to the FAQ CSV file")

	return cmd
}
