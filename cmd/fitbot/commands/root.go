// Package commands defines all Cobra CLI commands for the fitbot binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/lightblue/fitbot-go/internal/audit"
	"github.com/lightblue/fitbot-go/internal/config"
	"github.com/lightblue/fitbot-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "fitbot",
		Short: "FIT Assistant — FAQ answering for the Food Intelligence Tool",
		Long: `FIT Assistant answers user questions about the Food Intelligence Tool
from a curated FAQ knowledge base.

Questions are matched against indexed FAQ entries by embedding similarity;
confident matches are answered by an LLM grounded in the retrieved entries,
and low-confidence questions are referred to the FIT Support Team instead
of being guessed at.

Model provider is selected via the MODEL_PROVIDER environment variable
or a YAML config file (~/.fitbot/config.yaml).
See 'fitbot --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.fitbot/config.yaml)")

	root.AddCommand(
		NewAskCmd(),
		NewBuildCmd(),
		NewBrowseCmd(),
		NewServeCmd(),
		NewCheckCmd(),
		NewVersionCmd(),
	)

	return root
}
