// Package cmd provides the CLI commands for Carrel.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/carrelhq/carrel/internal/logging"
	"github.com/carrelhq/carrel/pkg/version"
)

var (
	debugMode      bool
	workspaceFlag  string
	dataDirFlag    string
	loggingCleanup func()
)

// NewRootCmd creates the root command for the carrel CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "carrel",
		Short: "Local hybrid retrieval engine for personal document knowledge bases",
		Long: `Carrel stores chunk-level text embeddings and answers queries by
fusing semantic and keyword retrieval, with optional cross-encoder
reranking, diversity selection and exploration.

It runs entirely locally against Ollama or LM Studio.`,
		Version:       version.Short(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("carrel version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.carrel/logs/")
	cmd.PersistentFlags().StringVarP(&workspaceFlag, "workspace", "w", "", "Workspace name (overrides config)")
	cmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "Data directory (overrides config)")

	cmd.PersistentPreRunE = setupLogging
	cmd.PersistentPostRun = func(_ *cobra.Command, _ []string) {
		if loggingCleanup != nil {
			loggingCleanup()
			loggingCleanup = nil
		}
	}

	cmd.AddCommand(newIngestCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newFeedbackCmd())
	cmd.AddCommand(newExportCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newClearCmd())
	cmd.AddCommand(newModelsCmd())
	cmd.AddCommand(newWorkspacesCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func setupLogging(_ *cobra.Command, _ []string) error {
	cfg := logging.DefaultConfig()
	if debugMode {
		cfg = logging.DebugConfig()
	}
	logger, cleanup, err := logging.Setup(cfg)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
