package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func newExportCmd() *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export workspace chunks as CSV",
		Long: `Export writes every chunk record in the workspace as CSV,
embeddings excluded, to stdout or the given file.

Examples:
  carrel export > chunks.csv
  carrel export -o chunks.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.Context(), cmd, outPath)
		},
	}

	cmd.Flags().StringVarP(&outPath, "output", "o", "", "write to file instead of stdout")

	return cmd
}

func runExport(ctx context.Context, cmd *cobra.Command, outPath string) error {
	app, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	var w io.Writer = cmd.OutOrStdout()
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		w = f
	}

	if err := app.Store.ExportCSV(ctx, w); err != nil {
		return err
	}
	if outPath != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Exported workspace %q to %s\n",
			app.Config.Workspace.Name, outPath)
	}
	return nil
}
