package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/carrelhq/carrel/internal/output"
)

func newStatsCmd() *cobra.Command {
	var recent int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show workspace and query statistics",
		Long: `Stats summarizes the workspace: chunk count, embedding
dimension, recorded queries and recent query telemetry.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd.Context(), cmd, recent)
		},
	}

	cmd.Flags().IntVar(&recent, "recent", 5, "recent telemetry rows to show")

	return cmd
}

func runStats(ctx context.Context, cmd *cobra.Command, recent int) error {
	app, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	chunks, err := app.Store.Count(ctx)
	if err != nil {
		return err
	}
	queries, err := app.log.Count(ctx)
	if err != nil {
		return err
	}

	w := output.New(cmd.OutOrStdout())
	w.Statusf("Workspace:            %s", app.Config.Workspace.Name)
	w.Statusf("Chunks:               %d", chunks)
	if dim := app.Store.Dimension(); dim > 0 {
		w.Statusf("Embedding dimension:  %d", dim)
	} else {
		w.Status("Embedding dimension:  (no chunks ingested)")
	}
	w.Statusf("Recorded queries:     %d", queries)

	if recent > 0 {
		entries, err := app.log.Recent(ctx, recent)
		if err != nil {
			return err
		}
		if len(entries) > 0 {
			w.Newline()
			w.Statusf("Last %d queries:", len(entries))
			for _, e := range entries {
				marker := ""
				if e.Exploration {
					marker = " [exploration]"
				}
				w.Statusf("  %-40s  %4dms  top %.4f  stability %.2f%s",
					output.Snippet(e.Query, 40), e.TotalMs, e.TopScore, e.Stability, marker)
			}
		}
	}
	return nil
}
