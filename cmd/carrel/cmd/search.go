package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/carrelhq/carrel/internal/config"
	carrelerrors "github.com/carrelhq/carrel/internal/errors"
	"github.com/carrelhq/carrel/internal/output"
	"github.com/carrelhq/carrel/internal/search"
)

type searchFlags struct {
	limit         int
	rerank        bool
	diversify     bool
	explore       bool
	format        string
	deterministic bool
	contextRadius int
}

func newSearchCmd() *cobra.Command {
	flags := &searchFlags{}

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the workspace",
		Long: `Search runs hybrid retrieval over the workspace: semantic and
keyword search in parallel, fused by reciprocal rank with
intent-aware boosts.

Examples:
  carrel search "definition of entropy"
  carrel search "summary of chapter 3" -n 5 --rerank
  carrel search "backup procedure" --diversify --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, args[0], flags)
		},
	}

	cmd.Flags().IntVarP(&flags.limit, "limit", "n", search.DefaultLimit, "maximum results to return (default from config)")
	cmd.Flags().BoolVar(&flags.rerank, "rerank", false, "refine ordering with the cross-encoder (default from config)")
	cmd.Flags().BoolVar(&flags.diversify, "diversify", false, "apply diversity selection (experimental, default from config)")
	cmd.Flags().BoolVar(&flags.explore, "explore", false, "allow exploratory result injection (experimental, default from config)")
	cmd.Flags().StringVar(&flags.format, "format", "text", "output format: text or json")
	cmd.Flags().BoolVar(&flags.deterministic, "deterministic", false, "disable time-dependent scoring")
	cmd.Flags().IntVar(&flags.contextRadius, "context", 0, "also print N neighboring chunks around each result")

	return cmd
}

// options resolves the effective search options. An explicitly set flag
// wins; otherwise the config default applies.
func (f *searchFlags) options(cfg *config.Config, changed func(name string) bool) search.Options {
	opts := search.Options{
		Limit:                  f.limit,
		EnableRerank:           f.rerank,
		EnableDiversity:        f.diversify,
		EnableExploration:      f.explore,
		SemanticCacheThreshold: cfg.Retrieval.SemanticCacheThreshold,
		Deterministic:          f.deterministic,
	}
	if !changed("limit") && cfg.Retrieval.MaxResults > 0 {
		opts.Limit = cfg.Retrieval.MaxResults
	}
	if !changed("rerank") {
		opts.EnableRerank = cfg.Rerank.Enabled
	}
	if !changed("diversify") {
		opts.EnableDiversity = cfg.Retrieval.Diversify
	}
	if !changed("explore") {
		opts.EnableExploration = cfg.Retrieval.Exploration
	}
	return opts
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, flags *searchFlags) error {
	if flags.format != "text" && flags.format != "json" {
		return carrelerrors.ValidationError(
			fmt.Sprintf("unknown format %q (want text or json)", flags.format), nil)
	}

	app, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	var embedding []float32
	embedder, err := app.Embedder(ctx)
	if err == nil {
		embedding, err = embedder.Embed(ctx, query)
		if err != nil {
			slog.Warn("query_embedding_failed", slog.String("error", err.Error()))
			embedding = nil
		}
	} else {
		slog.Warn("embedder_unavailable", slog.String("error", err.Error()))
	}

	results, err := app.Engine.Search(ctx, query, embedding,
		flags.options(app.Config, cmd.Flags().Changed))
	if err != nil {
		return err
	}

	w := output.New(cmd.OutOrStdout())
	if flags.format == "json" {
		return w.ResultsJSON(results)
	}
	w.Results(query, results)

	if flags.contextRadius > 0 {
		for i, r := range results {
			passage, err := app.Store.AdjacentContext(ctx, r.Chunk.DocID, r.Chunk.ChunkIdx, flags.contextRadius)
			if err != nil {
				slog.Warn("context_fetch_failed",
					slog.Int64("chunk_id", r.Chunk.ID),
					slog.String("error", err.Error()))
				continue
			}
			w.Newline()
			w.Statusf("-- context for result %d --", i+1)
			w.Status(passage)
		}
	}
	return nil
}
