package cmd

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/carrelhq/carrel/internal/config"
	"github.com/carrelhq/carrel/internal/embed"
)

func newModelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List models offered by local providers",
		Long: `Models probes the configured Ollama and LM Studio endpoints and
lists every model found with its likely capabilities.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runModels(cmd.Context(), cmd)
		},
	}
	return cmd
}

func runModels(ctx context.Context, cmd *cobra.Command) error {
	cfg, err := config.Load(".")
	if err != nil {
		return err
	}

	models, err := embed.DiscoverModels(ctx, embed.DiscoveryConfig{
		OllamaHost:   cfg.Embeddings.OllamaHost,
		LMStudioHost: cfg.Embeddings.LMStudioHost,
	})
	if err != nil {
		return err
	}

	sort.Slice(models, func(i, j int) bool {
		if models[i].Provider != models[j].Provider {
			return models[i].Provider < models[j].Provider
		}
		return models[i].Name < models[j].Name
	})

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-10s %-40s %s\n", "PROVIDER", "MODEL", "CAPABILITIES")
	for _, m := range models {
		caps := m.Capabilities.List()
		names := make([]string, len(caps))
		for i, c := range caps {
			names[i] = string(c)
		}
		sort.Strings(names)
		fmt.Fprintf(out, "%-10s %-40s %s\n", m.Provider, m.Name, strings.Join(names, ","))
	}
	return nil
}
