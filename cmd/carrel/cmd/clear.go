package cmd

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newClearCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all chunks in the workspace",
		Long: `Clear removes every chunk, embedding and cached result from the
workspace. This cannot be undone.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClear(cmd.Context(), cmd, force)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "skip confirmation prompt")

	return cmd
}

func runClear(ctx context.Context, cmd *cobra.Command, force bool) error {
	app, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	if !force {
		count, err := app.Store.Count(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(),
			"This deletes all %d chunks in workspace %q. Continue? [y/N] ",
			count, app.Config.Workspace.Name)
		reader := bufio.NewReader(cmd.InOrStdin())
		line, _ := reader.ReadString('\n')
		answer := strings.ToLower(strings.TrimSpace(line))
		if answer != "y" && answer != "yes" {
			fmt.Fprintln(cmd.OutOrStdout(), "Aborted")
			return nil
		}
	}

	if err := app.Engine.Clear(ctx); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Cleared workspace %q\n", app.Config.Workspace.Name)
	return nil
}
