package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/carrelhq/carrel/internal/config"
	"github.com/carrelhq/carrel/internal/store"
)

func newWorkspacesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workspaces",
		Short: "List workspaces in the data directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(".")
			if err != nil {
				return err
			}
			if dataDirFlag != "" {
				cfg.Workspace.DataDir = dataDirFlag
			}

			names, err := store.ListWorkspaces(cfg.Workspace.DataDir)
			if err != nil {
				return err
			}
			if len(names) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No workspaces in %s\n", cfg.Workspace.DataDir)
				return nil
			}
			for _, name := range names {
				marker := ""
				if name == cfg.Workspace.Name {
					marker = " (current)"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s%s\n", name, marker)
			}
			return nil
		},
	}
	return cmd
}
