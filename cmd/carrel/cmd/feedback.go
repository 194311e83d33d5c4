package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	carrelerrors "github.com/carrelhq/carrel/internal/errors"
)

type feedbackFlags struct {
	query       string
	exploratory bool
}

func newFeedbackCmd() *cobra.Command {
	flags := &feedbackFlags{}

	cmd := &cobra.Command{
		Use:   "feedback <chunk-id>",
		Short: "Mark a search result as useful",
		Long: `Feedback records that a result was useful. The chunk's trust
boost increases and cached results are invalidated so the next
search reflects it.

Feedback on an exploratory result is acknowledged but does not
change any score.

Example:
  carrel feedback 42 --query "definition of entropy"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFeedback(cmd.Context(), cmd, args[0], flags)
		},
	}

	cmd.Flags().StringVar(&flags.query, "query", "", "query the result was returned for")
	cmd.Flags().BoolVar(&flags.exploratory, "exploratory", false, "the result was an exploratory injection")

	return cmd
}

func runFeedback(ctx context.Context, cmd *cobra.Command, arg string, flags *feedbackFlags) error {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return carrelerrors.ValidationError(fmt.Sprintf("invalid chunk id %q", arg), err)
	}

	app, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Engine.Feedback(ctx, id, flags.query, flags.exploratory); err != nil {
		return err
	}

	if flags.exploratory {
		fmt.Fprintf(cmd.OutOrStdout(), "Noted exploratory feedback for chunk %d (scores unchanged)\n", id)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Boosted chunk %d\n", id)
	}
	return nil
}
