// ABOUTME: Status command listing recent sync runs
// ABOUTME: Reads the run history database and shows failed writes of the latest run
package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/harperreed/patronsync/tui"
)

func newStatusCommand(app *App) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show recent sync runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.runStatus(cmd.Context(), limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of runs to show")
	return cmd
}

func (a *App) runStatus(ctx context.Context, limit int) error {
	database, history, err := a.openHistory()
	if err != nil {
		return err
	}
	defer func() { _ = database.Close() }()

	runs, err := history.ListRuns(ctx, limit)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprint(a.Out, tui.RenderRuns(runs, time.Now()))

	if len(runs) == 0 || runs[0].Failures == 0 {
		return nil
	}
	failed, err := history.ListLogEntries(ctx, runs[0].ID, true)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprint(a.Out, tui.RenderFailures(failed))
	return nil
}
