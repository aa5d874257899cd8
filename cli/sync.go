// ABOUTME: Sync command pushing the Edumate roster into FSI patrons
// ABOUTME: Supports dry runs, interactive review, upsert policies and a repeating daemon mode
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/harperreed/patronsync/logging"
	"github.com/harperreed/patronsync/sync"
	"github.com/harperreed/patronsync/tui"
)

// MinSyncInterval is the shortest --every interval accepted.
const MinSyncInterval = 5 * time.Minute

type syncFlags struct {
	dryRun       bool
	review       bool
	every        time.Duration
	upsertPolicy string
}

func newSyncCommand(app *App) *cobra.Command {
	var flags syncFlags

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Create and update FSI patrons from the Edumate roster",
		Long: `Fetch every Edumate staff member and student, compare them with FSI
patrons and create or update patrons as needed.

With --every the sync repeats on an interval until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.runSync(cmd.Context(), flags)
		},
	}

	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "compute the changes without writing to FSI")
	cmd.Flags().BoolVar(&flags.review, "review", false, "review the changes interactively before writing")
	cmd.Flags().DurationVar(&flags.every, "every", 0, "repeat the sync on this interval (minimum 5m)")
	cmd.Flags().StringVar(&flags.upsertPolicy, "upsert-policy", "", "on a failed write: continue or abort (default from config)")
	return cmd
}

// validateInterval enforces the daemon interval floor. Zero means run once.
func validateInterval(every time.Duration) error {
	if every < 0 {
		return fmt.Errorf("interval must be positive, got %s", every)
	}
	if every > 0 && every < MinSyncInterval {
		return fmt.Errorf("interval must be at least %s, got %s", MinSyncInterval, every)
	}
	return nil
}

func (a *App) runSync(ctx context.Context, flags syncFlags) error {
	if err := a.cfg.Validate(); err != nil {
		return err
	}
	if err := validateInterval(flags.every); err != nil {
		return err
	}

	policyName := a.cfg.UpsertPolicy
	if flags.upsertPolicy != "" {
		policyName = flags.upsertPolicy
	}
	policy, err := sync.ParseUpsertPolicy(policyName)
	if err != nil {
		return err
	}

	opts := sync.Options{
		Domain: a.cfg.Domain,
		Policy: policy,
		DryRun: flags.dryRun,
	}
	if flags.review && !flags.dryRun {
		if flags.every > 0 {
			return errors.New("--review cannot be combined with --every")
		}
		if !logging.IsTerminal(os.Stdin) || !logging.IsTerminal(os.Stdout) {
			return errors.New("--review needs an interactive terminal")
		}
		opts.Review = tui.Reviewer()
	}

	database, history, err := a.openHistory()
	if err != nil {
		return err
	}
	defer func() { _ = database.Close() }()

	syncer := sync.NewSyncer(a.NewContactClient(a.cfg), a.NewPatronClient(a.cfg), opts).WithRecorder(history)

	if flags.every == 0 {
		return a.syncOnce(ctx, syncer)
	}
	return a.syncEvery(ctx, syncer, flags.every)
}

func (a *App) syncOnce(ctx context.Context, syncer *sync.Syncer) error {
	report, err := syncer.Run(ctx)
	if report != nil && report.Plan != nil {
		_, _ = fmt.Fprint(a.Out, tui.RenderReport(report))
	}
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}
	return nil
}

// syncEvery runs a sync immediately and then on every tick until ctx is
// cancelled. A failed run is logged and the loop keeps going.
func (a *App) syncEvery(ctx context.Context, syncer *sync.Syncer, every time.Duration) error {
	log := logging.FromContext(ctx)
	log.Info().Dur("interval", every).Msg("Starting sync daemon")

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		if err := a.syncOnce(ctx, syncer); err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Error().Err(err).Msg("Scheduled sync failed")
		}

		select {
		case <-ctx.Done():
			log.Info().Msg("Sync daemon stopped")
			return nil
		case <-ticker.C:
		}
	}

	log.Info().Msg("Sync daemon stopped")
	return nil
}
