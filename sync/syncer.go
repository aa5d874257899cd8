// ABOUTME: Sync run orchestration from Edumate rosters to FSI patrons
// ABOUTME: Fetches both sides, reconciles, then upserts patrons under a failure policy
package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/patronsync/logging"
	"github.com/harperreed/patronsync/models"
)

// ContactSource lists the full current roster.
type ContactSource interface {
	FetchContacts(ctx context.Context) ([]models.RawContact, error)
}

// PatronStore lists and writes FSI patrons.
type PatronStore interface {
	FetchPatrons(ctx context.Context) ([]models.PatronRecord, error)
	UpsertPatron(ctx context.Context, payload models.PatronPayload) error
}

// Authenticator is implemented by sources and stores that must open a
// session before their first call.
type Authenticator interface {
	Authenticate(ctx context.Context) error
}

// RunRecorder keeps a history of sync runs. Recorder failures are logged and
// never fail the sync itself.
type RunRecorder interface {
	StartRun(ctx context.Context, run *models.SyncRun) error
	LogOutcome(ctx context.Context, entry *models.SyncLogEntry) error
	FinishRun(ctx context.Context, run *models.SyncRun) error
}

// ReviewFunc is shown the plan before any write and returns false to cancel.
type ReviewFunc func(ctx context.Context, plan *Plan) (bool, error)

// Options controls a Syncer.
type Options struct {
	Domain string
	Policy UpsertPolicy
	DryRun bool
	Review ReviewFunc
}

// Outcome is the result of one patron write.
type Outcome struct {
	Username string
	Action   string
	Err      error
}

// Report summarizes a run.
type Report struct {
	RunID    uuid.UUID
	Contacts int
	Patrons  int
	Plan     *Plan
	Outcomes []Outcome
	DryRun   bool
	Declined bool
}

// Failures counts failed patron writes.
func (r *Report) Failures() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Err != nil {
			n++
		}
	}
	return n
}

type Syncer struct {
	contacts ContactSource
	patrons  PatronStore
	recorder RunRecorder
	opts     Options
	now      func() time.Time
}

// NewSyncer creates a syncer. An empty policy means UpsertContinue.
func NewSyncer(contacts ContactSource, patrons PatronStore, opts Options) *Syncer {
	if opts.Policy == "" {
		opts.Policy = UpsertContinue
	}
	return &Syncer{
		contacts: contacts,
		patrons:  patrons,
		opts:     opts,
		now:      time.Now,
	}
}

// WithRecorder attaches a run history store.
func (s *Syncer) WithRecorder(r RunRecorder) *Syncer {
	s.recorder = r
	return s
}

// Plan fetches both sides and reconciles them without writing anything.
func (s *Syncer) Plan(ctx context.Context) (*Report, error) {
	report := &Report{RunID: uuid.New(), DryRun: true}
	if err := s.fetchAndReconcile(ctx, report); err != nil {
		return report, err
	}
	return report, nil
}

// Run performs one full sync. A fetch failure aborts before any write; an
// upsert failure aborts only under UpsertAbort.
func (s *Syncer) Run(ctx context.Context) (*Report, error) {
	log := logging.FromContext(ctx)
	report := &Report{RunID: uuid.New(), DryRun: s.opts.DryRun}

	run := &models.SyncRun{
		ID:        report.RunID,
		StartedAt: s.now(),
		Status:    models.RunStatusRunning,
		DryRun:    s.opts.DryRun,
	}
	s.startRun(ctx, run)

	if err := s.fetchAndReconcile(ctx, report); err != nil {
		s.finishRun(ctx, run, report, err)
		return report, err
	}

	if s.opts.DryRun {
		log.Info().Msg("Dry run, no patrons written")
		s.finishRun(ctx, run, report, nil)
		return report, nil
	}

	if s.opts.Review != nil && report.Plan.Total() > 0 {
		ok, err := s.opts.Review(ctx, report.Plan)
		if err != nil {
			err = fmt.Errorf("failed to review plan: %w", err)
			s.finishRun(ctx, run, report, err)
			return report, err
		}
		if !ok {
			log.Info().Msg("Sync cancelled at review")
			report.Declined = true
			s.finishRun(ctx, run, report, nil)
			return report, nil
		}
	}

	err := s.apply(ctx, run, report)
	s.finishRun(ctx, run, report, err)
	return report, err
}

func (s *Syncer) fetchAndReconcile(ctx context.Context, report *Report) error {
	log := logging.FromContext(ctx)

	if err := s.authenticate(ctx); err != nil {
		return err
	}

	log.Info().Msg("Getting Edumate contacts")
	contacts, err := s.contacts.FetchContacts(ctx)
	if err != nil {
		return asFetchError("edumate contacts", err)
	}
	report.Contacts = len(contacts)
	log.Info().Int("count", len(contacts)).Msg("Edumate contacts found")

	log.Info().Msg("Getting FSI patrons")
	patrons, err := s.patrons.FetchPatrons(ctx)
	if err != nil {
		return asFetchError("fsi patrons", err)
	}
	report.Patrons = len(patrons)
	log.Info().Int("count", len(patrons)).Msg("FSI patrons found")

	plan := Reconcile(contacts, patrons, s.opts.Domain)
	report.Plan = plan

	for _, d := range plan.Skipped {
		log.Debug().
			Str("identifier", d.Contact.Identifier).
			Str("kind", d.Contact.Kind.String()).
			Str("reason", d.Reason.String()).
			Msg("Skipping contact")
	}
	if plan.Gaps > 0 {
		log.Warn().Int("count", plan.Gaps).Msg("Staff contacts without a staff number")
	}
	log.Info().
		Int("create", len(plan.Creates)).
		Int("update", len(plan.Updates)).
		Int("unchanged", plan.Unchanged).
		Int("skipped", len(plan.Skipped)).
		Msg("Reconciled contacts")

	return nil
}

// authenticate opens both sessions before anything is fetched.
func (s *Syncer) authenticate(ctx context.Context) error {
	sides := []struct {
		name string
		side any
	}{
		{"edumate", s.contacts},
		{"fsi", s.patrons},
	}
	for _, side := range sides {
		auth, ok := side.side.(Authenticator)
		if !ok {
			continue
		}
		if err := auth.Authenticate(ctx); err != nil {
			return fmt.Errorf("failed to authenticate to %s: %w", side.name, err)
		}
	}
	return nil
}

func (s *Syncer) apply(ctx context.Context, run *models.SyncRun, report *Report) error {
	type write struct {
		action  string
		contact models.ContactRecord
	}
	writes := make([]write, 0, report.Plan.Total())
	for _, c := range report.Plan.Creates {
		writes = append(writes, write{models.ActionCreate, c})
	}
	for _, c := range report.Plan.Updates {
		writes = append(writes, write{models.ActionUpdate, c})
	}

	log := logging.FromContext(ctx)
	for _, w := range writes {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("sync interrupted: %w", err)
		}

		payload := Project(w.contact)
		err := s.patrons.UpsertPatron(ctx, payload)
		if err != nil {
			err = &UpsertError{Username: payload.Username, Err: err}
		}
		report.Outcomes = append(report.Outcomes, Outcome{Username: payload.Username, Action: w.action, Err: err})
		s.logOutcome(ctx, run, payload.Username, w.action, err)

		if err != nil {
			log.Error().Err(err).Str("username", payload.Username).Str("action", w.action).Msg("Failed to post FSI patron")
			if s.opts.Policy == UpsertAbort {
				return err
			}
			continue
		}
		log.Info().Str("username", payload.Username).Str("action", w.action).Msg("Post success")
	}
	return nil
}

func (s *Syncer) startRun(ctx context.Context, run *models.SyncRun) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.StartRun(ctx, run); err != nil {
		logging.FromContext(ctx).Warn().Err(err).Msg("Failed to record sync run start")
	}
}

func (s *Syncer) logOutcome(ctx context.Context, run *models.SyncRun, username, action string, err error) {
	if s.recorder == nil {
		return
	}
	entry := &models.SyncLogEntry{
		RunID:     run.ID,
		Username:  username,
		Action:    action,
		Succeeded: err == nil,
		LoggedAt:  s.now(),
	}
	if err != nil {
		entry.Error = err.Error()
	}
	if recErr := s.recorder.LogOutcome(ctx, entry); recErr != nil {
		logging.FromContext(ctx).Warn().Err(recErr).Str("username", username).Msg("Failed to record patron outcome")
	}
}

func (s *Syncer) finishRun(ctx context.Context, run *models.SyncRun, report *Report, runErr error) {
	finished := s.now()
	run.FinishedAt = &finished
	run.Contacts = report.Contacts
	run.Patrons = report.Patrons
	if report.Plan != nil {
		run.Creates = len(report.Plan.Creates)
		run.Updates = len(report.Plan.Updates)
		run.Skipped = len(report.Plan.Skipped)
	}
	run.Failures = report.Failures()

	switch {
	case runErr != nil:
		run.Status = models.RunStatusFailed
		run.ErrorMessage = runErr.Error()
	case run.Failures > 0:
		run.Status = models.RunStatusPartial
	default:
		run.Status = models.RunStatusSucceeded
	}

	if s.recorder == nil {
		return
	}
	// The run context may already be cancelled; the history row still needs closing.
	if err := s.recorder.FinishRun(context.WithoutCancel(ctx), run); err != nil {
		logging.FromContext(ctx).Warn().Err(err).Msg("Failed to record sync run result")
	}
}

func asFetchError(source string, err error) error {
	var fe *FetchError
	if errors.As(err, &fe) {
		return err
	}
	return &FetchError{Source: source, Err: err}
}
