// ABOUTME: Tests for sync run history operations
// ABOUTME: Records runs and outcomes in in-memory SQLite and reads them back
package db

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/patronsync/models"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *RunsRepository {
	t.Helper()
	db, err := OpenDatabase(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewRunsRepository(db)
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	started := time.Date(2025, 4, 7, 9, 0, 0, 0, time.UTC)
	run := &models.SyncRun{ID: uuid.New(), StartedAt: started, Status: models.RunStatusRunning}
	require.NoError(t, repo.StartRun(ctx, run))

	got, err := repo.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusRunning, got.Status)
	assert.Nil(t, got.FinishedAt)

	finished := started.Add(2 * time.Minute)
	run.FinishedAt = &finished
	run.Status = models.RunStatusPartial
	run.Contacts, run.Patrons, run.Creates, run.Updates, run.Skipped, run.Failures = 10, 8, 2, 3, 1, 1
	require.NoError(t, repo.FinishRun(ctx, run))

	got, err = repo.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusPartial, got.Status)
	require.NotNil(t, got.FinishedAt)
	assert.True(t, finished.Equal(*got.FinishedAt))
	assert.Equal(t, 10, got.Contacts)
	assert.Equal(t, 8, got.Patrons)
	assert.Equal(t, 2, got.Creates)
	assert.Equal(t, 3, got.Updates)
	assert.Equal(t, 1, got.Skipped)
	assert.Equal(t, 1, got.Failures)
	assert.Empty(t, got.ErrorMessage)
}

func TestFinishUnknownRun(t *testing.T) {
	repo := newTestRepo(t)

	err := repo.FinishRun(context.Background(), &models.SyncRun{ID: uuid.New(), Status: models.RunStatusFailed})
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestGetRunNotFound(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.GetRun(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestInvalidRun(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	assert.ErrorIs(t, repo.StartRun(ctx, nil), ErrInvalidRun)
	assert.ErrorIs(t, repo.StartRun(ctx, &models.SyncRun{}), ErrInvalidRun)
	assert.ErrorIs(t, repo.LogOutcome(ctx, &models.SyncLogEntry{}), ErrInvalidRun)
}

func TestListRunsNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	base := time.Date(2025, 4, 7, 9, 0, 0, 0, time.UTC)
	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		run := &models.SyncRun{ID: uuid.New(), StartedAt: base.Add(time.Duration(i) * time.Hour)}
		require.NoError(t, repo.StartRun(ctx, run))
		ids = append(ids, run.ID)
	}

	runs, err := repo.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, ids[2], runs[0].ID)
	assert.Equal(t, ids[1], runs[1].ID)
}

func TestLogEntries(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	run := &models.SyncRun{ID: uuid.New()}
	require.NoError(t, repo.StartRun(ctx, run))

	at := time.Date(2025, 4, 7, 9, 0, 0, 0, time.UTC)
	entries := []*models.SyncLogEntry{
		{RunID: run.ID, Username: "a@org.edu", Action: models.ActionCreate, Succeeded: true, LoggedAt: at},
		{RunID: run.ID, Username: "b@org.edu", Action: models.ActionUpdate, Error: "fsi set_patron failed: nope", LoggedAt: at},
		{RunID: run.ID, Username: "c@org.edu", Action: models.ActionUpdate, Succeeded: true, LoggedAt: at.Add(time.Second)},
	}
	for _, e := range entries {
		require.NoError(t, repo.LogOutcome(ctx, e))
		_, err := ulid.Parse(e.ID)
		require.NoError(t, err, "log entry IDs are ULIDs")
	}

	all, err := repo.ListLogEntries(ctx, run.ID, false)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"a@org.edu", "b@org.edu", "c@org.edu"},
		[]string{all[0].Username, all[1].Username, all[2].Username})
	assert.True(t, all[0].Succeeded)

	failed, err := repo.ListLogEntries(ctx, run.ID, true)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "b@org.edu", failed[0].Username)
	assert.Equal(t, "fsi set_patron failed: nope", failed[0].Error)
	assert.Equal(t, run.ID, failed[0].RunID)
}
