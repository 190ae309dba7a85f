package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScraperStateDefaults(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store := NewScraperStore(db)
	ctx := context.Background()

	st, err := store.GetState(ctx, "E1")
	require.NoError(t, err)
	assert.Equal(t, "E1", st.EntityID)
	assert.True(t, st.Enabled)
	assert.False(t, st.IsRunning)
	assert.Equal(t, 0, st.LastScannedID)
}

func TestScraperRunLock(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store := NewScraperStore(db)
	ctx := context.Background()

	require.NoError(t, store.TryAcquireRun(ctx, "E1"))

	// Second acquisition is refused while the lock is held.
	err := store.TryAcquireRun(ctx, "E1")
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	st, err := store.GetState(ctx, "E1")
	require.NoError(t, err)
	assert.True(t, st.IsRunning)

	require.NoError(t, store.ReleaseRun(ctx, "E1"))
	require.NoError(t, store.TryAcquireRun(ctx, "E1"))
}

func TestScraperSaveProgressAndReset(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store := NewScraperStore(db)
	ctx := context.Background()

	st, err := store.GetState(ctx, "E1")
	require.NoError(t, err)

	st.LastScannedID = 4512
	st.ConsecutiveBlankCount = 1
	st.TotalScraped = 11
	st.TotalErrors = 2
	require.NoError(t, store.SaveProgress(ctx, st))

	st, err = store.GetState(ctx, "E1")
	require.NoError(t, err)
	assert.Equal(t, 4512, st.LastScannedID)
	assert.Equal(t, 11, st.TotalScraped)

	// SaveProgress must not touch the run lock.
	require.NoError(t, store.TryAcquireRun(ctx, "E1"))
	st.TotalScraped = 12
	require.NoError(t, store.SaveProgress(ctx, st))
	held, err := store.GetState(ctx, "E1")
	require.NoError(t, err)
	assert.True(t, held.IsRunning)
	require.NoError(t, store.ReleaseRun(ctx, "E1"))

	require.NoError(t, store.Reset(ctx, "E1"))
	st, err = store.GetState(ctx, "E1")
	require.NoError(t, err)
	assert.Equal(t, 0, st.LastScannedID)
	assert.Equal(t, 0, st.TotalScraped)
	assert.True(t, st.Enabled)
}

func TestScraperJobs(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store := NewScraperStore(db)
	ctx := context.Background()

	job, err := store.CreateJob(ctx, "E1")
	require.NoError(t, err)
	require.NotEmpty(t, job.ID)
	assert.Equal(t, JobQueued, job.Status)

	job.Status = JobCompleted
	job.NewGamesScraped = 3
	job.Blanks = 2
	job.TotalURLsProcessed = 5
	require.NoError(t, store.SaveJob(ctx, job))

	fetched, err := store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobCompleted, fetched.Status)
	assert.Equal(t, 3, fetched.NewGamesScraped)
	assert.Equal(t, 5, fetched.TotalURLsProcessed)

	_, err = store.GetJob(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
