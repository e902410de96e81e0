package job

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbaxter/sitescribe/internal/scheduler"
)

func queuedJob(t *testing.T, store *Store) Record {
	t.Helper()
	mgr := NewManager(store, nil)
	rec, err := mgr.Create(ConfigSnapshot{
		URLs:      []string{"https://example.com/"},
		OutputDir: t.TempDir(),
	})
	require.NoError(t, err)
	return rec
}

func TestRunner_Completes(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	rec := queuedJob(t, store)
	runner := NewRunner(store, nil)

	final, err := runner.Run(context.Background(), rec.ID, func(ctx context.Context) scheduler.Result {
		return scheduler.Result{TotalPages: 7, TotalFiles: 2}
	})
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, final.Status)
	assert.NotNil(t, final.EndTime)
	require.NotNil(t, final.Result)
	assert.Equal(t, 7, final.Result.TotalPages)
	assert.Empty(t, final.Error)
}

func TestRunner_FailsWhenNothingSucceeded(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	rec := queuedJob(t, store)
	runner := NewRunner(store, nil)

	final, err := runner.Run(context.Background(), rec.ID, func(ctx context.Context) scheduler.Result {
		return scheduler.Result{TotalFailed: 3}
	})
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, final.Status)
	assert.NotEmpty(t, final.Error)
}

func TestRunner_CancelledEndsStopped(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	rec := queuedJob(t, store)
	runner := NewRunner(store, nil)

	ctx, cancel := context.WithCancel(context.Background())
	final, err := runner.Run(ctx, rec.ID, func(ctx context.Context) scheduler.Result {
		cancel()
		<-ctx.Done()
		return scheduler.Result{TotalPages: 1, Stopped: true}
	})
	require.NoError(t, err)

	// Progress was made, but cancellation wins over completed.
	assert.Equal(t, StatusStopped, final.Status)
	assert.Empty(t, final.Error)
}

func TestRunner_RecordsPIDAndHeartbeat(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	rec := queuedJob(t, store)
	runner := NewRunner(store, nil)
	runner.interval = 5 * time.Millisecond

	var observed Record
	_, err := runner.Run(context.Background(), rec.ID, func(ctx context.Context) scheduler.Result {
		time.Sleep(50 * time.Millisecond)
		var getErr error
		observed, getErr = store.Get(rec.ID)
		require.NoError(t, getErr)
		return scheduler.Result{TotalPages: 1}
	})
	require.NoError(t, err)

	assert.Equal(t, StatusRunning, observed.Status)
	assert.Positive(t, observed.PID)
	assert.WithinDuration(t, time.Now(), observed.Heartbeat, time.Second)
}

func TestRunner_UnknownJob(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	runner := NewRunner(store, nil)

	_, err := runner.Run(context.Background(), "20260830_000000_nothere0", func(ctx context.Context) scheduler.Result {
		return scheduler.Result{}
	})
	assert.ErrorIs(t, err, ErrNotFound)
}
