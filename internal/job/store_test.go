package job

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func sampleRecord(id string, status Status) Record {
	return Record{
		ID:        id,
		Status:    status,
		Config:    ConfigSnapshot{URLs: []string{"https://example.com/"}},
		StartTime: time.Now(),
		Heartbeat: time.Now(),
	}
}

func TestStore_SaveGetRoundTrip(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	rec := sampleRecord("20260830_120000_abcd1234", StatusQueued)
	require.NoError(t, store.Save(rec))

	got, err := store.Get(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, StatusQueued, got.Status)
	assert.Equal(t, rec.Config.URLs, got.Config.URLs)
}

func TestStore_GetNotFound(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	_, err := store.Get("20260830_120000_missing0")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_RejectsUnsafeIDs(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	_, err := store.Get("../escape")
	assert.ErrorIs(t, err, ErrNotFound)

	err = store.Save(Record{ID: "a/b"})
	assert.Error(t, err)
}

func TestStore_ListNewestFirst(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	old := sampleRecord("20260830_080000_aaaaaaaa", StatusCompleted)
	old.StartTime = time.Now().Add(-time.Hour)
	recent := sampleRecord("20260830_090000_bbbbbbbb", StatusQueued)
	require.NoError(t, store.Save(old))
	require.NoError(t, store.Save(recent))

	records, err := store.List()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, recent.ID, records[0].ID)
	assert.Equal(t, old.ID, records[1].ID)
}

func TestStore_StaleRunningDeadProcess(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	store.alive = func(int) bool { return false }

	rec := sampleRecord("20260830_100000_cccccccc", StatusRunning)
	rec.PID = 4242
	require.NoError(t, store.Save(rec))

	got, err := store.Get(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.NotNil(t, got.EndTime)
	assert.NotEmpty(t, got.Error)

	// The rewrite is durable: a fresh read sees failed too.
	again, err := store.Get(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, again.Status)
}

func TestStore_StaleRunningOldHeartbeat(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	store.alive = func(int) bool { return true }

	rec := sampleRecord("20260830_100100_dddddddd", StatusRunning)
	rec.PID = 4242
	rec.Heartbeat = time.Now().Add(-2 * staleGrace)
	require.NoError(t, store.Save(rec))

	got, err := store.Get(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
}

func TestStore_RunningWithFreshHeartbeatKept(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	store.alive = func(int) bool { return true }

	rec := sampleRecord("20260830_100200_eeeeeeee", StatusRunning)
	rec.PID = 4242
	require.NoError(t, store.Save(rec))

	got, err := store.Get(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, got.Status)
}

func TestStore_UpdateRejectsIllegalTransition(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	rec := sampleRecord("20260830_100300_ffffffff", StatusCompleted)
	require.NoError(t, store.Save(rec))

	_, err := store.Update(rec.ID, func(r *Record) error {
		r.Status = StatusRunning
		return nil
	})
	assert.Error(t, err)

	got, err := store.Get(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
}
