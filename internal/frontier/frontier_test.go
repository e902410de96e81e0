package frontier

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func task(url string) Task {
	return Task{RawURL: url, NormalizedURL: url, Domain: "example.com", DiscoveredAt: time.Now()}
}

func TestFrontier_FIFOOrder(t *testing.T) {
	t.Parallel()

	f := New(0)
	urls := []string{"https://example.com/a", "https://example.com/b", "https://example.com/c"}
	for _, u := range urls {
		require.True(t, f.Enqueue(task(u)))
	}

	for _, want := range urls {
		got, err := f.Dequeue()
		require.NoError(t, err)
		assert.Equal(t, want, got.NormalizedURL)
		f.MarkDone(true)
	}

	_, err := f.Dequeue()
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestFrontier_DuplicateEnqueueIgnored(t *testing.T) {
	t.Parallel()

	f := New(0)
	assert.True(t, f.Enqueue(task("https://example.com/a")))
	assert.False(t, f.Enqueue(task("https://example.com/a")))

	got, err := f.Dequeue()
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/a", got.NormalizedURL)

	// Dequeued URLs stay in the visited set for the life of the crawl.
	assert.False(t, f.Enqueue(task("https://example.com/a")))
	f.MarkDone(true)
	assert.False(t, f.Enqueue(task("https://example.com/a")))
}

func TestFrontier_ConcurrentDiscoveryNoDuplicates(t *testing.T) {
	t.Parallel()

	f := New(0)
	const workers = 16
	var accepted atomic.Int64

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if f.Enqueue(task("https://example.com/shared")) {
				accepted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), accepted.Load())
}

func TestFrontier_CapReservesSlots(t *testing.T) {
	t.Parallel()

	f := New(1)
	require.True(t, f.Enqueue(task("https://example.com/a")))
	require.True(t, f.Enqueue(task("https://example.com/b")))

	first, err := f.Dequeue()
	require.NoError(t, err)

	// A second worker must block: the only cap slot is reserved. Once the
	// first page succeeds it should observe ErrCapReached.
	done := make(chan error, 1)
	go func() {
		_, err := f.Dequeue()
		done <- err
	}()

	select {
	case err := <-done:
		t.Fatalf("second dequeue returned early with %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	_ = first
	f.MarkDone(true)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrCapReached)
	case <-time.After(time.Second):
		t.Fatal("second dequeue never returned")
	}
}

func TestFrontier_FailureReleasesCapSlot(t *testing.T) {
	t.Parallel()

	f := New(1)
	require.True(t, f.Enqueue(task("https://example.com/a")))
	require.True(t, f.Enqueue(task("https://example.com/b")))

	_, err := f.Dequeue()
	require.NoError(t, err)
	f.MarkDone(false)

	// The failed page released its slot, so /b still fits under the cap.
	got, err := f.Dequeue()
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/b", got.NormalizedURL)
	f.MarkDone(true)

	processed, failed := f.Stats()
	assert.Equal(t, 1, processed)
	assert.Equal(t, 1, failed)
}

func TestFrontier_ReleaseRecordsNoOutcome(t *testing.T) {
	t.Parallel()

	f := New(1)
	require.True(t, f.Enqueue(task("https://example.com/a")))
	require.True(t, f.Enqueue(task("https://example.com/b")))

	_, err := f.Dequeue()
	require.NoError(t, err)
	f.Release()

	// The abandoned task counts as neither processed nor failed, and its
	// cap slot is free again.
	processed, failed := f.Stats()
	assert.Zero(t, processed)
	assert.Zero(t, failed)

	got, err := f.Dequeue()
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/b", got.NormalizedURL)
	f.MarkDone(true)
}

func TestFrontier_EnqueueIgnoredAfterCap(t *testing.T) {
	t.Parallel()

	f := New(1)
	require.True(t, f.Enqueue(task("https://example.com/a")))
	_, err := f.Dequeue()
	require.NoError(t, err)
	f.MarkDone(true)

	assert.False(t, f.Enqueue(task("https://example.com/late")))
	_, err = f.Dequeue()
	assert.ErrorIs(t, err, ErrCapReached)
}

func TestFrontier_DequeueWaitsForInflightDiscovery(t *testing.T) {
	t.Parallel()

	f := New(0)
	require.True(t, f.Enqueue(task("https://example.com/a")))

	_, err := f.Dequeue()
	require.NoError(t, err)

	// Queue is empty but one task is in flight: a peer must wait, then
	// receive the link the in-flight page discovers.
	got := make(chan Task, 1)
	go func() {
		task, err := f.Dequeue()
		if err == nil {
			got <- task
		}
		close(got)
	}()

	time.Sleep(20 * time.Millisecond)
	require.True(t, f.Enqueue(task("https://example.com/b")))
	f.MarkDone(true)

	select {
	case task, ok := <-got:
		require.True(t, ok, "peer dequeue failed")
		assert.Equal(t, "https://example.com/b", task.NormalizedURL)
	case <-time.After(time.Second):
		t.Fatal("waiting dequeue never woke up")
	}
}

func TestFrontier_CloseWakesWaiters(t *testing.T) {
	t.Parallel()

	f := New(0)
	require.True(t, f.Enqueue(task("https://example.com/a")))
	_, err := f.Dequeue()
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := f.Dequeue()
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	f.Close()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("dequeue not released by Close")
	}
}

func TestFrontier_WorkerPoolDrainsWithoutDuplicates(t *testing.T) {
	t.Parallel()

	// Simulated site: every page links to all others, forming cycles.
	pages := []string{"/", "/a", "/b", "/c", "/d", "/e"}
	links := func(string) []string { return pages }

	f := New(0)
	require.True(t, f.Enqueue(task("https://example.com/")))

	var fetched sync.Map
	var fetchCount atomic.Int64

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				got, err := f.Dequeue()
				if err != nil {
					if !errors.Is(err, ErrExhausted) {
						t.Errorf("unexpected dequeue error: %v", err)
					}
					return
				}
				if _, dup := fetched.LoadOrStore(got.NormalizedURL, true); dup {
					t.Errorf("url fetched twice: %s", got.NormalizedURL)
				}
				fetchCount.Add(1)
				for _, p := range links(got.NormalizedURL) {
					f.Enqueue(task("https://example.com" + p))
				}
				f.MarkDone(true)
			}
		}()
	}
	wg.Wait()

	processed, failed := f.Stats()
	assert.Equal(t, int(fetchCount.Load()), processed)
	assert.Zero(t, failed)
}
