package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_SpacesRequestsPerDomain(t *testing.T) {
	t.Parallel()

	const interval = 50 * time.Millisecond
	l := New(interval)
	ctx := context.Background()

	// Consume the initial token.
	require.NoError(t, l.Wait(ctx, "example.com"))

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "example.com"))
	if elapsed := time.Since(start); elapsed < interval-10*time.Millisecond {
		t.Errorf("second request released after %v, want >= %v", elapsed, interval)
	}
}

func TestLimiter_ConcurrentWorkersStillSpaced(t *testing.T) {
	t.Parallel()

	const interval = 30 * time.Millisecond
	const workers = 5
	l := New(interval)

	var mu sync.Mutex
	var releases []time.Time

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, l.Wait(context.Background(), "example.com"))
			mu.Lock()
			releases = append(releases, time.Now())
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, releases, workers)
	for i := 1; i < len(releases); i++ {
		for j := 0; j < i; j++ {
			gap := releases[i].Sub(releases[j])
			if gap < 0 {
				gap = -gap
			}
			// Allow slack for goroutine scheduling after release.
			assert.GreaterOrEqual(t, gap, interval/2,
				"releases %d and %d only %v apart", j, i, gap)
		}
	}
}

func TestLimiter_DomainsIndependent(t *testing.T) {
	t.Parallel()

	l := New(time.Second)
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "a.com"))

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "b.com"))
	assert.Less(t, time.Since(start), 100*time.Millisecond,
		"first request for an unrelated domain should not block")
}

func TestLimiter_ContextCancel(t *testing.T) {
	t.Parallel()

	l := New(time.Minute)
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, l.Wait(ctx, "a.com"))

	done := make(chan error, 1)
	go func() { done <- l.Wait(ctx, "a.com") }()
	cancel()

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("Wait did not observe context cancellation")
	}
}

func TestLimiter_ZeroIntervalNeverBlocks(t *testing.T) {
	t.Parallel()

	l := New(0)
	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 100; i++ {
		require.NoError(t, l.Wait(ctx, "a.com"))
	}
	assert.Less(t, time.Since(start), time.Second)
}
