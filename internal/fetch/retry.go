package fetch

import (
	"context"
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	"time"
)

// RetryPolicy bounds how often a transient fetch failure is retried.
// Defaults: 3 attempts, 1s base delay doubling per attempt, capped at 30s,
// with jitter so concurrent workers don't retry in lockstep.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy returns the documented default schedule.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
	}
}

// ShouldRetry decides whether another attempt is warranted.
func (p RetryPolicy) ShouldRetry(err error, attempt int) bool {
	if err == nil {
		return false
	}
	if attempt >= p.MaxAttempts {
		return false
	}
	return Transient(err)
}

// Backoff returns the wait duration before attempt n (1-based).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	delay := float64(p.BaseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	half := time.Duration(delay / 2)
	return half + randomJitter(half)
}

// FetchWithRetry runs fn under the policy, sleeping between attempts.
func FetchWithRetry(ctx context.Context, f Fetcher, url string, policy RetryPolicy) (Result, int, error) {
	var lastErr error
	for attempt := 1; ; attempt++ {
		result, err := f.Fetch(ctx, url)
		if err == nil {
			return result, attempt, nil
		}
		lastErr = err
		if !policy.ShouldRetry(err, attempt) {
			return Result{}, attempt, lastErr
		}

		timer := time.NewTimer(policy.Backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return Result{}, attempt, fmt.Errorf("retry wait canceled: %w", ctx.Err())
		case <-timer.C:
		}
	}
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	bound := big.NewInt(int64(limit))
	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}
