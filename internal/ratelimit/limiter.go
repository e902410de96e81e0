// Package ratelimit enforces a minimum spacing between requests to the same
// domain. The limiter, not the worker count, is the sole serialization point
// for request-issue rate: any number of workers may call Wait concurrently
// and no two of them will be released for one domain closer together than
// the configured interval. Distinct domains are limited independently.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter manages per-domain token buckets.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
}

// New creates a Limiter releasing at most one request per interval per
// domain. A non-positive interval disables limiting.
func New(interval time.Duration) *Limiter {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    limit,
	}
}

// Wait blocks until the domain's next request slot is available or the
// context ends.
func (l *Limiter) Wait(ctx context.Context, domain string) error {
	l.mu.Lock()
	limiter, ok := l.limiters[domain]
	if !ok {
		// Burst of 1 so a freshly created limiter admits the first
		// request immediately and spaces every one after it.
		limiter = rate.NewLimiter(l.limit, 1)
		l.limiters[domain] = limiter
	}
	l.mu.Unlock()

	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait for %s: %w", domain, err)
	}
	return nil
}
