// Package fetch defines the fetcher capability the crawler consumes, with a
// static HTTP implementation and a browser-rendered one. The crawler stays
// ignorant of transport specifics: it sees Fetch(url) -> Result and nothing
// else.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Mode selects which fetcher implementation a job uses.
type Mode string

const (
	// ModeStatic fetches raw HTML over plain HTTP.
	ModeStatic Mode = "static"
	// ModeRendered drives a headless browser and returns the rendered DOM.
	ModeRendered Mode = "rendered"
)

// Result is the raw content of one fetched URL.
type Result struct {
	URL         string // final URL after redirects
	StatusCode  int
	ContentType string
	Body        []byte
	Duration    time.Duration
}

// Fetcher fetches a URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Result, error)
}

// ErrRobotsDisallowed marks URLs the site's robots.txt excludes for us.
var ErrRobotsDisallowed = errors.New("disallowed by robots.txt")

// StatusError reports a non-success HTTP response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
}

// Transient reports whether an error is worth retrying: timeouts, temporary
// network failures, 5xx responses, and 429 throttling. Context cancellation,
// other 4xx responses, and robots exclusions are permanent.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrRobotsDisallowed) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= 500 || statusErr.StatusCode == http.StatusTooManyRequests
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	// Connection resets, DNS hiccups and other transport errors surface as
	// plain errors from the HTTP client; treat them as retryable.
	return true
}
