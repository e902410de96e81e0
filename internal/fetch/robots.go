package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

// RobotsGate wraps a Fetcher and refuses URLs the target site's robots.txt
// disallows for our user agent. Each host's robots.txt is fetched once and
// cached; a missing or unreadable file allows everything.
type RobotsGate struct {
	inner     Fetcher
	userAgent string
	client    *http.Client

	mu    sync.Mutex
	cache map[string]*robotstxt.RobotsData // nil entry means allow-all
}

// NewRobotsGate wraps inner with robots.txt checks.
func NewRobotsGate(inner Fetcher, userAgent string) *RobotsGate {
	return &RobotsGate{
		inner:     inner,
		userAgent: userAgent,
		client:    &http.Client{Timeout: 10 * time.Second},
		cache:     make(map[string]*robotstxt.RobotsData),
	}
}

// Fetch checks robots.txt before delegating to the wrapped fetcher.
func (g *RobotsGate) Fetch(ctx context.Context, rawURL string) (Result, error) {
	allowed, err := g.Allowed(ctx, rawURL)
	if err != nil {
		return Result{}, err
	}
	if !allowed {
		return Result{}, fmt.Errorf("fetch %s: %w", rawURL, ErrRobotsDisallowed)
	}
	return g.inner.Fetch(ctx, rawURL)
}

// Allowed reports whether robots.txt permits fetching rawURL.
func (g *RobotsGate) Allowed(ctx context.Context, rawURL string) (bool, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false, fmt.Errorf("parse url: %w", err)
	}
	data := g.robotsFor(ctx, u)
	if data == nil {
		return true, nil
	}
	return data.TestAgent(u.Path, g.userAgent), nil
}

func (g *RobotsGate) robotsFor(ctx context.Context, u *url.URL) *robotstxt.RobotsData {
	key := u.Scheme + "://" + u.Host

	g.mu.Lock()
	data, cached := g.cache[key]
	g.mu.Unlock()
	if cached {
		return data
	}

	data = g.fetchRobots(ctx, key+"/robots.txt")

	g.mu.Lock()
	g.cache[key] = data
	g.mu.Unlock()
	return data
}

// fetchRobots returns nil (allow-all) whenever robots.txt cannot be fetched
// or parsed, matching crawler convention for absent robots files.
func (g *RobotsGate) fetchRobots(ctx context.Context, robotsURL string) *robotstxt.RobotsData {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil
	}
	if g.userAgent != "" {
		req.Header.Set("User-Agent", g.userAgent)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return nil
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
	if err != nil {
		return nil
	}
	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil
	}
	return data
}
