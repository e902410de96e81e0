package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFetcher struct {
	calls atomic.Int64
}

func (s *stubFetcher) Fetch(_ context.Context, url string) (Result, error) {
	s.calls.Add(1)
	return Result{URL: url, StatusCode: 200, Body: []byte("<html></html>")}, nil
}

func TestRobotsGate_DisallowedPath(t *testing.T) {
	t.Parallel()

	var robotsHits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			robotsHits.Add(1)
			_, _ = w.Write([]byte("User-agent: *\nDisallow: /private/\n"))
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	inner := &stubFetcher{}
	gate := NewRobotsGate(inner, "sitescribe")
	ctx := context.Background()

	_, err := gate.Fetch(ctx, srv.URL+"/private/page")
	assert.ErrorIs(t, err, ErrRobotsDisallowed)
	assert.Zero(t, inner.calls.Load())

	_, err = gate.Fetch(ctx, srv.URL+"/public/page")
	require.NoError(t, err)
	assert.Equal(t, int64(1), inner.calls.Load())

	// robots.txt is fetched once per host, not per URL.
	_, err = gate.Fetch(ctx, srv.URL+"/public/other")
	require.NoError(t, err)
	assert.Equal(t, int64(1), robotsHits.Load())
}

func TestRobotsGate_MissingRobotsAllowsAll(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	gate := NewRobotsGate(&stubFetcher{}, "sitescribe")
	allowed, err := gate.Allowed(context.Background(), srv.URL+"/anything")
	require.NoError(t, err)
	assert.True(t, allowed)
}
