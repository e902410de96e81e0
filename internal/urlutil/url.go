// Package urlutil canonicalizes URLs for deduplication and maps them to
// output paths on disk.
package urlutil

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// ErrInvalidURL is returned for strings that cannot be used as crawl targets.
var ErrInvalidURL = fmt.Errorf("invalid url")

// skippedSchemes are href prefixes that never resolve to fetchable pages.
var skippedSchemes = []string{"#", "javascript:", "mailto:", "tel:", "data:"}

// Validate reports whether raw is an absolute http(s) URL with a host.
func Validate(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host in %q", ErrInvalidURL, raw)
	}
	return nil
}

// Normalize standardizes a URL so two spellings of the same resource compare
// equal. It lowercases the scheme and host, removes default ports, drops the
// query and fragment, collapses redundant path segments, and strips the
// trailing slash except at the root. Normalizing an already-normalized URL
// returns it unchanged.
func Normalize(raw string) (string, error) {
	if err := Validate(raw); err != nil {
		return "", err
	}
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	if u.Scheme == "http" {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}

	u.Fragment = ""
	u.RawQuery = ""
	u.User = nil

	p := u.EscapedPath()
	if p != "" {
		p = path.Clean(p)
	}
	if p == "" || p == "." {
		p = "/"
	}
	// Re-parse the cleaned escaped path so String() escapes it exactly
	// once. Assigning the escaped form to Path directly would make each
	// pass add another encoding layer.
	if ref, err := url.Parse(p); err == nil {
		u.Path = ref.Path
		u.RawPath = ref.RawPath
	} else {
		u.Path = path.Clean(u.Path)
		u.RawPath = ""
	}

	return u.String(), nil
}

// Resolve turns an href discovered on base into an absolute URL, or reports
// that the reference is not fetchable (anchors, javascript:, mailto: and
// similar pseudo links).
func Resolve(base, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", false
	}
	lower := strings.ToLower(href)
	for _, prefix := range skippedSchemes {
		if strings.HasPrefix(lower, prefix) {
			return "", false
		}
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	abs := baseURL.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	return abs.String(), true
}

// Domain returns the lowercased host of a URL, without any port.
func Domain(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", fmt.Errorf("%w: no host in %q", ErrInvalidURL, raw)
	}
	return host, nil
}

// SameDomain reports whether two URLs share a host. Port differences on the
// same host are treated as the same domain for crawl-scope purposes.
func SameDomain(a, b string) bool {
	da, err := Domain(a)
	if err != nil {
		return false
	}
	db, err := Domain(b)
	if err != nil {
		return false
	}
	return da == db
}
