package urlutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercase host", "https://Example.COM/About", "https://example.com/About"},
		{"default https port", "https://example.com:443/a", "https://example.com/a"},
		{"default http port", "http://example.com:80/a", "http://example.com/a"},
		{"strips fragment", "https://example.com/a#section", "https://example.com/a"},
		{"strips query", "https://example.com/a?utm=1&b=2", "https://example.com/a"},
		{"trailing slash", "https://example.com/a/b/", "https://example.com/a/b"},
		{"root keeps slash", "https://example.com/", "https://example.com/"},
		{"bare host gets root", "https://example.com", "https://example.com/"},
		{"collapses dot segments", "https://example.com/a/../b/./c", "https://example.com/b/c"},
		{"keeps percent escapes", "https://example.com/a%20b/c", "https://example.com/a%20b/c"},
		{"keeps encoded slash", "https://example.com/a%2Fb", "https://example.com/a%2Fb"},
		{"escapes unicode once", "https://example.com/søk", "https://example.com/s%C3%B8k"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"https://Example.com:443/Docs/Guide/?q=1#top",
		"http://example.com",
		"https://example.com/a/b/../c/",
		"https://example.com/a%20b/c",
		"https://example.com/s%C3%B8k",
		"https://example.com/a%2Fb",
	}
	for _, in := range inputs {
		once, err := Normalize(in)
		require.NoError(t, err)
		twice, err := Normalize(once)
		require.NoError(t, err)
		assert.Equal(t, once, twice, "normalize(normalize(%q))", in)
	}
}

func TestNormalize_CollisionConsistent(t *testing.T) {
	t.Parallel()

	a, err := Normalize("https://Example.COM:443/docs/#intro")
	require.NoError(t, err)
	b, err := Normalize("https://example.com/docs?ref=nav")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestNormalize_Invalid(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "not a url", "ftp://example.com/x", "/relative/only"} {
		_, err := Normalize(in)
		assert.Error(t, err, "input %q", in)
	}
}

func TestResolve(t *testing.T) {
	t.Parallel()

	base := "https://example.com/docs/guide"

	got, ok := Resolve(base, "../api/index.html")
	require.True(t, ok)
	assert.Equal(t, "https://example.com/api/index.html", got)

	got, ok = Resolve(base, "https://other.com/page")
	require.True(t, ok)
	assert.Equal(t, "https://other.com/page", got)

	for _, href := range []string{"#top", "javascript:void(0)", "mailto:a@b.com", "tel:+123", ""} {
		_, ok := Resolve(base, href)
		assert.False(t, ok, "href %q should be skipped", href)
	}
}

func TestSameDomain(t *testing.T) {
	t.Parallel()

	assert.True(t, SameDomain("https://example.com/a", "http://EXAMPLE.com/b"))
	assert.True(t, SameDomain("https://example.com:8443/a", "https://example.com/b"))
	assert.False(t, SameDomain("https://example.com/a", "https://sub.example.com/b"))
	assert.False(t, SameDomain("https://example.com/a", "https://other.org/"))
}
