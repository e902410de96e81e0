package urlutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPagePath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		url  string
		want string
	}{
		{"root", "https://example.com/", filepath.Join("out", "example.com", "index.md")},
		{"bare host", "https://example.com", filepath.Join("out", "example.com", "index.md")},
		{"single segment", "https://example.com/about", filepath.Join("out", "example.com", "about.md")},
		{"nested", "https://example.com/docs/guide/install", filepath.Join("out", "example.com", "docs", "guide", "install.md")},
		{"html extension dropped", "https://example.com/docs/intro.html", filepath.Join("out", "example.com", "docs", "intro.md")},
		{"unsafe characters", "https://example.com/a b/c:d", filepath.Join("out", "example.com", "a-b", "c-d.md")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PagePath("out", tt.url)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPagePath_Deterministic(t *testing.T) {
	t.Parallel()

	first, err := PagePath("out", "https://example.com/docs/guide")
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := PagePath("out", "https://example.com/docs/guide")
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestPagePath_DistinctURLsDistinctPaths(t *testing.T) {
	t.Parallel()

	a, err := PagePath("out", "https://example.com/docs/setup")
	require.NoError(t, err)
	b, err := PagePath("out", "https://example.com/docs/teardown")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestFilesDir(t *testing.T) {
	t.Parallel()

	got := FilesDir("out", "example.com")
	assert.Equal(t, filepath.Join("out", "example.com", "files"), got)
}
