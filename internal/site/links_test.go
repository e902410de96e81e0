package site

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractLinks_SplitsPagesAndResources(t *testing.T) {
	t.Parallel()

	body := []byte(`<html><body>
		<a href="/docs/intro">intro</a>
		<a href="reference.html">reference</a>
		<a href="/files/manual.pdf">manual</a>
		<a href="https://cdn.example.net/logo.png">external logo</a>
		<a href="#section">anchor</a>
		<a href="mailto:team@example.com">mail</a>
		<img src="/img/diagram.png">
		<img src="/img/diagram.png">
	</body></html>`)

	out, err := extractLinks(body, "https://docs.example.com/docs/")
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{
		"https://docs.example.com/docs/intro",
		"https://docs.example.com/docs/reference.html",
	}, out.pages)
	assert.ElementsMatch(t, []string{
		"https://docs.example.com/files/manual.pdf",
		"https://docs.example.com/img/diagram.png",
	}, out.resources)
	assert.Equal(t, 1, out.offDomain)
}

func TestExtractLinks_PageAssetsDropped(t *testing.T) {
	t.Parallel()

	// Anchors to stylesheets and scripts must not be crawled as pages or
	// downloaded as resources.
	body := []byte(`<html><body>
		<a href="/assets/site.css">styles</a>
		<a href="/assets/app.js">script</a>
		<a href="/docs/intro">intro</a>
	</body></html>`)

	out, err := extractLinks(body, "https://docs.example.com/")
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"https://docs.example.com/docs/intro"}, out.pages)
	assert.Empty(t, out.resources)
}

func TestExtractLinks_MediaNeverBecomesPage(t *testing.T) {
	t.Parallel()

	// An src without a known resource extension must not be queued as a
	// page either.
	body := []byte(`<html><body><img src="/render?id=42"></body></html>`)

	out, err := extractLinks(body, "https://docs.example.com/")
	require.NoError(t, err)

	assert.Empty(t, out.pages)
	assert.Empty(t, out.resources)
}

func TestExtractLinks_EmptyBody(t *testing.T) {
	t.Parallel()

	out, err := extractLinks(nil, "https://docs.example.com/")
	require.NoError(t, err)
	assert.Empty(t, out.pages)
	assert.Empty(t, out.resources)
	assert.Zero(t, out.offDomain)
}
