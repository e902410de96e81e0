package urlutil

import (
	"net/url"
	"path/filepath"
	"strings"

	"github.com/kennygrant/sanitize"
)

// PagePath maps a page URL to the markdown file it should be written to.
// The layout mirrors the URL path under {outputDir}/{domain}: each path
// segment becomes a sanitized directory, the final segment becomes
// {slug}.md, and the root (or any directory-like path) becomes index.md.
// The mapping is deterministic so repeated runs land on the same file.
func PagePath(outputDir, pageURL string) (string, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", err
	}
	domain, err := Domain(pageURL)
	if err != nil {
		return "", err
	}

	domainDir := filepath.Join(outputDir, domain)
	p := strings.Trim(u.Path, "/")
	if p == "" {
		return filepath.Join(domainDir, "index.md"), nil
	}

	segments := strings.Split(p, "/")
	slugs := make([]string, 0, len(segments))
	for _, seg := range segments {
		slug := segmentSlug(seg)
		if slug != "" {
			slugs = append(slugs, slug)
		}
	}
	if len(slugs) == 0 {
		return filepath.Join(domainDir, "index.md"), nil
	}

	last := slugs[len(slugs)-1]
	dirs := slugs[:len(slugs)-1]
	return filepath.Join(domainDir, filepath.Join(dirs...), last+".md"), nil
}

// FilesDir returns the directory downloaded resources for a domain go to.
func FilesDir(outputDir, domain string) string {
	return filepath.Join(outputDir, domain, "files")
}

// segmentSlug produces a filesystem-safe slug for one path segment. File
// extensions are dropped so /docs/guide.html and /docs/guide map to the
// same output file.
func segmentSlug(segment string) string {
	segment = strings.TrimSpace(segment)
	if segment == "" {
		return ""
	}
	if dot := strings.LastIndex(segment, "."); dot > 0 {
		ext := strings.ToLower(segment[dot:])
		switch ext {
		case ".html", ".htm", ".php", ".asp", ".aspx", ".jsp":
			segment = segment[:dot]
		}
	}
	slug := sanitize.Name(segment)
	slug = strings.ToLower(strings.Trim(slug, "-."))
	return slug
}
