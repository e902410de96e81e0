package site

import (
	"bytes"

	"github.com/PuerkitoBio/goquery"

	"github.com/tbaxter/sitescribe/internal/download"
	"github.com/tbaxter/sitescribe/internal/urlutil"
)

// extracted holds the outgoing references found on one page, split into
// same-domain pages to crawl and resources to download. Off-domain links
// are counted but never queued.
type extracted struct {
	pages     []string
	resources []string
	offDomain int
}

// extractLinks parses the page and collects candidate links from anchors
// plus resource references from media elements.
func extractLinks(body []byte, pageURL string) (extracted, error) {
	var out extracted

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return out, err
	}

	seen := make(map[string]struct{})
	add := func(raw string, resourceOnly bool) {
		abs, ok := urlutil.Resolve(pageURL, raw)
		if !ok {
			return
		}
		if !urlutil.SameDomain(abs, pageURL) {
			out.offDomain++
			return
		}
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		switch {
		case download.IsResource(abs):
			out.resources = append(out.resources, abs)
		case download.IsPageAsset(abs):
			// Stylesheets and scripts are neither pages nor downloads.
		case !resourceOnly:
			out.pages = append(out.pages, abs)
		}
	}

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok {
			add(href, false)
		}
	})
	// Media elements only ever reference resources, never pages.
	doc.Find("img[src], video[src], audio[src], source[src], embed[src]").Each(func(_ int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok {
			add(src, true)
		}
	})

	return out, nil
}
