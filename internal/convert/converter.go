// Package convert turns raw page content into markdown documents. A primary
// converter does the heavy lifting; when it fails or produces nothing, a
// simpler text extraction takes over, and as a last resort a placeholder
// document records the failure instead of aborting the crawl.
package convert

import (
	"bytes"
	"fmt"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// Method names which converter produced a document.
type Method string

const (
	// MethodPrimary is full HTML-to-markdown conversion.
	MethodPrimary Method = "primary"
	// MethodFallback is plain text extraction.
	MethodFallback Method = "fallback"
	// MethodPlaceholder means both converters failed.
	MethodPlaceholder Method = "placeholder"
)

// Document is the converted text of one page.
type Document struct {
	SourceURL string
	Title     string
	Markdown  string
	Method    Method
}

// chromeSelectors are non-content elements stripped before conversion.
const chromeSelectors = "script, style, noscript, iframe, svg, nav, header, footer, aside, form"

// Converter converts raw HTML into markdown documents.
type Converter struct {
	logger *zap.Logger
	// primary is swappable so failure handling can be exercised in tests.
	primary func(sel *goquery.Selection, pageURL string) (string, error)
}

// New builds a Converter.
func New(logger *zap.Logger) *Converter {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Converter{logger: logger}
	c.primary = c.convertPrimary
	return c
}

// Convert produces a Document for the page. It never returns an error for
// conversion failures; the Method field reports how far it got.
func (c *Converter) Convert(html []byte, pageURL string) Document {
	doc := Document{SourceURL: pageURL, Method: MethodPlaceholder}

	parsed, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		c.logger.Warn("parse html failed", zap.String("url", pageURL), zap.Error(err))
		doc.Markdown = placeholder(pageURL, "page could not be parsed as HTML")
		return doc
	}

	doc.Title = strings.TrimSpace(parsed.Find("title").First().Text())
	cleaned := stripChrome(parsed)

	if markdown, err := c.primary(cleaned, pageURL); err == nil {
		doc.Markdown = markdown
		doc.Method = MethodPrimary
		return doc
	} else {
		c.logger.Warn("primary conversion failed, using fallback",
			zap.String("url", pageURL), zap.Error(err))
	}

	if text := extractText(cleaned); text != "" {
		doc.Markdown = fallbackDocument(doc.Title, pageURL, text)
		doc.Method = MethodFallback
		return doc
	}

	c.logger.Warn("all conversions failed, writing placeholder", zap.String("url", pageURL))
	doc.Markdown = placeholder(pageURL, "no readable content could be extracted")
	return doc
}

func (c *Converter) convertPrimary(sel *goquery.Selection, pageURL string) (string, error) {
	html, err := sel.Html()
	if err != nil {
		return "", fmt.Errorf("serialize cleaned html: %w", err)
	}
	converter := md.NewConverter(pageURL, true, nil)
	markdown, err := converter.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("convert to markdown: %w", err)
	}
	markdown = strings.TrimSpace(markdown)
	if markdown == "" {
		return "", fmt.Errorf("conversion produced empty document")
	}
	return markdown + "\n", nil
}

// stripChrome removes scripts, navigation and other non-content elements,
// returning the body (or the whole document when there is no body).
func stripChrome(doc *goquery.Document) *goquery.Selection {
	doc.Find(chromeSelectors).Remove()
	body := doc.Find("body")
	if body.Length() > 0 {
		return body
	}
	return doc.Selection
}

// extractText walks headings, paragraphs and list items, producing an
// indented plain rendition when real markdown conversion is unavailable.
func extractText(sel *goquery.Selection) string {
	var b strings.Builder
	sel.Find("h1, h2, h3, h4, h5, h6, p, li, td, pre, blockquote").Each(func(_ int, node *goquery.Selection) {
		text := strings.TrimSpace(node.Text())
		if text == "" {
			return
		}
		switch goquery.NodeName(node) {
		case "h1":
			b.WriteString("# " + text + "\n\n")
		case "h2":
			b.WriteString("## " + text + "\n\n")
		case "h3", "h4", "h5", "h6":
			b.WriteString("### " + text + "\n\n")
		case "li":
			b.WriteString("- " + text + "\n")
		default:
			b.WriteString(text + "\n\n")
		}
	})
	out := strings.TrimSpace(b.String())
	if out == "" {
		// Pages with no block elements still may carry bare text.
		out = strings.TrimSpace(sel.Text())
	}
	return out
}

func fallbackDocument(title, pageURL, text string) string {
	var b strings.Builder
	if title != "" {
		b.WriteString("# " + title + "\n\n")
	}
	b.WriteString(text)
	b.WriteString("\n\n---\n\nSource: " + pageURL + "\n")
	return b.String()
}

func placeholder(pageURL, reason string) string {
	return fmt.Sprintf(
		"# Conversion failed\n\nSource: %s\n\nThis page could not be converted: %s.\nThe raw content was kept alongside this file for manual inspection.\n",
		pageURL, reason,
	)
}
