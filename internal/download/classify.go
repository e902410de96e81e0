package download

import (
	"net/url"
	"path"
	"strings"
)

// resourceExtensions is the allow-list of downloadable file types:
// documents, images, and archives.
var resourceExtensions = map[string]struct{}{
	// Documents
	".pdf": {}, ".doc": {}, ".docx": {}, ".ppt": {}, ".pptx": {},
	".xls": {}, ".xlsx": {}, ".csv": {}, ".odt": {}, ".ods": {},
	".odp": {}, ".rtf": {}, ".txt": {}, ".json": {}, ".xml": {},
	// Images
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".svg": {}, ".webp": {},
	// Archives
	".zip": {}, ".tar": {}, ".gz": {}, ".tgz": {}, ".7z": {}, ".rar": {},
}

// pageExtensions are never treated as resources; they belong to the crawl
// frontier.
var pageExtensions = map[string]struct{}{
	".html": {}, ".htm": {}, ".php": {}, ".asp": {}, ".aspx": {}, ".jsp": {},
}

// assetExtensions are page infrastructure, not content. They are neither
// crawled as pages nor downloaded as resources.
var assetExtensions = map[string]struct{}{
	".css": {}, ".js": {}, ".mjs": {},
}

// contentTypeExtensions maps response content types to file extensions for
// URLs whose path carries no usable extension.
var contentTypeExtensions = map[string]string{
	"application/pdf":    ".pdf",
	"application/msword": ".doc",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": ".docx",
	"application/vnd.ms-excel": ".xls",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": ".xlsx",
	"application/zip":  ".zip",
	"application/gzip": ".gz",
	"text/csv":         ".csv",
	"text/plain":       ".txt",
	"application/json": ".json",
	"application/xml":  ".xml",
	"text/xml":         ".xml",
	"image/png":        ".png",
	"image/jpeg":       ".jpg",
	"image/gif":        ".gif",
	"image/svg+xml":    ".svg",
	"image/webp":       ".webp",
}

// IsResource reports whether a URL points at a downloadable file rather
// than a page, judged by its path extension.
func IsResource(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	ext := strings.ToLower(path.Ext(u.Path))
	if ext == "" {
		return false
	}
	if _, page := pageExtensions[ext]; page {
		return false
	}
	_, ok := resourceExtensions[ext]
	return ok
}

// IsPageAsset reports whether a URL points at page infrastructure such as a
// stylesheet or script.
func IsPageAsset(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	_, ok := assetExtensions[strings.ToLower(path.Ext(u.Path))]
	return ok
}

// extensionForContentType returns a file extension inferred from a
// Content-Type header, or "" when unknown.
func extensionForContentType(contentType string) string {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = strings.TrimSpace(contentType[:i])
	}
	return contentTypeExtensions[contentType]
}
