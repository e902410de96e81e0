// Package download saves non-page resources (documents, images, archives)
// linked from crawled pages and rewrites page references to the local
// copies.
package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/kennygrant/sanitize"
	"go.uber.org/zap"
)

// Status of one tracked resource.
type Status string

const (
	// StatusDownloaded means the resource was fetched and saved.
	StatusDownloaded Status = "downloaded"
	// StatusFailed means the download was attempted and gave up.
	StatusFailed Status = "failed"
)

// Resource tracks one downloadable asset, deduplicated by source URL.
type Resource struct {
	SourceURL string
	LocalPath string
	Status    Status
}

// Config controls the Downloader.
type Config struct {
	// Dir is where resources are saved ({output}/{domain}/files).
	Dir       string
	UserAgent string
	Timeout   time.Duration
}

// Downloader fetches resources for one domain. The second request for a
// source URL reuses the first download's local path without re-fetching.
type Downloader struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger

	mu        sync.Mutex
	resources map[string]*Resource
	inflight  map[string]chan struct{}
	claimed   map[string]struct{} // basenames reserved by in-flight downloads
}

// New builds a Downloader saving under cfg.Dir.
func New(cfg Config, logger *zap.Logger) *Downloader {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Downloader{
		cfg:       cfg,
		client:    &http.Client{Timeout: cfg.Timeout},
		logger:    logger,
		resources: make(map[string]*Resource),
		inflight:  make(map[string]chan struct{}),
		claimed:   make(map[string]struct{}),
	}
}

// Fetch downloads a resource once. Concurrent callers for the same URL
// block until the first attempt resolves and then share its outcome.
func (d *Downloader) Fetch(ctx context.Context, sourceURL string) (Resource, error) {
	for {
		d.mu.Lock()
		if res, ok := d.resources[sourceURL]; ok {
			d.mu.Unlock()
			if res.Status == StatusFailed {
				return *res, fmt.Errorf("resource %s previously failed", sourceURL)
			}
			return *res, nil
		}
		if wait, busy := d.inflight[sourceURL]; busy {
			d.mu.Unlock()
			select {
			case <-wait:
				continue
			case <-ctx.Done():
				return Resource{}, fmt.Errorf("wait for download: %w", ctx.Err())
			}
		}
		wait := make(chan struct{})
		d.inflight[sourceURL] = wait
		d.mu.Unlock()

		res := d.download(ctx, sourceURL)

		d.mu.Lock()
		d.resources[sourceURL] = &res
		delete(d.inflight, sourceURL)
		close(wait)
		d.mu.Unlock()

		if res.Status == StatusFailed {
			return res, fmt.Errorf("download %s failed", sourceURL)
		}
		return res, nil
	}
}

// Known reports whether the resource already resolved, in either
// direction. Callers use it to skip rate limiting for cache hits.
func (d *Downloader) Known(sourceURL string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.resources[sourceURL]
	return ok
}

// Stats returns the number of downloaded and failed resources.
func (d *Downloader) Stats() (downloaded, failed int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, res := range d.resources {
		if res.Status == StatusDownloaded {
			downloaded++
		} else {
			failed++
		}
	}
	return downloaded, failed
}

// Downloaded returns the mapping of source URL to local path for all
// successfully saved resources.
func (d *Downloader) Downloaded() map[string]string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]string, len(d.resources))
	for src, res := range d.resources {
		if res.Status == StatusDownloaded {
			out[src] = res.LocalPath
		}
	}
	return out
}

func (d *Downloader) download(ctx context.Context, sourceURL string) Resource {
	res := Resource{SourceURL: sourceURL, Status: StatusFailed}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		d.logger.Warn("bad resource url", zap.String("url", sourceURL), zap.Error(err))
		return res
	}
	if d.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", d.cfg.UserAgent)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		d.logger.Warn("resource fetch failed", zap.String("url", sourceURL), zap.Error(err))
		return res
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		d.logger.Warn("resource fetch failed",
			zap.String("url", sourceURL), zap.Int("status", resp.StatusCode))
		return res
	}

	if err := os.MkdirAll(d.cfg.Dir, 0o750); err != nil {
		d.logger.Warn("create files dir", zap.String("dir", d.cfg.Dir), zap.Error(err))
		return res
	}

	name := d.localName(sourceURL, resp.Header.Get("Content-Type"))
	target := d.claimPath(name)

	if err := writeAtomic(target, resp.Body); err != nil {
		d.releasePath(target)
		d.logger.Warn("save resource failed",
			zap.String("url", sourceURL), zap.String("path", target), zap.Error(err))
		return res
	}

	d.logger.Debug("resource downloaded",
		zap.String("url", sourceURL), zap.String("path", target))
	res.LocalPath = target
	res.Status = StatusDownloaded
	return res
}

// localName derives a safe filename from the URL path, inferring an
// extension from the content type when the path has none.
func (d *Downloader) localName(sourceURL, contentType string) string {
	name := "file"
	if u, err := url.Parse(sourceURL); err == nil {
		if base := path.Base(u.Path); base != "" && base != "/" && base != "." {
			name = base
		}
	}
	name = sanitize.Name(name)
	if path.Ext(name) == "" {
		if ext := extensionForContentType(contentType); ext != "" {
			name += ext
		}
	}
	return name
}

// claimPath reserves Dir/name for this download, suffixing _1, _2, ...
// while the name is held by a concurrent download or by a file already on
// disk. The reservation must happen under the lock: two resources sharing
// a basename would otherwise pick the same target and the rename would
// silently replace one with the other.
func (d *Downloader) claimPath(name string) string {
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	d.mu.Lock()
	defer d.mu.Unlock()
	candidate := name
	for i := 1; ; i++ {
		if _, taken := d.claimed[candidate]; !taken {
			target := filepath.Join(d.cfg.Dir, candidate)
			if _, err := os.Stat(target); os.IsNotExist(err) {
				d.claimed[candidate] = struct{}{}
				return target
			}
		}
		candidate = fmt.Sprintf("%s_%d%s", stem, i, ext)
	}
}

// releasePath drops the claim for a target whose write failed.
func (d *Downloader) releasePath(target string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.claimed, filepath.Base(target))
}

// writeAtomic streams body to a temp file and renames it into place, so a
// crash mid-download never leaves a partial file under the final name.
func writeAtomic(target string, body io.Reader) error {
	tmp, err := os.CreateTemp(filepath.Dir(target), ".download-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := io.Copy(tmp, body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write resource: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

// RewriteLinks replaces references to downloaded resources in a markdown
// document with paths relative to the document's directory.
func RewriteLinks(markdown, pageDir string, downloaded map[string]string) string {
	for src, local := range downloaded {
		rel, err := filepath.Rel(pageDir, local)
		if err != nil {
			continue
		}
		markdown = strings.ReplaceAll(markdown, src, filepath.ToSlash(rel))
	}
	return markdown
}
