// Package site implements the per-domain crawler: a pool of workers driving
// one frontier until it is exhausted, the page cap is reached, or the job
// is cancelled.
package site

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tbaxter/sitescribe/internal/convert"
	"github.com/tbaxter/sitescribe/internal/download"
	"github.com/tbaxter/sitescribe/internal/fetch"
	"github.com/tbaxter/sitescribe/internal/frontier"
	"github.com/tbaxter/sitescribe/internal/ratelimit"
	"github.com/tbaxter/sitescribe/internal/urlutil"
)

// Config holds per-domain crawl settings.
type Config struct {
	Domain        string
	OutputDir     string
	SiteWorkers   int
	MaxPages      int
	DownloadFiles bool
}

// Summary is what a site crawler reports back to the scheduler.
type Summary struct {
	Domain          string        `json:"domain"`
	PagesProcessed  int           `json:"pages_processed"`
	PagesFailed     int           `json:"pages_failed"`
	FilesDownloaded int           `json:"files_downloaded"`
	FilesFailed     int           `json:"files_failed"`
	Duration        time.Duration `json:"duration"`
	Stopped         bool          `json:"stopped"`
}

// Failed reports whether the domain produced nothing at all.
func (s Summary) Failed() bool {
	return s.PagesProcessed == 0
}

// Crawler crawls one domain. It owns its frontier exclusively; only its
// own workers touch it.
type Crawler struct {
	cfg        Config
	fetcher    fetch.Fetcher
	retry      fetch.RetryPolicy
	limiter    *ratelimit.Limiter
	converter  *convert.Converter
	downloader *download.Downloader
	frontier   *frontier.Frontier
	logger     *zap.Logger
}

// New builds a site crawler and seeds its frontier. Seed URLs that fail to
// normalize are skipped with a warning.
func New(
	cfg Config,
	seeds []string,
	fetcher fetch.Fetcher,
	retry fetch.RetryPolicy,
	limiter *ratelimit.Limiter,
	converter *convert.Converter,
	downloader *download.Downloader,
	logger *zap.Logger,
) *Crawler {
	if cfg.SiteWorkers <= 0 {
		cfg.SiteWorkers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Crawler{
		cfg:        cfg,
		fetcher:    fetcher,
		retry:      retry,
		limiter:    limiter,
		converter:  converter,
		downloader: downloader,
		frontier:   frontier.New(cfg.MaxPages),
		logger:     logger.With(zap.String("domain", cfg.Domain)),
	}
	for _, seed := range seeds {
		normalized, err := urlutil.Normalize(seed)
		if err != nil {
			c.logger.Warn("skipping invalid seed", zap.String("url", seed), zap.Error(err))
			continue
		}
		c.frontier.Enqueue(frontier.Task{
			RawURL:        seed,
			NormalizedURL: normalized,
			Domain:        cfg.Domain,
			DiscoveredAt:  time.Now(),
		})
	}
	return c
}

// Crawl runs the worker pool until the frontier drains, the page cap is
// reached, or ctx is cancelled. It always returns a summary.
func (c *Crawler) Crawl(ctx context.Context) Summary {
	start := time.Now()
	c.logger.Info("site crawl started",
		zap.Int("workers", c.cfg.SiteWorkers),
		zap.Int("max_pages", c.cfg.MaxPages))

	// Cancellation is observed at loop boundaries: closing the frontier
	// prevents any new dequeue while in-flight pages finish.
	watchDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			c.frontier.Close()
		case <-watchDone:
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < c.cfg.SiteWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.workerLoop(ctx)
		}()
	}
	wg.Wait()
	close(watchDone)

	processed, failed := c.frontier.Stats()
	summary := Summary{
		Domain:         c.cfg.Domain,
		PagesProcessed: processed,
		PagesFailed:    failed,
		Duration:       time.Since(start),
		Stopped:        ctx.Err() != nil,
	}
	if c.downloader != nil {
		summary.FilesDownloaded, summary.FilesFailed = c.downloader.Stats()
	}

	c.logger.Info("site crawl finished",
		zap.Int("pages_processed", summary.PagesProcessed),
		zap.Int("pages_failed", summary.PagesFailed),
		zap.Int("files_downloaded", summary.FilesDownloaded),
		zap.Duration("duration", summary.Duration),
		zap.Bool("stopped", summary.Stopped))
	return summary
}

func (c *Crawler) workerLoop(ctx context.Context) {
	for {
		task, err := c.frontier.Dequeue()
		if err != nil {
			switch {
			case errors.Is(err, frontier.ErrCapReached):
				c.logger.Debug("worker exiting: page cap reached")
			case errors.Is(err, frontier.ErrExhausted):
				c.logger.Debug("worker exiting: frontier exhausted")
			default:
				c.logger.Debug("worker exiting: frontier closed")
			}
			return
		}
		// Re-check cancellation before dispatch; the abandoned task
		// releases its slot without counting as a failed page.
		if ctx.Err() != nil {
			c.frontier.Release()
			return
		}
		c.frontier.MarkDone(c.processPage(ctx, task))
	}
}

// processPage runs the full pipeline for one URL. It returns false on any
// failure; failures never abort the rest of the domain.
func (c *Crawler) processPage(ctx context.Context, task frontier.Task) bool {
	log := c.logger.With(zap.String("url", task.NormalizedURL))

	if err := c.limiter.Wait(ctx, task.Domain); err != nil {
		return false
	}

	result, attempts, err := fetch.FetchWithRetry(ctx, c.fetcher, task.NormalizedURL, c.retry)
	if err != nil {
		log.Warn("page fetch failed",
			zap.Int("attempts", attempts),
			zap.Error(err))
		return false
	}

	doc := c.converter.Convert(result.Body, task.NormalizedURL)

	links, err := extractLinks(result.Body, task.NormalizedURL)
	if err != nil {
		log.Debug("link extraction failed", zap.Error(err))
	}
	c.enqueueDiscovered(links.pages, task.Depth+1)

	outputPath, err := urlutil.PagePath(c.cfg.OutputDir, task.NormalizedURL)
	if err != nil {
		log.Error("map output path failed", zap.Error(err))
		return false
	}

	markdown := doc.Markdown
	if c.downloader != nil && c.cfg.DownloadFiles {
		c.fetchResources(ctx, links.resources, log)
		markdown = download.RewriteLinks(markdown, filepath.Dir(outputPath), c.downloader.Downloaded())
	}

	if doc.Method == convert.MethodPlaceholder {
		if err := writeFileAtomic(rawSiblingPath(outputPath), result.Body); err != nil {
			log.Warn("preserve raw content failed", zap.Error(err))
		}
	}
	if err := writeFileAtomic(outputPath, []byte(markdown)); err != nil {
		log.Error("write artifact failed", zap.String("path", outputPath), zap.Error(err))
		return false
	}

	log.Info("page processed",
		zap.String("path", outputPath),
		zap.String("method", string(doc.Method)),
		zap.Int("links", len(links.pages)),
		zap.Int("resources", len(links.resources)),
		zap.Int("off_domain", links.offDomain),
		zap.Duration("fetch", result.Duration))
	return true
}

func (c *Crawler) enqueueDiscovered(pages []string, depth int) {
	for _, page := range pages {
		normalized, err := urlutil.Normalize(page)
		if err != nil {
			continue
		}
		c.frontier.Enqueue(frontier.Task{
			RawURL:        page,
			NormalizedURL: normalized,
			Domain:        c.cfg.Domain,
			Depth:         depth,
			DiscoveredAt:  time.Now(),
		})
	}
}

// fetchResources downloads each newly seen resource, rate limited like any
// other request to the domain. Failures are logged and do not fail the
// page.
func (c *Crawler) fetchResources(ctx context.Context, resources []string, log *zap.Logger) {
	for _, src := range resources {
		if ctx.Err() != nil {
			return
		}
		if c.downloader.Known(src) {
			continue
		}
		if err := c.limiter.Wait(ctx, c.cfg.Domain); err != nil {
			return
		}
		if _, err := c.downloader.Fetch(ctx, src); err != nil {
			log.Warn("resource download failed", zap.String("resource", src), zap.Error(err))
		}
	}
}
