// Package scheduler groups input URLs by domain and runs one site crawler
// per domain, admitting at most max_sites crawlers at a time. Per-site
// worker counts are independent of the admission pool, so one slow domain
// never starves the others.
package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/tbaxter/sitescribe/internal/convert"
	"github.com/tbaxter/sitescribe/internal/download"
	"github.com/tbaxter/sitescribe/internal/fetch"
	"github.com/tbaxter/sitescribe/internal/ratelimit"
	"github.com/tbaxter/sitescribe/internal/site"
	"github.com/tbaxter/sitescribe/internal/urlutil"
)

// Config holds job-level crawl settings shared by every domain.
type Config struct {
	OutputDir     string
	MaxSites      int
	SiteWorkers   int
	MaxPages      int
	RateInterval  time.Duration
	DownloadFiles bool
}

// Result aggregates per-domain outcomes for one job.
type Result struct {
	Domains     []site.Summary `json:"domains"`
	InvalidURLs []string       `json:"invalid_urls,omitempty"`
	TotalPages  int            `json:"total_pages"`
	TotalFailed int            `json:"total_failed"`
	TotalFiles  int            `json:"total_files"`
	Duration    time.Duration  `json:"duration"`
	Stopped     bool           `json:"stopped"`
}

// Failed reports whether the job produced nothing at all. Individual page
// and resource failures do not fail a job that made any progress.
func (r Result) Failed() bool {
	return r.TotalPages == 0
}

// CrawlFunc runs the crawl for one domain. Swappable in tests.
type CrawlFunc func(ctx context.Context, domain string, seeds []string) site.Summary

// Scheduler fans domains out to site crawlers.
type Scheduler struct {
	cfg    Config
	crawl  CrawlFunc
	logger *zap.Logger
}

// New builds a Scheduler around an explicit crawl function.
func New(cfg Config, crawl CrawlFunc, logger *zap.Logger) *Scheduler {
	if cfg.MaxSites <= 0 {
		cfg.MaxSites = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{cfg: cfg, crawl: crawl, logger: logger}
}

// NewRunner builds a Scheduler wired to real site crawlers sharing one
// fetcher, converter and rate limiter across domains.
func NewRunner(cfg Config, fetcher fetch.Fetcher, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	limiter := ratelimit.New(cfg.RateInterval)
	converter := convert.New(logger)
	retry := fetch.DefaultRetryPolicy()

	crawl := func(ctx context.Context, domain string, seeds []string) site.Summary {
		var dl *download.Downloader
		if cfg.DownloadFiles {
			dl = download.New(download.Config{
				Dir: urlutil.FilesDir(cfg.OutputDir, domain),
			}, logger.With(zap.String("domain", domain)))
		}
		crawler := site.New(site.Config{
			Domain:        domain,
			OutputDir:     cfg.OutputDir,
			SiteWorkers:   cfg.SiteWorkers,
			MaxPages:      cfg.MaxPages,
			DownloadFiles: cfg.DownloadFiles,
		}, seeds, fetcher, retry, limiter, converter, dl, logger)
		return crawler.Crawl(ctx)
	}
	return New(cfg, crawl, logger)
}

// Run crawls every domain found in urls and returns the aggregated result.
// Domains are admitted through a weighted semaphore so at most MaxSites
// crawl concurrently; a failed domain never aborts its siblings.
func (s *Scheduler) Run(ctx context.Context, urls []string) Result {
	start := time.Now()
	groups, invalid := groupByDomain(urls)
	for _, raw := range invalid {
		s.logger.Warn("skipping invalid input url", zap.String("url", raw))
	}

	domains := make([]string, 0, len(groups))
	for domain := range groups {
		domains = append(domains, domain)
	}
	sort.Strings(domains)

	s.logger.Info("job started",
		zap.Int("domains", len(domains)),
		zap.Int("invalid_urls", len(invalid)),
		zap.Int("max_sites", s.cfg.MaxSites))

	sem := semaphore.NewWeighted(int64(s.cfg.MaxSites))
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		summaries = make([]site.Summary, 0, len(domains))
	)
	for _, domain := range domains {
		if err := sem.Acquire(ctx, 1); err != nil {
			// Cancelled while waiting for a slot; remaining domains
			// never start.
			break
		}
		wg.Add(1)
		go func(domain string, seeds []string) {
			defer wg.Done()
			defer sem.Release(1)
			summary := s.crawl(ctx, domain, seeds)
			mu.Lock()
			summaries = append(summaries, summary)
			mu.Unlock()
		}(domain, groups[domain])
	}
	wg.Wait()

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Domain < summaries[j].Domain
	})
	result := Result{
		Domains:     summaries,
		InvalidURLs: invalid,
		Duration:    time.Since(start),
		Stopped:     ctx.Err() != nil,
	}
	for _, summary := range summaries {
		result.TotalPages += summary.PagesProcessed
		result.TotalFailed += summary.PagesFailed
		result.TotalFiles += summary.FilesDownloaded
		if summary.Failed() {
			s.logger.Warn("domain produced no pages", zap.String("domain", summary.Domain))
		}
	}

	s.logger.Info("job finished",
		zap.Int("total_pages", result.TotalPages),
		zap.Int("total_failed", result.TotalFailed),
		zap.Int("total_files", result.TotalFiles),
		zap.Duration("duration", result.Duration),
		zap.Bool("stopped", result.Stopped))
	return result
}

// groupByDomain validates each URL and buckets it under its domain.
// Duplicate seeds for a domain are kept; the frontier deduplicates them.
func groupByDomain(urls []string) (map[string][]string, []string) {
	groups := make(map[string][]string)
	var invalid []string
	for _, raw := range urls {
		if err := urlutil.Validate(raw); err != nil {
			invalid = append(invalid, raw)
			continue
		}
		domain, err := urlutil.Domain(raw)
		if err != nil {
			invalid = append(invalid, raw)
			continue
		}
		groups[domain] = append(groups[domain], raw)
	}
	return groups, invalid
}
