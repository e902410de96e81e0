package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/tbaxter/sitescribe/internal/config"
	"github.com/tbaxter/sitescribe/internal/fetch"
	"github.com/tbaxter/sitescribe/internal/job"
	"github.com/tbaxter/sitescribe/internal/logging"
	"github.com/tbaxter/sitescribe/internal/scheduler"
)

// newScrapeCmd creates and configures the 'scrape' subcommand.
func newScrapeCmd() *cobra.Command {
	v := viper.New()
	config.SetDefaults(v)

	cmd := &cobra.Command{
		Use:   "scrape [urls...]",
		Short: "Crawl websites and convert their pages to markdown",
		Long: `Crawls every given URL's site, converting pages to markdown and
downloading linked documents and images. Each domain is mirrored under
the output directory. With --daemon the crawl runs as a background job
managed through the jobs, status, tail and stop commands.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScrape(cmd, v, args)
		},
	}

	flags := cmd.Flags()
	flags.StringP("input", "i", "", "file containing URLs to scrape, one per line")
	flags.StringP("output", "o", "scraped_sites", "output directory")
	flags.BoolP("dynamic", "d", false, "render pages in a headless browser before conversion")
	flags.Bool("no-files", false, "skip downloading linked documents and images")
	flags.IntP("workers", "w", 3, "maximum number of concurrent workers")
	flags.IntP("site-workers", "s", 10, "maximum number of concurrent workers per site")
	flags.Float64P("rate", "r", 1.0, "minimum seconds between requests to the same domain")
	flags.Int("max-sites", 5, "maximum number of sites crawled concurrently")
	flags.Int("max-pages", 0, "maximum pages per site, 0 for unlimited")
	flags.StringP("log", "l", "", "log file path (default: the job's log in the job store)")
	flags.Bool("daemon", false, "run the crawl as a background job")
	flags.Bool("ignore-robots", false, "do not honor robots.txt exclusions")
	flags.String("job-id", "", "")
	_ = flags.MarkHidden("job-id")

	for key, flag := range map[string]string{
		"input":         "input",
		"output":        "output",
		"dynamic":       "dynamic",
		"workers":       "workers",
		"site_workers":  "site-workers",
		"rate":          "rate",
		"max_sites":     "max-sites",
		"max_pages":     "max-pages",
		"log":           "log",
		"daemon":        "daemon",
		"ignore_robots": "ignore-robots",
	} {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", flag, err))
		}
	}
	return cmd
}

func runScrape(cmd *cobra.Command, v *viper.Viper, args []string) error {
	cfg, err := config.FromViper(v)
	if err != nil {
		return err
	}
	cfg.URLs = append(cfg.URLs, args...)
	if err := cfg.LoadInputFile(); err != nil {
		return err
	}
	if noFiles, _ := cmd.Flags().GetBool("no-files"); noFiles {
		cfg.DownloadFiles = false
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.EnsureOutputDir(); err != nil {
		return err
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	mgr := job.NewManager(store, nil)

	// A daemon child is re-invoked with --job-id and takes over the
	// record the parent created.
	if childID, _ := cmd.Flags().GetString("job-id"); childID != "" {
		return executeJob(cmd.Context(), store, childID, cfg, true)
	}

	rec, err := mgr.Create(snapshot(cfg))
	if err != nil {
		return err
	}
	if cfg.LogPath != "" {
		if rec, err = store.Update(rec.ID, func(r *job.Record) error {
			r.LogPath = cfg.LogPath
			return nil
		}); err != nil {
			return err
		}
	}

	if cfg.Daemon {
		if err := mgr.Launch(rec, daemonArgs(cmd, rec.ID, args)); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Started background job %s\n", rec.ID)
		fmt.Fprintf(cmd.OutOrStdout(), "Follow it with: sitescribe tail %s --follow\n", rec.ID)
		return nil
	}
	return executeJob(cmd.Context(), store, rec.ID, cfg, false)
}

// executeJob runs the crawl for an existing record in this process.
func executeJob(ctx context.Context, store *job.Store, id string, cfg config.Config, daemon bool) error {
	rec, err := store.Get(id)
	if err != nil {
		return err
	}

	// Daemon children log only to the file; foreground runs tee to the
	// console as well.
	logger, err := logging.New(rec.LogPath, daemon)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush

	fetcher, cleanup, err := buildFetcher(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	sched := scheduler.NewRunner(scheduler.Config{
		OutputDir:     cfg.OutputDir,
		MaxSites:      cfg.EffectiveMaxSites(),
		SiteWorkers:   cfg.SiteWorkers,
		MaxPages:      cfg.MaxPages,
		RateInterval:  cfg.RateInterval(),
		DownloadFiles: cfg.DownloadFiles,
	}, fetcher, logger)

	runner := job.NewRunner(store, logger)
	final, err := runner.Run(ctx, id, func(ctx context.Context) scheduler.Result {
		return sched.Run(ctx, cfg.URLs)
	})
	if err != nil {
		return err
	}
	if !daemon {
		printSummary(final)
	}
	if final.Status == job.StatusFailed {
		return fmt.Errorf("job %s failed: %s", final.ID, final.Error)
	}
	return nil
}

// buildFetcher assembles the fetch pipeline: static or rendered transport,
// wrapped by the robots gate unless disabled.
func buildFetcher(cfg config.Config) (fetch.Fetcher, func(), error) {
	cleanup := func() {}
	var fetcher fetch.Fetcher
	if cfg.Dynamic {
		rendered, err := fetch.NewRendered(fetch.RenderedConfig{
			UserAgent:   cfg.UserAgent,
			MaxParallel: cfg.SiteWorkers,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("start headless browser: %w", err)
		}
		fetcher = rendered
		cleanup = rendered.Close
	} else {
		fetcher = fetch.NewStatic(fetch.StaticConfig{UserAgent: cfg.UserAgent})
	}
	if !cfg.IgnoreRobots {
		fetcher = fetch.NewRobotsGate(fetcher, cfg.UserAgent)
	}
	return fetcher, cleanup, nil
}

func snapshot(cfg config.Config) job.ConfigSnapshot {
	return job.ConfigSnapshot{
		URLs:          cfg.URLs,
		OutputDir:     cfg.OutputDir,
		Dynamic:       cfg.Dynamic,
		DownloadFiles: cfg.DownloadFiles,
		RateInterval:  cfg.RateInterval(),
		SiteWorkers:   cfg.SiteWorkers,
		MaxSites:      cfg.EffectiveMaxSites(),
		MaxPages:      cfg.MaxPages,
	}
}

// daemonArgs rebuilds the scrape invocation for the detached child:
// original flags minus --daemon, plus the allocated --job-id.
func daemonArgs(cmd *cobra.Command, id string, urls []string) []string {
	args := []string{"scrape", "--job-id", id}
	cmd.Flags().Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "daemon", "job-id":
			return
		}
		// The = form keeps bool flags from eating the next argument.
		args = append(args, fmt.Sprintf("--%s=%s", f.Name, f.Value.String()))
	})
	if jobsDir != "" {
		args = append(args, "--jobs-dir="+jobsDir)
	}
	return append(args, urls...)
}

func printSummary(rec job.Record) {
	fmt.Printf("\nJob %s %s in %s\n", rec.ID, rec.Status, job.FormatDuration(rec.Duration()))
	if rec.Result == nil {
		return
	}
	for _, domain := range rec.Result.Domains {
		fmt.Printf("  %-40s %4d pages, %3d failed, %3d files (%s)\n",
			domain.Domain, domain.PagesProcessed, domain.PagesFailed,
			domain.FilesDownloaded, job.FormatDuration(domain.Duration))
	}
	fmt.Printf("  total: %d pages converted, %d failed, %d files downloaded\n",
		rec.Result.TotalPages, rec.Result.TotalFailed, rec.Result.TotalFiles)
}
