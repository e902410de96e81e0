// Package config loads and validates crawl configuration via Viper.
package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures every knob a scrape job runs with. Flags, environment
// variables and config files all funnel through Viper into this struct.
type Config struct {
	URLs          []string `mapstructure:"urls"`
	InputFile     string   `mapstructure:"input"`
	OutputDir     string   `mapstructure:"output"`
	Dynamic       bool     `mapstructure:"dynamic"`
	DownloadFiles bool     `mapstructure:"download_files"`
	RateSeconds   float64  `mapstructure:"rate"`
	Workers       int      `mapstructure:"workers"`
	SiteWorkers   int      `mapstructure:"site_workers"`
	MaxSites      int      `mapstructure:"max_sites"`
	MaxPages      int      `mapstructure:"max_pages"`
	LogPath       string   `mapstructure:"log"`
	Daemon        bool     `mapstructure:"daemon"`
	UserAgent     string   `mapstructure:"user_agent"`
	IgnoreRobots  bool     `mapstructure:"ignore_robots"`
}

// SetDefaults registers the default values on a Viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("output", "scraped_sites")
	v.SetDefault("download_files", true)
	v.SetDefault("rate", 1.0)
	v.SetDefault("workers", 3)
	v.SetDefault("site_workers", 10)
	v.SetDefault("max_sites", 5)
	v.SetDefault("max_pages", 0)
	v.SetDefault("user_agent", "sitescribe/1.0 (+https://github.com/tbaxter/sitescribe)")
	v.SetDefault("ignore_robots", false)
}

// FromViper builds a Config from a prepared Viper instance.
func FromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// LoadInputFile appends URLs read from the input file, one per line.
// Blank lines and comments are skipped.
func (c *Config) LoadInputFile() error {
	if c.InputFile == "" {
		return nil
	}
	f, err := os.Open(c.InputFile)
	if err != nil {
		return fmt.Errorf("open input file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		c.URLs = append(c.URLs, line)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input file: %w", err)
	}
	return nil
}

// Validate enforces the fatal startup conditions: a job is never created
// from an invalid configuration.
func (c Config) Validate() error {
	if len(c.URLs) == 0 {
		return fmt.Errorf("no URLs supplied: pass them as arguments or via --input")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output directory must not be empty")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be > 0")
	}
	if c.SiteWorkers <= 0 {
		return fmt.Errorf("site_workers must be > 0")
	}
	if c.MaxSites <= 0 {
		return fmt.Errorf("max_sites must be > 0")
	}
	if c.MaxPages < 0 {
		return fmt.Errorf("max_pages must be >= 0 (0 means unlimited)")
	}
	if c.RateSeconds < 0 {
		return fmt.Errorf("rate must be >= 0 seconds")
	}
	return nil
}

// EnsureOutputDir creates the output root, failing fast when it is not
// writable.
func (c Config) EnsureOutputDir() error {
	if err := os.MkdirAll(c.OutputDir, 0o750); err != nil {
		return fmt.Errorf("output root is not writable: %w", err)
	}
	probe, err := os.CreateTemp(c.OutputDir, ".probe-*")
	if err != nil {
		return fmt.Errorf("output root is not writable: %w", err)
	}
	name := probe.Name()
	_ = probe.Close()
	return os.Remove(name)
}

// RateInterval converts the rate setting into the limiter's interval.
func (c Config) RateInterval() time.Duration {
	return time.Duration(c.RateSeconds * float64(time.Second))
}

// EffectiveMaxSites is the domain admission bound: both workers and
// max_sites cap how many sites crawl at once.
func (c Config) EffectiveMaxSites() int {
	if c.Workers < c.MaxSites {
		return c.Workers
	}
	return c.MaxSites
}
