// Package cmd defines and implements the CLI commands for the sitescribe
// executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tbaxter/sitescribe/internal/job"
)

var jobsDir string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sitescribe",
		Short: "Crawl websites into local markdown mirrors.",
		Long: `sitescribe crawls one or more websites, converts every page to
markdown, and downloads linked documents and images, mirroring each
site's URL structure under a local output directory. Crawls can run in
the foreground or as supervised background jobs that are inspected,
tailed and stopped from later invocations.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&jobsDir, "jobs-dir", "",
		"job store directory (default $HOME/.sitescribe/jobs)")

	cmd.AddCommand(
		newScrapeCmd(),
		newJobsCmd(),
		newStatusCmd(),
		newTailCmd(),
		newStopCmd(),
	)
	return cmd
}

// openStore opens the job store every command reads through. It is opened
// fresh per invocation so concurrent commands observe consistent state.
func openStore() (*job.Store, error) {
	dir := jobsDir
	if dir == "" {
		var err error
		dir, err = job.DefaultDir()
		if err != nil {
			return nil, err
		}
	}
	return job.NewStore(dir)
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
