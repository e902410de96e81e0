package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tbaxter/sitescribe/internal/job"
)

// newJobsCmd creates the 'jobs' subcommand listing every known job.
func newJobsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "jobs",
		Short: "List all crawl jobs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			records, err := store.List()
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No jobs found.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "JOB ID\tSTATUS\tSTARTED\tDURATION\tPAGES\tURLS")
			for _, rec := range records {
				pages := "-"
				if rec.Result != nil {
					pages = fmt.Sprintf("%d", rec.Result.TotalPages)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\n",
					rec.ID,
					rec.Status,
					rec.StartTime.Format("2006-01-02 15:04:05"),
					job.FormatDuration(rec.Duration()),
					pages,
					len(rec.Config.URLs),
				)
			}
			return w.Flush()
		},
	}
}
