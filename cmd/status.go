package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tbaxter/sitescribe/internal/job"
)

// newStatusCmd creates the 'status' subcommand.
func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show the status of a crawl job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			rec, err := store.Get(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Job:      %s\n", rec.ID)
			fmt.Fprintf(out, "Status:   %s\n", rec.Status)
			fmt.Fprintf(out, "Started:  %s\n", rec.StartTime.Format("2006-01-02 15:04:05"))
			if rec.EndTime != nil {
				fmt.Fprintf(out, "Ended:    %s\n", rec.EndTime.Format("2006-01-02 15:04:05"))
			}
			fmt.Fprintf(out, "Duration: %s\n", job.FormatDuration(rec.Duration()))
			fmt.Fprintf(out, "Output:   %s\n", rec.OutputDir)
			fmt.Fprintf(out, "Log:      %s\n", rec.LogPath)
			fmt.Fprintf(out, "URLs:     %d\n", len(rec.Config.URLs))
			if rec.Error != "" {
				fmt.Fprintf(out, "Error:    %s\n", rec.Error)
			}
			if rec.Result != nil {
				fmt.Fprintf(out, "Pages:    %d converted, %d failed\n",
					rec.Result.TotalPages, rec.Result.TotalFailed)
				fmt.Fprintf(out, "Files:    %d downloaded\n", rec.Result.TotalFiles)
				for _, domain := range rec.Result.Domains {
					fmt.Fprintf(out, "  %-40s %4d pages, %3d failed, %3d files\n",
						domain.Domain, domain.PagesProcessed,
						domain.PagesFailed, domain.FilesDownloaded)
				}
			}
			return nil
		},
	}
}
