package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tbaxter/sitescribe/internal/job"
)

// newStopCmd creates the 'stop' subcommand.
func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop <job-id>",
		Short: "Request a running job to stop",
		Long: `Signals the job's process to stop. In-flight page fetches are
allowed to finish; the job transitions to stopped once its crawlers
have drained.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			mgr := job.NewManager(store, nil)
			rec, err := mgr.Stop(args[0])
			if err != nil {
				return err
			}
			if rec.Status.Terminal() {
				fmt.Fprintf(cmd.OutOrStdout(), "Job %s is now %s.\n", rec.ID, rec.Status)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Stop requested for job %s; it will finish in-flight work and exit.\n", rec.ID)
			}
			return nil
		},
	}
}
