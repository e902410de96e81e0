package cmd

import (
	"github.com/spf13/cobra"

	"github.com/tbaxter/sitescribe/internal/job"
)

// newTailCmd creates the 'tail' subcommand.
func newTailCmd() *cobra.Command {
	var (
		lines  int
		follow bool
	)
	cmd := &cobra.Command{
		Use:   "tail <job-id>",
		Short: "Show the tail of a job's log",
		Long: `Prints the last lines of a job's log file. With --follow, keeps
streaming new lines until interrupted or the job finishes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			return job.Tail(cmd.Context(), store, args[0], lines, follow, cmd.OutOrStdout())
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 20, "number of trailing lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep streaming appended lines")
	return cmd
}
