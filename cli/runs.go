package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/warp/vendor-analytics/logging"
)

func newRunsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent load and summarize runs",
		Args:  cobra.NoArgs,
		RunE:  runRuns,
	}
	cmd.Flags().IntP("limit", "n", 20, "number of runs to show")
	return cmd
}

func runRuns(cmd *cobra.Command, _ []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	if limit < 1 {
		return fmt.Errorf("--limit must be positive, got %d", limit)
	}

	s, err := open(cmd, logging.FileRuns)
	if err != nil {
		return err
	}
	defer s.close()

	runs, err := s.store.ListRuns(cmd.Context(), limit)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tSTATUS\tROWS\tSTARTED\tDURATION\tERROR")
	for _, r := range runs {
		duration := "-"
		if r.CompletedAt != nil {
			duration = r.CompletedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			r.ID, r.Kind, r.Status, r.Rows, r.StartedAt.Local().Format(time.DateTime), duration, r.Error)
	}
	return tw.Flush()
}
