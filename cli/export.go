package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/warp/vendor-analytics/inventory"
	"github.com/warp/vendor-analytics/logging"
	"github.com/warp/vendor-analytics/report"
)

func newExportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export -o FILE",
		Short: "Write vendor_sales_summary to an .xlsx or .csv file",
		Args:  cobra.NoArgs,
		RunE:  runExport,
	}
	cmd.Flags().StringP("output", "o", "", "output file (.xlsx or .csv)")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func runExport(cmd *cobra.Command, _ []string) error {
	output, _ := cmd.Flags().GetString("output")
	format, err := report.FormatFor(output)
	if err != nil {
		return err
	}

	s, err := open(cmd, logging.FileExport)
	if err != nil {
		return err
	}
	defer s.close()

	ctx, cancel := s.runContext(cmd.Context())
	defer cancel()

	rows, err := s.store.ListSummary(ctx, inventory.SummaryFilter{})
	if errors.Is(err, inventory.ErrSchema) {
		return fmt.Errorf("nothing to export, run `vendorctl summarize` first: %w", err)
	}
	if err != nil {
		return err
	}

	// Write next to the target and rename so a failed export never leaves a
	// truncated file behind.
	tmp, err := os.CreateTemp(filepath.Dir(output), ".export-*")
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := report.Write(tmp, format, rows); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close export file: %w", err)
	}
	if err := os.Rename(tmp.Name(), output); err != nil {
		return fmt.Errorf("move export file into place: %w", err)
	}

	s.log.Info("summary exported", slog.String("path", output), slog.Int("rows", len(rows)))
	fmt.Fprintf(cmd.OutOrStdout(), "exported %d rows to %s\n", len(rows), output)
	return nil
}
