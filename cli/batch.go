package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/warp/vendor-analytics/ingest"
	"github.com/warp/vendor-analytics/inventory"
	"github.com/warp/vendor-analytics/logging"
	"github.com/warp/vendor-analytics/summary"
)

func newLoadCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Load every tabular file of the input directory into the database",
		Long: `Load replaces one table per .csv, .xlsx or .parquet file of the input
directory, named after the file (sales.csv -> sales). A file that fails is
logged and skipped; the command fails only when no file loaded.`,
		Args: cobra.NoArgs,
		RunE: runLoad,
	}
	cmd.Flags().String("input-dir", "", "directory of input files")
	cmd.Flags().Int("workers", 0, "files decoded concurrently")
	return cmd
}

func newSummarizeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "summarize",
		Short: "Build vendor_sales_summary from the loaded tables",
		Long: `Summarize reads Vendor_invoice, purchases, purchase_prices and sales,
aggregates them per vendor and brand and replaces vendor_sales_summary.
On failure the previous summary is left untouched.`,
		Args: cobra.NoArgs,
		RunE: runSummarize,
	}
}

func runLoad(cmd *cobra.Command, _ []string) error {
	s, err := open(cmd, logging.FileLoad)
	if err != nil {
		return err
	}
	defer s.close()

	loader := &ingest.Loader{
		Dir:     s.cfg.InputDir,
		Writer:  s.store,
		Metrics: s.metrics,
		Workers: s.cfg.LoadWorkers,
	}
	var report *ingest.Report
	run, err := s.track(cmd.Context(), inventory.RunLoad, func(ctx context.Context, log *slog.Logger) (int64, error) {
		loader.Logger = log
		var err error
		report, err = loader.Load(ctx)
		if report == nil {
			return 0, err
		}
		return report.Rows(), err
	})

	if report != nil {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "loaded %d of %d files (%d rows) into %s in %s\n",
			report.Loaded(), len(report.Files), report.Rows(), s.cfg.DatabaseURL, report.Elapsed.Round(time.Millisecond))
		for _, f := range report.Failed() {
			fmt.Fprintf(out, "  failed: %s: %v\n", f.Path, f.Err)
		}
	}
	if err != nil {
		return fmt.Errorf("load run %s: %w", run.ID, err)
	}
	return nil
}

func runSummarize(cmd *cobra.Command, _ []string) error {
	s, err := open(cmd, logging.FileSummarize)
	if err != nil {
		return err
	}
	defer s.close()

	var res *summary.Result
	run, err := s.track(cmd.Context(), inventory.RunSummarize, func(ctx context.Context, log *slog.Logger) (int64, error) {
		var err error
		res, err = summary.New(s.store, log, s.metrics).Run(ctx)
		if err != nil {
			return 0, err
		}
		return int64(len(res.Rows)), nil
	})
	if err != nil {
		return fmt.Errorf("summarize run %s: %w", run.ID, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d rows to %s in %s\n",
		len(res.Rows), inventory.TableSummary, res.Elapsed.Round(time.Millisecond))
	return nil
}

// track runs fn as a recorded pipeline run: it gets a logger carrying the
// run id and command, a context bounded by RUN_TIMEOUT, and its outcome is
// saved to pipeline_runs and observed in metrics.
func (s *session) track(ctx context.Context, kind inventory.RunKind, fn func(context.Context, *slog.Logger) (int64, error)) (inventory.Run, error) {
	ctx, cancel := s.runContext(ctx)
	defer cancel()

	id := inventory.NewRunID()
	log := s.log.With(slog.String("run_id", id), slog.String("command", string(kind)))
	start := time.Now()

	run, err := inventory.Track(ctx, s.store, id, kind, func(ctx context.Context) (int64, error) {
		return fn(ctx, log)
	})

	elapsed := time.Since(start)
	s.metrics.ObserveRun(string(kind), string(run.Status), elapsed)
	s.writeMetrics()

	if err != nil {
		log.Error("run failed",
			slog.String("error", err.Error()),
			slog.Duration("elapsed", elapsed),
			slog.Float64("elapsed_minutes", elapsed.Minutes()))
		return run, err
	}
	log.Info("run completed",
		slog.Int64("rows", run.Rows),
		slog.Duration("elapsed", elapsed),
		slog.Float64("elapsed_minutes", elapsed.Minutes()))
	return run, nil
}
