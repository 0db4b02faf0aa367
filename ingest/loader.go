/*
loader.go - Bulk load of a directory of tabular files

PURPOSE:
  Replaces one database table per input file. The file's base name is the
  table name (sales.csv -> sales). Reloading the same directory leaves the
  database in the same state.

DESIGN:
  - Files are listed non-recursively and processed in lexical order
  - Decoding may run on several workers; writes are always sequential and
    in file order, so when two files map to one table the later one wins
  - A failed file is logged and reported, never fatal to its siblings
  - The batch fails with ErrAllFilesFailed only when no file loaded

USAGE:
  l := &ingest.Loader{Dir: "data", Writer: store, Logger: log}
  report, err := l.Load(ctx)

SEE ALSO:
  - decode.go: CSV and XLSX decoding
  - parquet.go: Parquet decoding
  - table.go: header normalization and type inference
*/
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/warp/vendor-analytics/inventory"
	"github.com/warp/vendor-analytics/metrics"
)

// File outcomes, as counted in metrics.
const (
	OutcomeLoaded  = "loaded"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

// Loader loads every tabular file of Dir through Writer.
type Loader struct {
	Dir     string
	Writer  inventory.TableWriter
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	// Workers bounds concurrent decoding. Values below 2 decode one file at
	// a time.
	Workers int
}

// FileResult is the outcome of one file.
type FileResult struct {
	Path     string
	Table    string
	Format   string
	Rows     int
	Columns  int
	Err      error
	Duration time.Duration
}

// Report summarizes a load batch.
type Report struct {
	Files   []FileResult
	Skipped []string
	Elapsed time.Duration
}

// Loaded returns how many files were written.
func (r *Report) Loaded() int {
	n := 0
	for _, f := range r.Files {
		if f.Err == nil {
			n++
		}
	}
	return n
}

// Failed returns the results of files that did not load.
func (r *Report) Failed() []FileResult {
	var out []FileResult
	for _, f := range r.Files {
		if f.Err != nil {
			out = append(out, f)
		}
	}
	return out
}

// Rows returns the number of rows written across all files.
func (r *Report) Rows() int64 {
	var n int64
	for _, f := range r.Files {
		if f.Err == nil {
			n += int64(f.Rows)
		}
	}
	return n
}

func (l *Loader) logger() *slog.Logger {
	if l.Logger == nil {
		return slog.Default()
	}
	return l.Logger
}

// Load runs the batch. The returned report is non-nil whenever the
// directory could be listed, including when err is ErrAllFilesFailed.
func (l *Loader) Load(ctx context.Context) (*Report, error) {
	start := time.Now()
	log := l.logger()

	entries, err := os.ReadDir(l.Dir)
	if err != nil {
		return nil, fmt.Errorf("list input dir %s: %w: %w", l.Dir, inventory.ErrIO, err)
	}

	report := &Report{}
	var files []string
	for _, e := range entries {
		path := filepath.Join(l.Dir, e.Name())
		if _, ok := FormatOf(e.Name()); !ok || e.IsDir() {
			report.Skipped = append(report.Skipped, path)
			l.Metrics.FileLoaded("other", OutcomeSkipped)
			log.Debug("skipping non-tabular entry", slog.String("path", path))
			continue
		}
		files = append(files, path)
	}
	if len(files) == 0 {
		log.Warn("no tabular files found", slog.String("dir", l.Dir))
	}

	batch := l.Workers
	if batch < 1 {
		batch = 1
	}
	for lo := 0; lo < len(files); lo += batch {
		if err := ctx.Err(); err != nil {
			report.Elapsed = time.Since(start)
			return report, fmt.Errorf("load aborted: %w", err)
		}
		hi := min(lo+batch, len(files))
		for _, d := range decodeAll(files[lo:hi]) {
			report.Files = append(report.Files, l.write(ctx, d))
		}
	}

	report.Elapsed = time.Since(start)
	log.Info("ingestion complete",
		slog.Int("files", len(report.Files)),
		slog.Int("loaded", report.Loaded()),
		slog.Int("failed", len(report.Failed())),
		slog.Int("skipped", len(report.Skipped)),
		slog.Duration("elapsed", report.Elapsed),
		slog.Float64("elapsed_minutes", report.Elapsed.Minutes()))

	if len(files) > 0 && report.Loaded() == 0 {
		errs := make([]error, 0, len(report.Files))
		for _, f := range report.Files {
			errs = append(errs, f.Err)
		}
		return report, fmt.Errorf("%w: %w", inventory.ErrAllFilesFailed, errors.Join(errs...))
	}
	return report, nil
}

// decoded is a file read into memory, or the error reading it.
type decoded struct {
	path    string
	format  string
	table   *inventory.Table
	err     error
	elapsed time.Duration
}

// decodeAll reads files concurrently. Results keep the order of files.
func decodeAll(files []string) []decoded {
	out := make([]decoded, len(files))
	var g errgroup.Group
	for i, path := range files {
		i, path := i, path
		g.Go(func() error {
			start := time.Now()
			format, _ := FormatOf(path)
			t, err := Decode(path)
			out[i] = decoded{path: path, format: format, table: t, err: err, elapsed: time.Since(start)}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (l *Loader) write(ctx context.Context, d decoded) FileResult {
	log := l.logger()
	res := FileResult{Path: d.path, Table: TableName(d.path), Format: d.format}

	start := time.Now()
	err := d.err
	if err == nil {
		log.Info("ingesting file", slog.String("path", d.path), slog.String("table", res.Table))
		res.Rows = len(d.table.Rows)
		res.Columns = len(d.table.Columns)
		err = l.Writer.ReplaceTable(ctx, d.table)
	}
	res.Duration = d.elapsed + time.Since(start)

	if err != nil {
		res.Err = &inventory.FileError{Path: d.path, Table: res.Table, Err: err}
		l.Metrics.FileLoaded(d.format, OutcomeFailed)
		log.Error("file failed to load",
			slog.String("path", d.path),
			slog.String("table", res.Table),
			slog.String("error", err.Error()))
		return res
	}

	l.Metrics.FileLoaded(d.format, OutcomeLoaded)
	l.Metrics.RowsWrittenTo(res.Table, res.Rows)
	log.Info("file loaded",
		slog.String("path", d.path),
		slog.String("table", res.Table),
		slog.Int("rows", res.Rows),
		slog.Int("columns", res.Columns),
		slog.Duration("elapsed", res.Duration))
	return res
}
