// Package logging builds the structured logger of a vendorctl command.
//
// Every command logs JSON lines to stderr and appends the same lines to its
// own file under the log directory (ingestion_db.log for load,
// get_vendor_summary.log for summarize).
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Log file names per command.
const (
	FileLoad      = "ingestion_db.log"
	FileSummarize = "get_vendor_summary.log"
	FileServe     = "report_server.log"
	FileExport    = "export.log"
	FileRuns      = "runs.log"
)

// Options configures New.
type Options struct {
	Dir   string
	File  string
	Level string

	// Stderr receives a copy of every entry; nil means os.Stderr. Tests pass
	// io.Discard.
	Stderr io.Writer
}

// New opens (creating if needed) Dir/File in append mode and returns a JSON
// logger writing to it and to stderr. The returned close func releases the
// file.
func New(opts Options) (*slog.Logger, func() error, error) {
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log dir %s: %w", opts.Dir, err)
	}
	path := filepath.Join(opts.Dir, opts.File)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file %s: %w", path, err)
	}

	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	handler := slog.NewJSONHandler(io.MultiWriter(stderr, file), &slog.HandlerOptions{
		Level: ParseLevel(opts.Level),
	})
	return slog.New(handler), file.Close, nil
}

// ParseLevel converts a level name to a slog.Level. Unknown names are info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
