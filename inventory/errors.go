/*
errors.go - Error taxonomy for loading and summarizing

PURPOSE:
  All error types in one place. Callers classify with errors.Is against the
  sentinels; the structured errors carry the file, table or stage that
  failed and unwrap to a sentinel.

ERROR CATEGORIES:
  1. ErrParse   - Malformed input row, file or value
  2. ErrIO      - File or database unreachable
  3. ErrSchema  - Expected table or column absent (fatal)
  4. ErrAllFilesFailed - Every recognized file of a load batch failed

  Division by zero in ratio derivation is NOT an error. It yields +Inf,
  -Inf or NaN.

SEE ALSO:
  - ingest/loader.go: FileError per failed file
  - summary/summarizer.go: StageError per failed stage
*/
package inventory

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrParse is returned when an input file, row or value cannot be decoded.
	ErrParse = errors.New("parse error")

	// ErrIO is returned when a file or the database cannot be read or written.
	ErrIO = errors.New("io error")

	// ErrSchema is returned when a required table or column does not exist,
	// typically because summarize ran before load.
	ErrSchema = errors.New("schema error")

	// ErrAllFilesFailed is returned by a load batch in which no file loaded.
	ErrAllFilesFailed = errors.New("all files failed to load")

	// ErrNotFound is returned when a requested summary row or run is absent.
	ErrNotFound = errors.New("not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// FileError reports a per-file load failure.
type FileError struct {
	Path  string
	Table string
	Err   error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("load %s into %s: %v", e.Path, e.Table, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// StageError reports which summarizer stage failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// SchemaError names the missing table, or the missing column of a table.
type SchemaError struct {
	Table  string
	Column string
}

func (e *SchemaError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("table %q does not exist", e.Table)
	}
	return fmt.Sprintf("table %q has no column %q", e.Table, e.Column)
}

func (e *SchemaError) Unwrap() error {
	return ErrSchema
}

// ParseError locates a value that could not be decoded.
type ParseError struct {
	Table  string
	Column string
	Row    int
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s.%s row %d: cannot parse %q: %v", e.Table, e.Column, e.Row, e.Value, e.Err)
}

func (e *ParseError) Unwrap() []error {
	return []error{ErrParse, e.Err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsFatal reports whether err must stop the whole run rather than a single
// file.
func IsFatal(err error) bool {
	return errors.Is(err, ErrSchema) || errors.Is(err, ErrAllFilesFailed)
}
