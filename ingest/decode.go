package ingest

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/warp/vendor-analytics/inventory"
)

// Supported input formats, keyed by lower-case file extension.
const (
	FormatCSV     = "csv"
	FormatXLSX    = "xlsx"
	FormatParquet = "parquet"
)

// decodeFunc reads the file at path into a table named name.
type decodeFunc func(path, name string) (*inventory.Table, error)

var decoders = map[string]decodeFunc{
	FormatCSV:     decodeCSV,
	FormatXLSX:    decodeXLSX,
	FormatParquet: decodeParquet,
}

// FormatOf returns the input format of a file name, or false for anything
// the loader skips. Excel lock files (~$book.xlsx) are skipped.
func FormatOf(name string) (string, bool) {
	base := filepath.Base(name)
	if strings.HasPrefix(base, "~$") || strings.HasPrefix(base, ".") {
		return "", false
	}
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(base)), ".")
	_, ok := decoders[format]
	return format, ok
}

// TableName is the file base name without its extension.
func TableName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Decode reads one tabular file into a typed table named after the file.
func Decode(path string) (*inventory.Table, error) {
	format, ok := FormatOf(path)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported file type %q", inventory.ErrParse, filepath.Ext(path))
	}
	return decoders[format](path, TableName(path))
}

// ioError classifies an open/read failure: missing or unreadable files are
// ErrIO, anything else ErrParse.
func ioError(path string, err error) error {
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
		return fmt.Errorf("open %s: %w: %w", path, inventory.ErrIO, err)
	}
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return fmt.Errorf("read %s: %w: %w", path, inventory.ErrIO, err)
	}
	return fmt.Errorf("decode %s: %w: %w", path, inventory.ErrParse, err)
}

// =============================================================================
// CSV
// =============================================================================

func decodeCSV(path, name string) (*inventory.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ioError(path, err)
	}
	defer f.Close()

	r := csv.NewReader(bufio.NewReaderSize(f, 1<<16))
	// Ragged rows are checked against the header in BuildTable.
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %s is empty", inventory.ErrParse, path)
	}
	if err != nil {
		return nil, ioError(path, err)
	}

	var records [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, ioError(path, err)
		}
		records = append(records, rec)
	}
	return BuildTable(name, header, records)
}

// =============================================================================
// XLSX
// =============================================================================

// decodeXLSX reads the first worksheet. Cells are read raw so numbers are
// not run through the workbook's display formats.
func decodeXLSX(path, name string) (*inventory.Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, ioError(path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: %s has no worksheets", inventory.ErrParse, path)
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q of %s: %w: %w", sheets[0], path, inventory.ErrParse, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s sheet %q is empty", inventory.ErrParse, path, sheets[0])
	}
	return BuildTable(name, rows[0], rows[1:])
}
