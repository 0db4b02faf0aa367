package ingest

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/parquet-go/parquet-go"

	"github.com/warp/vendor-analytics/inventory"
)

// parquetBatch is how many rows are pulled from a row group per read.
const parquetBatch = 512

// decodeParquet reads a flat parquet file. Column types come from the
// physical schema instead of inference: integers and booleans are INTEGER,
// floats and scaled decimals REAL, everything else TEXT.
func decodeParquet(path, name string) (*inventory.Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, ioError(path, err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, ioError(path, err)
	}

	pf, err := parquet.OpenFile(file, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("open parquet %s: %w: %w", path, inventory.ErrParse, err)
	}

	fields := pf.Schema().Fields()
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: %s has no columns", inventory.ErrParse, path)
	}

	header := make([]string, len(fields))
	cols := make([]parquetColumn, len(fields))
	for i, f := range fields {
		if !f.Leaf() || f.Repeated() {
			return nil, fmt.Errorf("%w: %s column %q is nested or repeated", inventory.ErrParse, path, f.Name())
		}
		header[i] = f.Name()
		cols[i] = columnOf(f)
	}

	t := &inventory.Table{Name: name, Columns: make([]inventory.Column, len(fields))}
	for i, c := range normalizeHeader(header) {
		t.Columns[i] = inventory.Column{Name: c, Type: cols[i].typ}
	}

	buf := make([]parquet.Row, parquetBatch)
	for _, rg := range pf.RowGroups() {
		if err := readRowGroup(rg, cols, buf, t); err != nil {
			return nil, fmt.Errorf("read parquet %s: %w: %w", path, inventory.ErrParse, err)
		}
	}
	return t, nil
}

func readRowGroup(rg parquet.RowGroup, cols []parquetColumn, buf []parquet.Row, t *inventory.Table) error {
	rows := rg.Rows()
	defer rows.Close()

	for {
		n, err := rows.ReadRows(buf)
		for _, r := range buf[:n] {
			out := make([]any, len(cols))
			for _, v := range r {
				c := v.Column()
				if c < 0 || c >= len(cols) || v.IsNull() {
					continue
				}
				out[c] = cols[c].convert(v)
			}
			t.Rows = append(t.Rows, out)
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// parquetColumn maps one physical column onto a table column.
type parquetColumn struct {
	typ   inventory.ColumnType
	scale int32 // decimal scale, 0 when not a decimal
}

func columnOf(f parquet.Field) parquetColumn {
	typ := f.Type()
	if lt := typ.LogicalType(); lt != nil && lt.Decimal != nil {
		switch typ.Kind() {
		case parquet.Int32, parquet.Int64:
			return parquetColumn{typ: inventory.TypeReal, scale: lt.Decimal.Scale}
		}
		return parquetColumn{typ: inventory.TypeText}
	}
	switch typ.Kind() {
	case parquet.Boolean, parquet.Int32, parquet.Int64:
		return parquetColumn{typ: inventory.TypeInteger}
	case parquet.Float, parquet.Double:
		return parquetColumn{typ: inventory.TypeReal}
	}
	return parquetColumn{typ: inventory.TypeText}
}

func (c parquetColumn) convert(v parquet.Value) any {
	switch v.Kind() {
	case parquet.Boolean:
		if v.Boolean() {
			return int64(1)
		}
		return int64(0)
	case parquet.Int32:
		return c.integer(int64(v.Int32()))
	case parquet.Int64:
		return c.integer(v.Int64())
	case parquet.Float:
		return float64(v.Float())
	case parquet.Double:
		return v.Double()
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return string(v.ByteArray())
	}
	return v.String()
}

func (c parquetColumn) integer(n int64) any {
	if c.typ == inventory.TypeReal {
		return float64(n) / math.Pow10(int(c.scale))
	}
	return n
}
