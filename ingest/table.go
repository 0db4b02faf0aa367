package ingest

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/warp/vendor-analytics/inventory"
)

// naValues are the cell spellings read as NULL, matching what common
// dataframe readers treat as missing by default.
var naValues = map[string]bool{
	"": true, "#N/A": true, "#N/A N/A": true, "#NA": true, "-1.#IND": true,
	"-1.#QNAN": true, "-NaN": true, "-nan": true, "1.#IND": true, "1.#QNAN": true,
	"<NA>": true, "N/A": true, "NA": true, "NULL": true, "NaN": true,
	"None": true, "n/a": true, "nan": true, "null": true,
}

func isNA(cell string) bool {
	return naValues[strings.TrimSpace(cell)]
}

// BuildTable turns a header and string records into a typed Table. Column
// types are inferred over the non-NULL cells: all integers gives INTEGER,
// all numbers gives REAL, anything else TEXT. Text cells keep their
// original spacing.
func BuildTable(name string, header []string, records [][]string) (*inventory.Table, error) {
	if len(header) == 0 {
		return nil, fmt.Errorf("%w: %s has no header row", inventory.ErrParse, name)
	}
	cols := normalizeHeader(header)

	for i, rec := range records {
		if len(rec) > len(cols) {
			for _, extra := range rec[len(cols):] {
				if !isNA(extra) {
					return nil, &inventory.ParseError{
						Table:  name,
						Column: fmt.Sprintf("column_%d", len(cols)+1),
						Row:    i + 1,
						Value:  extra,
						Err:    fmt.Errorf("expected %d fields, saw %d", len(cols), len(rec)),
					}
				}
			}
		}
	}

	t := &inventory.Table{Name: name, Columns: make([]inventory.Column, len(cols))}
	for j, c := range cols {
		t.Columns[j] = inventory.Column{Name: c, Type: inferType(records, j)}
	}

	t.Rows = make([][]any, len(records))
	for i, rec := range records {
		row := make([]any, len(cols))
		for j, col := range t.Columns {
			if j >= len(rec) || isNA(rec[j]) {
				continue
			}
			v, err := convert(rec[j], col.Type)
			if err != nil {
				return nil, &inventory.ParseError{Table: name, Column: col.Name, Row: i + 1, Value: rec[j], Err: err}
			}
			row[j] = v
		}
		t.Rows[i] = row
	}
	return t, nil
}

// normalizeHeader trims names, names blank headers column_N and suffixes
// repeats with .1, .2, ...
func normalizeHeader(header []string) []string {
	out := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if h == "" {
			h = "column_" + strconv.Itoa(i+1)
		}
		base, key := h, strings.ToLower(h)
		for n := seen[key]; seen[key] > 0; n++ {
			h = base + "." + strconv.Itoa(n)
			key = strings.ToLower(h)
		}
		seen[strings.ToLower(base)]++
		if key != strings.ToLower(base) {
			seen[key]++
		}
		out[i] = h
	}
	return out
}

func inferType(records [][]string, j int) inventory.ColumnType {
	typ := inventory.TypeInteger
	nonNull := false
	for _, rec := range records {
		if j >= len(rec) || isNA(rec[j]) {
			continue
		}
		nonNull = true
		cell := strings.TrimSpace(rec[j])
		if typ == inventory.TypeInteger {
			if _, err := strconv.ParseInt(cell, 10, 64); err == nil {
				continue
			}
			typ = inventory.TypeReal
		}
		if _, err := strconv.ParseFloat(cell, 64); err != nil {
			return inventory.TypeText
		}
	}
	if !nonNull {
		return inventory.TypeText
	}
	return typ
}

func convert(cell string, typ inventory.ColumnType) (any, error) {
	switch typ {
	case inventory.TypeInteger:
		return strconv.ParseInt(strings.TrimSpace(cell), 10, 64)
	case inventory.TypeReal:
		return strconv.ParseFloat(strings.TrimSpace(cell), 64)
	}
	return cell, nil
}
