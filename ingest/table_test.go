package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/vendor-analytics/inventory"
)

func TestBuildTable_InfersColumnTypes(t *testing.T) {
	// GIVEN: Integer, real, text and all-NULL columns
	header := []string{"Brand", "Price", "Description", "Notes"}
	records := [][]string{
		{"58", "12.99", "Gekkeikan Black & Gold Sake", ""},
		{"62", "36", " Herradura Silver ", "NA"},
		{"", "nan", "", ""},
	}

	// WHEN: Building the table
	tbl, err := BuildTable("purchase_prices", header, records)

	// THEN: Types follow the non-NULL cells
	require.NoError(t, err)
	assert.Equal(t, []inventory.Column{
		{Name: "Brand", Type: inventory.TypeInteger},
		{Name: "Price", Type: inventory.TypeReal},
		{Name: "Description", Type: inventory.TypeText},
		{Name: "Notes", Type: inventory.TypeText},
	}, tbl.Columns)

	require.Len(t, tbl.Rows, 3)
	assert.Equal(t, []any{int64(58), 12.99, "Gekkeikan Black & Gold Sake", nil}, tbl.Rows[0])
	assert.Equal(t, []any{int64(62), 36.0, " Herradura Silver ", nil}, tbl.Rows[1])
	assert.Equal(t, []any{nil, nil, nil, nil}, tbl.Rows[2])
}

func TestBuildTable_MixedColumnIsText(t *testing.T) {
	tbl, err := BuildTable("purchase_prices", []string{"Volume"}, [][]string{{"750"}, {"1.75"}, {"Unknown"}})

	require.NoError(t, err)
	assert.Equal(t, inventory.TypeText, tbl.Columns[0].Type)
	assert.Equal(t, []any{"750"}, tbl.Rows[0])
	assert.Equal(t, []any{"Unknown"}, tbl.Rows[2])
}

func TestBuildTable_ShortRowsPadWithNull(t *testing.T) {
	tbl, err := BuildTable("sales", []string{"A", "B"}, [][]string{{"1"}})

	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), nil}, tbl.Rows[0])
}

func TestBuildTable_ExtraFieldsFail(t *testing.T) {
	// GIVEN: A row with a value past the last header
	_, err := BuildTable("sales", []string{"A"}, [][]string{{"1"}, {"2", "oops"}})

	// THEN: A ParseError pointing at row 2
	require.Error(t, err)
	assert.ErrorIs(t, err, inventory.ErrParse)
	var parseErr *inventory.ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, 2, parseErr.Row)
	assert.Equal(t, "oops", parseErr.Value)
}

func TestBuildTable_NoHeader(t *testing.T) {
	_, err := BuildTable("sales", nil, nil)
	assert.ErrorIs(t, err, inventory.ErrParse)
}

func TestNormalizeHeader(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"trims and strips BOM", []string{"\ufeffVendorNumber", " Brand "}, []string{"VendorNumber", "Brand"}},
		{"names blanks by position", []string{"A", "", "C"}, []string{"A", "column_2", "C"}},
		{"suffixes repeats", []string{"A", "A", "A"}, []string{"A", "A.1", "A.2"}},
		{"skips taken suffixes", []string{"A.1", "A", "A"}, []string{"A.1", "A", "A.2"}},
		{"repeats match case-insensitively", []string{"Brand", "brand"}, []string{"Brand", "brand.1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeHeader(tt.in))
		})
	}
}

func TestFormatOf(t *testing.T) {
	tests := []struct {
		name   string
		format string
		ok     bool
	}{
		{"sales.csv", FormatCSV, true},
		{"Vendor_invoice.XLSX", FormatXLSX, true},
		{"purchases.parquet", FormatParquet, true},
		{"notes.txt", "txt", false},
		{"~$purchases.xlsx", "", false},
		{".hidden.csv", "", false},
		{"README", "", false},
	}
	for _, tt := range tests {
		format, ok := FormatOf(tt.name)
		assert.Equal(t, tt.ok, ok, tt.name)
		if tt.ok {
			assert.Equal(t, tt.format, format, tt.name)
		}
	}
}

func TestTableName(t *testing.T) {
	assert.Equal(t, "Vendor_invoice", TableName("/data/Vendor_invoice.csv"))
	assert.Equal(t, "purchase_prices", TableName("purchase_prices.xlsx"))
}
