package summary

import (
	"database/sql"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/vendor-analytics/inventory"
)

func id(n int64) sql.NullInt64 { return sql.NullInt64{Int64: n, Valid: true} }

func money(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func text(s string) sql.NullString { return sql.NullString{String: s, Valid: true} }

// =============================================================================
// FREIGHT
// =============================================================================

func TestFreightSummary_SumsPerVendorInFirstSeenOrder(t *testing.T) {
	// GIVEN: Invoices for two vendors, interleaved
	invoices := []inventory.InvoiceRecord{
		{VendorNumber: id(2), Freight: money("1.10")},
		{VendorNumber: id(1), Freight: money("3")},
		{VendorNumber: id(2), Freight: money("2.20")},
	}

	// WHEN: Summing freight
	got := FreightSummary(invoices)

	// THEN: One total per vendor, vendor 2 first
	require.Len(t, got, 2)
	assert.Equal(t, int64(2), got[0].VendorNumber.Int64)
	assert.Equal(t, "3.3", got[0].FreightCost.Decimal.String())
	assert.Equal(t, "3", got[1].FreightCost.Decimal.String())
}

func TestFreightSummary_AllNullFreightStaysNull(t *testing.T) {
	// GIVEN: A vendor whose invoices all lack freight
	invoices := []inventory.InvoiceRecord{
		{VendorNumber: id(1)},
		{VendorNumber: id(1)},
	}

	// WHEN: Summing freight
	got := FreightSummary(invoices)

	// THEN: The SUM is NULL, not zero
	require.Len(t, got, 1)
	assert.False(t, got[0].FreightCost.Valid)
}

func TestFreightSummary_NullVendorsGroupTogether(t *testing.T) {
	// GIVEN: Two invoices with NULL vendor, one with a stray payload
	invoices := []inventory.InvoiceRecord{
		{VendorNumber: sql.NullInt64{}, Freight: money("1")},
		{VendorNumber: sql.NullInt64{Int64: 42}, Freight: money("2")},
	}

	// WHEN: Summing freight
	got := FreightSummary(invoices)

	// THEN: A single NULL group
	require.Len(t, got, 1)
	assert.Equal(t, "3", got[0].FreightCost.Decimal.String())
}

// =============================================================================
// PURCHASES
// =============================================================================

func TestPurchaseSummary_KeepsFirstSeenDescriptiveFields(t *testing.T) {
	// GIVEN: Two purchase rows of one group with differing descriptions
	purchases := []inventory.PurchaseRecord{
		{VendorNumber: id(1), VendorName: text("First"), Brand: id(9), Description: text("one"), PurchasePrice: money("2"), Quantity: id(1), Dollars: money("2")},
		{VendorNumber: id(1), VendorName: text("Second"), Brand: id(9), Description: text("two"), PurchasePrice: money("3"), Quantity: id(2), Dollars: money("6")},
	}
	prices := []inventory.PriceRecord{{Brand: id(9), Volume: text("750"), Price: money("4")}}

	// WHEN: Summarizing purchases
	res := PurchaseSummary(purchases, prices)

	// THEN: Descriptive fields come from the first row, totals from both
	require.Len(t, res.Totals, 1)
	got := res.Totals[0]
	assert.Equal(t, "First", got.VendorName.String)
	assert.Equal(t, "one", got.Description.String)
	assert.Equal(t, "2", got.PurchasePrice.Decimal.String())
	assert.Equal(t, int64(3), got.TotalPurchaseQuantity.Int64)
	assert.Equal(t, "8", got.TotalPurchaseDollars.Decimal.String())
}

func TestPurchaseSummary_ReportsDiagnostics(t *testing.T) {
	// GIVEN: A filtered row, an unpriced row and a duplicated price brand
	purchases := []inventory.PurchaseRecord{
		{VendorNumber: id(1), Brand: id(1), PurchasePrice: money("0"), Quantity: id(1), Dollars: money("1")},
		{VendorNumber: id(1), Brand: id(2), PurchasePrice: money("1"), Quantity: id(1), Dollars: money("1")},
		{VendorNumber: id(1), Brand: id(3), PurchasePrice: money("1"), Quantity: id(1), Dollars: money("1")},
	}
	prices := []inventory.PriceRecord{
		{Brand: id(3), Price: money("1")},
		{Brand: id(3), Price: money("2")},
		{Brand: id(3), Price: money("3")},
	}

	// WHEN: Summarizing purchases
	res := PurchaseSummary(purchases, prices)

	// THEN: Each condition is counted once
	assert.Equal(t, 1, res.Filtered)
	assert.Equal(t, 1, res.Unpriced)
	assert.Equal(t, []int64{3}, res.DuplicateBrands)
	require.Len(t, res.Totals, 1)
	assert.Equal(t, "1", res.Totals[0].ActualPrice.Decimal.String())
}

// =============================================================================
// JOIN AND ORDER
// =============================================================================

func TestJoin_LeftJoinKeepsEveryPurchaseGroup(t *testing.T) {
	// GIVEN: Two purchase groups, sales for one, freight for the other
	purchases := []PurchaseTotal{
		{VendorNumber: id(1), Brand: id(1), TotalPurchaseDollars: money("10")},
		{VendorNumber: id(2), Brand: id(2), TotalPurchaseDollars: money("20")},
	}
	sales := []SalesTotal{{VendorNo: id(1), Brand: id(1), TotalSalesDollars: money("15")}}
	freight := []FreightTotal{{VendorNumber: id(2), FreightCost: money("7")}}

	// WHEN: Joining
	rows := Join(purchases, sales, freight)

	// THEN: Unmatched columns are NULL
	require.Len(t, rows, 2)
	assert.Equal(t, "15", rows[0].TotalSalesDollars.Decimal.String())
	assert.False(t, rows[0].FreightCost.Valid)
	assert.False(t, rows[1].TotalSalesDollars.Valid)
	assert.Equal(t, "7", rows[1].FreightCost.Decimal.String())
}

func TestSortByPurchaseDollars_NullLast(t *testing.T) {
	// GIVEN: Rows with a NULL purchase total in front
	rows := []JoinedRow{
		{PurchaseTotal: PurchaseTotal{Brand: id(1)}},
		{PurchaseTotal: PurchaseTotal{Brand: id(2), TotalPurchaseDollars: money("5")}},
		{PurchaseTotal: PurchaseTotal{Brand: id(3), TotalPurchaseDollars: money("50")}},
	}

	// WHEN: Sorting
	SortByPurchaseDollars(rows)

	// THEN: Descending with NULL at the end
	assert.Equal(t, int64(3), rows[0].Brand.Int64)
	assert.Equal(t, int64(2), rows[1].Brand.Int64)
	assert.Equal(t, int64(1), rows[2].Brand.Int64)
}

// =============================================================================
// CLEAN
// =============================================================================

func TestClean_ZeroFillsEveryNull(t *testing.T) {
	// GIVEN: A joined row with every value NULL
	rows := []JoinedRow{{}}

	// WHEN: Cleaning
	out, err := Clean(rows)

	// THEN: Numbers are zero, text is empty
	require.NoError(t, err)
	require.Len(t, out, 1)
	s := out[0]
	assert.Equal(t, int64(0), s.VendorNumber)
	assert.Equal(t, "", s.VendorName)
	assert.Equal(t, "", s.Description)
	assert.Equal(t, 0.0, s.Volume)
	assert.True(t, s.PurchasePrice.IsZero())
	assert.True(t, s.FreightCost.IsZero())
	assert.True(t, s.GrossProfit.IsZero())
	assert.True(t, math.IsNaN(s.StockTurnover))
}

func TestParseVolume(t *testing.T) {
	tests := []struct {
		text    string
		valid   bool
		want    float64
		wantErr bool
	}{
		{"750", true, 750, false},
		{" 1.75 ", true, 1.75, false},
		{"", true, 0, false},
		{"NaN", true, 0, false},
		{"anything", false, 0, false},
		{"750ml", true, 0, true},
	}
	for _, tt := range tests {
		got, err := parseVolume(tt.text, tt.valid)
		if tt.wantErr {
			assert.Error(t, err, tt.text)
			continue
		}
		require.NoError(t, err, tt.text)
		assert.Equal(t, tt.want, got, tt.text)
	}
}
