package sqlite

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/vendor-analytics/inventory"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func pricesTable(rows ...[]any) *inventory.Table {
	return &inventory.Table{
		Name: inventory.TablePrices,
		Columns: []inventory.Column{
			{Name: "Brand", Type: inventory.TypeInteger},
			{Name: "Volume", Type: inventory.TypeText},
			{Name: "Price", Type: inventory.TypeReal},
		},
		Rows: rows,
	}
}

func countRows(t *testing.T, s *Store, table string) int {
	t.Helper()
	var n int
	require.NoError(t, s.DB().QueryRow(`SELECT COUNT(*) FROM "`+table+`"`).Scan(&n))
	return n
}

// =============================================================================
// TABLE WRITER
// =============================================================================

func TestReplaceTable_ReplacesPreviousContents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// GIVEN: A loaded prices table
	require.NoError(t, s.ReplaceTable(ctx, pricesTable(
		[]any{int64(1), "750", 10.5},
		[]any{int64(2), "1000", 20.0},
	)))

	// WHEN: Loading it again with one row
	require.NoError(t, s.ReplaceTable(ctx, pricesTable([]any{int64(3), nil, 5.0})))

	// THEN: Only the new row is present
	assert.Equal(t, 1, countRows(t, s, inventory.TablePrices))
	prices, err := s.Prices(ctx)
	require.NoError(t, err)
	require.Len(t, prices, 1)
	assert.Equal(t, int64(3), prices[0].Brand.Int64)
	assert.False(t, prices[0].Volume.Valid)
	assert.True(t, decimal.NewFromInt(5).Equal(prices[0].Price.Decimal))
}

func TestReplaceTable_FailureKeepsPreviousTable(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// GIVEN: A loaded prices table
	require.NoError(t, s.ReplaceTable(ctx, pricesTable([]any{int64(1), "750", 10.5})))

	// WHEN: A replacement fails on its second row (too few values)
	err := s.ReplaceTable(ctx, pricesTable(
		[]any{int64(2), "1000", 20.0},
		[]any{int64(3)},
	))

	// THEN: The error is reported and the old table is intact
	require.Error(t, err)
	assert.ErrorIs(t, err, inventory.ErrIO)
	prices, err := s.Prices(ctx)
	require.NoError(t, err)
	require.Len(t, prices, 1)
	assert.Equal(t, int64(1), prices[0].Brand.Int64)
}

func TestReplaceTable_RejectsEmptySchema(t *testing.T) {
	s := newTestStore(t)
	err := s.ReplaceTable(context.Background(), &inventory.Table{Name: "empty"})
	assert.Error(t, err)
}

// =============================================================================
// SOURCE READER
// =============================================================================

func TestSourceReader_MissingTable(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Sales(context.Background())

	var schemaErr *inventory.SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, inventory.TableSales, schemaErr.Table)
}

func TestSourceReader_MissingColumn(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// GIVEN: An invoice table without Freight
	require.NoError(t, s.ReplaceTable(ctx, &inventory.Table{
		Name:    inventory.TableInvoices,
		Columns: []inventory.Column{{Name: "VendorNumber", Type: inventory.TypeInteger}},
		Rows:    [][]any{{int64(1)}},
	}))

	// WHEN: Reading invoices
	_, err := s.Invoices(ctx)

	// THEN: The missing column is named
	var schemaErr *inventory.SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "Freight", schemaErr.Column)
}

func TestSourceReader_MatchesColumnsCaseInsensitively(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// GIVEN: An invoice table with lower-cased headers and extra columns
	require.NoError(t, s.ReplaceTable(ctx, &inventory.Table{
		Name: inventory.TableInvoices,
		Columns: []inventory.Column{
			{Name: "PONumber", Type: inventory.TypeInteger},
			{Name: "freight", Type: inventory.TypeReal},
			{Name: "vendornumber", Type: inventory.TypeInteger},
		},
		Rows: [][]any{{int64(100), 12.25, int64(7)}, {int64(101), nil, nil}},
	}))

	// WHEN: Reading invoices
	got, err := s.Invoices(ctx)

	// THEN: Values land in the right fields, NULLs stay NULL
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(7), got[0].VendorNumber.Int64)
	assert.Equal(t, "12.25", got[0].Freight.Decimal.String())
	assert.False(t, got[1].VendorNumber.Valid)
	assert.False(t, got[1].Freight.Valid)
}

// =============================================================================
// SUMMARY
// =============================================================================

func TestListSummary_BeforeSummarize(t *testing.T) {
	s := newTestStore(t)

	_, err := s.ListSummary(context.Background(), inventory.SummaryFilter{})

	assert.ErrorIs(t, err, inventory.ErrSchema)
}

func TestReplaceSummary_RoundTripsNonFiniteRatios(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// GIVEN: Two summary rows, one with -Inf and NaN ratios
	rows := []inventory.VendorSummary{
		{
			VendorNumber: 1, VendorName: "A", Brand: 10, Description: "x",
			PurchasePrice: decimal.RequireFromString("4.5"), Volume: 750,
			TotalPurchaseQuantity: 2, TotalPurchaseDollars: decimal.NewFromInt(9),
			TotalSalesDollars: decimal.Zero, GrossProfit: decimal.NewFromInt(-9),
			ProfitMargin: math.Inf(-1), StockTurnover: 0, SalestoPurchaseRatio: 0,
		},
		{
			VendorNumber: 2, VendorName: "B", Brand: 20,
			TotalPurchaseDollars: decimal.NewFromInt(100), TotalSalesDollars: decimal.NewFromInt(150),
			GrossProfit: decimal.NewFromInt(50), ProfitMargin: 100.0 / 3, StockTurnover: math.NaN(),
			SalestoPurchaseRatio: 1.5,
		},
	}

	// WHEN: Writing and reading back
	require.NoError(t, s.ReplaceSummary(ctx, rows))
	got, err := s.ListSummary(ctx, inventory.SummaryFilter{})

	// THEN: Ordered by purchase dollars, ratios preserved
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(2), got[0].VendorNumber)
	assert.True(t, math.IsNaN(got[0].StockTurnover))
	assert.InDelta(t, 33.333333, got[0].ProfitMargin, 1e-5)
	assert.True(t, math.IsInf(got[1].ProfitMargin, -1))
	assert.Equal(t, "4.5", got[1].PurchasePrice.String())
	assert.Equal(t, "-9", got[1].GrossProfit.String())
}

func TestListSummary_Filters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.ReplaceSummary(ctx, []inventory.VendorSummary{
		{VendorNumber: 1, Brand: 1, TotalPurchaseDollars: decimal.NewFromInt(30)},
		{VendorNumber: 1, Brand: 2, TotalPurchaseDollars: decimal.NewFromInt(20)},
		{VendorNumber: 2, Brand: 3, TotalPurchaseDollars: decimal.NewFromInt(10)},
	}))

	vendor := int64(1)
	got, err := s.ListSummary(ctx, inventory.SummaryFilter{VendorNumber: &vendor, Offset: 1})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(2), got[0].Brand)

	got, err = s.ListSummary(ctx, inventory.SummaryFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].Brand)
}

// =============================================================================
// RUNS
// =============================================================================

func TestSaveRun_UpsertsAndListsNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	// GIVEN: Two runs, the older one later completed
	older := inventory.Run{ID: "a", Kind: inventory.RunLoad, Status: inventory.RunRunning, StartedAt: start}
	newer := inventory.Run{ID: "b", Kind: inventory.RunSummarize, Status: inventory.RunRunning, StartedAt: start.Add(time.Minute)}
	require.NoError(t, s.SaveRun(ctx, older))
	require.NoError(t, s.SaveRun(ctx, newer))

	done := start.Add(30 * time.Second)
	older.Status = inventory.RunFailed
	older.Error = "boom"
	older.Rows = 12
	older.CompletedAt = &done
	require.NoError(t, s.SaveRun(ctx, older))

	// WHEN: Listing
	runs, err := s.ListRuns(ctx, 10)

	// THEN: Two rows, newest first, the update applied
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "b", runs[0].ID)
	assert.Nil(t, runs[0].CompletedAt)
	assert.Equal(t, "a", runs[1].ID)
	assert.Equal(t, inventory.RunFailed, runs[1].Status)
	assert.Equal(t, "boom", runs[1].Error)
	assert.Equal(t, int64(12), runs[1].Rows)
	require.NotNil(t, runs[1].CompletedAt)
	assert.True(t, done.Equal(*runs[1].CompletedAt))

	limited, err := s.ListRuns(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
