/*
Package inventory provides the domain model of the vendor analytics pipeline.

PURPOSE:
  Holds the record types read from the source tables, the derived vendor
  summary record, and the generic tabular model the loader writes. Both the
  ingest and summary packages speak these types; storage backends translate
  them to and from SQL.

KEY CONCEPTS IN THIS FILE (types.go):
  - Source records: InvoiceRecord, PurchaseRecord, PriceRecord, SalesRecord
  - VendorSummary: one output row per (VendorNumber, Brand)
  - Table/Column: a decoded tabular file ready for bulk load

DESIGN PRINCIPLES:
  1. Precision: money is decimal.Decimal, so sums and GrossProfit are exact
  2. Nullability: source columns may be NULL; they use sql.NullInt64,
     sql.NullString and decimal.NullDecimal until the cleaning pass
  3. Ratios are float64 and may hold +Inf, -Inf or NaN

SEE ALSO:
  - errors.go: Error taxonomy
  - store.go: Storage interfaces
  - summary/: Aggregation and derivation
*/
package inventory

import (
	"database/sql"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// TABLE NAMES
// =============================================================================

const (
	TableInvoices  = "Vendor_invoice"
	TablePurchases = "purchases"
	TablePrices    = "purchase_prices"
	TableSales     = "sales"
	TableSummary   = "vendor_sales_summary"
	TableRuns      = "pipeline_runs"
)

// =============================================================================
// SOURCE RECORDS
// =============================================================================

// InvoiceRecord is one row of Vendor_invoice. Source of freight cost.
type InvoiceRecord struct {
	VendorNumber sql.NullInt64
	Freight      decimal.NullDecimal
}

// PurchaseRecord is one row of purchases.
type PurchaseRecord struct {
	VendorNumber  sql.NullInt64
	VendorName    sql.NullString
	Brand         sql.NullInt64
	Description   sql.NullString
	PurchasePrice decimal.NullDecimal
	Quantity      sql.NullInt64
	Dollars       decimal.NullDecimal
}

// PriceRecord is one row of purchase_prices. Volume is kept as text, the
// way the source delivers it.
type PriceRecord struct {
	Brand  sql.NullInt64
	Volume sql.NullString
	Price  decimal.NullDecimal
}

// SalesRecord is one row of sales.
type SalesRecord struct {
	VendorNo      sql.NullInt64
	Brand         sql.NullInt64
	SalesQuantity sql.NullInt64
	SalesDollars  decimal.NullDecimal
	SalesPrice    decimal.NullDecimal
	ExciseTax     decimal.NullDecimal
}

// =============================================================================
// VENDOR SUMMARY - Derived output row
// =============================================================================

// VendorSummary is one row of vendor_sales_summary. All fields are
// non-null; the cleaning pass has zero-filled anything missing.
type VendorSummary struct {
	VendorNumber          int64
	VendorName            string
	Brand                 int64
	Description           string
	PurchasePrice         decimal.Decimal
	ActualPrice           decimal.Decimal
	Volume                float64
	TotalPurchaseQuantity int64
	TotalPurchaseDollars  decimal.Decimal
	TotalSalesQuantity    int64
	TotalSalesDollars     decimal.Decimal
	TotalSalesPrice       decimal.Decimal
	TotalExciseTax        decimal.Decimal
	FreightCost           decimal.Decimal
	GrossProfit           decimal.Decimal
	ProfitMargin          float64
	StockTurnover         float64
	SalestoPurchaseRatio  float64
}

// SummaryColumns lists the output columns in table order.
var SummaryColumns = []Column{
	{Name: "VendorNumber", Type: TypeInteger},
	{Name: "VendorName", Type: TypeText},
	{Name: "Brand", Type: TypeInteger},
	{Name: "Description", Type: TypeText},
	{Name: "PurchasePrice", Type: TypeReal},
	{Name: "ActualPrice", Type: TypeReal},
	{Name: "Volume", Type: TypeReal},
	{Name: "TotalPurchaseQuantity", Type: TypeInteger},
	{Name: "TotalPurchaseDollars", Type: TypeReal},
	{Name: "TotalSalesQuantity", Type: TypeInteger},
	{Name: "TotalSalesDollars", Type: TypeReal},
	{Name: "TotalSalesPrice", Type: TypeReal},
	{Name: "TotalExciseTax", Type: TypeReal},
	{Name: "FreightCost", Type: TypeReal},
	{Name: "GrossProfit", Type: TypeReal},
	{Name: "ProfitMargin", Type: TypeReal},
	{Name: "StockTurnover", Type: TypeReal},
	{Name: "SalestoPurchaseRatio", Type: TypeReal},
}

// Values returns the row in SummaryColumns order, using the Go types a
// Table row carries (int64, float64, string).
func (v VendorSummary) Values() []any {
	return []any{
		v.VendorNumber,
		v.VendorName,
		v.Brand,
		v.Description,
		v.PurchasePrice.InexactFloat64(),
		v.ActualPrice.InexactFloat64(),
		v.Volume,
		v.TotalPurchaseQuantity,
		v.TotalPurchaseDollars.InexactFloat64(),
		v.TotalSalesQuantity,
		v.TotalSalesDollars.InexactFloat64(),
		v.TotalSalesPrice.InexactFloat64(),
		v.TotalExciseTax.InexactFloat64(),
		v.FreightCost.InexactFloat64(),
		v.GrossProfit.InexactFloat64(),
		v.ProfitMargin,
		v.StockTurnover,
		v.SalestoPurchaseRatio,
	}
}

// SummaryTable converts summary rows to a Table named vendor_sales_summary.
func SummaryTable(rows []VendorSummary) *Table {
	t := &Table{
		Name:    TableSummary,
		Columns: append([]Column(nil), SummaryColumns...),
		Rows:    make([][]any, 0, len(rows)),
	}
	for _, r := range rows {
		t.Rows = append(t.Rows, r.Values())
	}
	return t
}

// SummaryFilter narrows ListSummary. Zero values mean no filter.
type SummaryFilter struct {
	VendorNumber *int64
	Brand        *int64
	Limit        int
	Offset       int
}

// VendorRollup aggregates all summary rows of one vendor.
type VendorRollup struct {
	VendorNumber         int64
	VendorName           string
	Brands               int
	TotalPurchaseDollars decimal.Decimal
	TotalSalesDollars    decimal.Decimal
	GrossProfit          decimal.Decimal
	FreightCost          decimal.Decimal
}

// Rollup folds summary rows of a single vendor. FreightCost is carried per
// vendor on every row, so it is taken once rather than summed.
func Rollup(vendor int64, rows []VendorSummary) VendorRollup {
	r := VendorRollup{VendorNumber: vendor}
	for _, s := range rows {
		if s.VendorNumber != vendor {
			continue
		}
		if r.VendorName == "" {
			r.VendorName = s.VendorName
		}
		r.Brands++
		r.TotalPurchaseDollars = r.TotalPurchaseDollars.Add(s.TotalPurchaseDollars)
		r.TotalSalesDollars = r.TotalSalesDollars.Add(s.TotalSalesDollars)
		r.GrossProfit = r.GrossProfit.Add(s.GrossProfit)
		r.FreightCost = s.FreightCost
	}
	return r
}

// =============================================================================
// TABLE - Generic tabular data
// =============================================================================

// ColumnType is the storage affinity of a column.
type ColumnType string

const (
	TypeInteger ColumnType = "INTEGER"
	TypeReal    ColumnType = "REAL"
	TypeText    ColumnType = "TEXT"
)

// Column describes one column of a Table.
type Column struct {
	Name string
	Type ColumnType
}

// Table is a fully materialized table. Each row has len(Columns) cells;
// a cell is int64, float64, string or nil.
type Table struct {
	Name    string
	Columns []Column
	Rows    [][]any
}

// ColumnNames returns the column names in order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// FormatRatio renders a ratio, spelling out non-finite values.
func FormatRatio(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "+Inf"
	case math.IsInf(f, -1):
		return "-Inf"
	}
	return decimal.NewFromFloat(f).String()
}

// =============================================================================
// PIPELINE RUNS
// =============================================================================

// RunKind identifies which batch entry point produced a run.
type RunKind string

const (
	RunLoad      RunKind = "load"
	RunSummarize RunKind = "summarize"
)

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// Run is one recorded batch invocation.
type Run struct {
	ID          string
	Kind        RunKind
	Status      RunStatus
	Rows        int64
	Error       string
	StartedAt   time.Time
	CompletedAt *time.Time
}
