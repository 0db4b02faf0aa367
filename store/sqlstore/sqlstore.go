/*
Package sqlstore holds the SQL shared by the relational backends.

PURPOSE:
  SQLite and PostgreSQL differ only in placeholders, column type names,
  "no limit" spelling and catalog queries. Everything else (identifier
  quoting, DDL for a Table, source SELECTs, row scanning into domain
  records) lives here so both backends read and write identical shapes.

ROWS:
  Scanning helpers accept the small Rows interface, which *sql.Rows and
  pgx.Rows both satisfy.

SEE ALSO:
  - store/sqlite/sqlite.go
  - store/postgres/postgres.go
*/
package sqlstore

import (
	"database/sql"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/vendor-analytics/inventory"
)

// =============================================================================
// DIALECT
// =============================================================================

// Dialect captures the per-backend SQL differences.
type Dialect struct {
	Name    string
	Types   map[inventory.ColumnType]string
	NoLimit string
	// Numbered placeholders ($1, $2, ...) instead of ?.
	Numbered bool
}

var SQLite = Dialect{
	Name: "sqlite",
	Types: map[inventory.ColumnType]string{
		inventory.TypeInteger: "INTEGER",
		inventory.TypeReal:    "REAL",
		inventory.TypeText:    "TEXT",
	},
	NoLimit: "-1",
}

var Postgres = Dialect{
	Name: "postgres",
	Types: map[inventory.ColumnType]string{
		inventory.TypeInteger: "BIGINT",
		inventory.TypeReal:    "DOUBLE PRECISION",
		inventory.TypeText:    "TEXT",
	},
	NoLimit:  "ALL",
	Numbered: true,
}

// QuoteIdent quotes a table or column name.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Rebind rewrites ? placeholders for dialects that number them.
func (d Dialect) Rebind(query string) string {
	if !d.Numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// DropTable returns DROP TABLE IF EXISTS for name.
func (d Dialect) DropTable(name string) string {
	return "DROP TABLE IF EXISTS " + QuoteIdent(name)
}

// CreateTable returns the CREATE TABLE statement for t's columns.
func (d Dialect) CreateTable(t *inventory.Table) (string, error) {
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("table %q has no columns", t.Name)
	}
	defs := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		typ, ok := d.Types[c.Type]
		if !ok {
			return "", fmt.Errorf("column %q: unknown type %q", c.Name, c.Type)
		}
		defs[i] = QuoteIdent(c.Name) + " " + typ
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", QuoteIdent(t.Name), strings.Join(defs, ", ")), nil
}

// Insert returns a single-row INSERT for t.
func (d Dialect) Insert(t *inventory.Table) string {
	cols := make([]string, len(t.Columns))
	marks := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = QuoteIdent(c.Name)
		marks[i] = "?"
	}
	return d.Rebind(fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		QuoteIdent(t.Name), strings.Join(cols, ", "), strings.Join(marks, ", ")))
}

// Select returns SELECT cols FROM table.
func Select(table string, cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = QuoteIdent(c)
	}
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(quoted, ", "), QuoteIdent(table))
}

// =============================================================================
// SOURCE COLUMNS
// =============================================================================

// Columns each source table must provide, in scan order.
var (
	InvoiceColumns  = []string{"VendorNumber", "Freight"}
	PurchaseColumns = []string{"VendorNumber", "VendorName", "Brand", "Description", "PurchasePrice", "Quantity", "Dollars"}
	PriceColumns    = []string{"Brand", "Volume", "Price"}
	SalesColumns    = []string{"VendorNo", "Brand", "SalesQuantity", "SalesDollars", "SalesPrice", "ExciseTax"}
)

// ResolveColumns maps wanted column names onto the names actually present
// in table, matching case-insensitively. A nil have means the table does
// not exist.
func ResolveColumns(table string, have, want []string) ([]string, error) {
	if have == nil {
		return nil, &inventory.SchemaError{Table: table}
	}
	byLower := make(map[string]string, len(have))
	for _, h := range have {
		if _, dup := byLower[strings.ToLower(h)]; !dup {
			byLower[strings.ToLower(h)] = h
		}
	}
	out := make([]string, len(want))
	for i, w := range want {
		actual, ok := byLower[strings.ToLower(w)]
		if !ok {
			return nil, &inventory.SchemaError{Table: table, Column: w}
		}
		out[i] = actual
	}
	return out, nil
}

// =============================================================================
// SCANNING
// =============================================================================

// Rows is the subset of *sql.Rows and pgx.Rows used for scanning.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanErr(table string, err error) error {
	return fmt.Errorf("scan %s: %w: %v", table, inventory.ErrParse, err)
}

// ScanInvoices reads rows selected with InvoiceColumns.
func ScanInvoices(rows Rows) ([]inventory.InvoiceRecord, error) {
	var out []inventory.InvoiceRecord
	for rows.Next() {
		var r inventory.InvoiceRecord
		if err := rows.Scan(&r.VendorNumber, &r.Freight); err != nil {
			return nil, scanErr(inventory.TableInvoices, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ScanPurchases reads rows selected with PurchaseColumns.
func ScanPurchases(rows Rows) ([]inventory.PurchaseRecord, error) {
	var out []inventory.PurchaseRecord
	for rows.Next() {
		var r inventory.PurchaseRecord
		if err := rows.Scan(&r.VendorNumber, &r.VendorName, &r.Brand, &r.Description,
			&r.PurchasePrice, &r.Quantity, &r.Dollars); err != nil {
			return nil, scanErr(inventory.TablePurchases, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ScanPrices reads rows selected with PriceColumns.
func ScanPrices(rows Rows) ([]inventory.PriceRecord, error) {
	var out []inventory.PriceRecord
	for rows.Next() {
		var r inventory.PriceRecord
		if err := rows.Scan(&r.Brand, &r.Volume, &r.Price); err != nil {
			return nil, scanErr(inventory.TablePrices, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ScanSales reads rows selected with SalesColumns.
func ScanSales(rows Rows) ([]inventory.SalesRecord, error) {
	var out []inventory.SalesRecord
	for rows.Next() {
		var r inventory.SalesRecord
		if err := rows.Scan(&r.VendorNo, &r.Brand, &r.SalesQuantity,
			&r.SalesDollars, &r.SalesPrice, &r.ExciseTax); err != nil {
			return nil, scanErr(inventory.TableSales, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// =============================================================================
// SUMMARY
// =============================================================================

// SummaryQuery builds the ListSummary query and its arguments.
func (d Dialect) SummaryQuery(f inventory.SummaryFilter) (string, []any) {
	names := make([]string, len(inventory.SummaryColumns))
	for i, c := range inventory.SummaryColumns {
		names[i] = c.Name
	}
	q := Select(inventory.TableSummary, names)

	var where []string
	var args []any
	if f.VendorNumber != nil {
		where = append(where, QuoteIdent("VendorNumber")+" = ?")
		args = append(args, *f.VendorNumber)
	}
	if f.Brand != nil {
		where = append(where, QuoteIdent("Brand")+" = ?")
		args = append(args, *f.Brand)
	}
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += fmt.Sprintf(" ORDER BY %s DESC, %s, %s",
		QuoteIdent("TotalPurchaseDollars"), QuoteIdent("VendorNumber"), QuoteIdent("Brand"))

	switch {
	case f.Limit > 0:
		q += " LIMIT " + strconv.Itoa(f.Limit)
	case f.Offset > 0:
		q += " LIMIT " + d.NoLimit
	}
	if f.Offset > 0 {
		q += " OFFSET " + strconv.Itoa(f.Offset)
	}
	return d.Rebind(q), args
}

// ScanSummary reads rows selected by SummaryQuery. SQLite cannot store NaN
// and turns it into NULL, so a NULL ratio reads back as NaN.
func ScanSummary(rows Rows) ([]inventory.VendorSummary, error) {
	var out []inventory.VendorSummary
	for rows.Next() {
		var (
			s                                         inventory.VendorSummary
			name, desc                                sql.NullString
			volume, margin, turnover, salesToPurchase sql.NullFloat64
			purchasePrice, actualPrice                decimal.NullDecimal
			purchaseDollars, salesDollars             decimal.NullDecimal
			salesPrice, exciseTax, freight, gross     decimal.NullDecimal
			purchaseQty, salesQty                     sql.NullInt64
		)
		if err := rows.Scan(
			&s.VendorNumber, &name, &s.Brand, &desc,
			&purchasePrice, &actualPrice, &volume,
			&purchaseQty, &purchaseDollars, &salesQty, &salesDollars,
			&salesPrice, &exciseTax, &freight, &gross,
			&margin, &turnover, &salesToPurchase,
		); err != nil {
			return nil, scanErr(inventory.TableSummary, err)
		}
		s.VendorName = name.String
		s.Description = desc.String
		s.PurchasePrice = purchasePrice.Decimal
		s.ActualPrice = actualPrice.Decimal
		s.Volume = volume.Float64
		s.TotalPurchaseQuantity = purchaseQty.Int64
		s.TotalPurchaseDollars = purchaseDollars.Decimal
		s.TotalSalesQuantity = salesQty.Int64
		s.TotalSalesDollars = salesDollars.Decimal
		s.TotalSalesPrice = salesPrice.Decimal
		s.TotalExciseTax = exciseTax.Decimal
		s.FreightCost = freight.Decimal
		s.GrossProfit = gross.Decimal
		s.ProfitMargin = ratio(margin)
		s.StockTurnover = ratio(turnover)
		s.SalestoPurchaseRatio = ratio(salesToPurchase)
		out = append(out, s)
	}
	return out, rows.Err()
}

func ratio(f sql.NullFloat64) float64 {
	if !f.Valid {
		return math.NaN()
	}
	return f.Float64
}

// =============================================================================
// RUNS
// =============================================================================

// timeLayout is fixed width so timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

// SaveRun upserts a pipeline run.
func (d Dialect) SaveRun() string {
	return d.Rebind(`
		INSERT INTO pipeline_runs (id, kind, status, row_count, error, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			row_count = excluded.row_count,
			error = excluded.error,
			completed_at = excluded.completed_at
	`)
}

// RunArgs returns the SaveRun arguments for r.
func RunArgs(r inventory.Run) []any {
	var completed *string
	if r.CompletedAt != nil {
		s := r.CompletedAt.UTC().Format(timeLayout)
		completed = &s
	}
	return []any{
		r.ID, string(r.Kind), string(r.Status), r.Rows, r.Error,
		r.StartedAt.UTC().Format(timeLayout), completed,
	}
}

// ListRuns selects the newest runs first.
func (d Dialect) ListRuns(limit int) string {
	q := `SELECT id, kind, status, row_count, error, started_at, completed_at
		FROM pipeline_runs ORDER BY started_at DESC`
	if limit > 0 {
		q += " LIMIT " + strconv.Itoa(limit)
	}
	return q
}

// ScanRuns reads rows selected by ListRuns.
func ScanRuns(rows Rows) ([]inventory.Run, error) {
	var out []inventory.Run
	for rows.Next() {
		var (
			r            inventory.Run
			kind, status string
			errText      sql.NullString
			started      string
			completed    sql.NullString
		)
		if err := rows.Scan(&r.ID, &kind, &status, &r.Rows, &errText, &started, &completed); err != nil {
			return nil, scanErr(inventory.TableRuns, err)
		}
		r.Kind = inventory.RunKind(kind)
		r.Status = inventory.RunStatus(status)
		r.Error = errText.String
		r.StartedAt, _ = time.Parse(timeLayout, started)
		if completed.Valid {
			t, err := time.Parse(timeLayout, completed.String)
			if err == nil {
				r.CompletedAt = &t
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
