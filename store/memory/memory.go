// Package memory provides an in-memory inventory.Store for tests and dry runs.
package memory

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/warp/vendor-analytics/inventory"
	"github.com/warp/vendor-analytics/store/sqlstore"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps tables as inventory.Table values. Source records are decoded
// from those tables with the same scanners the SQL backends use, so a load
// followed by a summarize behaves as it would against a database.
type Memory struct {
	mu      sync.RWMutex
	tables  map[string]*inventory.Table // keyed by lower-cased name
	summary []inventory.VendorSummary
	runs    map[string]inventory.Run
	failOn  map[string]error
}

func NewMemory() *Memory {
	return &Memory{
		tables: make(map[string]*inventory.Table),
		runs:   make(map[string]inventory.Run),
		failOn: make(map[string]error),
	}
}

// FailReplace makes every later ReplaceTable of name return err.
func (m *Memory) FailReplace(name string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failOn[strings.ToLower(name)] = err
}

// Table returns a copy of the named table, or nil.
func (m *Memory) Table(name string) *inventory.Table {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tables[strings.ToLower(name)]
	if !ok {
		return nil
	}
	return cloneTable(t)
}

// TableNames lists stored tables in name order.
func (m *Memory) TableNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.tables))
	for _, t := range m.tables {
		names = append(names, t.Name)
	}
	sort.Strings(names)
	return names
}

func (m *Memory) Close() error { return nil }

// ReplaceTable stores a copy of t, replacing any table of the same name.
func (m *Memory) ReplaceTable(_ context.Context, t *inventory.Table) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.replaceLocked(t)
}

func (m *Memory) replaceLocked(t *inventory.Table) error {
	key := strings.ToLower(t.Name)
	if err := m.failOn[key]; err != nil {
		return fmt.Errorf("replace %s: %w", t.Name, err)
	}
	if len(t.Columns) == 0 {
		return fmt.Errorf("table %q has no columns", t.Name)
	}
	m.tables[key] = cloneTable(t)
	if key == strings.ToLower(inventory.TableSummary) {
		m.summary = nil
	}
	return nil
}

// ReplaceSummary stores rows as vendor_sales_summary.
func (m *Memory) ReplaceSummary(_ context.Context, rows []inventory.VendorSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.replaceLocked(inventory.SummaryTable(rows)); err != nil {
		return err
	}
	m.summary = append(make([]inventory.VendorSummary, 0, len(rows)), rows...)
	return nil
}

// =============================================================================
// SOURCE READER
// =============================================================================

func (m *Memory) source(table string, want []string) (*tableRows, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tables[strings.ToLower(table)]
	if !ok {
		return nil, &inventory.SchemaError{Table: table}
	}
	cols, err := sqlstore.ResolveColumns(table, t.ColumnNames(), want)
	if err != nil {
		return nil, err
	}
	idx := make([]int, len(cols))
	for i, c := range cols {
		for j, tc := range t.Columns {
			if tc.Name == c {
				idx[i] = j
				break
			}
		}
	}
	return &tableRows{rows: cloneTable(t).Rows, idx: idx, pos: -1}, nil
}

func (m *Memory) Invoices(_ context.Context) ([]inventory.InvoiceRecord, error) {
	rows, err := m.source(inventory.TableInvoices, sqlstore.InvoiceColumns)
	if err != nil {
		return nil, err
	}
	return sqlstore.ScanInvoices(rows)
}

func (m *Memory) Purchases(_ context.Context) ([]inventory.PurchaseRecord, error) {
	rows, err := m.source(inventory.TablePurchases, sqlstore.PurchaseColumns)
	if err != nil {
		return nil, err
	}
	return sqlstore.ScanPurchases(rows)
}

func (m *Memory) Prices(_ context.Context) ([]inventory.PriceRecord, error) {
	rows, err := m.source(inventory.TablePrices, sqlstore.PriceColumns)
	if err != nil {
		return nil, err
	}
	return sqlstore.ScanPrices(rows)
}

func (m *Memory) Sales(_ context.Context) ([]inventory.SalesRecord, error) {
	rows, err := m.source(inventory.TableSales, sqlstore.SalesColumns)
	if err != nil {
		return nil, err
	}
	return sqlstore.ScanSales(rows)
}

// =============================================================================
// SUMMARY READER
// =============================================================================

// ListSummary filters and pages the stored summary, ordered like the SQL
// backends: TotalPurchaseDollars descending, then VendorNumber, Brand.
func (m *Memory) ListSummary(_ context.Context, f inventory.SummaryFilter) ([]inventory.VendorSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.tables[strings.ToLower(inventory.TableSummary)]; !ok {
		return nil, &inventory.SchemaError{Table: inventory.TableSummary}
	}

	var out []inventory.VendorSummary
	for _, s := range m.summary {
		if f.VendorNumber != nil && s.VendorNumber != *f.VendorNumber {
			continue
		}
		if f.Brand != nil && s.Brand != *f.Brand {
			continue
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].TotalPurchaseDollars.Cmp(out[j].TotalPurchaseDollars); c != 0 {
			return c > 0
		}
		if out[i].VendorNumber != out[j].VendorNumber {
			return out[i].VendorNumber < out[j].VendorNumber
		}
		return out[i].Brand < out[j].Brand
	})

	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out, nil
}

// =============================================================================
// RUN RECORDER
// =============================================================================

func (m *Memory) SaveRun(_ context.Context, r inventory.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[r.ID] = r
	return nil
}

func (m *Memory) ListRuns(_ context.Context, limit int) ([]inventory.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]inventory.Run, 0, len(m.runs))
	for _, r := range m.runs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func cloneTable(t *inventory.Table) *inventory.Table {
	c := &inventory.Table{
		Name:    t.Name,
		Columns: append([]inventory.Column(nil), t.Columns...),
		Rows:    make([][]any, len(t.Rows)),
	}
	for i, r := range t.Rows {
		c.Rows[i] = append([]any(nil), r...)
	}
	return c
}

// tableRows adapts projected table rows to sqlstore.Rows. Destinations are
// sql.Scanner implementations (sql.Null*, decimal.NullDecimal) or plain
// *int64 / *string pointers.
type tableRows struct {
	rows [][]any
	idx  []int
	pos  int
}

func (r *tableRows) Next() bool {
	r.pos++
	return r.pos < len(r.rows)
}

func (r *tableRows) Err() error { return nil }

func (r *tableRows) Scan(dest ...any) error {
	if len(dest) != len(r.idx) {
		return fmt.Errorf("expected %d destinations, got %d", len(r.idx), len(dest))
	}
	row := r.rows[r.pos]
	for i, d := range dest {
		v := row[r.idx[i]]
		switch d := d.(type) {
		case sql.Scanner:
			if err := d.Scan(v); err != nil {
				return err
			}
		case *int64:
			n, ok := v.(int64)
			if !ok {
				return fmt.Errorf("column %d: %v is not an integer", i, v)
			}
			*d = n
		case *string:
			s, ok := v.(string)
			if !ok {
				return fmt.Errorf("column %d: %v is not text", i, v)
			}
			*d = s
		default:
			return fmt.Errorf("unsupported scan destination %T", d)
		}
	}
	return nil
}

var _ inventory.Store = (*Memory)(nil)
