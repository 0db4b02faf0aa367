/*
Package sqlite provides a SQLite-backed implementation of inventory.Store.

PURPOSE:
  Default relational store of the pipeline. Source tables are created by
  the loader from file contents, the summarizer reads them back as domain
  records, and vendor_sales_summary is written as one more table.

INTERFACES IMPLEMENTED:
  inventory.TableWriter:   ReplaceTable
  inventory.SourceReader:  Invoices, Purchases, Prices, Sales
  inventory.SummaryWriter: ReplaceSummary
  inventory.SummaryReader: ListSummary
  inventory.RunRecorder:   SaveRun, ListRuns

REPLACE SEMANTICS:
  ReplaceTable runs DROP TABLE, CREATE TABLE and all INSERTs in a single
  transaction. On any error the transaction rolls back and the previous
  table (if any) is left exactly as it was.

CONNECTION:
  One connection for the lifetime of the Store (SetMaxOpenConns(1)). This
  keeps ":memory:" databases coherent and matches the single-writer model.

KEY TABLES:
  pipeline_runs: History of load/summarize runs (created on New)
  <file tables>: One per loaded file, schema inferred by the loader
  vendor_sales_summary: Output of the summarizer

NaN:
  SQLite stores a NaN REAL as NULL. Ratio columns of the summary therefore
  read back NULL as NaN. +Inf and -Inf round-trip unchanged.

USAGE:
  store, err := sqlite.New("./inventory.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - inventory/store.go: Interface definitions
  - store/sqlstore: SQL text and scanning shared with PostgreSQL
  - store/memory: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/vendor-analytics/inventory"
	"github.com/warp/vendor-analytics/store/sqlstore"
)

var dialect = sqlstore.SQLite

// Store implements inventory.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (or creates) the SQLite database at dbPath.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w: %w", inventory.ErrIO, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w: %w", inventory.ErrIO, err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for tests and ad-hoc queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) migrate() error {
	schema := `
	-- Run history (one row per load/summarize invocation)
	CREATE TABLE IF NOT EXISTS pipeline_runs (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'running',
		row_count INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		started_at TEXT NOT NULL,
		completed_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_pipeline_runs_started
		ON pipeline_runs(started_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TABLE WRITER
// =============================================================================

// ReplaceTable drops and recreates t.Name with t's rows in one transaction.
func (s *Store) ReplaceTable(ctx context.Context, t *inventory.Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	create, err := dialect.CreateTable(t)
	if err != nil {
		return fmt.Errorf("replace %s: %w", t.Name, err)
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w: %w", inventory.ErrIO, err)
	}
	defer sqlTx.Rollback()

	if _, err := sqlTx.ExecContext(ctx, dialect.DropTable(t.Name)); err != nil {
		return fmt.Errorf("drop %s: %w: %w", t.Name, inventory.ErrIO, err)
	}
	if _, err := sqlTx.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("create %s: %w: %w", t.Name, inventory.ErrIO, err)
	}

	stmt, err := sqlTx.PrepareContext(ctx, dialect.Insert(t))
	if err != nil {
		return fmt.Errorf("prepare insert %s: %w: %w", t.Name, inventory.ErrIO, err)
	}
	defer stmt.Close()

	for i, row := range t.Rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return fmt.Errorf("insert %s row %d: %w: %w", t.Name, i+1, inventory.ErrIO, err)
		}
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w: %w", t.Name, inventory.ErrIO, err)
	}
	return nil
}

// ReplaceSummary replaces vendor_sales_summary with rows.
func (s *Store) ReplaceSummary(ctx context.Context, rows []inventory.VendorSummary) error {
	return s.ReplaceTable(ctx, inventory.SummaryTable(rows))
}

// =============================================================================
// SOURCE READER
// =============================================================================

// columns returns the column names of table, or nil if it does not exist.
func (s *Store) columns(ctx context.Context, table string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "PRAGMA table_info("+sqlstore.QuoteIdent(table)+")")
	if err != nil {
		return nil, fmt.Errorf("inspect %s: %w: %w", table, inventory.ErrIO, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var (
			cid     int
			name    string
			typ     string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("inspect %s: %w: %w", table, inventory.ErrIO, err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// selectSource checks that table has every wanted column and runs the
// SELECT. Callers must close the returned rows.
func (s *Store) selectSource(ctx context.Context, table string, want []string) (*sql.Rows, error) {
	have, err := s.columns(ctx, table)
	if err != nil {
		return nil, err
	}
	cols, err := sqlstore.ResolveColumns(table, have, want)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, sqlstore.Select(table, cols))
	if err != nil {
		return nil, fmt.Errorf("query %s: %w: %w", table, inventory.ErrIO, err)
	}
	return rows, nil
}

// Invoices reads Vendor_invoice.
func (s *Store) Invoices(ctx context.Context) ([]inventory.InvoiceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.selectSource(ctx, inventory.TableInvoices, sqlstore.InvoiceColumns)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return sqlstore.ScanInvoices(rows)
}

// Purchases reads purchases.
func (s *Store) Purchases(ctx context.Context) ([]inventory.PurchaseRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.selectSource(ctx, inventory.TablePurchases, sqlstore.PurchaseColumns)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return sqlstore.ScanPurchases(rows)
}

// Prices reads purchase_prices.
func (s *Store) Prices(ctx context.Context) ([]inventory.PriceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.selectSource(ctx, inventory.TablePrices, sqlstore.PriceColumns)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return sqlstore.ScanPrices(rows)
}

// Sales reads sales.
func (s *Store) Sales(ctx context.Context) ([]inventory.SalesRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.selectSource(ctx, inventory.TableSales, sqlstore.SalesColumns)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return sqlstore.ScanSales(rows)
}

// =============================================================================
// SUMMARY READER
// =============================================================================

// ListSummary returns summary rows matching f, highest purchase dollars first.
func (s *Store) ListSummary(ctx context.Context, f inventory.SummaryFilter) ([]inventory.VendorSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	have, err := s.columns(ctx, inventory.TableSummary)
	if err != nil {
		return nil, err
	}
	if have == nil {
		return nil, &inventory.SchemaError{Table: inventory.TableSummary}
	}

	query, args := dialect.SummaryQuery(f)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query summary: %w: %w", inventory.ErrIO, err)
	}
	defer rows.Close()
	return sqlstore.ScanSummary(rows)
}

// =============================================================================
// RUN RECORDER
// =============================================================================

// SaveRun inserts or updates a pipeline run.
func (s *Store) SaveRun(ctx context.Context, r inventory.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, dialect.SaveRun(), sqlstore.RunArgs(r)...); err != nil {
		return fmt.Errorf("failed to save run: %w: %w", inventory.ErrIO, err)
	}
	return nil
}

// ListRuns returns the most recent runs first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]inventory.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, dialect.ListRuns(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w: %w", inventory.ErrIO, err)
	}
	defer rows.Close()
	return sqlstore.ScanRuns(rows)
}

var _ inventory.Store = (*Store)(nil)
