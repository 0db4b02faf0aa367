/*
Package postgres provides a PostgreSQL-backed implementation of inventory.Store.

PURPOSE:
  Same contract as store/sqlite, for deployments that keep the inventory
  tables in PostgreSQL. Selected by a postgres:// or postgresql:// URL.

CONNECTION:
  Holds exactly one *pgx.Conn for the lifetime of the Store, guarded by a
  mutex (pgx connections are not safe for concurrent use).

BULK LOAD:
  ReplaceTable drops, recreates and fills the table with COPY inside one
  transaction. PostgreSQL DDL is transactional, so a failed load leaves the
  previous table intact.

NaN:
  DOUBLE PRECISION stores NaN, +Inf and -Inf natively.

SEE ALSO:
  - store/sqlite/sqlite.go: Default backend
  - store/sqlstore: Shared SQL text and scanning
*/
package postgres

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/warp/vendor-analytics/inventory"
	"github.com/warp/vendor-analytics/store/sqlstore"
)

var dialect = sqlstore.Postgres

// Store implements inventory.Store using PostgreSQL.
type Store struct {
	conn *pgx.Conn
	mu   sync.Mutex
}

// New connects to connString and creates the run history table.
func New(ctx context.Context, connString string) (*Store, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w: %w", inventory.ErrIO, err)
	}

	store := &Store{conn: conn}
	if err := store.migrate(ctx); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("failed to migrate database: %w: %w", inventory.ErrIO, err)
	}
	return store, nil
}

// Close closes the connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Close(context.Background())
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS pipeline_runs (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'running',
			row_count BIGINT NOT NULL DEFAULT 0,
			error TEXT,
			started_at TEXT NOT NULL,
			completed_at TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_pipeline_runs_started
			ON pipeline_runs(started_at DESC);
	`)
	return err
}

// =============================================================================
// TABLE WRITER
// =============================================================================

// ReplaceTable drops and recreates t.Name, then COPYs t's rows, in one
// transaction.
func (s *Store) ReplaceTable(ctx context.Context, t *inventory.Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	create, err := dialect.CreateTable(t)
	if err != nil {
		return fmt.Errorf("replace %s: %w", t.Name, err)
	}

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w: %w", inventory.ErrIO, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, dialect.DropTable(t.Name)); err != nil {
		return fmt.Errorf("drop %s: %w: %w", t.Name, inventory.ErrIO, err)
	}
	if _, err := tx.Exec(ctx, create); err != nil {
		return fmt.Errorf("create %s: %w: %w", t.Name, inventory.ErrIO, err)
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{t.Name}, t.ColumnNames(), pgx.CopyFromRows(t.Rows)); err != nil {
		return fmt.Errorf("copy %s: %w: %w", t.Name, inventory.ErrIO, err)
	}

	if err := tx.Commit(ctx); err != nil {
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

// columns returns the column names of table in the current schema, or nil
// if it does not exist.
func (s *Store) columns(ctx context.Context, table string) ([]string, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT column_name FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1
		ORDER BY ordinal_position
	`, table)
	if err != nil {
		return nil, fmt.Errorf("inspect %s: %w: %w", table, inventory.ErrIO, err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("inspect %s: %w: %w", table, inventory.ErrIO, err)
	}
	if len(names) == 0 {
		return nil, nil
	}
	return names, nil
}

func (s *Store) selectSource(ctx context.Context, table string, want []string) (pgx.Rows, error) {
	have, err := s.columns(ctx, table)
	if err != nil {
		return nil, err
	}
	cols, err := sqlstore.ResolveColumns(table, have, want)
	if err != nil {
		return nil, err
	}
	rows, err := s.conn.Query(ctx, sqlstore.Select(table, cols))
	if err != nil {
		return nil, fmt.Errorf("query %s: %w: %w", table, inventory.ErrIO, err)
	}
	return rows, nil
}

// Invoices reads Vendor_invoice.
func (s *Store) Invoices(ctx context.Context) ([]inventory.InvoiceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.selectSource(ctx, inventory.TableInvoices, sqlstore.InvoiceColumns)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return sqlstore.ScanInvoices(rows)
}

// Purchases reads purchases.
func (s *Store) Purchases(ctx context.Context) ([]inventory.PurchaseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.selectSource(ctx, inventory.TablePurchases, sqlstore.PurchaseColumns)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return sqlstore.ScanPurchases(rows)
}

// Prices reads purchase_prices.
func (s *Store) Prices(ctx context.Context) ([]inventory.PriceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.selectSource(ctx, inventory.TablePrices, sqlstore.PriceColumns)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return sqlstore.ScanPrices(rows)
}

// Sales reads sales.
func (s *Store) Sales(ctx context.Context) ([]inventory.SalesRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

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
	s.mu.Lock()
	defer s.mu.Unlock()

	have, err := s.columns(ctx, inventory.TableSummary)
	if err != nil {
		return nil, err
	}
	if have == nil {
		return nil, &inventory.SchemaError{Table: inventory.TableSummary}
	}

	query, args := dialect.SummaryQuery(f)
	rows, err := s.conn.Query(ctx, query, args...)
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

	if _, err := s.conn.Exec(ctx, dialect.SaveRun(), sqlstore.RunArgs(r)...); err != nil {
		return fmt.Errorf("failed to save run: %w: %w", inventory.ErrIO, err)
	}
	return nil
}

// ListRuns returns the most recent runs first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]inventory.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.conn.Query(ctx, dialect.ListRuns(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w: %w", inventory.ErrIO, err)
	}
	defer rows.Close()
	return sqlstore.ScanRuns(rows)
}

var _ inventory.Store = (*Store)(nil)
