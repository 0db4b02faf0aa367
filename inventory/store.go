/*
store.go - Persistence interfaces for source tables, summary and runs

PURPOSE:
  Defines the boundary between the pipeline and the relational store.
  The loader only needs TableWriter; the summarizer needs SourceReader and
  SummaryWriter; the report server reads summaries and runs.

REPLACE SEMANTICS:
  ReplaceTable and ReplaceSummary are idempotent replace-by-name operations.
  The old table is dropped and the new one created and filled inside one
  database transaction: either the full new table is visible afterwards or
  the previous one is left untouched. Repeated runs over the same input
  yield the same table.

IMPLEMENTATIONS:
  - store/sqlite:   SQLite (default)
  - store/postgres: PostgreSQL via pgx
  - store/memory:   In-memory for testing

SEE ALSO:
  - ingest/loader.go: Uses TableWriter
  - summary/summarizer.go: Uses SourceReader and SummaryWriter
*/
package inventory

import "context"

// TableWriter replaces whole tables.
type TableWriter interface {
	// ReplaceTable drops any table named t.Name and recreates it with t's
	// columns and rows, atomically.
	ReplaceTable(ctx context.Context, t *Table) error
}

// SourceReader reads the four input tables of the summarizer. A missing
// table or column is reported as a *SchemaError.
type SourceReader interface {
	Invoices(ctx context.Context) ([]InvoiceRecord, error)
	Purchases(ctx context.Context) ([]PurchaseRecord, error)
	Prices(ctx context.Context) ([]PriceRecord, error)
	Sales(ctx context.Context) ([]SalesRecord, error)
}

// SummaryWriter persists a freshly computed summary.
type SummaryWriter interface {
	// ReplaceSummary replaces vendor_sales_summary with rows, atomically.
	ReplaceSummary(ctx context.Context, rows []VendorSummary) error
}

// SummaryReader queries a persisted summary. Rows come back ordered by
// TotalPurchaseDollars descending.
type SummaryReader interface {
	ListSummary(ctx context.Context, filter SummaryFilter) ([]VendorSummary, error)
}

// RunRecorder keeps the pipeline_runs history.
type RunRecorder interface {
	SaveRun(ctx context.Context, run Run) error
	ListRuns(ctx context.Context, limit int) ([]Run, error)
}

// Store is everything a backend provides.
type Store interface {
	TableWriter
	SourceReader
	SummaryWriter
	SummaryReader
	RunRecorder
	Close() error
}
