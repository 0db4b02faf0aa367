package summary

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/warp/vendor-analytics/inventory"
	"github.com/warp/vendor-analytics/metrics"
)

// Stage names, as they appear in logs, metrics and StageErrors.
const (
	StageRead     = "read"
	StageFreight  = "freight"
	StagePurchase = "purchase"
	StageSales    = "sales"
	StageJoin     = "join"
	StageClean    = "clean"
	StageWrite    = "write"
)

// headRows is how many rows are logged at debug level after join and clean.
const headRows = 5

// Summarizer computes vendor_sales_summary from the source tables and
// writes it back.
type Summarizer struct {
	Source  inventory.SourceReader
	Sink    inventory.SummaryWriter
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Result describes one computed summary.
type Result struct {
	Rows           []inventory.VendorSummary
	FreightGroups  int
	PurchaseGroups int
	SalesGroups    int
	Elapsed        time.Duration
}

// New creates a Summarizer reading from and writing to store.
func New(store interface {
	inventory.SourceReader
	inventory.SummaryWriter
}, logger *slog.Logger, m *metrics.Metrics) *Summarizer {
	return &Summarizer{Source: store, Sink: store, Logger: logger, Metrics: m}
}

func (s *Summarizer) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

// Run computes the summary and replaces vendor_sales_summary with it. On
// any error nothing is written and the previous summary stays in place.
func (s *Summarizer) Run(ctx context.Context) (*Result, error) {
	res, err := s.Compute(ctx)
	if err != nil {
		return nil, err
	}

	err = s.stage(ctx, StageWrite, func() error {
		return s.Sink.ReplaceSummary(ctx, res.Rows)
	})
	if err != nil {
		return nil, err
	}
	s.Metrics.RowsWrittenTo(inventory.TableSummary, len(res.Rows))
	s.Metrics.SetSummaryRows(len(res.Rows))

	s.logger().Info("vendor summary written",
		slog.String("table", inventory.TableSummary),
		slog.Int("rows", len(res.Rows)),
		slog.Duration("elapsed", res.Elapsed))
	return res, nil
}

// Compute reads the source tables and returns the cleaned summary without
// writing it.
func (s *Summarizer) Compute(ctx context.Context) (*Result, error) {
	start := time.Now()
	log := s.logger()
	log.Info("creating vendor summary")

	var (
		invoices  []inventory.InvoiceRecord
		purchases []inventory.PurchaseRecord
		prices    []inventory.PriceRecord
		sales     []inventory.SalesRecord
	)
	err := s.stage(ctx, StageRead, func() error {
		var err error
		if invoices, err = s.Source.Invoices(ctx); err != nil {
			return err
		}
		if purchases, err = s.Source.Purchases(ctx); err != nil {
			return err
		}
		if prices, err = s.Source.Prices(ctx); err != nil {
			return err
		}
		sales, err = s.Source.Sales(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Info("source tables read",
		slog.Int(inventory.TableInvoices, len(invoices)),
		slog.Int(inventory.TablePurchases, len(purchases)),
		slog.Int(inventory.TablePrices, len(prices)),
		slog.Int(inventory.TableSales, len(sales)))

	var freight []FreightTotal
	if err := s.stage(ctx, StageFreight, func() error {
		freight = FreightSummary(invoices)
		return nil
	}); err != nil {
		return nil, err
	}

	var purchase PurchaseResult
	if err := s.stage(ctx, StagePurchase, func() error {
		purchase = PurchaseSummary(purchases, prices)
		return nil
	}); err != nil {
		return nil, err
	}
	if len(purchase.DuplicateBrands) > 0 {
		log.Warn("purchase_prices has duplicate brands, first row used",
			slog.Int("brands", len(purchase.DuplicateBrands)),
			slog.Any("sample", head(purchase.DuplicateBrands)))
	}
	if purchase.Unpriced > 0 {
		log.Warn("purchases without a price row dropped", slog.Int("rows", purchase.Unpriced))
	}

	var salesTotals []SalesTotal
	if err := s.stage(ctx, StageSales, func() error {
		salesTotals = SalesSummary(sales)
		return nil
	}); err != nil {
		return nil, err
	}

	var joined []JoinedRow
	if err := s.stage(ctx, StageJoin, func() error {
		joined = Join(purchase.Totals, salesTotals, freight)
		SortByPurchaseDollars(joined)
		return nil
	}); err != nil {
		return nil, err
	}
	log.Debug("joined rows", slog.Any("head", head(joined)))

	log.Info("cleaning data")
	var rows []inventory.VendorSummary
	if err := s.stage(ctx, StageClean, func() error {
		var err error
		rows, err = Clean(joined)
		return err
	}); err != nil {
		return nil, err
	}
	log.Debug("cleaned rows", slog.Any("head", head(rows)))

	return &Result{
		Rows:           rows,
		FreightGroups:  len(freight),
		PurchaseGroups: len(purchase.Totals),
		SalesGroups:    len(salesTotals),
		Elapsed:        time.Since(start),
	}, nil
}

// stage runs fn as the named stage. The context is checked first so a
// deadline stops the run between stages.
func (s *Summarizer) stage(ctx context.Context, name string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return &inventory.StageError{Stage: name, Err: fmt.Errorf("run aborted: %w", err)}
	}

	start := time.Now()
	err := fn()
	elapsed := time.Since(start)
	s.Metrics.ObserveStage(name, elapsed)

	if err != nil {
		s.logger().Error("stage failed",
			slog.String("stage", name),
			slog.Duration("elapsed", elapsed),
			slog.String("error", err.Error()))
		return &inventory.StageError{Stage: name, Err: err}
	}
	s.logger().Debug("stage completed", slog.String("stage", name), slog.Duration("elapsed", elapsed))
	return nil
}

func head[T any](xs []T) []T {
	if len(xs) > headRows {
		return xs[:headRows]
	}
	return xs
}
