// Package report exports vendor_sales_summary rows to spreadsheet files.
//
// Both writers emit a header row of the summary column names followed by
// one row per summary record. Non-finite ratios are written as the text
// NaN, +Inf or -Inf.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/warp/vendor-analytics/inventory"
)

// Format names accepted by Write.
const (
	FormatXLSX = "xlsx"
	FormatCSV  = "csv"
)

// FormatFor picks an export format from an output file name.
func FormatFor(path string) (string, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xlsx":
		return FormatXLSX, nil
	case ".csv":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unsupported export format %q: use .xlsx or .csv", ext)
	}
}

// Write exports rows in the given format.
func Write(w io.Writer, format string, rows []inventory.VendorSummary) error {
	switch format {
	case FormatXLSX:
		return WriteXLSX(w, rows)
	case FormatCSV:
		return WriteCSV(w, rows)
	}
	return fmt.Errorf("unsupported export format %q", format)
}

// WriteCSV writes rows as CSV. Money columns keep their exact decimal text.
func WriteCSV(w io.Writer, rows []inventory.VendorSummary) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header()); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range rows {
		if err := cw.Write(textRow(r)); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes rows to a single sheet named vendor_sales_summary.
func WriteXLSX(w io.Writer, rows []inventory.VendorSummary) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := inventory.TableSummary
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("open sheet writer: %w", err)
	}

	head := header()
	cells := make([]any, len(head))
	for i, h := range head {
		cells[i] = h
	}
	if err := sw.SetRow("A1", cells); err != nil {
		return fmt.Errorf("write xlsx header: %w", err)
	}

	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, cellRow(r)); err != nil {
			return fmt.Errorf("write xlsx row %d: %w", i+1, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush sheet: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func header() []string {
	names := make([]string, len(inventory.SummaryColumns))
	for i, c := range inventory.SummaryColumns {
		names[i] = c.Name
	}
	return names
}

func textRow(r inventory.VendorSummary) []string {
	return []string{
		strconv.FormatInt(r.VendorNumber, 10),
		r.VendorName,
		strconv.FormatInt(r.Brand, 10),
		r.Description,
		r.PurchasePrice.String(),
		r.ActualPrice.String(),
		strconv.FormatFloat(r.Volume, 'f', -1, 64),
		strconv.FormatInt(r.TotalPurchaseQuantity, 10),
		r.TotalPurchaseDollars.String(),
		strconv.FormatInt(r.TotalSalesQuantity, 10),
		r.TotalSalesDollars.String(),
		r.TotalSalesPrice.String(),
		r.TotalExciseTax.String(),
		r.FreightCost.String(),
		r.GrossProfit.String(),
		inventory.FormatRatio(r.ProfitMargin),
		inventory.FormatRatio(r.StockTurnover),
		inventory.FormatRatio(r.SalestoPurchaseRatio),
	}
}

// cellRow keeps numbers numeric so spreadsheet formulas work on them.
func cellRow(r inventory.VendorSummary) []any {
	return []any{
		r.VendorNumber,
		r.VendorName,
		r.Brand,
		r.Description,
		money(r.PurchasePrice),
		money(r.ActualPrice),
		r.Volume,
		r.TotalPurchaseQuantity,
		money(r.TotalPurchaseDollars),
		r.TotalSalesQuantity,
		money(r.TotalSalesDollars),
		money(r.TotalSalesPrice),
		money(r.TotalExciseTax),
		money(r.FreightCost),
		money(r.GrossProfit),
		ratio(r.ProfitMargin),
		ratio(r.StockTurnover),
		ratio(r.SalestoPurchaseRatio),
	}
}

func money(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}

func ratio(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return inventory.FormatRatio(f)
	}
	return f
}
