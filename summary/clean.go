package summary

import (
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/vendor-analytics/inventory"
)

// Clean turns joined rows into summary records. Steps run in this order:
//
//  1. Volume text is parsed as float64 (a row with unparseable Volume
//     fails the whole pass with an *inventory.ParseError)
//  2. every NULL becomes zero ("" for text)
//  3. VendorName and Description are trimmed
//  4. GrossProfit, ProfitMargin, StockTurnover, SalestoPurchaseRatio
//
// Ratios use float division: a zero denominator gives +Inf, -Inf or NaN
// and is never reported as an error.
func Clean(rows []JoinedRow) ([]inventory.VendorSummary, error) {
	volumes := make([]float64, len(rows))
	for i, r := range rows {
		v, err := parseVolume(r.Volume.String, r.Volume.Valid)
		if err != nil {
			return nil, &inventory.ParseError{
				Table:  inventory.TableSummary,
				Column: "Volume",
				Row:    i + 1,
				Value:  r.Volume.String,
				Err:    err,
			}
		}
		volumes[i] = v
	}

	out := make([]inventory.VendorSummary, len(rows))
	for i, r := range rows {
		s := inventory.VendorSummary{
			VendorNumber:          r.VendorNumber.Int64,
			VendorName:            r.VendorName.String,
			Brand:                 r.Brand.Int64,
			Description:           r.Description.String,
			PurchasePrice:         orZero(r.PurchasePrice),
			ActualPrice:           orZero(r.ActualPrice),
			Volume:                volumes[i],
			TotalPurchaseQuantity: r.TotalPurchaseQuantity.Int64,
			TotalPurchaseDollars:  orZero(r.TotalPurchaseDollars),
			TotalSalesQuantity:    r.TotalSalesQuantity.Int64,
			TotalSalesDollars:     orZero(r.TotalSalesDollars),
			TotalSalesPrice:       orZero(r.TotalSalesPrice),
			TotalExciseTax:        orZero(r.TotalExciseTax),
			FreightCost:           orZero(r.FreightCost),
		}

		s.VendorName = strings.TrimSpace(s.VendorName)
		s.Description = strings.TrimSpace(s.Description)

		Derive(&s)
		out[i] = s
	}
	return out, nil
}

// Derive computes the four derived columns from the cleaned totals.
func Derive(s *inventory.VendorSummary) {
	s.GrossProfit = s.TotalSalesDollars.Sub(s.TotalPurchaseDollars)
	s.ProfitMargin = divide(s.GrossProfit.InexactFloat64(), s.TotalSalesDollars.InexactFloat64()) * 100
	s.StockTurnover = divide(float64(s.TotalSalesQuantity), float64(s.TotalPurchaseQuantity))
	s.SalestoPurchaseRatio = divide(s.TotalSalesDollars.InexactFloat64(), s.TotalPurchaseDollars.InexactFloat64())
}

// divide is IEEE 754 division: x/0 is ±Inf and 0/0 is NaN.
func divide(x, y float64) float64 {
	return x / y
}

// parseVolume converts the text Volume. NULL, blank and NaN all end up as
// 0 after the fill step.
func parseVolume(text string, valid bool) (float64, error) {
	text = strings.TrimSpace(text)
	if !valid || text == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) {
		return 0, nil
	}
	return v, nil
}

func orZero(d decimal.NullDecimal) decimal.Decimal {
	if !d.Valid {
		return decimal.Zero
	}
	return d.Decimal
}
