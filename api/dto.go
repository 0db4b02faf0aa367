/*
dto.go - Data Transfer Objects for API responses

PURPOSE:
  Defines the JSON structures of the report server. These types decouple
  the stored summary from the external API contract.

NUMBERS:
  Money is serialized as a decimal string ("1234.50") so no precision is
  lost. Ratios are JSON numbers when finite and the strings "NaN", "+Inf"
  or "-Inf" otherwise, since JSON has no literal for them.

SEE ALSO:
  - handlers.go: Uses these types
  - inventory/types.go: VendorSummary, VendorRollup, Run
*/
package api

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/warp/vendor-analytics/inventory"
)

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// Ratio is a float64 that marshals non-finite values as strings.
type Ratio float64

// MarshalJSON implements json.Marshaler.
func (r Ratio) MarshalJSON() ([]byte, error) {
	f := float64(r)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return json.Marshal(inventory.FormatRatio(f))
	}
	return json.Marshal(f)
}

// UnmarshalJSON accepts a number or one of the strings MarshalJSON emits.
func (r *Ratio) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		switch s {
		case "NaN":
			*r = Ratio(math.NaN())
		case "+Inf":
			*r = Ratio(math.Inf(1))
		case "-Inf":
			*r = Ratio(math.Inf(-1))
		default:
			return fmt.Errorf("invalid ratio %q", s)
		}
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*r = Ratio(f)
	return nil
}

// SummaryDTO is one vendor_sales_summary row.
type SummaryDTO struct {
	VendorNumber          int64   `json:"vendor_number"`
	VendorName            string  `json:"vendor_name"`
	Brand                 int64   `json:"brand"`
	Description           string  `json:"description"`
	PurchasePrice         string  `json:"purchase_price"`
	ActualPrice           string  `json:"actual_price"`
	Volume                float64 `json:"volume"`
	TotalPurchaseQuantity int64   `json:"total_purchase_quantity"`
	TotalPurchaseDollars  string  `json:"total_purchase_dollars"`
	TotalSalesQuantity    int64   `json:"total_sales_quantity"`
	TotalSalesDollars     string  `json:"total_sales_dollars"`
	TotalSalesPrice       string  `json:"total_sales_price"`
	TotalExciseTax        string  `json:"total_excise_tax"`
	FreightCost           string  `json:"freight_cost"`
	GrossProfit           string  `json:"gross_profit"`
	ProfitMargin          Ratio   `json:"profit_margin"`
	StockTurnover         Ratio   `json:"stock_turnover"`
	SalesToPurchaseRatio  Ratio   `json:"sales_to_purchase_ratio"`
}

// SummaryListResponse wraps a page of summary rows.
type SummaryListResponse struct {
	Rows   []SummaryDTO `json:"rows"`
	Count  int          `json:"count"`
	Limit  int          `json:"limit,omitempty"`
	Offset int          `json:"offset,omitempty"`
}

// VendorDTO is the rollup of one vendor.
type VendorDTO struct {
	VendorNumber         int64  `json:"vendor_number"`
	VendorName           string `json:"vendor_name"`
	Brands               int    `json:"brands"`
	TotalPurchaseDollars string `json:"total_purchase_dollars"`
	TotalSalesDollars    string `json:"total_sales_dollars"`
	GrossProfit          string `json:"gross_profit"`
	FreightCost          string `json:"freight_cost"`
}

// RunDTO is one pipeline run.
type RunDTO struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	Status      string `json:"status"`
	Rows        int64  `json:"rows"`
	Error       string `json:"error,omitempty"`
	StartedAt   string `json:"started_at"`
	CompletedAt string `json:"completed_at,omitempty"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toSummaryDTO(s inventory.VendorSummary) SummaryDTO {
	return SummaryDTO{
		VendorNumber:          s.VendorNumber,
		VendorName:            s.VendorName,
		Brand:                 s.Brand,
		Description:           s.Description,
		PurchasePrice:         s.PurchasePrice.String(),
		ActualPrice:           s.ActualPrice.String(),
		Volume:                s.Volume,
		TotalPurchaseQuantity: s.TotalPurchaseQuantity,
		TotalPurchaseDollars:  s.TotalPurchaseDollars.String(),
		TotalSalesQuantity:    s.TotalSalesQuantity,
		TotalSalesDollars:     s.TotalSalesDollars.String(),
		TotalSalesPrice:       s.TotalSalesPrice.String(),
		TotalExciseTax:        s.TotalExciseTax.String(),
		FreightCost:           s.FreightCost.String(),
		GrossProfit:           s.GrossProfit.String(),
		ProfitMargin:          Ratio(s.ProfitMargin),
		StockTurnover:         Ratio(s.StockTurnover),
		SalesToPurchaseRatio:  Ratio(s.SalestoPurchaseRatio),
	}
}

func toVendorDTO(r inventory.VendorRollup) VendorDTO {
	return VendorDTO{
		VendorNumber:         r.VendorNumber,
		VendorName:           r.VendorName,
		Brands:               r.Brands,
		TotalPurchaseDollars: r.TotalPurchaseDollars.String(),
		TotalSalesDollars:    r.TotalSalesDollars.String(),
		GrossProfit:          r.GrossProfit.String(),
		FreightCost:          r.FreightCost.String(),
	}
}

func toRunDTO(r inventory.Run) RunDTO {
	dto := RunDTO{
		ID:        r.ID,
		Kind:      string(r.Kind),
		Status:    string(r.Status),
		Rows:      r.Rows,
		Error:     r.Error,
		StartedAt: r.StartedAt.Format(time.RFC3339),
	}
	if r.CompletedAt != nil {
		dto.CompletedAt = r.CompletedAt.Format(time.RFC3339)
	}
	return dto
}
