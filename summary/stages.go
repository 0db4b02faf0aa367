/*
Package summary computes the vendor sales summary.

PURPOSE:
  Turns the four source tables into one row per (VendorNumber, Brand) with
  aggregated purchase, sales and freight figures plus derived ratios.

ALGORITHM:
  1. FreightSummary:  Vendor_invoice grouped by VendorNumber, SUM(Freight)
  2. PurchaseSummary: purchases with PurchasePrice > 0, inner-joined to
                      purchase_prices by Brand, grouped by (VendorNumber, Brand)
  3. SalesSummary:    sales grouped by (VendorNo, Brand), four SUMs
  4. Join:            purchases LEFT JOIN sales LEFT JOIN freight
  5. Order:           TotalPurchaseDollars descending, stable
  6. Clean:           Volume to float, zero-fill, trim, derived ratios

NULL SEMANTICS:
  Stages follow SQL aggregate rules. SUM ignores NULL inputs and is NULL
  when a group has no non-NULL input. NULL keys form their own group but
  never satisfy a join condition. Nothing is zero-filled before Clean.

GROUP ORDER:
  Every stage emits groups in order of first appearance in its input, so
  the result is deterministic for a given input.

SEE ALSO:
  - join.go: Join and ordering
  - clean.go: Cleaning and derivation
  - summarizer.go: End-to-end run against a store
*/
package summary

import (
	"database/sql"

	"github.com/shopspring/decimal"
	"github.com/warp/vendor-analytics/inventory"
)

// =============================================================================
// KEYS AND ACCUMULATORS
// =============================================================================

// vendorBrand is the (VendorNumber, Brand) grouping key. sql.NullInt64 is
// comparable, so a NULL component is its own key value.
type vendorBrand struct {
	Vendor sql.NullInt64
	Brand  sql.NullInt64
}

func keyOf(vendor, brand sql.NullInt64) vendorBrand {
	return vendorBrand{Vendor: normID(vendor), Brand: normID(brand)}
}

// normID clears the payload of a NULL id so all NULLs share one key.
func normID(n sql.NullInt64) sql.NullInt64 {
	if !n.Valid {
		return sql.NullInt64{}
	}
	return n
}

// joinable reports whether a key can satisfy an equality join.
func (k vendorBrand) joinable() bool {
	return k.Vendor.Valid && k.Brand.Valid
}

func sumDecimal(acc *decimal.NullDecimal, v decimal.NullDecimal) {
	if !v.Valid {
		return
	}
	if !acc.Valid {
		*acc = v
		return
	}
	acc.Decimal = acc.Decimal.Add(v.Decimal)
}

func sumInt(acc *sql.NullInt64, v sql.NullInt64) {
	if !v.Valid {
		return
	}
	if !acc.Valid {
		*acc = v
		return
	}
	acc.Int64 += v.Int64
}

// =============================================================================
// FREIGHT SUMMARY
// =============================================================================

// FreightTotal is the total freight of one vendor.
type FreightTotal struct {
	VendorNumber sql.NullInt64
	FreightCost  decimal.NullDecimal
}

// FreightSummary sums Freight per VendorNumber. Vendors without invoices
// do not appear.
func FreightSummary(invoices []inventory.InvoiceRecord) []FreightTotal {
	index := make(map[sql.NullInt64]int)
	var out []FreightTotal
	for _, inv := range invoices {
		vendor := normID(inv.VendorNumber)
		i, ok := index[vendor]
		if !ok {
			i = len(out)
			index[vendor] = i
			out = append(out, FreightTotal{VendorNumber: inv.VendorNumber})
		}
		sumDecimal(&out[i].FreightCost, inv.Freight)
	}
	return out
}

// =============================================================================
// PURCHASE SUMMARY
// =============================================================================

// PurchaseTotal is one (VendorNumber, Brand) purchase group. Descriptive
// fields come from the first purchase row of the group; Volume and
// ActualPrice come from the joined price row.
type PurchaseTotal struct {
	VendorNumber          sql.NullInt64
	VendorName            sql.NullString
	Brand                 sql.NullInt64
	Description           sql.NullString
	PurchasePrice         decimal.NullDecimal
	Volume                sql.NullString
	ActualPrice           decimal.NullDecimal
	TotalPurchaseQuantity sql.NullInt64
	TotalPurchaseDollars  decimal.NullDecimal
}

// PurchaseResult carries the purchase groups plus join diagnostics.
type PurchaseResult struct {
	Totals []PurchaseTotal
	// Brands with more than one price row. The first row was used.
	DuplicateBrands []int64
	// Purchase rows that passed the price filter but had no price row.
	Unpriced int
	// Purchase rows dropped by the PurchasePrice > 0 filter.
	Filtered int
}

// PurchaseSummary filters purchases to PurchasePrice > 0, joins each to its
// price row by Brand and sums Quantity and Dollars per (VendorNumber, Brand).
func PurchaseSummary(purchases []inventory.PurchaseRecord, prices []inventory.PriceRecord) PurchaseResult {
	var res PurchaseResult

	priceByBrand := make(map[int64]inventory.PriceRecord, len(prices))
	dupSeen := make(map[int64]bool)
	for _, p := range prices {
		if !p.Brand.Valid {
			continue
		}
		if _, ok := priceByBrand[p.Brand.Int64]; ok {
			if !dupSeen[p.Brand.Int64] {
				dupSeen[p.Brand.Int64] = true
				res.DuplicateBrands = append(res.DuplicateBrands, p.Brand.Int64)
			}
			continue
		}
		priceByBrand[p.Brand.Int64] = p
	}

	index := make(map[vendorBrand]int)
	for _, p := range purchases {
		if !p.PurchasePrice.Valid || !p.PurchasePrice.Decimal.IsPositive() {
			res.Filtered++
			continue
		}
		if !p.Brand.Valid {
			res.Unpriced++
			continue
		}
		price, ok := priceByBrand[p.Brand.Int64]
		if !ok {
			res.Unpriced++
			continue
		}

		key := keyOf(p.VendorNumber, p.Brand)
		i, ok := index[key]
		if !ok {
			i = len(res.Totals)
			index[key] = i
			res.Totals = append(res.Totals, PurchaseTotal{
				VendorNumber:  p.VendorNumber,
				VendorName:    p.VendorName,
				Brand:         p.Brand,
				Description:   p.Description,
				PurchasePrice: p.PurchasePrice,
				Volume:        price.Volume,
				ActualPrice:   price.Price,
			})
		}
		t := &res.Totals[i]
		sumInt(&t.TotalPurchaseQuantity, p.Quantity)
		sumDecimal(&t.TotalPurchaseDollars, p.Dollars)
	}
	return res
}

// =============================================================================
// SALES SUMMARY
// =============================================================================

// SalesTotal is one (VendorNo, Brand) sales group. SalesPrice and ExciseTax
// are summed like the other columns, not averaged.
type SalesTotal struct {
	VendorNo           sql.NullInt64
	Brand              sql.NullInt64
	TotalSalesQuantity sql.NullInt64
	TotalSalesDollars  decimal.NullDecimal
	TotalSalesPrice    decimal.NullDecimal
	TotalExciseTax     decimal.NullDecimal
}

// SalesSummary sums quantity, dollars, price and excise tax per
// (VendorNo, Brand).
func SalesSummary(sales []inventory.SalesRecord) []SalesTotal {
	index := make(map[vendorBrand]int)
	var out []SalesTotal
	for _, s := range sales {
		key := keyOf(s.VendorNo, s.Brand)
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			out = append(out, SalesTotal{VendorNo: s.VendorNo, Brand: s.Brand})
		}
		t := &out[i]
		sumInt(&t.TotalSalesQuantity, s.SalesQuantity)
		sumDecimal(&t.TotalSalesDollars, s.SalesDollars)
		sumDecimal(&t.TotalSalesPrice, s.SalesPrice)
		sumDecimal(&t.TotalExciseTax, s.ExciseTax)
	}
	return out
}
