package summary

import (
	"database/sql"
	"sort"

	"github.com/shopspring/decimal"
)

// JoinedRow is a purchase group with its optionally matched sales and
// freight figures. Unmatched fields are NULL (Valid == false).
type JoinedRow struct {
	PurchaseTotal

	TotalSalesQuantity sql.NullInt64
	TotalSalesDollars  decimal.NullDecimal
	TotalSalesPrice    decimal.NullDecimal
	TotalExciseTax     decimal.NullDecimal
	FreightCost        decimal.NullDecimal
}

// Join left-joins purchases to sales on (VendorNumber = VendorNo, Brand) and
// the result to freight on VendorNumber. Output has exactly one row per
// purchase group, in purchase order.
func Join(purchases []PurchaseTotal, sales []SalesTotal, freight []FreightTotal) []JoinedRow {
	salesByKey := make(map[vendorBrand]SalesTotal, len(sales))
	for _, s := range sales {
		key := keyOf(s.VendorNo, s.Brand)
		if key.joinable() {
			salesByKey[key] = s
		}
	}
	freightByVendor := make(map[int64]decimal.NullDecimal, len(freight))
	for _, f := range freight {
		if f.VendorNumber.Valid {
			freightByVendor[f.VendorNumber.Int64] = f.FreightCost
		}
	}

	out := make([]JoinedRow, len(purchases))
	for i, p := range purchases {
		row := JoinedRow{PurchaseTotal: p}

		key := keyOf(p.VendorNumber, p.Brand)
		if s, ok := salesByKey[key]; ok && key.joinable() {
			row.TotalSalesQuantity = s.TotalSalesQuantity
			row.TotalSalesDollars = s.TotalSalesDollars
			row.TotalSalesPrice = s.TotalSalesPrice
			row.TotalExciseTax = s.TotalExciseTax
		}
		if p.VendorNumber.Valid {
			row.FreightCost = freightByVendor[p.VendorNumber.Int64]
		}
		out[i] = row
	}
	return out
}

// SortByPurchaseDollars orders rows by TotalPurchaseDollars descending,
// NULL last. Equal values keep their join order.
func SortByPurchaseDollars(rows []JoinedRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i].TotalPurchaseDollars, rows[j].TotalPurchaseDollars
		if !a.Valid || !b.Valid {
			return a.Valid && !b.Valid
		}
		return a.Decimal.GreaterThan(b.Decimal)
	})
}
