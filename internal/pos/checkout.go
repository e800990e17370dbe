package pos

import (
	"github.com/shopspring/decimal"
	"github.com/talkincode/toughpos/internal/domain"
)

// DefaultTaxRate is the fixed VAT applied when listed prices exclude tax
const DefaultTaxRate = 0.11

// Totals of a cart. Tax is whatever rounding leaves between Subtotal and Total.
type Totals struct {
	Subtotal    int64 `json:"subtotal"`
	Tax         int64 `json:"tax"`
	Total       int64 `json:"total"`
	TaxIncluded bool  `json:"tax_included"`
}

// Settlement is the outcome of tendering cash against Totals
type Settlement struct {
	Totals
	Tendered int64 `json:"tendered"`
	Change   int64 `json:"change"`
}

// CalculateTotals sums price × quantity and, unless prices already include tax,
// applies rate. Rounding happens once, on the total, half away from zero.
func CalculateTotals(items []domain.CartItem, taxIncluded bool, rate float64) Totals {
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(decimal.NewFromInt(item.Price).Mul(decimal.NewFromInt(item.Quantity)))
	}
	total := subtotal
	if !taxIncluded {
		total = subtotal.Mul(decimal.NewFromInt(1).Add(decimal.NewFromFloat(rate)))
	}
	t := Totals{
		Subtotal:    subtotal.Round(0).IntPart(),
		Total:       total.Round(0).IntPart(),
		TaxIncluded: taxIncluded,
	}
	t.Tax = t.Total - t.Subtotal
	return t
}

// RoundTender rounds a cash amount half away from zero to whole Rupiah
func RoundTender(tendered float64) int64 {
	return decimal.NewFromFloat(tendered).Round(0).IntPart()
}

// Settle computes the change due. A tender below the total yields *InsufficientFundsError.
func Settle(t Totals, tendered float64) (Settlement, error) {
	rounded := RoundTender(tendered)
	change := rounded - t.Total
	if change < 0 {
		return Settlement{}, &InsufficientFundsError{Tendered: rounded, Total: t.Total}
	}
	return Settlement{Totals: t, Tendered: rounded, Change: change}, nil
}
