// Package money formats integer amounts as Indonesian Rupiah.
package money

import (
	"github.com/shopspring/decimal"
	"github.com/talkincode/toughpos/pkg/i18n"
	"golang.org/x/text/message"
)

const Symbol = "Rp"

var printer = message.NewPrinter(i18n.Default)

// FormatRupiah renders amount as "Rp7.770": dot-grouped, no decimals.
func FormatRupiah(amount int64) string {
	return Symbol + printer.Sprintf("%d", amount)
}

// FormatRupiahFloat rounds half away from zero before formatting.
func FormatRupiahFloat(amount float64) string {
	return FormatRupiah(decimal.NewFromFloat(amount).Round(0).IntPart())
}
