package pos

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/talkincode/toughpos/internal/domain"
	"github.com/talkincode/toughpos/pkg/i18n"
	"github.com/talkincode/toughpos/pkg/money"
)

const receiptWidth = 40

// RenderReceipt formats a committed sale as a fixed-width text receipt
func RenderReceipt(tx domain.Transaction, settings domain.StoreSettings, rate float64) string {
	var b strings.Builder
	separator := strings.Repeat("-", receiptWidth) + "\n"

	center(&b, settings.StoreName)
	if settings.StoreAddress != "" {
		center(&b, settings.StoreAddress)
	}
	if settings.StorePhone != "" {
		center(&b, i18n.T("phonePrefix", map[string]any{"phone": settings.StorePhone}))
	}
	b.WriteString(separator)
	fmt.Fprintf(&b, "%s: %s\n", i18n.T("transactionId", nil), tx.ID)
	b.WriteString(tx.Timestamp.Format("02/01/2006 15:04") + "\n")
	b.WriteString(separator)

	for _, item := range tx.Items {
		line(&b, fmt.Sprintf("%s (%dx)", item.Name, item.Quantity), money.FormatRupiah(item.LineTotal()))
	}
	b.WriteString(separator)

	subtotal := tx.Items.Subtotal()
	line(&b, i18n.T("subtotal", nil), money.FormatRupiah(subtotal))
	line(&b, fmt.Sprintf("%s (%s%%)", i18n.T("tax", nil), decimal.NewFromFloat(rate).Mul(decimal.NewFromInt(100)).String()), money.FormatRupiah(tx.Total-subtotal))
	b.WriteString(strings.Repeat("=", receiptWidth) + "\n")
	line(&b, i18n.T("totalPaid", nil), money.FormatRupiah(tx.Total))
	b.WriteString(separator)
	line(&b, i18n.T("tendered", nil), money.FormatRupiah(tx.TenderedAmount))
	line(&b, i18n.T("changeDue", nil), money.FormatRupiah(tx.Change))

	if settings.ReceiptNotes != "" {
		b.WriteString(separator)
		for _, note := range strings.Split(settings.ReceiptNotes, "\n") {
			center(&b, note)
		}
	}
	return b.String()
}

func center(b *strings.Builder, text string) {
	pad := (receiptWidth - len([]rune(text))) / 2
	if pad < 0 {
		pad = 0
	}
	b.WriteString(strings.Repeat(" ", pad) + text + "\n")
}

func line(b *strings.Builder, left, right string) {
	gap := receiptWidth - len([]rune(left)) - len([]rune(right))
	if gap < 1 {
		gap = 1
	}
	b.WriteString(left + strings.Repeat(" ", gap) + right + "\n")
}

// Receipt renders tx with the current store settings
func (s *Store) Receipt(tx domain.Transaction) string {
	return RenderReceipt(tx, s.Settings(), s.taxRate)
}
