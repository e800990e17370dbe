package pos

import (
	"context"
	"errors"
	"time"

	"github.com/talkincode/toughpos/internal/domain"
	"github.com/talkincode/toughpos/pkg/common"
	"github.com/talkincode/toughpos/pkg/metrics"
	"github.com/talkincode/toughpos/pkg/money"
	"go.uber.org/zap"
)

// CartView is the cart of one till with its live totals
type CartView struct {
	Till  string            `json:"till"`
	Items []domain.CartItem `json:"items"`
	Totals
}

// AddToCart adds qty units of productID, merging with an existing line.
// The resulting line may not exceed the cached stock of the product.
func (s *Store) AddToCart(tillName, productID string, qty int64) (domain.CartItem, error) {
	if qty <= 0 {
		qty = 1
	}
	s.mu.Lock()
	p, ok := s.products.get(productID)
	if !ok {
		s.mu.Unlock()
		s.notify(tillName, LevelError, "toastUnknownProduct", map[string]any{"productId": productID})
		return domain.CartItem{}, ErrUnknownProduct
	}

	t := s.tillLocked(tillName)
	idx := -1
	var existing int64
	for i, item := range t.items {
		if item.ID == productID {
			idx = i
			existing = item.Quantity
			break
		}
	}
	if existing+qty > p.Stock {
		s.mu.Unlock()
		s.notify(tillName, LevelError, "toastStockLimit", map[string]any{"stock": p.Stock, "productName": p.Name})
		return domain.CartItem{}, &StockLimitError{ProductID: p.ID, ProductName: p.Name, Stock: p.Stock}
	}

	item := domain.NewCartItem(p, existing+qty)
	if idx >= 0 {
		t.items[idx] = item
	} else {
		t.items = append(t.items, item)
	}
	s.bump()
	s.mu.Unlock()

	s.notify(tillName, LevelSuccess, "toastItemAdded", nil)
	return item, nil
}

// UpdateQuantity sets the quantity of a cart line without checking stock.
// A quantity of zero or less removes the line.
func (s *Store) UpdateQuantity(tillName, productID string, qty int64) error {
	if qty <= 0 {
		return s.RemoveFromCart(tillName, productID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.tillLocked(tillName)
	for i := range t.items {
		if t.items[i].ID == productID {
			t.items[i].Quantity = qty
			s.bump()
			return nil
		}
	}
	return ErrUnknownCartItem
}

func (s *Store) RemoveFromCart(tillName, productID string) error {
	s.mu.Lock()
	t := s.tillLocked(tillName)
	idx := -1
	for i, item := range t.items {
		if item.ID == productID {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return ErrUnknownCartItem
	}
	t.items = append(t.items[:idx], t.items[idx+1:]...)
	s.bump()
	s.mu.Unlock()

	s.notify(tillName, LevelSuccess, "toastItemRemoved", nil)
	return nil
}

func (s *Store) ClearCart(tillName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.tillLocked(tillName)
	t.items = nil
	s.bump()
}

// Cart returns the lines and totals of a till
func (s *Store) Cart(tillName string) CartView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	view := CartView{Till: tillName, Items: []domain.CartItem{}}
	t, ok := s.tills[tillName]
	if ok {
		view.Items = append(view.Items, t.items...)
		view.Totals = CalculateTotals(t.items, t.taxIncluded, s.taxRate)
	} else {
		view.Totals = CalculateTotals(nil, false, s.taxRate)
	}
	return view
}

// Quote returns the totals of the till's cart
func (s *Store) Quote(tillName string) Totals {
	return s.Cart(tillName).Totals
}

func (s *Store) SetTaxIncluded(tillName string, included bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tillLocked(tillName).taxIncluded = included
	s.bump()
}

func (s *Store) TaxIncluded(tillName string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.tills[tillName]; ok {
		return t.taxIncluded
	}
	return false
}

// Checkout settles the till's cart against tendered and records the sale.
// Nothing changes when the cart is empty, the tender is short or the
// store of record refuses the stock decrement.
func (s *Store) Checkout(ctx context.Context, tillName string, tendered float64) (*domain.Transaction, error) {
	s.mu.Lock()
	t := s.tillLocked(tillName)
	s.mu.Unlock()

	// one checkout per till at a time
	t.checkout.Lock()
	defer t.checkout.Unlock()

	s.mu.RLock()
	items := append(domain.CartItems(nil), t.items...)
	taxIncluded := t.taxIncluded
	s.mu.RUnlock()

	if len(items) == 0 {
		s.notify(tillName, LevelError, "toastCartEmpty", nil)
		return nil, ErrEmptyCart
	}

	totals := CalculateTotals(items, taxIncluded, s.taxRate)
	settlement, err := Settle(totals, tendered)
	if err != nil {
		var funds *InsufficientFundsError
		if errors.As(err, &funds) {
			s.notify(tillName, LevelError, "insufficientFunds", map[string]any{
				"tendered": money.FormatRupiah(funds.Tendered),
				"total":    money.FormatRupiah(funds.Total),
			})
		}
		return nil, err
	}

	sale := &domain.Transaction{
		ID:             common.UUIDString(),
		Timestamp:      time.Now(),
		Items:          items,
		Subtotal:       settlement.Subtotal,
		Tax:            settlement.Tax,
		Total:          settlement.Total,
		TenderedAmount: settlement.Tendered,
		Change:         settlement.Change,
		TaxIncluded:    taxIncluded,
		Operator:       tillName,
	}
	sold, err := s.repo.CommitSale(ctx, sale)
	if err != nil {
		var conflict *StockConflictError
		if errors.As(err, &conflict) {
			s.notify(tillName, LevelError, "errorStockConflict", map[string]any{"productName": conflict.ProductName})
		} else {
			zap.L().Error("commit sale error", zap.String("namespace", "pos"), zap.String("till", tillName), zap.Error(err))
			s.notify(tillName, LevelError, "errorCheckout", nil)
		}
		return nil, err
	}

	s.mu.Lock()
	t.items = unsold(t.items, items)
	for _, p := range sold {
		s.products.put(p)
	}
	s.addTransactionLocked(*sale)
	s.bump()
	s.mu.Unlock()

	metrics.Observe("pos_checkout_total", float64(sale.Total))
	metrics.Observe("pos_checkout_items", float64(items.Quantity()))
	s.notify(tillName, LevelSuccess, "toastCheckoutSuccess", map[string]any{"total": money.FormatRupiah(sale.Total)})
	return sale, nil
}

// unsold removes the sold quantities from lines, keeping whatever was added
// to the till while the sale was being committed
func unsold(lines []domain.CartItem, sold domain.CartItems) []domain.CartItem {
	soldQty := make(map[string]int64, len(sold))
	for _, item := range sold {
		soldQty[item.ID] += item.Quantity
	}
	var kept []domain.CartItem
	for _, line := range lines {
		line.Quantity -= soldQty[line.ID]
		delete(soldQty, line.ID)
		if line.Quantity > 0 {
			kept = append(kept, line)
		}
	}
	return kept
}

// addTransactionLocked puts tx at the head of the cached history unless a
// refresh already loaded it
func (s *Store) addTransactionLocked(tx domain.Transaction) {
	for _, existing := range s.transactions {
		if existing.ID == tx.ID {
			return
		}
	}
	s.transactions = append([]domain.Transaction{tx}, s.transactions...)
}
