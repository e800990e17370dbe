package pos

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyCart         = errors.New("cart is empty")
	ErrUnknownProduct    = errors.New("unknown product")
	ErrUnknownCategory   = errors.New("unknown category")
	ErrUnknownCartItem   = errors.New("product is not in the cart")
	ErrDuplicateProduct  = errors.New("product id already exists")
	ErrInvalidProduct    = errors.New("invalid product")
	ErrInvalidCategory   = errors.New("category name is required")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrStockLimit        = errors.New("cart quantity exceeds stock")
	ErrStoreNameRequired = errors.New("store name is required")
	ErrNoObjectStore     = errors.New("object storage is not configured")
)

// InsufficientFundsError rejects a checkout whose tender does not cover the total
type InsufficientFundsError struct {
	Tendered int64
	Total    int64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: tendered %d is less than total %d", e.Tendered, e.Total)
}

// Shortfall is the amount still owed
func (e *InsufficientFundsError) Shortfall() int64 {
	return e.Total - e.Tendered
}

// StockLimitError rejects a cart add that would exceed the product stock
type StockLimitError struct {
	ProductID   string
	ProductName string
	Stock       int64
}

func (e *StockLimitError) Error() string {
	return fmt.Sprintf("cannot add more than %d %s to the cart", e.Stock, e.ProductName)
}

func (e *StockLimitError) Unwrap() error {
	return ErrStockLimit
}

// StockConflictError is returned when committing a sale would drive a product below zero
type StockConflictError struct {
	ProductID   string
	ProductName string
	Requested   int64
}

func (e *StockConflictError) Error() string {
	return fmt.Sprintf("insufficient stock for %s (%s): requested %d", e.ProductName, e.ProductID, e.Requested)
}

func (e *StockConflictError) Unwrap() error {
	return ErrInsufficientStock
}
