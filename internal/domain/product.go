package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Category groups products on the cashier grid
type Category struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	Name      string    `gorm:"size:200" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName Specify table name
func (Category) TableName() string {
	return "pos_category"
}

// Product is a sellable item. ID doubles as the scan code and is chosen by the operator.
type Product struct {
	ID            string    `gorm:"primaryKey;size:64" json:"id"`
	Name          string    `gorm:"index;size:200" json:"name"`
	Price         int64     `json:"price"`          // selling price in whole Rupiah
	PurchasePrice int64     `json:"purchase_price"` // cost price in whole Rupiah
	Stock         int64     `json:"stock"`
	ImageURL      string    `gorm:"size:1024" json:"image_url,omitempty"`
	CategoryID    string    `gorm:"index;size:64" json:"category_id,omitempty"` // weak reference, not a foreign key
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName Specify table name
func (Product) TableName() string {
	return "pos_product"
}

// CartItem is a product snapshot plus the quantity being sold
type CartItem struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Price         int64  `json:"price"`
	PurchasePrice int64  `json:"purchase_price"`
	Stock         int64  `json:"stock"`
	ImageURL      string `json:"image_url,omitempty"`
	CategoryID    string `json:"category_id,omitempty"`
	Quantity      int64  `json:"quantity"`
}

// NewCartItem snapshots p with the given quantity
func NewCartItem(p Product, quantity int64) CartItem {
	return CartItem{
		ID:            p.ID,
		Name:          p.Name,
		Price:         p.Price,
		PurchasePrice: p.PurchasePrice,
		Stock:         p.Stock,
		ImageURL:      p.ImageURL,
		CategoryID:    p.CategoryID,
		Quantity:      quantity,
	}
}

func (i CartItem) LineTotal() int64 {
	return i.Price * i.Quantity
}

func (i CartItem) LineProfit() int64 {
	return (i.Price - i.PurchasePrice) * i.Quantity
}

// CartItems is stored as a JSON document on the transaction row
type CartItems []CartItem

// Quantity returns the number of units across all lines
func (items CartItems) Quantity() int64 {
	var n int64
	for _, item := range items {
		n += item.Quantity
	}
	return n
}

// Subtotal returns Σ price × quantity
func (items CartItems) Subtotal() int64 {
	var sum int64
	for _, item := range items {
		sum += item.LineTotal()
	}
	return sum
}

func (items CartItems) Value() (driver.Value, error) {
	if items == nil {
		return "[]", nil
	}
	b, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (items *CartItems) Scan(value interface{}) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		*items = CartItems{}
		return nil
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return fmt.Errorf("unsupported cart items column type %T", value)
	}
	return json.Unmarshal(data, items)
}

// Transaction is an immutable record of a completed sale
type Transaction struct {
	ID             string    `gorm:"primaryKey;size:64" json:"id"`
	Timestamp      time.Time `gorm:"index" json:"timestamp"`
	Items          CartItems `gorm:"type:text" json:"items"`
	Subtotal       int64     `json:"subtotal"`
	Tax            int64     `json:"tax"`
	Total          int64     `json:"total"`
	TenderedAmount int64     `json:"tendered_amount"`
	Change         int64     `json:"change"`
	TaxIncluded    bool      `json:"tax_included"`
	Operator       string    `gorm:"index;size:100" json:"operator"`
}

// TableName Specify table name
func (Transaction) TableName() string {
	return "pos_transaction"
}

// StoreSettings is the store identity printed on receipts, one row per operator account
type StoreSettings struct {
	ID           int64     `json:"id,string" gorm:"primaryKey"`
	OperatorID   int64     `json:"operator_id,string" gorm:"uniqueIndex"`
	StoreName    string    `json:"store_name" gorm:"size:200"`
	StoreLogo    string    `json:"store_logo" gorm:"size:1024"`
	StoreAddress string    `json:"store_address" gorm:"size:500"`
	StorePhone   string    `json:"store_phone" gorm:"size:50"`
	ReceiptNotes string    `json:"receipt_notes" gorm:"size:1000"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName Specify table name
func (StoreSettings) TableName() string {
	return "pos_settings"
}
