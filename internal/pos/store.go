// Package pos holds the point-of-sale state: the cached catalog, the sales
// history, store settings and the per-till carts, together with the actions
// that change them.
package pos

import (
	"context"
	"sync"

	"github.com/talkincode/toughpos/internal/domain"
	"github.com/talkincode/toughpos/internal/events"
	"github.com/talkincode/toughpos/pkg/i18n"
)

// ObjectStore receives uploaded binaries and resolves them to public URLs
type ObjectStore interface {
	Put(bucket, key string, data []byte) error
	PublicURL(bucket, key string) string
}

// Options configure a Store. Zero values fall back to defaults.
type Options struct {
	TaxRate  float64
	Bus      *events.Bus
	Notifier Notifier
	Objects  ObjectStore
}

// till is the cart of one cashier session
type till struct {
	checkout    sync.Mutex
	items       []domain.CartItem
	taxIncluded bool
}

// Store is the application state shared by every handler
type Store struct {
	repo     Repository
	bus      *events.Bus
	notifier Notifier
	objects  ObjectStore
	taxRate  float64

	mu           sync.RWMutex
	revision     uint64
	loading      bool
	products     *productIndex
	categories   []domain.Category
	transactions []domain.Transaction
	settings     *domain.StoreSettings
	tills        map[string]*till

	refreshMu sync.Mutex
	ctx       context.Context
	handler   events.Handler
}

func NewStore(repo Repository, opts Options) *Store {
	if opts.TaxRate <= 0 {
		opts.TaxRate = DefaultTaxRate
	}
	if opts.Notifier == nil {
		opts.Notifier = LogNotifier{}
	}
	return &Store{
		repo:     repo,
		bus:      opts.Bus,
		notifier: opts.Notifier,
		objects:  opts.Objects,
		taxRate:  opts.TaxRate,
		products: newProductIndex(),
		tills:    make(map[string]*till),
		ctx:      context.Background(),
	}
}

// Snapshot is a consistent copy of the cached collections
type Snapshot struct {
	Revision     uint64               `json:"revision"`
	Loading      bool                 `json:"loading"`
	Products     []domain.Product     `json:"products"`
	Categories   []domain.Category    `json:"categories"`
	Transactions []domain.Transaction `json:"transactions"`
	Settings     domain.StoreSettings `json:"settings"`
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Revision:     s.revision,
		Loading:      s.loading,
		Products:     s.products.all(),
		Categories:   append([]domain.Category(nil), s.categories...),
		Transactions: append([]domain.Transaction(nil), s.transactions...),
		Settings:     s.settingsLocked(),
	}
}

// Revision increases on every state change
func (s *Store) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

// Loading reports whether a refresh is in flight
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

func (s *Store) TaxRate() float64 {
	return s.taxRate
}

// Transactions returns the cached sales history, newest first
func (s *Store) Transactions() []domain.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Transaction(nil), s.transactions...)
}

// Repository exposes the store of record for queries the cache does not answer
func (s *Store) Repository() Repository {
	return s.repo
}

// bump must be called with mu held for writing
func (s *Store) bump() {
	s.revision++
}

// tillLocked returns the cart of name, creating it on first use. mu must be held for writing.
func (s *Store) tillLocked(name string) *till {
	t, ok := s.tills[name]
	if !ok {
		t = &till{}
		s.tills[name] = t
	}
	return t
}

func (s *Store) settingsLocked() domain.StoreSettings {
	var result domain.StoreSettings
	if s.settings != nil {
		result = *s.settings
	}
	if result.StoreName == "" {
		result.StoreName = i18n.T("defaultStoreName", nil)
	}
	if result.ReceiptNotes == "" {
		result.ReceiptNotes = i18n.T("defaultReceiptNote", nil)
	}
	return result
}
