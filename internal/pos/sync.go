package pos

import (
	"context"

	"github.com/pkg/errors"
	"github.com/talkincode/toughpos/internal/domain"
	"github.com/talkincode/toughpos/internal/events"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Start loads every collection once, then re-fetches all of them whenever
// the bus reports a change to any one.
func (s *Store) Start(ctx context.Context) error {
	s.ctx = ctx
	if err := s.Refresh(ctx); err != nil {
		return err
	}
	if s.bus == nil {
		return nil
	}
	s.handler = func(change events.Change) {
		if s.ctx.Err() != nil {
			return
		}
		if err := s.Refresh(s.ctx); err != nil {
			zap.L().Error("refresh after change error", zap.String("namespace", "pos"),
				zap.String("topic", change.Topic), zap.Error(err))
		}
	}
	for _, topic := range events.CollectionTopics {
		if err := s.bus.SubscribeAsync(topic, s.handler); err != nil {
			return errors.Wrapf(err, "subscribe %s", topic)
		}
	}
	return nil
}

// Stop drops the bus subscriptions and waits for a running refresh
func (s *Store) Stop() {
	if s.bus == nil || s.handler == nil {
		return
	}
	for _, topic := range events.CollectionTopics {
		_ = s.bus.Unsubscribe(topic, s.handler)
	}
	s.handler = nil
	s.bus.WaitAsync()
}

// Refresh re-reads products, categories, transactions and settings from the
// store of record and replaces the cached copies. Missing settings keep the
// cached value.
func (s *Store) Refresh(ctx context.Context) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	s.mu.Lock()
	s.loading = true
	s.bump()
	s.mu.Unlock()

	var (
		products     []domain.Product
		categories   []domain.Category
		transactions []domain.Transaction
		settings     *domain.StoreSettings
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		products, err = s.repo.ListProducts(gctx)
		return errors.Wrap(err, "fetch products")
	})
	g.Go(func() (err error) {
		categories, err = s.repo.ListCategories(gctx)
		return errors.Wrap(err, "fetch categories")
	})
	g.Go(func() (err error) {
		transactions, err = s.repo.ListTransactions(gctx)
		return errors.Wrap(err, "fetch transactions")
	})
	g.Go(func() (err error) {
		settings, err = s.repo.GetSettings(gctx)
		return errors.Wrap(err, "fetch settings")
	})
	err := g.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	s.bump()
	if err != nil {
		return err
	}
	s.products.reset(products)
	s.categories = categories
	s.transactions = transactions
	if settings != nil {
		s.settings = settings
	}
	return nil
}
