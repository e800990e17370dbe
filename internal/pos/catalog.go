package pos

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/talkincode/toughpos/internal/domain"
	"github.com/talkincode/toughpos/pkg/common"
	"github.com/talkincode/toughpos/pkg/i18n"
	"go.uber.org/zap"
)

// ProductInput carries the editable fields of a product
type ProductInput struct {
	ID            string `json:"id"`
	Name          string `json:"name" validate:"required"`
	Price         int64  `json:"price" validate:"gt=0"`
	PurchasePrice int64  `json:"purchase_price" validate:"gte=0"`
	Stock         int64  `json:"stock" validate:"gte=0"`
	ImageURL      string `json:"image_url"`
	CategoryID    string `json:"category_id"`
}

func (in ProductInput) validate() error {
	switch {
	case strings.TrimSpace(in.Name) == "":
		return errors.Wrap(ErrInvalidProduct, "name is required")
	case in.Price <= 0:
		return errors.Wrap(ErrInvalidProduct, "price must be greater than zero")
	case in.PurchasePrice < 0:
		return errors.Wrap(ErrInvalidProduct, "purchase price must not be negative")
	case in.Stock < 0:
		return errors.Wrap(ErrInvalidProduct, "stock must not be negative")
	}
	return nil
}

// ProductFilter narrows ListProducts. Query matches the name or the scan code prefix.
type ProductFilter struct {
	Query      string
	CategoryID string
}

// CatalogEntry is a product with its resolved category name
type CatalogEntry struct {
	domain.Product
	CategoryName string `json:"category_name"`
}

func (s *Store) ListProducts(filter ProductFilter) []CatalogEntry {
	query := strings.ToLower(strings.TrimSpace(filter.Query))
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]CatalogEntry, 0, s.products.len())
	for _, p := range s.products.all() {
		if filter.CategoryID != "" && p.CategoryID != filter.CategoryID {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(p.Name), query) && !strings.HasPrefix(strings.ToLower(p.ID), query) {
			continue
		}
		result = append(result, CatalogEntry{Product: p, CategoryName: s.categoryNameLocked(p.CategoryID)})
	}
	return result
}

func (s *Store) GetProduct(id string) (domain.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.products.get(id)
}

// LookupByPrefix returns products whose scan code starts with prefix
func (s *Store) LookupByPrefix(prefix string, limit int) []domain.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.products.prefix(prefix, limit)
}

// CategoryName resolves the category of p, or the uncategorized label
func (s *Store) CategoryName(p domain.Product) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.categoryNameLocked(p.CategoryID)
}

func (s *Store) categoryNameLocked(id string) string {
	if id != "" {
		for _, c := range s.categories {
			if c.ID == id {
				return c.Name
			}
		}
	}
	return i18n.T("noCategory", nil)
}

func (s *Store) CreateProduct(ctx context.Context, in ProductInput) (*domain.Product, error) {
	in.ID = strings.TrimSpace(in.ID)
	if in.ID == "" {
		s.notify("", LevelError, "errorCreateProduct", nil)
		return nil, errors.Wrap(ErrInvalidProduct, "id is required")
	}
	if err := in.validate(); err != nil {
		s.notify("", LevelError, "errorCreateProduct", nil)
		return nil, err
	}
	if _, exists := s.GetProduct(in.ID); exists {
		s.notify("", LevelError, "errorDuplicateProduct", map[string]any{"productId": in.ID})
		return nil, ErrDuplicateProduct
	}
	if _, err := s.repo.GetProduct(ctx, in.ID); err == nil {
		s.notify("", LevelError, "errorDuplicateProduct", map[string]any{"productId": in.ID})
		return nil, ErrDuplicateProduct
	}

	now := time.Now()
	p := &domain.Product{
		ID:            in.ID,
		Name:          strings.TrimSpace(in.Name),
		Price:         in.Price,
		PurchasePrice: in.PurchasePrice,
		Stock:         in.Stock,
		ImageURL:      in.ImageURL,
		CategoryID:    in.CategoryID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.CreateProduct(ctx, p); err != nil {
		zap.L().Error("create product error", zap.String("namespace", "pos"), zap.String("product_id", p.ID), zap.Error(err))
		s.notify("", LevelError, "errorCreateProduct", nil)
		return nil, err
	}

	s.mu.Lock()
	s.products.put(*p)
	s.bump()
	s.mu.Unlock()
	s.notify("", LevelSuccess, "toastProductCreated", map[string]any{"productName": p.Name})
	return p, nil
}

// UpdateProduct replaces the editable fields of product id. The id itself never changes.
func (s *Store) UpdateProduct(ctx context.Context, id string, in ProductInput) (*domain.Product, error) {
	if err := in.validate(); err != nil {
		s.notify("", LevelError, "errorUpdateProduct", nil)
		return nil, err
	}
	p := &domain.Product{
		ID:            id,
		Name:          strings.TrimSpace(in.Name),
		Price:         in.Price,
		PurchasePrice: in.PurchasePrice,
		Stock:         in.Stock,
		ImageURL:      in.ImageURL,
		CategoryID:    in.CategoryID,
		UpdatedAt:     time.Now(),
	}
	if err := s.repo.UpdateProduct(ctx, p); err != nil {
		if !errors.Is(err, ErrUnknownProduct) {
			zap.L().Error("update product error", zap.String("namespace", "pos"), zap.String("product_id", id), zap.Error(err))
		}
		s.notify("", LevelError, "errorUpdateProduct", nil)
		return nil, err
	}

	s.mu.Lock()
	if old, ok := s.products.get(id); ok {
		p.CreatedAt = old.CreatedAt
	}
	s.products.put(*p)
	s.bump()
	s.mu.Unlock()
	s.notify("", LevelSuccess, "toastProductUpdated", map[string]any{"productName": p.Name})
	return p, nil
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		zap.L().Error("delete product error", zap.String("namespace", "pos"), zap.String("product_id", id), zap.Error(err))
		s.notify("", LevelError, "errorDeleteProduct", nil)
		return err
	}
	s.mu.Lock()
	s.products.remove(id)
	s.bump()
	s.mu.Unlock()
	s.notify("", LevelSuccess, "toastProductDeleted", nil)
	return nil
}

func (s *Store) ListCategories() []domain.Category {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Category{}, s.categories...)
}

func (s *Store) CreateCategory(ctx context.Context, name string) (*domain.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		s.notify("", LevelError, "errorCreateCategory", nil)
		return nil, ErrInvalidCategory
	}
	now := time.Now()
	c := &domain.Category{ID: common.UUIDString(), Name: name, CreatedAt: now, UpdatedAt: now}
	if err := s.repo.CreateCategory(ctx, c); err != nil {
		zap.L().Error("create category error", zap.String("namespace", "pos"), zap.Error(err))
		s.notify("", LevelError, "errorCreateCategory", nil)
		return nil, err
	}
	s.mu.Lock()
	s.putCategoryLocked(*c)
	s.bump()
	s.mu.Unlock()
	s.notify("", LevelSuccess, "toastCategoryCreated", map[string]any{"categoryName": c.Name})
	return c, nil
}

func (s *Store) UpdateCategory(ctx context.Context, id, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		s.notify("", LevelError, "errorUpdateCategory", nil)
		return ErrInvalidCategory
	}
	if err := s.repo.UpdateCategory(ctx, id, name); err != nil {
		if !errors.Is(err, ErrUnknownCategory) {
			zap.L().Error("update category error", zap.String("namespace", "pos"), zap.String("category_id", id), zap.Error(err))
		}
		s.notify("", LevelError, "errorUpdateCategory", nil)
		return err
	}
	s.mu.Lock()
	for i := range s.categories {
		if s.categories[i].ID == id {
			s.categories[i].Name = name
			s.categories[i].UpdatedAt = time.Now()
		}
	}
	s.bump()
	s.mu.Unlock()
	s.notify("", LevelSuccess, "toastCategoryUpdated", nil)
	return nil
}

// DeleteCategory removes the category only. Products keep their category id
// and resolve to the uncategorized label.
func (s *Store) DeleteCategory(ctx context.Context, id string) error {
	if err := s.repo.DeleteCategory(ctx, id); err != nil {
		zap.L().Error("delete category error", zap.String("namespace", "pos"), zap.String("category_id", id), zap.Error(err))
		s.notify("", LevelError, "errorDeleteCategory", nil)
		return err
	}
	s.mu.Lock()
	kept := make([]domain.Category, 0, len(s.categories))
	for _, c := range s.categories {
		if c.ID != id {
			kept = append(kept, c)
		}
	}
	s.categories = kept
	s.bump()
	s.mu.Unlock()
	s.notify("", LevelSuccess, "toastCategoryDeleted", nil)
	return nil
}

// putCategoryLocked replaces the cached category with the same id or appends c
func (s *Store) putCategoryLocked(c domain.Category) {
	for i := range s.categories {
		if s.categories[i].ID == c.ID {
			s.categories[i] = c
			return
		}
	}
	s.categories = append(s.categories, c)
}

// CheckLowStock returns the products whose stock is at or below threshold
// and raises a warning for each.
func (s *Store) CheckLowStock(threshold int64) []domain.Product {
	s.mu.RLock()
	low := make([]domain.Product, 0)
	for _, p := range s.products.all() {
		if p.Stock <= threshold {
			low = append(low, p)
		}
	}
	s.mu.RUnlock()

	for _, p := range low {
		s.notify("", LevelWarning, "toastLowStock", map[string]any{"productName": p.Name, "stock": p.Stock})
	}
	return low
}
