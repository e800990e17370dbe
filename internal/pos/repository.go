package pos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/talkincode/toughpos/internal/domain"
	"github.com/talkincode/toughpos/internal/events"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TransactionQuery filters the sales history
type TransactionQuery struct {
	From     time.Time
	To       time.Time
	Operator string
	Page     int
	PageSize int
}

// Repository is the store of record behind the POS state store
type Repository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	CreateProduct(ctx context.Context, p *domain.Product) error
	UpdateProduct(ctx context.Context, p *domain.Product) error
	DeleteProduct(ctx context.Context, id string) error

	ListCategories(ctx context.Context) ([]domain.Category, error)
	CreateCategory(ctx context.Context, c *domain.Category) error
	UpdateCategory(ctx context.Context, id, name string) error
	DeleteCategory(ctx context.Context, id string) error

	// ListTransactions returns every transaction, newest first
	ListTransactions(ctx context.Context) ([]domain.Transaction, error)
	GetTransaction(ctx context.Context, id string) (*domain.Transaction, error)
	QueryTransactions(ctx context.Context, q TransactionQuery) ([]domain.Transaction, int64, error)
	// CommitSale records tx and decrements stock for each line atomically.
	// It returns the sold products as committed.
	CommitSale(ctx context.Context, tx *domain.Transaction) ([]domain.Product, error)

	// GetSettings returns the most recently saved settings, or nil when none exist
	GetSettings(ctx context.Context) (*domain.StoreSettings, error)
	UpsertSettings(ctx context.Context, s *domain.StoreSettings) error
}

// GormRepository is the GORM implementation of Repository.
// Every committed write is published on the change bus.
type GormRepository struct {
	db  *gorm.DB
	bus *events.Bus
}

func NewGormRepository(db *gorm.DB, bus *events.Bus) *GormRepository {
	return &GormRepository{db: db, bus: bus}
}

func (r *GormRepository) ListProducts(ctx context.Context) ([]domain.Product, error) {
	var rows []domain.Product
	err := r.db.WithContext(ctx).Order("id ASC").Find(&rows).Error
	return rows, err
}

func (r *GormRepository) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUnknownProduct
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *GormRepository) CreateProduct(ctx context.Context, p *domain.Product) error {
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		return err
	}
	r.bus.Publish(events.TopicProducts, events.OpInsert, p.ID)
	return nil
}

func (r *GormRepository) UpdateProduct(ctx context.Context, p *domain.Product) error {
	result := r.db.WithContext(ctx).Model(&domain.Product{}).Where("id = ?", p.ID).Updates(map[string]interface{}{
		"name":           p.Name,
		"price":          p.Price,
		"purchase_price": p.PurchasePrice,
		"stock":          p.Stock,
		"category_id":    p.CategoryID,
		"image_url":      p.ImageURL,
		"updated_at":     time.Now(),
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUnknownProduct
	}
	r.bus.Publish(events.TopicProducts, events.OpUpdate, p.ID)
	return nil
}

func (r *GormRepository) DeleteProduct(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Product{}).Error; err != nil {
		return err
	}
	r.bus.Publish(events.TopicProducts, events.OpDelete, id)
	return nil
}

func (r *GormRepository) ListCategories(ctx context.Context) ([]domain.Category, error) {
	var rows []domain.Category
	err := r.db.WithContext(ctx).Order("name ASC").Find(&rows).Error
	return rows, err
}

func (r *GormRepository) CreateCategory(ctx context.Context, c *domain.Category) error {
	if err := r.db.WithContext(ctx).Create(c).Error; err != nil {
		return err
	}
	r.bus.Publish(events.TopicCategories, events.OpInsert, c.ID)
	return nil
}

func (r *GormRepository) UpdateCategory(ctx context.Context, id, name string) error {
	result := r.db.WithContext(ctx).Model(&domain.Category{}).Where("id = ?", id).Updates(map[string]interface{}{
		"name":       name,
		"updated_at": time.Now(),
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUnknownCategory
	}
	r.bus.Publish(events.TopicCategories, events.OpUpdate, id)
	return nil
}

// DeleteCategory leaves products pointing at id untouched
func (r *GormRepository) DeleteCategory(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Category{}).Error; err != nil {
		return err
	}
	r.bus.Publish(events.TopicCategories, events.OpDelete, id)
	return nil
}

func (r *GormRepository) ListTransactions(ctx context.Context) ([]domain.Transaction, error) {
	var rows []domain.Transaction
	err := r.db.WithContext(ctx).Order("timestamp DESC").Find(&rows).Error
	return rows, err
}

func (r *GormRepository) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	var tx domain.Transaction
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&tx).Error
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func (r *GormRepository) QueryTransactions(ctx context.Context, q TransactionQuery) ([]domain.Transaction, int64, error) {
	query := r.db.WithContext(ctx).Model(&domain.Transaction{})
	if !q.From.IsZero() {
		query = query.Where("timestamp >= ?", q.From)
	}
	if !q.To.IsZero() {
		query = query.Where("timestamp < ?", q.To)
	}
	if q.Operator != "" {
		query = query.Where("operator = ?", q.Operator)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []domain.Transaction
	query = query.Order("timestamp DESC")
	if q.PageSize > 0 {
		page := q.Page
		if page < 1 {
			page = 1
		}
		query = query.Offset((page - 1) * q.PageSize).Limit(q.PageSize)
	}
	err := query.Find(&rows).Error
	return rows, total, err
}

// CommitSale inserts tx and then, for each line, decrements stock only when
// enough remains. Any shortfall rolls the whole sale back. The products are
// read back inside the same transaction.
func (r *GormRepository) CommitSale(ctx context.Context, sale *domain.Transaction) ([]domain.Product, error) {
	var sold []domain.Product
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(sale).Error; err != nil {
			return errors.Wrap(err, "insert transaction")
		}
		ids := make([]string, 0, len(sale.Items))
		for _, item := range sale.Items {
			result := tx.Model(&domain.Product{}).
				Where("id = ? AND stock >= ?", item.ID, item.Quantity).
				Updates(map[string]interface{}{
					"stock":      gorm.Expr("stock - ?", item.Quantity),
					"updated_at": time.Now(),
				})
			if result.Error != nil {
				return errors.Wrapf(result.Error, "decrement stock of %s", item.ID)
			}
			if result.RowsAffected == 0 {
				return &StockConflictError{ProductID: item.ID, ProductName: item.Name, Requested: item.Quantity}
			}
			ids = append(ids, item.ID)
		}
		return errors.Wrap(tx.Where("id IN ?", ids).Find(&sold).Error, "reload sold products")
	})
	if err != nil {
		return nil, err
	}
	r.bus.Publish(events.TopicTransactions, events.OpInsert, sale.ID)
	for _, item := range sale.Items {
		r.bus.Publish(events.TopicProducts, events.OpUpdate, item.ID)
	}
	return sold, nil
}

func (r *GormRepository) GetSettings(ctx context.Context) (*domain.StoreSettings, error) {
	var rows []domain.StoreSettings
	if err := r.db.WithContext(ctx).Order("updated_at DESC").Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (r *GormRepository) UpsertSettings(ctx context.Context, s *domain.StoreSettings) error {
	s.UpdatedAt = time.Now()
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "operator_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"store_name", "store_logo", "store_address", "store_phone", "receipt_notes", "updated_at",
		}),
	}).Create(s).Error
	if err != nil {
		return err
	}
	r.bus.Publish(events.TopicSettings, events.OpUpsert, "")
	return nil
}
