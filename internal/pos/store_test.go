package pos

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talkincode/toughpos/internal/domain"
	"github.com/talkincode/toughpos/internal/events"
	"github.com/talkincode/toughpos/internal/storage"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testEnv struct {
	store *Store
	bus   *events.Bus
	db    *gorm.DB
	feed  *Feed
}

func newTestEnv(t *testing.T, objects ObjectStore) *testEnv {
	t.Helper()
	return newTestEnvWithRepo(t, objects, func(r *GormRepository) Repository { return r })
}

// newTestEnvWithRepo lets a test wrap the GORM repository the store writes through
func newTestEnvWithRepo(t *testing.T, objects ObjectStore, wrap func(*GormRepository) Repository) *testEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&domain.Category{}, &domain.Product{}, &domain.Transaction{}, &domain.StoreSettings{}))

	bus := events.NewBus()
	feed := NewFeed(50, nil)
	store := NewStore(wrap(NewGormRepository(db, bus)), Options{Bus: bus, Notifier: feed, Objects: objects})
	require.NoError(t, store.Start(context.Background()))
	t.Cleanup(func() {
		store.Stop()
		_ = sqlDB.Close()
	})
	return &testEnv{store: store, bus: bus, db: db, feed: feed}
}

// settle waits for the refreshes triggered by previous writes
func (e *testEnv) settle() {
	e.bus.WaitAsync()
}

func (e *testEnv) lastNotification(t *testing.T) Notification {
	t.Helper()
	items := e.feed.Since(0, "")
	require.NotEmpty(t, items)
	return items[len(items)-1]
}

func (e *testEnv) mustProduct(t *testing.T, id string, price, stock int64) {
	t.Helper()
	_, err := e.store.CreateProduct(context.Background(), ProductInput{
		ID: id, Name: "Produk " + id, Price: price, PurchasePrice: price / 2, Stock: stock,
	})
	require.NoError(t, err)
	e.settle()
}

func TestAddToCartRespectsStock(t *testing.T) {
	env := newTestEnv(t, nil)
	env.mustProduct(t, "8991", 3500, 3)

	item, err := env.store.AddToCart("kasir", "8991", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), item.Quantity)
	assert.Equal(t, LevelSuccess, env.lastNotification(t).Level)

	_, err = env.store.AddToCart("kasir", "8991", 2)
	var limit *StockLimitError
	require.True(t, errors.As(err, &limit))
	assert.Equal(t, int64(3), limit.Stock)
	assert.ErrorIs(t, err, ErrStockLimit)
	n := env.lastNotification(t)
	assert.Equal(t, LevelError, n.Level)
	assert.Equal(t, "Tidak dapat menambahkan lebih dari 3 Produk 8991 ke keranjang.", n.Message)

	cart := env.store.Cart("kasir")
	require.Len(t, cart.Items, 1)
	assert.Equal(t, int64(2), cart.Items[0].Quantity)

	// zero means one
	_, err = env.store.AddToCart("kasir", "8991", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), env.store.Cart("kasir").Items[0].Quantity)

	_, err = env.store.AddToCart("kasir", "nope", 1)
	assert.ErrorIs(t, err, ErrUnknownProduct)
}

func TestCartsArePerTill(t *testing.T) {
	env := newTestEnv(t, nil)
	env.mustProduct(t, "8991", 3500, 10)

	_, err := env.store.AddToCart("ani", "8991", 1)
	require.NoError(t, err)
	assert.Len(t, env.store.Cart("ani").Items, 1)
	assert.Empty(t, env.store.Cart("budi").Items)

	env.store.SetTaxIncluded("budi", true)
	assert.True(t, env.store.TaxIncluded("budi"))
	assert.False(t, env.store.TaxIncluded("ani"))
}

func TestUpdateQuantityAndRemove(t *testing.T) {
	env := newTestEnv(t, nil)
	env.mustProduct(t, "8991", 3500, 2)
	_, err := env.store.AddToCart("kasir", "8991", 1)
	require.NoError(t, err)

	// quantity updates are not checked against stock
	require.NoError(t, env.store.UpdateQuantity("kasir", "8991", 10))
	assert.Equal(t, int64(10), env.store.Cart("kasir").Items[0].Quantity)

	assert.ErrorIs(t, env.store.UpdateQuantity("kasir", "other", 1), ErrUnknownCartItem)

	require.NoError(t, env.store.UpdateQuantity("kasir", "8991", 0))
	assert.Empty(t, env.store.Cart("kasir").Items)

	_, err = env.store.AddToCart("kasir", "8991", 1)
	require.NoError(t, err)
	require.NoError(t, env.store.RemoveFromCart("kasir", "8991"))
	assert.Empty(t, env.store.Cart("kasir").Items)
	assert.ErrorIs(t, env.store.RemoveFromCart("kasir", "8991"), ErrUnknownCartItem)
}

func TestCheckoutCommitsSale(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.mustProduct(t, "8991", 3500, 5)
	_, err := env.store.AddToCart("kasir", "8991", 2)
	require.NoError(t, err)

	quote := env.store.Quote("kasir")
	assert.Equal(t, int64(7770), quote.Total)

	sale, err := env.store.Checkout(ctx, "kasir", 8000)
	require.NoError(t, err)
	assert.Equal(t, int64(7770), sale.Total)
	assert.Equal(t, int64(8000), sale.TenderedAmount)
	assert.Equal(t, int64(230), sale.Change)
	assert.Equal(t, "kasir", sale.Operator)
	assert.NotEmpty(t, sale.ID)
	assert.Equal(t, "Checkout berhasil! Total: Rp7.770", env.lastNotification(t).Message)

	env.settle()
	assert.Empty(t, env.store.Cart("kasir").Items)
	p, ok := env.store.GetProduct("8991")
	require.True(t, ok)
	assert.Equal(t, int64(3), p.Stock)

	var stored domain.Product
	require.NoError(t, env.db.Where("id = ?", "8991").First(&stored).Error)
	assert.Equal(t, int64(3), stored.Stock)

	txs := env.store.Transactions()
	require.Len(t, txs, 1)
	assert.Equal(t, sale.ID, txs[0].ID)
	require.Len(t, txs[0].Items, 1)
	assert.Equal(t, int64(2), txs[0].Items[0].Quantity)
}

// hookedRepository runs a callback after a write has committed and been
// published, before the store sees the result
type hookedRepository struct {
	*GormRepository
	afterWrite func()
}

func (r *hookedRepository) CommitSale(ctx context.Context, sale *domain.Transaction) ([]domain.Product, error) {
	sold, err := r.GormRepository.CommitSale(ctx, sale)
	if err == nil && r.afterWrite != nil {
		r.afterWrite()
	}
	return sold, err
}

func (r *hookedRepository) CreateCategory(ctx context.Context, c *domain.Category) error {
	err := r.GormRepository.CreateCategory(ctx, c)
	if err == nil && r.afterWrite != nil {
		r.afterWrite()
	}
	return err
}

func TestWritesAfterRefreshAreIdempotent(t *testing.T) {
	var hooked *hookedRepository
	env := newTestEnvWithRepo(t, nil, func(r *GormRepository) Repository {
		hooked = &hookedRepository{GormRepository: r}
		return hooked
	})
	ctx := context.Background()
	env.mustProduct(t, "A", 1000, 5)
	_, err := env.store.AddToCart("kasir", "A", 2)
	require.NoError(t, err)

	// the refresh triggered by the write completes before the store patches its cache
	hooked.afterWrite = env.bus.WaitAsync

	_, err = env.store.Checkout(ctx, "kasir", 10000)
	require.NoError(t, err)
	p, ok := env.store.GetProduct("A")
	require.True(t, ok)
	assert.Equal(t, int64(3), p.Stock)
	assert.Len(t, env.store.Transactions(), 1)

	_, err = env.store.AddToCart("kasir", "A", 3)
	assert.NoError(t, err)

	_, err = env.store.CreateCategory(ctx, "Minuman")
	require.NoError(t, err)
	assert.Len(t, env.store.ListCategories(), 1)
}

func TestCheckoutKeepsLinesAddedDuringCommit(t *testing.T) {
	var hooked *hookedRepository
	env := newTestEnvWithRepo(t, nil, func(r *GormRepository) Repository {
		hooked = &hookedRepository{GormRepository: r}
		return hooked
	})
	ctx := context.Background()
	env.mustProduct(t, "A", 1000, 5)
	env.mustProduct(t, "B", 2000, 5)
	_, err := env.store.AddToCart("kasir", "A", 2)
	require.NoError(t, err)

	hooked.afterWrite = func() {
		_, err := env.store.AddToCart("kasir", "A", 1)
		assert.NoError(t, err)
		_, err = env.store.AddToCart("kasir", "B", 1)
		assert.NoError(t, err)
	}
	sale, err := env.store.Checkout(ctx, "kasir", 10000)
	require.NoError(t, err)
	require.Len(t, sale.Items, 1)
	assert.Equal(t, int64(2), sale.Items[0].Quantity)

	items := env.store.Cart("kasir").Items
	require.Len(t, items, 2)
	assert.Equal(t, "A", items[0].ID)
	assert.Equal(t, int64(1), items[0].Quantity)
	assert.Equal(t, "B", items[1].ID)
	assert.Equal(t, int64(1), items[1].Quantity)
}

func TestCheckoutRejections(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	_, err := env.store.Checkout(ctx, "kasir", 1000)
	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.Equal(t, "Keranjang kosong.", env.lastNotification(t).Message)

	env.mustProduct(t, "8991", 3500, 5)
	_, err = env.store.AddToCart("kasir", "8991", 2)
	require.NoError(t, err)

	_, err = env.store.Checkout(ctx, "kasir", 7000)
	var funds *InsufficientFundsError
	require.True(t, errors.As(err, &funds))
	assert.Equal(t, int64(770), funds.Shortfall())
	assert.Equal(t, "Uang yang diterima (Rp7.000) kurang dari total pembayaran (Rp7.770).", env.lastNotification(t).Message)

	assert.Len(t, env.store.Cart("kasir").Items, 1)
	p, _ := env.store.GetProduct("8991")
	assert.Equal(t, int64(5), p.Stock)
	var count int64
	require.NoError(t, env.db.Model(&domain.Transaction{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestCheckoutStockConflictRollsBack(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.mustProduct(t, "8991", 3500, 5)
	env.mustProduct(t, "8992", 1000, 5)
	_, err := env.store.AddToCart("kasir", "8991", 1)
	require.NoError(t, err)
	_, err = env.store.AddToCart("kasir", "8992", 4)
	require.NoError(t, err)
	env.settle()

	// another till sold most of 8992 behind the cache's back
	require.NoError(t, env.db.Model(&domain.Product{}).Where("id = ?", "8992").Update("stock", 1).Error)

	_, err = env.store.Checkout(ctx, "kasir", 100000)
	assert.ErrorIs(t, err, ErrInsufficientStock)
	var conflict *StockConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "8992", conflict.ProductID)

	var count int64
	require.NoError(t, env.db.Model(&domain.Transaction{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
	var first domain.Product
	require.NoError(t, env.db.Where("id = ?", "8991").First(&first).Error)
	assert.Equal(t, int64(5), first.Stock)
	assert.Len(t, env.store.Cart("kasir").Items, 2)
}

func TestProductRoundTrip(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	created, err := env.store.CreateProduct(ctx, ProductInput{
		ID: " 8991002 ", Name: "Teh Botol", Price: 5000, PurchasePrice: 3500, Stock: 24,
	})
	require.NoError(t, err)
	assert.Equal(t, "8991002", created.ID)
	env.settle()

	list := env.store.ListProducts(ProductFilter{})
	require.Len(t, list, 1)
	assert.Equal(t, "8991002", list[0].ID)
	assert.Equal(t, "Teh Botol", list[0].Name)
	assert.Equal(t, int64(5000), list[0].Price)
	assert.Equal(t, int64(3500), list[0].PurchasePrice)
	assert.Equal(t, int64(24), list[0].Stock)

	_, err = env.store.CreateProduct(ctx, ProductInput{ID: "8991002", Name: "Lagi", Price: 1})
	assert.ErrorIs(t, err, ErrDuplicateProduct)
	_, err = env.store.CreateProduct(ctx, ProductInput{ID: "  ", Name: "Kosong", Price: 1})
	assert.ErrorIs(t, err, ErrInvalidProduct)
	_, err = env.store.CreateProduct(ctx, ProductInput{ID: "x", Name: "Gratis", Price: 0})
	assert.ErrorIs(t, err, ErrInvalidProduct)

	updated, err := env.store.UpdateProduct(ctx, "8991002", ProductInput{Name: "Teh Botol Sosro", Price: 5500, Stock: 20})
	require.NoError(t, err)
	assert.Equal(t, "Teh Botol Sosro", updated.Name)
	_, err = env.store.UpdateProduct(ctx, "missing", ProductInput{Name: "x", Price: 1})
	assert.ErrorIs(t, err, ErrUnknownProduct)
	env.settle()
	p, ok := env.store.GetProduct("8991002")
	require.True(t, ok)
	assert.Equal(t, int64(5500), p.Price)

	require.NoError(t, env.store.DeleteProduct(ctx, "8991002"))
	env.settle()
	assert.Empty(t, env.store.ListProducts(ProductFilter{}))
}

func TestListProductsFilterAndLookup(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	drinks, err := env.store.CreateCategory(ctx, "Minuman")
	require.NoError(t, err)
	for _, in := range []ProductInput{
		{ID: "8991001", Name: "Kopi Susu", Price: 8000, Stock: 1, CategoryID: drinks.ID},
		{ID: "8991002", Name: "Teh Botol", Price: 5000, Stock: 1, CategoryID: drinks.ID},
		{ID: "7770001", Name: "Roti Tawar", Price: 12000, Stock: 1},
	} {
		_, err := env.store.CreateProduct(ctx, in)
		require.NoError(t, err)
	}
	env.settle()

	assert.Len(t, env.store.ListProducts(ProductFilter{CategoryID: drinks.ID}), 2)
	assert.Len(t, env.store.ListProducts(ProductFilter{Query: "roti"}), 1)
	assert.Len(t, env.store.ListProducts(ProductFilter{Query: "8991"}), 2)

	found := env.store.LookupByPrefix("8991", 0)
	require.Len(t, found, 2)
	assert.Equal(t, "8991001", found[0].ID)
	assert.Len(t, env.store.LookupByPrefix("8991", 1), 1)
	assert.Empty(t, env.store.LookupByPrefix("9", 0))
}

func TestDeleteCategoryKeepsProducts(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	snacks, err := env.store.CreateCategory(ctx, "Makanan Ringan")
	require.NoError(t, err)
	_, err = env.store.CreateCategory(ctx, " ")
	assert.ErrorIs(t, err, ErrInvalidCategory)

	_, err = env.store.CreateProduct(ctx, ProductInput{ID: "8992", Name: "Keripik", Price: 7000, Stock: 3, CategoryID: snacks.ID})
	require.NoError(t, err)
	env.settle()
	assert.Equal(t, "Makanan Ringan", env.store.ListProducts(ProductFilter{})[0].CategoryName)

	require.NoError(t, env.store.UpdateCategory(ctx, snacks.ID, "Camilan"))
	env.settle()
	assert.Equal(t, "Camilan", env.store.ListProducts(ProductFilter{})[0].CategoryName)

	require.NoError(t, env.store.DeleteCategory(ctx, snacks.ID))
	env.settle()

	list := env.store.ListProducts(ProductFilter{})
	require.Len(t, list, 1)
	assert.Equal(t, snacks.ID, list[0].CategoryID)
	assert.Equal(t, "Tanpa Kategori", list[0].CategoryName)
	for _, c := range env.store.ListCategories() {
		assert.NotEqual(t, snacks.ID, c.ID)
	}
}

func TestRefreshOnChange(t *testing.T) {
	env := newTestEnv(t, nil)
	before := env.store.Revision()

	// a write that does not go through the store
	repo := NewGormRepository(env.db, env.bus)
	require.NoError(t, repo.CreateProduct(context.Background(), &domain.Product{ID: "555", Name: "Gula", Price: 15000, Stock: 9}))
	env.settle()

	p, ok := env.store.GetProduct("555")
	require.True(t, ok)
	assert.Equal(t, "Gula", p.Name)
	assert.Greater(t, env.store.Revision(), before)
	assert.False(t, env.store.Loading())

	snap := env.store.Snapshot()
	assert.Len(t, snap.Products, 1)
	assert.Equal(t, "Dyad POS", snap.Settings.StoreName)
}

func TestSettings(t *testing.T) {
	objects, err := storage.Open(filepath.Join(t.TempDir(), "objects.db"))
	require.NoError(t, err)
	defer objects.Close()
	env := newTestEnv(t, objects)
	ctx := context.Background()

	assert.Equal(t, "Dyad POS", env.store.Settings().StoreName)
	assert.Equal(t, "Terima kasih atas pembelian Anda!", env.store.Settings().ReceiptNotes)

	_, err = env.store.SaveSettings(ctx, 7, SettingsInput{StoreName: " "})
	assert.ErrorIs(t, err, ErrStoreNameRequired)

	_, err = env.store.SaveSettings(ctx, 7, SettingsInput{StoreName: "Toko Makmur", StorePhone: "0211234"})
	require.NoError(t, err)
	_, err = env.store.SaveSettings(ctx, 7, SettingsInput{StoreName: "Toko Makmur Jaya", ReceiptNotes: "Sampai jumpa"})
	require.NoError(t, err)
	env.settle()

	settings := env.store.Settings()
	assert.Equal(t, "Toko Makmur Jaya", settings.StoreName)
	assert.Equal(t, "Sampai jumpa", settings.ReceiptNotes)
	var count int64
	require.NoError(t, env.db.Model(&domain.StoreSettings{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	url, err := env.store.UploadLogo(ctx, 7, "logo.PNG", []byte("png"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "/files/logos/7/"))
	assert.True(t, strings.HasSuffix(url, ".png"))
	data, err := objects.Get(LogoBucket, strings.TrimPrefix(url, "/files/logos/"))
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), data)
}

func TestUploadLogoWithoutObjectStore(t *testing.T) {
	env := newTestEnv(t, nil)
	_, err := env.store.UploadLogo(context.Background(), 1, "logo.png", []byte("x"))
	assert.ErrorIs(t, err, ErrNoObjectStore)
}

func TestCheckLowStock(t *testing.T) {
	env := newTestEnv(t, nil)
	env.mustProduct(t, "1", 1000, 2)
	env.mustProduct(t, "2", 1000, 50)

	low := env.store.CheckLowStock(5)
	require.Len(t, low, 1)
	assert.Equal(t, "1", low[0].ID)
	n := env.lastNotification(t)
	assert.Equal(t, LevelWarning, n.Level)
	assert.Equal(t, "Stok Produk 1 tinggal 2.", n.Message)
}
