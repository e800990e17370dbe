package adminapi

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talkincode/toughpos/config"
	"github.com/talkincode/toughpos/internal/app"
	"github.com/talkincode/toughpos/internal/domain"
	"github.com/talkincode/toughpos/internal/webserver"
)

var registerOnce sync.Once

type apiEnv struct {
	app     *app.Application
	handler http.Handler
	token   string
}

type apiResult struct {
	Data          json.RawMessage `json:"data"`
	Meta          *Meta           `json:"meta"`
	Error         string          `json:"error"`
	Message       string          `json:"message"`
	Details       json.RawMessage `json:"details"`
	Notifications []struct {
		Key     string `json:"key"`
		Level   string `json:"level"`
		Message string `json:"message"`
	} `json:"notifications"`
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	cfg := *config.DefaultAppConfig
	cfg.System.Workdir = t.TempDir()
	cfg.Database = config.DBConfig{Type: "sqlite", Name: ":memory:"}
	cfg.Logger.FileEnable = false
	cfg.Pos.DemoData = true

	a := app.NewApplication(&cfg)
	require.NoError(t, a.Init(&cfg))
	t.Cleanup(a.Release)

	registerOnce.Do(Init)
	env := &apiEnv{app: a, handler: webserver.NewAdminServer(a).Handler()}

	rec := env.do(t, http.MethodPost, "/auth/login", map[string]string{"username": "admin", "password": "toughpos"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var login struct {
		Token string `json:"token"`
	}
	env.decode(t, rec, &login)
	require.NotEmpty(t, login.Token)
	env.token = login.Token
	return env
}

func (e *apiEnv) request(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	if e.token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+e.token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	if req.Method != http.MethodGet {
		// let the change-feed refresh finish before the next read
		e.app.Bus().WaitAsync()
	}
	return rec
}

func (e *apiEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, webserver.APIPrefix+path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return e.request(t, req)
}

func (e *apiEnv) result(t *testing.T, rec *httptest.ResponseRecorder) apiResult {
	t.Helper()
	var r apiResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &r), rec.Body.String())
	return r
}

func (e *apiEnv) decode(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(e.result(t, rec).Data, out))
}

func TestAuthRequired(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.do(t, http.MethodGet, "/auth/session", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var session struct {
		Till     string        `json:"till"`
		Operator domain.SysOpr `json:"operator"`
	}
	env.decode(t, rec, &session)
	assert.Equal(t, "admin", session.Till)
	assert.Equal(t, "super", session.Operator.Level)

	token := env.token
	env.token = ""
	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/pos/cart", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodPost, "/auth/login",
		map[string]string{"username": "admin", "password": "wrong"}).Code)

	env.token = token
	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodPost, "/auth/logout", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/pos/cart", nil).Code)

	var logs int64
	env.app.DB().Model(&domain.SysOprLog{}).Where("opt_action IN ?", []string{"login", "logout"}).Count(&logs)
	assert.Equal(t, int64(2), logs)
}

func TestProductEndpoints(t *testing.T) {
	env := newAPIEnv(t)

	product := map[string]interface{}{"id": "123", "name": "Gula Pasir", "price": 15000, "purchase_price": 12000, "stock": 10}
	rec := env.do(t, http.MethodPost, "/pos/products", product)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res := env.result(t, rec)
	require.NotEmpty(t, res.Notifications)
	assert.Equal(t, "toastProductCreated", res.Notifications[len(res.Notifications)-1].Key)
	assert.Equal(t, "Produk Gula Pasir dibuat.", res.Notifications[len(res.Notifications)-1].Message)

	rec = env.do(t, http.MethodPost, "/pos/products", product)
	assert.Equal(t, http.StatusConflict, rec.Code)
	res = env.result(t, rec)
	assert.Equal(t, "DUPLICATE_PRODUCT", res.Error)
	assert.Equal(t, "Produk dengan ID 123 sudah ada.", res.Message)
	require.NotEmpty(t, res.Notifications)
	assert.Equal(t, "error", res.Notifications[len(res.Notifications)-1].Level)

	rec = env.do(t, http.MethodPost, "/pos/products", map[string]interface{}{"id": "124", "name": "Garam", "price": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.result(t, rec).Error)

	rec = env.do(t, http.MethodGet, "/pos/products?q=gula", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	res = env.result(t, rec)
	require.NotNil(t, res.Meta)
	assert.Equal(t, int64(1), res.Meta.Total)

	rec = env.do(t, http.MethodGet, "/pos/products?sort=price&order=DESC&pageSize=2", nil)
	var page []struct {
		ID    string `json:"id"`
		Price int64  `json:"price"`
	}
	env.decode(t, rec, &page)
	require.Len(t, page, 2)
	assert.Equal(t, "8991001", page[0].ID)
	assert.Equal(t, int64(6), env.result(t, rec).Meta.Total)

	rec = env.do(t, http.MethodGet, "/pos/products/lookup?prefix=8992", nil)
	var lookup []domain.Product
	env.decode(t, rec, &lookup)
	assert.Len(t, lookup, 2)

	rec = env.do(t, http.MethodPut, "/pos/products/123", map[string]interface{}{"name": "Gula Aren", "price": 18000, "purchase_price": 12000, "stock": 8})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = env.do(t, http.MethodGet, "/pos/products/123", nil)
	var got struct {
		Name         string `json:"name"`
		Stock        int64  `json:"stock"`
		CategoryName string `json:"category_name"`
	}
	env.decode(t, rec, &got)
	assert.Equal(t, "Gula Aren", got.Name)
	assert.Equal(t, int64(8), got.Stock)
	assert.Equal(t, "Tanpa Kategori", got.CategoryName)

	rec = env.do(t, http.MethodDelete, "/pos/products/123", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	res = env.result(t, rec)
	require.NotEmpty(t, res.Notifications)
	assert.Equal(t, "toastProductDeleted", res.Notifications[len(res.Notifications)-1].Key)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/pos/products/123", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPut, "/pos/products/999",
		map[string]interface{}{"name": "x", "price": 1}).Code)
}

func TestCategoryEndpoints(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.do(t, http.MethodPost, "/pos/categories", map[string]string{"name": "Snack"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created domain.Category
	env.decode(t, rec, &created)
	assert.NotEmpty(t, created.ID)
	res := env.result(t, rec)
	require.NotEmpty(t, res.Notifications)
	assert.Equal(t, "Kategori Snack berhasil dibuat.", res.Notifications[len(res.Notifications)-1].Message)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/pos/categories", map[string]string{"name": " "}).Code)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodPut, "/pos/categories/"+created.ID, map[string]string{"name": "Camilan"}).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPut, "/pos/categories/nope", map[string]string{"name": "x"}).Code)

	rec = env.do(t, http.MethodGet, "/pos/categories?q=cam", nil)
	var rows []domain.Category
	env.decode(t, rec, &rows)
	require.Len(t, rows, 1)
	assert.Equal(t, "Camilan", rows[0].Name)

	assert.Equal(t, http.StatusOK, env.do(t, http.MethodDelete, "/pos/categories/"+created.ID, nil).Code)
	rec = env.do(t, http.MethodGet, "/pos/categories", nil)
	env.decode(t, rec, &rows)
	assert.Len(t, rows, 2)
}

func TestCartAndCheckout(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.do(t, http.MethodPost, "/pos/checkout", map[string]float64{"tendered": 1000})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "CART_EMPTY", env.result(t, rec).Error)

	rec = env.do(t, http.MethodPost, "/pos/cart/items", map[string]interface{}{"product_id": "8992002", "quantity": 4})
	assert.Equal(t, http.StatusConflict, rec.Code)
	res := env.result(t, rec)
	assert.Equal(t, "STOCK_LIMIT", res.Error)
	assert.Contains(t, res.Message, "Keripik Singkong")

	rec = env.do(t, http.MethodPost, "/pos/cart/items", map[string]interface{}{"product_id": "8991001", "quantity": 2})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res = env.result(t, rec)
	require.NotEmpty(t, res.Notifications)
	assert.Equal(t, "toastItemAdded", res.Notifications[len(res.Notifications)-1].Key)
	var cart struct {
		Items    []domain.CartItem `json:"items"`
		Subtotal int64             `json:"subtotal"`
		Tax      int64             `json:"tax"`
		Total    int64             `json:"total"`
	}
	require.NoError(t, json.Unmarshal(res.Data, &cart))
	assert.Len(t, cart.Items, 1)
	assert.Equal(t, int64(36000), cart.Subtotal)
	assert.Equal(t, int64(3960), cart.Tax)
	assert.Equal(t, int64(39960), cart.Total)

	rec = env.do(t, http.MethodPost, "/pos/checkout", map[string]float64{"tendered": 20000})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	res = env.result(t, rec)
	assert.Equal(t, "INSUFFICIENT_FUNDS", res.Error)
	var shortfall map[string]int64
	require.NoError(t, json.Unmarshal(res.Details, &shortfall))
	assert.Equal(t, int64(19960), shortfall["shortfall"])

	rec = env.do(t, http.MethodPost, "/pos/checkout", map[string]float64{"tendered": 50000})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var sale struct {
		Transaction domain.Transaction `json:"transaction"`
		Receipt     string             `json:"receipt"`
	}
	env.decode(t, rec, &sale)
	assert.Equal(t, int64(10040), sale.Transaction.Change)
	assert.Equal(t, "admin", sale.Transaction.Operator)
	assert.Contains(t, sale.Receipt, "Kopi Susu")

	rec = env.do(t, http.MethodGet, "/pos/cart", nil)
	require.NoError(t, json.Unmarshal(env.result(t, rec).Data, &cart))
	assert.Empty(t, cart.Items)

	rec = env.do(t, http.MethodGet, "/pos/products/8991001", nil)
	var p domain.Product
	env.decode(t, rec, &p)
	assert.Equal(t, int64(38), p.Stock)

	rec = env.do(t, http.MethodGet, "/pos/transactions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), env.result(t, rec).Meta.Total)

	id := sale.Transaction.ID
	rec = env.do(t, http.MethodGet, "/pos/transactions/"+id+"/receipt", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Kopi Susu")
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/pos/transactions/missing", nil).Code)

	rec = env.do(t, http.MethodPost, "/pos/transactions/"+id+"/email", map[string]string{"to": "ani@example.com"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = env.do(t, http.MethodGet, "/pos/transactions/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "id,timestamp,operator"))
	assert.True(t, strings.HasPrefix(lines[1], id+","))

	rec = env.do(t, http.MethodGet, "/pos/transactions/export?format=xlsx", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")))

	rec = env.do(t, http.MethodGet, "/pos/transactions?from=2000-01-01&to=2000-01-31", nil)
	assert.Equal(t, int64(0), env.result(t, rec).Meta.Total)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/pos/transactions?from=not-a-date", nil).Code)

	rec = env.do(t, http.MethodGet, "/pos/reports/summary", nil)
	var report struct {
		TotalTransactions int   `json:"total_transactions"`
		TotalRevenue      int64 `json:"total_revenue"`
		TotalItemsSold    int64 `json:"total_items_sold"`
	}
	env.decode(t, rec, &report)
	assert.Equal(t, 1, report.TotalTransactions)
	assert.Equal(t, int64(39960), report.TotalRevenue)
	assert.Equal(t, int64(2), report.TotalItemsSold)
}

func TestCartEditing(t *testing.T) {
	env := newAPIEnv(t)

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/pos/cart/items", map[string]interface{}{"product_id": "8991002"}).Code)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPut, "/pos/cart/items/8991002", map[string]int64{"quantity": 5}).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPut, "/pos/cart/items/nope", map[string]int64{"quantity": 1}).Code)

	rec := env.do(t, http.MethodPut, "/pos/cart/tax", map[string]bool{"tax_included": true})
	var cart struct {
		Items       []domain.CartItem `json:"items"`
		Total       int64             `json:"total"`
		TaxIncluded bool              `json:"tax_included"`
	}
	env.decode(t, rec, &cart)
	assert.True(t, cart.TaxIncluded)
	assert.Equal(t, int64(25000), cart.Total)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, int64(5), cart.Items[0].Quantity)

	assert.Equal(t, http.StatusOK, env.do(t, http.MethodDelete, "/pos/cart/items/8991002", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, "/pos/cart/items/8991002", nil).Code)

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/pos/cart/items", map[string]interface{}{"product_id": "8991003"}).Code)
	rec = env.do(t, http.MethodDelete, "/pos/cart", nil)
	env.decode(t, rec, &cart)
	assert.Empty(t, cart.Items)

	rec = env.do(t, http.MethodGet, "/pos/state", nil)
	var state struct {
		Revision uint64  `json:"revision"`
		Products int     `json:"products"`
		TaxRate  float64 `json:"tax_rate"`
		Till     string  `json:"till"`
	}
	env.decode(t, rec, &state)
	assert.Positive(t, state.Revision)
	assert.Equal(t, 5, state.Products)
	assert.Equal(t, 0.11, state.TaxRate)
	assert.Equal(t, "admin", state.Till)

	rec = env.do(t, http.MethodGet, "/pos/notifications?after=0", nil)
	var notes []struct {
		Key string `json:"key"`
	}
	env.decode(t, rec, &notes)
	assert.NotEmpty(t, notes)
}

func TestSettingsEndpoints(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.do(t, http.MethodGet, "/pos/settings", nil)
	var settings domain.StoreSettings
	env.decode(t, rec, &settings)
	assert.Equal(t, "Dyad POS", settings.StoreName)

	rec = env.do(t, http.MethodPut, "/pos/settings", map[string]string{"store_name": "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "STORE_NAME_REQUIRED", env.result(t, rec).Error)

	rec = env.do(t, http.MethodPut, "/pos/settings", map[string]string{"store_name": "Warung Ani", "store_phone": "0812"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = env.do(t, http.MethodGet, "/pos/settings", nil)
	env.decode(t, rec, &settings)
	assert.Equal(t, "Warung Ani", settings.StoreName)
	assert.Equal(t, "0812", settings.StorePhone)

	png := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 32)...)
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "logo.png")
	require.NoError(t, err)
	_, err = fw.Write(png)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, webserver.APIPrefix+"/pos/settings/logo", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec = env.request(t, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var uploaded struct {
		URL string `json:"url"`
	}
	env.decode(t, rec, &uploaded)
	assert.True(t, strings.HasPrefix(uploaded.URL, "/files/logos/"))

	env.token = ""
	rec = env.request(t, httptest.NewRequest(http.MethodGet, uploaded.URL, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, png, rec.Body.Bytes())

	rec = env.request(t, httptest.NewRequest(http.MethodGet, "/files/logos/missing.png", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSystemEndpoints(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.do(t, http.MethodGet, "/system/schedulers", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var schedulers []domain.SysScheduler
	env.decode(t, rec, &schedulers)
	require.Len(t, schedulers, 2)

	rec = env.do(t, http.MethodPost, "/system/schedulers", map[string]interface{}{"name": "Reboot", "task_type": "reboot", "interval": 60})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/system/schedulers", map[string]interface{}{"name": "Fast resync", "task_type": "catalog_resync", "interval": 30})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created domain.SysScheduler
	env.decode(t, rec, &created)
	assert.NotZero(t, created.ID)
	assert.Equal(t, "enabled", created.Status)

	id := strconv.FormatInt(created.ID, 10)
	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodPost, "/system/schedulers/"+id+"/run", nil).Code)
	rec = env.do(t, http.MethodGet, "/system/schedulers/"+id, nil)
	env.decode(t, rec, &created)
	assert.Equal(t, "success", created.LastResult)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, "/system/schedulers/1/run", nil).Code)
	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, "/system/schedulers/"+id, nil).Code)

	rec = env.do(t, http.MethodGet, "/system/tables", nil)
	var tables []TableInfo
	env.decode(t, rec, &tables)
	require.Len(t, tables, len(domain.Tables))
	for _, table := range tables {
		if table.Name == "pos_product" {
			assert.Equal(t, int64(5), table.RowCount)
		}
	}

	rec = env.do(t, http.MethodGet, "/system/metrics/system_cpuuse", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/system/metrics/DROP%20TABLE", nil).Code)

	rec = env.do(t, http.MethodGet, "/system/oprlogs?action=run_scheduler", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), env.result(t, rec).Meta.Total)
}
