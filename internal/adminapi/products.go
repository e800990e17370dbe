package adminapi

import (
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/toughpos/internal/pos"
	"github.com/talkincode/toughpos/internal/webserver"
)

// registerProductRoutes registers catalog product endpoints
func registerProductRoutes() {
	webserver.ApiGET("/pos/products", listProducts)
	webserver.ApiGET("/pos/products/lookup", lookupProducts)
	webserver.ApiGET("/pos/products/:id", getProduct)
	webserver.ApiPOST("/pos/products", createProduct)
	webserver.ApiPUT("/pos/products/:id", updateProduct)
	webserver.ApiDELETE("/pos/products/:id", deleteProduct)
}

// productFailure maps catalog errors onto HTTP responses
func productFailure(act action, err error, message string) error {
	switch {
	case errors.Is(err, pos.ErrDuplicateProduct):
		return act.fail(http.StatusConflict, "DUPLICATE_PRODUCT", "Product ID already exists", nil)
	case errors.Is(err, pos.ErrInvalidProduct):
		return act.fail(http.StatusBadRequest, "INVALID_PRODUCT", err.Error(), err.Error())
	case errors.Is(err, pos.ErrUnknownProduct):
		return act.fail(http.StatusNotFound, "NOT_FOUND", "Product not found", nil)
	}
	return act.fail(http.StatusInternalServerError, "DATABASE_ERROR", message, err.Error())
}

func listProducts(c echo.Context) error {
	page, pageSize := parsePagination(c)

	sortField := strings.TrimSpace(c.QueryParam("sort"))
	order := strings.ToUpper(strings.TrimSpace(c.QueryParam("order")))
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}

	rows := GetAppContext(c).POS().ListProducts(pos.ProductFilter{
		Query:      c.QueryParam("q"),
		CategoryID: strings.TrimSpace(c.QueryParam("category_id")),
	})

	// whitelist sortable fields, scan code order otherwise
	less := map[string]func(a, b pos.CatalogEntry) bool{
		"name":       func(a, b pos.CatalogEntry) bool { return strings.ToLower(a.Name) < strings.ToLower(b.Name) },
		"price":      func(a, b pos.CatalogEntry) bool { return a.Price < b.Price },
		"stock":      func(a, b pos.CatalogEntry) bool { return a.Stock < b.Stock },
		"updated_at": func(a, b pos.CatalogEntry) bool { return a.UpdatedAt.Before(b.UpdatedAt) },
	}[sortField]
	if less == nil {
		less = func(a, b pos.CatalogEntry) bool { return a.ID < b.ID }
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if order == "DESC" {
			return less(rows[j], rows[i])
		}
		return less(rows[i], rows[j])
	})

	total := int64(len(rows))
	start := (page - 1) * pageSize
	if start > len(rows) {
		start = len(rows)
	}
	end := start + pageSize
	if end > len(rows) {
		end = len(rows)
	}
	return paged(c, rows[start:end], total, page, pageSize)
}

// lookupProducts serves scan-code prefix matches for the barcode field
func lookupProducts(c echo.Context) error {
	prefix := strings.TrimSpace(c.QueryParam("prefix"))
	if prefix == "" {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "prefix is required", nil)
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	return ok(c, GetAppContext(c).POS().LookupByPrefix(prefix, limit))
}

func getProduct(c echo.Context) error {
	store := GetAppContext(c).POS()
	p, found := store.GetProduct(c.Param("id"))
	if !found {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Product not found", nil)
	}
	return ok(c, pos.CatalogEntry{Product: p, CategoryName: store.CategoryName(p)})
}

func createProduct(c echo.Context) error {
	var payload pos.ProductInput
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse product", err.Error())
	}
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}

	act := beginAction(c)
	p, err := GetAppContext(c).POS().CreateProduct(c.Request().Context(), payload)
	if err != nil {
		return productFailure(act, err, "Failed to create product")
	}
	oprLog(c, "create_product", "created product "+p.ID)
	return act.ok(http.StatusCreated, p)
}

func updateProduct(c echo.Context) error {
	var payload pos.ProductInput
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse product", err.Error())
	}
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}

	id := c.Param("id")
	act := beginAction(c)
	p, err := GetAppContext(c).POS().UpdateProduct(c.Request().Context(), id, payload)
	if err != nil {
		return productFailure(act, err, "Failed to update product")
	}
	oprLog(c, "update_product", "updated product "+id)
	return act.ok(http.StatusOK, p)
}

func deleteProduct(c echo.Context) error {
	id := c.Param("id")
	act := beginAction(c)
	if err := GetAppContext(c).POS().DeleteProduct(c.Request().Context(), id); err != nil {
		return productFailure(act, err, "Failed to delete product")
	}
	oprLog(c, "delete_product", "deleted product "+id)
	return act.ok(http.StatusOK, map[string]interface{}{"id": id})
}
