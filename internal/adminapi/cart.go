package adminapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/toughpos/internal/pos"
	"github.com/talkincode/toughpos/internal/webserver"
	"github.com/talkincode/toughpos/pkg/money"
)

type cartItemPayload struct {
	ProductID string `json:"product_id" validate:"required,max=64"`
	Quantity  int64  `json:"quantity"`
}

type quantityPayload struct {
	Quantity int64 `json:"quantity"`
}

type taxPayload struct {
	TaxIncluded bool `json:"tax_included"`
}

type checkoutPayload struct {
	Tendered float64 `json:"tendered" validate:"gte=0"`
}

// registerCartRoutes registers the till cart and checkout endpoints.
// Each operator works on their own till.
func registerCartRoutes() {
	webserver.ApiGET("/pos/cart", getCart)
	webserver.ApiPOST("/pos/cart/items", addCartItem)
	webserver.ApiPUT("/pos/cart/items/:id", updateCartItem)
	webserver.ApiDELETE("/pos/cart/items/:id", removeCartItem)
	webserver.ApiDELETE("/pos/cart", clearCart)
	webserver.ApiPUT("/pos/cart/tax", setCartTax)
	webserver.ApiPOST("/pos/checkout", checkout)
}

func getCart(c echo.Context) error {
	return ok(c, GetAppContext(c).POS().Cart(till(c)))
}

func addCartItem(c echo.Context) error {
	var payload cartItemPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request parameters", err.Error())
	}
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}

	act := beginAction(c)
	store := GetAppContext(c).POS()
	_, err := store.AddToCart(till(c), payload.ProductID, payload.Quantity)
	var limit *pos.StockLimitError
	switch {
	case errors.Is(err, pos.ErrUnknownProduct):
		return act.fail(http.StatusNotFound, "NOT_FOUND", "Product not found", nil)
	case errors.As(err, &limit):
		return act.fail(http.StatusConflict, "STOCK_LIMIT", err.Error(), map[string]interface{}{
			"product_id": limit.ProductID,
			"stock":      limit.Stock,
		})
	case err != nil:
		return act.fail(http.StatusInternalServerError, "CART_ERROR", "Failed to add item", err.Error())
	}
	return act.ok(http.StatusOK, store.Cart(till(c)))
}

func updateCartItem(c echo.Context) error {
	var payload quantityPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request parameters", err.Error())
	}

	act := beginAction(c)
	store := GetAppContext(c).POS()
	if err := store.UpdateQuantity(till(c), c.Param("id"), payload.Quantity); errors.Is(err, pos.ErrUnknownCartItem) {
		return act.fail(http.StatusNotFound, "NOT_IN_CART", "Product is not in the cart", nil)
	} else if err != nil {
		return act.fail(http.StatusInternalServerError, "CART_ERROR", "Failed to update item", err.Error())
	}
	return act.ok(http.StatusOK, store.Cart(till(c)))
}

func removeCartItem(c echo.Context) error {
	act := beginAction(c)
	store := GetAppContext(c).POS()
	if err := store.RemoveFromCart(till(c), c.Param("id")); errors.Is(err, pos.ErrUnknownCartItem) {
		return act.fail(http.StatusNotFound, "NOT_IN_CART", "Product is not in the cart", nil)
	} else if err != nil {
		return act.fail(http.StatusInternalServerError, "CART_ERROR", "Failed to remove item", err.Error())
	}
	return act.ok(http.StatusOK, store.Cart(till(c)))
}

func clearCart(c echo.Context) error {
	store := GetAppContext(c).POS()
	store.ClearCart(till(c))
	return ok(c, store.Cart(till(c)))
}

func setCartTax(c echo.Context) error {
	var payload taxPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request parameters", err.Error())
	}
	store := GetAppContext(c).POS()
	store.SetTaxIncluded(till(c), payload.TaxIncluded)
	return ok(c, store.Cart(till(c)))
}

func checkout(c echo.Context) error {
	var payload checkoutPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request parameters", err.Error())
	}
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}

	act := beginAction(c)
	store := GetAppContext(c).POS()
	tx, err := store.Checkout(c.Request().Context(), till(c), payload.Tendered)

	var funds *pos.InsufficientFundsError
	var conflict *pos.StockConflictError
	switch {
	case errors.Is(err, pos.ErrEmptyCart):
		return act.fail(http.StatusBadRequest, "CART_EMPTY", "Cart is empty", nil)
	case errors.As(err, &funds):
		return act.fail(http.StatusUnprocessableEntity, "INSUFFICIENT_FUNDS", err.Error(), map[string]interface{}{
			"tendered":  funds.Tendered,
			"total":     funds.Total,
			"shortfall": funds.Shortfall(),
		})
	case errors.As(err, &conflict):
		return act.fail(http.StatusConflict, "INSUFFICIENT_STOCK", err.Error(), map[string]interface{}{
			"product_id": conflict.ProductID,
			"requested":  conflict.Requested,
		})
	case err != nil:
		return act.fail(http.StatusInternalServerError, "CHECKOUT_FAILED", "Failed to record the sale", err.Error())
	}

	oprLog(c, "checkout", fmt.Sprintf("sale %s total %s", tx.ID, money.FormatRupiah(tx.Total)))
	return act.ok(http.StatusCreated, map[string]interface{}{
		"transaction": tx,
		"receipt":     store.Receipt(*tx),
	})
}
