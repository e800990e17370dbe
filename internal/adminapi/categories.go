package adminapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/toughpos/internal/pos"
	"github.com/talkincode/toughpos/internal/webserver"
)

type categoryPayload struct {
	Name string `json:"name" validate:"required,min=1,max=200"`
}

// registerCategoryRoutes registers category CRUD routes
func registerCategoryRoutes() {
	webserver.ApiGET("/pos/categories", listCategories)
	webserver.ApiPOST("/pos/categories", createCategory)
	webserver.ApiPUT("/pos/categories/:id", updateCategory)
	webserver.ApiDELETE("/pos/categories/:id", deleteCategory)
}

func listCategories(c echo.Context) error {
	rows := GetAppContext(c).POS().ListCategories()
	if q := strings.ToLower(strings.TrimSpace(c.QueryParam("q"))); q != "" {
		filtered := rows[:0]
		for _, row := range rows {
			if strings.Contains(strings.ToLower(row.Name), q) {
				filtered = append(filtered, row)
			}
		}
		rows = filtered
	}
	return ok(c, rows)
}

func createCategory(c echo.Context) error {
	var payload categoryPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse category", err.Error())
	}
	payload.Name = strings.TrimSpace(payload.Name)
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}

	act := beginAction(c)
	category, err := GetAppContext(c).POS().CreateCategory(c.Request().Context(), payload.Name)
	if err != nil {
		return act.fail(http.StatusInternalServerError, "DATABASE_ERROR", "Failed to create category", err.Error())
	}
	oprLog(c, "create_category", "created category "+category.Name)
	return act.ok(http.StatusCreated, category)
}

func updateCategory(c echo.Context) error {
	var payload categoryPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse category", err.Error())
	}
	payload.Name = strings.TrimSpace(payload.Name)
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}

	id := c.Param("id")
	act := beginAction(c)
	err := GetAppContext(c).POS().UpdateCategory(c.Request().Context(), id, payload.Name)
	if errors.Is(err, pos.ErrUnknownCategory) {
		return act.fail(http.StatusNotFound, "CATEGORY_NOT_FOUND", "Category not found", nil)
	} else if err != nil {
		return act.fail(http.StatusInternalServerError, "DATABASE_ERROR", "Failed to update category", err.Error())
	}
	oprLog(c, "update_category", "renamed category "+id)
	return act.ok(http.StatusOK, map[string]interface{}{"id": id, "name": payload.Name})
}

func deleteCategory(c echo.Context) error {
	id := c.Param("id")
	act := beginAction(c)
	if err := GetAppContext(c).POS().DeleteCategory(c.Request().Context(), id); err != nil {
		return act.fail(http.StatusInternalServerError, "DATABASE_ERROR", "Failed to delete category", err.Error())
	}
	oprLog(c, "delete_category", "deleted category "+id)
	return act.ok(http.StatusOK, map[string]interface{}{"id": id})
}
