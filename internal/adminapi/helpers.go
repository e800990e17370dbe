package adminapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/talkincode/toughpos/internal/app"
	"github.com/talkincode/toughpos/internal/auth"
	"github.com/talkincode/toughpos/internal/pos"
	"github.com/talkincode/toughpos/internal/webserver"
	"gorm.io/gorm"
)

// Response wraps successful payloads
type Response struct {
	Data          interface{}        `json:"data"`
	Meta          *Meta              `json:"meta,omitempty"`
	Notifications []pos.Notification `json:"notifications,omitempty"`
}

// Meta carries pagination details
type Meta struct {
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error         string             `json:"error"`
	Message       string             `json:"message"`
	Details       interface{}        `json:"details,omitempty"`
	Notifications []pos.Notification `json:"notifications,omitempty"`
}

// Init registers every admin API route. Call before webserver.NewAdminServer.
func Init() {
	registerAuthRoutes()
	registerProductRoutes()
	registerCategoryRoutes()
	registerCartRoutes()
	registerTransactionRoutes()
	registerReportRoutes()
	registerSettingsRoutes()
	registerStateRoutes()
	registerSchedulerRoutes()
	registerSystemRoutes()
}

func ok(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, Response{Data: data})
}

func paged(c echo.Context, data interface{}, total int64, page, pageSize int) error {
	return c.JSON(http.StatusOK, Response{
		Data: data,
		Meta: &Meta{Total: total, Page: page, PageSize: pageSize},
	})
}

func fail(c echo.Context, status int, code, message string, details interface{}) error {
	return c.JSON(status, ErrorResponse{Error: code, Message: message, Details: details})
}

// action remembers the feed position before a store call so the response
// can carry the notifications the call produced
type action struct {
	c      echo.Context
	before uint64
}

func beginAction(c echo.Context) action {
	return action{c: c, before: GetAppContext(c).Notifications().Seq()}
}

func (a action) notifications() []pos.Notification {
	return GetAppContext(a.c).Notifications().Since(a.before, till(a.c))
}

func (a action) ok(status int, data interface{}) error {
	return a.c.JSON(status, Response{Data: data, Notifications: a.notifications()})
}

// fail prefers the message of the last notification, which is localized
func (a action) fail(status int, code, message string, details interface{}) error {
	notes := a.notifications()
	if len(notes) > 0 {
		message = notes[len(notes)-1].Message
	}
	return a.c.JSON(status, ErrorResponse{Error: code, Message: message, Details: details, Notifications: notes})
}

// parsePagination reads page and pageSize (or perPage), clamped to 1..500
func parsePagination(c echo.Context) (int, int) {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	size := c.QueryParam("pageSize")
	if size == "" {
		size = c.QueryParam("perPage")
	}
	pageSize, _ := strconv.Atoi(size)
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 500 {
		pageSize = 500
	}
	return page, pageSize
}

func parseIDParam(c echo.Context, name string) (int64, error) {
	return strconv.ParseInt(c.Param(name), 10, 64)
}

func handleValidationError(c echo.Context, err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[strings.ToLower(fe.Field())] = fe.Tag()
		}
		return fail(c, http.StatusBadRequest, "VALIDATION_ERROR", "Request validation failed", fields)
	}
	return fail(c, http.StatusBadRequest, "VALIDATION_ERROR", "Request validation failed", err.Error())
}

// GetAppContext returns the application injected by the web server
func GetAppContext(c echo.Context) app.AppContext {
	return c.Get(webserver.AppContextKey).(app.AppContext)
}

func GetDB(c echo.Context) *gorm.DB {
	return GetAppContext(c).DB()
}

// operator returns the signed-in session. The JWT middleware guarantees it on /api/v1.
func operator(c echo.Context) *auth.Claims {
	if claims := webserver.Claims(c); claims != nil {
		return claims
	}
	return &auth.Claims{Username: "anonymous"}
}

// till is the cart a request works on: one per operator
func till(c echo.Context) string {
	return operator(c).Username
}

func oprLog(c echo.Context, action, desc string) {
	GetAppContext(c).AddOprLog(operator(c).Username, c.RealIP(), action, desc)
}
