package adminapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/toughpos/internal/pos"
	"github.com/talkincode/toughpos/internal/webserver"
)

func registerReportRoutes() {
	webserver.ApiGET("/pos/reports/summary", reportSummary)
}

// reportSummary reports over the cached history, or over the stored
// history when from/to narrow the range
func reportSummary(c echo.Context) error {
	store := GetAppContext(c).POS()
	if c.QueryParam("from") == "" && c.QueryParam("to") == "" {
		return ok(c, store.Report(time.Now()))
	}

	q, err := parseHistoryQuery(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_DATE", "Unable to parse date filter", err.Error())
	}
	rows, _, err := store.Repository().QueryTransactions(c.Request().Context(), q)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query transactions", err.Error())
	}
	now := time.Now()
	if !q.To.IsZero() && q.To.Before(now) {
		now = q.To.Add(-time.Second)
	}
	return ok(c, pos.BuildReport(rows, now))
}
