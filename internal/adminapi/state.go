package adminapi

import (
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/toughpos/internal/webserver"
)

func registerStateRoutes() {
	webserver.ApiGET("/pos/state", getState)
	webserver.ApiGET("/pos/notifications", listNotifications)
}

// getState lets clients poll for changes: refetch when revision moves
func getState(c echo.Context) error {
	appCtx := GetAppContext(c)
	store := appCtx.POS()
	snap := store.Snapshot()
	return ok(c, map[string]interface{}{
		"revision":     snap.Revision,
		"loading":      snap.Loading,
		"products":     len(snap.Products),
		"categories":   len(snap.Categories),
		"transactions": len(snap.Transactions),
		"settings":     snap.Settings,
		"tax_rate":     store.TaxRate(),
		"till":         till(c),
		"tax_included": store.TaxIncluded(till(c)),
		"notification": appCtx.Notifications().Seq(),
	})
}

// listNotifications returns the notifications after seq "after" visible to this till
func listNotifications(c echo.Context) error {
	after, _ := strconv.ParseUint(c.QueryParam("after"), 10, 64)
	return ok(c, GetAppContext(c).Notifications().Since(after, till(c)))
}
