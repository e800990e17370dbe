package adminapi

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/toughpos/internal/pos"
	"github.com/talkincode/toughpos/internal/webserver"
)

const maxLogoSize = 2 << 20

func registerSettingsRoutes() {
	webserver.ApiGET("/pos/settings", getStoreSettings)
	webserver.ApiPUT("/pos/settings", saveStoreSettings)
	webserver.ApiPOST("/pos/settings/logo", uploadStoreLogo)
}

func getStoreSettings(c echo.Context) error {
	return ok(c, GetAppContext(c).POS().Settings())
}

func saveStoreSettings(c echo.Context) error {
	var payload pos.SettingsInput
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse settings", err.Error())
	}
	payload.StoreName = strings.TrimSpace(payload.StoreName)

	act := beginAction(c)
	row, err := GetAppContext(c).POS().SaveSettings(c.Request().Context(), operator(c).OperatorID, payload)
	if errors.Is(err, pos.ErrStoreNameRequired) {
		return act.fail(http.StatusBadRequest, "STORE_NAME_REQUIRED", "Store name is required", nil)
	} else if err != nil {
		return act.fail(http.StatusInternalServerError, "DATABASE_ERROR", "Failed to save settings", err.Error())
	}
	oprLog(c, "update_settings", "updated store settings")
	return act.ok(http.StatusOK, row)
}

// uploadStoreLogo accepts a multipart "file" and returns its public URL
func uploadStoreLogo(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "file is required", err.Error())
	}
	if fh.Size > maxLogoSize {
		return fail(c, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "Logo must be at most 2 MB", nil)
	}
	src, err := fh.Open()
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to read file", err.Error())
	}
	defer src.Close()
	data, err := io.ReadAll(io.LimitReader(src, maxLogoSize))
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to read file", err.Error())
	}
	if !strings.HasPrefix(http.DetectContentType(data), "image/") {
		return fail(c, http.StatusUnsupportedMediaType, "NOT_AN_IMAGE", "Logo must be an image", nil)
	}

	act := beginAction(c)
	url, err := GetAppContext(c).POS().UploadLogo(c.Request().Context(), operator(c).OperatorID, fh.Filename, data)
	if errors.Is(err, pos.ErrNoObjectStore) {
		return act.fail(http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "Object storage is not configured", nil)
	} else if err != nil {
		return act.fail(http.StatusInternalServerError, "UPLOAD_FAILED", "Failed to store logo", err.Error())
	}
	return act.ok(http.StatusCreated, map[string]interface{}{"url": url})
}
