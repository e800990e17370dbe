package adminapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/toughpos/internal/auth"
	"github.com/talkincode/toughpos/internal/domain"
	"github.com/talkincode/toughpos/internal/webserver"
	"go.uber.org/zap"
)

type loginPayload struct {
	Username string `json:"username" validate:"required,max=100"`
	Password string `json:"password" validate:"required,max=200"`
}

func registerAuthRoutes() {
	webserver.ApiPOST("/auth/login", login)
	webserver.ApiPOST("/auth/logout", logout)
	webserver.ApiGET("/auth/session", currentSession)
}

func login(c echo.Context) error {
	var payload loginPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request parameters", err.Error())
	}
	payload.Username = strings.TrimSpace(payload.Username)
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}

	appCtx := GetAppContext(c)
	opr, err := appCtx.Authenticator().Authenticate(c.Request().Context(), payload.Username, payload.Password)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return fail(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid username or password", nil)
	case errors.Is(err, auth.ErrOperatorDisabled):
		return fail(c, http.StatusForbidden, "OPERATOR_DISABLED", "Operator account is disabled", nil)
	case err != nil:
		zap.L().Error("login error", zap.String("namespace", "auth"), zap.String("username", payload.Username), zap.Error(err))
		return fail(c, http.StatusBadGateway, "AUTH_UNAVAILABLE", "Identity provider unavailable", err.Error())
	}

	token, claims, err := appCtx.Sessions().Issue(opr)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "TOKEN_ERROR", "Failed to issue token", err.Error())
	}
	appCtx.AddOprLog(opr.Username, c.RealIP(), "login", "signed in via "+appCtx.Authenticator().Name())

	return ok(c, map[string]interface{}{
		"token":      token,
		"expires_at": claims.ExpiresAt.Time,
		"operator":   opr,
	})
}

func logout(c echo.Context) error {
	claims := operator(c)
	GetAppContext(c).Sessions().Revoke(claims)
	oprLog(c, "logout", "signed out")
	return c.NoContent(http.StatusNoContent)
}

func currentSession(c echo.Context) error {
	claims := operator(c)
	var opr domain.SysOpr
	if err := GetDB(c).Where("id = ?", claims.OperatorID).First(&opr).Error; err != nil {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Operator not found", nil)
	}
	return ok(c, map[string]interface{}{
		"operator":   opr,
		"till":       claims.Username,
		"expires_at": claims.ExpiresAt.Time,
	})
}
