package webserver

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/talkincode/toughpos/internal/app"
	"github.com/talkincode/toughpos/internal/auth"
	"github.com/talkincode/toughpos/internal/storage"
	"go.uber.org/zap"
)

// Context keys shared with the handlers
const (
	AppContextKey = "appctx"
	ClaimsKey     = "user"
	APIPrefix     = "/api/v1"
)

type route struct {
	method  string
	path    string
	handler echo.HandlerFunc
}

var (
	routesMu sync.Mutex
	routes   []route
)

func addRoute(method, path string, h echo.HandlerFunc) {
	routesMu.Lock()
	defer routesMu.Unlock()
	routes = append(routes, route{method: method, path: path, handler: h})
}

func ApiGET(path string, h echo.HandlerFunc)    { addRoute(http.MethodGet, path, h) }
func ApiPOST(path string, h echo.HandlerFunc)   { addRoute(http.MethodPost, path, h) }
func ApiPUT(path string, h echo.HandlerFunc)    { addRoute(http.MethodPut, path, h) }
func ApiDELETE(path string, h echo.HandlerFunc) { addRoute(http.MethodDelete, path, h) }

// publicPaths bypass the JWT check
var publicPaths = map[string]bool{
	APIPrefix + "/auth/login": true,
}

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// JSONSerializer encodes echo payloads with jsoniter
type JSONSerializer struct{}

func (JSONSerializer) Serialize(c echo.Context, i interface{}, indent string) error {
	enc := json.NewEncoder(c.Response())
	if indent != "" {
		enc.SetIndent("", indent)
	}
	return enc.Encode(i)
}

func (JSONSerializer) Deserialize(c echo.Context, i interface{}) error {
	err := json.NewDecoder(c.Request().Body).Decode(i)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid json: %v", err)).SetInternal(err)
	}
	return nil
}

// Validator runs go-playground struct tags for c.Validate
type Validator struct {
	validate *validator.Validate
}

func (v *Validator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

type AdminServer struct {
	root   *echo.Echo
	appCtx app.AppContext
}

// NewAdminServer builds the echo instance and mounts every registered route
func NewAdminServer(appCtx app.AppContext) *AdminServer {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = JSONSerializer{}
	e.Validator = &Validator{validate: validator.New()}
	if appCtx.Config().System.Debug {
		e.Logger.SetLevel(log.DEBUG)
	} else {
		e.Logger.SetLevel(log.WARN)
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:     true,
		LogStatus:  true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			zap.L().Debug("http request",
				zap.String("namespace", "web"),
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency))
			return nil
		},
	}))
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(AppContextKey, appCtx)
			return next(c)
		}
	})

	s := &AdminServer{root: e, appCtx: appCtx}
	e.GET(storage.PublicPrefix+"/:bucket/*", s.serveObject)

	sessions := appCtx.Sessions()
	api := e.Group(APIPrefix, echojwt.WithConfig(echojwt.Config{
		ContextKey: ClaimsKey,
		Skipper: func(c echo.Context) bool {
			return publicPaths[c.Path()]
		},
		ParseTokenFunc: func(c echo.Context, token string) (interface{}, error) {
			return sessions.Parse(token)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(http.StatusUnauthorized, map[string]interface{}{
				"error":   "UNAUTHORIZED",
				"message": "Authentication required",
				"details": err.Error(),
			})
		},
	}))

	routesMu.Lock()
	for _, r := range routes {
		api.Add(r.method, r.path, r.handler)
	}
	routesMu.Unlock()
	return s
}

// Handler exposes the router, mainly for httptest
func (s *AdminServer) Handler() http.Handler {
	return s.root
}

// serveObject streams a stored object such as an uploaded store logo
func (s *AdminServer) serveObject(c echo.Context) error {
	objects := s.appCtx.Objects()
	if objects == nil {
		return echo.ErrNotFound
	}
	bucket, key := c.Param("bucket"), c.Param("*")
	data, err := objects.Get(bucket, key)
	if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidPath) {
		return echo.ErrNotFound
	} else if err != nil {
		return err
	}
	ctype := mime.TypeByExtension(strings.ToLower(path.Ext(key)))
	if ctype == "" {
		ctype = http.DetectContentType(data)
	}
	c.Response().Header().Set("Cache-Control", "public, max-age=86400")
	return c.Blob(http.StatusOK, ctype, data)
}

// Start listens on the configured address until ctx is cancelled
func (s *AdminServer) Start(ctx context.Context) error {
	cfg := s.appCtx.Config().Web
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	zap.S().Infof("Admin server listening on %s", addr)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.root.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.root.Shutdown(shutdownCtx)
	}
}

// Claims returns the signed-in operator, nil on public routes
func Claims(c echo.Context) *auth.Claims {
	claims, _ := c.Get(ClaimsKey).(*auth.Claims)
	return claims
}
