package server

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// defaultRefreshRate is one manual refresh per client every ten seconds.
const defaultRefreshRate = 0.1

// RegisterRoutes mounts the /v1 token API and /metrics on e. Unknown routes
// fall through to handleError as a JSON 404.
func RegisterRoutes(e *echo.Echo, h *Handlers, cfg ServerConfig) {
	e.HTTPErrorHandler = h.handleError
	e.Use(apiHeaders)

	if cfg.APIKey != "" {
		e.Use(middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
			KeyLookup: "header:X-API-Key",
			Skipper: func(c echo.Context) bool {
				return c.Path() == "/v1/health"
			},
			Validator: func(key string, c echo.Context) (bool, error) {
				return key == cfg.APIKey, nil
			},
		}))
	}

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := e.Group("/v1")
	v1.GET("/health", h.Health)
	v1.GET("/tokens", h.Tokens)
	v1.GET("/tokens/:address", h.Token)
	v1.GET("/status", h.Status)
	v1.POST("/refresh", h.Refresh, refreshLimiter(cfg.RefreshRateLimit))
}

// refreshLimiter caps manual refreshes per client IP.
func refreshLimiter(perSecond float64) echo.MiddlewareFunc {
	if perSecond <= 0 {
		perSecond = defaultRefreshRate
	}
	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(perSecond),
		Burst:     1,
		ExpiresIn: 2 * time.Minute,
	})
	return middleware.RateLimiter(store)
}

// apiHeaders marks every response as uncacheable JSON. Snapshots change on
// each refresh so intermediaries must not hold on to them.
func apiHeaders(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		hdr := c.Response().Header()
		hdr.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		hdr.Set("Cache-Control", "no-store")
		return next(c)
	}
}
