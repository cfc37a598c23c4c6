package server

import (
	"context"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
)

const (
	readTimeout     = 15 * time.Second
	writeTimeout    = 75 * time.Second // covers a POST /v1/refresh that waits for a rebuild
	idleTimeout     = 60 * time.Second
	shutdownTimeout = 10 * time.Second
)

type ServerConfig struct {
	Addr    string
	DevMode bool
	APIKey  string // empty disables X-API-Key checks

	// RefreshRateLimit is POST /v1/refresh requests per second per client.
	RefreshRateLimit float64
}

type ServerDeps struct {
	Handlers *Handlers
	Config   ServerConfig
}

// Server owns the echo instance serving the token API.
type Server struct {
	e         *echo.Echo
	cfg       ServerConfig
	closed    chan struct{}
	closeOnce sync.Once
}

func NewServer(deps ServerDeps) (*Server, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = readTimeout
	e.Server.WriteTimeout = writeTimeout
	e.Server.IdleTimeout = idleTimeout

	e.Use(middleware.Recover())
	if logger := deps.Handlers.Logger; logger != nil {
		e.Use(requestLogger(logger))
	}
	RegisterRoutes(e, deps.Handlers, deps.Config)

	return &Server{e: e, cfg: deps.Config, closed: make(chan struct{})}, nil
}

// requestLogger writes one logrus line per request.
func requestLogger(logger *logrus.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.WithFields(logrus.Fields{
				"method":  v.Method,
				"uri":     v.URI,
				"status":  v.Status,
				"latency": v.Latency.String(),
				"remote":  v.RemoteIP,
			}).Debug("api request")
			return nil
		},
	})
}

func (s *Server) Start() error {
	return s.e.Start(s.cfg.Addr)
}

// Shutdown drains in-flight requests for at most ten seconds. Calling it
// more than once is safe.
func (s *Server) Shutdown(ctx context.Context) error {
	defer s.closeOnce.Do(func() { close(s.closed) })
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	return s.e.Shutdown(ctx)
}

// WaitClosed blocks until Shutdown has returned or ctx is done.
func (s *Server) WaitClosed(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.closed:
		return nil
	}
}
