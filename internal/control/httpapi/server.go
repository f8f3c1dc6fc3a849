// Package httpapi exposes the host visibility and adapter status over HTTP.
package httpapi

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/swordlegend/dava.engine/internal/errors"
	"github.com/swordlegend/dava.engine/internal/lifecycle"
	"github.com/swordlegend/dava.engine/internal/logger"
)

// Host is the part of the activity host the API controls.
type Host interface {
	IsVisible() bool
	SetVisible(visible bool) error
	RunOnUISync(ctx context.Context, task func()) error
	Listeners() int
	Alive() bool
}

// Adapter is the read-only view of the lifecycle adapter.
type Adapter interface {
	ID() string
	State() lifecycle.State
	LastError() error
	HasDevice() bool
	Registered() bool
}

// Server serves the control API.
type Server struct {
	echo    *echo.Echo
	listen  string
	host    Host
	adapter Adapter
	metrics http.Handler
	version string
	log     logger.Logger
	started time.Time

	mu       sync.Mutex
	listener net.Listener
}

// Option is a functional option for configuring the Server.
type Option func(*Server)

// WithMetricsHandler mounts h at GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithVersion sets the version reported by the status endpoint.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// WithLogger sets the logger used for request logging.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// New creates the control server. adapter may be nil until the adapter exists.
func New(listen string, h Host, adapter Adapter, opts ...Option) *Server {
	s := &Server{
		echo:    echo.New(),
		listen:  listen,
		host:    h,
		adapter: adapter,
		log:     logger.Global().Module("httpapi"),
		started: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.BodyLimit("4K"))
	s.setupRequestLogger()
	s.initRoutes()

	return s
}

func (s *Server) initRoutes() {
	s.echo.GET("/healthz", s.Health)

	api := s.echo.Group("/api/v1")
	api.GET("/status", s.Status)
	api.GET("/visibility", s.GetVisibility)
	api.PUT("/visibility", s.SetVisibility)

	if s.metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.metrics))
	}
}

// setupRequestLogger logs each request through the structured logger
func (s *Server) setupRequestLogger() {
	httpLogger := s.log.Module("request")

	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogMethod:   true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			fields := []logger.Field{
				logger.String("method", v.Method),
				logger.String("uri", v.URI),
				logger.Int("status", v.Status),
				logger.Duration("latency", v.Latency),
				logger.String("remote_ip", v.RemoteIP),
			}
			msg := fmt.Sprintf("%s %s %d", v.Method, v.URI, v.Status)

			switch {
			case v.Status >= http.StatusInternalServerError:
				httpLogger.Error(msg, append(fields, logger.Error(v.Error))...)
			case v.Status >= http.StatusBadRequest:
				httpLogger.Warn(msg, fields...)
			default:
				httpLogger.Debug(msg, fields...)
			}
			return nil
		},
	}))
}

// Start listens and serves until Shutdown. It returns nil after a clean shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.listen)
	if err != nil {
		return errors.New(err).
			Component("httpapi").
			Category(errors.CategoryNetwork).
			Context("operation", "listen").
			Context("address", s.listen).
			Build()
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	s.echo.Listener = ln
	s.log.Info("control api listening", logger.String("address", ln.Addr().String()))

	if err := s.echo.Start(""); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.New(err).
			Component("httpapi").
			Category(errors.CategoryNetwork).
			Context("operation", "serve").
			Context("address", ln.Addr().String()).
			Build()
	}
	return nil
}

// Addr returns the bound listen address once Start is running, or nil.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// ServeHTTP lets the server be used as an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
