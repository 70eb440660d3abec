package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"PriceCast/pkg/http/middleware"
	applogger "PriceCast/pkg/logger"
)

// Handler registers a group of routes on the server.
type Handler interface {
	RegisterRoutes(e *echo.Echo)
}

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// ServerOption configures Server.
type ServerOption func(*serverConfig)

type serverConfig struct {
	host            string
	port            int
	readTimeout     time.Duration
	writeTimeout    time.Duration
	shutdownTimeout time.Duration
	slowThreshold   time.Duration
	corsOrigins     []string
	logger          *applogger.Logger
	checks          map[string]HealthCheck
}

func WithHost(host string) ServerOption {
	return func(c *serverConfig) { c.host = host }
}

func WithPort(port int) ServerOption {
	return func(c *serverConfig) { c.port = port }
}

// WithTimeouts sets the read, write and graceful shutdown timeouts. The
// write timeout must cover a full retrain on POST /refresh.
func WithTimeouts(read, write, shutdown time.Duration) ServerOption {
	return func(c *serverConfig) {
		c.readTimeout, c.writeTimeout, c.shutdownTimeout = read, write, shutdown
	}
}

// WithCORSOrigins sets the allowed origins. An empty list disables CORS.
func WithCORSOrigins(origins ...string) ServerOption {
	return func(c *serverConfig) {
		if len(origins) > 0 {
			c.corsOrigins = origins
		}
	}
}

func WithLogger(l *applogger.Logger) ServerOption {
	return func(c *serverConfig) { c.logger = l }
}

// WithSlowThreshold sets the latency above which requests are logged.
func WithSlowThreshold(d time.Duration) ServerOption {
	return func(c *serverConfig) { c.slowThreshold = d }
}

// WithHealthCheck adds a named dependency check to /healthz.
func WithHealthCheck(name string, check HealthCheck) ServerOption {
	return func(c *serverConfig) { c.checks[name] = check }
}

// Server is the echo HTTP server with the standard middleware chain,
// /healthz and /metrics.
type Server struct {
	echo *echo.Echo
	cfg  serverConfig
	log  *applogger.Logger
}

// NewServer builds the server and registers the given handlers.
func NewServer(handlers []Handler, opts ...ServerOption) *Server {
	cfg := serverConfig{
		host:            "0.0.0.0",
		port:            8080,
		readTimeout:     10 * time.Second,
		writeTimeout:    10 * time.Minute,
		shutdownTimeout: 15 * time.Second,
		slowThreshold:   2 * time.Second,
		corsOrigins:     []string{"*"},
		checks:          map[string]HealthCheck{},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	log := cfg.logger
	if log == nil {
		log = applogger.Nop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = cfg.readTimeout
	e.Server.WriteTimeout = cfg.writeTimeout
	e.HTTPErrorHandler = errorHandler

	e.Use(middleware.RequestLogging(log))
	e.Use(middleware.Metrics(log, cfg.slowThreshold))
	e.Use(middleware.Recover(log))
	if len(cfg.corsOrigins) > 0 {
		e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
			AllowOrigins: cfg.corsOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		}))
	}

	for _, h := range handlers {
		h.RegisterRoutes(e)
	}
	e.GET("/healthz", healthHandler(cfg.checks))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return &Server{echo: e, cfg: cfg, log: log}
}

// errorHandler renders echo errors (404, 405, recovered panics) in the same
// envelope as handler errors.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		err = NewAppError(he.Code, "ERR_HTTP_"+strconv.Itoa(he.Code), fmt.Sprint(he.Message))
	}
	if c.Request().Method == http.MethodHead {
		var appErr *AppError
		status := http.StatusInternalServerError
		if errors.As(err, &appErr) {
			status = appErr.Status
		}
		_ = c.NoContent(status)
		return
	}
	_ = AppErrorResponse(c, err)
}

type healthStatus struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func healthHandler(checks map[string]HealthCheck) echo.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
		defer cancel()

		out := healthStatus{Status: "ok", Checks: make(map[string]string, len(names))}
		code := http.StatusOK
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				out.Checks[name] = err.Error()
				out.Status = "degraded"
				code = http.StatusServiceUnavailable
				continue
			}
			out.Checks[name] = "ok"
		}
		return DataResponse(c, code, out)
	}
}

// Addr returns host:port the server listens on.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.cfg.host, strconv.Itoa(s.cfg.port))
}

// Start listens in the background. Listen errors other than a clean
// shutdown are logged.
func (s *Server) Start() error {
	addr := s.Addr()
	go func() {
		s.log.Info("http server listening", applogger.String("addr", addr))
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http server error", applogger.Error(err))
		}
	}()
	return nil
}

// Stop drains in-flight requests for at most the shutdown timeout.
func (s *Server) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.shutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	s.log.Info("http server stopped")
	return nil
}

// Echo returns the underlying echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}
