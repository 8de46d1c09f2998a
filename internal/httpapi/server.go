// Package httpapi exposes the retrieval façade over HTTP. Paths are
// contractual for drop-in compatibility; request and response bodies are
// JSON throughout.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/segmenta-io/segmenta/internal/config"
	segerrors "github.com/segmenta-io/segmenta/internal/errors"
	"github.com/segmenta-io/segmenta/internal/service"
	"github.com/segmenta-io/segmenta/internal/telemetry"
)

const defaultBodyLimit = "1M"

// Server wraps echo with the service routes and middleware stack.
type Server struct {
	cfg     config.ServerConfig
	svc     *service.Service
	metrics *telemetry.Metrics
	logger  *slog.Logger
	echo    *echo.Echo
}

// NewServer builds the HTTP server around a façade.
func NewServer(cfg config.ServerConfig, svc *service.Service, metrics *telemetry.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	deadline := cfg.RequestDeadline
	if deadline <= 0 {
		deadline = 10 * time.Second
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{cfg: cfg, svc: svc, metrics: metrics, logger: logger, echo: e}
	e.HTTPErrorHandler = s.errorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(s.accessLog)
	e.Use(requestDeadline(deadline))
	e.Use(middleware.BodyLimit(defaultBodyLimit))

	s.routes()
	return s
}

func (s *Server) routes() {
	e := s.echo

	e.POST("/api/enhanced-variable-picker/search", s.handleSearch)
	e.POST("/api/variable-picker/refine", s.handleRefine)
	e.GET("/api/enhanced-variable-picker/variable/:code", s.handleVariable)
	e.GET("/api/enhanced-variable-picker/category/:category", s.handleCategory)
	e.GET("/api/enhanced-variable-picker/stats", s.handleStats)

	e.POST("/api/start_session", s.handleStartSession)
	e.POST("/api/nl/process", s.handleNLProcess)

	e.GET("/api/search/migration/status", s.handleMigrationStatus)
	e.POST("/api/search/migration/test", s.handleMigrationTest)

	e.GET("/health", s.handleHealth)

	if reg := s.metrics.Registry(); reg != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	}
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.cfg.Addr)
	err := s.echo.Start(s.cfg.Addr)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler exposes the routing tree for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// requestDeadline bounds every public operation (default 10s).
func requestDeadline(d time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx, cancel := context.WithTimeout(c.Request().Context(), d)
			defer cancel()
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// accessLog writes one structured line per request.
func (s *Server) accessLog(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}
		s.logger.Info("request",
			"method", c.Request().Method,
			"path", c.Request().URL.Path,
			"status", c.Response().Status,
			"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
			"elapsed", time.Since(start),
		)
		return nil
	}
}

// errorHandler renders every error as the JSON envelope. Context
// cancellation surfaces as a timeout.
func (s *Server) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	if errors.Is(err, context.DeadlineExceeded) {
		err = segerrors.Timeout("request deadline exceeded")
	}

	var body errorBody
	var status int

	var segErr *segerrors.SegError
	var echoErr *echo.HTTPError
	switch {
	case errors.As(err, &segErr):
		status = httpStatus(segErr.Code)
		body = errorBody{Error: segErr.Message, Code: segErr.Code}
	case errors.As(err, &echoErr):
		status = echoErr.Code
		body = errorBody{Error: http.StatusText(status), Code: segerrors.ErrCodeInternal}
	default:
		status = http.StatusInternalServerError
		body = errorBody{Error: "internal error", Code: segerrors.ErrCodeInternal}
	}

	if status >= 500 {
		s.logger.Error("request failed",
			"error", err,
			"request_id", c.Response().Header().Get(echo.HeaderXRequestID))
	}
	if jsonErr := c.JSON(status, body); jsonErr != nil {
		s.logger.Error("write error response", "error", jsonErr)
	}
}
