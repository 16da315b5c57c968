// Package mockscoring serves a local stand-in for the risk scoring service.
// It speaks the same HTTP JSON contract as production but scores with a
// deterministic heuristic and keeps runs in memory.
package mockscoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/miradorstack/risk-client/internal/config"
	"github.com/miradorstack/risk-client/internal/metrics"
)

// Server wraps the echo instance and lifecycle helpers.
type Server struct {
	cfg    config.MockConfig
	logger *slog.Logger
	echo   *echo.Echo
	store  *Store
	now    func() time.Time
	newID  func() string
}

// NewServer constructs the mock scoring service with an empty store.
func NewServer(cfg config.MockConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 200000
	}
	if cfg.ModelCycle == "" {
		cfg.ModelCycle = "2017-2018"
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		cfg:    cfg,
		logger: logger,
		echo:   e,
		store:  NewStore(),
		now:    time.Now,
		newID:  uuid.NewString,
	}

	e.HTTPErrorHandler = s.handleError
	e.Use(middleware.Recover())
	e.Use(s.logRequests)
	e.Use(s.limitBody)
	s.registerRoutes(e.Group("/v1"))
	return s
}

// Handler exposes the HTTP handler (useful for tests).
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Store exposes the in-memory run store.
func (s *Server) Store() *Store {
	return s.store
}

// Start serves requests on the configured address until Shutdown is invoked.
func (s *Server) Start() error {
	if s.echo == nil {
		return fmt.Errorf("server not initialised")
	}
	s.logger.Info("mock scoring service listening", slog.String("address", s.cfg.Address))
	if err := s.echo.Start(s.cfg.Address); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve %s: %w", s.cfg.Address, err)
	}
	return nil
}

// Shutdown attempts a graceful shutdown, falling back to Close after the context expires.
func (s *Server) Shutdown(ctx context.Context) {
	if s.echo == nil {
		return
	}
	if err := s.echo.Shutdown(ctx); err != nil {
		s.logger.Warn("graceful shutdown failed, closing", slog.Any("error", err))
		_ = s.echo.Close()
	}
}

func (s *Server) logRequests(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}
		metrics.ObserveMockRequest(c.Path(), c.Response().Status)
		s.logger.Info("request",
			slog.String("method", c.Request().Method),
			slog.String("path", c.Request().URL.Path),
			slog.Int("status", c.Response().Status),
			slog.Duration("duration", time.Since(start)),
		)
		return nil
	}
}

func (s *Server) limitBody(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		if req.ContentLength > s.cfg.MaxBodyBytes {
			return writeError(c, http.StatusRequestEntityTooLarge, "payload_too_large", "Request body too large", nil)
		}
		req.Body = http.MaxBytesReader(c.Response(), req.Body, s.cfg.MaxBodyBytes)
		return next(c)
	}
}

// handleError renders framework errors (unknown routes, bad methods, panics)
// in the service's error envelope.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status, code, message := http.StatusInternalServerError, "server_error", "Internal server error"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status, code, message = he.Code, "http_error", fmt.Sprint(he.Message)
	} else {
		s.logger.Error("unhandled error", slog.Any("error", err))
	}
	if werr := writeError(c, status, code, message, nil); werr != nil {
		s.logger.Error("write error response", slog.Any("error", werr))
	}
}
