package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
)

type Options struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Store is the read surface the API serves from.
type Store interface {
	Ping(ctx context.Context) error
	EstimatedItems(ctx context.Context) (int64, error)
	FindItemDocByTMDB(ctx context.Context, itemType string, tmdbID int64) (json.RawMessage, error)
}

// Server exposes the synchronized documents. Its item route is the same
// surface the change detector of another run queries.
type Server struct {
	pool   Store
	logger zerolog.Logger
	opts   Options
}

func NewServer(pool Store, logger zerolog.Logger, opts Options) *Server {
	return &Server{
		pool:   pool,
		logger: logger,
		opts:   opts,
	}
}

func (s *Server) router() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	e.GET("/healthz", s.handleHealthz)
	e.GET("/count", s.handleCount)
	e.GET("/:type/:id", s.handleItem)
	return e
}

// Start blocks until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	e := s.router()
	e.Server.ReadTimeout = s.opts.ReadTimeout
	e.Server.WriteTimeout = s.opts.WriteTimeout

	address := fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)
	errCh := make(chan error, 1)
	go func() {
		errCh <- e.Start(address)
	}()

	s.logger.Info().Str("address", address).Msg("API server listening")

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve on %s: %w", address, err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleHealthz(c echo.Context) error {
	if err := s.pool.Ping(c.Request().Context()); err != nil {
		return fail(c, http.StatusServiceUnavailable, "database unreachable")
	}
	return success(c, map[string]string{"status": "ok"})
}

func (s *Server) handleCount(c echo.Context) error {
	ctx := c.Request().Context()

	count, err := s.pool.EstimatedItems(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("estimated count failed")
		return fail(c, http.StatusInternalServerError, "count unavailable")
	}
	return success(c, map[string]int64{"items": count})
}
