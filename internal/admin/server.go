package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/iudanet/possync/internal/authtoken"
	"github.com/iudanet/possync/internal/middleware"
)

// Options параметры HTTP сервера
type Options struct {
	Events     http.Handler // Events websocket поток событий, nil - не публикуется
	Metrics    http.Handler // Metrics /metrics, nil - не публикуется
	Listen     string
	JWT        authtoken.Config
	RateWindow time.Duration
	RateLimit  int
}

// Server административный HTTP сервер терминала
type Server struct {
	httpServer *http.Server
	limiter    *middleware.RateLimiter
	logger     *slog.Logger
}

// NewServer собирает маршруты и цепочку middleware
func NewServer(h *Handler, opts Options, logger *slog.Logger) *Server {
	limiter := middleware.NewRateLimiter(opts.RateLimit, opts.RateWindow, logger)

	return &Server{
		httpServer: &http.Server{
			Addr:              opts.Listen,
			Handler:           Routes(h, opts, limiter, logger),
			ReadHeaderTimeout: 10 * time.Second,
		},
		limiter: limiter,
		logger:  logger,
	}
}

// Routes returns the complete handler chain
func Routes(h *Handler, opts Options, limiter *middleware.RateLimiter, logger *slog.Logger) http.Handler {
	admin := middleware.Auth(logger, opts.JWT, authtoken.RoleAdmin)
	domain := middleware.Auth(logger, opts.JWT, authtoken.RoleAdmin, authtoken.RoleDevice)

	mux := http.NewServeMux()

	// Публичные маршруты
	mux.HandleFunc("GET /api/v1/health", h.Health)
	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics)
	}

	// Операции оператора
	mux.Handle("GET /api/v1/sync/status", admin(http.HandlerFunc(h.Status)))
	mux.Handle("GET /api/v1/sync/statistics", admin(http.HandlerFunc(h.Statistics)))
	mux.Handle("POST /api/v1/sync/force", admin(http.HandlerFunc(h.ForceSync)))
	mux.Handle("POST /api/v1/sync/failed/retry", admin(http.HandlerFunc(h.RetryFailed)))
	mux.Handle("POST /api/v1/sync/failed/clear", admin(http.HandlerFunc(h.ClearFailed)))
	mux.Handle("DELETE /api/v1/sync/legacy/{table}", admin(http.HandlerFunc(h.ClearLegacy)))
	mux.Handle("GET /api/v1/sync/conflicts", admin(http.HandlerFunc(h.Conflicts)))
	mux.Handle("POST /api/v1/sync/conflicts/{id}/resolve", admin(http.HandlerFunc(h.Resolve)))
	mux.Handle("GET /api/v1/devices", admin(http.HandlerFunc(h.ListDevices)))
	mux.Handle("POST /api/v1/devices", admin(http.HandlerFunc(h.RegisterDevice)))
	if opts.Events != nil {
		mux.Handle("GET /api/v1/sync/events", admin(opts.Events))
	}

	// Доменный слой
	mux.Handle("POST /api/v1/records/{table}", domain(http.HandlerFunc(h.Records)))

	var handler http.Handler = mux
	handler = middleware.RateLimit(limiter)(handler)
	handler = middleware.Logging(logger, "/api/v1/health", "/metrics")(handler)
	handler = middleware.Recovery(logger)(handler)
	return handler
}

// ListenAndServe обслуживает запросы до отмены ctx, затем корректно
// останавливается
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve обслуживает запросы на готовом listener
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer s.limiter.Stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Admin API listening", "addr", ln.Addr().String())
		errCh <- s.httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown admin API: %w", err)
	}
	s.logger.Info("Admin API stopped")
	return nil
}
