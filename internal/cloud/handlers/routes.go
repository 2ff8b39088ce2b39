package handlers

import (
	"log/slog"
	"net/http"

	"github.com/iudanet/possync/internal/authtoken"
	"github.com/iudanet/possync/internal/middleware"
)

// Routes собирает маршруты облачного API и цепочку middleware
func Routes(auth *AuthHandler, records *RecordsHandler, health *HealthHandler, jwt authtoken.Config, limiter *middleware.RateLimiter, logger *slog.Logger) http.Handler {
	device := middleware.Auth(logger, jwt, authtoken.RoleDevice)

	mux := http.NewServeMux()

	// Публичные маршруты
	mux.HandleFunc("GET /api/v1/health", health.Health)
	mux.HandleFunc("POST /api/v1/auth/register", auth.Register)
	mux.HandleFunc("GET /api/v1/auth/salt/{device_id}", auth.GetSalt)
	mux.HandleFunc("POST /api/v1/auth/login", auth.Login)
	mux.HandleFunc("POST /api/v1/auth/refresh", auth.Refresh)

	// Маршруты терминалов
	mux.Handle("POST /api/v1/auth/logout", device(http.HandlerFunc(auth.Logout)))
	mux.Handle("POST /api/v1/tables/{table}/apply", device(http.HandlerFunc(records.Apply)))
	mux.Handle("GET /api/v1/tables/{table}/records", device(http.HandlerFunc(records.List)))
	mux.Handle("GET /api/v1/tables/{table}/records/{id}", device(http.HandlerFunc(records.Get)))

	var handler http.Handler = mux
	handler = middleware.RateLimit(limiter)(handler)
	handler = middleware.Logging(logger, "/api/v1/health")(handler)
	handler = middleware.Recovery(logger)(handler)
	return handler
}
