package middleware

import (
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/iudanet/possync/internal/authtoken"
)

// Auth создает middleware для проверки JWT токена.
// Если roles не пусты, роль из токена должна входить в этот список.
func Auth(logger *slog.Logger, cfg authtoken.Config, roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Warn("Missing Authorization header", "path", r.URL.Path)
				writeError(w, "missing token", http.StatusUnauthorized)
				return
			}

			// Ожидаем формат: "Bearer <token>"
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				logger.Warn("Invalid Authorization header format")
				writeError(w, "invalid token format", http.StatusUnauthorized)
				return
			}

			claims, err := authtoken.ValidateAccessToken(cfg, parts[1])
			if err != nil {
				logger.Warn("Invalid access token", "error", err)
				writeError(w, "invalid token", http.StatusUnauthorized)
				return
			}

			if len(roles) > 0 && !slices.Contains(roles, claims.Role) {
				logger.Warn("Token role is not allowed",
					"role", claims.Role,
					"device_id", claims.DeviceID,
					"path", r.URL.Path)
				writeError(w, "insufficient role", http.StatusForbidden)
				return
			}

			logger.Debug("Request authenticated", "device_id", claims.DeviceID, "role", claims.Role)

			next.ServeHTTP(w, r.WithContext(authtoken.WithClaims(r.Context(), claims)))
		})
	}
}
