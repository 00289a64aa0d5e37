package jwt

import (
	"net/http"
	"strings"

	"github.com/mrzscan/mrzscan-backend/pkg/errors"
	"github.com/mrzscan/mrzscan-backend/pkg/httputil"
	"github.com/mrzscan/mrzscan-backend/pkg/logger"
)

// Middleware validates bearer tokens, rejects roles outside the configured
// set and adds the client to the request context
func (m *Manager) Middleware(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				httputil.ErrorLocalized(w, r, errors.Unauthorized("missing authorization header"))
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				httputil.ErrorLocalized(w, r, errors.Unauthorized("invalid authorization header format"))
				return
			}

			claims, err := m.ValidateAccessToken(parts[1])
			if err != nil {
				log.Debug().Err(err).Msg("token validation failed")
				httputil.ErrorLocalized(w, r, err)
				return
			}

			if !m.RoleAllowed(claims.Role) {
				log.Debug().Str("subject", claims.Subject).Str("role", claims.Role).Msg("role not admitted")
				httputil.ErrorLocalized(w, r, errors.Forbidden("role not allowed"))
				return
			}

			ctx := httputil.WithSubject(r.Context(), claims.Subject, claims.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
