package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/tarotdeck/backend/internal/contextkeys"
	"github.com/tarotdeck/backend/internal/domain"
	"github.com/tarotdeck/backend/internal/handler"
)

// SessionSource verifies tokens and hydrates sessions. Implemented by service.AuthService.
type SessionSource interface {
	VerifyToken(token string) (*domain.JWTClaims, error)
	Hydrate(ctx context.Context, userID string) (*domain.Session, error)
}

// Auth creates a JWT authentication middleware. The session is re-read from the database on
// every request so role changes and premium expiry take effect immediately.
func Auth(sessions SessionSource) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				handler.JSON(w, http.StatusUnauthorized, map[string]string{"error": "no token provided"})
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				handler.JSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid authorization header"})
				return
			}

			claims, err := sessions.VerifyToken(parts[1])
			if err != nil {
				handler.JSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid or expired token"})
				return
			}

			sess, err := sessions.Hydrate(r.Context(), claims.Sub)
			if err != nil {
				handler.Error(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
		})
	}
}

// WithSession stores sess and its identity keys in ctx.
func WithSession(ctx context.Context, sess *domain.Session) context.Context {
	ctx = context.WithValue(ctx, contextkeys.Session, sess)
	ctx = context.WithValue(ctx, contextkeys.UserID, sess.UserID)
	return context.WithValue(ctx, contextkeys.UserRole, sess.Role)
}
