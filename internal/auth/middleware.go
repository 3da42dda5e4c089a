package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/vinabook/bookshop/internal/api"
	"github.com/vinabook/bookshop/internal/domain"
)

type contextKey struct{}

// UserID returns the authenticated caller's id, or "" for anonymous requests.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(contextKey{}).(string)
	return id
}

// WithUserID is used by tests to simulate an authenticated request.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, contextKey{}, userID)
}

// Middleware rejects requests without a valid bearer token and injects the
// verified user id into the request context.
func (m *TokenManager) Middleware(logger *slog.Logger) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				api.WriteDomainError(logger, w, domain.ErrUnauthorized)
				return
			}

			userID, err := m.Verify(token)
			if err != nil {
				api.WriteDomainError(logger, w, domain.ErrUnauthorized)
				return
			}

			next(w, r.WithContext(WithUserID(r.Context(), userID)))
		}
	}
}
