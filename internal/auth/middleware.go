package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/tripunite/gateway/internal/domain"
)

type contextKey string

const identityKey contextKey = "identity"

// Middleware creates an authentication middleware
func Middleware(authService *Service, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := authService.AuthenticateRequest(r)
			if err != nil {
				if logger != nil {
					logger.Debug("request rejected", "path", r.URL.Path, "error", err)
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]interface{}{
					"success": false,
					"message": domain.ErrUnauthenticated.Error(),
				})
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// WithIdentity stores identity in ctx
func WithIdentity(ctx context.Context, identity domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// GetIdentity extracts the authenticated identity from context
func GetIdentity(ctx context.Context) (domain.Identity, bool) {
	identity, ok := ctx.Value(identityKey).(domain.Identity)
	return identity, ok && !identity.IsZero()
}

// RequireAuth is a helper for handlers that need authentication
func RequireAuth(ctx context.Context) (domain.Identity, error) {
	identity, ok := GetIdentity(ctx)
	if !ok {
		return domain.Identity{}, ErrUnauthorized
	}
	return identity, nil
}

var ErrUnauthorized = &HTTPError{Status: http.StatusUnauthorized, Message: "unauthorized"}

type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	return e.Message
}
