package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tripunite/gateway/internal/domain"
)

// DefaultCookieName is the session cookie set by the user service at login.
const DefaultCookieName = "tripunitetoken"

const defaultLookupTimeout = 5 * time.Second

// UserDirectory looks up users by id. Implemented by the Postgres and Mongo stores.
type UserDirectory interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

// Service authenticates realtime connections and API requests
type Service struct {
	users         UserDirectory
	tokens        *TokenService
	cookieName    string
	lookupTimeout time.Duration
}

// NewService creates an auth service
func NewService(users UserDirectory, tokens *TokenService, cookieName string) *Service {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	return &Service{
		users:         users,
		tokens:        tokens,
		cookieName:    cookieName,
		lookupTimeout: defaultLookupTimeout,
	}
}

// Authenticate verifies token and loads the user it names.
func (s *Service) Authenticate(ctx context.Context, token string) (domain.Identity, error) {
	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		return domain.Identity{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.lookupTimeout)
	defer cancel()

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.Identity{}, err
		}
		return domain.Identity{}, fmt.Errorf("lookup user: %w", err)
	}

	return user.Identity(), nil
}

// AuthenticateRequest authenticates the session cookie, falling back to a bearer token.
func (s *Service) AuthenticateRequest(r *http.Request) (domain.Identity, error) {
	token := s.TokenFromRequest(r)
	if token == "" {
		return domain.Identity{}, domain.ErrTokenMissing
	}
	return s.Authenticate(r.Context(), token)
}

// TokenFromRequest extracts the session token, or "" when there is none.
func (s *Service) TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(s.cookieName); err == nil && c.Value != "" {
		return c.Value
	}

	authHeader := r.Header.Get("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}
