package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tripunite/gateway/internal/domain"
)

// Claims represents the JWT claims issued by the user service at login
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"_id"`
}

// TokenService validates session tokens. Tokens are minted by the user service; the
// gateway only verifies them.
type TokenService struct {
	signingKey []byte
	parser     *jwt.Parser
}

// NewTokenService creates a new token service
func NewTokenService(signingKey string) (*TokenService, error) {
	if signingKey == "" {
		return nil, errors.New("signing key must not be empty")
	}
	return &TokenService{
		signingKey: []byte(signingKey),
		parser:     jwt.NewParser(jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}), jwt.WithExpirationRequired()),
	}, nil
}

// ValidateToken parses and validates a session token
func (s *TokenService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := s.parser.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.signingKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, domain.ErrTokenInvalid
	}

	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: missing _id claim", domain.ErrTokenInvalid)
	}

	return claims, nil
}
