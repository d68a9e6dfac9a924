package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/prperemyshlev/app-scaffold/internal/domain"
)

// Token verification failures. Callers can tell them apart with errors.Is.
var (
	ErrTokenMalformed    = errors.New("token is malformed")
	ErrTokenBadSignature = errors.New("token signature is invalid")
	ErrTokenExpired      = errors.New("token is expired")
)

// ErrMissingSecret is returned when the manager has no signing key
var ErrMissingSecret = errors.New("token signing secret is not configured")

const signingAlgorithm = "HS256"

// TokenManager issues and verifies signed, time-limited access tokens
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// TokenOption customizes a TokenManager
type TokenOption func(*TokenManager)

// WithClock overrides the time source, used by tests to move past expiry
func WithClock(now func() time.Time) TokenOption {
	return func(m *TokenManager) {
		m.now = now
	}
}

// NewTokenManager creates a new token manager
func NewTokenManager(secret string, ttl time.Duration, opts ...TokenOption) *TokenManager {
	m := &TokenManager{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Issue signs a token for the given user. Scope claims are optional.
func (m *TokenManager) Issue(userID, email string, scope ...string) (domain.IssuedToken, error) {
	if len(m.secret) == 0 {
		return domain.IssuedToken{}, ErrMissingSecret
	}

	now := m.now().Truncate(time.Second)
	expiresAt := now.Add(m.ttl)
	tokenID := uuid.New().String()

	claims := &domain.TokenClaims{
		Email: email,
		Scope: scope,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(m.secret)
	if err != nil {
		return domain.IssuedToken{}, fmt.Errorf("failed to sign token: %w", err)
	}

	return domain.IssuedToken{
		Value:     tokenString,
		ID:        tokenID,
		ExpiresAt: expiresAt,
	}, nil
}

// Verify checks signature and expiry and returns the decoded claims.
// The returned error wraps ErrTokenMalformed, ErrTokenBadSignature or ErrTokenExpired.
func (m *TokenManager) Verify(tokenString string) (*domain.TokenClaims, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("empty token: %w", ErrTokenMalformed)
	}

	claims := &domain.TokenClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(token *jwt.Token) (interface{}, error) {
			return m.secret, nil
		},
		jwt.WithValidMethods([]string{signingAlgorithm}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, classifyTokenError(err)
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("token has no subject: %w", ErrTokenMalformed)
	}

	return claims, nil
}

// TTL returns the configured token lifetime
func (m *TokenManager) TTL() time.Duration {
	return m.ttl
}

func classifyTokenError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrTokenBadSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrTokenExpired, err)
	default:
		return fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
}
