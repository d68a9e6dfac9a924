package domain

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims represents JWT token claims
type TokenClaims struct {
	Email string   `json:"email,omitempty"`
	Scope []string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the subject the token was issued for
func (tc *TokenClaims) UserID() string {
	return tc.Subject
}

// TokenID returns the unique id of the token
func (tc *TokenClaims) TokenID() string {
	return tc.ID
}

// ExpiresAtTime returns the expiry, or the zero time when absent
func (tc *TokenClaims) ExpiresAtTime() time.Time {
	if tc.ExpiresAt == nil {
		return time.Time{}
	}
	return tc.ExpiresAt.Time
}

// IssuedToken is a freshly signed access token
type IssuedToken struct {
	Value     string
	ID        string
	ExpiresAt time.Time
}

// TTL returns the remaining lifetime of the token relative to now
func (t IssuedToken) TTL(now time.Time) time.Duration {
	return t.ExpiresAt.Sub(now)
}
