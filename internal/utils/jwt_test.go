package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-that-is-at-least-32-characters-long"

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestManager(clock *fakeClock) *TokenManager {
	return NewTokenManager(testSecret, 15*time.Minute, WithClock(clock.Now))
}

func TestTokenManager_IssueThenVerify(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	m := newTestManager(clock)

	issued, err := m.Issue("user-1", "alice@example.com", "items:write")
	require.NoError(t, err)
	assert.NotEmpty(t, issued.Value)
	assert.NotEmpty(t, issued.ID)
	assert.Equal(t, clock.now.Add(15*time.Minute), issued.ExpiresAt)

	claims, err := m.Verify(issued.Value)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID())
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.Equal(t, []string{"items:write"}, claims.Scope)
	assert.Equal(t, issued.ID, claims.TokenID())
	assert.True(t, issued.ExpiresAt.Equal(claims.ExpiresAtTime()))
}

func TestTokenManager_VerifyAfterTTLIsExpired(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	m := newTestManager(clock)

	issued, err := m.Issue("user-1", "alice@example.com")
	require.NoError(t, err)

	clock.Advance(14 * time.Minute)
	_, err = m.Verify(issued.Value)
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	_, err = m.Verify(issued.Value)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenManager_TamperedSignatureIsRejected(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	m := newTestManager(clock)

	issued, err := m.Issue("user-1", "alice@example.com")
	require.NoError(t, err)

	parts := strings.Split(issued.Value, ".")
	require.Len(t, parts, 3)

	sig := []byte(parts[2])
	mid := len(sig) / 2
	if sig[mid] == 'A' {
		sig[mid] = 'B'
	} else {
		sig[mid] = 'A'
	}
	tampered := strings.Join([]string{parts[0], parts[1], string(sig)}, ".")

	claims, err := m.Verify(tampered)
	assert.Nil(t, claims)
	assert.ErrorIs(t, err, ErrTokenBadSignature)
}

func TestTokenManager_TamperedPayloadIsRejected(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	m := newTestManager(clock)

	issued, err := m.Issue("user-1", "alice@example.com")
	require.NoError(t, err)
	other, err := m.Issue("user-2", "mallory@example.com")
	require.NoError(t, err)

	a := strings.Split(issued.Value, ".")
	b := strings.Split(other.Value, ".")
	spliced := strings.Join([]string{a[0], b[1], a[2]}, ".")

	_, err = m.Verify(spliced)
	assert.ErrorIs(t, err, ErrTokenBadSignature)
}

func TestTokenManager_WrongSecretIsRejected(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	issuer := NewTokenManager("another-secret-key-that-is-at-least-32-chars", time.Minute, WithClock(clock.Now))

	issued, err := issuer.Issue("user-1", "alice@example.com")
	require.NoError(t, err)

	_, err = newTestManager(clock).Verify(issued.Value)
	assert.ErrorIs(t, err, ErrTokenBadSignature)
}

func TestTokenManager_MalformedTokens(t *testing.T) {
	m := newTestManager(&fakeClock{now: time.Now()})

	for _, token := range []string{"", "not-a-token", "a.b", "a.b.c", "....."} {
		t.Run(token, func(t *testing.T) {
			claims, err := m.Verify(token)
			assert.Nil(t, claims)
			assert.ErrorIs(t, err, ErrTokenMalformed)
		})
	}
}

func TestTokenManager_RejectsOtherAlgorithms(t *testing.T) {
	m := newTestManager(&fakeClock{now: time.Now()})

	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	unsigned, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = m.Verify(unsigned)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrTokenExpired)
}

func TestTokenManager_RequiresExpiry(t *testing.T) {
	m := newTestManager(&fakeClock{now: time.Now()})

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "user-1"})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = m.Verify(signed)
	assert.ErrorIs(t, err, ErrTokenMalformed)
}

func TestTokenManager_IssueWithoutSecret(t *testing.T) {
	m := NewTokenManager("", time.Minute)

	_, err := m.Issue("user-1", "alice@example.com")
	assert.ErrorIs(t, err, ErrMissingSecret)
}
