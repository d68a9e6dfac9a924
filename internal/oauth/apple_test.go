package oauth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	appleTestClientID = "com.example.web"
	appleTestKid      = "test-kid"
)

type appleFixture struct {
	server     *httptest.Server
	key        *rsa.PrivateKey
	idToken    string
	keyFetches atomic.Int32
}

func newAppleFixture(t *testing.T) *appleFixture {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	f := &appleFixture{key: key}

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "apple-access-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
			"id_token":     f.idToken,
		})
	})
	mux.HandleFunc("/keys", func(w http.ResponseWriter, r *http.Request) {
		f.keyFetches.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"keys": []map[string]string{{
				"kty": "RSA",
				"kid": appleTestKid,
				"use": "sig",
				"alg": "RS256",
				"n":   base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes()),
			}},
		})
	})

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *appleFixture) sign(t *testing.T, claims jwt.MapClaims, key *rsa.PrivateKey) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = appleTestKid
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func (f *appleFixture) provider() *AppleProvider {
	return NewAppleProvider(AppleConfig{
		ClientID:     appleTestClientID,
		ClientSecret: "client-secret-jwt",
		RedirectURL:  "https://app.example.com/api/auth/apple/callback",
		TokenURL:     f.server.URL + "/token",
		KeysURL:      f.server.URL + "/keys",
		HTTPClient:   f.server.Client(),
	})
}

func validAppleClaims() jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"iss":            defaultAppleIssuer,
		"aud":            appleTestClientID,
		"sub":            "001234.abcdef",
		"email":          "user@privaterelay.appleid.com",
		"email_verified": "true",
		"iat":            now.Unix(),
		"exp":            now.Add(10 * time.Minute).Unix(),
	}
}

func TestAppleProvider_AuthCodeURLUsesFormPost(t *testing.T) {
	provider := NewAppleProvider(AppleConfig{ClientID: appleTestClientID})

	parsed, err := url.Parse(provider.AuthCodeURL("state-1"))
	require.NoError(t, err)

	assert.Equal(t, "form_post", parsed.Query().Get("response_mode"))
	assert.Equal(t, "state-1", parsed.Query().Get("state"))
	assert.True(t, provider.FormPost())
}

func TestAppleProvider_Exchange(t *testing.T) {
	f := newAppleFixture(t)
	f.idToken = f.sign(t, validAppleClaims(), f.key)
	provider := f.provider()

	identity, err := provider.Exchange(context.Background(), "apple-code")
	require.NoError(t, err)

	assert.Equal(t, "apple", identity.Provider)
	assert.Equal(t, "001234.abcdef", identity.Subject)
	assert.Equal(t, "user@privaterelay.appleid.com", identity.Email)
	assert.True(t, identity.EmailVerified)

	_, err = provider.Exchange(context.Background(), "apple-code")
	require.NoError(t, err)
	assert.Equal(t, int32(1), f.keyFetches.Load(), "key set should be cached")
}

func TestAppleProvider_RejectsBadIDTokens(t *testing.T) {
	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(jwt.MapClaims)
		key    func(f *appleFixture) *rsa.PrivateKey
	}{
		{
			name:   "wrong audience",
			mutate: func(c jwt.MapClaims) { c["aud"] = "com.attacker.app" },
		},
		{
			name:   "wrong issuer",
			mutate: func(c jwt.MapClaims) { c["iss"] = "https://evil.example.com" },
		},
		{
			name:   "expired",
			mutate: func(c jwt.MapClaims) { c["exp"] = time.Now().Add(-time.Minute).Unix() },
		},
		{
			name: "foreign signature",
			key:  func(*appleFixture) *rsa.PrivateKey { return otherKey },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAppleFixture(t)
			claims := validAppleClaims()
			if tt.mutate != nil {
				tt.mutate(claims)
			}
			key := f.key
			if tt.key != nil {
				key = tt.key(f)
			}
			f.idToken = f.sign(t, claims, key)

			_, err := f.provider().Exchange(context.Background(), "apple-code")
			require.Error(t, err)
			assert.NotErrorIs(t, err, ErrInvalidGrant)
		})
	}
}

func TestAppleBool(t *testing.T) {
	var claims appleClaims
	require.NoError(t, json.Unmarshal([]byte(`{"email_verified":"false"}`), &claims))
	assert.False(t, bool(claims.EmailVerified))

	require.NoError(t, json.Unmarshal([]byte(`{"email_verified":true}`), &claims))
	assert.True(t, bool(claims.EmailVerified))
}
