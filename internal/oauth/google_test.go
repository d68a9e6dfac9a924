package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoogleProvider_AuthCodeURL(t *testing.T) {
	provider := NewGoogleProvider(GoogleConfig{
		ClientID:    "test-client-id",
		RedirectURL: "http://localhost:8080/api/auth/google/callback",
	})

	raw := provider.AuthCodeURL("test-state-value")
	parsed, err := url.Parse(raw)
	require.NoError(t, err)

	query := parsed.Query()
	assert.Equal(t, "accounts.google.com", parsed.Host)
	assert.Equal(t, "test-client-id", query.Get("client_id"))
	assert.Equal(t, "http://localhost:8080/api/auth/google/callback", query.Get("redirect_uri"))
	assert.Equal(t, "test-state-value", query.Get("state"))
	assert.Equal(t, "code", query.Get("response_type"))
	assert.Contains(t, query.Get("scope"), "email")
	assert.False(t, provider.FormPost())
}

func newGoogleServer(t *testing.T, tokenStatus int, tokenBody map[string]any, userInfo map[string]any) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "test-code", r.PostForm.Get("code"))
		assert.Equal(t, "test-client-id", r.PostForm.Get("client_id"))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(tokenStatus)
		_ = json.NewEncoder(w).Encode(tokenBody)
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-access-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(userInfo)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func googleFor(server *httptest.Server) *GoogleProvider {
	return NewGoogleProvider(GoogleConfig{
		ClientID:     "test-client-id",
		ClientSecret: "test-client-secret",
		RedirectURL:  "http://localhost:8080/api/auth/google/callback",
		TokenURL:     server.URL + "/token",
		UserInfoURL:  server.URL + "/userinfo",
		HTTPClient:   server.Client(),
	})
}

func TestGoogleProvider_Exchange(t *testing.T) {
	server := newGoogleServer(t, http.StatusOK,
		map[string]any{"access_token": "test-access-token", "token_type": "Bearer", "expires_in": 3600},
		map[string]any{
			"sub":            "google-sub-12345",
			"email":          "user@gmail.com",
			"email_verified": true,
			"name":           "Google User",
			"picture":        "https://example.com/a.png",
		},
	)

	identity, err := googleFor(server).Exchange(context.Background(), "test-code")
	require.NoError(t, err)

	assert.Equal(t, "google", identity.Provider)
	assert.Equal(t, "google-sub-12345", identity.Subject)
	assert.Equal(t, "user@gmail.com", identity.Email)
	assert.True(t, identity.EmailVerified)
	assert.Equal(t, "Google User", identity.Name)
	assert.Equal(t, "https://example.com/a.png", identity.AvatarURL)
}

func TestGoogleProvider_ExchangeInvalidGrant(t *testing.T) {
	server := newGoogleServer(t, http.StatusBadRequest,
		map[string]any{"error": "invalid_grant", "error_description": "Bad Request"},
		nil,
	)

	_, err := googleFor(server).Exchange(context.Background(), "test-code")
	assert.ErrorIs(t, err, ErrInvalidGrant)
}

func TestGoogleProvider_ExchangeProviderFailure(t *testing.T) {
	server := newGoogleServer(t, http.StatusInternalServerError,
		map[string]any{"error": "server_error"},
		nil,
	)

	_, err := googleFor(server).Exchange(context.Background(), "test-code")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidGrant)
}

func TestGoogleProvider_ExchangeEmptySubject(t *testing.T) {
	server := newGoogleServer(t, http.StatusOK,
		map[string]any{"access_token": "test-access-token", "token_type": "Bearer"},
		map[string]any{"email": "user@gmail.com"},
	)

	_, err := googleFor(server).Exchange(context.Background(), "test-code")
	assert.Error(t, err)
}

func TestExchangeWithoutCode(t *testing.T) {
	provider := NewGoogleProvider(GoogleConfig{ClientID: "id"})

	_, err := provider.Exchange(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidGrant)
}

func TestRegistry(t *testing.T) {
	registry := NewRegistry(
		NewAppleProvider(AppleConfig{ClientID: "apple"}),
		NewGoogleProvider(GoogleConfig{ClientID: "google"}),
	)

	p, ok := registry.Lookup("google")
	require.True(t, ok)
	assert.Equal(t, "google", p.Name())

	_, ok = registry.Lookup("github")
	assert.False(t, ok)

	assert.Equal(t, []string{"apple", "google"}, registry.Names())

	var empty *Registry
	_, ok = empty.Lookup("google")
	assert.False(t, ok)
}

func TestNewState(t *testing.T) {
	a, err := NewState()
	require.NoError(t, err)
	b, err := NewState()
	require.NoError(t, err)

	assert.Len(t, a, 43)
	assert.NotEqual(t, a, b)
}
