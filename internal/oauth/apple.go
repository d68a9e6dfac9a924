package oauth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/patrickmn/go-cache"
	"github.com/prperemyshlev/app-scaffold/internal/domain"
	"golang.org/x/oauth2"
)

const (
	defaultAppleAuthURL  = "https://appleid.apple.com/auth/authorize"
	defaultAppleTokenURL = "https://appleid.apple.com/auth/token"
	defaultAppleKeysURL  = "https://appleid.apple.com/auth/keys"
	defaultAppleIssuer   = "https://appleid.apple.com"

	appleKeysTTL      = time.Hour
	appleKeysCacheKey = "jwks"
)

// AppleConfig configures Sign in with Apple. ClientSecret is the pre-signed
// client secret JWT issued for the service id.
type AppleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	AuthURL  string
	TokenURL string
	KeysURL  string
	Issuer   string

	HTTPClient *http.Client
	Now        func() time.Time
}

// AppleProvider signs users in with Apple. Apple has no userinfo endpoint,
// the identity comes from the verified id_token.
type AppleProvider struct {
	oauth      *oauth2.Config
	keysURL    string
	issuer     string
	httpClient *http.Client
	keys       *cache.Cache
	now        func() time.Time
}

// NewAppleProvider creates an Apple provider
func NewAppleProvider(cfg AppleConfig) *AppleProvider {
	if cfg.AuthURL == "" {
		cfg.AuthURL = defaultAppleAuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaultAppleTokenURL
	}
	if cfg.KeysURL == "" {
		cfg.KeysURL = defaultAppleKeysURL
	}
	if cfg.Issuer == "" {
		cfg.Issuer = defaultAppleIssuer
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &AppleProvider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"name", "email"},
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		keysURL:    cfg.KeysURL,
		issuer:     cfg.Issuer,
		httpClient: newHTTPClient(cfg.HTTPClient),
		keys:       cache.New(appleKeysTTL, 2*appleKeysTTL),
		now:        cfg.Now,
	}
}

func (p *AppleProvider) Name() string { return domain.ProviderApple }

// FormPost is always true, Apple requires response_mode=form_post when requesting scopes
func (p *AppleProvider) FormPost() bool { return true }

func (p *AppleProvider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state, oauth2.SetAuthURLParam("response_mode", "form_post"))
}

// appleBool accepts both true and "true", Apple sends either
type appleBool bool

func (b *appleBool) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case bool:
		*b = appleBool(v)
	case string:
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid boolean %q", v)
		}
		*b = appleBool(parsed)
	case nil:
		*b = false
	default:
		return fmt.Errorf("invalid boolean %v", v)
	}
	return nil
}

type appleClaims struct {
	Email         string    `json:"email"`
	EmailVerified appleBool `json:"email_verified"`
	jwt.RegisteredClaims
}

// Exchange trades the code for tokens and verifies the returned id_token
func (p *AppleProvider) Exchange(ctx context.Context, code string) (*Identity, error) {
	token, err := exchangeCode(ctx, p.oauth, p.httpClient, code)
	if err != nil {
		return nil, err
	}

	idToken, _ := token.Extra("id_token").(string)
	if idToken == "" {
		return nil, errors.New("no id_token in apple token response")
	}

	claims, err := p.verifyIDToken(ctx, idToken)
	if err != nil {
		return nil, err
	}

	return &Identity{
		Provider:      domain.ProviderApple,
		Subject:       claims.Subject,
		Email:         claims.Email,
		EmailVerified: bool(claims.EmailVerified),
	}, nil
}

func (p *AppleProvider) verifyIDToken(ctx context.Context, idToken string) (*appleClaims, error) {
	claims := &appleClaims{}
	_, err := jwt.ParseWithClaims(idToken, claims,
		func(token *jwt.Token) (interface{}, error) {
			kid, _ := token.Header["kid"].(string)
			return p.publicKey(ctx, kid)
		},
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithIssuer(p.issuer),
		jwt.WithAudience(p.oauth.ClientID),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid apple id_token: %w", err)
	}

	if claims.Subject == "" {
		return nil, errors.New("apple id_token has no subject")
	}

	return claims, nil
}

type jsonWebKey struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// publicKey returns the signing key for kid, refetching the key set once when kid is unknown
func (p *AppleProvider) publicKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	if cached, ok := p.keys.Get(appleKeysCacheKey); ok {
		if key, ok := cached.(map[string]*rsa.PublicKey)[kid]; ok {
			return key, nil
		}
	}

	keys, err := p.fetchKeys(ctx)
	if err != nil {
		return nil, err
	}
	p.keys.SetDefault(appleKeysCacheKey, keys)

	key, ok := keys[kid]
	if !ok {
		return nil, fmt.Errorf("unknown apple signing key %q", kid)
	}
	return key, nil
}

func (p *AppleProvider) fetchKeys(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.keysURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create keys request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("keys request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("keys fetch failed with status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read keys response: %w", err)
	}

	var set struct {
		Keys []jsonWebKey `json:"keys"`
	}
	if err := json.Unmarshal(body, &set); err != nil {
		return nil, fmt.Errorf("failed to parse keys response: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, k := range set.Keys {
		if k.Kty != "RSA" {
			continue
		}
		key, err := rsaPublicKey(k)
		if err != nil {
			return nil, fmt.Errorf("invalid apple key %q: %w", k.Kid, err)
		}
		keys[k.Kid] = key
	}

	return keys, nil
}

func rsaPublicKey(k jsonWebKey) (*rsa.PublicKey, error) {
	n, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, err
	}
	e, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, err
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(n),
		E: int(new(big.Int).SetBytes(e).Int64()),
	}, nil
}

var _ Provider = (*AppleProvider)(nil)
