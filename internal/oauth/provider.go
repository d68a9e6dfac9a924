package oauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"golang.org/x/oauth2"
)

// ErrInvalidGrant means the provider rejected the authorization code itself.
// Everything else returned by Exchange is a provider-side failure.
var ErrInvalidGrant = errors.New("authorization code rejected by provider")

const defaultHTTPTimeout = 10 * time.Second

// Identity is what a provider asserts about the signed-in account
type Identity struct {
	Provider      string
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	AvatarURL     string
}

// Provider is an external identity provider using the authorization code flow
type Provider interface {
	Name() string
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*Identity, error)
	// FormPost reports whether the provider returns to the callback with a POST
	FormPost() bool
}

// Registry holds the configured providers by name
type Registry struct {
	providers map[string]Provider
}

// NewRegistry creates a registry from the given providers
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

// Lookup returns the provider registered under name
func (r *Registry) Lookup(name string) (Provider, bool) {
	if r == nil {
		return nil, false
	}
	p, ok := r.providers[name]
	return p, ok
}

// Names lists registered provider names in sorted order
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewState returns a random, URL-safe value for the state parameter
func NewState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate oauth state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func newHTTPClient(client *http.Client) *http.Client {
	if client != nil {
		return client
	}
	return &http.Client{Timeout: defaultHTTPTimeout}
}

// exchangeCode trades the code for a token, classifying a rejected code as ErrInvalidGrant
func exchangeCode(ctx context.Context, cfg *oauth2.Config, client *http.Client, code string, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error) {
	if code == "" {
		return nil, fmt.Errorf("missing authorization code: %w", ErrInvalidGrant)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, client)
	token, err := cfg.Exchange(ctx, code, opts...)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.ErrorCode == "invalid_grant" {
			return nil, fmt.Errorf("%w: %v", ErrInvalidGrant, err)
		}
		return nil, fmt.Errorf("failed to exchange token: %w", err)
	}

	return token, nil
}
