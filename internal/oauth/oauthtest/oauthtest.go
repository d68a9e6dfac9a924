// Package oauthtest provides a scripted oauth.Provider for tests.
package oauthtest

import (
	"context"
	"net/url"
	"sync"

	"github.com/prperemyshlev/app-scaffold/internal/oauth"
)

// Provider returns a fixed identity, or Err, from Exchange
type Provider struct {
	ProviderName string
	Post         bool

	mu       sync.Mutex
	identity oauth.Identity
	err      error
	codes    []string
}

// NewProvider creates a provider asserting identity
func NewProvider(name string, identity oauth.Identity) *Provider {
	identity.Provider = name
	return &Provider{ProviderName: name, identity: identity}
}

func (p *Provider) Name() string { return p.ProviderName }

func (p *Provider) FormPost() bool { return p.Post }

func (p *Provider) AuthCodeURL(state string) string {
	return "https://idp.example.com/authorize?" + url.Values{
		"client_id": {"test-client"},
		"state":     {state},
	}.Encode()
}

func (p *Provider) Exchange(_ context.Context, code string) (*oauth.Identity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.codes = append(p.codes, code)
	if p.err != nil {
		return nil, p.err
	}
	identity := p.identity
	return &identity, nil
}

// SetIdentity replaces the asserted identity
func (p *Provider) SetIdentity(mutate func(*oauth.Identity)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	mutate(&p.identity)
}

// Fail makes every following Exchange return err. A nil err restores success.
func (p *Provider) Fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

// Codes returns the codes Exchange was called with
func (p *Provider) Codes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.codes...)
}

var _ oauth.Provider = (*Provider)(nil)
