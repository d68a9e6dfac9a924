package app

import (
	"github.com/prperemyshlev/app-scaffold/internal/config"
	"github.com/prperemyshlev/app-scaffold/internal/oauth"
	"github.com/prperemyshlev/app-scaffold/internal/service"
	"github.com/prperemyshlev/app-scaffold/pkg/database"
)

type stores struct {
	denylist    service.Denylist
	rateLimiter service.RateLimiter
	loginGuard  service.LoginGuard
}

// newStores keeps shared state in Redis when it is configured, in process otherwise.
// The denylist stays nil when revocation is disabled.
func newStores(redis *database.Redis, sec config.SecurityConfig) stores {
	var s stores

	if redis != nil {
		s.rateLimiter = service.NewRedisRateLimiter(redis)
		s.loginGuard = service.NewRedisLoginGuard(redis, sec.LoginMaxFailures, sec.LoginLockoutWindow.Duration)
		if sec.TokenRevocation {
			s.denylist = service.NewRedisDenylist(redis)
		}
		return s
	}

	s.rateLimiter = service.NewMemoryRateLimiter()
	s.loginGuard = service.NewMemoryLoginGuard(sec.LoginMaxFailures, sec.LoginLockoutWindow.Duration)
	if sec.TokenRevocation {
		s.denylist = service.NewMemoryDenylist()
	}
	return s
}

func newProviderRegistry(cfg config.OAuthConfig) *oauth.Registry {
	var providers []oauth.Provider

	if cfg.Google.Enabled() {
		providers = append(providers, oauth.NewGoogleProvider(oauth.GoogleConfig{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			RedirectURL:  cfg.Google.RedirectURL,
		}))
	}
	if cfg.Apple.Enabled() {
		providers = append(providers, oauth.NewAppleProvider(oauth.AppleConfig{
			ClientID:     cfg.Apple.ClientID,
			ClientSecret: cfg.Apple.ClientSecret,
			RedirectURL:  cfg.Apple.RedirectURL,
		}))
	}

	return oauth.NewRegistry(providers...)
}
