package service

import (
	"context"
	"time"

	"github.com/prperemyshlev/app-scaffold/internal/domain"
	"github.com/prperemyshlev/app-scaffold/internal/dto"
)

// AuthService defines methods for authentication operations
type AuthService interface {
	Register(ctx context.Context, req *dto.RegisterRequest) (*AuthResult, error)
	Login(ctx context.Context, req *dto.LoginRequest) (*AuthResult, error)
	AuthorizationURL(provider, state string) (*AuthorizationRedirect, error)
	OAuthCallback(ctx context.Context, provider, code string) (*AuthResult, error)
	CurrentUser(ctx context.Context, token string) (*domain.User, error)
	Authenticate(ctx context.Context, token string) (*domain.TokenClaims, error)
	Logout(ctx context.Context, claims *domain.TokenClaims) error
	GetUser(ctx context.Context, userID string) (*domain.User, error)
	UpdateProfile(ctx context.Context, userID string, req *dto.UpdateProfileRequest) (*domain.User, error)
}

// ItemService defines owner-scoped item operations
type ItemService interface {
	Create(ctx context.Context, ownerID string, req *dto.ItemRequest) (*domain.Item, error)
	Get(ctx context.Context, ownerID, id string) (*domain.Item, error)
	List(ctx context.Context, ownerID string, page, perPage int) (*dto.ItemListResponse, error)
	Update(ctx context.Context, ownerID, id string, req *dto.ItemRequest) (*domain.Item, error)
	Delete(ctx context.Context, ownerID, id string) error
}

// Denylist remembers revoked token ids until the tokens would have expired anyway
type Denylist interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// RateLimiter admits at most limit events per key within window
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LoginGuard counts failed logins per account and locks it once the cap is reached
type LoginGuard interface {
	Locked(ctx context.Context, email string) (bool, error)
	RecordFailure(ctx context.Context, email string) error
	Reset(ctx context.Context, email string) error
}
