package repository

import (
	"context"

	"github.com/prperemyshlev/app-scaffold/internal/domain"
)

// UserRepository defines methods for user operations
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByOAuthIdentity(ctx context.Context, provider, subject string) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
	UpdateLastLogin(ctx context.Context, userID string) error
	Deactivate(ctx context.Context, email string) error
}

// ItemRepository defines methods for item operations. Every method is scoped to the owner.
type ItemRepository interface {
	Create(ctx context.Context, item *domain.Item) error
	GetByID(ctx context.Context, ownerID, id string) (*domain.Item, error)
	ListByUser(ctx context.Context, ownerID string, limit, offset int) ([]*domain.Item, int, error)
	Update(ctx context.Context, item *domain.Item) error
	Delete(ctx context.Context, ownerID, id string) error
}
