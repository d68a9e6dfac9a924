// Package repotest provides in-memory repositories with the same uniqueness
// and ownership rules as the Postgres schema, for use in tests.
package repotest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prperemyshlev/app-scaffold/internal/domain"
	"github.com/prperemyshlev/app-scaffold/internal/repository"
)

// Users is an in-memory repository.UserRepository
type Users struct {
	mu    sync.Mutex
	users map[string]*domain.User

	// HideIdentityOnce makes the next identity lookup miss, as if a concurrent
	// insert had not been committed yet
	HideIdentityOnce bool
}

func NewUsers() *Users {
	return &Users{users: make(map[string]*domain.User)}
}

func (r *Users) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.users {
		if existing.Email == user.Email {
			return fmt.Errorf("insert %s: %w", user.Email, repository.ErrDuplicateEmail)
		}
		if sameIdentity(existing, user) {
			return fmt.Errorf("insert %s: %w", user.Email, repository.ErrDuplicateOAuthIdentity)
		}
	}

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now

	r.users[user.ID] = cloneUser(user)
	return nil
}

func (r *Users) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u, ok := r.users[id]; ok {
		return cloneUser(u), nil
	}
	return nil, fmt.Errorf("user %s: %w", id, repository.ErrNotFound)
}

func (r *Users) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, fmt.Errorf("user %s: %w", email, repository.ErrNotFound)
}

func (r *Users) GetByOAuthIdentity(_ context.Context, provider, subject string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.HideIdentityOnce {
		r.HideIdentityOnce = false
		return nil, fmt.Errorf("%s identity: %w", provider, repository.ErrNotFound)
	}

	probe := &domain.User{OAuthProvider: &provider, OAuthSubject: &subject}
	for _, u := range r.users {
		if sameIdentity(u, probe) {
			return cloneUser(u), nil
		}
	}
	return nil, fmt.Errorf("%s identity: %w", provider, repository.ErrNotFound)
}

func (r *Users) Update(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.ID]; !ok {
		return fmt.Errorf("user %s: %w", user.ID, repository.ErrNotFound)
	}
	for id, existing := range r.users {
		if id != user.ID && sameIdentity(existing, user) {
			return fmt.Errorf("update %s: %w", user.ID, repository.ErrDuplicateOAuthIdentity)
		}
	}

	user.UpdatedAt = time.Now().UTC()
	r.users[user.ID] = cloneUser(user)
	return nil
}

func (r *Users) UpdateLastLogin(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return fmt.Errorf("user %s: %w", userID, repository.ErrNotFound)
	}
	now := time.Now().UTC()
	u.LastLoginAt = &now
	return nil
}

func (r *Users) Deactivate(_ context.Context, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Email == email {
			u.IsActive = false
			return nil
		}
	}
	return fmt.Errorf("user %s: %w", email, repository.ErrNotFound)
}

// Len returns the number of stored users
func (r *Users) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users)
}

func sameIdentity(a, b *domain.User) bool {
	if !a.HasOAuthIdentity() || !b.HasOAuthIdentity() {
		return false
	}
	return *a.OAuthProvider == *b.OAuthProvider && *a.OAuthSubject == *b.OAuthSubject
}

func cloneUser(u *domain.User) *domain.User {
	c := *u
	return &c
}

// Items is an in-memory repository.ItemRepository
type Items struct {
	mu    sync.Mutex
	items map[string]*domain.Item
	seq   int64
}

func NewItems() *Items {
	return &Items{items: make(map[string]*domain.Item)}
}

func (r *Items) Create(_ context.Context, item *domain.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	item.ID = uuid.New().String()
	// strictly increasing timestamps keep newest-first ordering deterministic
	r.seq++
	item.CreatedAt = time.Unix(r.seq, 0).UTC()
	item.UpdatedAt = item.CreatedAt

	stored := *item
	r.items[item.ID] = &stored
	return nil
}

func (r *Items) GetByID(_ context.Context, ownerID, id string) (*domain.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if item, ok := r.items[id]; ok && item.UserID == ownerID {
		copied := *item
		return &copied, nil
	}
	return nil, fmt.Errorf("item %s: %w", id, repository.ErrNotFound)
}

func (r *Items) ListByUser(_ context.Context, ownerID string, limit, offset int) ([]*domain.Item, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	owned := make([]*domain.Item, 0)
	for _, item := range r.items {
		if item.UserID == ownerID {
			copied := *item
			owned = append(owned, &copied)
		}
	}
	sort.Slice(owned, func(i, j int) bool { return owned[i].CreatedAt.After(owned[j].CreatedAt) })

	total := len(owned)
	if offset >= total {
		return []*domain.Item{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return owned[offset:end], total, nil
}

func (r *Items) Update(_ context.Context, item *domain.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.items[item.ID]
	if !ok || existing.UserID != item.UserID {
		return fmt.Errorf("item %s: %w", item.ID, repository.ErrNotFound)
	}
	item.UpdatedAt = time.Now().UTC()
	stored := *item
	r.items[item.ID] = &stored
	return nil
}

func (r *Items) Delete(_ context.Context, ownerID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.items[id]
	if !ok || existing.UserID != ownerID {
		return fmt.Errorf("item %s: %w", id, repository.ErrNotFound)
	}
	delete(r.items, id)
	return nil
}

var (
	_ repository.UserRepository = (*Users)(nil)
	_ repository.ItemRepository = (*Items)(nil)
)
