package service

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/prperemyshlev/app-scaffold/pkg/database"
)

// RedisDenylist keeps revoked token ids in Redis, shared by every instance
type RedisDenylist struct {
	redis *database.Redis
}

// NewRedisDenylist creates a new Redis backed denylist
func NewRedisDenylist(redis *database.Redis) *RedisDenylist {
	return &RedisDenylist{redis: redis}
}

func denylistKey(tokenID string) string {
	return fmt.Sprintf("denylist:jti:%s", tokenID)
}

// Revoke adds a token id for ttl
func (d *RedisDenylist) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if err := d.redis.Client.Set(ctx, denylistKey(tokenID), "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to add token to denylist: %w", err)
	}
	return nil
}

// IsRevoked checks if a token id is in the denylist
func (d *RedisDenylist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	exists, err := d.redis.Client.Exists(ctx, denylistKey(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token denylist: %w", err)
	}
	return exists > 0, nil
}

// MemoryDenylist keeps revoked token ids in process. Entries expire with the token.
type MemoryDenylist struct {
	entries *gocache.Cache
}

func NewMemoryDenylist() *MemoryDenylist {
	return &MemoryDenylist{entries: gocache.New(gocache.NoExpiration, time.Minute)}
}

func (d *MemoryDenylist) Revoke(_ context.Context, tokenID string, ttl time.Duration) error {
	d.entries.Set(tokenID, struct{}{}, ttl)
	return nil
}

func (d *MemoryDenylist) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	_, found := d.entries.Get(tokenID)
	return found, nil
}

var (
	_ Denylist = (*RedisDenylist)(nil)
	_ Denylist = (*MemoryDenylist)(nil)
)
