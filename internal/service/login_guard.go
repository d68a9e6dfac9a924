package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/prperemyshlev/app-scaffold/pkg/database"
	"github.com/redis/go-redis/v9"
)

// RedisLoginGuard counts failures in Redis. The window starts at the first failure.
type RedisLoginGuard struct {
	redis       *database.Redis
	maxFailures int
	window      time.Duration
}

func NewRedisLoginGuard(redis *database.Redis, maxFailures int, window time.Duration) *RedisLoginGuard {
	return &RedisLoginGuard{redis: redis, maxFailures: maxFailures, window: window}
}

func loginFailuresKey(email string) string {
	return fmt.Sprintf("login:failures:%s", email)
}

func (g *RedisLoginGuard) Locked(ctx context.Context, email string) (bool, error) {
	count, err := g.redis.Client.Get(ctx, loginFailuresKey(email)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read login failures: %w", err)
	}
	return count >= g.maxFailures, nil
}

func (g *RedisLoginGuard) RecordFailure(ctx context.Context, email string) error {
	key := loginFailuresKey(email)

	pipe := g.redis.Client.TxPipeline()
	pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, g.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record login failure: %w", err)
	}
	return nil
}

func (g *RedisLoginGuard) Reset(ctx context.Context, email string) error {
	if err := g.redis.Client.Del(ctx, loginFailuresKey(email)).Err(); err != nil {
		return fmt.Errorf("failed to reset login failures: %w", err)
	}
	return nil
}

// MemoryLoginGuard counts failures in process
type MemoryLoginGuard struct {
	failures    *gocache.Cache
	maxFailures int
	window      time.Duration
}

func NewMemoryLoginGuard(maxFailures int, window time.Duration) *MemoryLoginGuard {
	return &MemoryLoginGuard{
		failures:    gocache.New(window, time.Minute),
		maxFailures: maxFailures,
		window:      window,
	}
}

func (g *MemoryLoginGuard) Locked(_ context.Context, email string) (bool, error) {
	count, found := g.failures.Get(email)
	if !found {
		return false, nil
	}
	return count.(int) >= g.maxFailures, nil
}

// RecordFailure increments the counter, capped at the lockout threshold
func (g *MemoryLoginGuard) RecordFailure(_ context.Context, email string) error {
	if err := g.failures.Add(email, 1, g.window); err == nil {
		return nil
	}
	count, err := g.failures.IncrementInt(email, 1)
	if err != nil {
		// expired between Add and Increment
		return g.failures.Add(email, 1, g.window)
	}
	if count > g.maxFailures {
		_, _ = g.failures.DecrementInt(email, 1)
	}
	return nil
}

func (g *MemoryLoginGuard) Reset(_ context.Context, email string) error {
	g.failures.Delete(email)
	return nil
}

var (
	_ LoginGuard = (*RedisLoginGuard)(nil)
	_ LoginGuard = (*MemoryLoginGuard)(nil)
)
