package service

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/prperemyshlev/app-scaffold/pkg/database"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// RedisRateLimiter is a sliding window log kept in a Redis sorted set
type RedisRateLimiter struct {
	redis *database.Redis
}

// NewRedisRateLimiter creates a new rate limiter
func NewRedisRateLimiter(redis *database.Redis) *RedisRateLimiter {
	return &RedisRateLimiter{redis: redis}
}

// Allow checks if a request is allowed based on rate limit
func (r *RedisRateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now()
	windowStart := now.Add(-window)
	redisKey := fmt.Sprintf("ratelimit:%s", key)

	err := r.redis.Client.ZRemRangeByScore(ctx, redisKey, "0", fmt.Sprintf("%d", windowStart.UnixNano())).Err()
	if err != nil {
		return false, fmt.Errorf("failed to clean old entries: %w", err)
	}

	count, err := r.redis.Client.ZCard(ctx, redisKey).Result()
	if err != nil {
		return false, fmt.Errorf("failed to count entries: %w", err)
	}
	if count >= int64(limit) {
		return false, nil
	}

	err = r.redis.Client.ZAdd(ctx, redisKey, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: now.UnixNano(),
	}).Err()
	if err != nil {
		return false, fmt.Errorf("failed to add entry: %w", err)
	}

	// expiry is housekeeping only, the window is enforced by the scores
	_ = r.redis.Client.Expire(ctx, redisKey, window+time.Minute).Err()

	return true, nil
}

// MemoryRateLimiter keeps a token bucket per key in process
type MemoryRateLimiter struct {
	limiters *gocache.Cache
}

func NewMemoryRateLimiter() *MemoryRateLimiter {
	return &MemoryRateLimiter{limiters: gocache.New(10*time.Minute, 5*time.Minute)}
}

// Allow refills limit tokens evenly over window, with a burst of limit
func (m *MemoryRateLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 {
		return false, nil
	}
	return m.limiter(key, limit, window).Allow(), nil
}

func (m *MemoryRateLimiter) limiter(key string, limit int, window time.Duration) *rate.Limiter {
	ttl := 2 * window
	if cached, found := m.limiters.Get(key); found {
		l := cached.(*rate.Limiter)
		m.limiters.Set(key, l, ttl)
		return l
	}

	l := rate.NewLimiter(rate.Every(window/time.Duration(limit)), limit)
	if err := m.limiters.Add(key, l, ttl); err != nil {
		// lost the race to another request for the same key
		if cached, found := m.limiters.Get(key); found {
			return cached.(*rate.Limiter)
		}
	}
	return l
}

var (
	_ RateLimiter = (*RedisRateLimiter)(nil)
	_ RateLimiter = (*MemoryRateLimiter)(nil)
)
