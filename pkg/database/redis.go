package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Timeouts for the denylist, limiter and lockout stores. Every call on the
// request path is a single small command, so they are kept short.
const (
	redisDialTimeout = 5 * time.Second
	redisIOTimeout   = 500 * time.Millisecond
	redisPoolSize    = 20
)

// Redis wraps the client shared by the Redis-backed state stores
type Redis struct {
	Client *redis.Client
}

// NewRedis connects and verifies the server answers before returning.
func NewRedis(ctx context.Context, addr, password string, db int) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  redisDialTimeout,
		ReadTimeout:  redisIOTimeout,
		WriteTimeout: redisIOTimeout,
		PoolSize:     redisPoolSize,
	})

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis at %s is unreachable: %w", addr, err)
	}

	return &Redis{Client: client}, nil
}

func (r *Redis) Close() error {
	return r.Client.Close()
}

// Ping backs the readiness probe.
func (r *Redis) Ping(ctx context.Context) error {
	return r.Client.Ping(ctx).Err()
}
