package ratelimit

import (
	"context"
	"fmt"
	"time"

	"toursync/internal/config"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "toursync:rate_limit:"

func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// RedisWindow is a fixed-window counter shared by every gateway process
// pointed at the same Redis.
type RedisWindow struct {
	client *redis.Client
	limit  int
	window time.Duration
}

func NewRedisWindow(client *redis.Client, limit int, window time.Duration) *RedisWindow {
	return &RedisWindow{client: client, limit: limit, window: window}
}

func (r *RedisWindow) Allow(ctx context.Context, key string) (bool, error) {
	if r.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	k := keyPrefix + key
	count, err := r.client.Incr(ctx, k).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment rate limit: %w", err)
	}
	if count == 1 {
		if err := r.client.Expire(ctx, k, r.window).Err(); err != nil {
			return false, fmt.Errorf("failed to set rate limit expiry: %w", err)
		}
	}
	return count <= int64(r.limit), nil
}
