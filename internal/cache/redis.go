// Package cache holds the Redis connection and the counter primitive the
// per-endpoint rate limiter is built on.
package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
)

// Client is the global Redis client, used by the rate limiter.
var Client *redis.Client

// InitRedis initializes the Redis connection
func InitRedis(addr, password string, db int) error {
	Client = redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := Client.Ping(context.Background()).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Println("✓ Redis connected successfully")
	return nil
}

// Close closes the Redis connection
func Close() error {
	if Client != nil {
		return Client.Close()
	}
	return nil
}

// FixedWindowIncr bumps a window-scoped counter and returns its value.
// The key's expiry starts on first increment, so an abandoned counter
// disappears one window after its last window began.
func FixedWindowIncr(ctx context.Context, client *redis.Client, key string, window time.Duration) (int64, error) {
	count, err := client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		client.Expire(ctx, key, window)
	}
	return count, nil
}
