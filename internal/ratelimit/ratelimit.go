package ratelimit

import (
	"fmt"
	"net/http"
	"time"

	"clusterchat/internal/cache"
	"clusterchat/internal/httpx"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
)

// Limiter enforces per-endpoint fixed-window request limits backed by
// Redis, so limits hold across server processes.
type Limiter struct {
	client *redis.Client
	window time.Duration
}

// New creates a limiter with a one-minute window.
func New(client *redis.Client) *Limiter {
	return &Limiter{client: client, window: time.Minute}
}

// Key builds the counter key for one caller on one endpoint within the
// current window.
func Key(endpoint, caller string, now time.Time, window time.Duration) string {
	slot := now.Unix() / int64(window/time.Second)
	return fmt.Sprintf("rl:%s:%s:%d", endpoint, caller, slot)
}

// Middleware returns a gin middleware allowing at most limit requests per
// window per client address on the named endpoint. Redis errors fail open.
func (l *Limiter) Middleware(endpoint string, limit int) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := Key(endpoint, c.ClientIP(), time.Now(), l.window)

		count, err := cache.FixedWindowIncr(c.Request.Context(), l.client, key, l.window)
		if err != nil {
			c.Next()
			return
		}

		if count > int64(limit) {
			httpx.Error(c, http.StatusTooManyRequests, "Rate limit exceeded")
			c.Abort()
			return
		}

		c.Next()
	}
}
