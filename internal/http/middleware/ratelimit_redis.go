package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
)

var redisClient *redis.Client

// SetRedisClient shares an already connected client with the limiters.
// A nil client makes the Redis limiters fail-open.
func SetRedisClient(c *redis.Client) {
	redisClient = c
}

// RedisEnabled reports whether the Redis limiters are active.
func RedisEnabled() bool {
	return redisClient != nil
}

// RedisRateLimit implements a simple fixed-window rate limiter using Redis INCR/EXPIRE.
// key format: rl:<window_seconds>:<identifier>
func RedisRateLimit(maxRequests int, window time.Duration) gin.HandlerFunc {
	return KeyedRateLimit("rl", maxRequests, window, func(c *gin.Context) string {
		return c.ClientIP()
	})
}

// KeyedRateLimit is RedisRateLimit with a caller-chosen identifier, e.g. the wallet
// in the path. Requests with an empty key pass through.
func KeyedRateLimit(prefix string, maxRequests int, window time.Duration, key func(*gin.Context) string) gin.HandlerFunc {
	windowSec := strconv.FormatInt(int64(window.Seconds()), 10)

	return func(c *gin.Context) {
		if redisClient == nil {
			c.Next()
			return
		}

		ident := key(c)
		if ident == "" {
			c.Next()
			return
		}
		k := prefix + ":" + windowSec + ":" + ident
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()

		val, err := redisClient.Incr(ctx, k).Result()
		if err != nil {
			// on Redis error, fail-open (allow) but set header
			c.Header("X-RateLimit-Error", "redis-error")
			c.Next()
			return
		}

		if val == 1 {
			redisClient.Expire(ctx, k, window)
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(maxRequests))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining(maxRequests, val), 10))

		if val > int64(maxRequests) {
			RLBlocked.WithLabelValues(prefix + ":" + c.FullPath()).Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success":     false,
				"error":       "rate limit exceeded",
				"code":        "rate_limited",
				"retry_after": int(window.Seconds()),
			})
			return
		}

		RLRequests.WithLabelValues(prefix + ":" + c.FullPath()).Inc()
		c.Next()
	}
}

func remaining(maxRequests int, used int64) int64 {
	if left := int64(maxRequests) - used; left > 0 {
		return left
	}
	return 0
}
