package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gin-gonic/gin"
)

type clientInfo struct {
	start time.Time
	count int
}

// SimpleRateLimit is the in-process fixed-window limiter used when Redis is not configured.
// Counters are per instance.
func SimpleRateLimit(maxRequests int, window time.Duration, clk clock.Clock) gin.HandlerFunc {
	if clk == nil {
		clk = clock.New()
	}

	var mu sync.Mutex
	clients := make(map[string]*clientInfo)
	lastSweep := clk.Now()

	return func(c *gin.Context) {
		ip := c.ClientIP()
		now := clk.Now()

		mu.Lock()
		if now.Sub(lastSweep) > window {
			for k, ci := range clients {
				if now.Sub(ci.start) > window {
					delete(clients, k)
				}
			}
			lastSweep = now
		}

		ci, ok := clients[ip]
		if !ok || now.Sub(ci.start) > window {
			ci = &clientInfo{start: now}
			clients[ip] = ci
		}
		ci.count++
		count := ci.count
		mu.Unlock()

		if count > maxRequests {
			RLBlocked.WithLabelValues("local:" + c.FullPath()).Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error":   "rate limit exceeded",
				"code":    "rate_limited",
			})
			return
		}

		RLRequests.WithLabelValues("local:" + c.FullPath()).Inc()
		c.Next()
	}
}
