package middleware

import (
	"net/http"
	"sync"
	"time"

	"objgate/models"

	"github.com/gin-gonic/gin"
)

// RateLimiter caps requests per client IP within a one minute window
type RateLimiter struct {
	ratePerMinute int
	clients       map[string]*clientLimit
	lastSweep     time.Time
	now           func() time.Time
	mu            sync.Mutex
}

type clientLimit struct {
	count       int
	windowStart time.Time
}

// NewRateLimiter creates a limiter allowing ratePerMinute requests per IP
func NewRateLimiter(ratePerMinute int) *RateLimiter {
	return &RateLimiter{
		ratePerMinute: ratePerMinute,
		clients:       make(map[string]*clientLimit),
		now:           time.Now,
	}
}

// allow records one request from ip and reports whether it is within limit
func (rl *RateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()

	// Drop clients idle for two windows, at most once a minute
	if now.Sub(rl.lastSweep) > time.Minute {
		for addr, client := range rl.clients {
			if now.Sub(client.windowStart) > 2*time.Minute {
				delete(rl.clients, addr)
			}
		}
		rl.lastSweep = now
	}

	client, exists := rl.clients[ip]
	if !exists || now.Sub(client.windowStart) > time.Minute {
		client = &clientLimit{windowStart: now}
		rl.clients[ip] = client
	}

	client.count++
	return client.count <= rl.ratePerMinute
}

// Limit returns the middleware. A limiter with a non-positive rate lets
// every request through.
func (rl *RateLimiter) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.ratePerMinute <= 0 {
			c.Next()
			return
		}

		if !rl.allow(c.ClientIP()) {
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				models.NewErrorResponse("Rate limit exceeded. Please try again later."))
			return
		}

		c.Next()
	}
}
