package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// throttle keeps one token bucket per client IP. Buckets idle past ttl
// are dropped by a janitor goroutine so the map cannot grow unbounded.
type throttle struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rps     rate.Limit
	burst   int
	ttl     time.Duration
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

func newThrottle(rps float64, burst int, ttl time.Duration) *throttle {
	t := &throttle{
		buckets: make(map[string]*bucket),
		rps:     rate.Limit(rps),
		burst:   burst,
		ttl:     ttl,
	}
	go t.janitor()
	return t
}

func (t *throttle) allow(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	b, ok := t.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(t.rps, t.burst)}
		t.buckets[key] = b
	}
	b.lastSeen = time.Now()
	return b.lim.Allow()
}

func (t *throttle) janitor() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		t.mu.Lock()
		for key, b := range t.buckets {
			if time.Since(b.lastSeen) > t.ttl {
				delete(t.buckets, key)
			}
		}
		t.mu.Unlock()
	}
}

// Liveness probes and Prometheus scrapes must not spend a client's
// request budget.
func rateLimitExempt(path string) bool {
	return path == "/health" || path == "/metrics"
}

// RateLimitMiddleware throttles requests per client IP.
func RateLimitMiddleware(rps float64, burst int) gin.HandlerFunc {
	t := newThrottle(rps, burst, 3*time.Minute)

	return func(c *gin.Context) {
		if rateLimitExempt(c.FullPath()) {
			c.Next()
			return
		}
		if !t.allow(c.ClientIP()) {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
