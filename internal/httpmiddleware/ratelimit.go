package httpmiddleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// Limiter throttles requests per client IP with a token bucket held in
// process memory. Each instance limits independently, which is fine for a
// single API process.
type Limiter struct {
	burst     int
	perMinute int
	now       func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	tokens   float64
	refilled time.Time
}

// Buckets idle longer than this are dropped so one-off clients do not
// accumulate in memory.
const idleEviction = 10 * time.Minute

// NewLimiter creates a limiter allowing perMinute sustained requests with
// bursts up to burst. A non-positive burst falls back to perMinute.
func NewLimiter(burst, perMinute int) *Limiter {
	if burst <= 0 {
		burst = perMinute
	}
	return &Limiter{
		burst:     burst,
		perMinute: perMinute,
		now:       time.Now,
		buckets:   make(map[string]*bucket),
	}
}

// GinMiddleware enforces the limit per client IP. Health checks and metrics
// scrapes are exempt so they never count against callers behind the same NAT.
func (l *Limiter) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.FullPath() {
		case "/healthz", "/metrics":
			c.Next()
			return
		}
		ip := c.ClientIP()
		if ip == "" {
			ip = "unknown"
		}
		if !l.allow(ip) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}

func (l *Limiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		l.evictIdle(now)
		b = &bucket{tokens: float64(l.burst), refilled: now}
		l.buckets[key] = b
	} else {
		b.tokens += now.Sub(b.refilled).Minutes() * float64(l.perMinute)
		if b.tokens > float64(l.burst) {
			b.tokens = float64(l.burst)
		}
		b.refilled = now
	}
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// evictIdle runs under l.mu when a new key is added.
func (l *Limiter) evictIdle(now time.Time) {
	for key, b := range l.buckets {
		if now.Sub(b.refilled) > idleEviction {
			delete(l.buckets, key)
		}
	}
}
