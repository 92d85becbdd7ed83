package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// RateLimiter is a fixed-window counter per key.
type RateLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
	swept   time.Time
}

type bucket struct {
	start time.Time
	count int
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

// Allow records a request for key. A non-positive limit disables limiting.
func (rl *RateLimiter) Allow(key string) bool {
	if rl.limit <= 0 {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.sweep(now)

	b, ok := rl.buckets[key]
	if !ok || now.Sub(b.start) >= rl.window {
		rl.buckets[key] = &bucket{start: now, count: 1}
		return true
	}
	if b.count >= rl.limit {
		return false
	}
	b.count++
	return true
}

// sweep drops expired buckets at most once per window.
func (rl *RateLimiter) sweep(now time.Time) {
	if now.Sub(rl.swept) < rl.window {
		return
	}
	for key, b := range rl.buckets {
		if now.Sub(b.start) >= rl.window {
			delete(rl.buckets, key)
		}
	}
	rl.swept = now
}

func (rl *RateLimiter) retryAfter() string {
	return strconv.Itoa(int(math.Ceil(rl.window.Seconds())))
}

// RateLimit limits requests per client IP.
func RateLimit(limiter *RateLimiter) gin.HandlerFunc {
	return limitBy(limiter, "rate limit exceeded")
}

// AuthRateLimit applies a stricter per-IP limit to login and registration.
func AuthRateLimit(limit int) gin.HandlerFunc {
	return limitBy(NewRateLimiter(limit, time.Minute), "too many authentication attempts, please try again later")
}

func limitBy(limiter *RateLimiter, message string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP()) {
			c.Header("Retry-After", limiter.retryAfter())
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": message,
			})
			return
		}
		c.Next()
	}
}
