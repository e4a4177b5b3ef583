package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"pulse/pkg/errors"
	"pulse/pkg/metrics"
)

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type RateLimitConfig struct {
	RPS             float64
	Burst           int
	CleanupInterval time.Duration
	MaxAge          time.Duration
}

func DefaultConfig() RateLimitConfig {
	return RateLimitConfig{
		RPS:             10.0,
		Burst:           20,
		CleanupInterval: 5 * time.Minute,
		MaxAge:          10 * time.Minute,
	}
}

// KeyFunc picks the bucket a request is counted against.
type KeyFunc func(c *gin.Context) string

// ClientIPKey buckets requests by client address.
func ClientIPKey(c *gin.Context) string {
	if ip := c.ClientIP(); ip != "" {
		return ip
	}
	return c.RemoteIP()
}

// Limiter keeps one token bucket per key and evicts idle buckets.
type Limiter struct {
	config  RateLimitConfig
	keyFunc KeyFunc

	mu      sync.Mutex
	clients map[string]*client
}

func NewLimiter(config RateLimitConfig, keyFunc KeyFunc) *Limiter {
	if keyFunc == nil {
		keyFunc = ClientIPKey
	}
	return &Limiter{
		config:  config,
		keyFunc: keyFunc,
		clients: make(map[string]*client),
	}
}

// RunCleanup evicts idle buckets until ctx is done.
func (l *Limiter) RunCleanup(ctx context.Context) {
	ticker := time.NewTicker(l.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.evict(now)
		}
	}
}

func (l *Limiter) evict(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key, c := range l.clients {
		if now.Sub(c.lastSeen) > l.config.MaxAge {
			delete(l.clients, key)
		}
	}
}

func (l *Limiter) get(key string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.clients[key]
	if !ok {
		c = &client{limiter: rate.NewLimiter(rate.Limit(l.config.RPS), l.config.Burst)}
		l.clients[key] = c
	}
	c.lastSeen = now
	return c.limiter
}

func (l *Limiter) Middleware() gin.HandlerFunc {
	limitHeader := strconv.Itoa(int(l.config.RPS))

	return func(c *gin.Context) {
		limiter := l.get(l.keyFunc(c), time.Now())

		c.Header("X-RateLimit-Limit", limitHeader)

		if !limiter.Allow() {
			metrics.RateLimitRequestsTotal.WithLabelValues("limited").Inc()
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				errors.ToErrorResponse(errors.ErrTooManyRequests.WithMessage("rate limit exceeded")))
			return
		}

		metrics.RateLimitRequestsTotal.WithLabelValues("allowed").Inc()

		remaining := max(int(limiter.Tokens()), 0)
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		c.Next()
	}
}
