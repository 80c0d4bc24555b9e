package httpmiddleware

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"classportal/internal/logger"
)

// Limiter decides whether one more request for key is allowed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// IPRateLimiter is an in-memory token bucket per key.
type IPRateLimiter struct {
	mu      sync.Mutex
	entries map[string]*limiterEntry
	r       rate.Limit
	burst   int
	idle    time.Duration
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewIPRateLimiter allows perMinute requests per key with a burst of the same size.
func NewIPRateLimiter(perMinute int) *IPRateLimiter {
	if perMinute <= 0 {
		perMinute = 60
	}
	return &IPRateLimiter{
		entries: make(map[string]*limiterEntry),
		r:       rate.Limit(float64(perMinute) / 60.0),
		burst:   perMinute,
		idle:    3 * time.Minute,
	}
}

// Allow implements Limiter.
func (l *IPRateLimiter) Allow(_ context.Context, key string) (bool, error) {
	return l.get(key).Allow(), nil
}

func (l *IPRateLimiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	e, ok := l.entries[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.r, l.burst)}
		l.entries[key] = e
	}
	e.lastSeen = now
	return e.limiter
}

// Sweep forgets keys idle for longer than the idle window until ctx is done.
func (l *IPRateLimiter) Sweep(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			l.mu.Lock()
			for k, e := range l.entries {
				if time.Since(e.lastSeen) > l.idle {
					delete(l.entries, k)
				}
			}
			l.mu.Unlock()
		}
	}
}

// RedisWindow is a fixed-window counter shared by every api instance.
type RedisWindow struct {
	client *redis.Client
	limit  int
	window time.Duration
	prefix string
}

// NewRedisWindow allows limit requests per key and window.
func NewRedisWindow(client *redis.Client, limit int, window time.Duration) *RedisWindow {
	return &RedisWindow{client: client, limit: limit, window: window, prefix: "portal:ratelimit"}
}

// Allow implements Limiter.
func (w *RedisWindow) Allow(ctx context.Context, key string) (bool, error) {
	k := fmt.Sprintf("%s:%s", w.prefix, key)
	var incr *redis.IntCmd
	// the window starts with the first hit; EXPIRE NX never extends it
	_, err := w.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, k)
		p.ExpireNX(ctx, k, w.window)
		return nil
	})
	if err != nil {
		return false, err
	}
	return incr.Val() <= int64(w.limit), nil
}

// RateLimit enforces l per client IP. Limiter failures let the request through.
func RateLimit(l Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if ip == "" {
			ip = "unknown"
		}
		ok, err := l.Allow(c.Request.Context(), ip)
		if err != nil {
			logger.Warn().Err(err).Str("ip", ip).Msg("rate limiter unavailable")
			c.Next()
			return
		}
		if !ok {
			logger.Warn().Str("ip", ip).Str("path", c.Request.URL.Path).Msg("rate limit exceeded")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit"})
			return
		}
		c.Next()
	}
}
