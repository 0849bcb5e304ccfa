package middleware

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRateLimiter counts requests per key in fixed windows stored in Redis,
// so every replica shares one budget. A window lasts burst/rps seconds
// (between one second and one hour) and admits burst requests, so the
// long-run rate matches rps. Unlike the token bucket, a client can spend two
// full windows back to back across a boundary.
type RedisRateLimiter struct {
	client *redis.Client
	prefix string
	window time.Duration
	limit  int64
	now    func() time.Time
}

// NewRedisRateLimiter sizes the window from rps and burst. burst <= 0 is
// coerced to 1; rps <= 0 uses the one-hour maximum window. When rps exceeds
// burst the window is one second and admits rps requests.
func NewRedisRateLimiter(client *redis.Client, rps float64, burst int) *RedisRateLimiter {
	if burst <= 0 {
		burst = 1
	}
	window := time.Hour
	if rps > 0 {
		window = min(max(time.Duration(float64(burst)/rps*float64(time.Second)), time.Second), time.Hour)
	}
	limit := int64(burst)
	if perWindow := int64(math.Floor(rps * window.Seconds())); perWindow > limit {
		limit = perWindow
	}
	return &RedisRateLimiter{
		client: client,
		prefix: "sickco:rl:",
		window: window,
		limit:  limit,
		now:    time.Now,
	}
}

// windowKey names the counter for key in the window containing t.
func (l *RedisRateLimiter) windowKey(key string, t time.Time) string {
	return fmt.Sprintf("%s%s:%d", l.prefix, key, t.UnixNano()/int64(l.window))
}

// Allow increments the current window's counter and reports whether it is
// still within the limit.
func (l *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	now := l.now()
	k := l.windowKey(key, now)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.PExpire(ctx, k, 2*l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, fmt.Errorf("redis rate limit: %w", err)
	}

	if incr.Val() <= l.limit {
		return true, 0, nil
	}
	elapsed := time.Duration(now.UnixNano() % int64(l.window))
	return false, l.window - elapsed, nil
}
