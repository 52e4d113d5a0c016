package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// DistributedRateLimiter implements a fixed-window counter in Redis so the
// budget is shared across replicas
type DistributedRateLimiter struct {
	redis  *redis.Client
	limit  int64
	window time.Duration
	prefix string
}

// NewDistributedRateLimiter allows limit requests per key in each window
func NewDistributedRateLimiter(client *redis.Client, limit int, window time.Duration, prefix string) *DistributedRateLimiter {
	if prefix == "" {
		prefix = "sitepass:ratelimit"
	}
	if window <= 0 {
		window = time.Minute
	}
	return &DistributedRateLimiter{
		redis:  client,
		limit:  int64(limit),
		window: window,
		prefix: prefix,
	}
}

// Allow implements Limiter. Redis errors are returned and the caller decides
// whether to fail open. A counter left without an expiry by an earlier
// failure gets one on the next call.
func (rl *DistributedRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := fmt.Sprintf("%s:%s", rl.prefix, key)

	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := rl.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, redisKey)
		ttl = pipe.PTTL(ctx, redisKey)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("redis error: %w", err)
	}
	if ttl.Val() < 0 {
		if err := rl.redis.PExpire(ctx, redisKey, rl.window).Err(); err != nil {
			return false, fmt.Errorf("redis error: %w", err)
		}
	}
	return incr.Val() <= rl.limit, nil
}

// Reset clears the counter for a key
func (rl *DistributedRateLimiter) Reset(ctx context.Context, key string) error {
	return rl.redis.Del(ctx, fmt.Sprintf("%s:%s", rl.prefix, key)).Err()
}
