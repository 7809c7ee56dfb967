package service

import (
	"context"
	"fmt"
	"time"

	"github.com/prperemyshlev/access-service/pkg/database"
	"github.com/redis/go-redis/v9"
)

const rateLimitKeyPrefix = "ratelimit:"

// RateLimitResult is the outcome of one Allow call
type RateLimitResult struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// RateLimiter counts requests per key in fixed windows using Redis.
// Requires Redis 7 for EXPIRE NX.
type RateLimiter struct {
	redis *database.Redis
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(redis *database.Redis) *RateLimiter {
	return &RateLimiter{redis: redis}
}

// Allow counts one request against key. The window starts at the first
// request and the counter disappears with it.
func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (RateLimitResult, error) {
	redisKey := rateLimitKeyPrefix + key

	var count *redis.IntCmd
	var ttl *redis.DurationCmd

	_, err := r.redis.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		count = pipe.Incr(ctx, redisKey)
		pipe.ExpireNX(ctx, redisKey, window)
		ttl = pipe.PTTL(ctx, redisKey)
		return nil
	})
	if err != nil {
		return RateLimitResult{}, fmt.Errorf("failed to count request: %w", err)
	}

	return fixedWindowResult(count.Val(), limit, ttl.Val(), window), nil
}

func fixedWindowResult(count int64, limit int, ttl, window time.Duration) RateLimitResult {
	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}

	if ttl <= 0 {
		ttl = window
	}

	return RateLimitResult{
		Allowed:    count <= int64(limit),
		Remaining:  remaining,
		RetryAfter: ttl,
	}
}
