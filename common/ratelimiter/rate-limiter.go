package ratelimiter

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisRateLimiter struct {
	Redis *redis.Client
}

func NewRedisRateLimiter(redisClient *redis.Client) *RedisRateLimiter {
	return &RedisRateLimiter{
		Redis: redisClient,
	}
}

// RateLimitUserSlidingWindow keeps a sorted set of request timestamps so bursts
// straddling a window boundary are still counted.
func (h *RedisRateLimiter) RateLimitUserSlidingWindow(ctx context.Context, userId string, window time.Duration, maxRequests int) error {
	now := time.Now().UnixMilli()
	windowMs := window.Milliseconds()
	key := fmt.Sprintf("rate_limit_sliding:%s", userId)

	pipe := h.Redis.Pipeline()

	pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", now-windowMs))

	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(now),
		Member: fmt.Sprintf("%d", now),
	})

	pipe.ZCard(ctx, key)

	pipe.Expire(ctx, key, window)

	results, err := pipe.Exec(ctx)
	if err != nil {
		return err
	}

	count := results[2].(*redis.IntCmd).Val()
	if count > int64(maxRequests) {
		return fmt.Errorf("rate limit exceeded: %d requests in sliding window %v", count, window)
	}

	return nil
}
