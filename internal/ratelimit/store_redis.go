package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore counts requests in fixed windows shared by every replica.
type RedisStore struct {
	client redis.Cmdable
	now    func() time.Time
}

func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

func (s *RedisStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	var (
		incr *redis.IntCmd
		ttl  *redis.DurationCmd
	)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, window)
		ttl = pipe.PTTL(ctx, key)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redis rate limit %s: %w", key, err)
	}

	now := s.now()
	remaining := ttl.Val()
	if remaining <= 0 {
		remaining = window
	}
	resetAt := now.Add(remaining)
	count := int(incr.Val())
	if count > limit {
		return &Result{
			Allowed:    false,
			Limit:      limit,
			ResetAt:    resetAt,
			RetryAfter: retryAfterSeconds(now, resetAt),
		}, nil
	}
	return &Result{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - count,
		ResetAt:   resetAt,
	}, nil
}
