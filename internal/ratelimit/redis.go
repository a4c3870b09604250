package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "unitydesk:ratelimit:"

// RedisStore shares counters between instances with INCR and a key TTL.
type RedisStore struct {
	client redis.UniversalClient
}

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Increment(ctx context.Context, key string, length time.Duration) (int, time.Duration, error) {
	redisKey := redisKeyPrefix + key

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	ttl := pipe.PTTL(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, fmt.Errorf("incr %s: %w", redisKey, err)
	}

	remaining := ttl.Val()
	if remaining < 0 {
		// first hit in this window, or a key that lost its TTL
		if err := s.client.PExpire(ctx, redisKey, length).Err(); err != nil {
			return 0, 0, fmt.Errorf("expire %s: %w", redisKey, err)
		}
		remaining = length
	}

	return int(incr.Val()), remaining, nil
}
