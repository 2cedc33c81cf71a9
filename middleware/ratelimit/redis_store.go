package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisStore keeps counters in Redis so every instance behind a load balancer shares
// the same windows. Window expiry is delegated to key TTLs.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(key string) string {
	return fmt.Sprintf("%s:%s", s.prefix, key)
}

func (s *RedisStore) Get(ctx context.Context, key string) (int, time.Time, bool, error) {
	redisKey := s.key(key)

	pipe := s.client.Pipeline()
	get := pipe.Get(ctx, redisKey)
	ttl := pipe.PTTL(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return 0, time.Time{}, false, fmt.Errorf("redis get %s: %w", redisKey, err)
	}

	count, err := get.Int()
	if errors.Is(err, redis.Nil) {
		return 0, time.Time{}, false, nil
	} else if err != nil {
		return 0, time.Time{}, false, fmt.Errorf("redis get %s: %w", redisKey, err)
	}

	remaining := ttl.Val()
	if remaining <= 0 {
		return 0, time.Time{}, false, nil
	}

	return count, time.Now().Add(remaining), true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, count int, resetTime time.Time) error {
	ttl := time.Until(resetTime)
	if ttl <= 0 {
		return s.Reset(ctx, key)
	}
	return s.client.Set(ctx, s.key(key), count, ttl).Err()
}

func (s *RedisStore) Increment(ctx context.Context, key string, resetTime time.Time) (int, time.Time, error) {
	redisKey := s.key(key)

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	ttl := pipe.PTTL(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, time.Time{}, fmt.Errorf("redis incr %s: %w", redisKey, err)
	}

	// A key without expiry was just created by INCR; pin its window.
	if remaining := ttl.Val(); remaining > 0 {
		return int(incr.Val()), time.Now().Add(remaining), nil
	}

	if err := s.client.PExpireAt(ctx, redisKey, resetTime).Err(); err != nil {
		return 0, time.Time{}, fmt.Errorf("redis expire %s: %w", redisKey, err)
	}
	return int(incr.Val()), resetTime, nil
}

func (s *RedisStore) Reset(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.key(key)).Err()
}
