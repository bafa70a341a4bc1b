package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"compass/pkg/circuitbreaker"
)

type Store interface {
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)
	Del(ctx context.Context, key string) error
}

// RedisStore is the Redis-backed Store. Calls go through cb when it is set.
type RedisStore struct {
	client *redis.Client
	cb     *circuitbreaker.Wrapper
}

func NewRedisStore(client *redis.Client, cb *circuitbreaker.Wrapper) *RedisStore {
	return &RedisStore{client: client, cb: cb}
}

func (r *RedisStore) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	ok, err := circuitbreaker.Do(ctx, r.cb, func() (bool, error) {
		return r.client.SetNX(ctx, key, value, ttl).Result()
	})
	if err != nil {
		return false, fmt.Errorf("redis SetNX failed: %w", err)
	}
	return ok, nil
}

func (r *RedisStore) Del(ctx context.Context, key string) error {
	_, err := circuitbreaker.Do(ctx, r.cb, func() (int64, error) {
		return r.client.Del(ctx, key).Result()
	})
	if err != nil {
		return fmt.Errorf("redis Del failed: %w", err)
	}
	return nil
}
