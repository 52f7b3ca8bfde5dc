package store

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces plan records in Redis.
const keyPrefix = "plan:"

// RedisStore implements Store on a Redis backend. Records are persistent:
// no TTL is applied, a record lives until it is deleted.
type RedisStore struct {
	redis *redis.Client
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(redisClient *redis.Client) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{
		redis: redisClient,
	}
}

// Get retrieves the stored bytes for key.
// Returns ErrNotFound if the key doesn't exist.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.redis.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if err == redis.Nil {
			StoreMisses.Inc()
			return nil, ErrNotFound
		}
		StoreErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	StoreHits.Inc()
	return data, nil
}

// Set stores value under key without a TTL.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	if err := s.redis.Set(ctx, keyPrefix+key, value, 0).Err(); err != nil {
		StoreErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	StoreSize.Add(float64(len(value)))
	return nil
}

// Delete removes key. Returns ErrNotFound if the key was not present.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	deleted, err := s.redis.Del(ctx, keyPrefix+key).Result()
	if err != nil {
		StoreErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	if deleted == 0 {
		return ErrNotFound
	}
	return nil
}

// Ping checks the Redis connection. Used by the health endpoint.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		StoreErrors.WithLabelValues("ping").Inc()
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}
