package cart

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Storage persists serialized carts under a single key each.
type Storage interface {
	Load(ctx context.Context, key string) ([]byte, bool, error)
	Save(ctx context.Context, key string, data []byte) error
}

// RedisStorage keeps carts in Redis, refreshing the TTL on every write.
type RedisStorage struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStorage constructs a Redis-backed cart storage. A non-positive TTL
// keeps carts until they are overwritten.
func NewRedisStorage(client *redis.Client, ttl time.Duration) *RedisStorage {
	if ttl < 0 {
		ttl = 0
	}
	return &RedisStorage{client: client, ttl: ttl}
}

// Load returns the stored payload and reports whether the key existed.
func (s *RedisStorage) Load(ctx context.Context, key string) ([]byte, bool, error) {
	if s == nil || s.client == nil {
		return nil, false, errors.New("cart storage: redis client not configured")
	}
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

// Save overwrites the payload stored under key.
func (s *RedisStorage) Save(ctx context.Context, key string, data []byte) error {
	if s == nil || s.client == nil {
		return errors.New("cart storage: redis client not configured")
	}
	return s.client.Set(ctx, key, data, s.ttl).Err()
}
