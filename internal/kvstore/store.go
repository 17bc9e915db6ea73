package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
)

var ErrKeyNotFound = errors.New("key not found")

// Store is the key-value capability everything else persists through:
// JSON-serialized values under namespaced string keys.
type Store interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}) error
	Remove(ctx context.Context, key string) error
}

// UserKey builds the conventional per-user key: <entityKind>::<userID>.
// Global collections use the bare entity kind as the key.
func UserKey(entityKind, userID string) string {
	return entityKind + "::" + userID
}

type RedisStore struct {
	redisClient *redis.Client
}

func NewRedisStore(redisClient *redis.Client) *RedisStore {
	return &RedisStore{
		redisClient: redisClient,
	}
}

func (s *RedisStore) Get(ctx context.Context, key string, dest interface{}) error {
	cmd := s.redisClient.Get(ctx, key)
	if err := cmd.Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrKeyNotFound
		}
		return fmt.Errorf("get %s: %w", key, err)
	}

	if err := json.Unmarshal([]byte(cmd.Val()), dest); err != nil {
		return fmt.Errorf("unmarshal value of %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value interface{}) error {
	valueBytes, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal value of %s: %w", key, err)
	}

	if err := s.redisClient.Set(ctx, key, valueBytes, 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Remove(ctx context.Context, key string) error {
	if err := s.redisClient.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

// GetList reads a JSON list under key; a missing key yields an empty list.
func GetList[T any](ctx context.Context, s Store, key string) ([]T, error) {
	var list []T
	if err := s.Get(ctx, key, &list); err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return list, nil
}
