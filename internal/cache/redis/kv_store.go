package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/zoomiesmarket/zoomies/internal/domain"
)

// KVStore implements domain.KVStore on plain Redis strings. A zero ttl keeps
// keys until they are deleted.
type KVStore struct {
	c   *Client
	ttl time.Duration
}

// NewKVStore creates a KVStore backed by the given Client.
func NewKVStore(c *Client, ttl time.Duration) *KVStore {
	return &KVStore{c: c, ttl: ttl}
}

func kvKey(c *Client, key string) string {
	return c.Key("kv:" + key)
}

// Get returns domain.ErrNotFound on a miss.
func (s *KVStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.c.rdb.Get(ctx, kvKey(s.c, key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("redis: get %s: %w", key, err)
	}
	return data, nil
}

func (s *KVStore) Set(ctx context.Context, key string, value []byte) error {
	if err := s.c.rdb.Set(ctx, kvKey(s.c, key), value, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set %s: %w", key, err)
	}
	return nil
}

func (s *KVStore) Delete(ctx context.Context, key string) error {
	if err := s.c.rdb.Del(ctx, kvKey(s.c, key)).Err(); err != nil {
		return fmt.Errorf("redis: delete %s: %w", key, err)
	}
	return nil
}

var _ domain.KVStore = (*KVStore)(nil)
