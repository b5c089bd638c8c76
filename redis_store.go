package warden

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSessionStorage keeps a session token in Redis under a per-user key,
// letting several processes share one sign-in
type RedisSessionStorage struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisSessionStorage stores the token of name. A zero ttl keeps it until cleared.
func NewRedisSessionStorage(client *redis.Client, name string, ttl time.Duration) *RedisSessionStorage {
	return &RedisSessionStorage{
		client: client,
		key:    "warden:session:" + name,
		ttl:    ttl,
	}
}

var _ SessionStorage = (*RedisSessionStorage)(nil)

// SaveToken replaces the stored token
func (s *RedisSessionStorage) SaveToken(ctx context.Context, token string) error {
	if err := s.client.Set(ctx, s.key, token, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// LoadToken returns the stored token
func (s *RedisSessionStorage) LoadToken(ctx context.Context) (string, error) {
	token, err := s.client.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNoSession
	}
	if err != nil {
		return "", fmt.Errorf("failed to load session: %w", err)
	}
	return token, nil
}

// ClearToken forgets the stored token
func (s *RedisSessionStorage) ClearToken(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}
