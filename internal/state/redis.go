package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "ml-backend:project:"

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// NewRedisStoreFromURL connects to the redis instance at url, e.g.
// redis://localhost:6379/0, and verifies the connection.
func NewRedisStoreFromURL(ctx context.Context, url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("error connecting to redis: %w", err)
	}

	return NewRedisStore(client), nil
}

func projectHash(projectId int) string {
	return fmt.Sprintf("%s%d", redisKeyPrefix, projectId)
}

func (s *RedisStore) Get(ctx context.Context, projectId int, key string) (string, error) {
	value, err := s.client.HGet(ctx, projectHash(projectId), key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("error reading state %q for project %d: %w", key, projectId, err)
	}
	return value, nil
}

func (s *RedisStore) Set(ctx context.Context, projectId int, key, value string) error {
	if err := s.client.HSet(ctx, projectHash(projectId), key, value).Err(); err != nil {
		return fmt.Errorf("error writing state %q for project %d: %w", key, projectId, err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
