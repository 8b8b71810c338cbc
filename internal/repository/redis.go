package repository

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// eventTTL bounds how long a processed gateway event is remembered.
const eventTTL = 72 * time.Hour

// RedisStore keeps short-lived coordination state: webhook dedupe keys and job locks.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	log.Println("✅ Redis connected")
	return &RedisStore{client: client}, nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// MarkProcessed stores key and reports whether it was new.
func (s *RedisStore) MarkProcessed(ctx context.Context, key string) (bool, error) {
	ok, err := s.client.SetNX(ctx, "event:"+key, time.Now().Unix(), eventTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark event processed: %w", err)
	}
	return ok, nil
}

// Forget removes key so a failed event can be delivered again.
func (s *RedisStore) Forget(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, "event:"+key).Err(); err != nil {
		return fmt.Errorf("failed to forget event: %w", err)
	}
	return nil
}

// TryLock takes a named lock for ttl. It reports false if another holder has it.
func (s *RedisStore) TryLock(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, "lock:"+name, time.Now().Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to take lock %s: %w", name, err)
	}
	return ok, nil
}

// Unlock releases a named lock.
func (s *RedisStore) Unlock(ctx context.Context, name string) error {
	return s.client.Del(ctx, "lock:"+name).Err()
}

// Ping checks the connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
