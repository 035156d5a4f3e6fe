package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisKey is the single key holding the scraping session token
const redisKey = "grid-front:scraping-session-token"

// RedisStore persists the token under one Redis key
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies it is reachable
func NewRedisStore(addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

// Load reads the persisted token; a missing key maps to ErrNotFound
func (r *RedisStore) Load(ctx context.Context) (string, error) {
	token, err := r.client.Get(ctx, redisKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("loading token from redis: %w", err)
	}
	if token == "" {
		return "", ErrNotFound
	}
	return token, nil
}

// Save writes the token with no expiry; the remote API decides validity
func (r *RedisStore) Save(ctx context.Context, token string) error {
	if err := r.client.Set(ctx, redisKey, token, 0).Err(); err != nil {
		return fmt.Errorf("saving token to redis: %w", err)
	}
	return nil
}

// Clear deletes the key; deleting a missing key is fine
func (r *RedisStore) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, redisKey).Err(); err != nil {
		return fmt.Errorf("clearing token from redis: %w", err)
	}
	return nil
}

// Close releases the Redis connection
func (r *RedisStore) Close() error {
	return r.client.Close()
}
