package aeregistry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the hash that RedisRegistry keeps its entries in.
const DefaultRedisKey = "netdicom:aes"

// RedisRegistry keeps the table in a Redis hash, so that several providers
// can share it. Field names are AE titles; values are "host:port".
type RedisRegistry struct {
	client *redis.Client
	key    string
}

// NewRedisRegistry connects to the Redis server at addr. An empty key selects
// DefaultRedisKey.
func NewRedisRegistry(addr, password string, db int, key string) (*RedisRegistry, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("aeregistry: failed to connect to Redis: %w", err)
	}
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisRegistry{client: client, key: key}, nil
}

// Resolve implements Resolver.
func (r *RedisRegistry) Resolve(ctx context.Context, aeTitle string) (string, error) {
	addr, err := r.client.HGet(ctx, r.key, aeTitle).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("%w: %q", ErrUnknownAE, aeTitle)
	}
	if err != nil {
		return "", fmt.Errorf("aeregistry: resolve %q: %w", aeTitle, err)
	}
	return addr, nil
}

// Set adds or replaces an entry.
func (r *RedisRegistry) Set(ctx context.Context, aeTitle, addr string) error {
	if err := validate(aeTitle, addr); err != nil {
		return err
	}
	if err := r.client.HSet(ctx, r.key, aeTitle, addr).Err(); err != nil {
		return fmt.Errorf("aeregistry: set %q: %w", aeTitle, err)
	}
	return nil
}

// Delete removes an entry, if any.
func (r *RedisRegistry) Delete(ctx context.Context, aeTitle string) error {
	if err := r.client.HDel(ctx, r.key, aeTitle).Err(); err != nil {
		return fmt.Errorf("aeregistry: delete %q: %w", aeTitle, err)
	}
	return nil
}

// Close closes the Redis connection.
func (r *RedisRegistry) Close() error {
	return r.client.Close()
}
