package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSlot implements Slot as a single Redis string key with no TTL.
type RedisSlot struct {
	client *redis.Client
	key    string
}

// RedisOptions configures NewRedisSlot.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Key      string
}

// NewRedisSlot connects to Redis and verifies the connection.
func NewRedisSlot(ctx context.Context, opts RedisOptions) (*RedisSlot, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("storage: connect redis %s: %w", opts.Addr, err)
	}
	return newRedisSlot(client, opts.Key), nil
}

func newRedisSlot(client *redis.Client, key string) *RedisSlot {
	if key == "" {
		key = DefaultKey
	}
	return &RedisSlot{client: client, key: key}
}

// Name returns the Redis key.
func (r *RedisSlot) Name() string { return "redis:" + r.key }

// Load returns the key's value, or nil when the key does not exist.
func (r *RedisSlot) Load(ctx context.Context) ([]byte, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: get %s: %w", r.key, err)
	}
	return data, nil
}

// Save overwrites the key.
func (r *RedisSlot) Save(ctx context.Context, data []byte) error {
	if err := r.client.Set(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("storage: set %s: %w", r.key, err)
	}
	return nil
}

// Close closes the client.
func (r *RedisSlot) Close() error {
	return r.client.Close()
}
