// cache/redis.go
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a Cache backed by Redis. All keys live under KeyPrefix so Clear
// never touches data it does not own.
type Redis struct {
	client    redis.UniversalClient
	keyPrefix string
}

// RedisConfig configures the Redis cache.
type RedisConfig struct {
	// Client, when set, is used as is and Address/Password/DB are ignored.
	Client redis.UniversalClient

	Address  string
	Password string
	DB       int

	// KeyPrefix is required; it scopes Clear.
	KeyPrefix string

	// DialTimeout also bounds the startup ping. Default: 5 seconds.
	DialTimeout time.Duration
}

// NewRedis connects and pings Redis.
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	if cfg.KeyPrefix == "" {
		return nil, errors.New("cache: redis key prefix required")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}

	client := cfg.Client
	if client == nil {
		if cfg.Address == "" {
			return nil, errors.New("cache: redis address required")
		}
		client = redis.NewClient(&redis.Options{
			Addr:         cfg.Address,
			Password:     cfg.Password,
			DB:           cfg.DB,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		})
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("cache: redis ping %s: %w", cfg.Address, err)
	}

	return &Redis{client: client, keyPrefix: cfg.KeyPrefix}, nil
}

func (r *Redis) key(k string) string {
	return r.keyPrefix + k
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return b, err
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, r.key(key), value, ttl).Err()
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.key(key)).Err()
}

// Clear deletes every key under the prefix using SCAN, so it does not
// block Redis on large keyspaces.
func (r *Redis) Clear(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, r.keyPrefix+"*", 100).Iterator()
	batch := make([]string, 0, 100)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := r.client.Del(ctx, batch...).Err(); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(batch) > 0 {
		return r.client.Del(ctx, batch...).Err()
	}
	return nil
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
