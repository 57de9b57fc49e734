package cache

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "directions:"

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host       string `toml:"host"`
	Port       int    `toml:"port"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// NewRedisClient connects to Redis and verifies the connection
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	opts := &redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	}

	// Enable TLS if configured (required for hosted Redis)
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}

// RedisBackend stores cache entries as Redis strings
type RedisBackend struct {
	client *redis.Client
	// expiry is a housekeeping expiration applied on write; freshness is
	// still decided by the cache TTL on read. Zero means no expiration.
	expiry time.Duration
}

// NewRedisBackend wraps a Redis client as a cache backend
func NewRedisBackend(client *redis.Client, expiry time.Duration) *RedisBackend {
	return &RedisBackend{client: client, expiry: expiry}
}

// Get retrieves a raw entry
func (b *RedisBackend) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := b.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Set writes a raw entry, replacing any previous value
func (b *RedisBackend) Set(ctx context.Context, key string, data []byte) error {
	return b.client.Set(ctx, keyPrefix+key, data, b.expiry).Err()
}

// Delete removes an entry
func (b *RedisBackend) Delete(ctx context.Context, key string) error {
	return b.client.Del(ctx, keyPrefix+key).Err()
}

// HealthCheck performs a health check on the Redis connection
func HealthCheck(ctx context.Context, client *redis.Client) error {
	if client == nil {
		return fmt.Errorf("Redis client not initialized")
	}

	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("Redis ping failed: %w", err)
	}

	return nil
}
