package cache

import (
	"context"
	"errors"
	"time"

	"github.com/pifses/mlpipeline/internal/config"
	"github.com/redis/go-redis/v9"
)

// RedisCache implements ForecastCache on Redis strings with SETEX semantics.
// Every call is bounded by opTimeout.
type RedisCache struct {
	client    *redis.Client
	opTimeout time.Duration
}

// NewRedisCache creates a client from configuration. The connection is lazy;
// an unreachable server surfaces as ErrUnavailable on first use.
func NewRedisCache(cfg config.CacheConfig) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.OpTimeout,
		ReadTimeout:  cfg.OpTimeout,
		WriteTimeout: cfg.OpTimeout,
		MaxRetries:   1,
	})
	return NewRedisCacheWithClient(client, cfg.OpTimeout)
}

// NewRedisCacheWithClient wraps an existing client
func NewRedisCacheWithClient(client *redis.Client, opTimeout time.Duration) *RedisCache {
	if opTimeout <= 0 {
		opTimeout = 200 * time.Millisecond
	}
	return &RedisCache{client: client, opTimeout: opTimeout}
}

// Get implements ForecastCache
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, unavailable("get", key, err)
	}
	return data, true, nil
}

// Set implements ForecastCache
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return unavailable("set", key, err)
	}
	return nil
}

// Ping implements ForecastCache
func (c *RedisCache) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	if err := c.client.Ping(ctx).Err(); err != nil {
		return unavailable("ping", "", err)
	}
	return nil
}

// Close closes the underlying client
func (c *RedisCache) Close() error {
	return c.client.Close()
}
