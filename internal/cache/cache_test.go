package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pifses/mlpipeline/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := NewRedisCacheWithClient(client, 500*time.Millisecond)
	t.Cleanup(func() { _ = c.Close() })
	return mr, c
}

func TestForecastKey(t *testing.T) {
	assert.Equal(t, "forecast:S001:P042", ForecastKey("S001", "P042"))
}

func TestRedisCache_RoundTripAndTTL(t *testing.T) {
	mr, c := setupTestRedis(t)
	ctx := context.Background()
	key := ForecastKey("S1", "P1")
	payload := []byte(`{"store_id":"S1","predictions":[1,2,3]}`)

	_, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok, "empty cache must miss")

	require.NoError(t, c.Set(ctx, key, payload, 3600*time.Second))
	assert.Equal(t, 3600*time.Second, mr.TTL(key))

	got, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, payload, got)

	mr.FastForward(3599 * time.Second)
	_, ok, err = c.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok, "entry must survive until TTL")

	mr.FastForward(2 * time.Second)
	_, ok, err = c.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok, "entry must expire after TTL")
}

func TestRedisCache_Unavailable(t *testing.T) {
	mr, c := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Ping(ctx))
	mr.Close()

	_, ok, err := c.Get(ctx, "forecast:S1:P1")
	assert.False(t, ok)
	assert.True(t, errors.Is(err, ErrUnavailable), "got %v", err)

	err = c.Set(ctx, "forecast:S1:P1", []byte("{}"), time.Hour)
	assert.ErrorIs(t, err, ErrUnavailable)

	assert.ErrorIs(t, c.Ping(ctx), ErrUnavailable)
}

func TestRedisCache_BoundedTimeout(t *testing.T) {
	mr, c := setupTestRedis(t)
	mr.SetError("LOADING server is loading")

	start := time.Now()
	_, _, err := c.Get(context.Background(), "forecast:S1:P1")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestMemoryCache_RoundTripAndTTL(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	ctx := context.Background()
	payload := []byte(`{"horizon":14}`)
	require.NoError(t, c.Set(ctx, "k", payload, time.Hour))

	// Stored bytes are isolated from the caller's slice
	payload[0] = 'X'
	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `{"horizon":14}`, string(got))

	now = now.Add(time.Hour)
	_, ok, _ = c.Get(ctx, "k")
	assert.False(t, ok, "entry expires exactly at TTL")

	c.evictExpired()
	assert.Equal(t, 0, c.Len())
}

func TestMemoryCache_CloseIdempotent(t *testing.T) {
	c := NewMemoryCache()
	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())
	assert.NoError(t, c.Ping(context.Background()))
}

func TestNew(t *testing.T) {
	cfg := config.DefaultConfig().Cache

	cfg.Backend = "memory"
	c, err := New(cfg)
	require.NoError(t, err)
	assert.IsType(t, &MemoryCache{}, c)
	_ = c.Close()

	cfg.Backend = "redis"
	c, err = New(cfg)
	require.NoError(t, err)
	assert.IsType(t, &RedisCache{}, c)
	_ = c.Close()

	cfg.Backend = "memcached"
	_, err = New(cfg)
	assert.Error(t, err)
}
