// Package cache stores serialized forecast results with an expiry.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pifses/mlpipeline/internal/config"
)

// ErrUnavailable wraps any failure to reach the cache backend. Callers treat
// it as a miss on read and log it on write.
var ErrUnavailable = errors.New("forecast cache unavailable")

// ForecastCache is a key/value store with per-entry expiry
type ForecastCache interface {
	// Get returns the stored value and true, or false on a miss
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value under key for ttl
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Ping reports whether the backend is reachable
	Ping(ctx context.Context) error
	Close() error
}

// ForecastKey returns the cache key for a store/product forecast. Horizon
// and the confidence flag are deliberately not part of the key, so one entry
// answers every horizon for the pair until it expires.
func ForecastKey(storeID, productID string) string {
	return "forecast:" + storeID + ":" + productID
}

// New builds the cache selected by cfg.Backend
func New(cfg config.CacheConfig) (ForecastCache, error) {
	switch cfg.Backend {
	case "redis", "":
		return NewRedisCache(cfg), nil
	case "memory":
		return NewMemoryCache(), nil
	default:
		return nil, fmt.Errorf("unsupported cache backend: %s", cfg.Backend)
	}
}

func unavailable(op, key string, err error) error {
	return fmt.Errorf("%w: %s %s: %v", ErrUnavailable, op, key, err)
}
