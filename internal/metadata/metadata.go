// Package metadata stores small JSON records shared between the API and
// training workers: training jobs and per-model status.
package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/pifses/mlpipeline/internal/config"
)

// ErrNotFound is returned by Get when the key does not exist
var ErrNotFound = errors.New("metadata key not found")

// Store is a flat key-value store. Keys are slash separated and relative to
// the store's prefix.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Put(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error

	// GetPrefix returns every key under prefix, keyed by its relative path
	GetPrefix(ctx context.Context, prefix string) (map[string]string, error)

	Close() error
}

// New creates the Store selected by cfg.Backend
func New(cfg config.MetadataConfig) (Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "memory":
		return NewMemoryStore(), nil
	case "etcd":
		return NewEtcdStore(cfg)
	default:
		return nil, fmt.Errorf("unsupported metadata backend: %s", cfg.Backend)
	}
}

// GetJSON reads key and unmarshals it into v
func GetJSON(ctx context.Context, s Store, key string, v interface{}) error {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return nil
}

// PutJSON marshals v and stores it under key
func PutJSON(ctx context.Context, s Store, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	return s.Put(ctx, key, string(data))
}
