package metadata

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync"
)

// MemoryStore implements Store in process
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

func cleanKey(key string) string {
	return strings.TrimPrefix(path.Clean("/"+key), "/")
}

// Get implements Store
func (s *MemoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.data[cleanKey(key)]
	if !ok {
		return "", fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	return value, nil
}

// Put implements Store
func (s *MemoryStore) Put(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[cleanKey(key)] = value
	return nil
}

// Delete implements Store
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, cleanKey(key))
	return nil
}

// GetPrefix implements Store
func (s *MemoryStore) GetPrefix(_ context.Context, prefix string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p := cleanKey(prefix) + "/"
	result := make(map[string]string)
	for key, value := range s.data {
		if strings.HasPrefix(key, p) {
			result[key] = value
		}
	}
	return result, nil
}

// Close implements Store
func (s *MemoryStore) Close() error {
	return nil
}
