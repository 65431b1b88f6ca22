package metadata

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/pifses/mlpipeline/internal/config"
	clientv3 "go.etcd.io/etcd/client/v3"
)

const etcdCacheTTL = 5 * time.Second

// EtcdStore implements Store on etcd. Reads of single keys go through a
// short KVCache; writes and deletes update the cache in place.
type EtcdStore struct {
	client *clientv3.Client
	prefix string
	cache  *KVCache
}

// NewEtcdStore connects to the endpoints in cfg
func NewEtcdStore(cfg config.MetadataConfig) (*EtcdStore, error) {
	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}

	client, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: dialTimeout,
		Username:    cfg.Username,
		Password:    cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to etcd: %w", err)
	}

	return newEtcdStoreWithClient(client, cfg.Prefix), nil
}

func newEtcdStoreWithClient(client *clientv3.Client, prefix string) *EtcdStore {
	if prefix == "" {
		prefix = "/mlpipeline"
	}
	return &EtcdStore{
		client: client,
		prefix: path.Clean("/" + prefix),
		cache:  NewKVCache(etcdCacheTTL),
	}
}

func (s *EtcdStore) fullKey(key string) string {
	return path.Join(s.prefix, key)
}

// Get implements Store
func (s *EtcdStore) Get(ctx context.Context, key string) (string, error) {
	full := s.fullKey(key)
	if cached, ok := s.cache.Get(full); ok {
		return cached, nil
	}

	resp, err := s.client.Get(ctx, full)
	if err != nil {
		return "", fmt.Errorf("failed to get %s from etcd: %w", key, err)
	}
	if len(resp.Kvs) == 0 {
		return "", fmt.Errorf("%s: %w", key, ErrNotFound)
	}

	value := string(resp.Kvs[0].Value)
	s.cache.Set(full, value)
	return value, nil
}

// Put implements Store
func (s *EtcdStore) Put(ctx context.Context, key, value string) error {
	full := s.fullKey(key)
	if _, err := s.client.Put(ctx, full, value); err != nil {
		s.cache.Delete(full)
		return fmt.Errorf("failed to put %s to etcd: %w", key, err)
	}
	s.cache.Set(full, value)
	return nil
}

// Delete implements Store. Deleting a missing key is not an error.
func (s *EtcdStore) Delete(ctx context.Context, key string) error {
	full := s.fullKey(key)
	s.cache.Delete(full)
	if _, err := s.client.Delete(ctx, full); err != nil {
		return fmt.Errorf("failed to delete %s from etcd: %w", key, err)
	}
	return nil
}

// GetPrefix implements Store. It always reads through to etcd.
func (s *EtcdStore) GetPrefix(ctx context.Context, prefix string) (map[string]string, error) {
	full := s.fullKey(prefix) + "/"
	resp, err := s.client.Get(ctx, full, clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("failed to list %s from etcd: %w", prefix, err)
	}

	result := make(map[string]string, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		rel := strings.TrimPrefix(string(kv.Key), s.prefix+"/")
		result[rel] = string(kv.Value)
	}
	return result, nil
}

// Close stops the cache and closes the client
func (s *EtcdStore) Close() error {
	s.cache.Stop()
	return s.client.Close()
}
