package history

import (
	"context"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pifses/mlpipeline/internal/analytics"
)

type cachedEntry struct {
	series    analytics.Series
	expiresAt time.Time
}

// Cached fronts a Source with a size-bounded LRU whose entries expire after
// a TTL. Callers get a copy of the cached series.
type Cached struct {
	source Source
	cache  *lru.Cache[Key, cachedEntry]
	ttl    time.Duration
	now    func() time.Time

	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewCached wraps source. A zero ttl keeps entries until evicted.
func NewCached(source Source, size int, ttl time.Duration) (*Cached, error) {
	cache, err := lru.New[Key, cachedEntry](size)
	if err != nil {
		return nil, err
	}
	return &Cached{
		source: source,
		cache:  cache,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// Series implements Source
func (c *Cached) Series(ctx context.Context, storeID, productID string, days int) (analytics.Series, error) {
	key := Key{StoreID: storeID, ProductID: productID, Days: days}

	if entry, ok := c.cache.Get(key); ok {
		if c.ttl == 0 || c.now().Before(entry.expiresAt) {
			c.hits.Add(1)
			return entry.series.Clone(), nil
		}
		c.cache.Remove(key)
	}
	c.misses.Add(1)

	series, err := c.source.Series(ctx, storeID, productID, days)
	if err != nil {
		return nil, err
	}

	c.cache.Add(key, cachedEntry{
		series:    series.Clone(),
		expiresAt: c.now().Add(c.ttl),
	})
	return series, nil
}

// Purge drops every cached series
func (c *Cached) Purge() {
	c.cache.Purge()
}

// Stats returns hit and miss counts
func (c *Cached) Stats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}
