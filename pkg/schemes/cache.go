package schemes

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/platinummonkey/corpus/pkg/observability"
	"github.com/platinummonkey/corpus/pkg/storage"
)

// DefaultCacheSize bounds the number of cached scheme snapshots across all
// tenants. Each entry is one (tenant, revision, scheme) snapshot, so a
// tenant fully warmed at one revision costs len(IDs()) entries.
const DefaultCacheSize = 1024

// ConfigCache is the read-through cache for controlled-vocabulary tables.
// Entries are keyed by (namespace, config revision, scheme), so a revision
// bump makes every previously cached snapshot unreachable; stale snapshots
// are not purged eagerly, they simply age out of the bounded LRU. This is
// the only state in the core whose lifetime exceeds a request.
type ConfigCache struct {
	store   *Store
	cache   *lru.Cache[string, []Value]
	group   singleflight.Group
	metrics *observability.Metrics
}

// NewConfigCache builds a cache with the given entry bound (<= 0 uses
// DefaultCacheSize).
func NewConfigCache(store *Store, size int, metrics *observability.Metrics) (*ConfigCache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, []Value](size)
	if err != nil {
		return nil, fmt.Errorf("creating scheme cache: %w", err)
	}
	return &ConfigCache{store: store, cache: cache, metrics: metrics}, nil
}

// Get returns a scheme's values for a tenant at a specific config
// revision, loading from storage on the first request at that revision.
// Concurrent loads of the same key are collapsed into one query.
func (c *ConfigCache) Get(ctx context.Context, q storage.Queryer, namespace string, revision int64, schemeID string) ([]Value, error) {
	key := fmt.Sprintf("%s@%d/%s", namespace, revision, schemeID)
	if values, ok := c.cache.Get(key); ok {
		c.metrics.RecordCacheHit(namespace)
		return values, nil
	}
	c.metrics.RecordCacheMiss(namespace)

	result, err, _ := c.group.Do(key, func() (any, error) {
		if values, ok := c.cache.Get(key); ok {
			return values, nil
		}
		values, err := c.store.List(ctx, q, schemeID)
		if err != nil {
			return nil, err
		}
		c.cache.Add(key, values)
		return values, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]Value), nil
}

// Keys returns just the keys of a scheme, the common shape for validating
// an enumerated field.
func (c *ConfigCache) Keys(ctx context.Context, q storage.Queryer, namespace string, revision int64, schemeID string) ([]string, error) {
	values, err := c.Get(ctx, q, namespace, revision, schemeID)
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(values))
	for i, v := range values {
		keys[i] = v.Key
	}
	return keys, nil
}

// Len reports the number of cached snapshots, for tests and diagnostics.
func (c *ConfigCache) Len() int {
	return c.cache.Len()
}
