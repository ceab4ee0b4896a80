// local_cache.go: LOCAL tier — a standalone near-cache with no authoritative
// store behind it.
package tiercache

import (
	"context"

	"github.com/nearcache/tiercache/localstore"
)

// LocalCache is a Cache backed only by an in-process map. There is no
// authoritative store and no change feed, so every operation is immediately
// and strongly consistent with itself — there is nothing else to be
// consistent with.
type LocalCache struct {
	store *localstore.Store
}

// NewLocalCache creates an empty LocalCache.
func NewLocalCache() *LocalCache {
	return &LocalCache{store: localstore.New()}
}

var _ Cache = (*LocalCache)(nil)

func (c *LocalCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, found := c.store.Get(key)
	return v, found, nil
}

// Refresh has nothing to re-fetch from for a LOCAL cache; it behaves
// identically to Get.
func (c *LocalCache) Refresh(ctx context.Context, key string) ([]byte, bool, error) {
	return c.Get(ctx, key)
}

func (c *LocalCache) Put(ctx context.Context, key string, value []byte) error {
	if value == nil {
		c.store.Remove(key)
		return nil
	}
	c.store.Put(key, value)
	return nil
}

func (c *LocalCache) Replace(ctx context.Context, key string, old, new []byte) (bool, error) {
	return c.store.Replace(key, old, new), nil
}

func (c *LocalCache) Remove(ctx context.Context, key string) error {
	c.store.Remove(key)
	return nil
}

func (c *LocalCache) Clear(ctx context.Context) error {
	c.store.Clear()
	return nil
}

func (c *LocalCache) Type() CacheType { return LOCAL }

func (c *LocalCache) ConsistencyModel() ConsistencyModel { return STRONG }
