// global_cache.go: GLOBAL tier — talks directly to the authoritative store,
// bypassing any near-cache.
package tiercache

import (
	"context"

	"github.com/nearcache/tiercache/globalstore"
)

// GlobalCache is a thin Cache adapter over a globalstore.Client. Every
// operation round-trips to the authoritative store, so reads are always
// strongly consistent but pay the full backend latency — the tradeoff
// TieredCache's near-cache exists to avoid on the hot path.
type GlobalCache struct {
	backend globalstore.Client
}

// NewGlobalCache wraps backend as a Cache.
func NewGlobalCache(backend globalstore.Client) *GlobalCache {
	return &GlobalCache{backend: backend}
}

var _ Cache = (*GlobalCache)(nil)

func (c *GlobalCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return c.backend.Get(ctx, key)
}

// Refresh is identical to Get: every read already goes to the authoritative
// store, so there is no near-cache entry to bypass.
func (c *GlobalCache) Refresh(ctx context.Context, key string) ([]byte, bool, error) {
	return c.backend.Get(ctx, key)
}

func (c *GlobalCache) Put(ctx context.Context, key string, value []byte) error {
	if value == nil {
		return c.backend.Remove(ctx, key)
	}
	return c.backend.Put(ctx, key, value)
}

func (c *GlobalCache) Replace(ctx context.Context, key string, old, new []byte) (bool, error) {
	return c.backend.Replace(ctx, key, old, new)
}

func (c *GlobalCache) Remove(ctx context.Context, key string) error {
	return c.backend.Remove(ctx, key)
}

func (c *GlobalCache) Clear(ctx context.Context) error {
	return c.backend.Clear(ctx)
}

func (c *GlobalCache) Type() CacheType { return GLOBAL }

func (c *GlobalCache) ConsistencyModel() ConsistencyModel { return STRONG }
