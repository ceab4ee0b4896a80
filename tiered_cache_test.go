package tiercache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nearcache/tiercache/globalstore/memstore"
)

func newTestCache(t *testing.T, store *memstore.Store, nodeID string) *TieredCache {
	t.Helper()
	cfg := Config{
		NodeID:      nodeID,
		NearCache:   NearCacheConfig{SlotCount: 16},
		ChangeFeed:  ChangeFeedConfig{PollIntervalMillis: 20, CheckpointPath: "", SelfEchoWindow: time.Second},
		GlobalStore: GlobalStoreConfig{},
	}
	cache, err := New(cfg, memstore.NewClient(store, nodeID))
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close(context.Background()) })
	return cache
}

func TestTieredCache_S1_MissThenHit(t *testing.T) {
	ctx := context.Background()
	store := memstore.New(1)
	cache := newTestCache(t, store, "node-a")

	_, found, err := cache.Get(ctx, "a")
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, cache.Put(ctx, "a", []byte("1")))

	v, found, err := cache.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("1"), v)
}

func TestTieredCache_S2_CrossNodeInvalidation(t *testing.T) {
	ctx := context.Background()
	store := memstore.New(1)
	nodeA := newTestCache(t, store, "node-a")
	nodeB := newTestCache(t, store, "node-b")

	require.NoError(t, nodeA.Put(ctx, "k", []byte("1")))

	v, found, err := nodeB.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("1"), v)

	require.NoError(t, nodeA.Put(ctx, "k", []byte("2")))

	require.Eventually(t, func() bool {
		v, found, err := nodeB.Get(ctx, "k")
		return err == nil && found && string(v) == "2"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestTieredCache_S3_RaceAdmitVsInvalidate(t *testing.T) {
	ctx := context.Background()
	store := memstore.New(1)
	nodeA := newTestCache(t, store, "node-a")
	nodeB := newTestCache(t, store, "node-b")

	require.NoError(t, nodeA.Put(ctx, "k", []byte("1")))

	blockUntilInvalidated := make(chan struct{})
	invalidated := make(chan struct{})
	nodeB.afterFetchHook = func(key string) {
		if key != "k" {
			return
		}
		close(blockUntilInvalidated)
		<-invalidated
	}

	var wg sync.WaitGroup
	wg.Add(1)
	var gotValue []byte
	var gotFound bool
	go func() {
		defer wg.Done()
		v, found, err := nodeB.Get(ctx, "k")
		require.NoError(t, err)
		gotValue, gotFound = v, found
	}()

	<-blockUntilInvalidated
	nodeB.invalidateRemote("k", "MODIFY")
	close(invalidated)
	wg.Wait()

	require.True(t, gotFound, "the in-flight fetch still reports the value it read")
	require.Equal(t, []byte("1"), gotValue)

	_, found := nodeB.near.Get("k")
	require.False(t, found, "near-cache must not retain a value admitted racing an invalidation")
}

func TestTieredCache_S4_ReplaceSemantics(t *testing.T) {
	ctx := context.Background()
	store := memstore.New(1)
	cache := newTestCache(t, store, "node-a")

	require.NoError(t, cache.Put(ctx, "k", []byte("x")))

	ok, err := cache.Replace(ctx, "k", []byte("y"), []byte("z"))
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = cache.Replace(ctx, "k", []byte("x"), []byte("z"))
	require.NoError(t, err)
	require.True(t, ok)

	v, found, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("z"), v)
}

func TestTieredCache_S5_ClearUnderLoad(t *testing.T) {
	ctx := context.Background()
	store := memstore.New(1)
	cache := newTestCache(t, store, "node-a")

	for i := 0; i < 50; i++ {
		require.NoError(t, cache.Put(ctx, "k", []byte("v")))
	}

	require.NoError(t, cache.Clear(ctx))

	_, found, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, cache.Put(ctx, "after", []byte("1")))
	v, found, err := cache.Get(ctx, "after")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("1"), v)
}

func TestTieredCache_S6_NullPutEqualsRemove(t *testing.T) {
	ctx := context.Background()
	store := memstore.New(1)
	cache := newTestCache(t, store, "node-a")

	require.NoError(t, cache.Put(ctx, "k", []byte("1")))
	require.NoError(t, cache.Put(ctx, "k", nil))

	_, found, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, found)
}

func TestTieredCache_RemoveIdempotent(t *testing.T) {
	ctx := context.Background()
	store := memstore.New(1)
	cache := newTestCache(t, store, "node-a")

	require.NoError(t, cache.Put(ctx, "k", []byte("1")))
	require.NoError(t, cache.Remove(ctx, "k"))
	require.NoError(t, cache.Remove(ctx, "k"))

	_, found, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, found)
}

func TestTieredCache_EmptyKeyRejected(t *testing.T) {
	ctx := context.Background()
	store := memstore.New(1)
	cache := newTestCache(t, store, "node-a")

	_, _, err := cache.Get(ctx, "")
	require.True(t, IsEmptyKey(err))

	err = cache.Put(ctx, "", []byte("v"))
	require.True(t, IsEmptyKey(err))
}

func TestTieredCache_OperationsRejectedAfterClose(t *testing.T) {
	ctx := context.Background()
	store := memstore.New(1)
	cfg := Config{
		NodeID:     "node-a",
		NearCache:  NearCacheConfig{SlotCount: 16},
		ChangeFeed: ChangeFeedConfig{PollIntervalMillis: 20, CheckpointPath: "", SelfEchoWindow: time.Second},
	}
	cache, err := New(cfg, memstore.NewClient(store, "node-a"))
	require.NoError(t, err)
	require.NoError(t, cache.Close(ctx))

	_, _, err = cache.Get(ctx, "k")
	require.True(t, IsClosed(err))

	err = cache.Put(ctx, "k", []byte("v"))
	require.True(t, IsClosed(err))

	err = cache.Remove(ctx, "k")
	require.True(t, IsClosed(err))

	err = cache.Clear(ctx)
	require.True(t, IsClosed(err))

	_, err = cache.Replace(ctx, "k", nil, []byte("v"))
	require.True(t, IsClosed(err))

	// Close itself remains idempotent.
	require.NoError(t, cache.Close(ctx))
}

func TestTieredCache_TypeAndConsistency(t *testing.T) {
	store := memstore.New(1)
	cache := newTestCache(t, store, "node-a")

	require.Equal(t, TIERED, cache.Type())
	require.Equal(t, EVENTUAL, cache.ConsistencyModel())
}
