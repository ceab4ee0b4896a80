package memstore

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nearcache/tiercache/globalstore"
)

func TestClient_PutGetRemove(t *testing.T) {
	ctx := context.Background()
	store := New(2)
	client := NewClient(store, "node-a")

	_, found, err := client.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, client.Put(ctx, "k", []byte("v1")))
	v, found, err := client.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("v1"), v)

	require.NoError(t, client.Remove(ctx, "k"))
	_, found, err = client.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, found)
}

func TestClient_Replace(t *testing.T) {
	ctx := context.Background()
	store := New(2)
	client := NewClient(store, "node-a")

	require.NoError(t, client.Put(ctx, "k", []byte("x")))

	ok, err := client.Replace(ctx, "k", []byte("y"), []byte("z"))
	require.NoError(t, err)
	require.False(t, ok, "replace with wrong old value must fail")

	ok, err = client.Replace(ctx, "k", []byte("x"), []byte("z"))
	require.NoError(t, err)
	require.True(t, ok)

	v, _, err := client.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("z"), v)
}

func TestClient_PollReflectsOtherNodesWrites(t *testing.T) {
	ctx := context.Background()
	store := New(1)
	nodeA := NewClient(store, "node-a")
	nodeB := NewClient(store, "node-b")

	shards, err := nodeB.Shards(ctx)
	require.NoError(t, err)
	require.Len(t, shards, 1)

	cursor, err := nodeB.NewCursor(ctx, shards[0], globalstore.TrimHorizon)
	require.NoError(t, err)

	require.NoError(t, nodeA.Put(ctx, "k", []byte("1")))

	records, next, err := nodeB.Poll(ctx, shards[0], cursor)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, globalstore.EventInsert, records[0].Kind)
	require.NotEqual(t, cursor, next)

	records, _, err = nodeB.Poll(ctx, shards[0], next)
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestClient_SkipHistorySeesOnlyFutureRecords(t *testing.T) {
	ctx := context.Background()
	store := New(1)
	nodeA := NewClient(store, "node-a")
	nodeB := NewClient(store, "node-b")

	require.NoError(t, nodeA.Put(ctx, "before", []byte("1")))

	shards, _ := nodeB.Shards(ctx)
	cursor, err := nodeB.NewCursor(ctx, shards[0], globalstore.SkipHistory)
	require.NoError(t, err)

	records, _, err := nodeB.Poll(ctx, shards[0], cursor)
	require.NoError(t, err)
	require.Empty(t, records, "skip-history cursor must not see pre-existing records")

	require.NoError(t, nodeA.Put(ctx, "after", []byte("2")))
	records, _, err = nodeB.Poll(ctx, shards[0], cursor)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "after", records[0].Key)
}

func TestClient_ClearEmitsRemoveRecordsForEveryKey(t *testing.T) {
	ctx := context.Background()
	store := New(2)
	nodeA := NewClient(store, "node-a")
	nodeB := NewClient(store, "node-b")

	require.NoError(t, nodeA.Put(ctx, "k1", []byte("v1")))
	require.NoError(t, nodeA.Put(ctx, "k2", []byte("v2")))

	var got []globalstore.ChangeRecord
	var mu sync.Mutex
	unregister := nodeB.RegisterChangeListener(func(rec globalstore.ChangeRecord) {
		mu.Lock()
		got = append(got, rec)
		mu.Unlock()
	})
	defer unregister()

	require.NoError(t, nodeA.Clear(ctx))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 2, "Clear must emit a REMOVE record per cleared key")
	for _, rec := range got {
		require.Equal(t, globalstore.EventRemove, rec.Kind)
		require.Contains(t, []string{"k1", "k2"}, rec.Key)
	}

	_, found, err := nodeA.Get(ctx, "k1")
	require.NoError(t, err)
	require.False(t, found)
}

func TestClient_RegisterChangeListener(t *testing.T) {
	ctx := context.Background()
	store := New(1)
	nodeA := NewClient(store, "node-a")
	nodeB := NewClient(store, "node-b")

	var got []globalstore.ChangeRecord
	unregister := nodeB.RegisterChangeListener(func(rec globalstore.ChangeRecord) {
		got = append(got, rec)
	})
	defer unregister()

	require.NoError(t, nodeA.Put(ctx, "k", []byte("v")))
	require.Len(t, got, 1)

	unregister()
	require.NoError(t, nodeA.Put(ctx, "k2", []byte("v2")))
	require.Len(t, got, 1, "no further records should arrive after unregister")
}
