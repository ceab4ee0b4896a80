package changefeed

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nearcache/tiercache/globalstore/memstore"
)

func TestConsumer_DispatchesRemoteWritesNotSelfEcho(t *testing.T) {
	store := memstore.New(1)
	nodeA := memstore.NewClient(store, "node-a")
	nodeB := memstore.NewClient(store, "node-b")

	var mu sync.Mutex
	var inserted []string
	c := New(nodeB, Handlers{
		OnInsert: func(key string, newValue []byte) {
			mu.Lock()
			inserted = append(inserted, key)
			mu.Unlock()
		},
		OnUpdate: func(string, []byte, []byte) {},
		OnDelete: func(string) {},
	}, Config{NodeID: "node-b", PollInterval: 10 * time.Millisecond})
	defer c.Close(context.Background())

	c.tick() // first tick: mint skip-history cursors before any write

	require.NoError(t, nodeA.Put(context.Background(), "k", []byte("v")))

	c.tick()

	mu.Lock()
	defer mu.Unlock()
	require.Contains(t, inserted, "k")
}

func TestConsumer_SuppressesOwnWrites(t *testing.T) {
	store := memstore.New(1)
	nodeA := memstore.NewClient(store, "node-a")

	var mu sync.Mutex
	var inserted []string
	c := New(nodeA, Handlers{
		OnInsert: func(key string, newValue []byte) {
			mu.Lock()
			inserted = append(inserted, key)
			mu.Unlock()
		},
		OnUpdate: func(string, []byte, []byte) {},
		OnDelete: func(string) {},
	}, Config{NodeID: "node-a", PollInterval: 10 * time.Millisecond})
	defer c.Close(context.Background())

	c.tick() // first tick: mint skip-history cursors before any write

	require.NoError(t, nodeA.Put(context.Background(), "k", []byte("v")))
	c.tick()

	mu.Lock()
	defer mu.Unlock()
	require.Empty(t, inserted, "a node's own writes must not be dispatched back to it")
}

func TestConsumer_SelfEchoDeleteSuppressed(t *testing.T) {
	store := memstore.New(1)
	nodeA := memstore.NewClient(store, "node-a")

	var mu sync.Mutex
	var deleted []string
	c := New(nodeA, Handlers{
		OnInsert: func(string, []byte)          {},
		OnUpdate: func(string, []byte, []byte) {},
		OnDelete: func(key string) {
			mu.Lock()
			deleted = append(deleted, key)
			mu.Unlock()
		},
	}, Config{NodeID: "node-a", PollInterval: 10 * time.Millisecond})
	defer c.Close(context.Background())

	require.NoError(t, nodeA.Put(context.Background(), "k", []byte("v")))
	c.tick() // advance cursor past the insert

	c.NoteLocalRemoval("k")
	require.NoError(t, nodeA.Remove(context.Background(), "k"))
	c.tick()

	mu.Lock()
	defer mu.Unlock()
	require.Empty(t, deleted, "a delete this node just performed locally must be suppressed as a self-echo")
}

func TestConsumer_CheckspointsAndResumes(t *testing.T) {
	dir := t.TempDir()
	checkpointPath := filepath.Join(dir, "cursor.json")

	store := memstore.New(1)
	nodeA := memstore.NewClient(store, "node-a")
	nodeB := memstore.NewClient(store, "node-b")

	require.NoError(t, nodeA.Put(context.Background(), "before", []byte("1")))

	c1 := New(nodeB, Handlers{
		OnInsert: func(string, []byte)          {},
		OnUpdate: func(string, []byte, []byte) {},
		OnDelete: func(string)                 {},
	}, Config{NodeID: "node-b", CheckpointPath: checkpointPath})
	c1.tick() // skip-history: advances past "before" without a prior checkpoint
	c1.persistCheckpoint()

	var mu sync.Mutex
	var inserted []string
	c2 := New(nodeB, Handlers{
		OnInsert: func(key string, newValue []byte) {
			mu.Lock()
			inserted = append(inserted, key)
			mu.Unlock()
		},
		OnUpdate: func(string, []byte, []byte) {},
		OnDelete: func(string)                 {},
	}, Config{NodeID: "node-b", CheckpointPath: checkpointPath})
	defer c2.Close(context.Background())

	require.NoError(t, nodeA.Put(context.Background(), "after", []byte("2")))
	c2.tick()

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"after"}, inserted, "resumed consumer must not replay records seen before the checkpoint")
}
