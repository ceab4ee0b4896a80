// Package memstore is an in-process reference implementation of
// globalstore.Client: a mutex-guarded map standing in for a real managed KV
// store, plus a sharded, append-only change log standing in for its change
// stream. It exists to drive tests and the bundled examples; it is not a
// substitute for a real backend in production.
package memstore

import (
	"bytes"
	"context"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/agilira/go-timecache"
	"github.com/cespare/xxhash/v2"

	"github.com/nearcache/tiercache/globalstore"
	"github.com/nearcache/tiercache/wrapper"
)

// Store is the shared backing memory one or more Client instances read and
// write. Multiple Clients (one per simulated node) can point at the same
// Store to exercise cross-node change propagation without a real network.
type Store struct {
	shardCount int

	dataMu sync.RWMutex
	data   map[string][]byte // wrapper-encoded

	shards      []*shard
	listenerSeq atomic.Int64
}

type shard struct {
	mu        sync.Mutex
	log       []globalstore.ChangeRecord
	id        string
	listeners map[int]globalstore.ChangeListener
}

// New creates a Store with shardCount change-stream shards. shardCount must
// be > 0; 4 is a reasonable default for tests and demos.
func New(shardCount int) *Store {
	if shardCount <= 0 {
		shardCount = 4
	}
	s := &Store{
		shardCount: shardCount,
		data:       make(map[string][]byte),
		shards:     make([]*shard, shardCount),
	}
	for i := range s.shards {
		s.shards[i] = &shard{id: shardIDFor(i), listeners: make(map[int]globalstore.ChangeListener)}
	}
	return s
}

func shardIDFor(i int) string {
	return "shard-" + strconv.Itoa(i)
}

func (s *Store) shardForKey(key string) *shard {
	h := xxhash.Sum64String(key)
	return s.shards[h%uint64(s.shardCount)]
}

func (s *Store) shardByID(id string) (*shard, bool) {
	for _, sh := range s.shards {
		if sh.id == id {
			return sh, true
		}
	}
	return nil, false
}

func (s *Store) appendAndNotify(sh *shard, rec globalstore.ChangeRecord) {
	rec.Timestamp = timecache.CachedTimeNano()

	sh.mu.Lock()
	sh.log = append(sh.log, rec)
	listeners := make([]globalstore.ChangeListener, 0, len(sh.listeners))
	for _, l := range sh.listeners {
		listeners = append(listeners, l)
	}
	sh.mu.Unlock()

	for _, l := range listeners {
		l(rec)
	}
}

// Client is a globalstore.Client bound to one node's id. All writes it
// performs are tagged with that id so a ChangeFeedConsumer reading them back
// can recognize the node's own echoes.
type Client struct {
	store  *Store
	nodeID string
}

// NewClient returns a Client writing to store as nodeID.
func NewClient(store *Store, nodeID string) *Client {
	return &Client{store: store, nodeID: nodeID}
}

var _ globalstore.Client = (*Client)(nil)

func (c *Client) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.store.dataMu.RLock()
	wrapped, ok := c.store.data[key]
	c.store.dataMu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	_, payload, err := wrapper.Unwrap(wrapped)
	if err != nil {
		return nil, false, err
	}
	return payload, true, nil
}

func (c *Client) Put(ctx context.Context, key string, payload []byte) error {
	wrapped, err := wrapper.Wrap(c.nodeID, payload)
	if err != nil {
		return err
	}

	c.store.dataMu.Lock()
	old, existed := c.store.data[key]
	c.store.data[key] = wrapped
	c.store.dataMu.Unlock()

	kind := globalstore.EventInsert
	var oldImage []byte
	if existed {
		kind = globalstore.EventModify
		oldImage = old
	}

	sh := c.store.shardForKey(key)
	c.store.appendAndNotify(sh, globalstore.ChangeRecord{
		ShardID:  sh.id,
		Key:      key,
		Kind:     kind,
		OldImage: oldImage,
		NewImage: wrapped,
	})
	return nil
}

func (c *Client) Remove(ctx context.Context, key string) error {
	c.store.dataMu.Lock()
	old, existed := c.store.data[key]
	if !existed {
		c.store.dataMu.Unlock()
		return nil
	}
	delete(c.store.data, key)
	c.store.dataMu.Unlock()

	sh := c.store.shardForKey(key)
	c.store.appendAndNotify(sh, globalstore.ChangeRecord{
		ShardID:  sh.id,
		Key:      key,
		Kind:     globalstore.EventRemove,
		OldImage: old,
	})
	return nil
}

func (c *Client) Replace(ctx context.Context, key string, old, new []byte) (bool, error) {
	c.store.dataMu.Lock()

	currentWrapped, existed := c.store.data[key]
	var currentPayload []byte
	if existed {
		_, payload, err := wrapper.Unwrap(currentWrapped)
		if err != nil {
			c.store.dataMu.Unlock()
			return false, err
		}
		currentPayload = payload
	}

	if !bytes.Equal(currentPayload, old) {
		c.store.dataMu.Unlock()
		return false, nil
	}

	if new == nil {
		delete(c.store.data, key)
		c.store.dataMu.Unlock()

		sh := c.store.shardForKey(key)
		c.store.appendAndNotify(sh, globalstore.ChangeRecord{
			ShardID:  sh.id,
			Key:      key,
			Kind:     globalstore.EventRemove,
			OldImage: currentWrapped,
		})
		return true, nil
	}

	wrapped, err := wrapper.Wrap(c.nodeID, new)
	if err != nil {
		c.store.dataMu.Unlock()
		return false, err
	}
	c.store.data[key] = wrapped
	c.store.dataMu.Unlock()

	kind := globalstore.EventInsert
	if existed {
		kind = globalstore.EventModify
	}
	sh := c.store.shardForKey(key)
	c.store.appendAndNotify(sh, globalstore.ChangeRecord{
		ShardID:  sh.id,
		Key:      key,
		Kind:     kind,
		OldImage: currentWrapped,
		NewImage: wrapped,
	})
	return true, nil
}

func (c *Client) Clear(ctx context.Context) error {
	c.store.dataMu.Lock()
	removed := make(map[string][]byte, len(c.store.data))
	for k, v := range c.store.data {
		removed[k] = v
	}
	c.store.data = make(map[string][]byte)
	c.store.dataMu.Unlock()

	for key, oldImage := range removed {
		sh := c.store.shardForKey(key)
		c.store.appendAndNotify(sh, globalstore.ChangeRecord{
			ShardID:  sh.id,
			Key:      key,
			Kind:     globalstore.EventRemove,
			OldImage: oldImage,
		})
	}
	return nil
}

func (c *Client) Shards(ctx context.Context) ([]string, error) {
	ids := make([]string, len(c.store.shards))
	for i, sh := range c.store.shards {
		ids[i] = sh.id
	}
	return ids, nil
}

func (c *Client) NewCursor(ctx context.Context, shardID string, policy globalstore.CursorPolicy) (globalstore.Cursor, error) {
	sh, ok := c.store.shardByID(shardID)
	if !ok {
		return 0, nil
	}
	sh.mu.Lock()
	defer sh.mu.Unlock()

	switch policy {
	case globalstore.TrimHorizon:
		return 0, nil
	default: // SkipHistory
		return int64(len(sh.log)), nil
	}
}

func (c *Client) Poll(ctx context.Context, shardID string, from globalstore.Cursor) ([]globalstore.ChangeRecord, globalstore.Cursor, error) {
	sh, ok := c.store.shardByID(shardID)
	if !ok {
		return nil, from, nil
	}
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if from < 0 {
		from = 0
	}
	if int(from) >= len(sh.log) {
		return nil, from, nil
	}
	batch := append([]globalstore.ChangeRecord(nil), sh.log[from:]...)
	return batch, int64(len(sh.log)), nil
}

func (c *Client) RegisterChangeListener(l globalstore.ChangeListener) (unregister func()) {
	id := int(c.store.listenerSeq.Add(1))
	for _, sh := range c.store.shards {
		sh.mu.Lock()
		sh.listeners[id] = l
		sh.mu.Unlock()
	}
	return func() {
		for _, sh := range c.store.shards {
			sh.mu.Lock()
			delete(sh.listeners, id)
			sh.mu.Unlock()
		}
	}
}
