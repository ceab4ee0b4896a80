// tiered_cache.go: TIERED tier — the full near-cache + authoritative-store +
// change-feed composition, the reason this package exists.
package tiercache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/nearcache/tiercache/changefeed"
	"github.com/nearcache/tiercache/globalstore"
	"github.com/nearcache/tiercache/nearcache"
)

// TieredCache orchestrates a NearCache, a globalstore.Client, and a
// background changefeed.Consumer behind the uniform Cache interface. Every
// mutating operation acquires the affected key's slot via
// tryOwn/releaseIfOwned with release guaranteed by defer, so a panic
// unwinding mid-operation can never leave a slot wedged.
type TieredCache struct {
	cfg       Config
	near      *nearcache.NearCache
	backend   globalstore.Client
	consumer  *changefeed.Consumer
	listeners *listenerRegistry

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error

	// afterFetchHook, when set, runs between the authoritative-store fetch
	// and the conditional near-cache admit inside Get/Refresh. It exists so
	// tests can deterministically reproduce an admission racing a concurrent
	// invalidation (a window that is normally microseconds wide).
	afterFetchHook func(key string)
}

var _ Cache = (*TieredCache)(nil)

// New constructs a TieredCache against backend. It validates config
// (applying defaults), starts the background change-feed consumer, and
// returns ready to serve.
func New(config Config, backend globalstore.Client) (*TieredCache, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	tc := &TieredCache{
		cfg:       config,
		near:      nearcache.New(config.NearCache.SlotCount),
		backend:   backend,
		listeners: newListenerRegistry(),
	}

	tc.consumer = changefeed.New(backend, changefeed.Handlers{
		OnInsert: func(key string, newValue []byte) { tc.invalidateRemote(key, "INSERT") },
		OnUpdate: func(key string, oldValue, newValue []byte) { tc.invalidateRemote(key, "MODIFY") },
		OnDelete: func(key string) { tc.invalidateRemote(key, "REMOVE") },
	}, changefeed.Config{
		NodeID:         config.NodeID,
		PollInterval:   time.Duration(config.ChangeFeed.PollIntervalMillis) * time.Millisecond,
		CheckpointPath: config.ChangeFeed.CheckpointPath,
		SelfEchoWindow: config.ChangeFeed.SelfEchoWindow,
		Logger:         config.Logger,
		Metrics:        config.MetricsCollector,
		Now:            config.TimeProvider.Now,
	})
	tc.consumer.Start()

	return tc, nil
}

// invalidateRemote is the uniform onInsert/onUpdate/onDelete handler: acquire
// the key's slot, evict any stale near-cache entry, release. Since this
// never re-admits a value, it is safe regardless of event kind.
func (tc *TieredCache) invalidateRemote(key, kind string) {
	slotIdx, token := tc.near.TryOwn(key)
	tc.near.Remove(key)
	tc.near.ReleaseIfOwned(slotIdx, token)

	if tc.cfg.OnRemoteChange != nil {
		tc.cfg.OnRemoteChange(key, kind)
	}
	tc.listeners.notify(tc.cfg.Logger, key, kind)
}

// RegisterChangeListener subscribes l to every remote invalidation this
// TieredCache applies to its NearCache. The returned func unregisters it.
func (tc *TieredCache) RegisterChangeListener(l ChangeListener) (unregister func()) {
	return tc.listeners.Register(l)
}

func (tc *TieredCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if tc.closed.Load() {
		return nil, false, NewErrClosed("Get")
	}
	if key == "" {
		return nil, false, NewErrEmptyKey("Get")
	}
	start := tc.cfg.TimeProvider.Now()
	if value, found := tc.near.Get(key); found {
		tc.cfg.MetricsCollector.RecordGet(tc.cfg.TimeProvider.Now()-start, true)
		return value, true, nil
	}

	value, found, err := tc.fetchAndAdmit(ctx, key)
	tc.cfg.MetricsCollector.RecordGet(tc.cfg.TimeProvider.Now()-start, false)
	return value, found, err
}

// Refresh forces a re-fetch from the authoritative store even if a
// near-cache entry already exists, by evicting it before fetching, inside
// the same owned window.
func (tc *TieredCache) Refresh(ctx context.Context, key string) ([]byte, bool, error) {
	if tc.closed.Load() {
		return nil, false, NewErrClosed("Refresh")
	}
	if key == "" {
		return nil, false, NewErrEmptyKey("Refresh")
	}

	slotIdx, token := tc.near.TryOwn(key)
	defer tc.near.ReleaseIfOwned(slotIdx, token)

	tc.near.Remove(key)
	return tc.fetchAndAdmitLocked(ctx, key, slotIdx, token)
}

// fetchAndAdmit acquires the key's slot, fetches from the authoritative
// store, and conditionally admits the result into the near-cache.
func (tc *TieredCache) fetchAndAdmit(ctx context.Context, key string) ([]byte, bool, error) {
	slotIdx, token := tc.near.TryOwn(key)
	defer tc.near.ReleaseIfOwned(slotIdx, token)
	return tc.fetchAndAdmitLocked(ctx, key, slotIdx, token)
}

// fetchAndAdmitLocked does the fetch/admit work assuming the caller already
// owns (slotIdx, token) and will release it.
func (tc *TieredCache) fetchAndAdmitLocked(ctx context.Context, key string, slotIdx int, token int64) ([]byte, bool, error) {
	value, found, err := tc.backend.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}

	if tc.afterFetchHook != nil {
		tc.afterFetchHook(key)
	}

	if !tc.near.PutIfAvailable(slotIdx, token, key, value) {
		tc.cfg.MetricsCollector.RecordContentionAbort()
	}
	return value, true, nil
}

func (tc *TieredCache) Put(ctx context.Context, key string, value []byte) error {
	if tc.closed.Load() {
		return NewErrClosed("Put")
	}
	if key == "" {
		return NewErrEmptyKey("Put")
	}
	if value == nil {
		return tc.Remove(ctx, key)
	}

	slotIdx, token := tc.near.TryOwn(key)
	defer tc.near.ReleaseIfOwned(slotIdx, token)

	start := tc.cfg.TimeProvider.Now()
	if err := tc.backend.Put(ctx, key, value); err != nil {
		return err
	}
	tc.cfg.MetricsCollector.RecordSet(tc.cfg.TimeProvider.Now() - start)

	if !tc.near.PutIfAvailable(slotIdx, token, key, value) {
		tc.cfg.MetricsCollector.RecordContentionAbort()
	}
	return nil
}

func (tc *TieredCache) Replace(ctx context.Context, key string, old, new []byte) (bool, error) {
	if tc.closed.Load() {
		return false, NewErrClosed("Replace")
	}
	if key == "" {
		return false, NewErrEmptyKey("Replace")
	}

	slotIdx, token := tc.near.TryOwn(key)
	defer tc.near.ReleaseIfOwned(slotIdx, token)

	start := tc.cfg.TimeProvider.Now()
	ok, err := tc.backend.Replace(ctx, key, old, new)
	if err == nil {
		tc.cfg.MetricsCollector.RecordSet(tc.cfg.TimeProvider.Now() - start)
	}
	if err != nil || !ok {
		return ok, err
	}

	if new == nil {
		tc.near.Remove(key)
		tc.consumer.NoteLocalRemoval(key)
	} else if !tc.near.PutIfAvailable(slotIdx, token, key, new) {
		tc.cfg.MetricsCollector.RecordContentionAbort()
	}
	return true, nil
}

func (tc *TieredCache) Remove(ctx context.Context, key string) error {
	if tc.closed.Load() {
		return NewErrClosed("Remove")
	}
	if key == "" {
		return NewErrEmptyKey("Remove")
	}

	slotIdx, token := tc.near.TryOwn(key)
	defer tc.near.ReleaseIfOwned(slotIdx, token)

	start := tc.cfg.TimeProvider.Now()
	if err := tc.backend.Remove(ctx, key); err != nil {
		return err
	}
	tc.cfg.MetricsCollector.RecordDelete(tc.cfg.TimeProvider.Now() - start)

	tc.near.Remove(key)
	tc.consumer.NoteLocalRemoval(key)
	return nil
}

func (tc *TieredCache) Clear(ctx context.Context) error {
	if tc.closed.Load() {
		return NewErrClosed("Clear")
	}
	tc.near.OwnAll()
	defer tc.near.ReleaseAll()

	if err := tc.backend.Clear(ctx); err != nil {
		return err
	}
	tc.near.Clear()
	return nil
}

func (tc *TieredCache) Type() CacheType { return TIERED }

func (tc *TieredCache) ConsistencyModel() ConsistencyModel { return EVENTUAL }

// Close stops the background change-feed consumer. Idempotent; safe to call
// more than once.
func (tc *TieredCache) Close(ctx context.Context) error {
	tc.closeOnce.Do(func() {
		tc.closed.Store(true)
		var result *multierror.Error
		if err := tc.consumer.Close(ctx); err != nil {
			result = multierror.Append(result, err)
		}
		tc.closeErr = result.ErrorOrNil()
	})
	return tc.closeErr
}
