// Package changefeed implements the background consumer that polls the
// authoritative store's sharded change stream, filters out self-originated
// events, and dispatches invalidations to every near-cache.
package changefeed

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agilira/go-errors"
	"github.com/cenkalti/backoff/v4"
	atomicfile "github.com/natefinch/atomic"
	"golang.org/x/sync/errgroup"

	"github.com/nearcache/tiercache/globalstore"
	"github.com/nearcache/tiercache/wrapper"
)

const (
	ErrCodeShardPollFailed  errors.ErrorCode = "TIERCACHE_CF_SHARD_POLL_FAILED"
	ErrCodeCursorCorrupted  errors.ErrorCode = "TIERCACHE_CF_CURSOR_CORRUPTED"
	ErrCodeCheckpointFailed errors.ErrorCode = "TIERCACHE_CF_CHECKPOINT_FAILED"
)

// Logger is the minimal structured logging seam the consumer needs. The
// root package's Logger interface satisfies it; it is redeclared here so
// this package never needs to import the root package (which imports this
// one).
type Logger interface {
	Debug(msg string, keyvals ...interface{})
	Info(msg string, keyvals ...interface{})
	Warn(msg string, keyvals ...interface{})
	Error(msg string, keyvals ...interface{})
}

// Metrics is the subset of root's MetricsCollector the consumer reports to.
type Metrics interface {
	RecordSelfEchoSuppressed()
	RecordChangeFeedLagMillis(lagMs int64)
}

// Handlers are the callbacks fired for each non-self-originated record. Per
// the coherence protocol, every handler is expected to invalidate (remove)
// the affected key from a near-cache under a TryOwn/Release bracket — that
// bracketing lives in the caller (the root package's façade), not here.
type Handlers struct {
	OnInsert func(key string, newValue []byte)
	OnUpdate func(key string, oldValue, newValue []byte)
	OnDelete func(key string)
}

// Config configures a Consumer.
type Config struct {
	NodeID         string
	PollInterval   time.Duration
	CheckpointPath string // empty disables persistence
	SelfEchoWindow time.Duration
	Logger         Logger
	Metrics        Metrics
	Now            func() int64 // nanoseconds since epoch; defaults to time.Now
}

// Consumer periodically polls every shard of a globalstore.Client's change
// stream and dispatches Handlers for records not originated by NodeID.
type Consumer struct {
	client   globalstore.Client
	handlers Handlers
	cfg      Config

	mu            sync.Mutex
	cursors       map[string]globalstore.Cursor
	hadCheckpoint bool
	ticked        bool // a tick has run to completion

	echoMu          sync.Mutex
	recentlyRemoved map[string]int64 // key -> nanosecond timestamp removed locally

	inFlight atomic.Bool
	started  atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// New creates a Consumer. Call Start to begin polling.
func New(client globalstore.Client, handlers Handlers, cfg Config) *Consumer {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.SelfEchoWindow <= 0 {
		cfg.SelfEchoWindow = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = noopLogger{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = noopMetrics{}
	}
	if cfg.Now == nil {
		cfg.Now = func() int64 { return time.Now().UnixNano() }
	}

	c := &Consumer{
		client:          client,
		handlers:        handlers,
		cfg:             cfg,
		cursors:         make(map[string]globalstore.Cursor),
		recentlyRemoved: make(map[string]int64),
		stopCh:          make(chan struct{}),
		doneCh:          make(chan struct{}),
	}
	c.loadCheckpoint()
	return c
}

// NoteLocalRemoval records that this process just removed key, so a
// subsequently observed REMOVE change-feed record for the same key within
// the self-echo window is recognized and suppressed rather than causing a
// redundant (but otherwise harmless) local re-invalidation.
func (c *Consumer) NoteLocalRemoval(key string) {
	c.echoMu.Lock()
	c.recentlyRemoved[key] = c.cfg.Now()
	c.echoMu.Unlock()
}

// Start runs a first tick synchronously, so every shard has a cursor when it
// returns, then begins the polling loop on a background goroutine.
func (c *Consumer) Start() {
	c.started.Store(true)
	c.tick()
	go c.run()
}

// Close stops the polling loop. It blocks until the in-flight tick, if any,
// finishes; a Consumer that was never started returns at once. Idempotent.
func (c *Consumer) Close(ctx context.Context) error {
	c.stopOnce.Do(func() { close(c.stopCh) })
	if !c.started.Load() {
		return nil
	}
	select {
	case <-c.doneCh:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (c *Consumer) run() {
	defer close(c.doneCh)
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.tick()
		}
	}
}

func (c *Consumer) tick() {
	if !c.inFlight.CompareAndSwap(false, true) {
		c.cfg.Logger.Debug("change-feed tick skipped: previous tick still in flight")
		return
	}
	defer c.inFlight.Store(false)

	defer func() {
		if p := recover(); p != nil {
			c.cfg.Logger.Error("change-feed tick panicked", "panic", p)
		}
	}()

	ctx := context.Background()
	c.sweepRecentlyRemoved()

	shards, err := c.client.Shards(ctx)
	if err != nil {
		c.cfg.Logger.Warn("failed to enumerate change-feed shards", "error", err)
		return
	}

	var g errgroup.Group
	for _, shardID := range shards {
		shardID := shardID
		g.Go(func() error {
			return c.pollShard(ctx, shardID)
		})
	}
	if err := g.Wait(); err != nil {
		c.cfg.Logger.Warn("change-feed tick completed with shard errors", "error", err)
	}

	c.mu.Lock()
	c.ticked = true
	c.mu.Unlock()

	c.persistCheckpoint()
}

func (c *Consumer) pollShard(ctx context.Context, shardID string) error {
	cursor, known := c.getCursor(shardID)
	if !known {
		policy := globalstore.TrimHorizon
		if !c.hasCheckpoint() && !c.pastFirstTick() {
			policy = globalstore.SkipHistory
		}
		newCursor, err := c.withRetryCursor(func() (globalstore.Cursor, error) {
			return c.client.NewCursor(ctx, shardID, policy)
		})
		if err != nil {
			return errors.Wrap(err, ErrCodeShardPollFailed, "failed to mint initial cursor").
				WithContext("shard_id", shardID)
		}
		cursor = newCursor
		c.setCursor(shardID, cursor)
	}

	for {
		records, next, err := c.withRetryPoll(ctx, shardID, cursor)
		if err != nil {
			return errors.Wrap(err, ErrCodeShardPollFailed, "failed to poll shard").
				WithContext("shard_id", shardID)
		}
		if len(records) == 0 {
			return nil
		}
		for _, rec := range records {
			c.dispatch(rec)
		}
		cursor = next
		c.setCursor(shardID, cursor)
	}
}

func (c *Consumer) withRetryCursor(fn func() (globalstore.Cursor, error)) (globalstore.Cursor, error) {
	var result globalstore.Cursor
	op := func() error {
		v, err := fn()
		if err != nil {
			return err
		}
		result = v
		return nil
	}
	b := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3)
	err := backoff.Retry(op, b)
	return result, err
}

func (c *Consumer) withRetryPoll(ctx context.Context, shardID string, from globalstore.Cursor) ([]globalstore.ChangeRecord, globalstore.Cursor, error) {
	var records []globalstore.ChangeRecord
	next := from
	op := func() error {
		r, n, err := c.client.Poll(ctx, shardID, from)
		if err != nil {
			return err
		}
		records, next = r, n
		return nil
	}
	b := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3)
	err := backoff.Retry(op, b)
	return records, next, err
}

func (c *Consumer) dispatch(rec globalstore.ChangeRecord) {
	if rec.Timestamp > 0 {
		lagNanos := c.cfg.Now() - rec.Timestamp
		if lagNanos > 0 {
			c.cfg.Metrics.RecordChangeFeedLagMillis(lagNanos / int64(time.Millisecond))
		}
	}

	switch rec.Kind {
	case globalstore.EventInsert:
		sourceID, payload, err := unwrapOrLog(c.cfg.Logger, rec.NewImage)
		if err != nil {
			return
		}
		if sourceID != c.cfg.NodeID {
			c.handlers.OnInsert(rec.Key, payload)
		}
	case globalstore.EventModify:
		newSourceID, newPayload, err := unwrapOrLog(c.cfg.Logger, rec.NewImage)
		if err != nil {
			return
		}
		_, oldPayload, err := unwrapOrLog(c.cfg.Logger, rec.OldImage)
		if err != nil {
			return
		}
		if newSourceID != c.cfg.NodeID {
			c.handlers.OnUpdate(rec.Key, oldPayload, newPayload)
		}
	case globalstore.EventRemove:
		if c.isSelfEcho(rec.Key) {
			c.cfg.Metrics.RecordSelfEchoSuppressed()
			c.cfg.Logger.Debug("suppressed self-echo delete", "key", rec.Key)
			return
		}
		c.handlers.OnDelete(rec.Key)
	}
}

func unwrapOrLog(log Logger, data []byte) (string, []byte, error) {
	if len(data) == 0 {
		return "", nil, nil
	}
	sourceID, payload, err := wrapper.Unwrap(data)
	if err != nil {
		log.Warn("failed to decode change-feed record image, skipping", "error", err)
		return "", nil, err
	}
	return sourceID, payload, nil
}

func (c *Consumer) isSelfEcho(key string) bool {
	c.echoMu.Lock()
	defer c.echoMu.Unlock()
	removedAt, ok := c.recentlyRemoved[key]
	if !ok {
		return false
	}
	return c.cfg.Now()-removedAt <= c.cfg.SelfEchoWindow.Nanoseconds()
}

func (c *Consumer) sweepRecentlyRemoved() {
	c.echoMu.Lock()
	defer c.echoMu.Unlock()
	now := c.cfg.Now()
	for key, removedAt := range c.recentlyRemoved {
		if now-removedAt > c.cfg.SelfEchoWindow.Nanoseconds() {
			delete(c.recentlyRemoved, key)
		}
	}
}

func (c *Consumer) getCursor(shardID string) (globalstore.Cursor, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.cursors[shardID]
	return v, ok
}

func (c *Consumer) setCursor(shardID string, cursor globalstore.Cursor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cursors[shardID] = cursor
}

func (c *Consumer) hasCheckpoint() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hadCheckpoint
}

func (c *Consumer) pastFirstTick() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ticked
}

type checkpointFile struct {
	Cursors map[string]globalstore.Cursor `json:"cursors"`
}

func (c *Consumer) loadCheckpoint() {
	if c.cfg.CheckpointPath == "" {
		return
	}
	data, err := os.ReadFile(c.cfg.CheckpointPath)
	if err != nil {
		return // no checkpoint yet: first-ever run, nothing to load
	}
	var cp checkpointFile
	if err := json.Unmarshal(data, &cp); err != nil {
		wrapped := errors.Wrap(err, ErrCodeCursorCorrupted, "change-feed checkpoint file is corrupted, ignoring").
			WithContext("path", c.cfg.CheckpointPath)
		c.cfg.Logger.Warn("change-feed checkpoint load failed", "error", wrapped)
		return
	}
	c.mu.Lock()
	for shardID, cursor := range cp.Cursors {
		c.cursors[shardID] = cursor
	}
	c.hadCheckpoint = true
	c.mu.Unlock()
}

func (c *Consumer) persistCheckpoint() {
	if c.cfg.CheckpointPath == "" {
		return
	}
	c.mu.Lock()
	snapshot := make(map[string]globalstore.Cursor, len(c.cursors))
	for k, v := range c.cursors {
		snapshot[k] = v
	}
	c.mu.Unlock()

	data, err := json.Marshal(checkpointFile{Cursors: snapshot})
	if err != nil {
		wrapped := errors.Wrap(err, ErrCodeCheckpointFailed, "failed to marshal change-feed checkpoint").
			WithContext("path", c.cfg.CheckpointPath).
			AsRetryable()
		c.cfg.Logger.Warn("change-feed checkpoint persist failed", "error", wrapped)
		return
	}
	if err := atomicfile.WriteFile(c.cfg.CheckpointPath, bytes.NewReader(data)); err != nil {
		wrapped := errors.Wrap(err, ErrCodeCheckpointFailed, "failed to persist change-feed checkpoint").
			WithContext("path", c.cfg.CheckpointPath).
			AsRetryable()
		c.cfg.Logger.Warn("change-feed checkpoint persist failed", "error", wrapped)
	}
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...interface{}) {}
func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Warn(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}

type noopMetrics struct{}

func (noopMetrics) RecordSelfEchoSuppressed()       {}
func (noopMetrics) RecordChangeFeedLagMillis(int64) {}
