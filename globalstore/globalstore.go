// Package globalstore defines the contract a tiered cache's authoritative
// backing store must satisfy: a strongly consistent key→bytes store with a
// sharded change stream. globalstore/memstore bundles an in-process
// reference implementation of this contract.
package globalstore

import "context"

// EventKind identifies the kind of mutation a ChangeRecord describes.
type EventKind string

const (
	EventInsert EventKind = "INSERT"
	EventModify EventKind = "MODIFY"
	EventRemove EventKind = "REMOVE"
)

// ChangeRecord is one entry in a shard's change stream.
type ChangeRecord struct {
	ShardID   string
	Key       string
	Kind      EventKind
	OldImage  []byte // wrapper-encoded; nil for INSERT
	NewImage  []byte // wrapper-encoded; nil for REMOVE
	Timestamp int64  // nanoseconds since epoch, set when the mutation was appended
}

// ChangeListener receives change records as they are produced, pushed
// synchronously from the mutation that caused them. This is a convenience
// surface for callers that want immediate notification instead of polling;
// the bundled ChangeFeedConsumer does not use it — it polls shards with
// cursors instead, since that is the fully specified operational model (see
// the changefeed package) and the one that survives a consumer restart via
// checkpointing. It is distinct from tiercache.ChangeListener, which is the
// TieredCache's own public notification API fired after an invalidation has
// already been applied locally.
type ChangeListener func(ChangeRecord)

// CursorPolicy selects where a freshly minted Cursor starts reading from.
type CursorPolicy int

const (
	// SkipHistory starts a cursor after every record currently in the
	// shard, so only future records are observed. Used for a shard with no
	// persisted checkpoint on the very first tick.
	SkipHistory CursorPolicy = iota
	// TrimHorizon starts a cursor at the oldest record still retained by
	// the shard. Used for a shard with no persisted checkpoint on any tick
	// after the first, and implicitly whenever a persisted checkpoint is
	// loaded (the checkpoint's cursor already encodes the position).
	TrimHorizon
)

// Cursor is an opaque, per-shard stream position. Concrete implementations
// may use any representation that round-trips through JSON, since
// changefeed persists cursors to a checkpoint file.
type Cursor = int64

// Client is the contract a GlobalStoreClient implementation must satisfy.
// Reads are strongly consistent. Get/Put/Replace/Clear operate on plain
// payload bytes: each Client is constructed bound to one node's id, and
// wraps/unwraps the wire envelope (see the wrapper package) internally so
// every write it makes carries its own node's id without callers having to
// handle the envelope themselves. Only ChangeRecord.OldImage/NewImage
// surface the wrapped bytes, since the change-feed consumer needs the
// embedded sourceId to recognize self-originated events.
type Client interface {
	// Get returns the payload stored at key.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)

	// Put unconditionally stores payload at key, wrapped with this client's
	// node id.
	Put(ctx context.Context, key string, payload []byte) error

	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error

	// Replace performs a compare-and-swap against the currently stored
	// payload: it succeeds only if that payload equals old, and then stores
	// new wrapped with this client's node id.
	Replace(ctx context.Context, key string, old, new []byte) (bool, error)

	// Clear deletes every key.
	Clear(ctx context.Context) error

	// Shards enumerates the current shard set of the change stream.
	Shards(ctx context.Context) ([]string, error)

	// NewCursor mints a starting cursor for shardID according to policy.
	NewCursor(ctx context.Context, shardID string, policy CursorPolicy) (Cursor, error)

	// Poll drains up to a batch of records from shardID starting at from,
	// returning the records and the cursor to resume from next. An empty
	// result with an unchanged cursor means the shard has no new records.
	Poll(ctx context.Context, shardID string, from Cursor) (records []ChangeRecord, next Cursor, err error)

	// RegisterChangeListener subscribes l to every shard's change stream.
	// The returned func unregisters it.
	RegisterChangeListener(l ChangeListener) (unregister func())
}
