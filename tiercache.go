// Package tiercache provides a tiered distributed cache: a per-process
// near-cache layered over a shared authoritative store, kept coherent across
// nodes by a change-feed consumer and a lock-free slot-based admission
// protocol.
//
// Example usage:
//
//	store := memstore.New(4)
//	cfg := tiercache.DefaultConfig()
//	cfg.NodeID = "node-a"
//	cache, err := tiercache.New(cfg, memstore.NewClient(store, cfg.NodeID))
//	if err != nil { ... }
//	defer cache.Close(context.Background())
//
//	cache.Put(ctx, "key", []byte("value"))
//	value, found, err := cache.Get(ctx, "key")
package tiercache

const (
	// Version of the tiercache library.
	Version = "v0.1.0-dev"

	// DefaultSlotCount is the default number of coherence slots in the
	// SlotTable backing every NearCache. Must be a power of two.
	DefaultSlotCount = 1024

	// DefaultPollIntervalMillis is the default change-feed poll cadence.
	DefaultPollIntervalMillis = 1000

	// DefaultTableName is the default authoritative store table name.
	DefaultTableName = "tiercache-entries"

	// DefaultReadCapacityPerSecond is the default provisioned read rate hint.
	DefaultReadCapacityPerSecond = 1000

	// DefaultWriteCapacityPerSecond is the default provisioned write rate hint.
	DefaultWriteCapacityPerSecond = 100

	// DefaultCheckpointPath is where the change-feed consumer persists its
	// per-shard cursors between restarts. Empty disables persistence.
	DefaultCheckpointPath = "tiercache-cursors.json"
)

// CacheType identifies which tier a Cache implementation represents.
type CacheType string

const (
	// LOCAL identifies a cache backed only by an in-process near-cache, with
	// no authoritative store behind it.
	LOCAL CacheType = "LOCAL"
	// GLOBAL identifies a cache that talks directly to the authoritative
	// store, bypassing any near-cache.
	GLOBAL CacheType = "GLOBAL"
	// TIERED identifies the full near-cache + authoritative-store + change-feed
	// composition.
	TIERED CacheType = "TIERED"
)

// ConsistencyModel describes the read consistency a Cache implementation
// offers to callers.
type ConsistencyModel string

const (
	// STRONG means every Get observes the most recently completed write.
	STRONG ConsistencyModel = "STRONG"
	// EVENTUAL means a Get may observe a stale value for up to roughly one
	// change-feed poll interval after a remote write.
	EVENTUAL ConsistencyModel = "EVENTUAL"
)
