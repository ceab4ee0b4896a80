// config.go: configuration for tiercache
package tiercache

import (
	"encoding/json"
	"os"
	"time"

	"github.com/agilira/go-timecache"
	"github.com/tailscale/hujson"
)

// NearCacheConfig configures the in-process near-cache and its SlotTable.
type NearCacheConfig struct {
	// SlotCount is the number of coherence slots in the SlotTable. Must be a
	// positive power of two. Default: DefaultSlotCount.
	SlotCount int
}

// GlobalStoreConfig configures the connection to the authoritative store.
type GlobalStoreConfig struct {
	// TableName identifies the backing table/collection in the authoritative
	// store. Default: DefaultTableName.
	TableName string

	// ReadCapacityPerSecond is a provisioned-throughput hint passed to
	// GlobalStoreClient implementations that need one. Default:
	// DefaultReadCapacityPerSecond.
	ReadCapacityPerSecond int

	// WriteCapacityPerSecond is a provisioned-throughput hint passed to
	// GlobalStoreClient implementations that need one. Default:
	// DefaultWriteCapacityPerSecond.
	WriteCapacityPerSecond int
}

// ChangeFeedConfig configures the background change-feed consumer.
type ChangeFeedConfig struct {
	// PollIntervalMillis is how often each shard is polled for new records.
	// Must be > 0. Default: DefaultPollIntervalMillis.
	PollIntervalMillis int

	// CheckpointPath is where per-shard cursors are persisted between
	// restarts. Empty explicitly disables persistence, and every shard
	// restarts from the skip-history/trim-horizon policy described in the
	// consumer — this is a valid, intentional setting, not an unset field.
	// DefaultConfig sets this to DefaultCheckpointPath; Validate leaves an
	// empty value alone rather than substituting the default.
	CheckpointPath string

	// SelfEchoWindow is how long a locally issued removal is remembered in
	// the "recently removed by me" set before change-feed records for the
	// same key stop being suppressed as self-echoes. Default: 30s.
	SelfEchoWindow time.Duration
}

// Config holds configuration parameters for a tiered cache instance.
type Config struct {
	// NodeID uniquely identifies this process among all nodes sharing the
	// same authoritative store. If empty, a random id is generated by
	// NewNodeID. Default: generated.
	NodeID string

	NearCache   NearCacheConfig
	GlobalStore GlobalStoreConfig
	ChangeFeed  ChangeFeedConfig

	// Logger is used for debugging and monitoring. If nil, NoOpLogger is
	// used. Default: NoOpLogger.
	Logger Logger

	// TimeProvider supplies current time for cursor bookkeeping and
	// self-echo window checks. If nil, a default implementation backed by
	// go-timecache is used. Default: system time.
	TimeProvider TimeProvider

	// MetricsCollector receives operation counters and latencies. If nil,
	// NoOpMetricsCollector is used (zero overhead). Default:
	// NoOpMetricsCollector.
	MetricsCollector MetricsCollector

	// OnRemoteChange is called whenever the change-feed consumer applies a
	// remote write or delete to the near-cache. This callback must be fast
	// and non-blocking; it runs on the consumer's dispatch goroutine.
	OnRemoteChange func(key string, kind string)
}

// Validate checks configuration parameters, applies sensible defaults, and
// returns an error only when a field cannot be defaulted safely (an
// explicitly invalid, non-zero value).
//
// This method is called automatically by New, so callers typically don't
// need to call it directly. It's exposed so callers can inspect the
// normalized configuration, or validate one loaded from disk before use.
//
// Defaults applied:
//   - NodeID: a freshly generated id if empty
//   - NearCache.SlotCount: DefaultSlotCount if <= 0
//   - GlobalStore.TableName: DefaultTableName if empty
//   - GlobalStore.ReadCapacityPerSecond: DefaultReadCapacityPerSecond if <= 0
//   - GlobalStore.WriteCapacityPerSecond: DefaultWriteCapacityPerSecond if <= 0
//   - ChangeFeed.PollIntervalMillis: DefaultPollIntervalMillis if <= 0
//   - ChangeFeed.SelfEchoWindow: 30s if <= 0
//
// ChangeFeed.CheckpointPath is deliberately NOT defaulted here: an empty
// value means "disable persistence" and is indistinguishable from "never
// set". Only DefaultConfig sets it to DefaultCheckpointPath.
//   - Logger: NoOpLogger{} if nil
//   - TimeProvider: systemTimeProvider{} if nil
//   - MetricsCollector: NoOpMetricsCollector{} if nil
func (c *Config) Validate() error {
	if c.NodeID == "" {
		c.NodeID = NewNodeID()
	}

	if c.NearCache.SlotCount <= 0 {
		c.NearCache.SlotCount = DefaultSlotCount
	}
	if c.NearCache.SlotCount&(c.NearCache.SlotCount-1) != 0 {
		return NewErrInvalidSlotCount(c.NearCache.SlotCount)
	}

	if c.GlobalStore.TableName == "" {
		c.GlobalStore.TableName = DefaultTableName
	}
	if c.GlobalStore.ReadCapacityPerSecond <= 0 {
		c.GlobalStore.ReadCapacityPerSecond = DefaultReadCapacityPerSecond
	}
	if c.GlobalStore.WriteCapacityPerSecond <= 0 {
		c.GlobalStore.WriteCapacityPerSecond = DefaultWriteCapacityPerSecond
	}

	if c.ChangeFeed.PollIntervalMillis <= 0 {
		c.ChangeFeed.PollIntervalMillis = DefaultPollIntervalMillis
	}
	if c.ChangeFeed.SelfEchoWindow <= 0 {
		c.ChangeFeed.SelfEchoWindow = 30 * time.Second
	}

	if c.Logger == nil {
		c.Logger = NoOpLogger{}
	}

	if c.TimeProvider == nil {
		c.TimeProvider = &systemTimeProvider{}
	}

	if c.MetricsCollector == nil {
		c.MetricsCollector = NoOpMetricsCollector{}
	}

	return nil
}

// DefaultConfig returns a configuration with sensible defaults applied.
func DefaultConfig() Config {
	cfg := Config{
		NearCache:   NearCacheConfig{SlotCount: DefaultSlotCount},
		GlobalStore: GlobalStoreConfig{
			TableName:              DefaultTableName,
			ReadCapacityPerSecond:  DefaultReadCapacityPerSecond,
			WriteCapacityPerSecond: DefaultWriteCapacityPerSecond,
		},
		ChangeFeed: ChangeFeedConfig{
			PollIntervalMillis: DefaultPollIntervalMillis,
			CheckpointPath:     DefaultCheckpointPath,
			SelfEchoWindow:     30 * time.Second,
		},
		Logger:           NoOpLogger{},
		TimeProvider:     &systemTimeProvider{},
		MetricsCollector: NoOpMetricsCollector{},
	}
	cfg.NodeID = NewNodeID()
	return cfg
}

// systemTimeProvider is the default time provider, backed by go-timecache's
// periodically refreshed clock to avoid a syscall on every hot-path check.
type systemTimeProvider struct{}

func (t *systemTimeProvider) Now() int64 {
	return timecache.CachedTimeNano()
}

// fileConfig mirrors the on-disk JSONC config shape. Every field is a
// pointer so an absent key leaves the corresponding Config field untouched,
// letting DefaultConfig's value (or Validate's default-filling) stand.
type fileConfig struct {
	NodeID      *string `json:"nodeID"`
	GlobalStore *struct {
		TableName              *string `json:"tableName"`
		ReadCapacityPerSecond  *int    `json:"readCapacityPerSecond"`
		WriteCapacityPerSecond *int    `json:"writeCapacityPerSecond"`
	} `json:"globalStore"`
	ChangeFeed *struct {
		PollIntervalMillis *int    `json:"pollIntervalMillis"`
		CheckpointPath     *string `json:"checkpointPath"`
	} `json:"changeFeed"`
	NearCache *struct {
		SlotCount *int `json:"slotCount"`
	} `json:"nearCache"`
}

// LoadConfigFile reads a JSONC (JSON-with-comments) configuration file at
// path, using hujson to standardize it to plain JSON before decoding.
// Recognized keys are nodeID, globalStore.{tableName,
// readCapacityPerSecond, writeCapacityPerSecond}, changeFeed.
// {pollIntervalMillis, checkpointPath}, and nearCache.slotCount — see
// SPEC_FULL.md's Configuration section for the full key list and defaults.
// Credentials for the authoritative store are never read from this file;
// they're supplied out-of-band to the GlobalStoreClient implementation.
//
// A missing file is not an error: LoadConfigFile returns DefaultConfig()
// unchanged, since every field already has a programmatic default. Any
// other read or parse error is returned as-is (decode errors) or wrapped
// with ErrCodeInvalidConfig (standardize failures).
//
// The returned Config has already been through Validate, so it's ready to
// pass directly to New.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return cfg, NewErrInvalidConfig("config file is not valid JSONC: " + err.Error())
	}

	var fc fileConfig
	if err := json.Unmarshal(standardized, &fc); err != nil {
		return cfg, err
	}

	if fc.NodeID != nil {
		cfg.NodeID = *fc.NodeID
	}
	if fc.GlobalStore != nil {
		if fc.GlobalStore.TableName != nil {
			cfg.GlobalStore.TableName = *fc.GlobalStore.TableName
		}
		if fc.GlobalStore.ReadCapacityPerSecond != nil {
			cfg.GlobalStore.ReadCapacityPerSecond = *fc.GlobalStore.ReadCapacityPerSecond
		}
		if fc.GlobalStore.WriteCapacityPerSecond != nil {
			cfg.GlobalStore.WriteCapacityPerSecond = *fc.GlobalStore.WriteCapacityPerSecond
		}
	}
	if fc.ChangeFeed != nil {
		if fc.ChangeFeed.PollIntervalMillis != nil {
			cfg.ChangeFeed.PollIntervalMillis = *fc.ChangeFeed.PollIntervalMillis
		}
		if fc.ChangeFeed.CheckpointPath != nil {
			cfg.ChangeFeed.CheckpointPath = *fc.ChangeFeed.CheckpointPath
		}
	}
	if fc.NearCache != nil && fc.NearCache.SlotCount != nil {
		cfg.NearCache.SlotCount = *fc.NearCache.SlotCount
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
