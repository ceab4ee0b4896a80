// hot-reload.go: dynamic configuration with Argus integration
package tiercache

import (
	"sync"
	"time"

	"github.com/agilira/argus"
)

// HotConfig provides dynamic configuration reload capabilities using Argus.
// It watches a JSONC configuration file and updates the change-feed poll
// cadence and throughput hints when changes are detected. Structural
// settings (NodeID, NearCache.SlotCount) are fixed at construction and are
// not hot-reloadable, since changing them requires rebuilding the SlotTable.
// A reload updates only the Config held here (see GetConfig and OnReload); a
// TieredCache that is already running keeps the values it was built with.
type HotConfig struct {
	mu     sync.RWMutex
	config Config

	watcher *argus.Watcher

	// OnReload is called after configuration is successfully reloaded. This
	// callback is optional and must be fast and non-blocking.
	OnReload func(oldConfig, newConfig Config)
}

// HotConfigOptions configures hot reload behavior.
type HotConfigOptions struct {
	// ConfigPath is the path to the JSONC configuration file to watch.
	ConfigPath string

	// PollInterval is how often to check the file for changes. Default: 1s.
	// Minimum: 100ms.
	PollInterval time.Duration

	// OnReload is called after configuration is successfully reloaded.
	OnReload func(oldConfig, newConfig Config)

	// Logger for hot reload operations. If nil, NoOpLogger is used.
	Logger Logger
}

// NewHotConfig creates a hot-reloadable configuration wrapper and starts
// watching ConfigPath immediately.
//
// Example configuration file (JSONC — comments allowed):
//
//	{
//	  // poll twice a second instead of the default 1s
//	  "changeFeed": {
//	    "pollIntervalMillis": 500
//	  },
//	  "globalStore": {
//	    "readCapacityPerSecond": 2000,
//	    "writeCapacityPerSecond": 200
//	  }
//	}
//
// Supported reloadable keys:
//   - changeFeed.pollIntervalMillis (int > 0)
//   - changeFeed.selfEchoWindowMillis (int > 0)
//   - globalStore.readCapacityPerSecond (int > 0)
//   - globalStore.writeCapacityPerSecond (int > 0)
func NewHotConfig(base Config, opts HotConfigOptions) (*HotConfig, error) {
	if opts.ConfigPath == "" {
		return nil, NewErrInvalidConfig("config_path is required")
	}

	if opts.PollInterval == 0 {
		opts.PollInterval = 1 * time.Second
	} else if opts.PollInterval < 100*time.Millisecond {
		opts.PollInterval = 100 * time.Millisecond
	}

	if opts.Logger == nil {
		opts.Logger = NoOpLogger{}
	}

	hc := &HotConfig{
		config:   base,
		OnReload: opts.OnReload,
	}

	argusConfig := argus.Config{
		PollInterval: opts.PollInterval,
	}

	watcher, err := argus.UniversalConfigWatcherWithConfig(opts.ConfigPath, hc.handleConfigChange, argusConfig)
	if err != nil {
		return nil, err
	}
	hc.watcher = watcher

	return hc, nil
}

// Start begins watching the configuration file for changes.
func (hc *HotConfig) Start() error {
	if hc.watcher.IsRunning() {
		return nil
	}
	return hc.watcher.Start()
}

// Stop stops watching the configuration file.
func (hc *HotConfig) Stop() error {
	return hc.watcher.Stop()
}

// GetConfig returns the current configuration.
func (hc *HotConfig) GetConfig() Config {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return hc.config
}

// handleConfigChange is invoked by Argus whenever the watched file changes.
// Argus strips JSONC comments via hujson before handing us the decoded map.
func (hc *HotConfig) handleConfigChange(configData map[string]interface{}) {
	hc.mu.Lock()
	oldConfig := hc.config
	newConfig := hc.applyOverrides(oldConfig, configData)
	hc.config = newConfig
	hc.mu.Unlock()

	if hc.OnReload != nil {
		hc.OnReload(oldConfig, newConfig)
	}
}

// parsePositiveInt extracts a positive integer from an interface{} value.
// Supports both int and float64, since JSON numbers decode as float64.
func parsePositiveInt(value interface{}) (int, bool) {
	switch v := value.(type) {
	case int:
		if v > 0 {
			return v, true
		}
	case float64:
		if v > 0 {
			return int(v), true
		}
	}
	return 0, false
}

// asSection type-asserts data[key] as a nested JSON object.
func asSection(data map[string]interface{}, key string) (map[string]interface{}, bool) {
	section, ok := data[key].(map[string]interface{})
	return section, ok
}

// applyOverrides builds a new Config from base with any recognized keys in
// data overlaid on top. Unrecognized or malformed keys are left at their
// current value rather than rejecting the whole reload.
func (hc *HotConfig) applyOverrides(base Config, data map[string]interface{}) Config {
	next := base

	if cf, ok := asSection(data, "changeFeed"); ok {
		if v, ok := parsePositiveInt(cf["pollIntervalMillis"]); ok {
			next.ChangeFeed.PollIntervalMillis = v
		}
		if v, ok := parsePositiveInt(cf["selfEchoWindowMillis"]); ok {
			next.ChangeFeed.SelfEchoWindow = time.Duration(v) * time.Millisecond
		}
	}

	if gs, ok := asSection(data, "globalStore"); ok {
		if v, ok := parsePositiveInt(gs["readCapacityPerSecond"]); ok {
			next.GlobalStore.ReadCapacityPerSecond = v
		}
		if v, ok := parsePositiveInt(gs["writeCapacityPerSecond"]); ok {
			next.GlobalStore.WriteCapacityPerSecond = v
		}
	}

	return next
}
