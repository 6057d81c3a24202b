// config_watcher.go: Runtime reconfiguration via Argus file watching
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package gocapabilities

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/agilira/argus"
)

// ConfigWatcherOptions tunes the watcher's Argus integration.
type ConfigWatcherOptions struct {
	// PollInterval controls how often the file is checked. Zero selects
	// one second.
	PollInterval time.Duration

	// CacheTTL controls Argus stat caching. Zero selects half the poll
	// interval.
	CacheTTL time.Duration

	// Audit enables the Argus audit trail for configuration changes.
	Audit argus.AuditConfig
}

// ConfigWatcher hot-reloads a FrameworkConfig file and applies cache
// changes to a running framework without restarts. Invalid file states are
// rejected as a whole: the framework keeps its last good configuration.
type ConfigWatcher struct {
	framework *Framework
	logger    Logger
	path      string
	options   ConfigWatcherOptions

	watcher *argus.Watcher
	current atomic.Pointer[FrameworkConfig]

	mu      sync.Mutex
	started bool
	stopped bool
}

// NewConfigWatcher creates a watcher for a configuration file. Start must
// be called to begin watching.
func NewConfigWatcher(framework *Framework, path string, options ConfigWatcherOptions) *ConfigWatcher {
	if options.PollInterval <= 0 {
		options.PollInterval = time.Second
	}
	if options.CacheTTL <= 0 {
		options.CacheTTL = options.PollInterval / 2
	}
	return &ConfigWatcher{
		framework: framework,
		logger:    framework.logger.With("component", "config_watcher"),
		path:      path,
		options:   options,
	}
}

// Start loads the file once, applies it, and begins watching for changes.
// Starting twice or after Stop fails.
func (w *ConfigWatcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return NewConfigWatcherError("config watcher has been stopped and cannot be restarted", nil)
	}
	if w.started {
		return NewConfigWatcherError("config watcher is already running", nil)
	}

	argusConfig := argus.Config{
		PollInterval:    w.options.PollInterval,
		CacheTTL:        w.options.CacheTTL,
		MaxWatchedFiles: 5,
		Audit:           w.options.Audit,
		ErrorHandler: func(err error, path string) {
			w.logger.Error("Config file watching error", "path", path, "error", err)
		},
	}

	watcher, err := argus.UniversalConfigWatcherWithConfig(w.path, w.handleChange, argusConfig)
	if err != nil {
		return NewConfigWatcherError("failed to create config watcher", err)
	}
	w.watcher = watcher
	w.started = true
	w.logger.Info("Configuration watching started", "path", w.path)
	return nil
}

// Stop halts watching permanently.
func (w *ConfigWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped || !w.started {
		w.stopped = true
		return nil
	}
	w.stopped = true
	if w.watcher != nil {
		if err := w.watcher.Stop(); err != nil {
			return NewConfigWatcherError("failed to stop config watcher", err)
		}
	}
	w.logger.Info("Configuration watching stopped", "path", w.path)
	return nil
}

// Current returns the last applied configuration, if any.
func (w *ConfigWatcher) Current() (FrameworkConfig, bool) {
	cfg := w.current.Load()
	if cfg == nil {
		return FrameworkConfig{}, false
	}
	return *cfg, true
}

// handleChange is invoked by Argus with the parsed file content. Processing
// runs on the callback goroutine; apply failures leave the previous
// configuration in force.
func (w *ConfigWatcher) handleChange(raw map[string]any) {
	config, err := frameworkConfigFromMap(raw)
	if err != nil {
		w.logger.Error("Rejected configuration change", "path", w.path, "error", err)
		return
	}
	w.apply(config)
}

func (w *ConfigWatcher) apply(config FrameworkConfig) {
	previous := w.current.Load()
	if previous != nil &&
		previous.CacheCapacity == config.CacheCapacity &&
		previous.CacheWatermark == config.CacheWatermark {
		w.current.Store(&config)
		return
	}

	w.framework.ResizeCache(config.CacheCapacity, config.CacheWatermark)
	w.current.Store(&config)
	w.logger.Info("Configuration applied",
		"cache_capacity", config.CacheCapacity,
		"cache_watermark", config.CacheWatermark,
		"log_level", config.LogLevel)
}

// frameworkConfigFromMap converts the untyped map Argus delivers into a
// validated FrameworkConfig.
func frameworkConfigFromMap(raw map[string]any) (FrameworkConfig, error) {
	config := FrameworkConfig{}
	if v, ok := numericValue(raw["cache_capacity"]); ok {
		config.CacheCapacity = int(v)
	}
	if v, ok := numericValue(raw["cache_watermark"]); ok {
		config.CacheWatermark = int(v)
	}
	if v, ok := numericValue(raw["max_cached_result_bytes"]); ok {
		config.MaxCachedResultBytes = int(v)
	}
	if v, ok := raw["log_level"].(string); ok {
		config.LogLevel = v
	}
	if roots, ok := raw["discovery_roots"].([]any); ok {
		for _, r := range roots {
			if s, ok := r.(string); ok {
				config.DiscoveryRoots = append(config.DiscoveryRoots, s)
			}
		}
	}
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return FrameworkConfig{}, err
	}
	return config, nil
}
