// config.go: Framework configuration with defaults and validation
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package gocapabilities

import (
	"fmt"
)

// FrameworkConfig is the file-loadable configuration for a capability
// framework. It feeds both initial construction and runtime reconfiguration
// through the configuration watcher.
//
// Fields:
//   - CacheCapacity: entry count that triggers a bulk eviction
//   - CacheWatermark: entry count the cache shrinks to when evicting
//   - MaxCachedResultBytes: serialized size above which results skip the cache
//   - DiscoveryRoots: directories the loader scans for plugin manifests
//   - LogLevel: minimum level for hosts that map it onto their logger
type FrameworkConfig struct {
	CacheCapacity        int      `yaml:"cache_capacity,omitempty" json:"cache_capacity,omitempty"`
	CacheWatermark       int      `yaml:"cache_watermark,omitempty" json:"cache_watermark,omitempty"`
	MaxCachedResultBytes int      `yaml:"max_cached_result_bytes,omitempty" json:"max_cached_result_bytes,omitempty"`
	DiscoveryRoots       []string `yaml:"discovery_roots,omitempty" json:"discovery_roots,omitempty"`
	LogLevel             string   `yaml:"log_level,omitempty" json:"log_level,omitempty"`
}

// DefaultFrameworkConfig returns the configuration the framework uses when
// no file is supplied.
func DefaultFrameworkConfig() FrameworkConfig {
	return FrameworkConfig{
		CacheCapacity:        DefaultCacheCapacity,
		CacheWatermark:       DefaultCacheWatermark,
		MaxCachedResultBytes: DefaultMaxCachedResultBytes,
		LogLevel:             "info",
	}
}

// ApplyDefaults fills unset fields with their defaults.
func (c *FrameworkConfig) ApplyDefaults() {
	defaults := DefaultFrameworkConfig()
	if c.CacheCapacity <= 0 {
		c.CacheCapacity = defaults.CacheCapacity
	}
	if c.CacheWatermark <= 0 {
		c.CacheWatermark = defaults.CacheWatermark
	}
	if c.MaxCachedResultBytes <= 0 {
		c.MaxCachedResultBytes = defaults.MaxCachedResultBytes
	}
	if c.LogLevel == "" {
		c.LogLevel = defaults.LogLevel
	}
}

var logLevels = []string{"debug", "info", "warn", "error"}

// Validate checks internal consistency after defaults are applied.
func (c *FrameworkConfig) Validate() error {
	if c.CacheWatermark >= c.CacheCapacity {
		return NewConfigParseError("framework config",
			fmt.Errorf("cache_watermark %d must be below cache_capacity %d", c.CacheWatermark, c.CacheCapacity))
	}
	if !containsString(logLevels, c.LogLevel) {
		return NewConfigParseError("framework config",
			fmt.Errorf("unknown log_level %q", c.LogLevel))
	}
	for _, root := range c.DiscoveryRoots {
		if root == "" {
			return NewConfigParseError("framework config",
				fmt.Errorf("empty discovery root"))
		}
	}
	return nil
}
