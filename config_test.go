// config_test.go: Tests for framework configuration defaults and validation
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package gocapabilities

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameworkConfig_ApplyDefaults(t *testing.T) {
	config := FrameworkConfig{}
	config.ApplyDefaults()

	assert.Equal(t, DefaultCacheCapacity, config.CacheCapacity)
	assert.Equal(t, DefaultCacheWatermark, config.CacheWatermark)
	assert.Equal(t, DefaultMaxCachedResultBytes, config.MaxCachedResultBytes)
	assert.Equal(t, "info", config.LogLevel)

	// Set fields survive.
	custom := FrameworkConfig{CacheCapacity: 5000, LogLevel: "debug"}
	custom.ApplyDefaults()
	assert.Equal(t, 5000, custom.CacheCapacity)
	assert.Equal(t, "debug", custom.LogLevel)
}

func TestFrameworkConfig_Validate(t *testing.T) {
	valid := DefaultFrameworkConfig()
	require.NoError(t, valid.Validate())

	t.Run("watermark above capacity", func(t *testing.T) {
		c := DefaultFrameworkConfig()
		c.CacheWatermark = c.CacheCapacity + 1
		assert.Error(t, c.Validate())
	})

	t.Run("unknown log level", func(t *testing.T) {
		c := DefaultFrameworkConfig()
		c.LogLevel = "verbose"
		assert.Error(t, c.Validate())
	})

	t.Run("empty discovery root", func(t *testing.T) {
		c := DefaultFrameworkConfig()
		c.DiscoveryRoots = []string{""}
		assert.Error(t, c.Validate())
	})
}

func TestFrameworkConfigFromMap(t *testing.T) {
	t.Run("parses and defaults", func(t *testing.T) {
		config, err := frameworkConfigFromMap(map[string]any{
			"cache_capacity":  2000,
			"cache_watermark": 1800,
			"log_level":       "warn",
			"discovery_roots": []any{"/etc/caps/plugins"},
		})
		require.NoError(t, err)
		assert.Equal(t, 2000, config.CacheCapacity)
		assert.Equal(t, 1800, config.CacheWatermark)
		assert.Equal(t, "warn", config.LogLevel)
		assert.Equal(t, []string{"/etc/caps/plugins"}, config.DiscoveryRoots)
		assert.Equal(t, DefaultMaxCachedResultBytes, config.MaxCachedResultBytes)
	})

	t.Run("float values from decoders", func(t *testing.T) {
		config, err := frameworkConfigFromMap(map[string]any{
			"cache_capacity":  float64(2000),
			"cache_watermark": float64(1500),
		})
		require.NoError(t, err)
		assert.Equal(t, 2000, config.CacheCapacity)
		assert.Equal(t, 1500, config.CacheWatermark)
	})

	t.Run("invalid combination rejected", func(t *testing.T) {
		_, err := frameworkConfigFromMap(map[string]any{
			"cache_capacity":  100,
			"cache_watermark": 200,
		})
		assert.Error(t, err)
	})
}
