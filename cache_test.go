// cache_test.go: Tests for result cache keys, eviction and size limits
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package gocapabilities

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultCache_KeyDeterminism(t *testing.T) {
	cache := newResultCache(0, 0, 0)
	inv := Invocation{Args: []any{"query", 5}, Keywords: map[string]any{"b": 2, "a": 1}}

	key1, ok1 := cache.key("search", "dense", inv)
	key2, ok2 := cache.key("search", "dense", inv)
	require.True(t, ok1)
	require.True(t, ok2)
	assert.Equal(t, key1, key2, "identical invocations must produce identical keys")

	// Keyword insertion order must not matter.
	other := Invocation{Args: []any{"query", 5}, Keywords: map[string]any{"a": 1, "b": 2}}
	key3, _ := cache.key("search", "dense", other)
	assert.Equal(t, key1, key3)
}

func TestResultCache_KeyDiscriminates(t *testing.T) {
	cache := newResultCache(0, 0, 0)
	inv := Invocation{Args: []any{"query"}}

	base, _ := cache.key("search", "dense", inv)

	byCapability, _ := cache.key("rank", "dense", inv)
	byProvider, _ := cache.key("search", "sparse", inv)
	byArgs, _ := cache.key("search", "dense", Invocation{Args: []any{"other"}})

	assert.NotEqual(t, base, byCapability)
	assert.NotEqual(t, base, byProvider)
	assert.NotEqual(t, base, byArgs)
}

func TestResultCache_UnserializableArgs(t *testing.T) {
	cache := newResultCache(0, 0, 0)
	inv := Invocation{Args: []any{make(chan int)}}

	_, ok := cache.key("search", "dense", inv)
	assert.False(t, ok, "unserializable arguments must opt out of caching")
}

func TestResultCache_PutGet(t *testing.T) {
	cache := newResultCache(0, 0, 0)

	cache.put("k1", "value")
	v, hit := cache.get("k1")
	require.True(t, hit)
	assert.Equal(t, "value", v)

	_, hit = cache.get("k2")
	assert.False(t, hit)
}

func TestResultCache_SizeThreshold(t *testing.T) {
	cache := newResultCache(0, 0, 0)

	assert.True(t, cache.cacheable("small"))
	assert.True(t, cache.cacheable(map[string]any{"k": 1}))

	big := strings.Repeat("x", DefaultMaxCachedResultBytes+1)
	assert.False(t, cache.cacheable(big), "oversized results must not be cached")

	assert.False(t, cache.cacheable(make(chan int)), "unserializable results must not be cached")
}

func TestResultCache_Eviction(t *testing.T) {
	cache := newResultCache(10, 8, 0)

	for i := 0; i < 10; i++ {
		cache.put(fmt.Sprintf("k%02d", i), i)
	}
	assert.Equal(t, 10, cache.len())

	// Exceeding capacity triggers a bulk eviction down to the watermark,
	// dropping the oldest-inserted entries first.
	cache.put("k10", 10)
	assert.Equal(t, 8, cache.len())

	_, hit := cache.get("k00")
	assert.False(t, hit, "oldest entry must be evicted")
	_, hit = cache.get("k10")
	assert.True(t, hit, "newest entry must survive")
}

func TestResultCache_Clear(t *testing.T) {
	cache := newResultCache(0, 0, 0)
	cache.put("k1", 1)
	cache.put("k2", 2)

	cache.clear()
	assert.Equal(t, 0, cache.len())
}

func TestResultCache_Resize(t *testing.T) {
	cache := newResultCache(100, 90, 0)
	for i := 0; i < 20; i++ {
		cache.put(fmt.Sprintf("k%02d", i), i)
	}

	// Shrinking below the current size evicts immediately.
	cache.resize(10, 5)
	assert.LessOrEqual(t, cache.len(), 10)
}
