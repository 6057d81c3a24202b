// cache.go: Capability result cache with bulk oldest-first eviction
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package gocapabilities

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/agilira/go-timecache"
)

const (
	// DefaultCacheCapacity is the entry count that triggers bulk eviction.
	DefaultCacheCapacity = 1000

	// DefaultCacheWatermark is the entry count eviction shrinks the cache to.
	DefaultCacheWatermark = 900

	// DefaultMaxCachedResultBytes bounds the serialized size of a cacheable
	// result. Larger results are returned but never stored.
	DefaultMaxCachedResultBytes = 10000
)

// resultCache stores capability results keyed by a deterministic digest of
// the call. Eviction is deliberately coarse: when the cache grows past its
// capacity, the oldest-inserted entries are dropped in bulk down to the
// watermark. Insertion order, not access order, decides victims — repeat
// readers do not keep an entry alive.
type resultCache struct {
	mu        sync.Mutex
	entries   map[string]cacheEntry
	order     []string
	capacity  int
	watermark int
	maxBytes  int
}

type cacheEntry struct {
	value      any
	insertedAt time.Time
}

func newResultCache(capacity, watermark, maxBytes int) *resultCache {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	if watermark <= 0 || watermark >= capacity {
		watermark = capacity * 9 / 10
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxCachedResultBytes
	}
	return &resultCache{
		entries:   make(map[string]cacheEntry),
		capacity:  capacity,
		watermark: watermark,
		maxBytes:  maxBytes,
	}
}

// key derives the deterministic cache key for a call. The provider pin is
// part of the key, so a pinned call and an auto-selected call never share an
// entry. Keywords are serialized in sorted order. Calls whose arguments
// cannot be serialized are reported as non-cacheable.
func (rc *resultCache) key(capability, pluginID string, inv Invocation) (string, bool) {
	args, err := json.Marshal(inv.Args)
	if err != nil {
		return "", false
	}

	names := make([]string, 0, len(inv.Keywords))
	for name := range inv.Keywords {
		names = append(names, name)
	}
	sort.Strings(names)

	h := sha256.New()
	h.Write([]byte(capability))
	h.Write([]byte{0})
	h.Write([]byte(pluginID))
	h.Write([]byte{0})
	h.Write(args)
	for _, name := range names {
		kw, err := json.Marshal(inv.Keywords[name])
		if err != nil {
			return "", false
		}
		h.Write([]byte{0})
		h.Write([]byte(name))
		h.Write([]byte{'='})
		h.Write(kw)
	}
	return hex.EncodeToString(h.Sum(nil)), true
}

// get returns the cached value for the key, if present.
func (rc *resultCache) get(key string) (any, bool) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	entry, ok := rc.entries[key]
	if !ok {
		return nil, false
	}
	return entry.value, true
}

// cacheable reports whether a result is small enough to store.
func (rc *resultCache) cacheable(result any) bool {
	data, err := json.Marshal(result)
	if err != nil {
		return false
	}
	return len(data) <= rc.maxBytes
}

// put stores a value and evicts oldest-inserted entries in bulk when the
// cache exceeds capacity.
func (rc *resultCache) put(key string, value any) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if _, exists := rc.entries[key]; !exists {
		rc.order = append(rc.order, key)
	}
	rc.entries[key] = cacheEntry{value: value, insertedAt: timecache.CachedTime()}

	if len(rc.entries) > rc.capacity {
		rc.evictLocked()
	}
}

// evictLocked drops the oldest insertions until the watermark is reached.
func (rc *resultCache) evictLocked() {
	excess := len(rc.entries) - rc.watermark
	if excess <= 0 {
		return
	}
	victims := rc.order[:excess]
	for _, key := range victims {
		delete(rc.entries, key)
	}
	rc.order = append([]string(nil), rc.order[excess:]...)
}

// clear wipes the cache.
func (rc *resultCache) clear() {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.entries = make(map[string]cacheEntry)
	rc.order = nil
}

// len returns the current entry count.
func (rc *resultCache) len() int {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return len(rc.entries)
}

// resize applies new capacity and watermark, evicting immediately if the
// cache is already above the new capacity. Used by the runtime config
// watcher.
func (rc *resultCache) resize(capacity, watermark int) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if capacity > 0 {
		rc.capacity = capacity
	}
	if watermark > 0 && watermark < rc.capacity {
		rc.watermark = watermark
	} else {
		rc.watermark = rc.capacity * 9 / 10
	}
	if len(rc.entries) > rc.capacity {
		rc.evictLocked()
	}
}
