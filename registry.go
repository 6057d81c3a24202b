// registry.go: Capability-to-provider index
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package gocapabilities

import (
	"sync"
)

// CapabilityRegistry maps capability names to the ordered set of plugin ids
// that provide them.
//
// The registry is pure bookkeeping: it never invokes plugins and holds no
// reference to instances. Provider order is registration order, which the
// dispatcher relies on for stable tie-breaking during provider selection.
//
// Invariants:
//   - a plugin id appears under a name only while that plugin exposes a
//     matching capability
//   - entries with zero providers are removed, never left empty
type CapabilityRegistry struct {
	mu        sync.RWMutex
	providers map[string][]string
}

// NewCapabilityRegistry creates an empty registry.
func NewCapabilityRegistry() *CapabilityRegistry {
	return &CapabilityRegistry{
		providers: make(map[string][]string),
	}
}

// Register adds the plugin id as a provider of every given capability name.
// Registering an id that is already present for a name is a no-op, so the
// operation is idempotent.
func (r *CapabilityRegistry) Register(pluginID string, capabilityNames []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range capabilityNames {
		if containsString(r.providers[name], pluginID) {
			continue
		}
		r.providers[name] = append(r.providers[name], pluginID)
	}
}

// Unregister removes the plugin id from every capability it provided and
// deletes entries left without providers.
func (r *CapabilityRegistry) Unregister(pluginID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, ids := range r.providers {
		filtered := ids[:0]
		for _, id := range ids {
			if id != pluginID {
				filtered = append(filtered, id)
			}
		}
		if len(filtered) == 0 {
			delete(r.providers, name)
			continue
		}
		r.providers[name] = filtered
	}
}

// Providers returns the ordered provider ids for a capability. Unknown
// capabilities yield an empty slice, never an error.
func (r *CapabilityRegistry) Providers(capabilityName string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := r.providers[capabilityName]
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

// Capabilities returns a snapshot of every capability name and its ordered
// providers.
func (r *CapabilityRegistry) Capabilities() map[string][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snapshot := make(map[string][]string, len(r.providers))
	for name, ids := range r.providers {
		dup := make([]string, len(ids))
		copy(dup, ids)
		snapshot[name] = dup
	}
	return snapshot
}

// Len returns the number of distinct capability names currently indexed.
func (r *CapabilityRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}

func containsString(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}
