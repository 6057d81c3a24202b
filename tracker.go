// tracker.go: Per-provider invocation tracking for load-aware dispatch
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package gocapabilities

import (
	"sync"
	"sync/atomic"
)

// InvocationTracker records how many capability calls each plugin has
// received, both in-flight and cumulative.
//
// The cumulative counters drive provider selection: with no provider pinned,
// the dispatcher picks the plugin with the fewest recorded invocations so
// far. This is a least-loaded heuristic over call totals, not a round-robin
// counter that resets.
type InvocationTracker struct {
	mu     sync.RWMutex
	total  map[string]*atomic.Int64
	active map[string]*atomic.Int64

	metricsCollector MetricsCollector
	metricsPrefix    string
}

// NewInvocationTracker creates a tracker. The collector is optional; when
// present, active-call gauges and invocation counters are mirrored into it.
func NewInvocationTracker(collector MetricsCollector, prefix string) *InvocationTracker {
	return &InvocationTracker{
		total:            make(map[string]*atomic.Int64),
		active:           make(map[string]*atomic.Int64),
		metricsCollector: collector,
		metricsPrefix:    prefix,
	}
}

func (t *InvocationTracker) counter(m map[string]*atomic.Int64, pluginID string) *atomic.Int64 {
	t.mu.RLock()
	c, ok := m[pluginID]
	t.mu.RUnlock()
	if ok {
		return c
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok = m[pluginID]; !ok {
		c = &atomic.Int64{}
		m[pluginID] = c
	}
	return c
}

// Start records the beginning of a capability call against a plugin.
func (t *InvocationTracker) Start(pluginID string) {
	t.counter(t.total, pluginID).Add(1)
	active := t.counter(t.active, pluginID).Add(1)

	if t.metricsCollector != nil {
		labels := map[string]string{"plugin_id": pluginID}
		t.metricsCollector.IncrementCounter(t.metricsPrefix+"_invocations_total", labels, 1)
		t.metricsCollector.SetGauge(t.metricsPrefix+"_active_calls", labels, float64(active))
	}
}

// End records the completion of a capability call.
func (t *InvocationTracker) End(pluginID string) {
	active := t.counter(t.active, pluginID).Add(-1)

	if t.metricsCollector != nil {
		labels := map[string]string{"plugin_id": pluginID}
		t.metricsCollector.SetGauge(t.metricsPrefix+"_active_calls", labels, float64(active))
	}
}

// Total returns the cumulative invocation count for a plugin.
func (t *InvocationTracker) Total(pluginID string) int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if c, ok := t.total[pluginID]; ok {
		return c.Load()
	}
	return 0
}

// Active returns the in-flight call count for a plugin.
func (t *InvocationTracker) Active(pluginID string) int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if c, ok := t.active[pluginID]; ok {
		return c.Load()
	}
	return 0
}

// Totals returns a snapshot of cumulative invocation counts per plugin.
func (t *InvocationTracker) Totals() map[string]int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]int64, len(t.total))
	for id, c := range t.total {
		out[id] = c.Load()
	}
	return out
}

// Forget drops all counters for a plugin, typically after unload.
func (t *InvocationTracker) Forget(pluginID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.total, pluginID)
	delete(t.active, pluginID)
}

// LeastLoaded returns the candidate with the fewest recorded invocations.
// Ties resolve to the earliest candidate in the given order, which callers
// keep in provider registration order for stable selection.
func (t *InvocationTracker) LeastLoaded(candidates []string) (string, bool) {
	if len(candidates) == 0 {
		return "", false
	}
	best := candidates[0]
	bestCount := t.Total(best)
	for _, id := range candidates[1:] {
		if count := t.Total(id); count < bestCount {
			best = id
			bestCount = count
		}
	}
	return best, true
}
