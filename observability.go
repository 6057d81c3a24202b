// observability.go: Metrics collection interfaces and framework statistics
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package gocapabilities

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// MetricsCollector abstracts the metrics backend for the framework and the
// pipeline engine.
//
// The interface is intentionally small and label-based so it maps cleanly
// onto Prometheus, OpenTelemetry or an in-memory collector. The framework
// records dispatch counters, cache activity and latency histograms through
// it; hosts that do not care about metrics use the default in-memory
// collector and never look at it.
//
// Example usage:
//
//	collector.IncrementCounter("capability_calls_total",
//	    map[string]string{"capability": "search_vectors", "plugin": "chroma"}, 1)
//	collector.RecordHistogram("capability_latency_seconds",
//	    map[string]string{"capability": "generate_text"}, 0.125)
type MetricsCollector interface {
	// IncrementCounter adds value to a monotonically increasing counter
	IncrementCounter(name string, labels map[string]string, value int64)

	// SetGauge sets a point-in-time value
	SetGauge(name string, labels map[string]string, value float64)

	// RecordHistogram records an observation in a distribution
	RecordHistogram(name string, labels map[string]string, value float64)

	// GetMetrics returns a snapshot of everything recorded so far
	GetMetrics() map[string]any
}

// FrameworkMetrics tracks dispatch counters with lock-free atomics. These
// are the authoritative totals used to derive the stats accessor; the
// MetricsCollector mirrors them for external backends.
type FrameworkMetrics struct {
	Calls         atomic.Int64
	Errors        atomic.Int64
	CacheHits     atomic.Int64
	PluginsLoaded atomic.Int64
	EventsEmitted atomic.Int64
}

// FrameworkStats is the derived statistics snapshot returned by
// Framework.Stats. Rates are computed at read time, never tracked
// separately.
type FrameworkStats struct {
	Running              bool             `json:"running"`
	TotalPlugins         int              `json:"total_plugins"`
	TotalCapabilities    int              `json:"total_capabilities"`
	MiddlewareCount      int              `json:"middleware_count"`
	Calls                int64            `json:"calls"`
	Errors               int64            `json:"errors"`
	CacheHits            int64            `json:"cache_hits"`
	CacheSize            int              `json:"cache_size"`
	CacheHitRate         float64          `json:"cache_hit_rate"`
	ErrorRate            float64          `json:"error_rate"`
	PluginsLoaded        int64            `json:"plugins_loaded"`
	ProvidersByCapability map[string]int  `json:"providers_by_capability"`
	InvocationsByPlugin  map[string]int64 `json:"invocations_by_plugin"`
	Extensions           []string         `json:"extensions,omitempty"`
}

// DefaultMetricsCollector is a thread-safe in-memory collector used when the
// host does not plug in a real backend. Histograms keep only count and sum,
// enough for averages in tests and debug endpoints.
type DefaultMetricsCollector struct {
	mu         sync.RWMutex
	counters   map[string]int64
	gauges     map[string]float64
	histograms map[string]*histogramSnapshot
}

type histogramSnapshot struct {
	Count int64   `json:"count"`
	Sum   float64 `json:"sum"`
}

// NewDefaultMetricsCollector creates an empty in-memory collector.
func NewDefaultMetricsCollector() *DefaultMetricsCollector {
	return &DefaultMetricsCollector{
		counters:   make(map[string]int64),
		gauges:     make(map[string]float64),
		histograms: make(map[string]*histogramSnapshot),
	}
}

// IncrementCounter implements MetricsCollector
func (c *DefaultMetricsCollector) IncrementCounter(name string, labels map[string]string, value int64) {
	key := metricKey(name, labels)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters[key] += value
}

// SetGauge implements MetricsCollector
func (c *DefaultMetricsCollector) SetGauge(name string, labels map[string]string, value float64) {
	key := metricKey(name, labels)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gauges[key] = value
}

// RecordHistogram implements MetricsCollector
func (c *DefaultMetricsCollector) RecordHistogram(name string, labels map[string]string, value float64) {
	key := metricKey(name, labels)
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.histograms[key]
	if !ok {
		h = &histogramSnapshot{}
		c.histograms[key] = h
	}
	h.Count++
	h.Sum += value
}

// GetMetrics implements MetricsCollector
func (c *DefaultMetricsCollector) GetMetrics() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]any, len(c.counters)+len(c.gauges)+len(c.histograms))
	for k, v := range c.counters {
		out[k] = v
	}
	for k, v := range c.gauges {
		out[k] = v
	}
	for k, h := range c.histograms {
		out[k] = histogramSnapshot{Count: h.Count, Sum: h.Sum}
	}
	return out
}

// metricKey builds a stable key from a metric name and its labels, sorting
// label names so equivalent label sets collapse to one series.
func metricKey(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}
	names := make([]string, 0, len(labels))
	for k := range labels {
		names = append(names, k)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('{')
	for i, k := range names {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%s=%q", k, labels[k])
	}
	b.WriteByte('}')
	return b.String()
}
