// observability_prometheus.go: Prometheus-backed metrics collector
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package gocapabilities

import (
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetricsCollector implements MetricsCollector on top of a
// prometheus.Registerer. Metric vectors are created lazily on first use with
// the label names observed then; subsequent records for the same metric must
// use the same label set, which is how the framework emits them.
//
// Example usage:
//
//	reg := prometheus.NewRegistry()
//	fw := NewFramework(logger, WithMetricsCollector(NewPrometheusMetricsCollector(reg)))
type PrometheusMetricsCollector struct {
	registerer prometheus.Registerer

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
}

// NewPrometheusMetricsCollector creates a collector registering metrics on
// the given registerer. A nil registerer falls back to the default one.
func NewPrometheusMetricsCollector(registerer prometheus.Registerer) *PrometheusMetricsCollector {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	return &PrometheusMetricsCollector{
		registerer: registerer,
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}
}

func labelNames(labels map[string]string) []string {
	names := make([]string, 0, len(labels))
	for name := range labels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IncrementCounter implements MetricsCollector
func (p *PrometheusMetricsCollector) IncrementCounter(name string, labels map[string]string, value int64) {
	p.mu.Lock()
	vec, ok := p.counters[name]
	if !ok {
		vec = prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: name},
			labelNames(labels),
		)
		p.registerer.MustRegister(vec)
		p.counters[name] = vec
	}
	p.mu.Unlock()

	vec.With(prometheus.Labels(labels)).Add(float64(value))
}

// SetGauge implements MetricsCollector
func (p *PrometheusMetricsCollector) SetGauge(name string, labels map[string]string, value float64) {
	p.mu.Lock()
	vec, ok := p.gauges[name]
	if !ok {
		vec = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: name},
			labelNames(labels),
		)
		p.registerer.MustRegister(vec)
		p.gauges[name] = vec
	}
	p.mu.Unlock()

	vec.With(prometheus.Labels(labels)).Set(value)
}

// RecordHistogram implements MetricsCollector
func (p *PrometheusMetricsCollector) RecordHistogram(name string, labels map[string]string, value float64) {
	p.mu.Lock()
	vec, ok := p.histograms[name]
	if !ok {
		vec = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Name: name, Buckets: prometheus.DefBuckets},
			labelNames(labels),
		)
		p.registerer.MustRegister(vec)
		p.histograms[name] = vec
	}
	p.mu.Unlock()

	vec.With(prometheus.Labels(labels)).Observe(value)
}

// GetMetrics implements MetricsCollector.
//
// Prometheus owns the scrape surface; this snapshot only reports which
// series families exist, for debug introspection parity with the default
// collector.
func (p *PrometheusMetricsCollector) GetMetrics() map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()

	families := make([]string, 0, len(p.counters)+len(p.gauges)+len(p.histograms))
	for name := range p.counters {
		families = append(families, name)
	}
	for name := range p.gauges {
		families = append(families, name)
	}
	for name := range p.histograms {
		families = append(families, name)
	}
	sort.Strings(families)
	return map[string]any{"families": families}
}
