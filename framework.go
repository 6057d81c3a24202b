// framework.go: Capability framework core with plugin lifecycle and events
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package gocapabilities

import (
	"context"
	"sync"
	"sync/atomic"
)

// ValidatorFunc inspects a plugin before it is admitted into the framework.
// A nil return admits the plugin; any error rejects the load. Validators
// fail closed: a panicking validator counts as a rejection.
type ValidatorFunc func(ctx context.Context, plugin *PluginInstance) error

// ErrorHandlerFunc receives dispatched errors for a registered category.
// Handler failures are logged and swallowed; the original error always
// reaches the caller regardless of what handlers do.
type ErrorHandlerFunc func(ctx context.Context, err error, report ErrorReport)

// ErrorReport carries the context of a failure to error handlers and the
// error event payload.
//
// Fields:
//   - Category: failure class used to select handlers
//   - Capability: capability being dispatched, when applicable
//   - PluginID: provider involved in the failure, when known
//   - Context: free-form detail (pipeline ids, candidate paths, ...)
type ErrorReport struct {
	Category   ErrorCategory  `json:"category"`
	Capability string         `json:"capability,omitempty"`
	PluginID   string         `json:"plugin_id,omitempty"`
	Context    map[string]any `json:"context,omitempty"`
}

// Framework is the central dispatcher of the capability system. It owns the
// loaded plugin instances, the capability registry, the result cache, the
// invocation tracker and the observability surface, and routes every
// capability call through middleware to a selected provider.
//
// All methods are safe for concurrent use.
type Framework struct {
	logger Logger

	mu            sync.RWMutex
	plugins       map[string]*PluginInstance
	pluginOrder   []string
	middleware    []Middleware
	validators    []ValidatorFunc
	errorHandlers map[ErrorCategory][]ErrorHandlerFunc
	extensions    map[string]any
	extOrder      []string
	configStore   map[string]any

	registry  *CapabilityRegistry
	cache     *resultCache
	tracker   *InvocationTracker
	metrics   *FrameworkMetrics
	collector MetricsCollector

	running atomic.Bool
}

// FrameworkOption configures a Framework during construction.
type FrameworkOption func(*Framework)

// WithMetricsCollector plugs an external metrics backend into the framework.
// Without it a DefaultMetricsCollector keeps metrics in memory.
func WithMetricsCollector(collector MetricsCollector) FrameworkOption {
	return func(f *Framework) {
		if collector != nil {
			f.collector = collector
		}
	}
}

// WithCacheLimits overrides the result cache sizing. Zero or negative values
// keep the corresponding default.
func WithCacheLimits(capacity, watermark, maxResultBytes int) FrameworkOption {
	return func(f *Framework) {
		f.cache = newResultCache(capacity, watermark, maxResultBytes)
	}
}

// WithValidator registers a plugin validator evaluated on every LoadPlugin.
func WithValidator(v ValidatorFunc) FrameworkOption {
	return func(f *Framework) {
		if v != nil {
			f.validators = append(f.validators, v)
		}
	}
}

// WithMiddleware appends call middleware at construction time.
func WithMiddleware(mw ...Middleware) FrameworkOption {
	return func(f *Framework) {
		for _, m := range mw {
			if m != nil {
				f.middleware = append(f.middleware, m)
			}
		}
	}
}

// NewFramework creates a capability framework.
//
// The logger parameter accepts a Logger, a *zap.Logger, or nil for the
// default logger, mirroring NewPluginInstance.
//
// Example:
//
//	framework := gocapabilities.NewFramework(logger,
//	    gocapabilities.WithMetricsCollector(collector),
//	    gocapabilities.WithCacheLimits(2000, 1800, 16384))
func NewFramework(logger any, opts ...FrameworkOption) *Framework {
	f := &Framework{
		logger:        NewLogger(logger),
		plugins:       make(map[string]*PluginInstance),
		errorHandlers: make(map[ErrorCategory][]ErrorHandlerFunc),
		extensions:    make(map[string]any),
		configStore:   make(map[string]any),
		registry:      NewCapabilityRegistry(),
		cache:         newResultCache(DefaultCacheCapacity, DefaultCacheWatermark, DefaultMaxCachedResultBytes),
		metrics:       &FrameworkMetrics{},
		collector:     NewDefaultMetricsCollector(),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.tracker = NewInvocationTracker(f.collector, "gocapabilities")
	return f
}

// Start marks the framework running and emits the framework_started event to
// every loaded plugin. Starting twice is a no-op.
func (f *Framework) Start(ctx context.Context) {
	if !f.running.CompareAndSwap(false, true) {
		return
	}
	f.logger.Info("Capability framework started")
	f.EmitEvent(ctx, EventFrameworkStarted, nil)
}

// Stop emits framework_stopped and marks the framework as not running.
// Loaded plugins stay loaded; use Shutdown to unload them.
func (f *Framework) Stop(ctx context.Context) {
	if !f.running.CompareAndSwap(true, false) {
		return
	}
	f.EmitEvent(ctx, EventFrameworkStopped, nil)
	f.logger.Info("Capability framework stopped")
}

// Running reports whether Start has been called without a matching Stop.
func (f *Framework) Running() bool {
	return f.running.Load()
}

// LoadPlugin admits a plugin into the framework.
//
// The load sequence is: structural validation (non-empty id, unique id, at
// least one capability), registered validators, dependency check against
// already-loaded plugins, capability registration, then Initialize. If the
// initializer fails the registration is unwound completely and the error is
// returned; a half-loaded plugin is never observable. On success the
// plugin_loaded event is emitted to all loaded plugins, the new one
// included.
func (f *Framework) LoadPlugin(ctx context.Context, plugin *PluginInstance) error {
	if plugin == nil || plugin.ID() == "" {
		err := NewInvalidPluginIDError("")
		f.dispatchError(ctx, err, ErrorReport{Category: ErrorCategoryPluginLoad})
		return err
	}
	id := plugin.ID()

	if err := f.admit(ctx, plugin); err != nil {
		f.dispatchError(ctx, err, ErrorReport{Category: ErrorCategoryPluginLoad, PluginID: id})
		return err
	}

	if err := plugin.Initialize(ctx); err != nil {
		f.unregister(id)
		wrapped := NewInitializationFailedError(id, err)
		f.dispatchError(ctx, wrapped, ErrorReport{Category: ErrorCategoryPluginLoad, PluginID: id})
		return wrapped
	}

	f.metrics.PluginsLoaded.Add(1)
	f.collector.IncrementCounter("gocapabilities_plugins_loaded_total", nil, 1)
	f.logger.Info("Plugin loaded",
		"plugin_id", id,
		"capabilities", plugin.CapabilityNames())
	f.EmitEvent(ctx, EventPluginLoaded, map[string]any{"plugin_id": id})
	return nil
}

// admit runs validation and dependency checks, then registers the plugin
// under the framework lock. Initialize runs outside the lock.
func (f *Framework) admit(ctx context.Context, plugin *PluginInstance) error {
	id := plugin.ID()
	if len(plugin.CapabilityNames()) == 0 {
		return NewNoCapabilitiesError(id)
	}

	f.mu.RLock()
	validators := make([]ValidatorFunc, len(f.validators))
	copy(validators, f.validators)
	f.mu.RUnlock()

	for _, validate := range validators {
		err := safeInvoke(f.logger, "validator", func() error {
			return validate(ctx, plugin)
		})
		if err != nil {
			return NewValidationFailedError(id, err)
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.plugins[id]; exists {
		return NewDuplicatePluginIDError(id)
	}
	for _, dep := range plugin.Dependencies() {
		if _, ok := f.plugins[dep]; !ok {
			return NewDependencyMissingError(id, dep)
		}
	}

	f.plugins[id] = plugin
	f.pluginOrder = append(f.pluginOrder, id)
	f.registry.Register(id, plugin.CapabilityNames())
	return nil
}

// unregister reverses admit. Used for rollback and unload.
func (f *Framework) unregister(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.plugins, id)
	for i, existing := range f.pluginOrder {
		if existing == id {
			f.pluginOrder = append(f.pluginOrder[:i], f.pluginOrder[i+1:]...)
			break
		}
	}
	f.registry.Unregister(id)
}

// UnloadPlugin removes a plugin from the framework. Unknown ids are a no-op
// returning false. The plugin's finalizer runs first; finalizer errors are
// logged but never block deregistration. The result cache is flushed whole:
// unpinned entries are not attributable to a provider, so a full flush is
// the only way to guarantee no cached value outlives the plugin that
// produced it. The plugin_unloaded event goes out to the plugins that
// remain loaded.
func (f *Framework) UnloadPlugin(ctx context.Context, pluginID string) bool {
	f.mu.RLock()
	plugin, ok := f.plugins[pluginID]
	f.mu.RUnlock()
	if !ok {
		return false
	}

	if err := plugin.Cleanup(ctx); err != nil {
		f.logger.Warn("Plugin cleanup failed during unload",
			"plugin_id", pluginID,
			"error", err)
	}

	f.unregister(pluginID)
	f.tracker.Forget(pluginID)
	f.cache.clear()
	f.logger.Info("Plugin unloaded", "plugin_id", pluginID)
	f.EmitEvent(ctx, EventPluginUnloaded, map[string]any{"plugin_id": pluginID})
	return true
}

// Shutdown stops the framework and unloads every plugin in reverse load
// order, so dependents go before their dependencies.
func (f *Framework) Shutdown(ctx context.Context) {
	f.Stop(ctx)

	f.mu.RLock()
	order := make([]string, len(f.pluginOrder))
	copy(order, f.pluginOrder)
	f.mu.RUnlock()

	for i := len(order) - 1; i >= 0; i-- {
		f.UnloadPlugin(ctx, order[i])
	}
	f.cache.clear()
	f.logger.Info("Capability framework shut down", "plugins_unloaded", len(order))
}

// Plugin returns a loaded plugin instance by id.
func (f *Framework) Plugin(pluginID string) (*PluginInstance, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	p, ok := f.plugins[pluginID]
	return p, ok
}

// ListPlugins returns the ids of all loaded plugins in load order.
func (f *Framework) ListPlugins() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]string, len(f.pluginOrder))
	copy(out, f.pluginOrder)
	return out
}

// PluginInfo returns the introspection record for a loaded plugin.
func (f *Framework) PluginInfo(pluginID string) (PluginDetails, error) {
	plugin, ok := f.Plugin(pluginID)
	if !ok {
		return PluginDetails{}, NewPluginNotFoundError(pluginID)
	}
	return PluginDetails{
		PluginID:     plugin.ID(),
		Initialized:  plugin.Initialized(),
		Capabilities: plugin.CapabilityInfos(),
		Hooks:        plugin.HookEvents(),
		Dependencies: plugin.Dependencies(),
		Config:       plugin.Config(),
	}, nil
}

// ListCapabilities returns every registered capability name mapped to its
// providers in registration order.
func (f *Framework) ListCapabilities() map[string][]string {
	return f.registry.Capabilities()
}

// DiscoverProviders returns the provider records for a capability, enriched
// with each provider's capability metadata.
func (f *Framework) DiscoverProviders(capabilityName string) []ProviderInfo {
	providers := f.registry.Providers(capabilityName)
	out := make([]ProviderInfo, 0, len(providers))

	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, id := range providers {
		plugin, ok := f.plugins[id]
		if !ok {
			continue
		}
		info := ProviderInfo{PluginID: id, Capability: capabilityName}
		if c, found := plugin.Capability(capabilityName); found {
			info.Metadata = c.Metadata
		}
		out = append(out, info)
	}
	return out
}

// AddMiddleware appends a middleware to the dispatch chain. Middleware
// registered here applies to calls started after registration.
func (f *Framework) AddMiddleware(mw Middleware) {
	if mw == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.middleware = append(f.middleware, mw)
}

// AddValidator registers a plugin validator for subsequent loads.
func (f *Framework) AddValidator(v ValidatorFunc) {
	if v == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.validators = append(f.validators, v)
}

// AddErrorHandler registers a handler for an error category. Multiple
// handlers per category run in registration order.
func (f *Framework) AddErrorHandler(category ErrorCategory, handler ErrorHandlerFunc) {
	if handler == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errorHandlers[category] = append(f.errorHandlers[category], handler)
}

// dispatchError routes a failure to the handlers registered for its
// category, records metrics, and emits the error event. Handler panics and
// errors are contained; callers always surface the original error.
func (f *Framework) dispatchError(ctx context.Context, err error, report ErrorReport) {
	f.metrics.Errors.Add(1)
	f.collector.IncrementCounter("gocapabilities_errors_total",
		map[string]string{"category": string(report.Category)}, 1)

	f.mu.RLock()
	handlers := make([]ErrorHandlerFunc, len(f.errorHandlers[report.Category]))
	copy(handlers, f.errorHandlers[report.Category])
	f.mu.RUnlock()

	for _, handler := range handlers {
		h := handler
		if hErr := safeInvoke(f.logger, "error_handler", func() error {
			h(ctx, err, report)
			return nil
		}); hErr != nil {
			f.logger.Warn("Error handler failed",
				"category", string(report.Category),
				"error", hErr)
		}
	}

	f.EmitEvent(ctx, EventError, map[string]any{
		"category":   string(report.Category),
		"capability": report.Capability,
		"plugin_id":  report.PluginID,
		"error":      err.Error(),
	})
}

// EmitEvent delivers an event to the hooks of every loaded plugin in load
// order. Hook failures are isolated per plugin and never interrupt
// delivery.
func (f *Framework) EmitEvent(ctx context.Context, event string, data any) {
	f.mu.RLock()
	order := make([]string, len(f.pluginOrder))
	copy(order, f.pluginOrder)
	plugins := make(map[string]*PluginInstance, len(f.plugins))
	for id, p := range f.plugins {
		plugins[id] = p
	}
	f.mu.RUnlock()

	f.metrics.EventsEmitted.Add(1)
	f.collector.IncrementCounter("gocapabilities_events_total",
		map[string]string{"event": event}, 1)

	for _, id := range order {
		if plugin, ok := plugins[id]; ok {
			plugin.TriggerHooks(ctx, event, data)
		}
	}
}

// SetConfig stores a framework-scoped configuration value.
func (f *Framework) SetConfig(key string, value any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configStore[key] = value
}

// GetConfig returns a framework-scoped configuration value.
func (f *Framework) GetConfig(key string) (any, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.configStore[key]
	return v, ok
}

// Extend attaches a named extension object to the framework. Extensions are
// opaque to the dispatcher; pipelines and hosts retrieve them by name.
func (f *Framework) Extend(name string, extension any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.extensions[name]; !exists {
		f.extOrder = append(f.extOrder, name)
	}
	f.extensions[name] = extension
}

// Extension returns a previously attached extension by name.
func (f *Framework) Extension(name string) (any, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.extensions[name]
	return v, ok
}

// ClearCache drops every cached capability result.
func (f *Framework) ClearCache() {
	f.cache.clear()
	f.logger.Debug("Result cache cleared")
}

// ResizeCache adjusts the result cache capacity and eviction watermark at
// runtime. Used by the configuration watcher.
func (f *Framework) ResizeCache(capacity, watermark int) {
	f.cache.resize(capacity, watermark)
	f.logger.Info("Result cache resized",
		"capacity", capacity,
		"watermark", watermark)
}

// Stats returns a point-in-time statistics snapshot.
func (f *Framework) Stats() FrameworkStats {
	f.mu.RLock()
	totalPlugins := len(f.plugins)
	middlewareCount := len(f.middleware)
	extensions := make([]string, len(f.extOrder))
	copy(extensions, f.extOrder)
	f.mu.RUnlock()

	calls := f.metrics.Calls.Load()
	errs := f.metrics.Errors.Load()
	hits := f.metrics.CacheHits.Load()

	stats := FrameworkStats{
		Running:               f.running.Load(),
		TotalPlugins:          totalPlugins,
		TotalCapabilities:     f.registry.Len(),
		MiddlewareCount:       middlewareCount,
		Calls:                 calls,
		Errors:                errs,
		CacheHits:             hits,
		CacheSize:             f.cache.len(),
		PluginsLoaded:         f.metrics.PluginsLoaded.Load(),
		ProvidersByCapability: make(map[string]int),
		InvocationsByPlugin:   f.tracker.Totals(),
		Extensions:            extensions,
	}
	for name, providers := range f.registry.Capabilities() {
		stats.ProvidersByCapability[name] = len(providers)
	}
	if calls > 0 {
		stats.CacheHitRate = float64(hits) / float64(calls)
		stats.ErrorRate = float64(errs) / float64(calls)
	}
	return stats
}
