// plugin.go: Plugin instance model, lifecycle and event hooks
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package gocapabilities

import (
	"context"
	"sync"
)

// Framework lifecycle events delivered to plugin hooks.
const (
	// EventFrameworkStarted fires when the framework starts
	EventFrameworkStarted = "framework_started"

	// EventFrameworkStopped fires when the framework stops
	EventFrameworkStopped = "framework_stopped"

	// EventPluginLoaded fires after a plugin finishes loading
	EventPluginLoaded = "plugin_loaded"

	// EventPluginUnloaded fires after a plugin is unloaded
	EventPluginUnloaded = "plugin_unloaded"

	// EventError fires when capability dispatch or pipeline execution fails
	EventError = "error"
)

// HookFunc handles a named framework event.
//
// A hook returning an error does not interrupt event delivery: the failure
// is logged and the remaining hooks still run.
type HookFunc func(ctx context.Context, data any) error

// InitializerFunc performs plugin setup when the framework loads the
// instance. Returning an error signals "do not register": the framework
// unwinds the registration completely.
type InitializerFunc func(ctx context.Context) error

// FinalizerFunc releases plugin resources on unload. It may be invoked more
// than once and must tolerate that.
type FinalizerFunc func(ctx context.Context) error

// PluginInstance is a loaded, identified object exposing capabilities,
// lifecycle callbacks and event hooks.
//
// Instances are built explicitly (by host code or by the Loader) and handed
// to the framework, which owns them from registration until unload. All
// capability and hook registration normally happens at construction time
// through options; late registration is supported but only takes effect in
// the capability index when the plugin is (re)loaded.
//
// Example:
//
//	p := NewPluginInstance("chroma-store", map[string]any{"collection": "docs"},
//	    WithCapability("store_vectors", nil, storeHandler),
//	    WithCapability("search_vectors", nil, searchHandler),
//	    WithDependencies("embedding-service"),
//	    WithInitializer(openClient),
//	    WithFinalizer(closeClient),
//	)
type PluginInstance struct {
	id     string
	config map[string]any

	mu           sync.RWMutex
	capabilities map[string]Capability
	capOrder     []string
	hooks        map[string][]HookFunc
	dependencies []string
	initializer  InitializerFunc
	finalizer    FinalizerFunc
	initialized  bool
	cleaned      bool
	logger       Logger
}

// PluginOption configures a PluginInstance at construction time.
type PluginOption func(*PluginInstance)

// WithCapability registers a named capability on the instance.
func WithCapability(name string, metadata map[string]any, handler CapabilityHandler) PluginOption {
	return func(p *PluginInstance) {
		p.registerCapability(NewCapability(name, metadata, handler))
	}
}

// WithHook registers an event hook. Hooks for the same event run in
// registration order.
func WithHook(event string, hook HookFunc) PluginOption {
	return func(p *PluginInstance) {
		p.AddHook(event, hook)
	}
}

// WithDependencies declares plugin ids this instance requires. The framework
// refuses to load the instance until every dependency is registered.
func WithDependencies(pluginIDs ...string) PluginOption {
	return func(p *PluginInstance) {
		p.dependencies = append(p.dependencies, pluginIDs...)
	}
}

// WithInitializer sets the setup callback invoked during LoadPlugin.
func WithInitializer(fn InitializerFunc) PluginOption {
	return func(p *PluginInstance) {
		p.initializer = fn
	}
}

// WithFinalizer sets the teardown callback invoked during UnloadPlugin.
func WithFinalizer(fn FinalizerFunc) PluginOption {
	return func(p *PluginInstance) {
		p.finalizer = fn
	}
}

// WithPluginLogger sets the logger used for hook failure reporting.
func WithPluginLogger(logger any) PluginOption {
	return func(p *PluginInstance) {
		p.logger = NewLogger(logger)
	}
}

// NewPluginInstance creates a plugin instance with the given globally unique
// id and per-plugin configuration.
func NewPluginInstance(id string, config map[string]any, opts ...PluginOption) *PluginInstance {
	p := &PluginInstance{
		id:           id,
		config:       config,
		capabilities: make(map[string]Capability),
		hooks:        make(map[string][]HookFunc),
		logger:       DefaultLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ID returns the plugin's globally unique identifier.
func (p *PluginInstance) ID() string {
	return p.id
}

// Config returns the plugin's configuration map.
func (p *PluginInstance) Config() map[string]any {
	return p.config
}

// Dependencies returns the plugin ids this instance requires.
func (p *PluginInstance) Dependencies() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	deps := make([]string, len(p.dependencies))
	copy(deps, p.dependencies)
	return deps
}

// Initialized reports whether the instance completed initialization.
func (p *PluginInstance) Initialized() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.initialized
}

func (p *PluginInstance) registerCapability(c Capability) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.capabilities[c.Name]; !exists {
		p.capOrder = append(p.capOrder, c.Name)
	}
	p.capabilities[c.Name] = c
}

// Provide registers a capability after construction. The framework only
// indexes capabilities present at load time, so late additions require a
// reload to become dispatchable.
func (p *PluginInstance) Provide(name string, metadata map[string]any, handler CapabilityHandler) {
	p.registerCapability(NewCapability(name, metadata, handler))
}

// Capability returns the named capability and whether it exists.
func (p *PluginInstance) Capability(name string) (Capability, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	c, ok := p.capabilities[name]
	return c, ok
}

// CapabilityNames returns capability names in registration order.
func (p *PluginInstance) CapabilityNames() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, len(p.capOrder))
	copy(names, p.capOrder)
	return names
}

// CapabilityInfos describes the instance's capabilities for introspection.
func (p *PluginInstance) CapabilityInfos() []CapabilityInfo {
	p.mu.RLock()
	defer p.mu.RUnlock()
	infos := make([]CapabilityInfo, 0, len(p.capOrder))
	for _, name := range p.capOrder {
		c := p.capabilities[name]
		infos = append(infos, CapabilityInfo{Name: c.Name, Metadata: c.Metadata})
	}
	return infos
}

// ExecuteCapability runs the named capability with the given invocation.
//
// Unknown names fail with a capability-not-found error; the call otherwise
// suspends until the handler returns. No timeout is imposed here — that
// belongs to the handler or to a wrapping middleware.
func (p *PluginInstance) ExecuteCapability(ctx context.Context, name string, inv Invocation) (any, error) {
	c, ok := p.Capability(name)
	if !ok {
		return nil, NewPluginCapabilityError(p.id, name)
	}
	return c.Execute(ctx, inv)
}

// AddHook registers an event hook on the instance.
func (p *PluginInstance) AddHook(event string, hook HookFunc) {
	if hook == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hooks[event] = append(p.hooks[event], hook)
}

// HookEvents returns the event names this instance subscribes to.
func (p *PluginInstance) HookEvents() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	events := make([]string, 0, len(p.hooks))
	for event := range p.hooks {
		events = append(events, event)
	}
	return events
}

// TriggerHooks invokes every hook registered for the event, in registration
// order. A failing hook is logged and skipped; it never stops delivery to
// the remaining hooks.
func (p *PluginInstance) TriggerHooks(ctx context.Context, event string, data any) {
	p.mu.RLock()
	hooks := make([]HookFunc, len(p.hooks[event]))
	copy(hooks, p.hooks[event])
	p.mu.RUnlock()

	for _, hook := range hooks {
		if err := p.safeHook(ctx, hook, data); err != nil {
			p.logger.Error("Hook failed",
				"plugin_id", p.id,
				"event", event,
				"error", err)
		}
	}
}

// safeHook shields event delivery from panicking hooks.
func (p *PluginInstance) safeHook(ctx context.Context, hook HookFunc, data any) error {
	return safeInvoke(p.logger, "hook", func() error {
		return hook(ctx, data)
	})
}

// Initialize runs the plugin's setup callback.
//
// The default contract always succeeds; instances built with an initializer
// may return an error to signal "should not be registered", in which case
// the framework rolls the registration back completely.
func (p *PluginInstance) Initialize(ctx context.Context) error {
	p.mu.Lock()
	initializer := p.initializer
	p.mu.Unlock()

	if initializer != nil {
		if err := initializer(ctx); err != nil {
			return err
		}
	}

	p.mu.Lock()
	p.initialized = true
	p.cleaned = false
	p.mu.Unlock()
	return nil
}

// Cleanup releases the plugin's resources, best-effort.
//
// Calling Cleanup on an already cleaned-up instance is a no-op; the
// finalizer runs at most once per initialization.
func (p *PluginInstance) Cleanup(ctx context.Context) error {
	p.mu.Lock()
	if p.cleaned {
		p.mu.Unlock()
		return nil
	}
	p.cleaned = true
	p.initialized = false
	finalizer := p.finalizer
	p.mu.Unlock()

	if finalizer != nil {
		return finalizer(ctx)
	}
	return nil
}

// PluginDetails is the introspection record returned by Framework.PluginInfo.
type PluginDetails struct {
	PluginID     string           `json:"plugin_id"`
	Initialized  bool             `json:"initialized"`
	Capabilities []CapabilityInfo `json:"capabilities"`
	Hooks        []string         `json:"hooks,omitempty"`
	Dependencies []string         `json:"dependencies,omitempty"`
	Config       map[string]any   `json:"config,omitempty"`
}
