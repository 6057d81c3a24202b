// factory.go: Plugin construction strategies for the discovery loader
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package gocapabilities

import (
	"context"
	"sort"
	"sync"
)

// PluginFactory builds a plugin instance from a validated manifest. The
// loader selects a factory by the manifest's type field, so a factory
// typically represents one construction technique (in-process registration,
// gRPC remote, subprocess adapter).
type PluginFactory interface {
	// CreatePlugin builds the instance for a manifest. The config has
	// already been merged and schema-validated.
	CreatePlugin(ctx context.Context, manifest *PluginManifest, config map[string]any) (*PluginInstance, error)

	// SupportedTypes lists the manifest type values this factory accepts.
	SupportedTypes() []string
}

// BuilderFunc constructs a plugin instance directly, without a manifest
// type indirection. Builders are registered per candidate id and take
// precedence over FuncSets.
type BuilderFunc func(ctx context.Context, manifest *PluginManifest, config map[string]any) (*PluginInstance, error)

// FuncSet maps capability names to handlers. It is the lightest way to back
// a discovered manifest: the loader wraps the set into a PluginInstance
// whose capabilities are exactly the map's entries.
type FuncSet map[string]CapabilityHandler

// FactoryRegistry resolves manifest types and candidate ids to construction
// strategies. Safe for concurrent use.
type FactoryRegistry struct {
	mu        sync.RWMutex
	factories map[string]PluginFactory
	builders  map[string]BuilderFunc
	funcSets  map[string]FuncSet
}

// NewFactoryRegistry creates an empty factory registry.
func NewFactoryRegistry() *FactoryRegistry {
	return &FactoryRegistry{
		factories: make(map[string]PluginFactory),
		builders:  make(map[string]BuilderFunc),
		funcSets:  make(map[string]FuncSet),
	}
}

// RegisterFactory registers a factory under every type it supports. Later
// registrations replace earlier ones for the same type.
func (r *FactoryRegistry) RegisterFactory(factory PluginFactory) {
	if factory == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range factory.SupportedTypes() {
		r.factories[t] = factory
	}
}

// RegisterBuilder binds a builder function to a candidate id.
func (r *FactoryRegistry) RegisterBuilder(candidateID string, builder BuilderFunc) {
	if builder == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builders[candidateID] = builder
}

// RegisterFuncSet binds a capability handler set to a candidate id.
func (r *FactoryRegistry) RegisterFuncSet(candidateID string, set FuncSet) {
	if len(set) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcSets[candidateID] = set
}

// Factory returns the factory registered for a manifest type.
func (r *FactoryRegistry) Factory(pluginType string) (PluginFactory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[pluginType]
	return f, ok
}

// Builder returns the builder registered for a candidate id.
func (r *FactoryRegistry) Builder(candidateID string) (BuilderFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.builders[candidateID]
	return b, ok
}

// FuncSetFor returns the handler set registered for a candidate id.
func (r *FactoryRegistry) FuncSetFor(candidateID string) (FuncSet, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.funcSets[candidateID]
	return s, ok
}

// wrapFuncSet turns a handler set into a plugin instance for a manifest.
// Handlers are attached in sorted-name order so the instance's capability
// order is deterministic regardless of map iteration.
func wrapFuncSet(manifest *PluginManifest, config map[string]any, set FuncSet) *PluginInstance {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)

	opts := make([]PluginOption, 0, len(names)+1)
	for _, name := range names {
		opts = append(opts, WithCapability(name, map[string]any{"source": "func_set"}, set[name]))
	}
	if len(manifest.Dependencies) > 0 {
		opts = append(opts, WithDependencies(manifest.Dependencies...))
	}
	return NewPluginInstance(manifest.Name, config, opts...)
}
