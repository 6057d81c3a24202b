// capability.go: Typed capability abstraction for plugin operations
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package gocapabilities

import (
	"context"
)

// Invocation carries the arguments of a single capability call.
//
// Args are positional values passed through to the handler in order.
// Keywords carry named options; their sorted form participates in cache
// keys, so two calls with the same keywords in different declaration order
// hit the same cache entry.
type Invocation struct {
	Args     []any
	Keywords map[string]any
}

// Clone returns a copy of the invocation with its own slices and maps, so
// middleware can rewrite arguments without aliasing the caller's data.
func (inv Invocation) Clone() Invocation {
	dup := Invocation{}
	if inv.Args != nil {
		dup.Args = make([]any, len(inv.Args))
		copy(dup.Args, inv.Args)
	}
	if inv.Keywords != nil {
		dup.Keywords = make(map[string]any, len(inv.Keywords))
		for k, v := range inv.Keywords {
			dup.Keywords[k] = v
		}
	}
	return dup
}

// Keyword returns a named argument and whether it was supplied.
func (inv Invocation) Keyword(name string) (any, bool) {
	if inv.Keywords == nil {
		return nil, false
	}
	v, ok := inv.Keywords[name]
	return v, ok
}

// CapabilityHandler is the typed function object behind every capability.
//
// Handlers must honor ctx for cancellation; the dispatch layer imposes no
// timeout of its own, so a handler that ignores ctx can stall its caller.
type CapabilityHandler func(ctx context.Context, inv Invocation) (any, error)

// Capability is a named operation a plugin can perform.
//
// A capability is bound to exactly one plugin instance at registration time.
// Its name must be unique within the owning plugin but may be shared across
// plugins; the framework's registry resolves which provider serves a call.
type Capability struct {
	// Name addresses the capability across the framework
	Name string

	// Handler executes the operation
	Handler CapabilityHandler

	// Metadata carries advisory, capability-specific information
	Metadata map[string]any
}

// NewCapability creates a capability with the given name and handler.
func NewCapability(name string, metadata map[string]any, handler CapabilityHandler) Capability {
	return Capability{Name: name, Handler: handler, Metadata: metadata}
}

// Execute runs the capability handler.
//
// The context is checked before the handler runs so cancelled callers never
// reach plugin code.
func (c Capability) Execute(ctx context.Context, inv Invocation) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.Handler == nil {
		return nil, NewCapabilityNotFoundError(c.Name)
	}
	return c.Handler(ctx, inv)
}

// CapabilityInfo describes a capability for introspection APIs.
type CapabilityInfo struct {
	Name     string         `json:"name"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ProviderInfo describes one provider of a capability, as returned by
// Framework.DiscoverProviders.
type ProviderInfo struct {
	PluginID   string         `json:"plugin_id"`
	Capability string         `json:"capability"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}
