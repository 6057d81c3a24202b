// middleware.go: Capability call interception chain
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package gocapabilities

import (
	"context"

	"github.com/agilira/go-timecache"
)

// Middleware intercepts a capability call before the provider executes it.
//
// Each middleware receives the capability name and the current invocation
// and returns the invocation to pass downstream, possibly rewritten. The
// chain runs in registration order; an error from any middleware aborts the
// call before the plugin is reached.
type Middleware func(ctx context.Context, capability string, inv Invocation) (Invocation, error)

// applyMiddleware threads the invocation through the chain.
func applyMiddleware(ctx context.Context, chain []Middleware, capability string, inv Invocation) (Invocation, error) {
	for _, mw := range chain {
		next, err := mw(ctx, capability, inv)
		if err != nil {
			return inv, NewMiddlewareFailedError(capability, err)
		}
		inv = next
	}
	return inv, nil
}

// LoggingMiddleware returns a middleware that records every dispatched call
// at debug level. Useful during pipeline development; a no-op rewrite.
func LoggingMiddleware(logger any) Middleware {
	log := NewLogger(logger)
	return func(ctx context.Context, capability string, inv Invocation) (Invocation, error) {
		log.Debug("Dispatching capability",
			"capability", capability,
			"args", len(inv.Args),
			"keywords", len(inv.Keywords),
			"at", timecache.CachedTime())
		return inv, nil
	}
}

// KeywordDefaultsMiddleware returns a middleware that fills missing keyword
// arguments with defaults, a common way to centralize model or collection
// settings across providers.
func KeywordDefaultsMiddleware(defaults map[string]any) Middleware {
	return func(ctx context.Context, capability string, inv Invocation) (Invocation, error) {
		if len(defaults) == 0 {
			return inv, nil
		}
		out := inv.Clone()
		if out.Keywords == nil {
			out.Keywords = make(map[string]any, len(defaults))
		}
		for k, v := range defaults {
			if _, present := out.Keywords[k]; !present {
				out.Keywords[k] = v
			}
		}
		return out, nil
	}
}
