// dispatch.go: Capability call routing, provider selection and result caching
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package gocapabilities

import (
	"context"
	"time"
)

// CallOption adjusts the behavior of a single CallCapability invocation.
type CallOption func(*callSettings)

type callSettings struct {
	provider string
	useCache bool
	keywords map[string]any
}

// WithProvider pins the call to a specific plugin instead of letting the
// framework pick the least-loaded provider. Pinning an id that does not
// provide the capability fails the call.
func WithProvider(pluginID string) CallOption {
	return func(s *callSettings) {
		s.provider = pluginID
	}
}

// WithoutCache bypasses the result cache for this call, both lookup and
// store.
func WithoutCache() CallOption {
	return func(s *callSettings) {
		s.useCache = false
	}
}

// WithKeyword attaches a named argument to the invocation.
func WithKeyword(name string, value any) CallOption {
	return func(s *callSettings) {
		if s.keywords == nil {
			s.keywords = make(map[string]any)
		}
		s.keywords[name] = value
	}
}

// WithKeywords attaches a set of named arguments to the invocation.
func WithKeywords(keywords map[string]any) CallOption {
	return func(s *callSettings) {
		if s.keywords == nil {
			s.keywords = make(map[string]any, len(keywords))
		}
		for k, v := range keywords {
			s.keywords[k] = v
		}
	}
}

// CallResult is one provider's outcome from CallMultiple.
type CallResult struct {
	PluginID string `json:"plugin_id"`
	Result   any    `json:"result,omitempty"`
	Err      error  `json:"-"`
	Success  bool   `json:"success"`
}

// CallCapability dispatches a capability call and returns the provider's
// result.
//
// The provider is either pinned via WithProvider or chosen as the loaded
// provider with the fewest total invocations, ties resolved in favor of the
// earliest-registered provider. Identical calls (same capability, provider
// and arguments) are served from the result cache without touching the
// plugin; oversized results are executed but not stored.
//
// Failures increment the error metric, run the capability_call error
// handlers and emit the error event, then the provider's original error is
// returned unchanged.
//
// Example:
//
//	result, err := framework.CallCapability(ctx, "embed", []any{"hello"},
//	    gocapabilities.WithKeyword("model", "small"))
func (f *Framework) CallCapability(ctx context.Context, capability string, args []any, opts ...CallOption) (any, error) {
	settings := callSettings{useCache: true}
	for _, opt := range opts {
		opt(&settings)
	}
	inv := Invocation{Args: args, Keywords: settings.keywords}

	f.metrics.Calls.Add(1)
	f.collector.IncrementCounter("gocapabilities_calls_total",
		map[string]string{"capability": capability}, 1)

	result, err := f.call(ctx, capability, inv, settings)
	if err != nil {
		f.dispatchError(ctx, err, ErrorReport{
			Category:   ErrorCategoryCapabilityCall,
			Capability: capability,
			PluginID:   settings.provider,
		})
		return nil, err
	}
	return result, nil
}

// call resolves the provider and executes the capability, consulting the
// cache on both sides of the invocation.
//
// The cache is checked before provider selection and keyed on the provider
// pin, not the resolved provider: all unpinned calls with the same arguments
// share one entry, so load balancing across providers never forces a
// re-execution of an already cached call.
func (f *Framework) call(ctx context.Context, capability string, inv Invocation, settings callSettings) (any, error) {
	var cacheKey string
	cacheUsable := false
	if settings.useCache {
		cacheKey, cacheUsable = f.cache.key(capability, settings.provider, inv)
		if cacheUsable {
			if cached, hit := f.cache.get(cacheKey); hit {
				f.metrics.CacheHits.Add(1)
				f.collector.IncrementCounter("gocapabilities_cache_hits_total",
					map[string]string{"capability": capability}, 1)
				f.logger.Debug("Capability cache hit",
					"capability", capability,
					"provider_pin", settings.provider)
				return cached, nil
			}
		}
	}

	pluginID, err := f.selectProvider(capability, settings.provider)
	if err != nil {
		return nil, err
	}

	f.mu.RLock()
	chain := make([]Middleware, len(f.middleware))
	copy(chain, f.middleware)
	plugin, ok := f.plugins[pluginID]
	f.mu.RUnlock()
	if !ok {
		return nil, NewPluginNotFoundError(pluginID)
	}

	inv, err = applyMiddleware(ctx, chain, capability, inv)
	if err != nil {
		return nil, err
	}

	f.tracker.Start(pluginID)
	started := time.Now()
	var result any
	execErr := safeInvoke(f.logger, "capability", func() error {
		var err error
		result, err = plugin.ExecuteCapability(ctx, capability, inv)
		return err
	})
	elapsed := time.Since(started)
	f.tracker.End(pluginID)

	f.collector.RecordHistogram("gocapabilities_call_duration_seconds",
		map[string]string{"capability": capability, "plugin_id": pluginID},
		elapsed.Seconds())

	if execErr != nil {
		return nil, execErr
	}

	if cacheUsable && f.cache.cacheable(result) {
		f.cache.put(cacheKey, result)
	}
	return result, nil
}

// selectProvider returns the plugin that will serve a capability call.
func (f *Framework) selectProvider(capability, pinned string) (string, error) {
	providers := f.registry.Providers(capability)
	if len(providers) == 0 {
		return "", NewCapabilityNotFoundError(capability)
	}
	if pinned != "" {
		if !containsString(providers, pinned) {
			return "", NewUnknownProviderError(pinned, capability)
		}
		return pinned, nil
	}
	chosen, ok := f.tracker.LeastLoaded(providers)
	if !ok {
		return "", NewCapabilityNotFoundError(capability)
	}
	return chosen, nil
}

// CallMultiple dispatches the same call to every provider of a capability
// and collects each outcome. Providers are invoked sequentially in
// registration order; one provider failing never prevents the others from
// running, and the result list always has one entry per provider present
// when the fan-out started. A capability with no providers yields an empty
// result list, not an error.
func (f *Framework) CallMultiple(ctx context.Context, capability string, args []any, opts ...CallOption) ([]CallResult, error) {
	providers := f.registry.Providers(capability)

	// A capability nobody provides is an empty fan-out, not an error.
	results := make([]CallResult, 0, len(providers))
	for _, pluginID := range providers {
		perProvider := append(append([]CallOption{}, opts...), WithProvider(pluginID))
		value, err := f.CallCapability(ctx, capability, args, perProvider...)
		results = append(results, CallResult{
			PluginID: pluginID,
			Result:   value,
			Err:      err,
			Success:  err == nil,
		})
	}
	return results, nil
}
