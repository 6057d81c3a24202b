// framework_test.go: Tests for plugin loading, unloading, events and stats
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package gocapabilities

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPlugin(id string, capabilities ...string) *PluginInstance {
	opts := make([]PluginOption, 0, len(capabilities))
	for _, name := range capabilities {
		opts = append(opts, WithCapability(name, nil, echoHandler))
	}
	return NewPluginInstance(id, nil, opts...)
}

func TestFramework_LoadPlugin(t *testing.T) {
	t.Run("successful load registers capabilities", func(t *testing.T) {
		framework := NewFramework(nil)
		ctx := context.Background()

		err := framework.LoadPlugin(ctx, newTestPlugin("dense", "embed", "search"))
		require.NoError(t, err)

		plugin, ok := framework.Plugin("dense")
		require.True(t, ok)
		assert.True(t, plugin.Initialized())
		assert.Equal(t, []string{"dense"}, framework.ListCapabilities()["embed"])
	})

	t.Run("empty id rejected", func(t *testing.T) {
		framework := NewFramework(nil)
		err := framework.LoadPlugin(context.Background(), NewPluginInstance("", nil,
			WithCapability("x", nil, echoHandler)))
		require.Error(t, err)
	})

	t.Run("no capabilities rejected", func(t *testing.T) {
		framework := NewFramework(nil)
		err := framework.LoadPlugin(context.Background(), NewPluginInstance("bare", nil))
		require.Error(t, err)
	})

	t.Run("duplicate id rejected", func(t *testing.T) {
		framework := NewFramework(nil)
		ctx := context.Background()
		require.NoError(t, framework.LoadPlugin(ctx, newTestPlugin("p", "a")))

		err := framework.LoadPlugin(ctx, newTestPlugin("p", "b"))
		require.Error(t, err)
		assert.Equal(t, []string{"p"}, framework.ListPlugins())
	})

	t.Run("missing dependency rejected", func(t *testing.T) {
		framework := NewFramework(nil)
		plugin := NewPluginInstance("dependent", nil,
			WithCapability("x", nil, echoHandler),
			WithDependencies("not-loaded"))

		err := framework.LoadPlugin(context.Background(), plugin)
		require.Error(t, err)
		assert.Empty(t, framework.ListPlugins())
	})

	t.Run("satisfied dependency loads", func(t *testing.T) {
		framework := NewFramework(nil)
		ctx := context.Background()
		require.NoError(t, framework.LoadPlugin(ctx, newTestPlugin("base", "store")))

		plugin := NewPluginInstance("dependent", nil,
			WithCapability("x", nil, echoHandler),
			WithDependencies("base"))
		require.NoError(t, framework.LoadPlugin(ctx, plugin))
	})
}

func TestFramework_Validators(t *testing.T) {
	t.Run("validator rejection blocks load", func(t *testing.T) {
		framework := NewFramework(nil, WithValidator(
			func(ctx context.Context, p *PluginInstance) error {
				if p.ID() == "banned" {
					return fmt.Errorf("not allowed")
				}
				return nil
			}))
		ctx := context.Background()

		require.Error(t, framework.LoadPlugin(ctx, newTestPlugin("banned", "x")))
		require.NoError(t, framework.LoadPlugin(ctx, newTestPlugin("allowed", "x")))
	})

	t.Run("panicking validator fails closed", func(t *testing.T) {
		framework := NewFramework(nil, WithValidator(
			func(ctx context.Context, p *PluginInstance) error {
				panic("validator broke")
			}))

		err := framework.LoadPlugin(context.Background(), newTestPlugin("p", "x"))
		require.Error(t, err, "a broken validator must reject, not admit")
		assert.Empty(t, framework.ListPlugins())
	})
}

func TestFramework_InitializationRollback(t *testing.T) {
	framework := NewFramework(nil)
	plugin := NewPluginInstance("flaky", nil,
		WithCapability("embed", nil, echoHandler),
		WithInitializer(func(ctx context.Context) error {
			return fmt.Errorf("backend unreachable")
		}))

	err := framework.LoadPlugin(context.Background(), plugin)
	require.Error(t, err)

	_, ok := framework.Plugin("flaky")
	assert.False(t, ok, "failed init must unwind the registration")
	assert.Empty(t, framework.ListCapabilities()["embed"],
		"failed init must leave no capability entries")
}

func TestFramework_UnloadPlugin(t *testing.T) {
	t.Run("unknown id is a no-op", func(t *testing.T) {
		framework := NewFramework(nil)
		assert.False(t, framework.UnloadPlugin(context.Background(), "ghost"))
	})

	t.Run("unload deregisters and finalizes", func(t *testing.T) {
		framework := NewFramework(nil)
		ctx := context.Background()
		finalized := false
		plugin := NewPluginInstance("p", nil,
			WithCapability("embed", nil, echoHandler),
			WithFinalizer(func(ctx context.Context) error {
				finalized = true
				return nil
			}))
		require.NoError(t, framework.LoadPlugin(ctx, plugin))

		assert.True(t, framework.UnloadPlugin(ctx, "p"))
		assert.True(t, finalized)
		_, ok := framework.Plugin("p")
		assert.False(t, ok)
		assert.Empty(t, framework.ListCapabilities()["embed"])
	})

	t.Run("finalizer failure never blocks deregistration", func(t *testing.T) {
		framework := NewFramework(nil)
		ctx := context.Background()
		plugin := NewPluginInstance("p", nil,
			WithCapability("embed", nil, echoHandler),
			WithFinalizer(func(ctx context.Context) error {
				return fmt.Errorf("cleanup exploded")
			}))
		require.NoError(t, framework.LoadPlugin(ctx, plugin))

		assert.True(t, framework.UnloadPlugin(ctx, "p"))
		_, ok := framework.Plugin("p")
		assert.False(t, ok)
	})
}

func TestFramework_Events(t *testing.T) {
	framework := NewFramework(nil)
	ctx := context.Background()

	var events []string
	observer := NewPluginInstance("observer", nil,
		WithCapability("observe", nil, echoHandler),
		WithHook(EventPluginLoaded, func(ctx context.Context, data any) error {
			events = append(events, EventPluginLoaded)
			return nil
		}),
		WithHook(EventPluginUnloaded, func(ctx context.Context, data any) error {
			events = append(events, EventPluginUnloaded)
			return nil
		}),
		WithHook(EventFrameworkStarted, func(ctx context.Context, data any) error {
			events = append(events, EventFrameworkStarted)
			return nil
		}))

	require.NoError(t, framework.LoadPlugin(ctx, observer))
	// The observer sees its own load event.
	assert.Equal(t, []string{EventPluginLoaded}, events)

	framework.Start(ctx)
	require.NoError(t, framework.LoadPlugin(ctx, newTestPlugin("other", "x")))
	framework.UnloadPlugin(ctx, "other")

	assert.Equal(t, []string{
		EventPluginLoaded,
		EventFrameworkStarted,
		EventPluginLoaded,
		EventPluginUnloaded,
	}, events)
}

func TestFramework_StartStop(t *testing.T) {
	framework := NewFramework(nil)
	ctx := context.Background()

	assert.False(t, framework.Running())
	framework.Start(ctx)
	assert.True(t, framework.Running())
	framework.Start(ctx) // idempotent
	assert.True(t, framework.Running())

	framework.Stop(ctx)
	assert.False(t, framework.Running())
}

func TestFramework_Shutdown(t *testing.T) {
	framework := NewFramework(nil)
	ctx := context.Background()
	framework.Start(ctx)

	var order []string
	for _, id := range []string{"first", "second"} {
		pid := id
		plugin := NewPluginInstance(pid, nil,
			WithCapability("x", nil, echoHandler),
			WithFinalizer(func(ctx context.Context) error {
				order = append(order, pid)
				return nil
			}))
		require.NoError(t, framework.LoadPlugin(ctx, plugin))
	}

	framework.Shutdown(ctx)
	assert.False(t, framework.Running())
	assert.Empty(t, framework.ListPlugins())
	assert.Equal(t, []string{"second", "first"}, order,
		"shutdown must unload in reverse load order")
}

func TestFramework_PluginInfo(t *testing.T) {
	framework := NewFramework(nil)
	ctx := context.Background()
	plugin := NewPluginInstance("p", map[string]any{"dim": 768},
		WithCapability("embed", map[string]any{"model": "small"}, echoHandler))
	require.NoError(t, framework.LoadPlugin(ctx, plugin))

	details, err := framework.PluginInfo("p")
	require.NoError(t, err)
	assert.Equal(t, "p", details.PluginID)
	assert.True(t, details.Initialized)
	require.Len(t, details.Capabilities, 1)
	assert.Equal(t, "embed", details.Capabilities[0].Name)

	_, err = framework.PluginInfo("ghost")
	require.Error(t, err)
}

func TestFramework_DiscoverProviders(t *testing.T) {
	framework := NewFramework(nil)
	ctx := context.Background()
	require.NoError(t, framework.LoadPlugin(ctx, NewPluginInstance("dense", nil,
		WithCapability("search", map[string]any{"metric": "cosine"}, echoHandler))))
	require.NoError(t, framework.LoadPlugin(ctx, newTestPlugin("sparse", "search")))

	providers := framework.DiscoverProviders("search")
	require.Len(t, providers, 2)
	assert.Equal(t, "dense", providers[0].PluginID)
	assert.Equal(t, "cosine", providers[0].Metadata["metric"])
	assert.Equal(t, "sparse", providers[1].PluginID)

	assert.Empty(t, framework.DiscoverProviders("unknown"))
}

func TestFramework_ConfigStoreAndExtensions(t *testing.T) {
	framework := NewFramework(nil)

	framework.SetConfig("default_model", "small")
	v, ok := framework.GetConfig("default_model")
	require.True(t, ok)
	assert.Equal(t, "small", v)

	_, ok = framework.GetConfig("missing")
	assert.False(t, ok)

	framework.Extend("reranker", struct{ Name string }{"ce"})
	ext, ok := framework.Extension("reranker")
	require.True(t, ok)
	assert.NotNil(t, ext)
}

func TestFramework_ErrorHandlers(t *testing.T) {
	framework := NewFramework(nil)
	ctx := context.Background()

	var handled []ErrorCategory
	framework.AddErrorHandler(ErrorCategoryPluginLoad,
		func(ctx context.Context, err error, report ErrorReport) {
			handled = append(handled, report.Category)
		})
	// A panicking handler must not affect the outcome.
	framework.AddErrorHandler(ErrorCategoryPluginLoad,
		func(ctx context.Context, err error, report ErrorReport) {
			panic("handler broke")
		})

	err := framework.LoadPlugin(ctx, NewPluginInstance("bare", nil))
	require.Error(t, err)
	assert.Equal(t, []ErrorCategory{ErrorCategoryPluginLoad}, handled)
}

func TestFramework_Stats(t *testing.T) {
	framework := NewFramework(nil)
	ctx := context.Background()
	framework.Start(ctx)
	require.NoError(t, framework.LoadPlugin(ctx, newTestPlugin("p", "embed")))

	_, err := framework.CallCapability(ctx, "embed", []any{"text"})
	require.NoError(t, err)
	_, err = framework.CallCapability(ctx, "embed", []any{"text"})
	require.NoError(t, err)

	stats := framework.Stats()
	assert.True(t, stats.Running)
	assert.Equal(t, 1, stats.TotalPlugins)
	assert.Equal(t, int64(2), stats.Calls)
	assert.Equal(t, int64(1), stats.CacheHits, "second identical call must hit the cache")
	assert.Equal(t, int64(1), stats.InvocationsByPlugin["p"])
	assert.Equal(t, 1, stats.ProvidersByCapability["embed"])
}
