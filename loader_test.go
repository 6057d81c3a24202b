// loader_test.go: Tests for manifest discovery and candidate loading
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package gocapabilities

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, root, dir, content string) string {
	t.Helper()
	full := filepath.Join(root, dir)
	require.NoError(t, os.MkdirAll(full, 0o750))
	path := filepath.Join(full, "plugin.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func manifestFor(name string) string {
	return fmt.Sprintf("name: %s\ntype: builtin\ncapabilities: [%s]\n", name, name)
}

func TestLoader_Discover(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "retrievers/dense", manifestFor("dense"))
	writeManifest(t, root, "rankers/ce", manifestFor("ce"))
	writeManifest(t, root, "broken", "name: [not a string\n")

	framework := NewFramework(nil)
	loader := NewLoader(framework, nil, root)

	candidates, err := loader.Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, candidates, 2, "invalid manifests are skipped, not fatal")

	// Candidate ids derive from the relative path and come back sorted.
	assert.Equal(t, "rankers/ce", candidates[0].ID)
	assert.Equal(t, "retrievers/dense", candidates[1].ID)
}

func TestLoader_DiscoverDeterministicIDs(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "a/b", manifestFor("p"))

	framework := NewFramework(nil)
	loader := NewLoader(framework, nil, root)

	first, err := loader.Discover(context.Background())
	require.NoError(t, err)
	second, err := loader.Discover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first[0].ID, second[0].ID,
		"discovery over the same tree must produce the same ids")
}

func TestLoader_MissingRoot(t *testing.T) {
	framework := NewFramework(nil)
	loader := NewLoader(framework, nil, "/nonexistent/plugins")

	candidates, err := loader.Discover(context.Background())
	require.NoError(t, err, "missing roots are logged, not fatal")
	assert.Empty(t, candidates)
}

func TestLoader_DiscoverAndLoadAll(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "dense", manifestFor("dense"))
	writeManifest(t, root, "orphan", manifestFor("orphan"))

	framework := NewFramework(nil)
	factories := NewFactoryRegistry()
	factories.RegisterFuncSet("dense", FuncSet{"dense": echoHandler})
	// No strategy registered for "orphan".

	loader := NewLoader(framework, factories, root)
	results, err := loader.DiscoverAndLoadAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, map[string]bool{"dense": true, "orphan": false}, results,
		"one candidate failing must not stop the others")
	_, ok := framework.Plugin("dense")
	assert.True(t, ok)
	assert.Equal(t, map[string]string{"dense": "dense"}, loader.Loaded())
}

func TestLoader_FactoryByType(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "p", "name: custom\ntype: test-type\ncapabilities: [work]\n")

	framework := NewFramework(nil)
	loader := NewLoader(framework, nil, root)
	loader.Factories().RegisterFactory(&stubFactory{})

	results, err := loader.DiscoverAndLoadAll(context.Background())
	require.NoError(t, err)
	assert.True(t, results["p"])

	plugin, ok := framework.Plugin("custom")
	require.True(t, ok)
	assert.Equal(t, []string{"work"}, plugin.CapabilityNames())
}

// stubFactory builds echo plugins for manifests of type "test-type".
type stubFactory struct{}

func (f *stubFactory) SupportedTypes() []string { return []string{"test-type"} }

func (f *stubFactory) CreatePlugin(ctx context.Context, manifest *PluginManifest, config map[string]any) (*PluginInstance, error) {
	opts := make([]PluginOption, 0, len(manifest.Capabilities))
	for _, name := range manifest.Capabilities {
		opts = append(opts, WithCapability(name, nil, echoHandler))
	}
	return NewPluginInstance(manifest.Name, config, opts...), nil
}

func TestLoader_BuilderTakesPrecedenceOverFuncSet(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "p", manifestFor("p"))

	framework := NewFramework(nil)
	factories := NewFactoryRegistry()
	builderUsed := false
	factories.RegisterBuilder("p", func(ctx context.Context, manifest *PluginManifest, config map[string]any) (*PluginInstance, error) {
		builderUsed = true
		return NewPluginInstance(manifest.Name, config,
			WithCapability("p", nil, echoHandler)), nil
	})
	factories.RegisterFuncSet("p", FuncSet{"p": echoHandler})

	loader := NewLoader(framework, factories, root)
	results, err := loader.DiscoverAndLoadAll(context.Background())
	require.NoError(t, err)
	assert.True(t, results["p"])
	assert.True(t, builderUsed)
}

func TestLoader_DependencyOrdering(t *testing.T) {
	root := t.TempDir()
	// "aaa" sorts before "zzz" but depends on it, so the loader must
	// reorder the loads.
	writeManifest(t, root, "aaa", "name: dependent\ntype: builtin\ndependencies: [base]\ncapabilities: [work]\n")
	writeManifest(t, root, "zzz", "name: base\ntype: builtin\ncapabilities: [store]\n")

	framework := NewFramework(nil)
	factories := NewFactoryRegistry()
	factories.RegisterFuncSet("aaa", FuncSet{"work": echoHandler})
	factories.RegisterFuncSet("zzz", FuncSet{"store": echoHandler})

	loader := NewLoader(framework, factories, root)
	results, err := loader.DiscoverAndLoadAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"aaa": true, "zzz": true}, results)
	assert.Equal(t, []string{"base", "dependent"}, framework.ListPlugins())
}

func TestLoader_ReloadPlugin(t *testing.T) {
	root := t.TempDir()
	path := writeManifest(t, root, "p", manifestFor("p"))

	framework := NewFramework(nil)
	factories := NewFactoryRegistry()
	factories.RegisterFuncSet("p", FuncSet{"p": echoHandler})
	loader := NewLoader(framework, factories, root)

	_, err := loader.DiscoverAndLoadAll(context.Background())
	require.NoError(t, err)

	// Manifest changes between discovery passes are picked up on reload.
	require.NoError(t, os.WriteFile(path,
		[]byte("name: p\ntype: builtin\ncapabilities: [p]\nconfig:\n  tuned: true\n"), 0o600))
	require.NoError(t, loader.ReloadPlugin(context.Background(), "p"))

	plugin, ok := framework.Plugin("p")
	require.True(t, ok)
	assert.Equal(t, true, plugin.Config()["tuned"])

	err = loader.ReloadPlugin(context.Background(), "never-discovered")
	assert.Error(t, err)
}

func TestWrapFuncSet_DeterministicOrder(t *testing.T) {
	manifest := &PluginManifest{Name: "p", Type: "builtin"}
	set := FuncSet{"zeta": echoHandler, "alpha": echoHandler, "mid": echoHandler}

	plugin := wrapFuncSet(manifest, nil, set)
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, plugin.CapabilityNames())
}
