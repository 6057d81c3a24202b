// manifest_test.go: Tests for manifest parsing and config schema checks
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package gocapabilities

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleManifestYAML = `
name: dense-retriever
type: builtin
version: "1.2.0"
entrypoint: retriever
dependencies:
  - vector-store
capabilities:
  - embed
  - search
config:
  collection: documents
config_schema:
  top_k:
    type: integer
    default: 10
    minimum: 1
    maximum: 100
  metric:
    type: string
    enum: [cosine, dot, euclidean]
    default: cosine
  collection:
    type: string
    required: true
`

func TestParseManifest_YAML(t *testing.T) {
	manifest, err := ParseManifest("plugin.yaml", []byte(sampleManifestYAML))
	require.NoError(t, err)

	assert.Equal(t, "dense-retriever", manifest.Name)
	assert.Equal(t, "builtin", manifest.Type)
	assert.Equal(t, []string{"vector-store"}, manifest.Dependencies)
	assert.Equal(t, []string{"embed", "search"}, manifest.Capabilities)
	assert.Contains(t, manifest.ConfigSchema, "top_k")
}

func TestParseManifest_JSON(t *testing.T) {
	data := []byte(`{"name": "reranker", "type": "grpc", "entrypoint": "localhost:9090", "capabilities": ["rank"]}`)

	manifest, err := ParseManifest("plugin.json", data)
	require.NoError(t, err)
	assert.Equal(t, "reranker", manifest.Name)
	assert.Equal(t, "grpc", manifest.Type)
}

func TestParseManifest_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"missing name", `{"type": "builtin"}`},
		{"missing type", `{"name": "p"}`},
		{"empty dependency", `{"name": "p", "type": "builtin", "dependencies": [""]}`},
		{"empty capability", `{"name": "p", "type": "builtin", "capabilities": [""]}`},
		{"bad schema type", `{"name": "p", "type": "builtin", "config_schema": {"x": {"type": "tuple"}}}`},
		{"min above max", `{"name": "p", "type": "builtin", "config_schema": {"x": {"type": "number", "minimum": 10, "maximum": 1}}}`},
		{"malformed json", `{`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseManifest("plugin.json", []byte(tc.data))
			assert.Error(t, err)
		})
	}
}

func TestLoadManifest_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plugin.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleManifestYAML), 0o600))

	manifest, err := LoadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, "dense-retriever", manifest.Name)

	_, err = LoadManifest(filepath.Join(dir, "absent.yaml"))
	assert.Error(t, err)
}

func TestEffectiveConfig(t *testing.T) {
	manifest, err := ParseManifest("plugin.yaml", []byte(sampleManifestYAML))
	require.NoError(t, err)

	t.Run("merges defaults, manifest config and overrides", func(t *testing.T) {
		config, err := manifest.EffectiveConfig(map[string]any{"top_k": 25})
		require.NoError(t, err)

		assert.Equal(t, 25, config["top_k"], "overrides win")
		assert.Equal(t, "cosine", config["metric"], "schema default applies")
		assert.Equal(t, "documents", config["collection"], "manifest config applies")
	})

	t.Run("missing required field", func(t *testing.T) {
		bare, err := ParseManifest("plugin.json",
			[]byte(`{"name": "p", "type": "builtin", "config_schema": {"collection": {"type": "string", "required": true}}}`))
		require.NoError(t, err)

		_, err = bare.EffectiveConfig(nil)
		assert.Error(t, err)
	})

	t.Run("type mismatch", func(t *testing.T) {
		_, err := manifest.EffectiveConfig(map[string]any{"top_k": "ten"})
		assert.Error(t, err)
	})

	t.Run("range violation", func(t *testing.T) {
		_, err := manifest.EffectiveConfig(map[string]any{"top_k": 1000})
		assert.Error(t, err)
	})

	t.Run("enum violation", func(t *testing.T) {
		_, err := manifest.EffectiveConfig(map[string]any{"metric": "manhattan"})
		assert.Error(t, err)
	})

	t.Run("non-integer rejected for integer schema", func(t *testing.T) {
		_, err := manifest.EffectiveConfig(map[string]any{"top_k": 2.5})
		assert.Error(t, err)
	})
}
