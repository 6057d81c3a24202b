// registry_test.go: Tests for the capability registry
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package gocapabilities

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCapabilityRegistry_Register(t *testing.T) {
	registry := NewCapabilityRegistry()

	registry.Register("dense", []string{"embed", "search"})
	registry.Register("sparse", []string{"search"})

	assert.Equal(t, []string{"dense"}, registry.Providers("embed"))
	assert.Equal(t, []string{"dense", "sparse"}, registry.Providers("search"),
		"providers must keep registration order")
	assert.Equal(t, 2, registry.Len())
}

func TestCapabilityRegistry_RegisterIdempotent(t *testing.T) {
	registry := NewCapabilityRegistry()

	registry.Register("p1", []string{"embed"})
	registry.Register("p1", []string{"embed"})

	assert.Equal(t, []string{"p1"}, registry.Providers("embed"),
		"re-registering must not duplicate the provider")
}

func TestCapabilityRegistry_Unregister(t *testing.T) {
	registry := NewCapabilityRegistry()
	registry.Register("p1", []string{"embed", "rank"})
	registry.Register("p2", []string{"embed"})

	registry.Unregister("p1")

	assert.Equal(t, []string{"p2"}, registry.Providers("embed"))
	assert.Empty(t, registry.Providers("rank"), "empty capability entries are removed")
	assert.Equal(t, 1, registry.Len())

	// Unknown plugin is a no-op.
	registry.Unregister("ghost")
	assert.Equal(t, 1, registry.Len())
}

func TestCapabilityRegistry_Providers(t *testing.T) {
	registry := NewCapabilityRegistry()

	providers := registry.Providers("unknown")
	assert.NotNil(t, providers)
	assert.Empty(t, providers)

	registry.Register("p1", []string{"embed"})
	snapshot := registry.Providers("embed")
	snapshot[0] = "mutated"
	assert.Equal(t, []string{"p1"}, registry.Providers("embed"),
		"returned slice must be a copy")
}

func TestCapabilityRegistry_Capabilities(t *testing.T) {
	registry := NewCapabilityRegistry()
	registry.Register("p1", []string{"embed"})
	registry.Register("p2", []string{"rank"})

	all := registry.Capabilities()
	assert.Len(t, all, 2)
	assert.Equal(t, []string{"p1"}, all["embed"])
	assert.Equal(t, []string{"p2"}, all["rank"])
}
