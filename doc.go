// Package gocapabilities provides a capability-based plugin framework and
// pipeline execution engine for building retrieval-augmented-generation
// (RAG) orchestration layers in Go applications. Plugins register named
// operations ("capabilities"), are discovered through manifest files, get
// composed into directed pipelines, and are executed in dependency order
// with caching, least-loaded provider selection, and error isolation.
//
// Key Features:
//   - Explicit capability registry with ordered provider discovery
//   - Plugin lifecycle management (initialize, cleanup, event hooks)
//   - Capability dispatch with result caching and middleware interception
//   - Least-loaded provider selection across multiple providers
//   - Manifest-driven plugin discovery with builder registration
//   - Directed pipeline graphs with validated edges and topological execution
//   - Comprehensive metrics and structured logging
//
// Basic Usage:
//
//	// Build a plugin exposing an "add" capability
//	math := gocapabilities.NewPluginInstance("math", nil,
//	    gocapabilities.WithCapability("add", nil,
//	        func(ctx context.Context, inv gocapabilities.Invocation) (any, error) {
//	            return inv.Args[0].(int) + inv.Args[1].(int), nil
//	        }))
//
//	fw := gocapabilities.NewFramework(logger)
//	if err := fw.LoadPlugin(ctx, math); err != nil {
//	    log.Fatal(err)
//	}
//
//	sum, err := fw.CallCapability(ctx, "add", []any{2, 3})
//
// Pipelines:
//
//	engine := gocapabilities.NewPipelineEngine(fw)
//	id := engine.CreatePipeline("rag-query")
//	engine.AddNode(id, "retrieve", "chroma-store", nil)
//	engine.AddNode(id, "generate", "openai-llm", nil)
//	engine.Connect(id, "retrieve", "generate")
//	result, err := engine.ExecutePipeline(ctx, id, map[string]any{"query": q})
//
// Concrete data sources, vector stores and language models are external
// collaborators: anything that satisfies the capability contract can be
// loaded, including remote providers reachable over gRPC.
//
// Copyright (c) 2025 AGILira - A. Giordano
// SPDX-License-Identifier: MPL-2.0
package gocapabilities
