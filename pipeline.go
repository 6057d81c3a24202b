// pipeline.go: Pipeline graph structure with validated edges
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package gocapabilities

import (
	"sync"
	"time"
)

// Pipeline status values.
const (
	PipelineStatusCreated   = "created"
	PipelineStatusRunning   = "running"
	PipelineStatusCompleted = "completed"
	PipelineStatusFailed    = "failed"
)

// PipelineNode is one step of a pipeline: a plugin reference plus the
// node-local configuration handed to the plugin on every execution.
type PipelineNode struct {
	ID       string         `json:"id"`
	PluginID string         `json:"plugin_id"`
	Config   map[string]any `json:"config,omitempty"`

	// connections are the ids of downstream nodes, in connect order.
	connections []string
}

// Connections returns the downstream node ids in connect order.
func (n *PipelineNode) Connections() []string {
	out := make([]string, len(n.connections))
	copy(out, n.connections)
	return out
}

// Pipeline is a directed acyclic graph of plugin nodes. Edges are validated
// as they are added: connecting unknown nodes or closing a cycle fails
// immediately, so a stored pipeline is always executable.
//
// Safe for concurrent use.
type Pipeline struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`

	mu        sync.RWMutex
	status    string
	nodes     map[string]*PipelineNode
	nodeOrder []string
	metadata  map[string]any
}

// NewPipeline creates an empty pipeline. An empty name defaults to
// "Pipeline-<id>".
func NewPipeline(id, name string) *Pipeline {
	if name == "" {
		name = "Pipeline-" + id
	}
	return &Pipeline{
		ID:        id,
		Name:      name,
		CreatedAt: time.Now(),
		status:    PipelineStatusCreated,
		nodes:     make(map[string]*PipelineNode),
		metadata:  make(map[string]any),
	}
}

// Status returns the pipeline's lifecycle status.
func (p *Pipeline) Status() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

func (p *Pipeline) setStatus(status string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = status
}

// SetMetadata attaches a metadata value to the pipeline.
func (p *Pipeline) SetMetadata(key string, value any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.metadata[key] = value
}

// Metadata returns a copy of the pipeline metadata.
func (p *Pipeline) Metadata() map[string]any {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]any, len(p.metadata))
	for k, v := range p.metadata {
		out[k] = v
	}
	return out
}

// AddNode adds a node to the pipeline. Node ids are unique within a
// pipeline; adding a duplicate id fails.
func (p *Pipeline) AddNode(nodeID, pluginID string, config map[string]any) (*PipelineNode, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.nodes[nodeID]; exists {
		return nil, NewDuplicateNodeError(p.ID, nodeID)
	}
	node := &PipelineNode{ID: nodeID, PluginID: pluginID, Config: config}
	p.nodes[nodeID] = node
	p.nodeOrder = append(p.nodeOrder, nodeID)
	return node, nil
}

// Node returns a node by id.
func (p *Pipeline) Node(nodeID string) (*PipelineNode, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	n, ok := p.nodes[nodeID]
	return n, ok
}

// NodeIDs returns the node ids in insertion order.
func (p *Pipeline) NodeIDs() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, len(p.nodeOrder))
	copy(out, p.nodeOrder)
	return out
}

// Len returns the number of nodes.
func (p *Pipeline) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.nodes)
}

// Connect adds a directed edge from source to target. Both endpoints must
// exist and the edge must not close a cycle. Connecting the same pair twice
// is a no-op.
func (p *Pipeline) Connect(sourceID, targetID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	source, ok := p.nodes[sourceID]
	if !ok {
		return NewDanglingEdgeError(p.ID, sourceID)
	}
	if _, ok := p.nodes[targetID]; !ok {
		return NewDanglingEdgeError(p.ID, targetID)
	}
	if containsString(source.connections, targetID) {
		return nil
	}
	if p.reachableLocked(targetID, sourceID) {
		return NewCycleDetectedError(p.ID, sourceID, targetID)
	}
	source.connections = append(source.connections, targetID)
	return nil
}

// reachableLocked reports whether `to` is reachable from `from` along the
// current edges. Caller holds the lock.
func (p *Pipeline) reachableLocked(from, to string) bool {
	if from == to {
		return true
	}
	visited := make(map[string]bool, len(p.nodes))
	stack := []string{from}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if current == to {
			return true
		}
		if visited[current] {
			continue
		}
		visited[current] = true
		if node, ok := p.nodes[current]; ok {
			stack = append(stack, node.connections...)
		}
	}
	return false
}

// ExecutionOrder returns every node id in topological order: a depth-first
// traversal started from each not-yet-visited node in insertion order, so
// roots run before their descendants and the order is deterministic for a
// given construction sequence.
func (p *Pipeline) ExecutionOrder() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	visited := make(map[string]bool, len(p.nodes))
	order := make([]string, 0, len(p.nodes))

	var visit func(nodeID string)
	visit = func(nodeID string) {
		if visited[nodeID] {
			return
		}
		visited[nodeID] = true
		order = append(order, nodeID)
		for _, next := range p.nodes[nodeID].connections {
			visit(next)
		}
	}
	for _, nodeID := range p.nodeOrder {
		visit(nodeID)
	}
	return order
}
