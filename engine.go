// engine.go: Pipeline execution engine over the capability framework
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package gocapabilities

import (
	"context"
	"sync"
	"time"

	"github.com/agilira/go-timecache"
	"github.com/google/uuid"
)

// Node-facing capability names. A node's plugin is driven through its
// "execute" capability when it has one, falling back to "process"; plugins
// providing neither pass the data through unchanged.
const (
	NodeCapabilityExecute = "execute"
	NodeCapabilityProcess = "process"
)

// ExecutionRecord tracks one pipeline run.
type ExecutionRecord struct {
	ExecutionID string    `json:"execution_id"`
	PipelineID  string    `json:"pipeline_id"`
	Status      string    `json:"status"`
	CurrentNode string    `json:"current_node,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at,omitzero"`
	Error       string    `json:"error,omitempty"`
}

// PipelineResult is the outcome of a completed pipeline run.
//
// Fields:
//   - NodeOutputs: each node's raw output keyed by node id
//   - FinalOutput: the input data merged with every map-shaped node output,
//     later nodes overwriting earlier keys
type PipelineResult struct {
	Status      string         `json:"status"`
	PipelineID  string         `json:"pipeline_id"`
	ExecutionID string         `json:"execution_id"`
	NodeOutputs map[string]any `json:"node_outputs"`
	FinalOutput map[string]any `json:"final_output"`
}

// PipelineSummary is the listing record returned by ListPipelines.
type PipelineSummary struct {
	PipelineID string    `json:"pipeline_id"`
	Name       string    `json:"name"`
	NodeCount  int       `json:"node_count"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

// PipelineEngine builds and executes pipelines of capability plugins on top
// of a Framework. Pipelines are identified by generated uuids; executions
// are tracked in records queryable while a run is in flight and after it
// finishes.
//
// Safe for concurrent use; independent pipelines may execute concurrently.
type PipelineEngine struct {
	framework *Framework
	logger    Logger

	mu         sync.RWMutex
	pipelines  map[string]*Pipeline
	order      []string
	executions map[string]*ExecutionRecord
}

// NewPipelineEngine creates an engine bound to a framework.
func NewPipelineEngine(framework *Framework) *PipelineEngine {
	return &PipelineEngine{
		framework:  framework,
		logger:     framework.logger.With("component", "pipeline_engine"),
		pipelines:  make(map[string]*Pipeline),
		executions: make(map[string]*ExecutionRecord),
	}
}

// CreatePipeline creates an empty pipeline and returns its generated id.
func (e *PipelineEngine) CreatePipeline(name string) string {
	id := uuid.NewString()
	pipeline := NewPipeline(id, name)

	e.mu.Lock()
	e.pipelines[id] = pipeline
	e.order = append(e.order, id)
	e.mu.Unlock()

	e.logger.Info("Pipeline created", "pipeline_id", id, "name", pipeline.Name)
	return id
}

// Pipeline returns a pipeline by id.
func (e *PipelineEngine) Pipeline(pipelineID string) (*Pipeline, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	p, ok := e.pipelines[pipelineID]
	return p, ok
}

// AddNode adds a node to a pipeline. The plugin id is resolved at execution
// time, so nodes may reference plugins loaded later.
func (e *PipelineEngine) AddNode(pipelineID, nodeID, pluginID string, config map[string]any) error {
	pipeline, ok := e.Pipeline(pipelineID)
	if !ok {
		return NewPipelineNotFoundError(pipelineID)
	}
	if _, err := pipeline.AddNode(nodeID, pluginID, config); err != nil {
		return err
	}
	e.logger.Debug("Node added",
		"pipeline_id", pipelineID,
		"node_id", nodeID,
		"plugin_id", pluginID)
	return nil
}

// Connect adds a directed edge between two nodes of a pipeline. Edges to
// unknown nodes and edges that would close a cycle are rejected.
func (e *PipelineEngine) Connect(pipelineID, sourceID, targetID string) error {
	pipeline, ok := e.Pipeline(pipelineID)
	if !ok {
		return NewPipelineNotFoundError(pipelineID)
	}
	if err := pipeline.Connect(sourceID, targetID); err != nil {
		return err
	}
	e.logger.Debug("Nodes connected",
		"pipeline_id", pipelineID,
		"source", sourceID,
		"target", targetID)
	return nil
}

// ExecutePipeline runs a pipeline over the input data and returns the
// merged result.
//
// Nodes execute sequentially in the pipeline's topological order. Each
// node's plugin is driven through its execute capability with the current
// data, the node config and the previous node outputs; plugins without it
// fall back to process over the current data, and plugins providing neither
// pass the data through with a warning. Map-shaped node outputs merge into
// the flowing data, later nodes overwriting earlier keys. The first node
// failure aborts the run: its error is wrapped with the node id, the
// execution record is marked failed, and no further nodes execute.
func (e *PipelineEngine) ExecutePipeline(ctx context.Context, pipelineID string, input map[string]any) (*PipelineResult, error) {
	pipeline, ok := e.Pipeline(pipelineID)
	if !ok {
		return nil, NewPipelineNotFoundError(pipelineID)
	}

	executionID := uuid.NewString()
	record := &ExecutionRecord{
		ExecutionID: executionID,
		PipelineID:  pipelineID,
		Status:      PipelineStatusRunning,
		StartedAt:   timecache.CachedTime(),
	}
	e.mu.Lock()
	e.executions[executionID] = record
	e.mu.Unlock()

	pipeline.setStatus(PipelineStatusRunning)
	e.logger.Info("Pipeline execution started",
		"pipeline_id", pipelineID,
		"execution_id", executionID)

	result, err := e.run(ctx, pipeline, record, input)

	e.mu.Lock()
	record.CompletedAt = timecache.CachedTime()
	if err != nil {
		record.Status = PipelineStatusFailed
		record.Error = err.Error()
	} else {
		record.Status = PipelineStatusCompleted
		record.CurrentNode = ""
	}
	e.mu.Unlock()

	if err != nil {
		pipeline.setStatus(PipelineStatusFailed)
		e.framework.dispatchError(ctx, err, ErrorReport{
			Category: ErrorCategoryPipeline,
			Context: map[string]any{
				"pipeline_id":  pipelineID,
				"execution_id": executionID,
			},
		})
		return nil, err
	}
	pipeline.setStatus(PipelineStatusCompleted)
	e.logger.Info("Pipeline execution completed",
		"pipeline_id", pipelineID,
		"execution_id", executionID)
	return result, nil
}

func (e *PipelineEngine) run(ctx context.Context, pipeline *Pipeline, record *ExecutionRecord, input map[string]any) (*PipelineResult, error) {
	currentData := make(map[string]any, len(input))
	for k, v := range input {
		currentData[k] = v
	}
	nodeOutputs := make(map[string]any)

	for _, nodeID := range pipeline.ExecutionOrder() {
		if err := ctx.Err(); err != nil {
			return nil, NewNodeFailedError(pipeline.ID, nodeID, err)
		}
		node, _ := pipeline.Node(nodeID)

		e.mu.Lock()
		record.CurrentNode = nodeID
		e.mu.Unlock()

		output, err := e.executeNode(ctx, pipeline.ID, node, currentData, nodeOutputs)
		if err != nil {
			return nil, err
		}
		nodeOutputs[nodeID] = output

		if merged, ok := output.(map[string]any); ok {
			for k, v := range merged {
				currentData[k] = v
			}
		}
		e.logger.Debug("Node executed", "pipeline_id", pipeline.ID, "node_id", nodeID)
	}

	return &PipelineResult{
		Status:      PipelineStatusCompleted,
		PipelineID:  pipeline.ID,
		ExecutionID: record.ExecutionID,
		NodeOutputs: nodeOutputs,
		FinalOutput: currentData,
	}, nil
}

// executeNode drives one node's plugin through the node capability
// contract.
func (e *PipelineEngine) executeNode(ctx context.Context, pipelineID string, node *PipelineNode, currentData map[string]any, previousOutputs map[string]any) (any, error) {
	plugin, ok := e.framework.Plugin(node.PluginID)
	if !ok {
		return nil, NewNodePluginMissingError(pipelineID, node.ID, node.PluginID)
	}

	var (
		output any
		err    error
	)
	switch {
	case hasCapability(plugin, NodeCapabilityExecute):
		output, err = e.framework.CallCapability(ctx, NodeCapabilityExecute,
			[]any{currentData, node.Config, previousOutputs},
			WithProvider(node.PluginID), WithoutCache())
	case hasCapability(plugin, NodeCapabilityProcess):
		output, err = e.framework.CallCapability(ctx, NodeCapabilityProcess,
			[]any{currentData},
			WithProvider(node.PluginID), WithoutCache())
	default:
		e.logger.Warn("Plugin provides no node capability, passing data through",
			"pipeline_id", pipelineID,
			"node_id", node.ID,
			"plugin_id", node.PluginID)
		return currentData, nil
	}
	if err != nil {
		return nil, NewNodeFailedError(pipelineID, node.ID, err)
	}
	return output, nil
}

func hasCapability(plugin *PluginInstance, name string) bool {
	_, ok := plugin.Capability(name)
	return ok
}

// ListPipelines returns a summary of every pipeline in creation order.
func (e *PipelineEngine) ListPipelines() []PipelineSummary {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]PipelineSummary, 0, len(e.order))
	for _, id := range e.order {
		p, ok := e.pipelines[id]
		if !ok {
			continue
		}
		out = append(out, PipelineSummary{
			PipelineID: p.ID,
			Name:       p.Name,
			NodeCount:  p.Len(),
			Status:     p.Status(),
			CreatedAt:  p.CreatedAt,
		})
	}
	return out
}

// DeletePipeline removes a pipeline. Unknown ids are a no-op returning
// false. Execution records of past runs are kept.
func (e *PipelineEngine) DeletePipeline(pipelineID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.pipelines[pipelineID]; !ok {
		return false
	}
	delete(e.pipelines, pipelineID)
	for i, id := range e.order {
		if id == pipelineID {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
	e.logger.Info("Pipeline deleted", "pipeline_id", pipelineID)
	return true
}

// ExecutionStatus returns a copy of the record for an execution id.
func (e *PipelineEngine) ExecutionStatus(executionID string) (ExecutionRecord, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	record, ok := e.executions[executionID]
	if !ok {
		return ExecutionRecord{}, false
	}
	return *record, true
}

// ActiveExecutions returns the records of executions still running.
func (e *PipelineEngine) ActiveExecutions() []ExecutionRecord {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]ExecutionRecord, 0)
	for _, record := range e.executions {
		if record.Status == PipelineStatusRunning {
			out = append(out, *record)
		}
	}
	return out
}
