// errors.go: structured error definitions for the go-capabilities system
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package gocapabilities

import (
	"github.com/agilira/go-errors"
)

// Error codes for the go-capabilities system
const (
	// Configuration errors (1000-1099)
	ErrCodeInvalidPluginID      = "CAPS_1001"
	ErrCodeNoCapabilities       = "CAPS_1002"
	ErrCodeDuplicatePluginID    = "CAPS_1003"
	ErrCodeInvalidManifest      = "CAPS_1004"
	ErrCodeManifestMissingField = "CAPS_1005"
	ErrCodeInvalidConfigSchema  = "CAPS_1006"
	ErrCodeInvalidFramework     = "CAPS_1007"

	// Lookup errors (1100-1199)
	ErrCodeCapabilityNotFound = "CAPS_1101"
	ErrCodePluginNotFound     = "CAPS_1102"
	ErrCodeUnknownProvider    = "CAPS_1103"
	ErrCodePipelineNotFound   = "CAPS_1104"
	ErrCodeNodeNotFound       = "CAPS_1105"
	ErrCodeExtensionNotFound  = "CAPS_1106"

	// Plugin lifecycle errors (1200-1299)
	ErrCodeValidationFailed     = "CAPS_1201"
	ErrCodeDependencyMissing    = "CAPS_1202"
	ErrCodeInitializationFailed = "CAPS_1203"
	ErrCodeCleanupFailed        = "CAPS_1204"

	// Capability execution errors (1300-1399)
	ErrCodeCapabilityFailed = "CAPS_1301"
	ErrCodeMiddlewareFailed = "CAPS_1302"

	// Discovery errors (1400-1499)
	ErrCodeDiscoveryError   = "REGISTRY_1401"
	ErrCodeFactoryNotFound  = "REGISTRY_1402"
	ErrCodePluginCreation   = "REGISTRY_1403"
	ErrCodeManifestParse    = "REGISTRY_1404"
	ErrCodeDiscoveryRoot    = "REGISTRY_1405"
	ErrCodeCandidateUnknown = "REGISTRY_1406"

	// Pipeline errors (1500-1599)
	ErrCodeDuplicateNode     = "PIPELINE_1501"
	ErrCodeDanglingEdge      = "PIPELINE_1502"
	ErrCodeCycleDetected     = "PIPELINE_1503"
	ErrCodeNodeFailed        = "PIPELINE_1504"
	ErrCodeNodePluginMissing = "PIPELINE_1505"

	// Remote provider errors (1600-1699)
	ErrCodeRemoteConnection = "REMOTE_1601"
	ErrCodeRemoteCall       = "REMOTE_1602"

	// Configuration watcher errors (1700-1799)
	ErrCodeConfigWatcherError = "CONFIG_1701"
	ErrCodeConfigParseError   = "CONFIG_1702"
)

// ErrorCategory identifies the class of failure for registered error
// handlers. Handlers are invoked best-effort before the original error is
// surfaced to the caller.
type ErrorCategory string

const (
	// ErrorCategoryPluginLoad covers failures while loading a plugin
	ErrorCategoryPluginLoad ErrorCategory = "plugin_load_error"

	// ErrorCategoryCapabilityCall covers failures during capability dispatch
	ErrorCategoryCapabilityCall ErrorCategory = "capability_call_error"

	// ErrorCategoryPipeline covers pipeline execution failures
	ErrorCategoryPipeline ErrorCategory = "pipeline_error"

	// ErrorCategoryDiscovery covers plugin discovery failures
	ErrorCategoryDiscovery ErrorCategory = "discovery_error"
)

// Configuration error constructors

func NewInvalidPluginIDError(id string) *errors.Error {
	return errors.New(ErrCodeInvalidPluginID, "Invalid plugin id").
		WithUserMessage("Plugin id is required and cannot be empty").
		WithContext("provided_id", id).
		WithSeverity("error")
}

func NewNoCapabilitiesError(pluginID string) *errors.Error {
	return errors.New(ErrCodeNoCapabilities, "Plugin exposes no capabilities").
		WithUserMessage("A plugin must expose at least one capability to be loaded").
		WithContext("plugin_id", pluginID).
		WithSeverity("error")
}

func NewDuplicatePluginIDError(id string) *errors.Error {
	return errors.New(ErrCodeDuplicatePluginID, "Duplicate plugin id").
		WithUserMessage("A plugin with this id is already registered").
		WithContext("plugin_id", id).
		WithSeverity("error")
}

func NewInvalidManifestError(path string, cause error) *errors.Error {
	if cause != nil {
		return errors.Wrap(cause, ErrCodeInvalidManifest, "Invalid plugin manifest").
			WithUserMessage("The plugin manifest could not be validated").
			WithContext("manifest_path", path).
			WithSeverity("error")
	}
	return errors.New(ErrCodeInvalidManifest, "Invalid plugin manifest").
		WithUserMessage("The plugin manifest could not be validated").
		WithContext("manifest_path", path).
		WithSeverity("error")
}

func NewManifestMissingFieldError(field string) *errors.Error {
	return errors.New(ErrCodeManifestMissingField, "Missing manifest field").
		WithUserMessage("A required manifest field is missing or empty").
		WithContext("field", field).
		WithSeverity("error")
}

func NewInvalidConfigSchemaError(field, reason string) *errors.Error {
	return errors.New(ErrCodeInvalidConfigSchema, "Invalid config schema").
		WithUserMessage("The manifest config_schema entry is malformed").
		WithContext("field", field).
		WithContext("reason", reason).
		WithSeverity("error")
}

// Lookup error constructors

func NewCapabilityNotFoundError(capability string) *errors.Error {
	return errors.New(ErrCodeCapabilityNotFound, "Capability not found").
		WithUserMessage("No loaded plugin provides the requested capability").
		WithContext("capability", capability).
		WithSeverity("error")
}

func NewPluginCapabilityError(pluginID, capability string) *errors.Error {
	return errors.New(ErrCodeCapabilityNotFound, "Capability not found in plugin").
		WithUserMessage("The plugin does not expose the requested capability").
		WithContext("plugin_id", pluginID).
		WithContext("capability", capability).
		WithSeverity("error")
}

func NewPluginNotFoundError(pluginID string) *errors.Error {
	return errors.New(ErrCodePluginNotFound, "Plugin not found").
		WithUserMessage("No plugin with the given id is registered").
		WithContext("plugin_id", pluginID).
		WithSeverity("error")
}

func NewUnknownProviderError(pluginID, capability string) *errors.Error {
	return errors.New(ErrCodeUnknownProvider, "Unknown provider").
		WithUserMessage("The requested plugin does not provide this capability").
		WithContext("plugin_id", pluginID).
		WithContext("capability", capability).
		WithSeverity("error")
}

func NewPipelineNotFoundError(pipelineID string) *errors.Error {
	return errors.New(ErrCodePipelineNotFound, "Pipeline not found").
		WithUserMessage("No pipeline with the given id exists").
		WithContext("pipeline_id", pipelineID).
		WithSeverity("error")
}

func NewNodeNotFoundError(pipelineID, nodeID string) *errors.Error {
	return errors.New(ErrCodeNodeNotFound, "Pipeline node not found").
		WithUserMessage("The pipeline does not contain the given node").
		WithContext("pipeline_id", pipelineID).
		WithContext("node_id", nodeID).
		WithSeverity("error")
}

// Plugin lifecycle error constructors

func NewValidationFailedError(pluginID string, cause error) *errors.Error {
	if cause != nil {
		return errors.Wrap(cause, ErrCodeValidationFailed, "Plugin validation failed").
			WithUserMessage("A registered validator rejected the plugin").
			WithContext("plugin_id", pluginID).
			WithSeverity("error")
	}
	return errors.New(ErrCodeValidationFailed, "Plugin validation failed").
		WithUserMessage("A registered validator rejected the plugin").
		WithContext("plugin_id", pluginID).
		WithSeverity("error")
}

func NewDependencyMissingError(pluginID, dependency string) *errors.Error {
	return errors.New(ErrCodeDependencyMissing, "Plugin dependency missing").
		WithUserMessage("A declared plugin dependency is not registered").
		WithContext("plugin_id", pluginID).
		WithContext("dependency", dependency).
		WithSeverity("error")
}

func NewInitializationFailedError(pluginID string, cause error) *errors.Error {
	if cause != nil {
		return errors.Wrap(cause, ErrCodeInitializationFailed, "Plugin initialization failed").
			WithUserMessage("The plugin refused initialization and was rolled back").
			WithContext("plugin_id", pluginID).
			WithSeverity("error")
	}
	return errors.New(ErrCodeInitializationFailed, "Plugin initialization failed").
		WithUserMessage("The plugin refused initialization and was rolled back").
		WithContext("plugin_id", pluginID).
		WithSeverity("error")
}

// Capability execution error constructors

func NewCapabilityFailedError(pluginID, capability string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeCapabilityFailed, "Capability execution failed").
		WithUserMessage("The capability handler returned an error").
		WithContext("plugin_id", pluginID).
		WithContext("capability", capability).
		WithSeverity("error")
}

func NewMiddlewareFailedError(capability string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeMiddlewareFailed, "Middleware rejected capability call").
		WithUserMessage("A middleware interceptor failed before plugin invocation").
		WithContext("capability", capability).
		WithSeverity("error")
}

// Discovery error constructors

func NewDiscoveryError(message string, cause error) *errors.Error {
	if cause != nil {
		return errors.Wrap(cause, ErrCodeDiscoveryError, message).
			WithSeverity("error")
	}
	return errors.New(ErrCodeDiscoveryError, message).
		WithSeverity("error")
}

func NewFactoryNotFoundError(pluginType string) *errors.Error {
	return errors.New(ErrCodeFactoryNotFound, "Plugin factory not found").
		WithUserMessage("No builder is registered for the manifest plugin type").
		WithContext("plugin_type", pluginType).
		WithSeverity("error")
}

func NewPluginCreationError(candidateID string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodePluginCreation, "Plugin construction failed").
		WithUserMessage("The discovered candidate could not be constructed").
		WithContext("candidate_id", candidateID).
		WithSeverity("error")
}

func NewManifestParseError(path string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeManifestParse, "Manifest parse failed").
		WithUserMessage("The manifest file could not be decoded").
		WithContext("manifest_path", path).
		WithSeverity("error")
}

func NewCandidateUnknownError(candidateID string) *errors.Error {
	return errors.New(ErrCodeCandidateUnknown, "Unknown discovery candidate").
		WithUserMessage("No discovered candidate matches the given plugin id").
		WithContext("candidate_id", candidateID).
		WithSeverity("error")
}

// Pipeline error constructors

func NewDuplicateNodeError(pipelineID, nodeID string) *errors.Error {
	return errors.New(ErrCodeDuplicateNode, "Duplicate pipeline node").
		WithUserMessage("A node with this id already exists in the pipeline").
		WithContext("pipeline_id", pipelineID).
		WithContext("node_id", nodeID).
		WithSeverity("error")
}

func NewDanglingEdgeError(pipelineID, nodeID string) *errors.Error {
	return errors.New(ErrCodeDanglingEdge, "Edge references unknown node").
		WithUserMessage("Both endpoints of a connection must exist in the pipeline").
		WithContext("pipeline_id", pipelineID).
		WithContext("node_id", nodeID).
		WithSeverity("error")
}

func NewCycleDetectedError(pipelineID, source, target string) *errors.Error {
	return errors.New(ErrCodeCycleDetected, "Connection would create a cycle").
		WithUserMessage("Pipeline graphs must stay acyclic").
		WithContext("pipeline_id", pipelineID).
		WithContext("source_node", source).
		WithContext("target_node", target).
		WithSeverity("error")
}

func NewNodeFailedError(pipelineID, nodeID string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeNodeFailed, "Pipeline node failed").
		WithUserMessage("A node failed and the pipeline execution was aborted").
		WithContext("pipeline_id", pipelineID).
		WithContext("node_id", nodeID).
		WithSeverity("error")
}

func NewNodePluginMissingError(pipelineID, nodeID, pluginID string) *errors.Error {
	return errors.New(ErrCodeNodePluginMissing, "Node plugin missing").
		WithUserMessage("The plugin bound to a pipeline node is not loaded").
		WithContext("pipeline_id", pipelineID).
		WithContext("node_id", nodeID).
		WithContext("plugin_id", pluginID).
		WithSeverity("error")
}

// Remote provider error constructors

func NewRemoteConnectionError(endpoint string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeRemoteConnection, "Remote provider connection failed").
		WithUserMessage("Could not establish a connection to the remote provider").
		WithContext("endpoint", endpoint).
		WithSeverity("error")
}

func NewRemoteCallError(capability string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeRemoteCall, "Remote capability call failed").
		WithUserMessage("The remote provider returned an error").
		WithContext("capability", capability).
		WithSeverity("error")
}

// Configuration watcher error constructors

func NewConfigWatcherError(message string, cause error) *errors.Error {
	if cause != nil {
		return errors.Wrap(cause, ErrCodeConfigWatcherError, message).
			WithSeverity("error")
	}
	return errors.New(ErrCodeConfigWatcherError, message).
		WithSeverity("error")
}

func NewConfigParseError(path string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeConfigParseError, "Runtime config parse failed").
		WithUserMessage("The runtime configuration file could not be decoded").
		WithContext("config_path", path).
		WithSeverity("error")
}
