// manifest.go: Plugin manifest parsing and config schema validation
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package gocapabilities

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// PluginManifest describes a discoverable plugin candidate. Manifests live
// next to the plugin assets as plugin.yaml, plugin.yml or plugin.json and
// tell the loader what to build and how to validate its configuration.
//
// Fields:
//   - Name: plugin id the instance will be loaded under
//   - Type: factory key selecting how the plugin is constructed
//   - Version: informational version string
//   - Description: human-readable summary
//   - Entrypoint: type-specific locator (endpoint, binary, module path)
//   - Dependencies: plugin ids that must be loaded first
//   - Capabilities: capability names the plugin claims to provide
//   - Config: default configuration merged under the schema
//   - ConfigSchema: per-field validation rules applied at load time
type PluginManifest struct {
	Name         string                 `yaml:"name" json:"name"`
	Type         string                 `yaml:"type" json:"type"`
	Version      string                 `yaml:"version,omitempty" json:"version,omitempty"`
	Description  string                 `yaml:"description,omitempty" json:"description,omitempty"`
	Entrypoint   string                 `yaml:"entrypoint,omitempty" json:"entrypoint,omitempty"`
	Dependencies []string               `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
	Capabilities []string               `yaml:"capabilities,omitempty" json:"capabilities,omitempty"`
	Config       map[string]any         `yaml:"config,omitempty" json:"config,omitempty"`
	ConfigSchema map[string]FieldSchema `yaml:"config_schema,omitempty" json:"config_schema,omitempty"`
}

// FieldSchema constrains one configuration field.
type FieldSchema struct {
	Type     string   `yaml:"type,omitempty" json:"type,omitempty"`
	Required bool     `yaml:"required,omitempty" json:"required,omitempty"`
	Default  any      `yaml:"default,omitempty" json:"default,omitempty"`
	Enum     []any    `yaml:"enum,omitempty" json:"enum,omitempty"`
	Minimum  *float64 `yaml:"minimum,omitempty" json:"minimum,omitempty"`
	Maximum  *float64 `yaml:"maximum,omitempty" json:"maximum,omitempty"`
}

// manifestFileNames are the recognized manifest names, in lookup order.
var manifestFileNames = []string{"plugin.yaml", "plugin.yml", "plugin.json"}

// LoadManifest reads and parses a manifest file. The format follows the
// file extension: .json parses as JSON, everything else as YAML.
func LoadManifest(path string) (*PluginManifest, error) {
	data, err := os.ReadFile(path) // #nosec G304 - manifest paths come from discovery roots
	if err != nil {
		return nil, NewManifestParseError(path, err)
	}
	return ParseManifest(path, data)
}

// ParseManifest parses manifest bytes. The path is used for format
// selection and error context only.
func ParseManifest(path string, data []byte) (*PluginManifest, error) {
	var manifest PluginManifest
	if strings.EqualFold(filepath.Ext(path), ".json") {
		if err := json.Unmarshal(data, &manifest); err != nil {
			return nil, NewManifestParseError(path, err)
		}
	} else {
		if err := yaml.Unmarshal(data, &manifest); err != nil {
			return nil, NewManifestParseError(path, err)
		}
	}
	if err := manifest.Validate(); err != nil {
		return nil, NewInvalidManifestError(path, err)
	}
	return &manifest, nil
}

// Validate checks the structural requirements of a manifest: a non-empty
// name and type, no empty dependency or capability entries, and an
// internally consistent config schema.
func (m *PluginManifest) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return NewManifestMissingFieldError("name")
	}
	if strings.TrimSpace(m.Type) == "" {
		return NewManifestMissingFieldError("type")
	}
	for _, dep := range m.Dependencies {
		if strings.TrimSpace(dep) == "" {
			return NewInvalidConfigSchemaError("dependencies", "empty dependency entry")
		}
	}
	for _, capability := range m.Capabilities {
		if strings.TrimSpace(capability) == "" {
			return NewInvalidConfigSchemaError("capabilities", "empty capability entry")
		}
	}
	for field, schema := range m.ConfigSchema {
		if err := schema.validate(); err != nil {
			return NewInvalidConfigSchemaError(field, err.Error())
		}
	}
	return nil
}

var schemaTypes = []string{"string", "number", "integer", "boolean", "array", "object"}

func (s FieldSchema) validate() error {
	if s.Type != "" && !containsString(schemaTypes, s.Type) {
		return fmt.Errorf("unknown schema type %q", s.Type)
	}
	if s.Minimum != nil && s.Maximum != nil && *s.Minimum > *s.Maximum {
		return fmt.Errorf("minimum %v exceeds maximum %v", *s.Minimum, *s.Maximum)
	}
	return nil
}

// EffectiveConfig merges the manifest defaults, schema defaults and the
// supplied overrides, then validates the result against the schema.
// Overrides win over manifest config, which wins over schema defaults.
func (m *PluginManifest) EffectiveConfig(overrides map[string]any) (map[string]any, error) {
	merged := make(map[string]any)
	for field, schema := range m.ConfigSchema {
		if schema.Default != nil {
			merged[field] = schema.Default
		}
	}
	for k, v := range m.Config {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}

	for field, schema := range m.ConfigSchema {
		value, present := merged[field]
		if !present {
			if schema.Required {
				return nil, NewInvalidConfigSchemaError(field, "required field missing")
			}
			continue
		}
		if err := schema.check(value); err != nil {
			return nil, NewInvalidConfigSchemaError(field, err.Error())
		}
	}
	return merged, nil
}

// check validates a single value against the schema.
func (s FieldSchema) check(value any) error {
	switch s.Type {
	case "string":
		if _, ok := value.(string); !ok {
			return fmt.Errorf("expected string, got %T", value)
		}
	case "boolean":
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("expected boolean, got %T", value)
		}
	case "number", "integer":
		num, ok := numericValue(value)
		if !ok {
			return fmt.Errorf("expected %s, got %T", s.Type, value)
		}
		if s.Type == "integer" && num != float64(int64(num)) {
			return fmt.Errorf("expected integer, got %v", value)
		}
		if s.Minimum != nil && num < *s.Minimum {
			return fmt.Errorf("value %v below minimum %v", num, *s.Minimum)
		}
		if s.Maximum != nil && num > *s.Maximum {
			return fmt.Errorf("value %v above maximum %v", num, *s.Maximum)
		}
	case "array":
		if _, ok := value.([]any); !ok {
			return fmt.Errorf("expected array, got %T", value)
		}
	case "object":
		if _, ok := value.(map[string]any); !ok {
			return fmt.Errorf("expected object, got %T", value)
		}
	}
	if len(s.Enum) > 0 {
		for _, allowed := range s.Enum {
			if allowed == value {
				return nil
			}
		}
		return fmt.Errorf("value %v not in enum", value)
	}
	return nil
}

// numericValue normalizes the number types YAML and JSON decoders produce.
func numericValue(value any) (float64, bool) {
	switch n := value.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
