// Package loader is a host-side convenience for reading a state machine
// definition from YAML or JSON on disk. It is deliberately outside
// internal/workflow: the core engine only ever accepts an
// already-decoded map[string]any, never a file path or a text format
// (spec.md's definition-parsing Non-goal). This package exists purely
// so cmd/flowrun has somewhere to put that concern.
package loader

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads a state machine definition from path and returns it as the
// map[string]any workflow.Build expects. The same decoder handles both
// YAML and JSON input regardless of extension (see decodeYAML).
func Load(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loader: reading %s: %w", path, err)
	}
	return decodeYAML(data)
}

// decodeYAML handles both YAML and JSON, since JSON is a subset of YAML
// 1.2 and yaml.v3 accepts it directly.
func decodeYAML(data []byte) (map[string]any, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("loader: decoding definition: %w", err)
	}
	def, ok := normalize(raw).(map[string]any)
	if !ok {
		return nil, fmt.Errorf("loader: definition root must be an object")
	}
	return def, nil
}

// normalize walks a yaml.v3-decoded tree converting every
// map[any]any/map[string]any mix into map[string]any, since the engine
// (and encoding/json's own decoder) always represents objects that way.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalize(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprintf("%v", k)] = normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalize(val)
		}
		return out
	case int:
		return float64(t)
	default:
		return v
	}
}
