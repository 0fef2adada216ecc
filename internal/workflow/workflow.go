// Package workflow finds node-graph generation workflows embedded as JSON
// in metadata values.
package workflow

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/deploymenttheory/go-genmeta/internal/metadata"
)

// Graph is a detected workflow.
type Graph struct {
	// Tag is the metadata entry the workflow came from.
	Tag string
	// Raw is the JSON exactly as stored.
	Raw json.RawMessage
	// Object is the parsed top-level object.
	Object map[string]any
}

// Detect returns the first entry, in map order, whose tag mentions
// "workflow" or "comfy" and whose value is a graph-shaped JSON object.
func Detect(candidates *metadata.Map) (*Graph, bool) {
	var found *Graph
	candidates.Range(func(tag, value string) bool {
		lower := strings.ToLower(tag)
		if !strings.Contains(lower, "workflow") && !strings.Contains(lower, "comfy") {
			return true
		}
		obj, ok := parseObject(value)
		if !ok || !IsGraph(obj) {
			return true
		}
		found = &Graph{Tag: tag, Raw: json.RawMessage(strings.TrimSpace(value)), Object: obj}
		return false
	})
	return found, found != nil
}

// IsGraph reports whether obj has a "nodes" field, or holds an object value
// with a "class_type" field.
func IsGraph(obj map[string]any) bool {
	if _, ok := obj["nodes"]; ok {
		return true
	}
	for _, v := range obj {
		if node, ok := v.(map[string]any); ok {
			if _, ok := node["class_type"]; ok {
				return true
			}
		}
	}
	return false
}

// IsJSON reports whether value is a complete JSON document of any kind.
func IsJSON(value string) bool {
	return json.Valid([]byte(value))
}

// Indent pretty-prints a JSON document with two-space indentation, keeping
// key order and number formatting.
func Indent(value []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, bytes.TrimSpace(value), "", "  "); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Indent pretty-prints the workflow.
func (g *Graph) Indent() ([]byte, error) {
	return Indent(g.Raw)
}

func parseObject(value string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(value), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}
