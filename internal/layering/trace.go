package layering

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Trace records which layers define a dotted JSON path.
type Trace struct {
	Path   string       `json:"path"`
	Layers []Provenance `json:"layers"`
}

// Provenance describes one layer's contribution to a traced path.
type Provenance struct {
	Scope Scope `json:"scope"`
	Value any   `json:"value,omitempty"`
	Found bool  `json:"found"`
}

// Winner returns the strongest layer that defines the path.
func (t Trace) Winner() (Provenance, bool) {
	for _, p := range t.Layers {
		if p.Found {
			return p, true
		}
	}
	return Provenance{}, false
}

// ToJSON serialises the trace for logs and the CLI.
func (t Trace) ToJSON() ([]byte, error) {
	type alias Trace
	return json.Marshal(alias(t))
}

// Trace looks path up in every layer using the snapshot's JSON field names.
// Null values count as not found.
func (s *Stack[T]) Trace(path string) (Trace, error) {
	if strings.TrimSpace(path) == "" {
		return Trace{}, fmt.Errorf("layering: trace path must not be empty")
	}
	trace := Trace{Path: path}
	if s == nil {
		return trace, nil
	}
	segments := strings.Split(path, ".")
	for _, layer := range s.layers {
		doc, err := asDocument(layer.Snapshot)
		if err != nil {
			return Trace{}, fmt.Errorf("layering: trace scope %q: %w", layer.Scope.Name, err)
		}
		value, found := lookup(doc, segments)
		trace.Layers = append(trace.Layers, Provenance{Scope: layer.Scope, Value: value, Found: found})
	}
	return trace, nil
}

func asDocument(snapshot any) (map[string]any, error) {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func lookup(doc map[string]any, segments []string) (any, bool) {
	var current any = doc
	for _, segment := range segments {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[segment]
		if !ok || current == nil {
			return nil, false
		}
	}
	return current, true
}
