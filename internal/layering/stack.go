package layering

import (
	"errors"
	"fmt"
	"sort"
)

// Scope names a precedence bucket. Higher priorities win.
type Scope struct {
	Name     string `json:"name"`
	Label    string `json:"label,omitempty"`
	Priority int    `json:"priority"`
}

// NewScope builds a scope; validation happens when the Stack is assembled.
func NewScope(name string, priority int, label string) Scope {
	return Scope{Name: name, Label: label, Priority: priority}
}

// Layer pairs a scope with the snapshot captured for it.
type Layer[T any] struct {
	Scope    Scope
	Snapshot T
}

// NewLayer deep copies snapshot so later caller mutations never leak in.
func NewLayer[T any](scope Scope, snapshot T) Layer[T] {
	return Layer[T]{Scope: scope, Snapshot: Clone(snapshot)}
}

var (
	// ErrScopeNameRequired indicates a missing scope name.
	ErrScopeNameRequired = errors.New("layering: scope name must be provided")
	// ErrDuplicateScopeName indicates two layers share a scope name.
	ErrDuplicateScopeName = errors.New("layering: scope names must be unique")
	// ErrPriorityOrder indicates two layers share a priority.
	ErrPriorityOrder = errors.New("layering: scope priorities must be strictly ordered")
)

// Stack is an immutable list of layers ordered strongest first.
type Stack[T any] struct {
	layers []Layer[T]
}

// NewStack validates and sorts layers by descending priority.
func NewStack[T any](layers ...Layer[T]) (*Stack[T], error) {
	seen := make(map[string]struct{}, len(layers))
	ordered := make([]Layer[T], 0, len(layers))
	for _, layer := range layers {
		if layer.Scope.Name == "" {
			return nil, ErrScopeNameRequired
		}
		if _, ok := seen[layer.Scope.Name]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateScopeName, layer.Scope.Name)
		}
		seen[layer.Scope.Name] = struct{}{}
		ordered = append(ordered, Layer[T]{Scope: layer.Scope, Snapshot: Clone(layer.Snapshot)})
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Scope.Priority > ordered[j].Scope.Priority
	})
	for i := 1; i < len(ordered); i++ {
		if ordered[i-1].Scope.Priority == ordered[i].Scope.Priority {
			return nil, fmt.Errorf("%w: %d", ErrPriorityOrder, ordered[i].Scope.Priority)
		}
	}
	return &Stack[T]{layers: ordered}, nil
}

// Len returns the number of layers.
func (s *Stack[T]) Len() int {
	if s == nil {
		return 0
	}
	return len(s.layers)
}

// Layers returns copies of the layers, strongest first.
func (s *Stack[T]) Layers() []Layer[T] {
	if s == nil {
		return nil
	}
	out := make([]Layer[T], len(s.layers))
	for i, layer := range s.layers {
		out[i] = Layer[T]{Scope: layer.Scope, Snapshot: Clone(layer.Snapshot)}
	}
	return out
}

// Merge resolves the stack into a single snapshot.
func (s *Stack[T]) Merge() T {
	if s == nil || len(s.layers) == 0 {
		var zero T
		return zero
	}
	snapshots := make([]T, len(s.layers))
	for i, layer := range s.layers {
		snapshots[i] = layer.Snapshot
	}
	return MergeLayers(snapshots...)
}
