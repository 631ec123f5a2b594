package query

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
	"strings"
	"sync"
)

var (
	ErrFunctionRegistered = errors.New("query: function already registered")
	ErrFunctionNotFound   = errors.New("query: function not registered")
)

// Function is a helper callable from filter and skip expressions.
type Function func(args ...any) (any, error)

// FunctionRegistry maps case-insensitive names to functions. Evaluators take
// a clone when they are built, so later registrations do not reach them.
type FunctionRegistry struct {
	mu        sync.RWMutex
	functions map[string]Function
}

func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{functions: map[string]Function{}}
}

// Register adds fn under name.
func (r *FunctionRegistry) Register(name string, fn Function) error {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return fmt.Errorf("query: function name must not be empty")
	}
	if fn == nil {
		return fmt.Errorf("query: function %q is nil", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.functions == nil {
		r.functions = map[string]Function{}
	}
	if _, exists := r.functions[key]; exists {
		return fmt.Errorf("%w: %q", ErrFunctionRegistered, name)
	}
	r.functions[key] = fn
	return nil
}

// MustRegister is Register that panics, for package level tables.
func (r *FunctionRegistry) MustRegister(name string, fn Function) *FunctionRegistry {
	if err := r.Register(name, fn); err != nil {
		panic(err)
	}
	return r
}

func (r *FunctionRegistry) Clone() *FunctionRegistry {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return &FunctionRegistry{functions: maps.Clone(r.functions)}
}

func (r *FunctionRegistry) Call(name string, args ...any) (any, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: %q (no registry)", ErrFunctionNotFound, name)
	}
	r.mu.RLock()
	fn := r.functions[strings.ToLower(name)]
	r.mu.RUnlock()
	if fn == nil {
		return nil, fmt.Errorf("%w: %q", ErrFunctionNotFound, name)
	}
	return fn(args...)
}

// Names returns the registered names, sorted.
func (r *FunctionRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.functions))
}

// Builtins returns a registry with the helpers datasets use in row filters
// and skip predicates:
//
//	missing(v)          true for nil and NaN cells
//	between(v, lo, hi)  lo <= v <= hi for numeric v
//	oneof(v, a, b...)   v equals one of the candidates
func Builtins() *FunctionRegistry {
	return NewFunctionRegistry().
		MustRegister("missing", missing).
		MustRegister("between", between).
		MustRegister("oneof", oneOf)
}

func missing(args ...any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("query: missing takes 1 argument, got %d", len(args))
	}
	switch v := args[0].(type) {
	case nil:
		return true, nil
	case float64:
		return math.IsNaN(v), nil
	case float32:
		return math.IsNaN(float64(v)), nil
	}
	return false, nil
}

func between(args ...any) (any, error) {
	if len(args) != 3 {
		return nil, fmt.Errorf("query: between takes 3 arguments, got %d", len(args))
	}
	v, ok := number(args[0])
	if !ok || math.IsNaN(v) {
		return false, nil
	}
	lo, okLo := number(args[1])
	hi, okHi := number(args[2])
	if !okLo || !okHi {
		return nil, fmt.Errorf("query: between bounds must be numbers, got %T and %T", args[1], args[2])
	}
	return lo <= v && v <= hi, nil
}

func oneOf(args ...any) (any, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("query: oneof takes at least 2 arguments, got %d", len(args))
	}
	for _, candidate := range args[1:] {
		if sameValue(args[0], candidate) {
			return true, nil
		}
	}
	return false, nil
}

func sameValue(a, b any) bool {
	if x, ok := number(a); ok {
		y, ok := number(b)
		return ok && x == y
	}
	return a == b
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}
