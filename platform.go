package datasets

import (
	"fmt"
	"slices"
	"sync"

	"github.com/goliatone/go-datasets/flags"
)

// InterpreterFactory builds one interpreter of a platform from the platform
// arguments A.
type InterpreterFactory[A any] func(args A) (Dataset, error)

type interpreter[A any] struct {
	name    string
	factory InterpreterFactory[A]
}

// InterpreterRegistry lists the interpreters a platform instantiates. The
// most recently registered interpreter comes first, so it wins dispatch for
// flags several interpreters accept. It is safe for concurrent use.
type InterpreterRegistry[A any] struct {
	mu      sync.RWMutex
	entries []interpreter[A]
	check   ChildCheck
}

// NewInterpreterRegistry returns an empty registry. check, when non-nil,
// validates every interpreter instance.
func NewInterpreterRegistry[A any](check ChildCheck) *InterpreterRegistry[A] {
	return &InterpreterRegistry[A]{check: check}
}

// Register prepends factory under name.
func (r *InterpreterRegistry[A]) Register(name string, factory InterpreterFactory[A]) error {
	if factory == nil {
		return fmt.Errorf("%w: %s", ErrNilInterpreter, name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if slices.ContainsFunc(r.entries, func(e interpreter[A]) bool { return e.name == name }) {
		return fmt.Errorf("%w: %s", ErrInterpreterRegistered, name)
	}
	r.entries = slices.Insert(r.entries, 0, interpreter[A]{name: name, factory: factory})
	return nil
}

// MustRegister is Register that panics, for package level registration.
func (r *InterpreterRegistry[A]) MustRegister(name string, factory InterpreterFactory[A]) {
	if err := r.Register(name, factory); err != nil {
		panic(err)
	}
}

// Names returns the registered interpreter names in dispatch order.
func (r *InterpreterRegistry[A]) Names() []string {
	entries := r.snapshot()
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.name
	}
	return names
}

func (r *InterpreterRegistry[A]) snapshot() []interpreter[A] {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.entries)
}

// Platform is a link collection whose children are the interpreters of a
// registry, each built from the same arguments.
type Platform[A any] struct {
	*LinkCollection
	args         A
	interpreters map[string]Dataset
	order        []string
}

// NewPlatform instantiates every interpreter of registry with args, makes
// the platform their parent and links them in dispatch order.
func NewPlatform[A any](kind string, registry *InterpreterRegistry[A], args A, opts ...Option) (*Platform[A], error) {
	if registry == nil {
		return nil, fmt.Errorf("%w: platform %s", ErrNilRegistry, kind)
	}
	l, err := newLinkCollection(kind, nil, applyOptions(opts))
	if err != nil {
		return nil, err
	}
	p := &Platform[A]{LinkCollection: l, args: args, interpreters: map[string]Dataset{}}
	l.outer = p
	for _, e := range registry.snapshot() {
		child, err := e.factory(args)
		if err != nil {
			return nil, fmt.Errorf("datasets: %s: interpreter %s: %w", kind, e.name, err)
		}
		if registry.check != nil {
			if err := registry.check(child); err != nil {
				return nil, fmt.Errorf("%w: interpreter %s: %v", ErrChildType, e.name, err)
			}
		}
		if err := child.SetParent(p); err != nil {
			return nil, err
		}
		if err := l.AddChild(child); err != nil {
			return nil, err
		}
		p.interpreters[e.name] = child
		p.order = append(p.order, e.name)
	}
	l.WarnOverlaps()
	return p, nil
}

// Args returns the arguments the interpreters were built with.
func (p *Platform[A]) Args() A { return p.args }

// Interpreter returns the instance registered under name.
func (p *Platform[A]) Interpreter(name string) (Dataset, error) {
	child, ok := p.interpreters[name]
	if !ok {
		return nil, fmt.Errorf("%w: interpreter %q in %s", ErrDatasetNotFound, name, p.name)
	}
	return child, nil
}

// FlagsByInterpreter maps each interpreter name to its accepted flags.
func (p *Platform[A]) FlagsByInterpreter() map[string]flags.Set {
	out := make(map[string]flags.Set, len(p.order))
	for _, name := range p.order {
		out[name] = p.interpreters[name].AcceptedFlags()
	}
	return out
}
