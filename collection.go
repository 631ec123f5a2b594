package datasets

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/goliatone/go-datasets/flags"
	"github.com/goliatone/go-datasets/frame"
)

// Composite is a dataset built from named children.
type Composite interface {
	Dataset
	AddChild(child Dataset) error
	Child(name string) (Dataset, error)
	Children() []Dataset
	Len() int
}

// ChildCheck validates a dataset before it joins a collection.
type ChildCheck func(Dataset) error

// Collection keeps the children of a composite in insertion order under
// unique names. Accepted flags are the union of the children's, attributes
// are the values every child agrees on plus local ones.
type Collection struct {
	*Base
	children []Dataset
	byName   map[string]int
	check    ChildCheck
}

var _ Composite = (*Collection)(nil)

func newCollection(kind string, children []Dataset, o options) (*Collection, error) {
	base, err := newBase(kind, flags.Set{}, nil, o)
	if err != nil {
		return nil, err
	}
	c := &Collection{Base: base, byName: map[string]int{}, check: o.childCheck}
	base.acceptedFn = c.unionFlags
	base.acceptsFn = c.anyAccepts
	base.attributesFn = c.mergedAttributes
	base.indexFn = c.sharedIndex
	if base.required == nil {
		base.required = func(flags.Flag) flags.Set { return c.unionFlags() }
	}
	if err := c.AddChildren(children...); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Collection) bind(source Source) {
	c.Base.source = source
	if ds, ok := source.(Dataset); ok {
		c.Base.outer = ds
	}
}

// AddChild appends child. A child whose name is already present is ignored
// with a warning.
func (c *Collection) AddChild(child Dataset) error {
	if child == nil {
		return fmt.Errorf("%w: nil dataset", ErrChildType)
	}
	if c.check != nil {
		if err := c.check(child); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrChildType, child.Name(), err)
		}
	}
	if _, ok := c.byName[child.Name()]; ok {
		c.logger.Warn("dataset already in collection, ignoring",
			zap.String("child", child.Name()))
		return nil
	}
	c.byName[child.Name()] = len(c.children)
	c.children = append(c.children, child)
	return nil
}

// AddChildren adds each child in order and stops at the first error.
func (c *Collection) AddChildren(children ...Dataset) error {
	for _, child := range children {
		if err := c.AddChild(child); err != nil {
			return err
		}
	}
	return nil
}

// Child returns the child called name, or the first child when name is
// empty.
func (c *Collection) Child(name string) (Dataset, error) {
	if name == "" {
		if len(c.children) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrEmptyCollection, c.name)
		}
		return c.children[0], nil
	}
	i, ok := c.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q in %s", ErrDatasetNotFound, name, c.name)
	}
	return c.children[i], nil
}

// ChildByKind returns the first child of kind.
func (c *Collection) ChildByKind(kind string) (Dataset, error) {
	for _, child := range c.children {
		if child.Kind() == kind {
			return child, nil
		}
	}
	return nil, fmt.Errorf("%w: kind %s in %s", ErrDatasetNotFound, kind, c.name)
}

// Children returns the children in insertion order.
func (c *Collection) Children() []Dataset {
	return append([]Dataset(nil), c.children...)
}

// Names returns the child names in insertion order.
func (c *Collection) Names() []string {
	names := make([]string, len(c.children))
	for i, child := range c.children {
		names[i] = child.Name()
	}
	return names
}

func (c *Collection) Len() int { return len(c.children) }

func (c *Collection) unionFlags() flags.Set {
	var out flags.Set
	for _, child := range c.children {
		out = out.Union(child.AcceptedFlags())
	}
	return out
}

func (c *Collection) anyAccepts(flag flags.Flag) bool {
	for _, child := range c.children {
		if child.FlagIsAccepted(flag) {
			return true
		}
	}
	return false
}

func (c *Collection) accepting(flag flags.Flag) []Dataset {
	var out []Dataset
	for _, child := range c.children {
		if child.FlagIsAccepted(flag) {
			out = append(out, child)
		}
	}
	return out
}

func (c *Collection) mergedAttributes() map[string]any {
	out := map[string]any{}
	if len(c.children) > 0 {
		out = c.children[0].Attributes()
		for _, child := range c.children[1:] {
			out = intersectAttributes(out, child.Attributes())
		}
	}
	for k, v := range c.localAttributes() {
		out[k] = v
	}
	return out
}

func intersectAttributes(a, b map[string]any) map[string]any {
	out := make(map[string]any, len(a))
	for k, v := range a {
		if w, ok := b[k]; ok && v == w {
			out[k] = v
		}
	}
	return out
}

func (c *Collection) sharedIndex() (*flags.Index, bool) {
	if len(c.children) == 0 {
		return nil, false
	}
	first := c.children[0].FlagIndex()
	for _, child := range c.children[1:] {
		if child.FlagIndex() != first {
			return nil, false
		}
	}
	return first, true
}

// fetchAll fetches flag from every accepting child that skip lets through.
func (c *Collection) fetchAll(ctx context.Context, req Request, skip func(Dataset) (bool, error), consumed ...string) ([]string, []*frame.Frame, error) {
	var (
		names  []string
		frames []*frame.Frame
	)
	for _, child := range c.children {
		if skip != nil {
			skipped, err := skip(child)
			if err != nil {
				return nil, nil, err
			}
			if skipped {
				continue
			}
		}
		if !child.FlagIsAccepted(req.Flag) {
			continue
		}
		f, err := child.Fetch(ctx, req.Flag, req.Forward(consumed...)...)
		if err != nil {
			return nil, nil, err
		}
		names = append(names, child.Name())
		frames = append(frames, f)
	}
	if len(frames) == 0 {
		return nil, nil, &LookupError{Collection: c.name, Flag: req.Flag}
	}
	return names, frames, nil
}

// MergedCollection returns a merge collection over the same children.
func (c *Collection) MergedCollection(keepFirst bool) (*MergeCollection, error) {
	return NewMergeCollection(c.children,
		WithName(c.name+" merged"),
		WithKeepFirst(keepFirst),
		WithLogger(c.logger),
		WithConfigResolver(c.resolver),
	)
}

// FetchMerged fetches flag from every child and combines the results like a
// merge collection.
func (c *Collection) FetchMerged(ctx context.Context, flag flags.Flag, keepFirst bool, opts ...FetchOption) (*frame.Frame, error) {
	merged, err := c.MergedCollection(keepFirst)
	if err != nil {
		return nil, err
	}
	return merged.Fetch(ctx, flag, opts...)
}
