package datasets

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/goliatone/go-datasets/frame"
	"github.com/goliatone/go-datasets/query"
)

// Level names used by concat collections.
const (
	DefaultConcatLevel = "dataset"
	AttributeLevel     = "attribute"
)

// ConcatCollection places the results of its children side by side under a
// new level holding the child names.
type ConcatCollection struct {
	*Collection
	axis      int
	level     string
	bottom    bool
	transpose bool
	skip      func(Dataset) bool
	skipExpr  string
	skipPred  func(query.Context) (bool, error)
}

// NewConcatCollection builds a concat collection. See WithDefaultConcatAxis,
// WithConcatLevelName, WithConcatTop, WithTranspose, WithSkip and
// WithSkipExpr.
func NewConcatCollection(children []Dataset, opts ...Option) (*ConcatCollection, error) {
	return newConcatCollection("ConcatCollection", children, applyOptions(opts))
}

func newConcatCollection(kind string, children []Dataset, o options) (*ConcatCollection, error) {
	if o.concatAxis != 0 && o.concatAxis != 1 {
		return nil, fmt.Errorf("datasets: concat axis must be 0 or 1, got %d", o.concatAxis)
	}
	c, err := newCollection(kind, children, o)
	if err != nil {
		return nil, err
	}
	cc := &ConcatCollection{
		Collection: c,
		axis:       o.concatAxis,
		level:      o.concatLevel,
		bottom:     o.concatBottom,
		transpose:  o.transpose,
		skip:       o.skip,
		skipExpr:   o.skipExpr,
	}
	if cc.skipExpr != "" {
		if cc.skipPred, err = query.Predicate(c.evaluator, cc.skipExpr); err != nil {
			return nil, err
		}
	}
	c.bind(cc)
	return cc, nil
}

// LevelName returns the name of the level holding child names.
func (cc *ConcatCollection) LevelName() string { return cc.level }

func (cc *ConcatCollection) Compute(ctx context.Context, req Request) (*frame.Frame, error) {
	axis, err := concatAxis(req, cc.axis)
	if err != nil {
		return nil, err
	}
	names, frames, err := cc.fetchAll(ctx, req, cc.skipped, ExtraConcatAxis)
	if err != nil {
		return nil, err
	}
	if err := frame.CompatibleAxes(frames); err != nil {
		return nil, notImplemented("concat", "children return incompatible axes", err)
	}
	out, err := frame.Concat(names, frames, axis, cc.level)
	if err != nil {
		return nil, err
	}
	if cc.bottom {
		out = out.MoveLevelToEnd(axis)
	}
	if cc.transpose {
		out = out.Transpose()
	}
	return out, nil
}

func (cc *ConcatCollection) skipped(child Dataset) (bool, error) {
	if cc.skip != nil && cc.skip(child) {
		return true, nil
	}
	if cc.skipPred == nil {
		return false, nil
	}
	record := child.Attributes()
	record["name"] = child.Name()
	record["kind"] = child.Kind()
	return cc.skipPred(query.Context{Record: record, Dataset: cc.name})
}

func concatAxis(req Request, fallback int) (int, error) {
	raw, ok := req.Extra(ExtraConcatAxis)
	if !ok {
		return fallback, nil
	}
	var axis int
	switch v := raw.(type) {
	case int:
		axis = v
	case int64:
		axis = int(v)
	case float64:
		axis = int(v)
	default:
		return 0, fmt.Errorf("datasets: %s must be an integer, got %T", ExtraConcatAxis, raw)
	}
	if axis != 0 && axis != 1 {
		return 0, fmt.Errorf("datasets: concat axis must be 0 or 1, got %d", axis)
	}
	return axis, nil
}

// AttributesFrame tabulates child attributes: one row per child under the
// concat level and one column per attribute key under "attribute".
func (cc *ConcatCollection) AttributesFrame() (*frame.Frame, error) {
	keys := map[string]struct{}{}
	attrs := make([]map[string]any, len(cc.children))
	for i, child := range cc.children {
		attrs[i] = child.Attributes()
		for k := range attrs[i] {
			keys[k] = struct{}{}
		}
	}
	columns := slices.Sorted(maps.Keys(keys))
	columnLabels := make([]any, len(columns))
	for i, k := range columns {
		columnLabels[i] = k
	}
	rowLabels := make([]any, len(cc.children))
	rows := make([][]any, len(cc.children))
	for i, child := range cc.children {
		rowLabels[i] = child.Name()
		rows[i] = make([]any, len(columns))
		for j, k := range columns {
			rows[i][j] = attrs[i][k]
		}
	}
	return frame.New(frame.Simple(cc.level, rowLabels...), frame.Simple(AttributeLevel, columnLabels...), rows)
}

// ComparisonConcat is a concat collection whose children are comparisons.
func ComparisonConcat(comparisons []*Comparison, opts ...Option) (*ConcatCollection, error) {
	children := make([]Dataset, len(comparisons))
	for i, c := range comparisons {
		children[i] = c
	}
	o := applyOptions(opts)
	o.childCheck = requireComparison
	return newConcatCollection("ComparisonConcat", children, o)
}

func requireComparison(ds Dataset) error {
	if _, ok := ds.(*Comparison); !ok {
		return fmt.Errorf("expected *Comparison, got %T", ds)
	}
	return nil
}
