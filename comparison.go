package datasets

import (
	"context"
	"fmt"

	"github.com/goliatone/go-datasets/frame"
)

// ComparisonMode selects what a comparison returns.
type ComparisonMode string

const (
	// ComparisonDelta returns variation minus reference.
	ComparisonDelta ComparisonMode = "delta"
	// ComparisonVariation returns the variation result.
	ComparisonVariation ComparisonMode = "variation"
	// ComparisonBoth stacks variation and reference row by row.
	ComparisonBoth ComparisonMode = "both"
)

// ComparisonLevel names the row level that ComparisonBoth adds.
const ComparisonLevel = "comparison"

// Attribute keys every comparison carries.
const (
	AttrVariationName = "variation dataset name"
	AttrReferenceName = "reference dataset name"
)

// AttributePolicy selects which child supplies comparison attributes.
type AttributePolicy int

const (
	AttributesFromVariation AttributePolicy = iota
	AttributesFromReference
	AttributesIntersection
)

// DiffFormatter renders one cell of a non-numeric delta. inVariation and
// inReference report whether each side holds a non-missing value.
type DiffFormatter interface {
	Format(variation, reference any, inVariation, inReference bool) any
}

// DiffFormatterFunc adapts a function to DiffFormatter.
type DiffFormatterFunc func(variation, reference any, inVariation, inReference bool) any

func (fn DiffFormatterFunc) Format(variation, reference any, inVariation, inReference bool) any {
	return fn(variation, reference, inVariation, inReference)
}

// DefaultDiffFormatter renders "X (was Y)", "X (new)" and "Y (removed)" and
// keeps unchanged cells as they are.
type DefaultDiffFormatter struct{}

func (DefaultDiffFormatter) Format(variation, reference any, inVariation, inReference bool) any {
	switch {
	case inVariation && inReference:
		if frame.CellsEqual(variation, reference) {
			return variation
		}
		return fmt.Sprintf("%v (was %v)", variation, reference)
	case inVariation:
		return fmt.Sprintf("%v (new)", variation)
	case inReference:
		return fmt.Sprintf("%v (removed)", reference)
	}
	return nil
}

// Comparison is a two-child collection computing variation versus reference.
type Comparison struct {
	*Collection
	variation Dataset
	reference Dataset
	policy    AttributePolicy
	formatter DiffFormatter
}

// NewComparison builds a comparison named "<variation> vs <reference>"
// unless WithName is given.
func NewComparison(variation, reference Dataset, opts ...Option) (*Comparison, error) {
	if variation == nil || reference == nil {
		return nil, fmt.Errorf("%w: comparison needs a variation and a reference", ErrChildType)
	}
	o := applyOptions(opts)
	if o.name == "" {
		o.name = variation.Name() + " vs " + reference.Name()
	}
	c, err := newCollection("Comparison", []Dataset{variation, reference}, o)
	if err != nil {
		return nil, err
	}
	cmp := &Comparison{
		Collection: c,
		variation:  variation,
		reference:  reference,
		policy:     o.policy,
		formatter:  o.formatter,
	}
	c.bind(cmp)
	c.Base.attributesFn = cmp.attributes
	return cmp, nil
}

// Variation returns the variation dataset.
func (c *Comparison) Variation() Dataset { return c.variation }

// Reference returns the reference dataset.
func (c *Comparison) Reference() Dataset { return c.reference }

func (c *Comparison) attributes() map[string]any {
	var out map[string]any
	switch c.policy {
	case AttributesFromReference:
		out = c.reference.Attributes()
	case AttributesIntersection:
		out = intersectAttributes(c.variation.Attributes(), c.reference.Attributes())
	default:
		out = c.variation.Attributes()
	}
	for k, v := range c.localAttributes() {
		out[k] = v
	}
	out[AttrVariationName] = c.variation.Name()
	out[AttrReferenceName] = c.reference.Name()
	return out
}

func (c *Comparison) Compute(ctx context.Context, req Request) (*frame.Frame, error) {
	mode, unchanged, fill, err := comparisonArgs(req)
	if err != nil {
		return nil, err
	}
	forward := req.Forward(ExtraComparison, ExtraUnchangedAsMissing, ExtraFillValue)
	v, err := c.variation.Fetch(ctx, req.Flag, forward...)
	if err != nil {
		return nil, err
	}
	r, err := c.reference.Fetch(ctx, req.Flag, forward...)
	if err != nil {
		return nil, err
	}

	switch mode {
	case ComparisonDelta:
		return c.delta(v, r, fill, unchanged)
	case ComparisonVariation:
		if unchanged {
			return v.MaskEqual(r), nil
		}
		return v, nil
	case ComparisonBoth:
		if unchanged {
			v, r = v.MaskEqual(r), r.MaskEqual(v)
		}
		return frame.Interleave([]string{string(ComparisonVariation), "reference"}, []*frame.Frame{v, r}, ComparisonLevel)
	}
	return nil, notImplemented("comparison", fmt.Sprintf("unknown mode %q", mode), nil)
}

func (c *Comparison) delta(v, r *frame.Frame, fill float64, unchanged bool) (*frame.Frame, error) {
	if v.IsNumeric() && r.IsNumeric() {
		d, err := v.Subtract(r, fill)
		if err != nil {
			return nil, err
		}
		if unchanged {
			d = d.Where(func(row, col int) bool { return d.Float(row, col) == 0 })
		}
		return d, nil
	}
	return frame.Cellwise(v, r, func(va, vb any, inA, inB bool) any {
		inA = inA && !frame.IsMissing(va)
		inB = inB && !frame.IsMissing(vb)
		if unchanged && inA && inB && frame.CellsEqual(va, vb) {
			return nil
		}
		return c.formatter.Format(va, vb, inA, inB)
	}), nil
}

func comparisonArgs(req Request) (ComparisonMode, bool, float64, error) {
	mode := ComparisonDelta
	if raw, ok := req.Extra(ExtraComparison); ok {
		switch v := raw.(type) {
		case ComparisonMode:
			mode = v
		case string:
			mode = ComparisonMode(v)
		default:
			return "", false, 0, notImplemented("comparison", fmt.Sprintf("mode of type %T", raw), nil)
		}
	}
	switch mode {
	case ComparisonDelta, ComparisonVariation, ComparisonBoth:
	default:
		return "", false, 0, notImplemented("comparison", fmt.Sprintf("unknown mode %q", mode), nil)
	}
	unchanged := false
	if raw, ok := req.Extra(ExtraUnchangedAsMissing); ok {
		b, isBool := raw.(bool)
		if !isBool {
			return "", false, 0, fmt.Errorf("datasets: %s must be a bool, got %T", ExtraUnchangedAsMissing, raw)
		}
		unchanged = b
	}
	fill := 0.0
	if raw, ok := req.Extra(ExtraFillValue); ok {
		switch v := raw.(type) {
		case float64:
			fill = v
		case int:
			fill = float64(v)
		default:
			return "", false, 0, fmt.Errorf("datasets: %s must be a number, got %T", ExtraFillValue, raw)
		}
	}
	return mode, unchanged, fill, nil
}
