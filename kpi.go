package datasets

import (
	"context"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/goliatone/go-datasets/flags"
	"github.com/goliatone/go-datasets/frame"
)

// KPI is one scalar computed from a dataset, such as the mean price of a
// bus. Dataset fields are captured when the KPI is generated.
type KPI struct {
	Name              string
	Value             float64
	Flag              flags.Flag
	Object            string
	Aggregation       frame.Aggregation
	Dataset           string
	Kind              string
	Attributes        map[string]any
	DatasetAttributes map[string]any
}

// Attribute looks key up among the KPI fields ("name", "flag", "object",
// "aggregation", "dataset", "kind"), then Attributes, then DatasetAttributes.
func (k KPI) Attribute(key string) (any, bool) {
	switch key {
	case "name":
		return k.Name, true
	case "flag":
		return k.Flag, true
	case "object":
		return k.Object, true
	case "aggregation":
		return k.Aggregation, true
	case "dataset":
		return k.Dataset, true
	case "kind":
		return k.Kind, true
	}
	if v, ok := k.Attributes[key]; ok {
		return v, true
	}
	v, ok := k.DatasetAttributes[key]
	return v, ok
}

func (k KPI) clone() KPI {
	k.Attributes = maps.Clone(k.Attributes)
	k.DatasetAttributes = maps.Clone(k.DatasetAttributes)
	return k
}

// KPIDefinition computes KPIs for one dataset.
type KPIDefinition interface {
	RequiredFlags() flags.Set
	GenerateKPIs(ctx context.Context, ds Dataset) ([]KPI, error)
}

// KPIFunc adapts a function to KPIDefinition.
type KPIFunc struct {
	Flags    flags.Set
	Generate func(ctx context.Context, ds Dataset) ([]KPI, error)
}

func (f KPIFunc) RequiredFlags() flags.Set { return f.Flags }

func (f KPIFunc) GenerateKPIs(ctx context.Context, ds Dataset) ([]KPI, error) {
	return f.Generate(ctx, ds)
}

// FlagAggregation reduces every column of Flag with Aggregation and yields
// one KPI per column, named after the column unless Name is set.
type FlagAggregation struct {
	Flag        flags.Flag
	Aggregation frame.Aggregation
	Name        string
	Attributes  map[string]any
}

func (d FlagAggregation) RequiredFlags() flags.Set { return flags.NewSet(d.Flag) }

func (d FlagAggregation) GenerateKPIs(ctx context.Context, ds Dataset) ([]KPI, error) {
	f, err := ds.Fetch(ctx, d.Flag)
	if err != nil {
		return nil, err
	}
	values, err := f.Reduce(d.Aggregation)
	if err != nil {
		return nil, err
	}
	columns := f.Columns()
	attributes := ds.Attributes()
	out := make([]KPI, 0, len(values))
	for c, v := range values {
		object := columns.Label(c).String()
		if f.IsSeries() {
			object = f.Name()
		}
		name := d.Name
		if name == "" {
			name = fmt.Sprintf("%s %s %s", object, d.Flag, d.Aggregation)
		}
		value, ok := v.(float64)
		if !ok {
			return nil, fmt.Errorf("datasets: kpi %s: %s of %s is not numeric", name, d.Aggregation, object)
		}
		out = append(out, KPI{
			Name:              name,
			Value:             value,
			Flag:              d.Flag,
			Object:            object,
			Aggregation:       d.Aggregation,
			Dataset:           ds.Name(),
			Kind:              ds.Kind(),
			Attributes:        maps.Clone(d.Attributes),
			DatasetAttributes: maps.Clone(attributes),
		})
	}
	return out, nil
}

// KPICollection holds KPIs in insertion order. It is safe for concurrent use.
type KPICollection struct {
	mu   sync.RWMutex
	kpis []KPI
}

// NewKPICollection returns a collection holding copies of kpis.
func NewKPICollection(kpis ...KPI) *KPICollection {
	c := &KPICollection{}
	c.Add(kpis...)
	return c
}

func (c *KPICollection) Add(kpis ...KPI) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range kpis {
		c.kpis = append(c.kpis, k.clone())
	}
}

// Extend appends the KPIs of other.
func (c *KPICollection) Extend(other *KPICollection) {
	if other == nil || other == c {
		return
	}
	c.Add(other.KPIs()...)
}

func (c *KPICollection) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.kpis = nil
}

func (c *KPICollection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.kpis)
}

// KPIs returns copies of the stored KPIs.
func (c *KPICollection) KPIs() []KPI {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]KPI, len(c.kpis))
	for i, k := range c.kpis {
		out[i] = k.clone()
	}
	return out
}

// Filter returns the KPIs whose attributes equal every entry of match.
func (c *KPICollection) Filter(match map[string]any) *KPICollection {
	out := &KPICollection{}
	for _, k := range c.KPIs() {
		if matchesKPI(k, match) {
			out.kpis = append(out.kpis, k)
		}
	}
	return out
}

// GroupBy splits the collection by the value of attribute. KPIs without the
// attribute are left out.
func (c *KPICollection) GroupBy(attribute string) map[string]*KPICollection {
	out := map[string]*KPICollection{}
	for _, k := range c.KPIs() {
		v, ok := k.Attribute(attribute)
		if !ok {
			continue
		}
		key := fmt.Sprint(v)
		if out[key] == nil {
			out[key] = &KPICollection{}
		}
		out[key].kpis = append(out[key].kpis, k)
	}
	return out
}

// Values returns the distinct values of attribute, sorted by their text form.
func (c *KPICollection) Values(attribute string) []string {
	seen := map[string]struct{}{}
	for _, k := range c.KPIs() {
		if v, ok := k.Attribute(attribute); ok {
			seen[fmt.Sprint(v)] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(seen))
}

func matchesKPI(k KPI, match map[string]any) bool {
	for key, want := range match {
		got, ok := k.Attribute(key)
		if !ok || !scalarEqual(got, want) {
			return false
		}
	}
	return true
}

func scalarEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == b
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta.Comparable() && tb.Comparable() {
		if a == b {
			return true
		}
	}
	// flags and aggregations compare equal to their plain string form
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Kind() == reflect.String && vb.Kind() == reflect.String {
		return va.String() == vb.String()
	}
	return false
}

// KPIs returns the KPIs generated for this dataset.
func (b *Base) KPIs() *KPICollection { return b.kpis }

// AddKPIs generates the KPIs of defs for this dataset and stores them. A
// definition whose required flags the dataset does not accept is skipped
// with a warning.
func (b *Base) AddKPIs(ctx context.Context, defs ...KPIDefinition) error {
	ds := b.dataset()
	for _, def := range defs {
		if def == nil {
			continue
		}
		if missing := b.unacceptedFlags(def.RequiredFlags()); len(missing) > 0 {
			b.logger.Warn("kpi definition skipped",
				zap.String("definition", fmt.Sprintf("%T", def)),
				zap.Strings("missing_flags", missing))
			continue
		}
		kpis, err := def.GenerateKPIs(ctx, ds)
		if err != nil {
			return fmt.Errorf("datasets: %s: generate kpis: %w", b.name, err)
		}
		b.kpis.Add(kpis...)
	}
	return nil
}

// ClearKPIs drops the KPIs stored on this dataset.
func (b *Base) ClearKPIs() { b.kpis.Clear() }

func (b *Base) unacceptedFlags(required flags.Set) []string {
	var missing []string
	for _, f := range required.Slice() {
		if !b.FlagIsAccepted(f) {
			missing = append(missing, f.String())
		}
	}
	return missing
}

// KPIHolder is implemented by every dataset of this package.
type KPIHolder interface {
	KPIs() *KPICollection
	AddKPIs(ctx context.Context, defs ...KPIDefinition) error
	ClearKPIs()
}

var _ KPIHolder = (*Base)(nil)

// MergedKPIs collects the KPIs of every child. With deep, KPIs of nested
// collections' children are included as well.
func (c *Collection) MergedKPIs(deep bool) *KPICollection {
	merged := &KPICollection{}
	for _, child := range c.Children() {
		if holder, ok := child.(KPIHolder); ok {
			merged.Extend(holder.KPIs())
		}
		if nested, ok := child.(kpiParent); ok && deep {
			merged.Extend(nested.MergedKPIs(deep))
		}
	}
	return merged
}

// AddKPIsToChildren runs AddKPIs on every direct child.
func (c *Collection) AddKPIsToChildren(ctx context.Context, defs ...KPIDefinition) error {
	for _, child := range c.Children() {
		holder, ok := child.(KPIHolder)
		if !ok {
			continue
		}
		if err := holder.AddKPIs(ctx, defs...); err != nil {
			return err
		}
	}
	return nil
}

// ClearChildKPIs clears the KPIs of every child, recursing into nested
// collections with deep.
func (c *Collection) ClearChildKPIs(deep bool) {
	for _, child := range c.Children() {
		if holder, ok := child.(KPIHolder); ok {
			holder.ClearKPIs()
		}
		if nested, ok := child.(kpiParent); ok && deep {
			nested.ClearChildKPIs(deep)
		}
	}
}

type kpiParent interface {
	MergedKPIs(deep bool) *KPICollection
	ClearChildKPIs(deep bool)
}
