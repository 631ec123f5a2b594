package frame

import (
	"fmt"
	"math"
	"strings"
)

// Aggregation names a reduction across grouped columns.
type Aggregation string

const (
	AggSum   Aggregation = "sum"
	AggMean  Aggregation = "mean"
	AggMin   Aggregation = "min"
	AggMax   Aggregation = "max"
	AggCount Aggregation = "count"
	AggFirst Aggregation = "first"
)

// ParseAggregation accepts the lowercase aggregation names.
func ParseAggregation(s string) (Aggregation, error) {
	switch agg := Aggregation(strings.ToLower(strings.TrimSpace(s))); agg {
	case AggSum, AggMean, AggMin, AggMax, AggCount, AggFirst:
		return agg, nil
	default:
		return "", fmt.Errorf("frame: unknown aggregation %q", s)
	}
}

// ColumnKey renders a column label as a record key.
func ColumnKey(l Label) string {
	return l.String()
}

// Records returns one map per row keyed by ColumnKey, with the row label
// values under the index level names when those are set.
func (f *Frame) Records() []map[string]any {
	out := make([]map[string]any, f.Len())
	for r := range out {
		rec := make(map[string]any, f.Width()+f.index.Levels())
		for lvl, name := range f.index.names {
			if name != "" {
				rec[name] = f.index.labels[r][lvl]
			}
		}
		for c, l := range f.columns.labels {
			rec[ColumnKey(l)] = f.cells[c][r]
		}
		out[r] = rec
	}
	return out
}

// FilterRows keeps rows for which keep returns true.
func (f *Frame) FilterRows(keep func(r int, record map[string]any) (bool, error)) (*Frame, error) {
	records := f.Records()
	var rows []int
	for r, rec := range records {
		ok, err := keep(r, rec)
		if err != nil {
			return nil, err
		}
		if ok {
			rows = append(rows, r)
		}
	}
	return f.takeRows(rows), nil
}

// SelectColumns keeps the columns whose labels appear in labels, in f's order.
func (f *Frame) SelectColumns(labels []Label) *Frame {
	want := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		want[normalizeLabel(l).key()] = struct{}{}
	}
	var cols []int
	for c, l := range f.columns.labels {
		if _, ok := want[l.key()]; ok {
			cols = append(cols, c)
		}
	}
	return f.takeColumns(cols)
}

// GroupColumns aggregates columns row by row. groupOf maps a column label to
// its group key; columns it rejects are dropped. Groups keep first-seen order
// and become single-level columns named level.
func (f *Frame) GroupColumns(level string, groupOf func(Label) (any, bool), agg Aggregation) (*Frame, error) {
	if _, err := ParseAggregation(string(agg)); err != nil {
		return nil, err
	}
	if agg != AggCount && agg != AggFirst && !f.IsNumeric() {
		return nil, ErrNotNumeric
	}
	var keys []any
	members := map[string][]int{}
	for c, l := range f.columns.labels {
		g, ok := groupOf(l.clone())
		if !ok {
			continue
		}
		k := valueKey(normalizeLabelValue(g))
		if _, seen := members[k]; !seen {
			keys = append(keys, g)
		}
		members[k] = append(members[k], c)
	}

	columns := Simple(level, keys...)
	out := emptyLike(f.index.clone(), columns, false)
	for g, key := range keys {
		cols := members[valueKey(normalizeLabelValue(key))]
		for r := 0; r < f.Len(); r++ {
			out.cells[g][r] = f.aggregate(r, cols, agg)
		}
	}
	return out, nil
}

func (f *Frame) aggregate(r int, cols []int, agg Aggregation) any {
	values := make([]any, len(cols))
	for i, c := range cols {
		values[i] = f.cells[c][r]
	}
	return reduce(values, agg)
}

// Reduce aggregates every column over its rows, one value per column.
func (f *Frame) Reduce(agg Aggregation) ([]any, error) {
	if _, err := ParseAggregation(string(agg)); err != nil {
		return nil, err
	}
	out := make([]any, len(f.cells))
	for c, col := range f.cells {
		out[c] = reduce(col, agg)
	}
	return out, nil
}

func reduce(values []any, agg Aggregation) any {
	switch agg {
	case AggCount:
		n := 0
		for _, v := range values {
			if !IsMissing(v) {
				n++
			}
		}
		return float64(n)
	case AggFirst:
		for _, v := range values {
			if !IsMissing(v) {
				return v
			}
		}
		return nil
	}

	var acc float64
	n := 0
	for _, cell := range values {
		v := toFloat(cell)
		if math.IsNaN(v) {
			continue
		}
		switch {
		case n == 0:
			acc = v
		case agg == AggMin:
			acc = math.Min(acc, v)
		case agg == AggMax:
			acc = math.Max(acc, v)
		default:
			acc += v
		}
		n++
	}
	switch {
	case n == 0 && agg == AggSum:
		return 0.0
	case n == 0:
		return math.NaN()
	case agg == AggMean:
		return acc / float64(n)
	default:
		return acc
	}
}
