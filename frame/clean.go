package frame

import "sort"

// DuplicateLabels returns every row label that appears more than once,
// in first-seen order.
func (f *Frame) DuplicateLabels() []Label {
	counts := map[string]int{}
	var order []Label
	for _, l := range f.index.labels {
		k := l.key()
		counts[k]++
		if counts[k] == 2 {
			order = append(order, l.clone())
		}
	}
	return order
}

// HasDuplicateIndex reports whether any row label repeats.
func (f *Frame) HasDuplicateIndex() bool {
	return len(f.DuplicateLabels()) > 0
}

// DropDuplicateIndex keeps the first row per label and returns how many rows
// were dropped.
func (f *Frame) DropDuplicateIndex() (*Frame, int) {
	seen := map[string]struct{}{}
	var keep []int
	for i, l := range f.index.labels {
		k := l.key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keep = append(keep, i)
	}
	return f.takeRows(keep), f.Len() - len(keep)
}

// IsTimeIndexed reports whether rows are keyed by timestamps.
func (f *Frame) IsTimeIndexed() bool {
	return f.index.IsTime()
}

// SortIndex orders rows ascending by label. The sort is stable.
func (f *Frame) SortIndex() *Frame {
	order := make([]int, f.Len())
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return compareLabels(f.index.labels[order[a]], f.index.labels[order[b]]) < 0
	})
	return f.takeRows(order)
}

func (f *Frame) takeRows(rows []int) *Frame {
	index := Index{names: append([]string(nil), f.index.names...), labels: make([]Label, len(rows))}
	for i, r := range rows {
		index.labels[i] = f.index.labels[r].clone()
	}
	out := emptyLike(index, f.columns.clone(), f.series)
	for c := range f.cells {
		for i, r := range rows {
			out.cells[c][i] = f.cells[c][r]
		}
	}
	return out
}

func (f *Frame) takeColumns(cols []int) *Frame {
	columns := Index{names: append([]string(nil), f.columns.names...), labels: make([]Label, len(cols))}
	for i, c := range cols {
		columns.labels[i] = f.columns.labels[c].clone()
	}
	out := &Frame{index: f.index.clone(), columns: columns, series: f.series && len(cols) == 1}
	out.cells = make([][]any, len(cols))
	for i, c := range cols {
		out.cells[i] = append([]any(nil), f.cells[c]...)
	}
	return out
}
