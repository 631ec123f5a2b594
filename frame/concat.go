package frame

import (
	"fmt"
	"maps"
	"slices"
)

// CompatibleAxes checks that frames share the number of axes and, per axis,
// the same set of level names.
func CompatibleAxes(frames []*Frame) error {
	if len(frames) == 0 {
		return ErrNoFrames
	}
	first := frames[0]
	for _, f := range frames[1:] {
		if f.NumAxes() != first.NumAxes() {
			return fmt.Errorf("frame: axes lengths do not match (%d vs %d)", first.NumAxes(), f.NumAxes())
		}
	}
	for axis := 0; axis < first.NumAxes(); axis++ {
		want := first.Axis(axis).NameSet()
		for _, f := range frames[1:] {
			if !maps.Equal(want, f.Axis(axis).NameSet()) {
				return fmt.Errorf("frame: axis %d level names do not match (%v vs %v)",
					axis, first.Axis(axis).Names(), f.Axis(axis).Names())
			}
		}
	}
	return nil
}

// Concat stacks frames along axis under an outer join, prefixing each label
// on that axis with its key under a new top level named level.
func Concat(keys []string, frames []*Frame, axis int, level string) (*Frame, error) {
	if len(frames) == 0 {
		return nil, ErrNoFrames
	}
	if len(keys) != len(frames) {
		return nil, fmt.Errorf("frame: %d keys for %d frames", len(keys), len(frames))
	}
	switch axis {
	case 0:
		return concatRows(keys, frames, level), nil
	case 1:
		return concatColumns(keys, frames, level), nil
	default:
		return nil, fmt.Errorf("frame: invalid concat axis %d", axis)
	}
}

func allSeries(frames []*Frame) bool {
	for _, f := range frames {
		if !f.series {
			return false
		}
	}
	return true
}

func concatRows(keys []string, frames []*Frame, level string) *Frame {
	series := allSeries(frames)
	columns := frames[0].columns.clone()
	if !series {
		for _, f := range frames[1:] {
			columns = union(columns, f.columns)
		}
	}
	index := Index{names: append([]string{level}, frames[0].index.names...)}
	var parts []*Frame
	for i, f := range frames {
		for _, l := range f.index.labels {
			index.labels = append(index.labels, append(Label{keys[i]}, l...))
		}
		if series {
			parts = append(parts, f.relabelColumns(columns))
			continue
		}
		parts = append(parts, f.reindex(f.index, columns))
	}
	out := emptyLike(index, columns, series)
	offset := 0
	for _, part := range parts {
		for c := range out.cells {
			copy(out.cells[c][offset:], part.cells[c])
		}
		offset += part.Len()
	}
	return out
}

func concatColumns(keys []string, frames []*Frame, level string) *Frame {
	rows := frames[0].index.clone()
	for _, f := range frames[1:] {
		rows = union(rows, f.index)
	}
	series := allSeries(frames)
	columns := Index{names: []string{level}}
	if !series {
		columns.names = append(columns.names, frames[0].columns.names...)
	}
	var cells [][]any
	for i, f := range frames {
		aligned := f.reindex(rows, f.columns)
		for c, l := range f.columns.labels {
			if series {
				columns.labels = append(columns.labels, Label{keys[i]})
			} else {
				columns.labels = append(columns.labels, append(Label{keys[i]}, l...))
			}
			cells = append(cells, aligned.cells[c])
		}
	}
	return &Frame{index: rows, columns: columns, cells: cells}
}

// MoveLevelToEnd rotates the outermost level of axis to the innermost position.
func (f *Frame) MoveLevelToEnd(axis int) *Frame {
	out := f.Copy()
	target := &out.index
	if axis == 1 {
		target = &out.columns
	}
	if target.Levels() < 2 {
		return out
	}
	target.names = append(target.names[1:], target.names[0])
	for i, l := range target.labels {
		target.labels[i] = append(l[1:].clone(), l[0])
	}
	return out
}

// Transpose swaps rows and columns. A series is returned unchanged.
func (f *Frame) Transpose() *Frame {
	if f.series {
		return f.Copy()
	}
	out := emptyLike(f.columns.clone(), f.index.clone(), false)
	for c := range f.cells {
		for r, v := range f.cells[c] {
			out.cells[r][c] = v
		}
	}
	return out
}

// Interleave stacks frames vertically with the key as the innermost row level,
// grouping the rows of every frame that share a label next to each other.
func Interleave(keys []string, frames []*Frame, level string) (*Frame, error) {
	if len(frames) == 0 {
		return nil, ErrNoFrames
	}
	if len(keys) != len(frames) {
		return nil, fmt.Errorf("frame: %d keys for %d frames", len(keys), len(frames))
	}
	stacked, err := Concat(keys, frames, 0, level)
	if err != nil {
		return nil, err
	}
	stacked = stacked.MoveLevelToEnd(0)

	rows := frames[0].index.clone()
	for _, f := range frames[1:] {
		rows = union(rows, f.index)
	}
	rank := rows.lookup()
	keyRank := make(map[string]int, len(keys))
	for i, k := range keys {
		keyRank[k] = i
	}
	order := make([]int, stacked.Len())
	for i := range order {
		order[i] = i
	}
	levels := rows.Levels()
	slices.SortStableFunc(order, func(a, b int) int {
		la, lb := stacked.index.labels[a], stacked.index.labels[b]
		if d := rank[Label(la[:levels]).key()] - rank[Label(lb[:levels]).key()]; d != 0 {
			return d
		}
		return keyRank[fmt.Sprint(la[levels])] - keyRank[fmt.Sprint(lb[levels])]
	})
	return stacked.takeRows(order), nil
}
