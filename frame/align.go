package frame

import "errors"

// ErrNoFrames is returned by reductions that need at least one input.
var ErrNoFrames = errors.New("frame: at least one frame is required")

// Align reindexes a and b onto the union of their rows and columns. Labels of
// a come first. Two series align on rows only and keep a's name.
func Align(a, b *Frame) (*Frame, *Frame) {
	rows := union(a.index, b.index)
	if a.series && b.series {
		columns := a.columns.clone()
		return a.reindex(rows, columns), b.relabelColumns(columns).reindex(rows, columns)
	}
	columns := union(a.columns, b.columns)
	left, right := a.reindex(rows, columns), b.reindex(rows, columns)
	left.series, right.series = false, false
	return left, right
}

func (f *Frame) reindex(index, columns Index) *Frame {
	rows, cols := f.index.lookup(), f.columns.lookup()
	out := emptyLike(index.clone(), columns.clone(), f.series)
	for c, cl := range columns.labels {
		src, ok := cols[cl.key()]
		if !ok {
			continue
		}
		for r, rl := range index.labels {
			if sr, ok := rows[rl.key()]; ok {
				out.cells[c][r] = f.cells[src][sr]
			}
		}
	}
	return out
}

func (f *Frame) relabelColumns(columns Index) *Frame {
	out := f.Copy()
	out.columns = columns.clone()
	return out
}

// CombineFirst fills missing cells of f from other over the union of labels.
func (f *Frame) CombineFirst(other *Frame) *Frame {
	return combinePreferring(f, other, true)
}

// Combine reduces frames pairwise, filling gaps of the preferred side from the
// other. With keepFirst the earlier frame wins on overlapping cells, otherwise
// the later one does. Frames that share no labels on one axis simply stack
// along it, which is the same result as the fill.
func Combine(frames []*Frame, keepFirst bool) (*Frame, error) {
	if len(frames) == 0 {
		return nil, ErrNoFrames
	}
	acc := frames[0].Copy()
	for _, next := range frames[1:] {
		acc = combinePreferring(acc, next, keepFirst)
	}
	return acc, nil
}

// SharesRows reports whether a and b have at least one row label in common.
func SharesRows(a, b *Frame) bool { return overlaps(a.index, b.index) }

// SharesColumns reports whether a and b have at least one column label in common.
func SharesColumns(a, b *Frame) bool {
	if a.series && b.series {
		return true
	}
	return overlaps(a.columns, b.columns)
}

func combinePreferring(a, b *Frame, preferA bool) *Frame {
	left, right := Align(a, b)
	primary, secondary := left, right
	if !preferA {
		primary, secondary = right, left
	}
	out := left.Copy()
	for c := range out.cells {
		for r := range out.cells[c] {
			v := primary.cells[c][r]
			if IsMissing(v) {
				v = secondary.cells[c][r]
			}
			out.cells[c][r] = v
		}
	}
	out.series = a.series && b.series
	return out
}

// Cellwise aligns a and b and fills every position of the union with fn.
// inA and inB report whether the position exists in each input.
func Cellwise(a, b *Frame, fn func(va, vb any, inA, inB bool) any) *Frame {
	left, right := Align(a, b)
	ar, ac := a.index.lookup(), a.columns.lookup()
	br, bc := b.index.lookup(), b.columns.lookup()
	bothSeries := a.series && b.series
	out := left.Copy()
	for c, cl := range left.columns.labels {
		_, acOK := ac[cl.key()]
		_, bcOK := bc[cl.key()]
		if bothSeries {
			acOK, bcOK = true, true
		}
		for r, rl := range left.index.labels {
			_, arOK := ar[rl.key()]
			_, brOK := br[rl.key()]
			out.cells[c][r] = normalizeCell(fn(left.cells[c][r], right.cells[c][r], arOK && acOK, brOK && bcOK))
		}
	}
	out.series = bothSeries
	return out
}
