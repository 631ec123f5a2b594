package frame

import (
	"errors"
	"math"
)

// ErrNotNumeric is returned by arithmetic on frames holding non-numeric cells.
var ErrNotNumeric = errors.New("frame: frame is not numeric")

// IsNumeric reports whether every present cell is a float64.
func (f *Frame) IsNumeric() bool {
	for _, col := range f.cells {
		for _, v := range col {
			if v == nil {
				continue
			}
			if _, ok := v.(float64); !ok {
				return false
			}
		}
	}
	return true
}

// Add sums f and other elementwise over the union of labels. Positions missing
// on either side are missing in the result.
func (f *Frame) Add(other *Frame) (*Frame, error) {
	return binary(f, other, math.NaN(), false, func(a, b float64) float64 { return a + b })
}

// Subtract computes f - other over the union of labels. A position missing on
// exactly one side uses fill for that side; missing on both stays missing.
func (f *Frame) Subtract(other *Frame, fill float64) (*Frame, error) {
	return binary(f, other, fill, true, func(a, b float64) float64 { return a - b })
}

// Sum adds frames left to right.
func Sum(frames []*Frame) (*Frame, error) {
	if len(frames) == 0 {
		return nil, ErrNoFrames
	}
	acc := frames[0].Copy()
	if !acc.IsNumeric() {
		return nil, ErrNotNumeric
	}
	for _, next := range frames[1:] {
		var err error
		if acc, err = acc.Add(next); err != nil {
			return nil, err
		}
	}
	return acc, nil
}

func binary(a, b *Frame, fill float64, useFill bool, op func(x, y float64) float64) (*Frame, error) {
	if !a.IsNumeric() || !b.IsNumeric() {
		return nil, ErrNotNumeric
	}
	left, right := Align(a, b)
	out := left.Copy()
	for c := range out.cells {
		for r := range out.cells[c] {
			x, y := toFloat(left.cells[c][r]), toFloat(right.cells[c][r])
			xm, ym := math.IsNaN(x), math.IsNaN(y)
			switch {
			case xm && ym:
				out.cells[c][r] = math.NaN()
				continue
			case useFill && xm:
				x = fill
			case useFill && ym:
				y = fill
			}
			out.cells[c][r] = op(x, y)
		}
	}
	out.series = a.series && b.series
	return out, nil
}

// Map applies fn to every cell.
func (f *Frame) Map(fn func(v any) any) *Frame {
	out := f.Copy()
	for c := range out.cells {
		for r, v := range out.cells[c] {
			out.cells[c][r] = normalizeCell(fn(v))
		}
	}
	return out
}

// Where replaces cells for which mask returns true with missing. Numeric
// frames get NaN, others nil.
func (f *Frame) Where(mask func(r, c int) bool) *Frame {
	numeric := f.IsNumeric()
	out := f.Copy()
	for c := range out.cells {
		for r := range out.cells[c] {
			if !mask(r, c) {
				continue
			}
			if numeric {
				out.cells[c][r] = math.NaN()
			} else {
				out.cells[c][r] = nil
			}
		}
	}
	return out
}

// MaskEqual returns f with every cell that equals the cell of other at the
// same labels replaced by missing.
func (f *Frame) MaskEqual(other *Frame) *Frame {
	ref := other
	if f.series && other.series {
		ref = other.relabelColumns(f.columns)
	}
	ref = ref.reindex(f.index, f.columns)
	return f.Where(func(r, c int) bool {
		v := f.cells[c][r]
		return !IsMissing(v) && CellsEqual(v, ref.cells[c][r])
	})
}
