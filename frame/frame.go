// Package frame provides the labeled tabular value exchanged by datasets.
//
// A Frame has a row index and a column index, each made of labels that may
// span several named levels. Cells are stored column-major. Numeric cells are
// float64; nil and NaN both mark a missing value. A series is a frame with a
// single column that reports one axis.
package frame

import (
	"fmt"
	"math"
	"time"
)

// Frame is an immutable-by-convention table. Mutating helpers return new frames
// except Set, which edits in place and exists for tests and builders.
type Frame struct {
	index   Index
	columns Index
	cells   [][]any
	series  bool
}

// New builds a two-axis frame from row-major values.
func New(index, columns Index, rows [][]any) (*Frame, error) {
	if len(rows) != index.Len() {
		return nil, fmt.Errorf("frame: %d rows for an index of %d labels", len(rows), index.Len())
	}
	cells := make([][]any, columns.Len())
	for c := range cells {
		cells[c] = make([]any, index.Len())
	}
	for r, row := range rows {
		if len(row) != columns.Len() {
			return nil, fmt.Errorf("frame: row %d has %d values for %d columns", r, len(row), columns.Len())
		}
		for c, v := range row {
			cells[c][r] = normalizeCell(v)
		}
	}
	return &Frame{index: index.clone(), columns: columns.clone(), cells: cells}, nil
}

// NewSeries builds a one-axis frame.
func NewSeries(index Index, name string, values []any) (*Frame, error) {
	if len(values) != index.Len() {
		return nil, fmt.Errorf("frame: %d values for an index of %d labels", len(values), index.Len())
	}
	col := make([]any, len(values))
	for i, v := range values {
		col[i] = normalizeCell(v)
	}
	return &Frame{
		index:   index.clone(),
		columns: Simple("", name),
		cells:   [][]any{col},
		series:  true,
	}, nil
}

// Floats builds a numeric series over a range index.
func Floats(name string, values ...float64) *Frame {
	cells := make([]any, len(values))
	for i, v := range values {
		cells[i] = v
	}
	f, _ := NewSeries(Range(len(values)), name, cells)
	return f
}

// Empty returns a frame with no rows and no columns.
func Empty() *Frame {
	return &Frame{index: NewIndex([]string{""}), columns: NewIndex([]string{""})}
}

func emptyLike(index, columns Index, series bool) *Frame {
	cells := make([][]any, columns.Len())
	for c := range cells {
		cells[c] = make([]any, index.Len())
	}
	return &Frame{index: index, columns: columns, cells: cells, series: series}
}

// Index returns the row index.
func (f *Frame) Index() Index { return f.index.clone() }

// Columns returns the column index.
func (f *Frame) Columns() Index { return f.columns.clone() }

// Len returns the number of rows.
func (f *Frame) Len() int { return f.index.Len() }

// Width returns the number of columns.
func (f *Frame) Width() int { return f.columns.Len() }

// IsSeries reports whether the frame has a single axis.
func (f *Frame) IsSeries() bool { return f.series }

// Name returns the series name, empty for two-axis frames.
func (f *Frame) Name() string {
	if !f.series || f.columns.Len() == 0 {
		return ""
	}
	return fmt.Sprint(f.columns.labels[0][0])
}

// NumAxes returns 1 for series and 2 otherwise.
func (f *Frame) NumAxes() int {
	if f.series {
		return 1
	}
	return 2
}

// Axis returns the index of axis 0 (rows) or 1 (columns).
func (f *Frame) Axis(axis int) Index {
	if axis == 1 {
		return f.Columns()
	}
	return f.Index()
}

// At returns the cell at row r and column c.
func (f *Frame) At(r, c int) any { return f.cells[c][r] }

// Float returns the cell as float64, NaN when missing or non-numeric.
func (f *Frame) Float(r, c int) float64 { return toFloat(f.cells[c][r]) }

// Set replaces the cell at row r and column c in place.
func (f *Frame) Set(r, c int, v any) { f.cells[c][r] = normalizeCell(v) }

// Lookup returns the cell addressed by row and column labels.
func (f *Frame) Lookup(row, col Label) (any, bool) {
	r, ok := f.index.Position(row)
	if !ok {
		return nil, false
	}
	c, ok := f.columns.Position(col)
	if !ok {
		return nil, false
	}
	return f.cells[c][r], true
}

// Values returns the series cells, or the first column of a frame.
func (f *Frame) Values() []any {
	if len(f.cells) == 0 {
		return nil
	}
	return append([]any(nil), f.cells[0]...)
}

// Column returns a copy of column c.
func (f *Frame) Column(c int) []any { return append([]any(nil), f.cells[c]...) }

// Copy returns a deep copy sharing no storage with f.
func (f *Frame) Copy() *Frame {
	if f == nil {
		return nil
	}
	out := &Frame{index: f.index.clone(), columns: f.columns.clone(), series: f.series}
	out.cells = make([][]any, len(f.cells))
	for c, col := range f.cells {
		out.cells[c] = append([]any(nil), col...)
	}
	return out
}

// Equal compares shape, labels and cells. Missing values compare equal.
func (f *Frame) Equal(other *Frame) bool {
	if f == nil || other == nil {
		return f == other
	}
	if f.series != other.series || !f.index.equal(other.index) || !f.columns.equal(other.columns) {
		return false
	}
	for c := range f.cells {
		for r := range f.cells[c] {
			if !CellsEqual(f.cells[c][r], other.cells[c][r]) {
				return false
			}
		}
	}
	return true
}

// IsMissing reports whether v is nil or NaN.
func IsMissing(v any) bool {
	if v == nil {
		return true
	}
	if x, ok := v.(float64); ok {
		return math.IsNaN(x)
	}
	return false
}

// CellsEqual compares two cells by value, treating two missing values as equal
// and falling back to their textual form for other types.
func CellsEqual(a, b any) bool {
	if IsMissing(a) || IsMissing(b) {
		return IsMissing(a) && IsMissing(b)
	}
	switch x := a.(type) {
	case float64:
		y, ok := b.(float64)
		return ok && x == y
	case time.Time:
		y, ok := b.(time.Time)
		return ok && x.Equal(y)
	case string, bool:
		return a == b
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func normalizeCell(v any) any {
	switch x := v.(type) {
	case int:
		return float64(x)
	case int8:
		return float64(x)
	case int16:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case uint:
		return float64(x)
	case uint8:
		return float64(x)
	case uint16:
		return float64(x)
	case uint32:
		return float64(x)
	case uint64:
		return float64(x)
	case float32:
		return float64(x)
	default:
		return v
	}
}

func toFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case int64:
		return float64(x)
	default:
		return math.NaN()
	}
}
