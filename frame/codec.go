package frame

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"time"
)

const (
	cellNil uint8 = iota
	cellFloat
	cellInt
	cellString
	cellBool
	cellTime
)

type wireCell struct {
	Kind uint8
	F    float64
	I    int64
	S    string
	B    bool
	T    time.Time
}

type wireIndex struct {
	Names  []string
	Labels [][]wireCell
}

type wireFrame struct {
	Index   wireIndex
	Columns wireIndex
	Cells   [][]wireCell
	Series  bool
}

// MarshalBinary encodes the frame with encoding/gob. Cells of types other than
// float64, int64, string, bool and time.Time are stored as their text form.
func (f *Frame) MarshalBinary() ([]byte, error) {
	w := wireFrame{
		Index:   toWireIndex(f.index),
		Columns: toWireIndex(f.columns),
		Cells:   make([][]wireCell, len(f.cells)),
		Series:  f.series,
	}
	for c, col := range f.cells {
		w.Cells[c] = make([]wireCell, len(col))
		for r, v := range col {
			w.Cells[c][r] = toWireCell(v)
		}
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(w); err != nil {
		return nil, fmt.Errorf("frame: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes a payload produced by MarshalBinary.
func (f *Frame) UnmarshalBinary(data []byte) error {
	var w wireFrame
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&w); err != nil {
		return fmt.Errorf("frame: decode: %w", err)
	}
	f.index = fromWireIndex(w.Index)
	f.columns = fromWireIndex(w.Columns)
	f.series = w.Series
	f.cells = make([][]any, len(w.Cells))
	for c, col := range w.Cells {
		f.cells[c] = make([]any, len(col))
		for r, cell := range col {
			f.cells[c][r] = fromWireCell(cell)
		}
	}
	if len(f.cells) != f.columns.Len() {
		return fmt.Errorf("frame: decode: %d columns for %d column labels", len(f.cells), f.columns.Len())
	}
	return nil
}

// Decode is a convenience wrapper around UnmarshalBinary.
func Decode(data []byte) (*Frame, error) {
	f := &Frame{}
	if err := f.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return f, nil
}

func toWireIndex(ix Index) wireIndex {
	w := wireIndex{Names: append([]string(nil), ix.names...), Labels: make([][]wireCell, len(ix.labels))}
	for i, l := range ix.labels {
		w.Labels[i] = make([]wireCell, len(l))
		for j, v := range l {
			w.Labels[i][j] = toWireCell(v)
		}
	}
	return w
}

func fromWireIndex(w wireIndex) Index {
	ix := Index{names: w.Names, labels: make([]Label, len(w.Labels))}
	if ix.names == nil {
		ix.names = []string{}
	}
	for i, l := range w.Labels {
		ix.labels[i] = make(Label, len(l))
		for j, cell := range l {
			ix.labels[i][j] = fromWireCell(cell)
		}
	}
	return ix
}

func toWireCell(v any) wireCell {
	switch x := v.(type) {
	case nil:
		return wireCell{Kind: cellNil}
	case float64:
		return wireCell{Kind: cellFloat, F: x}
	case int64:
		return wireCell{Kind: cellInt, I: x}
	case string:
		return wireCell{Kind: cellString, S: x}
	case bool:
		return wireCell{Kind: cellBool, B: x}
	case time.Time:
		return wireCell{Kind: cellTime, T: x}
	default:
		return wireCell{Kind: cellString, S: fmt.Sprint(v)}
	}
}

func fromWireCell(c wireCell) any {
	switch c.Kind {
	case cellFloat:
		return c.F
	case cellInt:
		return c.I
	case cellString:
		return c.S
	case cellBool:
		return c.B
	case cellTime:
		return c.T
	default:
		return nil
	}
}
