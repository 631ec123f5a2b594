package frame

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Label is one row or column key. Multi-level indexes carry one value per level.
type Label []any

// L is shorthand for building a Label.
func L(values ...any) Label {
	return normalizeLabel(values)
}

func (l Label) String() string {
	if len(l) == 1 {
		return fmt.Sprint(l[0])
	}
	parts := make([]string, len(l))
	for i, v := range l {
		parts[i] = fmt.Sprint(v)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func (l Label) key() string {
	var b strings.Builder
	for i, v := range l {
		if i > 0 {
			b.WriteByte(0x1f)
		}
		b.WriteString(valueKey(v))
	}
	return b.String()
}

func (l Label) clone() Label {
	out := make(Label, len(l))
	copy(out, l)
	return out
}

// Index is an ordered sequence of labels sharing level names.
type Index struct {
	names  []string
	labels []Label
}

// NewIndex builds an index. A nil names slice yields unnamed levels.
func NewIndex(names []string, labels ...Label) Index {
	levels := len(names)
	if names == nil {
		levels = 1
		if len(labels) > 0 {
			levels = len(labels[0])
		}
		names = make([]string, levels)
	}
	ix := Index{names: append([]string(nil), names...), labels: make([]Label, len(labels))}
	for i, label := range labels {
		ix.labels[i] = normalizeLabel(label)
	}
	return ix
}

// Simple builds a single-level index from plain values.
func Simple(name string, values ...any) Index {
	labels := make([]Label, len(values))
	for i, v := range values {
		labels[i] = Label{v}
	}
	return NewIndex([]string{name}, labels...)
}

// Range builds a single-level integer index 0..n-1.
func Range(n int) Index {
	values := make([]any, n)
	for i := range values {
		values[i] = i
	}
	return Simple("", values...)
}

// Times builds a single-level index of timestamps.
func Times(name string, times ...time.Time) Index {
	values := make([]any, len(times))
	for i, t := range times {
		values[i] = t
	}
	return Simple(name, values...)
}

// Len returns the number of labels.
func (ix Index) Len() int { return len(ix.labels) }

// Levels returns the number of label levels.
func (ix Index) Levels() int { return len(ix.names) }

// Names returns a copy of the level names.
func (ix Index) Names() []string { return append([]string(nil), ix.names...) }

// Label returns a copy of the label at position i.
func (ix Index) Label(i int) Label { return ix.labels[i].clone() }

// Labels returns copies of every label.
func (ix Index) Labels() []Label {
	out := make([]Label, len(ix.labels))
	for i, l := range ix.labels {
		out[i] = l.clone()
	}
	return out
}

// Position returns the first position of label.
func (ix Index) Position(label Label) (int, bool) {
	key := normalizeLabel(label).key()
	for i, l := range ix.labels {
		if l.key() == key {
			return i, true
		}
	}
	return -1, false
}

// IsTime reports whether the index is single-level and made of timestamps.
func (ix Index) IsTime() bool {
	if ix.Levels() != 1 || len(ix.labels) == 0 {
		return false
	}
	for _, l := range ix.labels {
		if _, ok := l[0].(time.Time); !ok {
			return false
		}
	}
	return true
}

// NameSet returns the level names as a set.
func (ix Index) NameSet() map[string]struct{} {
	set := make(map[string]struct{}, len(ix.names))
	for _, n := range ix.names {
		set[n] = struct{}{}
	}
	return set
}

func (ix Index) clone() Index {
	return Index{names: append([]string(nil), ix.names...), labels: ix.Labels()}
}

func (ix Index) lookup() map[string]int {
	m := make(map[string]int, len(ix.labels))
	for i, l := range ix.labels {
		k := l.key()
		if _, ok := m[k]; !ok {
			m[k] = i
		}
	}
	return m
}

func (ix Index) equal(other Index) bool {
	if len(ix.labels) != len(other.labels) || len(ix.names) != len(other.names) {
		return false
	}
	for i := range ix.names {
		if ix.names[i] != other.names[i] {
			return false
		}
	}
	for i := range ix.labels {
		if ix.labels[i].key() != other.labels[i].key() {
			return false
		}
	}
	return true
}

// union keeps a's order and appends labels of b that a lacks.
func union(a, b Index) Index {
	out := a.clone()
	seen := a.lookup()
	for _, l := range b.labels {
		k := l.key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = len(out.labels)
		out.labels = append(out.labels, l.clone())
	}
	return out
}

func overlaps(a, b Index) bool {
	seen := a.lookup()
	for _, l := range b.labels {
		if _, ok := seen[l.key()]; ok {
			return true
		}
	}
	return false
}

func normalizeLabel(values []any) Label {
	out := make(Label, len(values))
	for i, v := range values {
		out[i] = normalizeLabelValue(v)
	}
	return out
}

func normalizeLabelValue(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		return int64(x)
	case float32:
		return float64(x)
	default:
		return v
	}
}

func valueKey(v any) string {
	switch x := v.(type) {
	case nil:
		return "n:"
	case bool:
		return "b:" + strconv.FormatBool(x)
	case int64:
		return "i:" + strconv.FormatInt(x, 10)
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			return "i:" + strconv.FormatInt(int64(x), 10)
		}
		return "f:" + strconv.FormatFloat(x, 'g', -1, 64)
	case time.Time:
		return "t:" + x.UTC().Format(time.RFC3339Nano)
	case string:
		return "s:" + x
	default:
		return fmt.Sprintf("o:%T:%v", v, v)
	}
}

func typeRank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case int64, float64:
		return 2
	case time.Time:
		return 3
	case string:
		return 4
	default:
		return 5
	}
}

// compareValues orders label values; mixed types order by type rank.
func compareValues(a, b any) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		return ra - rb
	}
	switch x := a.(type) {
	case bool:
		y := b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		default:
			return 1
		}
	case int64, float64:
		fa, fb := toFloat(a), toFloat(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	case time.Time:
		return x.Compare(b.(time.Time))
	case string:
		return strings.Compare(x, b.(string))
	case nil:
		return 0
	default:
		return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
	}
}

func compareLabels(a, b Label) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := compareValues(a[i], b[i]); c != 0 {
			return c
		}
	}
	return len(a) - len(b)
}
