package frame

import (
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustFrame(t *testing.T, index, columns Index, rows [][]any) *Frame {
	t.Helper()
	f, err := New(index, columns, rows)
	require.NoError(t, err)
	return f
}

func TestNewRejectsRaggedRows(t *testing.T) {
	_, err := New(Simple("r", "a", "b"), Simple("c", "x"), [][]any{{1}})
	require.Error(t, err)

	_, err = New(Simple("r", "a"), Simple("c", "x", "y"), [][]any{{1}})
	require.Error(t, err)
}

func TestNormalizesNumericCellsAndLabels(t *testing.T) {
	f := mustFrame(t, Simple("r", 1, 2), Simple("c", "x"), [][]any{{int32(4)}, {float32(1.5)}})

	assert.Equal(t, 4.0, f.At(0, 0))
	assert.Equal(t, 1.5, f.At(1, 0))

	v, ok := f.Lookup(L(2), L("x"))
	require.True(t, ok)
	assert.Equal(t, 1.5, v)

	// integral floats address integer labels
	v, ok = f.Lookup(L(1.0), L("x"))
	require.True(t, ok)
	assert.Equal(t, 4.0, v)
}

func TestCopyIsIndependent(t *testing.T) {
	f := Floats("s", 1, 2, 3)
	c := f.Copy()
	c.Set(0, 0, 100)

	assert.Equal(t, 1.0, f.At(0, 0))
	assert.True(t, c.IsSeries())
	assert.Equal(t, "s", c.Name())
}

func TestEqualTreatsMissingAsEqual(t *testing.T) {
	a := Floats("s", 1, math.NaN())
	b, err := NewSeries(Range(2), "s", []any{1, nil})
	require.NoError(t, err)

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(Floats("s", 1, 2)))
}

func TestDropDuplicateIndexKeepsFirst(t *testing.T) {
	f := mustFrame(t, Simple("r", "a", "b", "a"), Simple("c", "x"), [][]any{{1}, {2}, {3}})

	assert.True(t, f.HasDuplicateIndex())
	assert.Equal(t, []Label{{"a"}}, f.DuplicateLabels())

	out, dropped := f.DropDuplicateIndex()
	assert.Equal(t, 1, dropped)
	assert.False(t, out.HasDuplicateIndex())
	assert.Equal(t, []any{1.0, 2.0}, out.Values())
}

func TestSortIndexOrdersTimestamps(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	idx := Times("time", t0.Add(2*time.Hour), t0, t0.Add(time.Hour))
	f, err := NewSeries(idx, "load", []any{3, 1, 2})
	require.NoError(t, err)

	require.True(t, f.IsTimeIndexed())
	sorted := f.SortIndex()
	assert.Equal(t, []any{1.0, 2.0, 3.0}, sorted.Values())
	assert.Equal(t, t0, sorted.Index().Label(0)[0])
}

func TestAddUsesUnionAndMissing(t *testing.T) {
	a, err := NewSeries(Simple("", "x", "y"), "v", []any{1, 2})
	require.NoError(t, err)
	b, err := NewSeries(Simple("", "y", "z"), "w", []any{10, 20})
	require.NoError(t, err)

	sum, err := a.Add(b)
	require.NoError(t, err)

	assert.True(t, sum.IsSeries())
	assert.Equal(t, "v", sum.Name())
	assert.Equal(t, 3, sum.Len())
	assert.True(t, IsMissing(sum.At(0, 0)))
	assert.Equal(t, 12.0, sum.At(1, 0))
	assert.True(t, IsMissing(sum.At(2, 0)))
}

func TestSubtractFillsOneSidedGaps(t *testing.T) {
	a, err := NewSeries(Simple("", "x", "y"), "v", []any{5, nil})
	require.NoError(t, err)
	b, err := NewSeries(Simple("", "x", "z"), "v", []any{2, 4})
	require.NoError(t, err)

	d, err := a.Subtract(b, 0)
	require.NoError(t, err)

	assert.Equal(t, 3.0, d.At(0, 0))
	// missing on the left only, and absent on the right
	assert.True(t, IsMissing(d.At(1, 0)))
	assert.Equal(t, -4.0, d.At(2, 0))
}

func TestSumRejectsNonNumeric(t *testing.T) {
	s, err := NewSeries(Range(1), "s", []any{"text"})
	require.NoError(t, err)

	_, err = Sum([]*Frame{s, s})
	assert.ErrorIs(t, err, ErrNotNumeric)

	total, err := Sum([]*Frame{Floats("a", 1, 2, 3), Floats("a", 1, 2, 3), Floats("a", 1, 2, 3)})
	require.NoError(t, err)
	assert.Equal(t, []any{3.0, 6.0, 9.0}, total.Values())
}

func TestCombineKeepFirst(t *testing.T) {
	a := mustFrame(t, Simple("r", 0, 1), Simple("c", "p"), [][]any{{1}, {nil}})
	b := mustFrame(t, Simple("r", 1, 2), Simple("c", "p", "q"), [][]any{{7, 8}, {9, 10}})

	out, err := Combine([]*Frame{a, b}, true)
	require.NoError(t, err)

	assert.Equal(t, 3, out.Len())
	assert.Equal(t, 2, out.Width())
	assert.Equal(t, []any{1.0, 7.0, 9.0}, out.Column(0))
	assert.True(t, IsMissing(out.At(0, 1)))
	assert.Equal(t, 10.0, out.At(2, 1))
}

func TestConcatColumnsOfSeries(t *testing.T) {
	a := Floats("v", 1, 2)
	b := Floats("v", 3, 4, 5)

	out, err := Concat([]string{"a", "b"}, []*Frame{a, b}, 1, "dataset")
	require.NoError(t, err)

	assert.False(t, out.IsSeries())
	assert.Equal(t, []string{"dataset"}, out.Columns().Names())
	assert.Equal(t, []Label{{"a"}, {"b"}}, out.Columns().Labels())
	assert.Equal(t, 3, out.Len())
	assert.True(t, IsMissing(out.At(2, 0)))
	assert.Equal(t, 5.0, out.At(2, 1))
}

func TestConcatRowsPrefixesKeys(t *testing.T) {
	a := mustFrame(t, Simple("r", "x"), Simple("c", "p"), [][]any{{1}})
	b := mustFrame(t, Simple("r", "x"), Simple("c", "q"), [][]any{{2}})

	out, err := Concat([]string{"a", "b"}, []*Frame{a, b}, 0, "dataset")
	require.NoError(t, err)

	assert.Equal(t, []string{"dataset", "r"}, out.Index().Names())
	assert.Equal(t, []Label{{"a", "x"}, {"b", "x"}}, out.Index().Labels())
	assert.Equal(t, 2, out.Width())

	moved := out.MoveLevelToEnd(0)
	assert.Equal(t, []string{"r", "dataset"}, moved.Index().Names())
	assert.Equal(t, Label{"x", "a"}, moved.Index().Label(0))
}

func TestCompatibleAxes(t *testing.T) {
	a := mustFrame(t, Simple("r", "x"), Simple("c", "p"), [][]any{{1}})
	b := mustFrame(t, Simple("other", "x"), Simple("c", "p"), [][]any{{1}})

	assert.NoError(t, CompatibleAxes([]*Frame{a, a.Copy()}))
	assert.Error(t, CompatibleAxes([]*Frame{a, b}))
	assert.Error(t, CompatibleAxes([]*Frame{a, Floats("s", 1)}))
}

func TestInterleaveGroupsRowsByLabel(t *testing.T) {
	a := Floats("v", 1, 2)
	b := Floats("v", 10, 20)

	out, err := Interleave([]string{"delta", "variation"}, []*Frame{a, b}, "comparison")
	require.NoError(t, err)

	got := out.Index().Labels()
	want := []Label{{int64(0), "delta"}, {int64(0), "variation"}, {int64(1), "delta"}, {int64(1), "variation"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("interleaved labels mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []any{1.0, 10.0, 2.0, 20.0}, out.Values())
}

func TestTranspose(t *testing.T) {
	f := mustFrame(t, Simple("r", "a", "b"), Simple("c", "x"), [][]any{{1}, {2}})
	tr := f.Transpose()

	assert.Equal(t, 1, tr.Len())
	assert.Equal(t, 2, tr.Width())
	assert.Equal(t, 2.0, tr.At(0, 1))
}

func TestFilterAndGroupColumns(t *testing.T) {
	f := mustFrame(t,
		Simple("time", 0, 1),
		NewIndex([]string{"unit"}, L("g1"), L("g2"), L("g3")),
		[][]any{{1, 2, 4}, {10, 20, 40}},
	)
	carrier := map[string]string{"g1": "wind", "g2": "wind", "g3": "solar"}

	filtered, err := f.FilterRows(func(_ int, rec map[string]any) (bool, error) {
		return rec["time"].(int64) == 1, nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, filtered.Len())

	grouped, err := filtered.GroupColumns("carrier", func(l Label) (any, bool) {
		c, ok := carrier[l[0].(string)]
		return c, ok
	}, AggSum)
	require.NoError(t, err)

	assert.Equal(t, []Label{{"wind"}, {"solar"}}, grouped.Columns().Labels())
	assert.Equal(t, 30.0, grouped.At(0, 0))
	assert.Equal(t, 40.0, grouped.At(0, 1))

	_, err = f.GroupColumns("carrier", func(Label) (any, bool) { return "x", true }, Aggregation("median"))
	assert.Error(t, err)
}

func TestSelectColumns(t *testing.T) {
	f := mustFrame(t, Simple("r", 0), Simple("c", "a", "b", "c"), [][]any{{1, 2, 3}})
	out := f.SelectColumns([]Label{L("c"), L("a")})

	assert.Equal(t, []Label{{"a"}, {"c"}}, out.Columns().Labels())
}

func TestBinaryCodecRoundTrip(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	f := mustFrame(t,
		Times("time", t0, t0.Add(time.Hour)),
		NewIndex([]string{"component", "attr"}, L("Generator", "p"), L("Bus", "name")),
		[][]any{{1.5, "north"}, {math.NaN(), nil}},
	)

	data, err := f.MarshalBinary()
	require.NoError(t, err)
	back, err := Decode(data)
	require.NoError(t, err)

	assert.True(t, f.Equal(back))
	assert.True(t, back.IsTimeIndexed())
}

func TestMaskEqual(t *testing.T) {
	v := Floats("v", 1, 2, 3)
	r := Floats("r", 1, 5, 3)

	out := v.MaskEqual(r)
	assert.True(t, IsMissing(out.At(0, 0)))
	assert.Equal(t, 2.0, out.At(1, 0))
	assert.True(t, IsMissing(out.At(2, 0)))
	assert.Equal(t, "v", out.Name())
}

func TestCellwiseReportsPresence(t *testing.T) {
	a, err := NewSeries(Simple("", "x", "y"), "v", []any{"on", "off"})
	require.NoError(t, err)
	b, err := NewSeries(Simple("", "y", "z"), "v", []any{"on", "on"})
	require.NoError(t, err)

	out := Cellwise(a, b, func(va, vb any, inA, inB bool) any {
		switch {
		case inA && inB:
			return "both"
		case inA:
			return "a"
		default:
			return "b"
		}
	})
	assert.Equal(t, []any{"a", "both", "b"}, out.Values())
}

func TestReduceAggregatesColumns(t *testing.T) {
	f := mustFrame(t, Range(3), Simple("node", "n1", "n2"), [][]any{
		{1.0, nil},
		{3.0, 4.0},
		{5.0, 6.0},
	})

	sum, err := f.Reduce(AggSum)
	require.NoError(t, err)
	assert.Equal(t, []any{9.0, 10.0}, sum)

	mean, err := f.Reduce(AggMean)
	require.NoError(t, err)
	assert.Equal(t, []any{3.0, 5.0}, mean)

	count, err := f.Reduce(AggCount)
	require.NoError(t, err)
	assert.Equal(t, []any{3.0, 2.0}, count)

	_, err = f.Reduce("median")
	require.Error(t, err)
}
