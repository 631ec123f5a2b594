package datasets

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-datasets/flags"
	"github.com/goliatone/go-datasets/frame"
)

const overlapWarning = "linked datasets share flags, only the first match is used"

func TestLinkCollectionDispatchesToFirstAcceptingChild(t *testing.T) {
	logger, logs := observedLogger()
	a, aCalls := newLeaf(t, "a", map[flags.Flag]*frame.Frame{"x": frame.Floats("v", 1)})
	b, bCalls := newLeaf(t, "b", map[flags.Flag]*frame.Frame{"y": frame.Floats("v", 2)})

	link, err := NewLinkCollection([]Dataset{a, b}, WithName("network"), WithLogger(logger))
	require.NoError(t, err)
	assert.Zero(t, logs.FilterMessage(overlapWarning).Len())
	assert.Equal(t, []flags.Flag{"x", "y"}, link.AcceptedFlags().Slice())

	got, err := link.Fetch(context.Background(), "y")
	require.NoError(t, err)
	assert.Equal(t, []any{2.0}, got.Values())
	assert.Zero(t, aCalls.Calls())
	assert.Equal(t, 1, bCalls.Calls())

	_, err = link.Fetch(context.Background(), "z")
	require.ErrorIs(t, err, ErrUnacceptedFlag)
}

func TestLinkCollectionWarnsOnceForSharedFlags(t *testing.T) {
	logger, logs := observedLogger()
	a, _ := newLeaf(t, "a", map[flags.Flag]*frame.Frame{"x": frame.Floats("v", 1)})
	b, bCalls := newLeaf(t, "b", map[flags.Flag]*frame.Frame{
		"x": frame.Floats("v", 2),
		"y": frame.Floats("v", 3),
	})

	link, err := NewLinkCollection([]Dataset{a, b}, WithLogger(logger))
	require.NoError(t, err)

	warnings := logs.FilterMessage(overlapWarning)
	require.Equal(t, 1, warnings.Len())
	assert.Equal(t, []flags.Flag{"x"}, link.Overlaps().Slice())

	got, err := link.Fetch(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []any{1.0}, got.Values())
	assert.Zero(t, bCalls.Calls())
}

func TestLinkCollectionForwardsCallConfig(t *testing.T) {
	a, calls := newLeaf(t, "a", map[flags.Flag]*frame.Frame{"x": frame.Floats("v", 1)})
	link, err := NewLinkCollection([]Dataset{a})
	require.NoError(t, err)

	_, err = link.Fetch(context.Background(), "x",
		WithConfig(Config{AutoSortDatetimeIndex: Bool(false)}), WithExtra("region", "eu"))
	require.NoError(t, err)

	req := calls.Last()
	assert.False(t, req.Config.SortsTimeIndex())
	assert.Equal(t, "eu", req.Extras["region"])
}

func TestCollectionChildren(t *testing.T) {
	logger, logs := observedLogger()
	a, _ := newLeaf(t, "a", map[flags.Flag]*frame.Frame{"x": frame.Floats("v", 1)})
	b, _ := newLeaf(t, "b", map[flags.Flag]*frame.Frame{"x": frame.Floats("v", 1)})
	dup, _ := newLeaf(t, "a", map[flags.Flag]*frame.Frame{"y": frame.Floats("v", 1)})

	merge, err := NewMergeCollection([]Dataset{a, b, dup}, WithLogger(logger))
	require.NoError(t, err)
	assert.Equal(t, 2, merge.Len())
	assert.Equal(t, []string{"a", "b"}, merge.Names())
	assert.Equal(t, 1, logs.FilterMessage("dataset already in collection, ignoring").Len())

	first, err := merge.Child("")
	require.NoError(t, err)
	assert.Equal(t, "a", first.Name())

	_, err = merge.Child("missing")
	require.ErrorIs(t, err, ErrDatasetNotFound)

	empty, err := NewMergeCollection(nil)
	require.NoError(t, err)
	_, err = empty.Child("")
	require.ErrorIs(t, err, ErrEmptyCollection)

	require.ErrorIs(t, merge.AddChild(nil), ErrChildType)
}

func TestCollectionAttributesAreSharedValues(t *testing.T) {
	a, _ := newLeaf(t, "a", map[flags.Flag]*frame.Frame{"x": frame.Floats("v", 1)},
		WithAttributes(map[string]any{"model": "pypsa", "year": 2030}))
	b, _ := newLeaf(t, "b", map[flags.Flag]*frame.Frame{"x": frame.Floats("v", 1)},
		WithAttributes(map[string]any{"model": "pypsa", "year": 2040}))

	merge, err := NewMergeCollection([]Dataset{a, b}, WithAttributes(map[string]any{"study": "grid"}))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"model": "pypsa", "study": "grid"}, merge.Attributes())
}

func TestCollectionExposesSharedFlagIndex(t *testing.T) {
	index := flags.NewIndex(nil)
	a, _ := newLeaf(t, "a", map[flags.Flag]*frame.Frame{"x": frame.Floats("v", 1)}, WithFlagIndex(index))
	b, _ := newLeaf(t, "b", map[flags.Flag]*frame.Frame{"x": frame.Floats("v", 1)}, WithFlagIndex(index))
	c, _ := newLeaf(t, "c", map[flags.Flag]*frame.Frame{"x": frame.Floats("v", 1)})

	shared, err := NewLinkCollection([]Dataset{a, b})
	require.NoError(t, err)
	assert.Same(t, index, shared.FlagIndex())

	mixed, err := NewLinkCollection([]Dataset{a, c})
	require.NoError(t, err)
	assert.True(t, mixed.FlagIndex().IsEmpty())
}

func TestMergeCollectionKeepFirst(t *testing.T) {
	a, _ := newLeaf(t, "a", map[flags.Flag]*frame.Frame{"x": series(t, []any{"n1", "n2"}, 1.0, nil)})
	b, _ := newLeaf(t, "b", map[flags.Flag]*frame.Frame{"x": series(t, []any{"n1", "n2", "n3"}, 10.0, 20.0, 30.0)})
	ctx := context.Background()

	first, err := NewMergeCollection([]Dataset{a, b})
	require.NoError(t, err)
	got, err := first.Fetch(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, []any{1.0, 20.0, 30.0}, got.Values())

	last, err := NewMergeCollection([]Dataset{a, b}, WithKeepFirst(false))
	require.NoError(t, err)
	got, err = last.Fetch(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, []any{10.0, 20.0, 30.0}, got.Values())

	link, err := NewLinkCollection([]Dataset{a, b})
	require.NoError(t, err)
	got, err = link.FetchMerged(ctx, "x", true)
	require.NoError(t, err)
	assert.Equal(t, []any{1.0, 20.0, 30.0}, got.Values())
}

func table(t *testing.T, rows frame.Index, column string, values ...float64) *frame.Frame {
	t.Helper()
	cells := make([][]any, len(values))
	for i, v := range values {
		cells[i] = []any{v}
	}
	f, err := frame.New(rows, frame.Simple("column", column), cells)
	require.NoError(t, err)
	return f
}

func lookup(t *testing.T, f *frame.Frame, row any, column string) any {
	t.Helper()
	v, ok := f.Lookup(frame.L(row), frame.L(column))
	require.True(t, ok, "no cell at %v/%s", row, column)
	return v
}

func TestMergeCollectionJoinsDisjointColumns(t *testing.T) {
	rows := frame.Simple("node", "n1", "n2")
	a, _ := newLeaf(t, "a", map[flags.Flag]*frame.Frame{"x": table(t, rows, "p", 1, 2)})
	b, _ := newLeaf(t, "b", map[flags.Flag]*frame.Frame{"x": table(t, rows, "q", 10, 20)})

	for _, keepFirst := range []bool{true, false} {
		merged, err := NewMergeCollection([]Dataset{a, b}, WithKeepFirst(keepFirst))
		require.NoError(t, err)
		got, err := merged.Fetch(context.Background(), "x")
		require.NoError(t, err)

		assert.Equal(t, 2, got.Len())
		assert.Equal(t, 2, got.Width())
		assert.Equal(t, 1.0, lookup(t, got, "n1", "p"))
		assert.Equal(t, 20.0, lookup(t, got, "n2", "q"))
	}
}

func TestMergeCollectionStacksDisjointRows(t *testing.T) {
	a, _ := newLeaf(t, "a", map[flags.Flag]*frame.Frame{"x": table(t, frame.Simple("node", "n1", "n2"), "p", 1, 2)})
	b, _ := newLeaf(t, "b", map[flags.Flag]*frame.Frame{"x": table(t, frame.Simple("node", "n3"), "p", 30)})

	for _, keepFirst := range []bool{true, false} {
		merged, err := NewMergeCollection([]Dataset{a, b}, WithKeepFirst(keepFirst))
		require.NoError(t, err)
		got, err := merged.Fetch(context.Background(), "x")
		require.NoError(t, err)

		assert.Equal(t, 3, got.Len())
		assert.Equal(t, 1, got.Width())
		assert.Equal(t, []any{1.0, 2.0, 30.0}, got.Column(0))
	}
}

func threeTables(t *testing.T, opts ...Option) []Dataset {
	t.Helper()
	var out []Dataset
	for i, name := range []string{"a", "b", "c"} {
		rows := make([][]any, 5)
		for r := range rows {
			rows[r] = []any{float64(10*i + r)}
		}
		table, err := frame.New(frame.Range(5), frame.Simple("column", "p"), rows)
		require.NoError(t, err)
		ds, _ := newLeaf(t, name, map[flags.Flag]*frame.Frame{"x": table}, opts...)
		out = append(out, ds)
	}
	return out
}

func TestConcatCollectionLabelsChildren(t *testing.T) {
	concat, err := NewConcatCollection(threeTables(t))
	require.NoError(t, err)
	ctx := context.Background()

	got, err := concat.Fetch(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, 5, got.Len())
	assert.Equal(t, []string{DefaultConcatLevel, "column"}, got.Columns().Names())
	assert.Equal(t, []frame.Label{frame.L("a", "p"), frame.L("b", "p"), frame.L("c", "p")}, got.Columns().Labels())

	rows, err := concat.Fetch(ctx, "x", WithConcatAxis(0))
	require.NoError(t, err)
	assert.Equal(t, 15, rows.Len())
	assert.Equal(t, "b", rows.Index().Label(5)[0])
}

func TestConcatCollectionLevelPlacement(t *testing.T) {
	concat, err := NewConcatCollection(threeTables(t), WithConcatLevelName("scenario"), WithConcatTop(false))
	require.NoError(t, err)

	got, err := concat.Fetch(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []string{"column", "scenario"}, got.Columns().Names())
	assert.Equal(t, frame.L("p", "a"), got.Columns().Label(0))

	transposed, err := NewConcatCollection(threeTables(t), WithTranspose(true))
	require.NoError(t, err)
	got, err = transposed.Fetch(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, 3, got.Len())
	assert.Equal(t, 5, got.Width())
}

func TestConcatCollectionSkipsChildren(t *testing.T) {
	children := threeTables(t)
	require.NoError(t, children[1].(*Base).SetAttribute("year", 2040))

	byExpr, err := NewConcatCollection(children, WithSkipExpr(`name == "a" || year == 2040`))
	require.NoError(t, err)
	got, err := byExpr.Fetch(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []frame.Label{frame.L("c", "p")}, got.Columns().Labels())

	byFunc, err := NewConcatCollection(children, WithSkip(func(ds Dataset) bool { return ds.Name() == "c" }))
	require.NoError(t, err)
	got, err = byFunc.Fetch(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Width())

	_, err = NewConcatCollection(children, WithSkipExpr("name =="))
	require.Error(t, err)
}

func TestConcatCollectionRejectsIncompatibleAxes(t *testing.T) {
	table, _ := newLeaf(t, "table", map[flags.Flag]*frame.Frame{"x": threeTablesFrame(t)})
	line, _ := newLeaf(t, "line", map[flags.Flag]*frame.Frame{"x": frame.Floats("v", 1, 2)})

	concat, err := NewConcatCollection([]Dataset{table, line})
	require.NoError(t, err)
	_, err = concat.Fetch(context.Background(), "x")
	require.ErrorIs(t, err, ErrNotImplemented)

	_, err = NewConcatCollection(nil, WithDefaultConcatAxis(2))
	require.Error(t, err)
}

func threeTablesFrame(t *testing.T) *frame.Frame {
	t.Helper()
	f, err := frame.New(frame.Range(1), frame.Simple("column", "p"), [][]any{{1.0}})
	require.NoError(t, err)
	return f
}

func TestConcatCollectionAttributesFrame(t *testing.T) {
	a, _ := newLeaf(t, "a", map[flags.Flag]*frame.Frame{"x": frame.Floats("v", 1)},
		WithAttributes(map[string]any{"year": 2030, "model": "m"}))
	b, _ := newLeaf(t, "b", map[flags.Flag]*frame.Frame{"x": frame.Floats("v", 1)},
		WithAttributes(map[string]any{"year": 2040}))

	concat, err := NewConcatCollection([]Dataset{a, b})
	require.NoError(t, err)
	attrs, err := concat.AttributesFrame()
	require.NoError(t, err)

	assert.Equal(t, []frame.Label{frame.L("a"), frame.L("b")}, attrs.Index().Labels())
	assert.Equal(t, []frame.Label{frame.L("model"), frame.L("year")}, attrs.Columns().Labels())
	assert.Equal(t, []any{"m", nil}, attrs.Column(0))
	assert.Equal(t, []any{2030.0, 2040.0}, attrs.Column(1))
}

func TestSumCollectionAddsChildren(t *testing.T) {
	var children []Dataset
	for _, name := range []string{"a", "b", "c"} {
		ds, _ := newLeaf(t, name, map[flags.Flag]*frame.Frame{"x": frame.Floats("v", 1, 2, 3)})
		children = append(children, ds)
	}
	sum, err := NewSumCollection(children)
	require.NoError(t, err)

	got, err := sum.Fetch(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []any{3.0, 6.0, 9.0}, got.Values())
}

func TestSumCollectionRejectsNonNumeric(t *testing.T) {
	a, _ := newLeaf(t, "a", map[flags.Flag]*frame.Frame{"x": frame.Floats("v", 1)})
	b, _ := newLeaf(t, "b", map[flags.Flag]*frame.Frame{"x": series(t, []any{0}, "on")})

	sum, err := NewSumCollection([]Dataset{a, b})
	require.NoError(t, err)
	_, err = sum.Fetch(context.Background(), "x")
	require.ErrorIs(t, err, ErrNotImplemented)
	require.ErrorIs(t, err, frame.ErrNotNumeric)
}

func TestCollectionLookupErrorWhenNothingAccepts(t *testing.T) {
	a, _ := newLeaf(t, "a", map[flags.Flag]*frame.Frame{"x": frame.Floats("v", 1)})
	concat, err := NewConcatCollection([]Dataset{a}, WithSkip(func(Dataset) bool { return true }))
	require.NoError(t, err)

	_, err = concat.Fetch(context.Background(), "x")
	require.ErrorIs(t, err, ErrFlagNotFound)
}
