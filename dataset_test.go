package datasets

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-datasets/flags"
	"github.com/goliatone/go-datasets/frame"
	"github.com/goliatone/go-datasets/pkg/activity"
)

func TestFetchRejectsUnacceptedFlag(t *testing.T) {
	ds, calls := newLeaf(t, "base", map[flags.Flag]*frame.Frame{"a": frame.Floats("v", 1)})

	_, err := ds.Fetch(context.Background(), "b")
	require.ErrorIs(t, err, ErrUnacceptedFlag)

	var unaccepted *UnacceptedFlagError
	require.ErrorAs(t, err, &unaccepted)
	assert.Equal(t, flags.Flag("b"), unaccepted.Flag)
	assert.Equal(t, "base", unaccepted.Dataset)
	assert.Zero(t, calls.Calls())

	assert.True(t, ds.FlagIsAccepted("a"))
	assert.False(t, ds.FlagIsAccepted("b"))
}

func TestFetchServesCacheOnSecondCall(t *testing.T) {
	cache := newMapCache()
	ds, calls := newLeaf(t, "base", map[flags.Flag]*frame.Frame{"a": frame.Floats("v", 1, 2)}, WithCache(cache))
	ctx := context.Background()

	first, err := ds.Fetch(ctx, "a")
	require.NoError(t, err)
	second, err := ds.Fetch(ctx, "a")
	require.NoError(t, err)

	assert.True(t, first.Equal(second))
	assert.Equal(t, 1, calls.Calls())
	assert.Equal(t, 1, cache.writes)
	assert.Equal(t, 1, cache.reads)

	_, err = ds.Fetch(ctx, "a", WithConfig(map[string]any{"use_cache": false}))
	require.NoError(t, err)
	assert.Equal(t, 2, calls.Calls())
	assert.Equal(t, 1, cache.writes)
}

func TestFetchKeysCacheByExtras(t *testing.T) {
	cache := newMapCache()
	ds, calls := newLeaf(t, "base", map[flags.Flag]*frame.Frame{"a": frame.Floats("v", 1)}, WithCache(cache))
	ctx := context.Background()

	_, err := ds.Fetch(ctx, "a")
	require.NoError(t, err)
	_, err = ds.Fetch(ctx, "a", WithExtra("region", "eu"))
	require.NoError(t, err)
	_, err = ds.Fetch(ctx, "a", WithExtra("region", "eu"))
	require.NoError(t, err)

	assert.Equal(t, 2, calls.Calls())
	assert.Len(t, cache.entries, 2)
	assert.Equal(t, "eu", calls.Last().Extras["region"])
}

func TestFetchCachesNonFiniteExtras(t *testing.T) {
	cache := newMapCache()
	ds, calls := newLeaf(t, "base", map[flags.Flag]*frame.Frame{"a": frame.Floats("v", 1)},
		WithCache(cache),
		WithInstanceConfig(Config{Extras: map[string]any{"threshold": math.NaN(), "cap": math.Inf(1)}}))
	ctx := context.Background()

	for range 3 {
		_, err := ds.Fetch(ctx, "a", WithExtra("scale", math.Inf(-1)))
		require.NoError(t, err)
	}

	assert.Equal(t, 1, calls.Calls())
	assert.Len(t, cache.entries, 1)
	assert.Equal(t, 2, cache.reads)
}

func TestFetchReturnsIsolatedCopies(t *testing.T) {
	cache := newMapCache()
	ds, _ := newLeaf(t, "base", map[flags.Flag]*frame.Frame{"a": frame.Floats("v", 1, 2)}, WithCache(cache))
	ctx := context.Background()

	got, err := ds.Fetch(ctx, "a")
	require.NoError(t, err)
	got.Set(0, 0, 99.0)

	again, err := ds.Fetch(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 1.0, again.At(0, 0))
}

func TestFetchPropagatesSourceErrors(t *testing.T) {
	boom := errors.New("boom")
	ds, err := New("Leaf", flags.NewSet("a"), SourceFunc(func(context.Context, Request) (*frame.Frame, error) {
		return nil, boom
	}))
	require.NoError(t, err)

	_, err = ds.Fetch(context.Background(), "a")
	assert.Same(t, boom, err)
}

func TestFetchDropsDuplicateIndexAndSortsTime(t *testing.T) {
	t1 := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	raw, err := frame.NewSeries(frame.Times("snapshot", t2, t1, t1), "v", []any{2.0, 1.0, 9.0})
	require.NoError(t, err)

	logger, logs := observedLogger()
	ds, _ := newLeaf(t, "base", map[flags.Flag]*frame.Frame{"a": raw}, WithLogger(logger))

	got, err := ds.Fetch(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, []any{1.0, 2.0}, got.Values())
	assert.Equal(t, 1, logs.FilterMessage("dropped duplicated index labels, keeping the first occurrence").Len())

	kept, err := ds.Fetch(context.Background(), "a", WithConfig(Config{
		RemoveDuplicateIndices: Bool(false),
		AutoSortDatetimeIndex:  Bool(false),
	}))
	require.NoError(t, err)
	assert.Equal(t, 3, kept.Len())
	assert.Equal(t, []any{2.0, 1.0, 9.0}, kept.Values())
}

func TestFetchEmitsActivity(t *testing.T) {
	capture := &activity.CaptureHook{}
	ds, _ := newLeaf(t, "base", map[flags.Flag]*frame.Frame{"a": frame.Floats("v", 1)},
		WithCache(newMapCache()), WithActivityHooks(activity.Hooks{capture}))
	ctx := context.Background()

	_, err := ds.Fetch(ctx, "a")
	require.NoError(t, err)
	_, err = ds.Fetch(ctx, "a")
	require.NoError(t, err)

	assert.Equal(t, []string{
		activity.VerbCacheWritten,
		activity.VerbFetched,
		activity.VerbCacheHit,
	}, capture.Verbs())
	assert.Equal(t, "base", capture.Events[0].ObjectID)
	assert.Equal(t, "a", capture.Events[0].Flag)
}

func TestActivityHookFailureDoesNotFailFetch(t *testing.T) {
	logger, logs := observedLogger()
	capture := &activity.CaptureHook{Err: errors.New("sink down")}
	ds, _ := newLeaf(t, "base", map[flags.Flag]*frame.Frame{"a": frame.Floats("v", 1)},
		WithLogger(logger), WithActivityHooks(activity.Hooks{capture}))

	_, err := ds.Fetch(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, 1, logs.FilterMessage("activity hook failed").Len())
}

func TestEffectiveConfigPrecedence(t *testing.T) {
	resolver := NewConfigResolver()
	resolver.SetClassConfig("Leaf", Config{
		AutoSortDatetimeIndex: Bool(false),
		Extras:                map[string]any{"region": "eu", "year": 2030},
	})
	ds, calls := newLeaf(t, "base", map[flags.Flag]*frame.Frame{"a": frame.Floats("v", 1)},
		WithConfigResolver(resolver),
		WithInstanceConfig(Config{UseCache: Bool(false), Extras: map[string]any{"year": 2040}}),
	)

	_, err := ds.Fetch(context.Background(), "a", WithConfig(map[string]any{
		"remove_duplicate_indices": false,
		"scenario":                 "high",
	}))
	require.NoError(t, err)

	cfg := calls.Last().Config
	assert.False(t, cfg.CacheEnabled())
	assert.False(t, cfg.SortsTimeIndex())
	assert.False(t, cfg.DropsDuplicateIndex())
	assert.Equal(t, "eu", cfg.Extras["region"])
	assert.Equal(t, 2040, cfg.Extras["year"])
	assert.Equal(t, "high", cfg.Extras["scenario"])

	plain, err := ds.EffectiveConfig(nil)
	require.NoError(t, err)
	assert.True(t, plain.DropsDuplicateIndex())
	_, hasScenario := plain.Extra("scenario")
	assert.False(t, hasScenario)
}

func TestExplainConfigReportsWinningScope(t *testing.T) {
	resolver := NewConfigResolver()
	resolver.SetClassConfig("Leaf", Config{AutoSortDatetimeIndex: Bool(false)})
	ds, _ := newLeaf(t, "base", map[flags.Flag]*frame.Frame{"a": frame.Floats("v", 1)},
		WithConfigResolver(resolver), WithInstanceConfig(Config{UseCache: Bool(false)}))

	cases := map[string]string{
		"use_cache":                "instance",
		"auto_sort_datetime_index": "class",
		"remove_duplicate_indices": "defaults",
	}
	for field, scope := range cases {
		trace, err := ds.ExplainConfig(nil, field)
		require.NoError(t, err)
		winner, ok := trace.Winner()
		require.True(t, ok, field)
		assert.Equal(t, scope, winner.Scope.Name, field)
	}

	trace, err := ds.ExplainConfig(Config{UseCache: Bool(true)}, "use_cache")
	require.NoError(t, err)
	winner, _ := trace.Winner()
	assert.Equal(t, "call", winner.Scope.Name)
}

func TestFetchRejectsConfigOfWrongType(t *testing.T) {
	ds, calls := newLeaf(t, "base", map[flags.Flag]*frame.Frame{"a": frame.Floats("v", 1)})

	_, err := ds.Fetch(context.Background(), "a", WithConfig(42))
	require.ErrorIs(t, err, ErrConfigType)

	var typed *ConfigTypeError
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, 42, typed.Got)
	assert.Zero(t, calls.Calls())

	_, err = ds.Fetch(context.Background(), "a", WithConfig(map[int]any{1: true}))
	require.ErrorIs(t, err, ErrConfigType)
}

func TestFetchAcceptsTypedConfigMaps(t *testing.T) {
	cache := newMapCache()
	ds, calls := newLeaf(t, "base", map[flags.Flag]*frame.Frame{"a": frame.Floats("v", 1)}, WithCache(cache))
	ctx := context.Background()

	_, err := ds.Fetch(ctx, "a", WithConfig(map[string]bool{"use_cache": false}))
	require.NoError(t, err)
	assert.Zero(t, cache.writes)

	type scope string
	_, err = ds.Fetch(ctx, "a", WithConfig(map[scope]string{"region": "eu"}))
	require.NoError(t, err)
	assert.Equal(t, 2, calls.Calls())
	assert.Equal(t, 1, cache.writes)

	cfg, err := ds.EffectiveConfig(map[scope]string{"region": "eu"})
	require.NoError(t, err)
	region, ok := cfg.Extra("region")
	require.True(t, ok)
	assert.Equal(t, "eu", region)
}

func TestUpdateInstanceConfigMergesValues(t *testing.T) {
	ds, _ := newLeaf(t, "base", map[flags.Flag]*frame.Frame{"a": frame.Floats("v", 1)},
		WithInstanceConfig(Config{AutoSortDatetimeIndex: Bool(false)}))

	require.NoError(t, ds.UpdateInstanceConfig(map[string]any{"use_database": false}))

	cfg, ok := ds.InstanceConfig()
	require.True(t, ok)
	assert.False(t, cfg.CacheEnabled())
	assert.False(t, cfg.SortsTimeIndex())
}

func TestAttributesMustBeScalars(t *testing.T) {
	_, err := New("Leaf", flags.NewSet("a"), SourceFunc(nilSource),
		WithAttributes(map[string]any{"years": []int{2030}}))
	require.ErrorIs(t, err, ErrAttributeType)

	ds, _ := newLeaf(t, "base", map[flags.Flag]*frame.Frame{"a": frame.Floats("v", 1)})
	require.NoError(t, ds.SetAttribute("year", 2030))
	require.ErrorIs(t, ds.SetAttribute("tags", map[string]any{}), ErrAttributeType)

	attrs := ds.Attributes()
	attrs["year"] = 1999
	assert.Equal(t, 2030, ds.Attributes()["year"])
}

func nilSource(context.Context, Request) (*frame.Frame, error) { return nil, nil }

func TestNilSourceResultBecomesEmptyFrame(t *testing.T) {
	ds, err := New("Leaf", flags.NewSet("a"), SourceFunc(nilSource))
	require.NoError(t, err)

	got, err := ds.Fetch(context.Background(), "a")
	require.NoError(t, err)
	assert.Zero(t, got.Len())
}

func TestGeneratedNameUsesKind(t *testing.T) {
	ds, err := New("Leaf", flags.NewSet("a"), SourceFunc(nilSource), WithKind("Scenario"))
	require.NoError(t, err)
	assert.Equal(t, "Scenario", ds.Kind())
	assert.Regexp(t, `^Scenario_[0-9a-f]{8}$`, ds.Name())
}

func TestParentIsSetOnce(t *testing.T) {
	ds, _ := newLeaf(t, "base", map[flags.Flag]*frame.Frame{"a": frame.Floats("v", 1)})
	other, _ := newLeaf(t, "other", map[flags.Flag]*frame.Frame{"a": frame.Floats("v", 1)})
	first, err := NewLinkCollection(nil, WithName("first"))
	require.NoError(t, err)
	second, err := NewLinkCollection(nil, WithName("second"))
	require.NoError(t, err)

	_, err = ds.Parent()
	require.ErrorIs(t, err, ErrParentNotSet)

	require.ErrorIs(t, ds.SetParent(other), ErrParentType)
	require.NoError(t, ds.SetParent(first))
	require.NoError(t, ds.SetParent(first))
	require.ErrorIs(t, ds.SetParent(second), ErrParentAlreadySet)

	parent, err := ds.Parent()
	require.NoError(t, err)
	assert.Equal(t, "first", parent.Name())
}

func TestEmptyFlagIndexWarnsOnce(t *testing.T) {
	logger, logs := observedLogger()
	ds, _ := newLeaf(t, "base", map[flags.Flag]*frame.Frame{"a": frame.Floats("v", 1)}, WithLogger(logger))

	index := ds.FlagIndex()
	require.True(t, index.IsEmpty())
	_, _ = index.ItemType("a")
	_, _ = ds.FlagIndex().Unit("a")

	assert.Equal(t, 1, logs.FilterMessage("no flag index bound, using empty index").Len())
}

func TestRequiredFlags(t *testing.T) {
	ds, _ := newLeaf(t, "base", map[flags.Flag]*frame.Frame{"a": frame.Floats("v", 1)},
		WithRequiredFlags(func(f flags.Flag) flags.Set { return flags.NewSet(f, "b") }))

	required, err := ds.RequiredFlags("a")
	require.NoError(t, err)
	assert.Equal(t, []flags.Flag{"a", "b"}, required.Slice())

	_, err = ds.RequiredFlags("z")
	require.ErrorIs(t, err, ErrUnacceptedFlag)
}

func TestFetchManyConcatsUnderVariable(t *testing.T) {
	ds, _ := newLeaf(t, "base", map[flags.Flag]*frame.Frame{
		"a": frame.Floats("v", 1, 2),
		"b": frame.Floats("v", 3, 4),
	})

	got, err := ds.FetchMany(context.Background(), []flags.Flag{"a", "b"}, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"variable"}, got.Columns().Names())
	assert.Equal(t, []frame.Label{frame.L("a"), frame.L("b")}, got.Columns().Labels())
}

func TestFetchFilterGroupByAgg(t *testing.T) {
	data, err := frame.New(frame.Range(2), frame.Simple("generator", "g1", "g2", "g3"), [][]any{
		{1.0, 2.0, 3.0},
		{4.0, 5.0, 6.0},
	})
	require.NoError(t, err)
	model, err := frame.New(frame.Simple("generator", "g1", "g2", "g3"), frame.Simple("", "carrier", "p_nom"), [][]any{
		{"wind", 10.0},
		{"solar", 20.0},
		{"wind", 30.0},
	})
	require.NoError(t, err)

	index := flags.NewIndex(nil, flags.WithEntries(
		flags.Entry{Flag: "generators_t.p", LinkedModelFlag: "generators"},
	))
	logger, logs := observedLogger()
	ds, _ := newLeaf(t, "base", map[flags.Flag]*frame.Frame{
		"generators_t.p": data,
		"generators":     model,
	}, WithFlagIndex(index), WithLogger(logger))
	ctx := context.Background()

	filtered, err := ds.FetchFilterGroupByAgg(ctx, "generators_t.p", FilterSpec{Query: "p_nom > 15"})
	require.NoError(t, err)
	assert.Equal(t, []frame.Label{frame.L("g2"), frame.L("g3")}, filtered.Columns().Labels())

	grouped, err := ds.FetchFilterGroupByAgg(ctx, "generators_t.p", FilterSpec{GroupBy: "carrier"})
	require.NoError(t, err)
	assert.Equal(t, []frame.Label{frame.L("wind"), frame.L("solar")}, grouped.Columns().Labels())
	assert.Equal(t, []any{4.0, 10.0}, grouped.Column(0))
	assert.Equal(t, []any{2.0, 5.0}, grouped.Column(1))

	both, err := ds.FetchFilterGroupByAgg(ctx, "generators_t.p", FilterSpec{Query: "p_nom > 15", GroupBy: "carrier", Agg: frame.AggMean})
	require.NoError(t, err)
	assert.Equal(t, []frame.Label{frame.L("solar"), frame.L("wind")}, both.Columns().Labels())

	_, err = ds.FetchFilterGroupByAgg(ctx, "generators_t.p", FilterSpec{Agg: frame.AggSum})
	require.NoError(t, err)
	assert.Equal(t, 1, logs.FilterMessage("aggregation requested without group by, skipping").Len())

	_, err = ds.FetchFilterGroupByAgg(ctx, "generators", FilterSpec{})
	require.ErrorIs(t, err, flags.ErrUnresolved)
}
