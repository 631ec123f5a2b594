// Package cachetest is the shared contract suite for cache backends.
package cachetest

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	datasets "github.com/goliatone/go-datasets"
	"github.com/goliatone/go-datasets/flags"
	"github.com/goliatone/go-datasets/frame"
	"github.com/goliatone/go-datasets/pkg/cache"
)

// Open returns an empty backend. Cleanup belongs on t.
type Open func(t *testing.T) cache.Backend

// Key builds a key with the default configuration.
func Key(dataset string, flag flags.Flag, extras map[string]any) datasets.CacheKey {
	return datasets.CacheKey{Dataset: dataset, Flag: flag, Config: datasets.DefaultConfig(), Extras: extras}
}

// Sample returns a small mixed-type frame with a time index.
func Sample(t *testing.T) *frame.Frame {
	t.Helper()
	start := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	f, err := frame.New(
		frame.Times("snapshot", start, start.Add(time.Hour)),
		frame.Simple("generator", "wind", "solar", "status"),
		[][]any{
			{1.5, nil, "on"},
			{2.5, 4.0, "off"},
		},
	)
	require.NoError(t, err)
	return f
}

// Run exercises the backend contract.
func Run(t *testing.T, open Open) {
	t.Run("miss then round trip", func(t *testing.T) {
		c := open(t)
		ctx := context.Background()
		key := Key("base", "generators_t.p", nil)

		fresh, err := c.IsFresh(ctx, key)
		require.NoError(t, err)
		assert.False(t, fresh)
		_, err = c.Read(ctx, key)
		require.ErrorIs(t, err, cache.ErrMiss)

		want := Sample(t)
		require.NoError(t, c.Write(ctx, key, want))

		fresh, err = c.IsFresh(ctx, key)
		require.NoError(t, err)
		assert.True(t, fresh)
		got, err := c.Read(ctx, key)
		require.NoError(t, err)
		assert.True(t, want.Equal(got), "round trip changed the frame")
	})

	t.Run("stored value is isolated", func(t *testing.T) {
		c := open(t)
		ctx := context.Background()
		key := Key("base", "x", nil)

		written := frame.Floats("v", 1, 2)
		require.NoError(t, c.Write(ctx, key, written))
		written.Set(0, 0, 99.0)

		got, err := c.Read(ctx, key)
		require.NoError(t, err)
		got.Set(1, 0, 42.0)
		assert.Equal(t, []any{1.0, 2.0}, mustRead(t, c, key).Values())
	})

	t.Run("write replaces entry", func(t *testing.T) {
		c := open(t)
		ctx := context.Background()
		key := Key("base", "x", map[string]any{"region": "eu"})

		require.NoError(t, c.Write(ctx, key, frame.Floats("v", 1)))
		require.NoError(t, c.Write(ctx, key, frame.Floats("v", 2)))
		assert.Equal(t, []any{2.0}, mustRead(t, c, key).Values())

		keys, err := c.ListKeys(ctx, "")
		require.NoError(t, err)
		assert.Len(t, keys, 1)
	})

	t.Run("list and delete", func(t *testing.T) {
		c := open(t)
		ctx := context.Background()
		keys := []datasets.CacheKey{
			Key("base", "a", nil),
			Key("base", "a.b", nil),
			Key("base", "a", map[string]any{"region": "eu"}),
			Key("high", "a", nil),
		}
		for _, key := range keys {
			require.NoError(t, c.Write(ctx, key, frame.Floats("v", 1)))
		}

		all, err := c.ListKeys(ctx, "")
		require.NoError(t, err)
		want := []string{keys[0].ID(), keys[1].ID(), keys[2].ID(), keys[3].ID()}
		slices.Sort(want)
		if diff := cmp.Diff(want, all); diff != "" {
			t.Fatalf("ListKeys mismatch (-want +got):\n%s", diff)
		}

		high, err := c.ListKeys(ctx, "high")
		require.NoError(t, err)
		assert.Equal(t, []string{keys[3].ID()}, high)

		removed, err := c.Delete(ctx, "base", "a")
		require.NoError(t, err)
		assert.Equal(t, 2, removed)
		fresh, err := c.IsFresh(ctx, keys[1])
		require.NoError(t, err)
		assert.True(t, fresh, "a.b must survive deleting a")

		removed, err = c.Delete(ctx, "", "")
		require.NoError(t, err)
		assert.Equal(t, 2, removed)
		all, err = c.ListKeys(ctx, "")
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("datasets sharing a name prefix", func(t *testing.T) {
		c := open(t)
		ctx := context.Background()
		base := Key("base", "a", nil)
		baseHigh := Key("base_high", "a", nil)
		flagged := Key("base", "high_a", nil)
		for _, key := range []datasets.CacheKey{base, baseHigh, flagged} {
			require.NoError(t, c.Write(ctx, key, frame.Floats("v", 1)))
		}

		keys, err := c.ListKeys(ctx, "base")
		require.NoError(t, err)
		want := []string{base.ID(), flagged.ID()}
		slices.Sort(want)
		assert.Equal(t, want, keys)

		removed, err := c.Delete(ctx, "base", "")
		require.NoError(t, err)
		assert.Equal(t, 2, removed)

		fresh, err := c.IsFresh(ctx, baseHigh)
		require.NoError(t, err)
		assert.True(t, fresh, "base_high must survive purging base")
		keys, err = c.ListKeys(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, []string{baseHigh.ID()}, keys)
	})
}

func mustRead(t *testing.T, c cache.Backend, key datasets.CacheKey) *frame.Frame {
	t.Helper()
	f, err := c.Read(context.Background(), key)
	require.NoError(t, err)
	return f
}
