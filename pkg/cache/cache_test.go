package cache_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-datasets/flags"
	"github.com/goliatone/go-datasets/frame"
	"github.com/goliatone/go-datasets/pkg/cache"
	"github.com/goliatone/go-datasets/pkg/cache/cachetest"
)

func TestEntryCarriesHeader(t *testing.T) {
	key := cachetest.Key("runs/2030", "buses_t.p", map[string]any{"region": "eu"})
	raw, err := cache.EncodeEntry(key, frame.Floats("v", 1, 2))
	require.NoError(t, err)

	h, err := cache.ReadHeader(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, cache.HeaderOf(key), h)

	h, f, err := cache.DecodeEntry(raw)
	require.NoError(t, err)
	assert.Equal(t, key.ID(), h.ID)
	assert.Equal(t, []any{1.0, 2.0}, f.Values())
}

func TestHeaderMatchesExactly(t *testing.T) {
	h := cache.Header{ID: "base_a_config_0", Dataset: "base", Flag: "buses_t.p"}

	cases := []struct {
		dataset string
		flag    string
		want    bool
	}{
		{"", "", true},
		{"base", "", true},
		{"base", "buses_t.p", true},
		{"base", "buses_t", false},
		{"bas", "", false},
		{"base_high", "", false},
		{"", "buses_t.p", true},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, h.Matches(tc.dataset, flags.Flag(tc.flag)), "%s/%s", tc.dataset, tc.flag)
	}
}

func TestMalformedEntries(t *testing.T) {
	_, err := cache.ReadHeader(strings.NewReader("no newline"))
	require.ErrorIs(t, err, cache.ErrBadEntry)

	_, _, err = cache.DecodeEntry([]byte("{}\npayload"))
	require.ErrorIs(t, err, cache.ErrBadEntry)

	_, _, err = cache.DecodeEntry([]byte("not json\npayload"))
	require.ErrorIs(t, err, cache.ErrBadEntry)
}
