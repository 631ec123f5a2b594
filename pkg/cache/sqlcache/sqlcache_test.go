package sqlcache

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-datasets/frame"
	"github.com/goliatone/go-datasets/pkg/cache"
	"github.com/goliatone/go-datasets/pkg/cache/cachetest"
)

func openSQLite(t *testing.T, opts ...Option) *Cache {
	t.Helper()
	c, err := Open(context.Background(), SQLite, filepath.Join(t.TempDir(), "cache.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestSQLiteContract(t *testing.T) {
	cachetest.Run(t, func(t *testing.T) cache.Backend { return openSQLite(t) })
}

func TestPostgresContract(t *testing.T) {
	dsn := os.Getenv("DATASETS_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("DATASETS_POSTGRES_DSN not set")
	}
	cachetest.Run(t, func(t *testing.T) cache.Backend {
		c, err := Open(context.Background(), Postgres, dsn, WithTable("dataset_cache_test"))
		require.NoError(t, err)
		_, err = c.Delete(context.Background(), "", "")
		require.NoError(t, err)
		t.Cleanup(func() { _ = c.Close() })
		return c
	})
}

func TestReopenKeepsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	ctx := context.Background()
	key := cachetest.Key("base", "a", nil)

	first, err := Open(ctx, SQLite, path)
	require.NoError(t, err)
	require.NoError(t, first.Write(ctx, key, frame.Floats("v", 7)))
	require.NoError(t, first.Close())

	second, err := Open(ctx, SQLite, path)
	require.NoError(t, err)
	defer second.Close()
	got, err := second.Read(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []any{7.0}, got.Values())
}

func TestRejectsInvalidTableName(t *testing.T) {
	_, err := Open(context.Background(), SQLite, filepath.Join(t.TempDir(), "cache.db"), WithTable("cache; DROP"))
	require.Error(t, err)
}

func TestDialectByName(t *testing.T) {
	for name, want := range map[string]string{"": "sqlite", "SQLite3": "sqlite", "postgresql": "postgres"} {
		d, err := DialectByName(name)
		require.NoError(t, err)
		assert.Equal(t, want, d.Name)
	}
	_, err := DialectByName("oracle")
	require.Error(t, err)

	assert.Equal(t, "$3", Postgres.Placeholder(3))
	assert.Equal(t, "?", SQLite.Placeholder(3))
}
