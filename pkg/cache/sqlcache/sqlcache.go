// Package sqlcache keeps cache entries in one SQL table. SQLite
// (modernc.org/sqlite, no cgo) is the default dialect; Postgres goes through
// github.com/lib/pq.
package sqlcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	datasets "github.com/goliatone/go-datasets"
	"github.com/goliatone/go-datasets/flags"
	"github.com/goliatone/go-datasets/frame"
	"github.com/goliatone/go-datasets/pkg/cache"
)

// Dialect captures the driver specific bits of the queries.
type Dialect struct {
	Name     string
	Driver   string
	BlobType string
	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder func(n int) string
}

var (
	SQLite = Dialect{
		Name:        "sqlite",
		Driver:      "sqlite",
		BlobType:    "BLOB",
		Placeholder: func(int) string { return "?" },
	}
	Postgres = Dialect{
		Name:        "postgres",
		Driver:      "postgres",
		BlobType:    "BYTEA",
		Placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	}
)

// DialectByName returns SQLite or Postgres.
func DialectByName(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "sqlite", "sqlite3":
		return SQLite, nil
	case "postgres", "postgresql", "pq":
		return Postgres, nil
	}
	return Dialect{}, fmt.Errorf("sqlcache: unknown dialect %q", name)
}

const DefaultTable = "dataset_cache"

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Cache is a cache.Backend over a *sql.DB.
type Cache struct {
	db      *sql.DB
	dialect Dialect
	table   string
	owned   bool
	now     func() time.Time
}

var _ cache.Backend = (*Cache)(nil)

type Option func(*Cache)

// WithTable overrides DefaultTable.
func WithTable(name string) Option {
	return func(c *Cache) {
		if name != "" {
			c.table = name
		}
	}
}

// Open connects with dialect to dsn and creates the table when missing. The
// connection is closed by Close.
func Open(ctx context.Context, dialect Dialect, dsn string, opts ...Option) (*Cache, error) {
	db, err := sql.Open(dialect.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlcache: open %s: %w", dialect.Name, err)
	}
	c, err := New(ctx, db, dialect, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}
	c.owned = true
	return c, nil
}

// New uses an existing connection pool, which stays owned by the caller.
func New(ctx context.Context, db *sql.DB, dialect Dialect, opts ...Option) (*Cache, error) {
	c := &Cache{db: db, dialect: dialect, table: DefaultTable, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if !identifier.MatchString(c.table) {
		return nil, fmt.Errorf("sqlcache: invalid table name %q", c.table)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("sqlcache: ping %s: %w", dialect.Name, err)
	}
	if err := c.migrate(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Cache) migrate(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id TEXT PRIMARY KEY,
	dataset TEXT NOT NULL,
	flag TEXT NOT NULL,
	payload %s NOT NULL,
	written_at TIMESTAMP NOT NULL
)`, c.table, c.dialect.BlobType),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_dataset_flag ON %s (dataset, flag)`, c.table, c.table),
	}
	for _, stmt := range stmts {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlcache: migrate: %w", err)
		}
	}
	return nil
}

// Close closes the connection when Open created it.
func (c *Cache) Close() error {
	if !c.owned {
		return nil
	}
	return c.db.Close()
}

func (c *Cache) bind(n int) string { return c.dialect.Placeholder(n) }

func (c *Cache) IsFresh(ctx context.Context, key datasets.CacheKey) (bool, error) {
	var one int
	err := c.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT 1 FROM %s WHERE id = %s`, c.table, c.bind(1)), key.ID()).Scan(&one)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	}
	return false, fmt.Errorf("sqlcache: probe: %w", err)
}

func (c *Cache) Read(ctx context.Context, key datasets.CacheKey) (*frame.Frame, error) {
	var payload []byte
	err := c.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT payload FROM %s WHERE id = %s`, c.table, c.bind(1)), key.ID()).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, cache.Miss(key)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlcache: read: %w", err)
	}
	return frame.Decode(payload)
}

func (c *Cache) Write(ctx context.Context, key datasets.CacheKey, value *frame.Frame) error {
	payload, err := value.MarshalBinary()
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`INSERT INTO %s (id, dataset, flag, payload, written_at)
VALUES (%s, %s, %s, %s, %s)
ON CONFLICT (id) DO UPDATE SET
	dataset = excluded.dataset,
	flag = excluded.flag,
	payload = excluded.payload,
	written_at = excluded.written_at`,
		c.table, c.bind(1), c.bind(2), c.bind(3), c.bind(4), c.bind(5))
	if _, err := c.db.ExecContext(ctx, query,
		key.ID(), key.Dataset, key.Flag.String(), payload, c.now().UTC()); err != nil {
		return fmt.Errorf("sqlcache: write: %w", err)
	}
	return nil
}

func (c *Cache) Delete(ctx context.Context, dataset string, flag flags.Flag) (int, error) {
	where, args := c.filter(dataset, flag)
	res, err := c.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s%s`, c.table, where), args...)
	if err != nil {
		return 0, fmt.Errorf("sqlcache: delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlcache: delete: %w", err)
	}
	return int(n), nil
}

func (c *Cache) ListKeys(ctx context.Context, dataset string) ([]string, error) {
	where, args := c.filter(dataset, "")
	rows, err := c.db.QueryContext(ctx, fmt.Sprintf(`SELECT id FROM %s%s ORDER BY id`, c.table, where), args...)
	if err != nil {
		return nil, fmt.Errorf("sqlcache: list: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlcache: list: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (c *Cache) filter(dataset string, flag flags.Flag) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if dataset != "" {
		args = append(args, dataset)
		clauses = append(clauses, "dataset = "+c.bind(len(args)))
	}
	if flag != "" {
		args = append(args, flag.String())
		clauses = append(clauses, "flag = "+c.bind(len(args)))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}
