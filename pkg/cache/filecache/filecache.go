// Package filecache stores each cache entry as one file named
// "<dataset>_<flag>_config_<hash>[_kwargs_<hash>].frame" inside a single
// folder. Files hold a cache.Header line followed by the gob-encoded frame.
// An entry is fresh as long as its file exists.
package filecache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.uber.org/zap"

	datasets "github.com/goliatone/go-datasets"
	"github.com/goliatone/go-datasets/flags"
	"github.com/goliatone/go-datasets/frame"
	"github.com/goliatone/go-datasets/pkg/cache"
)

// Cache is a folder of frame files.
type Cache struct {
	dir    string
	logger *zap.Logger
}

var _ cache.Backend = (*Cache)(nil)

type Option func(*Cache)

// WithLogger sets the logger used for purge reports.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New opens the cache rooted at dir, creating the folder when needed.
func New(dir string, opts ...Option) (*Cache, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("filecache: folder path must not be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("filecache: create folder: %w", err)
	}
	c := &Cache{dir: dir, logger: zap.NewNop()}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Dir returns the cache folder.
func (c *Cache) Dir() string { return c.dir }

// Path returns the file holding key.
func (c *Cache) Path(key datasets.CacheKey) string {
	return filepath.Join(c.dir, cache.EntryName(key))
}

func (c *Cache) IsFresh(_ context.Context, key datasets.CacheKey) (bool, error) {
	_, err := os.Stat(c.Path(key))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	}
	return false, fmt.Errorf("filecache: stat: %w", err)
}

func (c *Cache) Read(_ context.Context, key datasets.CacheKey) (*frame.Frame, error) {
	raw, err := os.ReadFile(c.Path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, cache.Miss(key)
		}
		return nil, fmt.Errorf("filecache: read: %w", err)
	}
	_, f, err := cache.DecodeEntry(raw)
	return f, err
}

// Write replaces the entry through a temporary file and a rename.
func (c *Cache) Write(_ context.Context, key datasets.CacheKey, value *frame.Frame) error {
	raw, err := cache.EncodeEntry(key, value)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(c.dir, ".write-*")
	if err != nil {
		return fmt.Errorf("filecache: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("filecache: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("filecache: write: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.Path(key)); err != nil {
		return fmt.Errorf("filecache: rename: %w", err)
	}
	return nil
}

func (c *Cache) Delete(_ context.Context, dataset string, flag flags.Flag) (int, error) {
	entries, err := c.matching(dataset, flag)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, e := range entries {
		if err := os.Remove(filepath.Join(c.dir, e.name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, fmt.Errorf("filecache: remove %s: %w", e.name, err)
		}
		removed++
	}
	c.logger.Debug("cache entries removed",
		zap.String("dataset", dataset), zap.String("flag", flag.String()), zap.Int("removed", removed))
	return removed, nil
}

// ListKeys returns the IDs recorded in the entry headers.
func (c *Cache) ListKeys(_ context.Context, dataset string) ([]string, error) {
	entries, err := c.matching(dataset, "")
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.header.ID)
	}
	slices.Sort(ids)
	return ids, nil
}

type stored struct {
	name   string
	header cache.Header
}

// matching reads the header of every entry file and keeps the ones written
// for dataset and flag. Files without a readable header are skipped.
func (c *Cache) matching(dataset string, flag flags.Flag) ([]stored, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, fmt.Errorf("filecache: list folder: %w", err)
	}
	var out []stored
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, cache.Extension) {
			continue
		}
		h, err := c.header(name)
		if err != nil {
			c.logger.Debug("skipping cache file", zap.String("file", name), zap.Error(err))
			continue
		}
		if h.Matches(dataset, flag) {
			out = append(out, stored{name: name, header: h})
		}
	}
	return out, nil
}

func (c *Cache) header(name string) (cache.Header, error) {
	f, err := os.Open(filepath.Join(c.dir, name))
	if err != nil {
		return cache.Header{}, err
	}
	defer f.Close()
	return cache.ReadHeader(f)
}
