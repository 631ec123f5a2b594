// Package memcache is an in-process cache backend for tests, examples and
// short-lived runs. Entries are keyed by CacheKey.ID and stored as copies.
package memcache

import (
	"context"
	"slices"
	"sync"

	datasets "github.com/goliatone/go-datasets"
	"github.com/goliatone/go-datasets/flags"
	"github.com/goliatone/go-datasets/frame"
	"github.com/goliatone/go-datasets/pkg/cache"
)

// Cache is a map-backed cache.Backend safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
}

type entry struct {
	dataset string
	flag    flags.Flag
	data    *frame.Frame
}

var _ cache.Backend = (*Cache)(nil)

func New() *Cache {
	return &Cache{entries: map[string]entry{}}
}

func (c *Cache) IsFresh(_ context.Context, key datasets.CacheKey) (bool, error) {
	c.mu.RLock()
	_, ok := c.entries[key.ID()]
	c.mu.RUnlock()
	return ok, nil
}

func (c *Cache) Read(_ context.Context, key datasets.CacheKey) (*frame.Frame, error) {
	c.mu.RLock()
	e, ok := c.entries[key.ID()]
	c.mu.RUnlock()
	if !ok {
		return nil, cache.Miss(key)
	}
	return e.data.Copy(), nil
}

func (c *Cache) Write(_ context.Context, key datasets.CacheKey, value *frame.Frame) error {
	c.mu.Lock()
	c.entries[key.ID()] = entry{dataset: key.Dataset, flag: key.Flag, data: value.Copy()}
	c.mu.Unlock()
	return nil
}

func (c *Cache) Delete(_ context.Context, dataset string, flag flags.Flag) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for id, e := range c.entries {
		if e.matches(dataset, flag) {
			delete(c.entries, id)
			removed++
		}
	}
	return removed, nil
}

func (c *Cache) ListKeys(_ context.Context, dataset string) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var ids []string
	for id, e := range c.entries {
		if e.matches(dataset, "") {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (e entry) matches(dataset string, flag flags.Flag) bool {
	return (dataset == "" || e.dataset == dataset) && (flag == "" || e.flag == flag)
}
