// Package rediscache keeps cache entries in Redis hashes so several
// processes can share computed results.
//
// Each entry lives under "<prefix><id>" with the fields "dataset", "flag"
// and "frame". Administration walks the prefix with SCAN.
package rediscache

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	datasets "github.com/goliatone/go-datasets"
	"github.com/goliatone/go-datasets/flags"
	"github.com/goliatone/go-datasets/frame"
	"github.com/goliatone/go-datasets/pkg/cache"
)

const (
	DefaultPrefix = "datasets:cache:"

	fieldDataset = "dataset"
	fieldFlag    = "flag"
	fieldFrame   = "frame"

	scanCount = 256
)

// Cache is a cache.Backend over a Redis client.
type Cache struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

var _ cache.Backend = (*Cache)(nil)

type Option func(*Cache)

// WithPrefix overrides DefaultPrefix.
func WithPrefix(prefix string) Option {
	return func(c *Cache) {
		if prefix != "" {
			c.prefix = prefix
		}
	}
}

// WithTTL expires entries after ttl. Zero keeps them until purged.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.ttl = ttl }
}

// New wraps client. The caller keeps ownership of the connection.
func New(client redis.Cmdable, opts ...Option) *Cache {
	c := &Cache{client: client, prefix: DefaultPrefix}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Dial connects to addr and checks the connection with PING.
func Dial(ctx context.Context, addr, password string, db int, opts ...Option) (*Cache, *redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("rediscache: ping %s: %w", addr, err)
	}
	return New(client, opts...), client, nil
}

// Key returns the Redis key holding id.
func (c *Cache) Key(id string) string { return c.prefix + id }

func (c *Cache) IsFresh(ctx context.Context, key datasets.CacheKey) (bool, error) {
	n, err := c.client.Exists(ctx, c.Key(key.ID())).Result()
	if err != nil {
		return false, fmt.Errorf("rediscache: exists: %w", err)
	}
	return n > 0, nil
}

func (c *Cache) Read(ctx context.Context, key datasets.CacheKey) (*frame.Frame, error) {
	raw, err := c.client.HGet(ctx, c.Key(key.ID()), fieldFrame).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, cache.Miss(key)
	}
	if err != nil {
		return nil, fmt.Errorf("rediscache: read: %w", err)
	}
	return frame.Decode(raw)
}

func (c *Cache) Write(ctx context.Context, key datasets.CacheKey, value *frame.Frame) error {
	raw, err := value.MarshalBinary()
	if err != nil {
		return err
	}
	rkey := c.Key(key.ID())
	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, rkey)
		pipe.HSet(ctx, rkey,
			fieldDataset, key.Dataset,
			fieldFlag, key.Flag.String(),
			fieldFrame, raw,
		)
		if c.ttl > 0 {
			pipe.Expire(ctx, rkey, c.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("rediscache: write: %w", err)
	}
	return nil
}

func (c *Cache) Delete(ctx context.Context, dataset string, flag flags.Flag) (int, error) {
	keys, err := c.matching(ctx, dataset, flag)
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := c.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("rediscache: delete: %w", err)
	}
	return int(n), nil
}

func (c *Cache) ListKeys(ctx context.Context, dataset string) ([]string, error) {
	keys, err := c.matching(ctx, dataset, "")
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(keys))
	for i, k := range keys {
		ids[i] = strings.TrimPrefix(k, c.prefix)
	}
	slices.Sort(ids)
	return ids, nil
}

func (c *Cache) matching(ctx context.Context, dataset string, flag flags.Flag) ([]string, error) {
	var out []string
	iter := c.client.Scan(ctx, 0, c.prefix+"*", scanCount).Iterator()
	for iter.Next(ctx) {
		rkey := iter.Val()
		if dataset == "" && flag == "" {
			out = append(out, rkey)
			continue
		}
		fields, err := c.client.HMGet(ctx, rkey, fieldDataset, fieldFlag).Result()
		if err != nil {
			return nil, fmt.Errorf("rediscache: scan: %w", err)
		}
		if matches(fields, dataset, flag) {
			out = append(out, rkey)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("rediscache: scan: %w", err)
	}
	return out, nil
}

func matches(fields []any, dataset string, flag flags.Flag) bool {
	if len(fields) != 2 {
		return false
	}
	ds, _ := fields[0].(string)
	fl, _ := fields[1].(string)
	return cache.Header{Dataset: ds, Flag: flags.Flag(fl)}.Matches(dataset, flag)
}
