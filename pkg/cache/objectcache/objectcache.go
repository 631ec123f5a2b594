// Package objectcache stores cache entries as objects in an S3 compatible
// bucket. Objects are named "<prefix>/<entry name>" and hold the same
// header and frame envelope as the file cache.
package objectcache

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"slices"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	datasets "github.com/goliatone/go-datasets"
	"github.com/goliatone/go-datasets/flags"
	"github.com/goliatone/go-datasets/frame"
	"github.com/goliatone/go-datasets/pkg/cache"
)

const contentType = "application/octet-stream"

// Config describes the object store connection.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	Secure    bool
}

// Cache is a cache.Backend over a minio client.
type Cache struct {
	client *minio.Client
	bucket string
	prefix string
	logger *zap.Logger
}

var _ cache.Backend = (*Cache)(nil)

type Option func(*Cache)

func WithLogger(logger *zap.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Open connects to cfg.Endpoint and creates the bucket when missing.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Cache, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("objectcache: endpoint and bucket are required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("objectcache: client: %w", err)
	}
	return New(ctx, client, cfg.Bucket, cfg.Prefix, opts...)
}

// New wraps an existing client.
func New(ctx context.Context, client *minio.Client, bucket, prefix string, opts ...Option) (*Cache, error) {
	c := &Cache{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("objectcache: bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("objectcache: make bucket %s: %w", bucket, err)
		}
		c.logger.Info("bucket created", zap.String("bucket", bucket))
	}
	return c, nil
}

// ObjectName returns the object holding key.
func (c *Cache) ObjectName(key datasets.CacheKey) string {
	return c.objectName(cache.EntryName(key))
}

func (c *Cache) objectName(entry string) string {
	if c.prefix == "" {
		return entry
	}
	return path.Join(c.prefix, entry)
}

func (c *Cache) listPrefix() string {
	if c.prefix == "" {
		return ""
	}
	return c.prefix + "/"
}

func (c *Cache) IsFresh(ctx context.Context, key datasets.CacheKey) (bool, error) {
	_, err := c.client.StatObject(ctx, c.bucket, c.ObjectName(key), minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if notFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("objectcache: stat: %w", err)
}

func (c *Cache) Read(ctx context.Context, key datasets.CacheKey) (*frame.Frame, error) {
	obj, err := c.client.GetObject(ctx, c.bucket, c.ObjectName(key), minio.GetObjectOptions{})
	if err != nil {
		return nil, c.readErr(key, err)
	}
	defer obj.Close()

	raw, err := io.ReadAll(obj)
	if err != nil {
		return nil, c.readErr(key, err)
	}
	_, f, err := cache.DecodeEntry(raw)
	return f, err
}

func (c *Cache) readErr(key datasets.CacheKey, err error) error {
	if notFound(err) {
		return cache.Miss(key)
	}
	return fmt.Errorf("objectcache: read: %w", err)
}

func (c *Cache) Write(ctx context.Context, key datasets.CacheKey, value *frame.Frame) error {
	raw, err := cache.EncodeEntry(key, value)
	if err != nil {
		return err
	}
	_, err = c.client.PutObject(ctx, c.bucket, c.ObjectName(key), bytes.NewReader(raw), int64(len(raw)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("objectcache: write: %w", err)
	}
	return nil
}

func (c *Cache) Delete(ctx context.Context, dataset string, flag flags.Flag) (int, error) {
	entries, err := c.matching(ctx, dataset, flag)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, e := range entries {
		if err := c.client.RemoveObject(ctx, c.bucket, c.objectName(e.name), minio.RemoveObjectOptions{}); err != nil {
			return removed, fmt.Errorf("objectcache: remove %s: %w", e.name, err)
		}
		removed++
	}
	c.logger.Debug("cache entries removed",
		zap.String("bucket", c.bucket),
		zap.String("dataset", dataset),
		zap.String("flag", flag.String()),
		zap.Int("count", removed),
	)
	return removed, nil
}

func (c *Cache) ListKeys(ctx context.Context, dataset string) ([]string, error) {
	entries, err := c.matching(ctx, dataset, "")
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

// matching lists entry objects directly under the prefix and keeps those
// whose header names dataset and flag.
func (c *Cache) matching(ctx context.Context, dataset string, flag flags.Flag) ([]stored, error) {
	prefix := c.listPrefix()
	var out []stored
	for obj := range c.client.ListObjects(ctx, c.bucket, minio.ListObjectsOptions{Prefix: prefix}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("objectcache: list: %w", obj.Err)
		}
		name := strings.TrimPrefix(obj.Key, prefix)
		if name == "" || strings.Contains(name, "/") || path.Ext(name) != cache.Extension {
			continue
		}
		h, err := c.header(ctx, obj.Key)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Debug("skipping cache object", zap.String("object", obj.Key), zap.Error(err))
			continue
		}
		if h.Matches(dataset, flag) {
			out = append(out, stored{name: name, header: h})
		}
	}
	return out, nil
}

func (c *Cache) header(ctx context.Context, object string) (cache.Header, error) {
	obj, err := c.client.GetObject(ctx, c.bucket, object, minio.GetObjectOptions{})
	if err != nil {
		return cache.Header{}, err
	}
	defer obj.Close()
	return cache.ReadHeader(obj)
}

func notFound(err error) bool {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchObject":
		return true
	}
	return false
}
