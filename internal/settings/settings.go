// Package settings loads dscache settings from flags, DSCACHE_ environment
// variables and an optional YAML file, and opens the configured cache
// backend.
package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/goliatone/go-datasets/pkg/cache"
	"github.com/goliatone/go-datasets/pkg/cache/filecache"
	"github.com/goliatone/go-datasets/pkg/cache/memcache"
	"github.com/goliatone/go-datasets/pkg/cache/mongocache"
	"github.com/goliatone/go-datasets/pkg/cache/objectcache"
	"github.com/goliatone/go-datasets/pkg/cache/rediscache"
	"github.com/goliatone/go-datasets/pkg/cache/sqlcache"
)

const (
	EnvPrefix  = "DSCACHE"
	ConfigName = ".dscache"
)

// Backend kinds.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMinio    = "minio"
	BackendMongo    = "mongo"
)

var ErrUnknownBackend = errors.New("settings: unknown cache backend")

type Settings struct {
	Backend     string        `mapstructure:"backend"`
	Dir         string        `mapstructure:"dir"`
	DSN         string        `mapstructure:"dsn"`
	Table       string        `mapstructure:"table"`
	ClassConfig string        `mapstructure:"class_config"`
	Verbose     bool          `mapstructure:"verbose"`
	Redis       RedisSettings `mapstructure:"redis"`
	Minio       MinioSettings `mapstructure:"minio"`
	Mongo       MongoSettings `mapstructure:"mongo"`
}

type RedisSettings struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type MinioSettings struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	Secure    bool   `mapstructure:"secure"`
}

type MongoSettings struct {
	URI        string `mapstructure:"uri"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

// Defaults registers every known key so environment variables reach
// Unmarshal.
func Defaults(v *viper.Viper) {
	v.SetDefault("backend", BackendFile)
	v.SetDefault("dir", ".datasets-cache")
	v.SetDefault("dsn", "")
	v.SetDefault("table", sqlcache.DefaultTable)
	v.SetDefault("class_config", "")
	v.SetDefault("verbose", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", rediscache.DefaultPrefix)
	v.SetDefault("redis.ttl", time.Duration(0))
	v.SetDefault("minio.endpoint", "")
	v.SetDefault("minio.access_key", "")
	v.SetDefault("minio.secret_key", "")
	v.SetDefault("minio.bucket", "datasets-cache")
	v.SetDefault("minio.prefix", "")
	v.SetDefault("minio.secure", false)
	v.SetDefault("mongo.uri", "")
	v.SetDefault("mongo.database", mongocache.DefaultDatabase)
	v.SetDefault("mongo.collection", mongocache.DefaultCollection)
}

// New returns a viper instance wired with defaults and the environment.
func New() *viper.Viper {
	v := viper.New()
	Defaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads file, or ./.dscache.yaml when file is empty and it exists, and
// decodes the merged settings.
func Load(v *viper.Viper, file string) (Settings, error) {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName(ConfigName)
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return Settings{}, fmt.Errorf("settings: read config: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("settings: decode: %w", err)
	}
	s.Backend = strings.ToLower(strings.TrimSpace(s.Backend))
	return s, nil
}

// OpenCache opens the configured backend. The returned close func releases
// connections owned by the backend and is never nil.
func (s Settings) OpenCache(ctx context.Context, logger *zap.Logger) (cache.Backend, func() error, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	noop := func() error { return nil }

	switch s.Backend {
	case BackendMemory:
		return memcache.New(), noop, nil
	case BackendFile:
		c, err := filecache.New(s.Dir, filecache.WithLogger(logger))
		if err != nil {
			return nil, noop, err
		}
		return c, noop, nil
	case BackendSQLite, BackendPostgres:
		dialect, err := sqlcache.DialectByName(s.Backend)
		if err != nil {
			return nil, noop, err
		}
		c, err := sqlcache.Open(ctx, dialect, s.DSN, sqlcache.WithTable(s.Table))
		if err != nil {
			return nil, noop, err
		}
		return c, c.Close, nil
	case BackendRedis:
		c, client, err := rediscache.Dial(ctx, s.Redis.Addr, s.Redis.Password, s.Redis.DB,
			rediscache.WithPrefix(s.Redis.Prefix), rediscache.WithTTL(s.Redis.TTL))
		if err != nil {
			return nil, noop, err
		}
		return c, client.Close, nil
	case BackendMinio:
		c, err := objectcache.Open(ctx, objectcache.Config{
			Endpoint:  s.Minio.Endpoint,
			AccessKey: s.Minio.AccessKey,
			SecretKey: s.Minio.SecretKey,
			Bucket:    s.Minio.Bucket,
			Prefix:    s.Minio.Prefix,
			Secure:    s.Minio.Secure,
		}, objectcache.WithLogger(logger))
		if err != nil {
			return nil, noop, err
		}
		return c, noop, nil
	case BackendMongo:
		c, client, err := mongocache.Dial(ctx, s.Mongo.URI, s.Mongo.Database, s.Mongo.Collection)
		if err != nil {
			return nil, noop, err
		}
		return c, func() error { return client.Disconnect(context.Background()) }, nil
	default:
		return nil, noop, fmt.Errorf("%w: %q", ErrUnknownBackend, s.Backend)
	}
}
