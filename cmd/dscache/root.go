package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/goliatone/go-datasets/internal/settings"
	"github.com/goliatone/go-datasets/pkg/cache"
)

type app struct {
	v        *viper.Viper
	cfgFile  string
	settings settings.Settings
	logger   *zap.Logger
}

func newApp() *app {
	return &app{v: settings.New()}
}

func (a *app) rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dscache",
		Short: "Inspect dataset caches and configuration",
		Long: `dscache lists and purges cached fetch results and explains which
configuration scope supplies a setting.

Settings come from flags, DSCACHE_* environment variables and an optional
.dscache.yaml file.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			s, err := settings.Load(a.v, a.cfgFile)
			if err != nil {
				return err
			}
			a.settings = s
			if a.logger != nil {
				return nil
			}

			config := zap.NewProductionConfig()
			if s.Verbose {
				config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			a.logger, err = config.Build()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default ./.dscache.yaml)")
	flags.BoolP("verbose", "v", false, "debug logging")
	flags.String("backend", "", "cache backend: memory, file, sqlite, postgres, redis, minio, mongo")
	flags.String("dir", "", "file cache folder")
	flags.String("dsn", "", "sqlite path or postgres connection string")
	flags.String("class-config", "", "YAML file with class config overrides")

	for key, name := range map[string]string{
		"verbose":      "verbose",
		"backend":      "backend",
		"dir":          "dir",
		"dsn":          "dsn",
		"class_config": "class-config",
	} {
		_ = a.v.BindPFlag(key, flags.Lookup(name))
	}

	cmd.AddCommand(a.keysCmd(), a.purgeCmd(), a.configCmd())
	return cmd
}

// withCache opens the configured backend for the duration of fn.
func (a *app) withCache(ctx context.Context, fn func(cache.Backend) error) error {
	backend, closeFn, err := a.settings.OpenCache(ctx, a.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeFn(); err != nil {
			a.logger.Warn("closing cache backend", zap.Error(err))
		}
	}()
	return fn(backend)
}
