package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/goliatone/go-datasets/flags"
	"github.com/goliatone/go-datasets/pkg/activity"
	"github.com/goliatone/go-datasets/pkg/cache"
)

func (a *app) keysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keys [dataset]",
		Short: "List cache entry IDs, optionally for one dataset",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dataset := ""
			if len(args) == 1 {
				dataset = args[0]
			}
			return a.withCache(cmd.Context(), func(c cache.Backend) error {
				ids, err := c.ListKeys(cmd.Context(), dataset)
				if err != nil {
					return err
				}
				for _, id := range ids {
					fmt.Fprintln(cmd.OutOrStdout(), id)
				}
				return nil
			})
		},
	}
}

func (a *app) purgeCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "purge [dataset [flag]]",
		Short: "Remove cache entries of a dataset, one of its flags, or everything with --all",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var dataset string
			var flag flags.Flag
			switch len(args) {
			case 2:
				flag = flags.Flag(args[1])
				fallthrough
			case 1:
				dataset = args[0]
			default:
				if !all {
					return errors.New("purge needs a dataset name or --all")
				}
			}

			emitter := activity.NewEmitter(
				activity.Hooks{activity.ZapHook{Logger: a.logger}},
				activity.Config{Enabled: true, Channel: "dscache"},
			)
			return a.withCache(cmd.Context(), func(c cache.Backend) error {
				removed, err := c.Delete(cmd.Context(), dataset, flag)
				if err != nil {
					return err
				}
				event := activity.BuildCachePurgedEvent(dataset, flag.String(), removed)
				if err := emitter.Emit(cmd.Context(), event); err != nil {
					a.logger.Warn("activity hook failed", zap.Error(err))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %d entries\n", removed)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "remove every entry")
	return cmd
}
