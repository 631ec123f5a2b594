package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	datasets "github.com/goliatone/go-datasets"
)

func (a *app) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect effective fetch configuration",
	}
	cmd.AddCommand(a.configShowCmd(), a.configExplainCmd())
	return cmd
}

type layerFlags struct {
	instance []string
	call     []string
}

func (l *layerFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVar(&l.instance, "instance", nil, "instance config entry key=value (repeatable)")
	cmd.Flags().StringArrayVar(&l.call, "call", nil, "call config entry key=value (repeatable)")
}

func (l *layerFlags) configs() (instance, call *datasets.Config, err error) {
	if instance, err = parseLayer(l.instance); err != nil {
		return nil, nil, err
	}
	if call, err = parseLayer(l.call); err != nil {
		return nil, nil, err
	}
	return instance, call, nil
}

func (a *app) resolver() (*datasets.ConfigResolver, error) {
	resolver := datasets.NewConfigResolver()
	if path := a.settings.ClassConfig; path != "" {
		if err := resolver.LoadClassConfigFile(path); err != nil {
			return nil, err
		}
	}
	return resolver, nil
}

func (a *app) configShowCmd() *cobra.Command {
	var layers layerFlags
	cmd := &cobra.Command{
		Use:   "show KIND",
		Short: "Print the effective configuration of a dataset kind as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resolver, err := a.resolver()
			if err != nil {
				return err
			}
			instance, call, err := layers.configs()
			if err != nil {
				return err
			}
			cfg, err := resolver.Effective(args[0], instance, call)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(cfg); err != nil {
				return err
			}
			return enc.Close()
		},
	}
	layers.register(cmd)
	return cmd
}

func (a *app) configExplainCmd() *cobra.Command {
	var layers layerFlags
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "explain KIND FIELD",
		Short: "Show which scope supplies FIELD (for example use_cache or extras.region)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			resolver, err := a.resolver()
			if err != nil {
				return err
			}
			instance, call, err := layers.configs()
			if err != nil {
				return err
			}
			trace, err := resolver.Explain(args[0], instance, call, args[1])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				raw, err := trace.ToJSON()
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(raw))
				return nil
			}
			for _, p := range trace.Layers {
				value := "-"
				if p.Found {
					value = fmt.Sprint(p.Value)
				}
				fmt.Fprintf(out, "%-9s %4d  %s\n", p.Scope.Name, p.Scope.Priority, value)
			}
			if winner, ok := trace.Winner(); ok {
				fmt.Fprintf(out, "winner: %s\n", winner.Scope.Name)
			} else {
				fmt.Fprintln(out, "winner: none")
			}
			return nil
		},
	}
	layers.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the trace as JSON")
	return cmd
}

// parseLayer turns key=value entries into a Config. Values are YAML scalars,
// so "false" is a bool and "3" an int.
func parseLayer(entries []string) (*datasets.Config, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	values := make(map[string]any, len(entries))
	for _, entry := range entries {
		key, raw, ok := strings.Cut(entry, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid config entry %q, want key=value", entry)
		}
		var value any
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
			return nil, fmt.Errorf("config entry %q: %w", entry, err)
		}
		values[strings.TrimSpace(key)] = value
	}
	cfg, err := datasets.ConfigFromMap(values)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}
