package datasets

import (
	"fmt"
	"io"
	"maps"
	"os"
	"reflect"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-datasets/internal/hydrate"
	"github.com/goliatone/go-datasets/internal/layering"
)

// Config tunes the fetch protocol. Nil fields are unset and fall back to the
// next weaker layer; Extras merge key by key.
type Config struct {
	UseCache               *bool          `json:"use_cache,omitempty" yaml:"use_cache,omitempty"`
	AutoSortDatetimeIndex  *bool          `json:"auto_sort_datetime_index,omitempty" yaml:"auto_sort_datetime_index,omitempty"`
	RemoveDuplicateIndices *bool          `json:"remove_duplicate_indices,omitempty" yaml:"remove_duplicate_indices,omitempty"`
	Extras                 map[string]any `json:"extras,omitempty" yaml:"extras,omitempty"`
}

// Bool returns a pointer to v for Config literals.
func Bool(v bool) *bool { return &v }

// DefaultConfig enables caching, time index sorting and duplicate removal.
func DefaultConfig() Config {
	return Config{
		UseCache:               Bool(true),
		AutoSortDatetimeIndex:  Bool(true),
		RemoveDuplicateIndices: Bool(true),
	}
}

// Merge returns a new Config where other's set fields win over c's.
func (c Config) Merge(other Config) Config {
	return layering.MergeLayers(other, c)
}

// CacheEnabled reports whether fetches may consult the cache.
func (c Config) CacheEnabled() bool { return enabled(c.UseCache) }

// SortsTimeIndex reports whether time indexed results are sorted.
func (c Config) SortsTimeIndex() bool { return enabled(c.AutoSortDatetimeIndex) }

// DropsDuplicateIndex reports whether duplicated index labels are dropped.
func (c Config) DropsDuplicateIndex() bool { return enabled(c.RemoveDuplicateIndices) }

// Extra returns the extra setting called key.
func (c Config) Extra(key string) (any, bool) {
	v, ok := c.Extras[key]
	return v, ok
}

func enabled(v *bool) bool { return v == nil || *v }

// Trace reports the value each scope holds for one configuration field.
type Trace = layering.Trace

// Precedence scopes of the effective configuration, strongest first.
var (
	ScopeCall     = layering.NewScope("call", 400, "fetch call override")
	ScopeInstance = layering.NewScope("instance", 300, "dataset instance config")
	ScopeClass    = layering.NewScope("class", 200, "class override")
	ScopeDefaults = layering.NewScope("defaults", 100, "built-in defaults")
)

// ConfigResolver holds the per-kind class overrides used to compute effective
// configurations. One resolver is created per application run and handed to
// datasets with WithConfigResolver.
type ConfigResolver struct {
	classes  map[string]Config
	defaults Config
}

// NewConfigResolver returns a resolver with no class overrides.
func NewConfigResolver() *ConfigResolver {
	return &ConfigResolver{classes: map[string]Config{}, defaults: DefaultConfig()}
}

// SetClassConfig replaces the override registered for kind.
func (r *ConfigResolver) SetClassConfig(kind string, cfg Config) {
	r.classes[kind] = layering.Clone(cfg)
}

// UpdateClassConfig merges values into the override registered for kind.
func (r *ConfigResolver) UpdateClassConfig(kind string, values map[string]any) error {
	cfg, err := decodeConfigMap(hydrate.Context{Kind: kind}, values)
	if err != nil {
		return err
	}
	r.classes[kind] = r.classes[kind].Merge(cfg)
	return nil
}

// ClassConfig returns the override registered for kind.
func (r *ConfigResolver) ClassConfig(kind string) (Config, bool) {
	if r == nil {
		return Config{}, false
	}
	cfg, ok := r.classes[kind]
	return layering.Clone(cfg), ok
}

// Kinds lists the kinds with a registered override.
func (r *ConfigResolver) Kinds() []string {
	if r == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(r.classes))
}

// Stack returns the precedence stack for kind with the optional instance and
// call layers.
func (r *ConfigResolver) Stack(kind string, instance, call *Config) (*layering.Stack[Config], error) {
	defaults := DefaultConfig()
	if r != nil {
		defaults = r.defaults
	}
	layers := []layering.Layer[Config]{layering.NewLayer(ScopeDefaults, defaults)}
	if cfg, ok := r.ClassConfig(kind); ok {
		layers = append(layers, layering.NewLayer(ScopeClass, cfg))
	}
	if instance != nil {
		layers = append(layers, layering.NewLayer(ScopeInstance, *instance))
	}
	if call != nil {
		layers = append(layers, layering.NewLayer(ScopeCall, *call))
	}
	return layering.NewStack(layers...)
}

// Effective merges defaults, the class override of kind, instance and call,
// later layers winning.
func (r *ConfigResolver) Effective(kind string, instance, call *Config) (Config, error) {
	stack, err := r.Stack(kind, instance, call)
	if err != nil {
		return Config{}, err
	}
	return stack.Merge(), nil
}

// Explain reports which scope supplies field (a JSON name such as
// "use_cache" or "extras.region") for kind.
func (r *ConfigResolver) Explain(kind string, instance, call *Config, field string) (layering.Trace, error) {
	stack, err := r.Stack(kind, instance, call)
	if err != nil {
		return layering.Trace{}, err
	}
	return stack.Trace(field)
}

// LoadClassConfigs reads a YAML document mapping kinds to overrides and
// registers each of them. Unknown fields are rejected.
func (r *ConfigResolver) LoadClassConfigs(reader io.Reader) error {
	decoder := yaml.NewDecoder(reader)
	decoder.KnownFields(true)

	var doc map[string]Config
	if err := decoder.Decode(&doc); err != nil {
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("datasets: parse class configs: %w", err)
	}
	for kind, cfg := range doc {
		r.SetClassConfig(kind, cfg)
	}
	return nil
}

// LoadClassConfigFile is LoadClassConfigs over the file at path.
func (r *ConfigResolver) LoadClassConfigFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("datasets: open class configs: %w", err)
	}
	defer f.Close()
	return r.LoadClassConfigs(f)
}

var configFields = map[string]struct{}{
	"use_cache":                {},
	"auto_sort_datetime_index": {},
	"remove_duplicate_indices": {},
	"extras":                   {},
}

var configDecoder = hydrate.NewDecoder[Config](
	hydrate.WithPreHook[Config](normalizeConfigPayload),
	hydrate.WithDisallowUnknownFields[Config](),
)

// normalizeConfigPayload renames the legacy use_database key and moves keys
// Config does not declare into extras.
func normalizeConfigPayload(_ hydrate.Context, payload map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(payload))
	extras, _ := payload["extras"].(map[string]any)
	extras = maps.Clone(extras)
	for key, value := range payload {
		if key == "use_database" {
			if _, ok := payload["use_cache"]; !ok {
				out["use_cache"] = value
			}
			continue
		}
		if _, known := configFields[key]; known {
			out[key] = value
			continue
		}
		if value == nil {
			continue
		}
		if extras == nil {
			extras = map[string]any{}
		}
		extras[key] = value
	}
	if extras != nil {
		out["extras"] = extras
	}
	return out, nil
}

// ConfigFromMap decodes a map in the form accepted by WithConfig.
func ConfigFromMap(values map[string]any) (Config, error) {
	return decodeConfigMap(hydrate.Context{}, values)
}

func decodeConfigMap(ctx hydrate.Context, values map[string]any) (Config, error) {
	if values == nil {
		return Config{}, nil
	}
	cfg, err := configDecoder.Decode(ctx, values)
	if err != nil {
		return Config{}, &ConfigTypeError{Got: values, Err: err}
	}
	return cfg, nil
}

// parseConfig accepts nil, Config, *Config or any map keyed by strings, such
// as map[string]any or map[string]bool.
func parseConfig(ctx hydrate.Context, raw any) (*Config, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case Config:
		cfg := layering.Clone(v)
		return &cfg, nil
	case *Config:
		if v == nil {
			return nil, nil
		}
		cfg := layering.Clone(*v)
		return &cfg, nil
	case map[string]any:
		cfg, err := decodeConfigMap(ctx, v)
		if err != nil {
			return nil, err
		}
		return &cfg, nil
	}
	if values, ok := stringKeyedMap(raw); ok {
		cfg, err := decodeConfigMap(ctx, values)
		if err != nil {
			return nil, err
		}
		return &cfg, nil
	}
	return nil, &ConfigTypeError{Got: raw}
}

// stringKeyedMap copies a map whose key kind is string into map[string]any.
// A nil map yields an empty one.
func stringKeyedMap(raw any) (map[string]any, bool) {
	v := reflect.ValueOf(raw)
	if v.Kind() != reflect.Map || v.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	out := make(map[string]any, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}
