package datasets

import (
	"maps"

	"go.uber.org/zap"

	"github.com/goliatone/go-datasets/flags"
	"github.com/goliatone/go-datasets/pkg/activity"
	"github.com/goliatone/go-datasets/query"
)

// Option configures a dataset or collection at construction. Options that a
// given kind does not use are ignored.
type Option func(*options)

type options struct {
	kind       string
	name       string
	attributes map[string]any
	index      *flags.Index
	cache      Cache
	config     *Config
	resolver   *ConfigResolver
	logger     *zap.Logger
	emitter    *activity.Emitter
	evaluator  query.Evaluator
	parent     Dataset
	required   func(flags.Flag) flags.Set

	childCheck   ChildCheck
	keepFirst    bool
	concatAxis   int
	concatLevel  string
	concatBottom bool
	transpose    bool
	skip         func(Dataset) bool
	skipExpr     string
	policy       AttributePolicy
	formatter    DiffFormatter
}

func defaultOptions() options {
	return options{
		logger:      zap.NewNop(),
		keepFirst:   true,
		concatAxis:  1,
		concatLevel: DefaultConcatLevel,
		policy:      AttributesFromVariation,
		formatter:   DefaultDiffFormatter{},
	}
}

func applyOptions(opts []Option) options {
	cfg := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// WithKind overrides the kind a dataset reports and resolves class
// configuration for.
func WithKind(kind string) Option {
	return func(o *options) { o.kind = kind }
}

// WithName overrides the generated "<Kind>_<id>" name.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithAttributes sets local attributes. Values must be scalars.
func WithAttributes(attributes map[string]any) Option {
	return func(o *options) { o.attributes = maps.Clone(attributes) }
}

// WithFlagIndex binds the flag metadata index.
func WithFlagIndex(index *flags.Index) Option {
	return func(o *options) { o.index = index }
}

// WithCache binds a cache backend.
func WithCache(cache Cache) Option {
	return func(o *options) { o.cache = cache }
}

// WithInstanceConfig sets the instance level configuration.
func WithInstanceConfig(cfg Config) Option {
	return func(o *options) { o.config = &cfg }
}

// WithConfigResolver binds the resolver holding class overrides.
func WithConfigResolver(resolver *ConfigResolver) Option {
	return func(o *options) { o.resolver = resolver }
}

// WithLogger sets the logger. Nil keeps the no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithActivity attaches an emitter for fetch and cache events.
func WithActivity(emitter *activity.Emitter) Option {
	return func(o *options) { o.emitter = emitter }
}

// WithActivityHooks is WithActivity over an enabled emitter for hooks.
func WithActivityHooks(hooks activity.Hooks) Option {
	return WithActivity(activity.NewEmitter(hooks, activity.Config{Enabled: true}))
}

// WithEvaluator sets the evaluator used for filter and skip expressions.
func WithEvaluator(e query.Evaluator) Option {
	return func(o *options) { o.evaluator = e }
}

// WithParent sets the parent link collection at construction.
func WithParent(parent Dataset) Option {
	return func(o *options) { o.parent = parent }
}

// WithRequiredFlags declares the flags a leaf reads to produce a flag.
func WithRequiredFlags(fn func(flags.Flag) flags.Set) Option {
	return func(o *options) { o.required = fn }
}

// WithChildCheck restricts which datasets a collection accepts.
func WithChildCheck(check ChildCheck) Option {
	return func(o *options) { o.childCheck = check }
}

// WithKeepFirst selects which merge input wins on overlap. Defaults to true.
func WithKeepFirst(keepFirst bool) Option {
	return func(o *options) { o.keepFirst = keepFirst }
}

// WithDefaultConcatAxis sets the concat axis, 0 for rows and 1 for columns.
func WithDefaultConcatAxis(axis int) Option {
	return func(o *options) { o.concatAxis = axis }
}

// WithConcatLevelName names the level holding child names.
func WithConcatLevelName(level string) Option {
	return func(o *options) {
		if level != "" {
			o.concatLevel = level
		}
	}
}

// WithConcatTop places the child name level first (true, the default) or
// last.
func WithConcatTop(top bool) Option {
	return func(o *options) { o.concatBottom = !top }
}

// WithTranspose transposes concatenated results.
func WithTranspose(transpose bool) Option {
	return func(o *options) { o.transpose = transpose }
}

// WithSkip excludes children for which skip returns true from concatenation.
func WithSkip(skip func(Dataset) bool) Option {
	return func(o *options) { o.skip = skip }
}

// WithSkipExpr excludes children matching a boolean query over the record
// {"name", "kind", attributes...}.
func WithSkipExpr(expr string) Option {
	return func(o *options) { o.skipExpr = expr }
}

// WithAttributePolicy selects where comparison attributes come from.
func WithAttributePolicy(policy AttributePolicy) Option {
	return func(o *options) { o.policy = policy }
}

// WithDiffFormatter sets how non-numeric comparison deltas are rendered.
func WithDiffFormatter(formatter DiffFormatter) Option {
	return func(o *options) {
		if formatter != nil {
			o.formatter = formatter
		}
	}
}

// Extra keys read by the built-in strategies.
const (
	ExtraComparison         = "comparison"
	ExtraUnchangedAsMissing = "unchanged_as_missing"
	ExtraFillValue          = "fill_value"
	ExtraConcatAxis         = "concat_axis"
)

// FetchOption adjusts a single Fetch call.
type FetchOption func(*fetchCall)

type fetchCall struct {
	config any
	extras map[string]any
}

func applyFetchOptions(opts []FetchOption) fetchCall {
	var call fetchCall
	for _, opt := range opts {
		if opt != nil {
			opt(&call)
		}
	}
	return call
}

// WithConfig overrides configuration for one call. cfg may be nil, Config,
// *Config or a map with string keys; anything else fails with ErrConfigType.
func WithConfig(cfg any) FetchOption {
	return func(c *fetchCall) { c.config = cfg }
}

// WithExtra forwards one keying argument to the cache and the computation.
func WithExtra(key string, value any) FetchOption {
	return func(c *fetchCall) {
		if c.extras == nil {
			c.extras = map[string]any{}
		}
		c.extras[key] = value
	}
}

// WithExtras forwards several keying arguments.
func WithExtras(extras map[string]any) FetchOption {
	return func(c *fetchCall) {
		if len(extras) == 0 {
			return
		}
		if c.extras == nil {
			c.extras = make(map[string]any, len(extras))
		}
		maps.Copy(c.extras, extras)
	}
}

// WithComparison selects the comparison output mode.
func WithComparison(mode ComparisonMode) FetchOption {
	return WithExtra(ExtraComparison, string(mode))
}

// WithUnchangedAsMissing replaces unchanged comparison cells with missing
// values.
func WithUnchangedAsMissing(enabled bool) FetchOption {
	return WithExtra(ExtraUnchangedAsMissing, enabled)
}

// WithFillValue sets the value used for positions present on one comparison
// side only.
func WithFillValue(fill float64) FetchOption {
	return WithExtra(ExtraFillValue, fill)
}

// WithConcatAxis overrides the concat axis for one call.
func WithConcatAxis(axis int) FetchOption {
	return WithExtra(ExtraConcatAxis, axis)
}
