package datasets

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/goliatone/go-datasets/flags"
	"github.com/goliatone/go-datasets/frame"
	"github.com/goliatone/go-datasets/internal/hydrate"
	"github.com/goliatone/go-datasets/pkg/activity"
	"github.com/goliatone/go-datasets/query"
)

// Fetchable is the capability shared by leaves and collections.
type Fetchable interface {
	AcceptedFlags() flags.Set
	FlagIsAccepted(flag flags.Flag) bool
	RequiredFlags(flag flags.Flag) (flags.Set, error)
	Fetch(ctx context.Context, flag flags.Flag, opts ...FetchOption) (*frame.Frame, error)
}

// Dataset is a Fetchable with identity and metadata.
type Dataset interface {
	Fetchable
	Name() string
	Kind() string
	Attributes() map[string]any
	FlagIndex() *flags.Index
	Parent() (Dataset, error)
	SetParent(parent Dataset) error
}

// Request is what a Source receives for one fetch.
type Request struct {
	Flag   flags.Flag
	Config Config
	Extras map[string]any
}

// Extra returns the keying argument called key.
func (r Request) Extra(key string) (any, bool) {
	v, ok := r.Extras[key]
	return v, ok
}

// Forward returns the fetch options that hand this request to a child, minus
// the extras named in consumed.
func (r Request) Forward(consumed ...string) []FetchOption {
	extras := maps.Clone(r.Extras)
	for _, key := range consumed {
		delete(extras, key)
	}
	return []FetchOption{WithConfig(r.Config), WithExtras(extras)}
}

// Source computes the raw value of a flag.
type Source interface {
	Compute(ctx context.Context, req Request) (*frame.Frame, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, req Request) (*frame.Frame, error)

func (fn SourceFunc) Compute(ctx context.Context, req Request) (*frame.Frame, error) {
	return fn(ctx, req)
}

// Base implements the fetch protocol on top of a Source. Collections embed
// it and act as their own Source.
type Base struct {
	name       string
	kind       string
	accepted   flags.Set
	source     Source
	attributes map[string]any
	index      *flags.Index
	fallback   *flags.Index
	parent     Dataset
	cache      Cache
	config     *Config
	resolver   *ConfigResolver
	logger     *zap.Logger
	emitter    *activity.Emitter
	evaluator  query.Evaluator
	required   func(flags.Flag) flags.Set
	kpis       *KPICollection
	// outer is the embedding dataset handed to KPI definitions
	outer Dataset

	acceptedFn   func() flags.Set
	acceptsFn    func(flags.Flag) bool
	attributesFn func() map[string]any
	indexFn      func() (*flags.Index, bool)
}

var _ Dataset = (*Base)(nil)

// New builds a leaf dataset of kind that produces accepted through source.
func New(kind string, accepted flags.Set, source Source, opts ...Option) (*Base, error) {
	if source == nil {
		return nil, fmt.Errorf("datasets: %s: source must not be nil", kind)
	}
	return newBase(kind, accepted, source, applyOptions(opts))
}

func newBase(kind string, accepted flags.Set, source Source, o options) (*Base, error) {
	if o.kind != "" {
		kind = o.kind
	}
	name := o.name
	if name == "" {
		name = kind + "_" + uuid.NewString()[:8]
	}
	b := &Base{
		name:      name,
		kind:      kind,
		accepted:  accepted,
		source:    source,
		index:     o.index,
		cache:     o.cache,
		config:    o.config,
		resolver:  o.resolver,
		logger:    o.logger.With(zap.String("dataset", name), zap.String("kind", kind)),
		emitter:   o.emitter,
		evaluator: o.evaluator,
		required:  o.required,
		kpis:      &KPICollection{},
	}
	if b.evaluator == nil {
		b.evaluator = query.NewExprEvaluator(
			query.ExprWithProgramCache(query.NewMapProgramCache()),
			query.ExprWithFunctionRegistry(query.Builtins()),
		)
	}
	if err := b.SetAttributes(o.attributes); err != nil {
		return nil, err
	}
	if o.parent != nil {
		if err := b.SetParent(o.parent); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (b *Base) Name() string { return b.name }

func (b *Base) dataset() Dataset {
	if b.outer != nil {
		return b.outer
	}
	return b
}

func (b *Base) Kind() string { return b.kind }

// Logger returns the dataset logger.
func (b *Base) Logger() *zap.Logger { return b.logger }

// Evaluator returns the evaluator used for filter and skip expressions.
func (b *Base) Evaluator() query.Evaluator { return b.evaluator }

// Cache returns the bound cache, or nil.
func (b *Base) Cache() Cache { return b.cache }

func (b *Base) String() string { return b.name }

// AcceptedFlags returns the flags this dataset can produce.
func (b *Base) AcceptedFlags() flags.Set {
	if b.acceptedFn != nil {
		return b.acceptedFn()
	}
	return b.accepted.Union()
}

// FlagIsAccepted reports whether flag can be fetched.
func (b *Base) FlagIsAccepted(flag flags.Flag) bool {
	if b.acceptsFn != nil {
		return b.acceptsFn(flag)
	}
	return b.accepted.Contains(flag)
}

// AcceptedFlagsContaining filters the accepted flags by substring.
func (b *Base) AcceptedFlagsContaining(substr string, matchCase bool) flags.Set {
	return b.AcceptedFlags().Containing(substr, matchCase)
}

// CheckFlag fails with an UnacceptedFlagError when flag is not accepted.
func (b *Base) CheckFlag(flag flags.Flag) error {
	if b.FlagIsAccepted(flag) {
		return nil
	}
	return &UnacceptedFlagError{Dataset: b.name, Kind: b.kind, Flag: flag}
}

// RequiredFlags lists the flags read to produce flag.
func (b *Base) RequiredFlags(flag flags.Flag) (flags.Set, error) {
	if err := b.CheckFlag(flag); err != nil {
		return flags.Set{}, err
	}
	if b.required != nil {
		return b.required(flag), nil
	}
	return flags.NewSet(), nil
}

// Attributes returns a copy of the dataset attributes.
func (b *Base) Attributes() map[string]any {
	if b.attributesFn != nil {
		return b.attributesFn()
	}
	return maps.Clone(b.localAttributes())
}

func (b *Base) localAttributes() map[string]any {
	if b.attributes == nil {
		return map[string]any{}
	}
	return b.attributes
}

// SetAttribute stores a scalar attribute.
func (b *Base) SetAttribute(key string, value any) error {
	if !isScalar(value) {
		return fmt.Errorf("%w: %q is %T", ErrAttributeType, key, value)
	}
	if b.attributes == nil {
		b.attributes = map[string]any{}
	}
	b.attributes[key] = value
	return nil
}

// SetAttributes stores every entry of attributes or none of them.
func (b *Base) SetAttributes(attributes map[string]any) error {
	for key, value := range attributes {
		if !isScalar(value) {
			return fmt.Errorf("%w: %q is %T", ErrAttributeType, key, value)
		}
	}
	for key, value := range attributes {
		_ = b.SetAttribute(key, value)
	}
	return nil
}

func isScalar(v any) bool {
	if v == nil {
		return false
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// FlagIndex returns the bound index. Without one, a collection whose
// children share an index exposes it; otherwise an empty index is used that
// warns on first use.
func (b *Base) FlagIndex() *flags.Index {
	if b.index != nil {
		return b.index
	}
	if b.indexFn != nil {
		if shared, ok := b.indexFn(); ok {
			return shared
		}
	}
	if b.fallback == nil {
		b.fallback = flags.EmptyIndex(b.logger, b.name)
	}
	return b.fallback
}

// SetFlagIndex binds index.
func (b *Base) SetFlagIndex(index *flags.Index) { b.index = index }

// Parent returns the owning link collection.
func (b *Base) Parent() (Dataset, error) {
	if b.parent == nil {
		return nil, fmt.Errorf("%w: %s", ErrParentNotSet, b.name)
	}
	return b.parent, nil
}

// SetParent records the owning link collection. It can be set once.
func (b *Base) SetParent(parent Dataset) error {
	if _, ok := parent.(linker); !ok {
		return fmt.Errorf("%w: got %T", ErrParentType, parent)
	}
	if b.parent != nil {
		if b.parent == parent {
			return nil
		}
		return fmt.Errorf("%w: %s", ErrParentAlreadySet, b.name)
	}
	b.parent = parent
	return nil
}

// InstanceConfig returns a copy of the instance configuration.
func (b *Base) InstanceConfig() (Config, bool) {
	if b.config == nil {
		return Config{}, false
	}
	return b.config.Merge(Config{}), true
}

// SetInstanceConfig replaces the instance configuration.
func (b *Base) SetInstanceConfig(cfg Config) { b.config = &cfg }

// UpdateInstanceConfig merges values into the instance configuration.
func (b *Base) UpdateInstanceConfig(values map[string]any) error {
	cfg, err := decodeConfigMap(b.hydrateContext(), values)
	if err != nil {
		return err
	}
	current, _ := b.InstanceConfig()
	merged := current.Merge(cfg)
	b.config = &merged
	return nil
}

// EffectiveConfig resolves defaults, class override, instance config and the
// call override, later layers winning.
func (b *Base) EffectiveConfig(call any) (Config, error) {
	override, err := parseConfig(b.hydrateContext(), call)
	if err != nil {
		return Config{}, err
	}
	return b.resolver.Effective(b.kind, b.config, override)
}

// ExplainConfig traces which scope supplies field for a call override.
func (b *Base) ExplainConfig(call any, field string) (Trace, error) {
	override, err := parseConfig(b.hydrateContext(), call)
	if err != nil {
		return Trace{}, err
	}
	return b.resolver.Explain(b.kind, b.config, override, field)
}

func (b *Base) hydrateContext() hydrate.Context {
	return hydrate.Context{Dataset: b.name, Kind: b.kind}
}

// Fetch validates flag, resolves the effective configuration, serves the
// cache when fresh and otherwise computes, post-processes and caches the
// value. The result never shares storage with the cache.
func (b *Base) Fetch(ctx context.Context, flag flags.Flag, opts ...FetchOption) (*frame.Frame, error) {
	if err := b.CheckFlag(flag); err != nil {
		return nil, err
	}
	call := applyFetchOptions(opts)
	cfg, err := b.EffectiveConfig(call.config)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	key := CacheKey{Dataset: b.name, Flag: flag, Config: cfg, Extras: call.extras}
	useCache := b.cache != nil && cfg.CacheEnabled()
	if useCache {
		cached, hit, err := b.readCache(ctx, key)
		if err != nil {
			return nil, err
		}
		if hit {
			b.emit(ctx, activity.BuildCacheHitEvent(b.eventInput(flag, key, cached, start)))
			return cached.Copy(), nil
		}
	}

	raw, err := b.source.Compute(ctx, Request{Flag: flag, Config: cfg, Extras: maps.Clone(call.extras)})
	if err != nil {
		return nil, err
	}
	if raw == nil {
		raw = frame.Empty()
	}
	data := b.postProcess(flag, raw, cfg)

	if useCache {
		if err := b.cache.Write(ctx, key, data.Copy()); err != nil {
			return nil, fmt.Errorf("datasets: cache write %s: %w", key.ID(), err)
		}
		b.logger.Debug("cache written", zap.String("flag", flag.String()), zap.String("key", key.ID()))
		b.emit(ctx, activity.BuildCacheWrittenEvent(b.eventInput(flag, key, data, start)))
	}
	b.emit(ctx, activity.BuildFetchedEvent(b.eventInput(flag, key, data, start)))
	return data.Copy(), nil
}

func (b *Base) readCache(ctx context.Context, key CacheKey) (*frame.Frame, bool, error) {
	fresh, err := b.cache.IsFresh(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("datasets: cache lookup %s: %w", key.ID(), err)
	}
	if !fresh {
		b.logger.Debug("cache miss", zap.String("flag", key.Flag.String()))
		return nil, false, nil
	}
	cached, err := b.cache.Read(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("datasets: cache read %s: %w", key.ID(), err)
	}
	b.logger.Debug("cache hit", zap.String("flag", key.Flag.String()))
	return cached, true, nil
}

func (b *Base) postProcess(flag flags.Flag, data *frame.Frame, cfg Config) *frame.Frame {
	if cfg.DropsDuplicateIndex() && data.HasDuplicateIndex() {
		var dropped int
		data, dropped = data.DropDuplicateIndex()
		b.logger.Info("dropped duplicated index labels, keeping the first occurrence",
			zap.String("flag", flag.String()), zap.Int("duplicates", dropped))
	}
	if cfg.SortsTimeIndex() && data.IsTimeIndexed() {
		data = data.SortIndex()
	}
	return data
}

func (b *Base) eventInput(flag flags.Flag, key CacheKey, data *frame.Frame, start time.Time) activity.FetchEventInput {
	return activity.FetchEventInput{
		Dataset:  b.name,
		Kind:     b.kind,
		Flag:     flag.String(),
		CacheKey: key.ID(),
		Rows:     data.Len(),
		Columns:  data.Width(),
		Duration: time.Since(start),
	}
}

func (b *Base) emit(ctx context.Context, event activity.Event) {
	if !b.emitter.Enabled() {
		return
	}
	if err := b.emitter.Emit(ctx, event); err != nil {
		b.logger.Warn("activity hook failed", zap.String("verb", event.Verb), zap.Error(err))
	}
}

// FetchMany fetches every flag and concatenates the results along axis under
// a "variable" level keyed by flag.
func (b *Base) FetchMany(ctx context.Context, flagList []flags.Flag, axis int, opts ...FetchOption) (*frame.Frame, error) {
	return fetchMany(ctx, b, flagList, axis, opts)
}

func fetchMany(ctx context.Context, ds Fetchable, flagList []flags.Flag, axis int, opts []FetchOption) (*frame.Frame, error) {
	keys := make([]string, 0, len(flagList))
	frames := make([]*frame.Frame, 0, len(flagList))
	for _, flag := range flagList {
		f, err := ds.Fetch(ctx, flag, opts...)
		if err != nil {
			return nil, err
		}
		keys = append(keys, flag.String())
		frames = append(frames, f)
	}
	return frame.Concat(keys, frames, axis, "variable")
}

// FilterSpec narrows and aggregates a fetched flag through its linked model
// table. Query is evaluated against each model row; GroupBy names a model
// column whose values group the data columns; Agg defaults to sum.
type FilterSpec struct {
	Query   string
	GroupBy string
	Agg     frame.Aggregation
}

// FetchFilterGroupByAgg fetches flag and its linked model, keeps the data
// columns whose model row satisfies spec.Query and aggregates them by the
// model column spec.GroupBy.
func (b *Base) FetchFilterGroupByAgg(ctx context.Context, flag flags.Flag, spec FilterSpec, opts ...FetchOption) (*frame.Frame, error) {
	modelFlag, err := b.FlagIndex().LinkedModelFlag(flag)
	if err != nil {
		return nil, fmt.Errorf("datasets: %s: no model flag for %q: %w", b.name, flag, err)
	}
	if modelFlag == "" {
		return nil, fmt.Errorf("datasets: %s: no model flag for %q: %w", b.name, flag, flags.ErrUnresolved)
	}
	data, err := b.Fetch(ctx, flag, opts...)
	if err != nil {
		return nil, err
	}
	model, err := b.Fetch(ctx, modelFlag, opts...)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(spec.Query) != "" {
		keep, err := query.Predicate(b.evaluator, spec.Query)
		if err != nil {
			return nil, err
		}
		model, err = model.FilterRows(func(_ int, record map[string]any) (bool, error) {
			return keep(query.Context{Record: record, Dataset: b.name})
		})
		if err != nil {
			return nil, err
		}
		data = data.SelectColumns(model.Index().Labels())
	}

	switch {
	case spec.GroupBy != "":
		agg := spec.Agg
		if agg == "" {
			agg = frame.AggSum
		}
		property := frame.L(spec.GroupBy)
		data, err = data.GroupColumns(spec.GroupBy, func(column frame.Label) (any, bool) {
			v, ok := model.Lookup(column, property)
			return v, ok && !frame.IsMissing(v)
		}, agg)
		if err != nil {
			if errors.Is(err, frame.ErrNotNumeric) {
				return nil, notImplemented("group by aggregation", string(agg)+" over non-numeric data", err)
			}
			return nil, err
		}
	case spec.Agg != "":
		b.logger.Warn("aggregation requested without group by, skipping",
			zap.String("flag", flag.String()), zap.String("agg", string(spec.Agg)))
	}
	return data, nil
}
