package flags

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

var (
	ErrUnresolved = errors.New("flags: cannot resolve")
	ErrNotModel   = errors.New("flags: flag is not a model flag")
	ErrEmptyFlag  = errors.New("flags: flag string must not be empty")
)

// ResolveError reports a failed lookup with the operation and key involved.
type ResolveError struct {
	Op  string
	Key string
	Err error
}

func (e *ResolveError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("flags: %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *ResolveError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func unresolved(op, key string) error {
	return &ResolveError{Op: op, Key: key, Err: ErrUnresolved}
}

// Entry is the metadata recorded for one flag.
type Entry struct {
	Flag              Flag
	LinkedModelFlag   Flag
	ItemType          ItemType
	VisualizationType VisualizationType
	TopologyType      TopologyType
	Unit              Unit
	MembershipColumn  string
}

// Resolver infers metadata for flags that have no explicit entry.
type Resolver interface {
	FlagFromString(s string) (Flag, error)
	LinkedModelFlag(f Flag) (Flag, error)
	ItemType(f Flag) (ItemType, error)
	VisualizationType(f Flag) (VisualizationType, error)
	TopologyType(f Flag) (TopologyType, error)
	Unit(f Flag) (Unit, error)
	LinkedModelFlagForMembershipColumn(column string) (Flag, error)
	MembershipColumnName(model Flag) (string, error)
}

// Index answers metadata lookups from explicit entries first and falls back
// to its Resolver.
type Index struct {
	explicit map[Flag]Entry
	order    []Flag
	resolver Resolver
	logger   *zap.Logger
	notice   string
	once     sync.Once
}

// IndexOption configures an Index.
type IndexOption func(*Index)

// WithIndexLogger sets the logger used for index diagnostics.
func WithIndexLogger(logger *zap.Logger) IndexOption {
	return func(ix *Index) {
		if logger != nil {
			ix.logger = logger
		}
	}
}

// WithEntries registers explicit entries at construction.
func WithEntries(entries ...Entry) IndexOption {
	return func(ix *Index) {
		for _, e := range entries {
			ix.Register(e)
		}
	}
}

// NewIndex builds an index on top of resolver. A nil resolver behaves like
// EmptyResolver.
func NewIndex(resolver Resolver, opts ...IndexOption) *Index {
	if resolver == nil {
		resolver = EmptyResolver{}
	}
	ix := &Index{
		explicit: make(map[Flag]Entry),
		resolver: resolver,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(ix)
		}
	}
	return ix
}

// EmptyIndex is the fallback bound to datasets without an index. It answers
// every lookup with the Other variants and NaU, and warns once on first use.
func EmptyIndex(logger *zap.Logger, owner string) *Index {
	ix := NewIndex(EmptyResolver{}, WithIndexLogger(logger))
	ix.notice = owner
	return ix
}

// IsEmpty reports whether ix is an EmptyIndex fallback.
func (ix *Index) IsEmpty() bool { return ix.notice != "" }

func (ix *Index) touch() {
	if ix.notice == "" {
		return
	}
	ix.once.Do(func() {
		ix.logger.Warn("no flag index bound, using empty index",
			zap.String("dataset", ix.notice))
	})
}

// Register stores e, replacing any previous entry for e.Flag.
func (ix *Index) Register(e Entry) {
	if _, ok := ix.explicit[e.Flag]; !ok {
		ix.order = append(ix.order, e.Flag)
	}
	ix.explicit[e.Flag] = e
}

// Registered returns the explicitly registered flags in registration order.
func (ix *Index) Registered() []Flag {
	return append([]Flag(nil), ix.order...)
}

// Entry returns the explicit entry for f, or one assembled from the resolver.
// A linked model flag the resolver cannot infer is left empty.
func (ix *Index) Entry(f Flag) (Entry, error) {
	ix.touch()
	if e, ok := ix.explicit[f]; ok {
		return e, nil
	}
	e := Entry{Flag: f}
	var err error
	if e.LinkedModelFlag, err = ix.resolver.LinkedModelFlag(f); err != nil && !errors.Is(err, ErrUnresolved) {
		return Entry{}, err
	}
	if e.ItemType, err = ix.resolver.ItemType(f); err != nil {
		return Entry{}, err
	}
	if e.VisualizationType, err = ix.resolver.VisualizationType(f); err != nil {
		return Entry{}, err
	}
	if e.TopologyType, err = ix.resolver.TopologyType(f); err != nil {
		return Entry{}, err
	}
	if e.Unit, err = ix.resolver.Unit(f); err != nil {
		return Entry{}, err
	}
	return e, nil
}

// FlagFromString parses a flag string through the resolver.
func (ix *Index) FlagFromString(s string) (Flag, error) {
	ix.touch()
	if s == "" {
		return "", ErrEmptyFlag
	}
	return ix.resolver.FlagFromString(s)
}

// FlagFromPath parses an accumulated dotted path.
func (ix *Index) FlagFromPath(p Path) (Flag, error) {
	return ix.FlagFromString(p.String())
}

// LinkedModelFlag returns the model flag whose objects f describes.
func (ix *Index) LinkedModelFlag(f Flag) (Flag, error) {
	ix.touch()
	if e, ok := ix.explicit[f]; ok {
		return e.LinkedModelFlag, nil
	}
	return ix.resolver.LinkedModelFlag(f)
}

// ItemType returns the item category of f.
func (ix *Index) ItemType(f Flag) (ItemType, error) {
	ix.touch()
	if e, ok := ix.explicit[f]; ok {
		return e.ItemType, nil
	}
	return ix.resolver.ItemType(f)
}

// VisualizationType returns the drawing hint of f.
func (ix *Index) VisualizationType(f Flag) (VisualizationType, error) {
	ix.touch()
	if e, ok := ix.explicit[f]; ok {
		return e.VisualizationType, nil
	}
	return ix.resolver.VisualizationType(f)
}

// TopologyType returns the network role of f.
func (ix *Index) TopologyType(f Flag) (TopologyType, error) {
	ix.touch()
	if e, ok := ix.explicit[f]; ok {
		return e.TopologyType, nil
	}
	return ix.resolver.TopologyType(f)
}

// Unit returns the unit of f. Explicit entries without a unit report
// MissingUnit.
func (ix *Index) Unit(f Flag) (Unit, error) {
	ix.touch()
	if e, ok := ix.explicit[f]; ok {
		if e.Unit.IsZero() {
			return MissingUnit, nil
		}
		return e.Unit, nil
	}
	return ix.resolver.Unit(f)
}

// QuantityType derives the quantity type of f from its unit.
func (ix *Index) QuantityType(f Flag) (QuantityType, error) {
	u, err := ix.Unit(f)
	if err != nil {
		return "", err
	}
	return u.QuantityType()
}

// LinkedModelFlagForMembershipColumn returns the model flag a model column
// such as "node" points to.
func (ix *Index) LinkedModelFlagForMembershipColumn(column string) (Flag, error) {
	ix.touch()
	for _, f := range ix.order {
		if e := ix.explicit[f]; e.MembershipColumn != "" && e.MembershipColumn == column {
			return e.Flag, nil
		}
	}
	return ix.resolver.LinkedModelFlagForMembershipColumn(column)
}

// ColumnDescribesMembership reports whether column links to another model.
func (ix *Index) ColumnDescribesMembership(column string) bool {
	_, err := ix.LinkedModelFlagForMembershipColumn(column)
	return err == nil
}

// MembershipColumnName returns the column other models use to reference
// objects of model. Only model flags qualify.
func (ix *Index) MembershipColumnName(model Flag) (string, error) {
	ix.touch()
	if e, ok := ix.explicit[model]; ok && e.MembershipColumn != "" {
		return e.MembershipColumn, nil
	}
	t, err := ix.ItemType(model)
	if err != nil {
		return "", err
	}
	if t != ItemModel {
		return "", &ResolveError{Op: "membership column", Key: model.String(), Err: ErrNotModel}
	}
	return ix.resolver.MembershipColumnName(model)
}

// TimeSeriesFlagsFor returns the time series flags among candidates whose
// linked model flag is model.
func (ix *Index) TimeSeriesFlagsFor(model Flag, candidates Set) Set {
	return candidates.Filter(func(f Flag) bool {
		t, err := ix.ItemType(f)
		if err != nil || t != ItemTimeSeries {
			return false
		}
		linked, err := ix.LinkedModelFlag(f)
		return err == nil && linked == model
	})
}

// EmptyResolver resolves nothing beyond the Other variants and NaU.
type EmptyResolver struct{}

var _ Resolver = EmptyResolver{}

func (EmptyResolver) FlagFromString(s string) (Flag, error) { return Flag(s), nil }

func (EmptyResolver) LinkedModelFlag(f Flag) (Flag, error) {
	return "", unresolved("linked model flag", f.String())
}

func (EmptyResolver) ItemType(Flag) (ItemType, error) { return ItemOther, nil }

func (EmptyResolver) VisualizationType(Flag) (VisualizationType, error) {
	return VisualizationOther, nil
}

func (EmptyResolver) TopologyType(Flag) (TopologyType, error) { return TopologyOther, nil }

func (EmptyResolver) Unit(Flag) (Unit, error) { return NaU, nil }

func (EmptyResolver) LinkedModelFlagForMembershipColumn(column string) (Flag, error) {
	return "", unresolved("membership column", column)
}

func (EmptyResolver) MembershipColumnName(model Flag) (string, error) {
	return "", unresolved("membership column name", model.String())
}
