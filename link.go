package datasets

import (
	"context"

	"go.uber.org/zap"

	"github.com/goliatone/go-datasets/flags"
	"github.com/goliatone/go-datasets/frame"
)

// linker marks datasets that may own children through SetParent.
type linker interface {
	linkCollection() *LinkCollection
}

// LinkCollection exposes the union of its children as one namespace and
// dispatches each flag to the first child accepting it.
type LinkCollection struct {
	*Collection
}

// NewLinkCollection builds a link collection and warns once when children
// share flags.
func NewLinkCollection(children []Dataset, opts ...Option) (*LinkCollection, error) {
	l, err := newLinkCollection("LinkCollection", children, applyOptions(opts))
	if err != nil {
		return nil, err
	}
	l.WarnOverlaps()
	return l, nil
}

func newLinkCollection(kind string, children []Dataset, o options) (*LinkCollection, error) {
	c, err := newCollection(kind, children, o)
	if err != nil {
		return nil, err
	}
	l := &LinkCollection{Collection: c}
	c.bind(l)
	return l, nil
}

func (l *LinkCollection) linkCollection() *LinkCollection { return l }

// Compute delegates to the first child accepting the flag.
func (l *LinkCollection) Compute(ctx context.Context, req Request) (*frame.Frame, error) {
	for _, child := range l.children {
		if child.FlagIsAccepted(req.Flag) {
			return child.Fetch(ctx, req.Flag, req.Forward()...)
		}
	}
	return nil, &LookupError{Collection: l.name, Flag: req.Flag}
}

// Overlaps lists the flags accepted by more than one child.
func (l *LinkCollection) Overlaps() flags.Set {
	seen := map[flags.Flag]int{}
	var all flags.Set
	for _, child := range l.children {
		for _, f := range child.AcceptedFlags().Slice() {
			seen[f]++
			all.Add(f)
		}
	}
	return all.Filter(func(f flags.Flag) bool { return seen[f] > 1 })
}

// WarnOverlaps logs one warning naming every flag served by several
// children. Only the first of them is ever used.
func (l *LinkCollection) WarnOverlaps() {
	overlaps := l.Overlaps()
	if overlaps.Len() == 0 {
		return
	}
	names := make([]string, 0, overlaps.Len())
	for _, f := range overlaps.Slice() {
		names = append(names, f.String())
	}
	l.logger.Warn("linked datasets share flags, only the first match is used",
		zap.Strings("flags", names))
}
