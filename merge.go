package datasets

import (
	"context"

	"github.com/goliatone/go-datasets/frame"
)

// MergeCollection reconciles fragmented children describing the same flags
// by combining their results. With keepFirst the earlier child wins where
// results overlap, otherwise the later one does.
type MergeCollection struct {
	*Collection
	keepFirst bool
}

// NewMergeCollection builds a merge collection. See WithKeepFirst.
func NewMergeCollection(children []Dataset, opts ...Option) (*MergeCollection, error) {
	o := applyOptions(opts)
	c, err := newCollection("MergeCollection", children, o)
	if err != nil {
		return nil, err
	}
	m := &MergeCollection{Collection: c, keepFirst: o.keepFirst}
	c.bind(m)
	return m, nil
}

// KeepFirst reports the overlap policy.
func (m *MergeCollection) KeepFirst() bool { return m.keepFirst }

func (m *MergeCollection) Compute(ctx context.Context, req Request) (*frame.Frame, error) {
	_, frames, err := m.fetchAll(ctx, req, nil)
	if err != nil {
		return nil, err
	}
	return frame.Combine(frames, m.keepFirst)
}
