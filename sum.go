package datasets

import (
	"context"

	"github.com/goliatone/go-datasets/frame"
)

// SumCollection adds the numeric results of its accepting children.
type SumCollection struct {
	*Collection
}

func NewSumCollection(children []Dataset, opts ...Option) (*SumCollection, error) {
	c, err := newCollection("SumCollection", children, applyOptions(opts))
	if err != nil {
		return nil, err
	}
	s := &SumCollection{Collection: c}
	c.bind(s)
	return s, nil
}

func (s *SumCollection) Compute(ctx context.Context, req Request) (*frame.Frame, error) {
	names, frames, err := s.fetchAll(ctx, req, nil)
	if err != nil {
		return nil, err
	}
	for i, f := range frames {
		if !f.IsNumeric() {
			return nil, notImplemented("sum", "result of "+names[i]+" is not numeric", frame.ErrNotNumeric)
		}
	}
	return frame.Sum(frames)
}
