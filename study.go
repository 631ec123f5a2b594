package datasets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Study groups scenarios, their comparisons and a collection holding both.
type Study struct {
	Scenarios   *ConcatCollection
	Comparisons *ConcatCollection
	All         *ConcatCollection

	exportDir string
	opts      []Option
}

// ComparisonPair names a variation and a reference scenario.
type ComparisonPair struct {
	Variation string
	Reference string
}

// NewStudy builds the scenario collection "scenario", the comparison
// collection "comparison" built from pairs of scenario names, and the
// collection "scenarios_and_comparisons" over both under the level "type".
// opts apply to every collection and comparison.
func NewStudy(scenarios []Dataset, pairs []ComparisonPair, opts ...Option) (*Study, error) {
	s := &Study{opts: opts}
	var err error
	s.Scenarios, err = NewConcatCollection(scenarios, s.with(WithName("scenario"))...)
	if err != nil {
		return nil, err
	}
	comparisons := make([]*Comparison, 0, len(pairs))
	for _, pair := range pairs {
		c, err := s.newComparison(pair)
		if err != nil {
			return nil, err
		}
		comparisons = append(comparisons, c)
	}
	s.Comparisons, err = ComparisonConcat(comparisons, s.with(WithName("comparison"))...)
	if err != nil {
		return nil, err
	}
	s.All, err = NewConcatCollection([]Dataset{s.Scenarios, s.Comparisons},
		s.with(WithName("scenarios_and_comparisons"), WithConcatLevelName("type"))...)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Study) with(extra ...Option) []Option {
	return append(append([]Option(nil), s.opts...), extra...)
}

func (s *Study) newComparison(pair ComparisonPair) (*Comparison, error) {
	variation, err := s.Scenarios.Child(pair.Variation)
	if err != nil {
		return nil, err
	}
	reference, err := s.Scenarios.Child(pair.Reference)
	if err != nil {
		return nil, err
	}
	return NewComparison(variation, reference, s.opts...)
}

// AddScenario adds a scenario.
func (s *Study) AddScenario(ds Dataset) error {
	return s.Scenarios.AddChild(ds)
}

// AddComparison compares two scenarios already in the study.
func (s *Study) AddComparison(variation, reference string) (*Comparison, error) {
	c, err := s.newComparison(ComparisonPair{Variation: variation, Reference: reference})
	if err != nil {
		return nil, err
	}
	if err := s.Comparisons.AddChild(c); err != nil {
		return nil, err
	}
	return c, nil
}

// SetExportDir sets and creates the export directory.
func (s *Study) SetExportDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("datasets: export dir: %w", err)
	}
	s.exportDir = dir
	return nil
}

// ExportDir returns the export directory.
func (s *Study) ExportDir() string { return s.exportDir }

// ExportPath joins name onto the export directory.
func (s *Study) ExportPath(name string) (string, error) {
	if s.exportDir == "" {
		return "", errors.New("datasets: export dir must be set first")
	}
	return filepath.Join(s.exportDir, name), nil
}
