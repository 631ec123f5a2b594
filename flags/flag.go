// Package flags names the quantities a dataset can produce and describes them
// through a metadata registry.
package flags

import (
	"slices"
	"strings"
)

// Flag identifies a requestable quantity, e.g. "Generator.p_nom_opt".
type Flag string

func (f Flag) String() string { return string(f) }

// Set is an insertion-ordered set of flags.
type Set struct {
	order []Flag
	index map[Flag]struct{}
}

// NewSet builds a set from fs, ignoring repeats.
func NewSet(fs ...Flag) Set {
	var s Set
	s.Add(fs...)
	return s
}

// Add appends flags not yet present.
func (s *Set) Add(fs ...Flag) {
	if s.index == nil {
		s.index = make(map[Flag]struct{}, len(fs))
	}
	for _, f := range fs {
		if _, ok := s.index[f]; ok {
			continue
		}
		s.index[f] = struct{}{}
		s.order = append(s.order, f)
	}
}

// Contains reports membership.
func (s Set) Contains(f Flag) bool {
	_, ok := s.index[f]
	return ok
}

// Len returns the number of flags.
func (s Set) Len() int { return len(s.order) }

// Slice returns the flags in insertion order.
func (s Set) Slice() []Flag { return slices.Clone(s.order) }

// Union returns s followed by the flags of others that s lacks.
func (s Set) Union(others ...Set) Set {
	out := NewSet(s.order...)
	for _, o := range others {
		out.Add(o.order...)
	}
	return out
}

// Intersect keeps the flags of s that other also holds.
func (s Set) Intersect(other Set) Set {
	var out Set
	for _, f := range s.order {
		if other.Contains(f) {
			out.Add(f)
		}
	}
	return out
}

// Filter keeps the flags for which keep returns true.
func (s Set) Filter(keep func(Flag) bool) Set {
	var out Set
	for _, f := range s.order {
		if keep(f) {
			out.Add(f)
		}
	}
	return out
}

// Containing keeps flags whose string form contains substr.
func (s Set) Containing(substr string, matchCase bool) Set {
	if !matchCase {
		substr = strings.ToLower(substr)
	}
	return s.Filter(func(f Flag) bool {
		name := f.String()
		if !matchCase {
			name = strings.ToLower(name)
		}
		return strings.Contains(name, substr)
	})
}

// Path accumulates dotted attribute access into a flag string.
//
//	flags.P("Generator").Dot("p_nom_opt").Flag() // "Generator.p_nom_opt"
type Path struct {
	parts []string
}

// P starts a path.
func P(parts ...string) Path {
	return Path{parts: slices.Clone(parts)}
}

// Dot returns a new path extended by name.
func (p Path) Dot(name string) Path {
	return Path{parts: append(slices.Clone(p.parts), name)}
}

func (p Path) String() string { return strings.Join(p.parts, ".") }

// Flag returns the accumulated path as a flag without registry parsing.
func (p Path) Flag() Flag { return Flag(p.String()) }
