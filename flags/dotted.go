package flags

import (
	"maps"
	"slices"
	"strings"
)

// DottedResolver infers metadata from "<Class>.<attribute>" flags.
//
// "<Class>.Model" is the model table of a class. Attributes of a class whose
// name ends in TimeSeriesSuffix ("buses_t.marginal_price"), or that appear in
// TimeSeriesAttributes, are time series linked to the class model. Every other
// attribute is Other and still links to the class model.
type DottedResolver struct {
	ModelAttribute       string
	TimeSeriesSuffix     string
	TimeSeriesAttributes map[string]bool
	Units                map[Flag]Unit
	Topology             map[string]TopologyType
	Visualization        map[string]VisualizationType
	// Memberships maps a model column such as "node" to the class it references.
	Memberships map[string]string
}

var _ Resolver = (*DottedResolver)(nil)

func (r *DottedResolver) model() string {
	if r.ModelAttribute == "" {
		return "Model"
	}
	return r.ModelAttribute
}

func (r *DottedResolver) split(f Flag) (class, attr string, ok bool) {
	class, attr, ok = strings.Cut(f.String(), ".")
	return class, attr, ok && class != "" && attr != ""
}

func (r *DottedResolver) modelClass(class string) string {
	if r.TimeSeriesSuffix != "" {
		return strings.TrimSuffix(class, r.TimeSeriesSuffix)
	}
	return class
}

// FlagFromString accepts any "<Class>.<attribute>" string.
func (r *DottedResolver) FlagFromString(s string) (Flag, error) {
	f := Flag(strings.TrimSpace(s))
	if _, _, ok := r.split(f); !ok {
		return "", unresolved("flag", s)
	}
	return f, nil
}

func (r *DottedResolver) LinkedModelFlag(f Flag) (Flag, error) {
	class, _, ok := r.split(f)
	if !ok {
		return "", unresolved("linked model flag", f.String())
	}
	return Flag(r.modelClass(class) + "." + r.model()), nil
}

func (r *DottedResolver) ItemType(f Flag) (ItemType, error) {
	class, attr, ok := r.split(f)
	switch {
	case !ok:
		return ItemOther, nil
	case attr == r.model():
		return ItemModel, nil
	case r.TimeSeriesSuffix != "" && strings.HasSuffix(class, r.TimeSeriesSuffix):
		return ItemTimeSeries, nil
	case r.TimeSeriesAttributes[attr]:
		return ItemTimeSeries, nil
	}
	return ItemOther, nil
}

func (r *DottedResolver) VisualizationType(f Flag) (VisualizationType, error) {
	class, _, _ := r.split(f)
	if v, ok := r.Visualization[r.modelClass(class)]; ok {
		return v, nil
	}
	return VisualizationOther, nil
}

func (r *DottedResolver) TopologyType(f Flag) (TopologyType, error) {
	class, _, _ := r.split(f)
	if t, ok := r.Topology[r.modelClass(class)]; ok {
		return t, nil
	}
	return TopologyOther, nil
}

func (r *DottedResolver) Unit(f Flag) (Unit, error) {
	if u, ok := r.Units[f]; ok {
		return u, nil
	}
	return MissingUnit, nil
}

func (r *DottedResolver) LinkedModelFlagForMembershipColumn(column string) (Flag, error) {
	class, ok := r.Memberships[column]
	if !ok {
		// several columns can differ only in case; the first in sorted order wins
		for _, col := range slices.Sorted(maps.Keys(r.Memberships)) {
			if strings.EqualFold(col, column) {
				class, ok = r.Memberships[col], true
				break
			}
		}
	}
	if !ok {
		return "", unresolved("membership column", column)
	}
	return Flag(class + "." + r.model()), nil
}

func (r *DottedResolver) MembershipColumnName(model Flag) (string, error) {
	class, _, _ := r.split(model)
	var found []string
	for col, c := range r.Memberships {
		if c == class {
			found = append(found, col)
		}
	}
	if len(found) == 0 {
		return "", unresolved("membership column name", model.String())
	}
	// several columns can point at one class; pick deterministically
	best := found[0]
	for _, col := range found[1:] {
		if col < best {
			best = col
		}
	}
	return best, nil
}
