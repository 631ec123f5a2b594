package flags

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrUnknownUnit    = errors.New("flags: unit not registered")
	ErrNoQuantityType = errors.New("flags: no quantity type for unit")
)

// Unit is a physical unit expressed as a multiple of its base unit.
type Unit struct {
	Name  string
	Base  string
	Scale float64
}

func (u Unit) String() string { return u.Name }

// IsZero reports whether u was never set.
func (u Unit) IsZero() bool { return u.Name == "" }

// SameBase reports whether u and other convert into each other.
func (u Unit) SameBase(other Unit) bool { return u.Base != "" && u.Base == other.Base }

// QuantityType derives intensive or extensive behaviour from the base unit.
func (u Unit) QuantityType() (QuantityType, error) {
	switch u.Base {
	case "W", "EUR_per_Wh", "percent_base", "per_unit":
		return Intensive, nil
	case "Wh", "EUR", "MTU":
		return Extensive, nil
	}
	return "", fmt.Errorf("%w: %s", ErrNoQuantityType, u.Name)
}

func unit(name, base string, scale float64) Unit {
	u := Unit{Name: name, Base: base, Scale: scale}
	units[name] = u
	return u
}

var units = map[string]Unit{}

var (
	Wh  = unit("Wh", "Wh", 1)
	KWh = unit("kWh", "Wh", 1e3)
	MWh = unit("MWh", "Wh", 1e6)
	GWh = unit("GWh", "Wh", 1e9)
	TWh = unit("TWh", "Wh", 1e12)

	W  = unit("W", "W", 1)
	KW = unit("kW", "W", 1e3)
	MW = unit("MW", "W", 1e6)
	GW = unit("GW", "W", 1e9)
	TW = unit("TW", "W", 1e12)

	WPerMin   = unit("W_per_min", "W_per_min", 1)
	MWPerMin  = unit("MW_per_min", "W_per_min", 1e6)
	MWPerHour = unit("MW_per_hour", "W_per_min", 1e6/60)

	EUR  = unit("EUR", "EUR", 1)
	KEUR = unit("kEUR", "EUR", 1e3)
	MEUR = unit("MEUR", "EUR", 1e6)
	BEUR = unit("BEUR", "EUR", 1e9)
	TEUR = unit("TEUR", "EUR", 1e12)

	EURPerW  = unit("EUR_per_W", "EUR_per_W", 1)
	EURPerMW = unit("EUR_per_MW", "EUR_per_W", 1e-6)

	EURPerWh  = unit("EUR_per_Wh", "EUR_per_Wh", 1)
	EURPerMWh = unit("EUR_per_MWh", "EUR_per_Wh", 1e-6)

	PercentBase = unit("percent_base", "percent_base", 1)
	Percent     = unit("percent", "percent_base", 1)
	PerUnit     = unit("per_unit", "per_unit", 1)
	MTU         = unit("MTU", "MTU", 1)

	// NaU marks quantities without physical meaning.
	NaU = unit("NaU", "", 1)
	// MissingUnit marks quantities whose unit is unknown.
	MissingUnit = unit("MissingUnit", "", 1)
)

// LookupUnit returns the registered unit called name.
func LookupUnit(name string) (Unit, error) {
	u, ok := units[name]
	if !ok {
		return Unit{}, fmt.Errorf("%w: %q", ErrUnknownUnit, name)
	}
	return u, nil
}

// UnitNames returns every registered unit name sorted alphabetically.
func UnitNames() []string {
	names := make([]string, 0, len(units))
	for name := range units {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
