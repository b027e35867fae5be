// Package economy provides the pure pricing model: building archetypes,
// rent, maintenance, valuation and loan amortisation.
package economy

import "fmt"

// TypeID identifies a building archetype.
type TypeID string

const (
	TypeGovernor TypeID = "landsh"
	TypeFunkis   TypeID = "funkis"
	TypeMillion  TypeID = "miljon"
	TypeNewBuild TypeID = "nyprod"
	TypeOldTown  TypeID = "gamlastan"
)

// Archetype holds the fixed economic constants of a building category.
type Archetype struct {
	ID              TypeID  `json:"id"`
	Name            string  `json:"name"`
	AreaPerUnit     float64 `json:"area_per_unit"`      // m² per apartment
	RentPerAreaYear float64 `json:"rent_per_area_year"` // currency per m² and year
	RentOverride    int64   `json:"rent_override,omitempty"`
	MaintPerUnit    int64   `json:"maint_per_unit"` // per apartment and month
	PriceMin        int64   `json:"price_min"`
	PriceMax        int64   `json:"price_max"`
	UnitsMin        int     `json:"units_min"`
	UnitsMax        int     `json:"units_max"`
	CentralMult     float64 `json:"central_mult"`
	SuburbMult      float64 `json:"suburb_mult"`
}

var archetypes = map[TypeID]Archetype{
	TypeGovernor: {ID: TypeGovernor, Name: "Governor's house", AreaPerUnit: 55, RentPerAreaYear: 1400, MaintPerUnit: 2000,
		PriceMin: 8_000_000, PriceMax: 15_000_000, UnitsMin: 6, UnitsMax: 18, CentralMult: 1.06, SuburbMult: 0.98},
	TypeFunkis: {ID: TypeFunkis, Name: "Functionalist", AreaPerUnit: 62, RentPerAreaYear: 1450, MaintPerUnit: 2300,
		PriceMin: 12_000_000, PriceMax: 20_000_000, UnitsMin: 8, UnitsMax: 24, CentralMult: 1.08, SuburbMult: 0.97},
	TypeMillion: {ID: TypeMillion, Name: "Million programme", AreaPerUnit: 70, RentPerAreaYear: 1350, MaintPerUnit: 2600,
		PriceMin: 25_000_000, PriceMax: 50_000_000, UnitsMin: 24, UnitsMax: 80, CentralMult: 1.03, SuburbMult: 0.96},
	TypeNewBuild: {ID: TypeNewBuild, Name: "New build", AreaPerUnit: 70, RentPerAreaYear: 1600, MaintPerUnit: 2900,
		PriceMin: 35_000_000, PriceMax: 80_000_000, UnitsMin: 20, UnitsMax: 60, CentralMult: 1.10, SuburbMult: 0.98},
	TypeOldTown: {ID: TypeOldTown, Name: "Old town", AreaPerUnit: 52, RentPerAreaYear: 1550, MaintPerUnit: 2700,
		PriceMin: 15_000_000, PriceMax: 30_000_000, UnitsMin: 6, UnitsMax: 20, CentralMult: 1.12, SuburbMult: 1.00},
}

// typeOrder fixes iteration order so random picks are reproducible.
var typeOrder = []TypeID{TypeGovernor, TypeFunkis, TypeMillion, TypeNewBuild, TypeOldTown}

// AllTypes returns every archetype id in a stable order.
func AllTypes() []TypeID {
	out := make([]TypeID, len(typeOrder))
	copy(out, typeOrder)
	return out
}

// Lookup returns the archetype for id.
func Lookup(id TypeID) (Archetype, bool) {
	a, ok := archetypes[id]
	return a, ok
}

// MustLookup returns the archetype for id and panics on an unknown id.
// Only used where the id came from AllTypes.
func MustLookup(id TypeID) Archetype {
	a, ok := archetypes[id]
	if !ok {
		panic(fmt.Sprintf("economy: unknown archetype %q", id))
	}
	return a
}

// LocationFactor is the rent multiplier for a central or suburban site.
func (a Archetype) LocationFactor(central bool) float64 {
	if central {
		return a.CentralMult
	}
	return a.SuburbMult
}

// Condition is the physical state of a building.
type Condition string

const (
	ConditionNew         Condition = "new"
	ConditionWorn        Condition = "worn"
	ConditionDilapidated Condition = "dilapidated"
)

// AllConditions lists conditions from best to worst.
func AllConditions() []Condition {
	return []Condition{ConditionNew, ConditionWorn, ConditionDilapidated}
}

// Factor scales price and rent by condition.
func (c Condition) Factor() float64 {
	switch c {
	case ConditionNew:
		return 1.0
	case ConditionWorn:
		return 0.85
	default:
		return 0.70
	}
}

// MaintenanceFactor scales upkeep by condition.
func (c Condition) MaintenanceFactor() float64 {
	switch c {
	case ConditionDilapidated:
		return 1.3
	case ConditionWorn:
		return 1.0
	default:
		return 0.8
	}
}

// Improved returns the condition one step better. New stays new.
func (c Condition) Improved() Condition {
	switch c {
	case ConditionDilapidated:
		return ConditionWorn
	default:
		return ConditionNew
	}
}

// Degraded returns the condition one step worse.
func (c Condition) Degraded() Condition {
	if c == ConditionNew {
		return ConditionWorn
	}
	return ConditionDilapidated
}

// Score maps the condition to a 0–100 bar.
func (c Condition) Score() int {
	switch c {
	case ConditionNew:
		return 100
	case ConditionWorn:
		return 60
	default:
		return 30
	}
}

// Valid reports whether c is one of the known conditions.
func (c Condition) Valid() bool {
	return c == ConditionNew || c == ConditionWorn || c == ConditionDilapidated
}
