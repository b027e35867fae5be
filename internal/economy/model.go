package economy

import (
	"math"

	"github.com/talgya/tapajos/internal/entropy"
)

// Asset carries every attribute the pricing model reads from a building.
type Asset struct {
	Type      TypeID    `json:"type"`
	Condition Condition `json:"condition"`
	Central   bool      `json:"central"`
	Units     int       `json:"units"`

	MaintenanceMultiplier float64 `json:"maintenance_multiplier"`
	RentBoost             float64 `json:"rent_boost"`
	ValueBoost            float64 `json:"value_boost"`

	// Purchase-time snapshot used to normalise valuation.
	BasePrice       int64     `json:"base_price"`
	BaseCondition   Condition `json:"base_condition"`
	BaseMarketIndex float64   `json:"base_market_index"`
	BaseUnits       int       `json:"base_units"`
}

// Round rounds to the nearest integer currency unit, halves rounding up.
func Round(x float64) int64 {
	return int64(math.Floor(x + 0.5))
}

// CentralityFactor scales the purchase price for location.
func CentralityFactor(central bool) float64 {
	if central {
		return 1.2
	}
	return 0.9
}

// PriceOf draws an asking price for a new offer.
func PriceOf(src entropy.Source, id TypeID, cond Condition, central bool, index float64) int64 {
	a := MustLookup(id)
	base := float64(a.PriceMin) + src.Float()*float64(a.PriceMax-a.PriceMin)
	return Round(base * cond.Factor() * CentralityFactor(central) * index)
}

// referencePrice is the deterministic stand-in when no purchase basis exists.
func referencePrice(a Archetype, cond Condition, central bool, index float64) int64 {
	mid := float64(a.PriceMin+a.PriceMax) / 2
	return Round(mid * cond.Factor() * CentralityFactor(central) * index)
}

// MonthlyRentPerUnit is the base monthly rent of one apartment.
func MonthlyRentPerUnit(a Archetype) int64 {
	if a.RentOverride > 0 {
		return a.RentOverride
	}
	return Round(a.AreaPerUnit * a.RentPerAreaYear / 12)
}

func (as Asset) maintenanceMultiplier() float64 {
	if as.MaintenanceMultiplier <= 0 {
		return 1
	}
	return as.MaintenanceMultiplier
}

// EffectiveRent is the building's monthly gross rent.
func EffectiveRent(as Asset) int64 {
	a := MustLookup(as.Type)
	perUnit := float64(MonthlyRentPerUnit(a))
	return Round(perUnit * as.Condition.Factor() * a.LocationFactor(as.Central) * (1 + as.RentBoost) * float64(as.Units))
}

// EffectiveMaintenance is the building's monthly upkeep.
func EffectiveMaintenance(as Asset) int64 {
	a := MustLookup(as.Type)
	mult := as.maintenanceMultiplier() * as.Condition.MaintenanceFactor()
	return Round(float64(a.MaintPerUnit) * mult * float64(as.Units))
}

// Valuation prices a building as base value plus capitalised energy savings
// plus capitalised net cash flow of units added since purchase.
// It is deterministic for fixed inputs.
func Valuation(as Asset, m Market) int64 {
	return BaseValue(as, m) + EnergyUplift(as, m) + UnitUplift(as, m)
}

// BaseValue adjusts the purchase basis for condition and market movement.
func BaseValue(as Asset, m Market) int64 {
	a := MustLookup(as.Type)
	basis := as.BasePrice
	if basis <= 0 {
		basis = referencePrice(a, as.Condition, as.Central, m.Index)
	}
	baseCond := as.BaseCondition
	if !baseCond.Valid() {
		baseCond = as.Condition
	}
	baseIndex := as.BaseMarketIndex
	if baseIndex <= 0 {
		baseIndex = 1.0
	}

	fCond := as.Condition.Factor() / baseCond.Factor()
	fMkt := m.Index / baseIndex
	v := float64(basis) * fCond * fMkt * (1 + as.ValueBoost)
	if v < 0 {
		return 0
	}
	return Round(v)
}

// EnergyUplift capitalises the yearly maintenance saved by efficiency work.
func EnergyUplift(as Asset, m Market) int64 {
	a := MustLookup(as.Type)
	baseAnnual := float64(a.MaintPerUnit) * float64(as.Units) * as.Condition.MaintenanceFactor() * 12
	withEnergy := baseAnnual * as.maintenanceMultiplier()
	savings := math.Max(0, baseAnnual-withEnergy)
	return Round(savings / m.capRate())
}

// UnitUplift capitalises the net yearly cash flow of units above baseline.
func UnitUplift(as Asset, m Market) int64 {
	a := MustLookup(as.Type)
	baseUnits := as.BaseUnits
	if baseUnits <= 0 {
		baseUnits = as.Units
	}
	extra := math.Max(0, float64(as.Units-baseUnits))

	perUnit := float64(MonthlyRentPerUnit(a))
	annualRent := perUnit * (1 + as.RentBoost) * as.Condition.Factor() * a.LocationFactor(as.Central) * 12
	annualMaint := float64(a.MaintPerUnit) * as.maintenanceMultiplier() * as.Condition.MaintenanceFactor() * 12
	net := math.Max(0, (annualRent-annualMaint)*extra)
	return Round(net / m.capRate())
}

// AnnuityPayment is the fixed yearly payment amortising principal over term
// years at rate. A non-positive rate degenerates to straight-line.
func AnnuityPayment(principal int64, rate float64, term int) int64 {
	if term < 1 {
		term = 1
	}
	if rate <= 0 {
		return Round(float64(principal) / float64(term))
	}
	p := float64(principal)
	return Round(p * rate / (1 - math.Pow(1+rate, -float64(term))))
}
