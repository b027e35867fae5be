package economy

import "github.com/talgya/tapajos/internal/entropy"

// Bounds on the global parameters.
const (
	DriftIndexMin = 0.85
	DriftIndexMax = 1.25
	ShockIndexMin = 0.80
	ShockIndexMax = 1.35
	CapRateMin    = 0.02
	CapRateMax    = 0.08

	defaultCapRate = 0.045
)

// Market holds the global economic parameters of a session.
type Market struct {
	BaseRate float64 `json:"base_rate"` // policy interest rate
	Index    float64 `json:"index"`     // price level multiplier
	CapRate  float64 `json:"cap_rate"`  // capitalisation rate for uplifts
}

// DefaultMarket returns the opening parameters of a new game.
func DefaultMarket() Market {
	return Market{BaseRate: 0.03, Index: 1.00, CapRate: defaultCapRate}
}

// Drift applies the yearly random walk: ±3% bounded to the drift band.
// Returns the applied relative change.
func (m *Market) Drift(src entropy.Source) float64 {
	drift := (src.Float() - 0.5) * 0.06
	m.Index = clamp(m.Index*(1+drift), DriftIndexMin, DriftIndexMax)
	return drift
}

// Shock multiplies the index by (1+delta) within the shock band.
func (m *Market) Shock(delta float64) {
	m.Index = clamp(m.Index*(1+delta), ShockIndexMin, ShockIndexMax)
}

// ShiftCapRate adds shift to the cap rate within its band.
func (m *Market) ShiftCapRate(shift float64) {
	m.CapRate = clamp(m.CapRate+shift, CapRateMin, CapRateMax)
}

func (m Market) capRate() float64 {
	if m.CapRate <= 0 {
		return defaultCapRate
	}
	return m.CapRate
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
