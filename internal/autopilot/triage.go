package autopilot

// Liquidity levels, most severe first.
const (
	LiquidityCritical = "CRITICAL" // cash below zero
	LiquidityTight    = "TIGHT"    // cash below the reserve
	LiquidityHealthy  = "HEALTHY"
)

// Health holds derived signals computed from a Snapshot.
type Health struct {
	Liquidity       string
	Surplus         int64   // cash above the reserve, may be negative
	DebtRatio       float64 // debt over portfolio value
	AvgSatisfaction float64
	Unrest          int // buildings below 40 satisfaction
	YearsLeft       int
}

// Triage computes Health for a snapshot under the given cash reserve.
func Triage(snap *Snapshot, reserve int64) *Health {
	h := &Health{
		Surplus:   snap.Cash - reserve,
		YearsLeft: snap.Horizon - snap.Turn + 1,
	}
	if snap.Stats.PortfolioValue > 0 {
		h.DebtRatio = float64(snap.Stats.TotalDebt) / float64(snap.Stats.PortfolioValue)
	}

	total := 0
	for _, b := range snap.Buildings {
		total += b.Satisfaction
		if b.Satisfaction < 40 {
			h.Unrest++
		}
	}
	if len(snap.Buildings) > 0 {
		h.AvgSatisfaction = float64(total) / float64(len(snap.Buildings))
	}

	switch {
	case snap.Cash < 0:
		h.Liquidity = LiquidityCritical
	case snap.Cash < reserve:
		h.Liquidity = LiquidityTight
	default:
		h.Liquidity = LiquidityHealthy
	}
	return h
}
