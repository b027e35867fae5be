// Package autopilot implements a rule-based player.
// Each move is one cycle: observe the game, triage its finances, decide on a
// single move and act on it. Cycles repeat until nothing is left to do that
// year, then the year is advanced.
package autopilot

import (
	"github.com/talgya/tapajos/internal/economy"
	"github.com/talgya/tapajos/internal/engine"
)

// Snapshot is what the pilot sees at the start of a cycle.
type Snapshot struct {
	Turn      int
	Horizon   int
	Cash      int64
	Stats     engine.Stats
	Buildings []BuildingInfo
	Offers    []engine.Offer
	Incident  *engine.Incident
	Choices   []engine.Choice
}

// BuildingInfo is a building with the checks the pilot needs precomputed.
type BuildingInfo struct {
	ID           string
	Condition    economy.Condition
	Satisfaction int
	Consent      int
	Units        int
	Busy         bool
	LoanBalance  int64
	SaleNet      int64

	CanConvert   bool
	CanRenovate  bool
	CanOptimize  bool
	CanAttic     bool
	EventsLeft   int
	CanNegotiate bool
	RaiseOdds    int // odds of a 3% raise without compensation
	RenovateCost int64
	EnergyCost   int64
	AtticCost    int64
}

// Observe snapshots g. The market is generated for the year if needed.
func Observe(g *engine.Game) *Snapshot {
	snap := &Snapshot{
		Turn:     g.Turn,
		Horizon:  g.Options.Horizon,
		Cash:     g.Cash,
		Stats:    g.Stats(),
		Incident: g.Incident,
	}
	if !g.Over {
		snap.Offers = g.EnsureMarket()
	}
	if g.Incident != nil {
		snap.Choices = g.Choices()
	}

	for _, b := range g.Buildings {
		b.EnsureYearCounters(g.Turn, g.Rand)
		info := BuildingInfo{
			ID:           b.ID,
			Condition:    b.Condition,
			Satisfaction: b.Satisfaction,
			Consent:      b.Consent,
			Units:        b.Units,
			Busy:         b.Busy(),
			CanConvert:   b.CanStartConversion() == nil,
			CanRenovate:  b.CanRenovate(g.Turn) == nil,
			CanOptimize:  b.CanOptimizeEnergy() == nil,
			CanAttic:     b.CanStartProject() == nil,
			EventsLeft:   b.EventsCap - b.EventsUsed,
			CanNegotiate: !b.NegotiationUsed,
			RaiseOdds:    engine.NegotiationOdds(b, 3, 0),
			RenovateCost: b.RenovationCost(),
			EnergyCost:   b.EnergyCost(),
			AtticCost:    b.AtticCost(),
		}
		if l, err := g.Ledger.Find(b.LoanID); err == nil {
			info.LoanBalance = l.Balance
		}
		info.SaleNet = max(g.SaleProceeds(b)-info.LoanBalance, 0)
		snap.Buildings = append(snap.Buildings, info)
	}
	return snap
}
