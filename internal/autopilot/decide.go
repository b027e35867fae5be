package autopilot

import (
	"fmt"

	"github.com/talgya/tapajos/internal/economy"
	"github.com/talgya/tapajos/internal/engine"
	"github.com/talgya/tapajos/internal/property"
)

// Action names a move kind.
type Action string

const (
	ActionNone      Action = "none"
	ActionResolve   Action = "resolve"
	ActionSell      Action = "sell"
	ActionConvert   Action = "convert"
	ActionEvent     Action = "event"
	ActionRenovate  Action = "renovate"
	ActionEnergy    Action = "energy"
	ActionAttic     Action = "attic"
	ActionNegotiate Action = "negotiate"
	ActionBuyCash   Action = "buy_cash"
	ActionBuyLoan   Action = "buy_financed"
	ActionAmortize  Action = "amortize"
)

// Move is one decision.
type Move struct {
	Action     Action
	BuildingID string
	OfferID    string
	Resolution engine.Resolution
	RaisePct   int
	Rationale  string
}

// Key identifies a move for the per-year do-not-retry set.
func (m Move) Key() string {
	return fmt.Sprintf("%s/%s/%s", m.Action, m.BuildingID, m.OfferID)
}

// Policy tunes the pilot.
type Policy struct {
	Reserve      int64 // cash kept back for incidents and lean years
	MaxBuildings int
	Finance      bool // allow financed purchases
	RaiseOdds    int  // minimum odds before asking for a raise
	// BuyHorizon stops purchases this many years before the end, when a
	// building can no longer earn back its price.
	BuyHorizon int
}

// DefaultPolicy is a cautious landlord.
func DefaultPolicy() Policy {
	return Policy{
		Reserve:      1_500_000,
		MaxBuildings: 6,
		Finance:      true,
		RaiseOdds:    60,
		BuyHorizon:   3,
	}
}

// Decide picks the next move, skipping moves in tried. It returns ActionNone
// when the year's work is done.
func (p Policy) Decide(snap *Snapshot, h *Health, tried map[string]bool) Move {
	for _, m := range p.candidates(snap, h) {
		if !tried[m.Key()] {
			return m
		}
	}
	return Move{Action: ActionNone, Rationale: "nothing worth doing"}
}

// candidates lists moves in priority order.
func (p Policy) candidates(snap *Snapshot, h *Health) []Move {
	var out []Move

	// Incidents first: the first affordable choice is the careful one.
	if snap.Incident != nil {
		for _, c := range snap.Choices {
			if c.Cost <= snap.Cash {
				out = append(out, Move{
					Action:     ActionResolve,
					Resolution: c.Resolution,
					Rationale:  fmt.Sprintf("%s: %s", snap.Incident.Title(), c.Label),
				})
				break
			}
		}
	}

	// Out of cash: sell the building that frees the most.
	if h.Liquidity == LiquidityCritical {
		best := -1
		for i, b := range snap.Buildings {
			if b.Busy {
				continue
			}
			if best < 0 || b.SaleNet > snap.Buildings[best].SaleNet {
				best = i
			}
		}
		if best >= 0 {
			out = append(out, Move{
				Action:     ActionSell,
				BuildingID: snap.Buildings[best].ID,
				Rationale:  "cash negative",
			})
		}
		return out
	}

	cash := snap.Cash
	spend := func(cost int64) bool {
		if cash-cost < p.Reserve {
			return false
		}
		cash -= cost
		return true
	}

	for _, b := range snap.Buildings {
		if b.CanConvert {
			out = append(out, Move{Action: ActionConvert, BuildingID: b.ID, Rationale: "tenants approve conversion"})
			continue
		}
		if b.Satisfaction < 60 && b.EventsLeft > 0 && spend(property.CareCost) {
			out = append(out, Move{Action: ActionEvent, BuildingID: b.ID, Rationale: fmt.Sprintf("satisfaction %d", b.Satisfaction)})
		}
		if b.Condition != economy.ConditionNew && b.CanRenovate && spend(b.RenovateCost) {
			out = append(out, Move{Action: ActionRenovate, BuildingID: b.ID, Rationale: "condition " + string(b.Condition)})
		}
		if b.CanOptimize && h.YearsLeft > 3 && spend(b.EnergyCost) {
			out = append(out, Move{Action: ActionEnergy, BuildingID: b.ID, Rationale: "cut maintenance"})
		}
		if b.CanNegotiate && b.Satisfaction >= 70 && b.RaiseOdds >= p.RaiseOdds {
			out = append(out, Move{Action: ActionNegotiate, BuildingID: b.ID, RaisePct: 3, Rationale: fmt.Sprintf("odds %d%%", b.RaiseOdds)})
		}
	}

	// Attic projects take two years to pay anything.
	if h.YearsLeft > 4 {
		for _, b := range snap.Buildings {
			if b.CanAttic && cash-b.AtticCost >= 2*p.Reserve {
				cash -= b.AtticCost
				out = append(out, Move{Action: ActionAttic, BuildingID: b.ID, Rationale: "add units"})
			}
		}
	}

	if len(snap.Buildings) < p.MaxBuildings && h.YearsLeft > p.BuyHorizon {
		for _, o := range snap.Offers {
			if spend(o.Price) {
				out = append(out, Move{Action: ActionBuyCash, OfferID: o.ID, Rationale: o.String()})
				break
			}
			if p.Finance && h.DebtRatio < 0.6 && spend(o.DownPayment()) {
				out = append(out, Move{Action: ActionBuyLoan, OfferID: o.ID, Rationale: o.String()})
				break
			}
		}
	}

	// Surplus cash pays down debt.
	for _, b := range snap.Buildings {
		if b.LoanBalance > 0 && cash > 4*p.Reserve && spend(engine.ExtraAmortization) {
			out = append(out, Move{Action: ActionAmortize, BuildingID: b.ID, Rationale: "surplus cash"})
		}
	}
	return out
}
