package engine

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/dustin/go-humanize"

	"github.com/talgya/tapajos/internal/economy"
	"github.com/talgya/tapajos/internal/property"
)

// NegotiationResult is the outcome of a rent negotiation.
type NegotiationResult struct {
	BuildingID string `json:"building_id"`
	Odds       int    `json:"odds"` // percent
	Won        bool   `json:"won"`
	Cost       int64  `json:"cost"`
}

// NegotiationOdds is the success chance in percent, within [5, 95], of asking
// for raisePct percent more rent while offering compPerUnit per apartment.
func NegotiationOdds(b *property.Building, raisePct int, compPerUnit int64) int {
	p := 40 + float64(b.Satisfaction-50)/2 + negotiationConditionBonus(b.Condition)
	p -= math.Max(0, float64(raisePct-2)) * 3
	p += float64(compPerUnit) / 1500
	odds := int(economy.Round(p))
	return max(5, min(95, odds))
}

func negotiationConditionBonus(c economy.Condition) float64 {
	switch c {
	case economy.ConditionNew:
		return 10
	case economy.ConditionWorn:
		return -10
	default:
		return -20
	}
}

// NegotiationCost is the total compensation paid on a successful deal. It
// saturates at math.MaxInt64 so no offer can wrap to a negative cost.
func NegotiationCost(b *property.Building, compPerUnit int64) int64 {
	total := float64(compPerUnit) * float64(b.Units)
	if total >= math.MaxInt64 {
		return math.MaxInt64
	}
	return economy.Round(total)
}

// Odds reports the current negotiation odds for a building without
// attempting anything.
func (g *Game) Odds(id string, raisePct int, compPerUnit int64) (int, error) {
	b, err := g.Building(id)
	if err != nil {
		return 0, reject("negotiate", err)
	}
	return NegotiationOdds(b, raisePct, compPerUnit), nil
}

// Negotiate attempts a rent increase. Win or lose, the building cannot be
// negotiated with again until next year. A deal the player cannot pay for is
// rejected before the attempt and does not use up the year's negotiation.
func (g *Game) Negotiate(id string, raisePct int, compPerUnit int64) (NegotiationResult, error) {
	const action = "negotiate"
	b, err := g.target(action, id)
	if err != nil {
		return NegotiationResult{}, err
	}
	if raisePct < 0 || compPerUnit < 0 {
		return NegotiationResult{}, reject(action, fmt.Errorf("%w: raise and compensation must not be negative", ErrInvalidInput))
	}
	b.EnsureYearCounters(g.Turn, g.Rand)
	if b.NegotiationUsed {
		return NegotiationResult{}, g.rejected(action, b, ErrNegotiationUsed)
	}
	if float64(compPerUnit)*float64(b.Units) > float64(g.Cash) {
		return NegotiationResult{}, reject(action, fmt.Errorf("%w: compensation of %s kr per unit over %d units exceeds cash %s kr",
			ErrInsufficientFunds, humanize.Comma(compPerUnit), b.Units, humanize.Comma(g.Cash)))
	}
	cost := NegotiationCost(b, compPerUnit)
	if err := g.afford(action, cost); err != nil {
		return NegotiationResult{}, err
	}

	odds := NegotiationOdds(b, raisePct, compPerUnit)
	res := NegotiationResult{BuildingID: b.ID, Odds: odds}
	res.Won = g.Rand.Float()*100 < float64(odds)
	if res.Won {
		b.RentBoost += float64(raisePct) / 100
		g.Cash -= cost
		res.Cost = cost
		b.AddSatisfaction(8)
		b.AddConsent(10)
		g.emitf("building", "Negotiation at %s won: rent +%d%%, compensation %s kr", b, raisePct, humanize.Comma(cost))
	} else {
		b.AddSatisfaction(-8)
		b.AddConsent(-6)
		g.emitf("building", "Negotiation at %s failed, tenants are unhappy", b)
	}
	b.NegotiationUsed = true

	slog.Debug("negotiation", "building", b.ID, "odds", odds, "won", res.Won)
	return res, nil
}
