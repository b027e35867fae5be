package engine

import (
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"

	"github.com/talgya/tapajos/internal/economy"
	"github.com/talgya/tapajos/internal/property"
)

// ExtraAmortization is the fixed extra repayment toward a building's loan.
const ExtraAmortization int64 = 200_000

const (
	saleShare         = 0.95
	conversionPremium = 1.35
)

// ActionResult reports what a paid building action cost.
type ActionResult struct {
	BuildingID string `json:"building_id"`
	Cost       int64  `json:"cost"`
	Note       string `json:"note"`
}

// target resolves the building for an action on a running game.
func (g *Game) target(action, id string) (*property.Building, error) {
	if err := g.ensurePlaying(action); err != nil {
		return nil, err
	}
	b, err := g.Building(id)
	if err != nil {
		return nil, reject(action, err)
	}
	return b, nil
}

func (g *Game) rejected(action string, b *property.Building, err error) error {
	slog.Debug("action rejected", "action", action, "building", b.ID, "error", err)
	return reject(action, err)
}

// Renovate improves the building one condition step. Renovating a building
// that is already new still costs money and starts the cooldown.
func (g *Game) Renovate(id string) (ActionResult, error) {
	const action = "renovate"
	b, err := g.target(action, id)
	if err != nil {
		return ActionResult{}, err
	}
	if err := b.CanRenovate(g.Turn); err != nil {
		return ActionResult{}, g.rejected(action, b, err)
	}
	cost := b.RenovationCost()
	if err := g.afford(action, cost); err != nil {
		return ActionResult{}, err
	}

	g.Cash -= cost
	improved := b.Renovate(g.Turn)
	note := fmt.Sprintf("Renovated %s, condition now %s", b, b.Condition)
	if !improved {
		note = fmt.Sprintf("Renovated %s, already in new condition", b)
	}
	g.emitf("building", "%s (%s kr)", note, humanize.Comma(cost))
	return ActionResult{BuildingID: b.ID, Cost: cost, Note: note}, nil
}

// HostEvent holds a courtyard event for the tenants.
func (g *Game) HostEvent(id string) (ActionResult, error) {
	const action = "courtyard event"
	b, err := g.target(action, id)
	if err != nil {
		return ActionResult{}, err
	}
	if err := b.CanHostEvent(g.Turn, g.Rand); err != nil {
		return ActionResult{}, g.rejected(action, b, err)
	}
	if err := g.afford(action, property.CareCost); err != nil {
		return ActionResult{}, err
	}

	g.Cash -= property.CareCost
	b.HostEvent()
	note := fmt.Sprintf("Courtyard event at %s (%d/%d this year)", b, b.EventsUsed, b.EventsCap)
	g.emitf("building", "%s", note)
	return ActionResult{BuildingID: b.ID, Cost: property.CareCost, Note: note}, nil
}

// OptimizeEnergy installs one energy upgrade.
func (g *Game) OptimizeEnergy(id string) (ActionResult, error) {
	const action = "energy optimization"
	b, err := g.target(action, id)
	if err != nil {
		return ActionResult{}, err
	}
	if err := b.CanOptimizeEnergy(); err != nil {
		return ActionResult{}, g.rejected(action, b, err)
	}
	cost := b.EnergyCost()
	if err := g.afford(action, cost); err != nil {
		return ActionResult{}, err
	}

	g.Cash -= cost
	b.OptimizeEnergy()
	note := fmt.Sprintf("Energy upgrade %d/%d installed at %s", b.EnergyUpgrades, b.EnergyUpgradesMax, b)
	g.emitf("building", "%s", note)
	return ActionResult{BuildingID: b.ID, Cost: cost, Note: note}, nil
}

// StartAtticConversion starts a two-year project adding apartments.
func (g *Game) StartAtticConversion(id string) (ActionResult, error) {
	const action = "attic conversion"
	b, err := g.target(action, id)
	if err != nil {
		return ActionResult{}, err
	}
	if err := b.CanStartProject(); err != nil {
		return ActionResult{}, g.rejected(action, b, err)
	}
	cost := b.AtticCost()
	if err := g.afford(action, cost); err != nil {
		return ActionResult{}, err
	}

	g.Cash -= cost
	p := b.StartAtticConversion()
	note := fmt.Sprintf("Attic conversion started at %s, %d apartments in %d years", b, p.AddedUnits, p.TurnsRemaining)
	g.emitf("building", "%s", note)
	return ActionResult{BuildingID: b.ID, Cost: cost, Note: note}, nil
}

// StartConversion starts a cooperative conversion that closes next year.
func (g *Game) StartConversion(id string) (ActionResult, error) {
	const action = "cooperative conversion"
	b, err := g.target(action, id)
	if err != nil {
		return ActionResult{}, err
	}
	if err := b.CanStartConversion(); err != nil {
		return ActionResult{}, g.rejected(action, b, err)
	}

	b.StartConversion()
	note := fmt.Sprintf("Cooperative conversion of %s started, proceeds on completion next year", b)
	g.emitf("building", "%s", note)
	return ActionResult{BuildingID: b.ID, Note: note}, nil
}

// SaleResult reports the cash effect of a sale.
type SaleResult struct {
	BuildingID string `json:"building_id"`
	Gross      int64  `json:"gross"`
	Payoff     int64  `json:"payoff"`
	Net        int64  `json:"net"`
}

// SaleProceeds is the gross sale price of b at the current market.
func (g *Game) SaleProceeds(b *property.Building) int64 {
	return economy.Round(float64(b.Value(g.Market)) * saleShare)
}

// ConversionProceeds is the gross conversion price of b at the current market.
func (g *Game) ConversionProceeds(b *property.Building) int64 {
	return economy.Round(float64(b.Value(g.Market)) * conversionPremium)
}

// Sell sells a building at 95% of valuation. The loan is settled from the
// proceeds and the cash credited is never negative.
func (g *Game) Sell(id string) (SaleResult, error) {
	const action = "sell"
	b, err := g.target(action, id)
	if err != nil {
		return SaleResult{}, err
	}
	if err := b.CanSell(); err != nil {
		return SaleResult{}, g.rejected(action, b, err)
	}

	gross := g.SaleProceeds(b)
	net, payoff := g.exitProceeds(b, gross)
	g.Cash += net
	g.removeBuilding(g.buildingIndex(id))

	slog.Debug("building sold", "building", b.ID, "gross", gross, "payoff", payoff, "net", net)
	g.emitf("market", "Sold %s for %s kr (loan payoff %s kr)", b, humanize.Comma(gross), humanize.Comma(payoff))
	return SaleResult{BuildingID: b.ID, Gross: gross, Payoff: payoff, Net: net}, nil
}

// Amortize pays the fixed ExtraAmortization toward the building's loan. The
// full amount is charged; the balance is floored at zero.
func (g *Game) Amortize(id string) (ActionResult, error) {
	const action = "amortize"
	b, err := g.target(action, id)
	if err != nil {
		return ActionResult{}, err
	}
	if b.LoanID == "" {
		return ActionResult{}, g.rejected(action, b, fmt.Errorf("%w: no loan linked", property.ErrInvalidState))
	}
	loan, err := g.Ledger.Find(b.LoanID)
	if err != nil {
		return ActionResult{}, g.rejected(action, b, err)
	}
	if err := g.afford(action, ExtraAmortization); err != nil {
		return ActionResult{}, err
	}

	if _, err := g.Ledger.Amortize(loan.ID, ExtraAmortization); err != nil {
		return ActionResult{}, g.rejected(action, b, err)
	}
	g.Cash -= ExtraAmortization
	note := fmt.Sprintf("Amortized %s kr on %s, balance %s kr", humanize.Comma(ExtraAmortization), loan.Hint, humanize.Comma(loan.Balance))
	g.emitf("finance", "%s", note)
	return ActionResult{BuildingID: b.ID, Cost: ExtraAmortization, Note: note}, nil
}

// QueuePayout schedules cash to arrive at the start of next year.
func (g *Game) QueuePayout(amount int64, label string) Payout {
	p := Payout{Amount: amount, DueTurn: g.Turn + 1, Label: label}
	g.PendingPayouts = append(g.PendingPayouts, p)
	return p
}

// flushPayouts credits every payout that is due and returns the total.
func (g *Game) flushPayouts() (total int64, labels []string) {
	var rest []Payout
	for _, p := range g.PendingPayouts {
		if p.DueTurn <= g.Turn {
			total += p.Amount
			labels = append(labels, p.Label)
			continue
		}
		rest = append(rest, p)
	}
	g.PendingPayouts = rest
	g.Cash += total
	return total, labels
}
