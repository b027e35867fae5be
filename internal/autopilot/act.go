package autopilot

import (
	"fmt"

	"github.com/talgya/tapajos/internal/engine"
)

// Act executes m against g and returns a short description of the result.
func Act(g *engine.Game, m Move) (string, error) {
	switch m.Action {
	case ActionResolve:
		out, err := g.ResolveIncident(m.Resolution)
		if err != nil {
			return "", err
		}
		return out.Note, nil
	case ActionSell:
		res, err := g.Sell(m.BuildingID)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("sold for %d net", res.Net), nil
	case ActionConvert:
		return note(g.StartConversion(m.BuildingID))
	case ActionEvent:
		return note(g.HostEvent(m.BuildingID))
	case ActionRenovate:
		return note(g.Renovate(m.BuildingID))
	case ActionEnergy:
		return note(g.OptimizeEnergy(m.BuildingID))
	case ActionAttic:
		return note(g.StartAtticConversion(m.BuildingID))
	case ActionAmortize:
		return note(g.Amortize(m.BuildingID))
	case ActionNegotiate:
		res, err := g.Negotiate(m.BuildingID, m.RaisePct, 0)
		if err != nil {
			return "", err
		}
		if res.Won {
			return fmt.Sprintf("raise of %d%% agreed", m.RaisePct), nil
		}
		return "tenants refused", nil
	case ActionBuyCash:
		b, err := g.BuyCash(m.OfferID)
		if err != nil {
			return "", err
		}
		return "bought " + b.String(), nil
	case ActionBuyLoan:
		b, err := g.BuyFinanced(m.OfferID)
		if err != nil {
			return "", err
		}
		return "financed " + b.String(), nil
	case ActionNone:
		return "", nil
	}
	return "", fmt.Errorf("%w: unknown autopilot action %q", engine.ErrInvalidInput, m.Action)
}

func note(res engine.ActionResult, err error) (string, error) {
	if err != nil {
		return "", err
	}
	return res.Note, nil
}
