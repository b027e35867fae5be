package engine

import (
	"log/slog"
	"strings"

	"github.com/dustin/go-humanize"
)

// Completion is a cooperative conversion that closed during a turn advance.
type Completion struct {
	BuildingID string `json:"building_id"`
	Name       string `json:"name"`
	Gross      int64  `json:"gross"`
	Payoff     int64  `json:"payoff"`
	Net        int64  `json:"net"`
	Deferred   bool   `json:"deferred,omitempty"`
}

// TurnReport summarises one year of operations.
type TurnReport struct {
	Turn        int          `json:"turn"`
	MarketIndex float64      `json:"market_index"`
	Drift       float64      `json:"drift"`
	Payouts     int64        `json:"payouts"`
	Rent        int64        `json:"rent"`
	Maintenance int64        `json:"maintenance"`
	Interest    int64        `json:"interest"`
	Principal   int64        `json:"principal"`
	Profit      int64        `json:"profit"`
	Completed   []Completion `json:"completed,omitempty"`
	Projects    []string     `json:"projects,omitempty"` // buildings whose project finished
	Worn        []string     `json:"worn,omitempty"`     // buildings that lost a condition step
	Incident    *Incident    `json:"incident,omitempty"`
	Over        bool         `json:"over"`
}

// AdvanceTurn moves the game forward one year. In order: the year counter,
// due payouts, market drift, a new market pool, every building from last to
// first (counters, conversion and project countdowns, rent and upkeep, wear,
// drift), loan service, the year's profit, the incident roll and the end of
// game check.
func (g *Game) AdvanceTurn() (TurnReport, error) {
	if g.Over {
		return TurnReport{}, reject("advance", ErrGameOver)
	}

	g.Turn++
	rep := TurnReport{Turn: g.Turn}

	var labels []string
	rep.Payouts, labels = g.flushPayouts()
	if rep.Payouts > 0 {
		g.emitf("finance", "Incoming payouts: %s kr (%s)", humanize.Comma(rep.Payouts), strings.Join(labels, ", "))
	}

	rep.Drift = g.Market.Drift(g.Rand)
	rep.MarketIndex = g.Market.Index

	g.GenerateMarket()

	for i := len(g.Buildings) - 1; i >= 0; i-- {
		b := g.Buildings[i]
		b.EnsureYearCounters(g.Turn, g.Rand)

		if b.Conversion != nil && b.AdvanceConversion() {
			rep.Completed = append(rep.Completed, g.completeConversion(i))
			continue
		}
		if b.AdvanceProject() {
			rep.Projects = append(rep.Projects, b.ID)
			g.emitf("building", "Attic conversion finished at %s", b)
		}

		rep.Rent += b.Rent() * 12
		rep.Maintenance += b.Maintenance() * 12

		if b.Wear(g.Rand) {
			rep.Worn = append(rep.Worn, b.ID)
			g.emitf("building", "%s has worn down to %s", b, b.Condition)
		}
		b.Drift()
	}

	rep.Interest, rep.Principal = g.Ledger.Accrue()

	rep.Profit = rep.Rent - rep.Maintenance - rep.Interest - rep.Principal
	g.Cash += rep.Profit

	g.Incident = nil
	rep.Incident = g.RollIncident()

	if g.Turn > g.Options.Horizon {
		g.Over = true
		rep.Over = true
		g.emitf("turn", "Game over after year %d", g.Options.Horizon)
	}

	slog.Info("turn report",
		"turn", rep.Turn,
		"market", rep.MarketIndex,
		"rent", rep.Rent,
		"maintenance", rep.Maintenance,
		"interest", rep.Interest,
		"principal", rep.Principal,
		"profit", rep.Profit,
		"cash", g.Cash,
		"buildings", len(g.Buildings),
	)
	g.emitf("turn", "Year %d: result %s kr, market %.2f×", rep.Turn, humanize.Comma(rep.Profit), rep.MarketIndex)
	return rep, nil
}

// completeConversion closes the conversion of the building at index i.
func (g *Game) completeConversion(i int) Completion {
	b := g.Buildings[i]
	gross := g.ConversionProceeds(b)
	net, payoff := g.exitProceeds(b, gross)
	c := Completion{BuildingID: b.ID, Name: b.String(), Gross: gross, Payoff: payoff, Net: net}

	if g.Options.DeferConversionProceeds {
		g.QueuePayout(net, "Conversion "+b.String())
		c.Deferred = true
	} else {
		g.Cash += net
	}
	g.removeBuilding(i)

	slog.Info("conversion completed", "building", b.ID, "gross", gross, "payoff", payoff, "net", net)
	g.emitf("building", "Cooperative conversion of %s completed, proceeds %s kr", b, humanize.Comma(net))
	return c
}
