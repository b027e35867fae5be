package engine

import (
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"

	"github.com/talgya/tapajos/internal/economy"
	"github.com/talgya/tapajos/internal/entropy"
	"github.com/talgya/tapajos/internal/property"
)

// IncidentKind identifies a yearly incident.
type IncidentKind string

const (
	IncidentWaterLeak     IncidentKind = "water_leak"
	IncidentTenantUnion   IncidentKind = "tenant_union"
	IncidentMarketShock   IncidentKind = "market_shock"
	IncidentPositivePress IncidentKind = "positive_press"
	IncidentPolicyChange  IncidentKind = "policy_change"
)

// Resolution is a player's answer to an incident.
type Resolution string

const (
	ResolveFixNow     Resolution = "fix_now"
	ResolveWait       Resolution = "wait"
	ResolveCompensate Resolution = "compensate"
	ResolveNegotiate  Resolution = "negotiate"
	ResolveAccept     Resolution = "accept"
)

const incidentChance = 0.35

type incidentSpec struct {
	kind     IncidentKind
	title    string
	prob     float64
	targeted bool
	choices  []Resolution
}

var incidentTable = []incidentSpec{
	{IncidentWaterLeak, "Water leak", 0.18, true, []Resolution{ResolveFixNow, ResolveWait}},
	{IncidentTenantUnion, "Tenant union grievance", 0.14, true, []Resolution{ResolveCompensate, ResolveNegotiate}},
	{IncidentMarketShock, "Market shock", 0.12, false, []Resolution{ResolveAccept}},
	{IncidentPositivePress, "Positive press", 0.12, true, []Resolution{ResolveAccept}},
	{IncidentPolicyChange, "Policy change", 0.10, false, []Resolution{ResolveAccept}},
}

func specOf(k IncidentKind) (incidentSpec, bool) {
	for _, s := range incidentTable {
		if s.kind == k {
			return s, true
		}
	}
	return incidentSpec{}, false
}

// Incident is an open yearly incident. Random magnitudes are fixed when the
// incident is rolled so the choice shown is the effect applied.
type Incident struct {
	Kind       IncidentKind `json:"kind"`
	Turn       int          `json:"turn"`
	BuildingID string       `json:"building_id,omitempty"`
	Delta      float64      `json:"delta,omitempty"` // market shock, relative
	Shift      float64      `json:"shift,omitempty"` // cap rate change
}

// Title is the display name of the incident.
func (i *Incident) Title() string {
	s, _ := specOf(i.Kind)
	return s.title
}

// Choice is one way to resolve the open incident.
type Choice struct {
	Resolution Resolution `json:"resolution"`
	Label      string     `json:"label"`
	Cost       int64      `json:"cost"`
}

const (
	leakRepairPer10Units  = 60_000
	leakWorsenChance      = 0.6
	unionCompensationUnit = 5_000
	pressValueBoost       = 0.03
)

func leakRepairCost(b *property.Building) int64 {
	return economy.Round(leakRepairPer10Units * float64(b.Units) / 10)
}

func unionCompensation(b *property.Building) int64 {
	return economy.Round(unionCompensationUnit * float64(b.Units))
}

// RollIncident draws this year's incident, if any, and makes it the open one.
// A building incident with no building to hit produces nothing.
func (g *Game) RollIncident() *Incident {
	if !entropy.Chance(g.Rand, incidentChance) {
		return nil
	}
	var pool []incidentSpec
	for _, s := range incidentTable {
		if entropy.Chance(g.Rand, s.prob) {
			pool = append(pool, s)
		}
	}
	if len(pool) == 0 {
		pool = incidentTable
	}
	s := pool[entropy.Intn(g.Rand, len(pool))]

	inc := &Incident{Kind: s.kind, Turn: g.Turn}
	if s.targeted {
		if len(g.Buildings) == 0 {
			return nil
		}
		inc.BuildingID = g.Buildings[entropy.Intn(g.Rand, len(g.Buildings))].ID
	}
	switch s.kind {
	case IncidentMarketShock:
		sign := entropy.Sign(g.Rand)
		inc.Delta = sign * (0.02 + g.Rand.Float()*0.04)
	case IncidentPolicyChange:
		inc.Shift = entropy.Sign(g.Rand) * 0.005
	}

	g.Incident = inc
	slog.Info("incident", "turn", g.Turn, "kind", inc.Kind, "building", inc.BuildingID)
	g.emitf("incident", "%s", g.describe(inc))
	return inc
}

func (g *Game) describe(inc *Incident) string {
	var name string
	if inc.BuildingID != "" {
		if b, err := g.Building(inc.BuildingID); err == nil {
			name = b.String()
		}
	}
	switch inc.Kind {
	case IncidentWaterLeak:
		return fmt.Sprintf("Water leak at %s. Risk of further damage and unhappy tenants.", name)
	case IncidentTenantUnion:
		return fmt.Sprintf("Unhappy tenants at %s have taken a case to the union.", name)
	case IncidentMarketShock:
		return "Capital market moves are affecting valuations."
	case IncidentPositivePress:
		return fmt.Sprintf("The local paper praises %s.", name)
	case IncidentPolicyChange:
		return "A regulatory change moves the required yield."
	}
	return string(inc.Kind)
}

// Description is the player-facing text of the open incident.
func (g *Game) Description() string {
	if g.Incident == nil {
		return ""
	}
	return g.describe(g.Incident)
}

// Choices lists the resolutions of the open incident with their costs.
func (g *Game) Choices() []Choice {
	inc := g.Incident
	if inc == nil {
		return nil
	}
	var b *property.Building
	if inc.BuildingID != "" {
		b, _ = g.Building(inc.BuildingID)
		if b == nil {
			return nil
		}
	}
	switch inc.Kind {
	case IncidentWaterLeak:
		cost := leakRepairCost(b)
		return []Choice{
			{ResolveFixNow, fmt.Sprintf("Fix now (%s kr)", humanize.Comma(cost)), cost},
			{ResolveWait, "Wait (risk)", 0},
		}
	case IncidentTenantUnion:
		return []Choice{
			{ResolveCompensate, fmt.Sprintf("Compensation (%s kr/apartment)", humanize.Comma(unionCompensationUnit)), unionCompensation(b)},
			{ResolveNegotiate, "Negotiate", 0},
		}
	case IncidentMarketShock:
		label := fmt.Sprintf("Downturn %.1f%%", inc.Delta*100)
		if inc.Delta > 0 {
			label = fmt.Sprintf("Boom +%.1f%%", inc.Delta*100)
		}
		return []Choice{{ResolveAccept, label, 0}}
	case IncidentPositivePress:
		return []Choice{{ResolveAccept, "Lovely", 0}}
	case IncidentPolicyChange:
		label := fmt.Sprintf("Higher cap rate %.1f%%", inc.Shift*100)
		if inc.Shift < 0 {
			label = fmt.Sprintf("Lower cap rate %.1f%%", -inc.Shift*100)
		}
		return []Choice{{ResolveAccept, label, 0}}
	}
	return nil
}

// IncidentOutcome reports what a resolution did.
type IncidentOutcome struct {
	Kind       IncidentKind `json:"kind"`
	Resolution Resolution   `json:"resolution"`
	BuildingID string       `json:"building_id,omitempty"`
	Cost       int64        `json:"cost"`
	Worsened   bool         `json:"worsened,omitempty"`
	// NegotiateWith is set when the player chose to take a grievance to the
	// negotiating table; the negotiation itself is a separate action.
	NegotiateWith string `json:"negotiate_with,omitempty"`
	Note          string `json:"note"`
}

// ResolveIncident applies the chosen resolution and closes the incident.
// A rejected resolution leaves the incident open.
func (g *Game) ResolveIncident(choice Resolution) (IncidentOutcome, error) {
	const action = "resolve incident"
	if err := g.ensurePlaying(action); err != nil {
		return IncidentOutcome{}, err
	}
	inc := g.Incident
	if inc == nil {
		return IncidentOutcome{}, reject(action, fmt.Errorf("%w: no open incident", ErrNotFound))
	}
	s, _ := specOf(inc.Kind)
	if !allows(s, choice) {
		return IncidentOutcome{}, reject(action, fmt.Errorf("%w: %q does not resolve a %s", ErrInvalidInput, choice, s.title))
	}

	var b *property.Building
	if s.targeted {
		var err error
		if b, err = g.Building(inc.BuildingID); err != nil {
			g.Incident = nil
			return IncidentOutcome{}, reject(action, err)
		}
	}

	out := IncidentOutcome{Kind: inc.Kind, Resolution: choice, BuildingID: inc.BuildingID}
	switch {
	case inc.Kind == IncidentWaterLeak && choice == ResolveFixNow:
		cost := leakRepairCost(b)
		if err := g.afford(action, cost); err != nil {
			return IncidentOutcome{}, err
		}
		g.Cash -= cost
		b.AddSatisfaction(4)
		out.Cost = cost
		out.Note = "Leak fixed, minor impact."
	case inc.Kind == IncidentWaterLeak && choice == ResolveWait:
		if entropy.Chance(g.Rand, leakWorsenChance) {
			b.Damage(10)
			out.Worsened = true
			out.Note = fmt.Sprintf("The damage spread, condition now %s.", b.Condition)
		} else {
			out.Note = "Lucky, no major damage this time."
		}
	case inc.Kind == IncidentTenantUnion && choice == ResolveCompensate:
		cost := unionCompensation(b)
		if err := g.afford(action, cost); err != nil {
			return IncidentOutcome{}, err
		}
		g.Cash -= cost
		b.AddSatisfaction(10)
		b.AddConsent(6)
		out.Cost = cost
		out.Note = "Conflict settled with compensation."
	case inc.Kind == IncidentTenantUnion && choice == ResolveNegotiate:
		out.NegotiateWith = b.ID
		out.Note = "The grievance goes to the negotiating table."
	case inc.Kind == IncidentMarketShock:
		g.Market.Shock(inc.Delta)
		out.Note = fmt.Sprintf("Market now %.2f×", g.Market.Index)
	case inc.Kind == IncidentPositivePress:
		b.ValueBoost += pressValueBoost
		b.AddSatisfaction(5)
		out.Note = "Positive press, value boosted."
	case inc.Kind == IncidentPolicyChange:
		g.Market.ShiftCapRate(inc.Shift)
		out.Note = fmt.Sprintf("Cap rate now %.2f%%", g.Market.CapRate*100)
	}

	g.Incident = nil
	g.emitf("incident", "%s: %s", s.title, out.Note)
	return out, nil
}

// DismissIncident closes the open incident without acting on it.
func (g *Game) DismissIncident() error {
	if g.Incident == nil {
		return reject("dismiss incident", fmt.Errorf("%w: no open incident", ErrNotFound))
	}
	g.Incident = nil
	return nil
}

func allows(s incidentSpec, r Resolution) bool {
	for _, c := range s.choices {
		if c == r {
			return true
		}
	}
	return false
}
