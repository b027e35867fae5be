// Package property models a single owned building: its tenant metrics,
// upgrade history, running projects and the lifecycle transitions between them.
package property

import (
	"errors"
	"fmt"
	"math"

	"github.com/talgya/tapajos/internal/economy"
	"github.com/talgya/tapajos/internal/entropy"
)

// ErrInvalidState marks an action that the building's current state forbids.
var ErrInvalidState = errors.New("invalid building state")

// Lifecycle constants.
const (
	EnergyUpgradesMax   = 3
	energyStep          = 0.92
	energyFloor         = 0.75
	AtticProjectName    = "Attic conversion"
	atticDuration       = 2
	conversionDuration  = 1
	conversionThreshold = 70
	wearChance          = 0.12
	doubleEventChance   = 0.35
)

// Status is the derived tenant-relations label of a building.
type Status string

const (
	StatusReadyForConversion Status = "ready for conversion"
	StatusUnrest             Status = "unrest"
	StatusFragile            Status = "fragile"
	StatusStable             Status = "stable"
)

// Project is a running capital project.
type Project struct {
	Name           string `json:"name"`
	TurnsRemaining int    `json:"turns_remaining"`
	AddedUnits     int    `json:"added_units"`
}

// Conversion is a running cooperative conversion.
type Conversion struct {
	TurnsRemaining int `json:"turns_remaining"`
}

// Building is an owned residential property.
type Building struct {
	ID string `json:"id"`
	economy.Asset

	Satisfaction int    `json:"satisfaction"`
	Consent      int    `json:"consent"`
	Anecdote     string `json:"anecdote,omitempty"`

	Project            *Project    `json:"project,omitempty"`
	Conversion         *Conversion `json:"conversion,omitempty"`
	NextRenovationTurn int         `json:"next_renovation_turn"`

	// Yearly counters, reset when CounterTurn falls behind the current turn.
	CounterTurn     int  `json:"counter_turn"`
	EventsUsed      int  `json:"events_used"`
	EventsCap       int  `json:"events_cap"`
	NegotiationUsed bool `json:"negotiation_used"`

	EnergyUpgrades    int `json:"energy_upgrades"`
	EnergyUpgradesMax int `json:"energy_upgrades_max"`

	LoanID string `json:"loan_id,omitempty"`
}

// Acquisition describes the purchase a building is created from.
type Acquisition struct {
	ID          string
	Type        economy.TypeID
	Condition   economy.Condition
	Central     bool
	Units       int
	Price       int64
	MarketIndex float64
	Turn        int
	LoanID      string
}

// New creates a building with opening tenant metrics and its baseline
// snapshot taken from the purchase.
func New(acq Acquisition, src entropy.Source) *Building {
	b := &Building{
		ID: acq.ID,
		Asset: economy.Asset{
			Type:                  acq.Type,
			Condition:             acq.Condition,
			Central:               acq.Central,
			Units:                 acq.Units,
			MaintenanceMultiplier: 1.0,
			BasePrice:             acq.Price,
			BaseCondition:         acq.Condition,
			BaseMarketIndex:       acq.MarketIndex,
			BaseUnits:             acq.Units,
		},
		EnergyUpgradesMax: EnergyUpgradesMax,
		LoanID:            acq.LoanID,
	}

	sat := 60.0
	switch acq.Condition {
	case economy.ConditionNew:
		sat += 15
	case economy.ConditionWorn:
		sat -= 10
	default:
		sat -= 20
	}
	if acq.Central {
		sat += 5
	}
	b.Satisfaction = clampMetric(int(math.Floor(sat)))

	consent := float64(b.Satisfaction) - 10
	if acq.Condition == economy.ConditionNew {
		consent += 10
	}
	b.Consent = clampMetric(int(math.Floor(consent)))

	b.Anecdote = pickAnecdote(src)
	b.CounterTurn = acq.Turn
	b.EventsCap = rollEventsCap(src)
	return b
}

// Status derives the label from satisfaction, consent and condition.
func (b *Building) Status() Status {
	switch {
	case b.ConversionEligible():
		return StatusReadyForConversion
	case b.Satisfaction < 40:
		return StatusUnrest
	case b.Satisfaction < 60:
		return StatusFragile
	default:
		return StatusStable
	}
}

// ConversionEligible reports whether tenants would approve a cooperative
// conversion.
func (b *Building) ConversionEligible() bool {
	return b.Consent >= conversionThreshold &&
		b.Satisfaction >= conversionThreshold &&
		b.Condition == economy.ConditionNew
}

// Busy reports whether a project or conversion is running.
func (b *Building) Busy() bool {
	return b.Project != nil || b.Conversion != nil
}

// AddSatisfaction changes satisfaction within [0,100].
func (b *Building) AddSatisfaction(delta int) {
	b.Satisfaction = clampMetric(b.Satisfaction + delta)
}

// AddConsent changes consent within [0,100].
func (b *Building) AddConsent(delta int) {
	b.Consent = clampMetric(b.Consent + delta)
}

// EnsureYearCounters resets the yearly counters once per turn.
func (b *Building) EnsureYearCounters(turn int, src entropy.Source) {
	if b.CounterTurn == turn {
		return
	}
	b.CounterTurn = turn
	b.EventsUsed = 0
	b.EventsCap = rollEventsCap(src)
	b.NegotiationUsed = false
}

func rollEventsCap(src entropy.Source) int {
	if entropy.Chance(src, doubleEventChance) {
		return 2
	}
	return 1
}

// Rent is the monthly gross rent.
func (b *Building) Rent() int64 {
	return economy.EffectiveRent(b.Asset)
}

// Maintenance is the monthly upkeep.
func (b *Building) Maintenance() int64 {
	return economy.EffectiveMaintenance(b.Asset)
}

// Value is the building's valuation under m.
func (b *Building) Value(m economy.Market) int64 {
	return economy.Valuation(b.Asset, m)
}

// Archetype returns the building's archetype constants.
func (b *Building) Archetype() economy.Archetype {
	return economy.MustLookup(b.Type)
}

func (b *Building) String() string {
	loc := "suburb"
	if b.Central {
		loc = "central"
	}
	return fmt.Sprintf("%s (%s, %d units)", b.Archetype().Name, loc, b.Units)
}

func clampMetric(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

var anecdotes = []string{
	"Old letters were found in the attic; the tenants are putting on an exhibition.",
	"A retired carpenter in the building helps the neighbours with small repairs.",
	"The courtyard got a book-swap box, an unexpected hit.",
	"The building cat patrols the basement corridor.",
	"The group chat settled laundry-room times for a whole month without a fight.",
	"A neighbour played the accordion at the courtyard party; it became a tradition.",
}

func pickAnecdote(src entropy.Source) string {
	return anecdotes[entropy.Intn(src, len(anecdotes))]
}
