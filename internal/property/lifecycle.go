package property

import (
	"fmt"
	"math"

	"github.com/talgya/tapajos/internal/economy"
	"github.com/talgya/tapajos/internal/entropy"
)

// CareCost is the fixed price of a courtyard event.
const CareCost int64 = 25_000

// RenovationCost is six months of base upkeep.
func (b *Building) RenovationCost() int64 {
	return economy.Round(float64(b.Archetype().MaintPerUnit) * float64(b.Units) * 6)
}

// EnergyCost scales a 150k package by building size.
func (b *Building) EnergyCost() int64 {
	return economy.Round(150_000 * float64(b.Units) / 20)
}

// AtticCost is the price of an attic conversion project.
func (b *Building) AtticCost() int64 {
	f := 1.0
	if b.Central {
		f = 1.15
	}
	return economy.Round((1_800_000 + 50_000*float64(b.Units)) * f)
}

// CanRenovate rejects renovation while the yearly cooldown runs.
func (b *Building) CanRenovate(turn int) error {
	if b.NextRenovationTurn != 0 && turn < b.NextRenovationTurn {
		return fmt.Errorf("%w: renovated this year, next possible in turn %d", ErrInvalidState, b.NextRenovationTurn)
	}
	return nil
}

// Renovate improves condition one step and starts the cooldown.
// A building already in new condition keeps it; the cooldown still starts.
func (b *Building) Renovate(turn int) (improved bool) {
	before := b.Condition
	b.Condition = b.Condition.Improved()
	b.AddSatisfaction(8)
	b.AddConsent(5)
	b.NextRenovationTurn = turn + 1
	return b.Condition != before
}

// CanHostEvent rejects a courtyard event once the yearly cap is reached.
func (b *Building) CanHostEvent(turn int, src entropy.Source) error {
	b.EnsureYearCounters(turn, src)
	if b.EventsUsed >= b.EventsCap {
		return fmt.Errorf("%w: courtyard event cap reached for this year (%d/%d)", ErrInvalidState, b.EventsUsed, b.EventsCap)
	}
	return nil
}

// HostEvent applies a courtyard event.
func (b *Building) HostEvent() {
	b.AddSatisfaction(12)
	b.AddConsent(5)
	b.EventsUsed++
}

// CanOptimizeEnergy rejects once every energy upgrade is installed.
func (b *Building) CanOptimizeEnergy() error {
	if b.EnergyUpgrades >= b.EnergyUpgradesMax {
		return fmt.Errorf("%w: all %d energy upgrades installed", ErrInvalidState, b.EnergyUpgradesMax)
	}
	return nil
}

// OptimizeEnergy lowers the maintenance multiplier by 8%, floored at 0.75.
func (b *Building) OptimizeEnergy() {
	mult := b.MaintenanceMultiplier
	if mult <= 0 {
		mult = 1
	}
	b.MaintenanceMultiplier = math.Max(energyFloor, mult*energyStep)
	b.EnergyUpgrades++
	b.AddSatisfaction(2)
}

// CanStartProject rejects when a project or conversion is already running.
func (b *Building) CanStartProject() error {
	if b.Project != nil {
		return fmt.Errorf("%w: project %q already running", ErrInvalidState, b.Project.Name)
	}
	if b.Conversion != nil {
		return fmt.Errorf("%w: conversion in progress", ErrInvalidState)
	}
	return nil
}

// StartAtticConversion begins a two-turn project adding 15% more units,
// between 2 and 8.
func (b *Building) StartAtticConversion() *Project {
	added := int(economy.Round(float64(b.Units) * 0.15))
	if added < 2 {
		added = 2
	}
	if added > 8 {
		added = 8
	}
	b.Project = &Project{Name: AtticProjectName, TurnsRemaining: atticDuration, AddedUnits: added}
	b.AddSatisfaction(-4)
	return b.Project
}

// AdvanceProject counts the project down and applies it on completion.
func (b *Building) AdvanceProject() (completed bool) {
	if b.Project == nil {
		return false
	}
	b.Project.TurnsRemaining--
	if b.Project.TurnsRemaining > 0 {
		return false
	}
	if b.Project.Name == AtticProjectName {
		b.Units += b.Project.AddedUnits
		b.RentBoost += 0.05
		b.ValueBoost += 0.05
		b.AddSatisfaction(6)
		b.AddConsent(3)
	}
	b.Project = nil
	return true
}

// CanStartConversion checks exclusivity and tenant approval.
func (b *Building) CanStartConversion() error {
	if b.Conversion != nil {
		return fmt.Errorf("%w: conversion already in progress", ErrInvalidState)
	}
	if b.Project != nil {
		return fmt.Errorf("%w: finish project %q before converting", ErrInvalidState, b.Project.Name)
	}
	if !b.ConversionEligible() {
		return fmt.Errorf("%w: conversion requires satisfaction ≥%d, consent ≥%d and new condition",
			ErrInvalidState, conversionThreshold, conversionThreshold)
	}
	return nil
}

// StartConversion begins a cooperative conversion closing next turn.
func (b *Building) StartConversion() {
	b.Conversion = &Conversion{TurnsRemaining: conversionDuration}
}

// AdvanceConversion counts the conversion down and reports when it closes.
func (b *Building) AdvanceConversion() (due bool) {
	if b.Conversion == nil {
		return false
	}
	b.Conversion.TurnsRemaining--
	return b.Conversion.TurnsRemaining <= 0
}

// CanSell rejects a sale while a project or conversion runs.
func (b *Building) CanSell() error {
	if b.Project != nil {
		return fmt.Errorf("%w: project %q in progress", ErrInvalidState, b.Project.Name)
	}
	if b.Conversion != nil {
		return fmt.Errorf("%w: conversion in progress", ErrInvalidState)
	}
	return nil
}

// Wear rolls natural deterioration for one year.
func (b *Building) Wear(src entropy.Source) (degraded bool) {
	if !entropy.Chance(src, wearChance) || b.Condition == economy.ConditionDilapidated {
		return false
	}
	b.Condition = b.Condition.Degraded()
	b.AddSatisfaction(-6)
	return true
}

// Drift nudges satisfaction by condition and consent toward satisfaction.
func (b *Building) Drift() {
	step := 0
	switch b.Condition {
	case economy.ConditionNew:
		step = 1
	case economy.ConditionDilapidated:
		step = -1
	}
	b.Satisfaction = clampMetric(b.Satisfaction + step)
	pull := float64(b.Satisfaction-50) / 200
	b.Consent = clampMetric(int(economy.Round(float64(b.Consent) + pull)))
}

// Damage degrades condition after an untreated incident.
func (b *Building) Damage(satisfactionLoss int) {
	b.Condition = b.Condition.Degraded()
	b.AddSatisfaction(-satisfactionLoss)
}
