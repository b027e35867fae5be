// Package engine runs a game session: the player actions available within a
// year and the turn advance that moves the simulation forward by one year.
package engine

import (
	"fmt"

	"github.com/talgya/tapajos/internal/economy"
	"github.com/talgya/tapajos/internal/entropy"
	"github.com/talgya/tapajos/internal/finance"
	"github.com/talgya/tapajos/internal/property"
)

// Options are the per-session game rules.
type Options struct {
	StartingCash int64
	Horizon      int // last playable year
	Market       economy.Market
	// DeferConversionProceeds queues conversion proceeds for the next year
	// instead of crediting them on completion.
	DeferConversionProceeds bool
}

// DefaultOptions returns the standard rules: 10M cash, 15 years.
func DefaultOptions() Options {
	return Options{
		StartingCash: 10_000_000,
		Horizon:      15,
		Market:       economy.DefaultMarket(),
	}
}

// Payout is cash that arrives at the start of DueTurn.
type Payout struct {
	Amount  int64  `json:"amount"`
	DueTurn int    `json:"due_turn"`
	Label   string `json:"label"`
}

// State is the complete serialisable state of a session.
type State struct {
	Cash           int64                `json:"cash"`
	Turn           int                  `json:"turn"`
	Market         economy.Market       `json:"market"`
	Buildings      []*property.Building `json:"buildings"`
	Ledger         finance.Ledger       `json:"ledger"`
	PendingPayouts []Payout             `json:"pending_payouts"`
	MarketPool     []Offer              `json:"market_pool"`
	MarketPoolTurn int                  `json:"market_pool_turn"`
	Incident       *Incident            `json:"incident,omitempty"`
	Over           bool                 `json:"over"`
}

// Event is a notable occurrence in the session.
type Event struct {
	Turn        int    `json:"turn" db:"turn"`
	Description string `json:"description" db:"description"`
	Category    string `json:"category" db:"category"` // "market", "building", "incident", "finance", "turn"
}

const maxEvents = 1000

// Game is a single play session. It is not safe for concurrent use.
type Game struct {
	State
	Options Options
	Rand    entropy.Source
	Events  []Event

	emitted int // events ever emitted, including trimmed ones
}

// NewGame starts a session in year 1.
func NewGame(opts Options, src entropy.Source) *Game {
	if opts.Horizon <= 0 {
		opts.Horizon = DefaultOptions().Horizon
	}
	return &Game{
		State: State{
			Cash:   opts.StartingCash,
			Turn:   1,
			Market: opts.Market,
		},
		Options: opts,
		Rand:    src,
	}
}

// Restore resumes a session from saved state.
func Restore(st State, opts Options, src entropy.Source) *Game {
	if opts.Horizon <= 0 {
		opts.Horizon = DefaultOptions().Horizon
	}
	return &Game{State: st, Options: opts, Rand: src}
}

// EmitEvent records an event, keeping the last 1000.
func (g *Game) EmitEvent(e Event) {
	if e.Turn == 0 {
		e.Turn = g.Turn
	}
	g.Events = append(g.Events, e)
	g.emitted++
	if len(g.Events) > maxEvents {
		g.Events = g.Events[len(g.Events)-maxEvents:]
	}
}

// EventsSince returns the events emitted after the first n, and the new
// total to pass next time. Events already trimmed from the log are skipped.
func (g *Game) EventsSince(n int) ([]Event, int) {
	first := g.emitted - len(g.Events)
	start := min(max(n-first, 0), len(g.Events))
	return g.Events[start:], g.emitted
}

func (g *Game) emitf(category, format string, args ...any) {
	g.EmitEvent(Event{Description: fmt.Sprintf(format, args...), Category: category})
}

// Building returns the owned building with id.
func (g *Game) Building(id string) (*property.Building, error) {
	if i := g.buildingIndex(id); i >= 0 {
		return g.Buildings[i], nil
	}
	return nil, fmt.Errorf("%w: building %s", ErrNotFound, id)
}

func (g *Game) buildingIndex(id string) int {
	for i, b := range g.Buildings {
		if b.ID == id {
			return i
		}
	}
	return -1
}

func (g *Game) removeBuilding(i int) {
	g.Buildings = append(g.Buildings[:i], g.Buildings[i+1:]...)
}

// exitProceeds settles the building's loan and returns max(0, gross - payoff).
func (g *Game) exitProceeds(b *property.Building, gross int64) (net, payoff int64) {
	if b.LoanID != "" {
		if p, err := g.Ledger.Settle(b.LoanID); err == nil {
			payoff = p
		}
	}
	net = gross - payoff
	if net < 0 {
		net = 0
	}
	return net, payoff
}

func (g *Game) ensurePlaying(action string) error {
	if g.Over {
		return reject(action, ErrGameOver)
	}
	return nil
}

func (g *Game) afford(action string, cost int64) error {
	if cost > g.Cash {
		return reject(action, insufficient(cost, g.Cash))
	}
	return nil
}
