package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/tapajos/internal/economy"
	"github.com/talgya/tapajos/internal/entropy"
	"github.com/talgya/tapajos/internal/property"
)

// newTestGame starts a default game on a scripted source. 0.5 keeps the
// market still, wear off and the incident roll quiet.
func newTestGame(values ...float64) *Game {
	if len(values) == 0 {
		values = []float64{0.5}
	}
	return NewGame(DefaultOptions(), entropy.NewSequence(values...))
}

// injectOffer places a known offer in this year's pool.
func injectOffer(g *Game, id string, price int64) Offer {
	o := Offer{ID: id, Type: economy.TypeGovernor, Condition: economy.ConditionNew, Price: price, Units: 10}
	g.MarketPool = append(g.MarketPool, o)
	g.MarketPoolTurn = g.Turn
	return o
}

// own adds a building without spending cash.
func own(g *Game, id string, cond economy.Condition, central bool, units int) *property.Building {
	b := property.New(property.Acquisition{
		ID: id, Type: economy.TypeGovernor, Condition: cond, Central: central,
		Units: units, Price: 10_000_000, MarketIndex: g.Market.Index, Turn: g.Turn,
	}, entropy.NewSequence(0, 0.9))
	g.Buildings = append(g.Buildings, b)
	return b
}

func TestNewGame_Defaults(t *testing.T) {
	g := newTestGame()
	assert.Equal(t, int64(10_000_000), g.Cash)
	assert.Equal(t, 1, g.Turn)
	assert.Equal(t, economy.DefaultMarket(), g.Market)
	assert.Equal(t, 15, g.Options.Horizon)
	assert.Empty(t, g.Buildings)
	assert.False(t, g.Over)
}

func TestEmitEvent_TrimsToLimit(t *testing.T) {
	g := newTestGame()
	for i := 0; i < maxEvents+25; i++ {
		g.EmitEvent(Event{Description: "x", Category: "turn"})
	}
	assert.Len(t, g.Events, maxEvents)
	assert.Equal(t, 1, g.Events[0].Turn)
}

func TestEventsSince(t *testing.T) {
	g := newTestGame()
	g.EmitEvent(Event{Description: "a"})
	g.EmitEvent(Event{Description: "b"})

	evs, n := g.EventsSince(0)
	assert.Len(t, evs, 2)
	assert.Equal(t, 2, n)

	evs, n = g.EventsSince(n)
	assert.Empty(t, evs)

	for i := 0; i < maxEvents; i++ {
		g.EmitEvent(Event{Description: "x"})
	}
	evs, n = g.EventsSince(n)
	assert.Len(t, evs, maxEvents)
	assert.Equal(t, maxEvents+2, n)

	g.EmitEvent(Event{Description: "last"})
	evs, _ = g.EventsSince(n)
	require.Len(t, evs, 1)
	assert.Equal(t, "last", evs[0].Description)
}

func TestKindOf(t *testing.T) {
	g := newTestGame()
	own(g, "b", economy.ConditionNew, false, 10)
	g.Cash = 0

	_, err := g.Renovate("b")
	assert.Equal(t, KindFunds, KindOf(err))

	var ae *ActionError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, "renovate", ae.Action)
	assert.Contains(t, err.Error(), "renovate: insufficient funds")

	_, err = g.Renovate("missing")
	assert.Equal(t, KindMissing, KindOf(err))
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, KindState, KindOf(ErrNegotiationUsed))
	assert.Equal(t, KindState, KindOf(ErrGameOver))
	assert.Equal(t, KindInput, KindOf(ErrInvalidInput))
	assert.Equal(t, KindUnknown, KindOf(errors.New("boom")))
	assert.Equal(t, KindUnknown, KindOf(nil))
	assert.Equal(t, "insufficient_funds", KindFunds.String())
}

func TestSummary(t *testing.T) {
	g := newTestGame()
	assert.Equal(t, Summary{NetWorth: 10_000_000, Year: 1}, g.Summary())

	a := own(g, "a", economy.ConditionNew, true, 10)
	b := own(g, "b", economy.ConditionWorn, false, 10)
	a.Satisfaction, b.Satisfaction = 81, 50
	g.Ledger.Open(2_000_000, g.Market.BaseRate, "")

	s := g.Summary()
	want := g.Cash + a.Value(g.Market) + b.Value(g.Market) - 2_000_000
	assert.Equal(t, want, s.NetWorth)
	assert.Equal(t, 2, s.PropertyCount)
	assert.Equal(t, 66, s.AvgSatisfaction)

	g.Turn = 16
	assert.Equal(t, 15, g.Summary().Year)
	assert.Contains(t, s.ShareText(), "Properties: 2")

	st := g.Stats()
	assert.Equal(t, int64(2_000_000), st.TotalDebt)
	assert.Equal(t, (a.Rent()+b.Rent())*12, st.AnnualRent)
	assert.Equal(t, s.NetWorth, st.NetWorth)
}
