package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/tapajos/internal/economy"
	"github.com/talgya/tapajos/internal/entropy"
	"github.com/talgya/tapajos/internal/property"
)

func TestAdvanceTurn_Empty(t *testing.T) {
	g := NewGame(DefaultOptions(), entropy.NewSeeded(11))
	g.EnsureMarket()
	oldIDs := map[string]bool{}
	for _, o := range g.MarketPool {
		oldIDs[o.ID] = true
	}

	rep, err := g.AdvanceTurn()
	require.NoError(t, err)
	assert.Equal(t, 2, g.Turn)
	assert.Equal(t, int64(10_000_000), g.Cash)
	assert.Equal(t, int64(0), rep.Profit)
	require.Len(t, g.MarketPool, OffersPerYear)
	assert.Equal(t, 2, g.MarketPoolTurn)
	for _, o := range g.MarketPool {
		assert.False(t, oldIDs[o.ID])
	}
	assert.GreaterOrEqual(t, g.Market.Index, economy.DriftIndexMin)
	assert.LessOrEqual(t, g.Market.Index, economy.DriftIndexMax)
}

func TestAdvanceTurn_ProfitAndLoss(t *testing.T) {
	g := newTestGame()
	injectOffer(g, "offer", 9_000_000)
	b, err := g.BuyFinanced("offer")
	require.NoError(t, err)

	loan := g.Ledger.Loans[0]
	wantRent := b.Rent() * 12
	wantMaint := b.Maintenance() * 12
	wantInterest := economy.Round(float64(loan.Balance) * loan.Rate)
	wantPrincipal := loan.Payment - wantInterest
	cash := g.Cash

	rep, err := g.AdvanceTurn()
	require.NoError(t, err)
	assert.Equal(t, wantRent, rep.Rent)
	assert.Equal(t, wantMaint, rep.Maintenance)
	assert.Equal(t, wantInterest, rep.Interest)
	assert.Equal(t, wantPrincipal, rep.Principal)
	assert.Equal(t, wantRent-wantMaint-wantInterest-wantPrincipal, rep.Profit)
	assert.Equal(t, cash+rep.Profit, g.Cash)
	assert.Equal(t, int64(6_300_000)-wantPrincipal, loan.Balance)
	assert.Equal(t, 0.0, rep.Drift)
}

func TestAdvanceTurn_ProjectCompletesAfterTwoYears(t *testing.T) {
	g := newTestGame()
	b := own(g, "b", economy.ConditionNew, false, 10)
	_, err := g.StartAtticConversion("b")
	require.NoError(t, err)

	rep, err := g.AdvanceTurn()
	require.NoError(t, err)
	assert.Empty(t, rep.Projects)
	assert.Equal(t, 10, b.Units)

	rep, err = g.AdvanceTurn()
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, rep.Projects)
	assert.Equal(t, 12, b.Units)
	assert.Nil(t, b.Project)
	assert.Equal(t, b.Rent()*12, rep.Rent)
}

func TestAdvanceTurn_ConversionCompletes(t *testing.T) {
	g := newTestGame()
	injectOffer(g, "offer", 9_000_000)
	b, err := g.BuyFinanced("offer")
	require.NoError(t, err)
	b.Satisfaction, b.Consent = 90, 90
	own(g, "keep", economy.ConditionWorn, false, 10)

	_, err = g.StartConversion(b.ID)
	require.NoError(t, err)
	gross := g.ConversionProceeds(b)
	payoff := g.Ledger.Loans[0].Balance
	cash := g.Cash

	rep, err := g.AdvanceTurn()
	require.NoError(t, err)
	require.Len(t, rep.Completed, 1)
	c := rep.Completed[0]
	assert.Equal(t, gross, c.Gross)
	assert.Equal(t, payoff, c.Payoff)
	assert.Equal(t, gross-payoff, c.Net)
	assert.False(t, c.Deferred)

	assert.Equal(t, cash+c.Net+rep.Profit, g.Cash)
	require.Len(t, g.Buildings, 1)
	assert.Equal(t, "keep", g.Buildings[0].ID)
	assert.Empty(t, g.Ledger.Loans)
	assert.Equal(t, int64(0), rep.Interest)
}

func TestAdvanceTurn_DeferredConversionProceeds(t *testing.T) {
	opts := DefaultOptions()
	opts.DeferConversionProceeds = true
	g := NewGame(opts, entropy.NewSequence(0.5))
	b := own(g, "b", economy.ConditionNew, true, 10)
	b.Satisfaction, b.Consent = 90, 90
	_, err := g.StartConversion("b")
	require.NoError(t, err)
	gross := g.ConversionProceeds(b)

	rep, err := g.AdvanceTurn()
	require.NoError(t, err)
	require.Len(t, rep.Completed, 1)
	assert.True(t, rep.Completed[0].Deferred)
	assert.Equal(t, int64(10_000_000), g.Cash)
	require.Len(t, g.PendingPayouts, 1)
	assert.Equal(t, 3, g.PendingPayouts[0].DueTurn)

	rep, err = g.AdvanceTurn()
	require.NoError(t, err)
	assert.Equal(t, gross, rep.Payouts)
	assert.Equal(t, 10_000_000+gross, g.Cash)
}

func TestAdvanceTurn_NegotiationGateResetsOnce(t *testing.T) {
	g := newTestGame()
	b := own(g, "b", economy.ConditionNew, true, 10)
	b.NegotiationUsed = true

	_, err := g.AdvanceTurn()
	require.NoError(t, err)
	assert.False(t, b.NegotiationUsed)
	assert.Equal(t, g.Turn, b.CounterTurn)

	b.NegotiationUsed = true
	b.EnsureYearCounters(g.Turn, g.Rand)
	assert.True(t, b.NegotiationUsed)
}

func TestAdvanceTurn_GameOver(t *testing.T) {
	g := newTestGame()
	own(g, "b", economy.ConditionNew, true, 10)

	for i := 0; i < 14; i++ {
		rep, err := g.AdvanceTurn()
		require.NoError(t, err)
		require.False(t, rep.Over)
	}
	assert.Equal(t, 15, g.Turn)

	rep, err := g.AdvanceTurn()
	require.NoError(t, err)
	assert.True(t, rep.Over)
	assert.True(t, g.Over)
	assert.Equal(t, 15, g.Summary().Year)

	_, err = g.AdvanceTurn()
	assert.ErrorIs(t, err, ErrGameOver)
	_, err = g.Renovate("b")
	assert.ErrorIs(t, err, ErrGameOver)
	_, err = g.BuyCash("x")
	assert.ErrorIs(t, err, ErrGameOver)
	assert.Equal(t, 16, g.Turn)
}

func TestScheduler_Hooks(t *testing.T) {
	g := NewGame(DefaultOptions(), entropy.NewSeeded(5))
	s := NewScheduler(g)
	turns, overs := 0, 0
	var final Summary
	s.OnTurn = func(TurnReport) { turns++ }
	s.OnGameOver = func(sum Summary) { overs++; final = sum }

	sum, err := s.Play(context.Background(), 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 15, turns)
	assert.Equal(t, 1, overs)
	assert.Equal(t, final, sum)
	assert.Equal(t, 15, sum.Year)
}

func TestScheduler_StopsOnCancel(t *testing.T) {
	g := newTestGame()
	s := NewScheduler(g)
	ctx, cancel := context.WithCancel(context.Background())

	_, err := s.Play(ctx, 0, func(g *Game) error {
		if g.Turn == 3 {
			cancel()
		}
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 4, g.Turn)
	assert.False(t, g.Over)
}

// Random play never breaks the building invariants.
func TestInvariants_RandomPlay(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		src := entropy.NewSeeded(seed)
		g := NewGame(DefaultOptions(), src)
		pick := entropy.NewSeeded(seed * 97)

		for !g.Over {
			g.EnsureMarket()
			if len(g.MarketPool) > 0 && entropy.Chance(pick, 0.5) {
				o := g.MarketPool[entropy.Intn(pick, len(g.MarketPool))]
				if entropy.Chance(pick, 0.5) {
					_, _ = g.BuyFinanced(o.ID)
				} else {
					_, _ = g.BuyCash(o.ID)
				}
			}
			for _, b := range append([]*property.Building(nil), g.Buildings...) {
				switch entropy.Intn(pick, 9) {
				case 0:
					_, _ = g.Renovate(b.ID)
				case 1:
					_, _ = g.HostEvent(b.ID)
				case 2:
					_, _ = g.OptimizeEnergy(b.ID)
				case 3:
					_, _ = g.StartAtticConversion(b.ID)
				case 4:
					_, _ = g.StartConversion(b.ID)
				case 5:
					_, _ = g.Negotiate(b.ID, entropy.Intn(pick, 10), int64(entropy.Intn(pick, 5000)))
				case 6:
					_, _ = g.Amortize(b.ID)
				case 7:
					if entropy.Chance(pick, 0.2) {
						_, _ = g.Sell(b.ID)
					}
				}
			}
			if g.Incident != nil {
				if choices := g.Choices(); len(choices) > 0 {
					_, _ = g.ResolveIncident(choices[entropy.Intn(pick, len(choices))].Resolution)
				}
			}

			_, err := g.AdvanceTurn()
			require.NoError(t, err)

			for _, b := range g.Buildings {
				require.GreaterOrEqual(t, b.Satisfaction, 0)
				require.LessOrEqual(t, b.Satisfaction, 100)
				require.GreaterOrEqual(t, b.Consent, 0)
				require.LessOrEqual(t, b.Consent, 100)
				require.False(t, b.Project != nil && b.Conversion != nil)
				require.LessOrEqual(t, b.EventsUsed, b.EventsCap)
				require.GreaterOrEqual(t, b.Units, b.BaseUnits)
				if b.LoanID != "" {
					_, err := g.Ledger.Find(b.LoanID)
					require.NoError(t, err)
				}
			}
			for _, l := range g.Ledger.Loans {
				require.GreaterOrEqual(t, l.Balance, int64(0))
			}
		}
		assert.Equal(t, 16, g.Turn)
	}
}
