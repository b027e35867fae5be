package engine

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/talgya/tapajos/internal/economy"
	"github.com/talgya/tapajos/internal/entropy"
	"github.com/talgya/tapajos/internal/property"
)

// OffersPerYear is the size of every market pool.
const OffersPerYear = 4

// DownPaymentShare is the cash part of a financed purchase.
const DownPaymentShare = 0.30

// Offer is a building for sale in the current year.
type Offer struct {
	ID        string            `json:"id"`
	Type      economy.TypeID    `json:"type"`
	Condition economy.Condition `json:"condition"`
	Central   bool              `json:"central"`
	Price     int64             `json:"price"`
	Units     int               `json:"units"`
}

// DownPayment is the cash needed to buy the offer financed.
func (o Offer) DownPayment() int64 {
	return economy.Round(float64(o.Price) * DownPaymentShare)
}

func (o Offer) String() string {
	loc := "suburb"
	if o.Central {
		loc = "central"
	}
	return fmt.Sprintf("%s (%s, %s, %d units)", economy.MustLookup(o.Type).Name, loc, o.Condition, o.Units)
}

// makeOffer draws one offer. Draw order: archetype, condition, location,
// price, units.
func makeOffer(src entropy.Source, index float64) Offer {
	types := economy.AllTypes()
	conds := economy.AllConditions()
	id := types[entropy.Intn(src, len(types))]
	cond := conds[entropy.Intn(src, len(conds))]
	central := entropy.Chance(src, 0.5)
	price := economy.PriceOf(src, id, cond, central, index)
	a := economy.MustLookup(id)
	return Offer{
		ID:        uuid.NewString(),
		Type:      id,
		Condition: cond,
		Central:   central,
		Price:     price,
		Units:     entropy.Between(src, a.UnitsMin, a.UnitsMax),
	}
}

// GenerateMarket replaces the pool with a fresh set of offers, cheapest first.
func (g *Game) GenerateMarket() []Offer {
	pool := make([]Offer, 0, OffersPerYear)
	for i := 0; i < OffersPerYear; i++ {
		pool = append(pool, makeOffer(g.Rand, g.Market.Index))
	}
	sort.SliceStable(pool, func(i, j int) bool { return pool[i].Price < pool[j].Price })
	g.MarketPool = pool
	g.MarketPoolTurn = g.Turn
	return pool
}

// EnsureMarket returns this year's pool, generating it only if it is stale.
func (g *Game) EnsureMarket() []Offer {
	if g.MarketPoolTurn != g.Turn {
		g.GenerateMarket()
	}
	return g.MarketPool
}

func (g *Game) offer(id string) (int, Offer, error) {
	for i, o := range g.MarketPool {
		if o.ID == id {
			return i, o, nil
		}
	}
	return -1, Offer{}, fmt.Errorf("%w: offer %s", ErrNotFound, id)
}

func (g *Game) takeOffer(i int) {
	g.MarketPool = append(g.MarketPool[:i], g.MarketPool[i+1:]...)
}

// BuyCash buys an offer outright.
func (g *Game) BuyCash(offerID string) (*property.Building, error) {
	const action = "buy"
	if err := g.ensurePlaying(action); err != nil {
		return nil, err
	}
	i, o, err := g.offer(offerID)
	if err != nil {
		return nil, reject(action, err)
	}
	if err := g.afford(action, o.Price); err != nil {
		return nil, err
	}

	g.Cash -= o.Price
	b := g.acquire(o, "")
	g.takeOffer(i)

	slog.Debug("building bought", "building", b.ID, "price", o.Price, "cash", g.Cash)
	g.emitf("market", "Bought %s for %s kr", b, humanize.Comma(o.Price))
	return b, nil
}

// BuyFinanced buys an offer with a 30% down payment and a loan for the rest.
func (g *Game) BuyFinanced(offerID string) (*property.Building, error) {
	const action = "buy financed"
	if err := g.ensurePlaying(action); err != nil {
		return nil, err
	}
	i, o, err := g.offer(offerID)
	if err != nil {
		return nil, reject(action, err)
	}
	down := o.DownPayment()
	if err := g.afford(action, down); err != nil {
		return nil, err
	}

	g.Cash -= down
	loan := g.Ledger.Open(o.Price-down, g.Market.BaseRate, loanHint(o))
	b := g.acquire(o, loan.ID)
	g.takeOffer(i)

	slog.Debug("building bought financed", "building", b.ID, "down", down, "loan", loan.Principal, "cash", g.Cash)
	g.emitf("market", "Bought %s with %s kr down and a %s kr loan at %.2f%%",
		b, humanize.Comma(down), humanize.Comma(loan.Principal), loan.Rate*100)
	return b, nil
}

func (g *Game) acquire(o Offer, loanID string) *property.Building {
	b := property.New(property.Acquisition{
		ID:          o.ID,
		Type:        o.Type,
		Condition:   o.Condition,
		Central:     o.Central,
		Units:       o.Units,
		Price:       o.Price,
		MarketIndex: g.Market.Index,
		Turn:        g.Turn,
		LoanID:      loanID,
	}, g.Rand)
	g.Buildings = append(g.Buildings, b)
	return b
}

func loanHint(o Offer) string {
	loc := "suburb"
	if o.Central {
		loc = "central"
	}
	return economy.MustLookup(o.Type).Name + " (" + loc + ")"
}
