package engine

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/talgya/tapajos/internal/economy"
)

// Summary is the end-of-game result.
type Summary struct {
	NetWorth        int64 `json:"net_worth"`
	PropertyCount   int   `json:"property_count"`
	AvgSatisfaction int   `json:"avg_satisfaction"`
	Year            int   `json:"year"`
}

// Summary computes the result as it stands: cash plus every building's
// valuation minus all outstanding debt.
func (g *Game) Summary() Summary {
	var value int64
	var sat int
	for _, b := range g.Buildings {
		value += b.Value(g.Market)
		sat += b.Satisfaction
	}
	s := Summary{
		NetWorth:      g.Cash + value - g.Ledger.TotalDebt(),
		PropertyCount: len(g.Buildings),
		Year:          min(g.Options.Horizon, g.Turn),
	}
	if n := len(g.Buildings); n > 0 {
		s.AvgSatisfaction = int(economy.Round(float64(sat) / float64(n)))
	}
	return s
}

// ShareText renders the result as a short plain-text message.
func (s Summary) ShareText() string {
	var sb strings.Builder
	sb.WriteString("Tapajos result\n")
	fmt.Fprintf(&sb, "Net worth: %s kr\n", humanize.Comma(s.NetWorth))
	fmt.Fprintf(&sb, "Properties: %d\n", s.PropertyCount)
	fmt.Fprintf(&sb, "Average satisfaction: %d%%\n", s.AvgSatisfaction)
	fmt.Fprintf(&sb, "Year: %d\n", s.Year)
	return sb.String()
}

// Stats are the running portfolio figures.
type Stats struct {
	Cash              int64 `json:"cash"`
	TotalDebt         int64 `json:"total_debt"`
	AnnualRent        int64 `json:"annual_rent"`
	AnnualMaintenance int64 `json:"annual_maintenance"`
	PortfolioValue    int64 `json:"portfolio_value"`
	NetWorth          int64 `json:"net_worth"`
}

// Stats computes the portfolio figures at the current market.
func (g *Game) Stats() Stats {
	st := Stats{Cash: g.Cash, TotalDebt: g.Ledger.TotalDebt()}
	for _, b := range g.Buildings {
		st.AnnualRent += b.Rent() * 12
		st.AnnualMaintenance += b.Maintenance() * 12
		st.PortfolioValue += b.Value(g.Market)
	}
	st.NetWorth = st.Cash + st.PortfolioValue - st.TotalDebt
	return st
}
