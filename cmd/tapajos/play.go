package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/talgya/tapajos/internal/engine"
	"github.com/talgya/tapajos/internal/entropy"
	"github.com/talgya/tapajos/internal/leaderboard"
	"github.com/talgya/tapajos/internal/persistence"
	"github.com/talgya/tapajos/internal/property"
)

var (
	titleColor = color.New(color.FgCyan, color.Bold)
	goodColor  = color.New(color.FgGreen)
	badColor   = color.New(color.FgRed)
	infoColor  = color.New(color.FgYellow)
)

func playCmd() *cobra.Command {
	var seed int64
	var offline bool
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play a game in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			if seed != 0 {
				cfg.Game.Seed = seed
			}
			return runPlay(cmd.Context(), offline)
		},
	}
	cmd.Flags().Int64Var(&seed, "seed", 0, "Seed for a reproducible game")
	cmd.Flags().BoolVar(&offline, "offline", false, "Do not save results or use the shared leaderboard")
	return cmd
}

func runPlay(ctx context.Context, offline bool) error {
	g := engine.NewGame(cfg.GameOptions(), entropy.FromConfig(cfg.Entropy.RandomOrgKey, cfg.Game.Seed))
	s := &session{g: g, out: os.Stdout, ctx: ctx}

	if !offline {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()
		s.db = db
		s.board = newBoard(db)
	}

	titleColor.Fprintln(s.out, "\n╭──────────────────────────────╮")
	titleColor.Fprintln(s.out, "│  Tapajos                     │")
	titleColor.Fprintln(s.out, "│  Fifteen years as a landlord │")
	titleColor.Fprintln(s.out, "╰──────────────────────────────╯")
	fmt.Fprintln(s.out, "Type 'help' for commands.")
	s.status()
	return s.run(os.Stdin)
}

// session is one interactive game. Buildings and offers are addressed by
// their 1-based position in the last listing.
type session struct {
	g     *engine.Game
	out   io.Writer
	ctx   context.Context
	db    *persistence.DB    // nil: results are not saved
	board *leaderboard.Board // nil: no sharing

	shared bool
}

func (s *session) run(in io.Reader) error {
	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(s.out, s.prompt())
		if !sc.Scan() {
			fmt.Fprintln(s.out)
			return sc.Err()
		}
		if s.exec(sc.Text()) {
			return nil
		}
	}
}

func (s *session) prompt() string {
	if s.g.Over {
		return "[game over] > "
	}
	return fmt.Sprintf("[year %d, %s] > ", s.g.Turn, money(s.g.Cash))
}

// exec runs one command line and reports whether the session should end.
func (s *session) exec(line string) (quit bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	var err error
	switch cmd {
	case "help", "h", "?":
		s.help()
	case "status", "s":
		s.status()
	case "market", "m":
		s.market()
	case "buy", "b":
		err = s.buy(args)
	case "renovate", "event", "energy", "attic", "convert", "amortize", "sell":
		err = s.act(cmd, args)
	case "odds":
		err = s.odds(args)
	case "negotiate":
		err = s.negotiate(args)
	case "incident", "i":
		s.incident()
	case "resolve":
		err = s.resolve(args)
	case "dismiss":
		err = s.g.DismissIncident()
	case "next", "n":
		err = s.next()
	case "events":
		s.events()
	case "summary":
		s.summary()
	case "share":
		err = s.share(args)
	case "quit", "q", "exit":
		return true
	default:
		err = fmt.Errorf("%w: unknown command %q, try 'help'", engine.ErrInvalidInput, cmd)
	}
	if err != nil {
		badColor.Fprintf(s.out, "✗ %v\n", err)
	}
	return false
}

func (s *session) help() {
	fmt.Fprint(s.out, `Commands:
  status                      portfolio and buildings
  market                      this year's offers
  buy N [loan]                buy offer N outright, or 30% down with a loan
  renovate|event|energy N     improve building N
  attic|convert N             start a two-year project or condo conversion
  amortize N                  pay down building N's loan
  sell N                      sell building N
  odds N RAISE [COMP]         chance of a RAISE% rent increase offering COMP per unit
  negotiate N RAISE [COMP]    ask for it
  incident                    show the open incident
  resolve K | dismiss         handle it
  next                        end the year
  events | summary | share NAME | quit
`)
}

// ── Views ─────────────────────────────────────────────────────────────

func (s *session) status() {
	st := s.g.Stats()
	infoColor.Fprintf(s.out, "\nYear %d of %d\n", min(s.g.Turn, s.g.Options.Horizon), s.g.Options.Horizon)
	fmt.Fprintf(s.out, "  Cash %s   Debt %s   Net worth %s\n", money(st.Cash), money(st.TotalDebt), money(st.NetWorth))
	fmt.Fprintf(s.out, "  Rent %s/yr   Maintenance %s/yr\n", money(st.AnnualRent), money(st.AnnualMaintenance))
	fmt.Fprintf(s.out, "  Market index %.2f   Base rate %.2f%%   Cap rate %.2f%%\n\n",
		s.g.Market.Index, s.g.Market.BaseRate*100, s.g.Market.CapRate*100)

	if len(s.g.Buildings) == 0 {
		fmt.Fprintln(s.out, "  No buildings yet. Try 'market'.")
		return
	}
	table := tablewriter.NewTable(s.out,
		tablewriter.WithHeader([]string{"#", "Building", "Condition", "Sat", "Consent", "Status", "Rent/mo", "Value", "Loan", "Busy"}),
	)
	for i, b := range s.g.Buildings {
		busy := ""
		switch {
		case b.Conversion != nil:
			busy = fmt.Sprintf("conversion %dy", b.Conversion.TurnsRemaining)
		case b.Project != nil:
			busy = fmt.Sprintf("attic %dy", b.Project.TurnsRemaining)
		}
		_ = table.Append([]string{
			strconv.Itoa(i + 1),
			b.String(),
			string(b.Condition),
			strconv.Itoa(b.Satisfaction),
			strconv.Itoa(b.Consent),
			statusText(b.Status()),
			humanize.Comma(b.Rent()),
			humanize.Comma(b.Value(s.g.Market)),
			humanize.Comma(s.loanBalance(b)),
			busy,
		})
	}
	_ = table.Render()
}

func statusText(st property.Status) string {
	switch st {
	case property.StatusReadyForConversion, property.StatusStable:
		return goodColor.Sprint(st)
	case property.StatusUnrest:
		return badColor.Sprint(st)
	}
	return infoColor.Sprint(st)
}

func (s *session) loanBalance(b *property.Building) int64 {
	if b.LoanID == "" {
		return 0
	}
	loan, err := s.g.Ledger.Find(b.LoanID)
	if err != nil {
		return 0
	}
	return loan.Balance
}

func (s *session) market() {
	if s.g.Over {
		fmt.Fprintln(s.out, "The market is closed.")
		return
	}
	offers := s.g.EnsureMarket()
	if len(offers) == 0 {
		fmt.Fprintln(s.out, "Nothing left on the market this year.")
		return
	}
	table := tablewriter.NewTable(s.out,
		tablewriter.WithHeader([]string{"#", "Offer", "Condition", "Price", "Down payment"}),
	)
	for i, o := range offers {
		_ = table.Append([]string{
			strconv.Itoa(i + 1),
			o.String(),
			string(o.Condition),
			humanize.Comma(o.Price),
			humanize.Comma(o.DownPayment()),
		})
	}
	_ = table.Render()
}

func (s *session) incident() {
	inc := s.g.Incident
	if inc == nil {
		fmt.Fprintln(s.out, "No open incident.")
		return
	}
	infoColor.Fprintf(s.out, "⚠ %s\n", inc.Title())
	fmt.Fprintf(s.out, "  %s\n", s.g.Description())
	for i, c := range s.g.Choices() {
		fmt.Fprintf(s.out, "  %d) %s\n", i+1, c.Label)
	}
}

func (s *session) events() {
	start := max(len(s.g.Events)-15, 0)
	for _, e := range s.g.Events[start:] {
		fmt.Fprintf(s.out, "  year %2d  %-9s %s\n", e.Turn, e.Category, e.Description)
	}
}

func (s *session) summary() {
	sum := s.g.Summary()
	titleColor.Fprintln(s.out, "\nResult")
	fmt.Fprintf(s.out, "  Net worth            %s\n", money(sum.NetWorth))
	fmt.Fprintf(s.out, "  Properties           %d\n", sum.PropertyCount)
	fmt.Fprintf(s.out, "  Average satisfaction %d%%\n", sum.AvgSatisfaction)
	fmt.Fprintf(s.out, "  Year                 %d\n", sum.Year)
}

// ── Commands ──────────────────────────────────────────────────────────

// index parses a 1-based position into a slice of length n.
func index(args []string, n int, what string) (int, error) {
	if len(args) == 0 {
		return 0, fmt.Errorf("%w: which %s?", engine.ErrInvalidInput, what)
	}
	i, err := strconv.Atoi(args[0])
	if err != nil || i < 1 || i > n {
		return 0, fmt.Errorf("%w: no %s %q", engine.ErrNotFound, what, args[0])
	}
	return i - 1, nil
}

func (s *session) building(args []string) (*property.Building, error) {
	i, err := index(args, len(s.g.Buildings), "building")
	if err != nil {
		return nil, err
	}
	return s.g.Buildings[i], nil
}

func (s *session) buy(args []string) error {
	if s.g.Over {
		return engine.ErrGameOver
	}
	offers := s.g.EnsureMarket()
	i, err := index(args, len(offers), "offer")
	if err != nil {
		return err
	}
	id := offers[i].ID

	var b *property.Building
	if len(args) > 1 && strings.HasPrefix(strings.ToLower(args[1]), "loan") {
		b, err = s.g.BuyFinanced(id)
	} else {
		b, err = s.g.BuyCash(id)
	}
	if err != nil {
		return err
	}
	goodColor.Fprintf(s.out, "✓ Bought %s\n", b)
	return nil
}

func (s *session) act(action string, args []string) error {
	b, err := s.building(args)
	if err != nil {
		return err
	}
	if action == "sell" {
		res, err := s.g.Sell(b.ID)
		if err != nil {
			return err
		}
		goodColor.Fprintf(s.out, "✓ Sold for %s, %s to the bank, %s to you\n", money(res.Gross), money(res.Payoff), money(res.Net))
		return nil
	}

	var res engine.ActionResult
	switch action {
	case "renovate":
		res, err = s.g.Renovate(b.ID)
	case "event":
		res, err = s.g.HostEvent(b.ID)
	case "energy":
		res, err = s.g.OptimizeEnergy(b.ID)
	case "attic":
		res, err = s.g.StartAtticConversion(b.ID)
	case "convert":
		res, err = s.g.StartConversion(b.ID)
	case "amortize":
		res, err = s.g.Amortize(b.ID)
	}
	if err != nil {
		return err
	}
	goodColor.Fprintf(s.out, "✓ %s (%s)\n", res.Note, money(res.Cost))
	return nil
}

// terms parses "N RAISE [COMP]".
func (s *session) terms(args []string) (*property.Building, int, int64, error) {
	b, err := s.building(args)
	if err != nil {
		return nil, 0, 0, err
	}
	if len(args) < 2 {
		return nil, 0, 0, fmt.Errorf("%w: raise percent required", engine.ErrInvalidInput)
	}
	raise, err := strconv.Atoi(args[1])
	if err != nil {
		return nil, 0, 0, fmt.Errorf("%w: raise %q", engine.ErrInvalidInput, args[1])
	}
	var comp int64
	if len(args) > 2 {
		if comp, err = strconv.ParseInt(args[2], 10, 64); err != nil {
			return nil, 0, 0, fmt.Errorf("%w: compensation %q", engine.ErrInvalidInput, args[2])
		}
	}
	return b, raise, comp, nil
}

func (s *session) odds(args []string) error {
	b, raise, comp, err := s.terms(args)
	if err != nil {
		return err
	}
	odds, err := s.g.Odds(b.ID, raise, comp)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "  %d%% chance, costs %s\n", odds, money(engine.NegotiationCost(b, comp)))
	return nil
}

func (s *session) negotiate(args []string) error {
	b, raise, comp, err := s.terms(args)
	if err != nil {
		return err
	}
	res, err := s.g.Negotiate(b.ID, raise, comp)
	if err != nil {
		return err
	}
	if res.Won {
		goodColor.Fprintf(s.out, "✓ Tenants accepted a %d%% raise (odds were %d%%)\n", raise, res.Odds)
	} else {
		badColor.Fprintf(s.out, "✗ Tenants refused (odds were %d%%)\n", res.Odds)
	}
	return nil
}

func (s *session) resolve(args []string) error {
	if s.g.Incident == nil {
		return fmt.Errorf("%w: no open incident", engine.ErrNotFound)
	}
	choices := s.g.Choices()
	i, err := index(args, len(choices), "choice")
	if err != nil {
		return err
	}
	out, err := s.g.ResolveIncident(choices[i].Resolution)
	if err != nil {
		return err
	}
	goodColor.Fprintf(s.out, "✓ %s\n", out.Note)
	return nil
}

func (s *session) next() error {
	rep, err := s.g.AdvanceTurn()
	if err != nil {
		return err
	}
	infoColor.Fprintf(s.out, "\nYear %d closed\n", rep.Turn)
	fmt.Fprintf(s.out, "  Rent %s  Maintenance %s  Interest %s  Principal %s\n",
		money(rep.Rent), money(rep.Maintenance), money(rep.Interest), money(rep.Principal))
	if rep.Payouts != 0 {
		fmt.Fprintf(s.out, "  Payouts %s\n", money(rep.Payouts))
	}
	profit := goodColor
	if rep.Profit < 0 {
		profit = badColor
	}
	profit.Fprintf(s.out, "  Profit %s\n", money(rep.Profit))
	fmt.Fprintf(s.out, "  Market index %.2f (%+.1f%%)\n", rep.MarketIndex, rep.Drift*100)
	for _, c := range rep.Completed {
		goodColor.Fprintf(s.out, "  Conversion of %s complete: %s net\n", c.Name, money(c.Net))
	}
	if len(rep.Worn) > 0 {
		badColor.Fprintf(s.out, "  %d building(s) wore down\n", len(rep.Worn))
	}

	if rep.Over {
		titleColor.Fprintln(s.out, "\nFifteen years are up.")
		s.summary()
		fmt.Fprintln(s.out, "Use 'share NAME' to post your result.")
		return nil
	}
	if rep.Incident != nil {
		fmt.Fprintln(s.out)
		s.incident()
	}
	return nil
}

// share saves the finished game locally and posts it to the shared
// leaderboard.
func (s *session) share(args []string) error {
	if !s.g.Over {
		return fmt.Errorf("share: %w", property.ErrInvalidState)
	}
	sum := s.g.Summary()
	fmt.Fprint(s.out, sum.ShareText())
	if s.shared {
		return nil
	}
	name := leaderboard.CleanName(strings.Join(args, " "))

	if s.db != nil {
		if _, err := s.db.SaveResult(persistence.Result{
			Name:            name,
			NetWorth:        sum.NetWorth,
			PropertyCount:   sum.PropertyCount,
			AvgSatisfaction: sum.AvgSatisfaction,
			Year:            sum.Year,
			Version:         cfg.Leaderboard.Version,
		}); err != nil {
			slog.Error("result save failed", "error", err)
		}
	}
	if s.board == nil {
		return nil
	}
	err := s.board.Submit(s.ctx, leaderboard.Entry{
		Name:     name,
		NetWorth: sum.NetWorth,
		Props:    sum.PropertyCount,
		AvgSat:   sum.AvgSatisfaction,
		Year:     sum.Year,
	})
	if err != nil {
		return fmt.Errorf("leaderboard unavailable: %w", err)
	}
	s.shared = true
	goodColor.Fprintf(s.out, "✓ Submitted as %s\n", name)

	top, err := s.board.Top(s.ctx, 10)
	if err != nil && !errors.Is(err, leaderboard.ErrFetch) {
		return err
	}
	printRows(s.out, top)
	return nil
}

func money(v int64) string {
	return humanize.Comma(v) + " kr"
}
