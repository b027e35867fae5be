package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"slices"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/talgya/tapajos/internal/autopilot"
)

func simulateCmd() *cobra.Command {
	var (
		games     int
		seed      int64
		workers   int
		asJSON    bool
		noFinance bool
	)
	policy := autopilot.DefaultPolicy()
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Play many games with the autopilot and report the results",
		RunE: func(cmd *cobra.Command, args []string) error {
			if games < 1 {
				return errors.New("--games must be at least 1")
			}
			policy.Finance = !noFinance
			seeds := make([]int64, games)
			for i := range seeds {
				seeds[i] = seed + int64(i)
			}

			start := time.Now()
			out := autopilot.Simulate(cmd.Context(), cfg.GameOptions(), policy, seeds, workers)
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}
			printOutcomes(os.Stdout, out)
			fmt.Printf("%d games in %s\n", len(out), time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
	cmd.Flags().IntVarP(&games, "games", "n", 20, "Number of games")
	cmd.Flags().Int64Var(&seed, "seed", 1, "Seed of the first game; the rest count up")
	cmd.Flags().IntVarP(&workers, "workers", "w", runtime.NumCPU(), "Games played in parallel")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print outcomes as JSON")
	cmd.Flags().Int64Var(&policy.Reserve, "reserve", policy.Reserve, "Cash the autopilot keeps back")
	cmd.Flags().IntVar(&policy.MaxBuildings, "max-buildings", policy.MaxBuildings, "Largest portfolio the autopilot builds")
	cmd.Flags().IntVar(&policy.RaiseOdds, "raise-odds", policy.RaiseOdds, "Minimum odds before asking for a raise")
	cmd.Flags().BoolVar(&noFinance, "no-finance", false, "Buy with cash only")
	return cmd
}

func printOutcomes(w io.Writer, out []autopilot.Outcome) {
	table := tablewriter.NewTable(w,
		tablewriter.WithHeader([]string{"Seed", "Net worth", "Props", "Avg sat", "Moves", "Rejected", "Error"}),
	)
	var worths []int64
	for _, o := range out {
		errText := ""
		if o.Err != nil {
			errText = o.Err.Error()
		} else {
			worths = append(worths, o.Summary.NetWorth)
		}
		_ = table.Append([]string{
			strconv.FormatInt(o.Seed, 10),
			humanize.Comma(o.Summary.NetWorth),
			strconv.Itoa(o.Summary.PropertyCount),
			strconv.Itoa(o.Summary.AvgSatisfaction),
			strconv.Itoa(o.Moves),
			strconv.Itoa(o.Rejected),
			errText,
		})
	}
	_ = table.Render()

	if len(worths) == 0 {
		return
	}
	slices.Sort(worths)
	var sum int64
	for _, v := range worths {
		sum += v
	}
	fmt.Fprintf(w, "net worth: min %s, median %s, mean %s, max %s\n",
		money(worths[0]),
		money(worths[len(worths)/2]),
		money(sum/int64(len(worths))),
		money(worths[len(worths)-1]),
	)
}
