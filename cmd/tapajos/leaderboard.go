package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/talgya/tapajos/internal/leaderboard"
)

func leaderboardCmd() *cobra.Command {
	var (
		top     int
		refresh bool
		local   bool
	)
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Show the shared leaderboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			if local {
				results, err := db.Results(top)
				if err != nil {
					return err
				}
				rows := make([]leaderboard.Row, 0, len(results))
				for _, r := range results {
					rows = append(rows, leaderboard.Row{
						At:      r.CreatedAt,
						Name:    r.Name,
						Score:   r.NetWorth,
						Props:   r.PropertyCount,
						AvgSat:  float64(r.AvgSatisfaction),
						Year:    r.Year,
						Version: r.Version,
					})
				}
				printRows(os.Stdout, rows)
				return nil
			}

			board := newBoard(db)
			if refresh {
				if _, err := board.Refresh(cmd.Context()); err != nil {
					return err
				}
			}
			rows, err := board.Top(cmd.Context(), top)
			if err != nil {
				return err
			}
			st, err := board.Stats(cmd.Context())
			if err != nil {
				return err
			}
			titleColor.Printf("\nLeaderboard v%s\n", cfg.Leaderboard.Version)
			printRows(os.Stdout, rows)
			fmt.Printf("%s games by %d players. Median %s, mean %s, best %s\n",
				humanize.Comma(int64(st.TotalGames)), st.UniqueNames,
				money(st.Median), money(st.Mean), money(st.TopScore))
			return nil
		},
	}
	cmd.Flags().IntVarP(&top, "top", "n", 10, "Number of players to show")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Bypass the cached copy")
	cmd.Flags().BoolVar(&local, "local", false, "Show results saved on this machine instead")
	return cmd
}

func printRows(w io.Writer, rows []leaderboard.Row) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No results yet.")
		return
	}
	table := tablewriter.NewTable(w,
		tablewriter.WithHeader([]string{"#", "Name", "Net worth", "Props", "Avg sat", "When"}),
	)
	for i, r := range rows {
		when := ""
		if !r.At.IsZero() {
			when = humanize.Time(r.At)
		}
		_ = table.Append([]string{
			strconv.Itoa(i + 1),
			r.Name,
			humanize.Comma(r.Score),
			strconv.Itoa(r.Props),
			fmt.Sprintf("%.0f%%", r.AvgSat),
			when,
		})
	}
	_ = table.Render()
}
