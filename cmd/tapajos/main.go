// Command tapajos runs the Tapajos property-management game: an interactive
// terminal session, an HTTP server, batch autopilot simulations and the
// shared leaderboard.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/talgya/tapajos/internal/config"
	"github.com/talgya/tapajos/internal/leaderboard"
	"github.com/talgya/tapajos/internal/persistence"
)

var (
	configFile string
	logLevel   string

	cfg config.Config
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "tapajos",
		Short: "Tapajos, a fifteen-year property management game",
		Long: `Buy apartment buildings, keep the tenants content, carry the loans
and convert to condominiums when the tenants agree. Net worth after
fifteen years is the score.`,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(playCmd(), serveCmd(), simulateCmd(), leaderboardCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads the configuration and installs the default logger.
func setup(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(configFile)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	level, err := config.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}

	// The interactive game writes to stdout; keep its log lines apart.
	out := os.Stdout
	if cmd.Name() == "play" {
		out = os.Stderr
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{
		Level: level,
	})))
	return nil
}

// openDB opens the configured database, creating its directory.
func openDB() (*persistence.DB, error) {
	if dir := filepath.Dir(cfg.Database.Path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	db, err := persistence.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	slog.Info("database opened", "path", cfg.Database.Path)
	return db, nil
}

// newBoard builds the shared leaderboard, cached in cache.
func newBoard(cache leaderboard.Cache) *leaderboard.Board {
	lb := cfg.Leaderboard
	client := leaderboard.NewClient(lb.SheetURL, lb.FormURL, lb.Version, leaderboard.Fields{
		Name:     lb.Fields.Name,
		NetWorth: lb.Fields.NetWorth,
		Props:    lb.Fields.Props,
		AvgSat:   lb.Fields.AvgSat,
		Year:     lb.Fields.Year,
		Version:  lb.Fields.Version,
	}, lb.SubmitTimeout, nil)
	return leaderboard.NewBoard(client, cache, lb.CacheTTL)
}
