package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/talgya/tapajos/internal/api"
	"github.com/talgya/tapajos/internal/engine"
	"github.com/talgya/tapajos/internal/entropy"
)

func serveCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a game session over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			if port > 0 {
				cfg.API.Port = port
			}
			return runServe()
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Listen port (overrides config)")
	return cmd
}

func runServe() error {
	// ── Database ──────────────────────────────────────────────────────
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	// ── Load or Start Game ────────────────────────────────────────────
	opts := cfg.GameOptions()
	newSource := func() entropy.Source {
		return entropy.FromConfig(cfg.Entropy.RandomOrgKey, cfg.Game.Seed)
	}

	var g *engine.Game
	saved, err := db.HasGame()
	if err != nil {
		return fmt.Errorf("check saved game: %w", err)
	}
	if saved {
		st, err := db.LoadGame()
		if err != nil {
			return fmt.Errorf("load game: %w", err)
		}
		g = engine.Restore(st, opts, newSource())
		slog.Info("game restored", "turn", g.Turn, "cash", g.Cash, "buildings", len(g.Buildings), "over", g.Over)
	} else {
		g = engine.NewGame(opts, newSource())
		g.EnsureMarket()
		if err := db.SaveGame(g.State); err != nil {
			slog.Error("initial save failed", "error", err)
		}
		slog.Info("new game started", "cash", g.Cash, "horizon", opts.Horizon)
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	if cfg.API.AdminKey == "" {
		slog.Warn("TAPAJOS_ADMIN_KEY not set, admin endpoints are disabled")
	}
	srv := api.New(g, opts)
	srv.DB = db
	srv.Board = newBoard(db)
	srv.Limiter = api.NewRateLimiter(cfg.API.RateLimit, cfg.API.Burst)
	srv.Port = cfg.API.Port
	srv.AdminKey = cfg.API.AdminKey
	srv.Version = cfg.Leaderboard.Version
	srv.NewSource = newSource

	// ── Start ─────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("\nTapajos is open: year %d of %d, %d buildings.\n", g.Turn, opts.Horizon, len(g.Buildings))
	fmt.Printf("API: http://localhost:%d/api/v1/status\n", cfg.API.Port)

	if err := srv.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	fmt.Println("Server stopped. Game saved.")
	return nil
}
