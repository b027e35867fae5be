package engine

import (
	"context"
	"log/slog"
	"time"
)

// Scheduler drives a game forward one year at a time and notifies hooks.
type Scheduler struct {
	Game *Game

	// Callbacks, populated during setup.
	OnTurn     func(rep TurnReport) // after every advance
	OnGameOver func(s Summary)      // once, after the final advance
}

// NewScheduler wraps g.
func NewScheduler(g *Game) *Scheduler {
	return &Scheduler{Game: g}
}

// Advance moves the game one year and runs the hooks.
func (s *Scheduler) Advance() (TurnReport, error) {
	rep, err := s.Game.AdvanceTurn()
	if err != nil {
		return rep, err
	}
	if s.OnTurn != nil {
		s.OnTurn(rep)
	}
	if rep.Over {
		sum := s.Game.Summary()
		slog.Info("game over",
			"net_worth", sum.NetWorth,
			"properties", sum.PropertyCount,
			"avg_satisfaction", sum.AvgSatisfaction,
			"year", sum.Year,
		)
		if s.OnGameOver != nil {
			s.OnGameOver(sum)
		}
	}
	return rep, nil
}

// Play runs the game to the end. Before each advance, act is called to make
// the year's moves; an error from act stops play. A positive interval paces
// the loop for spectators.
func (s *Scheduler) Play(ctx context.Context, interval time.Duration, act func(g *Game) error) (Summary, error) {
	slog.Info("game started", "turn", s.Game.Turn, "cash", s.Game.Cash)

	for !s.Game.Over {
		if err := ctx.Err(); err != nil {
			return s.Game.Summary(), err
		}
		start := time.Now()

		if act != nil {
			if err := act(s.Game); err != nil {
				return s.Game.Summary(), err
			}
		}
		if _, err := s.Advance(); err != nil {
			return s.Game.Summary(), err
		}

		if elapsed := time.Since(start); interval > 0 && elapsed < interval {
			select {
			case <-ctx.Done():
				return s.Game.Summary(), ctx.Err()
			case <-time.After(interval - elapsed):
			}
		}
	}
	return s.Game.Summary(), nil
}
