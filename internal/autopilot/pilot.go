package autopilot

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/talgya/tapajos/internal/engine"
	"github.com/talgya/tapajos/internal/entropy"
)

// maxMovesPerTurn bounds the observe-decide-act cycles in one year.
const maxMovesPerTurn = 64

// Pilot plays a game with a Policy.
type Pilot struct {
	Policy Policy
	Memory Memory

	Moves    int // successful moves over the whole game
	Rejected int
}

func New(p Policy) *Pilot {
	return &Pilot{Policy: p}
}

// Turn makes the year's moves. Rejected moves are not retried within the
// year; only unexpected errors are returned.
func (p *Pilot) Turn(g *engine.Game) error {
	tried := make(map[string]bool)
	rec := TurnRecord{Turn: g.Turn}

	for i := 0; i < maxMovesPerTurn; i++ {
		snap := Observe(g)
		health := Triage(snap, p.Policy.Reserve)
		if i == 0 {
			rec.Liquidity = health.Liquidity
		}

		move := p.Policy.Decide(snap, health, tried)
		if move.Action == ActionNone {
			break
		}
		tried[move.Key()] = true

		note, err := Act(g, move)
		if err != nil {
			if engine.KindOf(err) == engine.KindUnknown {
				return err
			}
			rec.Rejected++
			p.Rejected++
			slog.Debug("autopilot move rejected", "turn", g.Turn, "action", move.Action, "error", err)
			continue
		}
		slog.Debug("autopilot move",
			"turn", g.Turn,
			"action", move.Action,
			"building", move.BuildingID,
			"rationale", move.Rationale,
			"result", note,
		)
		rec.Moves = append(rec.Moves, string(move.Action))
		p.Moves++
	}

	rec.Cash = g.Cash
	rec.NetWorth = g.Summary().NetWorth
	p.Memory.Record(rec)
	return nil
}

// Play runs g to the end with the pilot making every year's moves.
func (p *Pilot) Play(ctx context.Context, g *engine.Game) (engine.Summary, error) {
	return engine.NewScheduler(g).Play(ctx, 0, p.Turn)
}

// Outcome is the result of one simulated game.
type Outcome struct {
	Seed     int64          `json:"seed"`
	Summary  engine.Summary `json:"summary"`
	Moves    int            `json:"moves"`
	Rejected int            `json:"rejected"`
	Err      error          `json:"-"`
}

// Simulate plays one game per seed on at most workers goroutines and
// returns the outcomes in seed order. Seeds not started before ctx is done
// report ctx.Err().
func Simulate(ctx context.Context, opts engine.Options, policy Policy, seeds []int64, workers int) []Outcome {
	out := make([]Outcome, len(seeds))

	var eg errgroup.Group
	eg.SetLimit(max(1, workers))
	for i, seed := range seeds {
		if err := ctx.Err(); err != nil {
			out[i] = Outcome{Seed: seed, Err: err}
			continue
		}
		i, seed := i, seed
		eg.Go(func() error {
			out[i] = simulateOne(ctx, opts, policy, seed)
			return nil
		})
	}
	_ = eg.Wait()
	return out
}

func simulateOne(ctx context.Context, opts engine.Options, policy Policy, seed int64) Outcome {
	g := engine.NewGame(opts, entropy.NewSeeded(seed))
	p := New(policy)
	sum, err := p.Play(ctx, g)

	o := Outcome{Seed: seed, Summary: sum, Moves: p.Moves, Rejected: p.Rejected, Err: err}
	if err != nil {
		slog.Warn("simulated game failed", "seed", seed, "error", err)
	}
	return o
}
