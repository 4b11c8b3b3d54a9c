// Package session plays complete games: the search agent against a scripted
// ghost, recording one decision row per turn.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/brensch/pursuit/game"
	"github.com/brensch/pursuit/rules"
	"github.com/brensch/pursuit/search"
	"github.com/brensch/pursuit/store"
)

// Ghost policies selectable by name.
const (
	GhostGreedy = "greedy"
	GhostRandom = "random"
)

type Config struct {
	Search   search.Config
	Ghost    string
	MaxTurns int
	Seed     int64
	// Parallelism bounds concurrent games in PlayMany. Zero means no bound.
	Parallelism int
	Trace       bool
	Logger      *slog.Logger

	// OnTurn, if set, is called after every agent decision from the game's
	// goroutine.
	OnTurn func(Update)
}

func DefaultConfig() Config {
	return Config{
		Search:   search.DefaultConfig(),
		Ghost:    GhostGreedy,
		MaxTurns: 500,
		Seed:     1,
		Logger:   slog.Default(),
	}
}

// Update is a snapshot after one full turn.
type Update struct {
	GameID   string
	Layout   string
	State    *game.GameState
	Decision search.Decision
}

// Result summarizes one game.
type Result struct {
	GameID    string
	Layout    string
	Status    game.Status
	Score     int
	Turns     int
	Nodes     int64
	CacheHits int
	Rows      []store.DecisionRow
}

// Game is a named starting position.
type Game struct {
	Layout string
	State  *game.GameState
}

func (c Config) ghostPolicy(index *search.DistanceIndex, layout *game.Layout, seed int64) (rules.GhostPolicy, error) {
	switch strings.ToLower(c.Ghost) {
	case "", GhostGreedy:
		return rules.GreedyGhost{Distances: index.Table(layout)}, nil
	case GhostRandom:
		return rules.NewRandomGhost(seed), nil
	default:
		return nil, fmt.Errorf("unknown ghost policy %q", c.Ghost)
	}
}

// Play runs one game from start until it ends or MaxTurns agent moves have
// been made. On cancellation the partial result is returned with ctx.Err().
func Play(ctx context.Context, g Game, index *search.DistanceIndex, cfg Config) (Result, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if index == nil {
		index = search.NewDistanceIndex()
	}
	if g.State == nil || g.State.Layout == nil {
		return Result{}, fmt.Errorf("game %q: %w", g.Layout, search.ErrMalformedState)
	}

	scfg := cfg.Search
	scfg.Logger = logger
	agent := search.NewAgent(rules.Engine{}, index, scfg)

	// The ghost chases along the same distance table the agent searches with.
	ghost, err := cfg.ghostPolicy(agent.Index(), g.State.Layout, cfg.Seed)
	if err != nil {
		return Result{}, err
	}

	res := Result{GameID: uuid.NewString(), Layout: g.Layout}
	logger = logger.With("game", res.GameID, "layout", g.Layout)
	state := g.State.Clone()

	finish := func() {
		res.Status = state.Status
		res.Score = int(state.Score)
		for i := range res.Rows {
			res.Rows[i].Outcome = res.Status.String()
			res.Rows[i].FinalScore = state.Score
		}
	}

	for !state.Terminal() && (cfg.MaxTurns <= 0 || res.Turns < cfg.MaxTurns) {
		if err := ctx.Err(); err != nil {
			finish()
			return res, err
		}

		d, err := agent.Decide(ctx, state)
		if err != nil {
			finish()
			return res, fmt.Errorf("turn %d: %w", state.Turn, err)
		}
		if cfg.Trace {
			PrintBoard(state, &d)
		}
		res.Rows = append(res.Rows, Row(res.GameID, g.Layout, scfg, state, d))
		res.Turns++
		res.Nodes += d.Nodes
		if d.CacheHit {
			res.CacheHits++
		}

		state = rules.NextAgentState(state, d.Move)
		for i := range state.Ghosts {
			if state.Terminal() {
				break
			}
			if m, ok := ghost.Move(state, i); ok {
				state = rules.NextGhostState(state, i, m)
			}
		}

		if cfg.OnTurn != nil {
			cfg.OnTurn(Update{GameID: res.GameID, Layout: g.Layout, State: state.Clone(), Decision: d})
		}
	}

	finish()
	logger.Info("game finished",
		"status", res.Status.String(),
		"score", res.Score,
		"turns", res.Turns,
		"nodes", res.Nodes,
		"cache_hits", res.CacheHits,
	)
	return res, nil
}

// PlayMany plays games concurrently on a shared distance index. onGame is
// called once per finished game, never concurrently. The first error cancels
// the remaining games.
func PlayMany(ctx context.Context, games []Game, index *search.DistanceIndex, cfg Config, onGame func(Result) error) ([]Result, error) {
	if index == nil {
		index = search.NewDistanceIndex()
	}

	results := make([]Result, len(games))
	var mu sync.Mutex

	eg, ctx := errgroup.WithContext(ctx)
	if cfg.Parallelism > 0 {
		eg.SetLimit(cfg.Parallelism)
	}
	for i, g := range games {
		gcfg := cfg
		gcfg.Seed = cfg.Seed + int64(i)
		eg.Go(func() error {
			res, err := Play(ctx, g, index, gcfg)
			if err != nil {
				return fmt.Errorf("game %d (%s): %w", i, g.Layout, err)
			}
			results[i] = res
			if onGame == nil {
				return nil
			}
			mu.Lock()
			defer mu.Unlock()
			return onGame(res)
		})
	}
	if err := eg.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// Row records decision d, made by an agent configured with cfg, from state.
func Row(gameID, layout string, cfg search.Config, state *game.GameState, d search.Decision) store.DecisionRow {
	return store.DecisionRow{
		GameID:        gameID,
		Layout:        layout,
		Turn:          state.Turn,
		Mode:          cfg.Mode.String(),
		Depth:         int32(cfg.EffectiveDepth()),
		Fingerprint:   []byte(d.Fingerprint),
		Move:          d.Move.String(),
		Value:         int64(d.Value),
		Nodes:         d.Nodes,
		CacheHit:      d.CacheHit,
		Truncated:     d.Truncated,
		ElapsedMicros: d.Elapsed.Microseconds(),
		Score:         state.Score,
		FoodLeft:      int32(len(state.Food)),
		Status:        state.Status.String(),
		Board:         strings.Join(game.FormatBoard(state), "\n"),
	}
}
