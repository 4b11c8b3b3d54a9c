// Package search chooses moves for the agent with minimax, alpha-beta
// pruning or a depth-limited heuristic search. Every variant avoids revisiting
// configurations along a branch, so unbounded searches still terminate.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/brensch/pursuit/game"
)

var (
	ErrMalformedState     = errors.New("malformed state")
	ErrTooManyAdversaries = errors.New("search supports at most one adversary")
	ErrNoLegalMoves       = errors.New("no legal moves")
)

// Mode selects the tree walk.
type Mode int

const (
	// ModeAlphaBeta is minimax with alpha-beta cutoffs.
	ModeAlphaBeta Mode = iota
	// ModeMinimax expands every child.
	ModeMinimax
	// ModeHeuristic is minimax cut off at a fixed depth.
	ModeHeuristic
)

// DefaultHeuristicDepth is the cutoff used by ModeHeuristic when Config.Depth is unset.
const DefaultHeuristicDepth = 2

func (m Mode) String() string {
	switch m {
	case ModeMinimax:
		return "minimax"
	case ModeHeuristic:
		return "heuristic"
	default:
		return "alphabeta"
	}
}

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "alphabeta", "alpha-beta", "ab":
		return ModeAlphaBeta, nil
	case "minimax", "mm":
		return ModeMinimax, nil
	case "heuristic", "hminimax", "h":
		return ModeHeuristic, nil
	}
	return 0, fmt.Errorf("unknown search mode %q", s)
}

// Config controls a search Agent.
type Config struct {
	Mode Mode
	// Depth is the number of plies searched below the agent's reply before
	// the heuristic takes over. Zero means search to terminal states, except
	// in ModeHeuristic where it means DefaultHeuristicDepth.
	Depth int
	// NodeBudget caps the nodes expanded per decision. Zero means no cap.
	NodeBudget int64
	Logger     *slog.Logger
}

func DefaultConfig() Config {
	return Config{
		Mode:       ModeAlphaBeta,
		Depth:      4,
		NodeBudget: 2_000_000,
		Logger:     slog.Default(),
	}
}

// EffectiveDepth resolves the ply limit; zero means unlimited.
func (c Config) EffectiveDepth() int {
	if c.Mode == ModeHeuristic && c.Depth <= 0 {
		return DefaultHeuristicDepth
	}
	if c.Depth < 0 {
		return 0
	}
	return c.Depth
}

// Decision describes one call to Decide.
type Decision struct {
	Move game.Move
	// Value is the searched value of Move. It is zero on a cache hit.
	Value       int
	Nodes       int64
	CacheHit    bool
	Truncated   bool
	Fingerprint Fingerprint
	Elapsed     time.Duration
}

// Agent picks moves for one game session. Its decision cache lives as long
// as the Agent, so use a fresh Agent per game.
type Agent struct {
	engine Engine
	eval   *Evaluator
	cache  *DecisionCache
	cfg    Config
	log    *slog.Logger
}

// NewAgent returns an agent playing through engine. index may be shared
// between agents; a nil index gets a private one.
func NewAgent(engine Engine, index *DistanceIndex, cfg Config) *Agent {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{
		engine: engine,
		eval:   NewEvaluator(index),
		cache:  NewDecisionCache(),
		cfg:    cfg,
		log:    logger,
	}
}

func (a *Agent) Cache() *DecisionCache {
	return a.cache
}

func (a *Agent) Config() Config {
	return a.cfg
}

// Index is the distance index used by the heuristic.
func (a *Agent) Index() *DistanceIndex {
	return a.eval.Index()
}

// ChooseMove returns the agent's move for state.
func (a *Agent) ChooseMove(ctx context.Context, state *game.GameState) (game.Move, error) {
	d, err := a.Decide(ctx, state)
	if err != nil {
		return 0, err
	}
	return d.Move, nil
}

// Decide consults the decision cache and otherwise searches every agent reply.
// If ctx ends or the node budget runs out the best move found so far is
// returned with Truncated set, and it is not cached.
func (a *Agent) Decide(ctx context.Context, state *game.GameState) (Decision, error) {
	if err := validate(state); err != nil {
		return Decision{}, err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()

	fp := ComputeFingerprint(state, MoverAgent)
	if move, ok := a.cache.Lookup(fp); ok {
		return Decision{Move: move, CacheHit: true, Fingerprint: fp, Elapsed: time.Since(start)}, nil
	}

	replies := a.engine.AgentSuccessors(state)
	if len(replies) == 0 {
		return Decision{}, fmt.Errorf("agent at %s: %w", state.Agent, ErrNoLegalMoves)
	}

	depth := a.cfg.EffectiveDepth()
	s := &searcher{
		ctx:       ctx,
		engine:    a.engine,
		eval:      a.eval,
		prune:     a.cfg.Mode == ModeAlphaBeta,
		limited:   depth > 0,
		budget:    a.cfg.NodeBudget,
		goalsRoot: len(state.Food),
	}
	res := s.root(state, fp, replies, depth)
	if !res.found {
		// Every reply recreated the root; fall back to the first legal one.
		res = rootResult{move: replies[0].Move, value: s.static(replies[0].State), found: true}
	}

	d := Decision{
		Move:        res.move,
		Value:       res.value,
		Nodes:       s.nodes,
		Truncated:   s.truncated,
		Fingerprint: fp,
		Elapsed:     time.Since(start),
	}

	if !d.Truncated {
		if err := a.cache.Store(fp, d.Move); err != nil {
			a.log.Error("decision cache conflict", "turn", state.Turn, "move", d.Move.String(), "error", err)
			return d, fmt.Errorf("store decision: %w", err)
		}
	}

	a.log.Debug("decided",
		"turn", state.Turn,
		"mode", a.cfg.Mode.String(),
		"depth", depth,
		"move", d.Move.String(),
		"value", d.Value,
		"nodes", d.Nodes,
		"truncated", d.Truncated,
		"elapsed", d.Elapsed,
	)
	return d, nil
}

func validate(state *game.GameState) error {
	if state == nil {
		return fmt.Errorf("nil state: %w", ErrMalformedState)
	}
	if state.Layout == nil {
		return fmt.Errorf("missing layout: %w", ErrMalformedState)
	}
	if state.Layout.IsWall(state.Agent) {
		return fmt.Errorf("agent on wall or outside layout at %s: %w", state.Agent, ErrMalformedState)
	}
	if len(state.Ghosts) > 1 {
		return fmt.Errorf("%d ghosts: %w", len(state.Ghosts), ErrTooManyAdversaries)
	}
	for _, g := range state.Ghosts {
		if state.Layout.IsWall(g) {
			return fmt.Errorf("ghost on wall or outside layout at %s: %w", g, ErrMalformedState)
		}
	}
	return nil
}
