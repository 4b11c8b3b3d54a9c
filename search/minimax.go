package search

import (
	"context"
	"math"

	"github.com/brensch/pursuit/game"
)

// Engine is what the search needs from the game rules. rules.Engine
// implements it; tests substitute their own.
type Engine interface {
	AgentSuccessors(state *game.GameState) []game.Successor
	AdversarySuccessors(state *game.GameState, index int) []game.Successor
	IsWin(state *game.GameState) bool
	IsLose(state *game.GameState) bool
	Score(state *game.GameState) int
}

const (
	posInf = math.MaxInt
	negInf = math.MinInt

	// ctxCheckInterval is how many nodes pass between context polls.
	ctxCheckInterval = 256
)

// searcher holds the per-decision state of one tree walk. It is not reused
// across decisions.
type searcher struct {
	ctx       context.Context
	engine    Engine
	eval      *Evaluator
	prune     bool
	limited   bool
	budget    int64
	goalsRoot int

	nodes     int64
	truncated bool
}

// static is the cutoff value of a node: raw score plus the heuristic adjustment.
func (s *searcher) static(state *game.GameState) int {
	return s.engine.Score(state) + s.eval.Evaluate(state, s.goalsRoot)
}

// expired reports whether the node budget or the context has run out.
// Once it returns true it keeps returning true.
func (s *searcher) expired() bool {
	if s.truncated {
		return true
	}
	if s.budget > 0 && s.nodes > s.budget {
		s.truncated = true
		return true
	}
	if s.nodes%ctxCheckInterval == 0 && s.ctx.Err() != nil {
		s.truncated = true
		return true
	}
	return false
}

// nextMover is the side to move after mover plays. With no ghost on the board
// the agent moves again.
func nextMover(state *game.GameState, mover Mover) Mover {
	if mover == MoverAgent && len(state.Ghosts) > 0 {
		return MoverAdversary
	}
	return MoverAgent
}

func (s *searcher) successors(state *game.GameState, mover Mover) []game.Successor {
	if mover == MoverAgent {
		return s.engine.AgentSuccessors(state)
	}
	return s.engine.AdversarySuccessors(state, 0)
}

// value returns the minimax value of state with mover to play. fp is the
// fingerprint of (state, mover) and visited holds the fingerprints of every
// ancestor. depth counts the plies left before a cutoff and is ignored when
// the search is unlimited. alpha and beta are only consulted when pruning.
func (s *searcher) value(state *game.GameState, fp Fingerprint, mover Mover, depth int, visited Visited, alpha, beta int) int {
	s.nodes++

	if s.engine.IsWin(state) || s.engine.IsLose(state) {
		return s.engine.Score(state)
	}
	if s.expired() {
		return s.static(state)
	}
	if s.limited && depth <= 0 {
		return s.static(state)
	}

	succ := s.successors(state, mover)
	next := nextMover(state, mover)
	childVisited := visited.With(fp)

	maximizing := mover == MoverAgent
	best := posInf
	if maximizing {
		best = negInf
	}
	explored := 0

	for _, c := range succ {
		cfp := ComputeFingerprint(c.State, next)
		if childVisited.Contains(cfp) {
			continue
		}
		explored++

		v := s.value(c.State, cfp, next, depth-1, childVisited, alpha, beta)
		if maximizing {
			if v > best {
				best = v
			}
			if best > alpha {
				alpha = best
			}
		} else {
			if v < best {
				best = v
			}
			if best < beta {
				beta = best
			}
		}
		if s.prune && alpha >= beta {
			break
		}
	}

	if explored == 0 {
		return s.static(state)
	}
	return best
}

// rootResult is the outcome of searching every agent reply at the root.
type rootResult struct {
	move  game.Move
	value int
	found bool
}

// root searches each reply in order and keeps the first one with the highest
// value. rootFP must be the fingerprint of (state, MoverAgent).
func (s *searcher) root(state *game.GameState, rootFP Fingerprint, replies []game.Successor, depth int) rootResult {
	s.nodes++
	next := nextMover(state, MoverAgent)
	visited := NewVisited(rootFP)

	res := rootResult{value: negInf}
	alpha := negInf
	for _, c := range replies {
		cfp := ComputeFingerprint(c.State, next)
		if visited.Contains(cfp) {
			continue
		}
		v := s.value(c.State, cfp, next, depth, visited, alpha, posInf)
		if !res.found || v > res.value {
			res = rootResult{move: c.Move, value: v, found: true}
		}
		if s.prune && res.value > alpha {
			alpha = res.value
		}
	}
	return res
}
