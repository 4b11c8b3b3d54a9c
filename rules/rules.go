// Package rules implements the reference pursuit game engine: legal moves,
// successor generation, scoring and terminal detection.
//
// The search only ever talks to the engine through these functions, so
// every transition returns a fresh state and never touches its input.
package rules

import (
	"github.com/brensch/pursuit/game"
)

// Scoring follows the classic pacman rules.
const (
	TimePenalty = 1
	FoodReward  = 10
	WinReward   = 500
	LosePenalty = 500
)

// Engine is the reference engine. The zero value is ready to use.
type Engine struct{}

// LegalMoves returns the moves that keep a piece at p on an open cell.
func LegalMoves(state *game.GameState, p game.Point) []game.Move {
	moves := make([]game.Move, 0, 4)
	for _, m := range game.Moves {
		if !state.Layout.IsWall(p.Add(m.Delta())) {
			moves = append(moves, m)
		}
	}
	return moves
}

// NextAgentState returns the state after the agent plays move.
// The move is assumed legal; terminal states are returned unchanged (cloned).
func NextAgentState(state *game.GameState, move game.Move) *game.GameState {
	next := state.Clone()
	if state.Terminal() {
		return next
	}
	next.Turn++
	next.Agent = state.Agent.Add(move.Delta())
	next.Score -= TimePenalty

	if next.RemoveFood(next.Agent) {
		next.Score += FoodReward
		if len(next.Food) == 0 {
			next.Score += WinReward
			next.Status = game.StatusWon
		}
	}

	checkDeath(next)
	return next
}

// NextGhostState returns the state after ghost index plays move.
func NextGhostState(state *game.GameState, index int, move game.Move) *game.GameState {
	next := state.Clone()
	if state.Terminal() {
		return next
	}
	next.Ghosts[index] = state.Ghosts[index].Add(move.Delta())
	checkDeath(next)
	return next
}

// checkDeath applies the collision rule. A win on the same step takes precedence.
func checkDeath(state *game.GameState) {
	if state.Status == game.StatusWon {
		return
	}
	if state.GhostAt(state.Agent) {
		state.Score -= LosePenalty
		state.Status = game.StatusLost
	}
}

// AgentSuccessors enumerates (state, move) pairs for every legal agent move.
func (Engine) AgentSuccessors(state *game.GameState) []game.Successor {
	if state.Terminal() {
		return nil
	}
	moves := LegalMoves(state, state.Agent)
	out := make([]game.Successor, 0, len(moves))
	for _, m := range moves {
		out = append(out, game.Successor{State: NextAgentState(state, m), Move: m})
	}
	return out
}

// AdversarySuccessors enumerates successors for ghost index.
// An index without a ghost has no successors.
func (Engine) AdversarySuccessors(state *game.GameState, index int) []game.Successor {
	if state.Terminal() || index < 0 || index >= len(state.Ghosts) {
		return nil
	}
	moves := LegalMoves(state, state.Ghosts[index])
	out := make([]game.Successor, 0, len(moves))
	for _, m := range moves {
		out = append(out, game.Successor{State: NextGhostState(state, index, m), Move: m})
	}
	return out
}

func (Engine) IsWin(state *game.GameState) bool {
	return state.Status == game.StatusWon
}

func (Engine) IsLose(state *game.GameState) bool {
	return state.Status == game.StatusLost
}

func (Engine) Score(state *game.GameState) int {
	return int(state.Score)
}
