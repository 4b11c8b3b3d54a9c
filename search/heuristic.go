package search

import (
	"math"

	"github.com/brensch/pursuit/game"
)

// ConsumptionBonus rewards each goal eaten since the root of the search, so
// eating a goal always beats hovering near several.
const ConsumptionBonus = 100

// Evaluator scores cutoff nodes from maze distances.
type Evaluator struct {
	index *DistanceIndex
}

func NewEvaluator(index *DistanceIndex) *Evaluator {
	if index == nil {
		index = NewDistanceIndex()
	}
	return &Evaluator{index: index}
}

// Index exposes the distance index the evaluator reads from.
func (e *Evaluator) Index() *DistanceIndex {
	return e.index
}

// UnreachablePenalty stands in for the goal distance when no remaining goal
// can be reached. It exceeds every real distance on the table but stays finite.
func UnreachablePenalty(t *DistanceTable) int {
	return t.Len() + 1
}

// MinGoalDistance is the maze distance from the agent to its nearest
// remaining goal, 0 when none remain. Unreachable goals are ignored; if no
// goal is reachable the result is UnreachablePenalty.
func (e *Evaluator) MinGoalDistance(state *game.GameState) int {
	if len(state.Food) == 0 {
		return 0
	}
	t := e.index.Table(state.Layout)
	best := math.MaxInt
	for _, f := range state.Food {
		d, ok := t.Query(state.Agent, f)
		if ok && d < best {
			best = d
		}
	}
	if best == math.MaxInt {
		return UnreachablePenalty(t)
	}
	return best
}

// Evaluate returns the score adjustment for a cutoff node:
// -MinGoalDistance + ConsumptionBonus*(goalsBefore-remaining).
func (e *Evaluator) Evaluate(state *game.GameState, goalsBefore int) int {
	consumed := goalsBefore - len(state.Food)
	return -e.MinGoalDistance(state) + ConsumptionBonus*consumed
}
