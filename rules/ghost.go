package rules

import (
	"math"
	"math/rand"
	"sync"

	"github.com/brensch/pursuit/game"
)

// GhostPolicy picks the move a ghost actually plays during a session.
// ok is false when the ghost has no legal move.
type GhostPolicy interface {
	Move(state *game.GameState, index int) (move game.Move, ok bool)
}

// Distancer answers maze distances between open cells.
type Distancer interface {
	Query(a, b game.Point) (int, bool)
}

// RandomGhost plays a uniformly random legal move.
type RandomGhost struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewRandomGhost(seed int64) *RandomGhost {
	return &RandomGhost{rng: rand.New(rand.NewSource(seed))}
}

func (g *RandomGhost) Move(state *game.GameState, index int) (game.Move, bool) {
	moves := LegalMoves(state, state.Ghosts[index])
	if len(moves) == 0 {
		return 0, false
	}
	g.mu.Lock()
	i := g.rng.Intn(len(moves))
	g.mu.Unlock()
	return moves[i], true
}

// GreedyGhost steps to the neighbour closest to the agent by maze distance.
// Ties go to the earlier move in game.Moves order.
type GreedyGhost struct {
	Distances Distancer
}

func (g GreedyGhost) Move(state *game.GameState, index int) (game.Move, bool) {
	moves := LegalMoves(state, state.Ghosts[index])
	if len(moves) == 0 {
		return 0, false
	}

	best := moves[0]
	bestDist := math.MaxInt
	for _, m := range moves {
		d, ok := g.Distances.Query(state.Ghosts[index].Add(m.Delta()), state.Agent)
		if !ok {
			continue
		}
		if d < bestDist {
			bestDist = d
			best = m
		}
	}
	return best, true
}
