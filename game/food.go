// food.go implements food placement for generated boards.

package game

import (
	"math/rand"
)

// ScatterFood places up to n extra food on free open cells of state.
// Cells holding the agent, a ghost or food are skipped.
// If rng is nil, we use deterministic pseudo-random logic seeded by salt.
// It returns the number of food items placed.
func ScatterFood(state *GameState, rng *rand.Rand, n int, salt uint64) int {
	occupied := make(map[Point]bool, len(state.Food)+len(state.Ghosts)+1)
	occupied[state.Agent] = true
	for _, g := range state.Ghosts {
		occupied[g] = true
	}
	for _, f := range state.Food {
		occupied[f] = true
	}

	placed := 0
	for placed < n {
		free := make([]Point, 0, state.Layout.Cells())
		for _, p := range state.Layout.OpenCells() {
			if !occupied[p] {
				free = append(free, p)
			}
		}
		if len(free) == 0 {
			break
		}

		var idx int
		if rng != nil {
			idx = rng.Intn(len(free))
		} else {
			idx = int(deterministicU64Fast(uint64(placed), salt) % uint64(len(free)))
		}
		p := free[idx]
		state.Food = append(state.Food, p)
		occupied[p] = true
		placed++
	}
	return placed
}

// deterministicU64Fast is a simple deterministic hasher for reproducibility.
func deterministicU64Fast(a, b uint64) uint64 {
	// Variant of splitmix64
	x := a + b
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}
