package search

import (
	"encoding/binary"
	"sort"

	"github.com/brensch/pursuit/game"
)

// Mover is the side to move at a search node.
type Mover uint8

const (
	MoverAgent Mover = iota
	MoverAdversary
)

func (m Mover) String() string {
	if m == MoverAdversary {
		return "adversary"
	}
	return "agent"
}

// Fingerprint is the canonical identity of a configuration with a side to
// move. Two states with equal fingerprints are the same search node.
type Fingerprint string

// ComputeFingerprint encodes (mover, agent, ghosts, sorted food) as a compact
// varint string. The mover comes first so the same board with a different
// side to move never collides. It does not modify state.
func ComputeFingerprint(state *game.GameState, mover Mover) Fingerprint {
	food := make([]game.Point, len(state.Food))
	copy(food, state.Food)
	sort.Slice(food, func(i, j int) bool { return food[i].Less(food[j]) })

	buf := make([]byte, 0, 1+binary.MaxVarintLen32*(2+2*len(state.Ghosts)+2*len(food)+2))
	buf = append(buf, byte(mover))
	buf = appendPoint(buf, state.Agent)
	buf = binary.AppendUvarint(buf, uint64(len(state.Ghosts)))
	for _, g := range state.Ghosts {
		buf = appendPoint(buf, g)
	}
	buf = binary.AppendUvarint(buf, uint64(len(food)))
	for _, f := range food {
		buf = appendPoint(buf, f)
	}
	return Fingerprint(buf)
}

func appendPoint(buf []byte, p game.Point) []byte {
	buf = binary.AppendVarint(buf, int64(p.X))
	return binary.AppendVarint(buf, int64(p.Y))
}

// Mover decodes the side to move from the fingerprint.
func (f Fingerprint) Mover() Mover {
	if len(f) == 0 {
		return MoverAgent
	}
	return Mover(f[0])
}
