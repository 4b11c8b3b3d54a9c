package session

import (
	"fmt"
	"log"
	"strings"

	"github.com/brensch/pursuit/game"
	"github.com/brensch/pursuit/search"
)

// RenderBoard draws state as .lay rows with a header line.
func RenderBoard(state *game.GameState) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "turn=%d score=%d food=%d status=%s\n",
		state.Turn, state.Score, len(state.Food), state.Status)
	for _, row := range game.FormatBoard(state) {
		sb.WriteString(row)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// PrintBoard logs the board and, when d is non-nil, the decision taken from it.
func PrintBoard(state *game.GameState, d *search.Decision) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "\n=== TRACE Turn %d ===\n", state.Turn)
	sb.WriteString(RenderBoard(state))
	if d != nil {
		fmt.Fprintf(&sb, "move=%s value=%d nodes=%d cache_hit=%v truncated=%v elapsed=%s\n",
			d.Move, d.Value, d.Nodes, d.CacheHit, d.Truncated, d.Elapsed)
	}
	log.Print(sb.String())
}
