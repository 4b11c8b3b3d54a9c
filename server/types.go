package server

import (
	"fmt"

	"github.com/brensch/pursuit/game"
	"github.com/brensch/pursuit/search"
)

type InfoResponse struct {
	APIVersion string `json:"apiversion"`
	Author     string `json:"author"`
	Version    string `json:"version"`
	Mode       string `json:"mode"`
	Depth      int    `json:"depth"`
}

// MoveRequest carries a board in .lay rows, top row first. Messages sent
// over the websocket add a Type of "move" or "end".
type MoveRequest struct {
	Type   string   `json:"type,omitempty"`
	GameID string   `json:"game_id,omitempty"`
	Board  []string `json:"board,omitempty"`
	Score  int32    `json:"score"`
	Turn   int32    `json:"turn"`
	// TimeoutMS overrides the server's move timeout for this request.
	TimeoutMS int `json:"timeout_ms,omitempty"`
}

type MoveResponse struct {
	Move      string `json:"move,omitempty"`
	Value     int    `json:"value"`
	Nodes     int64  `json:"nodes"`
	CacheHit  bool   `json:"cache_hit"`
	Truncated bool   `json:"truncated"`
	ElapsedMS int64  `json:"elapsed_ms"`
	Error     string `json:"error,omitempty"`
}

// Websocket message types.
const (
	MessageMove = "move"
	MessageEnd  = "end"
)

func (r MoveRequest) State() (*game.GameState, error) {
	state, err := game.ParseBoard(r.Board)
	if err != nil {
		return nil, fmt.Errorf("board: %w", err)
	}
	state.Score = r.Score
	state.Turn = r.Turn
	return state, nil
}

func responseFor(d search.Decision) MoveResponse {
	return MoveResponse{
		Move:      d.Move.String(),
		Value:     d.Value,
		Nodes:     d.Nodes,
		CacheHit:  d.CacheHit,
		Truncated: d.Truncated,
		ElapsedMS: d.Elapsed.Milliseconds(),
	}
}
