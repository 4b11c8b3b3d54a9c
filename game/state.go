// Package game defines the configuration types for the pursuit game.
//
// These types represent the minimal state needed for rules evaluation and
// search. A GameState is cheap to clone; the search treats every state it is
// handed as immutable, and each transition yields a fresh state.
package game

import (
	"fmt"
	"strings"
)

// Point is a board coordinate.
// (0,0) is bottom-left, Y grows upwards.
type Point struct {
	X int32
	Y int32
}

func (p Point) Add(o Point) Point {
	return Point{X: p.X + o.X, Y: p.Y + o.Y}
}

func (p Point) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// Less orders points by row then column.
func (p Point) Less(o Point) bool {
	if p.Y != o.Y {
		return p.Y < o.Y
	}
	return p.X < o.X
}

// Move represents a direction (0: Up, 1: Down, 2: Left, 3: Right)
type Move int

const (
	MoveUp Move = iota
	MoveDown
	MoveLeft
	MoveRight
)

// Moves lists every move in generation order. Successors are always
// enumerated in this order so tie-breaks are reproducible.
var Moves = [...]Move{MoveUp, MoveDown, MoveLeft, MoveRight}

var moveNames = [...]string{"up", "down", "left", "right"}

func (m Move) String() string {
	if m < 0 || int(m) >= len(moveNames) {
		return fmt.Sprintf("move(%d)", int(m))
	}
	return moveNames[m]
}

// Delta is the coordinate change applied by the move.
func (m Move) Delta() Point {
	switch m {
	case MoveUp:
		return Point{Y: 1}
	case MoveDown:
		return Point{Y: -1}
	case MoveLeft:
		return Point{X: -1}
	case MoveRight:
		return Point{X: 1}
	}
	return Point{}
}

// ParseMove accepts the lower-case names produced by Move.String.
func ParseMove(s string) (Move, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range moveNames {
		if n == name {
			return Move(i), nil
		}
	}
	return 0, fmt.Errorf("unknown move %q", s)
}

// Status is the terminal status of a configuration.
type Status int8

const (
	StatusOngoing Status = iota
	StatusWon
	StatusLost
)

func (s Status) String() string {
	switch s {
	case StatusWon:
		return "won"
	case StatusLost:
		return "lost"
	default:
		return "ongoing"
	}
}

// GameState is the complete configuration needed for rules + search.
//
// Layout is shared between every state of a game and must not be modified.
// Ghosts is ordered; index i is adversary i.
type GameState struct {
	Layout *Layout
	Agent  Point
	Ghosts []Point
	Food   []Point
	Score  int32
	Status Status
	Turn   int32
}

// Clone performs a deep copy of the game state. The layout is shared.
func (s *GameState) Clone() *GameState {
	if s == nil {
		return nil
	}

	out := &GameState{
		Layout: s.Layout,
		Agent:  s.Agent,
		Score:  s.Score,
		Status: s.Status,
		Turn:   s.Turn,
	}

	if len(s.Food) > 0 {
		out.Food = make([]Point, len(s.Food))
		copy(out.Food, s.Food)
	}

	if len(s.Ghosts) > 0 {
		out.Ghosts = make([]Point, len(s.Ghosts))
		copy(out.Ghosts, s.Ghosts)
	}

	return out
}

// HasFood reports whether p still holds food.
func (s *GameState) HasFood(p Point) bool {
	return s.foodIndex(p) >= 0
}

func (s *GameState) foodIndex(p Point) int {
	for i, f := range s.Food {
		if f == p {
			return i
		}
	}
	return -1
}

// RemoveFood deletes the food at p, returning false if there was none.
// Only call it on a state you own (a fresh clone).
func (s *GameState) RemoveFood(p Point) bool {
	i := s.foodIndex(p)
	if i < 0 {
		return false
	}
	s.Food = append(s.Food[:i], s.Food[i+1:]...)
	return true
}

// GhostAt reports whether any ghost occupies p.
func (s *GameState) GhostAt(p Point) bool {
	for _, g := range s.Ghosts {
		if g == p {
			return true
		}
	}
	return false
}

// Terminal reports whether the game is over.
func (s *GameState) Terminal() bool {
	return s.Status != StatusOngoing
}

// Successor pairs a state with the move that produced it.
type Successor struct {
	State *GameState
	Move  Move
}
