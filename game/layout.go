package game

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrMalformedLayout is returned for layouts that cannot describe a game.
var ErrMalformedLayout = errors.New("malformed layout")

// Layout glyphs, following the classic pacman .lay format.
const (
	GlyphWall    = '%'
	GlyphFood    = '.'
	GlyphCapsule = 'o'
	GlyphAgent   = 'P'
	GlyphGhost   = 'G'
	GlyphOpen    = ' '

	// GlyphGhostOnFood is a ghost standing on a food cell. Plain .lay files
	// never contain it; FormatBoard writes it so the food is not lost.
	GlyphGhostOnFood = 'g'
)

// Layout is the wall configuration of a board. It never changes during a game.
type Layout struct {
	Width  int32
	Height int32
	walls  []bool
}

// NewLayout builds a layout with no interior walls.
func NewLayout(width, height int32) *Layout {
	return &Layout{
		Width:  width,
		Height: height,
		walls:  make([]bool, int(width)*int(height)),
	}
}

// SetWall marks p as a wall. Only use it while constructing a layout.
func (l *Layout) SetWall(p Point, wall bool) {
	if !l.InBounds(p) {
		return
	}
	l.walls[l.Index(p)] = wall
}

func (l *Layout) InBounds(p Point) bool {
	return p.X >= 0 && p.X < l.Width && p.Y >= 0 && p.Y < l.Height
}

// IsWall treats everything outside the board as wall.
func (l *Layout) IsWall(p Point) bool {
	if !l.InBounds(p) {
		return true
	}
	return l.walls[l.Index(p)]
}

// Index is the row-major cell index of an in-bounds point.
func (l *Layout) Index(p Point) int {
	return int(p.Y)*int(l.Width) + int(p.X)
}

// Cells is the number of cells including walls.
func (l *Layout) Cells() int {
	return int(l.Width) * int(l.Height)
}

// OpenCells returns every non-wall cell in row-major order.
func (l *Layout) OpenCells() []Point {
	out := make([]Point, 0, len(l.walls))
	for y := int32(0); y < l.Height; y++ {
		for x := int32(0); x < l.Width; x++ {
			p := Point{X: x, Y: y}
			if !l.IsWall(p) {
				out = append(out, p)
			}
		}
	}
	return out
}

// Neighbors returns the open orthogonal neighbours of p in move order.
func (l *Layout) Neighbors(p Point) []Point {
	out := make([]Point, 0, 4)
	for _, m := range Moves {
		q := p.Add(m.Delta())
		if !l.IsWall(q) {
			out = append(out, q)
		}
	}
	return out
}

// Encode returns a stable byte encoding of the wall layout, suitable for hashing.
func (l *Layout) Encode() []byte {
	out := make([]byte, 8, 8+(len(l.walls)+7)/8)
	out[0] = byte(l.Width >> 24)
	out[1] = byte(l.Width >> 16)
	out[2] = byte(l.Width >> 8)
	out[3] = byte(l.Width)
	out[4] = byte(l.Height >> 24)
	out[5] = byte(l.Height >> 16)
	out[6] = byte(l.Height >> 8)
	out[7] = byte(l.Height)

	var cur byte
	for i, w := range l.walls {
		if w {
			cur |= 1 << (i % 8)
		}
		if i%8 == 7 {
			out = append(out, cur)
			cur = 0
		}
	}
	if len(l.walls)%8 != 0 {
		out = append(out, cur)
	}
	return out
}

// ParseLayout reads a .lay board (top row first) and returns the initial state.
func ParseLayout(r io.Reader) (*GameState, error) {
	var rows []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		rows = append(rows, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read layout: %w", err)
	}
	return ParseBoard(rows)
}

// ParseLayoutString is ParseLayout over a string.
func ParseLayoutString(s string) (*GameState, error) {
	return ParseLayout(strings.NewReader(s))
}

// ParseBoard parses already-split board rows, top row first.
func ParseBoard(rows []string) (*GameState, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no rows", ErrMalformedLayout)
	}

	width := len(rows[0])
	height := len(rows)
	layout := NewLayout(int32(width), int32(height))
	state := &GameState{Layout: layout}
	agents := 0

	for r, row := range rows {
		if len(row) != width {
			return nil, fmt.Errorf("%w: row %d has width %d, want %d", ErrMalformedLayout, r, len(row), width)
		}
		y := int32(height - 1 - r)
		for c := 0; c < len(row); c++ {
			p := Point{X: int32(c), Y: y}
			switch row[c] {
			case GlyphWall:
				layout.SetWall(p, true)
			case GlyphFood:
				state.Food = append(state.Food, p)
			case GlyphAgent:
				state.Agent = p
				agents++
			case GlyphGhost:
				state.Ghosts = append(state.Ghosts, p)
			case GlyphGhostOnFood:
				state.Ghosts = append(state.Ghosts, p)
				state.Food = append(state.Food, p)
			case GlyphOpen, GlyphCapsule:
			default:
				return nil, fmt.Errorf("%w: unknown glyph %q at row %d col %d", ErrMalformedLayout, row[c], r, c)
			}
		}
	}

	if agents != 1 {
		return nil, fmt.Errorf("%w: want exactly one agent, found %d", ErrMalformedLayout, agents)
	}

	return state, nil
}

// FormatBoard renders a state back into .lay rows, top row first.
// A ghost on a food cell is written as GlyphGhostOnFood, so ParseBoard
// recovers the same food.
func FormatBoard(s *GameState) []string {
	l := s.Layout
	grid := make([][]byte, l.Height)
	for r := range grid {
		grid[r] = make([]byte, l.Width)
		y := l.Height - 1 - int32(r)
		for x := int32(0); x < l.Width; x++ {
			if l.IsWall(Point{X: x, Y: y}) {
				grid[r][x] = GlyphWall
			} else {
				grid[r][x] = GlyphOpen
			}
		}
	}

	put := func(p Point, glyph byte) {
		if !l.InBounds(p) {
			return
		}
		grid[l.Height-1-p.Y][p.X] = glyph
	}
	for _, f := range s.Food {
		put(f, GlyphFood)
	}
	put(s.Agent, GlyphAgent)
	for _, g := range s.Ghosts {
		if s.HasFood(g) {
			put(g, GlyphGhostOnFood)
		} else {
			put(g, GlyphGhost)
		}
	}

	out := make([]string, len(grid))
	for i, row := range grid {
		out[i] = string(row)
	}
	return out
}
