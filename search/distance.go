package search

import (
	"sync"
	"sync/atomic"

	"github.com/brensch/pursuit/game"
	"github.com/zeebo/xxh3"
)

// Unreachable marks a pair of cells with no path between them.
const Unreachable = -1

// DistanceTable holds the maze distance between every pair of open cells.
// It is immutable once built and safe for concurrent reads.
type DistanceTable struct {
	width  int32
	height int32
	ids    []int32 // row-major cell index -> dense id, -1 for walls
	cells  []game.Point
	dist   []int32 // len(cells)^2, Unreachable for disconnected pairs
}

// BuildDistanceTable runs a breadth-first search from every open cell.
// Cost is O(V*(V+E)), which beats Floyd-Warshall on sparse maze graphs.
func BuildDistanceTable(layout *game.Layout) *DistanceTable {
	cells := layout.OpenCells()
	n := len(cells)

	t := &DistanceTable{
		width:  layout.Width,
		height: layout.Height,
		ids:    make([]int32, layout.Cells()),
		cells:  cells,
		dist:   make([]int32, n*n),
	}
	for i := range t.ids {
		t.ids[i] = -1
	}
	for id, p := range cells {
		t.ids[layout.Index(p)] = int32(id)
	}

	// Adjacency by dense id, in move order.
	adj := make([][]int32, n)
	for id, p := range cells {
		for _, q := range layout.Neighbors(p) {
			adj[id] = append(adj[id], t.ids[layout.Index(q)])
		}
	}

	queue := make([]int32, 0, n)
	for src := 0; src < n; src++ {
		row := t.dist[src*n : (src+1)*n]
		for i := range row {
			row[i] = Unreachable
		}
		row[src] = 0
		queue = append(queue[:0], int32(src))
		for head := 0; head < len(queue); head++ {
			cur := queue[head]
			for _, nb := range adj[cur] {
				if row[nb] != Unreachable {
					continue
				}
				row[nb] = row[cur] + 1
				queue = append(queue, nb)
			}
		}
	}
	return t
}

func (t *DistanceTable) id(p game.Point) int32 {
	if p.X < 0 || p.X >= t.width || p.Y < 0 || p.Y >= t.height {
		return -1
	}
	return t.ids[int(p.Y)*int(t.width)+int(p.X)]
}

// Query returns the number of moves from a to b. ok is false when either
// cell is a wall or no path exists.
func (t *DistanceTable) Query(a, b game.Point) (int, bool) {
	ia, ib := t.id(a), t.id(b)
	if ia < 0 || ib < 0 {
		return Unreachable, false
	}
	d := t.dist[int(ia)*len(t.cells)+int(ib)]
	if d == Unreachable {
		return Unreachable, false
	}
	return int(d), true
}

// Len is the number of open cells.
func (t *DistanceTable) Len() int {
	return len(t.cells)
}

// Cells returns the open cells in dense id order. Callers must not modify it.
func (t *DistanceTable) Cells() []game.Point {
	return t.cells
}

// LayoutKey identifies a wall layout.
type LayoutKey = xxh3.Uint128

func KeyOf(layout *game.Layout) LayoutKey {
	return xxh3.Hash128(layout.Encode())
}

type tableEntry struct {
	once  sync.Once
	table *DistanceTable
}

// DistanceIndex caches one DistanceTable per distinct layout. Each layout is
// built at most once even when several games ask for it concurrently.
type DistanceIndex struct {
	mu     sync.Mutex
	tables map[LayoutKey]*tableEntry
	builds atomic.Int64
}

func NewDistanceIndex() *DistanceIndex {
	return &DistanceIndex{tables: make(map[LayoutKey]*tableEntry)}
}

// Table returns the table for layout, building it on first use.
func (x *DistanceIndex) Table(layout *game.Layout) *DistanceTable {
	key := KeyOf(layout)

	x.mu.Lock()
	e, ok := x.tables[key]
	if !ok {
		e = &tableEntry{}
		x.tables[key] = e
	}
	x.mu.Unlock()

	e.once.Do(func() {
		e.table = BuildDistanceTable(layout)
		x.builds.Add(1)
	})
	return e.table
}

// Builds counts how many tables have been computed.
func (x *DistanceIndex) Builds() int64 {
	return x.builds.Load()
}

// Layouts counts distinct layouts seen so far.
func (x *DistanceIndex) Layouts() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.tables)
}
