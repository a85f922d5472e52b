// Package spatial provides a uniform-grid index for agent positions.
// The grid trades exactness for speed: a radius query returns every agent
// whose cell intersects the query circle, so callers that need an exact
// radius must filter by true distance themselves.
package spatial

import "math"

// DefaultCellSize is the grid cell edge length in world units.
const DefaultCellSize = 100.0

type cellKey struct {
	X, Y int
}

// Grid maps world-space cells to the set of agent IDs located in them.
// It is rebuilt from scratch once per scheduler tick; incremental
// insert/remove exist for registration churn between rebuilds.
type Grid struct {
	cellSize float64
	cells    map[cellKey]map[uint64]struct{}
	location map[uint64]cellKey // id → current cell, for O(1) remove
}

// NewGrid creates an empty grid. cellSize <= 0 falls back to DefaultCellSize.
func NewGrid(cellSize float64) *Grid {
	if cellSize <= 0 {
		cellSize = DefaultCellSize
	}
	return &Grid{
		cellSize: cellSize,
		cells:    make(map[cellKey]map[uint64]struct{}),
		location: make(map[uint64]cellKey),
	}
}

func (g *Grid) key(x, y float64) cellKey {
	return cellKey{
		X: int(math.Floor(x / g.cellSize)),
		Y: int(math.Floor(y / g.cellSize)),
	}
}

// Insert places id at (x, y), moving it if already present.
func (g *Grid) Insert(id uint64, x, y float64) {
	if _, ok := g.location[id]; ok {
		g.Remove(id)
	}
	k := g.key(x, y)
	cell := g.cells[k]
	if cell == nil {
		cell = make(map[uint64]struct{}, 4)
		g.cells[k] = cell
	}
	cell[id] = struct{}{}
	g.location[id] = k
}

// Remove deletes id from the grid. Unknown ids are a no-op.
func (g *Grid) Remove(id uint64) {
	k, ok := g.location[id]
	if !ok {
		return
	}
	delete(g.location, id)
	if cell, ok := g.cells[k]; ok {
		delete(cell, id)
		if len(cell) == 0 {
			delete(g.cells, k)
		}
	}
}

// Clear empties the grid.
func (g *Grid) Clear() {
	g.cells = make(map[cellKey]map[uint64]struct{})
	g.location = make(map[uint64]cellKey)
}

// Len returns the number of indexed agents.
func (g *Grid) Len() int {
	return len(g.location)
}

// QueryRadius returns every id whose cell lies within ceil(r/cellSize)+1
// rings of the center cell. The result may include agents slightly farther
// than r (cell-AABB inclusion) but never omits one within r.
func (g *Grid) QueryRadius(x, y, r float64) map[uint64]struct{} {
	out := make(map[uint64]struct{})
	if r < 0 {
		return out
	}
	center := g.key(x, y)
	rings := int(math.Ceil(r/g.cellSize)) + 1
	for dx := -rings; dx <= rings; dx++ {
		for dy := -rings; dy <= rings; dy++ {
			cell, ok := g.cells[cellKey{X: center.X + dx, Y: center.Y + dy}]
			if !ok {
				continue
			}
			for id := range cell {
				out[id] = struct{}{}
			}
		}
	}
	return out
}
