// Package grid provides the square lattice the civil-violence model runs on:
// cell coordinates, an occupancy index and neighborhood queries.
package grid

import "fmt"

// ID identifies an occupant. The zero value None marks an empty cell, so
// occupant IDs handed to the grid must start at 1.
type ID uint64

// None is the occupant of an empty cell.
const None ID = 0

// Cell is a lattice position. X grows to the right, Y grows downward.
type Cell struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Add returns the cell displaced by (dx, dy), without wrapping.
func (c Cell) Add(dx, dy int) Cell {
	return Cell{X: c.X + dx, Y: c.Y + dy}
}

// String returns the cell as "(x,y)".
func (c Cell) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Y)
}

// Neighbor is one cell of a neighborhood query.
// DX and DY are the signed offsets from the query centre; on a torus they are
// the offsets that were walked, not the wrapped coordinates.
type Neighbor struct {
	Cell     Cell
	DX, DY   int
	Occupant ID
}

// Empty reports whether no occupant holds the neighbor cell.
func (n Neighbor) Empty() bool {
	return n.Occupant == None
}

// Chebyshev returns the box distance between two cells, accounting for wrap
// on a torus of the given dimensions when torus is true.
func Chebyshev(a, b Cell, width, height int, torus bool) int {
	dx := abs(a.X - b.X)
	dy := abs(a.Y - b.Y)
	if torus {
		if width-dx < dx {
			dx = width - dx
		}
		if height-dy < dy {
			dy = height - dy
		}
	}
	if dx > dy {
		return dx
	}
	return dy
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func mod(v, n int) int {
	v %= n
	if v < 0 {
		v += n
	}
	return v
}
