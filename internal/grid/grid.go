package grid

import (
	"errors"
	"fmt"
	"iter"
	"math/rand"
)

var (
	// ErrOccupiedCell is returned when placing into a cell that already has an occupant.
	ErrOccupiedCell = errors.New("cell is occupied")
	// ErrNotPresent is returned when an occupant is not on the grid.
	ErrNotPresent = errors.New("not present")
	// ErrOutOfBounds is returned for cells outside a bounded lattice.
	ErrOutOfBounds = errors.New("cell out of bounds")
	// ErrAlreadyPlaced is returned when placing an occupant that is already on the grid.
	ErrAlreadyPlaced = errors.New("occupant already placed")
)

// Grid is a width × height lattice holding at most one occupant per cell.
// A toroidal grid wraps at every edge; a bounded one clips queries at the edges.
type Grid struct {
	width  int
	height int
	torus  bool

	cells []ID        // Row-major: index = y*width + x
	index map[ID]Cell // Occupant → cell
}

// New creates an empty grid. Width and height must be positive.
func New(width, height int, torus bool) *Grid {
	if width <= 0 || height <= 0 {
		panic(fmt.Sprintf("grid: invalid dimensions %dx%d", width, height))
	}
	return &Grid{
		width:  width,
		height: height,
		torus:  torus,
		cells:  make([]ID, width*height),
		index:  make(map[ID]Cell),
	}
}

// Width returns the number of columns.
func (g *Grid) Width() int { return g.width }

// Height returns the number of rows.
func (g *Grid) Height() int { return g.height }

// Torus reports whether the grid wraps around its edges.
func (g *Grid) Torus() bool { return g.torus }

// Size returns the total number of cells.
func (g *Grid) Size() int { return len(g.cells) }

// Len returns the number of occupants on the grid.
func (g *Grid) Len() int { return len(g.index) }

// InBounds reports whether the cell lies on the lattice.
func (g *Grid) InBounds(c Cell) bool {
	return c.X >= 0 && c.X < g.width && c.Y >= 0 && c.Y < g.height
}

// Normalize maps a cell onto the lattice. On a torus coordinates wrap;
// on a bounded grid the second result is false for off-lattice cells.
func (g *Grid) Normalize(c Cell) (Cell, bool) {
	if g.torus {
		return Cell{X: mod(c.X, g.width), Y: mod(c.Y, g.height)}, true
	}
	return c, g.InBounds(c)
}

func (g *Grid) offset(c Cell) int {
	return c.Y*g.width + c.X
}

// OccupantAt returns the occupant of a cell. The second result is false when
// the cell is empty or off the lattice.
func (g *Grid) OccupantAt(c Cell) (ID, bool) {
	if !g.InBounds(c) {
		return None, false
	}
	id := g.cells[g.offset(c)]
	return id, id != None
}

// IsEmpty reports whether an on-lattice cell has no occupant.
func (g *Grid) IsEmpty(c Cell) bool {
	return g.InBounds(c) && g.cells[g.offset(c)] == None
}

// Place puts an occupant into an empty cell. Placing never overwrites.
func (g *Grid) Place(id ID, c Cell) error {
	if id == None {
		return fmt.Errorf("place: zero occupant id")
	}
	if !g.InBounds(c) {
		return fmt.Errorf("place %d at %s: %w", id, c, ErrOutOfBounds)
	}
	if at, ok := g.index[id]; ok {
		return fmt.Errorf("place %d at %s (already at %s): %w", id, c, at, ErrAlreadyPlaced)
	}
	off := g.offset(c)
	if g.cells[off] != None {
		return fmt.Errorf("place %d at %s (holds %d): %w", id, c, g.cells[off], ErrOccupiedCell)
	}
	g.cells[off] = id
	g.index[id] = c
	return nil
}

// Remove takes an occupant off the grid. Removing an absent occupant is a
// no-op; the result reports whether anything was removed.
func (g *Grid) Remove(id ID) bool {
	c, ok := g.index[id]
	if !ok {
		return false
	}
	g.cells[g.offset(c)] = None
	delete(g.index, id)
	return true
}

// Position returns the cell an occupant is in.
func (g *Grid) Position(id ID) (Cell, error) {
	c, ok := g.index[id]
	if !ok {
		return Cell{}, fmt.Errorf("occupant %d: %w", id, ErrNotPresent)
	}
	return c, nil
}

// Move relocates an occupant. On failure the occupant stays where it was.
func (g *Grid) Move(id ID, to Cell) error {
	from, ok := g.index[id]
	if !ok {
		return fmt.Errorf("move %d: %w", id, ErrNotPresent)
	}
	if from == to {
		return nil
	}
	g.Remove(id)
	if err := g.Place(id, to); err != nil {
		g.cells[g.offset(from)] = id
		g.index[id] = from
		return err
	}
	return nil
}

// Neighbors yields every cell within Chebyshev distance radius of c,
// excluding c itself. Cells are produced row by row from the top-left of the
// box. On a torus a cell reachable through more than one wrap is yielded once.
func (g *Grid) Neighbors(c Cell, radius int) iter.Seq[Neighbor] {
	return func(yield func(Neighbor) bool) {
		if radius <= 0 {
			return
		}
		span := 2*radius + 1
		var seen map[int]struct{}
		if g.torus && (span > g.width || span > g.height) {
			seen = make(map[int]struct{}, span*span)
			seen[g.offset(c)] = struct{}{}
		}
		for dy := -radius; dy <= radius; dy++ {
			for dx := -radius; dx <= radius; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}
				cell, ok := g.Normalize(c.Add(dx, dy))
				if !ok {
					continue
				}
				off := g.offset(cell)
				if seen != nil {
					if _, dup := seen[off]; dup {
						continue
					}
					seen[off] = struct{}{}
				}
				if !yield(Neighbor{Cell: cell, DX: dx, DY: dy, Occupant: g.cells[off]}) {
					return
				}
			}
		}
	}
}

// EmptyWithin returns the empty neighbors of c within radius, in Neighbors order.
func (g *Grid) EmptyWithin(c Cell, radius int) []Neighbor {
	var out []Neighbor
	for n := range g.Neighbors(c, radius) {
		if n.Empty() {
			out = append(out, n)
		}
	}
	return out
}

// RandomEmptyCellWithin picks uniformly among the empty cells within radius
// of c. The second result is false when there are none.
func (g *Grid) RandomEmptyCellWithin(c Cell, radius int, rng *rand.Rand) (Cell, bool) {
	empty := g.EmptyWithin(c, radius)
	if len(empty) == 0 {
		return Cell{}, false
	}
	return empty[rng.Intn(len(empty))].Cell, true
}

// EmptyCells returns every empty cell in row-major order.
func (g *Grid) EmptyCells() []Cell {
	out := make([]Cell, 0, len(g.cells)-len(g.index))
	for off, id := range g.cells {
		if id == None {
			out = append(out, Cell{X: off % g.width, Y: off / g.width})
		}
	}
	return out
}

// RandomEmptyCell picks uniformly among all empty cells of the grid.
func (g *Grid) RandomEmptyCell(rng *rand.Rand) (Cell, bool) {
	empty := g.EmptyCells()
	if len(empty) == 0 {
		return Cell{}, false
	}
	return empty[rng.Intn(len(empty))], true
}

// Occupants returns a copy of the occupant index.
func (g *Grid) Occupants() map[ID]Cell {
	out := make(map[ID]Cell, len(g.index))
	for id, c := range g.index {
		out[id] = c
	}
	return out
}

// String returns a summary of the grid.
func (g *Grid) String() string {
	mode := "bounded"
	if g.torus {
		mode = "torus"
	}
	return fmt.Sprintf("Grid(%dx%d %s, occupants=%d)", g.width, g.height, mode, len(g.index))
}
