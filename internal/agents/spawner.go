// Agent spawning: lays out the initial population of blocks, cops and
// citizens according to the configured environment.
package agents

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sort"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/unrest/internal/grid"
)

// ErrInsufficientSpace is returned when the grid runs out of empty cells
// before the configured population is placed.
var ErrInsufficientSpace = errors.New("insufficient space")

// Environment selects the initial layout.
type Environment uint8

const (
	RandomDistribution Environment = iota
	BlockInMiddle
	WallOfCops
	Street
	Circle
	Neighborhoods
)

var environmentNames = [...]string{
	"RandomDistribution", "BlockInMiddle", "WallOfCops", "Street", "Circle", "Neighborhoods",
}

// String returns the canonical environment name.
func (e Environment) String() string {
	if int(e) < len(environmentNames) {
		return environmentNames[e]
	}
	return fmt.Sprintf("environment(%d)", uint8(e))
}

// ParseEnvironment accepts the canonical names and the labels of the original
// control panel ("Random distribution", "Block in the middle", "Wall of cops").
func ParseEnvironment(s string) (Environment, error) {
	switch normalizeName(s) {
	case "", "randomdistribution", "random":
		return RandomDistribution, nil
	case "blockinmiddle", "blockinthemiddle", "middle":
		return BlockInMiddle, nil
	case "wallofcops", "wall":
		return WallOfCops, nil
	case "street", "streets":
		return Street, nil
	case "circle":
		return Circle, nil
	case "neighborhoods", "neighbourhoods":
		return Neighborhoods, nil
	}
	return RandomDistribution, fmt.Errorf("unknown environment %q", s)
}

// SpawnConfig controls initial population generation.
type SpawnConfig struct {
	Citizens      int
	Cops          int
	Blocks        int
	CitizenVision int
	CopVision     int
	Legitimacy    float64
}

// Total returns the number of agents to place.
func (c SpawnConfig) Total() int {
	return c.Citizens + c.Cops + c.Blocks
}

// SpawnStrategy lays out a population. Implementations only decide which
// cells to try; the Spawner enforces counts and non-overlap.
type SpawnStrategy interface {
	Spawn(s *Spawner) error
}

// NewSpawnStrategy returns the layout for an environment.
func NewSpawnStrategy(env Environment) SpawnStrategy {
	switch env {
	case BlockInMiddle:
		return middleBlock{}
	case WallOfCops:
		return copWall{}
	case Street:
		return streets{corridors: 3, crossEvery: 10}
	case Circle:
		return ring{}
	case Neighborhoods:
		return noiseClusters{frequency: 0.12}
	default:
		return uniform{}
	}
}

// Spawner creates agents and places them on the grid.
type Spawner struct {
	rng   *rand.Rand
	grid  *grid.Grid
	store *Store
	cfg   SpawnConfig
}

// NewSpawner creates a spawner drawing from the model's random source.
func NewSpawner(cfg SpawnConfig, g *grid.Grid, store *Store, rng *rand.Rand) *Spawner {
	return &Spawner{rng: rng, grid: g, store: store, cfg: cfg}
}

// Config returns the population being spawned.
func (s *Spawner) Config() SpawnConfig { return s.cfg }

// Grid returns the grid being populated.
func (s *Spawner) Grid() *grid.Grid { return s.grid }

// Populate runs the strategy and verifies that exactly the configured number
// of each breed was placed.
func (s *Spawner) Populate(strategy SpawnStrategy) error {
	if free := s.grid.Size() - s.grid.Len(); s.cfg.Total() > free {
		return fmt.Errorf("spawn %d agents into %d free cells: %w", s.cfg.Total(), free, ErrInsufficientSpace)
	}
	before := map[Breed]int{
		BreedCitizen: s.store.Count(BreedCitizen),
		BreedCop:     s.store.Count(BreedCop),
		BreedBlock:   s.store.Count(BreedBlock),
	}
	if err := strategy.Spawn(s); err != nil {
		return err
	}

	want := map[Breed]int{BreedCitizen: s.cfg.Citizens, BreedCop: s.cfg.Cops, BreedBlock: s.cfg.Blocks}
	for b, n := range want {
		if got := s.store.Count(b) - before[b]; got != n {
			return fmt.Errorf("spawn: placed %d %ss, want %d", got, b, n)
		}
	}

	slog.Debug("population spawned",
		"citizens", s.cfg.Citizens,
		"cops", s.cfg.Cops,
		"blocks", s.cfg.Blocks,
		"grid", s.grid.String(),
	)
	return nil
}

func (s *Spawner) citizen() Agent {
	return NewCitizen(s.cfg.CitizenVision, s.rng.Float64(), s.rng.Float64(), s.cfg.Legitimacy)
}

func (s *Spawner) cop() Agent {
	return NewCop(s.cfg.CopVision)
}

// Fill places n agents built by build, trying candidates in order. Occupied
// candidates are skipped; once candidates run out a uniformly random empty
// cell is used. Candidates are normalized onto the grid and dropped if off it.
func (s *Spawner) Fill(build func() Agent, n int, candidates []grid.Cell) error {
	next := 0
	for placed := 0; placed < n; placed++ {
		cell, ok := s.nextEmpty(candidates, &next)
		if !ok {
			return fmt.Errorf("spawn: %d of %d placed: %w", placed, n, ErrInsufficientSpace)
		}
		a := build()
		a.Position = cell
		id := s.store.Create(a)
		if err := s.grid.Place(id, cell); err != nil {
			return fmt.Errorf("spawn agent %d: %w", id, err)
		}
	}
	return nil
}

func (s *Spawner) nextEmpty(candidates []grid.Cell, next *int) (grid.Cell, bool) {
	for *next < len(candidates) {
		c, ok := s.grid.Normalize(candidates[*next])
		*next++
		if ok && s.grid.IsEmpty(c) {
			return c, true
		}
	}
	return s.grid.RandomEmptyCell(s.rng)
}

// FillCitizens places n citizens.
func (s *Spawner) FillCitizens(n int, candidates []grid.Cell) error {
	return s.Fill(s.citizen, n, candidates)
}

// FillCops places n cops.
func (s *Spawner) FillCops(n int, candidates []grid.Cell) error {
	return s.Fill(s.cop, n, candidates)
}

// FillBlocks places n blocks.
func (s *Spawner) FillBlocks(n int, candidates []grid.Cell) error {
	return s.Fill(NewBlock, n, candidates)
}

// ShuffledEmpty returns the current empty cells in random order.
func (s *Spawner) ShuffledEmpty() []grid.Cell {
	cells := s.grid.EmptyCells()
	s.rng.Shuffle(len(cells), func(i, j int) { cells[i], cells[j] = cells[j], cells[i] })
	return cells
}

// uniform samples cells without replacement for every breed.
type uniform struct{}

func (uniform) Spawn(s *Spawner) error {
	cells := s.ShuffledEmpty()
	if err := s.FillBlocks(s.cfg.Blocks, cells); err != nil {
		return err
	}
	if err := s.FillCops(s.cfg.Cops, cells); err != nil {
		return err
	}
	return s.FillCitizens(s.cfg.Citizens, cells)
}

// middleBlock packs the blocks into a square centred on the grid.
type middleBlock struct{}

func (middleBlock) Spawn(s *Spawner) error {
	g := s.grid
	side := int(math.Ceil(math.Sqrt(float64(s.cfg.Blocks))))
	x0 := (g.Width() - side) / 2
	y0 := (g.Height() - side) / 2

	square := make([]grid.Cell, 0, side*side)
	for y := y0; y < y0+side; y++ {
		for x := x0; x < x0+side; x++ {
			square = append(square, grid.Cell{X: x, Y: y})
		}
	}
	if err := s.FillBlocks(s.cfg.Blocks, square); err != nil {
		return err
	}
	cells := s.ShuffledEmpty()
	if err := s.FillCops(s.cfg.Cops, cells); err != nil {
		return err
	}
	return s.FillCitizens(s.cfg.Citizens, cells)
}

// copWall lines the cops up column by column from the left edge.
type copWall struct{}

func (copWall) Spawn(s *Spawner) error {
	g := s.grid
	wall := make([]grid.Cell, 0, g.Size())
	for x := 0; x < g.Width(); x++ {
		for y := 0; y < g.Height(); y++ {
			wall = append(wall, grid.Cell{X: x, Y: y})
		}
	}
	if err := s.FillCops(s.cfg.Cops, wall); err != nil {
		return err
	}
	cells := s.ShuffledEmpty()
	if err := s.FillBlocks(s.cfg.Blocks, cells); err != nil {
		return err
	}
	return s.FillCitizens(s.cfg.Citizens, cells)
}

// streets builds horizontal walls of blocks that split the grid into
// corridors, leaving a crossing every crossEvery columns.
type streets struct {
	corridors  int
	crossEvery int
}

func (st streets) Spawn(s *Spawner) error {
	g := s.grid
	var walls []grid.Cell
	for k := 1; k < st.corridors; k++ {
		y := g.Height() * k / st.corridors
		for x := 0; x < g.Width(); x++ {
			if st.crossEvery > 0 && x%st.crossEvery == st.crossEvery/2 {
				continue
			}
			walls = append(walls, grid.Cell{X: x, Y: y})
		}
	}
	if err := s.FillBlocks(s.cfg.Blocks, walls); err != nil {
		return err
	}
	cells := s.ShuffledEmpty()
	if err := s.FillCops(s.cfg.Cops, cells); err != nil {
		return err
	}
	return s.FillCitizens(s.cfg.Citizens, cells)
}

// ring places the blocks evenly around a circle and the cops and citizens
// inside it. Overflow spills onto the rest of the grid.
type ring struct{}

func (ring) Spawn(s *Spawner) error {
	g := s.grid
	cx := float64(g.Width()-1) / 2
	cy := float64(g.Height()-1) / 2
	radius := math.Max(1, float64(min(g.Width(), g.Height()))/2-1)

	type polar struct {
		cell  grid.Cell
		angle float64
	}
	var boundary []polar
	var inside []grid.Cell
	for y := 0; y < g.Height(); y++ {
		for x := 0; x < g.Width(); x++ {
			dx, dy := float64(x)-cx, float64(y)-cy
			d := math.Hypot(dx, dy)
			switch {
			case math.Abs(d-radius) < 0.5:
				boundary = append(boundary, polar{grid.Cell{X: x, Y: y}, math.Atan2(dy, dx)})
			case d < radius-0.5:
				inside = append(inside, grid.Cell{X: x, Y: y})
			}
		}
	}
	sort.SliceStable(boundary, func(i, j int) bool { return boundary[i].angle < boundary[j].angle })

	// Spread the blocks evenly when there are fewer blocks than ring cells.
	var ringCells []grid.Cell
	n := s.cfg.Blocks
	if n > 0 && n < len(boundary) {
		for i := 0; i < n; i++ {
			ringCells = append(ringCells, boundary[i*len(boundary)/n].cell)
		}
	}
	for _, p := range boundary {
		ringCells = append(ringCells, p.cell)
	}
	if err := s.FillBlocks(n, ringCells); err != nil {
		return err
	}

	s.rng.Shuffle(len(inside), func(i, j int) { inside[i], inside[j] = inside[j], inside[i] })
	if err := s.FillCops(s.cfg.Cops, inside); err != nil {
		return err
	}
	return s.FillCitizens(s.cfg.Citizens, inside)
}

// noiseClusters seeds a simplex noise field: citizens settle the highest
// cells, cops the lowest, blocks land anywhere.
type noiseClusters struct {
	frequency float64
}

func (nc noiseClusters) Spawn(s *Spawner) error {
	noise := opensimplex.NewNormalized(s.rng.Int63())

	cells := s.ShuffledEmpty()
	if err := s.FillBlocks(s.cfg.Blocks, cells); err != nil {
		return err
	}

	ranked := s.grid.EmptyCells()
	value := make(map[grid.Cell]float64, len(ranked))
	for _, c := range ranked {
		value[c] = noise.Eval2(float64(c.X)*nc.frequency, float64(c.Y)*nc.frequency)
	}
	sort.SliceStable(ranked, func(i, j int) bool { return value[ranked[i]] > value[ranked[j]] })

	if err := s.FillCitizens(s.cfg.Citizens, ranked); err != nil {
		return err
	}
	lowest := make([]grid.Cell, len(ranked))
	for i, c := range ranked {
		lowest[len(ranked)-1-i] = c
	}
	return s.FillCops(s.cfg.Cops, lowest)
}
