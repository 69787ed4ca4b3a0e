package agents

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/unrest/internal/grid"
)

func spawn(t *testing.T, env Environment, cfg SpawnConfig, width, height int, torus bool, seed int64) (*grid.Grid, *Store) {
	t.Helper()
	g := grid.New(width, height, torus)
	store := NewStore()
	sp := NewSpawner(cfg, g, store, rand.New(rand.NewSource(seed)))
	require.NoError(t, sp.Populate(NewSpawnStrategy(env)))
	return g, store
}

func assertLayout(t *testing.T, g *grid.Grid, store *Store, cfg SpawnConfig) {
	t.Helper()
	assert.Equal(t, cfg.Total(), g.Len())
	assert.Equal(t, cfg.Total(), store.Len())
	assert.Equal(t, cfg.Citizens, store.Count(BreedCitizen))
	assert.Equal(t, cfg.Cops, store.Count(BreedCop))
	assert.Equal(t, cfg.Blocks, store.Count(BreedBlock))

	cells := map[grid.Cell]AgentID{}
	for _, a := range store.All() {
		pos, err := g.Position(a.ID)
		require.NoError(t, err)
		assert.Equal(t, a.Position, pos)
		prev, dup := cells[pos]
		assert.False(t, dup, "agents %d and %d share %s", prev, a.ID, pos)
		cells[pos] = a.ID
	}
}

func TestRandomDistributionSmallGrid(t *testing.T) {
	cfg := SpawnConfig{Citizens: 10, Cops: 5, Blocks: 2, CitizenVision: 7, CopVision: 7, Legitimacy: 0.8}
	g, store := spawn(t, RandomDistribution, cfg, 10, 10, true, 1)

	assertLayout(t, g, store, cfg)
	assert.Equal(t, 17, g.Len())
	assert.Equal(t, 2, store.Count(BreedBlock))

	for _, c := range store.Citizens() {
		assert.GreaterOrEqual(t, c.Citizen.Hardship, 0.0)
		assert.Less(t, c.Citizen.Hardship, 1.0)
		assert.GreaterOrEqual(t, c.Citizen.RiskAversion, 0.0)
		assert.Less(t, c.Citizen.RiskAversion, 1.0)
		assert.Equal(t, Quiescent, c.Citizen.Condition)
	}
}

func TestEveryEnvironmentPlacesPopulation(t *testing.T) {
	cfg := SpawnConfig{Citizens: 60, Cops: 30, Blocks: 25, CitizenVision: 3, CopVision: 3, Legitimacy: 0.5}
	for _, env := range []Environment{RandomDistribution, BlockInMiddle, WallOfCops, Street, Circle, Neighborhoods} {
		for _, torus := range []bool{true, false} {
			name := env.String() + "/bounded"
			if torus {
				name = env.String() + "/torus"
			}
			t.Run(name, func(t *testing.T) {
				g, store := spawn(t, env, cfg, 20, 20, torus, 7)
				assertLayout(t, g, store, cfg)
			})
		}
	}
}

func TestFullGrid(t *testing.T) {
	cfg := SpawnConfig{Citizens: 10, Cops: 10, Blocks: 5}
	for _, env := range []Environment{RandomDistribution, BlockInMiddle, WallOfCops, Street, Circle, Neighborhoods} {
		g, store := spawn(t, env, cfg, 5, 5, false, 3)
		assertLayout(t, g, store, cfg)
		assert.Empty(t, g.EmptyCells())
	}
}

func TestInsufficientSpace(t *testing.T) {
	g := grid.New(4, 4, true)
	sp := NewSpawner(SpawnConfig{Citizens: 10, Cops: 5, Blocks: 2}, g, NewStore(), rand.New(rand.NewSource(1)))
	err := sp.Populate(NewSpawnStrategy(RandomDistribution))
	require.ErrorIs(t, err, ErrInsufficientSpace)
	assert.Zero(t, g.Len())
}

func TestFillSkipsOccupiedCandidates(t *testing.T) {
	g := grid.New(3, 1, false)
	store := NewStore()
	sp := NewSpawner(SpawnConfig{}, g, store, rand.New(rand.NewSource(1)))

	require.NoError(t, sp.FillBlocks(1, []grid.Cell{{X: 1, Y: 0}}))
	require.NoError(t, sp.FillCops(1, []grid.Cell{{X: 1, Y: 0}, {X: 9, Y: 9}, {X: 2, Y: 0}}))

	id, ok := g.OccupantAt(grid.Cell{X: 2, Y: 0})
	require.True(t, ok)
	assert.Equal(t, BreedCop, store.MustGet(id).Breed)

	require.NoError(t, sp.FillCitizens(1, nil))
	assert.False(t, g.IsEmpty(grid.Cell{X: 0, Y: 0}))
	assert.ErrorIs(t, sp.FillCitizens(1, nil), ErrInsufficientSpace)
}

func TestBlockInMiddleIsCentered(t *testing.T) {
	cfg := SpawnConfig{Blocks: 9}
	g, store := spawn(t, BlockInMiddle, cfg, 9, 9, true, 1)
	for _, a := range store.All() {
		assert.Equal(t, BreedBlock, a.Breed)
		assert.LessOrEqual(t, grid.Chebyshev(a.Position, grid.Cell{X: 4, Y: 4}, 9, 9, false), 1)
	}
	assert.Equal(t, 9, g.Len())
}

func TestWallOfCopsFillsLeftColumn(t *testing.T) {
	cfg := SpawnConfig{Cops: 10, Citizens: 5, CopVision: 2, CitizenVision: 2}
	g, store := spawn(t, WallOfCops, cfg, 10, 10, true, 4)
	for y := 0; y < 10; y++ {
		id, ok := g.OccupantAt(grid.Cell{X: 0, Y: y})
		require.True(t, ok)
		assert.Equal(t, BreedCop, store.MustGet(id).Breed)
	}
}

func TestCircleKeepsPeopleInside(t *testing.T) {
	cfg := SpawnConfig{Blocks: 40, Cops: 5, Citizens: 20, CopVision: 2, CitizenVision: 2}
	_, store := spawn(t, Circle, cfg, 21, 21, false, 8)
	for _, a := range store.All() {
		if a.Breed == BreedBlock {
			continue
		}
		d := grid.Chebyshev(a.Position, grid.Cell{X: 10, Y: 10}, 21, 21, false)
		assert.Less(t, d, 9, "%s at %s", a.Breed, a.Position)
	}
}

func TestSpawnIsDeterministic(t *testing.T) {
	cfg := SpawnConfig{Citizens: 40, Cops: 20, Blocks: 10, CitizenVision: 3, CopVision: 3, Legitimacy: 0.6}
	_, a := spawn(t, Neighborhoods, cfg, 15, 15, true, 99)
	_, b := spawn(t, Neighborhoods, cfg, 15, 15, true, 99)
	require.Equal(t, a.Len(), b.Len())
	other := b.All()
	for i, x := range a.All() {
		assert.Equal(t, x.Breed, other[i].Breed)
		assert.Equal(t, x.Position, other[i].Position)
		if x.Breed == BreedCitizen {
			assert.Equal(t, *x.Citizen, *other[i].Citizen)
		}
	}
}

func TestParseEnvironment(t *testing.T) {
	for in, want := range map[string]Environment{
		"Random distribution": RandomDistribution,
		"Block in the middle": BlockInMiddle,
		"Wall of cops":        WallOfCops,
		"Street":              Street,
		"circle":              Circle,
		"neighborhoods":       Neighborhoods,
	} {
		got, err := ParseEnvironment(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseEnvironment("moon base")
	assert.Error(t, err)
}
