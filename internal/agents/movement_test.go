package agents

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/unrest/internal/grid"
)

func placed(t *testing.T, g *grid.Grid, s *Store, a Agent, c grid.Cell) *Agent {
	t.Helper()
	a.Position = c
	id := s.Create(a)
	require.NoError(t, g.Place(id, c))
	return s.MustGet(id)
}

func TestParseBias(t *testing.T) {
	for in, want := range map[string]Bias{
		"":               BiasNone,
		"Random":         BiasNone,
		"Clockwise":      BiasClockwise,
		"Anti-clockwise": BiasAntiClockwise,
		"anti_clockwise": BiasAntiClockwise,
		"left":           BiasLeft,
		"RIGHT":          BiasRight,
		"up":             BiasUp,
		"down":           BiasDown,
	} {
		got, err := ParseBias(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseBias("sideways")
	assert.Error(t, err)
}

func TestLeftBiasPrefersLeft(t *testing.T) {
	g := grid.New(10, 10, false)
	s := NewStore()
	a := placed(t, g, s, NewCitizen(2, 0.5, 0.5, 0.8), grid.Cell{X: 5, Y: 5})
	policy := NewMovementPolicy(BiasLeft)
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 50; i++ {
		dst, ok := policy.Destination(a, g, rng)
		require.True(t, ok)
		assert.Less(t, dst.X, 5)
	}
}

func TestLeftBiasFallsBackAtLeftEdge(t *testing.T) {
	g := grid.New(10, 10, false)
	s := NewStore()
	a := placed(t, g, s, NewCitizen(1, 0.5, 0.5, 0.8), grid.Cell{X: 0, Y: 4})
	policy := NewMovementPolicy(BiasLeft)
	rng := rand.New(rand.NewSource(2))

	seen := map[grid.Cell]bool{}
	for i := 0; i < 100; i++ {
		dst, ok := policy.Destination(a, g, rng)
		require.True(t, ok, "no cell further left must not starve the agent")
		assert.Equal(t, 1, grid.Chebyshev(dst, a.Position, 10, 10, false))
		seen[dst] = true
	}
	assert.Len(t, seen, 5, "fallback choice is unbiased over every empty neighbor")
}

func TestMovementNoEmptyCell(t *testing.T) {
	g := grid.New(2, 1, false)
	s := NewStore()
	a := placed(t, g, s, NewCop(3), grid.Cell{X: 0, Y: 0})
	placed(t, g, s, NewBlock(), grid.Cell{X: 1, Y: 0})

	for _, b := range []Bias{BiasNone, BiasLeft, BiasClockwise} {
		_, ok := NewMovementPolicy(b).Destination(a, g, rand.New(rand.NewSource(1)))
		assert.False(t, ok, b.String())
	}
}

func TestClockwiseRotatesQuadrants(t *testing.T) {
	g := grid.New(11, 11, false)
	s := NewStore()
	a := placed(t, g, s, NewCitizen(1, 0.5, 0.5, 0.8), grid.Cell{X: 5, Y: 5})
	policy := NewMovementPolicy(BiasClockwise)
	rng := rand.New(rand.NewSource(5))

	want := []func(dx, dy int) bool{northEast, southEast, southWest, northWest, northEast}
	for i, inQuadrant := range want {
		dst, ok := policy.Destination(a, g, rng)
		require.True(t, ok)
		assert.True(t, inQuadrant(dst.X-5, dst.Y-5), "turn %d went to %s", i, dst)
	}
	assert.Equal(t, 5, policy.(*rotating).Turns(a.ID))

	other := placed(t, g, s, NewCitizen(1, 0.5, 0.5, 0.8), grid.Cell{X: 1, Y: 1})
	dst, ok := policy.Destination(other, g, rng)
	require.True(t, ok)
	assert.True(t, northEast(dst.X-1, dst.Y-1), "rotation is tracked per agent")
}

func TestAntiClockwiseOrder(t *testing.T) {
	g := grid.New(11, 11, true)
	s := NewStore()
	a := placed(t, g, s, NewCitizen(2, 0.5, 0.5, 0.8), grid.Cell{X: 5, Y: 5})
	policy := NewMovementPolicy(BiasAntiClockwise)
	rng := rand.New(rand.NewSource(9))

	for i, inQuadrant := range []func(dx, dy int) bool{northEast, northWest, southWest, southEast} {
		dst, ok := policy.Destination(a, g, rng)
		require.True(t, ok)
		assert.True(t, inQuadrant(dst.X-5, dst.Y-5), "turn %d went to %s", i, dst)
	}
}

func TestQuadrantsPartitionOffsets(t *testing.T) {
	for dy := -3; dy <= 3; dy++ {
		for dx := -3; dx <= 3; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			hits := 0
			for _, q := range clockwiseQuadrants {
				if q(dx, dy) {
					hits++
				}
			}
			assert.Equal(t, 1, hits, "offset (%d,%d)", dx, dy)
		}
	}
}
