package agents

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/talgya/unrest/internal/grid"
)

// Bias is the configured direction preference for relocating agents.
type Bias uint8

const (
	BiasNone Bias = iota
	BiasClockwise
	BiasAntiClockwise
	BiasLeft
	BiasRight
	BiasUp
	BiasDown
)

var biasNames = [...]string{"none", "clockwise", "anti-clockwise", "left", "right", "up", "down"}

// String returns the canonical bias name.
func (b Bias) String() string {
	if int(b) < len(biasNames) {
		return biasNames[b]
	}
	return fmt.Sprintf("bias(%d)", uint8(b))
}

// ParseBias accepts the canonical names as well as the labels of the
// original control panel ("Random", "Clockwise", "Anti-clockwise").
func ParseBias(s string) (Bias, error) {
	switch normalizeName(s) {
	case "", "none", "random":
		return BiasNone, nil
	case "clockwise", "cw":
		return BiasClockwise, nil
	case "anticlockwise", "counterclockwise", "ccw":
		return BiasAntiClockwise, nil
	case "left":
		return BiasLeft, nil
	case "right":
		return BiasRight, nil
	case "up":
		return BiasUp, nil
	case "down":
		return BiasDown, nil
	}
	return BiasNone, fmt.Errorf("unknown direction bias %q", s)
}

// normalizeName lowercases and drops spaces, dashes and underscores.
func normalizeName(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '_':
			return -1
		}
		return r
	}, strings.ToLower(strings.TrimSpace(s)))
}

// MovementPolicy picks where a relocating agent goes. The second result is
// false when no empty cell is in range, in which case the agent stays put.
type MovementPolicy interface {
	Destination(a *Agent, g *grid.Grid, rng *rand.Rand) (grid.Cell, bool)
}

// NewMovementPolicy returns the policy for a bias. Rotating policies keep
// per-agent state, so each run needs its own instance.
func NewMovementPolicy(b Bias) MovementPolicy {
	switch b {
	case BiasLeft:
		return halfPlane(func(dx, dy int) bool { return dx < 0 })
	case BiasRight:
		return halfPlane(func(dx, dy int) bool { return dx > 0 })
	case BiasUp:
		return halfPlane(func(dx, dy int) bool { return dy < 0 })
	case BiasDown:
		return halfPlane(func(dx, dy int) bool { return dy > 0 })
	case BiasClockwise:
		return &rotating{quadrants: clockwiseQuadrants, turns: make(map[AgentID]int)}
	case BiasAntiClockwise:
		return &rotating{quadrants: antiClockwiseQuadrants, turns: make(map[AgentID]int)}
	default:
		return randomWalk{}
	}
}

// randomWalk moves to any empty cell within vision.
type randomWalk struct{}

func (randomWalk) Destination(a *Agent, g *grid.Grid, rng *rand.Rand) (grid.Cell, bool) {
	return g.RandomEmptyCellWithin(a.Position, a.Vision, rng)
}

// halfPlane prefers empty cells whose offset satisfies the predicate.
type halfPlane func(dx, dy int) bool

func (h halfPlane) Destination(a *Agent, g *grid.Grid, rng *rand.Rand) (grid.Cell, bool) {
	return preferred(a, g, rng, h)
}

// Quadrants in screen orientation (y grows downward). Together they cover
// every offset except the centre exactly once.
var (
	northEast = func(dx, dy int) bool { return dx > 0 && dy <= 0 }
	southEast = func(dx, dy int) bool { return dx >= 0 && dy > 0 }
	southWest = func(dx, dy int) bool { return dx < 0 && dy >= 0 }
	northWest = func(dx, dy int) bool { return dx <= 0 && dy < 0 }

	clockwiseQuadrants     = []func(dx, dy int) bool{northEast, southEast, southWest, northWest}
	antiClockwiseQuadrants = []func(dx, dy int) bool{northEast, northWest, southWest, southEast}
)

// rotating advances the preferred quadrant by one step every time an agent
// asks for a destination.
type rotating struct {
	quadrants []func(dx, dy int) bool
	turns     map[AgentID]int
}

func (r *rotating) Destination(a *Agent, g *grid.Grid, rng *rand.Rand) (grid.Cell, bool) {
	turn := r.turns[a.ID]
	r.turns[a.ID] = turn + 1
	return preferred(a, g, rng, r.quadrants[turn%len(r.quadrants)])
}

// Turns returns how many times the agent has asked for a destination.
func (r *rotating) Turns(id AgentID) int {
	return r.turns[id]
}

// preferred picks uniformly among empty cells in the biased region, falling
// back to any empty cell in range when the region has none.
func preferred(a *Agent, g *grid.Grid, rng *rand.Rand, accept func(dx, dy int) bool) (grid.Cell, bool) {
	empty := g.EmptyWithin(a.Position, a.Vision)
	if len(empty) == 0 {
		return grid.Cell{}, false
	}
	biased := make([]grid.Cell, 0, len(empty))
	for _, n := range empty {
		if accept(n.DX, n.DY) {
			biased = append(biased, n.Cell)
		}
	}
	if len(biased) > 0 {
		return biased[rng.Intn(len(biased))], true
	}
	return empty[rng.Intn(len(empty))].Cell, true
}
