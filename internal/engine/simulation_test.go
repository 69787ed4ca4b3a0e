package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/unrest/internal/agents"
	"github.com/talgya/unrest/internal/config"
	"github.com/talgya/unrest/internal/grid"
)

// unrestConfig is a small, restless run: low legitimacy and short sentences
// so arrests and releases both happen within a few dozen ticks.
func unrestConfig() config.Config {
	cfg := config.Default()
	cfg.Width, cfg.Height = 20, 20
	cfg.Population = &config.Population{Citizens: 150, Cops: 20}
	cfg.Legitimacy = 0.5
	cfg.JailCapacity = 10
	cfg.MaxJailTerm = 15
	cfg.MaxIters = 60
	cfg.Seed = 7
	return cfg
}

func newSim(t *testing.T, cfg config.Config) *Simulation {
	t.Helper()
	sim, err := NewSimulation(cfg)
	require.NoError(t, err)
	return sim
}

func checkInvariants(t *testing.T, sim *Simulation) {
	t.Helper()
	onGrid := 0
	for _, a := range sim.Store.All() {
		pos, err := sim.Grid.Position(a.ID)
		if sim.Store.OnRoster(a.ID) {
			require.NoError(t, err, "agent %d on roster but not on grid", a.ID)
			require.Equal(t, a.Position, pos)
			onGrid++
		} else {
			require.ErrorIs(t, err, grid.ErrNotPresent)
			require.True(t, sim.Jail.Holds(a.ID))
		}
		if c := a.Citizen; c != nil {
			require.GreaterOrEqual(t, c.ArrestProbability, 0.0)
			require.LessOrEqual(t, c.ArrestProbability, 1.0)
			require.GreaterOrEqual(t, c.JailSentence, 0)
		}
	}
	require.Equal(t, onGrid, sim.Grid.Len())

	st := sim.Stats()
	require.Equal(t, sim.Store.Count(agents.BreedCitizen), st.Citizens())
	require.LessOrEqual(t, st.Jailed, sim.Config.JailCapacity)
	require.Equal(t, sim.Jail.Len(), st.Jailed)
}

func TestNewSimulationRejectsBadConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Legitimacy = 1.5
	_, err := NewSimulation(cfg)
	assert.ErrorIs(t, err, config.ErrInvalidConfiguration)

	cfg = config.Default()
	cfg.Width, cfg.Height = 5, 5
	cfg.Population = &config.Population{Citizens: 30, Cops: 3}
	_, err = NewSimulation(cfg)
	assert.ErrorIs(t, err, agents.ErrInsufficientSpace)
}

func TestInitialState(t *testing.T) {
	sim := newSim(t, unrestConfig())
	assert.True(t, sim.Running)
	assert.Zero(t, sim.CurrentTick())
	assert.Equal(t, 174, sim.Grid.Len())

	snap := sim.Latest()
	require.NotNil(t, snap)
	assert.Zero(t, snap.Tick)
	assert.True(t, snap.Running)
	assert.Len(t, snap.Agents, 174)
	assert.Equal(t, 150, snap.Stats.Quiescent)
	assert.Len(t, sim.History(), 1)
}

func TestInvariantsHoldEveryTick(t *testing.T) {
	for _, env := range []agents.Environment{agents.RandomDistribution, agents.WallOfCops, agents.Circle} {
		for _, bias := range []string{"none", "clockwise", "left"} {
			t.Run(env.String()+"/"+bias, func(t *testing.T) {
				cfg := unrestConfig()
				cfg.Environment = env.String()
				cfg.DirectionBias = bias
				sim := newSim(t, cfg)
				for sim.Running {
					require.NoError(t, sim.Step())
					checkInvariants(t, sim)
				}
			})
		}
	}
}

func TestArrestsAndReleasesHappen(t *testing.T) {
	sim := newSim(t, unrestConfig())
	require.NoError(t, sim.Run())

	var arrests, released, peak int
	for _, st := range sim.History() {
		arrests += st.Arrests
		released += st.Released
		peak = max(peak, st.Jailed)
	}
	assert.Positive(t, arrests)
	assert.Positive(t, released)
	assert.LessOrEqual(t, peak, 10)

	cats := map[string]int{}
	for _, e := range sim.Events {
		cats[e.Category]++
	}
	assert.Positive(t, cats["arrest"])
	assert.Positive(t, cats["admission"])
	assert.Positive(t, cats["release"])
}

func TestDeterminism(t *testing.T) {
	a := newSim(t, unrestConfig())
	b := newSim(t, unrestConfig())
	require.NoError(t, a.Run())
	require.NoError(t, b.Run())

	assert.Equal(t, a.History(), b.History())
	assert.Equal(t, a.Latest(), b.Latest())
	assert.Equal(t, a.Events, b.Events)

	cfg := unrestConfig()
	cfg.Seed = 8
	c := newSim(t, cfg)
	require.NoError(t, c.Run())
	assert.NotEqual(t, a.Latest().Agents, c.Latest().Agents)
}

func TestRunStopsAtMaxIters(t *testing.T) {
	cfg := unrestConfig()
	cfg.MaxIters = 5
	sim := newSim(t, cfg)
	for i := 1; i <= 4; i++ {
		require.NoError(t, sim.Step())
		assert.True(t, sim.Running, "tick %d", i)
	}
	require.NoError(t, sim.Step())
	assert.False(t, sim.Running)
	assert.False(t, sim.Latest().Running)
	assert.Equal(t, uint64(5), sim.CurrentTick())

	require.NoError(t, sim.Step())
	assert.Equal(t, uint64(5), sim.CurrentTick(), "stepping a finished run is a no-op")
	assert.Len(t, sim.History(), 6)
}

func TestDefaultRunEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("full 1000 tick run")
	}
	cfg := config.Default()
	cfg.Seed = 42
	sim := newSim(t, cfg)
	require.NoError(t, sim.Run())

	assert.Equal(t, uint64(1000), sim.CurrentTick())
	assert.False(t, sim.Running)
	assert.Len(t, sim.History(), 1001)
	checkInvariants(t, sim)

	snap := sim.Latest()
	assert.Equal(t, 1000, int(snap.Tick))
	assert.Equal(t, 82, snap.Stats.Citizens())
	assert.Equal(t, 1033, snap.Count(agents.BreedCop))
	assert.Equal(t, 4, snap.Count(agents.BreedBlock))
}

func TestMovementDisabledKeepsCitizensStill(t *testing.T) {
	cfg := unrestConfig()
	cfg.Movement = false
	cfg.Population = &config.Population{Citizens: 40, Cops: 0}
	sim := newSim(t, cfg)
	before := sim.Grid.Occupants()
	for range 10 {
		require.NoError(t, sim.Step())
	}
	assert.Equal(t, before, sim.Grid.Occupants())
}

func TestSubscribeReceivesSnapshots(t *testing.T) {
	sim := newSim(t, unrestConfig())
	id, ch := sim.Subscribe()
	require.NoError(t, sim.Step())

	snap := <-ch
	assert.Equal(t, uint64(1), snap.Tick)
	assert.Same(t, sim.Latest(), snap)

	sim.Unsubscribe(id)
	_, open := <-ch
	assert.False(t, open)
	sim.Unsubscribe(id)
}

func TestSnapshotSummary(t *testing.T) {
	sim := newSim(t, unrestConfig())
	summary := sim.Latest().Summary()
	assert.Contains(t, summary, "Number of citizens: 150")
	assert.Contains(t, summary, "Number of cops: 20")
	assert.NotContains(t, summary, "finished")

	for _, v := range sim.Latest().Agents {
		switch v.Breed {
		case agents.BreedCitizen:
			assert.Equal(t, "Quiescent", v.Condition)
		case agents.BreedBlock:
			assert.Equal(t, "#00FF00", v.Color)
		}
	}
}

func TestRecentEvents(t *testing.T) {
	sim := newSim(t, unrestConfig())
	require.NoError(t, sim.Run())
	recent := sim.RecentEvents(3)
	require.Len(t, recent, 3)
	assert.Equal(t, sim.Events[len(sim.Events)-1], recent[2])
}
