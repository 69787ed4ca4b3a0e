// Simulation ties the grid, the agent store and the jail together and runs
// one tick of the civil-violence model at a time.
package engine

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"

	"github.com/talgya/unrest/internal/agents"
	"github.com/talgya/unrest/internal/config"
	"github.com/talgya/unrest/internal/grid"
)

// maxEvents bounds the in-memory event log.
const maxEvents = 1000

// Simulation holds the complete model state. It is owned by a single
// goroutine; other goroutines use only Latest, Subscribe, History and
// RecentEvents.
type Simulation struct {
	Config   config.Config
	Grid     *grid.Grid
	Store    *agents.Store
	Jail     *Jail
	Movement agents.MovementPolicy

	LastTick uint64 // Ticks completed
	Running  bool

	eventsMu sync.RWMutex
	Events   []Event // Recent arrests, admissions and releases

	histMu  sync.RWMutex
	history []Stats // One entry per tick, starting with the initial state

	rng    *rand.Rand
	policy config.BacklogPolicy

	latest atomic.Pointer[Snapshot]

	subMu  sync.Mutex
	nextID int
	subs   map[int]chan *Snapshot
}

// Event is a notable occurrence during a run.
type Event struct {
	Tick        uint64         `json:"tick"`
	Agent       agents.AgentID `json:"agent"`
	Cop         agents.AgentID `json:"cop,omitempty"`
	Description string         `json:"description"`
	Category    string         `json:"category"` // "arrest", "admission", "release"
}

// NewSimulation validates cfg, seeds the model generator and lays out the
// initial population.
func NewSimulation(cfg config.Config) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	g := grid.New(cfg.Width, cfg.Height, cfg.Wrap)
	store := agents.NewStore()

	sp := agents.NewSpawner(cfg.Spawn(), g, store, rng)
	if err := sp.Populate(agents.NewSpawnStrategy(cfg.Env())); err != nil {
		return nil, fmt.Errorf("spawn %s: %w", cfg.Env(), err)
	}

	s := &Simulation{
		Config:   cfg,
		Grid:     g,
		Store:    store,
		Jail:     NewJail(cfg.JailCapacity),
		Movement: agents.NewMovementPolicy(cfg.Bias()),
		Running:  true,
		rng:      rng,
		policy:   cfg.BacklogMode(),
		subs:     make(map[int]chan *Snapshot),
	}
	s.record(Stats{})

	slog.Info("population spawned",
		"environment", cfg.Env().String(),
		"citizens", store.Count(agents.BreedCitizen),
		"cops", store.Count(agents.BreedCop),
		"blocks", store.Count(agents.BreedBlock),
		"seed", cfg.Seed,
	)
	return s, nil
}

// CurrentTick returns the number of ticks completed.
func (s *Simulation) CurrentTick() uint64 {
	return s.LastTick
}

// Step advances the model by one tick: every roster agent acts once in a
// fresh random order, then the jail releases and admits. Step is a no-op once
// the run has finished.
func (s *Simulation) Step() error {
	if !s.Running {
		return nil
	}
	tick := s.LastTick + 1
	var ts Stats

	for _, id := range s.Store.ActivationOrder(s.rng) {
		a := s.Store.MustGet(id)
		switch a.Breed {
		case agents.BreedCitizen:
			if err := s.stepCitizen(a); err != nil {
				return fmt.Errorf("tick %d citizen %d: %w", tick, id, err)
			}
		case agents.BreedCop:
			arrested, err := s.stepCop(a, tick)
			if err != nil {
				return fmt.Errorf("tick %d cop %d: %w", tick, id, err)
			}
			if arrested {
				ts.Arrests++
			}
		}
	}

	released, err := s.Jail.Release(s.Grid, s.Store, s.rng)
	if err != nil {
		return fmt.Errorf("tick %d release: %w", tick, err)
	}
	for _, id := range released {
		s.logEvent(Event{Tick: tick, Agent: id, Category: "release",
			Description: fmt.Sprintf("citizen %d released", id)})
	}
	admitted, err := s.Jail.Admit(s.Grid, s.Store, tick)
	if err != nil {
		return fmt.Errorf("tick %d admission: %w", tick, err)
	}
	for _, id := range admitted {
		s.logEvent(Event{Tick: tick, Agent: id, Category: "admission",
			Description: fmt.Sprintf("citizen %d jailed for %d ticks", id, s.Store.MustGet(id).Citizen.JailSentence)})
	}
	ts.Released = len(released)
	ts.Admitted = len(admitted)

	s.LastTick = tick
	if tick >= uint64(s.Config.MaxIters) {
		s.Running = false
	}
	s.record(ts)

	slog.Debug("tick",
		"tick", tick,
		"arrests", ts.Arrests,
		"admitted", ts.Admitted,
		"released", ts.Released,
	)
	return nil
}

// Run steps the model until it finishes.
func (s *Simulation) Run() error {
	for s.Running {
		if err := s.Step(); err != nil {
			return err
		}
	}
	return nil
}

// Stats returns the statistics of the last completed tick.
func (s *Simulation) Stats() Stats {
	s.histMu.RLock()
	defer s.histMu.RUnlock()
	return s.history[len(s.history)-1]
}

// History returns a copy of the per-tick statistics collected so far. Safe
// for concurrent use.
func (s *Simulation) History() []Stats {
	s.histMu.RLock()
	defer s.histMu.RUnlock()
	return append([]Stats(nil), s.history...)
}

// RecentEvents returns up to n of the most recent events, oldest first.
// Safe for concurrent use.
func (s *Simulation) RecentEvents(n int) []Event {
	s.eventsMu.RLock()
	defer s.eventsMu.RUnlock()
	start := 0
	if len(s.Events) > n {
		start = len(s.Events) - n
	}
	return append([]Event(nil), s.Events[start:]...)
}

func (s *Simulation) logEvent(e Event) {
	s.eventsMu.Lock()
	defer s.eventsMu.Unlock()
	s.Events = append(s.Events, e)
	if len(s.Events) > maxEvents {
		s.Events = s.Events[len(s.Events)-maxEvents:]
	}
}

// record counts the population, appends to History and publishes a snapshot.
func (s *Simulation) record(ts Stats) {
	ts.Tick = s.LastTick
	for _, c := range s.Store.Citizens() {
		switch {
		case s.Jail.Holds(c.ID):
			ts.Jailed++
		case c.Citizen.Condition == agents.Active:
			ts.Active++
		default:
			ts.Quiescent++
		}
	}
	ts.Awaiting = s.Jail.Backlog()
	s.histMu.Lock()
	s.history = append(s.history, ts)
	s.histMu.Unlock()
	s.publish(s.snapshot(ts))
}

// Latest returns the most recently published snapshot. Safe for concurrent use.
func (s *Simulation) Latest() *Snapshot {
	return s.latest.Load()
}

// Subscribe registers for every snapshot published from now on. Slow
// subscribers miss snapshots instead of blocking the model.
func (s *Simulation) Subscribe() (int, <-chan *Snapshot) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.nextID++
	ch := make(chan *Snapshot, 8)
	s.subs[s.nextID] = ch
	return s.nextID, ch
}

// Unsubscribe removes a subscription and closes its channel.
func (s *Simulation) Unsubscribe(id int) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if ch, ok := s.subs[id]; ok {
		delete(s.subs, id)
		close(ch)
	}
}

func (s *Simulation) publish(snap *Snapshot) {
	s.latest.Store(snap)
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- snap:
		default:
		}
	}
}
