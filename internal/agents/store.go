package agents

import (
	"fmt"
	"math/rand"

	"github.com/talgya/unrest/internal/grid"
)

// Store owns every agent of a run. Agents are never destroyed; jailed
// citizens only leave the roster of agents that act.
type Store struct {
	nextID AgentID
	agents []*Agent // Ascending ID; index = ID-1
	onDuty []bool   // Roster membership, same indexing
}

// NewStore creates an empty store. The first ID issued is 1.
func NewStore() *Store {
	return &Store{nextID: 1}
}

// Create adds an agent to the store and the roster and returns its new ID.
func (s *Store) Create(a Agent) AgentID {
	id := s.nextID
	s.nextID++
	a.ID = id
	s.agents = append(s.agents, &a)
	s.onDuty = append(s.onDuty, true)
	return id
}

// Get returns the agent with the given ID.
func (s *Store) Get(id AgentID) (*Agent, error) {
	if id == grid.None || int(id) > len(s.agents) {
		return nil, fmt.Errorf("agent %d: %w", id, grid.ErrNotPresent)
	}
	return s.agents[id-1], nil
}

// MustGet returns the agent with the given ID and panics if it is unknown.
// Only for IDs the caller obtained from the store or the grid.
func (s *Store) MustGet(id AgentID) *Agent {
	a, err := s.Get(id)
	if err != nil {
		panic(err)
	}
	return a
}

// Len returns the number of agents ever created.
func (s *Store) Len() int { return len(s.agents) }

// All returns every agent in ID order, including jailed citizens.
func (s *Store) All() []*Agent {
	out := make([]*Agent, len(s.agents))
	copy(out, s.agents)
	return out
}

// Count returns how many agents of the given breed exist.
func (s *Store) Count(b Breed) int {
	n := 0
	for _, a := range s.agents {
		if a.Breed == b {
			n++
		}
	}
	return n
}

// Citizens returns every citizen in ID order.
func (s *Store) Citizens() []*Agent {
	var out []*Agent
	for _, a := range s.agents {
		if a.Breed == BreedCitizen {
			out = append(out, a)
		}
	}
	return out
}

// OnRoster reports whether the agent is currently in the roster.
func (s *Store) OnRoster(id AgentID) bool {
	return id != grid.None && int(id) <= len(s.agents) && s.onDuty[id-1]
}

// Deactivate takes an agent off the roster.
func (s *Store) Deactivate(id AgentID) error {
	if _, err := s.Get(id); err != nil {
		return err
	}
	s.onDuty[id-1] = false
	return nil
}

// Activate puts an agent back on the roster.
func (s *Store) Activate(id AgentID) error {
	if _, err := s.Get(id); err != nil {
		return err
	}
	s.onDuty[id-1] = true
	return nil
}

// ActiveIDs returns the roster in ascending ID order. Jailed citizens are
// excluded; blocks are included.
func (s *Store) ActiveIDs() []AgentID {
	out := make([]AgentID, 0, len(s.agents))
	for i, a := range s.agents {
		if s.onDuty[i] {
			out = append(out, a.ID)
		}
	}
	return out
}

// ActivationOrder returns a fresh uniformly random permutation of the roster
// members that act this tick. Blocks are left out since they never act.
func (s *Store) ActivationOrder(rng *rand.Rand) []AgentID {
	order := make([]AgentID, 0, len(s.agents))
	for i, a := range s.agents {
		if s.onDuty[i] && a.Acts() {
			order = append(order, a.ID)
		}
	}
	rng.Shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})
	return order
}
