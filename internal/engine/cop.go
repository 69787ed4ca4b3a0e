package engine

import (
	"fmt"

	"github.com/talgya/unrest/internal/agents"
	"github.com/talgya/unrest/internal/config"
)

// stepCop applies the cop rule: arrest one random active citizen in view
// and escort it, or patrol when there is nobody to arrest. It reports
// whether an arrest was made.
func (s *Simulation) stepCop(cop *agents.Agent, tick uint64) (bool, error) {
	targets := s.arrestable(cop)
	if len(targets) == 0 {
		if s.Config.Movement {
			return false, s.relocate(cop)
		}
		return false, nil
	}

	target := targets[s.rng.Intn(len(targets))]
	c := target.Citizen
	c.JailSentence = agents.JailSentence(s.rng.Float64(), s.Config.MaxJailTerm, c.ArrestProbability)
	if s.Jail.Enqueue(target.ID, tick) {
		s.logEvent(Event{Tick: tick, Agent: target.ID, Cop: cop.ID, Category: "arrest",
			Description: fmt.Sprintf("cop %d arrested citizen %d at %s", cop.ID, target.ID, target.Position)})
	}
	return true, s.escort(cop, target)
}

// arrestable lists the active citizens within the cop's vision, in the
// order the grid yields them. Under the hold policy citizens already waiting
// for admission are left alone.
func (s *Simulation) arrestable(cop *agents.Agent) []*agents.Agent {
	var out []*agents.Agent
	for n := range s.Grid.Neighbors(cop.Position, cop.Vision) {
		if n.Empty() {
			continue
		}
		a := s.Store.MustGet(n.Occupant)
		if !a.IsActive() {
			continue
		}
		if s.policy == config.BacklogHold && s.Jail.Awaiting(a.ID) {
			continue
		}
		out = append(out, a)
	}
	return out
}

// escort moves the cop next to its arrestee. The arrestee keeps its cell
// until admission, so the cop takes a random free cell adjacent to it, or
// stays if there is none.
func (s *Simulation) escort(cop, target *agents.Agent) error {
	if s.Grid.IsEmpty(target.Position) {
		return s.moveTo(cop, target.Position)
	}
	dst, ok := s.Grid.RandomEmptyCellWithin(target.Position, 1, s.rng)
	if !ok {
		return nil
	}
	return s.moveTo(cop, dst)
}
