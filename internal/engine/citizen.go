package engine

import (
	"github.com/talgya/unrest/internal/agents"
	"github.com/talgya/unrest/internal/config"
	"github.com/talgya/unrest/internal/grid"
)

// stepCitizen applies the citizen rule: estimate the arrest probability from
// the cops and actives in view, choose a condition, then move.
func (s *Simulation) stepCitizen(a *agents.Agent) error {
	if s.policy == config.BacklogHold && s.Jail.Awaiting(a.ID) {
		return nil
	}
	c := a.Citizen
	p := agents.ArrestProbability(s.observe(a), s.Config.ArrestProbConstant)
	c.ArrestProbability = p
	c.Condition = agents.DecideCondition(c, p, s.Config.ActiveThreshold)

	if s.Config.Movement {
		return s.relocate(a)
	}
	return nil
}

// observe counts the cops and active citizens within the agent's vision.
// The observer always counts as one active.
func (s *Simulation) observe(a *agents.Agent) agents.Observation {
	obs := agents.Observation{Actives: 1}
	for n := range s.Grid.Neighbors(a.Position, a.Vision) {
		if n.Empty() {
			continue
		}
		other := s.Store.MustGet(n.Occupant)
		switch {
		case other.Breed == agents.BreedCop:
			obs.Cops++
		case other.IsActive():
			obs.Actives++
		}
	}
	return obs
}

// relocate moves the agent to the destination its movement policy picks.
// Staying put is fine when nothing is free.
func (s *Simulation) relocate(a *agents.Agent) error {
	dst, ok := s.Movement.Destination(a, s.Grid, s.rng)
	if !ok {
		return nil
	}
	return s.moveTo(a, dst)
}

func (s *Simulation) moveTo(a *agents.Agent, dst grid.Cell) error {
	if err := s.Grid.Move(a.ID, dst); err != nil {
		return err
	}
	a.Position = dst
	return nil
}
