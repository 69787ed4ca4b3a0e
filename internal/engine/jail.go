// Jail admission: capacity-gated transfer of arrested citizens off the grid
// and their release once sentences run out.
package engine

import (
	"math/rand"

	"github.com/talgya/unrest/internal/agents"
	"github.com/talgya/unrest/internal/grid"
)

// Jail holds the arrest backlog and the set of jailed citizens.
type Jail struct {
	capacity int

	queue    []agents.AgentID          // Arrest order, oldest first
	arrested map[agents.AgentID]uint64 // Queued citizen → tick of first arrest

	jailed   []agents.AgentID // Admission order
	admitted map[agents.AgentID]uint64
}

// NewJail creates an empty jail holding at most capacity citizens.
func NewJail(capacity int) *Jail {
	return &Jail{
		capacity: capacity,
		arrested: make(map[agents.AgentID]uint64),
		admitted: make(map[agents.AgentID]uint64),
	}
}

// Capacity returns the maximum number of jailed citizens.
func (j *Jail) Capacity() int { return j.capacity }

// Len returns the number of citizens currently jailed.
func (j *Jail) Len() int { return len(j.jailed) }

// Backlog returns the number of arrested citizens awaiting admission.
func (j *Jail) Backlog() int { return len(j.queue) }

// Awaiting reports whether the citizen is arrested but not yet admitted.
func (j *Jail) Awaiting(id agents.AgentID) bool {
	_, ok := j.arrested[id]
	return ok
}

// Holds reports whether the citizen is jailed.
func (j *Jail) Holds(id agents.AgentID) bool {
	_, ok := j.admitted[id]
	return ok
}

// Jailed returns the jailed citizens in admission order.
func (j *Jail) Jailed() []agents.AgentID {
	return append([]agents.AgentID(nil), j.jailed...)
}

// Queue returns the backlog in arrest order.
func (j *Jail) Queue() []agents.AgentID {
	return append([]agents.AgentID(nil), j.queue...)
}

// Enqueue records an arrest. A citizen already in the backlog keeps its
// original place; the result is false in that case.
func (j *Jail) Enqueue(id agents.AgentID, tick uint64) bool {
	if j.Awaiting(id) || j.Holds(id) {
		return false
	}
	j.queue = append(j.queue, id)
	j.arrested[id] = tick
	return true
}

// Admit moves backlog citizens into jail in arrest order while there is
// room. Admitted citizens leave the grid and the roster.
func (j *Jail) Admit(g *grid.Grid, store *agents.Store, tick uint64) ([]agents.AgentID, error) {
	var admitted []agents.AgentID
	for len(j.jailed) < j.capacity && len(j.queue) > 0 {
		id := j.queue[0]
		j.queue = j.queue[1:]
		delete(j.arrested, id)

		g.Remove(id)
		if err := store.Deactivate(id); err != nil {
			return admitted, err
		}
		j.jailed = append(j.jailed, id)
		j.admitted[id] = tick
		admitted = append(admitted, id)
	}
	return admitted, nil
}

// Release serves one tick of every sentence. Citizens whose sentence reaches
// zero are placed on a random empty cell, rejoin the roster as Quiescent and
// forget their arrest estimate. A finished citizen stays jailed while the
// grid has no empty cell and is retried next tick.
func (j *Jail) Release(g *grid.Grid, store *agents.Store, rng *rand.Rand) ([]agents.AgentID, error) {
	var released []agents.AgentID
	kept := j.jailed[:0]
	for _, id := range j.jailed {
		a, err := store.Get(id)
		if err != nil {
			return released, err
		}
		c := a.Citizen
		if c.JailSentence > 0 {
			c.JailSentence--
		}
		if c.JailSentence > 0 {
			kept = append(kept, id)
			continue
		}

		cell, ok := g.RandomEmptyCell(rng)
		if !ok {
			kept = append(kept, id)
			continue
		}
		if err := g.Place(id, cell); err != nil {
			return released, err
		}
		a.Position = cell
		c.Condition = agents.Quiescent
		c.ArrestProbability = 0
		if err := store.Activate(id); err != nil {
			return released, err
		}
		delete(j.admitted, id)
		released = append(released, id)
	}
	j.jailed = kept
	return released, nil
}
