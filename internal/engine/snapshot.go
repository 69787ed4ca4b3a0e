package engine

import (
	"fmt"
	"strings"

	"github.com/talgya/unrest/internal/agents"
)

// Stats are the model-level reporters of one tick. Quiescent, Active and
// Jailed always add up to the number of citizens.
type Stats struct {
	Tick      uint64 `json:"tick" db:"tick"`
	Quiescent int    `json:"quiescent" db:"quiescent"`
	Active    int    `json:"active" db:"active"`
	Jailed    int    `json:"jailed" db:"jailed"`
	Awaiting  int    `json:"awaiting" db:"awaiting"` // Arrested, not yet admitted
	Arrests   int    `json:"arrests" db:"arrests"`
	Admitted  int    `json:"admitted" db:"admitted"`
	Released  int    `json:"released" db:"released"`
}

// Citizens returns the citizen total the stats account for.
func (st Stats) Citizens() int {
	return st.Quiescent + st.Active + st.Jailed
}

// AgentView is the published state of one agent on the grid.
type AgentView struct {
	ID    agents.AgentID `json:"id"`
	Breed agents.Breed   `json:"breed"`
	X     int            `json:"x"`
	Y     int            `json:"y"`
	Color string         `json:"color"`

	// Citizens only.
	Condition         string  `json:"condition,omitempty"`
	JailSentence      int     `json:"jail_sentence,omitempty"`
	ArrestProbability float64 `json:"arrest_probability,omitempty"`
}

// Snapshot is the immutable state published after each tick.
type Snapshot struct {
	Tick    uint64      `json:"tick"`
	Running bool        `json:"running"`
	Width   int         `json:"width"`
	Height  int         `json:"height"`
	Stats   Stats       `json:"stats"`
	Agents  []AgentView `json:"agents"` // On-grid agents in ID order
}

func (s *Simulation) snapshot(st Stats) *Snapshot {
	snap := &Snapshot{
		Tick:    s.LastTick,
		Running: s.Running,
		Width:   s.Grid.Width(),
		Height:  s.Grid.Height(),
		Stats:   st,
		Agents:  make([]AgentView, 0, s.Grid.Len()),
	}
	for _, a := range s.Store.All() {
		if !s.Store.OnRoster(a.ID) {
			continue
		}
		v := AgentView{
			ID:    a.ID,
			Breed: a.Breed,
			X:     a.Position.X,
			Y:     a.Position.Y,
			Color: a.Color(),
		}
		if c := a.Citizen; c != nil {
			v.Condition = c.Condition.String()
			v.JailSentence = c.JailSentence
			v.ArrestProbability = c.ArrestProbability
		}
		snap.Agents = append(snap.Agents, v)
	}
	return snap
}

// Count returns the number of on-grid agents of a breed.
func (snap *Snapshot) Count(b agents.Breed) int {
	n := 0
	for _, v := range snap.Agents {
		if v.Breed == b {
			n++
		}
	}
	return n
}

// Summary renders the roster text shown next to the grid.
func (snap *Snapshot) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Tick %d", snap.Tick)
	if !snap.Running {
		b.WriteString(" (finished)")
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Number of citizens: %d\n", snap.Stats.Citizens())
	fmt.Fprintf(&b, "Number of cops: %d\n", snap.Count(agents.BreedCop))
	fmt.Fprintf(&b, "Number of blocks: %d\n", snap.Count(agents.BreedBlock))
	fmt.Fprintf(&b, "Quiescent: %d, Active: %d, Jailed: %d\n",
		snap.Stats.Quiescent, snap.Stats.Active, snap.Stats.Jailed)
	if snap.Stats.Awaiting > 0 {
		fmt.Fprintf(&b, "Awaiting admission: %d\n", snap.Stats.Awaiting)
	}
	return b.String()
}
