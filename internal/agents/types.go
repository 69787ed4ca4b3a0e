// Package agents provides the citizen/cop/block data model, the agent store,
// the decision formulas, movement policies and spawn layouts.
package agents

import (
	"fmt"
	"strings"

	"github.com/talgya/unrest/internal/grid"
)

// AgentID is a unique identifier for an agent. IDs start at 1 and double as
// grid occupant IDs.
type AgentID = grid.ID

// Breed tags the agent variant.
type Breed uint8

const (
	BreedCitizen Breed = iota
	BreedCop
	BreedBlock
)

var breedNames = [...]string{"citizen", "cop", "block"}

// String returns the lowercase breed name.
func (b Breed) String() string {
	if int(b) < len(breedNames) {
		return breedNames[b]
	}
	return fmt.Sprintf("breed(%d)", uint8(b))
}

// MarshalText encodes the breed by name.
func (b Breed) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// UnmarshalText decodes a breed name.
func (b *Breed) UnmarshalText(text []byte) error {
	for i, name := range breedNames {
		if strings.EqualFold(name, string(text)) {
			*b = Breed(i)
			return nil
		}
	}
	return fmt.Errorf("unknown breed %q", text)
}

// Condition is a citizen's behavioral state.
type Condition uint8

const (
	Quiescent Condition = iota
	Active
)

// String returns "Quiescent" or "Active".
func (c Condition) String() string {
	if c == Active {
		return "Active"
	}
	return "Quiescent"
}

// MarshalText encodes the condition by name.
func (c Condition) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// ParseCondition parses a condition name, case-insensitively.
func ParseCondition(s string) (Condition, error) {
	switch strings.ToLower(s) {
	case "quiescent":
		return Quiescent, nil
	case "active":
		return Active, nil
	}
	return Quiescent, fmt.Errorf("unknown condition %q", s)
}

// Agent is a tagged variant over citizens, cops and blocks. Shared fields
// live here; citizen-only state lives behind Citizen, which is nil for the
// other breeds.
type Agent struct {
	ID       AgentID   `json:"id"`
	Breed    Breed     `json:"breed"`
	Position grid.Cell `json:"position"`
	Vision   int       `json:"vision,omitempty"` // Cells in each direction; 0 for blocks

	Citizen *CitizenState `json:"citizen,omitempty"`
}

// CitizenState holds the citizen-only attributes.
type CitizenState struct {
	Hardship     float64 `json:"hardship"`      // [0, 1), fixed at creation
	RiskAversion float64 `json:"risk_aversion"` // [0, 1), fixed at creation
	Grievance    float64 `json:"grievance"`     // Hardship × (1 − legitimacy)

	Condition         Condition `json:"condition"`
	JailSentence      int       `json:"jail_sentence"`      // Remaining ticks, 0 when free
	ArrestProbability float64   `json:"arrest_probability"` // Last estimate, reporting only
}

// NewCitizen builds a citizen agent. Grievance is derived from the model-wide
// legitimacy.
func NewCitizen(vision int, hardship, riskAversion, legitimacy float64) Agent {
	return Agent{
		Breed:  BreedCitizen,
		Vision: vision,
		Citizen: &CitizenState{
			Hardship:     hardship,
			RiskAversion: riskAversion,
			Grievance:    Grievance(hardship, legitimacy),
			Condition:    Quiescent,
		},
	}
}

// NewCop builds a cop agent.
func NewCop(vision int) Agent {
	return Agent{Breed: BreedCop, Vision: vision}
}

// NewBlock builds a static obstacle.
func NewBlock() Agent {
	return Agent{Breed: BreedBlock}
}

// IsActive reports whether the agent is a citizen in the Active condition.
func (a *Agent) IsActive() bool {
	return a.Breed == BreedCitizen && a.Citizen.Condition == Active
}

// Acts reports whether the agent takes a turn each tick. Blocks never do.
func (a *Agent) Acts() bool {
	return a.Breed != BreedBlock
}

// Color returns the portrayal colour the original web canvas used for the agent.
func (a *Agent) Color() string {
	switch a.Breed {
	case BreedCop:
		return "#000000"
	case BreedBlock:
		return "#00FF00"
	}
	if a.Citizen.JailSentence > 0 {
		return "#757575"
	}
	if a.Citizen.Condition == Active {
		return "#CC0000"
	}
	return "#0066CC"
}
