// Decision formulas for citizens and cops.
// Epstein, "Modeling civil violence: An agent-based computational approach" (2002), Model I.
package agents

import "math"

// Grievance is hardship discounted by the perceived legitimacy of the regime.
func Grievance(hardship, legitimacy float64) float64 {
	return hardship * (1 - legitimacy)
}

// Observation is what a citizen sees within its vision: the cops, and the
// active citizens counting itself.
type Observation struct {
	Cops    int
	Actives int
}

// ArrestProbability estimates the chance of arrest if active:
// P = 1 − exp(−k × ⌊C / A⌋). With no actives in view it is 0.
func ArrestProbability(obs Observation, k float64) float64 {
	if obs.Actives <= 0 || obs.Cops <= 0 {
		return 0
	}
	ratio := obs.Cops / obs.Actives
	p := 1 - math.Exp(-k*float64(ratio))
	return clamp01(p)
}

// NetRisk is the rebellion signal N = G − R × P.
func NetRisk(c *CitizenState, arrestProbability float64) float64 {
	return c.Grievance - c.RiskAversion*arrestProbability
}

// DecideCondition returns Active when the net rebellion signal exceeds the threshold.
func DecideCondition(c *CitizenState, arrestProbability, threshold float64) Condition {
	if NetRisk(c, arrestProbability) > threshold {
		return Active
	}
	return Quiescent
}

// JailSentence computes J = ⌈u × maxTerm × P⌉ for a uniform draw u, never
// less than one tick.
func JailSentence(u float64, maxTerm int, arrestProbability float64) int {
	j := int(math.Ceil(u * float64(maxTerm) * clamp01(arrestProbability)))
	if j < 1 {
		return 1
	}
	return j
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
