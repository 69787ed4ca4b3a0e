package agents

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGrievance(t *testing.T) {
	assert.InDelta(t, 0.1, Grievance(0.5, 0.8), 1e-12)
	assert.Equal(t, 0.0, Grievance(0.9, 1))
	assert.Equal(t, 0.9, Grievance(0.9, 0))
}

func TestArrestProbability(t *testing.T) {
	tests := []struct {
		name string
		obs  Observation
		k    float64
		want float64
	}{
		{"no actives", Observation{Cops: 3, Actives: 0}, 2.3, 0},
		{"no cops", Observation{Cops: 0, Actives: 4}, 2.3, 0},
		{"ratio floors to zero", Observation{Cops: 3, Actives: 4}, 2.3, 0},
		{"one to one", Observation{Cops: 1, Actives: 1}, 2.3, 1 - math.Exp(-2.3)},
		{"ratio floors to two", Observation{Cops: 5, Actives: 2}, 2.3, 1 - math.Exp(-4.6)},
		{"zero constant", Observation{Cops: 5, Actives: 1}, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ArrestProbability(tt.obs, tt.k)
			assert.InDelta(t, tt.want, p, 1e-12)
			assert.GreaterOrEqual(t, p, 0.0)
			assert.LessOrEqual(t, p, 1.0)
		})
	}
}

func TestDecideCondition(t *testing.T) {
	c := &CitizenState{Grievance: 0.5, RiskAversion: 0.5}

	assert.Equal(t, Active, DecideCondition(c, 0, 0.1))
	assert.Equal(t, Quiescent, DecideCondition(c, 0.9, 0.1)) // 0.5 - 0.45 = 0.05
	assert.Equal(t, Quiescent, DecideCondition(&CitizenState{Grievance: 0.1}, 0, 0.1), "threshold is strict")
}

func TestJailSentence(t *testing.T) {
	assert.Equal(t, 1, JailSentence(0, 1000, 0.9), "clamped to at least one tick")
	assert.Equal(t, 1, JailSentence(0.7, 1000, 0), "zero probability still jails")
	assert.Equal(t, 450, JailSentence(0.5, 1000, 0.9))
	assert.Equal(t, 451, JailSentence(0.5001, 1000, 0.9))
	assert.Equal(t, 30, JailSentence(1, 30, 1))
}
