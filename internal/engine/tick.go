// Package engine provides the civil-violence model kernel and the loop that
// drives it tick by tick.
package engine

import (
	"context"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
)

// Engine drives a Simulation forward in real time.
type Engine struct {
	Sim      *Simulation
	Interval time.Duration // Base tick interval, 0 = as fast as possible

	ReportEvery     uint64 // Ticks between report lines, 0 = never
	CheckpointEvery uint64 // Ticks between OnCheckpoint calls, 0 = never

	// Callbacks, populated during setup.
	OnTick       func(snap *Snapshot) // Every tick
	OnCheckpoint func(snap *Snapshot) // Every CheckpointEvery ticks

	speed   atomic.Uint64 // math.Float64bits of the multiplier
	running atomic.Bool
	arrests uint64
}

// NewEngine creates an engine for sim at speed 1 with no pacing.
func NewEngine(sim *Simulation) *Engine {
	e := &Engine{Sim: sim}
	e.SetSpeed(1)
	return e
}

// Speed returns the speed multiplier: 1.0 = one tick per Interval, 0 = paused.
func (e *Engine) Speed() float64 {
	return math.Float64frombits(e.speed.Load())
}

// SetSpeed changes the speed multiplier. Safe for concurrent use.
func (e *Engine) SetSpeed(v float64) {
	if math.IsNaN(v) || v < 0 {
		v = 0
	}
	e.speed.Store(math.Float64bits(v))
}

// Running reports whether the loop is active.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// Run starts the simulation loop. It blocks until the simulation finishes,
// Stop is called or ctx is cancelled. Cancellation takes effect between ticks.
func (e *Engine) Run(ctx context.Context) error {
	e.running.Store(true)
	defer e.running.Store(false)
	slog.Info("simulation engine started", "tick", e.Sim.CurrentTick(), "speed", e.Speed())

	for e.running.Load() && e.Sim.Running {
		speed := e.Speed()
		if speed <= 0 {
			// Paused, check again shortly.
			if !sleep(ctx, 100*time.Millisecond) {
				break
			}
			continue
		}
		if ctx.Err() != nil {
			break
		}

		start := time.Now()
		if err := e.step(); err != nil {
			slog.Error("tick failed", "tick", e.Sim.CurrentTick()+1, "error", err)
			return err
		}

		// Sleep for the remainder of the tick interval, adjusted for speed.
		if e.Interval > 0 {
			elapsed := time.Since(start)
			target := time.Duration(float64(e.Interval) / speed)
			if elapsed < target && !sleep(ctx, target-elapsed) {
				break
			}
		}
	}

	slog.Info("simulation engine stopped", "tick", e.Sim.CurrentTick(), "finished", !e.Sim.Running)
	return nil
}

// Stop halts the loop after the current tick.
func (e *Engine) Stop() {
	e.running.Store(false)
}

// step advances the simulation by one tick and fires the callbacks.
func (e *Engine) step() error {
	if err := e.Sim.Step(); err != nil {
		return err
	}
	snap := e.Sim.Latest()
	e.arrests += uint64(snap.Stats.Arrests)

	if e.OnTick != nil {
		e.OnTick(snap)
	}
	if e.ReportEvery > 0 && (snap.Tick%e.ReportEvery == 0 || !snap.Running) {
		e.report(snap)
	}
	if e.CheckpointEvery > 0 && snap.Tick%e.CheckpointEvery == 0 && e.OnCheckpoint != nil {
		e.OnCheckpoint(snap)
	}
	return nil
}

func (e *Engine) report(snap *Snapshot) {
	st := snap.Stats
	slog.Info("tick report",
		"tick", humanize.Comma(int64(snap.Tick)),
		"quiescent", st.Quiescent,
		"active", st.Active,
		"jailed", st.Jailed,
		"awaiting", st.Awaiting,
		"total_arrests", humanize.Comma(int64(e.arrests)),
	)
}

// sleep waits for d or until ctx is done. It reports whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
