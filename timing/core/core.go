// Package core provides the cycle-accurate CPU core model.
// It drives the 5-stage pipeline from an akita simulation engine, one
// pipeline cycle per clock tick.
package core

import (
	"log/slog"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/iurisilvio/mipssim/timing/pipeline"
)

// DefaultFrequency is the core clock.
const DefaultFrequency = 1 * sim.GHz

// Stats holds performance statistics for the core.
type Stats struct {
	// Cycles is the total number of cycles simulated.
	Cycles uint64 `json:"cycles"`
	// Instructions is the number of instructions retired.
	Instructions uint64 `json:"instructions"`
	// Stalls is the number of stall cycles.
	Stalls uint64 `json:"stalls"`
	// Flushes is the number of pipeline flushes.
	Flushes uint64 `json:"flushes"`
	// SimTime is the engine time at which the core stopped.
	SimTime sim.VTimeInSec `json:"sim_time"`
}

// Observer is called with the machine state after every cycle.
type Observer func(pipeline.Snapshot)

// Option is a functional option for configuring the Core.
type Option func(*Core)

// WithPipelineOptions sets the options used to build the pipeline.
func WithPipelineOptions(opts ...pipeline.PipelineOption) Option {
	return func(c *Core) {
		c.pipelineOpts = append(c.pipelineOpts, opts...)
	}
}

// WithMaxCycles sets the watchdog limit. 0 selects pipeline.DefaultMaxCycles.
func WithMaxCycles(n uint64) Option {
	return func(c *Core) {
		c.maxCycles = n
	}
}

// WithFrequency sets the core clock.
func WithFrequency(freq sim.Freq) Option {
	return func(c *Core) {
		c.freq = freq
	}
}

// WithObserver registers a callback run after every cycle.
func WithObserver(fn Observer) Option {
	return func(c *Core) {
		c.observers = append(c.observers, fn)
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Core) {
		c.logger = logger
	}
}

// Core represents a cycle-accurate CPU core model.
// It owns a Pipeline and steps it once per tick until the program drains,
// faults or the watchdog fires.
type Core struct {
	*sim.TickingComponent

	// Pipeline is the underlying 5-stage pipeline.
	Pipeline *pipeline.Pipeline

	engine       sim.Engine
	program      []string
	pipelineOpts []pipeline.PipelineOption
	freq         sim.Freq
	maxCycles    uint64
	observers    []Observer
	logger       *slog.Logger

	outcome pipeline.Outcome
	err     error
}

// NewCore creates a core named name that runs program on engine.
func NewCore(name string, engine sim.Engine, program []string, opts ...Option) *Core {
	c := &Core{
		engine:    engine,
		program:   program,
		freq:      DefaultFrequency,
		maxCycles: pipeline.DefaultMaxCycles,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}
	if c.maxCycles == 0 {
		c.maxCycles = pipeline.DefaultMaxCycles
	}

	c.TickingComponent = sim.NewTickingComponent(name, engine, c.freq, c)
	c.Reset()
	return c
}

// Reset rebuilds the pipeline from the program, discarding all state.
func (c *Core) Reset() {
	opts := append([]pipeline.PipelineOption{pipeline.WithLogger(c.logger)}, c.pipelineOpts...)
	c.Pipeline = pipeline.NewPipeline(c.program, opts...)
	c.outcome = pipeline.OutcomeRunning
	c.err = nil
}

// Tick executes one pipeline cycle. It returns false once the core has
// stopped, which ends the tick chain.
func (c *Core) Tick() bool {
	if c.outcome != pipeline.OutcomeRunning {
		return false
	}

	p := c.Pipeline
	switch {
	case p.Drained():
		c.stop(pipeline.OutcomeCompleted, nil)
		return false
	case p.Clock() >= c.maxCycles:
		c.logger.Warn("watchdog expired", "core", c.Name(), "cycles", p.Clock(), "pc", p.PC())
		c.stop(pipeline.OutcomeTimeout, pipeline.ErrWatchdog)
		return false
	}

	if err := p.Step(); err != nil {
		c.stop(pipeline.OutcomeFaulted, err)
		return false
	}

	if len(c.observers) > 0 {
		snap := p.Snapshot()
		for _, fn := range c.observers {
			fn(snap)
		}
	}
	return true
}

func (c *Core) stop(outcome pipeline.Outcome, err error) {
	c.outcome = outcome
	c.err = err
	c.logger.Debug("core stopped",
		"core", c.Name(), "outcome", outcome, "cycles", c.Pipeline.Clock(),
		"time", c.engine.CurrentTime())
}

// Halted returns true once the core has stopped.
func (c *Core) Halted() bool {
	return c.outcome != pipeline.OutcomeRunning
}

// Outcome returns the way the run ended and the error that ended it.
func (c *Core) Outcome() (pipeline.Outcome, error) {
	return c.outcome, c.err
}

// Stats returns performance statistics for the core.
func (c *Core) Stats() Stats {
	pipeStats := c.Pipeline.Stats()
	return Stats{
		Cycles:       pipeStats.Cycles,
		Instructions: pipeStats.Instructions,
		Stalls:       pipeStats.Stalls,
		Flushes:      pipeStats.Flushes,
		SimTime:      c.engine.CurrentTime(),
	}
}

// Run schedules the first tick and runs the engine until the core stops.
func (c *Core) Run() (pipeline.Outcome, error) {
	if c.Halted() {
		return c.outcome, c.err
	}

	c.TickLater()
	if err := c.engine.Run(); err != nil {
		return pipeline.OutcomeFaulted, err
	}
	return c.outcome, c.err
}

// RunCycles executes up to cycles pipeline cycles without the engine.
// Returns true if still running, false if halted.
func (c *Core) RunCycles(cycles uint64) bool {
	for i := uint64(0); i < cycles; i++ {
		if !c.Tick() {
			return false
		}
	}
	return !c.Halted()
}
