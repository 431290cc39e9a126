package pipeline

import (
	"fmt"
	"log/slog"

	"github.com/iurisilvio/mipssim/emu"
	"github.com/iurisilvio/mipssim/insts"
	"github.com/iurisilvio/mipssim/timing/latency"
)

// DefaultMaxCycles bounds Run when no cycle limit is given.
const DefaultMaxCycles = 10000

// Statistics holds pipeline performance statistics.
type Statistics struct {
	// Cycles is the total number of cycles simulated.
	Cycles uint64 `json:"cycles"`
	// Instructions is the number of instructions completed (retired).
	// Bubbles and nops are not counted.
	Instructions uint64 `json:"instructions"`
	// Stalls is the number of cycles Decode held an instruction back.
	Stalls uint64 `json:"stalls"`
	// Flushes is the number of taken branches and jumps.
	Flushes uint64 `json:"flushes"`
	// ExecStalls is the number of cycles spent in multi-cycle execution.
	ExecStalls uint64 `json:"exec_stalls"`
	// Hazards holds the hazard unit counters.
	Hazards HazardStats `json:"hazards"`
}

// CPI returns the cycles per instruction.
func (s Statistics) CPI() float64 {
	if s.Instructions == 0 {
		return 0
	}
	return float64(s.Cycles) / float64(s.Instructions)
}

// Throughput returns the instructions retired per cycle.
func (s Statistics) Throughput() float64 {
	if s.Cycles == 0 {
		return 0
	}
	return float64(s.Instructions) / float64(s.Cycles)
}

// PipelineOption is a functional option for configuring the Pipeline.
type PipelineOption func(*Pipeline)

// WithForwarding enables publishing results from Execute (and from Memory
// for loads) so dependent instructions need not wait for write-back.
func WithForwarding(enabled bool) PipelineOption {
	return func(p *Pipeline) {
		p.forwarding = enabled
	}
}

// WithLatencyTable sets a custom latency table for instruction timing.
// Multi-cycle operations hold the Execute stage accordingly.
func WithLatencyTable(table *latency.Table) PipelineOption {
	return func(p *Pipeline) {
		p.latencyTable = table
	}
}

// WithMemorySize sets the data memory size in words.
func WithMemorySize(words int) PipelineOption {
	return func(p *Pipeline) {
		p.memoryWords = words
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithHistory controls whether a snapshot is recorded after every cycle.
// Recording is on by default.
func WithHistory(enabled bool) PipelineOption {
	return func(p *Pipeline) {
		p.recordHistory = enabled
	}
}

// Pipeline implements a 5-stage pipelined CPU model.
// Stages: Fetch (IF) -> Decode (ID) -> Execute (EX) -> Memory (MEM) -> Writeback (WB)
//
// A Pipeline is not safe for concurrent use.
type Pipeline struct {
	program []string
	decoder *insts.Decoder

	stages [NumStages]Stage

	// Hazard detection
	hazardUnit *HazardUnit
	forwarding bool

	// Instruction timing
	latencyTable *latency.Table

	// Shared resources
	regFile     *emu.RegFile
	memory      *emu.Memory
	memoryWords int

	logger *slog.Logger

	// Statistics
	stats Statistics

	recordHistory bool
	history       []Snapshot

	fault error
}

// NewPipeline creates a pipeline for the given encoded program lines.
// Every stage starts holding a bubble and PC starts at 0.
func NewPipeline(program []string, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		program:       program,
		decoder:       insts.NewDecoder(),
		latencyTable:  latency.NewTable(),
		logger:        slog.Default(),
		recordHistory: true,
	}

	for _, opt := range opts {
		opt(p)
	}

	p.hazardUnit = NewHazardUnit(p.forwarding)
	p.regFile = emu.NewRegFile(emu.WithRegFileLogger(p.logger))
	p.memory = emu.NewMemory(p.memoryWords)

	for i := range p.stages {
		p.stages[i].Kind = StageKind(i)
		p.stages[i].fillBubble()
	}

	return p
}

// Program returns the program lines.
func (p *Pipeline) Program() []string {
	return p.program
}

// RegFile returns the pipeline's register file.
func (p *Pipeline) RegFile() *emu.RegFile {
	return p.regFile
}

// Memory returns the pipeline's data memory.
func (p *Pipeline) Memory() *emu.Memory {
	return p.memory
}

// Forwarding reports whether forwarding is enabled.
func (p *Pipeline) Forwarding() bool {
	return p.forwarding
}

// Stage returns a copy of one stage.
func (p *Pipeline) Stage(kind StageKind) Stage {
	return p.stages[kind]
}

// Stages returns a copy of every stage, Fetch first.
func (p *Pipeline) Stages() [NumStages]Stage {
	return p.stages
}

// PC returns the address of the next instruction to fetch.
func (p *Pipeline) PC() uint32 {
	return p.regFile.PC
}

// Clock returns the number of cycles simulated.
func (p *Pipeline) Clock() uint64 {
	return p.stats.Cycles
}

// Stats returns the pipeline statistics.
func (p *Pipeline) Stats() Statistics {
	s := p.stats
	s.Hazards = p.hazardUnit.Stats()
	return s
}

// Fault returns the error that stopped the pipeline, if any.
func (p *Pipeline) Fault() error {
	return p.fault
}

// Drained reports whether the program has left the pipeline: nothing is
// left to fetch, Fetch through Memory hold bubbles and WriteBack holds a
// bubble or a finished instruction.
func (p *Pipeline) Drained() bool {
	if int(p.regFile.PC/4) < len(p.program) {
		return false
	}
	for i := StageFetch; i < StageWriteBack; i++ {
		if !p.stages[i].IsBubble() {
			return false
		}
	}
	wb := &p.stages[StageWriteBack]
	return wb.IsBubble() || wb.Done
}

// Step advances the pipeline by one cycle. Once a fault occurred every
// later Step returns it again.
func (p *Pipeline) Step() error {
	if p.fault != nil {
		return p.fault
	}

	p.retire()
	p.shift()

	if err := p.fetch(); err != nil {
		return p.latch(err)
	}

	if err := p.execute(); err != nil {
		return p.latch(err)
	}

	p.fillBubbles()

	if p.Drained() {
		p.retire()
		p.stages[StageWriteBack].fillBubble()
	}

	p.stats.Cycles++
	if p.recordHistory {
		p.history = append(p.history, p.Snapshot())
	}
	return nil
}

// Run steps the pipeline until it drains, faults or maxCycles cycles have
// elapsed. A maxCycles of 0 selects DefaultMaxCycles.
func (p *Pipeline) Run(maxCycles uint64) (Outcome, error) {
	if maxCycles == 0 {
		maxCycles = DefaultMaxCycles
	}

	for {
		if p.fault != nil {
			return OutcomeFaulted, p.fault
		}
		if p.Drained() {
			return OutcomeCompleted, nil
		}
		if p.stats.Cycles >= maxCycles {
			p.logger.Warn("watchdog expired",
				"cycles", p.stats.Cycles, "pc", p.regFile.PC)
			return OutcomeTimeout, ErrWatchdog
		}
		if err := p.Step(); err != nil {
			return OutcomeFaulted, err
		}
	}
}

// Redirect discards the Fetch and Decode occupants, releasing their
// reservations, and continues fetching at target.
func (p *Pipeline) Redirect(target uint32) {
	for _, kind := range []StageKind{StageFetch, StageDecode} {
		s := &p.stages[kind]
		if inst := s.Inflight(); inst != nil {
			inst.Release(p.regFile)
		}
		s.fillBubble()
	}

	p.logger.Debug("pipeline flush",
		"clock", p.stats.Cycles+1, "from", p.regFile.PC, "target", target)

	if target > uint32(4*len(p.program)) {
		p.logger.Warn("redirect outside program",
			"clock", p.stats.Cycles+1, "pc", p.regFile.PC, "target", target)
	}

	p.regFile.PC = target
	p.stats.Flushes++
}

// retire clears a finished WriteBack occupant.
func (p *Pipeline) retire() {
	wb := &p.stages[StageWriteBack]
	if !wb.Done {
		return
	}
	if inst := wb.Inflight(); inst != nil && inst.Inst.Op != insts.OpNOP {
		p.stats.Instructions++
	}
	wb.clear()
}

// shift moves every finished occupant into an empty downstream stage,
// starting from the oldest.
func (p *Pipeline) shift() {
	for i := StageMemory; ; i-- {
		up, down := &p.stages[i], &p.stages[i+1]
		if up.Done && down.IsEmpty() {
			down.moveFrom(up)
		}
		if i == StageFetch {
			return
		}
	}
}

// fetch decodes the program line at PC into an empty Fetch stage.
func (p *Pipeline) fetch() error {
	s := &p.stages[StageFetch]
	if !s.IsEmpty() {
		return nil
	}

	pc := p.regFile.PC
	index := int(pc / 4)
	if index >= len(p.program) {
		return nil
	}

	line := p.program[index]
	inst, err := p.decoder.Decode(line)
	if err != nil {
		return &DecodeFault{PC: pc, Line: line, Err: err}
	}

	s.occupy(NewInflight(inst, pc, p.latencyTable.GetLatency(inst)))
	p.regFile.PC = pc + 4
	return nil
}

// execute runs the stage operation of every unfinished occupant in stage
// order. A redirect from Execute replaces Fetch and Decode, which have
// already run this cycle.
func (p *Pipeline) execute() error {
	for i := range p.stages {
		s := &p.stages[i]
		inst := s.Inflight()
		if inst == nil || s.Done {
			continue
		}

		switch s.Kind {
		case StageFetch:
			s.Done = true

		case StageDecode:
			s.Done = inst.Decode(p.hazardUnit, p.regFile)
			if !s.Done {
				p.stats.Stalls++
				p.logger.Debug("decode stall",
					"clock", p.stats.Cycles+1, "pc", inst.PC, "inst", inst.String())
			}

		case StageExecute:
			s.Done = inst.Execute(p.hazardUnit, p.regFile, p)
			if !s.Done {
				p.stats.ExecStalls++
			}

		case StageMemory:
			done, err := inst.MemoryAccess(p.hazardUnit, p.regFile, p.memory)
			if err != nil {
				return fmt.Errorf("failed to access memory at PC=%d: %w", inst.PC, err)
			}
			s.Done = done

		case StageWriteBack:
			s.Done = inst.WriteBack(p.regFile)
		}
	}
	return nil
}

func (p *Pipeline) fillBubbles() {
	for i := range p.stages {
		if p.stages[i].IsEmpty() {
			p.stages[i].fillBubble()
		}
	}
}

func (p *Pipeline) latch(err error) error {
	p.fault = err
	p.logger.Error("pipeline fault", "clock", p.stats.Cycles+1, "err", err)
	return err
}
