package emu

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/iurisilvio/mipssim/insts"
)

// ErrMaxInstructions is returned once the instruction limit is reached.
var ErrMaxInstructions = errors.New("max instructions reached")

// StepResult represents the result of executing a single instruction.
type StepResult struct {
	// Exited is true once PC has left the program.
	Exited bool

	// Inst is the instruction executed by this step, nil when Exited.
	Inst *insts.Instruction

	// Taken is true if a control-flow instruction redirected PC.
	Taken bool

	// Err is set if an error occurred during execution.
	Err error
}

// Emulator executes a MIPS program functionally, one instruction at a time,
// without modelling the pipeline. It serves as the architectural reference
// for the timing model.
type Emulator struct {
	program []string
	regFile *RegFile
	memory  *Memory
	decoder *insts.Decoder

	alu        *ALU
	lsu        *LoadStoreUnit
	branchUnit *BranchUnit

	logger *slog.Logger

	memoryWords      int
	instructionCount uint64
	completedCount   uint64
	maxInstructions  uint64 // 0 means no limit
}

// EmulatorOption is a functional option for configuring the Emulator.
type EmulatorOption func(*Emulator)

// WithMemoryWords sets the data memory size in words.
func WithMemoryWords(words int) EmulatorOption {
	return func(e *Emulator) {
		e.memoryWords = words
	}
}

// WithMaxInstructions sets the maximum number of instructions to execute.
// A value of 0 means no limit.
func WithMaxInstructions(max uint64) EmulatorOption {
	return func(e *Emulator) {
		e.maxInstructions = max
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) EmulatorOption {
	return func(e *Emulator) {
		e.logger = logger
	}
}

// NewEmulator creates an emulator for the given encoded program lines.
func NewEmulator(program []string, opts ...EmulatorOption) *Emulator {
	e := &Emulator{
		program: program,
		decoder: insts.NewDecoder(),
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(e)
	}

	e.Reset()
	return e
}

// RegFile returns the emulator's register file.
func (e *Emulator) RegFile() *RegFile {
	return e.regFile
}

// Memory returns the emulator's memory.
func (e *Emulator) Memory() *Memory {
	return e.memory
}

// InstructionCount returns the number of instructions executed.
func (e *Emulator) InstructionCount() uint64 {
	return e.instructionCount
}

// CompletedCount returns the number of instructions executed, not counting
// nops.
func (e *Emulator) CompletedCount() uint64 {
	return e.completedCount
}

// Reset restores the initial architectural state.
func (e *Emulator) Reset() {
	e.regFile = NewRegFile(WithRegFileLogger(e.logger))
	e.memory = NewMemory(e.memoryWords)
	e.instructionCount = 0
	e.completedCount = 0

	e.alu = NewALU(e.regFile)
	e.lsu = NewLoadStoreUnit(e.regFile, e.memory)
	e.branchUnit = NewBranchUnit(e.regFile)
}

// Done reports whether PC has left the program.
func (e *Emulator) Done() bool {
	return int(e.regFile.PC/4) >= len(e.program)
}

// Step executes a single instruction.
func (e *Emulator) Step() StepResult {
	if e.Done() {
		return StepResult{Exited: true}
	}

	if e.maxInstructions > 0 && e.instructionCount >= e.maxInstructions {
		return StepResult{Err: ErrMaxInstructions}
	}

	pc := e.regFile.PC
	inst, err := e.decoder.Decode(e.program[pc/4])
	if err != nil {
		return StepResult{Err: fmt.Errorf("failed to decode at PC=%d: %w", pc, err)}
	}

	result := StepResult{Inst: inst}
	result.Taken, result.Err = e.execute(inst, pc)
	if result.Err != nil {
		return result
	}

	e.instructionCount++
	if inst.Op != insts.OpNOP {
		e.completedCount++
	}
	return result
}

// Run executes instructions until PC leaves the program or an error occurs.
func (e *Emulator) Run() error {
	for {
		result := e.Step()
		if result.Exited {
			return nil
		}
		if result.Err != nil {
			e.logger.Debug("emulation stopped", "pc", e.regFile.PC, "err", result.Err)
			return result.Err
		}
	}
}

// execute performs one instruction and updates PC.
func (e *Emulator) execute(inst *insts.Instruction, pc uint32) (bool, error) {
	next := pc + 4

	switch inst.Op {
	case insts.OpADD:
		e.alu.ADD(inst.Rd, inst.Rs, inst.Rt)
	case insts.OpSUB:
		e.alu.SUB(inst.Rd, inst.Rs, inst.Rt)
	case insts.OpMUL:
		e.alu.MUL(inst.Rd, inst.Rs, inst.Rt)
	case insts.OpADDI:
		e.alu.ADDI(inst.Rt, inst.Rs, inst.Imm)
	case insts.OpLW:
		if err := e.lsu.LW(inst.Rt, inst.Rs, inst.Imm); err != nil {
			return false, fmt.Errorf("failed to load at PC=%d: %w", pc, err)
		}
	case insts.OpSW:
		if err := e.lsu.SW(inst.Rt, inst.Rs, inst.Imm); err != nil {
			return false, fmt.Errorf("failed to store at PC=%d: %w", pc, err)
		}
	case insts.OpBEQ, insts.OpBNE, insts.OpBLE, insts.OpJMP:
		return e.branchUnit.Resolve(inst, pc), nil
	case insts.OpNOP:
	default:
		return false, fmt.Errorf("unknown instruction at PC=%d", pc)
	}

	e.regFile.PC = next
	return false, nil
}
