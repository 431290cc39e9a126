// Package latency provides instruction timing models for cycle-accurate simulation.
//
// The latency of an instruction is the number of cycles it occupies the
// Execute stage and can be configured via TimingConfig.
package latency

import (
	"github.com/iurisilvio/mipssim/insts"
)

// Table provides instruction latency lookups.
type Table struct {
	config *TimingConfig
}

// NewTable creates a new latency table with default timing values.
func NewTable() *Table {
	return &Table{
		config: DefaultTimingConfig(),
	}
}

// NewTableWithConfig creates a new latency table with custom timing configuration.
func NewTableWithConfig(config *TimingConfig) *Table {
	return &Table{
		config: config,
	}
}

// GetLatency returns the execution latency in cycles for the given instruction.
func (t *Table) GetLatency(inst *insts.Instruction) uint64 {
	if inst == nil {
		return 1
	}
	return t.GetOpLatency(inst.Op)
}

// GetOpLatency returns the execution latency in cycles for an operation.
func (t *Table) GetOpLatency(op insts.Op) uint64 {
	switch op {
	case insts.OpADD, insts.OpADDI, insts.OpSUB, insts.OpNOP:
		return t.config.ALULatency

	case insts.OpMUL:
		return t.config.MultiplyLatency

	case insts.OpBEQ, insts.OpBNE, insts.OpBLE:
		return t.config.BranchLatency

	case insts.OpJMP:
		return t.config.JumpLatency

	case insts.OpLW:
		return t.config.LoadLatency

	case insts.OpSW:
		return t.config.StoreLatency

	default:
		return 1
	}
}

// IsMemoryOp returns true if the instruction accesses memory.
func (t *Table) IsMemoryOp(inst *insts.Instruction) bool {
	return t.IsLoadOp(inst) || t.IsStoreOp(inst)
}

// IsLoadOp returns true if the instruction is a load operation.
func (t *Table) IsLoadOp(inst *insts.Instruction) bool {
	if inst == nil {
		return false
	}
	return inst.Control().MemToReg.On()
}

// IsStoreOp returns true if the instruction is a store operation.
func (t *Table) IsStoreOp(inst *insts.Instruction) bool {
	if inst == nil {
		return false
	}
	return inst.Control().MemWrite.On()
}

// IsBranchOp returns true if the instruction may redirect the PC.
func (t *Table) IsBranchOp(inst *insts.Instruction) bool {
	if inst == nil {
		return false
	}
	return inst.IsControlFlow()
}

// Config returns the current timing configuration.
func (t *Table) Config() *TimingConfig {
	return t.config
}
