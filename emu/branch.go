package emu

import "github.com/iurisilvio/mipssim/insts"

// BranchTaken evaluates the condition of a control-flow kind on the
// operands read from rs and rt. Jumps are always taken.
func BranchTaken(op insts.Op, rs, rt int32) bool {
	switch op {
	case insts.OpBEQ:
		return rs == rt
	case insts.OpBNE:
		return rs != rt
	case insts.OpBLE:
		return rs <= rt
	case insts.OpJMP:
		return true
	default:
		return false
	}
}

// BranchTarget returns the byte address a control-flow instruction fetched
// at pc transfers to. beq and bne are relative to the next instruction;
// ble and jmp carry an absolute address.
func BranchTarget(inst *insts.Instruction, pc uint32) uint32 {
	switch inst.Op {
	case insts.OpBEQ, insts.OpBNE:
		return uint32(int32(pc) + inst.Imm + 4)
	case insts.OpBLE:
		return uint32(inst.Imm)
	case insts.OpJMP:
		return inst.Target
	default:
		return pc + 4
	}
}

// BranchUnit implements the MIPS control-flow operations.
type BranchUnit struct {
	regFile *RegFile
}

// NewBranchUnit creates a new BranchUnit connected to the given register file.
func NewBranchUnit(regFile *RegFile) *BranchUnit {
	return &BranchUnit{regFile: regFile}
}

// Resolve sets PC for the instruction fetched at pc: the branch target when
// taken, the next sequential address otherwise. It reports whether the
// branch was taken.
func (b *BranchUnit) Resolve(inst *insts.Instruction, pc uint32) bool {
	rs := b.regFile.ReadReg(inst.Rs)
	rt := b.regFile.ReadReg(inst.Rt)
	if BranchTaken(inst.Op, rs, rt) {
		b.regFile.PC = BranchTarget(inst, pc)
		return true
	}
	b.regFile.PC = pc + 4
	return false
}
