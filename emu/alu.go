package emu

import "github.com/iurisilvio/mipssim/insts"

// Compute evaluates the ALU operation of an instruction kind on two operands.
// Arithmetic wraps on 32-bit overflow. Non-arithmetic kinds yield 0.
func Compute(op insts.Op, a, b int32) int32 {
	switch op {
	case insts.OpADD, insts.OpADDI:
		return a + b
	case insts.OpSUB:
		return a - b
	case insts.OpMUL:
		return a * b
	default:
		return 0
	}
}

// ALU implements the MIPS integer operations against a register file.
type ALU struct {
	regFile *RegFile
}

// NewALU creates a new ALU connected to the given register file.
func NewALU(regFile *RegFile) *ALU {
	return &ALU{regFile: regFile}
}

// ADD performs rd = rs + rt.
func (a *ALU) ADD(rd, rs, rt uint8) {
	a.rrr(insts.OpADD, rd, rs, rt)
}

// SUB performs rd = rs - rt.
func (a *ALU) SUB(rd, rs, rt uint8) {
	a.rrr(insts.OpSUB, rd, rs, rt)
}

// MUL performs rd = rs * rt, keeping the low 32 bits.
func (a *ALU) MUL(rd, rs, rt uint8) {
	a.rrr(insts.OpMUL, rd, rs, rt)
}

// ADDI performs rt = rs + imm.
func (a *ALU) ADDI(rt, rs uint8, imm int32) {
	op1 := a.regFile.ReadReg(rs)
	a.regFile.WriteReg(rt, Compute(insts.OpADDI, op1, imm))
}

func (a *ALU) rrr(op insts.Op, rd, rs, rt uint8) {
	op1 := a.regFile.ReadReg(rs)
	op2 := a.regFile.ReadReg(rt)
	a.regFile.WriteReg(rd, Compute(op, op1, op2))
}
