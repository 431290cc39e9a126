package insts

import (
	"fmt"
	"math"
)

const (
	maxReg    = 31
	maxTarget = 1<<26 - 1
)

// Encode returns the 32-character binary form of an instruction.
// Opcode and funct are derived from Op; the remaining fields are taken as is.
func Encode(inst *Instruction) (string, error) {
	word, err := EncodeWord(inst)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%032b", word), nil
}

// EncodeLine returns a full program line, "<bytecode> ; <text>".
func EncodeLine(inst *Instruction, text string) (string, error) {
	bytecode, err := Encode(inst)
	if err != nil {
		return "", err
	}
	if text == "" {
		return bytecode, nil
	}
	return bytecode + " ; " + text, nil
}

// EncodeWord packs an instruction into a 32-bit word.
func EncodeWord(inst *Instruction) (uint32, error) {
	switch inst.Op {
	case OpADD, OpSUB, OpMUL:
		if err := checkRegs(inst.Rs, inst.Rt, inst.Rd); err != nil {
			return 0, err
		}
		return encodeR(inst.Rs, inst.Rt, inst.Rd, inst.Shamt, functFor(inst.Op)), nil

	case OpNOP:
		return 0, nil

	case OpADDI, OpLW, OpSW, OpBEQ, OpBNE, OpBLE:
		if err := checkRegs(inst.Rs, inst.Rt); err != nil {
			return 0, err
		}
		if inst.Imm < math.MinInt16 || inst.Imm > math.MaxInt16 {
			return 0, fmt.Errorf("%w: immediate %d out of 16-bit range", ErrNotEncodable, inst.Imm)
		}
		word := uint32(opcodeFor(inst.Op)) << 26
		word |= uint32(inst.Rs) << 21
		word |= uint32(inst.Rt) << 16
		word |= uint32(uint16(int16(inst.Imm)))
		return word, nil

	case OpJMP:
		if inst.Target > maxTarget {
			return 0, fmt.Errorf("%w: target %d out of 26-bit range", ErrNotEncodable, inst.Target)
		}
		return uint32(OpcodeJMP)<<26 | inst.Target, nil

	default:
		return 0, fmt.Errorf("%w: op %v", ErrNotEncodable, inst.Op)
	}
}

func encodeR(rs, rt, rd, shamt, funct uint8) uint32 {
	return uint32(rs)<<21 | uint32(rt)<<16 | uint32(rd)<<11 |
		uint32(shamt&0x1F)<<6 | uint32(funct)
}

func checkRegs(regs ...uint8) error {
	for _, r := range regs {
		if r > maxReg {
			return fmt.Errorf("%w: register %d", ErrNotEncodable, r)
		}
	}
	return nil
}

func opcodeFor(op Op) uint8 {
	switch op {
	case OpADDI:
		return OpcodeADDI
	case OpBEQ:
		return OpcodeBEQ
	case OpBLE:
		return OpcodeBLE
	case OpBNE:
		return OpcodeBNE
	case OpJMP:
		return OpcodeJMP
	case OpLW:
		return OpcodeLW
	case OpSW:
		return OpcodeSW
	default:
		return OpcodeSpecial
	}
}

func functFor(op Op) uint8 {
	switch op {
	case OpADD:
		return FunctADD
	case OpSUB:
		return FunctSUB
	case OpMUL:
		return FunctMUL
	default:
		return FunctNOP
	}
}

// Disassemble renders the instruction in assembler syntax.
func (i *Instruction) Disassemble() string {
	switch i.Op {
	case OpADD, OpSUB, OpMUL:
		return fmt.Sprintf("%v R%d,R%d,R%d", i.Op, i.Rd, i.Rs, i.Rt)
	case OpADDI:
		return fmt.Sprintf("%v R%d,R%d,%d", i.Op, i.Rt, i.Rs, i.Imm)
	case OpLW, OpSW:
		return fmt.Sprintf("%v R%d,%d(R%d)", i.Op, i.Rt, i.Imm, i.Rs)
	case OpBEQ, OpBNE, OpBLE:
		return fmt.Sprintf("%v R%d,R%d,%d", i.Op, i.Rs, i.Rt, i.Imm)
	case OpJMP:
		return fmt.Sprintf("%v %d", i.Op, i.Target)
	case OpNOP:
		return "nop"
	default:
		return "unknown"
	}
}

// String returns the comment text of the instruction, or its disassembly
// when the program line carried none.
func (i *Instruction) String() string {
	if i.Text != "" {
		return i.Text
	}
	return i.Disassemble()
}
