// Package insts provides MIPS instruction definitions and decoding.
package insts

import (
	"strconv"
	"strings"
)

// Op represents a MIPS operation.
type Op uint8

// MIPS operations supported by the simulator.
const (
	OpUnknown Op = iota
	OpADD
	OpADDI
	OpBEQ
	OpBLE
	OpBNE
	OpJMP
	OpLW
	OpMUL
	OpNOP
	OpSUB
	OpSW
)

var opNames = [...]string{
	OpUnknown: "unknown",
	OpADD:     "add",
	OpADDI:    "addi",
	OpBEQ:     "beq",
	OpBLE:     "ble",
	OpBNE:     "bne",
	OpJMP:     "jmp",
	OpLW:      "lw",
	OpMUL:     "mul",
	OpNOP:     "nop",
	OpSUB:     "sub",
	OpSW:      "sw",
}

// String returns the assembler mnemonic of the operation.
func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return "unknown"
}

// OpFromMnemonic looks up an operation by its assembler mnemonic.
func OpFromMnemonic(mnemonic string) (Op, bool) {
	m := strings.ToLower(mnemonic)
	for op, name := range opNames {
		if Op(op) != OpUnknown && name == m {
			return Op(op), true
		}
	}
	return OpUnknown, false
}

// Format represents an instruction encoding class.
type Format uint8

// Instruction formats.
const (
	FormatUnknown Format = iota
	FormatR              // opcode | rs | rt | rd | shamt | funct
	FormatI              // opcode | rs | rt | immediate
	FormatJ              // opcode | target
)

// Primary opcodes (bits [31:26]).
const (
	OpcodeSpecial uint8 = 0b000000
	OpcodeJMP     uint8 = 0b000010
	OpcodeBNE     uint8 = 0b000100
	OpcodeBEQ     uint8 = 0b000101
	OpcodeBLE     uint8 = 0b000111
	OpcodeADDI    uint8 = 0b001000
	OpcodeLW      uint8 = 0b100011
	OpcodeSW      uint8 = 0b101011
)

// R-class function codes (bits [5:0]).
const (
	FunctNOP uint8 = 0b000000
	FunctMUL uint8 = 0b011000
	FunctADD uint8 = 0b100000
	FunctSUB uint8 = 0b100010
)

// WordBits is the width of an encoded instruction.
const WordBits = 32

// NoReg marks an absent register operand.
const NoReg uint8 = 0xFF

// Instruction represents a decoded MIPS instruction.
type Instruction struct {
	Op     Op     // Operation
	Format Format // Encoding class

	Opcode uint8 // bits [31:26]
	Funct  uint8 // bits [5:0], R-class only

	Rs    uint8 // First source register
	Rt    uint8 // Second source register, or destination for I-class
	Rd    uint8 // Destination register, R-class only
	Shamt uint8 // Shift amount, unused by the supported operations

	// Imm is the sign-extended 16-bit immediate of I-class instructions.
	Imm int32

	// Target is the absolute byte address of J-class instructions.
	Target uint32

	// Bytecode is the 32-character binary form the instruction was decoded from.
	Bytecode string

	// Text is the human-readable comment that followed the bytecode.
	Text string
}

// Decoder decodes textual program lines into instructions.
type Decoder struct{}

// NewDecoder creates a new MIPS instruction decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// SplitLine separates a program line into its bytecode and comment text.
func SplitLine(line string) (bytecode, text string) {
	bytecode, text, _ = strings.Cut(line, ";")
	return strings.TrimSpace(bytecode), strings.TrimSpace(text)
}

// Decode decodes a program line of the form "<32 bits> ; <text>".
// The comment part is optional.
func (d *Decoder) Decode(line string) (*Instruction, error) {
	bytecode, text := SplitLine(line)

	word, err := ParseWord(bytecode)
	if err != nil {
		return nil, &DecodeError{Line: line, Err: err}
	}

	inst, err := d.DecodeWord(word)
	if err != nil {
		return nil, &DecodeError{Line: line, Err: err}
	}

	inst.Bytecode = bytecode
	inst.Text = text
	return inst, nil
}

// ParseWord converts a 32-character binary string into an instruction word.
func ParseWord(bytecode string) (uint32, error) {
	if len(bytecode) != WordBits {
		return 0, ErrMalformed
	}
	for _, c := range bytecode {
		if c != '0' && c != '1' {
			return 0, ErrMalformed
		}
	}

	word, err := strconv.ParseUint(bytecode, 2, WordBits)
	if err != nil {
		return 0, ErrMalformed
	}
	return uint32(word), nil
}

// DecodeWord decodes a 32-bit instruction word.
func (d *Decoder) DecodeWord(word uint32) (*Instruction, error) {
	inst := &Instruction{Op: OpUnknown, Format: FormatUnknown, Rd: NoReg}
	inst.Opcode = uint8(word >> 26) // bits [31:26]

	switch inst.Opcode {
	case OpcodeSpecial:
		return inst, d.decodeR(word, inst)
	case OpcodeJMP:
		d.decodeJ(word, inst)
		return inst, nil
	case OpcodeADDI, OpcodeBEQ, OpcodeBLE, OpcodeBNE, OpcodeLW, OpcodeSW:
		d.decodeI(word, inst)
		return inst, nil
	default:
		return nil, ErrUnknownOpcode
	}
}

// decodeR decodes register-format instructions.
// Format: 000000 | rs | rt | rd | shamt | funct
func (d *Decoder) decodeR(word uint32, inst *Instruction) error {
	inst.Format = FormatR
	inst.Rs = uint8((word >> 21) & 0x1F)   // bits [25:21]
	inst.Rt = uint8((word >> 16) & 0x1F)   // bits [20:16]
	inst.Rd = uint8((word >> 11) & 0x1F)   // bits [15:11]
	inst.Shamt = uint8((word >> 6) & 0x1F) // bits [10:6]
	inst.Funct = uint8(word & 0x3F)        // bits [5:0]

	switch inst.Funct {
	case FunctADD:
		inst.Op = OpADD
	case FunctSUB:
		inst.Op = OpSUB
	case FunctMUL:
		inst.Op = OpMUL
	case FunctNOP:
		inst.Op = OpNOP
	default:
		return ErrUnknownFunct
	}
	return nil
}

// decodeI decodes immediate-format instructions.
// Format: opcode | rs | rt | imm16
func (d *Decoder) decodeI(word uint32, inst *Instruction) {
	inst.Format = FormatI
	inst.Rs = uint8((word >> 21) & 0x1F)
	inst.Rt = uint8((word >> 16) & 0x1F)
	inst.Imm = int32(int16(word & 0xFFFF)) // two's complement

	switch inst.Opcode {
	case OpcodeADDI:
		inst.Op = OpADDI
	case OpcodeBEQ:
		inst.Op = OpBEQ
	case OpcodeBLE:
		inst.Op = OpBLE
	case OpcodeBNE:
		inst.Op = OpBNE
	case OpcodeLW:
		inst.Op = OpLW
	case OpcodeSW:
		inst.Op = OpSW
	}
}

// decodeJ decodes jump-format instructions.
// Format: 000010 | target26
func (d *Decoder) decodeJ(word uint32, inst *Instruction) {
	inst.Format = FormatJ
	inst.Op = OpJMP
	inst.Target = word & 0x3FFFFFF // absolute, not word-shifted
}
