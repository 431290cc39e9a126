// Package insts provides MIPS instruction definitions, decoding and encoding.
//
// This package turns the fixed-width textual program format into structured
// instruction representations and back. It supports:
//   - R-class: ADD, SUB, MUL, NOP (opcode 000000, selected by funct)
//   - I-class: ADDI, LW, SW, BEQ, BNE, BLE
//   - J-class: JMP (absolute byte target)
//
// Usage:
//
//	decoder := insts.NewDecoder()
//	inst, err := decoder.Decode("00000000001001110100100000100000 ; I7: add R9,R1,R7")
//	fmt.Printf("Op: %v, Rd: %d, Rs: %d, Rt: %d\n", inst.Op, inst.Rd, inst.Rs, inst.Rt)
package insts
