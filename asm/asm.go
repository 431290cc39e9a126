// Package asm provides an assembler that turns MIPS assembly text into
// encoded program lines.
//
// Each statement is one of
//
//	add|sub|mul Rd,Rs,Rt
//	addi Rt,Rs,imm
//	lw|sw Rt,imm(Rs)
//	beq|bne|ble Rs,Rt,label
//	jmp label
//	nop
//
// A label is declared as "name:" either on its own line or before a
// statement. Branch and jump operands may be a label or a number. Text after
// '#' is a comment.
//
// beq and bne encode the distance from the next instruction; ble and jmp
// encode the absolute address of the label.
package asm

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/iurisilvio/mipssim/insts"
)

// Assembly errors.
var (
	ErrSyntax          = errors.New("syntax error")
	ErrUnknownMnemonic = errors.New("unknown mnemonic")
	ErrUnknownLabel    = errors.New("unknown label")
	ErrDuplicateLabel  = errors.New("duplicate label")
	ErrRegister        = errors.New("invalid register")
)

// Error reports a problem on one source line.
type Error struct {
	Line int
	Text string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("line %d: %v: %q", e.Line, e.Err, e.Text)
}

func (e *Error) Unwrap() error {
	return e.Err
}

var (
	reLabel  = regexp.MustCompile(`^([A-Za-z_]\w*)\s*:\s*(.*)$`)
	reRRR    = regexp.MustCompile(`(?i)^R(\d+)\s*,\s*R(\d+)\s*,\s*R(\d+)$`)
	reRRI    = regexp.MustCompile(`(?i)^R(\d+)\s*,\s*R(\d+)\s*,\s*(-?\d+)$`)
	reRRL    = regexp.MustCompile(`(?i)^R(\d+)\s*,\s*R(\d+)\s*,\s*(-?\w+)$`)
	reMem    = regexp.MustCompile(`(?i)^R(\d+)\s*,\s*(-?\d+)\s*\(\s*R(\d+)\s*\)$`)
	reTarget = regexp.MustCompile(`^(\w+)$`)
)

type statement struct {
	line     int
	text     string
	op       insts.Op
	operands string
	addr     uint32
}

// Assembler converts assembly source into program lines.
type Assembler struct {
	labels     map[string]uint32
	statements []statement
}

// NewAssembler creates an empty assembler.
func NewAssembler() *Assembler {
	return &Assembler{labels: make(map[string]uint32)}
}

// Assemble assembles a whole source text.
func Assemble(source string) ([]string, error) {
	return NewAssembler().Assemble(source)
}

// Assemble assembles a whole source text. Output lines have the form
// "<32 bits> ; I<n>: <instruction>".
func (a *Assembler) Assemble(source string) ([]string, error) {
	a.labels = make(map[string]uint32)
	a.statements = nil

	if err := a.parse(source); err != nil {
		return nil, err
	}

	lines := make([]string, 0, len(a.statements))
	for n, st := range a.statements {
		inst, err := a.encode(st)
		if err != nil {
			return nil, &Error{Line: st.line, Text: st.text, Err: err}
		}
		line, err := insts.EncodeLine(inst, fmt.Sprintf("I%d: %s", n+1, inst.Disassemble()))
		if err != nil {
			return nil, &Error{Line: st.line, Text: st.text, Err: err}
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// Labels returns the label addresses of the last assembled source.
func (a *Assembler) Labels() map[string]uint32 {
	out := make(map[string]uint32, len(a.labels))
	for k, v := range a.labels {
		out[k] = v
	}
	return out
}

// parse collects labels and statements, assigning addresses.
func (a *Assembler) parse(source string) error {
	var addr uint32
	for i, raw := range strings.Split(source, "\n") {
		text, _, _ := strings.Cut(raw, "#")
		text = strings.TrimSpace(text)

		for {
			m := reLabel.FindStringSubmatch(text)
			if m == nil {
				break
			}
			if _, ok := a.labels[m[1]]; ok {
				return &Error{Line: i + 1, Text: raw, Err: ErrDuplicateLabel}
			}
			a.labels[m[1]] = addr
			text = m[2]
		}

		if text == "" {
			continue
		}

		mnemonic, operands := text, ""
		if sp := strings.IndexFunc(text, unicode.IsSpace); sp >= 0 {
			mnemonic, operands = text[:sp], text[sp:]
		}
		op, ok := insts.OpFromMnemonic(mnemonic)
		if !ok {
			return &Error{Line: i + 1, Text: raw, Err: ErrUnknownMnemonic}
		}

		a.statements = append(a.statements, statement{
			line:     i + 1,
			text:     strings.TrimSpace(raw),
			op:       op,
			operands: strings.TrimSpace(operands),
			addr:     addr,
		})
		addr += 4
	}
	return nil
}

// encode builds the instruction of one statement.
func (a *Assembler) encode(st statement) (*insts.Instruction, error) {
	inst := &insts.Instruction{Op: st.op, Rd: insts.NoReg}

	switch st.op {
	case insts.OpADD, insts.OpSUB, insts.OpMUL:
		m := reRRR.FindStringSubmatch(st.operands)
		if m == nil {
			return nil, ErrSyntax
		}
		return inst, parseRegs(m[1:], &inst.Rd, &inst.Rs, &inst.Rt)

	case insts.OpADDI:
		m := reRRI.FindStringSubmatch(st.operands)
		if m == nil {
			return nil, ErrSyntax
		}
		if err := parseRegs(m[1:3], &inst.Rt, &inst.Rs); err != nil {
			return nil, err
		}
		return inst, parseImm(m[3], &inst.Imm)

	case insts.OpLW, insts.OpSW:
		m := reMem.FindStringSubmatch(st.operands)
		if m == nil {
			return nil, ErrSyntax
		}
		if err := parseRegs([]string{m[1], m[3]}, &inst.Rt, &inst.Rs); err != nil {
			return nil, err
		}
		return inst, parseImm(m[2], &inst.Imm)

	case insts.OpBEQ, insts.OpBNE, insts.OpBLE:
		m := reRRL.FindStringSubmatch(st.operands)
		if m == nil {
			return nil, ErrSyntax
		}
		if err := parseRegs(m[1:3], &inst.Rs, &inst.Rt); err != nil {
			return nil, err
		}
		if target, ok := a.labels[m[3]]; ok {
			inst.Imm = int32(target)
			if st.op != insts.OpBLE {
				inst.Imm = int32(target) - int32(st.addr) - 4
			}
			if inst.Imm < math.MinInt16 || inst.Imm > math.MaxInt16 {
				return nil, fmt.Errorf("%w: label %s out of range", ErrSyntax, m[3])
			}
			return inst, nil
		}
		return inst, parseImm(m[3], &inst.Imm)

	case insts.OpJMP:
		m := reTarget.FindStringSubmatch(st.operands)
		if m == nil {
			return nil, ErrSyntax
		}
		if target, ok := a.labels[m[1]]; ok {
			inst.Target = target
			return inst, nil
		}
		n, err := strconv.ParseUint(m[1], 10, 26)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrUnknownLabel, m[1])
		}
		inst.Target = uint32(n)
		return inst, nil

	case insts.OpNOP:
		if st.operands != "" {
			return nil, ErrSyntax
		}
		return inst, nil

	default:
		return nil, ErrUnknownMnemonic
	}
}

func parseRegs(fields []string, regs ...*uint8) error {
	for i, f := range fields {
		n, err := strconv.ParseUint(f, 10, 8)
		if err != nil || n > 31 {
			return fmt.Errorf("%w: R%s", ErrRegister, f)
		}
		*regs[i] = uint8(n)
	}
	return nil
}

func parseImm(field string, imm *int32) error {
	n, err := strconv.ParseInt(field, 10, 16)
	if err == nil {
		*imm = int32(n)
		return nil
	}
	if _, convErr := strconv.Atoi(field); convErr != nil {
		return fmt.Errorf("%w: %s", ErrUnknownLabel, field)
	}
	return fmt.Errorf("%w: immediate %s out of range", ErrSyntax, field)
}
