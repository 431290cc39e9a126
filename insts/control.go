package insts

// Signal is the value of one control line. DontCare lines are not consulted
// by the stage that would otherwise read them.
type Signal int8

// Control line values.
const (
	SignalDontCare Signal = -1
	SignalOff      Signal = 0
	SignalOn       Signal = 1
)

// On reports whether the line is asserted.
func (s Signal) On() bool {
	return s == SignalOn
}

func (s Signal) String() string {
	switch s {
	case SignalOn:
		return "1"
	case SignalOff:
		return "0"
	default:
		return "X"
	}
}

// Control holds the control signals the datapath derives from an operation.
type Control struct {
	RegDst   Signal // 1: destination is rd, 0: destination is rt
	ALUSrc   Signal // 1: second ALU operand is the immediate
	MemToReg Signal // 1: register write value comes from memory
	RegWrite Signal // register file write enable
	MemWrite Signal // data memory write enable
	Branch   Signal // conditional branch
	Jump     Signal // unconditional jump
	ExtOp    Signal // 1: sign-extend the immediate
}

const (
	sigX   = SignalDontCare
	sigOff = SignalOff
	sigOn  = SignalOn
)

// controlTable is indexed by Op. Bubbles and NOP keep every line off.
var controlTable = [...]Control{
	OpUnknown: {},
	OpADD:     {RegDst: sigOn, ALUSrc: sigOff, MemToReg: sigOff, RegWrite: sigOn, ExtOp: sigX},
	OpSUB:     {RegDst: sigOn, ALUSrc: sigOff, MemToReg: sigOff, RegWrite: sigOn, ExtOp: sigX},
	OpMUL:     {RegDst: sigOn, ALUSrc: sigOff, MemToReg: sigOff, RegWrite: sigOn, ExtOp: sigX},
	OpNOP:     {},
	OpADDI:    {RegDst: sigOff, ALUSrc: sigOn, MemToReg: sigOff, RegWrite: sigOn, ExtOp: sigOn},
	OpLW:      {RegDst: sigOff, ALUSrc: sigOn, MemToReg: sigOn, RegWrite: sigOn, ExtOp: sigOn},
	OpSW:      {RegDst: sigX, ALUSrc: sigOn, MemToReg: sigX, MemWrite: sigOn, ExtOp: sigOn},
	OpBEQ:     {RegDst: sigX, ALUSrc: sigOff, MemToReg: sigX, Branch: sigOn, ExtOp: sigOn},
	OpBNE:     {RegDst: sigX, ALUSrc: sigOff, MemToReg: sigX, Branch: sigOn, ExtOp: sigOn},
	OpBLE:     {RegDst: sigX, ALUSrc: sigOff, MemToReg: sigX, Branch: sigOn, ExtOp: sigOn},
	OpJMP:     {RegDst: sigX, ALUSrc: sigX, MemToReg: sigX, Jump: sigOn, ExtOp: sigX},
}

// ControlFor returns the control signals of an operation.
func ControlFor(op Op) Control {
	if int(op) < len(controlTable) {
		return controlTable[op]
	}
	return Control{}
}

// Control returns the control signals of the instruction.
func (i *Instruction) Control() Control {
	return ControlFor(i.Op)
}

// Dest returns the register the instruction writes, or NoReg.
func (i *Instruction) Dest() uint8 {
	c := i.Control()
	if !c.RegWrite.On() {
		return NoReg
	}
	if c.RegDst.On() {
		return i.Rd
	}
	return i.Rt
}

// Sources returns the registers the instruction reads, in operand order.
func (i *Instruction) Sources() []uint8 {
	switch i.Op {
	case OpADD, OpSUB, OpMUL, OpSW, OpBEQ, OpBNE, OpBLE:
		return []uint8{i.Rs, i.Rt}
	case OpADDI, OpLW:
		return []uint8{i.Rs}
	default:
		return nil
	}
}

// IsControlFlow reports whether the instruction may redirect the PC.
func (i *Instruction) IsControlFlow() bool {
	c := i.Control()
	return c.Branch.On() || c.Jump.On()
}
