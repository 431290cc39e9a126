package pipeline

import (
	"github.com/iurisilvio/mipssim/emu"
	"github.com/iurisilvio/mipssim/insts"
)

// BranchResolver receives the redirect of a taken branch or jump while the
// instruction is still in Execute.
type BranchResolver interface {
	Redirect(target uint32)
}

// Inflight is the per-run state of one instruction travelling through the
// pipeline. Exactly one stage holds it at any time.
type Inflight struct {
	// Inst is the decoded instruction.
	Inst *insts.Instruction

	// PC is the address the instruction was fetched from.
	PC uint32

	// Operand values captured in Decode.
	RsValue int32
	RtValue int32

	// ALUResult is the arithmetic result of add, addi, sub and mul.
	ALUResult int32

	// Address is the word address of lw and sw.
	Address int32

	// LoadData is the word read by lw.
	LoadData int32

	// CyclesLeft is the remaining Execute occupancy.
	CyclesLeft uint64

	// Reserved lists the registers locked by this instruction.
	Reserved []uint8

	// Taken and Target record the resolved control flow.
	Taken  bool
	Target uint32
}

// NewInflight wraps a decoded instruction fetched at pc that needs
// execCycles cycles in Execute.
func NewInflight(inst *insts.Instruction, pc uint32, execCycles uint64) *Inflight {
	if execCycles == 0 {
		execCycles = 1
	}
	return &Inflight{
		Inst:       inst,
		PC:         pc,
		CyclesLeft: execCycles,
	}
}

// Decode reads the source operands and reserves the destination. It returns
// false, leaving every register untouched, when a source has no readable
// value or the destination is already reserved.
func (i *Inflight) Decode(h *HazardUnit, regs *emu.RegFile) bool {
	if !h.CanIssue(i.Inst, regs) {
		return false
	}

	switch i.Inst.Op {
	case insts.OpADD, insts.OpSUB, insts.OpMUL, insts.OpSW,
		insts.OpBEQ, insts.OpBNE, insts.OpBLE:
		i.RsValue = h.Read(regs, i.Inst.Rs)
		i.RtValue = h.Read(regs, i.Inst.Rt)
	case insts.OpADDI, insts.OpLW:
		i.RsValue = h.Read(regs, i.Inst.Rs)
	case insts.OpJMP, insts.OpNOP:
	}

	if dest := i.Inst.Dest(); dest != insts.NoReg {
		regs.Lock(dest)
		i.Reserved = append(i.Reserved, dest)
	}
	return true
}

// Execute consumes one cycle of Execute occupancy and reports whether the
// instruction has finished. On the finishing cycle it computes the ALU
// result, the memory address or the branch outcome. A taken branch or jump
// is redirected through r before Execute returns.
func (i *Inflight) Execute(h *HazardUnit, regs *emu.RegFile, r BranchResolver) bool {
	if i.CyclesLeft > 1 {
		i.CyclesLeft--
		return false
	}
	i.CyclesLeft = 0

	switch op := i.Inst.Op; op {
	case insts.OpADD, insts.OpSUB, insts.OpMUL, insts.OpADDI:
		operand := i.RtValue
		if i.Inst.Control().ALUSrc.On() {
			operand = i.Inst.Imm
		}
		i.ALUResult = emu.Compute(op, i.RsValue, operand)
		h.Publish(regs, i.Inst.Dest(), i.ALUResult)

	case insts.OpLW, insts.OpSW:
		i.Address = emu.EffectiveAddress(i.RsValue, i.Inst.Imm)

	case insts.OpBEQ, insts.OpBNE, insts.OpBLE, insts.OpJMP:
		i.Taken = emu.BranchTaken(op, i.RsValue, i.RtValue)
		if i.Taken {
			i.Target = emu.BranchTarget(i.Inst, i.PC)
			r.Redirect(i.Target)
		}

	case insts.OpNOP:
	}
	return true
}

// MemoryAccess performs the data memory access of loads and stores.
// Loaded values are published for forwarding as soon as they exist.
func (i *Inflight) MemoryAccess(h *HazardUnit, regs *emu.RegFile, mem *emu.Memory) (bool, error) {
	c := i.Inst.Control()

	switch {
	case c.MemToReg.On():
		value, err := mem.Read(i.Address)
		if err != nil {
			return false, err
		}
		i.LoadData = value
		h.Publish(regs, i.Inst.Dest(), value)

	case c.MemWrite.On():
		if err := mem.Write(i.Address, i.RtValue); err != nil {
			return false, err
		}
	}
	return true, nil
}

// WriteBack releases every reservation and commits the result of
// register-writing instructions.
func (i *Inflight) WriteBack(regs *emu.RegFile) bool {
	i.Release(regs)

	c := i.Inst.Control()
	if !c.RegWrite.On() {
		return true
	}

	value := i.ALUResult
	if c.MemToReg.On() {
		value = i.LoadData
	}
	regs.Write(i.Inst.Dest(), value)
	return true
}

// Release unlocks the registers reserved by the instruction.
func (i *Inflight) Release(regs *emu.RegFile) {
	for _, reg := range i.Reserved {
		regs.Unlock(reg)
	}
	i.Reserved = nil
}

func (i *Inflight) String() string {
	return i.Inst.String()
}
