package emu_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/iurisilvio/mipssim/emu"
	"github.com/iurisilvio/mipssim/insts"
)

var _ = Describe("ALU", func() {
	var (
		regFile *emu.RegFile
		alu     *emu.ALU
	)

	BeforeEach(func() {
		regFile = emu.NewRegFile()
		alu = emu.NewALU(regFile)
		regFile.WriteReg(1, 6)
		regFile.WriteReg(2, 7)
	})

	It("should add registers", func() {
		alu.ADD(3, 1, 2)
		Expect(regFile.ReadReg(3)).To(Equal(int32(13)))
	})

	It("should subtract registers", func() {
		alu.SUB(3, 1, 2)
		Expect(regFile.ReadReg(3)).To(Equal(int32(-1)))
	})

	It("should multiply registers", func() {
		alu.MUL(3, 1, 2)
		Expect(regFile.ReadReg(3)).To(Equal(int32(42)))
	})

	It("should add a negative immediate", func() {
		alu.ADDI(3, 1, -10)
		Expect(regFile.ReadReg(3)).To(Equal(int32(-4)))
	})

	It("should wrap on overflow", func() {
		Expect(emu.Compute(insts.OpADD, math.MaxInt32, 1)).To(Equal(int32(math.MinInt32)))
	})

	It("should yield zero for non-arithmetic kinds", func() {
		Expect(emu.Compute(insts.OpBEQ, 1, 2)).To(BeZero())
	})
})

var _ = Describe("BranchUnit", func() {
	var (
		regFile *emu.RegFile
		unit    *emu.BranchUnit
	)

	BeforeEach(func() {
		regFile = emu.NewRegFile()
		unit = emu.NewBranchUnit(regFile)
	})

	It("should resolve beq relative to the next instruction", func() {
		inst := &insts.Instruction{Op: insts.OpBEQ, Rs: 1, Rt: 2, Imm: 4}
		Expect(unit.Resolve(inst, 8)).To(BeTrue())
		Expect(regFile.PC).To(Equal(uint32(16)))
	})

	It("should fall through a not-taken bne", func() {
		inst := &insts.Instruction{Op: insts.OpBNE, Rs: 1, Rt: 2, Imm: 4}
		Expect(unit.Resolve(inst, 8)).To(BeFalse())
		Expect(regFile.PC).To(Equal(uint32(12)))
	})

	It("should treat the ble immediate as an absolute address", func() {
		regFile.WriteReg(6, 3)
		regFile.WriteReg(10, 100)
		inst := &insts.Instruction{Op: insts.OpBLE, Rs: 6, Rt: 10, Imm: 12}
		Expect(unit.Resolve(inst, 40)).To(BeTrue())
		Expect(regFile.PC).To(Equal(uint32(12)))
	})

	It("should always take jumps", func() {
		inst := &insts.Instruction{Op: insts.OpJMP, Target: 24}
		Expect(unit.Resolve(inst, 12)).To(BeTrue())
		Expect(regFile.PC).To(Equal(uint32(24)))
	})

	It("should evaluate ble on signed operands", func() {
		Expect(emu.BranchTaken(insts.OpBLE, -1, 0)).To(BeTrue())
		Expect(emu.BranchTaken(insts.OpBLE, 1, 0)).To(BeFalse())
	})
})

var _ = Describe("LoadStoreUnit", func() {
	It("should store and reload through base plus offset", func() {
		regFile := emu.NewRegFile()
		memory := emu.NewMemory(32)
		lsu := emu.NewLoadStoreUnit(regFile, memory)

		regFile.WriteReg(1, 4)
		regFile.WriteReg(2, 99)
		Expect(lsu.SW(2, 1, 3)).To(Succeed())
		Expect(lsu.LW(5, 0, 7)).To(Succeed())

		Expect(regFile.ReadReg(5)).To(Equal(int32(99)))
		Expect(lsu.LW(5, 1, 100)).To(MatchError(emu.ErrOutOfRange))
	})
})
