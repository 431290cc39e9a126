package asm_test

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/iurisilvio/mipssim/asm"
	"github.com/iurisilvio/mipssim/insts"
)

const sumOfSquares = `
addi R10,R0,100
sw R0,24(R0)
sw R0,28(R0)
loop:
lw R6,28(R0)
mul R7,R6,R6
lw R1,24(R0)
add R9,R1,R7
sw R9,24(R0)
addi R6,R6,1
sw R6,28(R0)
ble R6,R10,loop
`

var _ = Describe("Assembler", func() {
	It("should reproduce the encoded sum of squares program", func() {
		lines, err := asm.Assemble(sumOfSquares)
		Expect(err).NotTo(HaveOccurred())
		Expect(lines).To(Equal([]string{
			"00100000000010100000000001100100 ; I1: addi R10,R0,100",
			"10101100000000000000000000011000 ; I2: sw R0,24(R0)",
			"10101100000000000000000000011100 ; I3: sw R0,28(R0)",
			"10001100000001100000000000011100 ; I4: lw R6,28(R0)",
			"00000000110001100011100000011000 ; I5: mul R7,R6,R6",
			"10001100000000010000000000011000 ; I6: lw R1,24(R0)",
			"00000000001001110100100000100000 ; I7: add R9,R1,R7",
			"10101100000010010000000000011000 ; I8: sw R9,24(R0)",
			"00100000110001100000000000000001 ; I9: addi R6,R6,1",
			"10101100000001100000000000011100 ; I10: sw R6,28(R0)",
			"00011100110010100000000000001100 ; I11: ble R6,R10,12",
		}))
	})

	It("should encode beq relative to the next instruction", func() {
		a := asm.NewAssembler()
		lines, err := a.Assemble(`
			addi R1,R0,2
			addi R2,R0,2
			beq R1,R2,X
			jmp Y
		X:	addi R1,R0,5
			jmp Z
		Y:	addi R1,R0,7
		Z:
		`)
		Expect(err).NotTo(HaveOccurred())
		Expect(lines).To(HaveLen(7))
		Expect(a.Labels()).To(Equal(map[string]uint32{"X": 16, "Y": 24, "Z": 28}))

		beq, err := insts.NewDecoder().Decode(lines[2])
		Expect(err).NotTo(HaveOccurred())
		Expect(beq.Op).To(Equal(insts.OpBEQ))
		Expect(beq.Imm).To(Equal(int32(4)))

		jmp, err := insts.NewDecoder().Decode(lines[5])
		Expect(err).NotTo(HaveOccurred())
		Expect(jmp.Target).To(Equal(uint32(28)))
		Expect(jmp.Text).To(Equal("I6: jmp 28"))
	})

	It("should encode a backward bne with a negative immediate", func() {
		lines, err := asm.Assemble("top: nop\nbne R1,R2,top")
		Expect(err).NotTo(HaveOccurred())

		bne, err := insts.NewDecoder().Decode(lines[1])
		Expect(err).NotTo(HaveOccurred())
		Expect(bne.Imm).To(Equal(int32(-8)))
	})

	It("should accept numeric targets, comments and mixed case", func() {
		lines, err := asm.Assemble("NOP # idle\nJMP 0\nbeq r1,r2,-4")
		Expect(err).NotTo(HaveOccurred())
		Expect(lines).To(Equal([]string{
			"00000000000000000000000000000000 ; I1: nop",
			"00001000000000000000000000000000 ; I2: jmp 0",
			"00010100001000101111111111111100 ; I3: beq R1,R2,-4",
		}))
	})

	It("should accept whitespace around operands", func() {
		lines, err := asm.Assemble("lw\tR6, 28 ( R0 )\nadd R1, R2, R3")
		Expect(err).NotTo(HaveOccurred())
		Expect(lines[0]).To(HavePrefix("10001100000001100000000000011100"))
		Expect(lines[1]).To(HaveSuffix("add R1,R2,R3"))
	})

	It("should reject unknown mnemonics", func() {
		_, err := asm.Assemble("addi R1,R0,1\nfoo R1")
		Expect(err).To(MatchError(asm.ErrUnknownMnemonic))

		var asmErr *asm.Error
		Expect(err).To(BeAssignableToTypeOf(asmErr))
		Expect(err.(*asm.Error).Line).To(Equal(2))
	})

	It("should reject unknown labels", func() {
		_, err := asm.Assemble("jmp nowhere")
		Expect(err).To(MatchError(asm.ErrUnknownLabel))

		_, err = asm.Assemble("beq R1,R2,nowhere")
		Expect(err).To(MatchError(asm.ErrUnknownLabel))
	})

	It("should reject duplicate labels", func() {
		_, err := asm.Assemble("a: nop\na: nop")
		Expect(err).To(MatchError(asm.ErrDuplicateLabel))
	})

	It("should reject bad registers and operands", func() {
		_, err := asm.Assemble("add R1,R2,R32")
		Expect(err).To(MatchError(asm.ErrRegister))

		_, err = asm.Assemble("addi R1,R2")
		Expect(err).To(MatchError(asm.ErrSyntax))

		_, err = asm.Assemble("addi R1,R2,40000")
		Expect(err).To(MatchError(asm.ErrSyntax))

		_, err = asm.Assemble("nop R1")
		Expect(err).To(MatchError(asm.ErrSyntax))
	})

	It("should reject label targets outside the 16-bit immediate", func() {
		padding := strings.Repeat("\tnop\n", 8200)

		_, err := asm.Assemble("beq R0,R0,far\n" + padding + "far: nop")
		Expect(err).To(MatchError(asm.ErrSyntax))
		Expect(err.(*asm.Error).Line).To(Equal(1))

		_, err = asm.Assemble("back: nop\n" + padding + "bne R1,R0,back")
		Expect(err).To(MatchError(asm.ErrSyntax))

		_, err = asm.Assemble("ble R1,R2,far\n" + padding + "far: nop")
		Expect(err).To(MatchError(asm.ErrSyntax))

		lines, err := asm.Assemble("beq R0,R0,near\n" + strings.Repeat("\tnop\n", 100) + "near: nop")
		Expect(err).NotTo(HaveOccurred())
		Expect(lines).To(HaveLen(102))
	})

	It("should produce nothing for an empty source", func() {
		lines, err := asm.Assemble("\n# only a comment\n")
		Expect(err).NotTo(HaveOccurred())
		Expect(lines).To(BeEmpty())
	})
})
