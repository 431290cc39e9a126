// Package benchmarks provides canonical programs and a harness that times
// them on the pipeline and checks them against the functional emulator.
package benchmarks

import (
	"fmt"
	"strings"

	"github.com/iurisilvio/mipssim/asm"
)

// Benchmark defines a single benchmark program.
type Benchmark struct {
	// Name identifies the benchmark
	Name string

	// Description explains what the benchmark measures
	Description string

	// Source is the assembly text of the program
	Source string

	// ExpectedRegs and ExpectedMemory hold final values the run must produce
	ExpectedRegs   map[uint8]int32
	ExpectedMemory map[int32]int32
}

// Program assembles the benchmark into encoded program lines.
func (b Benchmark) Program() ([]string, error) {
	return asm.Assemble(b.Source)
}

// GetMicrobenchmarks returns the standard set of microbenchmarks.
// Each benchmark targets a specific pipeline behaviour.
func GetMicrobenchmarks() []Benchmark {
	return []Benchmark{
		SumOfSquares(),
		BranchNotTaken(),
		BranchTaken(),
		MultiplyLatency(),
		arithmeticSequential(),
		dependencyChain(),
		loadUse(),
		countdownLoop(),
		fibonacci(),
		nopPadding(),
	}
}

// GetCoreBenchmarks returns a minimal set for quick validation: a loop, a
// taken branch and a multi-cycle operation.
func GetCoreBenchmarks() []Benchmark {
	return []Benchmark{
		SumOfSquares(),
		BranchTaken(),
		MultiplyLatency(),
	}
}

// Lookup returns the microbenchmark with the given name.
func Lookup(name string) (Benchmark, bool) {
	for _, b := range GetMicrobenchmarks() {
		if b.Name == name {
			return b, true
		}
	}
	return Benchmark{}, false
}

// SumOfSquares stores 0² + 1² + ... + 100² at word 24.
func SumOfSquares() Benchmark {
	return Benchmark{
		Name:        "sum_of_squares",
		Description: "loop with mul, loads, stores and an absolute ble",
		Source: `
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
`,
		ExpectedRegs:   map[uint8]int32{6: 101, 10: 100},
		ExpectedMemory: map[int32]int32{24: 338350, 28: 101},
	}
}

func branchProgram(first int32) string {
	return fmt.Sprintf(`
	addi R1,R0,%d
	addi R2,R0,2
	beq R1,R2,X
	jmp Y
X:	addi R1,R0,5
	jmp Z
Y:	addi R1,R0,7
Z:
`, first)
}

// BranchNotTaken falls through a beq and takes the following jump.
func BranchNotTaken() Benchmark {
	return Benchmark{
		Name:         "branch_not_taken",
		Description:  "beq falls through, jmp flushes",
		Source:       branchProgram(3),
		ExpectedRegs: map[uint8]int32{1: 7, 2: 2},
	}
}

// BranchTaken takes a beq over a jump.
func BranchTaken() Benchmark {
	return Benchmark{
		Name:         "branch_taken",
		Description:  "beq taken, then jmp past the end",
		Source:       branchProgram(2),
		ExpectedRegs: map[uint8]int32{1: 5, 2: 2},
	}
}

// MultiplyLatency is a lone mul holding Execute for two cycles.
func MultiplyLatency() Benchmark {
	return Benchmark{
		Name:         "multiply_latency",
		Description:  "single mul - measures multi-cycle execute",
		Source:       "mul R3,R1,R2\n",
		ExpectedRegs: map[uint8]int32{3: 0},
	}
}

func arithmeticSequential() Benchmark {
	return Benchmark{
		Name:        "arithmetic_sequential",
		Description: "8 independent addi - measures ALU throughput",
		Source: `
	addi R1,R0,1
	addi R2,R0,2
	addi R3,R0,3
	addi R4,R0,4
	addi R5,R0,5
	addi R6,R0,6
	addi R7,R0,7
	addi R8,R0,8
`,
		ExpectedRegs: map[uint8]int32{1: 1, 4: 4, 8: 8},
	}
}

func dependencyChain() Benchmark {
	var src strings.Builder
	for r := 1; r <= 10; r++ {
		fmt.Fprintf(&src, "addi R%d,R%d,1\n", r+1, r)
	}
	return Benchmark{
		Name:         "dependency_chain",
		Description:  "10 addi each reading the previous result - measures forwarding",
		Source:       src.String(),
		ExpectedRegs: map[uint8]int32{2: 1, 11: 10},
	}
}

func loadUse() Benchmark {
	return Benchmark{
		Name:        "load_use",
		Description: "store, reload and immediately use the loaded word",
		Source: `
	addi R1,R0,42
	sw R1,0(R0)
	lw R2,0(R0)
	add R3,R2,R2
	sw R3,1(R0)
`,
		ExpectedRegs:   map[uint8]int32{2: 42, 3: 84},
		ExpectedMemory: map[int32]int32{0: 42, 1: 84},
	}
}

func countdownLoop() Benchmark {
	return Benchmark{
		Name:        "countdown_loop",
		Description: "bne loop summing 10..1 - measures backward relative branches",
		Source: `
	addi R1,R0,10
	addi R2,R0,0
loop:
	add R2,R2,R1
	addi R1,R1,-1
	bne R1,R0,loop
	sw R2,0(R0)
`,
		ExpectedRegs:   map[uint8]int32{1: 0, 2: 55},
		ExpectedMemory: map[int32]int32{0: 55},
	}
}

func fibonacci() Benchmark {
	return Benchmark{
		Name:        "fibonacci",
		Description: "10 fibonacci iterations with a register rotation",
		Source: `
	addi R1,R0,0
	addi R2,R0,1
	addi R3,R0,10
	addi R4,R0,1
loop:
	add R5,R1,R2
	add R1,R0,R2
	add R2,R0,R5
	addi R4,R4,1
	ble R4,R3,loop
	sw R1,10(R0)
`,
		ExpectedRegs:   map[uint8]int32{1: 55, 2: 89},
		ExpectedMemory: map[int32]int32{10: 55},
	}
}

func nopPadding() Benchmark {
	return Benchmark{
		Name:        "nop_padding",
		Description: "program nops separating a producer from its consumer",
		Source: `
	addi R1,R0,1
	nop
	nop
	add R2,R1,R1
`,
		ExpectedRegs: map[uint8]int32{2: 2},
	}
}
