package pipeline_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/iurisilvio/mipssim/benchmarks"
	"github.com/iurisilvio/mipssim/emu"
	"github.com/iurisilvio/mipssim/insts"
	"github.com/iurisilvio/mipssim/timing/latency"
	"github.com/iurisilvio/mipssim/timing/pipeline"
)

func newPipeline(source string, opts ...pipeline.PipelineOption) *pipeline.Pipeline {
	opts = append([]pipeline.PipelineOption{pipeline.WithLogger(testLogger)}, opts...)
	return pipeline.NewPipeline(assemble(source), opts...)
}

func runToCompletion(p *pipeline.Pipeline) {
	outcome, err := p.Run(0)
	ExpectWithOffset(1, err).NotTo(HaveOccurred())
	ExpectWithOffset(1, outcome).To(Equal(pipeline.OutcomeCompleted))
}

func independentAddis(n int) string {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&sb, "addi R%d,R0,%d\n", i+1, i)
	}
	return sb.String()
}

// checkReservations asserts that every locked register is reserved by
// exactly one in-flight instruction.
func checkReservations(p *pipeline.Pipeline) {
	owners := map[uint8]int{}
	for _, s := range p.Stages() {
		if inst := s.Inflight(); inst != nil {
			for _, r := range inst.Reserved {
				owners[r]++
			}
		}
	}

	reserved := []uint8{}
	for r, n := range owners {
		ExpectWithOffset(1, n).To(Equal(1), "register R%d reserved twice", r)
		reserved = append(reserved, r)
	}
	ExpectWithOffset(1, p.RegFile().Locked()).To(ConsistOf(reserved))
}

var _ = Describe("Pipeline", func() {
	Describe("throughput", func() {
		for n := 1; n <= 8; n++ {
			It(fmt.Sprintf("should retire %d independent instructions in %d cycles", n, n+4), func() {
				p := newPipeline(independentAddis(n))
				runToCompletion(p)

				stats := p.Stats()
				Expect(stats.Cycles).To(Equal(uint64(n + 4)))
				Expect(stats.Instructions).To(Equal(uint64(n)))
				Expect(stats.Stalls).To(BeZero())
				Expect(p.RegFile().ReadReg(uint8(n))).To(Equal(int32(n - 1)))
			})
		}

		It("should cycle nops through without counting them as completed", func() {
			p := newPipeline("nop\nnop\nnop")
			runToCompletion(p)
			Expect(p.Stats().Instructions).To(BeZero())
			Expect(p.Clock()).To(Equal(uint64(7)))
		})

		It("should complete an empty program without cycling", func() {
			p := pipeline.NewPipeline(nil, pipeline.WithLogger(testLogger))
			runToCompletion(p)
			Expect(p.Clock()).To(BeZero())
			Expect(p.History()).To(BeEmpty())
		})

		It("should report CPI and throughput", func() {
			p := newPipeline(independentAddis(4))
			runToCompletion(p)
			Expect(p.Stats().CPI()).To(BeNumerically("~", 2.0))
			Expect(p.Stats().Throughput()).To(BeNumerically("~", 0.5))
			Expect(pipeline.Statistics{}.CPI()).To(BeZero())
			Expect(pipeline.Statistics{}.Throughput()).To(BeZero())
		})
	})

	Describe("data hazards", func() {
		const readAfterWrite = "addi R1,R0,1\nadd R2,R1,R1"

		It("should wait for write-back without forwarding", func() {
			p := newPipeline(readAfterWrite)
			runToCompletion(p)

			Expect(p.Clock()).To(Equal(uint64(9)))
			Expect(p.Stats().Stalls).To(Equal(uint64(3)))
			Expect(p.Stats().Hazards.DataHazards).To(Equal(uint64(3)))
			Expect(p.RegFile().ReadReg(2)).To(Equal(int32(2)))
		})

		It("should take the value from Execute with forwarding", func() {
			p := newPipeline(readAfterWrite, pipeline.WithForwarding(true))
			runToCompletion(p)

			Expect(p.Clock()).To(Equal(uint64(7)))
			Expect(p.Stats().Stalls).To(Equal(uint64(1)))
			Expect(p.Stats().Hazards.Forwarded).To(Equal(uint64(2)))
			Expect(p.RegFile().ReadReg(2)).To(Equal(int32(2)))
		})

		It("should take a loaded value from Memory with forwarding", func() {
			p := newPipeline("lw R1,0(R0)\nadd R2,R1,R1", pipeline.WithForwarding(true))
			runToCompletion(p)
			Expect(p.Clock()).To(Equal(uint64(8)))
			Expect(p.Stats().Stalls).To(Equal(uint64(2)))

			p = newPipeline("lw R1,0(R0)\nadd R2,R1,R1")
			runToCompletion(p)
			Expect(p.Clock()).To(Equal(uint64(9)))
			Expect(p.Stats().Stalls).To(Equal(uint64(3)))
		})

		It("should hold a second writer of the same register until write-back", func() {
			for _, forwarding := range []bool{false, true} {
				p := newPipeline("addi R1,R0,1\naddi R1,R0,2", pipeline.WithForwarding(forwarding))
				runToCompletion(p)

				Expect(p.Clock()).To(Equal(uint64(9)))
				Expect(p.Stats().Hazards.OutputHazards).To(Equal(uint64(3)))
				Expect(p.RegFile().ReadReg(1)).To(Equal(int32(2)))
			}
		})

		It("should never let two instructions reserve the same register", func() {
			for _, forwarding := range []bool{false, true} {
				p := pipeline.NewPipeline(mustProgram(benchmarks.SumOfSquares()),
					pipeline.WithForwarding(forwarding), pipeline.WithHistory(false))
				for !p.Drained() {
					Expect(p.Step()).To(Succeed())
					checkReservations(p)
				}
				Expect(p.RegFile().Locked()).To(BeEmpty())
			}
		})
	})

	Describe("multi-cycle execute", func() {
		It("should hold mul in Execute for two cycles by default", func() {
			p := newPipeline(benchmarks.MultiplyLatency().Source)
			runToCompletion(p)

			Expect(p.Clock()).To(Equal(uint64(6)))
			Expect(p.Stats().ExecStalls).To(Equal(uint64(1)))

			history := p.History()
			ex := func(clock int) pipeline.StageSummary { return history[clock-1].Pipeline[pipeline.StageExecute] }
			mem := func(clock int) pipeline.StageSummary { return history[clock-1].Pipeline[pipeline.StageMemory] }

			Expect(ex(3).Instruction).To(Equal("I1: mul R3,R1,R2"))
			Expect(ex(3).Done).To(BeFalse())
			Expect(ex(3).CyclesLeft).To(Equal(uint64(1)))
			Expect(ex(4).Instruction).To(Equal("I1: mul R3,R1,R2"))
			Expect(ex(4).Done).To(BeTrue())
			Expect(mem(4).State).To(Equal("bubble"))
			Expect(mem(5).Instruction).To(Equal("I1: mul R3,R1,R2"))
		})

		It("should follow the configured multiply latency", func() {
			cfg := latency.DefaultTimingConfig()
			cfg.MultiplyLatency = 4
			p := newPipeline("mul R3,R1,R2", pipeline.WithLatencyTable(latency.NewTableWithConfig(cfg)))
			runToCompletion(p)

			Expect(p.Clock()).To(Equal(uint64(8)))
			Expect(p.Stats().ExecStalls).To(Equal(uint64(3)))
		})

		It("should stall younger instructions behind a busy Execute", func() {
			p := newPipeline("mul R3,R1,R2\naddi R4,R0,1")
			runToCompletion(p)
			Expect(p.Clock()).To(Equal(uint64(7)))
			Expect(p.RegFile().ReadReg(4)).To(Equal(int32(1)))
		})
	})

	Describe("control flow", func() {
		It("should discard exactly Fetch and Decode on a taken branch", func() {
			p := newPipeline(benchmarks.BranchTaken().Source)
			runToCompletion(p)

			Expect(p.RegFile().ReadReg(1)).To(Equal(int32(5)))
			Expect(p.Stats().Flushes).To(Equal(uint64(2)))

			resolved := false
			for _, snap := range p.History() {
				ex := snap.Pipeline[pipeline.StageExecute]
				if strings.Contains(ex.Instruction, "beq") && ex.Done {
					resolved = true
					Expect(snap.Pipeline[pipeline.StageFetch].State).To(Equal("bubble"))
					Expect(snap.Pipeline[pipeline.StageDecode].State).To(Equal("bubble"))
					Expect(snap.PC).To(Equal(uint32(16)))
				}
				for _, s := range snap.Pipeline[pipeline.StageExecute:] {
					Expect(s.Instruction).NotTo(Equal("I4: jmp 24"))
				}
			}
			Expect(resolved).To(BeTrue())
		})

		It("should discard nothing on a branch that falls through", func() {
			p := newPipeline(benchmarks.BranchNotTaken().Source)
			runToCompletion(p)

			Expect(p.RegFile().ReadReg(1)).To(Equal(int32(7)))
			Expect(p.Stats().Flushes).To(Equal(uint64(1)))

			history := p.History()
			for i, snap := range history {
				ex := snap.Pipeline[pipeline.StageExecute]
				if strings.Contains(ex.Instruction, "beq") && ex.Done {
					Expect(snap.Pipeline[pipeline.StageDecode].Instruction).To(Equal("I4: jmp 24"))
					Expect(history[i+1].Pipeline[pipeline.StageExecute].Instruction).To(Equal("I4: jmp 24"))
				}
			}
		})

		It("should release the reservation of a discarded instruction", func() {
			p := newPipeline("jmp T\naddi R5,R0,1\nnop\nT: nop")
			for i := 0; i < 3; i++ {
				Expect(p.Step()).To(Succeed())
			}

			Expect(p.Stage(pipeline.StageFetch).IsBubble()).To(BeTrue())
			Expect(p.Stage(pipeline.StageDecode).IsBubble()).To(BeTrue())
			Expect(p.RegFile().IsLocked(5)).To(BeFalse())
			Expect(p.PC()).To(Equal(uint32(12)))

			runToCompletion(p)
			Expect(p.RegFile().ReadReg(5)).To(BeZero())
			Expect(p.Stats().Instructions).To(Equal(uint64(1)))
		})

		It("should loop on an absolute ble", func() {
			p := newPipeline(benchmarks.SumOfSquares().Source, pipeline.WithForwarding(true))
			runToCompletion(p)
			Expect(p.Memory().Word(24)).To(Equal(int32(338350)))
			Expect(p.Stats().Flushes).To(Equal(uint64(100)))
		})

		It("should warn when a branch leaves the program", func() {
			var logs bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&logs, nil))
			p := newPipeline("addi R1,R0,1\nbeq R0,R0,-100\naddi R2,R0,5",
				pipeline.WithLogger(logger))
			runToCompletion(p)

			Expect(logs.String()).To(ContainSubstring("redirect outside program"))
			Expect(p.RegFile().ReadReg(1)).To(Equal(int32(1)))
			Expect(p.RegFile().ReadReg(2)).To(BeZero())
			Expect(p.Stats().Flushes).To(Equal(uint64(1)))
		})

		It("should not warn on a jump to the end of the program", func() {
			var logs bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&logs, nil))
			p := newPipeline(benchmarks.BranchTaken().Source, pipeline.WithLogger(logger))
			runToCompletion(p)

			Expect(p.Stats().Flushes).To(Equal(uint64(2)))
			Expect(logs.String()).NotTo(ContainSubstring("redirect outside program"))
		})
	})

	Describe("faults", func() {
		It("should latch a malformed program line", func() {
			p := pipeline.NewPipeline([]string{"0101 ; broken"}, pipeline.WithLogger(testLogger))
			outcome, err := p.Run(0)

			Expect(outcome).To(Equal(pipeline.OutcomeFaulted))
			var fault *pipeline.DecodeFault
			Expect(errors.As(err, &fault)).To(BeTrue())
			Expect(fault.PC).To(BeZero())
			Expect(fault.Line).To(Equal("0101 ; broken"))
			Expect(err).To(MatchError(insts.ErrMalformed))

			Expect(p.Step()).To(MatchError(err))
			Expect(p.Fault()).To(MatchError(err))
			Expect(p.Clock()).To(BeZero())
		})

		It("should report the address of an undecodable line", func() {
			program := append(assemble("addi R1,R0,1"), "11111100000000000000000000000000")
			p := pipeline.NewPipeline(program, pipeline.WithLogger(testLogger))
			outcome, err := p.Run(0)

			Expect(outcome).To(Equal(pipeline.OutcomeFaulted))
			Expect(err).To(MatchError(insts.ErrUnknownOpcode))
			var fault *pipeline.DecodeFault
			Expect(errors.As(err, &fault)).To(BeTrue())
			Expect(fault.PC).To(Equal(uint32(4)))
			Expect(p.Clock()).To(Equal(uint64(1)))
		})

		It("should latch an access outside memory", func() {
			p := newPipeline("sw R0,200(R0)")
			outcome, err := p.Run(0)

			Expect(outcome).To(Equal(pipeline.OutcomeFaulted))
			Expect(err).To(MatchError(emu.ErrOutOfRange))
			var fault *emu.MemoryFault
			Expect(errors.As(err, &fault)).To(BeTrue())
			Expect(fault.Kind).To(Equal(emu.AccessStore))
			Expect(fault.Addr).To(Equal(int32(200)))
			Expect(p.Clock()).To(Equal(uint64(3)))

			again, err2 := p.Run(0)
			Expect(again).To(Equal(pipeline.OutcomeFaulted))
			Expect(err2).To(BeIdenticalTo(err))
		})

		It("should honor a larger memory", func() {
			p := newPipeline("addi R1,R0,9\nsw R1,200(R0)", pipeline.WithMemorySize(256))
			runToCompletion(p)
			Expect(p.Memory().Word(200)).To(Equal(int32(9)))
		})
	})

	Describe("watchdog", func() {
		It("should stop a program that never drains", func() {
			p := newPipeline("top: jmp top")
			outcome, err := p.Run(30)

			Expect(outcome).To(Equal(pipeline.OutcomeTimeout))
			Expect(err).To(MatchError(pipeline.ErrWatchdog))
			Expect(p.Clock()).To(Equal(uint64(30)))
		})

		It("should default to DefaultMaxCycles", func() {
			p := newPipeline("top: jmp top", pipeline.WithHistory(false))
			_, err := p.Run(0)

			Expect(err).To(MatchError(pipeline.ErrWatchdog))
			Expect(p.Clock()).To(Equal(uint64(pipeline.DefaultMaxCycles)))
			Expect(p.History()).To(BeEmpty())
		})
	})

	Describe("snapshots", func() {
		It("should record one snapshot per cycle", func() {
			p := newPipeline(independentAddis(3))
			runToCompletion(p)

			history := p.History()
			Expect(history).To(HaveLen(int(p.Clock())))
			for i, snap := range history {
				Expect(snap.Clock).To(Equal(uint64(i + 1)))
			}
			last := history[len(history)-1]
			Expect(last.InstructionsCompleted).To(Equal(uint64(3)))
			Expect(last.Registers[3]).To(Equal(int32(2)))
		})

		It("should encode to JSON", func() {
			p := newPipeline(benchmarks.SumOfSquares().Source, pipeline.WithForwarding(true))
			runToCompletion(p)

			data, err := json.Marshal(p.Snapshot())
			Expect(err).NotTo(HaveOccurred())

			var decoded map[string]any
			Expect(json.Unmarshal(data, &decoded)).To(Succeed())
			Expect(decoded).To(HaveKey("pipeline"))
			Expect(decoded).To(HaveKey("registers"))
			Expect(decoded).To(HaveKeyWithValue("clock", BeNumerically("==", p.Clock())))
			Expect(decoded).To(HaveKeyWithValue("instructions_completed", BeNumerically("==", p.Stats().Instructions)))

			var snap pipeline.Snapshot
			Expect(json.Unmarshal(data, &snap)).To(Succeed())
			Expect(snap.Memory).To(HaveLen(4))
			Expect(snap.Memory[3]).To(Equal(emu.Access{Kind: emu.AccessStore, Addr: 28, Value: 101}))
			Expect(snap.Pipeline[pipeline.StageWriteBack].Stage).To(Equal("WB"))
		})

		It("should return an independent copy of the history", func() {
			p := newPipeline("nop")
			runToCompletion(p)
			history := p.History()
			history[0].Clock = 99
			Expect(p.History()[0].Clock).To(Equal(uint64(1)))
		})
	})

	Describe("against the functional emulator", func() {
		for _, bench := range benchmarks.GetMicrobenchmarks() {
			It("should reach the same state on "+bench.Name, func() {
				program := mustProgram(bench)

				e := emu.NewEmulator(program, emu.WithLogger(testLogger))
				Expect(e.Run()).To(Succeed())

				var clocks [2]uint64
				for i, forwarding := range []bool{false, true} {
					p := pipeline.NewPipeline(program,
						pipeline.WithForwarding(forwarding), pipeline.WithLogger(testLogger))
					runToCompletion(p)

					Expect(benchmarks.SameState(p.RegFile(), p.Memory(), e.RegFile(), e.Memory())).To(BeTrue())
					Expect(p.Stats().Instructions).To(Equal(e.CompletedCount()))
					clocks[i] = p.Clock()
				}
				Expect(clocks[1]).To(BeNumerically("<=", clocks[0]))
			})
		}
	})
})

func mustProgram(b benchmarks.Benchmark) []string {
	program, err := b.Program()
	ExpectWithOffset(1, err).NotTo(HaveOccurred())
	return program
}
