package core_test

import (
	"io"
	"log/slog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/iurisilvio/mipssim/asm"
	"github.com/iurisilvio/mipssim/benchmarks"
	"github.com/iurisilvio/mipssim/emu"
	"github.com/iurisilvio/mipssim/timing/core"
	"github.com/iurisilvio/mipssim/timing/pipeline"
)

func assemble(source string) []string {
	lines, err := asm.Assemble(source)
	ExpectWithOffset(1, err).NotTo(HaveOccurred())
	return lines
}

var _ = Describe("Core", func() {
	var (
		engine *sim.SerialEngine
		logger *slog.Logger
	)

	BeforeEach(func() {
		engine = sim.NewSerialEngine()
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	})

	newCore := func(source string, opts ...core.Option) *core.Core {
		opts = append([]core.Option{core.WithLogger(logger)}, opts...)
		return core.NewCore("Core", engine, assemble(source), opts...)
	}

	It("should create a core with pipeline", func() {
		c := newCore("nop")
		Expect(c.Pipeline).NotTo(BeNil())
		Expect(c.Name()).To(Equal("Core"))
		Expect(c.Halted()).To(BeFalse())
	})

	It("should execute instructions through tick", func() {
		c := newCore("addi R1,R0,42")
		for i := 0; i < 10; i++ {
			c.Tick()
		}

		Expect(c.Pipeline.RegFile().ReadReg(1)).To(Equal(int32(42)))
		Expect(c.Stats().Cycles).To(Equal(uint64(5)))
		Expect(c.Halted()).To(BeTrue())
	})

	It("should run on the engine until the program drains", func() {
		c := newCore(benchmarks.SumOfSquares().Source,
			core.WithPipelineOptions(pipeline.WithForwarding(true), pipeline.WithHistory(false)))

		outcome, err := c.Run()
		Expect(err).NotTo(HaveOccurred())
		Expect(outcome).To(Equal(pipeline.OutcomeCompleted))
		Expect(c.Pipeline.Memory().Word(24)).To(Equal(int32(338350)))

		direct := pipeline.NewPipeline(assemble(benchmarks.SumOfSquares().Source),
			pipeline.WithForwarding(true), pipeline.WithHistory(false),
			pipeline.WithLogger(logger))
		_, err = direct.Run(0)
		Expect(err).NotTo(HaveOccurred())

		stats := c.Stats()
		Expect(stats.Cycles).To(Equal(direct.Clock()))
		Expect(stats.Instructions).To(Equal(direct.Stats().Instructions))
		Expect(stats.Flushes).To(Equal(uint64(100)))
		Expect(float64(stats.SimTime)).To(BeNumerically(">", 0))
	})

	It("should advance engine time with the clock", func() {
		fast := newCore("nop\nnop\nnop")
		_, err := fast.Run()
		Expect(err).NotTo(HaveOccurred())
		fastTime := fast.Stats().SimTime

		engine = sim.NewSerialEngine()
		slow := newCore("nop\nnop\nnop", core.WithFrequency(1*sim.MHz))
		_, err = slow.Run()
		Expect(err).NotTo(HaveOccurred())

		Expect(slow.Stats().Cycles).To(Equal(fast.Stats().Cycles))
		Expect(slow.Stats().SimTime).To(BeNumerically(">", fastTime))
	})

	It("should notify observers once per cycle", func() {
		var clocks []uint64
		c := newCore("addi R1,R0,1\nadd R2,R1,R1",
			core.WithObserver(func(s pipeline.Snapshot) { clocks = append(clocks, s.Clock) }))

		_, err := c.Run()
		Expect(err).NotTo(HaveOccurred())
		Expect(clocks).To(HaveLen(int(c.Stats().Cycles)))
		Expect(clocks[0]).To(Equal(uint64(1)))
	})

	It("should stop at the watchdog limit", func() {
		c := newCore("top: jmp top", core.WithMaxCycles(25))

		outcome, err := c.Run()
		Expect(outcome).To(Equal(pipeline.OutcomeTimeout))
		Expect(err).To(MatchError(pipeline.ErrWatchdog))
		Expect(c.Stats().Cycles).To(Equal(uint64(25)))
	})

	It("should report a fault", func() {
		c := newCore("lw R1,500(R0)")

		outcome, err := c.Run()
		Expect(outcome).To(Equal(pipeline.OutcomeFaulted))
		Expect(err).To(MatchError(emu.ErrOutOfRange))

		again, err2 := c.Run()
		Expect(again).To(Equal(pipeline.OutcomeFaulted))
		Expect(err2).To(MatchError(emu.ErrOutOfRange))
	})

	It("should run for specified cycles and return running status", func() {
		c := newCore(benchmarks.SumOfSquares().Source)
		running := c.RunCycles(5)

		Expect(running).To(BeTrue())
		Expect(c.Halted()).To(BeFalse())
		Expect(c.Stats().Cycles).To(Equal(uint64(5)))
	})

	It("should stop running cycles when halted", func() {
		c := newCore("nop")
		running := c.RunCycles(100)

		Expect(running).To(BeFalse())
		Expect(c.Halted()).To(BeTrue())
		outcome, err := c.Outcome()
		Expect(err).NotTo(HaveOccurred())
		Expect(outcome).To(Equal(pipeline.OutcomeCompleted))
	})

	It("should reset core state", func() {
		c := newCore("addi R1,R0,1\nnop\nnop")
		c.RunCycles(100)
		Expect(c.Stats().Cycles).To(BeNumerically(">", 0))

		c.Reset()

		stats := c.Stats()
		Expect(stats.Cycles).To(Equal(uint64(0)))
		Expect(stats.Instructions).To(Equal(uint64(0)))
		Expect(c.Pipeline.RegFile().ReadReg(1)).To(BeZero())
		Expect(c.Halted()).To(BeFalse())
	})
})
