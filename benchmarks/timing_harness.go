package benchmarks

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/iurisilvio/mipssim/emu"
	"github.com/iurisilvio/mipssim/timing/latency"
	"github.com/iurisilvio/mipssim/timing/pipeline"
)

// BenchmarkResult holds the timing results for a single benchmark run.
type BenchmarkResult struct {
	// Name identifies the benchmark
	Name string `json:"name"`

	// Description explains what the benchmark measures
	Description string `json:"description"`

	// Forwarding is true if the run published results before write-back
	Forwarding bool `json:"forwarding"`

	// Outcome is how the pipeline run ended
	Outcome pipeline.Outcome `json:"outcome"`

	// SimulatedCycles is the total cycle count from the timing simulator
	SimulatedCycles uint64 `json:"simulated_cycles"`

	// InstructionsRetired is the number of completed instructions
	InstructionsRetired uint64 `json:"instructions_retired"`

	// CPI is cycles per instruction
	CPI float64 `json:"cpi"`

	// Throughput is instructions per cycle
	Throughput float64 `json:"throughput"`

	// StallCycles is the number of decode stall cycles
	StallCycles uint64 `json:"stall_cycles"`

	// ExecStalls is stalls due to multi-cycle execution
	ExecStalls uint64 `json:"exec_stalls"`

	// DataHazards is the number of RAW data hazards detected
	DataHazards uint64 `json:"data_hazards"`

	// PipelineFlushes is the number of pipeline flushes
	PipelineFlushes uint64 `json:"pipeline_flushes"`

	// MatchesEmulator is true if the final registers and memory equal the
	// functional emulator's
	MatchesEmulator bool `json:"matches_emulator"`

	// Error describes a failed run or a failed expectation
	Error string `json:"error,omitempty"`

	// WallTime is the actual time taken to run the simulation
	WallTime time.Duration `json:"wall_time_ns"`
}

// Passed reports whether the run completed with the expected state.
func (r BenchmarkResult) Passed() bool {
	return r.Outcome == pipeline.OutcomeCompleted && r.MatchesEmulator && r.Error == ""
}

// HarnessConfig configures the benchmark harness.
type HarnessConfig struct {
	// Forwarding enables result forwarding in the pipeline
	Forwarding bool

	// Timing overrides the default latency table
	Timing *latency.TimingConfig

	// MaxCycles bounds every run
	MaxCycles uint64

	// MemoryWords sets the data memory size
	MemoryWords int

	// Output is where to write results (default: os.Stdout)
	Output io.Writer

	// Logger receives pipeline diagnostics
	Logger *slog.Logger

	// Verbose enables detailed output
	Verbose bool
}

// DefaultConfig returns a default harness configuration.
func DefaultConfig() HarnessConfig {
	return HarnessConfig{
		Forwarding: true,
		MaxCycles:  pipeline.DefaultMaxCycles,
		Output:     os.Stdout,
	}
}

// PipelineOptions returns the pipeline options the configuration selects.
func (c HarnessConfig) PipelineOptions() []pipeline.PipelineOption {
	opts := []pipeline.PipelineOption{
		pipeline.WithForwarding(c.Forwarding),
		pipeline.WithMemorySize(c.MemoryWords),
		pipeline.WithHistory(false),
	}
	if c.Timing != nil {
		opts = append(opts, pipeline.WithLatencyTable(latency.NewTableWithConfig(c.Timing)))
	}
	if c.Logger != nil {
		opts = append(opts, pipeline.WithLogger(c.Logger))
	}
	return opts
}

// Harness runs timing benchmarks and reports results.
type Harness struct {
	config     HarnessConfig
	benchmarks []Benchmark
}

// NewHarness creates a new benchmark harness.
func NewHarness(config HarnessConfig) *Harness {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	return &Harness{
		config:     config,
		benchmarks: []Benchmark{},
	}
}

// AddBenchmark adds a benchmark to the harness.
func (h *Harness) AddBenchmark(b Benchmark) {
	h.benchmarks = append(h.benchmarks, b)
}

// AddBenchmarks adds multiple benchmarks to the harness.
func (h *Harness) AddBenchmarks(benchmarks []Benchmark) {
	h.benchmarks = append(h.benchmarks, benchmarks...)
}

// RunAll executes all benchmarks and returns results.
func (h *Harness) RunAll() []BenchmarkResult {
	results := make([]BenchmarkResult, 0, len(h.benchmarks))

	for _, bench := range h.benchmarks {
		result := h.runBenchmark(bench)
		if h.config.Verbose {
			_, _ = fmt.Fprintf(h.config.Output, "ran %s: %v in %d cycles\n",
				result.Name, result.Outcome, result.SimulatedCycles)
		}
		results = append(results, result)
	}

	return results
}

// runBenchmark executes a single benchmark.
func (h *Harness) runBenchmark(bench Benchmark) BenchmarkResult {
	result := BenchmarkResult{
		Name:        bench.Name,
		Description: bench.Description,
		Forwarding:  h.config.Forwarding,
	}

	program, err := bench.Program()
	if err != nil {
		result.Outcome = pipeline.OutcomeFaulted
		result.Error = err.Error()
		return result
	}

	pipe := pipeline.NewPipeline(program, h.config.PipelineOptions()...)

	start := time.Now()
	outcome, runErr := pipe.Run(h.config.MaxCycles)
	result.WallTime = time.Since(start)

	stats := pipe.Stats()
	result.Outcome = outcome
	result.SimulatedCycles = stats.Cycles
	result.InstructionsRetired = stats.Instructions
	result.CPI = stats.CPI()
	result.Throughput = stats.Throughput()
	result.StallCycles = stats.Stalls
	result.ExecStalls = stats.ExecStalls
	result.DataHazards = stats.Hazards.DataHazards
	result.PipelineFlushes = stats.Flushes

	if runErr != nil {
		result.Error = runErr.Error()
		return result
	}

	ref := emu.NewEmulator(program, emu.WithMemoryWords(h.config.MemoryWords))
	if err := ref.Run(); err != nil {
		result.Error = fmt.Sprintf("reference emulator: %v", err)
		return result
	}
	result.MatchesEmulator = SameState(pipe.RegFile(), pipe.Memory(), ref.RegFile(), ref.Memory())

	if err := bench.check(pipe.RegFile(), pipe.Memory()); err != nil {
		result.Error = err.Error()
	}
	return result
}

// check verifies the expected final values.
func (b Benchmark) check(regs *emu.RegFile, mem *emu.Memory) error {
	for reg, want := range b.ExpectedRegs {
		if got := regs.ReadReg(reg); got != want {
			return fmt.Errorf("R%d = %d, expected %d", reg, got, want)
		}
	}
	for addr, want := range b.ExpectedMemory {
		got, err := mem.Word(addr)
		if err != nil {
			return err
		}
		if got != want {
			return fmt.Errorf("memory[%d] = %d, expected %d", addr, got, want)
		}
	}
	return nil
}

// SameState reports whether two machines hold equal committed registers
// and memory words.
func SameState(regsA *emu.RegFile, memA *emu.Memory, regsB *emu.RegFile, memB *emu.Memory) bool {
	if regsA.Registers() != regsB.Registers() {
		return false
	}
	a, b := memA.Words(), memB.Words()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// PrintResults outputs benchmark results in a human-readable format.
func (h *Harness) PrintResults(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output, "=== MIPS Pipeline Benchmark Results ===")
	_, _ = fmt.Fprintln(h.config.Output, "")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "Benchmark: %s\n", r.Name)
		_, _ = fmt.Fprintf(h.config.Output, "  Description: %s\n", r.Description)
		_, _ = fmt.Fprintf(h.config.Output, "  Forwarding: %v\n", r.Forwarding)
		_, _ = fmt.Fprintf(h.config.Output, "  Outcome: %v\n", r.Outcome)
		_, _ = fmt.Fprintln(h.config.Output, "  --- Timing ---")
		_, _ = fmt.Fprintf(h.config.Output, "  Simulated Cycles:     %d\n", r.SimulatedCycles)
		_, _ = fmt.Fprintf(h.config.Output, "  Instructions Retired: %d\n", r.InstructionsRetired)
		_, _ = fmt.Fprintf(h.config.Output, "  CPI:                  %.3f\n", r.CPI)
		_, _ = fmt.Fprintf(h.config.Output, "  Throughput:           %.3f\n", r.Throughput)
		_, _ = fmt.Fprintf(h.config.Output, "  Stall Cycles:         %d\n", r.StallCycles)
		_, _ = fmt.Fprintf(h.config.Output, "  Exec Stalls:          %d\n", r.ExecStalls)
		_, _ = fmt.Fprintf(h.config.Output, "  Data Hazards:         %d\n", r.DataHazards)
		_, _ = fmt.Fprintf(h.config.Output, "  Pipeline Flushes:     %d\n", r.PipelineFlushes)
		_, _ = fmt.Fprintf(h.config.Output, "  Matches Emulator:     %v\n", r.MatchesEmulator)
		if r.Error != "" {
			_, _ = fmt.Fprintf(h.config.Output, "  Error: %s\n", r.Error)
		}
		_, _ = fmt.Fprintf(h.config.Output, "  Wall Time: %v\n", r.WallTime)
		_, _ = fmt.Fprintln(h.config.Output, "")
	}
}

// PrintCSV outputs benchmark results in CSV format for easy comparison.
func (h *Harness) PrintCSV(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output,
		"name,forwarding,outcome,cycles,instructions,cpi,throughput,stalls,exec_stalls,data_hazards,flushes,matches_emulator")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "%s,%v,%v,%d,%d,%.3f,%.3f,%d,%d,%d,%d,%v\n",
			r.Name,
			r.Forwarding,
			r.Outcome,
			r.SimulatedCycles,
			r.InstructionsRetired,
			r.CPI,
			r.Throughput,
			r.StallCycles,
			r.ExecStalls,
			r.DataHazards,
			r.PipelineFlushes,
			r.MatchesEmulator,
		)
	}
}

// BenchmarkReport is the complete output format for benchmark results.
type BenchmarkReport struct {
	// Metadata about the benchmark run
	Metadata ReportMetadata `json:"metadata"`

	// Results is the list of individual benchmark results
	Results []BenchmarkResult `json:"results"`

	// Summary contains aggregate statistics
	Summary ReportSummary `json:"summary"`
}

// ReportMetadata contains information about the benchmark run.
type ReportMetadata struct {
	// Timestamp when the benchmark was run
	Timestamp string `json:"timestamp"`

	// Forwarding is the harness forwarding setting
	Forwarding bool `json:"forwarding"`

	// Timing is the latency configuration in effect
	Timing *latency.TimingConfig `json:"timing"`
}

// ReportSummary contains aggregate statistics across all benchmarks.
type ReportSummary struct {
	// TotalBenchmarks is the number of benchmarks run
	TotalBenchmarks int `json:"total_benchmarks"`

	// Passed is the number of benchmarks that completed with the expected state
	Passed int `json:"passed"`

	// TotalCycles is the sum of all simulated cycles
	TotalCycles uint64 `json:"total_cycles"`

	// TotalInstructions is the sum of all instructions retired
	TotalInstructions uint64 `json:"total_instructions"`

	// AverageCPI is the average cycles per instruction
	AverageCPI float64 `json:"average_cpi"`

	// TotalWallTime is the total wall clock time for all benchmarks
	TotalWallTime time.Duration `json:"total_wall_time_ns"`
}

// PrintJSON outputs benchmark results in JSON format for automated comparison.
func (h *Harness) PrintJSON(results []BenchmarkResult) error {
	var totalCycles, totalInstructions uint64
	var totalWallTime time.Duration
	passed := 0
	for _, r := range results {
		totalCycles += r.SimulatedCycles
		totalInstructions += r.InstructionsRetired
		totalWallTime += r.WallTime
		if r.Passed() {
			passed++
		}
	}

	avgCPI := float64(0)
	if totalInstructions > 0 {
		avgCPI = float64(totalCycles) / float64(totalInstructions)
	}

	timing := h.config.Timing
	if timing == nil {
		timing = latency.DefaultTimingConfig()
	}

	report := BenchmarkReport{
		Metadata: ReportMetadata{
			Timestamp:  time.Now().UTC().Format(time.RFC3339),
			Forwarding: h.config.Forwarding,
			Timing:     timing,
		},
		Results: results,
		Summary: ReportSummary{
			TotalBenchmarks:   len(results),
			Passed:            passed,
			TotalCycles:       totalCycles,
			TotalInstructions: totalInstructions,
			AverageCPI:        avgCPI,
			TotalWallTime:     totalWallTime,
		},
	}

	encoder := json.NewEncoder(h.config.Output)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}
