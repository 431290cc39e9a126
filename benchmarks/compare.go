package benchmarks

import (
	"fmt"

	"github.com/iurisilvio/mipssim/timing/pipeline"
)

// RunSummary is the end state of one comparison run.
type RunSummary struct {
	Clocks     uint64  `json:"clocks"`
	Throughput float64 `json:"throughput"`
}

// Comparison holds the same program run without and with forwarding.
type Comparison struct {
	Slower RunSummary `json:"slower_mips"`
	Faster RunSummary `json:"faster_mips"`
}

// Speedup returns the clock ratio of the slower run to the faster one.
func (c Comparison) Speedup() float64 {
	if c.Faster.Clocks == 0 {
		return 0
	}
	return float64(c.Slower.Clocks) / float64(c.Faster.Clocks)
}

// CompareForwarding runs program with forwarding off, then on. The
// configuration's own Forwarding setting is ignored.
func CompareForwarding(program []string, config HarnessConfig) (Comparison, error) {
	var c Comparison

	for _, forwarding := range []bool{false, true} {
		config.Forwarding = forwarding
		pipe := pipeline.NewPipeline(program, config.PipelineOptions()...)
		if _, err := pipe.Run(config.MaxCycles); err != nil {
			return Comparison{}, fmt.Errorf("failed to run with forwarding=%v: %w", forwarding, err)
		}

		summary := RunSummary{Clocks: pipe.Clock(), Throughput: pipe.Stats().Throughput()}
		if forwarding {
			c.Faster = summary
		} else {
			c.Slower = summary
		}
	}

	return c, nil
}
