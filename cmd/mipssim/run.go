package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/sarchlab/akita/v4/sim"
	"github.com/spf13/cobra"

	"github.com/iurisilvio/mipssim/emu"
	"github.com/iurisilvio/mipssim/loader"
	"github.com/iurisilvio/mipssim/timing/core"
	"github.com/iurisilvio/mipssim/timing/latency"
	"github.com/iurisilvio/mipssim/timing/pipeline"
)

type runOptions struct {
	*rootOptions
	forwarding  bool
	maxCycles   uint64
	memoryWords int
	configPath  string
	historyPath string
	engine      bool
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{rootOptions: root}

	cmd := &cobra.Command{
		Use:   "run <program>",
		Short: "Run a program on the pipeline and print the final state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProgram(cmd.OutOrStdout(), args[0], opts)
		},
	}

	f := cmd.Flags()
	f.BoolVar(&opts.forwarding, "forwarding", false, "Enable data forwarding")
	f.Uint64Var(&opts.maxCycles, "max-cycles", pipeline.DefaultMaxCycles, "Watchdog cycle limit")
	f.IntVar(&opts.memoryWords, "memory-words", emu.DefaultMemoryWords, "Data memory size in words")
	f.StringVar(&opts.configPath, "config", "", "Path to timing configuration JSON file")
	f.StringVar(&opts.historyPath, "history", "", "Write per-cycle snapshots to this JSON file")
	f.BoolVar(&opts.engine, "engine", false, "Drive the pipeline from the event engine")
	return cmd
}

func (o *runOptions) pipelineOptions() ([]pipeline.PipelineOption, error) {
	timingConfig := latency.DefaultTimingConfig()
	if o.configPath != "" {
		var err error
		timingConfig, err = latency.LoadConfig(o.configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load timing config: %w", err)
		}
	}

	return []pipeline.PipelineOption{
		pipeline.WithForwarding(o.forwarding),
		pipeline.WithMemorySize(o.memoryWords),
		pipeline.WithLatencyTable(latency.NewTableWithConfig(timingConfig)),
		pipeline.WithLogger(o.logger()),
		pipeline.WithHistory(o.historyPath != ""),
	}, nil
}

func runProgram(out io.Writer, path string, opts *runOptions) error {
	prog, err := loader.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load program: %w", err)
	}

	pipeOpts, err := opts.pipelineOptions()
	if err != nil {
		return err
	}

	var (
		pipe    *pipeline.Pipeline
		outcome pipeline.Outcome
		runErr  error
	)
	if opts.engine {
		c := core.NewCore("Core", sim.NewSerialEngine(), prog.Lines,
			core.WithLogger(opts.logger()),
			core.WithMaxCycles(opts.maxCycles),
			core.WithPipelineOptions(pipeOpts...))
		outcome, runErr = c.Run()
		pipe = c.Pipeline
		if opts.verbose {
			fmt.Fprintf(out, "Simulated time: %.9fs\n", float64(c.Stats().SimTime))
		}
	} else {
		pipe = pipeline.NewPipeline(prog.Lines, pipeOpts...)
		outcome, runErr = pipe.Run(opts.maxCycles)
	}

	printReport(out, path, pipe, outcome)

	if opts.historyPath != "" {
		if err := writeHistory(opts.historyPath, pipe.History()); err != nil {
			return err
		}
	}

	if runErr != nil {
		return fmt.Errorf("run %s: %w", outcome, runErr)
	}
	return nil
}

func printReport(out io.Writer, path string, pipe *pipeline.Pipeline, outcome pipeline.Outcome) {
	stats := pipe.Stats()

	fmt.Fprintf(out, "Program: %s\n", path)
	fmt.Fprintf(out, "Outcome: %s\n", outcome)
	fmt.Fprintf(out, "Forwarding: %v\n", pipe.Forwarding())
	fmt.Fprintf(out, "\n")

	fmt.Fprintf(out, "Registers:\n")
	regs := pipe.RegFile().Registers()
	for i, v := range regs {
		if v != 0 {
			fmt.Fprintf(out, "  R%-2d = %d\n", i, v)
		}
	}
	fmt.Fprintf(out, "  PC  = %d\n", pipe.PC())

	fmt.Fprintf(out, "\nMemory accesses (last 4):\n")
	for _, a := range pipe.Memory().Tail(4) {
		fmt.Fprintf(out, "  %-2s [%d] = %d\n", a.Kind, a.Addr, a.Value)
	}

	fmt.Fprintf(out, "\n")
	fmt.Fprintf(out, "Total Instructions: %d\n", stats.Instructions)
	fmt.Fprintf(out, "Total Cycles: %d\n", stats.Cycles)
	fmt.Fprintf(out, "CPI: %.2f\n", stats.CPI())
	fmt.Fprintf(out, "Throughput: %.3f\n", stats.Throughput())
	fmt.Fprintf(out, "\n")
	fmt.Fprintf(out, "Pipeline Events:\n")
	fmt.Fprintf(out, "  Stalls:      %d\n", stats.Stalls)
	fmt.Fprintf(out, "  Exec stalls: %d\n", stats.ExecStalls)
	fmt.Fprintf(out, "  Flushes:     %d\n", stats.Flushes)
	fmt.Fprintf(out, "  Forwarded:   %d\n", stats.Hazards.Forwarded)
}

func writeHistory(path string, history []pipeline.Snapshot) error {
	data, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}
	return nil
}
