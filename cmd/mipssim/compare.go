package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iurisilvio/mipssim/benchmarks"
	"github.com/iurisilvio/mipssim/loader"
)

func newCompareCmd(root *rootOptions) *cobra.Command {
	var maxCycles uint64

	cmd := &cobra.Command{
		Use:   "compare <program>",
		Short: "Run a program without and with forwarding",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prog, err := loader.Load(args[0])
			if err != nil {
				return fmt.Errorf("failed to load program: %w", err)
			}

			config := benchmarks.DefaultConfig()
			config.Logger = root.logger()
			if maxCycles > 0 {
				config.MaxCycles = maxCycles
			}

			cmp, err := benchmarks.CompareForwarding(prog.Lines, config)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-16s %8s %10s\n", "mode", "clocks", "throughput")
			fmt.Fprintf(out, "%-16s %8d %10.3f\n", "no forwarding", cmp.Slower.Clocks, cmp.Slower.Throughput)
			fmt.Fprintf(out, "%-16s %8d %10.3f\n", "forwarding", cmp.Faster.Clocks, cmp.Faster.Throughput)
			fmt.Fprintf(out, "Speedup: %.2fx\n", cmp.Speedup())
			return nil
		},
	}
	cmd.Flags().Uint64Var(&maxCycles, "max-cycles", 0, "Watchdog cycle limit (default 10000)")
	return cmd
}
