package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iurisilvio/mipssim/benchmarks"
)

func newBenchCmd(root *rootOptions) *cobra.Command {
	var (
		csvOutput  bool
		jsonOutput bool
		forwarding bool
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run the microbenchmark suite and check results against the emulator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config := benchmarks.DefaultConfig()
			config.Forwarding = forwarding
			config.Output = cmd.OutOrStdout()
			config.Logger = root.logger()
			config.Verbose = root.verbose

			harness := benchmarks.NewHarness(config)
			harness.AddBenchmarks(benchmarks.GetMicrobenchmarks())
			results := harness.RunAll()

			switch {
			case jsonOutput:
				if err := harness.PrintJSON(results); err != nil {
					return err
				}
			case csvOutput:
				harness.PrintCSV(results)
			default:
				harness.PrintResults(results)
			}

			failed := 0
			for _, r := range results {
				if !r.Passed() {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d benchmarks failed", failed, len(results))
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.BoolVar(&csvOutput, "csv", false, "Output results in CSV format")
	f.BoolVar(&jsonOutput, "json", false, "Output results in JSON format")
	f.BoolVar(&forwarding, "forwarding", true, "Enable data forwarding")
	return cmd
}
