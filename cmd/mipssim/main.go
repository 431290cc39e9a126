// Command mipssim runs MIPS programs on a cycle-accurate 5-stage pipeline.
//
// Usage:
//
//	mipssim run [flags] <program>
//	mipssim compare <program>
//	mipssim asm <source.s>
//	mipssim bench [--csv|--json]
//	mipssim serve [--addr :8080]
//
// Programs are files of encoded lines ("<32 bits> ; text") or assembly
// source (.s, .asm).
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	Version = "dev"
	Commit  = "none"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	verbose bool
}

func (o *rootOptions) logger() *slog.Logger {
	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:          "mipssim",
		Short:        "Cycle-accurate 5-stage MIPS pipeline simulator",
		Version:      Version + " (" + Commit + ")",
		SilenceUsage: true,
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output")

	rootCmd.AddCommand(
		newRunCmd(opts),
		newCompareCmd(opts),
		newAsmCmd(),
		newBenchCmd(opts),
		newServeCmd(opts),
	)
	return rootCmd
}
