package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/iurisilvio/mipssim/asm"
)

func newAsmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "asm <source>",
		Short: "Assemble a source file into encoded program lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read source: %w", err)
			}

			lines, err := asm.Assemble(string(source))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, line := range lines {
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
}
