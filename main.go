// Package main provides the entry point for mipssim.
// mipssim is a cycle-accurate 5-stage MIPS pipeline simulator built on Akita.
//
// For the full CLI, use: go run ./cmd/mipssim
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("mipssim - 5-stage MIPS pipeline simulator")
	fmt.Println("Built on Akita simulation framework")
	fmt.Println("")
	fmt.Println("Usage: mipssim <command> [flags]")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  run      Run a program and print the final state")
	fmt.Println("  compare  Compare clocks without and with forwarding")
	fmt.Println("  asm      Assemble source into encoded program lines")
	fmt.Println("  bench    Run the microbenchmark suite")
	fmt.Println("  serve    Serve the HTTP and WebSocket API")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/mipssim' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/mipssim' instead.")
	}
}
