package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iurisilvio/mipssim/benchmarks"
	"github.com/iurisilvio/mipssim/server"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var (
		addr      string
		maxCycles uint64
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP and WebSocket API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := root.logger()

			config := benchmarks.DefaultConfig()
			config.Logger = logger
			if maxCycles > 0 {
				config.MaxCycles = maxCycles
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := server.New(server.WithConfig(config), server.WithLogger(logger))
			return srv.ListenAndServe(ctx, addr)
		},
	}

	f := cmd.Flags()
	f.StringVar(&addr, "addr", ":8080", "Listen address")
	f.Uint64Var(&maxCycles, "max-cycles", 0, "Watchdog cycle limit per request (default 10000)")
	return cmd
}
