package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wyfcoding/lpsolver/health"
	"github.com/wyfcoding/lpsolver/rpc"
)

func newHealthCmd() *cobra.Command {
	var (
		grpcAddr string
		httpURL  string
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Probe a running server and exit non-zero when it is not ready",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			registry := health.NewRegistry(timeout)
			if grpcAddr != "" {
				registry.Register("grpc", health.GRPCChecker(grpcAddr, rpc.ServiceName))
			}
			if httpURL != "" {
				registry.Register("http", health.HTTPChecker(httpURL))
			}
			if len(registry.Names()) == 0 {
				return errors.New("nothing to probe: pass --grpc and/or --http")
			}

			report := registry.Check(cmd.Context())
			for _, name := range registry.Names() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", name, report.Checks[name])
			}
			if !report.Healthy() {
				return errors.New("not ready")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&grpcAddr, "grpc", "", "gRPC address to probe with grpc.health.v1")
	cmd.Flags().StringVar(&httpURL, "http", "", "HTTP URL to probe, e.g. http://127.0.0.1:8080/readyz")
	cmd.Flags().DurationVar(&timeout, "timeout", health.DefaultTimeout, "timeout per probe")
	return cmd
}
