package main

import (
	"github.com/spf13/cobra"

	"github.com/wyfcoding/lpsolver/app"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and gRPC solver servers",
		Long: `Serve starts POST /v1/solve over HTTP and lpsolver.v1.Solver/Solve over gRPC,
with health, readiness and Prometheus metrics endpoints. The config file is watched
and log level, solver options and rate limits are applied without a restart.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := app.NewBuilder(*configPath).WithVersion(version).Build()
			if err != nil {
				return err
			}
			return a.Run(cmd.Context())
		},
	}
}
