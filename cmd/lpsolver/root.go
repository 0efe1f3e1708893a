package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "lpsolver",
		Short:         "Bounded-variable simplex LP solver",
		Long:          "lpsolver solves linear programs given as JSON and can serve the solver over HTTP and gRPC.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a TOML config file (LPSOLVER_* env vars override it)")

	root.AddCommand(
		newSolveCmd(&configPath),
		newServeCmd(&configPath),
		newHealthCmd(),
		newVersionCmd(),
	)
	return root
}
