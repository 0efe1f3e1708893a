package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/wyfcoding/lpsolver/codec"
	"github.com/wyfcoding/lpsolver/config"
	"github.com/wyfcoding/lpsolver/logging"
	"github.com/wyfcoding/lpsolver/retry"
	"github.com/wyfcoding/lpsolver/rpc"
	"github.com/wyfcoding/lpsolver/solver"
)

type solveFlags struct {
	remote  string
	retries int
	timeout time.Duration
	indent  bool
}

func newSolveCmd(configPath *string) *cobra.Command {
	var flags solveFlags

	cmd := &cobra.Command{
		Use:   "solve [file|-]",
		Short: "Solve a JSON problem and print the outcome",
		Long: `Solve reads a problem from the given file, or from standard input when the
argument is "-" or omitted, and prints the outcome as {"type": ..., "value": ...}.
Modelled failures (infeasible, unbounded, bad_format) are printed like successes;
only internal solver defects make the command fail.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if flags.timeout > 0 {
				var cancel func()
				ctx, cancel = context.WithTimeout(ctx, flags.timeout)
				defer cancel()
			}

			var out codec.Outcome
			if flags.remote != "" {
				client, err := rpc.Dial(flags.remote)
				if err != nil {
					return err
				}
				defer client.Close()
				policy := retry.DefaultConfig()
				policy.MaxRetries = flags.retries
				client.WithRetry(policy)
				out, err = client.Solve(ctx, data)
				if err != nil {
					return err
				}
			} else {
				svc, err := localService(*configPath, cmd.ErrOrStderr())
				if err != nil {
					return err
				}
				out, err = svc.SolveRequest(ctx, data)
				if err != nil {
					return err
				}
			}

			return writeOutcome(cmd.OutOrStdout(), out, flags.indent)
		},
	}

	cmd.Flags().StringVar(&flags.remote, "remote", "", "solve through a running gRPC server at this address")
	cmd.Flags().IntVar(&flags.retries, "retries", 3, "retry a remote solve this many times when the server is unavailable or rate limited")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", 0, "give up after this duration (0 means no limit)")
	cmd.Flags().BoolVar(&flags.indent, "indent", false, "indent the printed outcome")
	return cmd
}

func readInput(stdin io.Reader, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("read problem: %w", err)
	}
	return data, nil
}

// localService 按配置构建进程内求解服务，不启用缓存，日志写到 stderr。
func localService(configPath string, stderr io.Writer) (*solver.Service, error) {
	var cfg config.Config
	if err := config.Load(configPath, &cfg); err != nil {
		return nil, err
	}
	logging.SetLevel(cfg.Log.Level)
	logger := logging.NewWithWriter(stderr, cfg.Server.Name, "cli")
	return solver.New(
		solver.WithLogger(logger),
		solver.WithSlowThreshold(cfg.Log.SlowThreshold),
		solver.WithConfig(cfg.Solver),
	), nil
}

func writeOutcome(w io.Writer, out codec.Outcome, indent bool) error {
	enc := json.NewEncoder(w)
	if indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(out)
}
