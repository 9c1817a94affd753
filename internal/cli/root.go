package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

// reportedError marks an error whose details were already printed.
type reportedError struct {
	error
}

func (e reportedError) Unwrap() error {
	return e.error
}

// NewRootCmd creates the root command with every subcommand attached.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "loadsim",
		Short:   "A synthetic load generator for CPU, memory, disk and bandwidth",
		Version: version,
		Long: `Loadsim simulates the resource footprint of a service call. Each load runs
the enabled CPU, memory and disk stress units concurrently, then answers
with a random payload whose size follows an exponential distribution.

Run a single load with the defaults:
  loadsim run

Enable units with overrides:
  loadsim run --set cpu_stress.run=true --set cpu_stress.range_complexity=[50,200]

Repeat loads and report percentiles:
  loadsim bench --count 200 --concurrency 8 --rate 50

Serve loads over HTTP:
  loadsim serve --addr :8080`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// If no subcommand is provided, print help
			return cmd.Help()
		},
	}

	pf := root.PersistentFlags()
	pf.String("log-level", "info", "Log level (trace, debug, info, warn, error)")
	pf.String("log-format", "text", "Log format (text, json)")
	pf.Bool("no-color", false, "Disable colored output")

	root.AddCommand(newRunCmd())
	root.AddCommand(newBenchCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newConfigCmd())

	return root
}

// Execute runs the root command until it finishes or the process receives
// SIGINT or SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return execute(ctx, NewRootCmd())
}

func execute(ctx context.Context, root *cobra.Command) error {
	err := root.ExecuteContext(ctx)
	if err != nil {
		var reported reportedError
		if !errors.As(err, &reported) {
			fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
		}
	}
	return err
}
