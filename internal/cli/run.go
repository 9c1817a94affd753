package cli

import (
	"github.com/spf13/cobra"

	"github.com/wesleyorama2/loadsim/internal/loader"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a single load",
		Long: `Run one load: the enabled stress units run concurrently, then the random
payload is generated. Without flags every unit is disabled and only the
payload is produced.

Examples:
  loadsim run
  loadsim run --config load.yaml --print-payload
  loadsim run --set disk_stress.run=true --set disk_stress.disk_write_block_count=64 --json`,
		Args: cobra.NoArgs,
		RunE: runLoad,
	}

	addConfigFlags(cmd)
	cmd.Flags().Bool("json", false, "Output the result as JSON")
	cmd.Flags().BoolP("quiet", "q", false, "Do not print the per-unit report")
	cmd.Flags().Bool("print-payload", false, "Print the generated payload")
	cmd.Flags().String("temp-dir", "", "Directory for the disk unit's temporary file (default: working directory)")

	return cmd
}

// runLoad runs one load and prints the result.
func runLoad(cmd *cobra.Command, args []string) error {
	quiet, _ := cmd.Flags().GetBool("quiet")
	printPayload, _ := cmd.Flags().GetBool("print-payload")
	tempDir, _ := cmd.Flags().GetString("temp-dir")

	log, err := newLogger(cmd)
	if err != nil {
		return err
	}

	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	l := loader.New(cfg, loader.WithLogger(log), loader.WithTempDir(tempDir))
	result, runErr := l.Load(cmd.Context())

	printer := newPrinter(cmd, quiet, printPayload)
	if err := printer.PrintResult(result, runErr); err != nil {
		return err
	}
	if runErr != nil {
		return reportedError{runErr}
	}
	return nil
}
