package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the configuration a load would run with: the defaults, merged with
--config and every --set override, validated.

Examples:
  loadsim config
  loadsim config --config load.yaml --format json`,
		Args: cobra.NoArgs,
		RunE: runConfig,
	}

	addConfigFlags(cmd)
	cmd.Flags().StringP("format", "f", "yaml", "Output format (yaml, json)")

	return cmd
}

// runConfig prints the resolved configuration.
func runConfig(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")

	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	var data []byte
	switch strings.ToLower(format) {
	case "yaml", "yml":
		data, err = cfg.YAML()
	case "json":
		data, err = json.MarshalIndent(cfg, "", "  ")
		data = append(data, '\n')
	default:
		return fmt.Errorf("unsupported format %q (must be yaml or json)", format)
	}
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}

	_, err = cmd.OutOrStdout().Write(data)
	return err
}
