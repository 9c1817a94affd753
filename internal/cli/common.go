package cli

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/wesleyorama2/loadsim/internal/config"
	"github.com/wesleyorama2/loadsim/internal/logging"
	"github.com/wesleyorama2/loadsim/internal/output"
)

// addConfigFlags registers the flags that build the configuration document.
func addConfigFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("config", "c", "", "Configuration file (YAML or JSON)")
	cmd.Flags().StringArray("set", nil, "Override a field, e.g. --set cpu_stress.run=true (repeatable)")
}

// configGiven reports whether the user supplied any configuration input.
func configGiven(cmd *cobra.Command) bool {
	return cmd.Flags().Changed("config") || cmd.Flags().Changed("set")
}

// loadInput reads --config and applies every --set override on top.
func loadInput(cmd *cobra.Command) (map[string]interface{}, error) {
	configFile, _ := cmd.Flags().GetString("config")
	sets, _ := cmd.Flags().GetStringArray("set")

	doc := map[string]interface{}{}
	if configFile != "" {
		var err error
		doc, err = config.LoadDocument(configFile)
		if err != nil {
			return nil, err
		}
	}
	return config.ApplySets(doc, sets)
}

// resolveConfig builds the effective configuration from the flags.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	input, err := loadInput(cmd)
	if err != nil {
		return nil, err
	}
	return config.Resolve(input)
}

// newLogger builds the logger from the persistent flags. Logs go to stderr.
func newLogger(cmd *cobra.Command) (*logrus.Logger, error) {
	level, _ := cmd.Flags().GetString("log-level")
	format, _ := cmd.Flags().GetString("log-format")
	noColor, _ := cmd.Flags().GetBool("no-color")

	log, err := logging.New(logging.Options{
		Level:   level,
		Format:  format,
		Output:  cmd.ErrOrStderr(),
		NoColor: noColor,
	})
	if err != nil {
		return nil, fmt.Errorf("invalid logging flags: %w", err)
	}
	return log, nil
}

// newPrinter builds the result printer writing to stdout.
func newPrinter(cmd *cobra.Command, quiet, showPayload bool) *output.Printer {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	noColor, _ := cmd.Flags().GetBool("no-color")

	format := output.FormatText
	if jsonOutput {
		format = output.FormatJSON
	}
	return output.NewPrinter(output.PrinterConfig{
		Writer:      cmd.OutOrStdout(),
		Format:      format,
		NoColor:     noColor,
		Quiet:       quiet,
		ShowPayload: showPayload,
	})
}
