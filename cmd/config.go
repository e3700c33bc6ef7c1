package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"firestige.xyz/icom/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
}

var configDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Print the effective configuration as YAML",
	Long: `Load the config file, apply ICOM_* environment overrides and defaults,
validate, and print the result.

Examples:
  icom config dump -c config.yml
  ICOM_FILTER_DEST_PORT=5080 icom config dump -c config.yml`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runConfigDump(configFile, cmd.OutOrStdout()); err != nil {
			exitWithError("invalid configuration", err)
		}
	},
}

func init() {
	configCmd.AddCommand(configDumpCmd)
}

func runConfigDump(cfgPath string, w io.Writer) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	out, err := config.Dump(cfg)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(w, string(out))
	return err
}
