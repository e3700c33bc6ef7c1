package cmd

import (
	"github.com/spf13/cobra"

	"firestige.xyz/icom/internal/config"
	"firestige.xyz/icom/internal/daemon"
)

var runPIDFile string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Filter live traffic in the foreground",
	Long: `Capture frames from capture.interface, merge folded SIP headers and write
every frame to the configured sinks until SIGTERM or SIGINT.

SIGHUP logs the current statistics. The match constants are read once at
start; change them by restarting.

Examples:
  icom run -c /etc/icom/config.yml
  ICOM_CAPTURE_INTERFACE=eth1 icom run -c config.yml`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(configFile)
		if err != nil {
			exitWithError("failed to load config", err)
		}
		if cfg.Capture.Interface == "" {
			exitWithError("capture.interface is required for run", nil)
		}

		d := daemon.New(cfg, runPIDFile, nil)
		if err := d.Start(); err != nil {
			exitWithError("failed to start", err)
		}
		if err := d.Run(); err != nil {
			exitWithError("stopped with error", err)
		}
	},
}

func init() {
	runCmd.Flags().StringVarP(&runPIDFile, "pidfile", "p", "",
		"PID file path (empty: none)")
}
