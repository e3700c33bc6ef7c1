// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X firestige.xyz/icom/cmd.Version=...".
var Version = "0.1.0"

var (
	// Global flags
	configFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "icom",
	Short: "icom - SIP header-fold merging packet filter",
	Long: `icom inspects UDP frames from a configured source address to a configured
SIP port and merges the first folded header line (CRLF followed by a space)
in place, clearing the UDP checksum. Every frame is passed on, rewritten or not.

Frames come from an AF_PACKET ring (run) or a capture file (replay) and are
written to the configured sinks: pcap files, an egress interface, the log.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "/etc/icom/config.yml",
		"config file path (empty: defaults and ICOM_* environment only)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(configCmd)
}

// exitWithError prints error message and exits with code 1
func exitWithError(msg string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	}
	os.Exit(1)
}
