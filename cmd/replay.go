package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"firestige.xyz/icom/internal/config"
	"firestige.xyz/icom/internal/daemon"
	"firestige.xyz/icom/internal/log"
)

var (
	replayInput  string
	replayOutput string
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Filter a capture file offline",
	Long: `Run the filter over every frame of a pcap or pcapng file, in order, and
write the result to another pcap file and to the configured sinks.

--in and --out override replay.input and replay.output from the config.

Examples:
  icom replay -c config.yml --in trace.pcap --out merged.pcap
  ICOM_FILTER_SOURCE_IP=10.0.0.5 icom replay -c "" --in a.pcapng --out b.pcap`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := runReplay(ctx, configFile, replayInput, replayOutput, cmd.OutOrStdout()); err != nil {
			exitWithError("replay failed", err)
		}
	},
}

func init() {
	replayCmd.Flags().StringVar(&replayInput, "in", "", "input capture file")
	replayCmd.Flags().StringVar(&replayOutput, "out", "", "output pcap file")
}

func runReplay(ctx context.Context, cfgPath, input, output string, w io.Writer) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if input == "" {
		input = cfg.Replay.Input
	}
	if output == "" {
		output = cfg.Replay.Output
	}
	if input == "" {
		return fmt.Errorf("no input file: set --in or replay.input")
	}
	if err := log.Init(&cfg.Log); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	stats, err := daemon.Replay(ctx, cfg, input, output)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "frames:     %d\n", stats.Received)
	fmt.Fprintf(w, "matched:    %d\n", stats.Matched)
	fmt.Fprintf(w, "rewritten:  %d\n", stats.Rewritten)
	fmt.Fprintf(w, "passed:     %d\n", stats.Passed)
	if stats.SinkErrors > 0 {
		fmt.Fprintf(w, "sink errors: %d\n", stats.SinkErrors)
	}
	if output != "" {
		fmt.Fprintf(w, "written to %s\n", output)
	}
	return nil
}
