package daemon

import (
	"context"
	"fmt"

	"firestige.xyz/icom/internal/config"
	"firestige.xyz/icom/internal/log"
	"firestige.xyz/icom/internal/pipeline"
	"firestige.xyz/icom/internal/sink"
	"firestige.xyz/icom/internal/source/pcapfile"
)

// Replay runs the filter over every frame of the input capture, in order,
// writing each frame to output (when set) and to the configured sinks.
func Replay(ctx context.Context, cfg *config.Config, input, output string) (pipeline.Stats, error) {
	program, err := buildProgram(cfg)
	if err != nil {
		return pipeline.Stats{}, err
	}

	src, err := pcapfile.Open(input)
	if err != nil {
		return pipeline.Stats{}, err
	}

	sinks, err := buildSinks(cfg)
	if err != nil {
		src.Close()
		return pipeline.Stats{}, err
	}
	if output != "" {
		out, err := sink.NewPcap(sink.PcapOptions{Path: output, SnapLen: uint32(cfg.Capture.SnapLen)})
		if err != nil {
			src.Close()
			sink.CloseAll(sinks)
			return pipeline.Stats{}, err
		}
		sinks = append([]sink.Sink{out}, sinks...)
	}

	p, err := pipeline.NewBuilder().
		WithSource(src).
		WithProgram(program).
		WithSinks(sinks...).
		WithInspector(newInspector(cfg)).
		WithBufferSize(cfg.Capture.ChannelSize).
		WithBlocking(true).
		Build()
	if err != nil {
		src.Close()
		sink.CloseAll(sinks)
		return pipeline.Stats{}, err
	}

	log.GetLogger().WithFields(map[string]interface{}{
		"input":  input,
		"output": output,
	}).Info("replay starting")

	if err := p.Start(ctx); err != nil {
		src.Close()
		sink.CloseAll(sinks)
		return pipeline.Stats{}, err
	}
	runErr := p.Wait()
	closeErr := sink.CloseAll(sinks)

	stats := p.Stats()
	log.GetLogger().WithFields(stats.Fields()).Info("replay finished")

	if runErr != nil {
		return stats, runErr
	}
	if closeErr != nil {
		return stats, closeErr
	}
	if err := ctx.Err(); err != nil {
		return stats, fmt.Errorf("replay interrupted: %w", err)
	}
	return stats, nil
}
