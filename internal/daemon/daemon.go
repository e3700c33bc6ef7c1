// Package daemon runs the filter on live traffic and replays capture files.
package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"firestige.xyz/icom/internal/config"
	"firestige.xyz/icom/internal/log"
	"firestige.xyz/icom/internal/metrics"
	"firestige.xyz/icom/internal/pipeline"
	"firestige.xyz/icom/internal/sink"
	"firestige.xyz/icom/internal/source"
	"firestige.xyz/icom/internal/source/afpacket"
)

// SourceOpener opens the source for pipeline i.
type SourceOpener func(cfg *config.Config, i int) (source.Source, error)

// OpenAfpacket opens one member of the configured fanout group.
func OpenAfpacket(cfg *config.Config, i int) (source.Source, error) {
	bpf := cfg.Capture.BPFFilter
	if cfg.Capture.MatchOnly {
		bpf = cfg.MatchBPF()
	}
	return afpacket.New(afpacket.Config{
		Interface:    cfg.Capture.Interface,
		SnapLen:      cfg.Capture.SnapLen,
		BufferSizeMB: cfg.Capture.BufferSizeMB,
		PollTimeout:  cfg.Capture.PollTimeout,
		FanoutID:     uint16(cfg.Capture.FanoutID),
		BPFFilter:    bpf,
	})
}

// Daemon manages the live capture process lifecycle.
type Daemon struct {
	config  *config.Config
	pidFile string
	open    SourceOpener

	group         *pipeline.Group
	sinks         []sink.Sink
	metricsServer *metrics.Server // nil if metrics disabled

	ctx     context.Context
	cancel  context.CancelFunc
	sigChan chan os.Signal
	done    chan error
	stopped bool
}

// New creates a daemon. A nil opener means OpenAfpacket.
func New(cfg *config.Config, pidFile string, open SourceOpener) *Daemon {
	if open == nil {
		open = OpenAfpacket
	}
	d := &Daemon{
		config:  cfg,
		pidFile: pidFile,
		open:    open,
		done:    make(chan error, 1),
	}
	d.ctx, d.cancel = context.WithCancel(context.Background())
	return d
}

// Start initializes logging, metrics and the pipelines.
func (d *Daemon) Start() error {
	if err := log.Init(&d.config.Log); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger := log.GetLogger()
	logger.WithFields(map[string]interface{}{
		"interface": d.config.Capture.Interface,
		"source_ip": d.config.Filter.SourceIP,
		"dest_port": d.config.Filter.DestPort,
		"workers":   d.config.Capture.Workers,
	}).Info("starting icom")

	if err := d.writePIDFile(); err != nil {
		return err
	}
	if err := d.startMetrics(); err != nil {
		d.removePIDFile()
		return err
	}
	if err := d.startPipelines(); err != nil {
		d.Stop()
		return err
	}

	go func() {
		d.done <- d.group.Wait()
	}()

	logger.Info("icom started")
	return nil
}

func (d *Daemon) startPipelines() error {
	program, err := buildProgram(d.config)
	if err != nil {
		return err
	}
	d.sinks, err = buildSinks(d.config)
	if err != nil {
		return err
	}

	// Sources are closed by their pipeline once started; until then they
	// are ours to close.
	var sources []source.Source
	closeSources := func() {
		for _, src := range sources {
			src.Close()
		}
	}

	pipelines := make([]*pipeline.Pipeline, 0, d.config.Capture.Workers)
	for i := 0; i < d.config.Capture.Workers; i++ {
		src, err := d.open(d.config, i)
		if err != nil {
			closeSources()
			return fmt.Errorf("failed to open source %d: %w", i, err)
		}
		sources = append(sources, src)

		p, err := pipeline.NewBuilder().
			WithID(i).
			WithSource(src).
			WithProgram(program).
			WithSinks(d.sinks...).
			WithInspector(newInspector(d.config)).
			WithBufferSize(d.config.Capture.ChannelSize).
			Build()
		if err != nil {
			closeSources()
			return err
		}
		pipelines = append(pipelines, p)
	}

	d.group = pipeline.NewGroup(pipelines...)
	return d.group.Start(d.ctx)
}

// Run blocks until SIGTERM/SIGINT, the pipelines end, or the daemon context
// is cancelled. SIGHUP logs the current statistics.
func (d *Daemon) Run() error {
	d.sigChan = make(chan os.Signal, 1)
	signal.Notify(d.sigChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)
	logger := log.GetLogger()

	for {
		select {
		case sig := <-d.sigChan:
			switch sig {
			case syscall.SIGTERM, syscall.SIGINT:
				logger.WithField("signal", sig.String()).Info("received shutdown signal")
				return d.Stop()
			case syscall.SIGHUP:
				logger.WithFields(d.group.Stats().Fields()).Info("statistics")
			}

		case err := <-d.done:
			if err != nil {
				logger.WithError(err).Error("pipelines ended")
			}
			d.Stop()
			return err

		case <-d.ctx.Done():
			return d.Stop()
		}
	}
}

// Shutdown requests Run to return.
func (d *Daemon) Shutdown() {
	d.cancel()
}

// Stats returns the sum of all pipeline statistics.
func (d *Daemon) Stats() pipeline.Stats {
	if d.group == nil {
		return pipeline.Stats{}
	}
	return d.group.Stats()
}

// Stop performs graceful shutdown: pipelines first so no frame is written
// to a closed sink, then sinks, then metrics.
func (d *Daemon) Stop() error {
	if d.stopped {
		return nil
	}
	d.stopped = true
	logger := log.GetLogger()
	logger.Info("initiating graceful shutdown")

	var firstErr error
	if d.group != nil {
		if err := d.group.Stop(); err != nil {
			firstErr = err
		}
		logger.WithFields(d.group.Stats().Fields()).Info("final statistics")
	}
	if err := sink.CloseAll(d.sinks); err != nil {
		logger.WithError(err).Error("error closing sinks")
		if firstErr == nil {
			firstErr = err
		}
	}

	if d.metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.metricsServer.Stop(shutdownCtx); err != nil {
			logger.WithError(err).Error("error stopping metrics server")
		}
	}

	d.cancel()
	if d.sigChan != nil {
		signal.Stop(d.sigChan)
	}
	if err := d.removePIDFile(); err != nil {
		logger.WithError(err).Error("error removing PID file")
	}

	logger.Info("icom stopped")
	return firstErr
}

// startMetrics starts the metrics HTTP server if enabled.
func (d *Daemon) startMetrics() error {
	if !d.config.Metrics.Enabled {
		log.GetLogger().Debug("metrics server disabled")
		return nil
	}

	d.metricsServer = metrics.NewServer(d.config.Metrics.Listen, d.config.Metrics.Path)
	if err := d.metricsServer.Start(d.ctx); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}
	return nil
}

// writePIDFile writes the current process ID to the PID file.
func (d *Daemon) writePIDFile() error {
	if d.pidFile == "" {
		return nil
	}

	pid := os.Getpid()
	data := []byte(strconv.Itoa(pid) + "\n")

	if err := os.WriteFile(d.pidFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write PID file %s: %w", d.pidFile, err)
	}

	log.GetLogger().WithFields(map[string]interface{}{"path": d.pidFile, "pid": pid}).Debug("PID file written")
	return nil
}

// removePIDFile removes the PID file.
func (d *Daemon) removePIDFile() error {
	if d.pidFile == "" {
		return nil
	}

	if err := os.Remove(d.pidFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file %s: %w", d.pidFile, err)
	}
	return nil
}
