// Package pipeline runs the filter over frames from a source and forwards
// every frame to the configured sinks.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"firestige.xyz/icom/internal/core"
	"firestige.xyz/icom/internal/core/decoder"
	"firestige.xyz/icom/internal/core/filter"
	"firestige.xyz/icom/internal/log"
	"firestige.xyz/icom/internal/sink"
	"firestige.xyz/icom/internal/source"
)

// Inspector examines a rewritten frame off the verdict path. m holds the
// header offsets the filter used and foldOffset the payload index of the
// merged fold's SP. Its error is counted, never propagated.
type Inspector interface {
	Inspect(frame []byte, m decoder.Match, foldOffset int) error
}

// Pipeline owns one source and runs two goroutines: a capture loop that
// copies frames out of the source, and a process loop that filters them and
// writes them to the sinks.
type Pipeline struct {
	id        int
	source    source.Source
	program   *filter.Program
	sinks     []sink.Sink
	inspector Inspector
	blocking  bool
	metrics   *Metrics
	logger    log.Logger

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	errMu   sync.Mutex
	err     error
	started bool

	rawPacketChan chan core.RawPacket
}

// Config contains pipeline configuration.
type Config struct {
	ID         int
	Source     source.Source
	Program    *filter.Program
	Sinks      []sink.Sink
	Inspector  Inspector // optional
	BufferSize int       // Raw packet channel buffer size
	// Blocking makes the capture loop wait for the process loop instead of
	// dropping when the channel is full. Used for finite sources where
	// every frame must be forwarded in order.
	Blocking bool
}

// New creates a new pipeline.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("%w: pipeline %d has no source", core.ErrConfigInvalid, cfg.ID)
	}
	if cfg.Program == nil {
		return nil, fmt.Errorf("%w: pipeline %d has no filter program", core.ErrConfigInvalid, cfg.ID)
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1024
	}

	name := strconv.Itoa(cfg.ID)
	return &Pipeline{
		id:            cfg.ID,
		source:        cfg.Source,
		program:       cfg.Program,
		sinks:         cfg.Sinks,
		inspector:     cfg.Inspector,
		blocking:      cfg.Blocking,
		metrics:       NewMetrics(name),
		logger:        log.GetLogger().WithField("pipeline", cfg.ID),
		rawPacketChan: make(chan core.RawPacket, cfg.BufferSize),
	}, nil
}

// ID returns the pipeline ID.
func (p *Pipeline) ID() int {
	return p.id
}

// Start launches the capture and process loops. The pipeline ends when ctx
// is done, Stop is called, or the source is exhausted.
func (p *Pipeline) Start(ctx context.Context) error {
	if p.started {
		return fmt.Errorf("pipeline %d already started", p.id)
	}
	p.started = true

	ctx, p.cancel = context.WithCancel(ctx)
	p.logger.WithField("source", p.source.Name()).Info("pipeline starting")

	p.wg.Add(2)
	go p.captureLoop(ctx)
	go p.processLoop()
	return nil
}

// Wait blocks until both loops have exited and returns the capture error,
// if any. End of input and cancellation are not errors.
func (p *Pipeline) Wait() error {
	p.wg.Wait()
	p.errMu.Lock()
	defer p.errMu.Unlock()
	return p.err
}

// Stop cancels the pipeline and waits for frames already queued to be
// written.
func (p *Pipeline) Stop() error {
	if p.cancel != nil {
		p.cancel()
	}
	err := p.Wait()
	p.logger.WithFields(p.Stats().Fields()).Info("pipeline stopped")
	return err
}

// captureLoop owns the source: ReadPacket and Close both run here.
func (p *Pipeline) captureLoop(ctx context.Context) {
	defer p.wg.Done()
	defer close(p.rawPacketChan)
	defer func() {
		if err := p.source.Close(); err != nil {
			p.logger.WithError(err).Warn("source close failed")
		}
	}()

	for {
		raw, err := p.source.ReadPacket(ctx)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				p.logger.Debug("source exhausted")
			case ctx.Err() != nil, errors.Is(err, core.ErrSourceClosed):
			default:
				p.logger.WithError(err).Error("capture failed")
				p.setErr(fmt.Errorf("pipeline %d capture: %w", p.id, err))
			}
			return
		}

		// Ring data is only valid until the next read.
		pkt := raw.Clone()

		if p.blocking {
			select {
			case p.rawPacketChan <- pkt:
			case <-ctx.Done():
				return
			}
			continue
		}

		select {
		case p.rawPacketChan <- pkt:
		default:
			p.metrics.dropped()
		}
	}
}

// processLoop drains the channel until the capture loop closes it.
func (p *Pipeline) processLoop() {
	defer p.wg.Done()
	for pkt := range p.rawPacketChan {
		p.processPacket(pkt)
	}
}

// processPacket runs one frame through the filter, the optional inspector
// and every sink.
func (p *Pipeline) processPacket(pkt core.RawPacket) {
	start := time.Now()
	res := p.program.Inspect(pkt.Data)
	p.metrics.observe(res, time.Since(start))

	if res.Rewritten {
		pkt.Rewritten = true
		if p.logger.IsDebugEnabled() {
			p.logger.WithFields(map[string]interface{}{
				"fold_offset": res.FoldOffset,
				"len":         len(pkt.Data),
			}).Debug("header fold merged")
		}
		if p.inspector != nil {
			p.metrics.inspected(p.inspector.Inspect(pkt.Data, res.Match, res.FoldOffset))
		}
	} else if res.Reason != decoder.ReasonMatched && p.logger.IsTraceEnabled() {
		p.logger.WithField("reason", res.Reason.String()).Trace("frame passed unmodified")
	}

	for _, s := range p.sinks {
		if err := s.Write(pkt); err != nil {
			p.metrics.sinkError(s.Name())
			p.logger.WithError(err).WithField("sink", s.Name()).Debug("sink write failed")
		}
	}
}

func (p *Pipeline) setErr(err error) {
	p.errMu.Lock()
	defer p.errMu.Unlock()
	if p.err == nil {
		p.err = err
	}
}

// Stats returns pipeline statistics.
func (p *Pipeline) Stats() Stats {
	s := p.metrics.snapshot()
	if dc, ok := p.source.(source.DropCounter); ok {
		s.KernelDrops = dc.Drops()
	}
	return s
}
