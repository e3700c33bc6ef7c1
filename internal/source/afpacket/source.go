// Package afpacket reads frames from a TPACKET_V3 ring.
package afpacket

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/gopacket/afpacket"

	"firestige.xyz/icom/internal/core"
	"firestige.xyz/icom/internal/log"
)

const Name = "afpacket"

const (
	defaultSnapLen      = 65535
	defaultBufferSizeMB = 64
	defaultPollTimeout  = 100 * time.Millisecond
)

// Config configures one ring. Sources sharing an interface join the same
// fanout group through a non-zero FanoutID.
type Config struct {
	Interface    string
	SnapLen      int
	BufferSizeMB int
	PollTimeout  time.Duration
	FanoutID     uint16
	BPFFilter    string
}

// statsReader reports the kernel's cumulative ring drop count.
type statsReader interface {
	KernelDrops() (uint64, error)
}

// tpacketStats reads the TPACKET_V3 counters of a ring. gopacket keeps the
// V1 counters at zero for V3 sockets.
type tpacketStats struct {
	handle *afpacket.TPacket
}

func (t tpacketStats) KernelDrops() (uint64, error) {
	_, v3, err := t.handle.SocketStats()
	if err != nil {
		return 0, err
	}
	return uint64(v3.Drops()), nil
}

// Source is a live capture source on one interface.
type Source struct {
	handle *afpacket.TPacket
	stats  statsReader
	cfg    Config
	logger log.Logger

	closed   atomic.Bool
	received atomic.Uint64
	drops    atomic.Uint64
}

// New opens the ring and installs the fanout group and BPF program.
func New(cfg Config) (*Source, error) {
	if cfg.Interface == "" {
		return nil, fmt.Errorf("%w: afpacket interface is required", core.ErrConfigInvalid)
	}
	if cfg.SnapLen <= 0 {
		cfg.SnapLen = defaultSnapLen
	}
	if cfg.BufferSizeMB <= 0 {
		cfg.BufferSizeMB = defaultBufferSizeMB
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = defaultPollTimeout
	}

	frameSize, blockSize, numBlocks, err := recomputeSize(cfg.BufferSizeMB, cfg.SnapLen, os.Getpagesize())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrConfigInvalid, err)
	}

	logger := log.GetLogger().WithFields(map[string]interface{}{
		"source":    Name,
		"interface": cfg.Interface,
	})

	tp, err := afpacket.NewTPacket(
		afpacket.OptInterface(cfg.Interface),
		afpacket.OptFrameSize(frameSize),
		afpacket.OptBlockSize(blockSize),
		afpacket.OptNumBlocks(numBlocks),
		afpacket.OptPollTimeout(cfg.PollTimeout),
		afpacket.SocketRaw,
		afpacket.TPacketVersion3,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create TPacket handle on %s: %w", cfg.Interface, err)
	}

	if cfg.FanoutID > 0 {
		if err := tp.SetFanout(afpacket.FanoutHash, cfg.FanoutID); err != nil {
			tp.Close()
			return nil, fmt.Errorf("failed to set fanout %d: %w", cfg.FanoutID, err)
		}
		logger.WithField("fanout_id", cfg.FanoutID).Info("afpacket fanout configured")
	}

	if cfg.BPFFilter != "" {
		insns, err := compileBPF(cfg.BPFFilter, frameSize)
		if err != nil {
			tp.Close()
			return nil, err
		}
		if err := tp.SetBPF(insns); err != nil {
			tp.Close()
			return nil, fmt.Errorf("failed to set BPF: %w", err)
		}
		logger.WithField("filter", cfg.BPFFilter).Debug("BPF filter applied")
	}

	if err := tp.InitSocketStats(); err != nil {
		logger.WithError(err).Warn("failed to init socket stats")
	}

	logger.WithFields(map[string]interface{}{
		"frame_size": frameSize,
		"block_size": blockSize,
		"num_blocks": numBlocks,
	}).Info("afpacket capture opened")

	return &Source{handle: tp, stats: tpacketStats{handle: tp}, cfg: cfg, logger: logger}, nil
}

func (s *Source) Name() string {
	return Name + ":" + s.cfg.Interface
}

// ReadPacket returns the next frame from the ring without copying it.
// Poll timeouts and transient errors are retried until ctx is done.
func (s *Source) ReadPacket(ctx context.Context) (core.RawPacket, error) {
	for {
		if err := ctx.Err(); err != nil {
			return core.RawPacket{}, err
		}
		if s.closed.Load() {
			return core.RawPacket{}, core.ErrSourceClosed
		}

		data, ci, err := s.handle.ZeroCopyReadPacketData()
		if err != nil {
			if ctx.Err() != nil {
				return core.RawPacket{}, ctx.Err()
			}
			if !errors.Is(err, afpacket.ErrTimeout) {
				s.logger.WithError(err).Trace("afpacket read error")
			}
			continue
		}

		s.received.Add(1)

		return core.RawPacket{
			Data:           data,
			Timestamp:      ci.Timestamp,
			CaptureLen:     uint32(ci.CaptureLength),
			OrigLen:        uint32(ci.Length),
			InterfaceIndex: ci.InterfaceIndex,
		}, nil
	}
}

// Received returns the number of frames read so far.
func (s *Source) Received() uint64 {
	return s.received.Load()
}

// Drops returns the kernel's ring drop counter. The counter is read from the
// socket on each call; after Close the last value read is returned.
func (s *Source) Drops() uint64 {
	if s.closed.Load() {
		return s.drops.Load()
	}
	drops, err := s.stats.KernelDrops()
	if err != nil {
		s.logger.WithError(err).Debug("failed to read socket stats")
		return s.drops.Load()
	}
	s.drops.Store(drops)
	return drops
}

// Close releases the ring. It must not run concurrently with ReadPacket:
// the ring is unmapped and zero-copy data becomes invalid.
func (s *Source) Close() error {
	if s.closed.Load() {
		return nil
	}
	if drops, err := s.stats.KernelDrops(); err == nil {
		s.drops.Store(drops)
	}
	if s.closed.Swap(true) {
		return nil
	}
	if s.handle != nil {
		s.handle.Close()
	}
	s.logger.WithField("received", s.received.Load()).Info("afpacket capture closed")
	return nil
}
