package sink

import (
	"sync/atomic"

	"firestige.xyz/icom/internal/core"
)

const TypeDiscard = "discard"

func init() {
	Register(TypeDiscard, func(options map[string]any) (Sink, error) {
		if err := decodeOptions(options, &struct{}{}); err != nil {
			return nil, err
		}
		return NewDiscard(), nil
	})
}

// DiscardSink drops frames, counting them.
type DiscardSink struct {
	frames    atomic.Uint64
	rewritten atomic.Uint64
}

func NewDiscard() *DiscardSink {
	return &DiscardSink{}
}

func (s *DiscardSink) Name() string {
	return TypeDiscard
}

func (s *DiscardSink) Write(pkt core.RawPacket) error {
	s.frames.Add(1)
	if pkt.Rewritten {
		s.rewritten.Add(1)
	}
	return nil
}

// Frames returns the number of frames written.
func (s *DiscardSink) Frames() uint64 {
	return s.frames.Load()
}

// Rewritten returns the number of rewritten frames written.
func (s *DiscardSink) Rewritten() uint64 {
	return s.rewritten.Load()
}

func (s *DiscardSink) Close() error {
	return nil
}
