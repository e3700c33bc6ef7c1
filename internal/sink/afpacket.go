package sink

import (
	"fmt"
	"sync/atomic"

	"github.com/google/gopacket/afpacket"

	"firestige.xyz/icom/internal/core"
)

const TypeAfpacket = "afpacket"

func init() {
	Register(TypeAfpacket, newAfpacketFromOptions)
}

// AfpacketOptions configures frame re-injection.
type AfpacketOptions struct {
	Interface string `mapstructure:"interface"`
}

// AfpacketSink transmits frames on an egress interface.
type AfpacketSink struct {
	iface  string
	handle *afpacket.TPacket
	closed atomic.Bool
}

func newAfpacketFromOptions(options map[string]any) (Sink, error) {
	var opts AfpacketOptions
	if err := decodeOptions(options, &opts); err != nil {
		return nil, err
	}
	return NewAfpacket(opts)
}

// NewAfpacket opens a raw socket bound to opts.Interface.
func NewAfpacket(opts AfpacketOptions) (*AfpacketSink, error) {
	if opts.Interface == "" {
		return nil, fmt.Errorf("%w: afpacket sink interface is required", core.ErrConfigInvalid)
	}
	h, err := afpacket.NewTPacket(
		afpacket.OptInterface(opts.Interface),
		afpacket.SocketRaw,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s for injection: %w", opts.Interface, err)
	}
	return &AfpacketSink{iface: opts.Interface, handle: h}, nil
}

func (s *AfpacketSink) Name() string {
	return TypeAfpacket + ":" + s.iface
}

func (s *AfpacketSink) Write(pkt core.RawPacket) error {
	if s.closed.Load() {
		return core.ErrSinkClosed
	}
	if err := s.handle.WritePacketData(pkt.Data); err != nil {
		return fmt.Errorf("inject on %s: %w", s.iface, err)
	}
	return nil
}

func (s *AfpacketSink) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.handle.Close()
	return nil
}
