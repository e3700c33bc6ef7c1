package sink

import (
	"bufio"
	"fmt"
	"os"
	"sync"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"firestige.xyz/icom/internal/core"
)

const TypePcap = "pcap"

func init() {
	Register(TypePcap, newPcapFromOptions)
}

// PcapOptions configures a pcap file sink.
type PcapOptions struct {
	Path    string `mapstructure:"path"`
	SnapLen uint32 `mapstructure:"snap_len"`
}

// PcapSink writes frames to a pcap file with Ethernet link type.
type PcapSink struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	buf    *bufio.Writer
	writer *pcapgo.Writer
	closed bool
}

func newPcapFromOptions(options map[string]any) (Sink, error) {
	var opts PcapOptions
	if err := decodeOptions(options, &opts); err != nil {
		return nil, err
	}
	return NewPcap(opts)
}

// NewPcap creates or truncates opts.Path and writes the file header.
func NewPcap(opts PcapOptions) (*PcapSink, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("%w: pcap sink path is required", core.ErrConfigInvalid)
	}
	if opts.SnapLen == 0 {
		opts.SnapLen = 65535
	}

	f, err := os.Create(opts.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", opts.Path, err)
	}
	buf := bufio.NewWriter(f)
	w := pcapgo.NewWriter(buf)
	if err := w.WriteFileHeader(opts.SnapLen, layers.LinkTypeEthernet); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write pcap header: %w", err)
	}

	return &PcapSink{path: opts.Path, file: f, buf: buf, writer: w}, nil
}

func (s *PcapSink) Name() string {
	return TypePcap + ":" + s.path
}

func (s *PcapSink) Write(pkt core.RawPacket) error {
	length := int(pkt.OrigLen)
	if length < len(pkt.Data) {
		length = len(pkt.Data)
	}
	ci := gopacket.CaptureInfo{
		Timestamp:      pkt.Timestamp,
		CaptureLength:  len(pkt.Data),
		Length:         length,
		InterfaceIndex: pkt.InterfaceIndex,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return core.ErrSinkClosed
	}
	return s.writer.WritePacket(ci, pkt.Data)
}

// Close flushes buffered frames and closes the file.
func (s *PcapSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.buf.Flush(); err != nil {
		s.file.Close()
		return fmt.Errorf("failed to flush %s: %w", s.path, err)
	}
	return s.file.Close()
}
