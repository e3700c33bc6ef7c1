// Package pcapfile replays frames from a pcap or pcapng capture file.
package pcapfile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"firestige.xyz/icom/internal/core"
)

const Name = "pcapfile"

// Source reads an Ethernet capture file in order.
type Source struct {
	path   string
	file   *os.File
	reader gopacket.PacketDataSource
	closed bool
}

// Open opens path as pcap, falling back to pcapng. Captures with a link
// type other than Ethernet are rejected with core.ErrUnsupportedLinkType.
func Open(path string) (*Source, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: capture file path is required", core.ErrConfigInvalid)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture file %s: %w", path, err)
	}

	reader, linkType, err := newReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read capture file %s: %w", path, err)
	}
	if linkType != layers.LinkTypeEthernet {
		f.Close()
		return nil, fmt.Errorf("%w: %s has link type %s", core.ErrUnsupportedLinkType, path, linkType)
	}

	return &Source{path: path, file: f, reader: reader}, nil
}

func newReader(f *os.File) (gopacket.PacketDataSource, layers.LinkType, error) {
	r, err := pcapgo.NewReader(f)
	if err == nil {
		return r, r.LinkType(), nil
	}
	if _, serr := f.Seek(0, io.SeekStart); serr != nil {
		return nil, 0, serr
	}
	ng, ngErr := pcapgo.NewNgReader(f, pcapgo.DefaultNgReaderOptions)
	if ngErr != nil {
		return nil, 0, fmt.Errorf("neither pcap (%v) nor pcapng (%w)", err, ngErr)
	}
	return ng, ng.LinkType(), nil
}

func (s *Source) Name() string {
	return Name + ":" + s.path
}

// ReadPacket returns the next frame, or io.EOF at the end of the file. Each
// frame owns its Data.
func (s *Source) ReadPacket(ctx context.Context) (core.RawPacket, error) {
	if err := ctx.Err(); err != nil {
		return core.RawPacket{}, err
	}
	if s.closed {
		return core.RawPacket{}, core.ErrSourceClosed
	}

	data, ci, err := s.reader.ReadPacketData()
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return core.RawPacket{}, io.EOF
		}
		return core.RawPacket{}, fmt.Errorf("failed to read packet: %w", err)
	}

	return core.RawPacket{
		Data:           data,
		Timestamp:      ci.Timestamp,
		CaptureLen:     uint32(ci.CaptureLength),
		OrigLen:        uint32(ci.Length),
		InterfaceIndex: ci.InterfaceIndex,
	}, nil
}

func (s *Source) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.file.Close()
}
