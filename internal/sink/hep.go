package sink

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"net"
	"net/netip"
	"sync/atomic"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"firestige.xyz/icom/internal/core"
	"firestige.xyz/icom/plugins/parser/sip"
)

const TypeHEP = "hep"

func init() {
	Register(TypeHEP, newHEPFromOptions)
}

// HEPOptions configures mirroring to Homer collectors.
//
//	sinks:
//	  - type: hep
//	    options:
//	      servers: ["10.0.0.1:9060", "10.0.0.2:9060"]
//	      capture_id: 2001
//	      rewritten_only: true
type HEPOptions struct {
	Servers       []string `mapstructure:"servers"`
	CaptureID     uint32   `mapstructure:"capture_id"`
	AuthKey       string   `mapstructure:"auth_key"`
	NodeName      string   `mapstructure:"node_name"`
	RewrittenOnly bool     `mapstructure:"rewritten_only"`
}

// HEPSink encapsulates IPv4/UDP frames as HEPv3 and sends them over UDP.
// A flow always goes to the same server.
type HEPSink struct {
	opts    HEPOptions
	conns   []*net.UDPConn
	sent    atomic.Uint64
	skipped atomic.Uint64
	closed  atomic.Bool
}

func newHEPFromOptions(options map[string]any) (Sink, error) {
	var opts HEPOptions
	if err := decodeOptions(options, &opts); err != nil {
		return nil, err
	}
	return NewHEP(opts)
}

// NewHEP dials every configured server.
func NewHEP(opts HEPOptions) (*HEPSink, error) {
	if len(opts.Servers) == 0 {
		return nil, fmt.Errorf("%w: hep sink requires at least one server", core.ErrConfigInvalid)
	}

	s := &HEPSink{opts: opts, conns: make([]*net.UDPConn, 0, len(opts.Servers))}
	for _, srv := range opts.Servers {
		addr, err := net.ResolveUDPAddr("udp", srv)
		if err != nil {
			s.closeConns()
			return nil, fmt.Errorf("failed to resolve %q: %w", srv, err)
		}
		conn, err := net.DialUDP("udp", nil, addr)
		if err != nil {
			s.closeConns()
			return nil, fmt.Errorf("failed to dial %q: %w", srv, err)
		}
		s.conns = append(s.conns, conn)
	}
	return s, nil
}

func (s *HEPSink) Name() string {
	return TypeHEP
}

// Write mirrors pkt when it carries IPv4/UDP. Other frames are skipped
// without error.
func (s *HEPSink) Write(pkt core.RawPacket) error {
	if s.closed.Load() {
		return core.ErrSinkClosed
	}
	if s.opts.RewrittenOnly && !pkt.Rewritten {
		return nil
	}

	rec, ok := recordFromFrame(pkt)
	if !ok {
		s.skipped.Add(1)
		return nil
	}

	frame, err := encodeHEP(rec, hepEncodeOptions{
		CaptureID: s.opts.CaptureID,
		AuthKey:   s.opts.AuthKey,
		NodeName:  s.opts.NodeName,
	})
	if err != nil {
		return err
	}

	conn := s.conns[s.selectIndex(rec)]
	if _, err := conn.Write(frame); err != nil {
		return fmt.Errorf("failed to send to %s: %w", conn.RemoteAddr(), err)
	}
	s.sent.Add(1)
	return nil
}

// Sent returns the number of HEP frames sent.
func (s *HEPSink) Sent() uint64 {
	return s.sent.Load()
}

// Skipped returns the number of frames that were not IPv4/UDP.
func (s *HEPSink) Skipped() uint64 {
	return s.skipped.Load()
}

func (s *HEPSink) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.closeConns()
	return nil
}

func (s *HEPSink) closeConns() {
	for _, c := range s.conns {
		_ = c.Close()
	}
}

// selectIndex hashes the 5-tuple with FNV-32a.
func (s *HEPSink) selectIndex(rec hepRecord) int {
	if len(s.conns) == 1 {
		return 0
	}

	h := fnv.New32a()
	src, dst := rec.SrcIP.As4(), rec.DstIP.As4()
	var port [2]byte
	_, _ = h.Write(src[:])
	binary.BigEndian.PutUint16(port[:], rec.SrcPort)
	_, _ = h.Write(port[:])
	_, _ = h.Write(dst[:])
	binary.BigEndian.PutUint16(port[:], rec.DstPort)
	_, _ = h.Write(port[:])
	_, _ = h.Write([]byte{rec.Protocol})

	return int(h.Sum32() % uint32(len(s.conns)))
}

func recordFromFrame(pkt core.RawPacket) (hepRecord, bool) {
	packet := gopacket.NewPacket(pkt.Data, layers.LayerTypeEthernet, gopacket.DecodeOptions{
		Lazy:   true,
		NoCopy: true,
	})
	ip4, ok := packet.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
	if !ok {
		return hepRecord{}, false
	}
	udp, ok := packet.Layer(layers.LayerTypeUDP).(*layers.UDP)
	if !ok {
		return hepRecord{}, false
	}
	src, ok1 := netip.AddrFromSlice(ip4.SrcIP.To4())
	dst, ok2 := netip.AddrFromSlice(ip4.DstIP.To4())
	if !ok1 || !ok2 {
		return hepRecord{}, false
	}

	rec := hepRecord{
		Timestamp: pkt.Timestamp,
		SrcIP:     src,
		DstIP:     dst,
		SrcPort:   uint16(udp.SrcPort),
		DstPort:   uint16(udp.DstPort),
		Protocol:  uint8(layers.IPProtocolUDP),
		Payload:   udp.Payload,
	}
	if sip.Detect(udp.Payload) {
		rec.ProtoType = protoTypeSIP
	}
	return rec, true
}
