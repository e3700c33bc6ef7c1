package decoder

import (
	"bytes"
	"errors"
	"net/netip"
	"testing"

	"github.com/google/gopacket/layers"

	"firestige.xyz/icom/internal/core"
	"firestige.xyz/icom/internal/core/coretest"
)

func newTestClassifier(t *testing.T) *Classifier {
	t.Helper()
	c, err := NewClassifier(MatchConfig{
		Source:   netip.MustParseAddr(coretest.SourceIP),
		DestPort: coretest.DestPort,
	})
	if err != nil {
		t.Fatalf("NewClassifier failed: %v", err)
	}
	return c
}

// makeSimpleUDPPacket builds Ethernet + IPv4 + UDP headers by hand.
func makeSimpleUDPPacket() []byte {
	packet := make([]byte, 42)

	// Ethernet header (14 bytes)
	packet[0], packet[1], packet[2] = 0x00, 0x11, 0x22
	packet[3], packet[4], packet[5] = 0x33, 0x44, 0x55
	packet[6], packet[7], packet[8] = 0xAA, 0xBB, 0xCC
	packet[9], packet[10], packet[11] = 0xDD, 0xEE, 0xFF
	packet[12], packet[13] = 0x08, 0x00

	// IPv4 header (20 bytes)
	packet[14] = 0x45                   // Version 4, IHL 5
	packet[16], packet[17] = 0x00, 0x1C // Total Length: 28 bytes
	packet[22] = 0x40                   // TTL: 64
	packet[23] = 0x11                   // Protocol: UDP (17)
	// Src IP: 172.20.222.1
	packet[26], packet[27], packet[28], packet[29] = 172, 20, 222, 1
	// Dst IP: 172.20.222.2
	packet[30], packet[31], packet[32], packet[33] = 172, 20, 222, 2

	// UDP header (8 bytes)
	packet[34], packet[35] = 0x13, 0xC4 // Src Port: 5060
	packet[36], packet[37] = 0x13, 0xC4 // Dst Port: 5060
	packet[38], packet[39] = 0x00, 0x08 // Length: 8 bytes
	packet[40], packet[41] = 0x12, 0x34 // Checksum

	return packet
}

func TestNewClassifierRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  MatchConfig
	}{
		{"zero address", MatchConfig{DestPort: 5060}},
		{"ipv6 address", MatchConfig{Source: netip.MustParseAddr("2001:db8::1"), DestPort: 5060}},
		{"zero port", MatchConfig{Source: netip.MustParseAddr("10.0.0.1")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClassifier(tt.cfg)
			if !errors.Is(err, core.ErrConfigInvalid) {
				t.Errorf("Expected ErrConfigInvalid, got %v", err)
			}
		})
	}
}

func TestClassifierConfigRoundTrip(t *testing.T) {
	c := newTestClassifier(t)
	cfg := c.Config()
	if cfg.Source != netip.MustParseAddr(coretest.SourceIP) {
		t.Errorf("Expected source %s, got %s", coretest.SourceIP, cfg.Source)
	}
	if cfg.DestPort != coretest.DestPort {
		t.Errorf("Expected port %d, got %d", coretest.DestPort, cfg.DestPort)
	}
}

func TestClassifyHandBuiltFrame(t *testing.T) {
	c := newTestClassifier(t)

	m, reason := c.Classify(makeSimpleUDPPacket())
	if reason != ReasonMatched {
		t.Fatalf("Expected matched, got %s", reason)
	}
	if m.UDPOffset != 34 {
		t.Errorf("Expected UDP offset 34, got %d", m.UDPOffset)
	}
	if m.PayloadOffset != 42 {
		t.Errorf("Expected payload offset 42, got %d", m.PayloadOffset)
	}
}

func TestClassifyPredicates(t *testing.T) {
	c := newTestClassifier(t)
	payload := []byte("OPTIONS sip:x SIP/2.0\r\n\r\n")

	tests := []struct {
		name string
		spec coretest.FrameSpec
		want Reason
	}{
		{
			name: "match",
			spec: coretest.FrameSpec{DstPort: 5060, Payload: payload},
			want: ReasonMatched,
		},
		{
			name: "wrong source",
			spec: coretest.FrameSpec{SrcIP: "10.0.0.1", DstPort: 5060, Payload: payload},
			want: ReasonSourceMismatch,
		},
		{
			name: "wrong port",
			spec: coretest.FrameSpec{DstPort: 5061, Payload: payload},
			want: ReasonPortMismatch,
		},
		{
			name: "byte-swapped port",
			spec: coretest.FrameSpec{DstPort: 0xC413, Payload: payload},
			want: ReasonPortMismatch,
		},
		{
			name: "not udp",
			spec: coretest.FrameSpec{Protocol: layers.IPProtocolICMPv4, Payload: make([]byte, 16)},
			want: ReasonNotUDP,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := coretest.MustBuild(tt.spec)
			before := bytes.Clone(frame)

			_, reason := c.Classify(frame)
			if reason != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, reason)
			}
			if !bytes.Equal(before, frame) {
				t.Error("Classify modified the frame")
			}
		})
	}
}

func TestClassifyTruncated(t *testing.T) {
	c := newTestClassifier(t)
	full := makeSimpleUDPPacket()

	for n := 0; n < len(full); n++ {
		_, reason := c.Classify(full[:n])
		var want Reason
		switch {
		case n < 14:
			want = ReasonShortEthernet
		case n < 34:
			want = ReasonShortIPv4
		default:
			want = ReasonShortUDP
		}
		if reason != want {
			t.Errorf("length %d: expected %s, got %s", n, want, reason)
		}
	}
}

// A frame with IPv4 options is misparsed, not rejected: the UDP view lands on
// the options.
func TestClassifyIPv4OptionsMisparsed(t *testing.T) {
	c := newTestClassifier(t)

	frame := makeSimpleUDPPacket()
	frame[14] = 0x46 // IHL 6
	options := []byte{0x01, 0x01, 0x01, 0x01}
	withOpts := append(append(bytes.Clone(frame[:34]), options...), frame[34:]...)

	_, reason := c.Classify(withOpts)
	if reason != ReasonPortMismatch {
		t.Errorf("Expected options to be read as UDP header (port_mismatch), got %s", reason)
	}
}

func TestReasonString(t *testing.T) {
	for _, r := range Reasons() {
		if r.String() == "unknown" {
			t.Errorf("reason %d has no name", r)
		}
	}
	if Reason(200).String() != "unknown" {
		t.Error("expected unknown for out-of-range reason")
	}
}

func BenchmarkClassify(b *testing.B) {
	c, _ := NewClassifier(MatchConfig{
		Source:   netip.MustParseAddr(coretest.SourceIP),
		DestPort: coretest.DestPort,
	})
	frame := makeSimpleUDPPacket()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, reason := c.Classify(frame); reason != ReasonMatched {
			b.Fatal(reason)
		}
	}
}
