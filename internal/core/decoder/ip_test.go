package decoder

import (
	"testing"
)

func TestViewIPv4Basic(t *testing.T) {
	// Minimal IPv4 header (20 bytes)
	data := []byte{
		// Version 4, IHL 5
		0x45,
		// DSCP, ECN
		0x00,
		// Total Length: 28 bytes
		0x00, 0x1C,
		// Identification
		0x12, 0x34,
		// Flags, Fragment Offset
		0x00, 0x00,
		// TTL: 64
		0x40,
		// Protocol: UDP (17)
		0x11,
		// Checksum
		0x00, 0x00,
		// Src IP
		172, 20, 222, 1,
		// Dst IP
		192, 168, 1, 2,
		// Payload
		0x01, 0x02, 0x03, 0x04,
	}

	ip, ok := viewIPv4(data, 0)
	if !ok {
		t.Fatal("viewIPv4 rejected a full header")
	}
	if ip.Protocol() != 17 {
		t.Errorf("Expected protocol 17, got %d", ip.Protocol())
	}
	if ip.Source() != [4]byte{172, 20, 222, 1} {
		t.Errorf("Expected source 172.20.222.1, got %v", ip.Source())
	}
	if !ip.srcEquals([4]byte{172, 20, 222, 1}) {
		t.Error("srcEquals rejected the matching address")
	}
	if ip.srcEquals([4]byte{1, 222, 20, 172}) {
		t.Error("srcEquals accepted a byte-swapped address")
	}
}

func TestViewIPv4Bounds(t *testing.T) {
	frame := make([]byte, 33) // one byte short of Ethernet + IPv4

	if _, ok := viewIPv4(frame, ethernetHeaderLen); ok {
		t.Error("viewIPv4 accepted a truncated header")
	}
	if _, ok := viewIPv4(frame, -1); ok {
		t.Error("viewIPv4 accepted a negative offset")
	}
	if _, ok := viewIPv4(frame, 40); ok {
		t.Error("viewIPv4 accepted an offset past the end")
	}
	if _, ok := viewIPv4(append(frame, 0), ethernetHeaderLen); !ok {
		t.Error("viewIPv4 rejected an exactly-sized header")
	}
}

func TestViewIPv4IgnoresOptions(t *testing.T) {
	// IHL 6 announces 4 bytes of options; the view stays at 20 bytes.
	data := make([]byte, 24)
	data[0] = 0x46
	data[9] = protocolUDP

	ip, ok := viewIPv4(data, 0)
	if !ok {
		t.Fatal("viewIPv4 rejected header with options")
	}
	if len(ip) != ipv4HeaderLen {
		t.Errorf("Expected fixed view length %d, got %d", ipv4HeaderLen, len(ip))
	}
}
