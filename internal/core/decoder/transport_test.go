package decoder

import (
	"testing"
)

func TestViewUDP(t *testing.T) {
	data := []byte{
		// Src Port: 5000
		0x13, 0x88,
		// Dst Port: 5060
		0x13, 0xC4,
		// Length: 12 bytes (8 header + 4 payload)
		0x00, 0x0C,
		// Checksum
		0xAB, 0xCD,
		// Payload
		0x01, 0x02, 0x03, 0x04,
	}

	udp, ok := viewUDP(data, 0)
	if !ok {
		t.Fatal("viewUDP rejected a full header")
	}
	if udp.DstPort() != 5060 {
		t.Errorf("Expected DstPort 5060, got %d", udp.DstPort())
	}
	if !udp.dstEquals([2]byte{0x13, 0xC4}) {
		t.Error("dstEquals rejected the matching port")
	}
	if udp.dstEquals([2]byte{0xC4, 0x13}) {
		t.Error("dstEquals accepted a byte-swapped port")
	}
	if udp.Checksum() != 0xABCD {
		t.Errorf("Expected checksum 0xabcd, got 0x%04x", udp.Checksum())
	}
}

func TestViewUDPTooShort(t *testing.T) {
	if _, ok := viewUDP(make([]byte, 7), 0); ok {
		t.Error("viewUDP accepted 7 bytes")
	}
	if _, ok := viewUDP(make([]byte, 10), 3); ok {
		t.Error("viewUDP accepted a header ending past the frame")
	}
}

func TestClearChecksum(t *testing.T) {
	data := []byte{
		// preceding byte
		0xEE,
		0x13, 0x88, 0x13, 0xC4, 0x00, 0x0C, 0xAB, 0xCD,
		0x01,
	}

	if !ClearChecksum(data, 1) {
		t.Fatal("ClearChecksum rejected an in-bounds header")
	}
	want := []byte{0xEE, 0x13, 0x88, 0x13, 0xC4, 0x00, 0x0C, 0x00, 0x00, 0x01}
	for i := range want {
		if data[i] != want[i] {
			t.Errorf("byte %d: expected 0x%02x, got 0x%02x", i, want[i], data[i])
		}
	}
}

func TestClearChecksumOutOfBounds(t *testing.T) {
	data := []byte{0x13, 0x88, 0x13, 0xC4, 0x00, 0x0C, 0xAB}

	if ClearChecksum(data, 0) {
		t.Fatal("ClearChecksum accepted a truncated header")
	}
	if data[6] != 0xAB {
		t.Error("ClearChecksum wrote into a truncated header")
	}
}

func TestPayload(t *testing.T) {
	// Ethernet + IPv4 + UDP (length 13) + "hello", padded to 60 bytes.
	frame := make([]byte, 60)
	frame[38], frame[39] = 0x00, 0x0D
	copy(frame[42:], "hello")
	m := Match{UDPOffset: 34, PayloadOffset: 42}

	payload, ok := Payload(frame, m)
	if !ok {
		t.Fatal("Payload rejected a valid match")
	}
	if string(payload) != "hello" {
		t.Errorf("Expected %q, got %q", "hello", payload)
	}

	// A length field past the frame, or below the header size, is ignored.
	for _, length := range []uint16{0x0FFF, 4} {
		frame[38], frame[39] = byte(length>>8), byte(length)
		payload, ok = Payload(frame, m)
		if !ok || len(payload) != 18 {
			t.Errorf("length %d: expected the 18 bytes to the frame end, got %d", length, len(payload))
		}
	}

	if _, ok := Payload(frame[:40], m); ok {
		t.Error("Payload accepted a truncated UDP header")
	}
	if _, ok := Payload(frame, Match{UDPOffset: 34, PayloadOffset: 38}); ok {
		t.Error("Payload accepted a payload offset inside the UDP header")
	}
}
