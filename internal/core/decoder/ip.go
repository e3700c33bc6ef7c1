package decoder

const (
	// ipv4HeaderLen is the fixed minimum IPv4 header. IHL is not consulted:
	// a header carrying options puts the UDP view at the wrong offset, which
	// is the documented behaviour of the filter rather than a rejection.
	ipv4HeaderLen = 20

	protocolUDP = 17
)

// ipv4View is a read-only window over a fixed-size IPv4 header.
type ipv4View []byte

// viewIPv4 returns the IPv4 header starting at offset, or false when
// offset+20 runs past the end of frame.
func viewIPv4(frame []byte, offset int) (ipv4View, bool) {
	if offset < 0 || len(frame)-offset < ipv4HeaderLen {
		return nil, false
	}
	return ipv4View(frame[offset : offset+ipv4HeaderLen]), true
}

// Protocol returns the transport protocol number (byte 9).
func (ip ipv4View) Protocol() uint8 {
	return ip[9]
}

// srcEquals compares the source address (bytes 12..16) with want, which is
// already in network byte order.
func (ip ipv4View) srcEquals(want [4]byte) bool {
	return ip[12] == want[0] && ip[13] == want[1] && ip[14] == want[2] && ip[15] == want[3]
}

// Source returns the source address bytes in network order.
func (ip ipv4View) Source() [4]byte {
	return [4]byte{ip[12], ip[13], ip[14], ip[15]}
}
