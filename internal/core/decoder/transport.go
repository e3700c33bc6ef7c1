package decoder

const (
	udpHeaderLen = 8

	udpChecksumOffset = 6
)

// udpView is a window over a UDP header.
type udpView []byte

// viewUDP returns the UDP header starting at offset, or false when
// offset+8 runs past the end of frame.
func viewUDP(frame []byte, offset int) (udpView, bool) {
	if offset < 0 || len(frame)-offset < udpHeaderLen {
		return nil, false
	}
	return udpView(frame[offset : offset+udpHeaderLen]), true
}

// dstEquals compares the destination port (bytes 2..4) with want, which is
// already in network byte order.
func (u udpView) dstEquals(want [2]byte) bool {
	return u[2] == want[0] && u[3] == want[1]
}

// DstPort returns the destination port in host order.
func (u udpView) DstPort() uint16 {
	return uint16(u[2])<<8 | uint16(u[3])
}

// Length returns the length field, header included, in host order.
func (u udpView) Length() uint16 {
	return uint16(u[4])<<8 | uint16(u[5])
}

// Checksum returns the checksum field in host order.
func (u udpView) Checksum() uint16 {
	return uint16(u[6])<<8 | uint16(u[7])
}

// ClearChecksum zeroes the UDP checksum of the header at udpOffset in frame.
// Zero is the IPv4 "checksum not computed" value, so receivers accept the
// datagram unchecked or recompute it. Reports false, touching nothing, when
// the header is not fully inside frame.
func ClearChecksum(frame []byte, udpOffset int) bool {
	u, ok := viewUDP(frame, udpOffset)
	if !ok {
		return false
	}
	u[udpChecksumOffset] = 0
	u[udpChecksumOffset+1] = 0
	return true
}

// Payload returns the payload of a classified frame at the offsets in m, the
// same bytes the rewriter scans, ending early when the UDP length field says
// the datagram stops before the frame does (Ethernet padding). Reports false
// when m does not fit frame.
func Payload(frame []byte, m Match) ([]byte, bool) {
	u, ok := viewUDP(frame, m.UDPOffset)
	if !ok || m.PayloadOffset < m.UDPOffset+udpHeaderLen || m.PayloadOffset > len(frame) {
		return nil, false
	}
	end := len(frame)
	if n := int(u.Length()); n >= udpHeaderLen && m.UDPOffset+n < end {
		end = m.UDPOffset + n
	}
	return frame[m.PayloadOffset:end], true
}
