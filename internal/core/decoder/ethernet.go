// Package decoder implements the bounds-checked header walk that classifies
// frames for the fold filter.
package decoder

const (
	// Ethernet II header: destination MAC, source MAC, EtherType.
	ethernetHeaderLen = 14
)

// ethernetView is a read-only window over an Ethernet II header.
// It is valid only while the frame it was cut from is valid.
type ethernetView []byte

// viewEthernet returns the Ethernet header at the start of frame, or false
// when the frame is too short to hold one.
func viewEthernet(frame []byte) (ethernetView, bool) {
	if len(frame) < ethernetHeaderLen {
		return nil, false
	}
	return ethernetView(frame[:ethernetHeaderLen]), true
}

// EtherType returns the EtherType in host order.
func (e ethernetView) EtherType() uint16 {
	return uint16(e[12])<<8 | uint16(e[13])
}
