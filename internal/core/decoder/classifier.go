package decoder

import (
	"fmt"
	"net/netip"

	"firestige.xyz/icom/internal/core"
)

// MatchConfig selects the frames the filter rewrites.
type MatchConfig struct {
	Source   netip.Addr // Required IPv4 source address
	DestPort uint16     // Required UDP destination port
}

// Reason records why the classifier stopped. Only ReasonMatched leads to a
// rewrite attempt; every other reason means "pass unmodified" and they are
// indistinguishable to the caller of the filter.
type Reason uint8

const (
	ReasonMatched Reason = iota
	ReasonShortEthernet
	ReasonShortIPv4
	ReasonNotUDP
	ReasonShortUDP
	ReasonSourceMismatch
	ReasonPortMismatch
)

var reasonNames = [...]string{
	ReasonMatched:        "matched",
	ReasonShortEthernet:  "short_ethernet",
	ReasonShortIPv4:      "short_ipv4",
	ReasonNotUDP:         "not_udp",
	ReasonShortUDP:       "short_udp",
	ReasonSourceMismatch: "source_mismatch",
	ReasonPortMismatch:   "port_mismatch",
}

func (r Reason) String() string {
	if int(r) < len(reasonNames) {
		return reasonNames[r]
	}
	return "unknown"
}

// Reasons lists every classifier outcome, in declaration order.
func Reasons() []Reason {
	return []Reason{
		ReasonMatched,
		ReasonShortEthernet,
		ReasonShortIPv4,
		ReasonNotUDP,
		ReasonShortUDP,
		ReasonSourceMismatch,
		ReasonPortMismatch,
	}
}

// Match locates the headers of a classified frame. Offsets are relative to
// the start of the frame.
type Match struct {
	UDPOffset     int
	PayloadOffset int
}

// Classifier walks Ethernet -> IPv4 -> UDP and applies the match predicates.
// It holds only immutable wire-order copies of the configuration and is safe
// for concurrent use.
type Classifier struct {
	source [4]byte // network byte order
	port   [2]byte // network byte order
}

// NewClassifier converts cfg to wire order once.
func NewClassifier(cfg MatchConfig) (*Classifier, error) {
	if !cfg.Source.Is4() {
		return nil, fmt.Errorf("%w: source %q is not an IPv4 address", core.ErrConfigInvalid, cfg.Source)
	}
	if cfg.DestPort == 0 {
		return nil, fmt.Errorf("%w: destination port must be non-zero", core.ErrConfigInvalid)
	}
	return &Classifier{
		source: cfg.Source.As4(),
		port:   [2]byte{byte(cfg.DestPort >> 8), byte(cfg.DestPort)},
	}, nil
}

// Config returns the match configuration in host form.
func (c *Classifier) Config() MatchConfig {
	return MatchConfig{
		Source:   netip.AddrFrom4(c.source),
		DestPort: uint16(c.port[0])<<8 | uint16(c.port[1]),
	}
}

// Classify reports where the UDP header and payload of frame begin when the
// frame matches. Each header is bounds-checked before any of its bytes are
// read; no byte at or past len(frame) is ever touched.
func (c *Classifier) Classify(frame []byte) (Match, Reason) {
	if _, ok := viewEthernet(frame); !ok {
		return Match{}, ReasonShortEthernet
	}

	ipOffset := ethernetHeaderLen
	ip, ok := viewIPv4(frame, ipOffset)
	if !ok {
		return Match{}, ReasonShortIPv4
	}
	if ip.Protocol() != protocolUDP {
		return Match{}, ReasonNotUDP
	}

	udpOffset := ipOffset + ipv4HeaderLen
	udp, ok := viewUDP(frame, udpOffset)
	if !ok {
		return Match{}, ReasonShortUDP
	}

	if !ip.srcEquals(c.source) {
		return Match{}, ReasonSourceMismatch
	}
	if !udp.dstEquals(c.port) {
		return Match{}, ReasonPortMismatch
	}

	return Match{
		UDPOffset:     udpOffset,
		PayloadOffset: udpOffset + udpHeaderLen,
	}, ReasonMatched
}
