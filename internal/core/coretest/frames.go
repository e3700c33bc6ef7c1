// Package coretest builds Ethernet/IPv4/UDP frames for tests.
package coretest

import (
	"fmt"
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// Default match values used across the filter tests.
const (
	SourceIP = "172.20.222.1"
	DestPort = 5060
)

// FrameSpec describes one test frame.
type FrameSpec struct {
	SrcIP    string
	DstIP    string
	SrcPort  uint16
	DstPort  uint16
	Protocol layers.IPProtocol // zero means UDP
	Payload  []byte
}

// PayloadOffset is where the UDP payload starts in frames built by Build.
const PayloadOffset = 14 + 20 + 8

// UDPChecksumOffset is where the UDP checksum sits in frames built by Build.
const UDPChecksumOffset = 14 + 20 + 6

// Build serializes spec with correct lengths and checksums.
func Build(spec FrameSpec) ([]byte, error) {
	if spec.SrcIP == "" {
		spec.SrcIP = SourceIP
	}
	if spec.DstIP == "" {
		spec.DstIP = "172.20.222.2"
	}
	if spec.SrcPort == 0 {
		spec.SrcPort = 5060
	}
	if spec.Protocol == 0 {
		spec.Protocol = layers.IPProtocolUDP
	}

	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55},
		DstMAC:       net.HardwareAddr{0x00, 0xaa, 0xbb, 0xcc, 0xdd, 0xee},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Id:       0x1234,
		Flags:    layers.IPv4DontFragment,
		Protocol: spec.Protocol,
		SrcIP:    net.ParseIP(spec.SrcIP).To4(),
		DstIP:    net.ParseIP(spec.DstIP).To4(),
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{
		FixLengths:       true,
		ComputeChecksums: true,
	}

	var err error
	if spec.Protocol == layers.IPProtocolUDP {
		udp := &layers.UDP{
			SrcPort: layers.UDPPort(spec.SrcPort),
			DstPort: layers.UDPPort(spec.DstPort),
		}
		if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
			return nil, fmt.Errorf("failed to set network layer for checksum: %w", err)
		}
		err = gopacket.SerializeLayers(buf, opts, eth, ip, udp, gopacket.Payload(spec.Payload))
	} else {
		err = gopacket.SerializeLayers(buf, opts, eth, ip, gopacket.Payload(spec.Payload))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to serialize frame: %w", err)
	}

	// The serialize buffer may be reused by gopacket; hand out an owned copy.
	out := make([]byte, len(buf.Bytes()))
	copy(out, buf.Bytes())
	return out, nil
}

// MustBuild is Build that panics on error.
func MustBuild(spec FrameSpec) []byte {
	frame, err := Build(spec)
	if err != nil {
		panic(err)
	}
	return frame
}

// SIPRegister returns a REGISTER request whose Authorization header is folded
// onto a continuation line.
func SIPRegister() string {
	return "REGISTER sip:icom.example SIP/2.0\r\n" +
		"Via: SIP/2.0/UDP 172.20.222.1:5060;branch=z9hG4bK-524287-1\r\n" +
		"Max-Forwards: 70\r\n" +
		"From: <sip:1001@icom.example>;tag=4a5b6c\r\n" +
		"To: <sip:1001@icom.example>\r\n" +
		"Call-ID: 8f1d2c3b@172.20.222.1\r\n" +
		"CSeq: 2 REGISTER\r\n" +
		"Authorization: Digest username=\"1001\",realm=\"icom.example\"\r\n" +
		" nonce=\"a1b2c3\",uri=\"sip:icom.example\",response=\"00ff\"\r\n" +
		"Content-Length: 0\r\n" +
		"\r\n"
}
