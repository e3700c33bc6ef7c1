package sink

import (
	"encoding/binary"
	"fmt"
	"net/netip"
	"time"
)

// HEPv3 (Homer Encapsulation Protocol) frame:
//
//	0  4  "HEP3"
//	4  2  total length, big-endian, header included
//	6  .  chunks: vendor(2) type(2) length(2, header included) value
const (
	hepMagic       = "HEP3"
	chunkHeaderLen = 6
	vendorHOMER    = uint16(0x0000)
)

const (
	chunkIPFamily  = uint16(1)
	chunkIPProto   = uint16(2)
	chunkSrcIPv4   = uint16(3)
	chunkDstIPv4   = uint16(4)
	chunkSrcPort   = uint16(7)
	chunkDstPort   = uint16(8)
	chunkTimeSec   = uint16(9)
	chunkTimeUsec  = uint16(10)
	chunkProtoType = uint16(11)
	chunkCaptureID = uint16(12)
	chunkAuthKey   = uint16(14)
	chunkPayload   = uint16(15)
	chunkNodeName  = uint16(19)
)

const (
	ipFamilyV4   = uint8(2)
	protoTypeSIP = uint8(1)
)

// hepRecord is the part of a UDP frame a HEP collector needs.
type hepRecord struct {
	Timestamp time.Time
	SrcIP     netip.Addr
	DstIP     netip.Addr
	SrcPort   uint16
	DstPort   uint16
	Protocol  uint8
	ProtoType uint8 // 0 when the payload is not SIP
	Payload   []byte
}

type hepEncodeOptions struct {
	CaptureID uint32
	AuthKey   string
	NodeName  string
}

// encodeHEP serialises rec into a new HEPv3 frame.
func encodeHEP(rec hepRecord, opts hepEncodeOptions) ([]byte, error) {
	if !rec.SrcIP.Is4() || !rec.DstIP.Is4() {
		return nil, fmt.Errorf("hep: only IPv4 records are encoded")
	}

	buf := make([]byte, 0, 128+len(rec.Payload))
	buf = append(buf, hepMagic...)
	buf = append(buf, 0, 0)

	buf = appendUint8(buf, chunkIPFamily, ipFamilyV4)
	buf = appendUint8(buf, chunkIPProto, rec.Protocol)
	src4, dst4 := rec.SrcIP.As4(), rec.DstIP.As4()
	buf = appendBytes(buf, chunkSrcIPv4, src4[:])
	buf = appendBytes(buf, chunkDstIPv4, dst4[:])
	buf = appendUint16(buf, chunkSrcPort, rec.SrcPort)
	buf = appendUint16(buf, chunkDstPort, rec.DstPort)

	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	buf = appendUint32(buf, chunkTimeSec, uint32(ts.Unix()))
	buf = appendUint32(buf, chunkTimeUsec, uint32(ts.Nanosecond()/1_000))

	buf = appendUint8(buf, chunkProtoType, rec.ProtoType)
	buf = appendUint32(buf, chunkCaptureID, opts.CaptureID)
	if opts.AuthKey != "" {
		buf = appendBytes(buf, chunkAuthKey, []byte(opts.AuthKey))
	}
	if len(rec.Payload) > 0 {
		buf = appendBytes(buf, chunkPayload, rec.Payload)
	}
	if opts.NodeName != "" {
		buf = appendBytes(buf, chunkNodeName, []byte(opts.NodeName))
	}

	if len(buf) > 0xFFFF {
		return nil, fmt.Errorf("hep: frame too large (%d bytes, max 65535)", len(buf))
	}
	binary.BigEndian.PutUint16(buf[4:6], uint16(len(buf)))
	return buf, nil
}

func appendChunkHeader(buf []byte, chunkType uint16, valueLen int) []byte {
	var h [chunkHeaderLen]byte
	binary.BigEndian.PutUint16(h[0:2], vendorHOMER)
	binary.BigEndian.PutUint16(h[2:4], chunkType)
	binary.BigEndian.PutUint16(h[4:6], uint16(chunkHeaderLen+valueLen))
	return append(buf, h[:]...)
}

func appendBytes(buf []byte, chunkType uint16, value []byte) []byte {
	buf = appendChunkHeader(buf, chunkType, len(value))
	return append(buf, value...)
}

func appendUint8(buf []byte, chunkType uint16, value uint8) []byte {
	buf = appendChunkHeader(buf, chunkType, 1)
	return append(buf, value)
}

func appendUint16(buf []byte, chunkType uint16, value uint16) []byte {
	buf = appendChunkHeader(buf, chunkType, 2)
	return binary.BigEndian.AppendUint16(buf, value)
}

func appendUint32(buf []byte, chunkType uint16, value uint32) []byte {
	buf = appendChunkHeader(buf, chunkType, 4)
	return binary.BigEndian.AppendUint32(buf, value)
}
