// Package core defines core data structures with zero external dependencies.
package core

import "time"

// RawPacket is a frame handed to the filter by a source.
type RawPacket struct {
	Data           []byte    // Raw frame data
	Timestamp      time.Time // Capture timestamp (kernel timestamp preferred)
	CaptureLen     uint32    // Actual captured length
	OrigLen        uint32    // Original frame length
	InterfaceIndex int       // Network interface index
	Rewritten      bool      // Set by the pipeline when the filter mutated Data
}

// Clone returns a copy of p that owns its data.
// Zero-copy ring-buffer frames are only valid until the next read.
func (p RawPacket) Clone() RawPacket {
	data := make([]byte, len(p.Data))
	copy(data, p.Data)
	p.Data = data
	return p
}
