package rewriter

import (
	"fmt"

	"firestige.xyz/icom/internal/core"
	"firestige.xyz/icom/internal/core/decoder"
)

// Rewriter joins the first folded header line of a payload onto the line
// before it, replacing the fold's CRLF with ", ".
type Rewriter struct {
	scanCap int
}

// New returns a Rewriter that examines at most scanCap payload bytes.
// A zero scanCap selects DefaultScanCap.
func New(scanCap int) (*Rewriter, error) {
	if scanCap == 0 {
		scanCap = DefaultScanCap
	}
	if scanCap < 0 || scanCap > MaxScanCap {
		return nil, fmt.Errorf("%w: scan cap %d outside 1..%d", core.ErrConfigInvalid, scanCap, MaxScanCap)
	}
	return &Rewriter{scanCap: scanCap}, nil
}

// ScanCap returns the configured scan bound.
func (r *Rewriter) ScanCap() int {
	return r.scanCap
}

// Rewrite looks for the fold in the payload of a classified frame. When found
// it writes ',' and ' ' over the CR and LF, keeps the SP, and zeroes the UDP
// checksum. It returns the payload offset of the SP, or NotFound and false
// with the frame untouched.
func (r *Rewriter) Rewrite(frame []byte, m decoder.Match) (int, bool) {
	if m.PayloadOffset < 0 || m.PayloadOffset > len(frame) {
		return NotFound, false
	}
	payload := frame[m.PayloadOffset:]

	sp := FindCRLFSP(payload, r.scanCap)
	if sp == NotFound {
		return NotFound, false
	}

	// sp >= 2: the CR and LF at sp-2 and sp-1 were consumed by the scan.
	payload[sp-2] = ','
	payload[sp-1] = ' '

	decoder.ClearChecksum(frame, m.UDPOffset)
	return sp, true
}
