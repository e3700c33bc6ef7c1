// Package rewriter merges a folded header line in a classified payload.
package rewriter

const (
	// DefaultScanCap bounds the payload bytes examined per frame.
	DefaultScanCap = 1024
	// MaxScanCap is the largest cap accepted from configuration.
	MaxScanCap = 65535

	// NotFound is returned by FindCRLFSP when the fold is absent.
	NotFound = -1
)

// fold is the sequence that continues a header on the next line.
const fold = "\r\n "

// FindCRLFSP returns the payload index of the SP in the first "\r\n " found
// within the first scanCap bytes of payload, or NotFound.
//
// The matcher keeps one counter of consecutive pattern bytes. A mismatch
// restarts it, re-testing the current byte as a possible CR so that "\r\r\n "
// is found; no other suffix can overlap since CR, LF and SP are distinct.
// The loop runs at most scanCap iterations whatever the payload holds.
func FindCRLFSP(payload []byte, scanCap int) int {
	state := 0
	for i := 0; i < len(payload) && i < scanCap; i++ {
		if payload[i] == fold[state] {
			state++
		} else if payload[i] == fold[0] {
			state = 1
		} else {
			state = 0
		}
		if state == len(fold) {
			return i
		}
	}
	return NotFound
}
