// Package core defines core types with zero external dependencies.
package core

// Verdict is the disposition the filter returns for a frame.
type Verdict uint32

// VerdictPass forwards the frame, mutated in place or not. The value matches
// the XDP_PASS action code. There is deliberately no drop or redirect verdict.
const VerdictPass Verdict = 2

func (v Verdict) String() string {
	if v == VerdictPass {
		return "pass"
	}
	return "unknown"
}
