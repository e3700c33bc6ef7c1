package rewriter

import (
	"bytes"
	"testing"
)

func TestFindCRLFSP(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    int
	}{
		{"empty", "", NotFound},
		{"no fold", "Header: v1\r\nHeader2: v2\r\n\r\n", NotFound},
		{"fold", "Header: v1\r\n Header2: v2\r\n\r\n", 12},
		{"fold at start", "\r\n x", 2},
		{"first of two", "a\r\n b\r\n c", 3},
		{"double CR", "a\r\r\n b", 4},
		{"CR LF CR LF SP", "a\r\n\r\n b", 5},
		{"LF SP only", "a\n b", NotFound},
		{"CR SP only", "a\r b", NotFound},
		{"tab continuation", "a\r\n\tb", NotFound},
		{"truncated pattern", "abc\r\n", NotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FindCRLFSP([]byte(tt.payload), DefaultScanCap)
			if got != tt.want {
				t.Errorf("FindCRLFSP(%q) = %d, expected %d", tt.payload, got, tt.want)
			}
		})
	}
}

// The SP may sit at index cap-1 but not at cap.
func TestFindCRLFSPCapBoundary(t *testing.T) {
	const scanCap = DefaultScanCap

	build := func(sp int) []byte {
		payload := bytes.Repeat([]byte{'a'}, scanCap+16)
		copy(payload[sp-2:], "\r\n ")
		return payload
	}

	if got := FindCRLFSP(build(scanCap-1), scanCap); got != scanCap-1 {
		t.Errorf("SP at cap-1: expected %d, got %d", scanCap-1, got)
	}
	if got := FindCRLFSP(build(scanCap), scanCap); got != NotFound {
		t.Errorf("SP at cap: expected NotFound, got %d", got)
	}
}

func TestFindCRLFSPRespectsSmallCap(t *testing.T) {
	payload := []byte("abcdef\r\n x")
	if got := FindCRLFSP(payload, 8); got != NotFound {
		t.Errorf("cap 8: expected NotFound, got %d", got)
	}
	if got := FindCRLFSP(payload, 9); got != 8 {
		t.Errorf("cap 9: expected 8, got %d", got)
	}
	if got := FindCRLFSP(payload, 0); got != NotFound {
		t.Errorf("cap 0: expected NotFound, got %d", got)
	}
}

// A payload made only of pattern prefixes never completes and never runs past
// the cap.
func TestFindCRLFSPAdversarial(t *testing.T) {
	payload := bytes.Repeat([]byte("\r\n\r"), 100000)
	if got := FindCRLFSP(payload, DefaultScanCap); got != NotFound {
		t.Errorf("expected NotFound, got %d", got)
	}
}

func BenchmarkFindCRLFSPWorstCase(b *testing.B) {
	payload := bytes.Repeat([]byte{'\r'}, DefaultScanCap*2)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if FindCRLFSP(payload, DefaultScanCap) != NotFound {
			b.Fatal("unexpected match")
		}
	}
}
