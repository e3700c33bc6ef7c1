package afpacket

import (
	"fmt"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	"golang.org/x/net/bpf"
)

// recomputeSize derives a TPACKET_V3 ring geometry from a memory budget.
//
// PACKET_MMAP requires the frame size to be a multiple of TPACKET_ALIGNMENT,
// the block size to be a multiple of both the page size and the frame size,
// and blockSize*numBlocks approximates the budget.
func recomputeSize(ringBufferSizeMB, snapLen, pageSize int) (frameSize, blockSize, numBlocks int, err error) {
	const tpacketAlignment = 16
	const tpacketHdrLen = 52 // TPACKET3_HDRLEN, rounded
	const maxBlockSize = 4 * 1024 * 1024

	if ringBufferSizeMB <= 0 {
		return 0, 0, 0, fmt.Errorf("ring buffer size must be positive, got %d MB", ringBufferSizeMB)
	}
	if snapLen <= 0 {
		return 0, 0, 0, fmt.Errorf("snap length must be positive, got %d", snapLen)
	}
	if pageSize <= 0 || pageSize%tpacketAlignment != 0 {
		return 0, 0, 0, fmt.Errorf("page size must be a positive multiple of %d, got %d", tpacketAlignment, pageSize)
	}

	frameSize = alignUp(tpacketHdrLen+snapLen, tpacketAlignment)

	blockSize = lcm(pageSize, frameSize)
	if blockSize > maxBlockSize {
		// Page-align the frame so any whole number of frames is also a
		// whole number of pages.
		frameSize = alignUp(frameSize, pageSize)
		framesPerBlock := maxBlockSize / frameSize
		if framesPerBlock < 1 {
			framesPerBlock = 1
		}
		blockSize = framesPerBlock * frameSize
	}

	numBlocks = ringBufferSizeMB * 1024 * 1024 / blockSize
	if numBlocks < 1 {
		numBlocks = 1
	}
	return frameSize, blockSize, numBlocks, nil
}

func alignUp(n, align int) int {
	return (n + align - 1) / align * align
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func lcm(a, b int) int {
	if a == 0 || b == 0 {
		return 0
	}
	return a / gcd(a, b) * b
}

// compileBPF compiles a tcpdump-style expression for Ethernet frames into
// raw instructions accepted by TPacket.SetBPF. pcap.BPFInstruction and
// bpf.RawInstruction share a layout: Code maps to Op.
func compileBPF(expr string, snapLen int) ([]bpf.RawInstruction, error) {
	insns, err := pcap.CompileBPFFilter(layers.LinkTypeEthernet, snapLen, expr)
	if err != nil {
		return nil, fmt.Errorf("failed to compile BPF filter %q: %w", expr, err)
	}

	raw := make([]bpf.RawInstruction, len(insns))
	for i, insn := range insns {
		raw[i] = bpf.RawInstruction{
			Op: insn.Code,
			Jt: insn.Jt,
			Jf: insn.Jf,
			K:  insn.K,
		}
	}
	return raw, nil
}
