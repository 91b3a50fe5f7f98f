package integrity

import (
	"fmt"

	"github.com/shenjiangwei/refheap/internal/pool"
)

// Check walks a in offset order and verifies chunk sizes, free-chunk
// footers, pool coverage, the Stats totals, FinalPrevUsed and bin
// membership and backlinks. It does not check that no two free chunks
// are adjacent, nor the first chunk's prevUsed bit. It never mutates a and
// returns nil once the pool is found well-formed; otherwise it
// returns the first violation found, as an *Error, in traversal order
// (physical layout, then bin order).
func Check(a *pool.Allocator) error {
	chunks := a.Chunks()
	total := a.Size()
	stats := a.Stats()

	var covered, usedBlocks, freeBlocks, usedMem, freeMem uint32
	lastUsed := true
	byOffset := make(map[uint32]pool.ChunkInfo, len(chunks))

	for _, c := range chunks {
		if c.Size == 0 || c.Size%2 != 0 || c.Size < pool.MinFreeSize {
			return &Error{Code: CodeBadChunkSize, Detail: fmt.Sprintf("chunk at offset %d has size %d", c.Offset, c.Size)}
		}
		if !c.Used && c.FooterSize != c.Size {
			return &Error{Code: CodeFooterMismatch, Detail: fmt.Sprintf("chunk at offset %d: header size %d, footer size %d", c.Offset, c.Size, c.FooterSize)}
		}

		covered += c.Size
		if c.Used {
			usedBlocks++
			usedMem += c.Size
		} else {
			freeBlocks++
			freeMem += c.Size
		}
		lastUsed = c.Used
		byOffset[c.Offset] = c
	}

	if covered != total {
		return &Error{Code: CodeBadPoolCoverage, Detail: fmt.Sprintf("chunks cover %d bytes but pool is %d", covered, total)}
	}
	if usedBlocks != stats.UsedBlocks || freeBlocks != stats.FreeBlocks || usedMem != stats.UsedMem || freeMem != stats.FreeMem {
		return &Error{Code: CodeTotalMismatch, Detail: fmt.Sprintf(
			"traversal used=%d/%dB free=%d/%dB disagrees with stats used=%d/%dB free=%d/%dB",
			usedBlocks, usedMem, freeBlocks, freeMem, stats.UsedBlocks, stats.UsedMem, stats.FreeBlocks, stats.FreeMem)}
	}
	if len(chunks) > 0 && a.FinalPrevUsed() != lastUsed {
		return &Error{Code: CodeFinalPrevUsed, Detail: fmt.Sprintf("FinalPrevUsed=%v but last chunk used=%v", a.FinalPrevUsed(), lastUsed)}
	}

	seen := make(map[uint32]bool, freeBlocks)
	for idx := 0; idx < pool.NumBins; idx++ {
		for _, off := range a.BinOffsets(idx) {
			c, ok := byOffset[off]
			if !ok || c.Used {
				return &Error{Code: CodeWrongBin, Detail: fmt.Sprintf("bin %d links offset %d, which is not a free chunk", idx, off)}
			}
			if pool.BinIndexForSize(c.Size) != idx {
				return &Error{Code: CodeWrongBin, Detail: fmt.Sprintf("chunk at %d (size %d) belongs in bin %d, found in bin %d", off, c.Size, pool.BinIndexForSize(c.Size), idx)}
			}
			if !a.BinBacklinkOK(off) {
				return &Error{Code: CodeBadBacklink, Detail: fmt.Sprintf("chunk at %d disagrees with its predecessor in bin %d", off, idx)}
			}
			if seen[off] {
				return &Error{Code: CodeWrongBin, Detail: fmt.Sprintf("chunk at %d linked into more than one bin", off)}
			}
			seen[off] = true
		}
	}
	if len(seen) != int(freeBlocks) {
		return &Error{Code: CodeWrongBin, Detail: fmt.Sprintf("%d free chunks exist but only %d are reachable through the bins", freeBlocks, len(seen))}
	}

	return nil
}
