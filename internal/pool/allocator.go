package pool

import "github.com/shenjiangwei/refheap/internal/rlog"

// New creates an Allocator managing a freshly zeroed pool of size
// bytes. The whole of size is usable; finalPrevUsed is tracked
// out-of-band from the start rather than sacrificing a trailing byte
// to a sentinel chunk. Chunk sizes must be even, so an odd size is
// rounded down by one byte; that byte is unrecoverable overhead,
// logged once at construction.
func New(size uint32) *Allocator {
	if size < MinFreeSize+WordSize {
		panic("pool: size must be at least MinFreeSize+WordSize bytes")
	}

	usable := size &^ 1
	if usable != size {
		rlog.Warn("pool", "pool size rounded down to keep chunk sizes even", map[string]any{
			"requested": size, "usable": usable,
		})
	}

	a := &Allocator{mem: make([]byte, usable)}
	for i := range a.bins {
		a.bins[i] = InvalidOffset
	}

	a.writeFree(0, usable, true)
	a.finalPrevUsed = false
	a.insertFree(0)
	a.stats.FreeBlocks = 1
	a.stats.FreeMem = usable

	rlog.Debug("pool", "allocator initialized", map[string]any{"size": usable})
	return a
}

// Size returns the total number of bytes managed by the pool.
func (a *Allocator) Size() uint32 {
	return uint32(len(a.mem))
}

// Stats returns a snapshot of the allocator's running counters.
func (a *Allocator) Stats() Stats {
	return a.stats
}

// Alloc reserves a chunk able to hold nBytes of client data and
// returns the offset of its first user-visible byte (the header sits
// immediately before it). It returns ErrOutOfMemory if no bin holds a
// large enough chunk; Alloc never panics on OOM.
func (a *Allocator) Alloc(nBytes uint32) (uint32, error) {
	need := roundEven(nBytes + WordSize)
	if need < MinFreeSize {
		need = MinFreeSize
	}

	winner, ok := a.findFit(need)
	if !ok {
		a.stats.Fails++
		rlog.Debug("pool", "allocation failed, no fitting bin", map[string]any{"requested": nBytes, "need": need})
		return InvalidOffset, ErrOutOfMemory
	}

	a.removeFree(winner)
	size := a.size(winner)
	origPrevUsed := a.prevUsed(winner)
	origEnd := winner + size

	var usedOffset, usedSize uint32
	if size-need >= MinFreeSize {
		// Tail-split: the used chunk is carved from the high end so the
		// free remainder keeps the winner's base, and thus its header
		// position, unchanged; its footer moves down to the remainder's
		// new last word.
		// One free chunk (the winner) is replaced by one free chunk
		// (the remainder) plus a used chunk: FreeBlocks does not change.
		usedOffset = winner + (size - need)
		usedSize = need
		a.writeUsed(usedOffset, usedSize, false)
		a.writeFree(winner, size-need, origPrevUsed)
		a.insertFree(winner)
	} else {
		// The winner is consumed whole: one free chunk becomes zero.
		usedOffset = winner
		usedSize = size
		a.writeUsed(usedOffset, usedSize, origPrevUsed)
		a.stats.FreeBlocks--
	}

	if origEnd < uint32(len(a.mem)) {
		a.setPrevUsed(origEnd, true)
	} else {
		a.finalPrevUsed = true
	}

	a.stats.Allocations++
	a.stats.UsedBlocks++
	a.stats.UsedMem += usedSize
	a.stats.FreeMem -= usedSize

	rlog.Debug("pool", "allocated chunk", map[string]any{"requested": nBytes, "size": usedSize, "offset": usedOffset})
	return usedOffset + WordSize, nil
}

// Free releases the chunk whose user area begins at userPtr (the
// value previously returned by Alloc), coalescing it with any free
// physical neighbors.
func (a *Allocator) Free(userPtr uint32) error {
	if userPtr < WordSize || userPtr > uint32(len(a.mem)) {
		return ErrInvalidAddress
	}
	off := userPtr - WordSize

	size := a.size(off)
	origPrevUsed := a.prevUsed(off)
	a.writeFree(off, size, origPrevUsed)

	if next, ok := a.nextChunk(off); ok {
		a.setPrevUsed(next, false)
	} else {
		a.finalPrevUsed = false
	}
	a.insertFree(off)

	a.stats.Frees++
	a.stats.UsedBlocks--
	a.stats.FreeBlocks++
	a.stats.UsedMem -= size
	a.stats.FreeMem += size

	if next, ok := a.nextChunk(off); ok && !a.isUsed(next) {
		off = a.mergeSecondIntoFirst(off, next)
	}
	if prev, ok := a.prevChunkIfFree(off); ok {
		off = a.mergeSecondIntoFirst(prev, off)
	}

	rlog.Debug("pool", "freed chunk", map[string]any{"size": size, "offset": off})
	return nil
}

// PeekWord returns the first user-visible word of the chunk at userPtr,
// the value previously returned by Alloc. It is exported solely for
// internal/refmgr's compaction stamp/unstamp phases, which need to
// tag a chunk with its owning handle before a slide and recover the
// original word afterward.
func (a *Allocator) PeekWord(userPtr uint32) uint32 {
	return a.readWord(userPtr)
}

// PokeWord overwrites the first user-visible word of the chunk at
// userPtr. See PeekWord.
func (a *Allocator) PokeWord(userPtr uint32, v uint32) {
	a.writeWord(userPtr, v)
}

// Compact performs an in-place sliding compaction: every used chunk is
// packed down to the low end of the pool in its original relative
// order, eliminating
// every free gap, and the space recovered is left as a single free
// chunk at the tail (or no free chunk at all, if the pool is now
// completely full). onMove, if non-nil, is invoked once per used
// chunk after its bytes have already been relocated, with the user
// pointer it had before and after the move (equal if the chunk did
// not move), so a caller layered above the pool can fix up pointer
// bookkeeping of its own — this is how internal/refmgr keeps its
// handle table's recorded pointers in sync with the slide.
//
// Compact does not touch the stamp/unstamp of chunk contents; a
// caller that needs to recover chunk identity across the slide (as
// internal/refmgr does, since a used chunk's bytes are opaque to the
// pool) must stamp before calling Compact and unstamp inside onMove.
//
// Compact returns ErrCompactionInvariant, without writing the
// trailing free chunk, if the bytes recovered by the slide would form
// a chunk smaller than MinFreeSize. Every used chunk has already been
// relocated and had onMove called for it by the time this can be
// detected, so the pool's used region is left correctly packed; only
// the tail bookkeeping is skipped, and the allocator should be
// treated as unusable afterward.
func (a *Allocator) Compact(onMove func(oldPtr, newPtr uint32)) error {
	for i := range a.bins {
		a.bins[i] = InvalidOffset
	}

	n := uint32(len(a.mem))
	var src, dst, usedBlocks uint32
	for src < n {
		size := a.size(src)
		used := a.isUsed(src)
		if used {
			if dst != src {
				copy(a.mem[dst:dst+size], a.mem[src:src+size])
			}
			a.writeUsed(dst, size, true)
			usedBlocks++
			if onMove != nil {
				onMove(src+WordSize, dst+WordSize)
			}
			dst += size
		}
		src += size
	}

	if tail := n - dst; tail > 0 {
		if tail < MinFreeSize {
			rlog.Error("pool", "compaction produced an undersized trailing free chunk", map[string]any{"tailBytes": tail})
			return ErrCompactionInvariant
		}
		a.writeFree(dst, tail, true)
		a.insertFree(dst)
		a.finalPrevUsed = false
		a.stats.FreeBlocks = 1
		a.stats.FreeMem = tail
	} else {
		a.finalPrevUsed = true
		a.stats.FreeBlocks = 0
		a.stats.FreeMem = 0
	}
	a.stats.UsedBlocks = usedBlocks
	a.stats.UsedMem = dst

	rlog.Debug("pool", "compaction complete", map[string]any{"usedBlocks": usedBlocks, "usedBytes": dst})
	return nil
}

// mergeSecondIntoFirst absorbs the chunk at second into the chunk at
// first, both of which must currently be free and physically adjacent
// with first preceding second. It returns first's offset, now heading
// a single larger free chunk.
func (a *Allocator) mergeSecondIntoFirst(first, second uint32) uint32 {
	a.removeFree(first)
	a.removeFree(second)

	prevUsed := a.prevUsed(first)
	newSize := a.size(first) + a.size(second)
	a.writeFree(first, newSize, prevUsed)
	a.insertFree(first)

	a.stats.FreeBlocks--
	a.stats.Merges++
	return first
}
