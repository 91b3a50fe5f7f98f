package pool

import "encoding/binary"

// Chunk headers, footers and free-list links are stored as little
// endian uint32 words directly in the pool's byte slice, offset from
// the pool base: free-list links are pool offsets translated through
// an index-to-byte helper rather than raw pointers. There is
// deliberately no unsafe.Pointer view here: the pool is an ordinary Go
// []byte owned by the Allocator, not an external memory-mapped
// region.

const sizeMask = ^uint32(1)

func (a *Allocator) readWord(off uint32) uint32 {
	return binary.LittleEndian.Uint32(a.mem[off : off+WordSize])
}

func (a *Allocator) writeWord(off, v uint32) {
	binary.LittleEndian.PutUint32(a.mem[off:off+WordSize], v)
}

// size returns the chunk size stored at off, with the prevUsed flag
// bit masked off.
func (a *Allocator) size(off uint32) uint32 {
	return a.readWord(off) & sizeMask
}

// prevUsed reports whether the chunk's physical predecessor is
// currently used.
func (a *Allocator) prevUsed(off uint32) bool {
	return a.readWord(off)&1 == 1
}

// setPrevUsed rewrites only the flag bit of the header word at off,
// leaving the size untouched.
func (a *Allocator) setPrevUsed(off uint32, used bool) {
	w := a.readWord(off) &^ 1
	if used {
		w |= 1
	}
	a.writeWord(off, w)
}

// writeUsed stamps off as the header of a used chunk of the given
// size, preserving no footer (used chunks carry none).
func (a *Allocator) writeUsed(off, size uint32, prevUsed bool) {
	w := size &^ 1
	if prevUsed {
		w |= 1
	}
	a.writeWord(off, w)
}

// writeFree stamps off as the header and footer of a free chunk of the
// given size. The footer is the flag-free size copy at the chunk's
// last word, letting the following chunk locate this one by reading
// backward.
func (a *Allocator) writeFree(off, size uint32, prevUsed bool) {
	a.writeUsed(off, size, prevUsed)
	a.writeWord(off+size-WordSize, size&sizeMask)
}

func (a *Allocator) nextLink(off uint32) uint32 {
	return a.readWord(off + WordSize)
}

func (a *Allocator) setNextLink(off, v uint32) {
	a.writeWord(off+WordSize, v)
}

func (a *Allocator) prevLink(off uint32) uint32 {
	return a.readWord(off + 2*WordSize)
}

func (a *Allocator) setPrevLink(off, v uint32) {
	a.writeWord(off+2*WordSize, v)
}

// footerSize reads the boundary-tag footer immediately preceding off,
// i.e. the size of the chunk physically ending at off. Only valid to
// call when the physical predecessor of the chunk starting at off is
// free.
func (a *Allocator) footerSize(off uint32) uint32 {
	return a.readWord(off - WordSize)
}

// nextChunk returns the offset of the chunk physically following off,
// and false if off is the last chunk in the pool.
func (a *Allocator) nextChunk(off uint32) (uint32, bool) {
	n := off + a.size(off)
	if n >= uint32(len(a.mem)) {
		return 0, false
	}
	return n, true
}

// prevChunkIfFree returns the offset of the physical predecessor of
// off when that predecessor is free, and false otherwise (predecessor
// used, or off is the first chunk).
func (a *Allocator) prevChunkIfFree(off uint32) (uint32, bool) {
	if off == 0 || a.prevUsed(off) {
		return 0, false
	}
	size := a.footerSize(off)
	return off - size, true
}

// isUsed reports whether the chunk at off is currently used, by
// consulting its successor's prevUsed bit (or finalPrevUsed when off
// is the last chunk). A chunk's own header only records the status of
// its predecessor, not itself — this indirection is what lets free
// chunks skip a used/free bit of their own.
func (a *Allocator) isUsed(off uint32) bool {
	if next, ok := a.nextChunk(off); ok {
		return a.prevUsed(next)
	}
	return a.finalPrevUsed
}

// insertFree links the free chunk at off into its size bin's circular
// doubly-linked list and makes it the bin's head, so the most recently
// freed chunk is the first one findFit examines in that bin.
func (a *Allocator) insertFree(off uint32) {
	idx := binIndex(a.size(off))
	head := a.bins[idx]
	if head == InvalidOffset {
		a.bins[idx] = off
		a.setNextLink(off, off)
		a.setPrevLink(off, off)
		return
	}
	tail := a.nextLink(head)
	a.setPrevLink(off, head)
	a.setNextLink(off, tail)
	a.setPrevLink(tail, off)
	a.setNextLink(head, off)
	a.bins[idx] = off
}

// removeFree unlinks the free chunk at off from its bin, leaving its
// own next/prev words stale (the caller is about to overwrite the
// chunk's header anyway).
func (a *Allocator) removeFree(off uint32) {
	idx := binIndex(a.size(off))
	if a.bins[idx] == off {
		if a.nextLink(off) == off {
			a.bins[idx] = InvalidOffset
		} else {
			a.bins[idx] = a.nextLink(off)
		}
	}
	next, prev := a.nextLink(off), a.prevLink(off)
	a.setPrevLink(next, prev)
	a.setNextLink(prev, next)
}

// findFit performs a first-fit-within-bin search: starting at the bin
// sized for need, scan bins upward and return the first chunk in any
// of them whose size is at least need.
func (a *Allocator) findFit(need uint32) (uint32, bool) {
	for idx := binIndex(need); idx < NumBins; idx++ {
		head := a.bins[idx]
		if head == InvalidOffset {
			continue
		}
		cur := head
		for {
			if a.size(cur) >= need {
				return cur, true
			}
			cur = a.nextLink(cur)
			if cur == head {
				break
			}
		}
	}
	return 0, false
}
