// Package refmgr layers stable, opaque, generation-tagged handles over
// internal/pool's byte allocator. A Handle survives Compact's in-place
// slide: callers hold the Handle, which carries a dense table index,
// rather than a raw pool offset, so the manager is free to relocate the
// bytes a handle refers to. PointerOf does expose the current offset,
// which stays valid only until the next Compact.
package refmgr

import "github.com/shenjiangwei/refheap/internal/pool"

// Handle is a dense table index packed into a single uint32 so it
// stays a scalar: the low 20 bits are the index into the handle
// table, the high 12 bits are a generation counter bumped every time
// that table slot is released. A stale Handle whose generation no
// longer matches its slot's current generation is rejected as
// ErrInvalidHandle rather than silently operating on whatever new
// allocation reused the slot, guarding against double-free and
// use-after-free.
type Handle uint32

const (
	indexBits     = 20
	indexMask     = uint32(1)<<indexBits - 1
	maxGeneration = uint32(1)<<(32-indexBits) - 1
)

// InvalidHandle is a value no live allocation ever produces: every
// index and generation bit set. reserveIndex never hands out the top
// index (indexMask) precisely so that makeHandle can never pack a
// live handle to this value, however its generation happens to land.
const InvalidHandle Handle = 0xFFFFFFFF

func makeHandle(index, generation uint32) Handle {
	return Handle(generation<<indexBits | (index & indexMask))
}

func (h Handle) index() uint32 {
	return uint32(h) & indexMask
}

func (h Handle) generation() uint32 {
	return uint32(h) >> indexBits
}

// slot is one entry of the handle table.
type slot struct {
	live       bool
	generation uint32
	refCount   uint32
	size       uint32
	pointer    uint32 // pool.Alloc's returned userPtr; kept current across Compact
}

// Stats merges the pool's chunk-level counters with the manager's own
// reference and compaction counters.
type Stats struct {
	pool.Stats
	LiveRefs    uint32
	Collections uint64
	Swaps       uint64
	BytesMoved  uint64
}

// Manager owns a pool.Allocator and the handle table layered above it.
// Like the pool it wraps, it is not safe for concurrent use.
type Manager struct {
	pool        *pool.Allocator
	table       []slot
	freeIndices []uint32
	collections uint64
	swaps       uint64
	bytesMoved  uint64
}

// initialTableCapacity avoids the first few table grows under typical
// load, rather than starting from zero.
const initialTableCapacity = 100

// NewManager creates a Manager backed by a fresh pool of size bytes.
func NewManager(size uint32) *Manager {
	return &Manager{
		pool:  pool.New(size),
		table: make([]slot, 0, initialTableCapacity),
	}
}
