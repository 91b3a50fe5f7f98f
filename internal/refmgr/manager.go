package refmgr

import (
	"math"

	"github.com/shenjiangwei/refheap/internal/pool"
	"github.com/shenjiangwei/refheap/internal/rlog"
)

// AllocRef reserves size bytes from the underlying pool and returns a
// fresh Handle with a reference count of one. It propagates
// pool.ErrOutOfMemory unchanged when the pool cannot satisfy the
// request.
func (m *Manager) AllocRef(size uint32) (Handle, error) {
	if size < 4 {
		return InvalidHandle, ErrRequestTooSmall
	}

	ptr, err := m.pool.Alloc(size)
	if err != nil {
		return InvalidHandle, err
	}

	idx, err := m.reserveIndex()
	if err != nil {
		m.pool.Free(ptr)
		return InvalidHandle, err
	}

	s := &m.table[idx]
	s.live = true
	s.refCount = 1
	s.size = size
	s.pointer = ptr

	h := makeHandle(idx, s.generation)
	rlog.Debug("refmgr", "allocated ref", map[string]any{"handle": uint32(h), "size": size})
	return h, nil
}

// reserveIndex returns a table index for a new allocation, reusing a
// freed slot when one is available so the table stays dense. The top
// index (indexMask) is never handed out: reserving it would let
// makeHandle produce a live Handle equal to InvalidHandle once that
// slot's generation counter also reached its own maximum, so the
// table's usable capacity is one entry short of what the index field
// could otherwise address.
func (m *Manager) reserveIndex() (uint32, error) {
	if n := len(m.freeIndices); n > 0 {
		idx := m.freeIndices[n-1]
		m.freeIndices = m.freeIndices[:n-1]
		return idx, nil
	}
	idx := uint32(len(m.table))
	if idx >= indexMask {
		return 0, ErrTableExhausted
	}
	m.table = append(m.table, slot{})
	return idx, nil
}

// resolve validates h against the table and returns its slot, or
// ErrInvalidHandle if h is stale, out of range, or already freed.
func (m *Manager) resolve(h Handle) (*slot, error) {
	idx := h.index()
	if int(idx) >= len(m.table) {
		return nil, ErrInvalidHandle
	}
	s := &m.table[idx]
	if !s.live || s.generation != h.generation() {
		return nil, ErrInvalidHandle
	}
	return s, nil
}

// IncrRef increments h's reference count, saturating (never wrapping)
// at math.MaxUint32-1.
func (m *Manager) IncrRef(h Handle) error {
	s, err := m.resolve(h)
	if err != nil {
		return err
	}
	if s.refCount >= math.MaxUint32-1 {
		return ErrRefCountSaturated
	}
	s.refCount++
	return nil
}

// DecrRef decrements h's reference count. It returns true if the
// referenced allocation is still alive afterward, false if the count
// reached zero and the underlying pool chunk was released.
func (m *Manager) DecrRef(h Handle) (bool, error) {
	s, err := m.resolve(h)
	if err != nil {
		return false, err
	}
	s.refCount--
	if s.refCount > 0 {
		return true, nil
	}
	m.release(h.index(), s)
	return false, nil
}

// FreeRef releases h's allocation unconditionally, regardless of its
// current reference count.
func (m *Manager) FreeRef(h Handle) error {
	s, err := m.resolve(h)
	if err != nil {
		return err
	}
	m.release(h.index(), s)
	return nil
}

// release frees the pool chunk backing s, retires its table slot and
// bumps its generation so any outstanding Handle referring to it is
// rejected by resolve from now on.
func (m *Manager) release(idx uint32, s *slot) {
	if err := m.pool.Free(s.pointer); err != nil {
		rlog.Error("refmgr", "pool free failed for live handle", map[string]any{"index": idx, "error": err.Error()})
	}
	s.live = false
	s.refCount = 0
	s.pointer = 0
	if s.generation < maxGeneration {
		s.generation++
	} else {
		s.generation = 0
	}
	m.freeIndices = append(m.freeIndices, idx)
}

// PointerOf returns the pool offset currently backing h. It is only
// stable until the next Compact call.
func (m *Manager) PointerOf(h Handle) (uint32, error) {
	s, err := m.resolve(h)
	if err != nil {
		return 0, err
	}
	return s.pointer, nil
}

// SizeOf returns the byte size requested when h was allocated.
func (m *Manager) SizeOf(h Handle) (uint32, error) {
	s, err := m.resolve(h)
	if err != nil {
		return 0, err
	}
	return s.size, nil
}

// RefCountOf returns h's current reference count.
func (m *Manager) RefCountOf(h Handle) (uint32, error) {
	s, err := m.resolve(h)
	if err != nil {
		return 0, err
	}
	return s.refCount, nil
}

// Pool returns the underlying allocator, for callers layered above
// refmgr that need read-only structural access to it (internal/
// integrity's checker).
func (m *Manager) Pool() *pool.Allocator {
	return m.pool
}

// Stats returns a snapshot combining the pool's chunk-level counters
// with the manager's own reference and compaction counters.
func (m *Manager) Stats() Stats {
	var live uint32
	for i := range m.table {
		if m.table[i].live {
			live++
		}
	}
	return Stats{
		Stats:       m.pool.Stats(),
		LiveRefs:    live,
		Collections: m.collections,
		Swaps:       m.swaps,
		BytesMoved:  m.bytesMoved,
	}
}
