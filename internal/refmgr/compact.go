package refmgr

import "github.com/shenjiangwei/refheap/internal/rlog"

// Compact runs a stop-the-world compaction pass: every live handle's
// chunk is stamped with its table index so it can be re-identified
// after relocation, the pool is asked to slide its used chunks down
// to eliminate fragmentation, and every handle's recorded pointer is
// rewritten to match where its bytes ended up. No Handle a caller
// holds changes value; only what it resolves to moves.
//
// Compact propagates pool.ErrCompactionInvariant unchanged if the
// pool refuses to finish the slide; every live pointer is already
// unstamped and up to date by the time that can happen, but the
// manager's collection counters are left untouched and the caller
// should treat the failure as fatal.
func (m *Manager) Compact() error {
	saved := make(map[uint32]uint32, len(m.table))
	for idx := range m.table {
		s := &m.table[idx]
		if !s.live {
			continue
		}
		saved[uint32(idx)] = m.pool.PeekWord(s.pointer)
		m.pool.PokeWord(s.pointer, uint32(idx))
	}

	var moved, bytesMoved uint32
	err := m.pool.Compact(func(oldPtr, newPtr uint32) {
		idx := m.pool.PeekWord(newPtr)
		orig, ok := saved[idx]
		if !ok {
			// A used chunk with no matching stamp means the pool has a
			// live chunk this manager never allocated through AllocRef;
			// that is a caller bug, not a compaction failure, and there
			// is nothing to unstamp.
			return
		}
		m.pool.PokeWord(newPtr, orig)

		s := &m.table[idx]
		s.pointer = newPtr
		if newPtr != oldPtr {
			moved++
			bytesMoved += s.size
		}
	})
	if err != nil {
		rlog.Error("refmgr", "compaction aborted", map[string]any{"error": err.Error()})
		return err
	}

	m.collections++
	m.swaps += uint64(moved)
	m.bytesMoved += uint64(bytesMoved)

	rlog.Debug("refmgr", "compaction pass complete", map[string]any{
		"moved": moved, "bytesMoved": bytesMoved,
	})
	return nil
}
