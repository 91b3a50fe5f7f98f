package refmgr

import (
	"testing"

	"github.com/shenjiangwei/refheap/internal/pool"
)

func TestAllocRefIncrDecr(t *testing.T) {
	m := NewManager(1024)

	h, err := m.AllocRef(40)
	if err != nil {
		t.Fatalf("AllocRef: %v", err)
	}

	if err := m.IncrRef(h); err != nil {
		t.Fatalf("IncrRef: %v", err)
	}
	if rc, err := m.RefCountOf(h); err != nil || rc != 2 {
		t.Fatalf("expected refcount 2, got %d, err %v", rc, err)
	}

	alive, err := m.DecrRef(h)
	if err != nil {
		t.Fatalf("DecrRef: %v", err)
	}
	if !alive {
		t.Fatal("expected handle to remain alive after first decr")
	}

	alive, err = m.DecrRef(h)
	if err != nil {
		t.Fatalf("DecrRef: %v", err)
	}
	if alive {
		t.Fatal("expected handle to die on second decr")
	}

	if _, err := m.PointerOf(h); err != ErrInvalidHandle {
		t.Fatalf("expected ErrInvalidHandle after death, got %v", err)
	}
}

func TestFreeRefIgnoresRefCount(t *testing.T) {
	m := NewManager(1024)
	h, err := m.AllocRef(16)
	if err != nil {
		t.Fatalf("AllocRef: %v", err)
	}
	if err := m.IncrRef(h); err != nil {
		t.Fatalf("IncrRef: %v", err)
	}
	if err := m.IncrRef(h); err != nil {
		t.Fatalf("IncrRef: %v", err)
	}

	if err := m.FreeRef(h); err != nil {
		t.Fatalf("FreeRef: %v", err)
	}
	if _, err := m.RefCountOf(h); err != ErrInvalidHandle {
		t.Fatalf("expected handle dead despite refcount 3, got %v", err)
	}
}

func TestStaleHandleAfterSlotReuseIsRejected(t *testing.T) {
	m := NewManager(1024)

	h1, err := m.AllocRef(16)
	if err != nil {
		t.Fatalf("AllocRef h1: %v", err)
	}
	if err := m.FreeRef(h1); err != nil {
		t.Fatalf("FreeRef h1: %v", err)
	}

	h2, err := m.AllocRef(16)
	if err != nil {
		t.Fatalf("AllocRef h2: %v", err)
	}

	if h1 == h2 {
		t.Fatal("expected reused slot to carry a bumped generation, got identical handle")
	}
	if _, err := m.SizeOf(h1); err != ErrInvalidHandle {
		t.Fatalf("expected stale handle h1 to be rejected, got %v", err)
	}
	if sz, err := m.SizeOf(h2); err != nil || sz != 16 {
		t.Fatalf("expected h2 to resolve fine, got size %d err %v", sz, err)
	}
}

func TestCompactPreservesHandlesAndData(t *testing.T) {
	m := NewManager(512)

	handles := make([]Handle, 0, 8)
	for i := 0; i < 8; i++ {
		h, err := m.AllocRef(20)
		if err != nil {
			t.Fatalf("AllocRef %d: %v", i, err)
		}
		ptr, err := m.PointerOf(h)
		if err != nil {
			t.Fatalf("PointerOf: %v", err)
		}
		writeMarker(t, m, ptr, uint32(1000+i))
		handles = append(handles, h)
	}

	// Free every other handle to fragment the pool before compacting.
	for i, h := range handles {
		if i%2 == 0 {
			if err := m.FreeRef(h); err != nil {
				t.Fatalf("FreeRef %d: %v", i, err)
			}
		}
	}

	if err := m.Compact(); err != nil {
		t.Fatalf("Compact: %v", err)
	}

	for i, h := range handles {
		if i%2 == 0 {
			continue
		}
		ptr, err := m.PointerOf(h)
		if err != nil {
			t.Fatalf("PointerOf after compact, handle %d: %v", i, err)
		}
		if got := readMarker(t, m, ptr); got != uint32(1000+i) {
			t.Fatalf("data corrupted across compaction for handle %d: got %d", i, got)
		}
	}

	stats := m.Stats()
	if stats.Collections != 1 {
		t.Fatalf("expected 1 collection, got %d", stats.Collections)
	}
	if stats.LiveRefs != 4 {
		t.Fatalf("expected 4 live refs, got %d", stats.LiveRefs)
	}
}

func TestAllocRefRejectsSubwordRequests(t *testing.T) {
	m := NewManager(1024)
	if _, err := m.AllocRef(3); err != ErrRequestTooSmall {
		t.Fatalf("expected ErrRequestTooSmall, got %v", err)
	}
}

func TestReserveIndexNeverHandsOutTopIndex(t *testing.T) {
	m := NewManager(1024)
	// Skip straight to one slot below capacity rather than driving a
	// million real allocations through AllocRef.
	m.table = make([]slot, indexMask-1)

	idx, err := m.reserveIndex()
	if err != nil {
		t.Fatalf("reserveIndex one below capacity: %v", err)
	}
	if idx != indexMask-1 {
		t.Fatalf("expected index %d, got %d", indexMask-1, idx)
	}
	if h := makeHandle(idx, maxGeneration); h == InvalidHandle {
		t.Fatal("highest allowed index combined with max generation collided with InvalidHandle")
	}

	if _, err := m.reserveIndex(); err != ErrTableExhausted {
		t.Fatalf("expected ErrTableExhausted once only the top index remains, got %v", err)
	}
}

func TestAllocRefPropagatesOutOfMemory(t *testing.T) {
	m := NewManager(32)
	if _, err := m.AllocRef(1000); err != pool.ErrOutOfMemory {
		t.Fatalf("expected pool.ErrOutOfMemory, got %v", err)
	}
}

func writeMarker(t *testing.T, m *Manager, ptr, v uint32) {
	t.Helper()
	m.pool.PokeWord(ptr, v)
}

func readMarker(t *testing.T, m *Manager, ptr uint32) uint32 {
	t.Helper()
	return m.pool.PeekWord(ptr)
}
