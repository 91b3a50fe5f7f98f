package pool

import (
	"errors"
	"testing"
)

func TestNewRejectsUndersizedPool(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected New to panic on an undersized pool")
		}
	}()
	New(8)
}

func TestAllocatorEmptyPool(t *testing.T) {
	a := New(256)
	if got := a.Stats(); got.FreeBlocks != 1 || got.UsedBlocks != 0 || got.UsedMem != 0 || got.FreeMem != 256 {
		t.Fatalf("unexpected initial stats: %+v", got)
	}
}

func TestAllocatorAllocFree(t *testing.T) {
	a := New(256)

	ptr, err := a.Alloc(20)
	if err != nil {
		t.Fatalf("Alloc(20) failed: %v", err)
	}
	stats := a.Stats()
	if stats.UsedBlocks != 1 || stats.UsedMem != 24 || stats.FreeMem != 232 {
		t.Fatalf("unexpected stats after alloc: %+v", stats)
	}

	if err := a.Free(ptr); err != nil {
		t.Fatalf("Free failed: %v", err)
	}
	stats = a.Stats()
	// Freeing the sole used chunk coalesces it back with the free
	// remainder its allocation split off, so exactly one merge happens.
	if stats.UsedBlocks != 0 || stats.FreeBlocks != 1 || stats.FreeMem != 256 || stats.Merges != 1 {
		t.Fatalf("pool did not return to single free chunk: %+v", stats)
	}
}

func TestAllocatorFragmentationAndMerge(t *testing.T) {
	a := New(256)

	pa, err := a.Alloc(30)
	if err != nil {
		t.Fatalf("alloc A: %v", err)
	}
	pb, err := a.Alloc(30)
	if err != nil {
		t.Fatalf("alloc B: %v", err)
	}
	pc, err := a.Alloc(30)
	if err != nil {
		t.Fatalf("alloc C: %v", err)
	}

	if err := a.Free(pb); err != nil {
		t.Fatalf("free B: %v", err)
	}

	// B's freed chunk is now the head of its bin, so D fits into B's
	// freed slot without growing usedMem past what B occupied.
	pd, err := a.Alloc(30)
	if err != nil {
		t.Fatalf("alloc D: %v", err)
	}

	if err := a.Free(pa); err != nil {
		t.Fatalf("free A: %v", err)
	}
	if err := a.Free(pc); err != nil {
		t.Fatalf("free C: %v", err)
	}

	stats := a.Stats()
	if stats.UsedBlocks != 1 {
		t.Fatalf("expected only D used, got %+v", stats)
	}
	if pd == 0 {
		t.Fatal("unexpected zero pointer for D")
	}
}

func TestAllocatorOOMThenRecoversAfterFree(t *testing.T) {
	a := New(64)

	// Consume the whole pool.
	first, err := a.Alloc(56)
	if err != nil {
		t.Fatalf("expected first big alloc to succeed: %v", err)
	}

	if _, err := a.Alloc(8); err != ErrOutOfMemory {
		t.Fatalf("expected ErrOutOfMemory, got %v", err)
	}
	if got := a.Stats().Fails; got != 1 {
		t.Fatalf("expected fails=1, got %d", got)
	}

	if err := a.Free(first); err != nil {
		t.Fatalf("free: %v", err)
	}
	if _, err := a.Alloc(8); err != nil {
		t.Fatalf("expected retry to succeed after free: %v", err)
	}
}

func TestAllocatorMinimumAllocSize(t *testing.T) {
	a := New(256)
	ptr, err := a.Alloc(1)
	if err != nil {
		t.Fatalf("Alloc(1): %v", err)
	}
	if got := a.Stats().UsedMem; got != MinFreeSize {
		t.Fatalf("expected minimum alloc to consume MinFreeSize=%d, got %d", MinFreeSize, got)
	}
	_ = ptr
}

func TestCompactRejectsUndersizedTrailingRemainder(t *testing.T) {
	a := New(20)

	// Bypass Alloc/Free to manufacture a layout Alloc's own MinFreeSize
	// guarantee would never produce: a 16-byte used chunk followed by a
	// 4-byte sliver too small to hold a free chunk's own header, links
	// and footer.
	a.writeUsed(0, 16, true)
	a.writeUsed(16, 4, true)
	a.finalPrevUsed = false

	if err := a.Compact(nil); !errors.Is(err, ErrCompactionInvariant) {
		t.Fatalf("expected ErrCompactionInvariant, got %v", err)
	}
}

func TestAllocatorStressDoesNotDriftStats(t *testing.T) {
	a := New(4096)
	var live []uint32
	for i := 0; i < 500; i++ {
		if i%3 != 0 && len(live) > 0 {
			idx := i % len(live)
			ptr := live[idx]
			live = append(live[:idx], live[idx+1:]...)
			if err := a.Free(ptr); err != nil {
				t.Fatalf("free at iter %d: %v", i, err)
			}
			continue
		}
		size := uint32(4 + i%64)
		ptr, err := a.Alloc(size)
		if err != nil {
			continue
		}
		live = append(live, ptr)
	}
	for _, ptr := range live {
		if err := a.Free(ptr); err != nil {
			t.Fatalf("final free: %v", err)
		}
	}
	stats := a.Stats()
	if stats.UsedBlocks != 0 || stats.FreeBlocks != 1 || stats.FreeMem != 4096 {
		t.Fatalf("stats drifted after stress: %+v", stats)
	}
}
