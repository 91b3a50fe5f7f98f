// Package refheap is the public entry point of a fixed-pool,
// compacting, reference-counted memory manager: a single Manager type
// composing internal/pool, internal/refmgr and internal/integrity
// behind one external interface (New, AllocRef, IncrRef, DecrRef,
// FreeRef, Compact, Stats, Check).
package refheap

import (
	"errors"

	"github.com/shenjiangwei/refheap/internal/integrity"
	"github.com/shenjiangwei/refheap/internal/pool"
	"github.com/shenjiangwei/refheap/internal/refmgr"
)

// Re-exported so callers never need to import the internal packages
// directly.
type (
	Handle = refmgr.Handle
	Stats  = refmgr.Stats
)

// InvalidHandle is a value no live allocation ever produces.
const InvalidHandle = refmgr.InvalidHandle

var (
	ErrInvalidHandle     = refmgr.ErrInvalidHandle
	ErrRefCountSaturated = refmgr.ErrRefCountSaturated
	ErrTableExhausted    = refmgr.ErrTableExhausted
)

// Manager is a fixed-size heap: a byte pool managed by a boundary-tag
// allocator, with a stable-handle reference layer on top. It is not
// safe for concurrent use — callers serialize their own access, the
// same contract the underlying allocator places on itself.
type Manager struct {
	refs *refmgr.Manager
}

// New creates a Manager backed by a pool of size bytes; an odd size is
// rounded down by one byte to keep every chunk size even.
func New(size uint32) *Manager {
	return &Manager{refs: refmgr.NewManager(size)}
}

// AllocRef reserves size bytes and returns a handle to them with a
// reference count of one.
func (m *Manager) AllocRef(size uint32) (Handle, error) {
	return m.refs.AllocRef(size)
}

// IncrRef increments h's reference count.
func (m *Manager) IncrRef(h Handle) error {
	return m.refs.IncrRef(h)
}

// DecrRef decrements h's reference count, releasing the underlying
// allocation and returning false if it reaches zero.
func (m *Manager) DecrRef(h Handle) (bool, error) {
	return m.refs.DecrRef(h)
}

// FreeRef releases h's allocation unconditionally.
func (m *Manager) FreeRef(h Handle) error {
	return m.refs.FreeRef(h)
}

// PointerOf returns the offset currently backing h, stable only until
// the next Compact call.
func (m *Manager) PointerOf(h Handle) (uint32, error) {
	return m.refs.PointerOf(h)
}

// SizeOf returns the byte size requested when h was allocated.
func (m *Manager) SizeOf(h Handle) (uint32, error) {
	return m.refs.SizeOf(h)
}

// RefCountOf returns h's current reference count.
func (m *Manager) RefCountOf(h Handle) (uint32, error) {
	return m.refs.RefCountOf(h)
}

// Compact runs a stop-the-world compaction pass, defragmenting the
// pool without changing the value of any handle a caller holds. A
// non-nil error is always a *integrity.Error: compaction itself
// found the pool in a state it refuses to finish sliding, the same
// diagnostic shape Check reports, and the manager should not be used
// further.
func (m *Manager) Compact() error {
	if err := m.refs.Compact(); err != nil {
		if errors.Is(err, pool.ErrCompactionInvariant) {
			return &integrity.Error{Code: integrity.CodeCompactionInvariant, Detail: err.Error()}
		}
		return err
	}
	return nil
}

// Stats returns a snapshot of the manager's running counters.
func (m *Manager) Stats() Stats {
	return m.refs.Stats()
}

// Check runs the read-only integrity checker against the manager's
// pool and returns the first structural invariant violation found, if
// any. It never mutates the manager.
func (m *Manager) Check() error {
	return integrity.Check(m.refs.Pool())
}
