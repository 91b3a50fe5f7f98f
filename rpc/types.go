// Package rpc exposes a refheap.Manager over net/rpc: typed
// Request/Response structs paired with a Server that wraps a
// refheap.Manager, addressing handles rather than raw pointers.
package rpc

import "github.com/shenjiangwei/refheap"

// AllocRefRequest asks the server to reserve Size bytes.
type AllocRefRequest struct {
	Size uint32
}

// AllocRefResponse carries back the handle for a satisfied
// AllocRefRequest.
type AllocRefResponse struct {
	Handle refheap.Handle
}

// HandleRequest names the handle a IncrRef/DecrRef/FreeRef/SizeOf/
// RefCountOf call operates on.
type HandleRequest struct {
	Handle refheap.Handle
}

// HandleResponse is the empty acknowledgement IncrRef and FreeRef
// return on success.
type HandleResponse struct{}

// DecrRefResponse reports whether the decremented handle is still
// alive.
type DecrRefResponse struct {
	Alive bool
}

// SizeOfResponse carries back a handle's allocated size.
type SizeOfResponse struct {
	Size uint32
}

// RefCountOfResponse carries back a handle's current reference count.
type RefCountOfResponse struct {
	RefCount uint32
}

// CompactRequest is empty: Compact takes no parameters.
type CompactRequest struct{}

// CompactResponse is the empty acknowledgement Compact returns.
type CompactResponse struct{}

// StatsRequest is empty: Stats takes no parameters.
type StatsRequest struct{}

// StatsResponse carries back a Stats snapshot.
type StatsResponse struct {
	Stats refheap.Stats
}

// CheckRequest is empty: Check takes no parameters.
type CheckRequest struct{}

// CheckResponse carries back the integrity checker's verdict as a
// string, since net/rpc errors must cross the wire as strings and
// Check's error already carries all diagnostic detail in its message.
type CheckResponse struct {
	Violation string // empty when the pool is well-formed
}
