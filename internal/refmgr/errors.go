package refmgr

import "errors"

var (
	// ErrInvalidHandle is returned whenever a Handle does not resolve to
	// a currently live table slot: an out-of-range index, a slot that
	// has since been freed, or a stale generation left over from a
	// slot that has been reused by a later AllocRef.
	ErrInvalidHandle = errors.New("refmgr: invalid handle")

	// ErrRefCountSaturated is returned by IncrRef when the reference
	// count has already reached its ceiling (math.MaxUint32-1). The
	// count is left unchanged rather than wrapping.
	ErrRefCountSaturated = errors.New("refmgr: reference count saturated")

	// ErrTableExhausted is returned by AllocRef when the table has
	// already handed out the maximum number of dense indices a Handle
	// can address.
	ErrTableExhausted = errors.New("refmgr: handle table exhausted")

	// ErrRequestTooSmall is returned by AllocRef for a request under 4
	// bytes: Compact's stamp phase overwrites a live chunk's first word
	// with its handle index and needs somewhere to put it.
	ErrRequestTooSmall = errors.New("refmgr: allocation request must be at least 4 bytes")
)
