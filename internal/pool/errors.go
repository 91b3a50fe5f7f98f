package pool

import "errors"

var (
	// ErrOutOfMemory is returned by Alloc when no bin holds a chunk
	// large enough to satisfy the request. It is the allocator's only
	// normal (soft) failure mode; Alloc never panics on OOM.
	ErrOutOfMemory = errors.New("pool: out of memory")

	// ErrInvalidAddress is returned by Free when the supplied address
	// does not correspond to a chunk owned by this pool. Detection is
	// best-effort: a pointer not obtained from this allocator is
	// otherwise undefined behavior, so this error only fires when the
	// address is provably out of range.
	ErrInvalidAddress = errors.New("pool: invalid address")

	// ErrCompactionInvariant is returned by Compact if the space
	// recovered by sliding every used chunk down would leave a
	// trailing free chunk smaller than MinFreeSize. A pool maintained
	// only through Alloc and Free can never reach this state, since
	// every free chunk they ever produce already satisfies
	// MinFreeSize on its own; Compact still checks before writing the
	// trailing chunk's header and footer; writing them at that size
	// would overlap and corrupt whatever chunk follows.
	ErrCompactionInvariant = errors.New("pool: compaction would leave a trailing free chunk smaller than MinFreeSize")
)
