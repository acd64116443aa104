//go:build go1.22

package malloc

import (
	"unsafe"

	"github.com/flier/parmalloc/internal/debug"
	"github.com/flier/parmalloc/pkg/xerrors"
)

var globalPool *pool

// Init initializes the arena pool with arenaCount arenas; arenaCount<=0
// uses [DefaultArenaCount]. It is the caller's responsibility to call this
// exactly once, before any other call into this package; calling it again
// replaces the pool and invalidates every pointer handed out by the old
// one.
func Init(arenaCount int) error {
	if arenaCount <= 0 {
		arenaCount = DefaultArenaCount()
	}

	p, err := newPool(arenaCount)
	if err != nil {
		if re, ok := xerrors.AsA[*ReserveError](err); ok {
			debug.Log(nil, "malloc", "init: failed to reserve %d bytes: %v", re.Bytes, re.Err)
		}
		return err
	}

	globalPool = p
	return nil
}

// Malloc returns an aligned address with at least size usable bytes, or
// nil on reservation exhaustion. size==0 always yields nil. If the calling
// goroutine has called [InitThreadCache], a matching cached block is
// returned directly without ever touching an arena lock; otherwise (or on
// a cache miss) an arena is chosen by round robin, locked, and the request
// is satisfied from its free lists or by extending its heap.
func Malloc(size int) unsafe.Pointer {
	if size <= 0 {
		return nil
	}

	if c := currentCache(); c != nil {
		asize := requestedSize(size)
		if found := cacheQuery(c, asize); found.IsSome() {
			block := found.Unwrap()
			debug.Log(nil, "malloc", "cache hit: %v, %d", block, size)
			return payloadPointer(block)
		}
	}

	a := globalPool.acquireArena()
	block, err := a.tryMalloc(size)
	releaseArena(a)

	if err != nil || block == nullBlock {
		if ee, ok := xerrors.AsA[*ExhaustionError](err); ok {
			debug.Log(nil, "malloc", "exhausted: %d-byte request found no room", ee.Size)
		} else {
			debug.Log(nil, "malloc", "failed: %d: %v", size, err)
		}
		return nil
	}

	return payloadPointer(block)
}

// Free releases a previously returned address back to the allocator.
// Freeing nil is a no-op; double-freeing, or freeing an address not
// returned by Malloc, is undefined behavior. Debug builds assert only that
// the address lies inside some arena's heap.
//
// If the calling goroutine has a thread cache, Free first tries to stash
// the block there. On a full cache, it evicts one entry with fixed
// probability 0.1, returns the evicted block to its owning arena, and
// retries; otherwise (or with probability 0.9) it frees the current block
// directly through its owning arena.
func Free(p unsafe.Pointer) {
	if p == nil {
		return
	}

	payload := blockPtr(uintptr(p))
	block := headerOf(payload)

	if c := currentCache(); c != nil {
		if cacheAdd(c, block) {
			return
		}

		if c.count > 0 && evictProbabilityHit() {
			evicted := cacheEvict(c)
			trueFree(evicted)

			if cacheAdd(c, block) {
				return
			}
		}
	}

	trueFree(block)
}

// trueFree returns block to its owning arena: locate, lock, mark free,
// coalesce, insert, unlock.
func trueFree(block blockPtr) {
	a := globalPool.findArena(block)
	debug.Assert(a != nil, "free: address %v is not owned by any arena", block)
	if a == nil {
		return
	}

	a.tryFree(block)
	releaseArena(a)
}

func payloadPointer(block blockPtr) unsafe.Pointer {
	return unsafe.Pointer(payloadOf(block).AssertValid())
}
