//go:build go1.22

package malloc

import "unsafe"

// Baseline is the single-lock reference allocator: one arena, one mutex,
// no sharding and no thread cache. It exists to give the sharded pool
// implementation something to be measured against, mirroring how
// original_source/naive_malloc.c sits alongside arena_malloc.c and
// arena_cached_malloc.c over the same block/coalesce/split primitives.
type Baseline struct {
	a *arena
}

// NewBaseline reserves a single arena and returns a ready-to-use Baseline.
func NewBaseline() (*Baseline, error) {
	region, err := reserveRegion(arenaMax)
	if err != nil {
		return nil, &ReserveError{Bytes: arenaMax, Err: err}
	}

	return &Baseline{a: initArena(region)}, nil
}

// Malloc allocates size bytes under the single arena lock.
func (b *Baseline) Malloc(size int) unsafe.Pointer {
	if size <= 0 {
		return nil
	}

	b.a.mu.Lock()
	block, err := b.a.tryMalloc(size)
	b.a.mu.Unlock()

	if err != nil || block == nullBlock {
		return nil
	}
	return payloadPointer(block)
}

// Free releases p back to the single arena.
func (b *Baseline) Free(p unsafe.Pointer) {
	if p == nil {
		return
	}

	block := headerOf(blockPtr(uintptr(p)))

	b.a.mu.Lock()
	b.a.tryFree(block)
	b.a.mu.Unlock()
}
