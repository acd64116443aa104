//go:build go1.22

// Package malloc implements a concurrent, segregated-fit dynamic memory
// allocator for variable-sized byte allocations within a single process.
//
// # Design
//
// The allocator is layered the same way the problem is layered:
//
//   - block.go / freelist.go: the on-heap block encoding (boundary tags,
//     footerless allocated blocks, fifteen size-segregated free lists) and
//     the pure functions that navigate it. No runtime state.
//   - arena.go: a single contiguous reservation hosting an implicit-list
//     heap, guarded by one mutex. Best-fit search over at most fifteen
//     candidates, upward from the request's size class, split, coalesce,
//     and forward-only extension all live here.
//   - pool.go: a fixed-size array of arenas that shards mutator traffic by
//     round robin, plus the linear address-owner scan used on free.
//   - cache.go: a small goroutine-local cache of recently freed blocks that
//     short-circuits malloc/free without ever touching an arena lock.
//   - baseline.go: a single-arena, single-lock reference implementation
//     used as the non-sharded baseline to compare against.
//
// Three allocators are exposed. [Baseline] is the single-lock reference.
// Calling only [Init] gives the sharded, uncached allocator. Calling
// [InitThreadCache] from each mutator goroutine layers the goroutine-local
// cache on top — this is the interesting one, and is what [Malloc] and
// [Free] provide once both have run.
//
// # Memory model
//
// Every arena reserves a large region of address space up front (see
// reserve_unix.go) and commits into it only by moving heap_end forward;
// nothing is ever returned to the operating system before process exit.
// Pointers returned by [Malloc] remain valid until passed to [Free] and
// must never be accessed afterward. Freeing an address not owned by any
// arena, double-freeing, or freeing an interior pointer are all undefined
// behavior. Debug builds assert only that a freed address lies in some
// arena; release builds do not check.
package malloc
