//go:build go1.22

package malloc

import (
	"sync"

	"github.com/flier/parmalloc/internal/debug"
	"github.com/flier/parmalloc/pkg/opt"
	"github.com/flier/parmalloc/pkg/xunsafe"
)

// arena is a single contiguous virtual reservation hosting an implicit-list
// heap with fifteen size-segregated explicit free lists, protected by one
// mutex. It provides single-threaded malloc/free semantics within its lock;
// callers are responsible for holding mu for the duration of any call into
// it (see pool.acquireArena / releaseArena).
type arena struct {
	mu sync.Mutex

	// region pins the reservation's backing array so the garbage collector
	// never reclaims it out from under base/heapStart/heapEnd, which are
	// plain uintptr-valued addresses the GC does not trace as pointers.
	// reserve_unix.go's mmap-backed region lives outside the Go heap
	// entirely and would be safe without this, but reserve_other.go's
	// make([]word, ...) fallback is ordinary GC-managed memory and is not.
	region []word

	base          blockPtr // lowest word of the reservation
	reservedWords int      // total reserved capacity, in words
	heapStart     blockPtr // address of the first block's header
	heapEnd       blockPtr // address of the current epilogue header

	lists [numClasses]blockPtr
}

// initArena lays out the prologue/epilogue sentinels over a freshly
// reserved region and seeds it with one chunk-sized free block.
func initArena(region []word) *arena {
	a := &arena{
		region:        region,
		base:          xunsafe.AddrOf(&region[0]),
		reservedWords: len(region),
	}

	// Prologue: a single allocated, zero-sized sentinel that prevents
	// coalescing from walking below the heap.
	*a.base.AssertValid() = pack(0, true, true)

	a.heapStart = a.base.Add(1)
	a.heapEnd = a.heapStart
	writeEpilogue(a.heapEnd, true)

	if extend(a, chunkSize, true) == nullBlock {
		debug.Assert(false, "initArena: failed to seed initial chunk")
	}

	return a
}

// findFit returns a free block of size at least asize, searching upward
// from listIndex(asize) through every higher class, up to fifteen
// candidates total, biased toward a best fit within that window. A
// class's list only ever holds blocks whose size rounds into it, but a
// block several classes above asize's home class is still a valid fit —
// classes are searched low to high so a large, seeded or previously
// extended chunk remains reusable by a small request instead of forcing
// another heap extension. The fifteen-candidate cap bounds search latency;
// it is the knob that trades fragmentation for speed, not the class range.
func findFit(a *arena, asize int) opt.Option[blockPtr] {
	minClass := listIndex(asize)

	var best blockPtr
	bestDiff := -1
	examined := 0

	for class := minClass; class <= numClasses-1 && examined < 15; class++ {
		for b := a.lists[class]; b != nullBlock && examined < 15; b = freeNext(b) {
			examined++

			size := blockSize(b)
			if size < asize {
				continue
			}

			diff := size - asize
			if diff == 0 {
				return opt.Some(b)
			}
			if bestDiff == -1 || diff < bestDiff {
				best, bestDiff = b, diff
			}
		}
	}

	if bestDiff == -1 {
		return opt.None[blockPtr]()
	}
	return opt.Some(best)
}

// split carves an allocated block down to asize if the residual is large
// enough to stand on its own (>= minBlock), inserting the residual into its
// free list. Returns whether a split happened; when it did not, the caller
// is left holding the whole block and must fix up the prev-alloc bit of
// nextPhysical(block) itself.
func split(a *arena, block blockPtr, asize int) (didSplit bool) {
	full := blockSize(block)
	residual := full - asize
	if residual < minBlock {
		return false
	}

	prevAlloc := isPrevAlloc(block)
	writeBlock(block, asize, true, prevAlloc)

	rest := nextPhysical(block)
	writeBlock(rest, residual, false, true)
	insert(a, rest)

	return true
}

// coalesce merges a newly-freed block with whichever of its physical
// neighbors are also free, removing them from their free lists, and
// returns the resulting block (not yet reinserted into any list). The
// right-hand neighbor of the result always has its prev-alloc bit cleared
// before returning, whether or not a merge happened.
func coalesce(a *arena, b blockPtr) blockPtr {
	leftFree := !isPrevAlloc(b)
	right := nextPhysical(b)
	rightFree := !isAlloc(right)

	switch {
	case !leftFree && !rightFree:
		// no merge

	case !leftFree && rightFree:
		remove(a, right)
		writeBlock(b, blockSize(b)+blockSize(right), false, true)

	case leftFree && !rightFree:
		left := prevPhysical(b)
		remove(a, left)
		writeBlock(left, blockSize(left)+blockSize(b), false, isPrevAlloc(left))
		b = left

	default: // both free
		left := prevPhysical(b)
		remove(a, left)
		remove(a, right)
		writeBlock(left, blockSize(left)+blockSize(b)+blockSize(right), false, isPrevAlloc(left))
		b = left
	}

	setPrevAllocBit(nextPhysical(b), false)
	return b
}

// extend grows the committed heap by at least bytes (rounded up to the
// double-word alignment), reusing the old epilogue's header word as the
// header of a new free block, and writing a fresh epilogue beyond it. The
// new block is coalesced with its left neighbor (its right neighbor is
// always the epilogue, which is always allocated) and inserted into its
// free list. Returns nullBlock if doing so would exceed the reservation.
func extend(a *arena, bytes int, prevAlloc bool) blockPtr {
	bytes = roundUpD(bytes)

	if a.heapEnd.Add(bytes/wordSize) > a.base.Add(a.reservedWords) {
		return nullBlock
	}

	newBlock := a.heapEnd
	writeBlock(newBlock, bytes, false, prevAlloc)

	a.heapEnd = newBlock.Add(bytes / wordSize)
	writeEpilogue(a.heapEnd, false)

	merged := coalesce(a, newBlock)
	insert(a, merged)

	return merged
}

// tryMalloc implements the per-arena allocation entry point. The caller
// must hold a.mu. Returns nullBlock and an *ExhaustionError (wrapping
// ErrExhausted) if the reservation cannot grow enough to satisfy the
// request.
func (a *arena) tryMalloc(size int) (blockPtr, error) {
	if size == 0 {
		return nullBlock, nil
	}

	asize := requestedSize(size)

	var block blockPtr
	if found := findFit(a, asize); found.IsSome() {
		block = found.Unwrap()
	} else {
		grow := asize
		if chunkSize > grow {
			grow = chunkSize
		}

		epiPrevAlloc := isPrevAlloc(a.heapEnd)
		block = extend(a, grow, epiPrevAlloc)
		if block == nullBlock {
			return nullBlock, &ExhaustionError{Size: size}
		}
	}

	remove(a, block)
	writeBlock(block, blockSize(block), true, isPrevAlloc(block))

	if !split(a, block, asize) {
		setPrevAllocBit(nextPhysical(block), true)
	}

	return block, nil
}

// tryFree implements the per-arena free entry point. The caller must hold
// a.mu.
func (a *arena) tryFree(block blockPtr) {
	writeBlock(block, blockSize(block), false, isPrevAlloc(block))
	setPrevAllocBit(nextPhysical(block), false)

	merged := coalesce(a, block)
	insert(a, merged)
}

// owns reports whether addr falls within this arena's currently committed
// heap range.
func (a *arena) owns(addr blockPtr) bool {
	return addr >= a.heapStart && addr <= a.heapEnd
}
