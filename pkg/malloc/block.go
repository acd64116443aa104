//go:build go1.22

package malloc

import (
	"github.com/flier/parmalloc/internal/debug"
	"github.com/flier/parmalloc/pkg/xunsafe"
	"github.com/flier/parmalloc/pkg/xunsafe/layout"
)

// word is the unit of heap metadata: one 64-bit header or footer, or one
// free-list link. All heap addresses below are word-scaled addresses.
type word = uint64

// blockPtr is the address of a block's header word.
type blockPtr = xunsafe.Addr[word]

const (
	wordSize = int(8) // W
	dsize    = 16      // D, the double word: the heap's alignment boundary
	minBlock = 2 * dsize // M: smallest possible block: header, two free-list links and a footer

	allocMask     word = 0x1
	prevAllocMask word = 0x2
	sizeMask      word = ^word(0xF)

	chunkSize = 4096        // bytes committed per extend() when growing lazily
	arenaMax  = chunkSize << 15 // 128 MiB per-arena reservation, per spec
	numClasses = 15
)

// pack encodes size, alloc, and prevAlloc into a single header/footer word.
// size must already be a multiple of 16; its low four bits are reserved for
// the two status flags.
func pack(size int, alloc, prevAlloc bool) word {
	debug.Assert(size&0xF == 0, "pack: size %d is not 16-byte aligned", size)

	w := word(size)
	if alloc {
		w |= allocMask
	}
	if prevAlloc {
		w |= prevAllocMask
	}
	return w
}

func extractSize(w word) int        { return int(w & sizeMask) }
func extractAlloc(w word) bool      { return w&allocMask != 0 }
func extractPrevAlloc(w word) bool  { return w&prevAllocMask != 0 }

func headerWord(b blockPtr) word { return *b.AssertValid() }

func blockSize(b blockPtr) int    { return extractSize(headerWord(b)) }
func isAlloc(b blockPtr) bool     { return extractAlloc(headerWord(b)) }
func isPrevAlloc(b blockPtr) bool { return extractPrevAlloc(headerWord(b)) }

// payloadOf returns the address of b's first payload word.
func payloadOf(b blockPtr) blockPtr { return b.Add(1) }

// headerOf is the inverse of payloadOf: the header belonging to a payload
// address previously handed out by an allocation.
func headerOf(p blockPtr) blockPtr { return p.Add(-1) }

// footerOf returns the address of b's footer word. Only valid while b is
// free; allocated blocks carry no footer.
func footerOf(b blockPtr) blockPtr {
	return b.Add(blockSize(b)/wordSize - 1)
}

// nextPhysical returns the block physically adjacent to, and above, b.
// Undefined if b is the epilogue.
func nextPhysical(b blockPtr) blockPtr {
	return b.Add(blockSize(b) / wordSize)
}

// prevPhysical returns the block physically adjacent to, and below, b.
// Requires that b's prev-alloc bit is clear (i.e. that neighbor is free and
// therefore carries a footer we can read its size from).
func prevPhysical(b blockPtr) blockPtr {
	debug.Assert(!isPrevAlloc(b), "prevPhysical: previous block is allocated")

	prevFooter := b.Add(-1)
	prevSize := extractSize(*prevFooter.AssertValid())
	return b.Add(-(prevSize / wordSize))
}

// writeBlock writes b's header, and its footer iff the block is free.
// The caller is responsible for updating the prev-alloc bit of
// nextPhysical(b) if b's allocation status changed as a result.
func writeBlock(b blockPtr, size int, alloc, prevAlloc bool) {
	w := pack(size, alloc, prevAlloc)
	*b.AssertValid() = w
	if !alloc {
		*footerOf(b).AssertValid() = w
	}
}

// setPrevAllocBit rewrites b's prev-alloc status bit in place, keeping its
// footer (if any) in sync.
func setPrevAllocBit(b blockPtr, prevAlloc bool) {
	w := headerWord(b)
	if prevAlloc {
		w |= prevAllocMask
	} else {
		w &^= prevAllocMask
	}
	*b.AssertValid() = w
	if !extractAlloc(w) {
		*footerOf(b).AssertValid() = w
	}
}

// writeEpilogue writes a zero-sized, always-allocated sentinel header at b.
func writeEpilogue(b blockPtr, prevAlloc bool) {
	*b.AssertValid() = pack(0, true, prevAlloc)
}

// roundUpD rounds v up to the next multiple of the double-word alignment.
func roundUpD(v int) int { return layout.RoundUp(v, dsize) }

// requestedSize computes asize: the block size (including the header word)
// needed to satisfy a client request of size bytes, with a floor of
// minBlock. Per spec, any size at or below one double word rounds to
// exactly 2*dsize.
func requestedSize(size int) int {
	if size <= dsize {
		return 2 * dsize
	}
	return roundUpD(size + wordSize)
}

func toWord(b blockPtr) word  { return word(uintptr(b)) }
func toBlock(w word) blockPtr { return blockPtr(uintptr(w)) }

const nullBlock blockPtr = 0
