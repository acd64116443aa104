//go:build go1.22

package malloc

import (
	"math/rand/v2"

	"github.com/timandy/routine"

	"github.com/flier/parmalloc/pkg/opt"
)

const (
	cacheCapacity    = 8         // CACHE_MAX_ENTRIES
	cacheMaxBytes    = 1 << 20   // CACHE_MAX_SIZE
	evictProbability = 0.1       // CACHE_EVICT_PROBABILITY, pinned per spec
)

// threadCache is a small, bounded collection of recently freed blocks,
// exclusively owned by the goroutine that holds it. It needs no locking:
// it is reachable only through the goroutine-local slot it is stored in
// (see tlsCache below), mirroring how internal/debug binds its own
// per-goroutine testing.TB hook via the same library.
type threadCache struct {
	slots [cacheCapacity]blockPtr
	count int
	total int
	front int // index of the lowest-indexed occupied slot, or cacheCapacity if empty
}

func newThreadCache() *threadCache {
	return &threadCache{front: cacheCapacity}
}

// cacheAdd tries to stash block in the cache. Fails if the cache is full or
// accepting it would exceed the aggregate byte budget. Blocks held in the
// cache keep their allocated bit set, so arena-side coalescing can never
// eat them while they are cached.
func cacheAdd(c *threadCache, block blockPtr) bool {
	if c.count == cacheCapacity {
		return false
	}

	size := blockSize(block)
	if c.total+size > cacheMaxBytes {
		return false
	}

	for i, s := range c.slots {
		if s == nullBlock {
			c.slots[i] = block
			c.count++
			c.total += size
			if i < c.front {
				c.front = i
			}
			return true
		}
	}

	return false // unreachable: count < capacity guarantees a free slot
}

// cacheEvict removes and returns the block in the lowest-indexed occupied
// slot (c.front). That is the oldest entry only until a slot below it is
// emptied and refilled. Precondition: c.count > 0.
func cacheEvict(c *threadCache) blockPtr {
	block := c.slots[c.front]
	c.slots[c.front] = nullBlock
	c.count--
	c.total -= blockSize(block)

	for c.front < cacheCapacity && c.slots[c.front] == nullBlock {
		c.front++
	}

	return block
}

// cacheQuery scans slots upward from c.front for the first block large
// enough to satisfy size (first fit by slot index, not by insertion age),
// unlike the arena's own LIFO free lists. Removes the block from the cache
// on a hit.
func cacheQuery(c *threadCache, size int) opt.Option[blockPtr] {
	for i := c.front; i < cacheCapacity; i++ {
		block := c.slots[i]
		if block == nullBlock {
			continue
		}

		if blockSize(block) < size {
			continue
		}

		c.slots[i] = nullBlock
		c.count--
		c.total -= blockSize(block)
		if i == c.front {
			for c.front < cacheCapacity && c.slots[c.front] == nullBlock {
				c.front++
			}
		}

		return opt.Some(block)
	}

	return opt.None[blockPtr]()
}

// tlsCache holds the calling goroutine's cache, initialized explicitly by
// InitThreadCache. Using a goroutine-local slot rather than a context
// parameter keeps Malloc/Free's signatures matching a plain C-shaped
// allocator entry point.
var tlsCache = routine.NewThreadLocal[*threadCache]()

// InitThreadCache initializes the calling goroutine's thread-local cache.
// Must be called once per mutator goroutine before its first call to
// Malloc or Free if the cached fast path is desired; goroutines that never
// call this simply always take the arena path, which is exactly the
// uncached multi-arena variant.
func InitThreadCache() {
	tlsCache.Set(newThreadCache())
}

func currentCache() *threadCache {
	return tlsCache.Get()
}

func evictProbabilityHit() bool {
	return rand.Float64() < evictProbability
}
