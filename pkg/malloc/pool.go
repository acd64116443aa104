//go:build go1.22

package malloc

import (
	"sync"
	"sync/atomic"

	"github.com/dolthub/maphash"
)

// pool is a fixed-size array of arenas that shards mutator traffic across
// them, plus one atomic counter used for round-robin distribution of new
// allocations. n is chosen once, at construction, and never changes.
type pool struct {
	arenas  []*arena
	counter atomic.Uint64
	guess   *addrGuess
}

// newPool reserves n arenas, each capable of growing up to arenaMax bytes,
// and seeds each with one chunk-sized free block.
func newPool(n int) (*pool, error) {
	if n <= 0 {
		n = 1
	}

	p := &pool{
		arenas: make([]*arena, n),
		guess:  newAddrGuess(),
	}

	for i := range p.arenas {
		region, err := reserveRegion(arenaMax)
		if err != nil {
			return nil, &ReserveError{Bytes: arenaMax, Err: err}
		}
		p.arenas[i] = initArena(region)
	}

	return p, nil
}

// acquireArena picks an arena by round robin and returns it locked. It is
// acceptable for this to block briefly on a contended arena: the
// round-robin policy keeps the address-to-arena mapping stable, which
// find_arena depends on.
func (p *pool) acquireArena() *arena {
	idx := p.counter.Add(1) % uint64(len(p.arenas))
	a := p.arenas[idx]
	a.mu.Lock()
	return a
}

// releaseArena releases the lock taken by acquireArena or findArena.
func releaseArena(a *arena) {
	a.mu.Unlock()
}

// findArena locates the arena owning addr and returns it locked, or nil if
// no arena owns it (a mutator bug: freeing an address that was never
// allocated, or an interior pointer). This is always, ultimately, a linear
// scan of the arena array — the addrGuess cache below only ever shortcuts
// to a candidate that is then verified against that same ownership check,
// so a stale or wrong guess degrades to the full scan rather than ever
// returning a wrong answer.
func (p *pool) findArena(addr blockPtr) *arena {
	if idx, ok := p.guess.lookup(addr); ok {
		a := p.arenas[idx]
		a.mu.Lock()
		if a.owns(addr) {
			return a
		}
		a.mu.Unlock()
	}

	for i, a := range p.arenas {
		a.mu.Lock()
		if a.owns(addr) {
			p.guess.store(addr, i)
			return a
		}
		a.mu.Unlock()
	}

	return nil
}

// addrGuess is a small, best-effort direct-mapped cache from a coarse
// address bucket to the index of the arena that most recently owned it.
// It exists purely to let the common case — a block freed shortly after
// being allocated, typically by the goroutine that allocated it — skip
// straight to the right arena instead of walking the whole pool. It never
// changes find_arena's observable behavior: every lookup is re-verified
// against the arena's actual heap range before being trusted.
type addrGuess struct {
	hash maphash.Hasher[uintptr]

	mu    sync.Mutex
	slots []guessSlot
}

type guessSlot struct {
	bucket uintptr
	arena  int
	valid  bool
}

// guessBucketBits makes each bucket as wide as one arena reservation, so a
// couple of entries cover an arena rather than one entry per page.
// Buckets are aligned to that width and reservations are not, so an
// arena's range usually spans two buckets, and a bucket may be shared by
// two arenas; findArena's owns check catches a guess that is wrong.
const guessBucketBits = 27 // 128 MiB, matching arenaMax

const guessSlotCount = 256

func newAddrGuess() *addrGuess {
	return &addrGuess{
		hash:  maphash.NewHasher[uintptr](),
		slots: make([]guessSlot, guessSlotCount),
	}
}

func guessBucket(addr blockPtr) uintptr {
	return uintptr(addr) >> guessBucketBits
}

func (g *addrGuess) lookup(addr blockPtr) (int, bool) {
	bucket := guessBucket(addr)
	slot := g.hash.Hash(bucket) % uint64(len(g.slots))

	g.mu.Lock()
	defer g.mu.Unlock()

	s := g.slots[slot]
	if s.valid && s.bucket == bucket {
		return s.arena, true
	}
	return 0, false
}

func (g *addrGuess) store(addr blockPtr, idx int) {
	bucket := guessBucket(addr)
	slot := g.hash.Hash(bucket) % uint64(len(g.slots))

	g.mu.Lock()
	g.slots[slot] = guessSlot{bucket: bucket, arena: idx, valid: true}
	g.mu.Unlock()
}
