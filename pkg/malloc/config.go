//go:build go1.22

package malloc

import (
	"runtime"
	"strconv"

	"github.com/flier/parmalloc/internal/xflag"
)

// arenaCountFlag lets a process tune the pool size the same way
// internal/debug lets a process tune its log filter: a flag registered at
// package init, read only if the process actually parses flags. Library
// callers that never call flag.Parse get the compiled-in default.
var arenaCountFlag = xflag.Func("malloc.arenas", "number of arenas in the allocator pool", strconv.Atoi)

// DefaultArenaCount returns the pool size Init uses when called with n<=0:
// the flag override if one was parsed, otherwise twice GOMAXPROCS, a
// sensible default sizing relative to the number of logical CPUs.
func DefaultArenaCount() int {
	if xflag.Parsed("malloc.arenas") && *arenaCountFlag > 0 {
		return *arenaCountFlag
	}
	return 2 * runtime.GOMAXPROCS(0)
}
