//go:build go1.22

package malloc

import "github.com/flier/parmalloc/pkg/xunsafe"

// toBlockForTest treats the start of a raw word region as a block header
// address, for tests that exercise block.go's primitives directly without
// going through a whole arena.
func toBlockForTest(region []word) blockPtr {
	return xunsafe.AddrOf(&region[0])
}
