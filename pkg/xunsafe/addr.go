//go:build go1.20

package xunsafe

import (
	"fmt"
	"unsafe"

	"github.com/flier/parmalloc/pkg/xunsafe/layout"
)

// Addr is an untyped, arithmetic-friendly address of a T.
//
// Unlike a *T, an Addr[T] may be out of bounds, null, or otherwise invalid;
// it becomes a real pointer only once passed to [Addr.AssertValid]. This
// makes it suitable for representing addresses that are under construction,
// such as a heap cursor that has not yet been validated against the end of
// a reservation.
type Addr[T any] uintptr

// AddrOf returns the address of p.
func AddrOf[T any](p *T) Addr[T] {
	return Addr[T](unsafe.Pointer(p))
}

// EndOf returns the address one past the last element of s.
func EndOf[S ~[]E, E any](s S) Addr[E] {
	return AddrOf(unsafe.SliceData(s)).Add(len(s))
}

// AssertValid converts this address back into a pointer.
//
// The caller is responsible for having ensured that the address is either
// null or points to a valid, live T; this function performs no checking of
// its own beyond what a plain conversion would do.
func (a Addr[T]) AssertValid() *T {
	return (*T)(unsafe.Pointer(uintptr(a)))
}

// Add adds n, scaled by the size of T, to a.
func (a Addr[T]) Add(n int) Addr[T] {
	return a + Addr[T](n*layout.Size[T]())
}

// ByteAdd adds n unscaled bytes to a.
func (a Addr[T]) ByteAdd(n int) Addr[T] {
	return a + Addr[T](n)
}

// Sub computes the distance from b to a, scaled by the size of T.
func (a Addr[T]) Sub(b Addr[T]) int {
	return int(a-b) / layout.Size[T]()
}

// ByteSub computes the unscaled distance from b to a.
func (a Addr[T]) ByteSub(b Addr[T]) int {
	return int(a - b)
}

// Padding returns the number of bytes needed to round a up to align.
func (a Addr[T]) Padding(align int) int {
	return layout.Padding(int(a), align)
}

// RoundUpTo rounds a up to the given alignment.
func (a Addr[T]) RoundUpTo(align int) Addr[T] {
	return Addr[T](layout.RoundUp(int(a), align))
}

// SignBit reports whether a's top bit is set.
func (a Addr[T]) SignBit() bool {
	return a>>(unsafe.Sizeof(a)*8-1) != 0
}

// SignBitMask returns all-ones if SignBit is set, all-zeros otherwise.
func (a Addr[T]) SignBitMask() Addr[T] {
	return Addr[T](int(a) >> (unsafe.Sizeof(a)*8 - 1))
}

// ClearSignBit clears a's top bit.
func (a Addr[T]) ClearSignBit() Addr[T] {
	return a &^ (1 << (unsafe.Sizeof(a)*8 - 1))
}

// Format implements [fmt.Formatter], printing addresses in hexadecimal.
func (a Addr[T]) Format(s fmt.State, verb rune) {
	switch verb {
	case 'x':
		fmt.Fprintf(s, "%x", uintptr(a))
	default:
		fmt.Fprintf(s, "%#x", uintptr(a))
	}
}
