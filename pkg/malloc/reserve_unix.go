//go:build unix

package malloc

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// reserveRegion asks the OS for a large anonymous mapping and returns it as
// a slice of words. An anonymous private mmap is demand-paged by the
// kernel, so the reservation costs no physical memory until the arena
// actually writes into it by advancing heapEnd — reserved but not
// committed, far more faithfully than a plain make([]byte, n) would
// represent it, since Go's runtime zeroes that eagerly.
func reserveRegion(bytes int) ([]word, error) {
	data, err := unix.Mmap(-1, 0, bytes, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("mmap %d bytes: %w", bytes, err)
	}

	return unsafe.Slice((*word)(unsafe.Pointer(&data[0])), bytes/wordSize), nil
}
