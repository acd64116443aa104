//go:build !unix

package malloc

// reserveRegion is the non-unix fallback for the "reserve a large virtual
// region" primitive: a plain Go allocation. Unlike the mmap-backed variant,
// this is committed eagerly by the runtime, but the arena above still only
// ever advances heap_end forward and never resizes the slice, so the
// bookkeeping this package is responsible for is identical either way.
func reserveRegion(bytes int) ([]word, error) {
	return make([]word, bytes/wordSize), nil
}
