//go:build go1.22

package malloc

import (
	"errors"
	"fmt"
)

// ErrExhausted means an arena's reservation cannot be grown further to
// satisfy a request. It is never retried internally; Malloc simply
// surfaces it as a nil return.
var ErrExhausted = errors.New("malloc: arena reservation exhausted")

// ErrReserveFailed means the OS declined to hand back a virtual memory
// reservation for a new arena. Init treats this as fatal.
var ErrReserveFailed = errors.New("malloc: failed to reserve virtual memory")

// ExhaustionError reports the size of the request that triggered
// ErrExhausted, so callers that care can recover it with
// [github.com/flier/parmalloc/pkg/xerrors.AsA] instead of only learning
// that some allocation, somewhere, failed.
type ExhaustionError struct {
	Size int
}

func (e *ExhaustionError) Error() string {
	return fmt.Sprintf("%s: %d bytes", ErrExhausted, e.Size)
}

func (e *ExhaustionError) Unwrap() error { return ErrExhausted }

// ReserveError reports the byte count and underlying OS error behind a
// failed arena reservation.
type ReserveError struct {
	Bytes int
	Err   error
}

func (e *ReserveError) Error() string {
	return fmt.Sprintf("%s: %d bytes: %v", ErrReserveFailed, e.Bytes, e.Err)
}

func (e *ReserveError) Unwrap() error { return ErrReserveFailed }
