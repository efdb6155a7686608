package memalign

import "github.com/pkg/errors"

// ErrAllocationFailure is returned when the host allocator could not
// satisfy an aligned allocation request.
var ErrAllocationFailure = errors.New("memalign: aligned allocation failed")

// ErrInvalidSize is returned for a negative element count.
var ErrInvalidSize = errors.New("memalign: invalid size")
