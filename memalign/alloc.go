// Package memalign provides cache-line-aligned buffer allocation and
// software prefetch hints for the estimator and quantized-data-view hot
// paths. The fast-scan short codes, per-block factor arrays and centroid are
// allocated here so they land on 64-byte boundaries and a single
// AVX-512-width SIMD load never straddles two cache lines. Long codes are
// plain Go slices in quant.CAQClusterData and are not aligned.
package memalign

import (
	"unsafe"

	"github.com/pkg/errors"
)

// DefaultAlignment matches AVX-512 cache-line usage.
const DefaultAlignment = 64

// Buffer owns a slice of T whose first element is aligned to Alignment
// bytes. Release returns the backing memory; a Buffer must not be used
// after Release.
type Buffer[T any] struct {
	Data      []T
	Alignment int
	raw       []byte
	hugePage  releaser
}

// releaser abstracts the huge-page-backed path so the portable allocator
// doesn't need to know about mmap/madvise.
type releaser interface {
	release() error
}

// New allocates a zero-initialized buffer of n elements of T aligned to
// alignment bytes (0 selects DefaultAlignment). It never requests huge-page
// backing; use NewHugePage for that.
func New[T any](n int, alignment int) (*Buffer[T], error) {
	if alignment <= 0 {
		alignment = DefaultAlignment
	}
	if n < 0 {
		return nil, errors.Wrap(ErrInvalidSize, "negative element count")
	}
	if n == 0 {
		return &Buffer[T]{Alignment: alignment}, nil
	}

	var zero T
	elemSize := int(unsafe.Sizeof(zero))
	raw := make([]byte, n*elemSize+alignment)
	if raw == nil {
		return nil, ErrAllocationFailure
	}

	base := uintptr(unsafe.Pointer(unsafe.SliceData(raw)))
	offset := (alignment - int(base%uintptr(alignment))) % alignment

	ptr := unsafe.Pointer(&raw[offset])
	data := unsafe.Slice((*T)(ptr), n)

	return &Buffer[T]{
		Data:      data,
		Alignment: alignment,
		raw:       raw,
	}, nil
}

// Release returns the buffer's backing memory. For the portable allocator
// this is a no-op beyond dropping references (the Go GC owns the memory);
// huge-page-backed buffers unmap themselves here.
func (b *Buffer[T]) Release() error {
	if b == nil {
		return nil
	}
	if b.hugePage != nil {
		err := b.hugePage.release()
		b.hugePage = nil
		b.Data = nil
		b.raw = nil
		return err
	}
	b.Data = nil
	b.raw = nil
	return nil
}

// IsAligned reports whether ptr already satisfies alignment bytes.
func IsAligned(ptr unsafe.Pointer, alignment int) bool {
	return uintptr(ptr)%uintptr(alignment) == 0
}
