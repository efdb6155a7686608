//go:build linux

package memalign

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// mmapRelease unmaps an anonymous mapping on Release.
type mmapRelease struct {
	addr uintptr
	size int
}

func (m *mmapRelease) release() error {
	return unix.Munmap(unsafe.Slice((*byte)(unsafe.Pointer(m.addr)), m.size))
}

// NewHugePage allocates n elements of T backed by an anonymous mmap with a
// MADV_HUGEPAGE advisory, for large allocations where transparent huge
// pages materially cut TLB pressure (per-cluster short/long code arenas are
// the intended caller). mmap's page granularity already guarantees an
// alignment far coarser than 64 bytes, so no padding trick is needed here.
func NewHugePage[T any](n int, alignment int) (*Buffer[T], error) {
	if alignment <= 0 {
		alignment = DefaultAlignment
	}
	if n <= 0 {
		return &Buffer[T]{Alignment: alignment}, nil
	}

	var zero T
	elemSize := int(unsafe.Sizeof(zero))
	size := n * elemSize
	pageSize := unix.Getpagesize()
	size = ((size + pageSize - 1) / pageSize) * pageSize

	addr, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, ErrAllocationFailure
	}

	base := uintptr(unsafe.Pointer(unsafe.SliceData(addr)))
	_ = unix.Madvise(addr, unix.MADV_HUGEPAGE)

	data := unsafe.Slice((*T)(unsafe.Pointer(base)), n)
	return &Buffer[T]{
		Data:      data,
		Alignment: alignment,
		hugePage:  &mmapRelease{addr: base, size: size},
	}, nil
}
