//go:build !linux

package memalign

// NewHugePage falls back to the portable aligned allocator on platforms
// without a transparent-huge-page advisory (MADV_HUGEPAGE is Linux-only).
func NewHugePage[T any](n int, alignment int) (*Buffer[T], error) {
	return New[T](n, alignment)
}
