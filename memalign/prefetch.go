package memalign

import "unsafe"

// MaxPrefetchLines bounds the num_lines argument to MemPrefetchL1/L2. The
// fallthrough ladder below only has cases up to this count.
const MaxPrefetchLines = 20

// cacheLineSize matches the alignment the rest of the package targets.
const cacheLineSize = 64

// prefetchL1 issues a single L1 prefetch hint for addr. Go has no portable
// prefetch intrinsic without cgo or hand-written assembly per architecture;
// following the "noasm" fallback used elsewhere in the ecosystem, we read
// one byte through an unsafe pointer so the hardware prefetcher still picks
// up the access pattern, and the compiler cannot fold the read away since
// its result escapes through volatileSink.
func prefetchL1(addr unsafe.Pointer) {
	volatileSink = *(*byte)(addr)
}

// prefetchL2 is the L2-hint counterpart of prefetchL1. On the portable path
// there is no distinction between cache levels the Go runtime can express,
// so it performs the same read; the distinction matters for the call sites
// (L1 for data about to be consumed, L2 for data one step ahead).
func prefetchL2(addr unsafe.Pointer) {
	volatileSink = *(*byte)(addr)
}

// volatileSink exists solely so prefetch reads have an observable effect
// and can't be eliminated as dead loads.
var volatileSink byte

// PrefetchL1 issues one L1 prefetch hint for the cache line at addr.
func PrefetchL1(addr unsafe.Pointer) { prefetchL1(addr) }

// PrefetchL2 issues one L2 prefetch hint for the cache line at addr.
func PrefetchL2(addr unsafe.Pointer) { prefetchL2(addr) }

// MemPrefetchL1 issues exactly numLines consecutive 64-byte-line L1
// prefetch hints starting at ptr (numLines capped at MaxPrefetchLines).
// The ladder is resolved with a plain Go switch/fallthrough so the compiler
// emits a fixed dispatch (jump table) rather than a data-dependent loop —
// no line beyond the numLines-th is ever touched.
func MemPrefetchL1(ptr unsafe.Pointer, numLines int) {
	p := uintptr(ptr)
	if numLines > MaxPrefetchLines {
		numLines = MaxPrefetchLines
	}
	switch numLines {
	case 20:
		prefetchL1(unsafe.Pointer(p))
		p += cacheLineSize
		fallthrough
	case 19:
		prefetchL1(unsafe.Pointer(p))
		p += cacheLineSize
		fallthrough
	case 18:
		prefetchL1(unsafe.Pointer(p))
		p += cacheLineSize
		fallthrough
	case 17:
		prefetchL1(unsafe.Pointer(p))
		p += cacheLineSize
		fallthrough
	case 16:
		prefetchL1(unsafe.Pointer(p))
		p += cacheLineSize
		fallthrough
	case 15:
		prefetchL1(unsafe.Pointer(p))
		p += cacheLineSize
		fallthrough
	case 14:
		prefetchL1(unsafe.Pointer(p))
		p += cacheLineSize
		fallthrough
	case 13:
		prefetchL1(unsafe.Pointer(p))
		p += cacheLineSize
		fallthrough
	case 12:
		prefetchL1(unsafe.Pointer(p))
		p += cacheLineSize
		fallthrough
	case 11:
		prefetchL1(unsafe.Pointer(p))
		p += cacheLineSize
		fallthrough
	case 10:
		prefetchL1(unsafe.Pointer(p))
		p += cacheLineSize
		fallthrough
	case 9:
		prefetchL1(unsafe.Pointer(p))
		p += cacheLineSize
		fallthrough
	case 8:
		prefetchL1(unsafe.Pointer(p))
		p += cacheLineSize
		fallthrough
	case 7:
		prefetchL1(unsafe.Pointer(p))
		p += cacheLineSize
		fallthrough
	case 6:
		prefetchL1(unsafe.Pointer(p))
		p += cacheLineSize
		fallthrough
	case 5:
		prefetchL1(unsafe.Pointer(p))
		p += cacheLineSize
		fallthrough
	case 4:
		prefetchL1(unsafe.Pointer(p))
		p += cacheLineSize
		fallthrough
	case 3:
		prefetchL1(unsafe.Pointer(p))
		p += cacheLineSize
		fallthrough
	case 2:
		prefetchL1(unsafe.Pointer(p))
		p += cacheLineSize
		fallthrough
	case 1:
		prefetchL1(unsafe.Pointer(p))
	case 0:
	}
}

// MemPrefetchL2 is the L2-hint counterpart of MemPrefetchL1.
func MemPrefetchL2(ptr unsafe.Pointer, numLines int) {
	p := uintptr(ptr)
	if numLines > MaxPrefetchLines {
		numLines = MaxPrefetchLines
	}
	switch numLines {
	case 20:
		prefetchL2(unsafe.Pointer(p))
		p += cacheLineSize
		fallthrough
	case 19:
		prefetchL2(unsafe.Pointer(p))
		p += cacheLineSize
		fallthrough
	case 18:
		prefetchL2(unsafe.Pointer(p))
		p += cacheLineSize
		fallthrough
	case 17:
		prefetchL2(unsafe.Pointer(p))
		p += cacheLineSize
		fallthrough
	case 16:
		prefetchL2(unsafe.Pointer(p))
		p += cacheLineSize
		fallthrough
	case 15:
		prefetchL2(unsafe.Pointer(p))
		p += cacheLineSize
		fallthrough
	case 14:
		prefetchL2(unsafe.Pointer(p))
		p += cacheLineSize
		fallthrough
	case 13:
		prefetchL2(unsafe.Pointer(p))
		p += cacheLineSize
		fallthrough
	case 12:
		prefetchL2(unsafe.Pointer(p))
		p += cacheLineSize
		fallthrough
	case 11:
		prefetchL2(unsafe.Pointer(p))
		p += cacheLineSize
		fallthrough
	case 10:
		prefetchL2(unsafe.Pointer(p))
		p += cacheLineSize
		fallthrough
	case 9:
		prefetchL2(unsafe.Pointer(p))
		p += cacheLineSize
		fallthrough
	case 8:
		prefetchL2(unsafe.Pointer(p))
		p += cacheLineSize
		fallthrough
	case 7:
		prefetchL2(unsafe.Pointer(p))
		p += cacheLineSize
		fallthrough
	case 6:
		prefetchL2(unsafe.Pointer(p))
		p += cacheLineSize
		fallthrough
	case 5:
		prefetchL2(unsafe.Pointer(p))
		p += cacheLineSize
		fallthrough
	case 4:
		prefetchL2(unsafe.Pointer(p))
		p += cacheLineSize
		fallthrough
	case 3:
		prefetchL2(unsafe.Pointer(p))
		p += cacheLineSize
		fallthrough
	case 2:
		prefetchL2(unsafe.Pointer(p))
		p += cacheLineSize
		fallthrough
	case 1:
		prefetchL2(unsafe.Pointer(p))
	case 0:
	}
}
