// Package caq implements the core of a compressed asymmetric quantization
// (CAQ) distance estimator and its companion beam search buffer, the hot
// inner loop of a graph-based approximate nearest neighbor search.
package caq

// PointID identifies a stored vector. The high bit is reserved by the beam
// buffer as a "checked" flag; no PointID with the high bit set is valid
// outside that package.
type PointID = uint32

// CheckedBit is the bit the beam buffer steals from PointID to mark an entry
// as already popped.
const CheckedBit PointID = 1 << 31

// Candidate pairs a PointID with its distance to the query. Ordering is by
// Distance ascending; equal distances are tied arbitrarily and stably.
type Candidate struct {
	ID       PointID
	Distance float32
}

// DistType selects the metric an estimator computes. L2Sqr and IP pin the
// metric; Any leaves it unpinned, and the estimators in package estimator
// reject it at construction.
type DistType uint8

const (
	// DistAny leaves the metric unpinned ("any" in YAML); estimators reject it.
	DistAny DistType = iota
	// DistL2Sqr is squared Euclidean distance.
	DistL2Sqr
	// DistIP is (negative) inner product similarity.
	DistIP
)

func (d DistType) String() string {
	switch d {
	case DistL2Sqr:
		return "l2-squared"
	case DistIP:
		return "dot"
	default:
		return "any"
	}
}

// Numeric constants fixed by the design.
const (
	// FastScanBlockSize is the number of vectors grouped per fast-scan block.
	FastScanBlockSize = 32
	// DimPadding is the required multiple for the padded dimension D.
	DimPadding = 64
	// MaxQuantizeBits is the largest supported number of quantization bits.
	// Above this the extended-bit inner product estimator loses accuracy
	// (the scale factor becomes numerically unstable).
	MaxQuantizeBits = 13
	// ConstBound is the fixed calibration constant used by the single-vector
	// fast-distance estimator (4.F) to correct for the 1-bit sign encoding.
	ConstBound float32 = 0.58
	// EstError is the fixed calibration constant used alongside ConstBound.
	EstError float32 = 0.8
)

// QueryRuntimeMetrics are per-instance, non-atomic counters an estimator
// accumulates over the lifetime of one query.
type QueryRuntimeMetrics struct {
	FastBitsum   uint64
	AccBitsum    uint64
	TotalCompCnt uint64
}

// ExFactor is the per-vector rescale factor restoring unbiasedness of the
// extended-bit inner-product estimate.
type ExFactor struct {
	Rescale float32
}
