// Package quant defines the read-only data views the estimator consumes:
// immutable per-index metadata (BaseQuantizerData) and per-cluster packed
// codes (CAQClusterData). Training the quantizer that produces these codes,
// and persisting them to disk, are both out of scope here — this package
// only owns the in-memory contract and a builder that allocates storage
// with the alignment the estimator's SIMD-shaped loads require.
package quant

import (
	"github.com/pkg/errors"

	"github.com/caqsearch/caq"
	"github.com/caqsearch/caq/rotation"
)

// ErrDimensionNotPadded is returned when a requested dimension isn't a
// multiple of caq.DimPadding.
var ErrDimensionNotPadded = errors.New("quant: dimension is not a multiple of the required padding")

// ErrBitsOutOfRange is returned when NumBits falls outside [0, MaxQuantizeBits].
var ErrBitsOutOfRange = errors.New("quant: number of quantization bits out of range")

// BaseQuantizerData is the immutable, index-lifetime metadata every cluster
// estimator is built against: the padded dimension, bit width, optional
// rotator, and whether the index stores vectors in fast-scan (32-wide
// blocks) or single-vector layout.
type BaseQuantizerData struct {
	NumDimPadded int
	NumBits      int
	Rotator      *rotation.Matrix
	UseFastScan  bool
}

// NewBaseQuantizerData validates and constructs a BaseQuantizerData.
func NewBaseQuantizerData(numDimPadded, numBits int, rotator *rotation.Matrix, useFastScan bool) (*BaseQuantizerData, error) {
	if numDimPadded <= 0 || numDimPadded%caq.DimPadding != 0 {
		return nil, errors.Wrapf(ErrDimensionNotPadded, "D=%d must be a multiple of %d", numDimPadded, caq.DimPadding)
	}
	if numBits < 0 || numBits > caq.MaxQuantizeBits {
		return nil, errors.Wrapf(ErrBitsOutOfRange, "B=%d must be in [0,%d]", numBits, caq.MaxQuantizeBits)
	}
	return &BaseQuantizerData{
		NumDimPadded: numDimPadded,
		NumBits:      numBits,
		Rotator:      rotator,
		UseFastScan:  useFastScan,
	}, nil
}

// ExBits is the number of extended bits per dimension carried by the long
// code: B-1, or 0 when B is 0 or 1.
func (d *BaseQuantizerData) ExBits() int {
	if d.NumBits == 0 {
		return 0
	}
	return d.NumBits - 1
}
