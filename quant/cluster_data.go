package quant

import (
	"github.com/pkg/errors"

	"github.com/caqsearch/caq"
	"github.com/caqsearch/caq/bits"
	"github.com/caqsearch/caq/memalign"
)

// ErrVectorIndexOutOfRange is returned by an accessor given a vector index
// outside [0, NumVectors).
var ErrVectorIndexOutOfRange = errors.New("quant: vector index out of range")

// ErrBlockIndexOutOfRange is returned by a block accessor given a block
// index outside [0, NumBlocks).
var ErrBlockIndexOutOfRange = errors.New("quant: block index out of range")

// ErrFastScanRequired is returned by a fast-scan accessor on data built
// without UseFastScan.
var ErrFastScanRequired = errors.New("quant: fast-scan layout required")

// CAQClusterData is the packed, read-only quantized view of one cluster's
// vectors: a shared centroid, per-vector extended-bit long codes and
// rescale factors, and — when the owning BaseQuantizerData selects
// fast-scan — per-block 1-bit-per-dimension short codes laid out in
// 4-dimension-group nibbles plus per-block L2 norms relative to the
// centroid. A cluster estimator never mutates this view; it is built once
// by NewCAQClusterData and the Set* methods and shared read-only across
// concurrent query instances.
type CAQClusterData struct {
	base       *BaseQuantizerData
	numVectors int
	numBlocks  int

	centroid *memalign.Buffer[float32]

	// Fast-scan layout: one nibble (4 bits, one per dimension in the group)
	// per (vector, group-of-4-dims) pair, stored unpacked (one byte per
	// nibble) for clarity — see SPEC_FULL.md section 3 for why the true
	// 2-nibbles-per-byte packing isn't reproduced here.
	shortCodeBlocks []*memalign.Buffer[byte]
	factorL2Norm    []*memalign.Buffer[float32]

	// Single-vector layout: bit-packed sign code plus bit-sliced extended
	// planes, consumed by the single-vector estimator's popcount tricks.
	shortCodeSingle [][]uint64
	longCode        [][][]uint64
	longFactor      []caq.ExFactor
}

// NewCAQClusterData allocates a CAQClusterData for numVectors vectors under
// base. Fast-scan storage (short codes, per-block L2 norms) is only
// allocated when base.UseFastScan is set; single-vector storage (bit-packed
// short/long codes, rescale factors) is always allocated since both the
// fast-scan cluster estimator and the single-vector estimator read it.
func NewCAQClusterData(base *BaseQuantizerData, numVectors int) (*CAQClusterData, error) {
	if numVectors < 0 {
		return nil, errors.Wrap(ErrVectorIndexOutOfRange, "negative vector count")
	}

	centroid, err := memalign.New[float32](base.NumDimPadded, memalign.DefaultAlignment)
	if err != nil {
		return nil, errors.Wrap(err, "allocating centroid")
	}

	d := &CAQClusterData{
		base:       base,
		numVectors: numVectors,
		numBlocks:  (numVectors + caq.FastScanBlockSize - 1) / caq.FastScanBlockSize,
		centroid:   centroid,
	}

	exBits := base.ExBits()
	d.shortCodeSingle = make([][]uint64, numVectors)
	d.longCode = make([][][]uint64, numVectors)
	d.longFactor = make([]caq.ExFactor, numVectors)
	for i := 0; i < numVectors; i++ {
		d.shortCodeSingle[i] = make([]uint64, bits.WordsFor(base.NumDimPadded))
		planes := make([][]uint64, exBits)
		for p := range planes {
			planes[p] = make([]uint64, bits.WordsFor(base.NumDimPadded))
		}
		d.longCode[i] = planes
		d.longFactor[i] = caq.ExFactor{Rescale: 1}
	}

	if base.UseFastScan {
		groups := base.NumDimPadded / 4
		d.shortCodeBlocks = make([]*memalign.Buffer[byte], d.numBlocks)
		d.factorL2Norm = make([]*memalign.Buffer[float32], d.numBlocks)
		for b := 0; b < d.numBlocks; b++ {
			codeBuf, err := memalign.New[byte](caq.FastScanBlockSize*groups, memalign.DefaultAlignment)
			if err != nil {
				return nil, errors.Wrapf(err, "allocating short code block %d", b)
			}
			normBuf, err := memalign.New[float32](caq.FastScanBlockSize, memalign.DefaultAlignment)
			if err != nil {
				return nil, errors.Wrapf(err, "allocating L2 norm block %d", b)
			}
			d.shortCodeBlocks[b] = codeBuf
			d.factorL2Norm[b] = normBuf
		}
	}

	return d, nil
}

// Dim returns the padded dimension shared by every vector in this cluster.
func (d *CAQClusterData) Dim() int { return d.base.NumDimPadded }

// NumVectors returns the number of vectors stored.
func (d *CAQClusterData) NumVectors() int { return d.numVectors }

// NumBlocks returns the number of 32-wide fast-scan blocks, rounding the
// last block up; callers must not read past NumVectors() within it.
func (d *CAQClusterData) NumBlocks() int { return d.numBlocks }

// Centroid returns the cluster's centroid vector. Callers must not mutate
// the returned slice.
func (d *CAQClusterData) Centroid() []float32 { return d.centroid.Data }

// SetCentroid copies centroid into the cluster's centroid storage.
func (d *CAQClusterData) SetCentroid(centroid []float32) {
	copy(d.centroid.Data, centroid)
}

// FactorOL2Norm returns the 32 per-vector L2 norms (relative to the
// centroid) for blockIdx, used by the fast-scan estimator's fast-distance
// calibration. Fails if the data wasn't built with UseFastScan.
func (d *CAQClusterData) FactorOL2Norm(blockIdx int) ([]float32, error) {
	if d.factorL2Norm == nil {
		return nil, ErrFastScanRequired
	}
	if blockIdx < 0 || blockIdx >= d.numBlocks {
		return nil, errors.Wrapf(ErrBlockIndexOutOfRange, "block %d of %d", blockIdx, d.numBlocks)
	}
	return d.factorL2Norm[blockIdx].Data, nil
}

// ShortCode returns the fast-scan nibble codes for blockIdx: one byte per
// (vector, dimension-group) pair, value in [0,16), FastScanBlockSize*D/4
// bytes long, vector-major.
func (d *CAQClusterData) ShortCode(blockIdx int) ([]byte, error) {
	if d.shortCodeBlocks == nil {
		return nil, ErrFastScanRequired
	}
	if blockIdx < 0 || blockIdx >= d.numBlocks {
		return nil, errors.Wrapf(ErrBlockIndexOutOfRange, "block %d of %d", blockIdx, d.numBlocks)
	}
	return d.shortCodeBlocks[blockIdx].Data, nil
}

// SetBlock writes the per-vector L2 norms and nibble codes for blockIdx.
// l2norms must have length FastScanBlockSize; code must have length
// FastScanBlockSize*(Dim()/4). Unused slots past NumVectors() in the final
// partial block are left at their caller-supplied values (typically zero).
func (d *CAQClusterData) SetBlock(blockIdx int, l2norms []float32, code []byte) error {
	if d.shortCodeBlocks == nil {
		return ErrFastScanRequired
	}
	if blockIdx < 0 || blockIdx >= d.numBlocks {
		return errors.Wrapf(ErrBlockIndexOutOfRange, "block %d of %d", blockIdx, d.numBlocks)
	}
	copy(d.factorL2Norm[blockIdx].Data, l2norms)
	copy(d.shortCodeBlocks[blockIdx].Data, code)
	return nil
}

// ShortCodeSingle returns the bit-packed 1-bit sign code for vecIdx, D/64
// words long, consumed by the single-vector estimator's bitplane tricks.
func (d *CAQClusterData) ShortCodeSingle(vecIdx int) ([]uint64, error) {
	if vecIdx < 0 || vecIdx >= d.numVectors {
		return nil, errors.Wrapf(ErrVectorIndexOutOfRange, "vector %d of %d", vecIdx, d.numVectors)
	}
	return d.shortCodeSingle[vecIdx], nil
}

// SetShortCodeSingle overwrites the bit-packed sign code for vecIdx.
func (d *CAQClusterData) SetShortCodeSingle(vecIdx int, code []uint64) error {
	if vecIdx < 0 || vecIdx >= d.numVectors {
		return errors.Wrapf(ErrVectorIndexOutOfRange, "vector %d of %d", vecIdx, d.numVectors)
	}
	copy(d.shortCodeSingle[vecIdx], code)
	return nil
}

// LongCode returns the ExBits() bit-sliced extended planes for vecIdx, each
// D/64 words long.
func (d *CAQClusterData) LongCode(vecIdx int) ([][]uint64, error) {
	if vecIdx < 0 || vecIdx >= d.numVectors {
		return nil, errors.Wrapf(ErrVectorIndexOutOfRange, "vector %d of %d", vecIdx, d.numVectors)
	}
	return d.longCode[vecIdx], nil
}

// LongFactor returns the rescale factor for vecIdx.
func (d *CAQClusterData) LongFactor(vecIdx int) (*caq.ExFactor, error) {
	if vecIdx < 0 || vecIdx >= d.numVectors {
		return nil, errors.Wrapf(ErrVectorIndexOutOfRange, "vector %d of %d", vecIdx, d.numVectors)
	}
	return &d.longFactor[vecIdx], nil
}

// SetVector writes the extended-bit planes and rescale factor for vecIdx.
// longCode's plane count must equal base.ExBits(); each plane must be D/64
// words long.
func (d *CAQClusterData) SetVector(vecIdx int, longCode [][]uint64, factor caq.ExFactor) error {
	if vecIdx < 0 || vecIdx >= d.numVectors {
		return errors.Wrapf(ErrVectorIndexOutOfRange, "vector %d of %d", vecIdx, d.numVectors)
	}
	for p, plane := range longCode {
		copy(d.longCode[vecIdx][p], plane)
	}
	d.longFactor[vecIdx] = factor
	return nil
}

// Release returns the aligned storage backing this cluster's fast-scan
// blocks and centroid. The single-vector storage is plain Go slices and
// needs no explicit release.
func (d *CAQClusterData) Release() error {
	var firstErr error
	if err := d.centroid.Release(); err != nil && firstErr == nil {
		firstErr = err
	}
	for _, buf := range d.shortCodeBlocks {
		if err := buf.Release(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, buf := range d.factorL2Norm {
		if err := buf.Release(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
