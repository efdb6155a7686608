// Package lut builds the per-query SIMD-shaped lookup table the fast-scan
// cluster estimator probes once per candidate block: a 16-entry partial
// inner product per 4-dimension group (the fast path), plus the scratch
// state needed to reconstruct a single vector's full extended-bit inner
// product on demand (the accurate path).
package lut

import (
	"github.com/caqsearch/caq"
	"github.com/caqsearch/caq/bits"
)

// Vec16 is the 16-wide float lane CompFastIP fills, standing in for the
// 512-bit SIMD register the fast-scan estimator would otherwise use.
type Vec16 = [16]float32

// Lut holds one query's fast-scan lookup table and the scratch state
// GetExtIP needs. It is reused across blocks within a query via Prepare and
// CompFastIP; it is not safe for concurrent use.
type Lut struct {
	d      int
	exBits int

	// qTable[g][c] is the partial inner product of q's 4-dimension group g
	// against the 4-bit sign pattern c, for every c in [0,16).
	qTable [][16]float32

	q      []float32
	sumQ   float32
	qL2Sqr float32

	// curShortCode caches the most recent CompFastIP call's block, so a
	// subsequent GetExtIP can recover the sign bit half of the ladder
	// value without the caller re-passing it.
	curShortCode []byte
}

// New allocates a Lut for dimension D (a multiple of caq.DimPadding) and
// exBits extended bits per dimension.
func New(D, exBits int) *Lut {
	return &Lut{
		d:            D,
		exBits:       exBits,
		qTable:       make([][16]float32, D/4),
		q:            make([]float32, D),
		curShortCode: make([]byte, 0),
	}
}

// Dim returns D.
func (l *Lut) Dim() int { return l.d }

// ExBits returns the configured number of extended bits.
func (l *Lut) ExBits() int { return l.exBits }

// SumQ returns sum(q) from the most recent Prepare call.
func (l *Lut) SumQ() float32 { return l.sumQ }

// QL2Sqr returns ||q||^2 from the most recent Prepare call.
func (l *Lut) QL2Sqr() float32 { return l.qL2Sqr }

// Prepare resets the table for a new query q (length D): it fills the
// 16-entry-per-group fast-scan table and stores q itself, sum(q), and
// ||q||^2 for later accurate-path and fast-path distance calibration.
func (l *Lut) Prepare(q []float32) {
	copy(l.q, q)

	var sum, sqSum float32
	for _, v := range q {
		sum += v
		sqSum += v * v
	}
	l.sumQ = sum
	l.qL2Sqr = sqSum

	groups := l.d / 4
	for g := 0; g < groups; g++ {
		base := g * 4
		for c := 0; c < 16; c++ {
			var ip float32
			for dd := 0; dd < 4; dd++ {
				if (c>>dd)&1 != 0 {
					ip += q[base+dd]
				} else {
					ip -= q[base+dd]
				}
			}
			l.qTable[g][c] = ip
		}
	}
}

// CompFastIP evaluates the 32 fast-scan partial inner products for one
// block's nibble codes (FastScanBlockSize*(D/4) bytes, vector-major, values
// in [0,16)) via table lookups, writing the low 16 into out[0] and the high
// 16 into out[1]. It also caches shortCode so a following GetExtIP call can
// recover each vector's sign bits.
func (l *Lut) CompFastIP(shortCode []byte, out *[2]Vec16) {
	if cap(l.curShortCode) < len(shortCode) {
		l.curShortCode = make([]byte, len(shortCode))
	}
	l.curShortCode = l.curShortCode[:len(shortCode)]
	copy(l.curShortCode, shortCode)

	groups := l.d / 4
	for j := 0; j < caq.FastScanBlockSize; j++ {
		var sum float32
		row := shortCode[j*groups : j*groups+groups]
		for g, code := range row {
			sum += l.qTable[g][code]
		}
		out[j/16][j%16] = sum
	}
}

// GetExtIP reconstructs the full (sign + extended bits) inner product of q
// with the j-th vector of the block most recently passed to CompFastIP,
// scaled by sqDelta = 2/2^B. j indexes within that block (0..31); longCode
// is the target vector's extended-bit planes, each D/64 words.
//
// The cluster estimator's accurate path never adds a separate short-code
// term on top of this: the sign contribution is folded in here using the
// short code CompFastIP cached, matching the one-call accurate-path shape
// the fast-scan cluster estimator uses (compare the two-term formula the
// single-vector estimator uses in estimator.SingleEstimator.CompAccurateDist,
// which has no cached block to draw a sign bit from and so computes both
// terms explicitly).
func (l *Lut) GetExtIP(longCode [][]uint64, sqDelta float32, j int) float32 {
	groups := l.d / 4
	row := l.curShortCode[j*groups : j*groups+groups]

	var sum float32
	for d := 0; d < l.d; d++ {
		g := d / 4
		bitPos := d % 4
		signBit := int((row[g] >> uint(bitPos)) & 1)
		extCode := bits.ExtCodeAt(longCode, d)
		sum += l.q[d] * bits.LadderValue(signBit, extCode, l.exBits, sqDelta)
	}
	return sum
}
