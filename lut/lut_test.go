package lut_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/caqsearch/caq"
	"github.com/caqsearch/caq/bits"
	"github.com/caqsearch/caq/lut"
)

func buildBlockCode(D int, sign func(j, d int) bool) []byte {
	groups := D / 4
	code := make([]byte, caq.FastScanBlockSize*groups)
	for j := 0; j < caq.FastScanBlockSize; j++ {
		for g := 0; g < groups; g++ {
			var nibble byte
			for dd := 0; dd < 4; dd++ {
				if sign(j, g*4+dd) {
					nibble |= 1 << uint(dd)
				}
			}
			code[j*groups+g] = nibble
		}
	}
	return code
}

func TestCompFastIPMatchesDirectSignDot(t *testing.T) {
	D := 64
	q := make([]float32, D)
	for d := range q {
		q[d] = float32(d%9) - 4
	}

	sign := func(j, d int) bool { return (j+d)%3 == 0 }
	code := buildBlockCode(D, sign)

	l := lut.New(D, 3)
	l.Prepare(q)

	var out [2]lut.Vec16
	l.CompFastIP(code, &out)

	for j := 0; j < caq.FastScanBlockSize; j++ {
		var want float32
		for d := 0; d < D; d++ {
			if sign(j, d) {
				want += q[d]
			} else {
				want -= q[d]
			}
		}
		got := out[j/16][j%16]
		assert.InDelta(t, want, got, 1e-3, "vector %d", j)
	}
}

func TestGetExtIPCombinesSignAndExtended(t *testing.T) {
	D := 32
	exBits := 4
	q := make([]float32, D)
	for d := range q {
		q[d] = float32(d) * 0.05
	}

	sign := func(j, d int) bool { return (j*7+d)%2 == 0 }
	code := buildBlockCode(D, sign)

	extCodeFor := func(j, d int) int { return (j + d*3) % (1 << exBits) }
	planes := bits.PackExtPlanes(D, exBits, func(d int) int { return extCodeFor(3, d) })

	l := lut.New(D, exBits)
	l.Prepare(q)
	var out [2]lut.Vec16
	l.CompFastIP(code, &out)

	sqDelta := float32(2) / float32(int(1)<<uint(exBits+1))
	got := l.GetExtIP(planes, sqDelta, 3)

	var want float32
	for d := 0; d < D; d++ {
		signBit := 0
		if sign(3, d) {
			signBit = 1
		}
		want += q[d] * bits.LadderValue(signBit, extCodeFor(3, d), exBits, sqDelta)
	}
	assert.InDelta(t, want, got, 1e-3)
}

func TestPrepareComputesSumAndNorm(t *testing.T) {
	D := 16
	q := make([]float32, D)
	var wantSum, wantSq float32
	for d := range q {
		q[d] = float32(d + 1)
		wantSum += q[d]
		wantSq += q[d] * q[d]
	}
	l := lut.New(D, 2)
	l.Prepare(q)
	assert.InDelta(t, wantSum, l.SumQ(), 1e-3)
	assert.InDelta(t, wantSq, l.QL2Sqr(), 1e-3)
}
