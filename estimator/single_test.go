package estimator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caqsearch/caq"
	"github.com/caqsearch/caq/bits"
	"github.com/caqsearch/caq/config"
	"github.com/caqsearch/caq/estimator"
	"github.com/caqsearch/caq/quant"
)

func newSingleBase(t *testing.T, numBits int) *quant.BaseQuantizerData {
	t.Helper()
	base, err := quant.NewBaseQuantizerData(testDim, numBits, nil, false)
	require.NoError(t, err)
	return base
}

func TestSingleEstimatorZeroQueryL2Squared(t *testing.T) {
	base := newSingleBase(t, 0)
	cfg := config.New(caq.DistL2Sqr, false, 1)
	est, err := estimator.NewSingleEstimator(base, cfg)
	require.NoError(t, err)

	q := make([]float32, testDim)
	require.NoError(t, est.Prepare(q))

	x := float32(3.5)
	got, err := est.CompAccurateDist(x, nil, nil, caq.ExFactor{Rescale: 1})
	require.NoError(t, err)
	assert.InDelta(t, x*x, got, 1e-4)
}

func TestSingleEstimatorFastAndAccurateAgreeInSign(t *testing.T) {
	base := newSingleBase(t, 5)
	cfg := config.New(caq.DistL2Sqr, false, 1)
	est, err := estimator.NewSingleEstimator(base, cfg)
	require.NoError(t, err)

	q := make([]float32, testDim)
	for i := range q {
		q[i] = float32(i%5) - 2
	}
	require.NoError(t, est.Prepare(q))

	sign := bits.PackSignBits(testDim, func(d int) bool { return d%2 == 0 })
	exBits := base.ExBits()
	planes := bits.PackExtPlanes(testDim, exBits, func(d int) int { return d % (1 << exBits) })

	x := float32(1.2)
	fast, err := est.CompFastDist(x, sign)
	require.NoError(t, err)
	accurate, err := est.CompAccurateDist(x, sign, planes, caq.ExFactor{Rescale: 1})
	require.NoError(t, err)

	assert.False(t, fast < 0)
	assert.False(t, accurate < 0)
}

// Pins both estimates to hand-computed values. With rescale 1 they are not
// close: sum_q = -2, ||q||^2 = 126, the masked short-code IP is -2 and the
// extended-bit IP is -30, so the accurate path gives
// 1.44 + 126 - 2*(-2 - 30/16 + (-1+1/32)*(-2)) = 131.315; the fast path's
// warmup IP is -127*delta (delta = 4/255.99), so it gives
// 127.44 - 0.75*(-127*delta + 0.5*2 + 0.58*sqrt(126)) ~= 123.2955.
func TestSingleEstimatorFastAndAccurateHandComputed(t *testing.T) {
	base := newSingleBase(t, 5)
	cfg := config.New(caq.DistL2Sqr, false, 1)
	est, err := estimator.NewSingleEstimator(base, cfg)
	require.NoError(t, err)

	q := make([]float32, testDim)
	for i := range q {
		q[i] = float32(i%5) - 2
	}
	require.NoError(t, est.Prepare(q))

	sign := bits.PackSignBits(testDim, func(d int) bool { return d%2 == 0 })
	exBits := base.ExBits()
	planes := bits.PackExtPlanes(testDim, exBits, func(d int) int { return d % (1 << exBits) })

	x := float32(1.2)
	fast, err := est.CompFastDist(x, sign)
	require.NoError(t, err)
	accurate, err := est.CompAccurateDist(x, sign, planes, caq.ExFactor{Rescale: 1})
	require.NoError(t, err)

	assert.InDelta(t, 131.315, accurate, 1e-3, "accurate=%.4f", accurate)
	assert.InDelta(t, 123.2955, fast, 1e-3, "fast=%.4f", fast)
}

func TestSingleEstimatorRejectsFastScanConfig(t *testing.T) {
	base := newSingleBase(t, 4)
	cfg := config.New(caq.DistL2Sqr, true, 1)
	_, err := estimator.NewSingleEstimator(base, cfg)
	assert.Error(t, err)
}

func TestClusterEstimatorSingleRejectsIPPath(t *testing.T) {
	base := newSingleBase(t, 4)
	cfg := config.New(caq.DistIP, false, 1)
	_, err := estimator.NewClusterEstimatorSingle(base, cfg)
	assert.ErrorIs(t, err, caq.ErrUnsupportedPath)
}

func TestClusterEstimatorSingleLooksUpFromCluster(t *testing.T) {
	base := newSingleBase(t, 5)
	cd, err := quant.NewCAQClusterData(base, 4)
	require.NoError(t, err)
	cd.SetCentroid(make([]float32, testDim))

	sign := bits.PackSignBits(testDim, func(d int) bool { return d%3 == 0 })
	require.NoError(t, cd.SetShortCodeSingle(2, sign))
	exBits := base.ExBits()
	planes := make([][]uint64, exBits)
	for p := range planes {
		planes[p] = make([]uint64, bits.WordsFor(testDim))
	}
	require.NoError(t, cd.SetVector(2, planes, caq.ExFactor{Rescale: 1}))

	cfg := config.New(caq.DistL2Sqr, false, 1)
	est, err := estimator.NewClusterEstimatorSingle(base, cfg)
	require.NoError(t, err)

	q := make([]float32, testDim)
	require.NoError(t, est.Prepare(cd, q))

	got, err := est.CompAccurateDist(2, 2.0)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, got, 1e-3)
}
