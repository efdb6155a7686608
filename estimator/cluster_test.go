package estimator_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caqsearch/caq"
	"github.com/caqsearch/caq/config"
	"github.com/caqsearch/caq/estimator"
	"github.com/caqsearch/caq/lut"
	"github.com/caqsearch/caq/quant"
)

const testDim = 64

func buildBaseAndCluster(t *testing.T, numBits int, numVectors int) (*quant.BaseQuantizerData, *quant.CAQClusterData) {
	t.Helper()
	base, err := quant.NewBaseQuantizerData(testDim, numBits, nil, true)
	require.NoError(t, err)
	cd, err := quant.NewCAQClusterData(base, numVectors)
	require.NoError(t, err)
	centroid := make([]float32, testDim)
	cd.SetCentroid(centroid)
	return base, cd
}

// S4: with q = 0, B = 0, comp_accurate_dist(L2Sqr) = |x|^2.
func TestScenarioS4L2SquaredZeroQuery(t *testing.T) {
	base, cd := buildBaseAndCluster(t, 0, 32)
	norms := make([]float32, caq.FastScanBlockSize)
	for j := range norms {
		norms[j] = float32(j) + 1
	}
	code := make([]byte, caq.FastScanBlockSize*(testDim/4))
	require.NoError(t, cd.SetBlock(0, norms, code))

	q := make([]float32, testDim)
	cfg := config.New(caq.DistL2Sqr, true, 1)
	est, err := estimator.NewClusterEstimator(base, cfg, q)
	require.NoError(t, err)
	require.NoError(t, est.Prepare(cd))
	require.NoError(t, est.CompFastDist(0, nil))

	for j, x := range norms {
		got, err := est.CompAccurateDist(j)
		require.NoError(t, err)
		assert.InDelta(t, x*x, got, 1e-4)
	}
}

// S5: with B = 0, IP mode, comp_fast_dist equals broadcast(ip_q_c - bound)
// after set_prune_bound(var); comp_accurate_dist equals ip_q_c.
func TestScenarioS5IPIdentity(t *testing.T) {
	base, cd := buildBaseAndCluster(t, 0, 32)
	centroid := make([]float32, testDim)
	for i := range centroid {
		centroid[i] = float32(i) * 0.1
	}
	cd.SetCentroid(centroid)
	norms := make([]float32, caq.FastScanBlockSize)
	code := make([]byte, caq.FastScanBlockSize*(testDim/4))
	require.NoError(t, cd.SetBlock(0, norms, code))

	q := make([]float32, testDim)
	for i := range q {
		q[i] = float32(i) * 0.05
	}
	cfg := config.New(caq.DistIP, true, 2)
	est, err := estimator.NewClusterEstimator(base, cfg, q)
	require.NoError(t, err)
	require.NoError(t, est.Prepare(cd))

	est.SetPruneBound(3)
	var out [2]lut.Vec16
	require.NoError(t, est.CompFastDist(0, &out))

	var wantIPQC float32
	for i := range q {
		wantIPQC += q[i] * centroid[i]
	}
	wantBroadcast := wantIPQC - 3*2

	for j := 0; j < caq.FastScanBlockSize; j++ {
		assert.InDelta(t, wantBroadcast, out[j/16][j%16], 1e-3)
	}

	for j := 0; j < caq.FastScanBlockSize; j++ {
		got, err := est.CompAccurateDist(j)
		require.NoError(t, err)
		assert.InDelta(t, wantIPQC, got, 1e-3)
	}
}

// S6: for B = 4 and a small synthetic cluster, fast and accurate distance
// estimates for the same vector should stay within a generous envelope of
// each other — both are estimates of the same underlying quantity derived
// from the same codes, not independent computations.
func TestScenarioS6FastThenAccurateConsistency(t *testing.T) {
	base, cd := buildBaseAndCluster(t, 4, 32)
	centroid := make([]float32, testDim)
	cd.SetCentroid(centroid)

	groups := testDim / 4
	norms := make([]float32, caq.FastScanBlockSize)
	code := make([]byte, caq.FastScanBlockSize*groups)
	for j := range norms {
		norms[j] = 1.0
		for g := 0; g < groups; g++ {
			code[j*groups+g] = byte((j*3 + g) % 16)
		}
	}
	require.NoError(t, cd.SetBlock(0, norms, code))

	exBits := base.ExBits()
	for j := 0; j < caq.FastScanBlockSize; j++ {
		planes := make([][]uint64, exBits)
		for p := range planes {
			planes[p] = []uint64{uint64((j + p) % 2)}
		}
		require.NoError(t, cd.SetVector(j, planes, caq.ExFactor{Rescale: 1}))
	}

	q := make([]float32, testDim)
	for i := range q {
		q[i] = float32(math.Sin(float64(i))) * 0.3
	}
	cfg := config.New(caq.DistL2Sqr, true, 1)
	est, err := estimator.NewClusterEstimator(base, cfg, q)
	require.NoError(t, err)
	require.NoError(t, est.Prepare(cd))

	var out [2]lut.Vec16
	require.NoError(t, est.CompFastDist(0, &out))

	for j := 0; j < caq.FastScanBlockSize; j++ {
		fast := out[j/16][j%16]
		accurate, err := est.CompAccurateDist(j)
		require.NoError(t, err)
		assert.InDelta(t, fast, accurate, 4.0, "vector %d fast=%.4f accurate=%.4f", j, fast, accurate)
	}
}

func TestClusterEstimatorRejectsNonFastScanConfig(t *testing.T) {
	base, err := quant.NewBaseQuantizerData(testDim, 4, nil, true)
	require.NoError(t, err)
	cfg := config.New(caq.DistL2Sqr, false, 1)
	_, err = estimator.NewClusterEstimator(base, cfg, make([]float32, testDim))
	assert.Error(t, err)
}

func TestClusterEstimatorRejectsLayoutMismatch(t *testing.T) {
	base, err := quant.NewBaseQuantizerData(testDim, 4, nil, false)
	require.NoError(t, err)
	cfg := config.New(caq.DistL2Sqr, true, 1)
	_, err = estimator.NewClusterEstimator(base, cfg, make([]float32, testDim))
	assert.ErrorIs(t, err, caq.ErrLayoutMismatch)
}

func TestClusterEstimatorAccurateDistRequiresMatchingBlock(t *testing.T) {
	base, cd := buildBaseAndCluster(t, 4, 64)
	norms := make([]float32, caq.FastScanBlockSize)
	code := make([]byte, caq.FastScanBlockSize*(testDim/4))
	require.NoError(t, cd.SetBlock(0, norms, code))
	require.NoError(t, cd.SetBlock(1, norms, code))

	cfg := config.New(caq.DistL2Sqr, true, 1)
	est, err := estimator.NewClusterEstimator(base, cfg, make([]float32, testDim))
	require.NoError(t, err)
	require.NoError(t, est.Prepare(cd))
	require.NoError(t, est.CompFastDist(0, nil))

	_, err = est.CompAccurateDist(40) // block 1
	assert.ErrorIs(t, err, caq.ErrPrecondition)
}
