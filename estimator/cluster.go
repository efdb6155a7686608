// Package estimator implements the two distance estimators that sit
// between a prepared query and the beam buffer: ClusterEstimator for
// fast-scan (32-vector block) quantizer data, and SingleEstimator for
// layouts without blocking. Both produce a cheap compFastDist pass used to
// prune against the current beam top, and a compAccurateDist refinement for
// candidates that survive pruning.
package estimator

import (
	"github.com/pkg/errors"

	"github.com/caqsearch/caq"
	"github.com/caqsearch/caq/config"
	"github.com/caqsearch/caq/lut"
	"github.com/caqsearch/caq/quant"
)

// ClusterEstimator is the fast-scan cluster distance estimator (component
// 4.E): it is constructed once against a query and a distance type, then
// Prepare is called per cluster the query visits, CompFastDist per
// 32-vector block, and CompAccurateDist per surviving candidate within the
// most recently scanned block.
//
// Not safe for concurrent use; distinct instances over the same
// BaseQuantizerData may run concurrently with no synchronization.
type ClusterEstimator struct {
	base     *quant.BaseQuantizerData
	cfg      config.SearcherConfig
	queryRot []float32

	lut     *lut.Lut
	cluster *quant.CAQClusterData

	ipQC   float32
	qL2Sqr float32
	bound  float32

	// preparedBlock is the block index the LUT's cached state corresponds
	// to, or -1 before the first CompFastDist call on a cluster.
	preparedBlock int
	scratch       [2]lut.Vec16

	metrics caq.QueryRuntimeMetrics
}

// NewClusterEstimator constructs a ClusterEstimator for query against base.
// cfg.DistType must be pinned (DistL2Sqr or DistIP); DistAny is rejected, and
// each distance call switches on the pinned value. cfg.UseFastScan must be
// true and must agree with base.UseFastScan.
func NewClusterEstimator(base *quant.BaseQuantizerData, cfg config.SearcherConfig, query []float32) (*ClusterEstimator, error) {
	if !cfg.UseFastScan {
		return nil, errors.Wrap(caq.ErrConfigurationMismatch, "estimator: cfg.use_fastscan must be true for ClusterEstimator")
	}
	if !base.UseFastScan {
		return nil, &caq.ConfigError{Err: caq.ErrLayoutMismatch, Want: "fast-scan layout", Got: "single-vector layout"}
	}
	if cfg.DistType == caq.DistAny {
		return nil, errors.Wrap(caq.ErrConfigurationMismatch, "estimator: dist_type must be pinned to L2Sqr or IP")
	}
	if len(query) != base.NumDimPadded {
		return nil, errors.Wrapf(caq.ErrConfigurationMismatch, "estimator: query dim %d != %d", len(query), base.NumDimPadded)
	}

	queryRot := make([]float32, base.NumDimPadded)
	if base.Rotator != nil {
		base.Rotator.RotateInto(query, queryRot)
	} else {
		copy(queryRot, query)
	}

	return &ClusterEstimator{
		base:          base,
		cfg:           cfg,
		queryRot:      queryRot,
		lut:           lut.New(base.NumDimPadded, base.ExBits()),
		preparedBlock: -1,
	}, nil
}

// SetPruneBound stores bound = v * cfg.SearcherVarsBoundM for later use by
// VarsEstDist.
func (e *ClusterEstimator) SetPruneBound(v float32) {
	e.bound = v * float32(e.cfg.SearcherVarsBoundM)
}

// Prepare readies the estimator for a new cluster: it computes the
// distance-type-specific query/centroid scalars and rebuilds the LUT.
// Calling Prepare twice with the same cluster yields identical subsequent
// distance outputs.
func (e *ClusterEstimator) Prepare(cluster *quant.CAQClusterData) error {
	e.cluster = cluster
	centroid := cluster.Centroid()

	switch e.cfg.DistType {
	case caq.DistIP:
		e.ipQC = dot(e.queryRot, centroid)
		e.lut.Prepare(e.queryRot)
	case caq.DistL2Sqr:
		diff := make([]float32, len(e.queryRot))
		sub(e.queryRot, centroid, diff)
		e.lut.Prepare(diff)
	default:
		return errors.Wrap(caq.ErrConfigurationMismatch, "estimator: dist_type must be pinned to L2Sqr or IP")
	}
	e.qL2Sqr = e.lut.QL2Sqr()
	e.preparedBlock = -1
	return nil
}

// VarsEstDist is the pruning-only estimator: a single broadcast value (IP)
// or a per-vector lower bound from block norms alone (L2Sqr), cheaper than
// CompFastDist and independent of short codes. It backs CompFastDist when
// base.NumBits == 0, where there is no code to scan.
func (e *ClusterEstimator) VarsEstDist(blockIdx int, out *[2]lut.Vec16) error {
	switch e.cfg.DistType {
	case caq.DistIP:
		v := e.ipQC - e.bound
		for i := range out[0] {
			out[0][i] = v
			out[1][i] = v
		}
		return nil
	case caq.DistL2Sqr:
		norms, err := e.cluster.FactorOL2Norm(blockIdx)
		if err != nil {
			return err
		}
		margin := e.qL2Sqr - 2*e.bound
		for j, x := range norms {
			out[j/16][j%16] = clampNonNegative(x*x + margin)
		}
		return nil
	default:
		return errors.Wrap(caq.ErrConfigurationMismatch, "estimator: dist_type must be pinned")
	}
}

// CompFastDist produces the 32 fast-scan distance estimates for blockIdx.
// out may be nil; the call still advances the LUT's cached block state so a
// following CompAccurateDist is valid.
func (e *ClusterEstimator) CompFastDist(blockIdx int, out *[2]lut.Vec16) error {
	if e.cluster == nil {
		return errors.Wrap(caq.ErrPrecondition, "estimator: CompFastDist called before Prepare")
	}

	if e.base.NumBits == 0 {
		e.preparedBlock = blockIdx
		if out == nil {
			return nil
		}
		return e.VarsEstDist(blockIdx, out)
	}

	code, err := e.cluster.ShortCode(blockIdx)
	if err != nil {
		return err
	}
	norms, err := e.cluster.FactorOL2Norm(blockIdx)
	if err != nil {
		return err
	}

	e.lut.CompFastIP(code, &e.scratch)
	e.preparedBlock = blockIdx
	e.metrics.FastBitsum += uint64(caq.FastScanBlockSize * e.base.NumDimPadded)
	e.metrics.TotalCompCnt++

	if out == nil {
		return nil
	}

	switch e.cfg.DistType {
	case caq.DistIP:
		for j := 0; j < caq.FastScanBlockSize; j++ {
			out[j/16][j%16] = e.scratch[j/16][j%16]*0.5 + e.ipQC
		}
	case caq.DistL2Sqr:
		for j, x := range norms {
			out[j/16][j%16] = clampNonNegative(x*x + e.qL2Sqr - e.scratch[j/16][j%16])
		}
	}
	return nil
}

// CompAccurateDist refines vecIdx's distance estimate using its extended
// bits. Valid only when the most recently called CompFastDist targeted
// vecIdx's block.
func (e *ClusterEstimator) CompAccurateDist(vecIdx int) (float32, error) {
	if e.cluster == nil {
		return 0, errors.Wrap(caq.ErrPrecondition, "estimator: CompAccurateDist called before Prepare")
	}
	blk := vecIdx / caq.FastScanBlockSize
	j := vecIdx % caq.FastScanBlockSize
	if blk != e.preparedBlock {
		return 0, errors.Wrapf(caq.ErrPrecondition, "estimator: CompAccurateDist(%d) block %d does not match last CompFastDist block %d", vecIdx, blk, e.preparedBlock)
	}

	norms, err := e.cluster.FactorOL2Norm(blk)
	if err != nil {
		return 0, err
	}
	x := norms[j]
	x2 := x * x

	if e.base.NumBits == 0 {
		switch e.cfg.DistType {
		case caq.DistIP:
			return e.ipQC, nil
		default:
			return x2 + e.qL2Sqr, nil
		}
	}

	longCode, err := e.cluster.LongCode(vecIdx)
	if err != nil {
		return 0, err
	}
	factor, err := e.cluster.LongFactor(vecIdx)
	if err != nil {
		return 0, err
	}

	sqDelta := float32(2) / float32(int(1)<<uint(e.base.NumBits))
	ipOQ := factor.Rescale * e.lut.GetExtIP(longCode, sqDelta, j)

	e.metrics.AccBitsum += uint64(e.base.NumDimPadded * (e.base.NumBits - 1))
	e.metrics.TotalCompCnt++

	switch e.cfg.DistType {
	case caq.DistIP:
		return ipOQ + e.ipQC, nil
	default:
		return clampNonNegative(x2 + e.qL2Sqr - 2*ipOQ), nil
	}
}

// RuntimeMetrics returns the per-instance, non-atomic counters accumulated
// since construction.
func (e *ClusterEstimator) RuntimeMetrics() caq.QueryRuntimeMetrics {
	return e.metrics
}
