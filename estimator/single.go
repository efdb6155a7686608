package estimator

import (
	"math"

	"github.com/pkg/errors"

	"github.com/caqsearch/caq"
	"github.com/caqsearch/caq/bits"
	"github.com/caqsearch/caq/config"
	"github.com/caqsearch/caq/quant"
)

// SingleEstimator is the distance estimator for index layouts without
// fast-scan blocking (component 4.F): it shares CompFastDist/
// CompAccurateDist's distance semantics with ClusterEstimator but operates
// one vector at a time, taking that vector's codes as explicit arguments
// rather than looking them up from a bound cluster. prepare receives a
// query already rotated into the quantizer's frame and centered against
// whatever centroid the caller's partitioning uses — SingleEstimator itself
// has no notion of a cluster.
//
// Since there is no cluster dot product term here (no bound CAQClusterData,
// no centroid stored on the estimator), the IP distance formulas in the
// specification's "as in 4.E" cross-reference collapse to the raw
// extended-bit inner product with no additive ip_q_c term — the caller is
// expected to have folded any such offset into q before calling Prepare.
type SingleEstimator struct {
	base *quant.BaseQuantizerData
	cfg  config.SearcherConfig
	bound float32

	q       []float32
	qL2Sqr  float32
	qL2Norm float32
	sumQ    float32
	qVl     float32
	delta   float32

	querySQ  []uint8
	queryBin [][]uint64

	metrics caq.QueryRuntimeMetrics
}

// NewSingleEstimator constructs a SingleEstimator against base and cfg.
// cfg.DistType must be pinned and cfg.UseFastScan must be false, matching
// base.UseFastScan.
func NewSingleEstimator(base *quant.BaseQuantizerData, cfg config.SearcherConfig) (*SingleEstimator, error) {
	if cfg.UseFastScan {
		return nil, errors.Wrap(caq.ErrConfigurationMismatch, "estimator: cfg.use_fastscan must be false for SingleEstimator")
	}
	if base.UseFastScan {
		return nil, &caq.ConfigError{Err: caq.ErrLayoutMismatch, Want: "single-vector layout", Got: "fast-scan layout"}
	}
	if cfg.DistType == caq.DistAny {
		return nil, errors.Wrap(caq.ErrConfigurationMismatch, "estimator: dist_type must be pinned to L2Sqr or IP")
	}
	return &SingleEstimator{base: base, cfg: cfg}, nil
}

// SetPruneBound stores bound = v * cfg.SearcherVarsBoundM.
func (e *SingleEstimator) SetPruneBound(v float32) {
	e.bound = v * float32(e.cfg.SearcherVarsBoundM)
}

// Prepare readies the estimator for q, which callers must already have
// rotated into the quantizer's frame and centered against the relevant
// centroid. It computes the running scalars CompFastDist/CompAccurateDist
// need and 8-bit scalar-quantizes q into a bit-transposed plane layout for
// the fast path's popcount trick.
func (e *SingleEstimator) Prepare(q []float32) error {
	if len(q) != e.base.NumDimPadded {
		return errors.Wrapf(caq.ErrConfigurationMismatch, "estimator: query dim %d != %d", len(q), e.base.NumDimPadded)
	}
	e.q = append(e.q[:0], q...)

	qVl, qVr := q[0], q[0]
	var sum, sqSum float32
	for _, v := range q {
		if v < qVl {
			qVl = v
		}
		if v > qVr {
			qVr = v
		}
		sum += v
		sqSum += v * v
	}
	e.sumQ = sum
	e.qL2Sqr = sqSum
	e.qL2Norm = float32(math.Sqrt(float64(sqSum)))
	e.qVl = qVl
	e.delta = (qVr - qVl) / (256 - 0.01)

	if cap(e.querySQ) < len(q) {
		e.querySQ = make([]uint8, len(q))
	}
	e.querySQ = e.querySQ[:len(q)]
	for d, v := range q {
		e.querySQ[d] = bits.QuantizeUint8(v, qVl, e.delta)
	}
	e.queryBin = bits.BuildPlanes8(e.querySQ)
	return nil
}

// varsEstDist is the single-vector analogue of ClusterEstimator.VarsEstDist,
// used when base.NumBits == 0 so there is no code to scan: for IP it is the
// negated pruning bound (there is no cluster dot term to add, see the
// SingleEstimator doc comment); for L2Sqr it mirrors 4.E's per-vector
// formula directly.
func (e *SingleEstimator) varsEstDist(x float32) float32 {
	switch e.cfg.DistType {
	case caq.DistIP:
		return -e.bound
	default:
		return clampNonNegative(x*x + e.qL2Sqr - 2*e.bound)
	}
}

// CompFastDist estimates the distance between the prepared query and a
// vector with centroid-relative norm x, given its 1-bit short code
// (shortCode, D/64 packed words).
func (e *SingleEstimator) CompFastDist(x float32, shortCode []uint64) (float32, error) {
	if e.q == nil {
		return 0, errors.Wrap(caq.ErrPrecondition, "estimator: CompFastDist called before Prepare")
	}
	if e.base.NumBits == 0 {
		return e.varsEstDist(x), nil
	}

	tmp := bits.WarmupIP(shortCode, e.queryBin, e.delta, e.qVl+0.5*e.delta, e.base.NumDimPadded)
	d := float32(e.base.NumDimPadded)
	ipOa1Qq := (tmp - (0.5*e.sumQ - caq.ConstBound*e.qL2Norm)) * (4 / caq.EstError / float32(math.Sqrt(float64(d)))) * x

	e.metrics.FastBitsum += uint64(e.base.NumDimPadded)
	e.metrics.TotalCompCnt++

	switch e.cfg.DistType {
	case caq.DistIP:
		return ipOa1Qq * 0.5, nil
	default:
		return clampNonNegative(e.qL2Sqr + x*x - ipOa1Qq), nil
	}
}

// CompAccurateDist refines the distance between the prepared query and a
// vector given its centroid-relative norm x, 1-bit short code, extended-bit
// long code, and rescale factor.
func (e *SingleEstimator) CompAccurateDist(x float32, shortCode []uint64, longCode [][]uint64, exFactor caq.ExFactor) (float32, error) {
	if e.q == nil {
		return 0, errors.Wrap(caq.ErrPrecondition, "estimator: CompAccurateDist called before Prepare")
	}
	if e.base.NumBits == 0 {
		switch e.cfg.DistType {
		case caq.DistIP:
			return 0, nil
		default:
			return x*x + e.qL2Sqr, nil
		}
	}

	D := e.base.NumDimPadded
	// MaskIP weighs each dimension by +/-1; the ladder's sign bit adds q[d]
	// only where it is set (the -1 offset lives in the sum_q term below), so
	// convert to the 0/1-masked sum.
	ipOa1Q := (bits.MaskIP(e.q, shortCode, D) + e.sumQ) / 2
	exIP := bits.ExtIP(e.q, longCode, D)

	sqDelta := float32(2) / float32(int(1)<<uint(e.base.NumBits))
	tmp := ipOa1Q + float32(exIP)*sqDelta + (-1+sqDelta/2)*e.sumQ
	ipOQ := exFactor.Rescale * tmp

	e.metrics.AccBitsum += uint64(D * (e.base.NumBits - 1))
	e.metrics.TotalCompCnt++

	switch e.cfg.DistType {
	case caq.DistIP:
		return ipOQ, nil
	default:
		return clampNonNegative(x*x + e.qL2Sqr - 2*ipOQ), nil
	}
}

// RuntimeMetrics returns the per-instance, non-atomic counters accumulated
// since construction.
func (e *SingleEstimator) RuntimeMetrics() caq.QueryRuntimeMetrics {
	return e.metrics
}

// ClusterEstimatorSingle adapts SingleEstimator to a bound CAQClusterData,
// looking codes up by vector index the way ClusterEstimator does for
// fast-scan data. Its IP path is unimplemented: the reference
// implementation this is grounded on left it as a throw-then-dead-code
// stub, so this wrapper fails fast with caq.ErrUnsupportedPath instead of
// guessing a formula. Use SingleEstimator directly, or L2Sqr, if IP support
// is required.
type ClusterEstimatorSingle struct {
	inner   *SingleEstimator
	cluster *quant.CAQClusterData
}

// NewClusterEstimatorSingle constructs a ClusterEstimatorSingle. Returns
// caq.ErrUnsupportedPath immediately if cfg.DistType is DistIP.
func NewClusterEstimatorSingle(base *quant.BaseQuantizerData, cfg config.SearcherConfig) (*ClusterEstimatorSingle, error) {
	if cfg.DistType == caq.DistIP {
		return nil, caq.ErrUnsupportedPath
	}
	inner, err := NewSingleEstimator(base, cfg)
	if err != nil {
		return nil, err
	}
	return &ClusterEstimatorSingle{inner: inner}, nil
}

// SetPruneBound delegates to the inner SingleEstimator.
func (e *ClusterEstimatorSingle) SetPruneBound(v float32) { e.inner.SetPruneBound(v) }

// Prepare binds cluster and readies the inner estimator for q.
func (e *ClusterEstimatorSingle) Prepare(cluster *quant.CAQClusterData, q []float32) error {
	e.cluster = cluster
	return e.inner.Prepare(q)
}

// CompFastDist looks up vecIdx's short code and norm x from the bound
// cluster and delegates to the inner estimator. x must be supplied by the
// caller since CAQClusterData has no per-vector norm accessor for
// single-vector layout (only the fast-scan per-block factor_o_l2norm).
func (e *ClusterEstimatorSingle) CompFastDist(vecIdx int, x float32) (float32, error) {
	code, err := e.cluster.ShortCodeSingle(vecIdx)
	if err != nil {
		return 0, err
	}
	return e.inner.CompFastDist(x, code)
}

// CompAccurateDist looks up vecIdx's codes and rescale factor from the
// bound cluster and delegates to the inner estimator.
func (e *ClusterEstimatorSingle) CompAccurateDist(vecIdx int, x float32) (float32, error) {
	shortCode, err := e.cluster.ShortCodeSingle(vecIdx)
	if err != nil {
		return 0, err
	}
	longCode, err := e.cluster.LongCode(vecIdx)
	if err != nil {
		return 0, err
	}
	factor, err := e.cluster.LongFactor(vecIdx)
	if err != nil {
		return 0, err
	}
	return e.inner.CompAccurateDist(x, shortCode, longCode, *factor)
}

// RuntimeMetrics delegates to the inner SingleEstimator.
func (e *ClusterEstimatorSingle) RuntimeMetrics() caq.QueryRuntimeMetrics {
	return e.inner.RuntimeMetrics()
}
