package caq

import "github.com/pkg/errors"

// Sentinel errors surfaced across the estimator/beam boundary. Callers use
// errors.Is against these; none are retried internally.
var (
	// ErrConfigurationMismatch is returned when a SearcherConfig or query
	// does not fit the estimator: an unpinned DistType (DistAny), a
	// UseFastScan flag that disagrees with the estimator kind, or a query of
	// the wrong dimension.
	ErrConfigurationMismatch = errors.New("caq: distance type mismatch between estimator and config")

	// ErrLayoutMismatch is returned when a fast-scan estimator is built on
	// non-fast-scan data, or vice versa.
	ErrLayoutMismatch = errors.New("caq: quantizer data layout does not match estimator")

	// ErrUnsupportedPath marks the single-vector cluster estimator's
	// inner-product path, which the reference implementation never
	// finished; callers must use L2Sqr with ClusterEstimatorSingle.
	ErrUnsupportedPath = errors.New("caq: inner-product path not implemented for single-vector cluster estimator")

	// ErrAllocationFailure is returned when an aligned allocation could not
	// be satisfied by the host allocator.
	ErrAllocationFailure = errors.New("caq: aligned allocation failed")

	// ErrPrecondition marks a call-order violation: CompFastDist or
	// CompAccurateDist called before Prepare, or CompAccurateDist without a
	// matching prior CompFastDist. Popping an empty beam buffer panics
	// instead of returning this error.
	ErrPrecondition = errors.New("caq: precondition violated")
)

// ConfigError wraps ErrConfigurationMismatch/ErrLayoutMismatch with the
// offending values so callers can log something actionable.
type ConfigError struct {
	Err  error
	Want string
	Got  string
}

func (e *ConfigError) Error() string {
	return errors.Wrapf(e.Err, "want %s, got %s", e.Want, e.Got).Error()
}

func (e *ConfigError) Unwrap() error { return e.Err }
