// Package config defines SearcherConfig, the small set of knobs an
// estimator is constructed against. It is intentionally independent of the
// estimator package so either a fast-scan or a single-vector estimator can
// validate against it without an import cycle.
package config

import (
	"gopkg.in/yaml.v3"

	"github.com/pkg/errors"

	"github.com/caqsearch/caq"
)

// SearcherConfig is the runtime configuration an estimator is constructed
// against. Zero value is not meaningful; use New or unmarshal YAML via
// LoadYAML — DistType has no yaml tag because it is never unmarshaled
// directly: a raw yaml.Unmarshal into SearcherConfig would try to decode a
// human-readable dist_type string like "dot" into this uint8-backed type
// and fail. LoadYAML goes through yamlShape and parseDistType instead.
type SearcherConfig struct {
	DistType           caq.DistType
	UseFastScan        bool    `yaml:"use_fastscan"`
	SearcherVarsBoundM float64 `yaml:"searcher_vars_bound_m"`
}

// New constructs a SearcherConfig, defaulting SearcherVarsBoundM to 1 when
// given 0 (an unset multiplier should not silently zero out pruning).
func New(distType caq.DistType, useFastScan bool, varsBoundM float64) SearcherConfig {
	if varsBoundM == 0 {
		varsBoundM = 1
	}
	return SearcherConfig{
		DistType:           distType,
		UseFastScan:        useFastScan,
		SearcherVarsBoundM: varsBoundM,
	}
}

// yamlShape mirrors SearcherConfig but keeps dist_type as the human-readable
// string a YAML config file would actually carry ("l2-squared", "dot",
// "any"), matching caq.DistType.String().
type yamlShape struct {
	DistType           string  `yaml:"dist_type"`
	UseFastScan        bool    `yaml:"use_fastscan"`
	SearcherVarsBoundM float64 `yaml:"searcher_vars_bound_m"`
}

// ErrUnknownDistType is returned by LoadYAML when dist_type isn't one of
// "l2-squared", "dot", or "any".
var ErrUnknownDistType = errors.New("config: unrecognized dist_type")

func parseDistType(s string) (caq.DistType, error) {
	switch s {
	case "", "any":
		return caq.DistAny, nil
	case "l2-squared":
		return caq.DistL2Sqr, nil
	case "dot":
		return caq.DistIP, nil
	default:
		return 0, errors.Wrapf(ErrUnknownDistType, "%q", s)
	}
}

// LoadYAML parses a SearcherConfig from YAML, the format the rest of the
// index's configuration surface uses.
func LoadYAML(data []byte) (SearcherConfig, error) {
	var shape yamlShape
	if err := yaml.Unmarshal(data, &shape); err != nil {
		return SearcherConfig{}, errors.Wrap(err, "config: parsing searcher config")
	}
	distType, err := parseDistType(shape.DistType)
	if err != nil {
		return SearcherConfig{}, err
	}
	boundM := shape.SearcherVarsBoundM
	if boundM == 0 {
		boundM = 1
	}
	return SearcherConfig{
		DistType:           distType,
		UseFastScan:        shape.UseFastScan,
		SearcherVarsBoundM: boundM,
	}, nil
}
