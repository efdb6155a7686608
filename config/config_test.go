package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caqsearch/caq"
	"github.com/caqsearch/caq/config"
)

func TestNewDefaultsVarsBoundM(t *testing.T) {
	cfg := config.New(caq.DistL2Sqr, true, 0)
	assert.Equal(t, float64(1), cfg.SearcherVarsBoundM)
	assert.True(t, cfg.UseFastScan)
}

func TestLoadYAMLParsesDistType(t *testing.T) {
	yamlDoc := []byte(`
dist_type: dot
use_fastscan: true
searcher_vars_bound_m: 2.5
`)
	cfg, err := config.LoadYAML(yamlDoc)
	require.NoError(t, err)
	assert.Equal(t, caq.DistIP, cfg.DistType)
	assert.True(t, cfg.UseFastScan)
	assert.Equal(t, 2.5, cfg.SearcherVarsBoundM)
}

func TestLoadYAMLRejectsUnknownDistType(t *testing.T) {
	_, err := config.LoadYAML([]byte(`dist_type: sideways`))
	assert.ErrorIs(t, err, config.ErrUnknownDistType)
}

func TestLoadYAMLDefaultsVarsBoundM(t *testing.T) {
	cfg, err := config.LoadYAML([]byte(`dist_type: l2-squared`))
	require.NoError(t, err)
	assert.Equal(t, float64(1), cfg.SearcherVarsBoundM)
}
