package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) { //nolint:paralleltest
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigFromEnv(t *testing.T) { //nolint:paralleltest
	t.Setenv("WORKFLOW_METRICS_ENABLED", "false")
	t.Setenv("WORKFLOW_RAISE_ON_HALT", "true")
	t.Setenv("WORKFLOW_BULK_CONCURRENCY", "0")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.False(t, cfg.MetricsEnabled)
	assert.True(t, cfg.TracingEnabled)
	assert.True(t, cfg.RaiseOnHalt)
	assert.Equal(t, 1, cfg.BulkConcurrency)
}

func TestLoadConfigInvalid(t *testing.T) { //nolint:paralleltest
	t.Setenv("WORKFLOW_BULK_CONCURRENCY", "many")

	_, err := LoadConfig()
	require.Error(t, err)
}
