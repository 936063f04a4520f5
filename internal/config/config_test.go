package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelguard/guardian/internal/config"
	"github.com/modelguard/guardian/pkg/api"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := config.NewDefaultConfig()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, config.DefaultAPIPort, cfg.APIPort)
	assert.Equal(t, api.BackoffTypeExponential, cfg.Retry.BackoffType)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("API_PORT", "9090")
	t.Setenv("ENGINE_URL", "http://engine:6300")
	t.Setenv("API_KEYS", "alpha, beta,")
	t.Setenv("RETRY_MAX_RETRIES", "5")
	t.Setenv("BACKFILL_ERROR_TOLERANCE", "0.1")
	t.Setenv("ADAPTER_TIMEOUT", "1500")

	cfg := config.NewDefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, 9090, cfg.APIPort)
	assert.Equal(t, "http://engine:6300", cfg.EngineURL)
	assert.Equal(t, []string{"alpha", "beta"}, cfg.APIKeys)
	assert.Equal(t, 5, cfg.Retry.MaxRetries)
	assert.InDelta(t, 0.1, cfg.BackfillTolerance, 1e-9)
	assert.Equal(t, int64(1500), cfg.AdapterTimeout.Milliseconds())
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnvRejectsBadValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "port out of range", key: "API_PORT", value: "70000"},
		{name: "port not a number", key: "API_PORT", value: "http"},
		{name: "negative backoff", key: "RETRY_INITIAL_BACKOFF", value: "-1"},
		{name: "tolerance above one", key: "BACKFILL_ERROR_TOLERANCE", value: "1.5"},
		{name: "zero timeout", key: "ADAPTER_TIMEOUT", value: "0"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			cfg := config.NewDefaultConfig()
			assert.Error(t, cfg.LoadFromEnv())
		})
	}
}

func TestValidateRejectsBadConfig(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.APIKeys = nil
	assert.ErrorIs(t, cfg.Validate(), config.ErrNoAPIKeys)

	cfg = config.NewDefaultConfig()
	cfg.Retry.BackoffType = "random"
	assert.ErrorIs(t, cfg.Validate(), config.ErrInvalidRetryBackoffType)

	cfg = config.NewDefaultConfig()
	cfg.Retry.MaxBackoff = cfg.Retry.InitBackoff - 1
	assert.ErrorIs(t, cfg.Validate(), config.ErrRetryMaxBackoffTooSmall)
}
