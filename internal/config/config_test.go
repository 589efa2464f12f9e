package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rxtech-lab/argo-signals/pkg/errors"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestDefaultConfig(t *testing.T) {
	config := Default()

	assert.Equal(t, "BTCUSDT", config.Symbol)
	assert.Equal(t, "binance", config.Exchange)
	assert.Equal(t, 5*time.Second, config.UpdateInterval())
	assert.Equal(t, ":8080", config.ListenAddr)
	assert.Equal(t, 5*time.Second, config.ReconnectDelay())
	assert.Zero(t, config.MaxReconnectAttempts)
	assert.True(t, config.Filter.EntryFilterEnabled)

	require.NoError(t, config.Validate())
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
symbol: ETHUSDT
update_interval_seconds: 10
listen_addr: ":9090"
filter:
  entry_filter_enabled: false
  exit_trigger_enabled: true
  exit_liquidation_threshold: 0.95
`)

	config, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "ETHUSDT", config.Symbol)
	assert.Equal(t, 10*time.Second, config.UpdateInterval())
	assert.Equal(t, ":9090", config.ListenAddr)
	// Fields absent from the file keep their defaults.
	assert.Equal(t, "binance", config.Exchange)
	assert.False(t, config.Filter.EntryFilterEnabled)
	assert.InDelta(t, 0.95, config.Filter.ExitLiquidationThreshold, 1e-9)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))

	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeConfigFile(t, "symbol: [unclosed")

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := writeConfigFile(t, `
symbol: ""
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidConfiguration))

	path = writeConfigFile(t, `
update_interval_seconds: 0
`)

	_, err = Load(path)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func TestJSONSchema(t *testing.T) {
	schema, err := JSONSchema()
	require.NoError(t, err)

	assert.Contains(t, schema, `"symbol"`)
	assert.Contains(t, schema, `"update_interval_seconds"`)
	assert.Contains(t, schema, `"filter"`)
	// Inline schema, no $defs references.
	assert.NotContains(t, schema, `"$ref"`)
}
