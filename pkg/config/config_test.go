package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalJSON = `{
	"mode": "paper",
	"pairs": ["BTC/USD", "ETH/USD"],
	"initial_balance": 25000,
	"tick_interval_seconds": 30,
	"strategies": [
		{"name": "sma_momentum", "enabled": true},
		{"name": "rsi_reversal", "enabled": false}
	]
}`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bot.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// TestLoad_AppliesDefaultsAndOverrides tests file parsing over defaults
func TestLoad_AppliesDefaultsAndOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalJSON))
	require.NoError(t, err)

	assert.Equal(t, ModePaper, cfg.Mode)
	assert.Equal(t, []string{"BTC/USD", "ETH/USD"}, cfg.Pairs)
	assert.Equal(t, 25000.0, cfg.InitialBalance)

	// Derived engine fields.
	assert.Equal(t, cfg.Pairs, cfg.Engine.Pairs)
	assert.Equal(t, 30*time.Second, cfg.Engine.TickInterval)

	// Untouched sections keep their defaults.
	assert.Equal(t, 100, cfg.Engine.CandleWindow)
	assert.Equal(t, 3, cfg.Risk.MaxPositions)
	assert.Equal(t, 0.05, cfg.Stop.MaxDailyLossPct)
}

// TestLoad_SecretsFromEnvOnly tests that credentials come from the
// environment, never the file
func TestLoad_SecretsFromEnvOnly(t *testing.T) {
	t.Setenv("BYBIT_API_KEY", "env-key")
	t.Setenv("BYBIT_API_SECRET", "env-secret")
	t.Setenv("DATABASE_URL", "postgres://env-dsn")

	cfg, err := Load(writeConfig(t, minimalJSON))
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.Exchange.APIKey)
	assert.Equal(t, "env-secret", cfg.Exchange.APISecret)
	assert.Equal(t, "postgres://env-dsn", cfg.DatabaseDSN)

	bb := cfg.BybitConfig()
	assert.Equal(t, "env-key", bb.APIKey)
	assert.Equal(t, "env-secret", bb.APISecret)
}

// TestLoad_MissingFile tests the read error path
func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

// TestLoad_BadJSON tests the parse error path
func TestLoad_BadJSON(t *testing.T) {
	_, err := Load(writeConfig(t, "{not json"))
	assert.Error(t, err)
}

// TestValidate tests each rejection rule
func TestValidate(t *testing.T) {
	valid := func(t *testing.T) *Config {
		cfg, err := Load(writeConfig(t, minimalJSON))
		require.NoError(t, err)
		return cfg
	}

	cases := map[string]struct {
		mutate func(*Config)
		errHas string
	}{
		"bad mode":          {func(c *Config) { c.Mode = "dryrun" }, "mode"},
		"no pairs":          {func(c *Config) { c.Pairs = nil }, "pair"},
		"malformed pair":    {func(c *Config) { c.Pairs = []string{"BTCUSD"} }, "BASE/QUOTE"},
		"zero balance":      {func(c *Config) { c.InitialBalance = 0 }, "initial_balance"},
		"zero interval":     {func(c *Config) { c.TickIntervalSeconds = 0 }, "tick_interval"},
		"negative slippage": {func(c *Config) { c.Engine.SlippagePct = -0.01 }, "slippage"},
		"no strategies":     {func(c *Config) { c.Strategies = nil }, "strategy"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := valid(t)
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errHas)
		})
	}
}

// TestValidate_LiveNeedsCredentials tests the live-mode credential gate
func TestValidate_LiveNeedsCredentials(t *testing.T) {
	t.Setenv("BYBIT_API_KEY", "")
	t.Setenv("BYBIT_API_SECRET", "")

	liveJSON := `{
		"mode": "live",
		"pairs": ["BTC/USD"],
		"strategies": [{"name": "sma_momentum", "enabled": true}]
	}`
	_, err := Load(writeConfig(t, liveJSON))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BYBIT_API_KEY")

	t.Setenv("BYBIT_API_KEY", "k")
	t.Setenv("BYBIT_API_SECRET", "s")
	cfg, err := Load(writeConfig(t, liveJSON))
	require.NoError(t, err)
	assert.Equal(t, ModeLive, cfg.Mode)
}

// TestBuildStrategies tests construction of the enabled set in order
func TestBuildStrategies(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalJSON))
	require.NoError(t, err)

	strategies, err := cfg.BuildStrategies()
	require.NoError(t, err)
	require.Len(t, strategies, 1, "disabled strategies are skipped")
	assert.Equal(t, "sma_momentum", strategies[0].Name())
}
