// internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const minimalConfig = `{"rpc_list": ["https://api.mainnet-beta.solana.com"]}`

func TestLoadConfig_DefaultsApplied(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.ScanInterval)
	assert.Equal(t, 5*time.Second, cfg.MonitorInterval)
	assert.Equal(t, "pump", cfg.MintSuffix)
	assert.Equal(t, 50, cfg.Risk.Baseline)
	assert.Equal(t, 40, cfg.Risk.MinScore)
	assert.InDelta(t, -40.0, cfg.Risk.CrashThreshold, 0.001)
	assert.Equal(t, uint64(500), cfg.Slippage.Buy)
	assert.Equal(t, uint64(1500), cfg.Slippage.Sell)
	assert.Equal(t, uint64(2500), cfg.Slippage.Emergency)
	assert.Equal(t, uint64(50_000), cfg.Priority.Normal)
	assert.InDelta(t, 2.0, cfg.TakeProfitMultiplier, 0.001)
	assert.Contains(t, cfg.JupiterQuoteURL, "https://")
}

func TestLoadConfig_OverridesRespected(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `{
		"rpc_list": ["https://rpc.example.com"],
		"mint_suffix": "bonk",
		"take_profit_multiplier": 3.5,
		"risk": {"min_score": 60, "crash_threshold": -25}
	}`))
	require.NoError(t, err)

	assert.Equal(t, "bonk", cfg.MintSuffix)
	assert.InDelta(t, 3.5, cfg.TakeProfitMultiplier, 0.001)
	assert.Equal(t, 60, cfg.Risk.MinScore)
	assert.InDelta(t, -25.0, cfg.Risk.CrashThreshold, 0.001)
}

func TestLoadConfig_ValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing rpc list", `{}`},
		{"non-http rpc", `{"rpc_list": ["ftp://example.com"]}`},
		{"multiplier not above 1", `{"rpc_list": ["https://r.example.com"], "take_profit_multiplier": 1.0}`},
		{"positive crash threshold", `{"rpc_list": ["https://r.example.com"], "risk": {"crash_threshold": 40}}`},
		{"zero buy amount", `{"rpc_list": ["https://r.example.com"], "buy_amount_sol": 0}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig_EnvOverridesRPCList(t *testing.T) {
	t.Setenv("SNIPER_RPC_LIST", "https://one.example.com, https://two.example.com")

	cfg, err := LoadConfig(writeConfig(t, minimalConfig))
	require.NoError(t, err)
	assert.Equal(t, []string{"https://one.example.com", "https://two.example.com"}, cfg.RPCList)
}

func TestLoadConfig_EnvPostgresURL(t *testing.T) {
	t.Setenv("SNIPER_POSTGRES_URL", "postgres://engine:pw@localhost:5432/sniper")

	cfg, err := LoadConfig(writeConfig(t, minimalConfig))
	require.NoError(t, err)
	assert.Equal(t, "postgres://engine:pw@localhost:5432/sniper", cfg.PostgresURL)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
