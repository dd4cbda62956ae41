package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.RPCEndpoint = "https://arb1.example.com/rpc"
	cfg.ArbitrageContract = common.HexToAddress("0x000000000000000000000000000000000000dEaD")
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, uint64(42161), cfg.ChainID)
	assert.Equal(t, "10s", cfg.PollInterval.String())
	assert.Equal(t, 6, cfg.BackoffMultiplier)
	assert.Equal(t, 0.05, cfg.FlashLoanFeePercent)
	assert.Equal(t, 0.005, cfg.MaxImpactFraction)
	assert.Equal(t, 0.95, cfg.MinProfitFraction)
	assert.Equal(t, "WETH", cfg.NativeSymbol)
	assert.Equal(t, "10000000000", cfg.MaxGasPrice.String())
}

func TestValidateConfig(t *testing.T) {
	assert.NoError(t, validConfig().ValidateConfig())

	t.Run("MissingEndpoint", func(t *testing.T) {
		cfg := validConfig()
		cfg.RPCEndpoint = ""
		err := cfg.ValidateConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "rpc_endpoint")
	})

	t.Run("ZeroBackoff", func(t *testing.T) {
		cfg := validConfig()
		cfg.BackoffMultiplier = 0
		assert.Error(t, cfg.ValidateConfig())
	})

	t.Run("ImpactOutOfRange", func(t *testing.T) {
		cfg := validConfig()
		cfg.MaxImpactFraction = 1.5
		assert.Error(t, cfg.ValidateConfig())
	})

	t.Run("MissingNativeSymbol", func(t *testing.T) {
		cfg := validConfig()
		cfg.NativeSymbol = ""
		err := cfg.ValidateConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "native_symbol")
	})

	t.Run("NilGasCeiling", func(t *testing.T) {
		cfg := validConfig()
		cfg.MaxGasPrice = nil
		assert.Error(t, cfg.ValidateConfig())
	})

	t.Run("CollectsAllFailures", func(t *testing.T) {
		cfg := validConfig()
		cfg.RPCEndpoint = ""
		cfg.BackoffMultiplier = 0
		err := cfg.ValidateConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "rpc_endpoint")
		assert.Contains(t, err.Error(), "backoff_multiplier")
	})
}

func TestLoadConfigFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	payload := map[string]interface{}{
		"rpc_endpoint":       "https://arb1.example.com/rpc",
		"arbitrage_contract": "0x000000000000000000000000000000000000dEaD",
		"min_net_profit":     25.0,
		"backoff_multiplier": 3,
	}
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 25.0, cfg.MinNetProfit)
	assert.Equal(t, 3, cfg.BackoffMultiplier)
	// Untouched keys keep their defaults.
	assert.Equal(t, 0.05, cfg.FlashLoanFeePercent)
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	payload := map[string]interface{}{
		"rpc_endpoint":       "https://file.example.com/rpc",
		"arbitrage_contract": "0x000000000000000000000000000000000000dEaD",
	}
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	t.Setenv(EnvRPCEndpoint, "https://env.example.com/rpc")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "https://env.example.com/rpc", cfg.RPCEndpoint)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	_, err := LoadConfig("")
	// Defaults alone carry no endpoint or contract.
	assert.Error(t, err)
}
