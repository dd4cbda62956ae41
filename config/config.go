package config

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

type Config struct {
	// Chain and network settings
	ChainID     uint64 `json:"chain_id"`
	RPCEndpoint string `json:"rpc_endpoint"`

	// Settlement contract
	ArbitrageContract common.Address `json:"arbitrage_contract"`

	// Scan cycle settings
	PollInterval      time.Duration `json:"poll_interval"`
	BackoffMultiplier int           `json:"backoff_multiplier"`
	CatalogPath       string        `json:"catalog_path"`

	// Opportunity thresholds
	MinNetProfit        float64 `json:"min_net_profit"`        // quote units
	MaxImpactFraction   float64 `json:"max_impact_fraction"`   // e.g. 0.005
	FlashLoanFeePercent float64 `json:"flash_loan_fee_percent"`
	MinProfitFraction   float64 `json:"min_profit_fraction"` // acceptable share of expected net

	// Gas is paid in the chain's native asset; this names its wrapped form
	// in the catalog so gas costs can be converted to quote units.
	NativeSymbol string `json:"native_symbol"`

	// Gas limits
	MaxGasPrice *big.Int `json:"max_gas_price"` // wei, cycles skip above this

	// Network settings
	NetworkTimeout time.Duration   `json:"network_timeout"`
	RPCRateLimit   RateLimitConfig `json:"rpc_rate_limit"`

	// Feature flags
	PrometheusEnabled  bool   `json:"prometheus_enabled"`
	PrometheusEndpoint string `json:"prometheus_endpoint"`

	// Internal components
	Logger *zap.Logger `json:"-"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64       `json:"requests_per_second"`
	BurstSize         int           `json:"burst_size"`
	WaitTimeout       time.Duration `json:"wait_timeout"`
}

// DefaultConfig mirrors the values the bot has been operated with: a 10
// second poll, 6x backoff on failure, 0.05% Aave flash-loan fee, 0.5%
// impact-bounded sizing and a 95% profit guard.
func DefaultConfig() *Config {
	return &Config{
		ChainID:             42161,
		PollInterval:        10 * time.Second,
		BackoffMultiplier:   6,
		CatalogPath:         "catalog.yaml",
		MinNetProfit:        1.0,
		MaxImpactFraction:   0.005,
		FlashLoanFeePercent: 0.05,
		MinProfitFraction:   0.95,
		NativeSymbol:        "WETH",
		MaxGasPrice:         big.NewInt(10_000_000_000), // 10 gwei
		NetworkTimeout:      15 * time.Second,
		RPCRateLimit: RateLimitConfig{
			RequestsPerSecond: 20,
			BurstSize:         40,
			WaitTimeout:       5 * time.Second,
		},
	}
}

// LoadConfig reads a JSON config file over the defaults. An empty path
// returns the defaults with environment overrides only.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if rpc := os.Getenv(EnvRPCEndpoint); rpc != "" {
		cfg.RPCEndpoint = rpc
	}
	if contract := os.Getenv(EnvArbitrageContract); contract != "" {
		cfg.ArbitrageContract = common.HexToAddress(contract)
	}

	if err := cfg.ValidateConfig(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) ValidateConfig() error {
	var errors []string

	if c.ChainID == 0 {
		errors = append(errors, "chain_id must be specified")
	}
	if c.RPCEndpoint == "" {
		errors = append(errors, "rpc_endpoint must be specified")
	}
	if c.ArbitrageContract == (common.Address{}) {
		errors = append(errors, "arbitrage_contract must be specified")
	}
	if c.PollInterval <= 0 {
		errors = append(errors, "poll_interval must be positive")
	}
	if c.BackoffMultiplier < 1 {
		errors = append(errors, "backoff_multiplier must be at least 1")
	}
	if c.MaxImpactFraction <= 0 || c.MaxImpactFraction > 1 {
		errors = append(errors, "max_impact_fraction must be in (0, 1]")
	}
	if c.FlashLoanFeePercent < 0 {
		errors = append(errors, "flash_loan_fee_percent must not be negative")
	}
	if c.MinProfitFraction <= 0 || c.MinProfitFraction > 1 {
		errors = append(errors, "min_profit_fraction must be in (0, 1]")
	}
	if c.NativeSymbol == "" {
		errors = append(errors, "native_symbol must be specified")
	}
	if c.MaxGasPrice == nil || c.MaxGasPrice.Sign() <= 0 {
		errors = append(errors, "max_gas_price must be positive")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}
	return nil
}
