package gas

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// Pricer exposes what the scheduler needs from gas tracking: a per-cycle
// refresh, the current price for the ceiling gate, and a cost estimate in
// quote units for the scanner's net-profit figure.
type Pricer interface {
	Refresh(ctx context.Context) error
	GasPrice() *big.Int
	CostInQuote(gasLimit uint64, basePriceQuote float64) float64
}

// Estimator tracks the chain's gas price and converts gas budgets into
// quote-unit costs.
type Estimator struct {
	client   *ethclient.Client
	logger   *zap.Logger
	mu       sync.RWMutex
	gasPrice *big.Int
}

// NewEstimator creates a gas estimator. Call Refresh before reading.
func NewEstimator(client *ethclient.Client, logger *zap.Logger) *Estimator {
	return &Estimator{
		client: client,
		logger: logger,
	}
}

// Refresh fetches the latest suggested gas price.
func (e *Estimator) Refresh(ctx context.Context) error {
	price, err := e.client.SuggestGasPrice(ctx)
	if err != nil {
		return fmt.Errorf("failed to get gas price: %w", err)
	}

	e.mu.Lock()
	e.gasPrice = price
	e.mu.Unlock()
	return nil
}

// GasPrice returns the last refreshed gas price, or nil before the first
// refresh.
func (e *Estimator) GasPrice() *big.Int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.gasPrice == nil {
		return nil
	}
	return new(big.Int).Set(e.gasPrice)
}

// CostInQuote estimates the quote-unit cost of spending gasLimit at the
// current price. basePriceQuote is the quote price of the chain's native
// asset (for WETH-quoted-in-USDC markets, the WETH price itself).
func (e *Estimator) CostInQuote(gasLimit uint64, basePriceQuote float64) float64 {
	price := e.GasPrice()
	if price == nil {
		return 0
	}

	wei := new(big.Int).Mul(price, new(big.Int).SetUint64(gasLimit))
	eth, _ := new(big.Float).Quo(
		new(big.Float).SetInt(wei),
		big.NewFloat(1e18),
	).Float64()

	return eth * basePriceQuote
}

// EstimateSwapGas budgets gas for an atomic two-leg arbitrage: base
// transaction cost plus flash loan overhead plus two swap legs.
func EstimateSwapGas() uint64 {
	const (
		baseCost     = uint64(21000)
		loanOverhead = uint64(90000)
		costPerSwap  = uint64(120000)
	)
	return baseCost + loanOverhead + 2*costPerSwap
}
