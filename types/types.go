package types

import (
	"math/big"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/ethereum/go-ethereum/common"
)

// PoolKind distinguishes the two supported AMM designs. Price normalization
// dispatches on this tag explicitly.
type PoolKind uint8

const (
	ConstantProduct PoolKind = iota
	ConcentratedLiquidity
)

func (k PoolKind) String() string {
	switch k {
	case ConstantProduct:
		return "constant_product"
	case ConcentratedLiquidity:
		return "concentrated_liquidity"
	default:
		return "unknown"
	}
}

// Asset is one entry of the read-only token catalog.
type Asset struct {
	Address        common.Address
	Symbol         string
	Decimals       uint8
	MinTradeAmount float64 // in token units
	MaxTradeAmount float64 // in token units
	GasLimit       uint64
}

// Pool is a single trading venue quoting Token0/Token1. Token order is
// significant: it is the on-chain order, not the canonical base/quote order.
type Pool struct {
	Venue       string
	Address     common.Address
	Kind        PoolKind
	FeeBps      uint32 // fee tier in basis points
	Token0      common.Address
	Token1      common.Address
	TVLHint     float64 // USD, refreshed from the catalog, never persisted
	MaxSlippage float64 // percent
}

// FeePercent returns the fee tier as a percentage: 5 bps = 0.05%.
func (p *Pool) FeePercent() float64 {
	return float64(p.FeeBps) / 100.0
}

// PairKey returns a 64-bit key identifying the unordered token pair. Two
// pools quoting the same pair hash to the same key regardless of token order.
func (p *Pool) PairKey() uint64 {
	return PairKeyOf(p.Token0, p.Token1)
}

// PairKeyOf hashes an unordered address pair.
func PairKeyOf(a, b common.Address) uint64 {
	if bytesGreater(a, b) {
		a, b = b, a
	}
	h := xxhash.New()
	h.Write(a.Bytes())
	h.Write(b.Bytes())
	return h.Sum64()
}

func bytesGreater(a, b common.Address) bool {
	for i := 0; i < common.AddressLength; i++ {
		if a[i] != b[i] {
			return a[i] > b[i]
		}
	}
	return false
}

// PoolState is the raw on-chain reading for one pool: reserves for
// constant-product venues, sqrtPriceX96 for concentrated-liquidity venues.
type PoolState struct {
	Kind         PoolKind
	Reserve0     *big.Int
	Reserve1     *big.Int
	SqrtPriceX96 *big.Int
}

// PricedPool is a Pool plus its normalized price and liquidity estimate.
// Valid only for the scan cycle that produced it.
type PricedPool struct {
	Pool         Pool
	Price        float64 // quote units per base unit, decimal adjusted
	LiquidityUSD float64
	ObservedAt   time.Time
}

// Opportunity references two priced pools quoting the same unordered pair.
// Created fresh each cycle and never mutated afterwards.
type Opportunity struct {
	PairKey               uint64
	BaseSymbol            string
	QuoteSymbol           string
	BuyPool               PricedPool // lower price
	SellPool              PricedPool // higher price
	Spread                float64    // absolute, quote units
	SpreadPercent         float64
	TotalFeeBurdenPercent float64 // flash loan fee + both venue fees
	OptimalAmount         float64 // base units
	GrossExpectedProfit   float64 // quote units
	EstimatedGasCost      float64 // quote units
	NetExpectedProfit     float64 // quote units
}

// ExecutionRequest is a chosen Opportunity plus the caller's guard values.
// Consumed exactly once by the coordinator.
type ExecutionRequest struct {
	Opportunity         Opportunity
	MinAcceptableProfit float64  // quote units, e.g. 95% of NetExpectedProfit
	GasCeiling          *big.Int // wei
}

// Outcome tags the terminal state of an execution.
type Outcome uint8

const (
	Succeeded Outcome = iota
	RevertedOnChain
	AbortedLocally
)

func (o Outcome) String() string {
	switch o {
	case Succeeded:
		return "succeeded"
	case RevertedOnChain:
		return "reverted_on_chain"
	case AbortedLocally:
		return "aborted_locally"
	default:
		return "unknown"
	}
}

// ExecutionResult is produced once per ExecutionRequest and then discarded.
// RealizedProfit is meaningful only when Tag is Succeeded.
type ExecutionResult struct {
	Tag            Outcome
	RealizedProfit float64
	GasUsed        uint64
	TxHash         common.Hash
	Err            error
}
