package pricing

import (
	"errors"
	"fmt"
	"math"
	"math/big"

	"flasharb/types"
)

// Price errors. ErrPriceUnavailable covers transport/read failures surfaced
// by the pool state reader; ErrPriceInvalid covers readings that normalize
// to a non-finite, zero or negative price.
var (
	ErrPriceUnavailable = errors.New("pool price unavailable")
	ErrPriceInvalid     = errors.New("pool price invalid")
)

// q192 = 2^192, the denominator of a squared Q64.96 fixed-point price.
var q192 = new(big.Float).SetInt(new(big.Int).Lsh(big.NewInt(1), 192))

// Normalize converts a raw pool reading into the canonical price: quote
// units per base unit, decimal adjusted. It is a pure function of its
// inputs.
//
// Orientation is table driven: base and quote must match the pool's token0
// and token1 by address, in either order. A pool whose tokens do not match
// the catalog entries is a configuration fault, reported as ErrPriceInvalid.
func Normalize(pool types.Pool, state *types.PoolState, base, quote types.Asset) (float64, error) {
	if state == nil {
		return 0, ErrPriceUnavailable
	}

	baseIsToken0 := base.Address == pool.Token0 && quote.Address == pool.Token1
	baseIsToken1 := base.Address == pool.Token1 && quote.Address == pool.Token0
	if !baseIsToken0 && !baseIsToken1 {
		return 0, fmt.Errorf("%w: assets %s/%s do not match pool %s", ErrPriceInvalid, base.Symbol, quote.Symbol, pool.Address.Hex())
	}

	var raw float64
	switch state.Kind {
	case types.ConstantProduct:
		if state.Reserve0 == nil || state.Reserve1 == nil {
			return 0, ErrPriceUnavailable
		}
		reserveBase, reserveQuote := state.Reserve0, state.Reserve1
		if baseIsToken1 {
			reserveBase, reserveQuote = state.Reserve1, state.Reserve0
		}
		if reserveBase.Sign() <= 0 {
			return 0, fmt.Errorf("%w: empty base reserve", ErrPriceInvalid)
		}
		ratio := new(big.Float).Quo(
			new(big.Float).SetInt(reserveQuote),
			new(big.Float).SetInt(reserveBase),
		)
		raw, _ = ratio.Float64()

	case types.ConcentratedLiquidity:
		if state.SqrtPriceX96 == nil {
			return 0, ErrPriceUnavailable
		}
		sqrtPrice := new(big.Float).SetInt(state.SqrtPriceX96)
		ratio := new(big.Float).Mul(sqrtPrice, sqrtPrice)
		ratio.Quo(ratio, q192)
		// ratio is token1 per token0 in smallest units; invert when the
		// canonical base is token1.
		if baseIsToken1 {
			if ratio.Sign() <= 0 {
				return 0, fmt.Errorf("%w: zero sqrt price", ErrPriceInvalid)
			}
			ratio.Quo(big.NewFloat(1), ratio)
		}
		raw, _ = ratio.Float64()

	default:
		return 0, fmt.Errorf("%w: unsupported pool kind %s", ErrPriceInvalid, state.Kind)
	}

	price := raw * decimalAdjustment(base.Decimals, quote.Decimals)
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return 0, ErrPriceInvalid
	}
	return price, nil
}

// decimalAdjustment returns 10^(decimalsBase - decimalsQuote).
func decimalAdjustment(decimalsBase, decimalsQuote uint8) float64 {
	return math.Pow(10, float64(decimalsBase)-float64(decimalsQuote))
}
