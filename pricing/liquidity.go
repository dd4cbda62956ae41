package pricing

import (
	"math"

	"flasharb/types"
)

// EstimateLiquidityUSD produces a conservative USD depth figure for a pool.
// It bounds trade sizing only and is never used to price the asset.
//
// For constant-product pools the base-side reserve is valued at the
// normalized price and converted to USD through refQuoteUSD (the USD price
// of one quote unit, 1.0 for stable quotes). Concentrated-liquidity pools
// expose no comparable reserve figure over the reader, so the catalog TVL
// hint is used. Anything negative or non-finite clamps to zero, and callers
// treat zero as "do not trade this pool".
func EstimateLiquidityUSD(pool types.Pool, state *types.PoolState, base types.Asset, price, refQuoteUSD float64) float64 {
	if state == nil {
		return 0
	}

	var usd float64
	switch state.Kind {
	case types.ConstantProduct:
		reserveBase := state.Reserve0
		if base.Address == pool.Token1 {
			reserveBase = state.Reserve1
		}
		if reserveBase == nil {
			return 0
		}
		units := types.RawToUnits(reserveBase, base.Decimals)
		usd = units * price * refQuoteUSD

	case types.ConcentratedLiquidity:
		// TVL hints are already denominated in USD.
		usd = pool.TVLHint

	default:
		return 0
	}

	if math.IsNaN(usd) || math.IsInf(usd, 0) || usd < 0 {
		return 0
	}
	return usd
}
