package pricing

import (
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"

	"flasharb/types"
)

func TestEstimateLiquidityUSDConstantProduct(t *testing.T) {
	state := reserveState(1000, 1_800_000)

	usd := EstimateLiquidityUSD(cpPool(), state, weth, 1800.0, 1.0)
	// 1000 WETH at 1800 with a stable quote.
	assert.InDelta(t, 1_800_000.0, usd, 1.0)
}

func TestEstimateLiquidityUSDConcentrated(t *testing.T) {
	pool := clPool()
	pool.TVLHint = 54_000_000

	usd := EstimateLiquidityUSD(pool, &types.PoolState{Kind: types.ConcentratedLiquidity}, weth, 1800.0, 1.0)
	assert.Equal(t, 54_000_000.0, usd)
}

func TestEstimateLiquidityUSDClampsToZero(t *testing.T) {
	t.Run("NilState", func(t *testing.T) {
		assert.Zero(t, EstimateLiquidityUSD(cpPool(), nil, weth, 1800.0, 1.0))
	})

	t.Run("NegativePrice", func(t *testing.T) {
		usd := EstimateLiquidityUSD(cpPool(), reserveState(1000, 1_800_000), weth, -5.0, 1.0)
		assert.Zero(t, usd)
	})

	t.Run("NaNPrice", func(t *testing.T) {
		usd := EstimateLiquidityUSD(cpPool(), reserveState(1000, 1_800_000), weth, math.NaN(), 1.0)
		assert.Zero(t, usd)
	})

	t.Run("MissingReserve", func(t *testing.T) {
		state := &types.PoolState{Kind: types.ConstantProduct, Reserve1: big.NewInt(1)}
		assert.Zero(t, EstimateLiquidityUSD(cpPool(), state, weth, 1800.0, 1.0))
	})

	t.Run("NegativeTVLHint", func(t *testing.T) {
		pool := clPool()
		pool.TVLHint = -1
		usd := EstimateLiquidityUSD(pool, &types.PoolState{Kind: types.ConcentratedLiquidity}, weth, 1800.0, 1.0)
		assert.Zero(t, usd)
	})
}
