package scanner

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"flasharb/config"
	"flasharb/types"
)

const testCatalogYAML = `
quote_symbols:
  - USDC

assets:
  - symbol: WETH
    address: "0x82aF49447D8a07e3bd95BD0d56f35241523fBab1"
    decimals: 18
    min_trade_amount: 0.1
    max_trade_amount: 10
    gas_limit: 500000
  - symbol: USDC
    address: "0xaf88d065e77c8cC2239327C5EDb3A432268e5831"
    decimals: 6
    min_trade_amount: 100
    max_trade_amount: 50000
    gas_limit: 300000

pools:
  - venue: "Uniswap V3"
    address: "0xC6962004f452bE9203591991D15f6b388e09E8D0"
    kind: concentrated_liquidity
    fee_bps: 5
    token0: "0x82aF49447D8a07e3bd95BD0d56f35241523fBab1"
    token1: "0xaf88d065e77c8cC2239327C5EDb3A432268e5831"
    tvl_usd: 54000000
    max_slippage: 0.5
  - venue: "Sushiswap V3"
    address: "0xf3Eb87C1F6020982173C908E7eB31aA66c1f0296"
    kind: concentrated_liquidity
    fee_bps: 5
    token0: "0x82aF49447D8a07e3bd95BD0d56f35241523fBab1"
    token1: "0xaf88d065e77c8cC2239327C5EDb3A432268e5831"
    tvl_usd: 6700000
    max_slippage: 0.5
`

func testCatalog(t *testing.T) *config.Catalog {
	t.Helper()
	catalog, err := config.ParseCatalog([]byte(testCatalogYAML))
	require.NoError(t, err)
	return catalog
}

func testScanner(t *testing.T, catalog *config.Catalog) *Scanner {
	t.Helper()
	return New(catalog, Config{
		MaxImpactFraction:   0.005,
		FlashLoanFeePercent: 0.05,
		MinNetProfit:        1.0,
	}, zaptest.NewLogger(t), nil)
}

func pricedPools(t *testing.T, catalog *config.Catalog, priceA, priceB float64) (types.PricedPool, types.PricedPool) {
	t.Helper()
	pools := catalog.Pools()
	require.Len(t, pools, 2)

	now := time.Now()
	a := types.PricedPool{Pool: pools[0], Price: priceA, LiquidityUSD: pools[0].TVLHint, ObservedAt: now}
	b := types.PricedPool{Pool: pools[1], Price: priceB, LiquidityUSD: pools[1].TVLHint, ObservedAt: now}
	return a, b
}

func TestScanEmitsReferenceOpportunity(t *testing.T) {
	// Two venues quote WETH/USDC at 1800.0 and 1805.4. With a 0.05% flash
	// loan fee and 0.05% on each venue the burden is 0.15%, below the
	// 0.30% spread, so an opportunity must come out.
	catalog := testCatalog(t)
	s := testScanner(t, catalog)
	a, b := pricedPools(t, catalog, 1800.0, 1805.4)

	opportunities := s.Scan([]types.PricedPool{a, b}, 0)
	require.Len(t, opportunities, 1)

	opp := opportunities[0]
	assert.Equal(t, a.Pool.Address, opp.BuyPool.Pool.Address)
	assert.Equal(t, b.Pool.Address, opp.SellPool.Pool.Address)
	assert.InDelta(t, 0.30, opp.SpreadPercent, 1e-9)
	assert.InDelta(t, 0.15, opp.TotalFeeBurdenPercent, 1e-9)
	assert.Positive(t, opp.NetExpectedProfit)
	// Impact bounds allow far more than the per-asset cap of 10 WETH.
	assert.InDelta(t, 10.0, opp.OptimalAmount, 1e-9)
	assert.Equal(t, "WETH", opp.BaseSymbol)
	assert.Equal(t, "USDC", opp.QuoteSymbol)
}

func TestScanIdenticalPrices(t *testing.T) {
	catalog := testCatalog(t)
	s := testScanner(t, catalog)
	a, b := pricedPools(t, catalog, 1800.0, 1800.0)

	assert.Empty(t, s.Scan([]types.PricedPool{a, b}, 0))
}

func TestScanFeesExceedSpread(t *testing.T) {
	// 0.10% spread against a 0.15% burden must yield nothing.
	catalog := testCatalog(t)
	s := testScanner(t, catalog)
	a, b := pricedPools(t, catalog, 1800.0, 1801.8)

	assert.Empty(t, s.Scan([]types.PricedPool{a, b}, 0))
}

func TestScanSpreadSymmetry(t *testing.T) {
	catalog := testCatalog(t)
	s := testScanner(t, catalog)
	a, b := pricedPools(t, catalog, 1800.0, 1805.4)

	forward := s.Scan([]types.PricedPool{a, b}, 0)
	reversed := s.Scan([]types.PricedPool{b, a}, 0)
	require.Len(t, forward, 1)
	require.Len(t, reversed, 1)

	assert.Equal(t, forward[0].SpreadPercent, reversed[0].SpreadPercent)
	assert.Equal(t, forward[0].BuyPool.Pool.Address, reversed[0].BuyPool.Pool.Address)
}

func TestScanZeroLiquidityExcluded(t *testing.T) {
	catalog := testCatalog(t)
	s := testScanner(t, catalog)
	a, b := pricedPools(t, catalog, 1800.0, 1805.4)
	b.LiquidityUSD = 0

	assert.Empty(t, s.Scan([]types.PricedPool{a, b}, 0))
}

func TestScanSizingBounds(t *testing.T) {
	catalog := testCatalog(t)
	s := testScanner(t, catalog)

	t.Run("CappedByAsset", func(t *testing.T) {
		a, b := pricedPools(t, catalog, 1800.0, 1805.4)
		opps := s.Scan([]types.PricedPool{a, b}, 0)
		require.Len(t, opps, 1)
		assert.LessOrEqual(t, opps[0].OptimalAmount, 10.0)
		assert.GreaterOrEqual(t, opps[0].OptimalAmount, 0.0)
	})

	t.Run("BoundedByThinnerLeg", func(t *testing.T) {
		a, b := pricedPools(t, catalog, 1800.0, 1805.4)
		// Thin out the sell leg: 0.5% of 10000 USD is 0.05 WETH worth.
		b.LiquidityUSD = 10_000
		opps := s.Scan([]types.PricedPool{a, b}, 0)
		// 10000 * 0.005 / 1805.4 is below WETH's minimum trade amount, so
		// the pair is dropped rather than sized below the floor.
		assert.Empty(t, opps)
	})
}

func TestScanProfitMonotonicInSpread(t *testing.T) {
	catalog := testCatalog(t)
	s := testScanner(t, catalog)

	var last float64
	for i, sellPrice := range []float64{1805.4, 1810.0, 1820.0} {
		a, b := pricedPools(t, catalog, 1800.0, sellPrice)
		opps := s.Scan([]types.PricedPool{a, b}, 0)
		require.Len(t, opps, 1)
		if i > 0 {
			assert.Greater(t, opps[0].GrossExpectedProfit, last)
		}
		last = opps[0].GrossExpectedProfit
	}
}

func TestScanThresholdFiltering(t *testing.T) {
	catalog := testCatalog(t)
	// Threshold above anything the fixture can produce.
	s := New(catalog, Config{
		MaxImpactFraction:   0.005,
		FlashLoanFeePercent: 0.05,
		MinNetProfit:        1_000_000,
	}, zaptest.NewLogger(t), nil)

	a, b := pricedPools(t, catalog, 1800.0, 1805.4)
	for _, opp := range s.Scan([]types.PricedPool{a, b}, 0) {
		assert.Greater(t, opp.NetExpectedProfit, 1_000_000.0)
	}
	assert.Empty(t, s.Scan([]types.PricedPool{a, b}, 0))
}

func TestScanGasCostReducesNet(t *testing.T) {
	catalog := testCatalog(t)
	s := testScanner(t, catalog)
	a, b := pricedPools(t, catalog, 1800.0, 1805.4)

	withoutGas := s.Scan([]types.PricedPool{a, b}, 0)
	withGas := s.Scan([]types.PricedPool{a, b}, 5.0)
	require.Len(t, withoutGas, 1)
	require.Len(t, withGas, 1)

	assert.InDelta(t, withoutGas[0].NetExpectedProfit-5.0, withGas[0].NetExpectedProfit, 1e-9)
	assert.Equal(t, 5.0, withGas[0].EstimatedGasCost)
}

func TestScanOrderedByNetProfit(t *testing.T) {
	catalog := testCatalog(t)
	s := testScanner(t, catalog)

	// Three pools of the same pair produce three comparisons; the widest
	// spread must rank first.
	pools := catalog.Pools()
	third := pools[1]
	third.Address = common.HexToAddress("0x7fCDC35463E3770c2fB992716Cd070B63540b947")
	third.Venue = "PancakeSwap V3"

	now := time.Now()
	priced := []types.PricedPool{
		{Pool: pools[0], Price: 1800.0, LiquidityUSD: 54_000_000, ObservedAt: now},
		{Pool: pools[1], Price: 1805.4, LiquidityUSD: 6_700_000, ObservedAt: now},
		{Pool: third, Price: 1812.0, LiquidityUSD: 1_500_000, ObservedAt: now},
	}

	opps := s.Scan(priced, 0)
	require.NotEmpty(t, opps)
	for i := 1; i < len(opps); i++ {
		assert.GreaterOrEqual(t, opps[i-1].NetExpectedProfit, opps[i].NetExpectedProfit)
	}
}

func TestSnapshotSkipsUnreadablePools(t *testing.T) {
	catalog := testCatalog(t)
	s := testScanner(t, catalog)
	pools := catalog.Pools()

	// Only one pool has a state this cycle; the other is skipped, not fatal.
	states := map[common.Address]*types.PoolState{}
	priced := s.Snapshot(pools, states, time.Now())
	assert.Empty(t, priced)
}
