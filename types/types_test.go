package types

import (
	"math"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

func TestPairKeyUnordered(t *testing.T) {
	weth := common.HexToAddress("0x82aF49447D8a07e3bd95BD0d56f35241523fBab1")
	usdc := common.HexToAddress("0xaf88d065e77c8cC2239327C5EDb3A432268e5831")
	usdt := common.HexToAddress("0xFd086bC7CD5C481DCC9C85ebE478A1C0b69FCbb9")

	assert.Equal(t, PairKeyOf(weth, usdc), PairKeyOf(usdc, weth))
	assert.NotEqual(t, PairKeyOf(weth, usdc), PairKeyOf(weth, usdt))

	a := Pool{Token0: weth, Token1: usdc}
	b := Pool{Token0: usdc, Token1: weth}
	assert.Equal(t, a.PairKey(), b.PairKey())
}

func TestFeePercent(t *testing.T) {
	p := Pool{FeeBps: 5}
	assert.Equal(t, 0.05, p.FeePercent())
	p.FeeBps = 30
	assert.Equal(t, 0.30, p.FeePercent())
	p.FeeBps = 10000
	assert.Equal(t, 100.0, p.FeePercent())
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "succeeded", Succeeded.String())
	assert.Equal(t, "reverted_on_chain", RevertedOnChain.String())
	assert.Equal(t, "aborted_locally", AbortedLocally.String())
}

func TestUnitConversions(t *testing.T) {
	raw := UnitsToRaw(10, 18)
	assert.Equal(t, "10000000000000000000", raw.String())
	assert.InDelta(t, 10.0, RawToUnits(raw, 18), 1e-12)

	// Six-decimal stables round-trip too.
	assert.Equal(t, "40000000", UnitsToRaw(40, 6).String())
	assert.InDelta(t, 52.0, RawToUnits(big.NewInt(52_000_000), 6), 1e-12)

	// Amounts that cannot be settled convert to zero.
	assert.Equal(t, int64(0), UnitsToRaw(-1, 18).Int64())
	assert.Equal(t, int64(0), UnitsToRaw(math.NaN(), 18).Int64())
	assert.Equal(t, int64(0), UnitsToRaw(math.Inf(1), 18).Int64())
}
