package chain

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"flasharb/types"
)

type scriptedReader struct {
	states map[common.Address]*types.PoolState
}

func (s *scriptedReader) ReadPoolState(ctx context.Context, pool types.Pool) (*types.PoolState, error) {
	state, ok := s.states[pool.Address]
	if !ok {
		return nil, errors.New("venue unreachable")
	}
	return state, nil
}

func TestSnapshotJoinsConcurrentReads(t *testing.T) {
	pools := []types.Pool{
		{Venue: "Uniswap V3", Address: common.HexToAddress("0x01"), Kind: types.ConcentratedLiquidity},
		{Venue: "Sushiswap", Address: common.HexToAddress("0x02"), Kind: types.ConstantProduct},
		{Venue: "Camelot", Address: common.HexToAddress("0x03"), Kind: types.ConstantProduct},
	}
	reader := &scriptedReader{states: map[common.Address]*types.PoolState{
		pools[0].Address: {Kind: types.ConcentratedLiquidity, SqrtPriceX96: big.NewInt(1)},
		pools[1].Address: {Kind: types.ConstantProduct, Reserve0: big.NewInt(2), Reserve1: big.NewInt(3)},
	}}

	states := Snapshot(context.Background(), reader, pools, zaptest.NewLogger(t))

	// The unreachable Camelot pool is omitted, not fatal.
	require.Len(t, states, 2)
	assert.Contains(t, states, pools[0].Address)
	assert.Contains(t, states, pools[1].Address)
	assert.NotContains(t, states, pools[2].Address)
}

func TestSnapshotEmptyPools(t *testing.T) {
	reader := &scriptedReader{}
	states := Snapshot(context.Background(), reader, nil, zaptest.NewLogger(t))
	assert.Empty(t, states)
}
