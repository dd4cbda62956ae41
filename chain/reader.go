package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"flasharb/config"
	"flasharb/types"
)

// Constant-product pair reserves.
const pairABIJson = `[
	{
		"constant": true,
		"inputs": [],
		"name": "getReserves",
		"outputs": [
			{"internalType": "uint112", "name": "_reserve0", "type": "uint112"},
			{"internalType": "uint112", "name": "_reserve1", "type": "uint112"},
			{"internalType": "uint32", "name": "_blockTimestampLast", "type": "uint32"}
		],
		"stateMutability": "view",
		"type": "function"
	}
]`

// Concentrated-liquidity slot0.
const clPoolABIJson = `[
	{
		"inputs": [],
		"name": "slot0",
		"outputs": [
			{"internalType": "uint160", "name": "sqrtPriceX96", "type": "uint160"},
			{"internalType": "int24", "name": "tick", "type": "int24"},
			{"internalType": "uint16", "name": "observationIndex", "type": "uint16"},
			{"internalType": "uint16", "name": "observationCardinality", "type": "uint16"},
			{"internalType": "uint16", "name": "observationCardinalityNext", "type": "uint16"},
			{"internalType": "uint8", "name": "feeProtocol", "type": "uint8"},
			{"internalType": "bool", "name": "unlocked", "type": "bool"}
		],
		"stateMutability": "view",
		"type": "function"
	}
]`

// StateReader reads the raw state of one pool. Failures surface as errors;
// the scanner treats an absent reading as an unavailable price and skips
// the pool for that cycle.
type StateReader interface {
	ReadPoolState(ctx context.Context, pool types.Pool) (*types.PoolState, error)
}

// Reader reads pool state over JSON-RPC, rate limited per endpoint.
type Reader struct {
	client    *ethclient.Client
	pairABI   abi.ABI
	clPoolABI abi.ABI
	limiter   *rate.Limiter
	timeout   time.Duration
	logger    *zap.Logger
}

// NewReader creates a rate-limited pool state reader.
func NewReader(client *ethclient.Client, limits config.RateLimitConfig, timeout time.Duration, logger *zap.Logger) (*Reader, error) {
	if client == nil {
		return nil, fmt.Errorf("ethclient cannot be nil")
	}

	pairABI, err := abi.JSON(strings.NewReader(pairABIJson))
	if err != nil {
		return nil, fmt.Errorf("failed to parse pair ABI: %w", err)
	}
	clPoolABI, err := abi.JSON(strings.NewReader(clPoolABIJson))
	if err != nil {
		return nil, fmt.Errorf("failed to parse pool ABI: %w", err)
	}

	return &Reader{
		client:    client,
		pairABI:   pairABI,
		clPoolABI: clPoolABI,
		limiter:   rate.NewLimiter(rate.Limit(limits.RequestsPerSecond), limits.BurstSize),
		timeout:   timeout,
		logger:    logger,
	}, nil
}

// ReadPoolState fetches the raw reading for one pool.
func (r *Reader) ReadPoolState(ctx context.Context, pool types.Pool) (*types.PoolState, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	switch pool.Kind {
	case types.ConstantProduct:
		return r.readReserves(ctx, pool)
	case types.ConcentratedLiquidity:
		return r.readSqrtPrice(ctx, pool)
	default:
		return nil, fmt.Errorf("unsupported pool kind %s", pool.Kind)
	}
}

func (r *Reader) readReserves(ctx context.Context, pool types.Pool) (*types.PoolState, error) {
	data, err := r.pairABI.Pack("getReserves")
	if err != nil {
		return nil, fmt.Errorf("failed to pack getReserves: %w", err)
	}

	output, err := r.client.CallContract(ctx, ethereum.CallMsg{To: &pool.Address, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("getReserves call failed for %s: %w", pool.Address.Hex(), err)
	}

	values, err := r.pairABI.Unpack("getReserves", output)
	if err != nil || len(values) < 2 {
		return nil, fmt.Errorf("failed to decode reserves for %s: %w", pool.Address.Hex(), err)
	}

	reserve0, ok0 := values[0].(*big.Int)
	reserve1, ok1 := values[1].(*big.Int)
	if !ok0 || !ok1 {
		return nil, fmt.Errorf("unexpected reserve types for %s", pool.Address.Hex())
	}

	return &types.PoolState{
		Kind:     types.ConstantProduct,
		Reserve0: reserve0,
		Reserve1: reserve1,
	}, nil
}

func (r *Reader) readSqrtPrice(ctx context.Context, pool types.Pool) (*types.PoolState, error) {
	data, err := r.clPoolABI.Pack("slot0")
	if err != nil {
		return nil, fmt.Errorf("failed to pack slot0: %w", err)
	}

	output, err := r.client.CallContract(ctx, ethereum.CallMsg{To: &pool.Address, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("slot0 call failed for %s: %w", pool.Address.Hex(), err)
	}

	values, err := r.clPoolABI.Unpack("slot0", output)
	if err != nil || len(values) == 0 {
		return nil, fmt.Errorf("failed to decode slot0 for %s: %w", pool.Address.Hex(), err)
	}

	sqrtPrice, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected sqrtPriceX96 type for %s", pool.Address.Hex())
	}

	return &types.PoolState{
		Kind:         types.ConcentratedLiquidity,
		SqrtPriceX96: sqrtPrice,
	}, nil
}

// Snapshot reads all pools concurrently and joins the results. Individual
// read failures are logged and omitted; the snapshot is treated as
// simultaneous by the scanner even though reads are not transactionally
// consistent across venues.
func Snapshot(ctx context.Context, reader StateReader, pools []types.Pool, logger *zap.Logger) map[common.Address]*types.PoolState {
	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		states = make(map[common.Address]*types.PoolState, len(pools))
	)

	for _, pool := range pools {
		wg.Add(1)
		go func(pool types.Pool) {
			defer wg.Done()
			state, err := reader.ReadPoolState(ctx, pool)
			if err != nil {
				logger.Warn("pool state read failed",
					zap.String("venue", pool.Venue),
					zap.String("pool", pool.Address.Hex()),
					zap.Error(err))
				return
			}
			mu.Lock()
			states[pool.Address] = state
			mu.Unlock()
		}(pool)
	}
	wg.Wait()

	return states
}
