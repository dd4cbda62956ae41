package executor

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// Execution errors. These terminate a single request, never the scheduler.
var (
	ErrConfiguration        = errors.New("venue binding rejected")
	ErrAlreadyInFlight      = errors.New("execution already in flight for pair")
	ErrBackendRevert        = errors.New("settlement backend reverted")
	ErrProfitGuardViolation = errors.New("realized profit below acceptable minimum")
	ErrTransport            = errors.New("transport failure")
	ErrExecutionHalted      = errors.New("execution halted pending acknowledgement")
	ErrGasCeilingExceeded   = errors.New("gas price above execution ceiling")
)

// Settlement contract ABI: the borrow-swap-swap-repay sequence is atomic
// inside executeArbitrage; this side only configures venues, submits, and
// decodes the result events.
const arbitrageABI = `[
	{
		"inputs": [
			{"internalType": "address", "name": "poolA", "type": "address"},
			{"internalType": "address", "name": "poolB", "type": "address"}
		],
		"name": "configure",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "address", "name": "assetIn", "type": "address"},
			{"internalType": "uint256", "name": "amount", "type": "uint256"},
			{"internalType": "address", "name": "assetOut", "type": "address"},
			{"internalType": "bool", "name": "dexAToB", "type": "bool"},
			{"internalType": "uint256", "name": "minProfit", "type": "uint256"}
		],
		"name": "executeArbitrage",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": false, "internalType": "uint256", "name": "profit", "type": "uint256"}
		],
		"name": "ArbitrageExecuted",
		"type": "event"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": false, "internalType": "uint256", "name": "amountIn", "type": "uint256"},
			{"indexed": false, "internalType": "uint256", "name": "amountOut", "type": "uint256"}
		],
		"name": "SwapCompleted",
		"type": "event"
	}
]`

// BorrowAndSwapParams parameterizes one atomic settlement call.
type BorrowAndSwapParams struct {
	AssetIn   common.Address
	Amount    *big.Int // raw units of AssetIn
	AssetOut  common.Address
	DexAToB   bool     // true when the buy leg is poolA
	MinProfit *big.Int // raw units of AssetOut
	GasLimit  uint64

	// Highest acceptable gas price in wei at submission time. The scan
	// cycle gates on the same ceiling, but the price can move between scan
	// and settlement; nil disables the recheck.
	GasPriceCeiling *big.Int
}

// SwapEvent is a decoded SwapCompleted event.
type SwapEvent struct {
	AmountIn  *big.Int
	AmountOut *big.Int
}

// Outcome is the settlement backend's terminal signal for one request.
// Profit is nil when no ArbitrageExecuted event could be decoded; verifying
// fails closed on that.
type Outcome struct {
	Success bool
	TxHash  common.Hash
	GasUsed uint64
	Profit  *big.Int // raw units of AssetOut
	Swaps   []SwapEvent
}

// Backend is the on-chain settlement collaborator: bind two venues, then run
// the atomic borrow, swap, swap, repay sequence.
type Backend interface {
	Configure(ctx context.Context, poolA, poolB common.Address) error
	RequestAtomicBorrowAndSwap(ctx context.Context, params BorrowAndSwapParams) (*Outcome, error)
}

// TxSender signs and submits a prepared call. Key and account management
// live outside this module.
type TxSender interface {
	SendTransaction(ctx context.Context, to common.Address, data []byte, gasLimit uint64) (*ethtypes.Transaction, error)
}

// ContractBackend drives the deployed flash-loan arbitrage contract.
type ContractBackend struct {
	client   *ethclient.Client
	sender   TxSender
	contract common.Address
	abi      abi.ABI
	logger   *zap.Logger
}

// NewContractBackend creates a backend bound to the deployed contract.
func NewContractBackend(client *ethclient.Client, sender TxSender, contract common.Address, logger *zap.Logger) (*ContractBackend, error) {
	if client == nil {
		return nil, fmt.Errorf("ethclient cannot be nil")
	}
	if sender == nil {
		return nil, fmt.Errorf("sender cannot be nil")
	}

	parsedABI, err := abi.JSON(strings.NewReader(arbitrageABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse arbitrage ABI: %w", err)
	}

	return &ContractBackend{
		client:   client,
		sender:   sender,
		contract: contract,
		abi:      parsedABI,
		logger:   logger,
	}, nil
}

// Configure binds the two venues for the next execution.
func (b *ContractBackend) Configure(ctx context.Context, poolA, poolB common.Address) error {
	data, err := b.abi.Pack("configure", poolA, poolB)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	tx, err := b.sender.SendTransaction(ctx, b.contract, data, 150000)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	receipt, err := bind.WaitMined(ctx, b.client, tx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		return fmt.Errorf("%w: configure reverted for %s/%s", ErrConfiguration, poolA.Hex(), poolB.Hex())
	}
	return nil
}

// RequestAtomicBorrowAndSwap submits the atomic sequence and interprets the
// receipt. The contract either completes the whole sequence or reverts it;
// no partial rollback happens on this side.
func (b *ContractBackend) RequestAtomicBorrowAndSwap(ctx context.Context, params BorrowAndSwapParams) (*Outcome, error) {
	if params.GasPriceCeiling != nil {
		gasPrice, err := b.client.SuggestGasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTransport, err)
		}
		if gasPrice.Cmp(params.GasPriceCeiling) > 0 {
			return nil, fmt.Errorf("%w: %s wei against %s", ErrGasCeilingExceeded, gasPrice, params.GasPriceCeiling)
		}
	}

	data, err := b.abi.Pack("executeArbitrage",
		params.AssetIn,
		params.Amount,
		params.AssetOut,
		params.DexAToB,
		params.MinProfit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to pack executeArbitrage: %w", err)
	}

	tx, err := b.sender.SendTransaction(ctx, b.contract, data, params.GasLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	receipt, err := bind.WaitMined(ctx, b.client, tx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	outcome := &Outcome{
		Success: receipt.Status == ethtypes.ReceiptStatusSuccessful,
		TxHash:  tx.Hash(),
		GasUsed: receipt.GasUsed,
	}
	if outcome.Success {
		b.decodeEvents(receipt.Logs, outcome)
	}
	return outcome, nil
}

// decodeEvents extracts ArbitrageExecuted and SwapCompleted from the
// receipt. A missing profit event leaves Outcome.Profit nil; the
// coordinator's verify step treats that as a guard violation rather than
// assuming success implies the expected profit.
func (b *ContractBackend) decodeEvents(logs []*ethtypes.Log, outcome *Outcome) {
	executedID := b.abi.Events["ArbitrageExecuted"].ID
	swapID := b.abi.Events["SwapCompleted"].ID

	for _, log := range logs {
		if log.Address != b.contract || len(log.Topics) == 0 {
			continue
		}
		switch log.Topics[0] {
		case executedID:
			values, err := b.abi.Unpack("ArbitrageExecuted", log.Data)
			if err != nil || len(values) != 1 {
				b.logger.Error("malformed ArbitrageExecuted event", zap.Error(err))
				continue
			}
			if profit, ok := values[0].(*big.Int); ok {
				outcome.Profit = profit
			}
		case swapID:
			values, err := b.abi.Unpack("SwapCompleted", log.Data)
			if err != nil || len(values) != 2 {
				b.logger.Error("malformed SwapCompleted event", zap.Error(err))
				continue
			}
			in, okIn := values[0].(*big.Int)
			out, okOut := values[1].(*big.Int)
			if okIn && okOut {
				outcome.Swaps = append(outcome.Swaps, SwapEvent{AmountIn: in, AmountOut: out})
			}
		}
	}
}
