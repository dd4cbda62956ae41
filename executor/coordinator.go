package executor

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"go.uber.org/zap"

	"flasharb/config"
	"flasharb/types"
)

// phase names the coordinator's position in the per-request state machine.
// Borrowing through Repaying are one atomic backend operation; the
// distinction only matters for logging.
type phase uint8

const (
	phaseIdle phase = iota
	phaseConfiguring
	phaseBorrowing
	phaseSwapping1
	phaseSwapping2
	phaseRepaying
	phaseVerifying
)

func (p phase) String() string {
	switch p {
	case phaseIdle:
		return "idle"
	case phaseConfiguring:
		return "configuring"
	case phaseBorrowing:
		return "borrowing"
	case phaseSwapping1:
		return "swapping1"
	case phaseSwapping2:
		return "swapping2"
	case phaseRepaying:
		return "repaying"
	case phaseVerifying:
		return "verifying"
	default:
		return "unknown"
	}
}

// Coordinator drives atomic arbitrage executions against the settlement
// backend. At most one request per asset pair is in flight at a time; a
// profit-guard violation latches the coordinator halted until acknowledged.
type Coordinator struct {
	backend  Backend
	catalog  *config.Catalog
	inflight *InflightRegistry
	logger   *zap.Logger
	halted   atomic.Bool

	metrics struct {
		executions      prometheus.Counter
		successes       prometheus.Counter
		reverts         prometheus.Counter
		aborts          prometheus.Counter
		guardViolations prometheus.Counter
		realizedProfit  prometheus.Counter
		latency         prometheus.Histogram
		successRate     prometheus.Gauge
	}
}

// NewCoordinator creates an execution coordinator.
func NewCoordinator(backend Backend, catalog *config.Catalog, logger *zap.Logger) *Coordinator {
	c := &Coordinator{
		backend:  backend,
		catalog:  catalog,
		inflight: NewInflightRegistry(),
		logger:   logger,
	}

	c.metrics.executions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "executor_requests_total",
		Help: "Total number of execution requests processed",
	})
	c.metrics.successes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "executor_successes_total",
		Help: "Total number of successful executions",
	})
	c.metrics.reverts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "executor_reverts_total",
		Help: "Total number of on-chain reverts",
	})
	c.metrics.aborts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "executor_aborts_total",
		Help: "Total number of locally aborted requests",
	})
	c.metrics.guardViolations = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "executor_profit_guard_violations_total",
		Help: "Total number of profit guard violations",
	})
	c.metrics.realizedProfit = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "executor_realized_profit_quote_units",
		Help: "Cumulative realized profit in quote units",
	})
	c.metrics.latency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "executor_latency_seconds",
		Help:    "Latency of execution requests",
		Buckets: prometheus.DefBuckets,
	})
	c.metrics.successRate = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "executor_success_rate",
		Help: "Success rate of execution requests",
	})

	return c
}

// Halted reports whether executions are suppressed after a profit-guard
// violation.
func (c *Coordinator) Halted() bool {
	return c.halted.Load()
}

// Acknowledge clears the profit-guard latch and re-enables executions.
func (c *Coordinator) Acknowledge() {
	if c.halted.CompareAndSwap(true, false) {
		c.logger.Warn("profit guard violation acknowledged, executions re-enabled")
	}
}

// Execute runs one request through the state machine and returns its
// terminal result. It consumes the request exactly once.
func (c *Coordinator) Execute(ctx context.Context, req types.ExecutionRequest) types.ExecutionResult {
	start := time.Now()
	defer func() {
		c.metrics.latency.Observe(time.Since(start).Seconds())
	}()
	c.metrics.executions.Inc()

	if c.halted.Load() {
		c.metrics.aborts.Inc()
		return types.ExecutionResult{Tag: types.AbortedLocally, Err: ErrExecutionHalted}
	}

	pairKey := req.Opportunity.PairKey
	if !c.inflight.TryAcquire(pairKey) {
		c.metrics.aborts.Inc()
		return types.ExecutionResult{Tag: types.AbortedLocally, Err: ErrAlreadyInFlight}
	}
	defer c.inflight.Release(pairKey)

	result := c.run(ctx, req)

	switch result.Tag {
	case types.Succeeded:
		c.metrics.successes.Inc()
		c.metrics.realizedProfit.Add(result.RealizedProfit)
	case types.RevertedOnChain:
		c.metrics.reverts.Inc()
	case types.AbortedLocally:
		c.metrics.aborts.Inc()
	}
	c.updateSuccessRate()

	return result
}

func (c *Coordinator) run(ctx context.Context, req types.ExecutionRequest) types.ExecutionResult {
	opp := req.Opportunity
	log := c.logger.With(
		zap.String("pair", opp.BaseSymbol+"/"+opp.QuoteSymbol),
		zap.String("buy_venue", opp.BuyPool.Pool.Venue),
		zap.String("sell_venue", opp.SellPool.Pool.Venue),
	)

	orientation, err := c.catalog.Orient(opp.BuyPool.Pool)
	if err != nil {
		return types.ExecutionResult{Tag: types.AbortedLocally, Err: fmt.Errorf("%w: %v", ErrConfiguration, err)}
	}

	log.Debug("execution state", zap.Stringer("phase", phaseConfiguring))
	if err := c.backend.Configure(ctx, opp.BuyPool.Pool.Address, opp.SellPool.Pool.Address); err != nil {
		log.Warn("venue binding rejected", zap.Error(err))
		return types.ExecutionResult{Tag: types.AbortedLocally, Err: fmt.Errorf("%w: %v", ErrConfiguration, err)}
	}

	params := BorrowAndSwapParams{
		AssetIn:         orientation.Base.Address,
		Amount:          types.UnitsToRaw(opp.OptimalAmount, orientation.Base.Decimals),
		AssetOut:        orientation.Quote.Address,
		DexAToB:         true, // buy leg is always bound as poolA
		MinProfit:       types.UnitsToRaw(req.MinAcceptableProfit, orientation.Quote.Decimals),
		GasLimit:        orientation.Base.GasLimit,
		GasPriceCeiling: req.GasCeiling,
	}

	// The borrow, both swaps and the repayment are one atomic backend call;
	// from here the sequence either completes or is entirely undone.
	log.Debug("execution state", zap.Stringer("phase", phaseBorrowing))
	outcome, err := c.backend.RequestAtomicBorrowAndSwap(ctx, params)
	if err != nil {
		log.Warn("settlement submission failed", zap.Error(err))
		return types.ExecutionResult{Tag: types.AbortedLocally, Err: err}
	}

	if !outcome.Success {
		log.Warn("settlement backend reverted", zap.String("tx", outcome.TxHash.Hex()))
		return types.ExecutionResult{
			Tag:     types.RevertedOnChain,
			GasUsed: outcome.GasUsed,
			TxHash:  outcome.TxHash,
			Err:     ErrBackendRevert,
		}
	}

	log.Debug("execution state", zap.Stringer("phase", phaseVerifying))
	realized, guardErr := c.verify(outcome, req, orientation.Quote.Decimals)
	result := types.ExecutionResult{
		Tag:            types.Succeeded,
		RealizedProfit: realized,
		GasUsed:        outcome.GasUsed,
		TxHash:         outcome.TxHash,
		Err:            guardErr,
	}

	if guardErr != nil {
		// A success report that misses the profit floor means the fee and
		// profit model has drifted from on-chain reality. Latch closed and
		// surface loudly; this is not an ordinary failure.
		c.halted.Store(true)
		c.metrics.guardViolations.Inc()
		log.Error("PROFIT GUARD VIOLATION: executions suppressed until acknowledged",
			zap.Float64("realized_profit", realized),
			zap.Float64("min_acceptable", req.MinAcceptableProfit),
			zap.String("tx", outcome.TxHash.Hex()))
		return result
	}

	log.Info("arbitrage executed",
		zap.Float64("realized_profit", realized),
		zap.Uint64("gas_used", outcome.GasUsed),
		zap.String("tx", outcome.TxHash.Hex()))
	return result
}

// verify decodes the realized profit and enforces the minimum-acceptable
// floor. It fails closed: a success without a decodable profit event is a
// violation, never an assumed win.
func (c *Coordinator) verify(outcome *Outcome, req types.ExecutionRequest, quoteDecimals uint8) (float64, error) {
	if outcome.Profit == nil {
		return 0, fmt.Errorf("%w: no ArbitrageExecuted event in receipt", ErrProfitGuardViolation)
	}

	realized := types.RawToUnits(outcome.Profit, quoteDecimals)
	if realized < req.MinAcceptableProfit {
		return realized, ErrProfitGuardViolation
	}
	return realized, nil
}

// updateSuccessRate recomputes the success-rate gauge from the counters.
func (c *Coordinator) updateSuccessRate() {
	successes := counterValue(c.metrics.successes)
	total := counterValue(c.metrics.executions)
	if total > 0 {
		c.metrics.successRate.Set(successes / total)
	}
}

func counterValue(counter prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := counter.Write(m); err != nil || m.Counter == nil {
		return 0
	}
	return m.Counter.GetValue()
}
