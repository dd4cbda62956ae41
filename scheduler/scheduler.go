package scheduler

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"flasharb/chain"
	"flasharb/config"
	"flasharb/executor"
	"flasharb/gas"
	"flasharb/scanner"
	"flasharb/types"
	"flasharb/utils/metrics"
)

// Executor is the coordinator boundary the scheduler dispatches to.
type Executor interface {
	Execute(ctx context.Context, req types.ExecutionRequest) types.ExecutionResult
	Halted() bool
}

// State is the scheduler's explicit loop state: everything the next-delay
// decision needs, advanced by Step and testable without real timers.
type State struct {
	Interval            time.Duration
	BackoffMultiplier   int
	ConsecutiveFailures int
}

// NextDelay returns the sleep before the next cycle: the normal interval
// after success or a ceiling skip, the backoff interval after failure.
func (s *State) NextDelay() time.Duration {
	if s.ConsecutiveFailures > 0 {
		return s.Interval * time.Duration(s.BackoffMultiplier)
	}
	return s.Interval
}

func (s *State) recordSuccess() { s.ConsecutiveFailures = 0 }
func (s *State) recordFailure() { s.ConsecutiveFailures++ }

// CycleResult summarizes one scan cycle for reporting.
type CycleResult struct {
	SkippedGasCeiling bool
	PoolsPriced       int
	Opportunities     int
	Executions        []types.ExecutionResult
	Err               error
}

// Scheduler drives repeated scan, decide, execute cycles. It never
// terminates itself on a recoverable failure.
type Scheduler struct {
	cfg         *config.Config
	catalog     *config.Catalog
	reader      chain.StateReader
	scanner     *scanner.Scanner
	pricer      gas.Pricer
	coordinator Executor
	logger      *zap.Logger
	metrics     *metrics.SchedulerMetrics

	state State
}

// New creates a scheduler. metrics may be nil.
func New(
	cfg *config.Config,
	catalog *config.Catalog,
	reader chain.StateReader,
	sc *scanner.Scanner,
	pricer gas.Pricer,
	coordinator Executor,
	logger *zap.Logger,
	m *metrics.SchedulerMetrics,
) *Scheduler {
	return &Scheduler{
		cfg:         cfg,
		catalog:     catalog,
		reader:      reader,
		scanner:     sc,
		pricer:      pricer,
		coordinator: coordinator,
		logger:      logger,
		metrics:     m,
		state: State{
			Interval:          cfg.PollInterval,
			BackoffMultiplier: cfg.BackoffMultiplier,
		},
	}
}

// State returns a copy of the current loop state.
func (s *Scheduler) State() State {
	return s.state
}

// Run loops Step until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started",
		zap.Duration("interval", s.state.Interval),
		zap.Int("backoff_multiplier", s.state.BackoffMultiplier))

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-timer.C:
		}

		result, delay := s.Step(ctx)
		s.report(result)
		timer.Reset(delay)
	}
}

// Step runs exactly one cycle and returns its result plus the delay before
// the next one. The gas ceiling is checked first: above it the whole cycle
// is skipped, with no scan and no execution.
func (s *Scheduler) Step(ctx context.Context) (CycleResult, time.Duration) {
	if s.metrics != nil {
		s.metrics.Cycles.Inc()
	}

	result := s.runCycle(ctx)

	switch {
	case result.Err != nil:
		s.state.recordFailure()
		if s.metrics != nil {
			s.metrics.Failures.Inc()
		}
	default:
		s.state.recordSuccess()
	}
	if s.metrics != nil {
		s.metrics.ConsecutiveFailures.Set(float64(s.state.ConsecutiveFailures))
	}

	return result, s.state.NextDelay()
}

func (s *Scheduler) runCycle(ctx context.Context) CycleResult {
	if err := s.pricer.Refresh(ctx); err != nil {
		return CycleResult{Err: err}
	}

	if price := s.pricer.GasPrice(); price != nil && price.Cmp(s.cfg.MaxGasPrice) > 0 {
		if s.metrics != nil {
			s.metrics.SkippedGasCeiling.Inc()
		}
		s.logger.Info("gas price above ceiling, skipping cycle",
			zap.String("gas_price", price.String()),
			zap.String("ceiling", s.cfg.MaxGasPrice.String()))
		return CycleResult{SkippedGasCeiling: true}
	}

	pools := s.catalog.Pools()
	states := chain.Snapshot(ctx, s.reader, pools, s.logger)
	priced := s.scanner.Snapshot(pools, states, time.Now())

	if len(priced) == 0 && len(pools) > 0 {
		return CycleResult{Err: errors.New("no pool produced a usable price this cycle")}
	}

	gasCost := s.pricer.CostInQuote(gas.EstimateSwapGas(), s.referenceBasePrice(priced))
	opportunities := s.scanner.Scan(priced, gasCost)

	result := CycleResult{
		PoolsPriced:   len(priced),
		Opportunities: len(opportunities),
	}

	if len(opportunities) == 0 {
		return result
	}

	if s.coordinator.Halted() {
		s.logger.Warn("coordinator halted, not dispatching",
			zap.Int("opportunities", len(opportunities)))
		return result
	}

	// Best opportunity per pair only: redundant attempts against the same
	// liquidity within one cycle add nothing but revert risk.
	dispatched := make(map[uint64]bool)
	for _, opp := range opportunities {
		if dispatched[opp.PairKey] {
			continue
		}
		dispatched[opp.PairKey] = true

		req := types.ExecutionRequest{
			Opportunity:         opp,
			MinAcceptableProfit: opp.NetExpectedProfit * s.cfg.MinProfitFraction,
			GasCeiling:          s.cfg.MaxGasPrice,
		}

		if s.metrics != nil {
			s.metrics.ExecutionsAttempted.Inc()
		}
		execResult := s.coordinator.Execute(ctx, req)
		result.Executions = append(result.Executions, execResult)

		// AlreadyInFlight is backpressure, not a transient fault; it does
		// not push the loop into backoff.
		if execResult.Tag != types.Succeeded && !errors.Is(execResult.Err, executor.ErrAlreadyInFlight) {
			result.Err = execResult.Err
		}
	}

	return result
}

// referenceBasePrice resolves the quote price of the chain's native asset
// so gas can be expressed in quote units. Only pools whose base is the
// configured wrapped-native asset qualify; a WBTC/USDC price is not a gas
// price. With no such pool this cycle, gas is priced at zero and the
// shortfall is logged.
func (s *Scheduler) referenceBasePrice(priced []types.PricedPool) float64 {
	native, ok := s.catalog.AssetBySymbol(s.cfg.NativeSymbol)
	if !ok {
		s.logger.Warn("native asset not in catalog, gas priced at zero",
			zap.String("symbol", s.cfg.NativeSymbol))
		return 0
	}

	for _, p := range priced {
		orientation, err := s.catalog.Orient(p.Pool)
		if err != nil {
			continue
		}
		if orientation.Base.Address == native.Address {
			return p.Price
		}
	}

	s.logger.Warn("no priced pool quotes the native asset, gas priced at zero",
		zap.String("symbol", s.cfg.NativeSymbol))
	return 0
}

func (s *Scheduler) report(result CycleResult) {
	if result.SkippedGasCeiling {
		return
	}

	fields := []zap.Field{
		zap.Int("pools_priced", result.PoolsPriced),
		zap.Int("opportunities", result.Opportunities),
		zap.Int("executions", len(result.Executions)),
		zap.Int("consecutive_failures", s.state.ConsecutiveFailures),
	}
	for _, exec := range result.Executions {
		fields = append(fields, zap.String("outcome", exec.Tag.String()))
	}

	if result.Err != nil {
		s.logger.Warn("cycle completed with failure", append(fields, zap.Error(result.Err))...)
		return
	}
	s.logger.Info("cycle summary", fields...)
}
