package scanner

import (
	"math"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"flasharb/config"
	"flasharb/pricing"
	"flasharb/types"
	"flasharb/utils/metrics"
)

// Config holds the scan thresholds.
type Config struct {
	MaxImpactFraction   float64 // fraction of pool depth a trade may consume
	FlashLoanFeePercent float64
	MinNetProfit        float64 // quote units
}

// Scanner enumerates venue pairs quoting the same asset pair and emits
// ranked opportunities. Scan itself is pure and synchronous; all I/O happens
// before it, in Snapshot.
type Scanner struct {
	catalog *config.Catalog
	cfg     Config
	logger  *zap.Logger
	metrics *metrics.ScannerMetrics
}

// New creates a scanner. metrics may be nil.
func New(catalog *config.Catalog, cfg Config, logger *zap.Logger, m *metrics.ScannerMetrics) *Scanner {
	return &Scanner{
		catalog: catalog,
		cfg:     cfg,
		logger:  logger,
		metrics: m,
	}
}

// Snapshot converts raw pool states into priced pools for one cycle. Pools
// whose state failed to read or normalize are skipped for this cycle with a
// warning and retried on the next one.
func (s *Scanner) Snapshot(pools []types.Pool, states map[common.Address]*types.PoolState, now time.Time) []types.PricedPool {
	priced := make([]types.PricedPool, 0, len(pools))

	for _, pool := range pools {
		orientation, err := s.catalog.Orient(pool)
		if err != nil {
			s.logger.Warn("pool has no catalog orientation, skipping",
				zap.String("pool", pool.Address.Hex()),
				zap.Error(err))
			continue
		}

		state, ok := states[pool.Address]
		if !ok || state == nil {
			s.countReadFailure()
			s.logger.Warn("pool state unavailable this cycle",
				zap.String("venue", pool.Venue),
				zap.String("pool", pool.Address.Hex()))
			continue
		}

		price, err := pricing.Normalize(pool, state, orientation.Base, orientation.Quote)
		if err != nil {
			s.countReadFailure()
			s.logger.Warn("price normalization failed, skipping pool this cycle",
				zap.String("venue", pool.Venue),
				zap.String("pool", pool.Address.Hex()),
				zap.Error(err))
			continue
		}

		liquidity := pricing.EstimateLiquidityUSD(pool, state, orientation.Base, price, s.catalog.RefQuoteUSD(orientation.Quote))

		if s.metrics != nil {
			s.metrics.PoolsRead.Inc()
		}
		priced = append(priced, types.PricedPool{
			Pool:         pool,
			Price:        price,
			LiquidityUSD: liquidity,
			ObservedAt:   now,
		})
	}

	return priced
}

// Scan compares every pool pair quoting the same unordered asset pair and
// returns opportunities ordered by descending net expected profit. A fresh
// sequence is produced each cycle; nothing is retained between calls.
func (s *Scanner) Scan(priced []types.PricedPool, gasCostQuote float64) []types.Opportunity {
	start := time.Now()

	groups := make(map[uint64][]types.PricedPool)
	for _, p := range priced {
		// Zero-liquidity pools never participate in pairing.
		if p.LiquidityUSD <= 0 {
			continue
		}
		key := p.Pool.PairKey()
		groups[key] = append(groups[key], p)
	}

	var opportunities []types.Opportunity
	for key, group := range groups {
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				if s.metrics != nil {
					s.metrics.PairsCompared.Inc()
				}
				opp, ok := s.compare(key, group[i], group[j], gasCostQuote)
				if ok {
					opportunities = append(opportunities, opp)
				}
			}
		}
	}

	sort.Slice(opportunities, func(i, j int) bool {
		return opportunities[i].NetExpectedProfit > opportunities[j].NetExpectedProfit
	})

	if s.metrics != nil {
		s.metrics.ScanDuration.Observe(time.Since(start).Seconds())
		s.metrics.Opportunities.Add(float64(len(opportunities)))
		if len(opportunities) > 0 {
			s.metrics.BestNetProfit.Set(opportunities[0].NetExpectedProfit)
		} else {
			s.metrics.BestNetProfit.Set(0)
		}
	}

	return opportunities
}

// compare evaluates one pool pair. Returning false is the common case and
// not an error.
func (s *Scanner) compare(pairKey uint64, a, b types.PricedPool, gasCostQuote float64) (types.Opportunity, bool) {
	// Identical prices carry no spread; drop before any fee math.
	if a.Price == b.Price {
		return types.Opportunity{}, false
	}

	buy, sell := a, b
	if b.Price < a.Price {
		buy, sell = b, a
	}

	spread := sell.Price - buy.Price
	spreadPercent := spread / math.Min(a.Price, b.Price) * 100

	if s.metrics != nil {
		s.metrics.SpreadPercent.Observe(spreadPercent)
	}

	orientation, err := s.catalog.Orient(buy.Pool)
	if err != nil {
		return types.Opportunity{}, false
	}
	base := orientation.Base

	optimalAmount := s.optimalAmount(buy, sell, base)
	if optimalAmount <= 0 {
		return types.Opportunity{}, false
	}

	feeBurden := s.cfg.FlashLoanFeePercent + buy.Pool.FeePercent() + sell.Pool.FeePercent()
	// The spread must clear the whole fee burden before sizing matters:
	// flash loan fee plus both venue tiers.
	if spreadPercent <= feeBurden {
		return types.Opportunity{}, false
	}

	gross := optimalAmount * spread * (1 - feeBurden/100)
	net := gross - gasCostQuote

	if net <= s.cfg.MinNetProfit {
		return types.Opportunity{}, false
	}

	return types.Opportunity{
		PairKey:               pairKey,
		BaseSymbol:            base.Symbol,
		QuoteSymbol:           orientation.Quote.Symbol,
		BuyPool:               buy,
		SellPool:              sell,
		Spread:                spread,
		SpreadPercent:         spreadPercent,
		TotalFeeBurdenPercent: feeBurden,
		OptimalAmount:         optimalAmount,
		GrossExpectedProfit:   gross,
		EstimatedGasCost:      gasCostQuote,
		NetExpectedProfit:     net,
	}, true
}

// optimalAmount sizes the trade in base units: the impact-bounded depth of
// each leg and the per-asset hard cap apply simultaneously; neither bound
// is authoritative alone.
func (s *Scanner) optimalAmount(buy, sell types.PricedPool, base types.Asset) float64 {
	buyBound := buy.LiquidityUSD * s.cfg.MaxImpactFraction / buy.Price
	sellBound := sell.LiquidityUSD * s.cfg.MaxImpactFraction / sell.Price

	amount := math.Min(buyBound, sellBound)
	if base.MaxTradeAmount > 0 {
		amount = math.Min(amount, base.MaxTradeAmount)
	}
	if amount < 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0
	}
	if base.MinTradeAmount > 0 && amount < base.MinTradeAmount {
		return 0
	}
	return amount
}

func (s *Scanner) countReadFailure() {
	if s.metrics != nil {
		s.metrics.ReadFailures.Inc()
	}
}
