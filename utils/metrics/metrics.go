package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type ScannerMetrics struct {
	PoolsRead     prometheus.Counter
	ReadFailures  prometheus.Counter
	PairsCompared prometheus.Counter
	Opportunities prometheus.Counter
	BestNetProfit prometheus.Gauge
	SpreadPercent prometheus.Histogram
	ScanDuration  prometheus.Histogram
}

func NewScannerMetrics(namespace string) *ScannerMetrics {
	return &ScannerMetrics{
		PoolsRead: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pools_read_total",
			Help:      "Total number of pool state reads",
		}),
		ReadFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "read_failures_total",
			Help:      "Total number of failed pool state reads",
		}),
		PairsCompared: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pairs_compared_total",
			Help:      "Total number of pool pairs compared",
		}),
		Opportunities: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "opportunities_total",
			Help:      "Total number of opportunities emitted",
		}),
		BestNetProfit: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "best_net_profit",
			Help:      "Net expected profit of the best opportunity in the last cycle",
		}),
		SpreadPercent: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "spread_percent",
			Help:      "Observed spread distribution across compared pairs",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		}),
		ScanDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scan_duration_seconds",
			Help:      "Time taken by one scan pass",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

type SchedulerMetrics struct {
	Cycles              prometheus.Counter
	SkippedGasCeiling   prometheus.Counter
	Failures            prometheus.Counter
	ConsecutiveFailures prometheus.Gauge
	ExecutionsAttempted prometheus.Counter
}

func NewSchedulerMetrics(namespace string) *SchedulerMetrics {
	return &SchedulerMetrics{
		Cycles: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Total number of scan cycles run",
		}),
		SkippedGasCeiling: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skipped_gas_ceiling_total",
			Help:      "Total number of cycles skipped due to the gas price ceiling",
		}),
		Failures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_total",
			Help:      "Total number of failed cycles",
		}),
		ConsecutiveFailures: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "consecutive_failures",
			Help:      "Current consecutive failure count",
		}),
		ExecutionsAttempted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "executions_attempted_total",
			Help:      "Total number of execution requests dispatched",
		}),
	}
}
