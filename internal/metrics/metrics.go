// Package metrics exposes Prometheus instrumentation for sync cycles.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pair outcome labels.
const (
	OutcomeRecorded = "recorded"
	OutcomeSkipped  = "skipped"
	OutcomeFailed   = "failed"
)

// Cycle status labels.
const (
	CycleOK      = "ok"
	CycleAborted = "aborted"
)

// Metrics holds the syncer collectors. A nil *Metrics is a no-op.
type Metrics struct {
	CyclesTotal     *prometheus.CounterVec
	CycleDuration   prometheus.Histogram
	PairsTotal      *prometheus.CounterVec
	WeekAPRSentinel prometheus.Counter
	LastCycleBlock  prometheus.Gauge
	LastCycleTime   prometheus.Gauge
}

// NewMetrics creates and registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	if namespace == "" {
		namespace = "yield_syncer"
	}
	return &Metrics{
		CyclesTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Sync cycles run, labeled by status.",
		}, []string{"status"}),
		CycleDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of a full sync cycle.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		PairsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pairs_total",
			Help:      "Pairs processed, labeled by outcome.",
		}, []string{"outcome"}),
		WeekAPRSentinel: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "week_apr_sentinel_total",
			Help:      "Records emitted without enough history for a week-smoothed APR.",
		}),
		LastCycleBlock: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_cycle_reference_block",
			Help:      "Reference block of the last completed cycle.",
		}),
		LastCycleTime: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_cycle_timestamp_seconds",
			Help:      "Unix time of the last completed cycle.",
		}),
	}
}

// ObserveCycle counts a cycle. Only completed cycles move the last-cycle gauges.
func (m *Metrics) ObserveCycle(status string, block uint64, started time.Time, d time.Duration) {
	if m == nil {
		return
	}
	m.CyclesTotal.WithLabelValues(status).Inc()
	m.CycleDuration.Observe(d.Seconds())
	if status == CycleOK {
		m.LastCycleBlock.Set(float64(block))
		m.LastCycleTime.Set(float64(started.Unix()))
	}
}

func (m *Metrics) ObservePair(outcome string) {
	if m == nil {
		return
	}
	m.PairsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveWeekSentinel() {
	if m == nil {
		return
	}
	m.WeekAPRSentinel.Inc()
}
