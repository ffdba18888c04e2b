package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsObserve(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry(), "test")

	m.ObservePair(OutcomeRecorded)
	m.ObservePair(OutcomeRecorded)
	m.ObservePair(OutcomeFailed)
	m.ObserveWeekSentinel()
	m.ObserveCycle(CycleOK, 42, time.Unix(1700000000, 0), time.Second)

	if got := testutil.ToFloat64(m.PairsTotal.WithLabelValues(OutcomeRecorded)); got != 2 {
		t.Fatalf("recorded mismatch: %v", got)
	}
	if got := testutil.ToFloat64(m.PairsTotal.WithLabelValues(OutcomeFailed)); got != 1 {
		t.Fatalf("failed mismatch: %v", got)
	}
	if got := testutil.ToFloat64(m.LastCycleBlock); got != 42 {
		t.Fatalf("block mismatch: %v", got)
	}
	if got := testutil.ToFloat64(m.CyclesTotal.WithLabelValues(CycleOK)); got != 1 {
		t.Fatalf("cycles mismatch: %v", got)
	}
}

func TestAbortedCycleKeepsLastCompleted(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry(), "test")

	m.ObserveCycle(CycleOK, 42, time.Unix(1700000000, 0), time.Second)
	// The reference block resolved but the pair universe failed.
	m.ObserveCycle(CycleAborted, 99, time.Unix(1700003600, 0), time.Second)

	if got := testutil.ToFloat64(m.LastCycleBlock); got != 42 {
		t.Fatalf("block moved on aborted cycle: %v", got)
	}
	if got := testutil.ToFloat64(m.LastCycleTime); got != 1700000000 {
		t.Fatalf("time moved on aborted cycle: %v", got)
	}
	if got := testutil.ToFloat64(m.CyclesTotal.WithLabelValues(CycleAborted)); got != 1 {
		t.Fatalf("aborted count mismatch: %v", got)
	}
}

func TestNilMetricsNoop(t *testing.T) {
	var m *Metrics
	m.ObservePair(OutcomeSkipped)
	m.ObserveWeekSentinel()
	m.ObserveCycle(CycleAborted, 0, time.Now(), 0)
}
