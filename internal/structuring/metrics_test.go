package structuring

import (
	"testing"
	"time"

	"bersona/internal/tester"
)

func TestMetricsEmptySnapshot(t *testing.T) {
	snap := NewPipelineMetrics().Snapshot()
	tester.Eq(t, snap.Calls, uint64(0))
	tester.Eq(t, snap.AvgMS, 0.0)
	tester.Eq(t, snap.P95MS, 0.0)
}

func TestMetricsCountsAndLatency(t *testing.T) {
	m := NewPipelineMetrics()
	m.Record(10*time.Millisecond, true, false, false)
	m.Record(20*time.Millisecond, true, true, false)
	m.Record(30*time.Millisecond, true, true, true)

	snap := m.Snapshot()
	tester.Eq(t, snap.Calls, uint64(3))
	tester.Eq(t, snap.Success, uint64(3))
	tester.Eq(t, snap.Fallback, uint64(2))
	tester.Eq(t, snap.ParseFail, uint64(1))
	tester.Eq(t, snap.AvgMS, 20.0)
	tester.Eq(t, snap.P95MS, 20.0)
}

func TestMetricsP95Clamped(t *testing.T) {
	m := NewPipelineMetrics()
	m.Record(5*time.Millisecond, true, false, false)
	tester.Eq(t, m.Snapshot().P95MS, 5.0)
}
