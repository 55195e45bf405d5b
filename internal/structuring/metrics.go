package structuring

import (
	"sort"
	"sync"
	"time"
)

// PipelineMetrics accumulates per-call pipeline counters and latencies.
// All updates go through Record under one coarse lock.
type PipelineMetrics struct {
	mu          sync.Mutex
	calls       uint64
	success     uint64
	fallback    uint64
	parseFail   uint64
	durationsMS []float64
}

func NewPipelineMetrics() *PipelineMetrics {
	return &PipelineMetrics{}
}

func (m *PipelineMetrics) Record(dur time.Duration, success, usedFallback, parseFail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if success {
		m.success++
	}
	if usedFallback {
		m.fallback++
	}
	if parseFail {
		m.parseFail++
	}
	m.durationsMS = append(m.durationsMS, float64(dur.Milliseconds()))
}

// PipelineSnapshot is the read-only counter view. avg_ms is 0 before the
// first call; p95_ms indexes the sorted latencies at the 95th percentile
// position, clamped to valid bounds.
type PipelineSnapshot struct {
	Calls     uint64  `json:"calls"`
	Success   uint64  `json:"success"`
	Fallback  uint64  `json:"fallback"`
	ParseFail uint64  `json:"parse_fail"`
	AvgMS     float64 `json:"avg_ms"`
	P95MS     float64 `json:"p95_ms"`
}

func (m *PipelineMetrics) Snapshot() PipelineSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := PipelineSnapshot{
		Calls:     m.calls,
		Success:   m.success,
		Fallback:  m.fallback,
		ParseFail: m.parseFail,
	}
	n := len(m.durationsMS)
	if n == 0 {
		return snap
	}
	var sum float64
	sorted := make([]float64, n)
	copy(sorted, m.durationsMS)
	sort.Float64s(sorted)
	for _, d := range sorted {
		sum += d
	}
	snap.AvgMS = sum / float64(n)

	idx := int(float64(n)*0.95) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	snap.P95MS = sorted[idx]
	return snap
}
