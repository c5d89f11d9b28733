package pipeline

import (
	"slices"
	"sync"
	"time"
)

type sample struct {
	at time.Time
	d  time.Duration
}

// StatsSnapshot aggregates the conversion latencies inside the window.
// Conversions usually finish in under a millisecond, so values are
// fractional milliseconds.
type StatsSnapshot struct {
	Count         int     `json:"count"`
	WindowSeconds int64   `json:"window_seconds"`
	MinMs         float64 `json:"min_ms"`
	MaxMs         float64 `json:"max_ms"`
	AvgMs         float64 `json:"avg_ms"`
	P50Ms         float64 `json:"p50_ms"`
	P95Ms         float64 `json:"p95_ms"`
	P99Ms         float64 `json:"p99_ms"`
}

// ConvertStats tracks recent page conversion latencies within a rolling window.
type ConvertStats struct {
	mu      sync.Mutex
	samples []sample
	maxAge  time.Duration
}

func NewConvertStats(maxAge time.Duration) *ConvertStats {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &ConvertStats{
		samples: make([]sample, 0, 256),
		maxAge:  maxAge,
	}
}

// Record adds one conversion; negative durations count as zero.
func (s *ConvertStats) Record(d time.Duration) {
	d = max(d, 0)
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(now)
	s.samples = append(s.samples, sample{at: now, d: d})
}

func (s *ConvertStats) Snapshot() StatsSnapshot {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(now)
	snap := StatsSnapshot{WindowSeconds: int64(s.maxAge / time.Second)}
	if len(s.samples) == 0 {
		return snap
	}

	values := make([]float64, 0, len(s.samples))
	var sum float64
	for _, sm := range s.samples {
		ms := float64(sm.d) / float64(time.Millisecond)
		values = append(values, ms)
		sum += ms
	}
	slices.Sort(values)

	snap.Count = len(values)
	snap.MinMs = values[0]
	snap.MaxMs = values[len(values)-1]
	snap.AvgMs = sum / float64(len(values))
	snap.P50Ms = percentile(values, 50)
	snap.P95Ms = percentile(values, 95)
	snap.P99Ms = percentile(values, 99)
	return snap
}

func (s *ConvertStats) pruneLocked(now time.Time) {
	cutoff := now.Add(-s.maxAge)
	s.samples = slices.DeleteFunc(s.samples, func(sm sample) bool {
		return sm.at.Before(cutoff)
	})
}

// percentile interpolates linearly between the closest ranks.
func percentile(sorted []float64, pct float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if pct <= 0 {
		return sorted[0]
	}
	if pct >= 100 {
		return sorted[len(sorted)-1]
	}

	index := (float64(len(sorted)-1) * pct) / 100.0
	lower := int(index)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[lower]
	}
	weight := index - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*weight
}
