package ollama

import (
	"sort"
	"sync"
	"time"
)

type sample struct {
	at          time.Time
	durationMs  int64
	promptChars int
	outputChars int
	failed      bool
}

// Snapshot is a point-in-time aggregate of recent completion calls.
type Snapshot struct {
	Calls       int     `json:"calls"`
	Errors      int     `json:"errors"`
	PromptChars int64   `json:"prompt_chars"`
	OutputChars int64   `json:"output_chars"`
	MinMs       int64   `json:"min_ms"`
	MaxMs       int64   `json:"max_ms"`
	AvgMs       float64 `json:"avg_ms"`
	P50Ms       float64 `json:"p50_ms"`
	P95Ms       float64 `json:"p95_ms"`
}

// Stats tracks completion calls inside a rolling time window. Safe for
// concurrent use.
type Stats struct {
	mu      sync.Mutex
	samples []sample
	maxAge  time.Duration
}

// NewStats creates a tracker that keeps samples for maxAge.
func NewStats(maxAge time.Duration) *Stats {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &Stats{
		samples: make([]sample, 0, 256),
		maxAge:  maxAge,
	}
}

// Record adds a successful call.
func (s *Stats) Record(d time.Duration, promptChars, outputChars int) {
	s.add(sample{at: time.Now(), durationMs: d.Milliseconds(), promptChars: promptChars, outputChars: outputChars})
}

// RecordError adds a failed call. Its latency still counts toward the
// percentiles.
func (s *Stats) RecordError(d time.Duration) {
	s.add(sample{at: time.Now(), durationMs: d.Milliseconds(), failed: true})
}

func (s *Stats) add(sm sample) {
	if sm.durationMs < 0 {
		sm.durationMs = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked(sm.at)
	s.samples = append(s.samples, sm)
}

// Snapshot aggregates the samples still inside the window.
func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked(time.Now())

	if len(s.samples) == 0 {
		return Snapshot{}
	}

	durations := make([]float64, 0, len(s.samples))
	snap := Snapshot{Calls: len(s.samples)}
	var total int64
	snap.MinMs = s.samples[0].durationMs
	for _, sm := range s.samples {
		durations = append(durations, float64(sm.durationMs))
		total += sm.durationMs
		if sm.durationMs < snap.MinMs {
			snap.MinMs = sm.durationMs
		}
		if sm.durationMs > snap.MaxMs {
			snap.MaxMs = sm.durationMs
		}
		if sm.failed {
			snap.Errors++
			continue
		}
		snap.PromptChars += int64(sm.promptChars)
		snap.OutputChars += int64(sm.outputChars)
	}
	snap.AvgMs = float64(total) / float64(len(s.samples))

	sort.Float64s(durations)
	snap.P50Ms = percentile(durations, 50)
	snap.P95Ms = percentile(durations, 95)
	return snap
}

func (s *Stats) pruneLocked(now time.Time) {
	cutoff := now.Add(-s.maxAge)
	first := 0
	for first < len(s.samples) && s.samples[first].at.Before(cutoff) {
		first++
	}
	if first > 0 {
		s.samples = append(s.samples[:0], s.samples[first:]...)
	}
}

// percentile interpolates the p-th percentile of sorted values.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(rank)
	hi := lo + 1
	if hi >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}
