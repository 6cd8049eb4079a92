package ollama

import (
	"testing"
	"time"
)

func TestStats_RecordAndSnapshot(t *testing.T) {
	s := NewStats(time.Hour)
	s.Record(100*time.Millisecond, 1000, 50)
	s.Record(200*time.Millisecond, 2000, 150)
	s.Record(300*time.Millisecond, 3000, 250)

	snap := s.Snapshot()
	if snap.Calls != 3 {
		t.Errorf("Calls = %d, want 3", snap.Calls)
	}
	if snap.Errors != 0 {
		t.Errorf("Errors = %d, want 0", snap.Errors)
	}
	if snap.MinMs != 100 || snap.MaxMs != 300 {
		t.Errorf("min/max = %d/%d, want 100/300", snap.MinMs, snap.MaxMs)
	}
	if snap.AvgMs != 200 {
		t.Errorf("AvgMs = %f, want 200", snap.AvgMs)
	}
	if snap.PromptChars != 6000 || snap.OutputChars != 450 {
		t.Errorf("chars = %d/%d, want 6000/450", snap.PromptChars, snap.OutputChars)
	}
}

func TestStats_ErrorsCountSeparately(t *testing.T) {
	s := NewStats(time.Hour)
	s.Record(100*time.Millisecond, 500, 20)
	s.RecordError(400 * time.Millisecond)

	snap := s.Snapshot()
	if snap.Calls != 2 || snap.Errors != 1 {
		t.Errorf("Calls/Errors = %d/%d, want 2/1", snap.Calls, snap.Errors)
	}
	if snap.PromptChars != 500 {
		t.Errorf("PromptChars = %d, failed calls must not add chars", snap.PromptChars)
	}
	if snap.MaxMs != 400 {
		t.Errorf("MaxMs = %d, failed call latency should count", snap.MaxMs)
	}
}

func TestStats_EmptySnapshot(t *testing.T) {
	s := NewStats(time.Hour)
	snap := s.Snapshot()
	if snap != (Snapshot{}) {
		t.Errorf("empty snapshot = %+v, want zero value", snap)
	}
}

func TestStats_WindowPrunesOldSamples(t *testing.T) {
	s := NewStats(20 * time.Millisecond)
	s.Record(10*time.Millisecond, 100, 10)
	time.Sleep(40 * time.Millisecond)
	s.Record(10*time.Millisecond, 200, 20)

	snap := s.Snapshot()
	if snap.Calls != 1 {
		t.Errorf("Calls = %d, want 1 after pruning", snap.Calls)
	}
	if snap.PromptChars != 200 {
		t.Errorf("PromptChars = %d, want only the fresh sample", snap.PromptChars)
	}
}

func TestPercentile_Interpolates(t *testing.T) {
	sorted := []float64{100, 200, 300, 400, 500}
	if got := percentile(sorted, 50); got != 300 {
		t.Errorf("p50 = %f, want 300", got)
	}
	if got := percentile(sorted, 95); got != 480 {
		t.Errorf("p95 = %f, want 480", got)
	}
	if got := percentile([]float64{42}, 95); got != 42 {
		t.Errorf("single sample p95 = %f, want 42", got)
	}
	if got := percentile(nil, 50); got != 0 {
		t.Errorf("empty p50 = %f, want 0", got)
	}
}

func TestEstimateTokens_WordHeuristic(t *testing.T) {
	if got := EstimateTokens(""); got != 0 {
		t.Errorf("empty text = %d tokens, want 0", got)
	}
	got := EstimateTokens("one two three four")
	if got != 5 {
		t.Errorf("4 words = %d tokens, want 5", got)
	}
}
