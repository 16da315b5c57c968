package utils

import (
	"testing"
	"time"
)

func TestLatencyTrackerPercentile(t *testing.T) {
	tracker := NewLatencyTracker(10)
	durations := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 30 * time.Millisecond, 40 * time.Millisecond, 50 * time.Millisecond}
	for _, d := range durations {
		tracker.Observe("predict", d)
	}

	if tracker.Count("predict") != len(durations) {
		t.Fatalf("expected count %d, got %d", len(durations), tracker.Count("predict"))
	}

	p95 := tracker.Percentile("predict", 95)
	if p95 < 40*time.Millisecond {
		t.Fatalf("expected percentile >= 40ms, got %v", p95)
	}
	if got := tracker.Percentile("history", 95); got != 0 {
		t.Fatalf("expected zero for unknown operation, got %v", got)
	}
}

func TestLatencyTrackerBoundedSize(t *testing.T) {
	tracker := NewLatencyTracker(3)
	for i := 0; i < 10; i++ {
		tracker.Observe("predict", time.Duration(i)*time.Millisecond)
	}
	if tracker.Count("predict") != 3 {
		t.Fatalf("expected tracker size 3, got %d", tracker.Count("predict"))
	}
	if min := tracker.Percentile("predict", 0); min != 7*time.Millisecond {
		t.Fatalf("expected oldest samples dropped, min=%v", min)
	}
}

func TestLatencyTrackerOperations(t *testing.T) {
	tracker := NewLatencyTracker(0)
	tracker.Observe("history", time.Millisecond)
	tracker.Observe("predict", time.Millisecond)
	ops := tracker.Operations()
	if len(ops) != 2 || ops[0] != "history" || ops[1] != "predict" {
		t.Fatalf("unexpected operations: %v", ops)
	}
}
