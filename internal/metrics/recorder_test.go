package metrics

import (
	"sync"
	"testing"
	"time"
)

// countingRecorder is a minimal Recorder used to check interface completeness.
type countingRecorder struct {
	NoopRecorder
	mu       sync.Mutex
	outcomes map[BuildOutcomeLabel]int
}

func (c *countingRecorder) IncBuildOutcome(o BuildOutcomeLabel) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outcomes[o]++
}

func TestNoopRecorderSatisfiesInterface(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.ObserveStageDuration("plan_chunks", time.Millisecond)
	r.IncBuildOutcome(BuildOutcomeCanceled)

	c := &countingRecorder{outcomes: map[BuildOutcomeLabel]int{}}
	r = c
	r.IncBuildOutcome(BuildOutcomeSuccess)
	r.IncBuildOutcome(BuildOutcomeSuccess)
	if c.outcomes[BuildOutcomeSuccess] != 2 {
		t.Fatalf("expected 2 successes, got %d", c.outcomes[BuildOutcomeSuccess])
	}
}
