package devsession

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type runLog struct {
	mu      sync.Mutex
	reasons []string
	calls   chan struct{}
}

func newRunLog() *runLog { return &runLog{calls: make(chan struct{}, 16)} }

func (l *runLog) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.reasons)
}

func waitCalls(t *testing.T, l *runLog, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-l.calls:
		case <-time.After(2 * time.Second):
			t.Fatalf("expected %d runs, saw %d", n, l.count())
		}
	}
}

func TestCoalescer_DebouncesBurst(t *testing.T) {
	log := newRunLog()
	c := NewCoalescer(20*time.Millisecond, func(_ context.Context, reason string) {
		log.mu.Lock()
		log.reasons = append(log.reasons, reason)
		log.mu.Unlock()
		log.calls <- struct{}{}
	})
	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)

	for i := 0; i < 10; i++ {
		c.Trigger("change")
	}
	waitCalls(t, log, 1)
	time.Sleep(60 * time.Millisecond)
	cancel()
	c.Wait()

	assert.Equal(t, []string{"change"}, log.reasons)
}

func TestCoalescer_ChangesDuringRunCauseOneFollowUp(t *testing.T) {
	log := newRunLog()
	release := make(chan struct{})
	started := make(chan struct{}, 4)
	c := NewCoalescer(time.Millisecond, func(_ context.Context, reason string) {
		started <- struct{}{}
		if log.count() == 0 {
			<-release
		}
		log.mu.Lock()
		log.reasons = append(log.reasons, reason)
		log.mu.Unlock()
		log.calls <- struct{}{}
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		c.Wait()
	}()
	c.Start(ctx)

	c.Trigger("first")
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("first run did not start")
	}
	require.True(t, c.Running())

	for i := 0; i < 5; i++ {
		c.Trigger("during")
		time.Sleep(5 * time.Millisecond)
	}
	close(release)

	waitCalls(t, log, 2)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, []string{"first", "during"}, log.reasons)

	deadline := time.Now().Add(time.Second)
	for c.Running() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	assert.False(t, c.Running())
}
