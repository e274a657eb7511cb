package devsession

import (
	"context"
	"sync"
	"time"
)

// Coalescer turns bursts of change notifications into rebuilds. A rebuild in
// progress always finishes; triggers arriving meanwhile collapse into exactly
// one follow-up run.
type Coalescer struct {
	debounce time.Duration
	run      func(ctx context.Context, reason string)

	mu      sync.Mutex
	timer   *time.Timer
	reason  string
	running bool
	req     chan string
	wg      sync.WaitGroup
}

// NewCoalescer creates a coalescer calling run after debounce of quiet.
func NewCoalescer(debounce time.Duration, run func(ctx context.Context, reason string)) *Coalescer {
	return &Coalescer{debounce: debounce, run: run, req: make(chan string, 1)}
}

// Trigger schedules a rebuild after the debounce window.
func (c *Coalescer) Trigger(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reason = reason
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.debounce, func() {
		c.mu.Lock()
		r := c.reason
		c.mu.Unlock()
		c.request(r)
	})
}

func (c *Coalescer) request(reason string) {
	select {
	case c.req <- reason:
	default:
	}
}

// Start runs the rebuild worker until ctx is done.
func (c *Coalescer) Start(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-ctx.Done():
				c.stopTimer()
				return
			case reason := <-c.req:
				c.drain(ctx, reason)
			}
		}
	}()
}

// drain runs the rebuild, then the single follow-up if requests arrived
// while it ran. The request channel holds at most one request, so any
// number of triggers during a run collapse into one.
func (c *Coalescer) drain(ctx context.Context, reason string) {
	c.setRunning(true)
	defer c.setRunning(false)
	for {
		c.run(ctx, reason)
		if ctx.Err() != nil {
			return
		}
		select {
		case reason = <-c.req:
		default:
			return
		}
	}
}

func (c *Coalescer) setRunning(v bool) {
	c.mu.Lock()
	c.running = v
	c.mu.Unlock()
}

// Running reports whether a rebuild is in progress.
func (c *Coalescer) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *Coalescer) stopTimer() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
	}
}

// Wait blocks until the worker started by Start has exited.
func (c *Coalescer) Wait() { c.wg.Wait() }
