// Package coordinator deduplicates concurrent identical fetches. Callers
// funnel every read through Run with a structural key; while a fetch for a
// key is in flight, further callers join it instead of issuing a duplicate.
// An optional trailing debounce window additionally collapses rapid repeated
// calls for one key into a single execution.
package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// DefaultDebounce is the debounce window applied by WithDebounce when the
// configured duration is zero.
const DefaultDebounce = 200 * time.Millisecond

// Producer fetches the value for one key. It runs at most once per key at
// any instant, regardless of how many callers are waiting.
type Producer func(ctx context.Context) (any, error)

// Coordinator serializes fetches per key. An injectable instance, one per
// session; tests construct isolated instances.
type Coordinator struct {
	group    singleflight.Group
	debounce time.Duration
	logger   zerolog.Logger

	mu      sync.Mutex
	waiting map[string]*debounced
}

// debounced is one key's pending trailing execution.
type debounced struct {
	timer *time.Timer
	done  chan struct{}
	value any
	err   error
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithDebounce enables the trailing debounce window. A zero duration selects
// DefaultDebounce.
func WithDebounce(window time.Duration) Option {
	return func(c *Coordinator) {
		if window <= 0 {
			window = DefaultDebounce
		}
		c.debounce = window
	}
}

// WithLogger attaches a logger for join/execute diagnostics.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

// New creates a coordinator. Without WithDebounce, Run dedupes in-flight
// calls but executes immediately.
func New(opts ...Option) *Coordinator {
	c := &Coordinator{
		logger:  zerolog.Nop(),
		waiting: make(map[string]*debounced),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run executes fn for key, deduplicating against concurrent calls with the
// same key. On failure the key is cleared immediately, so the next call
// retries cleanly. Cancellation is cooperative: ctx abandoning the wait
// does not abort an execution shared with other callers.
func (c *Coordinator) Run(ctx context.Context, key string, fn Producer) (any, error) {
	if c.debounce > 0 {
		return c.runDebounced(ctx, key, fn)
	}
	return c.runShared(ctx, key, fn)
}

// runShared dedupes through singleflight, but waits with ctx so an
// abandoning caller unblocks even though the execution keeps running.
func (c *Coordinator) runShared(ctx context.Context, key string, fn Producer) (any, error) {
	// WithoutCancel: the first caller abandoning its wait must not abort an
	// execution other callers joined.
	execCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		return fn(execCtx)
	})
	select {
	case res := <-ch:
		if res.Shared {
			c.logger.Debug().Str("key", key).Msg("joined in-flight request")
		}
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// runDebounced parks the caller until the key's window goes quiet, then
// executes once and fans the result out to every parked caller.
func (c *Coordinator) runDebounced(ctx context.Context, key string, fn Producer) (any, error) {
	c.mu.Lock()
	d, ok := c.waiting[key]
	if ok {
		// Trailing semantics: a repeat call pushes the execution out.
		d.timer.Reset(c.debounce)
	} else {
		d = &debounced{done: make(chan struct{})}
		d.timer = time.AfterFunc(c.debounce, func() { c.fire(key, d, fn) })
		c.waiting[key] = d
		c.logger.Debug().Str("key", key).Dur("window", c.debounce).Msg("debounce window opened")
	}
	c.mu.Unlock()

	select {
	case <-d.done:
		return d.value, d.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// fire runs the debounced execution for key and releases its waiters.
func (c *Coordinator) fire(key string, d *debounced, fn Producer) {
	c.mu.Lock()
	delete(c.waiting, key)
	c.mu.Unlock()

	// The producer gets its own context: individual callers abandoning the
	// wait must not cancel a shared execution. Running through the
	// singleflight group keeps the one-execution-per-key guarantee even when
	// a window closes while an earlier fetch is still in flight.
	d.value, d.err, _ = c.group.Do(key, func() (any, error) {
		return fn(context.Background())
	})
	close(d.done)
}

// Pending reports whether key currently has an open debounce window.
func (c *Coordinator) Pending(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.waiting[key]
	return ok
}

// PendingCount returns the number of open debounce windows.
func (c *Coordinator) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiting)
}

// Forget clears any in-flight dedup state for key so the next Run executes
// fresh. Debounced windows are left to fire; only the singleflight slot is
// dropped.
func (c *Coordinator) Forget(key string) {
	c.group.Forget(key)
}
