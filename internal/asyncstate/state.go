// Package asyncstate tracks the lifecycle of one asynchronously loaded
// resource: idle until first use, loading while a fetch runs, then success
// or error. The container enforces two invariants: a success state never
// carries an error, and an error state always does, while the last
// successful data stays available (stale-but-present) so consumers can keep
// rendering it alongside a non-blocking error signal.
package asyncstate

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dmelo/painel/internal/database"
)

// Status is the lifecycle phase of a resource.
type Status string

// Lifecycle phases. Legal transitions: idle → loading → success|error, and
// success|error → loading (refetch/retry) → success|error.
const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// RetryStrategy selects how the delay grows between attempts.
type RetryStrategy string

// Retry strategies.
const (
	RetryFixed       RetryStrategy = "fixed"
	RetryExponential RetryStrategy = "exponential"
)

// RetryPolicy controls transparent retries inside Execute. Only transient
// failures (connection, rate limit) are retried; validation, auth, and
// permission errors surface immediately.
type RetryPolicy struct {
	// Count is the number of retries after the first attempt.
	Count int

	// Delay is the wait before the first retry.
	Delay time.Duration

	// Strategy is how the delay evolves; empty means RetryFixed.
	Strategy RetryStrategy
}

// backoff returns the wait before retry attempt n (1-based).
func (p RetryPolicy) backoff(n int) time.Duration {
	if p.Strategy != RetryExponential {
		return p.Delay
	}
	d := p.Delay
	for i := 1; i < n; i++ {
		d *= 2
	}
	return d
}

// State is the async container for one resource of type T.
// Safe for concurrent use.
type State[T any] struct {
	mu      sync.RWMutex
	status  Status
	data    T
	hasData bool
	err     error

	retry  RetryPolicy
	logger zerolog.Logger
}

// Option configures a State.
type Option[T any] func(*State[T])

// WithRetry sets the retry policy applied by Execute.
func WithRetry[T any](policy RetryPolicy) Option[T] {
	return func(s *State[T]) { s.retry = policy }
}

// WithLogger attaches a logger for transition diagnostics.
func WithLogger[T any](logger zerolog.Logger) Option[T] {
	return func(s *State[T]) { s.logger = logger }
}

// New creates an idle state.
func New[T any](opts ...Option[T]) *State[T] {
	s := &State[T]{status: StatusIdle, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Execute transitions to loading, runs fn (retrying transient failures per
// the policy), and lands in success or error. The resolved value is returned
// alongside being stored; on failure the previous data is retained.
func (s *State[T]) Execute(ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	s.SetLoading()

	var value T
	var err error
	for attempt := 0; ; attempt++ {
		value, err = fn(ctx)
		if err == nil {
			s.SetData(value)
			return value, nil
		}
		if attempt >= s.retry.Count || !database.IsRetryable(err) {
			break
		}
		wait := s.retry.backoff(attempt + 1)
		s.logger.Debug().
			Err(err).
			Int("attempt", attempt+1).
			Dur("backoff", wait).
			Msg("transient failure, retrying")
		if sleepErr := sleep(ctx, wait); sleepErr != nil {
			err = database.WrapError(database.KindConnection, "retry wait aborted", sleepErr)
			break
		}
	}

	s.SetError(err)
	var zero T
	return zero, err
}

// SetData records a successful value: status success, error cleared.
func (s *State[T]) SetData(value T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = StatusSuccess
	s.data = value
	s.hasData = true
	s.err = nil
}

// Update rewrites the held value through fn under the container's lock.
// A container with no data yet is left untouched; status and error are
// unchanged either way.
func (s *State[T]) Update(fn func(T) T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasData {
		return
	}
	s.data = fn(s.data)
}

// SetError records a failure: status error, previous data retained. A nil
// err is coerced to an unknown-kind error to preserve the state invariant.
func (s *State[T]) SetError(err error) {
	if err == nil {
		err = database.NewError(database.KindUnknown, "operation failed")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = StatusError
	s.err = database.Normalize(err)
}

// SetLoading marks a fetch in progress. Data from the previous terminal
// state is retained until the fetch settles; a pending fetch carries no
// error, so a retry does not surface the failure it is retrying.
func (s *State[T]) SetLoading() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = StatusLoading
	s.err = nil
}

// Reset returns the container to idle with no data and no error.
func (s *State[T]) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	var zero T
	s.status = StatusIdle
	s.data = zero
	s.hasData = false
	s.err = nil
}

// Status returns the current phase.
func (s *State[T]) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Data returns the last successful value and whether one exists. The value
// survives later failures (stale-but-present).
func (s *State[T]) Data() (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data, s.hasData
}

// Err returns the current error, nil unless status is error.
func (s *State[T]) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Derived flags; each is a pure function of Status.

func (s *State[T]) IsIdle() bool    { return s.Status() == StatusIdle }
func (s *State[T]) IsLoading() bool { return s.Status() == StatusLoading }
func (s *State[T]) IsSuccess() bool { return s.Status() == StatusSuccess }
func (s *State[T]) IsError() bool   { return s.Status() == StatusError }

// Snapshot implements View.
func (s *State[T]) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{Status: s.status, Err: s.err}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
