package asyncstate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmelo/painel/internal/database"
)

func TestLifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("IdleToSuccess", func(t *testing.T) {
		s := New[[]string]()
		assert.True(t, s.IsIdle())

		v, err := s.Execute(ctx, func(context.Context) ([]string, error) {
			return []string{"a"}, nil
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, v)
		assert.True(t, s.IsSuccess())
		assert.Nil(t, s.Err(), "success implies no error")

		data, ok := s.Data()
		assert.True(t, ok)
		assert.Equal(t, []string{"a"}, data)
	})

	t.Run("ErrorRetainsStaleData", func(t *testing.T) {
		s := New[[]string]()
		_, err := s.Execute(ctx, func(context.Context) ([]string, error) {
			return []string{"a"}, nil
		})
		require.NoError(t, err)

		_, err = s.Execute(ctx, func(context.Context) ([]string, error) {
			return nil, database.NewError(database.KindValidation, "bad input")
		})
		require.Error(t, err)
		assert.True(t, s.IsError())
		assert.NotNil(t, s.Err(), "error status implies a non-nil error")

		data, ok := s.Data()
		assert.True(t, ok, "last successful value survives a failure")
		assert.Equal(t, []string{"a"}, data)
	})

	t.Run("RefetchFromTerminalStates", func(t *testing.T) {
		s := New[int]()
		_, err := s.Execute(ctx, func(context.Context) (int, error) { return 1, nil })
		require.NoError(t, err)

		_, err = s.Execute(ctx, func(context.Context) (int, error) {
			assert.True(t, s.IsLoading(), "execute passes through loading")
			return 2, nil
		})
		require.NoError(t, err)
		data, _ := s.Data()
		assert.Equal(t, 2, data)
	})

	t.Run("Reset", func(t *testing.T) {
		s := New[int]()
		s.SetData(42)
		s.Reset()
		assert.True(t, s.IsIdle())
		assert.Nil(t, s.Err())
		_, ok := s.Data()
		assert.False(t, ok)
	})

	t.Run("SetErrorCoercesNil", func(t *testing.T) {
		s := New[int]()
		s.SetError(nil)
		assert.True(t, s.IsError())
		assert.NotNil(t, s.Err())
	})

	t.Run("SetLoadingClearsError", func(t *testing.T) {
		s := New[int]()
		s.SetData(1)
		s.SetError(database.NewError(database.KindConnection, "down"))
		s.SetLoading()
		assert.True(t, s.IsLoading())
		assert.Nil(t, s.Err())
		data, ok := s.Data()
		require.True(t, ok)
		assert.Equal(t, 1, data)
	})
}

func TestStateInvariant(t *testing.T) {
	// Drive a container through every transition and check the invariant at
	// each step: success implies no error, error implies one.
	s := New[int]()
	check := func() {
		t.Helper()
		switch s.Status() {
		case StatusSuccess:
			assert.Nil(t, s.Err())
		case StatusError:
			assert.NotNil(t, s.Err())
		}
	}

	check()
	s.SetLoading()
	check()
	s.SetData(1)
	check()
	s.SetError(database.NewError(database.KindConnection, "down"))
	check()
	s.SetLoading()
	check()
	s.SetData(2)
	check()
	s.Reset()
	check()
}

func TestRetry(t *testing.T) {
	ctx := context.Background()

	t.Run("TransientRetriedUpToCount", func(t *testing.T) {
		s := New[string](WithRetry[string](RetryPolicy{Count: 2, Delay: time.Millisecond}))
		calls := 0
		v, err := s.Execute(ctx, func(context.Context) (string, error) {
			calls++
			if calls < 3 {
				return "", database.NewError(database.KindConnection, "refused")
			}
			return "ok", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "ok", v)
		assert.Equal(t, 3, calls)
	})

	t.Run("ExhaustedRetriesSurfaceError", func(t *testing.T) {
		s := New[string](WithRetry[string](RetryPolicy{Count: 2, Delay: time.Millisecond}))
		calls := 0
		_, err := s.Execute(ctx, func(context.Context) (string, error) {
			calls++
			return "", database.NewError(database.KindRateLimit, "slow down")
		})
		require.Error(t, err)
		assert.Equal(t, 3, calls)
		assert.True(t, s.IsError())
	})

	t.Run("TerminalKindsNeverRetried", func(t *testing.T) {
		for _, kind := range []database.Kind{database.KindValidation, database.KindAuth, database.KindPermission} {
			s := New[string](WithRetry[string](RetryPolicy{Count: 5, Delay: time.Millisecond}))
			calls := 0
			_, err := s.Execute(ctx, func(context.Context) (string, error) {
				calls++
				return "", database.NewError(kind, "terminal")
			})
			require.Error(t, err)
			assert.Equal(t, 1, calls, "kind %s must not be retried", kind)
		}
	})

	t.Run("CanceledWaitStopsRetrying", func(t *testing.T) {
		s := New[string](WithRetry[string](RetryPolicy{Count: 5, Delay: time.Minute}))
		cancelCtx, cancel := context.WithCancel(ctx)
		calls := 0
		go func() {
			time.Sleep(20 * time.Millisecond)
			cancel()
		}()
		_, err := s.Execute(cancelCtx, func(context.Context) (string, error) {
			calls++
			return "", database.NewError(database.KindConnection, "refused")
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})
}

func TestBackoff(t *testing.T) {
	fixed := RetryPolicy{Count: 3, Delay: 100 * time.Millisecond}
	assert.Equal(t, 100*time.Millisecond, fixed.backoff(1))
	assert.Equal(t, 100*time.Millisecond, fixed.backoff(3))

	exp := RetryPolicy{Count: 3, Delay: 100 * time.Millisecond, Strategy: RetryExponential}
	assert.Equal(t, 100*time.Millisecond, exp.backoff(1))
	assert.Equal(t, 200*time.Millisecond, exp.backoff(2))
	assert.Equal(t, 400*time.Millisecond, exp.backoff(3))
}

func TestCombine(t *testing.T) {
	success := New[int]()
	success.SetData(1)

	loading := New[int]()
	loading.SetLoading()

	failedA := New[int]()
	failedA.SetError(database.NewError(database.KindConnection, "first"))

	failedB := New[int]()
	failedB.SetError(database.NewError(database.KindRateLimit, "second"))

	idle := New[int]()

	t.Run("AllSuccess", func(t *testing.T) {
		other := New[int]()
		other.SetData(2)
		merged := Combine(success, other)
		assert.True(t, merged.Success)
		assert.False(t, merged.Loading)
		assert.Nil(t, merged.Err)
	})

	t.Run("LoadingIsOR", func(t *testing.T) {
		merged := Combine(success, loading)
		assert.True(t, merged.Loading)
		assert.False(t, merged.Success)
	})

	t.Run("FirstErrorWins", func(t *testing.T) {
		merged := Combine(failedA, failedB)
		require.NotNil(t, merged.Err)
		assert.Contains(t, merged.Err.Error(), "first")

		merged = Combine(failedB, failedA)
		assert.Contains(t, merged.Err.Error(), "second")
	})

	t.Run("SuccessIsAND", func(t *testing.T) {
		assert.False(t, Combine(success, idle).Success)
		assert.True(t, Combine().Success, "no views is vacuously successful")
	})
}
