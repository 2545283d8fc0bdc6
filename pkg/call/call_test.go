package call

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func TestExecuteResolvesWorkResult(t *testing.T) {
	t.Parallel()

	tcs := []struct {
		name        string
		c           Call[int]
		expected    int
		expectedErr error
	}{
		{
			name:     "work function success",
			c:        New(func(context.Context) (int, error) { return 42, nil }),
			expected: 42,
		},
		{
			name:        "work function failure",
			c:           New(func(context.Context) (int, error) { return 0, errBoom }),
			expectedErr: errBoom,
		},
		{
			name:     "completed value",
			c:        Completed(7),
			expected: 7,
		},
		{
			name:        "failed value",
			c:           Failed[int](errBoom),
			expectedErr: errBoom,
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			value, err := tc.c.Execute(t.Context())
			if tc.expectedErr != nil {
				require.ErrorIs(t, err, tc.expectedErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.expected, value)
		})
	}
}

func TestCallIsSingleShot(t *testing.T) {
	t.Parallel()

	var runs atomic.Int32
	c := New(func(context.Context) (int, error) {
		runs.Add(1)
		return 1, nil
	})

	_, err := c.Execute(t.Context())
	require.NoError(t, err)

	_, err = c.Execute(t.Context())
	require.ErrorIs(t, err, ErrAlreadyStarted)

	done := make(chan error, 1)
	c.Enqueue(t.Context(), func(_ int, err error) { done <- err })
	require.ErrorIs(t, <-done, ErrAlreadyStarted)

	require.Equal(t, int32(1), runs.Load())
}

func TestEnqueueInvokesCallbackOnce(t *testing.T) {
	t.Parallel()

	var invocations atomic.Int32
	done := make(chan struct{})
	var resolvedValue string
	var resolvedErr error

	c := New(func(context.Context) (string, error) { return "hi", nil })
	c.Enqueue(t.Context(), func(value string, err error) {
		invocations.Add(1)
		resolvedValue, resolvedErr = value, err
		close(done)
	})

	<-done
	require.NoError(t, resolvedErr)
	require.Equal(t, "hi", resolvedValue)
	require.Equal(t, int32(1), invocations.Load())
}

func TestMap(t *testing.T) {
	t.Parallel()

	t.Run("transforms success", func(t *testing.T) {
		t.Parallel()

		c := Map(Completed(21), func(v int) (int, error) { return v * 2, nil })
		value, err := c.Execute(t.Context())
		require.NoError(t, err)
		require.Equal(t, 42, value)
	})

	t.Run("never invoked on upstream failure", func(t *testing.T) {
		t.Parallel()

		invoked := false
		c := Map(Failed[int](errBoom), func(v int) (int, error) {
			invoked = true
			return v, nil
		})
		_, err := c.Execute(t.Context())
		require.ErrorIs(t, err, errBoom)
		require.False(t, invoked)
	})

	t.Run("transform error fails the call", func(t *testing.T) {
		t.Parallel()

		c := Map(Completed(1), func(int) (int, error) { return 0, errBoom })
		_, err := c.Execute(t.Context())
		require.ErrorIs(t, err, errBoom)
	})
}

func TestFlatMap(t *testing.T) {
	t.Parallel()

	t.Run("adopts the outcome of the following call", func(t *testing.T) {
		t.Parallel()

		c := FlatMap(Completed(3), func(v int) Call[string] {
			return New(func(context.Context) (string, error) {
				return string(rune('a' + v)), nil
			})
		})
		value, err := c.Execute(t.Context())
		require.NoError(t, err)
		require.Equal(t, "d", value)
	})

	t.Run("adopts inner failure", func(t *testing.T) {
		t.Parallel()

		c := FlatMap(Completed(3), func(int) Call[string] { return Failed[string](errBoom) })
		_, err := c.Execute(t.Context())
		require.ErrorIs(t, err, errBoom)
	})

	t.Run("mapper skipped on upstream failure", func(t *testing.T) {
		t.Parallel()

		invoked := false
		c := FlatMap(Failed[int](errBoom), func(int) Call[string] {
			invoked = true
			return Completed("unreachable")
		})
		_, err := c.Execute(t.Context())
		require.ErrorIs(t, err, errBoom)
		require.False(t, invoked)
	})
}

func TestClone(t *testing.T) {
	t.Parallel()

	t.Run("clone of an executed call runs fresh", func(t *testing.T) {
		t.Parallel()

		var runs atomic.Int32
		c := New(func(context.Context) (int, error) {
			return int(runs.Add(1)), nil
		})

		first, err := c.Execute(t.Context())
		require.NoError(t, err)
		require.Equal(t, 1, first)

		cloned, err := c.Clone()
		require.NoError(t, err)
		second, err := cloned.Execute(t.Context())
		require.NoError(t, err)
		require.Equal(t, 2, second)
	})

	t.Run("uncloneable call refuses", func(t *testing.T) {
		t.Parallel()

		c := NewUncloneable(func(context.Context) (int, error) { return 1, nil })
		_, err := c.Clone()
		require.ErrorIs(t, err, ErrCloneUnsupported)
	})

	t.Run("flatmap clone propagates uncloneable upstream", func(t *testing.T) {
		t.Parallel()

		c := FlatMap(
			NewUncloneable(func(context.Context) (int, error) { return 1, nil }),
			func(int) Call[int] { return Completed(2) },
		)
		_, err := c.Clone()
		require.ErrorIs(t, err, ErrCloneUnsupported)
	})

	t.Run("flatmap clone re-runs the whole chain", func(t *testing.T) {
		t.Parallel()

		var runs atomic.Int32
		c := FlatMap(
			New(func(context.Context) (int, error) { return int(runs.Add(1)), nil }),
			func(v int) Call[int] { return Completed(v * 10) },
		)

		value, err := c.Execute(t.Context())
		require.NoError(t, err)
		require.Equal(t, 10, value)

		cloned, err := c.Clone()
		require.NoError(t, err)
		value, err = cloned.Execute(t.Context())
		require.NoError(t, err)
		require.Equal(t, 20, value)
	})
}

func TestCancel(t *testing.T) {
	t.Parallel()

	t.Run("before submission the work never runs", func(t *testing.T) {
		t.Parallel()

		ran := false
		c := New(func(context.Context) (int, error) {
			ran = true
			return 1, nil
		})
		c.Cancel()

		_, err := c.Execute(t.Context())
		require.ErrorIs(t, err, ErrCanceled)
		require.False(t, ran)
	})

	t.Run("late result from in-flight work is dropped", func(t *testing.T) {
		t.Parallel()

		started := make(chan struct{})
		release := make(chan struct{})
		c := New(func(context.Context) (int, error) {
			close(started)
			<-release
			return 99, nil
		})

		resolved := make(chan error, 1)
		c.Enqueue(t.Context(), func(_ int, err error) { resolved <- err })

		<-started
		c.Cancel()
		require.ErrorIs(t, <-resolved, ErrCanceled)

		// Let the work finish; its result must not be delivered anywhere.
		close(release)
		select {
		case err := <-resolved:
			t.Fatalf("unexpected second resolution: %v", err)
		case <-time.After(50 * time.Millisecond):
		}
	})

	t.Run("cancel is idempotent", func(t *testing.T) {
		t.Parallel()

		c := Completed(1)
		c.Cancel()
		c.Cancel()

		_, err := c.Execute(t.Context())
		require.ErrorIs(t, err, ErrCanceled)
	})

	t.Run("execute honors context cancellation", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(t.Context())
		block := make(chan struct{})
		t.Cleanup(func() { close(block) })

		c := New(func(runCtx context.Context) (int, error) {
			select {
			case <-block:
				return 1, nil
			case <-runCtx.Done():
				return 0, runCtx.Err()
			}
		})

		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()

		_, err := c.Execute(ctx)
		require.ErrorIs(t, err, ErrCanceled)
	})

	t.Run("cancel propagates through flatmap chain", func(t *testing.T) {
		t.Parallel()

		innerStarted := make(chan struct{})
		release := make(chan struct{})
		t.Cleanup(func() { close(release) })

		c := FlatMap(Completed(1), func(int) Call[int] {
			return New(func(ctx context.Context) (int, error) {
				close(innerStarted)
				select {
				case <-release:
					return 2, nil
				case <-ctx.Done():
					return 0, ctx.Err()
				}
			})
		})

		resolved := make(chan error, 1)
		c.Enqueue(t.Context(), func(_ int, err error) { resolved <- err })

		<-innerStarted
		c.Cancel()
		require.ErrorIs(t, <-resolved, ErrCanceled)
	})
}
