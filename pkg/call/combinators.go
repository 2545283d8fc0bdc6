package call

import (
	"context"
	"sync"
)

// Map returns a new call that transforms a successful result of c with f.
// Upstream failure passes through unchanged and f is never invoked on it.
// An error returned by f fails the new call.
//
// Map and FlatMap are package functions rather than methods because Go
// methods cannot introduce new type parameters.
func Map[T, U any](c Call[T], f func(T) (U, error)) Call[U] {
	return FlatMap(c, func(value T) Call[U] {
		mapped, err := f(value)
		if err != nil {
			return Failed[U](err)
		}
		return Completed(mapped)
	})
}

// FlatMap returns a new call that, on success of c, invokes f to obtain a
// following call and adopts its outcome. On failure of c, f is never
// invoked and the failure propagates. Cloning the composed call clones the
// upstream and re-applies f, so f must not capture per-execution state.
func FlatMap[T, U any](c Call[T], f func(T) Call[U]) Call[U] {
	return &flatMapCall[T, U]{upstream: c, mapper: f}
}

type flatMapCall[T, U any] struct {
	p        promise[U]
	once     singleShot
	upstream Call[T]
	mapper   func(T) Call[U]

	mu       sync.Mutex
	canceled bool
	inner    Call[U]
}

func (c *flatMapCall[T, U]) Execute(ctx context.Context) (U, error) {
	if !c.once.begin() {
		var zero U
		return zero, ErrAlreadyStarted
	}
	c.start(ctx)
	return c.p.await(ctx, c.Cancel)
}

func (c *flatMapCall[T, U]) Enqueue(ctx context.Context, cb Callback[U]) {
	if !c.once.begin() {
		var zero U
		cb(zero, ErrAlreadyStarted)
		return
	}
	c.p.subscribe(cb)
	c.start(ctx)
}

func (c *flatMapCall[T, U]) start(ctx context.Context) {
	c.upstream.Enqueue(ctx, func(value T, err error) {
		if err != nil {
			var zero U
			c.p.resolve(zero, err)
			return
		}

		next := c.mapper(value)

		c.mu.Lock()
		if c.canceled {
			c.mu.Unlock()
			next.Cancel()
			return
		}
		c.inner = next
		c.mu.Unlock()

		next.Enqueue(ctx, c.p.resolve)
	})
}

func (c *flatMapCall[T, U]) Clone() (Call[U], error) {
	upstream, err := c.upstream.Clone()
	if err != nil {
		return nil, err
	}
	return FlatMap(upstream, c.mapper), nil
}

func (c *flatMapCall[T, U]) Cancel() {
	c.mu.Lock()
	c.canceled = true
	inner := c.inner
	c.mu.Unlock()

	c.upstream.Cancel()
	if inner != nil {
		inner.Cancel()
	}
	var zero U
	c.p.resolve(zero, ErrCanceled)
}
