package call

import (
	"context"
	"errors"
	"sync"
)

// funcCall wraps an arbitrary unit of work. The work function runs on its
// own goroutine so neither Enqueue nor the store's completion path is
// blocked by it.
type funcCall[T any] struct {
	p    promise[T]
	once singleShot
	run  func(context.Context) (T, error)

	cloneable bool

	mu       sync.Mutex
	canceled bool
	stop     context.CancelFunc
}

// New returns an unstarted call that runs the given work function when
// executed or enqueued. The returned call supports Clone: a clone is a
// fresh call over the same work function, so run must be safe to re-issue.
func New[T any](run func(ctx context.Context) (T, error)) Call[T] {
	return &funcCall[T]{run: run, cloneable: true}
}

// NewUncloneable returns an unstarted call whose work must not be
// re-issued; Clone fails with ErrCloneUnsupported. Page fetch continuations
// are the canonical use: re-running one would silently repeat a
// non-idempotent fetch.
func NewUncloneable[T any](run func(ctx context.Context) (T, error)) Call[T] {
	return &funcCall[T]{run: run}
}

func (c *funcCall[T]) Execute(ctx context.Context) (T, error) {
	if !c.once.begin() {
		var zero T
		return zero, ErrAlreadyStarted
	}
	c.start(ctx)
	return c.p.await(ctx, c.Cancel)
}

func (c *funcCall[T]) Enqueue(ctx context.Context, cb Callback[T]) {
	if !c.once.begin() {
		var zero T
		cb(zero, ErrAlreadyStarted)
		return
	}
	c.p.subscribe(cb)
	c.start(ctx)
}

func (c *funcCall[T]) start(ctx context.Context) {
	c.mu.Lock()
	if c.canceled {
		// Cancel already resolved the promise; nothing to run.
		c.mu.Unlock()
		return
	}
	runCtx, stop := context.WithCancel(ctx)
	c.stop = stop
	c.mu.Unlock()

	go func() {
		defer stop()
		value, err := c.run(runCtx)
		if err != nil && errors.Is(err, context.Canceled) {
			// Cancellation observed through the run context resolves the
			// same way as an explicit Cancel.
			err = ErrCanceled
		}
		c.p.resolve(value, err)
	}()
}

func (c *funcCall[T]) Clone() (Call[T], error) {
	if !c.cloneable {
		return nil, ErrCloneUnsupported
	}
	return New(c.run), nil
}

func (c *funcCall[T]) Cancel() {
	c.mu.Lock()
	c.canceled = true
	stop := c.stop
	c.mu.Unlock()

	if stop != nil {
		stop()
	}
	var zero T
	c.p.resolve(zero, ErrCanceled)
}
