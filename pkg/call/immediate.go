package call

import "context"

// immediateCall resolves with a fixed outcome as soon as it is submitted.
// It still goes through the promise core so cancellation and single-shot
// semantics match every other call variant.
type immediateCall[T any] struct {
	p     promise[T]
	once  singleShot
	value T
	err   error
}

// Completed returns an unstarted call that resolves successfully with the
// given value.
func Completed[T any](value T) Call[T] {
	return &immediateCall[T]{value: value}
}

// Failed returns an unstarted call that resolves with the given error.
func Failed[T any](err error) Call[T] {
	return &immediateCall[T]{err: err}
}

func (c *immediateCall[T]) Execute(ctx context.Context) (T, error) {
	if !c.once.begin() {
		var zero T
		return zero, ErrAlreadyStarted
	}
	c.p.resolve(c.value, c.err)
	return c.p.await(ctx, c.Cancel)
}

func (c *immediateCall[T]) Enqueue(_ context.Context, cb Callback[T]) {
	if !c.once.begin() {
		var zero T
		cb(zero, ErrAlreadyStarted)
		return
	}
	c.p.subscribe(cb)
	c.p.resolve(c.value, c.err)
}

func (c *immediateCall[T]) Clone() (Call[T], error) {
	return &immediateCall[T]{value: c.value, err: c.err}, nil
}

func (c *immediateCall[T]) Cancel() {
	var zero T
	c.p.resolve(zero, ErrCanceled)
}
