package call

import (
	"context"
	"sync"
	"sync/atomic"
)

// promise is the resolve-once core shared by every call variant. It holds
// at most one subscriber and delivers the first resolution to it; later
// resolutions are dropped on the floor, which is what makes cancellation
// win races against in-flight work.
type promise[T any] struct {
	mu       sync.Mutex
	resolved bool
	value    T
	err      error
	cb       Callback[T]
}

// subscribe registers cb as the single consumer. If the promise already
// resolved, cb fires immediately on the calling goroutine.
func (p *promise[T]) subscribe(cb Callback[T]) {
	p.mu.Lock()
	if p.resolved {
		value, err := p.value, p.err
		p.mu.Unlock()
		cb(value, err)
		return
	}
	p.cb = cb
	p.mu.Unlock()
}

// resolve records the outcome and notifies the subscriber, if any. Only the
// first resolution is honored.
func (p *promise[T]) resolve(value T, err error) {
	p.mu.Lock()
	if p.resolved {
		p.mu.Unlock()
		return
	}
	p.resolved = true
	p.value = value
	p.err = err
	cb := p.cb
	p.cb = nil
	p.mu.Unlock()
	if cb != nil {
		cb(value, err)
	}
}

// await blocks until the promise resolves or ctx is done. On ctx
// expiration the supplied cancel function runs and await keeps waiting for
// the (now prompt) cancellation resolution.
func (p *promise[T]) await(ctx context.Context, cancel func()) (T, error) {
	ch := make(chan struct{})
	var value T
	var err error
	p.subscribe(func(v T, e error) {
		value, err = v, e
		close(ch)
	})

	select {
	case <-ch:
	case <-ctx.Done():
		cancel()
		<-ch
	}
	return value, err
}

// singleShot guards the unstarted -> started transition common to all call
// variants.
type singleShot struct {
	started atomic.Bool
}

// begin reports whether the caller won the right to run the call.
func (s *singleShot) begin() bool {
	return s.started.CompareAndSwap(false, true)
}
