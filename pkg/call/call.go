// Package call provides a single-shot asynchronous computation primitive
// used to compose datastore operations without blocking the submitting
// goroutine.
//
// A Call is created unstarted, runs at most once, and resolves exactly once
// with either a value or an error. Combinators (Map, FlatMap) are built on
// top of a single subscribe/resolve core shared by every call variant, so
// transformation and sequencing behave identically regardless of what the
// underlying call wraps.
package call

import (
	"context"
	"errors"
)

var (
	// ErrAlreadyStarted is returned when a call is executed or enqueued a
	// second time. Calls are single-shot; use Clone to obtain a fresh one.
	ErrAlreadyStarted = errors.New("call was already executed")

	// ErrCloneUnsupported is returned by Clone on calls that wrap state
	// which cannot be safely re-issued, such as an in-flight page fetch
	// continuation.
	ErrCloneUnsupported = errors.New("call cannot be cloned")

	// ErrCanceled resolves a call chain that was canceled before it
	// completed.
	ErrCanceled = errors.New("call was canceled")
)

// Callback receives the resolution of an enqueued call. Exactly one of the
// invocations happens per call: (value, nil) on success or (zero, err) on
// failure or cancellation.
type Callback[T any] func(value T, err error)

// Call is a single-shot deferred computation yielding a T.
//
// A given instance executes at most once; Execute or Enqueue after the
// first submission resolves with ErrAlreadyStarted. Clone returns a fresh,
// unstarted, behaviorally equivalent call for retry, or ErrCloneUnsupported
// when the wrapped work is not safely re-issuable.
type Call[T any] interface {
	// Execute runs the call and blocks the calling goroutine until it
	// resolves. The underlying work is still driven by the store's own
	// completion goroutine; Execute merely waits on it. If ctx is done
	// first, the call is canceled and Execute returns promptly.
	Execute(ctx context.Context) (T, error)

	// Enqueue submits the call and registers cb to receive its resolution.
	// cb is invoked exactly once, from whichever goroutine resolves the
	// call. Misuse (second submission) is reported through cb.
	Enqueue(ctx context.Context, cb Callback[T])

	// Clone returns a fresh, unstarted call equivalent to this one.
	Clone() (Call[T], error)

	// Cancel is idempotent and best-effort: the chain resolves with
	// ErrCanceled, later results from in-flight work are dropped, and no
	// further work is submitted once cancellation is observed.
	Cancel()
}
