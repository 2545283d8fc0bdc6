// Package cursor defines the boundary between the page accumulation driver
// and a store's query execution layer: an opaque handle over a paged
// sequence of rows, plus the single-page fetch call used to advance it.
package cursor

import (
	"context"
	"errors"

	"github.com/pagefold/pagefold/internal/logging"
	"github.com/pagefold/pagefold/internal/metrics"
	"github.com/pagefold/pagefold/pkg/call"
)

// ErrNoBufferedRows is returned by Pull when no rows are available without
// further I/O. Callers must check Buffered before pulling.
var ErrNoBufferedRows = errors.New("no buffered rows available")

// Token is an opaque continuation marker. A nil Token means the store
// reports no further pages beyond the current one.
type Token []byte

// Cursor is a handle over a paged sequence of rows of type R produced by a
// store query.
//
// Implementations must guarantee that Buffered and Pull never perform I/O:
// all rows already fetched are drainable without touching the store. The
// only operation allowed to reach the store is the call returned by
// FetchNext.
type Cursor[R any] interface {
	// Buffered returns the count of rows available without further I/O.
	Buffered() int

	// Pull consumes and returns one buffered row. It is valid only while
	// Buffered() > 0 and returns ErrNoBufferedRows otherwise.
	Pull() (R, error)

	// Exhausted reports whether the store considers the result set fully
	// delivered. Exhaustion alone does not end pagination; see
	// ContinuationToken.
	Exhausted() bool

	// ContinuationToken returns the paging token for the next page, or nil
	// when no further pages may exist. Some stores set the exhausted flag
	// and the token independently, so both must agree before pagination
	// terminates.
	ContinuationToken() Token

	// FetchNext returns the single-shot call that fetches the next page.
	// The returned call refuses Clone: re-issuing an already-submitted
	// fetch is not idempotent.
	FetchNext(ctx context.Context) call.Call[Cursor[R]]
}

// Done reports the conjunctive termination rule: a paged query is complete
// only when the cursor is exhausted and no continuation token remains. If
// the two signals disagree, pagination continues and the next fetch settles
// the question.
func Done[R any](c Cursor[R]) bool {
	return c.Exhausted() && c.ContinuationToken() == nil
}

// NewPageFetch wraps a store's fetch-next-page primitive as an uncloneable
// call, recording fetch metrics and debug logs on the way through. Store
// adapters build their FetchNext implementations with it.
func NewPageFetch[R any](store string, fetch func(ctx context.Context) (Cursor[R], error)) call.Call[Cursor[R]] {
	return call.NewUncloneable(func(ctx context.Context) (Cursor[R], error) {
		next, err := fetch(ctx)
		if err != nil {
			metrics.PageFetchErrors.WithLabelValues(store).Inc()
			logging.Ctx(ctx).Debug().Str("store", store).Err(err).Msg("page fetch failed")
			return nil, err
		}
		metrics.PagesFetched.WithLabelValues(store).Inc()
		logging.Ctx(ctx).Trace().Str("store", store).Int("buffered", next.Buffered()).Msg("page fetched")
		return next, nil
	})
}
