// Package accumulate drives a paged query cursor to exhaustion and folds
// every row into a single materialized value.
//
// The driver drains rows already buffered by the cursor before ever
// touching the store, issues page fetches strictly one at a time, and
// applies the caller's finisher exactly once when the store reports both
// exhaustion and the absence of a continuation token. A failed page fetch
// fails the whole call; the partially built accumulator is discarded and
// never observed by the caller.
package accumulate

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/pagefold/pagefold/internal/logging"
	"github.com/pagefold/pagefold/internal/metrics"
	"github.com/pagefold/pagefold/pkg/call"
	"github.com/pagefold/pagefold/pkg/cursor"
)

var (
	// ErrNilSupplier is returned when a policy has no accumulator factory.
	ErrNilSupplier = errors.New("accumulation policy requires a Supplier")

	// ErrNilAccumulator is returned when a policy has no fold function.
	ErrNilAccumulator = errors.New("accumulation policy requires an Accumulator")
)

// Policy carries the three hooks that shape accumulation. Supplier runs
// exactly once per paged query, Accumulator exactly once per row in
// page-then-row order, and Finisher exactly once at termination. A nil
// Finisher is the identity transform.
//
// The accumulator value T is owned by the driver for the lifetime of one
// paged query and is never touched by more than one in-flight step, so the
// hooks may mutate it freely without synchronization.
type Policy[R, T any] struct {
	Supplier    func() (T, error)
	Accumulator func(acc T, row R) error
	Finisher    func(acc T) (T, error)
}

// All composes an issued-query call with the page accumulation driver,
// returning a single call that resolves to the finished accumulator.
//
// Cloning the returned call clones the original query call and restarts
// pagination from the first page with a fresh accumulator. The in-flight
// page continuation inside the chain refuses cloning on its own, so retry
// is only ever possible from the top.
func All[R, T any](query call.Call[cursor.Cursor[R]], policy Policy[R, T]) call.Call[T] {
	if policy.Supplier == nil {
		return call.Failed[T](ErrNilSupplier)
	}
	if policy.Accumulator == nil {
		return call.Failed[T](ErrNilAccumulator)
	}

	return call.FlatMap(query, func(first cursor.Cursor[R]) call.Call[T] {
		return call.NewUncloneable(func(ctx context.Context) (T, error) {
			return drain(ctx, first, policy)
		})
	})
}

// AllRows accumulates every row of the paged query into a slice, in
// page-then-row order.
func AllRows[R any](query call.Call[cursor.Cursor[R]]) call.Call[[]R] {
	collected := All(query, Policy[R, *[]R]{
		Supplier:    func() (*[]R, error) { return &[]R{}, nil },
		Accumulator: func(acc *[]R, row R) error { *acc = append(*acc, row); return nil },
	})
	return call.Map(collected, func(acc *[]R) ([]R, error) { return *acc, nil })
}

// drain is the driver loop. It is deliberately iterative: each page fetch
// blocks this goroutine on the fetch call's resolution, so stack depth
// stays constant no matter how many pages the query spans.
func drain[R, T any](ctx context.Context, cur cursor.Cursor[R], policy Policy[R, T]) (T, error) {
	var zero T

	log := logging.Ctx(ctx).With().Str("paged_query_id", uuid.NewString()).Logger()

	acc, err := policy.Supplier()
	if err != nil {
		return zero, err
	}

	rows := 0
	for {
		for cur.Buffered() > 0 {
			if ctxErr := ctx.Err(); ctxErr != nil {
				metrics.CanceledQueries.Inc()
				return zero, ctxErr
			}

			row, pullErr := cur.Pull()
			if pullErr != nil {
				return zero, pullErr
			}
			if accErr := policy.Accumulator(acc, row); accErr != nil {
				return zero, accErr
			}
			rows++
		}

		if cursor.Done(cur) {
			break
		}

		log.Trace().Int("rows", rows).Msg("page drained, fetching next")
		next, fetchErr := cur.FetchNext(ctx).Execute(ctx)
		if fetchErr != nil {
			return zero, fetchErr
		}
		cur = next
	}

	if policy.Finisher != nil {
		acc, err = policy.Finisher(acc)
		if err != nil {
			return zero, err
		}
	}

	metrics.RowsAccumulated.Observe(float64(rows))
	log.Trace().Int("rows", rows).Msg("paged query complete")
	return acc, nil
}
