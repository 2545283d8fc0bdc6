// Package cursortest provides a scripted in-memory cursor used to exercise
// the accumulation driver and call combinators without a real store.
package cursortest

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/pagefold/pagefold/pkg/call"
	"github.com/pagefold/pagefold/pkg/cursor"
)

// ErrScriptExhausted is returned by a fetch that runs past the scripted
// pages, which means the code under test issued a fetch the termination
// signals should have prevented.
var ErrScriptExhausted = errors.New("fetch issued beyond scripted pages")

// Page is one scripted page of rows together with the store signals the
// cursor reports while that page is current. Exhausted and Token are
// independent on purpose: tests cover stores whose two termination signals
// disagree.
type Page[R any] struct {
	Rows      []R
	Exhausted bool
	Token     cursor.Token

	// Err, if set, makes the fetch that would produce this page fail.
	Err error

	// Hold, if non-nil, blocks the fetch producing this page until the
	// channel is closed or the fetch context ends. Used to park a fetch
	// in flight for cancellation tests.
	Hold chan struct{}
}

// Scripted is a cursor.Cursor implementation that walks a fixed page
// script and records how it was driven.
type Scripted[R any] struct {
	pages  []Page[R]
	idx    int
	rowIdx int

	fetches atomic.Int32
	pulls   atomic.Int32
}

var _ cursor.Cursor[string] = &Scripted[string]{}

// New returns a scripted cursor positioned on the first page. At least one
// page is required; an empty result is a single page with no rows.
func New[R any](pages ...Page[R]) *Scripted[R] {
	if len(pages) == 0 {
		panic("cursortest: scripted cursor requires at least one page")
	}
	return &Scripted[R]{pages: pages}
}

// Fetches returns the number of page fetches that reached the script,
// including failed ones.
func (s *Scripted[R]) Fetches() int { return int(s.fetches.Load()) }

// Pulls returns the number of rows pulled so far.
func (s *Scripted[R]) Pulls() int { return int(s.pulls.Load()) }

func (s *Scripted[R]) Buffered() int {
	return len(s.pages[s.idx].Rows) - s.rowIdx
}

func (s *Scripted[R]) Pull() (R, error) {
	if s.Buffered() <= 0 {
		var zero R
		return zero, cursor.ErrNoBufferedRows
	}
	row := s.pages[s.idx].Rows[s.rowIdx]
	s.rowIdx++
	s.pulls.Add(1)
	return row, nil
}

func (s *Scripted[R]) Exhausted() bool {
	return s.pages[s.idx].Exhausted
}

func (s *Scripted[R]) ContinuationToken() cursor.Token {
	return s.pages[s.idx].Token
}

func (s *Scripted[R]) FetchNext(_ context.Context) call.Call[cursor.Cursor[R]] {
	return cursor.NewPageFetch("scripted", func(ctx context.Context) (cursor.Cursor[R], error) {
		s.fetches.Add(1)
		if s.idx+1 >= len(s.pages) {
			return nil, ErrScriptExhausted
		}

		next := s.pages[s.idx+1]
		if next.Hold != nil {
			select {
			case <-next.Hold:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		if next.Err != nil {
			return nil, next.Err
		}

		s.idx++
		s.rowIdx = 0
		return s, nil
	})
}
