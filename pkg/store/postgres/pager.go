// Package postgres implements keyset-paginated cursors over a PostgreSQL
// connection pool. Each page is a bounded SELECT ordered by a unique key
// column; the continuation token is the key of the last row of a full page.
package postgres

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/pagefold/pagefold/pkg/call"
	"github.com/pagefold/pagefold/pkg/cursor"
)

var errNoContinuation = errors.New("postgres cursor has no continuation token")

// Querier is the slice of the pgx connection surface the pager needs.
// *pgxpool.Pool and *pgx.Conn both satisfy it.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const defaultPageSize = 1000

// Option customizes a Pager.
type Option func(*pagerOptions)

type pagerOptions struct {
	pageSize uint64
}

// WithPageSize sets the number of rows requested per page.
//
// This value defaults to 1000.
func WithPageSize(pageSize uint64) Option {
	return func(po *pagerOptions) { po.pageSize = pageSize }
}

// Pager issues a keyset-paginated query and exposes its result as a paged
// cursor. keyColumn must be unique and totally ordered, or pages can skip
// or repeat rows.
type Pager[R any] struct {
	conn      Querier
	base      sq.SelectBuilder
	keyColumn string
	scan      pgx.RowToFunc[R]
	key       func(R) string
	pageSize  uint64
}

// NewPager builds a pager over conn. base is the filtered SELECT to
// paginate (without ordering or limits), scan converts one pgx row into an
// R, and key extracts the keyset key from a scanned row for use as the
// continuation token.
func NewPager[R any](
	conn Querier,
	base sq.SelectBuilder,
	keyColumn string,
	scan pgx.RowToFunc[R],
	key func(R) string,
	opts ...Option,
) *Pager[R] {
	computed := pagerOptions{pageSize: defaultPageSize}
	for _, opt := range opts {
		opt(&computed)
	}

	return &Pager[R]{
		conn:      conn,
		base:      base,
		keyColumn: keyColumn,
		scan:      scan,
		key:       key,
		pageSize:  computed.pageSize,
	}
}

// Query returns the call that issues the query and resolves to the cursor
// over its first page. The call supports Clone, so a failed paged query can
// be retried from the top.
func (p *Pager[R]) Query(_ context.Context) call.Call[cursor.Cursor[R]] {
	return call.New(func(ctx context.Context) (cursor.Cursor[R], error) {
		return p.fetchPage(ctx, nil)
	})
}

func (p *Pager[R]) fetchPage(ctx context.Context, after cursor.Token) (cursor.Cursor[R], error) {
	query := p.base.OrderBy(p.keyColumn).Limit(p.pageSize).PlaceholderFormat(sq.Dollar)
	if len(after) > 0 {
		query = query.Where(sq.Gt{p.keyColumn: string(after)})
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("unable to build page query: %w", err)
	}

	rows, err := p.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("unable to query page: %w", err)
	}

	collected, err := pgx.CollectRows(rows, p.scan)
	if err != nil {
		return nil, fmt.Errorf("unable to collect page rows: %w", err)
	}

	page := &pageCursor[R]{pager: p, rows: collected}
	if uint64(len(collected)) >= p.pageSize {
		// A full page may have more behind it; a short page means the
		// store ran out.
		page.token = cursor.Token(p.key(collected[len(collected)-1]))
	} else {
		page.exhausted = true
	}
	return page, nil
}

type pageCursor[R any] struct {
	pager     *Pager[R]
	rows      []R
	idx       int
	token     cursor.Token
	exhausted bool
}

func (c *pageCursor[R]) Buffered() int {
	return len(c.rows) - c.idx
}

func (c *pageCursor[R]) Pull() (R, error) {
	if c.Buffered() <= 0 {
		var zero R
		return zero, cursor.ErrNoBufferedRows
	}
	row := c.rows[c.idx]
	c.idx++
	return row, nil
}

func (c *pageCursor[R]) Exhausted() bool {
	return c.exhausted
}

func (c *pageCursor[R]) ContinuationToken() cursor.Token {
	return c.token
}

func (c *pageCursor[R]) FetchNext(_ context.Context) call.Call[cursor.Cursor[R]] {
	return cursor.NewPageFetch("postgres", func(ctx context.Context) (cursor.Cursor[R], error) {
		if c.token == nil {
			return nil, errNoContinuation
		}
		return c.pager.fetchPage(ctx, c.token)
	})
}
