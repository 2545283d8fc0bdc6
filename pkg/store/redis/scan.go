// Package redis exposes the SCAN iteration of a Redis keyspace as a paged
// cursor. Each SCAN reply is one page of keys; the numeric cursor returned
// alongside it is the continuation token, with zero meaning the iteration
// has wrapped around and completed.
package redis

import (
	"context"
	"encoding/binary"
	"errors"

	"github.com/ccoveille/go-safecast/v2"
	"github.com/redis/go-redis/v9"

	"github.com/pagefold/pagefold/pkg/call"
	"github.com/pagefold/pagefold/pkg/cursor"
)

var errNoContinuation = errors.New("redis scan cursor has no continuation token")

// Scanner is the slice of the go-redis client surface the pager needs;
// redis.UniversalClient satisfies it.
type Scanner interface {
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
}

var _ Scanner = (redis.UniversalClient)(nil)

const defaultScanCount = 250

// Option customizes a ScanPager.
type Option func(*scanOptions)

type scanOptions struct {
	count int64
}

// WithScanCount sets the COUNT hint passed to each SCAN.
//
// This value defaults to 250.
func WithScanCount(count int) Option {
	return func(so *scanOptions) {
		converted, _ := safecast.Convert[int64](count)
		so.count = converted
	}
}

// ScanPager pages through the keys matching a pattern.
type ScanPager struct {
	client Scanner
	match  string
	count  int64
}

// NewScanPager builds a pager over client for keys matching the given
// pattern.
func NewScanPager(client Scanner, match string, opts ...Option) *ScanPager {
	computed := scanOptions{count: defaultScanCount}
	for _, opt := range opts {
		opt(&computed)
	}
	return &ScanPager{client: client, match: match, count: computed.count}
}

// Query returns the call that issues the first SCAN and resolves to the
// cursor over its reply. The call supports Clone for retry from the top.
func (p *ScanPager) Query(_ context.Context) call.Call[cursor.Cursor[string]] {
	return call.New(func(ctx context.Context) (cursor.Cursor[string], error) {
		return p.page(ctx, 0)
	})
}

func (p *ScanPager) page(ctx context.Context, scanCursor uint64) (cursor.Cursor[string], error) {
	keys, next, err := p.client.Scan(ctx, scanCursor, p.match, p.count).Result()
	if err != nil {
		return nil, err
	}
	return &scanPage{pager: p, keys: keys, next: next}, nil
}

type scanPage struct {
	pager *ScanPager
	keys  []string
	idx   int
	next  uint64
}

func (c *scanPage) Buffered() int {
	return len(c.keys) - c.idx
}

func (c *scanPage) Pull() (string, error) {
	if c.Buffered() <= 0 {
		return "", cursor.ErrNoBufferedRows
	}
	key := c.keys[c.idx]
	c.idx++
	return key, nil
}

// Exhausted and ContinuationToken both derive from the SCAN reply cursor:
// the iteration is over exactly when it returns to zero.
func (c *scanPage) Exhausted() bool {
	return c.next == 0
}

func (c *scanPage) ContinuationToken() cursor.Token {
	if c.next == 0 {
		return nil
	}
	token := make(cursor.Token, 8)
	binary.BigEndian.PutUint64(token, c.next)
	return token
}

func (c *scanPage) FetchNext(_ context.Context) call.Call[cursor.Cursor[string]] {
	return cursor.NewPageFetch("redis", func(ctx context.Context) (cursor.Cursor[string], error) {
		if c.next == 0 {
			return nil, errNoContinuation
		}
		return c.pager.page(ctx, c.next)
	})
}
