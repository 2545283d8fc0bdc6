// Package mongodb adapts a MongoDB driver cursor to the paged cursor
// boundary. The driver already separates the two termination signals the
// accumulation driver needs: RemainingBatchLength reports rows drainable
// without I/O, and a zero server-side cursor ID means no further batches
// exist.
package mongodb

import (
	"context"
	"encoding/binary"

	"github.com/ccoveille/go-safecast/v2"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/pagefold/pagefold/pkg/call"
	"github.com/pagefold/pagefold/pkg/cursor"
)

// driverCursor is the slice of *mongo.Cursor the adapter uses, extracted so
// the batch-boundary logic is testable without a server.
type driverCursor interface {
	ID() int64
	RemainingBatchLength() int
	Next(ctx context.Context) bool
	Current() bson.Raw
	Err() error
}

// mongoCursor adapts *mongo.Cursor to driverCursor; Current is a field on
// the driver type, not a method.
type mongoCursor struct {
	c *mongo.Cursor
}

func (m mongoCursor) ID() int64                     { return m.c.ID() }
func (m mongoCursor) RemainingBatchLength() int     { return m.c.RemainingBatchLength() }
func (m mongoCursor) Next(ctx context.Context) bool { return m.c.Next(ctx) }
func (m mongoCursor) Current() bson.Raw             { return m.c.Current }
func (m mongoCursor) Err() error                    { return m.c.Err() }

// NewCursor wraps an already-open MongoDB cursor. The caller keeps
// ownership of c and remains responsible for closing it once the paged
// query resolves.
func NewCursor(c *mongo.Cursor) cursor.Cursor[bson.Raw] {
	return &adapter{dc: mongoCursor{c}}
}

type adapter struct {
	dc driverCursor

	// pending holds the one row consumed by the getMore that crossed the
	// most recent batch boundary; it is drained before the batch proper.
	pending bson.Raw
}

func (a *adapter) Buffered() int {
	buffered := a.dc.RemainingBatchLength()
	if a.pending != nil {
		buffered++
	}
	return buffered
}

func (a *adapter) Pull() (bson.Raw, error) {
	if a.pending != nil {
		row := a.pending
		a.pending = nil
		return row, nil
	}

	if a.dc.RemainingBatchLength() <= 0 {
		return nil, cursor.ErrNoBufferedRows
	}

	// Advancing within a non-empty batch never touches the server, so a
	// background context is safe here.
	if !a.dc.Next(context.Background()) {
		return nil, a.dc.Err()
	}
	return copyRaw(a.dc.Current()), nil
}

func (a *adapter) Exhausted() bool {
	return a.dc.ID() == 0
}

func (a *adapter) ContinuationToken() cursor.Token {
	id := a.dc.ID()
	if id == 0 {
		return nil
	}
	unsigned, _ := safecast.Convert[uint64](id)
	token := make(cursor.Token, 8)
	binary.BigEndian.PutUint64(token, unsigned)
	return token
}

func (a *adapter) FetchNext(_ context.Context) call.Call[cursor.Cursor[bson.Raw]] {
	return cursor.NewPageFetch("mongodb", func(ctx context.Context) (cursor.Cursor[bson.Raw], error) {
		// Next on a drained batch issues the getMore. It either lands on
		// the first row of the new batch or reports the cursor dead.
		if !a.dc.Next(ctx) {
			if err := a.dc.Err(); err != nil {
				return nil, err
			}
			return a, nil
		}
		a.pending = copyRaw(a.dc.Current())
		return a, nil
	})
}

// copyRaw detaches a document from the driver's internal buffer, which the
// next cursor advance would otherwise overwrite.
func copyRaw(raw bson.Raw) bson.Raw {
	return bson.Raw(append([]byte(nil), raw...))
}
