package persistence

import (
	"context"

	"github.com/asaidimu/go-docquery/core"
	"github.com/asaidimu/go-docquery/core/query"
	"go.uber.org/multierr"
)

// DocumentStore is the contract every backing store implements. Stores must
// be safe for concurrent use.
type DocumentStore interface {
	// Get returns the document stored under id, or (nil, nil) when there is
	// none.
	Get(ctx context.Context, collection, id string) (core.Document, error)

	// Set stores data under id, replacing any existing document.
	Set(ctx context.Context, collection, id string, data core.Document) error

	// Add stores data under a newly generated id and returns that id.
	Add(ctx context.Context, collection string, data core.Document) (string, error)

	// Merge applies a field-path patch to an existing document. Each key of
	// patch is a dot-separated path whose value replaces the one stored.
	// It returns core.ErrDocumentNotFound when the document does not exist.
	Merge(ctx context.Context, collection, id string, patch map[string]any) error

	// Delete removes the document stored under id. Deleting a missing
	// document is not an error.
	Delete(ctx context.Context, collection, id string) error

	// Query returns the documents of collection that satisfy dsl. A missing
	// collection yields an empty cursor.
	Query(ctx context.Context, collection string, dsl *query.QueryDSL) (Cursor, error)

	// Close releases the store's resources.
	Close() error
}

// Cursor iterates over query results.
type Cursor interface {
	HasNext() bool
	Read() (*core.Snapshot, error)
	Close() error
}

// OpenFunc opens a DocumentStore. It is called once by Connect.
type OpenFunc func(ctx context.Context) (DocumentStore, error)

// SliceCursor is a Cursor over snapshots that are already in memory.
type SliceCursor struct {
	snapshots []core.Snapshot
	pos       int
}

// NewSliceCursor returns a cursor over snapshots.
func NewSliceCursor(snapshots []core.Snapshot) *SliceCursor {
	return &SliceCursor{snapshots: snapshots}
}

func (c *SliceCursor) HasNext() bool {
	return c.pos < len(c.snapshots)
}

func (c *SliceCursor) Read() (*core.Snapshot, error) {
	if !c.HasNext() {
		return nil, nil
	}
	snap := c.snapshots[c.pos]
	c.pos++
	return &snap, nil
}

func (c *SliceCursor) Close() error {
	c.snapshots = nil
	return nil
}

// ReadAll drains cursor and closes it.
func ReadAll(cursor Cursor) (snapshots []core.Snapshot, err error) {
	defer func() {
		err = multierr.Append(err, cursor.Close())
	}()
	for cursor.HasNext() {
		snap, err := cursor.Read()
		if err != nil {
			return nil, err
		}
		if snap == nil {
			break
		}
		snapshots = append(snapshots, *snap)
	}
	return snapshots, nil
}
