// Package firestore provides a persistence.DocumentStore backed by Google
// Cloud Firestore.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	fsapi "cloud.google.com/go/firestore"
	"github.com/asaidimu/go-docquery/core"
	"github.com/asaidimu/go-docquery/core/persistence"
	"github.com/asaidimu/go-docquery/core/query"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// DefaultDatabaseID is the id of a project's default Firestore database.
const DefaultDatabaseID = "(default)"

// Config identifies the Firestore database to connect to.
type Config struct {
	ProjectID  string
	DatabaseID string
	// CredentialsPath is a service account key file. When empty, application
	// default credentials are used.
	CredentialsPath string
}

// Store is a DocumentStore on top of a Firestore client.
type Store struct {
	client *fsapi.Client
	logger *zap.Logger
}

var _ persistence.DocumentStore = (*Store)(nil)

// NewStore wraps an existing client.
func NewStore(client *fsapi.Client, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{client: client, logger: logger}
}

// Open returns an OpenFunc that connects to the database described by cfg.
func Open(cfg Config, logger *zap.Logger) persistence.OpenFunc {
	return func(ctx context.Context) (persistence.DocumentStore, error) {
		if cfg.ProjectID == "" {
			return nil, errors.New("firestore project id is required")
		}
		databaseID := cfg.DatabaseID
		if databaseID == "" {
			databaseID = DefaultDatabaseID
		}
		var opts []option.ClientOption
		if cfg.CredentialsPath != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.CredentialsPath))
		}
		client, err := fsapi.NewClientWithDatabase(ctx, cfg.ProjectID, databaseID, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create firestore client: %w", err)
		}
		return NewStore(client, logger), nil
	}
}

func (s *Store) Get(ctx context.Context, collection, id string) (core.Document, error) {
	snap, err := s.client.Collection(collection).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document %s/%s: %w", collection, id, err)
	}
	if !snap.Exists() {
		return nil, nil
	}
	return snapshotData(snap), nil
}

func (s *Store) Set(ctx context.Context, collection, id string, data core.Document) error {
	if _, err := s.client.Collection(collection).Doc(id).Set(ctx, toMap(data)); err != nil {
		return fmt.Errorf("failed to set document %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *Store) Add(ctx context.Context, collection string, data core.Document) (string, error) {
	ref, _, err := s.client.Collection(collection).Add(ctx, toMap(data))
	if err != nil {
		return "", fmt.Errorf("failed to add document to %s: %w", collection, err)
	}
	return ref.ID, nil
}

func (s *Store) Merge(ctx context.Context, collection, id string, patch map[string]any) error {
	updates := fieldUpdates(patch)
	if len(updates) == 0 {
		// Update rejects an empty update list; only existence is checked.
		doc, err := s.Get(ctx, collection, id)
		if err != nil {
			return err
		}
		if doc == nil {
			return core.ErrDocumentNotFound
		}
		return nil
	}
	_, err := s.client.Collection(collection).Doc(id).Update(ctx, updates)
	if status.Code(err) == codes.NotFound {
		return core.ErrDocumentNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update document %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if _, err := s.client.Collection(collection).Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete document %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, collection string, dsl *query.QueryDSL) (persistence.Cursor, error) {
	q, err := buildQuery(s.client.Collection(collection).Query, dsl)
	if err != nil {
		return nil, fmt.Errorf("failed to build firestore query: %w", err)
	}
	s.logger.Debug("Executing firestore query", zap.String("collection", collection), zap.Any("dsl", dsl))
	return &docCursor{iter: q.Documents(ctx)}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

// fieldUpdates converts a field-path patch into Firestore updates, in key
// order.
func fieldUpdates(patch map[string]any) []fsapi.Update {
	keys := make([]string, 0, len(patch))
	for k := range patch {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	updates := make([]fsapi.Update, 0, len(keys))
	for _, k := range keys {
		updates = append(updates, fsapi.Update{
			FieldPath: fsapi.FieldPath(core.SplitFieldPath(k)),
			Value:     patch[k],
		})
	}
	return updates
}

func toMap(doc core.Document) map[string]any {
	if doc == nil {
		return map[string]any{}
	}
	return map[string]any(doc)
}

func snapshotData(snap *fsapi.DocumentSnapshot) core.Document {
	data := snap.Data()
	if data == nil {
		data = map[string]any{}
	}
	return core.Document(data)
}

// translateError marks Firestore's missing composite index failures. Other
// FailedPrecondition errors, such as a database in Datastore mode, stay
// backend failures.
func translateError(err error) error {
	if err == nil || errors.Is(err, iterator.Done) {
		return err
	}
	if st, ok := status.FromError(err); ok && st.Code() == codes.FailedPrecondition {
		if strings.Contains(strings.ToLower(st.Message()), "requires an index") {
			return core.WrapError(core.KindMissingIndex, st.Message(), err)
		}
	}
	return fmt.Errorf("failed to read query results: %w", err)
}

// docCursor streams a query's documents.
type docCursor struct {
	iter *fsapi.DocumentIterator
	next *core.Snapshot
	err  error
	done bool
}

func (c *docCursor) HasNext() bool {
	if c.next != nil || c.err != nil {
		return true
	}
	if c.done {
		return false
	}
	snap, err := c.iter.Next()
	if errors.Is(err, iterator.Done) {
		c.done = true
		return false
	}
	if err != nil {
		c.done = true
		c.err = translateError(err)
		return true
	}
	c.next = &core.Snapshot{ID: snap.Ref.ID, Data: snapshotData(snap)}
	return true
}

func (c *docCursor) Read() (*core.Snapshot, error) {
	if !c.HasNext() {
		return nil, nil
	}
	snap, err := c.next, c.err
	c.next, c.err = nil, nil
	return snap, err
}

func (c *docCursor) Close() error {
	c.iter.Stop()
	return nil
}
