// Package arangodb provides a persistence.DocumentStore backed by ArangoDB.
// A command collection maps to an ArangoDB collection and the document id
// to its _key.
package arangodb

import (
	"context"
	"errors"
	"fmt"

	"github.com/arangodb/go-driver"
	"github.com/arangodb/go-driver/http"
	"github.com/asaidimu/go-docquery/core"
	"github.com/asaidimu/go-docquery/core/persistence"
	"github.com/asaidimu/go-docquery/core/query"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Config describes how to reach the database.
type Config struct {
	Endpoints []string
	Username  string
	Password  string
	Database  string
}

// Store is a DocumentStore on top of an ArangoDB database.
type Store struct {
	db     driver.Database
	logger *zap.Logger
}

var _ persistence.DocumentStore = (*Store)(nil)

// NewStore wraps an open database.
func NewStore(db driver.Database, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, logger: logger}
}

// Open returns an OpenFunc that connects using cfg.
func Open(cfg Config, logger *zap.Logger) persistence.OpenFunc {
	return func(ctx context.Context) (persistence.DocumentStore, error) {
		if len(cfg.Endpoints) == 0 {
			return nil, errors.New("arangodb endpoints are required")
		}
		conn, err := http.NewConnection(http.ConnectionConfig{
			Endpoints: cfg.Endpoints,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create arangodb connection: %w", err)
		}
		c, err := driver.NewClient(driver.ClientConfig{
			Connection:     conn,
			Authentication: driver.BasicAuthentication(cfg.Username, cfg.Password),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create arangodb client: %w", err)
		}
		db, err := c.Database(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to get arangodb database: %w", err)
		}
		return NewStore(db, logger), nil
	}
}

// collection returns the named collection, or nil when it does not exist
// and create is false.
func (s *Store) collection(ctx context.Context, name string, create bool) (driver.Collection, error) {
	exists, err := s.db.CollectionExists(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to check collection %s: %w", name, err)
	}
	if exists {
		col, err := s.db.Collection(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to get collection: %w", err)
		}
		return col, nil
	}
	if !create {
		return nil, nil
	}
	col, err := s.db.CreateCollection(ctx, name, nil)
	if driver.IsConflict(err) {
		return s.db.Collection(ctx, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create collection %s: %w", name, err)
	}
	return col, nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (core.Document, error) {
	doc, _, err := s.read(ctx, collection, id)
	return doc, err
}

func (s *Store) read(ctx context.Context, collection, id string) (core.Document, string, error) {
	col, err := s.collection(ctx, collection, false)
	if err != nil || col == nil {
		return nil, "", err
	}
	var target map[string]any
	meta, err := col.ReadDocument(ctx, id, &target)
	if driver.IsNotFoundGeneral(err) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to read document %s/%s: %w", collection, id, err)
	}
	return stripSystemAttributes(target), meta.Rev, nil
}

func (s *Store) Set(ctx context.Context, collection, id string, data core.Document) error {
	col, err := s.collection(ctx, collection, true)
	if err != nil {
		return err
	}
	// Replace mode turns the create into an upsert; concurrent writers to one
	// key resolve to the last.
	_, err = col.CreateDocument(driver.WithOverwriteMode(ctx, driver.OverwriteModeReplace), withKey(data, id))
	if err != nil {
		return fmt.Errorf("failed to write document %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *Store) Add(ctx context.Context, collection string, data core.Document) (string, error) {
	col, err := s.collection(ctx, collection, true)
	if err != nil {
		return "", err
	}
	id := uuid.New().String()
	if _, err := col.CreateDocument(ctx, withKey(data, id)); err != nil {
		return "", fmt.Errorf("failed to create document in %s: %w", collection, err)
	}
	return id, nil
}

// Merge replaces the document with its patched version, guarded by the
// revision that was read.
func (s *Store) Merge(ctx context.Context, collection, id string, patch map[string]any) error {
	doc, rev, err := s.read(ctx, collection, id)
	if err != nil {
		return err
	}
	if doc == nil {
		return core.ErrDocumentNotFound
	}
	col, err := s.collection(ctx, collection, false)
	if err != nil {
		return err
	}
	merged := core.MergeFields(doc, patch)
	if _, err := col.ReplaceDocument(driver.WithRevision(ctx, rev), id, withKey(merged, id)); err != nil {
		if driver.IsNotFoundGeneral(err) {
			return core.ErrDocumentNotFound
		}
		return fmt.Errorf("failed to update document %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	col, err := s.collection(ctx, collection, false)
	if err != nil || col == nil {
		return err
	}
	if _, err := col.RemoveDocument(ctx, id); err != nil && !driver.IsNotFoundGeneral(err) {
		return fmt.Errorf("failed to delete document %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, collection string, dsl *query.QueryDSL) (persistence.Cursor, error) {
	exists, err := s.db.CollectionExists(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to check collection %s: %w", collection, err)
	}
	if !exists {
		return persistence.NewSliceCursor(nil), nil
	}

	aql, bindVars, err := buildQuery(collection, dsl)
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	s.logger.Debug("Executing AQL", zap.String("aql", aql), zap.Any("bindVars", bindVars))

	cursor, err := s.db.Query(ctx, aql, bindVars)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	return &cursorWrapper{c: cursor, ctx: ctx}, nil
}

func (s *Store) Close() error {
	return nil
}

func withKey(data core.Document, id string) map[string]any {
	value := make(map[string]any, len(data)+1)
	for k, v := range data {
		value[k] = v
	}
	value["_key"] = id
	return value
}

// stripSystemAttributes removes ArangoDB's _key, _id and _rev.
func stripSystemAttributes(raw map[string]any) core.Document {
	doc := make(core.Document, len(raw))
	for k, v := range raw {
		if k == "_key" || k == "_id" || k == "_rev" {
			continue
		}
		doc[k] = v
	}
	return doc
}

type cursorWrapper struct {
	c   driver.Cursor
	ctx context.Context
}

func (c *cursorWrapper) HasNext() bool {
	return c.c.HasMore()
}

func (c *cursorWrapper) Read() (*core.Snapshot, error) {
	var target map[string]any
	meta, err := c.c.ReadDocument(c.ctx, &target)
	if driver.IsNoMoreDocuments(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read query result: %w", err)
	}
	id := meta.Key
	if id == "" {
		id, _ = target["_key"].(string)
	}
	return &core.Snapshot{ID: id, Data: stripSystemAttributes(target)}, nil
}

func (c *cursorWrapper) Close() error {
	return c.c.Close()
}
