// Package sqlite provides a persistence.DocumentStore backed by a single
// SQLite table. Each document is stored as a JSON payload and queried with
// SQLite's JSON functions.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/asaidimu/go-docquery/core"
	"github.com/asaidimu/go-docquery/core/persistence"
	"github.com/asaidimu/go-docquery/core/query"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// dbRunner is an interface that abstracts the common methods of *sql.DB and *sql.Tx,
// allowing for the same code to be used for both transactional and non-transactional
// database operations.
type dbRunner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is a DocumentStore on top of a SQLite database.
type Store struct {
	db        *sql.DB
	generator *SqliteQuery
	processor *query.DataProcessor
	logger    *zap.Logger
	options   *Options
}

var _ persistence.DocumentStore = (*Store)(nil)

// NewStore wraps an open database and creates the documents table if needed.
func NewStore(ctx context.Context, db *sql.DB, logger *zap.Logger, options *Options) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if options == nil {
		options = DefaultOptions()
	}
	if options.TableName == "" {
		options.TableName = DefaultOptions().TableName
	}
	ddl := CreateTableSQL(options)
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return nil, fmt.Errorf("failed to execute SQL statement '%s': %w", ddl, err)
	}
	return &Store{
		db:        db,
		generator: NewSqliteQuery(options.TableName),
		processor: query.NewDataProcessor(logger),
		logger:    logger,
		options:   options,
	}, nil
}

// OpenFile opens (creating if necessary) the database at path in WAL mode.
func OpenFile(ctx context.Context, path string, logger *zap.Logger, options *Options) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	store, err := NewStore(ctx, db, logger, options)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Open returns an OpenFunc for the database at path.
func Open(path string, logger *zap.Logger, options *Options) persistence.OpenFunc {
	return func(ctx context.Context) (persistence.DocumentStore, error) {
		return OpenFile(ctx, path, logger, options)
	}
}

// Processor returns the processor used for queries with custom operators.
func (s *Store) Processor() *query.DataProcessor {
	return s.processor
}

func (s *Store) Get(ctx context.Context, collection, id string) (core.Document, error) {
	return s.get(ctx, s.db, collection, id)
}

func (s *Store) get(ctx context.Context, runner dbRunner, collection, id string) (core.Document, error) {
	sqlQuery, params := s.generator.GenerateGetSQL(collection, id)
	s.logger.Debug("Executing SQL SELECT", zap.String("sql", sqlQuery), zap.Any("params", params))

	var data any
	err := runner.QueryRowContext(ctx, sqlQuery, params...).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to execute SELECT query: %w", err)
	}
	return decodeDocument(data)
}

func (s *Store) Set(ctx context.Context, collection, id string, data core.Document) error {
	return s.put(ctx, s.db, collection, id, data)
}

func (s *Store) put(ctx context.Context, runner dbRunner, collection, id string, data core.Document) error {
	payload, err := encodeDocument(data)
	if err != nil {
		return err
	}
	sqlQuery, params := s.generator.GenerateUpsertSQL(collection, id, payload)
	s.logger.Debug("Executing SQL INSERT", zap.String("sql", sqlQuery), zap.String("collection", collection), zap.String("id", id))

	if _, err := runner.ExecContext(ctx, sqlQuery, params...); err != nil {
		s.logger.Error("Failed to execute INSERT query", zap.Error(err), zap.String("sql", sqlQuery))
		return fmt.Errorf("failed to execute INSERT query: %w", err)
	}
	return nil
}

func (s *Store) Add(ctx context.Context, collection string, data core.Document) (string, error) {
	id := uuid.New().String()
	if err := s.put(ctx, s.db, collection, id, data); err != nil {
		return "", err
	}
	return id, nil
}

// Merge reads, patches and rewrites the document inside one transaction.
func (s *Store) Merge(ctx context.Context, collection, id string, patch map[string]any) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			s.logger.Debug("Rolling back transaction")
			_ = tx.Rollback()
		}
	}()

	doc, err := s.get(ctx, tx, collection, id)
	if err != nil {
		return err
	}
	if doc == nil {
		return core.ErrDocumentNotFound
	}
	if err = s.put(ctx, tx, collection, id, core.MergeFields(doc, patch)); err != nil {
		return err
	}
	s.logger.Debug("Committing transaction")
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	sqlQuery, params := s.generator.GenerateDeleteSQL(collection, id)
	s.logger.Debug("Executing SQL DELETE", zap.String("sql", sqlQuery), zap.Any("params", params))

	if _, err := s.db.ExecContext(ctx, sqlQuery, params...); err != nil {
		s.logger.Error("Failed to execute DELETE query", zap.Error(err), zap.String("sql", sqlQuery))
		return fmt.Errorf("failed to execute DELETE query: %w", err)
	}
	return nil
}

// Query runs dsl as SQL. Queries using operators registered on the processor
// load the collection and are evaluated in memory instead.
func (s *Store) Query(ctx context.Context, collection string, dsl *query.QueryDSL) (persistence.Cursor, error) {
	if usesCustomOperators(dsl) {
		return s.queryInMemory(ctx, collection, dsl)
	}

	sqlQuery, queryParams, err := s.generator.GenerateSelectSQL(collection, dsl)
	if err != nil {
		return nil, fmt.Errorf("failed to generate SQL query: %w", err)
	}
	s.logger.Debug("Executing SQL SELECT", zap.String("sql", sqlQuery), zap.Any("params", queryParams))

	rows, err := s.db.QueryContext(ctx, sqlQuery, queryParams...)
	if err != nil {
		s.logger.Error("Failed to execute SELECT query", zap.Error(err), zap.String("sql", sqlQuery))
		return nil, fmt.Errorf("failed to execute SELECT query: %w", err)
	}
	return &rowsCursor{rows: rows}, nil
}

func (s *Store) queryInMemory(ctx context.Context, collection string, dsl *query.QueryDSL) (persistence.Cursor, error) {
	cursor, err := s.Query(ctx, collection, nil)
	if err != nil {
		return nil, err
	}
	snapshots, err := persistence.ReadAll(cursor)
	if err != nil {
		return nil, err
	}
	result, err := s.processor.Apply(ctx, snapshots, dsl)
	if err != nil {
		return nil, err
	}
	return persistence.NewSliceCursor(result), nil
}

func usesCustomOperators(dsl *query.QueryDSL) bool {
	if dsl == nil || dsl.Filters == nil {
		return false
	}
	var walk func(f *query.QueryFilter) bool
	walk = func(f *query.QueryFilter) bool {
		if f.Condition != nil {
			return !f.Condition.Operator.IsStandard()
		}
		if f.Group != nil {
			for i := range f.Group.Conditions {
				if walk(&f.Group.Conditions[i]) {
					return true
				}
			}
		}
		return false
	}
	return walk(dsl.Filters)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// rowsCursor streams query rows. The next row is fetched by HasNext.
type rowsCursor struct {
	rows *sql.Rows
	next *core.Snapshot
	err  error
	done bool
}

func (c *rowsCursor) HasNext() bool {
	if c.next != nil || c.err != nil {
		return true
	}
	if c.done {
		return false
	}
	if !c.rows.Next() {
		c.done = true
		if err := c.rows.Err(); err != nil {
			c.err = fmt.Errorf("error after scanning rows: %w", err)
			return true
		}
		return false
	}
	c.next, c.err = readRow(c.rows)
	return true
}

func (c *rowsCursor) Read() (*core.Snapshot, error) {
	if !c.HasNext() {
		return nil, nil
	}
	snap, err := c.next, c.err
	c.next, c.err = nil, nil
	if err != nil {
		c.done = true
	}
	return snap, err
}

func (c *rowsCursor) Close() error {
	return c.rows.Close()
}
