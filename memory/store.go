// Package memory provides a DocumentStore that keeps everything in memory.
// Data is lost on restart.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/asaidimu/go-docquery/core"
	"github.com/asaidimu/go-docquery/core/persistence"
	"github.com/asaidimu/go-docquery/core/query"
	"github.com/asaidimu/go-docquery/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store is an in-memory DocumentStore. Safe for concurrent use.
type Store struct {
	mu          sync.RWMutex
	collections map[string]map[string]core.Document
	processor   *query.DataProcessor
	logger      *zap.Logger
}

var _ persistence.DocumentStore = (*Store)(nil)

// NewStore creates an empty store.
func NewStore(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		collections: make(map[string]map[string]core.Document),
		processor:   query.NewDataProcessor(logger),
		logger:      logger,
	}
}

// Open returns an OpenFunc for a new empty store.
func Open(logger *zap.Logger) persistence.OpenFunc {
	return func(ctx context.Context) (persistence.DocumentStore, error) {
		return NewStore(logger), nil
	}
}

// Processor returns the processor used to evaluate queries, so callers can
// register custom filter operators.
func (s *Store) Processor() *query.DataProcessor {
	return s.processor
}

func (s *Store) Get(ctx context.Context, collection, id string) (core.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.collections[collection][id]
	if !ok {
		return nil, nil
	}
	return utils.CopyDocument(doc), nil
}

func (s *Store) Set(ctx context.Context, collection, id string, data core.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(collection, id, data)
	return nil
}

func (s *Store) put(collection, id string, data core.Document) {
	coll, ok := s.collections[collection]
	if !ok {
		coll = make(map[string]core.Document)
		s.collections[collection] = coll
	}
	doc := utils.CopyDocument(data)
	if doc == nil {
		doc = core.Document{}
	}
	coll[id] = doc
}

func (s *Store) Add(ctx context.Context, collection string, data core.Document) (string, error) {
	id := uuid.New().String()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(collection, id, data)
	return id, nil
}

func (s *Store) Merge(ctx context.Context, collection, id string, patch map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.collections[collection][id]
	if !ok {
		return core.ErrDocumentNotFound
	}
	copied, _ := utils.DeepCopy(patch).(map[string]any)
	s.collections[collection][id] = core.MergeFields(doc, copied)
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if coll, ok := s.collections[collection]; ok {
		delete(coll, id)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, collection string, dsl *query.QueryDSL) (persistence.Cursor, error) {
	s.mu.RLock()
	coll := s.collections[collection]
	snapshots := make([]core.Snapshot, 0, len(coll))
	for id, doc := range coll {
		snapshots = append(snapshots, core.Snapshot{ID: id, Data: utils.CopyDocument(doc)})
	}
	s.mu.RUnlock()

	sort.Slice(snapshots, func(i, j int) bool { return snapshots[i].ID < snapshots[j].ID })

	result, err := s.processor.Apply(ctx, snapshots, dsl)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("memory query", zap.String("collection", collection), zap.Int("matched", len(result)))
	return persistence.NewSliceCursor(result), nil
}

// Collections returns the names of collections holding at least one document.
func (s *Store) Collections() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var names []string
	for name, docs := range s.collections {
		if len(docs) > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func (s *Store) Close() error {
	return nil
}
