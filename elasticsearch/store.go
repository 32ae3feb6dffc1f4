// Package elasticsearch provides a persistence.DocumentStore backed by
// Elasticsearch. Each collection is an index; string fields are mapped as
// keywords so they can be matched exactly and sorted.
package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/asaidimu/go-docquery/core"
	"github.com/asaidimu/go-docquery/core/persistence"
	"github.com/asaidimu/go-docquery/core/query"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/typedapi/types"
	"github.com/elastic/go-elasticsearch/v8/typedapi/types/enums/optype"
	"github.com/elastic/go-elasticsearch/v8/typedapi/types/enums/refresh"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// idField holds a copy of the document id inside _source so results can be
// ordered by id.
const idField = "docquery__id"

// maxResults is the page size used when a query has no limit.
const maxResults = 10000

// indexMapping maps every dynamically added string field to keyword.
const indexMapping = `{
  "mappings": {
    "dynamic_templates": [
      {"strings": {"match_mapping_type": "string", "mapping": {"type": "keyword"}}}
    ],
    "properties": {"` + idField + `": {"type": "keyword"}}
  }
}`

// Config describes how to reach the cluster.
type Config struct {
	Addresses   []string
	Username    string
	Password    string
	APIKey      string
	CloudID     string
	IndexPrefix string
}

// Store is a DocumentStore on top of an Elasticsearch typed client.
type Store struct {
	cl      *elasticsearch.TypedClient
	prefix  string
	logger  *zap.Logger
	indices sync.Map
}

var _ persistence.DocumentStore = (*Store)(nil)

// NewStore wraps an existing client.
func NewStore(cl *elasticsearch.TypedClient, prefix string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{cl: cl, prefix: prefix, logger: logger}
}

// Open returns an OpenFunc that connects using cfg.
func Open(cfg Config, logger *zap.Logger) persistence.OpenFunc {
	return func(ctx context.Context) (persistence.DocumentStore, error) {
		if len(cfg.Addresses) == 0 && cfg.CloudID == "" {
			return nil, errors.New("elasticsearch addresses or cloud id are required")
		}
		cl, err := elasticsearch.NewTypedClient(elasticsearch.Config{
			Addresses: cfg.Addresses,
			Username:  cfg.Username,
			Password:  cfg.Password,
			APIKey:    cfg.APIKey,
			CloudID:   cfg.CloudID,
		})
		if err != nil {
			return nil, fmt.Errorf("unable to create the elasticsearch client: %w", err)
		}
		return NewStore(cl, cfg.IndexPrefix, logger), nil
	}
}

// indexName maps a collection to its index. Index names must be lower case.
func (s *Store) indexName(collection string) string {
	return strings.ToLower(s.prefix + collection)
}

// ensureIndex creates the collection's index with the keyword mapping the
// first time it is written to.
func (s *Store) ensureIndex(ctx context.Context, index string) error {
	if _, ok := s.indices.Load(index); ok {
		return nil
	}
	_, err := s.cl.Indices.Create(index).Raw(strings.NewReader(indexMapping)).Do(ctx)
	if err != nil && errorType(err) != "resource_already_exists_exception" {
		return fmt.Errorf("failed to create index %s: %w", index, err)
	}
	s.indices.Store(index, struct{}{})
	return nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (core.Document, error) {
	res, err := s.cl.Get(s.indexName(collection), id).Do(ctx)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document %s/%s: %w", collection, id, err)
	}
	if !res.Found {
		return nil, nil
	}
	return decodeSource(res.Source_)
}

func (s *Store) Set(ctx context.Context, collection, id string, data core.Document) error {
	return s.index(ctx, collection, id, data, false)
}

func (s *Store) Add(ctx context.Context, collection string, data core.Document) (string, error) {
	id := uuid.New().String()
	if err := s.index(ctx, collection, id, data, true); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) index(ctx context.Context, collection, id string, data core.Document, create bool) error {
	index := s.indexName(collection)
	if err := s.ensureIndex(ctx, index); err != nil {
		return err
	}
	b, err := encodeSource(data, id)
	if err != nil {
		return err
	}
	req := s.cl.Index(index).Id(id).Raw(bytes.NewReader(b)).Refresh(refresh.True)
	if create {
		req = req.OpType(optype.Create)
	}
	if _, err := req.Do(ctx); err != nil {
		return fmt.Errorf("failed to index document %s/%s: %w", collection, id, err)
	}
	return nil
}

// Merge rewrites the document with the patch applied. A partial update
// would merge nested objects instead of replacing them.
func (s *Store) Merge(ctx context.Context, collection, id string, patch map[string]any) error {
	doc, err := s.Get(ctx, collection, id)
	if err != nil {
		return err
	}
	if doc == nil {
		return core.ErrDocumentNotFound
	}
	return s.index(ctx, collection, id, core.MergeFields(doc, patch), false)
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	_, err := s.cl.Delete(s.indexName(collection), id).Refresh(refresh.True).Do(ctx)
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete document %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, collection string, dsl *query.QueryDSL) (persistence.Cursor, error) {
	body, err := buildSearch(dsl)
	if err != nil {
		return nil, fmt.Errorf("failed to build search: %w", err)
	}
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode search: %w", err)
	}
	s.logger.Debug("Executing search", zap.String("collection", collection), zap.ByteString("body", b))

	resp, err := s.cl.Search().Index(s.indexName(collection)).Raw(bytes.NewReader(b)).Do(ctx)
	if isNotFound(err) {
		return persistence.NewSliceCursor(nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to execute search: %w", err)
	}

	snapshots := make([]core.Snapshot, 0, len(resp.Hits.Hits))
	for _, hit := range resp.Hits.Hits {
		snap, err := hitSnapshot(hit)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snap)
	}
	return persistence.NewSliceCursor(snapshots), nil
}

func (s *Store) Close() error {
	return nil
}

func encodeSource(data core.Document, id string) ([]byte, error) {
	source := make(core.Document, len(data)+1)
	for k, v := range data {
		source[k] = v
	}
	source[idField] = id
	b, err := json.Marshal(core.NormalizeTimestamps(source))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document to JSON: %w", err)
	}
	return b, nil
}

func decodeSource(raw json.RawMessage) (core.Document, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	delete(doc, idField)
	return core.Document(doc), nil
}

// hitSnapshot converts a search hit. The id is taken from the stored copy,
// falling back to the hit's _id.
func hitSnapshot(hit types.Hit) (core.Snapshot, error) {
	var envelope struct {
		ID     string         `json:"_id"`
		Source map[string]any `json:"_source"`
	}
	b, err := json.Marshal(hit)
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("failed to read search hit: %w", err)
	}
	if err := json.Unmarshal(b, &envelope); err != nil {
		return core.Snapshot{}, fmt.Errorf("failed to read search hit: %w", err)
	}
	id, _ := envelope.Source[idField].(string)
	if id == "" {
		id = envelope.ID
	}
	doc, err := decodeSource(hit.Source_)
	if err != nil {
		return core.Snapshot{}, err
	}
	return core.Snapshot{ID: id, Data: doc}, nil
}

func isNotFound(err error) bool {
	var esErr *types.ElasticsearchError
	return errors.As(err, &esErr) && esErr.Status == http.StatusNotFound
}

func errorType(err error) string {
	var esErr *types.ElasticsearchError
	if errors.As(err, &esErr) {
		return esErr.ErrorCause.Type
	}
	return ""
}
