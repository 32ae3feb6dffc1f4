package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/asaidimu/go-docquery/core"
	"github.com/asaidimu/go-docquery/utils"
)

// Options configures the SQLite store.
type Options struct {
	// TableName is the table holding every collection's documents.
	TableName string
	// IfNotExists prevents errors when the table already exists.
	IfNotExists bool
}

// DefaultOptions returns a set of sensible default options for the SQLite
// store.
func DefaultOptions() *Options {
	return &Options{
		TableName:   "documents",
		IfNotExists: true,
	}
}

// CreateTableSQL generates the DDL for the documents table. Documents are
// stored as JSON text keyed by (collection, id).
func CreateTableSQL(options *Options) string {
	var sb strings.Builder
	sb.WriteString("CREATE TABLE ")
	if options.IfNotExists {
		sb.WriteString("IF NOT EXISTS ")
	}
	sb.WriteString(quoteIdentifier(options.TableName) + " (\n")
	sb.WriteString(strings.Join([]string{
		"    collection TEXT NOT NULL",
		"    id TEXT NOT NULL",
		"    data TEXT NOT NULL",
		"    PRIMARY KEY (collection, id)",
	}, ",\n"))
	sb.WriteString("\n);")
	return sb.String()
}

// encodeDocument serializes a document for storage. Timestamps are stored in
// their normalized string form.
func encodeDocument(doc core.Document) (string, error) {
	copied := utils.CopyDocument(doc)
	if copied == nil {
		copied = core.Document{}
	}
	b, err := json.Marshal(core.NormalizeTimestamps(copied))
	if err != nil {
		return "", fmt.Errorf("failed to marshal document to JSON: %w", err)
	}
	return string(b), nil
}

// decodeDocument parses a stored JSON payload. Nested objects decode as
// map[string]any and numbers as float64.
func decodeDocument(val any) (core.Document, error) {
	var byteVal []byte
	switch v := val.(type) {
	case []byte:
		byteVal = v
	case string:
		byteVal = []byte(v)
	default:
		return nil, fmt.Errorf("unexpected data column type %T", val)
	}
	var doc map[string]any
	if err := json.Unmarshal(byteVal, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	return core.Document(doc), nil
}

// readRow scans a single (id, data) row into a snapshot.
func readRow(rows *sql.Rows) (*core.Snapshot, error) {
	var id string
	var data any
	if err := rows.Scan(&id, &data); err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}
	doc, err := decodeDocument(data)
	if err != nil {
		return nil, fmt.Errorf("document %s: %w", id, err)
	}
	return &core.Snapshot{ID: id, Data: doc}, nil
}
