// Package backend selects and opens the configured document store.
package backend

import (
	"context"
	"fmt"

	"github.com/asaidimu/go-docquery/arangodb"
	"github.com/asaidimu/go-docquery/config"
	"github.com/asaidimu/go-docquery/core/persistence"
	"github.com/asaidimu/go-docquery/elasticsearch"
	"github.com/asaidimu/go-docquery/firestore"
	"github.com/asaidimu/go-docquery/memory"
	"github.com/asaidimu/go-docquery/sqlite"
	"go.uber.org/zap"
)

// DisplayName returns the human readable store name used in adapter
// messages such as "Firestore client not initialized".
func DisplayName(b config.Backend) string {
	switch b {
	case config.BackendMemory:
		return "Memory"
	case config.BackendSQLite:
		return "SQLite"
	case config.BackendFirestore:
		return "Firestore"
	case config.BackendArangoDB:
		return "ArangoDB"
	case config.BackendElasticsearch:
		return "Elasticsearch"
	}
	return string(b)
}

// OpenFunc returns the constructor for the backend cfg selects.
func OpenFunc(cfg *config.Config, logger *zap.Logger) (persistence.OpenFunc, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("backend", string(cfg.Backend)))

	switch cfg.Backend {
	case config.BackendMemory:
		return memory.Open(logger), nil
	case config.BackendSQLite:
		return sqlite.Open(cfg.SQLite.Path, logger, sqlite.DefaultOptions()), nil
	case config.BackendFirestore:
		return firestore.Open(firestore.Config{
			ProjectID:       cfg.Firestore.ProjectID,
			DatabaseID:      cfg.Firestore.DatabaseID,
			CredentialsPath: cfg.Firestore.CredentialsPath,
		}, logger), nil
	case config.BackendArangoDB:
		return arangodb.Open(arangodb.Config{
			Endpoints: cfg.ArangoDB.Endpoints,
			Username:  cfg.ArangoDB.Username,
			Password:  cfg.ArangoDB.Password,
			Database:  cfg.ArangoDB.Database,
		}, logger), nil
	case config.BackendElasticsearch:
		return elasticsearch.Open(elasticsearch.Config{
			Addresses:   cfg.Elasticsearch.Addresses,
			Username:    cfg.Elasticsearch.Username,
			Password:    cfg.Elasticsearch.Password,
			APIKey:      cfg.Elasticsearch.APIKey,
			CloudID:     cfg.Elasticsearch.CloudID,
			IndexPrefix: cfg.Elasticsearch.IndexPrefix,
		}, logger), nil
	}
	return nil, fmt.Errorf("invalid backend: %s", cfg.Backend)
}

// Open opens the configured store directly.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (persistence.DocumentStore, error) {
	open, err := OpenFunc(cfg, logger)
	if err != nil {
		return nil, err
	}
	return open(ctx)
}

// Connect builds an adapter around the configured store. Connection failures
// leave the adapter disconnected, as persistence.Connect does; only an unknown
// backend is reported as an error.
func Connect(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*persistence.Adapter, error) {
	open, err := OpenFunc(cfg, logger)
	if err != nil {
		return nil, err
	}
	return persistence.Connect(ctx, open,
		persistence.WithLogger(logger),
		persistence.WithStoreName(DisplayName(cfg.Backend)),
	), nil
}
