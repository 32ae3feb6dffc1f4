// Package config loads docquery configuration.
//
// Configuration comes from an optional YAML file. Selected environment
// variables override file values, and ${VAR} / ${VAR:-default} patterns in
// paths are expanded.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Backend names a document store implementation.
type Backend string

const (
	BackendMemory        Backend = "memory"
	BackendSQLite        Backend = "sqlite"
	BackendFirestore     Backend = "firestore"
	BackendArangoDB      Backend = "arangodb"
	BackendElasticsearch Backend = "elasticsearch"
)

// Backends lists every supported backend.
var Backends = []Backend{BackendMemory, BackendSQLite, BackendFirestore, BackendArangoDB, BackendElasticsearch}

// Config is the complete docquery configuration.
type Config struct {
	// Backend selects the document store.
	Backend Backend `yaml:"backend"`

	Firestore     FirestoreConfig     `yaml:"firestore"`
	SQLite        SQLiteConfig        `yaml:"sqlite"`
	ArangoDB      ArangoDBConfig      `yaml:"arangodb"`
	Elasticsearch ElasticsearchConfig `yaml:"elasticsearch"`
	Kafka         KafkaConfig         `yaml:"kafka"`
	Server        ServerConfig        `yaml:"server"`
	Log           LogConfig           `yaml:"log"`
}

// FirestoreConfig identifies a Firestore database.
type FirestoreConfig struct {
	ProjectID  string `yaml:"project_id"`
	DatabaseID string `yaml:"database_id"`
	// CredentialsPath is a service account key file. Empty means application
	// default credentials.
	CredentialsPath string `yaml:"credentials_path"`
}

// SQLiteConfig configures the SQLite store.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// ArangoDBConfig configures the ArangoDB store.
type ArangoDBConfig struct {
	Endpoints []string `yaml:"endpoints"`
	Username  string   `yaml:"username"`
	Password  string   `yaml:"password"`
	Database  string   `yaml:"database"`
}

// ElasticsearchConfig configures the Elasticsearch store.
type ElasticsearchConfig struct {
	Addresses   []string `yaml:"addresses"`
	Username    string   `yaml:"username"`
	Password    string   `yaml:"password"`
	APIKey      string   `yaml:"api_key"`
	CloudID     string   `yaml:"cloud_id"`
	IndexPrefix string   `yaml:"index_prefix"`
}

// KafkaConfig configures the change feed. It is disabled when Brokers is
// empty.
type KafkaConfig struct {
	Brokers []string    `yaml:"brokers"`
	Topic   string      `yaml:"topic"`
	SASL    *SASLConfig `yaml:"sasl,omitempty"`
}

// SASLConfig configures broker authentication.
type SASLConfig struct {
	// Mechanism is one of PLAIN, SCRAM-SHA-256, SCRAM-SHA-512.
	Mechanism string `yaml:"mechanism"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
}

// Enabled reports whether a change feed should be started.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// ServerConfig configures the HTTP endpoint.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns the configuration used before any file is applied.
func Default() *Config {
	return &Config{
		Backend: BackendMemory,
		Firestore: FirestoreConfig{
			DatabaseID: "(default)",
		},
		SQLite: SQLiteConfig{
			Path: "./data/docquery.db",
		},
		ArangoDB: ArangoDBConfig{
			Database: "_system",
		},
		Kafka: KafkaConfig{
			Topic: "docquery.changes",
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadFile loads configuration from path on top of the defaults. An empty
// path loads the defaults alone. Environment overrides are applied last.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}
	cfg.applyEnv(os.Getenv)
	cfg.expandVariables()
	return cfg, nil
}

// applyEnv overrides fields from environment variables.
func (c *Config) applyEnv(getenv func(string) string) {
	set := func(dst *string, name string) {
		if v := getenv(name); v != "" {
			*dst = v
		}
	}
	list := func(dst *[]string, name string) {
		if v := getenv(name); v != "" {
			*dst = splitList(v)
		}
	}

	var backend string
	set(&backend, "DOCQUERY_BACKEND")
	if backend != "" {
		c.Backend = Backend(strings.ToLower(backend))
	}
	set(&c.Firestore.ProjectID, "FIRESTORE_PROJECT_ID")
	set(&c.Firestore.DatabaseID, "FIRESTORE_DATABASE_ID")
	set(&c.Firestore.CredentialsPath, "FIRESTORE_CREDENTIALS_PATH")
	set(&c.SQLite.Path, "DOCQUERY_SQLITE_PATH")
	list(&c.ArangoDB.Endpoints, "ARANGODB_ENDPOINTS")
	set(&c.ArangoDB.Username, "ARANGODB_USERNAME")
	set(&c.ArangoDB.Password, "ARANGODB_PASSWORD")
	set(&c.ArangoDB.Database, "ARANGODB_DATABASE")
	list(&c.Elasticsearch.Addresses, "ELASTICSEARCH_ADDRESSES")
	set(&c.Elasticsearch.Username, "ELASTICSEARCH_USERNAME")
	set(&c.Elasticsearch.Password, "ELASTICSEARCH_PASSWORD")
	set(&c.Elasticsearch.APIKey, "ELASTICSEARCH_API_KEY")
	set(&c.Elasticsearch.CloudID, "ELASTICSEARCH_CLOUD_ID")
	list(&c.Kafka.Brokers, "KAFKA_BROKERS")
	set(&c.Kafka.Topic, "KAFKA_TOPIC")
	set(&c.Server.Addr, "DOCQUERY_ADDR")
	set(&c.Log.Level, "DOCQUERY_LOG_LEVEL")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	c.SQLite.Path = expandVars(c.SQLite.Path)
	c.Firestore.CredentialsPath = expandVars(c.Firestore.CredentialsPath)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		if len(parts) >= 3 {
			return parts[2]
		}
		return ""
	})
}

// Validate checks that the selected backend has what it needs.
func (c *Config) Validate() error {
	var errs []error

	switch c.Backend {
	case BackendMemory:
	case BackendSQLite:
		if c.SQLite.Path == "" {
			errs = append(errs, errors.New("sqlite.path is required"))
		}
	case BackendFirestore:
		if c.Firestore.ProjectID == "" {
			errs = append(errs, errors.New("firestore.project_id is required"))
		}
	case BackendArangoDB:
		if len(c.ArangoDB.Endpoints) == 0 {
			errs = append(errs, errors.New("arangodb.endpoints is required"))
		}
		if c.ArangoDB.Database == "" {
			errs = append(errs, errors.New("arangodb.database is required"))
		}
	case BackendElasticsearch:
		if len(c.Elasticsearch.Addresses) == 0 && c.Elasticsearch.CloudID == "" {
			errs = append(errs, errors.New("elasticsearch.addresses or elasticsearch.cloud_id is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid backend: %s", c.Backend))
	}

	if c.Kafka.Enabled() && c.Kafka.Topic == "" {
		errs = append(errs, errors.New("kafka.topic is required when kafka.brokers is set"))
	}
	if sasl := c.Kafka.SASL; sasl != nil {
		switch sasl.Mechanism {
		case "PLAIN", "SCRAM-SHA-256", "SCRAM-SHA-512":
		default:
			errs = append(errs, fmt.Errorf("unknown kafka.sasl.mechanism: %s", sasl.Mechanism))
		}
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("invalid log.level: %s", c.Log.Level))
	}

	return errors.Join(errs...)
}

// BuildLogger creates the zap logger described by the log section.
func (l LogConfig) BuildLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(l.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", l.Level, err)
	}
	zc := zap.NewProductionConfig()
	if l.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
