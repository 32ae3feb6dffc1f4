package main

import (
	"context"
	"fmt"

	"github.com/asaidimu/go-docquery/backend"
	"github.com/asaidimu/go-docquery/config"
	"github.com/asaidimu/go-docquery/core/persistence"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Version is set at build time using -ldflags.
var Version = "0.0.0-dev"

// globalOptions holds the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath string
	backend    string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:   "docquery",
		Short: "Run document commands against a document store",
		Long: `docquery executes commands of the form operation:collection:document_id[:data]
against the configured document store and prints the JSON result envelope.

Operations: read, write, update, delete, query.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to a YAML configuration file")
	root.PersistentFlags().StringVar(&opts.backend, "backend", "", "Document store backend (memory, sqlite, firestore, arangodb, elasticsearch)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	root.AddCommand(newExecCmd(opts), newReplCmd(opts), newServeCmd(opts))
	return root
}

// load reads configuration and applies flag overrides.
func (o *globalOptions) load() (*config.Config, error) {
	cfg, err := config.LoadFile(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.backend != "" {
		cfg.Backend = config.Backend(o.backend)
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	return cfg, nil
}

// connect loads configuration and opens an adapter around the configured
// store.
func (o *globalOptions) connect(ctx context.Context, mutate func(*config.Config)) (*persistence.Adapter, *config.Config, *zap.Logger, error) {
	cfg, err := o.load()
	if err != nil {
		return nil, nil, nil, err
	}
	if mutate != nil {
		mutate(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logger, err := cfg.Log.BuildLogger()
	if err != nil {
		return nil, nil, nil, err
	}
	adapter, err := backend.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Sync()
		return nil, nil, nil, err
	}
	return adapter, cfg, logger, nil
}
