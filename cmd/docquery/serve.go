package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/asaidimu/go-docquery/changefeed"
	"github.com/asaidimu/go-docquery/config"
	"github.com/asaidimu/go-docquery/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type serveOptions struct {
	addr         string
	kafkaBrokers []string
	kafkaTopic   string
}

func newServeCmd(opts *globalOptions) *cobra.Command {
	so := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve commands over HTTP",
		Long: `The serve command exposes the document store as an HTTP tool endpoint:

  POST /interact   {"query": "<command>"} or a text/plain command
  GET  /health     store connection status

When Kafka brokers are configured, successful writes, updates and deletes are
published to the change feed topic.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			adapter, cfg, logger, err := opts.connect(ctx, so.apply)
			if err != nil {
				return err
			}
			defer logger.Sync()
			defer adapter.Close()

			if cfg.Kafka.Enabled() {
				publisher, err := changefeed.Dial(cfg.Kafka, logger)
				if err != nil {
					return err
				}
				publisher.Attach(adapter)
				defer func() {
					if err := publisher.Close(context.Background()); err != nil {
						logger.Warn("change feed did not flush", zap.Error(err))
					}
				}()
			}

			return server.Serve(ctx, cfg.Server.Addr, server.New(adapter, logger), logger)
		},
	}
	cmd.Flags().StringVar(&so.addr, "addr", "", "Listen address (default from config, :8080)")
	cmd.Flags().StringSliceVar(&so.kafkaBrokers, "kafka-brokers", nil, "Kafka seed brokers; enables the change feed")
	cmd.Flags().StringVar(&so.kafkaTopic, "kafka-topic", "", "Kafka topic for the change feed")
	return cmd
}

func (so *serveOptions) apply(cfg *config.Config) {
	if so.addr != "" {
		cfg.Server.Addr = so.addr
	}
	if len(so.kafkaBrokers) > 0 {
		cfg.Kafka.Brokers = so.kafkaBrokers
	}
	if so.kafkaTopic != "" {
		cfg.Kafka.Topic = so.kafkaTopic
	}
}
