// Package changefeed forwards successful document mutations to Kafka.
package changefeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/asaidimu/go-docquery/config"
	"github.com/asaidimu/go-docquery/core/persistence"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/sasl"
	"github.com/twmb/franz-go/pkg/sasl/plain"
	"github.com/twmb/franz-go/pkg/sasl/scram"
	"go.uber.org/zap"
)

// Producer is the part of *kgo.Client the publisher needs.
type Producer interface {
	Produce(ctx context.Context, r *kgo.Record, promise func(*kgo.Record, error))
	Flush(ctx context.Context) error
	Close()
}

// Change is the record value published for each mutation.
type Change struct {
	Type       string         `json:"type"`
	Collection string         `json:"collection"`
	ID         string         `json:"id"`
	Data       map[string]any `json:"data,omitempty"`
	Timestamp  int64          `json:"timestamp"`
}

// publishedEvents are the events forwarded to the topic.
var publishedEvents = []persistence.OperationEventType{
	persistence.DocumentWriteSuccess,
	persistence.DocumentUpdateSuccess,
	persistence.DocumentDeleteSuccess,
}

// Publisher produces a record for every successful write, update and delete
// an adapter performs. Produce failures are logged and otherwise ignored.
type Publisher struct {
	producer Producer
	topic    string
	logger   *zap.Logger

	mu      sync.Mutex
	adapter *persistence.Adapter
	subs    []string
}

// NewPublisher creates a publisher writing to topic through producer.
func NewPublisher(producer Producer, topic string, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{producer: producer, topic: topic, logger: logger}
}

// Dial connects a franz-go client to the configured brokers.
func Dial(cfg config.KafkaConfig, logger *zap.Logger) (*Publisher, error) {
	if !cfg.Enabled() {
		return nil, errors.New("no kafka brokers configured")
	}
	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
	}
	if cfg.SASL != nil {
		mechanism, err := saslMechanism(cfg.SASL)
		if err != nil {
			return nil, err
		}
		opts = append(opts, kgo.SASL(mechanism))
	}
	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}
	return NewPublisher(client, cfg.Topic, logger), nil
}

func saslMechanism(cfg *config.SASLConfig) (sasl.Mechanism, error) {
	switch cfg.Mechanism {
	case "PLAIN":
		return plain.Auth{User: cfg.Username, Pass: cfg.Password}.AsMechanism(), nil
	case "SCRAM-SHA-256":
		return scram.Auth{User: cfg.Username, Pass: cfg.Password}.AsSha256Mechanism(), nil
	case "SCRAM-SHA-512":
		return scram.Auth{User: cfg.Username, Pass: cfg.Password}.AsSha512Mechanism(), nil
	default:
		return nil, fmt.Errorf("unknown mechanism: %v", cfg.Mechanism)
	}
}

// Attach subscribes the publisher to adapter's mutation events.
func (p *Publisher) Attach(adapter *persistence.Adapter) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.adapter = adapter
	for _, ev := range publishedEvents {
		id := adapter.Subscribe(ev, p.handle)
		if id != "" {
			p.subs = append(p.subs, id)
		}
	}
	p.logger.Info("change feed attached", zap.String("topic", p.topic))
}

// Detach removes the publisher's subscriptions.
func (p *Publisher) Detach() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.adapter == nil {
		return
	}
	for _, id := range p.subs {
		p.adapter.Unsubscribe(id)
	}
	p.subs = nil
	p.adapter = nil
}

// Close detaches, flushes pending records and closes the producer.
func (p *Publisher) Close(ctx context.Context) error {
	p.Detach()
	err := p.producer.Flush(ctx)
	p.producer.Close()
	if err != nil {
		return fmt.Errorf("failed to flush change feed: %w", err)
	}
	return nil
}

func (p *Publisher) handle(ctx context.Context, ev persistence.OperationEvent) error {
	record, err := p.buildRecord(ev)
	if err != nil {
		p.logger.Error("Failed to encode change", zap.String("collection", ev.Collection), zap.Error(err))
		return nil
	}
	p.producer.Produce(ctx, record, func(r *kgo.Record, err error) {
		if err != nil {
			p.logger.Error("Failed to publish change",
				zap.String("topic", r.Topic),
				zap.ByteString("key", r.Key),
				zap.Error(err))
		}
	})
	return nil
}

// buildRecord converts a success event into a record keyed by
// <collection>/<id>.
func (p *Publisher) buildRecord(ev persistence.OperationEvent) (*kgo.Record, error) {
	change := Change{
		Type:       string(ev.Type),
		Collection: ev.Collection,
		ID:         ev.DocumentID,
		Timestamp:  ev.Timestamp,
	}
	if data, ok := ev.Input.(map[string]any); ok && ev.Type != persistence.DocumentDeleteSuccess {
		change.Data = data
	}
	value, err := json.Marshal(change)
	if err != nil {
		return nil, err
	}
	return &kgo.Record{
		Topic: p.topic,
		Key:   []byte(ev.Collection + "/" + ev.DocumentID),
		Value: value,
	}, nil
}
