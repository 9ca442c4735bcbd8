package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/prohmpiriya/storefront/backend-storefront/internal/checkout"
	"github.com/prohmpiriya/storefront/pkg/logger"
	"github.com/prohmpiriya/storefront/pkg/telemetry"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Producer is the slice of *kgo.Client the publisher needs
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// KafkaConfig holds the publisher's broker settings
type KafkaConfig struct {
	Brokers  []string
	ClientID string
}

// NewKafkaClient creates a franz-go client for publishing checkout events
func NewKafkaClient(cfg KafkaConfig) (*kgo.Client, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: at least one broker is required")
	}
	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.AllowAutoTopicCreation(),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	}
	if cfg.ClientID != "" {
		opts = append(opts, kgo.ClientID(cfg.ClientID))
	}
	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}
	return client, nil
}

// KafkaPublisher publishes terminal checkout attempts to Kafka
type KafkaPublisher struct {
	producer  Producer
	logger    *logger.Logger
	published *telemetry.Counter
}

// NewKafkaPublisher creates a publisher on top of producer
func NewKafkaPublisher(producer Producer, log *logger.Logger) *KafkaPublisher {
	if log == nil {
		log = logger.NewNop()
	}
	counter, _ := telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "storefront_checkout_events_published_total",
		Description: "Checkout outcome events written to Kafka",
		Unit:        "1",
	})
	return &KafkaPublisher{producer: producer, logger: log, published: counter}
}

var _ checkout.OutcomePublisher = (*KafkaPublisher)(nil)

// PublishOutcome writes a confirmed or failed event for a terminal attempt.
// Non-terminal attempts are ignored.
func (p *KafkaPublisher) PublishOutcome(ctx context.Context, a *checkout.Attempt) error {
	record, err := outcomeRecord(a)
	if err != nil || record == nil {
		return err
	}

	ctx, span := telemetry.StartSpan(ctx, "events.publish")
	defer span.End()
	span.SetAttributes(
		attribute.String("messaging.destination", record.Topic),
		attribute.String("checkout.attempt_id", a.ID),
	)

	if err := p.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		telemetry.SetSpanError(ctx, err)
		return fmt.Errorf("failed to publish %s: %w", record.Topic, err)
	}

	p.published.Inc(ctx, attribute.String("topic", record.Topic))
	p.logger.WithContext(ctx).Debug("checkout outcome published",
		zap.String("topic", record.Topic),
		zap.String("key", string(record.Key)),
	)
	return nil
}

func outcomeRecord(a *checkout.Attempt) (*kgo.Record, error) {
	var (
		topic string
		key   string
		event interface{}
	)
	switch a.State {
	case checkout.StateConfirmed:
		e := newConfirmedEvent(a)
		topic, key, event = TopicCheckoutConfirmed, e.Key(), e
	case checkout.StateFailed:
		e := newFailedEvent(a)
		topic, key, event = TopicCheckoutFailed, e.Key(), e
	default:
		return nil, nil
	}

	value, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s event: %w", topic, err)
	}
	return &kgo.Record{Topic: topic, Key: []byte(key), Value: value}, nil
}

// NoopPublisher drops every event. Used when Kafka is disabled.
type NoopPublisher struct{}

// PublishOutcome does nothing
func (NoopPublisher) PublishOutcome(context.Context, *checkout.Attempt) error {
	return nil
}
