package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/shubham-shewale/market-data-relay/pkg/models"
)

// Publisher writes every snapshot entry to Kafka as a StockUpdate keyed by symbol.
type Publisher struct {
	writer    KafkaWriter
	topic     TopicEnsurer
	sequencer *models.Sequencer
	logger    *zap.Logger
}

type PublisherOption func(*Publisher)

// WithTopic makes the publisher check the topic before writing a snapshot.
func WithTopic(t TopicEnsurer) PublisherOption {
	return func(p *Publisher) { p.topic = t }
}

func NewPublisher(writer KafkaWriter, logger *zap.Logger, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		writer:    writer,
		sequencer: models.NewSequencer(),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish streams the snapshot. A topic that is not ready yet fails the call without
// consuming sequence numbers.
func (p *Publisher) Publish(ctx context.Context, snapshot models.PriceSnapshot) error {
	if len(snapshot) == 0 {
		return nil
	}

	if p.topic != nil {
		if err := p.topic.EnsureTopic(ctx); err != nil {
			return fmt.Errorf("snapshot topic: %w", err)
		}
	}

	updates := p.sequencer.Updates(snapshot, time.Now())
	msgs := make([]kafka.Message, 0, len(updates))
	for _, u := range updates {
		payload, err := json.Marshal(u)
		if err != nil {
			return fmt.Errorf("encode update for %s: %w", u.Symbol, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(u.Symbol), // Key ensures partition ordering
			Value: payload,
		})
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}

	p.logger.Debug("Snapshot streamed to kafka", zap.Int("messages", len(msgs)))
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
