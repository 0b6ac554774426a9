// Package kafka publishes committed ledger operations to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"wallet-ledger/config"
	"wallet-ledger/internal/core/domain"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// messageWriter is the part of *kafka.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewWriter builds a writer for cfg.Topic. Messages are partitioned by key
// so every event of one reference id lands on the same partition.
func NewWriter(cfg config.KafkaConfig) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
}

// Publisher implements ports.EventPublisher.
type Publisher struct {
	writer  messageWriter
	timeout time.Duration
	log     zerolog.Logger
}

// NewPublisher wraps w. Each publish is bounded by a 5s timeout.
func NewPublisher(w messageWriter, log zerolog.Logger) *Publisher {
	return &Publisher{
		writer:  w,
		timeout: 5 * time.Second,
		log:     log.With().Str("component", "kafka").Logger(),
	}
}

// Publish writes ev keyed by its reference id.
func (p *Publisher) Publish(ctx context.Context, ev *domain.LedgerEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode ledger event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(ev.ReferenceID),
		Value: payload,
		Time:  ev.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(ev.EventID.String())},
			{Key: "operation", Value: []byte(ev.Operation)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish ledger event: %w", err)
	}

	p.log.Debug().
		Str("event_id", ev.EventID.String()).
		Str("operation", string(ev.Operation)).
		Str("reference_id", ev.ReferenceID).
		Msg("Ledger event published")
	return nil
}

// Close flushes pending messages and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
