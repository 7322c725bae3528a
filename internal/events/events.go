// Package events publishes domain events after state changes are durable.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	PaymentCompleted  = "payment.completed"
	PaymentFailed     = "payment.failed"
	PaymentDisputed   = "payment.disputed"
	PaymentRefunded   = "payment.refunded"
	VoteCommitted     = "vote.committed"
	WithdrawalUpdated = "withdrawal.updated"
)

// Envelope is the wire shape of every published event.
type Envelope struct {
	Type       string          `json:"type"`
	Key        string          `json:"key"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes envelopes to one topic, keyed by aggregate id so
// events for the same payment stay ordered within a partition.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	now    func() time.Time
}

// NewKafkaPublisher builds a publisher for brokers and topic.
func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka publisher requires at least one broker")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka publisher requires a topic")
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			RequiredAcks:           kafka.RequireAll,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
		},
		topic: topic,
		now:   time.Now,
	}, nil
}

// Publish encodes data and writes it under eventType.
func (p *KafkaPublisher) Publish(ctx context.Context, eventType, key string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s: %w", eventType, err)
	}
	at := p.now().UTC()
	value, err := json.Marshal(Envelope{Type: eventType, Key: key, OccurredAt: at, Data: raw})
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic:   p.topic,
		Key:     []byte(key),
		Value:   value,
		Time:    at,
		Headers: []kafka.Header{{Key: "event_type", Value: []byte(eventType)}},
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", eventType, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Noop drops every event. Used when no brokers are configured.
type Noop struct{}

func (Noop) Publish(context.Context, string, string, any) error { return nil }

func (Noop) Close() error { return nil }
