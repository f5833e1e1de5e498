// Package events publishes order lifecycle events to Kafka.
package events

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/segmentio/kafka-go"

	"github.com/xenking/storefront-orders/internal/domain/order"
	"github.com/xenking/storefront-orders/internal/wire"
)

var _ order.Publisher = (*KafkaPublisher)(nil)

// MessageWriter is the subset of *kafka.Writer used by KafkaPublisher.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Config configures the Kafka publisher.
type Config struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
}

// KafkaPublisher writes one message per event, keyed by order ID so all
// events of an order land in the same partition.
type KafkaPublisher struct {
	w MessageWriter
}

// NewKafkaPublisher creates a publisher backed by a kafka-go Writer.
func NewKafkaPublisher(cfg Config) *KafkaPublisher {
	return NewPublisher(&kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		WriteTimeout:           cfg.WriteTimeout,
		AllowAutoTopicCreation: true,
	})
}

// NewPublisher wraps an existing writer.
func NewPublisher(w MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{w: w}
}

// Publish encodes e and writes it to the topic.
func (p *KafkaPublisher) Publish(ctx context.Context, e order.Event) error {
	msg := kafka.Message{
		Key:   []byte(e.Order.ID),
		Value: Encode(e),
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(e.Type)},
		},
		Time: e.OccurredAt,
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return errors.Wrapf(err, "write %s event", e.Type)
	}
	return nil
}

// Close flushes pending messages and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}

// Encode returns the JSON payload of an event.
func Encode(e order.Event) []byte {
	var enc jx.Encoder
	enc.ObjStart()
	enc.FieldStart("type")
	enc.Str(string(e.Type))
	enc.FieldStart("occurredAt")
	wire.EncodeTime(&enc, e.OccurredAt)
	if e.PreviousStatus != "" {
		enc.FieldStart("previousStatus")
		enc.Str(string(e.PreviousStatus))
	}
	if e.Refund != nil {
		enc.FieldStart("refund")
		wire.EncodeRefund(&enc, *e.Refund)
	}
	enc.FieldStart("order")
	wire.EncodeOrder(&enc, e.Order)
	enc.ObjEnd()
	return enc.Bytes()
}
