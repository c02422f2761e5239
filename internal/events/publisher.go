// Package events publishes ledger events after their unit of work commits.
package events

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/go-petr/pet-ledger/internal/domain"
)

// TransactionAppended is the type of the event sent for every committed append.
const TransactionAppended = "transaction.appended"

// Event is the message body.
type Event struct {
	Type        string             `json:"type"`
	Transaction domain.Transaction `json:"transaction"`
	Wallet      domain.Wallet      `json:"wallet"`
	OccurredAt  time.Time          `json:"occurred_at"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// PublishTimeout bounds a single event write.
const PublishTimeout = 5 * time.Second

// KafkaPublisher sends events to a Kafka topic. Messages are keyed by wallet
// id so all events of a wallet land on one partition.
//
// Events are published after their append commits, so two appends to the same
// wallet may reach the topic in either order. Within a wallet, transaction ids
// grow in commit order: consumers order by transaction.id and treat the
// wallet balance of the highest id seen as current.
type KafkaPublisher struct {
	writer  messageWriter
	timeout time.Duration
}

// NewKafkaPublisher returns a publisher writing to topic on brokers.
// Every Publish call is flushed on its own instead of waiting for a batch.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
			BatchSize:              1,
			BatchTimeout:           time.Millisecond,
			WriteTimeout:           PublishTimeout,
		},
		timeout: PublishTimeout,
	}
}

// Publish sends the appended transaction together with the wallet balance it produced.
//
// The append is already durable, so the write outlives a cancelled request
// context and is bounded by the publisher timeout instead.
func (p *KafkaPublisher) Publish(ctx context.Context, res domain.AppendResult) error {
	timeout := p.timeout
	if timeout <= 0 {
		timeout = PublishTimeout
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	data, err := json.Marshal(Event{
		Type:        TransactionAppended,
		Transaction: res.Transaction,
		Wallet:      res.Wallet,
		OccurredAt:  res.Transaction.CreatedAt,
	})
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(res.Wallet.ID, 10)),
		Value: data,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(TransactionAppended)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return err
	}

	zerolog.Ctx(ctx).Debug().Int64("transaction", res.Transaction.ID).Msg("event published")

	return nil
}

// Close flushes pending messages and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NoopPublisher drops every event. It is used when no brokers are configured.
type NoopPublisher struct{}

// Publish does nothing.
func (NoopPublisher) Publish(context.Context, domain.AppendResult) error {
	return nil
}

// Close does nothing.
func (NoopPublisher) Close() error {
	return nil
}
