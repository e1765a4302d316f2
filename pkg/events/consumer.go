package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Notification is the SNS-to-SQS delivery wrapper around an Envelope. Its
// Timestamp is stable across redeliveries, which makes the derived record key
// stable and the persistence idempotent.
type Notification struct {
	MessageID string    `json:"MessageId"`
	Message   string    `json:"Message"`
	Timestamp time.Time `json:"Timestamp"`
}

// Consumer persists queued domain events. A message that fails here is left
// to the queue's redelivery; after the queue's configured receive count it is
// diverted to the dead-letter queue, never retried by the consumer itself.
type Consumer struct {
	store Appender
	log   zerolog.Logger
}

// NewConsumer creates a Consumer backed by store.
func NewConsumer(store Appender, log zerolog.Logger) *Consumer {
	return &Consumer{store: store, log: log}
}

// HandleMessage processes one queued message body. A malformed body is a
// poison message: the error surfaces so the queue's receive count advances
// toward the dead-letter diversion.
func (c *Consumer) HandleMessage(ctx context.Context, body string) error {
	var notification Notification
	if err := json.Unmarshal([]byte(body), &notification); err != nil {
		return fmt.Errorf("failed to parse notification: %w", err)
	}

	var envelope Envelope
	if err := json.Unmarshal([]byte(notification.Message), &envelope); err != nil {
		return fmt.Errorf("failed to parse envelope from message %s: %w", notification.MessageID, err)
	}
	if err := envelope.Validate(); err != nil {
		return fmt.Errorf("invalid envelope in message %s: %w", notification.MessageID, err)
	}

	switch envelope.EventType {
	case OrderCreated, OrderDeleted:
		var ev OrderEvent
		if err := json.Unmarshal([]byte(envelope.Data), &ev); err != nil {
			return fmt.Errorf("failed to parse order event from message %s: %w", notification.MessageID, err)
		}
		at := notification.Timestamp
		if at.IsZero() {
			at = time.Now()
		}
		rec := OrderEventRecord(&ev, envelope.EventType, notification.MessageID, at)
		if err := c.store.Append(ctx, rec); err != nil {
			return fmt.Errorf("failed to persist %s event for order %s: %w", envelope.EventType, ev.OrderID, err)
		}
		c.log.Info().
			Str("eventType", envelope.EventType).
			Str("orderId", ev.OrderID).
			Str("messageId", notification.MessageID).
			Msg("order event recorded")
		return nil
	default:
		// The subscription filter should keep unknown types out; seeing one
		// is a wiring problem, not a poison message worth dead-lettering.
		c.log.Warn().Str("eventType", envelope.EventType).Msg("ignoring unsubscribed event type")
		return nil
	}
}
