// Package consumer subscribes to the cache-invalidate Kafka topic and
// evicts the field-types cache whenever the declared schema changes
// underneath it (a field's type is edited or a new field is declared in
// Postgres), so stale FieldType answers don't outlive the row that backs
// them.
package consumer

import (
	"context"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/internal/fieldcache"
	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/pkg/kafka"
)

// InvalidateConsumer wraps a Kafka consumer bound to the cache-invalidate
// topic.
type InvalidateConsumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

// New creates an InvalidateConsumer backed by the given Kafka consumer.
func New(kafkaConsumer *kafka.Consumer) *InvalidateConsumer {
	return &InvalidateConsumer{
		consumer: kafkaConsumer,
		logger:   slog.Default().With("component", "field-cache-invalidate-consumer"),
	}
}

// Start begins consuming Kafka messages. It blocks until ctx is cancelled.
func (ic *InvalidateConsumer) Start(ctx context.Context) error {
	ic.logger.Info("field cache invalidate consumer starting")
	return ic.consumer.Start(ctx)
}

// Event is published whenever the field_types table changes; Reason is
// operator-facing only (logged, never interpreted).
type Event struct {
	Reason string `json:"reason"`
}

// HandleMessage returns a Kafka MessageHandler that flushes the field-types
// cache on every message, regardless of payload shape beyond being valid
// JSON — the topic carries no partial-invalidation information, so any
// event on it means "the whole cache may be stale now".
func HandleMessage(cache *fieldcache.Cache) kafka.MessageHandler {
	logger := slog.Default().With("component", "field-cache-invalidate-consumer")
	return func(ctx context.Context, key, value []byte) error {
		event, err := kafka.DecodeJSON[Event](value)
		if err != nil {
			logger.Error("failed to decode cache-invalidate event", "error", err)
			return err
		}
		if err := cache.Invalidate(ctx); err != nil {
			logger.Error("field cache invalidation failed", "reason", event.Reason, "error", err)
			return err
		}
		logger.Info("field cache invalidated", "reason", event.Reason)
		return nil
	}
}
