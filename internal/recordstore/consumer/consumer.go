// Package consumer reads record ingest events from Kafka and indexes them
// into the sharded record store, updating each record's persisted status
// in PostgreSQL as it moves from PENDING to INDEXED (or FAILED).
package consumer

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/internal/record"
	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/internal/recordingest"
	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/internal/recordstore/shard"
	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/pkg/kafka"
)

// IndexConsumer wraps a Kafka consumer to drive the record store's indexing
// pipeline.
type IndexConsumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

// New creates an IndexConsumer backed by the given Kafka consumer.
func New(kafkaConsumer *kafka.Consumer) *IndexConsumer {
	return &IndexConsumer{
		consumer: kafkaConsumer,
		logger:   slog.Default().With("component", "record-index-consumer"),
	}
}

// Start begins consuming Kafka messages. It blocks until ctx is cancelled.
func (ic *IndexConsumer) Start(ctx context.Context) error {
	ic.logger.Info("record index consumer starting")
	return ic.consumer.Start(ctx)
}

// HandleMessage returns a Kafka MessageHandler that routes each ingest event
// to the correct shard engine via router before indexing it. If db is
// non-nil, the record's status is updated from PENDING to INDEXED (or
// FAILED) in PostgreSQL after the index attempt.
func HandleMessage(router *shard.Router, db *sql.DB) kafka.MessageHandler {
	logger := slog.Default().With("component", "record-index-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[recordingest.IngestEvent](value)
		if err != nil {
			logger.Error("failed to decode ingest event",
				"error", err,
				"key", string(key),
			)
			return nil
		}

		engine, err := router.Route(event.ShardID)
		if err != nil {
			return fmt.Errorf("routing shard %d: %w", event.ShardID, err)
		}

		logger.Debug("processing ingest event",
			"uuid", event.UUID,
			"shard_id", event.ShardID,
		)

		rec := record.Record{
			UUID:      event.UUID,
			Path:      event.Path,
			IndexTime: event.IndexTime,
			Deleted:   event.Deleted,
			Fields:    event.Fields,
		}
		if err := engine.Index(rec); err != nil {
			updateRecordStatus(ctx, db, event.UUID, "FAILED", logger)
			return fmt.Errorf("indexing record %s in shard %d: %w", event.UUID, event.ShardID, err)
		}

		updateRecordStatus(ctx, db, event.UUID, "INDEXED", logger)

		logger.Info("record indexed",
			"uuid", event.UUID,
			"shard_id", event.ShardID,
		)
		return nil
	}
}

// updateRecordStatus updates the record's status in PostgreSQL. If db is
// nil, the update is silently skipped.
func updateRecordStatus(ctx context.Context, db *sql.DB, recordUUID, status string, logger *slog.Logger) {
	if db == nil {
		return
	}
	_, err := db.ExecContext(ctx,
		`UPDATE records SET status = $1 WHERE uuid = $2`,
		status, recordUUID,
	)
	if err != nil {
		logger.Error("failed to update record status",
			"uuid", recordUUID,
			"status", status,
			"error", err,
		)
	}
}
