// Package publisher persists record metadata to PostgreSQL and publishes
// ingest events to Kafka for the record store to index. It performs
// path-based shard assignment (the same first-path-segment formula
// shard.Router uses for routing) and supports idempotent writes.
package publisher

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/internal/recordingest"
	apperrors "github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/pkg/postgres"
)

// Publisher coordinates record persistence and Kafka event production.
type Publisher struct {
	db         *postgres.Client
	producer   *kafka.Producer
	numShards  int
	logger     *slog.Logger
}

// New creates a Publisher with the given database, Kafka producer, and
// shard count (must match the record store's shard.Router configuration).
func New(db *postgres.Client, producer *kafka.Producer, numShards int) *Publisher {
	return &Publisher{
		db:        db,
		producer:  producer,
		numShards: numShards,
		logger:    slog.Default().With("component", "record-publisher"),
	}
}

// Ingest persists the record in PostgreSQL, assigns a shard and indexTime,
// and publishes an IngestEvent to Kafka. Duplicate idempotency keys are
// detected and returned without re-insertion.
func (p *Publisher) Ingest(ctx context.Context, req *recordingest.IngestRequest) (*recordingest.IngestResponse, error) {
	if req.IdempotencyKey != "" {
		existing, err := p.findByIdempotencyKey(ctx, req.IdempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("checking idempotency key: %w", err)
		}
		if existing != nil {
			p.logger.Info("duplicate ingestion detected",
				"idempotency_key", req.IdempotencyKey,
				"existing_uuid", existing.UUID,
			)
			return existing, nil
		}
	}

	shardID := assignShard(req.Path, p.numShards)
	indexTime := time.Now().UnixMilli()
	recordUUID := uuid.NewString()

	err := p.db.InTx(ctx, func(tx *sql.Tx) error {
		var insertedUUID string
		err := tx.QueryRowContext(ctx,
			`INSERT INTO records (uuid, path, shard_id, index_time, deleted, idempotency_key, status)
			 VALUES ($1, $2, $3, $4, $5, $6, 'PENDING')
			 ON CONFLICT (idempotency_key) DO NOTHING
			 RETURNING uuid`,
			recordUUID, req.Path, shardID, indexTime, req.Deleted, nullableString(req.IdempotencyKey)).Scan(&insertedUUID)
		if err == sql.ErrNoRows {
			return apperrors.New(apperrors.ErrIdempotencyConflict, 409, "idempotency key already in use")
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("inserting record: %w", err)
	}

	event := kafka.Event{
		Key: strconv.Itoa(shardID),
		Value: recordingest.IngestEvent{
			UUID:      recordUUID,
			Path:      req.Path,
			Fields:    req.Fields,
			Deleted:   req.Deleted,
			ShardID:   shardID,
			IndexTime: indexTime,
		},
	}
	if err := p.producer.Publish(ctx, event); err != nil {
		p.logger.Error("failed to publish to kafka, record stuck in PENDING",
			"uuid", recordUUID,
			"shard_id", shardID,
			"error", err,
		)
	}

	return &recordingest.IngestResponse{
		UUID:      recordUUID,
		Status:    "PENDING",
		ShardID:   shardID,
		IndexTime: indexTime,
	}, nil
}

// findByIdempotencyKey checks if a record with the given idempotency key
// already exists and returns its status.
func (p *Publisher) findByIdempotencyKey(ctx context.Context, key string) (*recordingest.IngestResponse, error) {
	var resp recordingest.IngestResponse
	err := p.db.DB.QueryRowContext(ctx,
		`SELECT uuid, status, shard_id, index_time FROM records WHERE idempotency_key=$1`,
		key).Scan(&resp.UUID, &resp.Status, &resp.ShardID, &resp.IndexTime)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying by idempotency key: %w", err)
	}
	return &resp, nil
}

// assignShard deterministically maps a path to a shard ID using the same
// first-path-segment sum formula as shard.Router.ShardFor, so ingest-time
// shard assignment and the record store's own routing always agree.
func assignShard(path string, numShards int) int {
	if numShards <= 0 {
		return 0
	}
	trimmed := strings.TrimPrefix(path, "/")
	segment := trimmed
	if idx := strings.IndexByte(trimmed, '/'); idx >= 0 {
		segment = trimmed[:idx]
	}
	var sum int
	for i := 0; i < len(segment); i++ {
		sum += int(segment[i])
	}
	return sum % numShards
}

// nullableString converts a Go string to a sql.NullString, treating the
// empty string as NULL.
func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
