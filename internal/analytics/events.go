package analytics

import "time"

type EventType string

const (
	EventChunk        EventType = "chunk_served"
	EventCacheHit     EventType = "field_cache_hit"
	EventCacheMiss    EventType = "field_cache_miss"
	EventRecordIngest EventType = "record_ingest"
	EventEmptyChunk   EventType = "empty_chunk"
)

// ChunkEvent records one bulk-consume request/response cycle: how many
// records the dispatcher streamed and how the underlying range-discovery
// probes behaved.
type ChunkEvent struct {
	Type          EventType `json:"type"`
	Query         string    `json:"query"`
	RecordCount   int       `json:"record_count"`
	ChunkSizeHint int       `json:"chunk_size_hint"`
	LatencyMs     int64     `json:"latency_ms"`
	FieldCacheHit bool      `json:"field_cache_hit"`
	ProbeCount    int       `json:"probe_count"`
	ShardCount    int       `json:"shard_count"`
	Timestamp     time.Time `json:"timestamp"`
	RequestID     string    `json:"request_id"`
}

// RecordIngestEvent records one ingested record, for ingest-side throughput
// and shard-balance tracking.
type RecordIngestEvent struct {
	Type       EventType `json:"type"`
	RecordUUID string    `json:"record_uuid"`
	ShardID    int       `json:"shard_id"`
	FieldCount int       `json:"field_count"`
	SizeBytes  int       `json:"size_bytes"`
	LatencyMs  int64     `json:"latency_ms"`
	Timestamp  time.Time `json:"timestamp"`
}
