package analytics

import "github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/internal/analytics/collector"

// BatchTracker adapts a collector.BatchCollector (keyed Track(key, value))
// to the dispatcher's unkeyed Collector interface (Track(event)), keying
// every event on its dynamic type so ChunkEvent and RecordIngestEvent are
// published under distinct Kafka message keys.
type BatchTracker struct {
	batch *collector.BatchCollector
}

// NewBatchTracker wraps batch as a Track(event any) collector.
func NewBatchTracker(batch *collector.BatchCollector) *BatchTracker {
	return &BatchTracker{batch: batch}
}

func (bt *BatchTracker) Track(event any) {
	key := "event"
	switch event.(type) {
	case ChunkEvent:
		key = "chunk_event"
	case RecordIngestEvent:
		key = "record_ingest_event"
	}
	bt.batch.Track(key, event)
}
