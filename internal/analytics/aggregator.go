package analytics

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/pkg/kafka"
)

type AggregatedStats struct {
	TotalChunksServed  int64        `json:"total_chunks_served"`
	TotalRecordIngests int64        `json:"total_record_ingests"`
	CacheHits          int64        `json:"cache_hits"`
	CacheMisses        int64        `json:"cache_misses"`
	EmptyChunkCount    int64        `json:"empty_chunk_count"`
	AvgLatencyMs       float64      `json:"avg_latency_ms"`
	P50LatencyMs       int64        `json:"p50_latency_ms"`
	P95LatencyMs       int64        `json:"p95_latency_ms"`
	P99LatencyMs       int64        `json:"p99_latency_ms"`
	TopQueries         []QueryCount `json:"top_queries"`
	EmptyChunkQueries  []QueryCount `json:"empty_chunk_queries"`
	ChunksPerMinute    float64      `json:"chunks_per_minute"`
}
type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator tracks running bulk-consume statistics fed by a Kafka
// consumer of chunk/ingest events; durable snapshotting is aggregator.Store's
// job, not this type's.
type Aggregator struct {
	mu                 sync.RWMutex
	totalChunksServed  atomic.Int64
	totalRecordIngests atomic.Int64
	cacheHits          atomic.Int64
	cacheMisses        atomic.Int64
	emptyChunks        atomic.Int64
	latencies          []int64
	queryCounts        map[string]int64
	emptyChunkQueries  map[string]int64
	startTime          time.Time

	consumer *kafka.Consumer
	logger   *slog.Logger
}

func NewAggregator(consumer *kafka.Consumer) *Aggregator {
	return &Aggregator{
		latencies:         make([]int64, 0, 10000),
		queryCounts:       make(map[string]int64),
		emptyChunkQueries: make(map[string]int64),
		startTime:         time.Now(),
		consumer:          consumer,
		logger:            slog.Default().With("component", "analytics-aggregator"),
	}
}
func (a *Aggregator) Start(ctx context.Context) error {
	a.logger.Info("analytics aggregator starting")
	return a.consumer.Start(ctx)
}
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[ChunkEvent](value)
		if err != nil || event.Type == EventRecordIngest {
			ingestEvent, ingestErr := kafka.DecodeJSON[RecordIngestEvent](value)
			if ingestErr != nil {
				agg.logger.Error("failed to decode analytics event",
					"error", err,
				)
				return nil
			}
			agg.recordIngestEvent(ingestEvent)
			return nil
		}
		agg.recordChunkEvent(event)
		return nil
	}
}

func (a *Aggregator) recordChunkEvent(event ChunkEvent) {
	a.totalChunksServed.Add(1)

	if event.FieldCacheHit {
		a.cacheHits.Add(1)
	} else {
		a.cacheMisses.Add(1)
	}

	if event.RecordCount == 0 {
		a.emptyChunks.Add(1)
	}

	a.mu.Lock()
	a.latencies = append(a.latencies, event.LatencyMs)
	a.queryCounts[event.Query]++
	if event.RecordCount == 0 {
		a.emptyChunkQueries[event.Query]++
	}
	a.mu.Unlock()
}

func (a *Aggregator) recordIngestEvent(event RecordIngestEvent) {
	a.totalRecordIngests.Add(1)
}
func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalChunksServed:  a.totalChunksServed.Load(),
		TotalRecordIngests: a.totalRecordIngests.Load(),
		CacheHits:          a.cacheHits.Load(),
		CacheMisses:        a.cacheMisses.Load(),
		EmptyChunkCount:    a.emptyChunks.Load(),
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopQueries = topN(a.queryCounts, 10)
	stats.EmptyChunkQueries = topN(a.emptyChunkQueries, 10)
	elapsed := time.Since(a.startTime).Minutes()
	if elapsed > 0 {
		stats.ChunksPerMinute = float64(stats.TotalChunksServed) / elapsed
	}

	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Count > result[j].Count
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
