package shard

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/internal/bulkconsume/probe"
	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/internal/record"
	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/internal/recordstore"
)

// ShardedProber implements probe.Prober by fanning a seed/count probe out
// to every shard engine concurrently and merging the results, mirroring
// the wait-group fan-out/collect shape the single-node search executor
// used for its own per-shard queries.
type ShardedProber struct {
	router *Router
	logger *slog.Logger
}

// NewShardedProber wraps router as a probe.Prober.
func NewShardedProber(router *Router) *ShardedProber {
	return &ShardedProber{router: router, logger: slog.Default().With("component", "sharded-prober")}
}

// Probe implements probe.Prober, fanning out across every shard engine. A
// PathFilter that pins to a single shard-owning path segment still queries
// every shard for correctness simplicity; the router's ShardFor is used
// only for ingest routing, not probe pruning, since a recursive path
// filter can span shard boundaries.
func (sp *ShardedProber) Probe(ctx context.Context, params probe.Params, timeFrom int64, timeTo *int64, pagination probe.Pagination, sort_ *probe.Sort) (probe.Result, error) {
	engines := sp.router.AllEngines()

	if timeTo == nil {
		return sp.seedFanOut(engines, timeFrom, pagination.Offset)
	}
	return sp.countFanOut(ctx, engines, params, timeFrom, *timeTo)
}

func (sp *ShardedProber) countFanOut(ctx context.Context, engines []*recordstore.Engine, params probe.Params, from, to int64) (probe.Result, error) {
	type outcome struct {
		total int64
		err   error
	}
	results := make([]outcome, len(engines))
	var wg sync.WaitGroup
	for i, eng := range engines {
		wg.Add(1)
		go func(idx int, e *recordstore.Engine) {
			defer wg.Done()
			total, err := e.Count(ctx, params, from, to)
			results[idx] = outcome{total: total, err: err}
		}(i, eng)
	}
	wg.Wait()

	var sum int64
	for _, r := range results {
		if r.err != nil {
			sp.logger.Error("shard count probe failed", "error", r.err)
			return probe.Result{}, fmt.Errorf("shard count probe: %w", r.err)
		}
		sum += r.total
	}
	return probe.Result{Total: sum}, nil
}

func (sp *ShardedProber) seedFanOut(engines []*recordstore.Engine, from int64, offset int) (probe.Result, error) {
	type outcome struct {
		records []record.Record
	}
	results := make([]outcome, len(engines))
	var wg sync.WaitGroup
	for i, eng := range engines {
		wg.Add(1)
		go func(idx int, e *recordstore.Engine) {
			defer wg.Done()
			results[idx] = outcome{records: e.RecordsFrom(from)}
		}(i, eng)
	}
	wg.Wait()

	var merged []record.Record
	for _, r := range results {
		merged = append(merged, r.records...)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].IndexTime < merged[j].IndexTime })
	if offset >= len(merged) {
		return probe.Result{}, nil
	}
	it := merged[offset].IndexTime
	return probe.Result{FirstIndexTime: &it}, nil
}
