package shard

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/internal/bulkconsume/probe"
	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/internal/record"
	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/internal/recordstore"
)

// ShardedScroller implements dispatcher.Scroller by fanning a scroll out to
// every shard engine concurrently and merging the results, the same
// wait-group fan-out/collect shape ShardedProber uses for count/seed probes.
type ShardedScroller struct {
	router *Router
}

// NewShardedScroller wraps router as a multi-shard scroll source.
func NewShardedScroller(router *Router) *ShardedScroller {
	return &ShardedScroller{router: router}
}

// Scroll returns every record in [from, to) matching params across all
// shards, merged and sorted ascending by indexTime.
func (ss *ShardedScroller) Scroll(ctx context.Context, params probe.Params, from, to int64) ([]record.Record, error) {
	engines := ss.router.AllEngines()

	type outcome struct {
		records []record.Record
		err     error
	}
	results := make([]outcome, len(engines))
	var wg sync.WaitGroup
	for i, eng := range engines {
		wg.Add(1)
		go func(idx int, e *recordstore.Engine) {
			defer wg.Done()
			records, err := e.Scroll(ctx, params, from, to)
			results[idx] = outcome{records: records, err: err}
		}(i, eng)
	}
	wg.Wait()

	var merged []record.Record
	for _, r := range results {
		if r.err != nil {
			return nil, fmt.Errorf("shard scroll: %w", r.err)
		}
		merged = append(merged, r.records...)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].IndexTime < merged[j].IndexTime })
	return merged, nil
}
