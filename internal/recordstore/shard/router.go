// Package shard provides path-prefix shard routing for record store
// engines. Each shard owns an independent recordstore.Engine instance
// backed by its own data directory, and the Router dispatches records by
// the first path segment.
package shard

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/internal/recordstore"
	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/pkg/config"
)

// Router maps a record's path to one of numShards dedicated
// recordstore.Engine instances.
type Router struct {
	engines   []*recordstore.Engine
	mu        sync.RWMutex
	numShards int
	logger    *slog.Logger
}

// NewRouter creates numShards engines, each in its own sub-directory under
// baseCfg.DataDir.
func NewRouter(baseCfg config.RecordStoreConfig, numShards int) (*Router, error) {
	r := &Router{
		engines:   make([]*recordstore.Engine, numShards),
		numShards: numShards,
		logger:    slog.Default().With("component", "recordstore-shard-router"),
	}
	for i := 0; i < numShards; i++ {
		shardCfg := baseCfg
		shardCfg.DataDir = filepath.Join(baseCfg.DataDir, fmt.Sprintf("shard-%d", i))
		engine, err := recordstore.NewEngine(shardCfg)
		if err != nil {
			r.closeAll()
			return nil, fmt.Errorf("creating engine for shard %d: %w", i, err)
		}
		r.engines[i] = engine
		r.logger.Info("shard engine initialized", "shard_id", i, "data_dir", shardCfg.DataDir)
	}
	r.logger.Info("record store shard router ready", "num_shards", numShards)
	return r, nil
}

// ShardFor returns the deterministic shard ID owning the given path: the
// sum of the first path segment's bytes, modulo numShards. Records with
// the same first path segment always land on the same shard, so a
// recursive PathFilter never needs to fan out to shards it cannot match.
func (r *Router) ShardFor(path string) int {
	segment := firstSegment(path)
	var sum int
	for i := 0; i < len(segment); i++ {
		sum += int(segment[i])
	}
	return sum % r.numShards
}

func firstSegment(path string) string {
	trimmed := strings.TrimPrefix(path, "/")
	if idx := strings.IndexByte(trimmed, '/'); idx >= 0 {
		return trimmed[:idx]
	}
	return trimmed
}

// Route returns the Engine responsible for the given shard ID.
func (r *Router) Route(shardID int) (*recordstore.Engine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if shardID < 0 || shardID >= len(r.engines) {
		return nil, fmt.Errorf("unknown shard ID %d (valid range: 0-%d)", shardID, r.numShards-1)
	}
	return r.engines[shardID], nil
}

// RouteForPath returns the Engine owning path.
func (r *Router) RouteForPath(path string) (*recordstore.Engine, error) {
	return r.Route(r.ShardFor(path))
}

// AllEngines returns every shard engine, in shard-ID order.
func (r *Router) AllEngines() []*recordstore.Engine {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*recordstore.Engine, len(r.engines))
	copy(out, r.engines)
	return out
}

// NumShards returns the number of shards managed by this router.
func (r *Router) NumShards() int {
	return r.numShards
}

// FlushAll flushes every shard engine to disk.
func (r *Router) FlushAll() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var firstErr error
	for id, engine := range r.engines {
		if err := engine.Flush(); err != nil {
			r.logger.Error("flush failed", "shard_id", id, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Close flushes and closes every shard engine.
func (r *Router) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closeAll()
}

func (r *Router) closeAll() error {
	var firstErr error
	for id, engine := range r.engines {
		if engine == nil {
			continue
		}
		if err := engine.Close(); err != nil {
			r.logger.Error("close failed", "shard_id", id, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
